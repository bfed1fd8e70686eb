// Package sheet reads deal spreadsheets (CSV or XLSX) and writes closing
// statements as XLSX workbooks.
package sheet

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadOptions configures spreadsheet reading.
type ReadOptions struct {
	Delimiter  rune   // CSV only; default ','
	LazyQuotes bool   // CSV only; allow bare quotes inside fields
	SheetName  string // XLSX only; default is the first sheet
}

// ReadFile reads every row of a .csv or .xlsx file, trimming cell whitespace.
func ReadFile(ctx context.Context, path string, opts ReadOptions) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, opts)
	case ".csv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "sheet: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f, opts)
	default:
		return nil, eris.Errorf("sheet: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV reads all records from r. Rows may have differing field counts.
func ReadCSV(ctx context.Context, r io.Reader, opts ReadOptions) ([][]string, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = opts.LazyQuotes

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "sheet: context cancelled")
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "sheet: read csv row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		rows = append(rows, record)
	}
}

// ReadXLSX reads the rows of one worksheet as strings. Date-formatted cells
// read as ISO dates regardless of their display format.
func ReadXLSX(path string, opts ReadOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: open xlsx")
	}

	ws, err := pickSheet(f, opts.SheetName)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(ws.Rows))
	for _, row := range ws.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cellText(cell, f.Date1904)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func cellText(cell *xlsx.Cell, date1904 bool) string {
	if cell.IsTime() {
		if t, err := cell.GetTime(date1904); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return strings.TrimSpace(cell.String())
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		ws, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("sheet: worksheet %q not found", name)
		}
		return ws, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("sheet: workbook has no worksheets")
	}
	return f.Sheets[0], nil
}
