package sheet

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dealdesk/internal/model"
)

const moneyFormat = `"$"#,##0.00;("$"#,##0.00)`

// WriteStatement renders a breakdown as a one-sheet XLSX closing statement.
func WriteStatement(w io.Writer, title string, b model.Breakdown) error {
	f, err := BuildStatement(title, b)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "sheet: write statement")
}

// BuildStatement lays out the seller's estimated closing statement.
func BuildStatement(title string, b model.Breakdown) (*xlsx.File, error) {
	f := xlsx.NewFile()
	ws, err := f.AddSheet("Closing Statement")
	if err != nil {
		return nil, eris.Wrap(err, "sheet: add worksheet")
	}

	text := func(s string) {
		ws.AddRow().AddCell().SetString(s)
	}
	line := func(label string, d decimal.Decimal) {
		row := ws.AddRow()
		row.AddCell().SetString(label)
		row.AddCell().SetFloatWithFormat(d.InexactFloat64(), moneyFormat)
	}

	if title != "" {
		text(title)
	}
	text("Seller's Estimated Closing Statement")
	ws.AddRow()

	line("Selling Price", b.SellingPrice)
	ws.AddRow()
	line("First Mortgage Payoff", b.FirstMortgagePayoff)
	line("Second Mortgage Payoff", b.SecondMortgagePayoff)
	line("Buyer Closing Credit", b.BuyerClosingCredit)
	line("Taxes Due Through Closing", b.TaxesDueThroughClosing)
	line("Listing Commission", b.ListingCommission)
	line("Buyer Commission", b.BuyerCommission)
	line("Conveyance Fee", b.ConveyanceFee)
	line("Home Warranty", b.HomeWarranty)
	for _, li := range b.TitleFees {
		line(li.Label, li.Amount)
	}
	line("Admin Fee", b.AdminFee)
	ws.AddRow()
	line("Total Costs", b.TotalCosts)
	line("Net Proceeds", b.NetProceeds)

	if !b.FirstHalfTaxes.IsZero() || !b.SecondHalfTaxes.IsZero() {
		ws.AddRow()
		line("Unpaid First-Half Taxes", b.FirstHalfTaxes)
		line("Unpaid Second-Half Taxes", b.SecondHalfTaxes)
	}

	return f, nil
}
