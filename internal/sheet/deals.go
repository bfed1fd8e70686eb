package sheet

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/model"
)

// columnAliases maps normalized header text onto deal JSON keys. Headers
// that already match a key need no entry.
var columnAliases = map[string]string{
	"property_id":          "id",
	"deal_id":              "id",
	"property":             "name",
	"property_name":        "name",
	"street_address":       "address",
	"price":                "offer_price",
	"sale_price":           "offer_price",
	"selling_price":        "offer_price",
	"mortgage_payoff":      "first_mortgage_payoff",
	"first_mortgage":       "first_mortgage_payoff",
	"second_mortgage":      "second_mortgage_payoff",
	"closing_credit":       "buyer_closing_credit",
	"seller_credit":        "buyer_closing_credit",
	"deposit":              "earnest_money",
	"property_tax":         "annual_property_tax",
	"annual_taxes":         "annual_property_tax",
	"listing_commission":   "listing_commission_rate",
	"buyer_commission":     "buyer_commission_rate",
	"contract_date":        "in_contract_date",
	"in_contract":          "in_contract_date",
	"inspection_period":    "inspection_days",
	"remedy_period":        "remedy_days",
	"loan_application":     "loan_application_timeframe",
	"loan_commitment":      "loan_commitment_timeframe",
	"deposit_due":          "deposit_policy",
	"earnest_money_policy": "deposit_policy",
}

var boolColumns = map[string]bool{
	"first_half_taxes_paid":  true,
	"second_half_taxes_paid": true,
}

var dateColumns = map[string]bool{
	"in_contract_date": true,
	"closing_date":     true,
}

// dateLayouts are the date spellings accepted in date columns, ISO first.
var dateLayouts = []string{
	time.DateOnly,
	"1/2/2006",
	"1/2/06",
	"1-2-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

var dealColumns = func() map[string]bool {
	cols := map[string]bool{}
	for _, k := range []string{
		"id", "name", "address",
		"offer_price", "first_mortgage_payoff", "second_mortgage_payoff",
		"buyer_closing_credit", "earnest_money", "home_warranty", "admin_fee",
		"annual_property_tax", "listing_commission_rate", "buyer_commission_rate",
		"first_half_taxes_paid", "second_half_taxes_paid",
		"first_half_tax_days", "second_half_tax_days",
		"in_contract_date", "closing_date",
		"inspection_days", "remedy_days",
		"loan_application_timeframe", "loan_commitment_timeframe", "deposit_policy",
	} {
		cols[k] = true
	}
	return cols
}()

// ColumnKey resolves a spreadsheet header to a deal field key, or "" when
// the column is not a deal field.
func ColumnKey(header string) string {
	key := normalizeHeader(header)
	if alias, ok := columnAliases[key]; ok {
		key = alias
	}
	if !dealColumns[key] {
		return ""
	}
	return key
}

func normalizeHeader(h string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// ParseDeals turns a header row plus data rows into deals. Unknown columns
// and blank rows are ignored; cell values decode as leniently as JSON input.
// Date cells accept ISO and US month/day/year spellings; any other non-blank
// date is an error naming the row.
func ParseDeals(rows [][]string) ([]model.Deal, error) {
	if len(rows) == 0 {
		return nil, eris.New("sheet: no header row")
	}

	keys := make([]string, len(rows[0]))
	known := 0
	for i, h := range rows[0] {
		keys[i] = ColumnKey(h)
		if keys[i] != "" {
			known++
		}
	}
	if known == 0 {
		return nil, eris.New("sheet: header row has no deal columns")
	}

	deals := make([]model.Deal, 0, len(rows)-1)
	for n, row := range rows[1:] {
		fields := map[string]any{}
		for i, cell := range row {
			if i >= len(keys) || keys[i] == "" || cell == "" {
				continue
			}
			if boolColumns[keys[i]] {
				fields[keys[i]] = truthy(cell)
				continue
			}
			if dateColumns[keys[i]] {
				d, err := parseDateCell(cell)
				if err != nil {
					return nil, eris.Wrapf(err, "sheet: row %d: %s", n+2, keys[i])
				}
				fields[keys[i]] = d.String()
				continue
			}
			fields[keys[i]] = cell
		}
		if len(fields) == 0 {
			continue
		}

		data, err := json.Marshal(fields)
		if err != nil {
			return nil, eris.Wrapf(err, "sheet: encode row %d", n+2)
		}
		var d model.Deal
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, eris.Wrapf(err, "sheet: decode row %d", n+2)
		}
		deals = append(deals, d)
	}
	return deals, nil
}

func parseDateCell(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i == len(time.DateOnly) {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, eris.Errorf("unrecognized date %q", s)
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "x", "1", "paid":
		return true
	}
	return false
}
