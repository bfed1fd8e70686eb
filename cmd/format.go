package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/dealdesk/internal/desk"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/notice"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// money renders a cents amount with thousands grouping, negatives in
// parentheses.
func money(d decimal.Decimal) string {
	f := d.Abs().InexactFloat64()
	if d.IsNegative() {
		return printer.Sprintf("($%.2f)", f)
	}
	return printer.Sprintf("$%.2f", f)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatBreakdown(out io.Writer, b model.Breakdown) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	row := func(label string, d decimal.Decimal) {
		_, _ = fmt.Fprintf(w, "%s\t%s\t\n", label, money(d))
	}

	row("Selling price", b.SellingPrice)
	_, _ = fmt.Fprintln(w, "\t\t")
	row("First mortgage payoff", b.FirstMortgagePayoff)
	row("Second mortgage payoff", b.SecondMortgagePayoff)
	row("Buyer closing credit", b.BuyerClosingCredit)
	row("Taxes due through closing", b.TaxesDueThroughClosing)
	row("Listing commission", b.ListingCommission)
	row("Buyer commission", b.BuyerCommission)
	row("Conveyance fee", b.ConveyanceFee)
	row("Home warranty", b.HomeWarranty)
	for _, li := range b.TitleFees {
		row(li.Label, li.Amount)
	}
	row("Admin fee", b.AdminFee)
	_, _ = fmt.Fprintln(w, "\t\t")
	row("Total costs", b.TotalCosts)
	row("Net proceeds", b.NetProceeds)
	if !b.FirstHalfTaxes.IsZero() || !b.SecondHalfTaxes.IsZero() {
		_, _ = fmt.Fprintln(w, "\t\t")
		row("Unpaid first-half taxes", b.FirstHalfTaxes)
		row("Unpaid second-half taxes", b.SecondHalfTaxes)
	}
	_ = w.Flush()
}

func formatTimeline(out io.Writer, tl desk.Timeline) {
	if tl.Name != "" {
		_, _ = fmt.Fprintf(out, "%s (%s)\n", tl.Name, tl.DealID)
	} else {
		_, _ = fmt.Fprintln(out, tl.DealID)
	}
	_, _ = fmt.Fprintf(out, "Inspection period: %s\nRemedy period: %s\n\n", tl.InspectionPeriod, tl.RemedyPeriod)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MILESTONE\tDUE\tDONE")
	_, _ = fmt.Fprintln(w, "---------\t---\t----")
	for _, m := range tl.Milestones {
		done := ""
		if m.Completed {
			done = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", m.Label, m.DueLabel, done)
	}
	_ = w.Flush()
}

func formatNotices(out io.Writer, res notice.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATUS\tDUE\tDAYS\tPROPERTY\tMILESTONE")
	_, _ = fmt.Fprintln(w, "------\t---\t----\t--------\t---------")
	for _, group := range [][]notice.Item{res.Overdue, res.Upcoming} {
		for _, it := range group {
			name := it.PropertyName
			if name == "" {
				name = it.PropertyID
			}
			if len(name) > 30 {
				name = name[:27] + "..."
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", it.Status, it.Due, it.DaysUntil, name, it.Label)
		}
	}
	_ = w.Flush()
}
