package model

import "github.com/shopspring/decimal"

// LineItem is one named charge in a breakdown.
type LineItem struct {
	Key    string          `json:"key"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Breakdown is the seller's estimated closing statement for a deal. All
// amounts are rounded to cents. FirstHalfTaxes and SecondHalfTaxes disclose
// unpaid half-year bills; only TaxesDueThroughClosing enters NetProceeds.
type Breakdown struct {
	SellingPrice         decimal.Decimal `json:"selling_price"`
	FirstMortgagePayoff  decimal.Decimal `json:"first_mortgage_payoff"`
	SecondMortgagePayoff decimal.Decimal `json:"second_mortgage_payoff"`
	BuyerClosingCredit   decimal.Decimal `json:"buyer_closing_credit"`

	FirstHalfTaxes         decimal.Decimal `json:"first_half_taxes"`
	SecondHalfTaxes        decimal.Decimal `json:"second_half_taxes"`
	TaxesDueThroughClosing decimal.Decimal `json:"taxes_due_through_closing"`

	ListingCommission decimal.Decimal `json:"listing_commission"`
	BuyerCommission   decimal.Decimal `json:"buyer_commission"`
	ConveyanceFee     decimal.Decimal `json:"conveyance_fee"`
	HomeWarranty      decimal.Decimal `json:"home_warranty"`
	TitleFees         []LineItem      `json:"title_fees"`
	AdminFee          decimal.Decimal `json:"admin_fee"`

	TotalCosts  decimal.Decimal `json:"total_costs"`
	NetProceeds decimal.Decimal `json:"net_proceeds"`

	// FeeSchedule fingerprints the schedule the breakdown was priced with.
	FeeSchedule string `json:"fee_schedule,omitempty"`
}

// TitleFeeTotal sums the title and settlement line items.
func (b Breakdown) TitleFeeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, li := range b.TitleFees {
		total = total.Add(li.Amount)
	}
	return total
}
