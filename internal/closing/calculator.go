// Package closing estimates a seller's closing costs and net proceeds.
package closing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/sells-group/dealdesk/internal/model"
)

var (
	daysPerYear     = decimal.NewFromInt(365)
	defaultHalfDays = daysPerYear.Div(decimal.NewFromInt(2))
	hundred         = decimal.NewFromInt(100)
	thousand        = decimal.NewFromInt(1000)
)

// Calculator prices deals against a fee schedule.
type Calculator struct {
	fees        FeeSchedule
	fingerprint string
}

// NewCalculator creates a Calculator with the given fee schedule.
func NewCalculator(fees FeeSchedule) *Calculator {
	fees.Conveyance = fees.Conveyance.normalized()
	return &Calculator{fees: fees, fingerprint: fees.Fingerprint()}
}

// Fingerprint identifies the fee schedule this calculator prices with.
func (c *Calculator) Fingerprint() string {
	return c.fingerprint
}

// Fingerprint returns a short stable hash of the schedule. Two schedules
// that price every deal the same way after tier ordering share a value.
func (f FeeSchedule) Fingerprint() string {
	f.Conveyance = f.Conveyance.normalized()
	raw, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

// Compute returns the closing-cost breakdown for a deal. It never fails:
// missing or invalid inputs contribute zero.
func (c *Calculator) Compute(deal model.Deal) model.Breakdown {
	price := amount(deal.OfferPrice)

	b := model.Breakdown{
		SellingPrice:         cents(price),
		FirstMortgagePayoff:  cents(amount(deal.FirstMortgagePayoff)),
		SecondMortgagePayoff: cents(amount(deal.SecondMortgagePayoff)),
		BuyerClosingCredit:   cents(amount(deal.BuyerClosingCredit)),
		ListingCommission:    Commission(price, amount(deal.ListingCommissionRate)),
		BuyerCommission:      Commission(price, amount(deal.BuyerCommissionRate)),
		ConveyanceFee:        c.Conveyance(price),
		HomeWarranty:         cents(amount(deal.HomeWarranty)),
		TitleFees:            c.TitleFees(price),
		AdminFee:             cents(amount(deal.AdminFee)),
		FeeSchedule:          c.fingerprint,
	}

	annualTax := amount(deal.AnnualPropertyTax)
	b.FirstHalfTaxes = HalfYearTaxes(annualTax, deal.FirstHalfTaxesPaid, amount(deal.FirstHalfTaxDays))
	b.SecondHalfTaxes = HalfYearTaxes(annualTax, deal.SecondHalfTaxesPaid, amount(deal.SecondHalfTaxDays))
	b.TaxesDueThroughClosing = TaxesThrough(annualTax, deal.ClosingDate)

	b.TotalCosts = decimal.Sum(
		b.FirstMortgagePayoff,
		b.SecondMortgagePayoff,
		b.BuyerClosingCredit,
		b.ListingCommission,
		b.BuyerCommission,
		b.ConveyanceFee,
		b.HomeWarranty,
		b.TitleFeeTotal(),
		b.AdminFee,
		b.TaxesDueThroughClosing,
	)
	b.NetProceeds = b.SellingPrice.Sub(b.TotalCosts)
	return b
}

// Commission returns ratePercent of price, rounded to cents.
func Commission(price, ratePercent decimal.Decimal) decimal.Decimal {
	return cents(price.Mul(ratePercent).Div(hundred))
}

// HalfYearTaxes returns the unpaid portion of a half-year tax bill: zero when
// paid, otherwise the daily rate times days (half a year when days is zero).
func HalfYearTaxes(annual decimal.Decimal, paid bool, days decimal.Decimal) decimal.Decimal {
	if paid {
		return decimal.Zero
	}
	if !days.IsPositive() {
		days = defaultHalfDays
	}
	return cents(annual.Mul(days).Div(daysPerYear))
}

// TaxesThrough returns the seller's share of the annual tax from January 1st
// through the closing date, counting the closing day.
func TaxesThrough(annual decimal.Decimal, closing *civil.Date) decimal.Decimal {
	if closing == nil {
		return decimal.Zero
	}
	return cents(annual.Mul(decimal.NewFromInt(int64(DayOfYear(*closing)))).Div(daysPerYear))
}

// DayOfYear returns the 1-indexed ordinal of d within its own year.
func DayOfYear(d civil.Date) int {
	return d.DaysSince(civil.Date{Year: d.Year, Month: time.January, Day: 1}) + 1
}

// Conveyance prices the transfer fee for a selling price.
func (c *Calculator) Conveyance(price decimal.Decimal) decimal.Decimal {
	sched := c.fees.Conveyance
	fee := nonNegative(sched.Flat)

	lower := decimal.Zero
	for _, tier := range sched.Tiers {
		if !price.GreaterThan(lower) {
			break
		}
		upper := price
		if tier.UpTo > 0 {
			upper = decimal.Min(price, decimal.NewFromFloat(tier.UpTo))
		}
		if upper.GreaterThan(lower) {
			fee = fee.Add(upper.Sub(lower).Div(thousand).Mul(nonNegative(tier.PerThousand)))
		}
		if tier.UpTo <= 0 {
			break
		}
		lower = decimal.NewFromFloat(tier.UpTo)
	}
	return cents(fee)
}

// TitleFees prices each title and settlement item for a selling price.
func (c *Calculator) TitleFees(price decimal.Decimal) []model.LineItem {
	items := c.fees.Title.items()
	out := make([]model.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, model.LineItem{
			Key:    it.key,
			Label:  it.label,
			Amount: feeAmount(it.fee, price),
		})
	}
	return out
}

func feeAmount(f FeeItem, price decimal.Decimal) decimal.Decimal {
	pct := price.Mul(nonNegative(f.Percent)).Div(hundred)
	return cents(nonNegative(f.Flat).Add(pct))
}

func amount(a model.Amount) decimal.Decimal {
	return decimal.NewFromFloat(a.Float())
}

func nonNegative(f float64) decimal.Decimal {
	return amount(model.Amount(f))
}

// cents rounds half away from zero, which is half-up for the non-negative
// amounts priced here.
func cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
