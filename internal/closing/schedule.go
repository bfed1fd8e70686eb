package closing

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FeeSchedule holds the jurisdiction-specific fees applied to a sale.
type FeeSchedule struct {
	Conveyance ConveyanceSchedule `yaml:"conveyance" mapstructure:"conveyance"`
	Title      TitleFees          `yaml:"title" mapstructure:"title"`
}

// ConveyanceSchedule prices the transfer/conveyance fee from the selling
// price: a flat amount plus marginal per-$1000 tiers.
type ConveyanceSchedule struct {
	Flat  float64          `yaml:"flat" mapstructure:"flat"`
	Tiers []ConveyanceTier `yaml:"tiers" mapstructure:"tiers"`
}

// ConveyanceTier charges PerThousand for every $1000 of price up to UpTo.
// UpTo of zero means the tier has no upper bound.
type ConveyanceTier struct {
	UpTo        float64 `yaml:"up_to" mapstructure:"up_to"`
	PerThousand float64 `yaml:"per_thousand" mapstructure:"per_thousand"`
}

// FeeItem is a flat amount plus an optional percentage of the selling price.
type FeeItem struct {
	Flat    float64 `yaml:"flat" mapstructure:"flat"`
	Percent float64 `yaml:"percent" mapstructure:"percent"`
}

// TitleFees lists the title and settlement charges paid by the seller.
type TitleFees struct {
	Examination     FeeItem `yaml:"examination" mapstructure:"examination"`
	SettlementFee   FeeItem `yaml:"settlement_fee" mapstructure:"settlement_fee"`
	ClosingFee      FeeItem `yaml:"closing_fee" mapstructure:"closing_fee"`
	DeedPreparation FeeItem `yaml:"deed_preparation" mapstructure:"deed_preparation"`
	Overnight       FeeItem `yaml:"overnight" mapstructure:"overnight"`
	Recording       FeeItem `yaml:"recording" mapstructure:"recording"`
	SurveyCoverage  FeeItem `yaml:"survey_coverage" mapstructure:"survey_coverage"`
	TitleInsurance  FeeItem `yaml:"title_insurance" mapstructure:"title_insurance"`
}

type titleItem struct {
	key   string
	label string
	fee   FeeItem
}

// items returns the title fees in statement order.
func (t TitleFees) items() []titleItem {
	return []titleItem{
		{"examination", "Title Examination", t.Examination},
		{"settlement_fee", "Settlement Fee", t.SettlementFee},
		{"closing_fee", "Closing Fee", t.ClosingFee},
		{"deed_preparation", "Deed Preparation", t.DeedPreparation},
		{"overnight", "Overnight / Courier", t.Overnight},
		{"recording", "Recording Fee", t.Recording},
		{"survey_coverage", "Survey Coverage", t.SurveyCoverage},
		{"title_insurance", "Owner's Title Insurance", t.TitleInsurance},
	}
}

// normalized returns a copy with tiers ordered by bound, unbounded last.
func (c ConveyanceSchedule) normalized() ConveyanceSchedule {
	tiers := make([]ConveyanceTier, len(c.Tiers))
	copy(tiers, c.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		a, b := tiers[i].UpTo, tiers[j].UpTo
		if a <= 0 {
			return false
		}
		if b <= 0 {
			return true
		}
		return a < b
	})
	return ConveyanceSchedule{Flat: c.Flat, Tiers: tiers}
}

// DefaultSchedule returns a reference schedule: a $4 per $1000 conveyance
// fee and typical flat title charges.
func DefaultSchedule() FeeSchedule {
	return FeeSchedule{
		Conveyance: ConveyanceSchedule{
			Tiers: []ConveyanceTier{{PerThousand: 4}},
		},
		Title: TitleFees{
			Examination:     FeeItem{Flat: 175},
			SettlementFee:   FeeItem{Flat: 450},
			ClosingFee:      FeeItem{Flat: 150},
			DeedPreparation: FeeItem{Flat: 150},
			Overnight:       FeeItem{Flat: 50},
			Recording:       FeeItem{Flat: 34},
			SurveyCoverage:  FeeItem{Flat: 100},
			TitleInsurance:  FeeItem{Percent: 0.575},
		},
	}
}

// LoadSchedule reads a fee schedule from a YAML file. The file may wrap the
// schedule in a top-level "fees" key.
func LoadSchedule(path string) (*FeeSchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "closing: read fee schedule %s", path)
	}

	var wrapper struct {
		Fees *FeeSchedule `yaml:"fees"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "closing: parse fee schedule")
	}
	if wrapper.Fees != nil {
		return wrapper.Fees, nil
	}

	var fs FeeSchedule
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, eris.Wrap(err, "closing: parse fee schedule")
	}
	return &fs, nil
}
