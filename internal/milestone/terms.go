package milestone

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/sells-group/dealdesk/internal/model"
)

// Default timeframes used when the entered text has no leading number.
const (
	DefaultLoanApplicationDays = 7
	DefaultLoanCommitmentDays  = 21
)

// Period is a contingency length. The zero value is a waived contingency,
// distinct from a period that ends on its anchor date.
type Period struct {
	days int
}

// PeriodOf returns a period of n days, or a waived period when n <= 0.
func PeriodOf(n int) Period {
	if n <= 0 {
		return Period{}
	}
	return Period{days: n}
}

// Waived reports whether the contingency does not apply.
func (p Period) Waived() bool { return p.days == 0 }

// Days returns the length of the period; zero when waived.
func (p Period) Days() int { return p.days }

// End returns the last day of the period starting at anchor.
func (p Period) End(anchor civil.Date) civil.Date {
	return anchor.AddDays(p.days)
}

// Display renders the period: "Waived", the end date when the anchor is
// known, or the length in days.
func (p Period) Display(anchor *civil.Date) string {
	switch {
	case p.Waived():
		return model.WaivedLabel
	case anchor != nil:
		return p.End(*anchor).String()
	case p.days == 1:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", p.days)
	}
}

// DepositKind classifies a deposit-collection policy.
type DepositKind int

const (
	// DepositUnstructured is policy text no known pattern matched. No
	// deposit milestone is derived from it.
	DepositUnstructured DepositKind = iota
	// DepositWithinDays is "within N days of acceptance" and its variants.
	DepositWithinDays
)

// DepositPolicy is a deposit-collection rule normalised from free text.
type DepositPolicy struct {
	Kind DepositKind
	Days int
	Text string
}

// depositDays matches "3 days", "Within 3 Days of Acceptance", "2 calendar days", "1 day".
var depositDays = regexp.MustCompile(`(?i)(\d+)\s*(?:calendar\s+)?days?\b`)

// ParseDepositPolicy normalises policy text entered on the deal form.
func ParseDepositPolicy(text string) DepositPolicy {
	p := DepositPolicy{Text: text}
	m := depositDays.FindStringSubmatch(text)
	if m == nil {
		return p
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return p
	}
	p.Kind = DepositWithinDays
	p.Days = n
	return p
}

// ParseTimeframe reads the leading whole number of a timeframe such as "7"
// or "21 days", falling back to def.
func ParseTimeframe(text string, def int) int {
	text = strings.TrimSpace(text)
	end := 0
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == 0 {
		return def
	}
	n, err := strconv.Atoi(text[:end])
	if err != nil {
		return def
	}
	return n
}

// Terms is a schedule with every free-text field normalised.
type Terms struct {
	InContract          *civil.Date
	Closing             *civil.Date
	Inspection          Period
	LoanApplicationDays int
	LoanCommitmentDays  int
	Deposit             DepositPolicy
}

// Normalize converts a stored schedule into structured terms.
func Normalize(s model.Schedule) Terms {
	return Terms{
		InContract:          s.InContractDate,
		Closing:             s.ClosingDate,
		Inspection:          PeriodOf(s.InspectionDays),
		LoanApplicationDays: ParseTimeframe(s.LoanApplicationTimeframe, DefaultLoanApplicationDays),
		LoanCommitmentDays:  ParseTimeframe(s.LoanCommitmentTimeframe, DefaultLoanCommitmentDays),
		Deposit:             ParseDepositPolicy(s.DepositPolicy),
	}
}
