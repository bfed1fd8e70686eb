// Package milestone derives contract deadlines from a deal's anchor dates.
// All arithmetic is on calendar dates; no clock or time zone is involved.
package milestone

import (
	"cloud.google.com/go/civil"

	"github.com/sells-group/dealdesk/internal/model"
)

type anchor int

const (
	anchorInContract anchor = iota
	anchorClosing
)

// Offsets from the closing date.
const (
	TitleCommitmentDaysBeforeClosing = 15
	AppraisalDaysBeforeClosing       = 14
	ClearToCloseDaysBeforeClosing    = 4
	SettlementDaysBeforeClosing      = 2
)

// rule computes one milestone's offset from its anchor. ok is false when the
// terms give no offset (an unrecognised deposit policy).
type rule struct {
	typ    model.MilestoneType
	anchor anchor
	offset func(Terms) (days int, waived bool, ok bool)
}

func fixed(n int) func(Terms) (int, bool, bool) {
	return func(Terms) (int, bool, bool) { return n, false, true }
}

var rules = []rule{
	{model.MilestoneDepositReceived, anchorInContract, func(t Terms) (int, bool, bool) {
		return t.Deposit.Days, false, t.Deposit.Kind == DepositWithinDays
	}},
	{model.MilestoneInspectionScheduled, anchorInContract, func(t Terms) (int, bool, bool) {
		return t.Inspection.Days(), t.Inspection.Waived(), true
	}},
	{model.MilestoneLoanApplication, anchorInContract, func(t Terms) (int, bool, bool) {
		return t.LoanApplicationDays, false, true
	}},
	{model.MilestoneTitleCommitmentReceived, anchorClosing, fixed(-TitleCommitmentDaysBeforeClosing)},
	{model.MilestoneAppraisalOrdered, anchorClosing, fixed(-AppraisalDaysBeforeClosing)},
	{model.MilestoneLoanApproved, anchorInContract, func(t Terms) (int, bool, bool) {
		return t.LoanCommitmentDays, false, true
	}},
	{model.MilestoneClearToClose, anchorClosing, fixed(-ClearToCloseDaysBeforeClosing)},
	{model.MilestoneSettlementStatement, anchorClosing, fixed(-SettlementDaysBeforeClosing)},
}

// Derive returns the milestones that apply to the terms, in schedule order.
// A milestone whose anchor date is missing is left out, as is the deposit
// milestone when the deposit policy was not understood.
func Derive(t Terms) []model.Milestone {
	out := make([]model.Milestone, 0, len(rules))
	for _, r := range rules {
		base := t.InContract
		if r.anchor == anchorClosing {
			base = t.Closing
		}
		if base == nil {
			continue
		}
		days, waived, ok := r.offset(t)
		if !ok {
			continue
		}
		due := base.AddDays(days)
		out = append(out, model.Milestone{
			Type:   r.typ,
			Label:  r.typ.Label(),
			Due:    &due,
			Waived: waived,
		})
	}
	return out
}

// DeriveSchedule normalises a stored schedule and derives its milestones.
func DeriveSchedule(s model.Schedule) []model.Milestone {
	return Derive(Normalize(s))
}

// Find returns the milestone of the given type, if derived.
func Find(ms []model.Milestone, t model.MilestoneType) (model.Milestone, bool) {
	for _, m := range ms {
		if m.Type == t {
			return m, true
		}
	}
	return model.Milestone{}, false
}

// RemedyPeriod renders a deal's remedy period the way inspection periods are
// shown: "Waived" for zero days.
func RemedyPeriod(d model.Deal, from *civil.Date) string {
	return PeriodOf(int(d.RemedyDays)).Display(from)
}
