package model

import (
	"cloud.google.com/go/civil"
)

// MilestoneType identifies one contract obligation.
type MilestoneType string

const (
	MilestoneDepositReceived         MilestoneType = "deposit-received"
	MilestoneInspectionScheduled     MilestoneType = "home-inspection-scheduled"
	MilestoneLoanApplication         MilestoneType = "loan-application"
	MilestoneTitleCommitmentReceived MilestoneType = "title-commitment-received"
	MilestoneAppraisalOrdered        MilestoneType = "appraisal-ordered"
	MilestoneLoanApproved            MilestoneType = "loan-approved"
	MilestoneClearToClose            MilestoneType = "clear-to-close"
	MilestoneSettlementStatement     MilestoneType = "hud-settlement-statement"
)

// MilestoneTypes lists every milestone type in schedule order.
var MilestoneTypes = []MilestoneType{
	MilestoneDepositReceived,
	MilestoneInspectionScheduled,
	MilestoneLoanApplication,
	MilestoneTitleCommitmentReceived,
	MilestoneAppraisalOrdered,
	MilestoneLoanApproved,
	MilestoneClearToClose,
	MilestoneSettlementStatement,
}

var milestoneLabels = map[MilestoneType]string{
	MilestoneDepositReceived:         "Deposit Received",
	MilestoneInspectionScheduled:     "Home Inspection Scheduled",
	MilestoneLoanApplication:         "Loan Application",
	MilestoneTitleCommitmentReceived: "Title Commitment Received",
	MilestoneAppraisalOrdered:        "Appraisal Ordered",
	MilestoneLoanApproved:            "Loan Approved",
	MilestoneClearToClose:            "Clear to Close",
	MilestoneSettlementStatement:     "HUD Settlement Statement",
}

// Label returns the display name of the milestone type.
func (t MilestoneType) Label() string {
	if l, ok := milestoneLabels[t]; ok {
		return l
	}
	return string(t)
}

// Valid reports whether t is one of the known milestone types.
func (t MilestoneType) Valid() bool {
	_, ok := milestoneLabels[t]
	return ok
}

// Order returns the position of t in MilestoneTypes, or len(MilestoneTypes)
// for an unknown type.
func (t MilestoneType) Order() int {
	for i, mt := range MilestoneTypes {
		if mt == t {
			return i
		}
	}
	return len(MilestoneTypes)
}

// WaivedLabel is shown in place of a due date for a waived contingency.
const WaivedLabel = "Waived"

// Milestone is a derived contract deadline. Due is nil when the milestone
// does not apply because its anchor date is missing. Waived marks a
// contingency whose period was agreed to be zero days.
type Milestone struct {
	Type   MilestoneType `json:"type"`
	Label  string        `json:"label"`
	Due    *civil.Date   `json:"due,omitempty"`
	Waived bool          `json:"waived,omitempty"`
}

// DueLabel renders the due date for display.
func (m Milestone) DueLabel() string {
	switch {
	case m.Waived:
		return WaivedLabel
	case m.Due == nil:
		return "N/A"
	default:
		return m.Due.String()
	}
}
