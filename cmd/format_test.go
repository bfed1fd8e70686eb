package main

import (
	"bytes"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dealdesk/internal/closing"
	"github.com/sells-group/dealdesk/internal/desk"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/notice"
)

func TestMoney(t *testing.T) {
	assert.Equal(t, "$300,000.00", money(decimal.NewFromInt(300000)))
	assert.Equal(t, "$1,725.00", money(decimal.RequireFromString("1725")))
	assert.Equal(t, "($1,109.00)", money(decimal.NewFromInt(-1109)))
	assert.Equal(t, "$0.00", money(decimal.Zero))
}

func TestFormatBreakdown(t *testing.T) {
	calc := closing.NewCalculator(closing.DefaultSchedule())
	b := calc.Compute(model.Deal{OfferPrice: 300000, FirstMortgagePayoff: 150000})

	var buf bytes.Buffer
	formatBreakdown(&buf, b)
	out := buf.String()

	assert.Contains(t, out, "Selling price")
	assert.Contains(t, out, "$300,000.00")
	assert.Contains(t, out, "Owner's Title Insurance")
	assert.Contains(t, out, "Net proceeds")
	assert.NotContains(t, out, "Unpaid first-half taxes")
}

func TestFormatTimeline(t *testing.T) {
	due := civil.Date{Year: 2025, Month: 1, Day: 13}
	tl := desk.Timeline{
		DealID:           "p1",
		Name:             "Maple St",
		InspectionPeriod: "Waived",
		RemedyPeriod:     "3 days",
		Milestones: []desk.TimelineEntry{
			{Milestone: model.Milestone{Type: model.MilestoneDepositReceived, Label: "Deposit Received", Due: &due}, DueLabel: "2025-01-13", Completed: true},
		},
	}

	var buf bytes.Buffer
	formatTimeline(&buf, tl)
	out := buf.String()

	assert.Contains(t, out, "Maple St (p1)")
	assert.Contains(t, out, "Inspection period: Waived")
	assert.Contains(t, out, "Deposit Received")
	assert.Contains(t, out, "yes")
}

func TestFormatNotices(t *testing.T) {
	res := notice.Result{
		Overdue: []notice.Item{{
			PropertyID: "p1", PropertyName: "A very long property name that keeps going",
			Label: "Deposit Received", Due: civil.Date{Year: 2025, Month: 1, Day: 13},
			Status: notice.StatusOverdue, DaysUntil: -7,
		}},
		Upcoming: []notice.Item{{
			PropertyID: "p2", Label: "Clear to Close", Due: civil.Date{Year: 2025, Month: 1, Day: 22},
			Status: notice.StatusUpcoming, DaysUntil: 2,
		}},
	}

	var buf bytes.Buffer
	formatNotices(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "overdue")
	assert.Contains(t, out, "A very long property name t...")
	assert.Contains(t, out, "p2")
	assert.Contains(t, out, "2025-01-22")
	assert.Contains(t, out, "-7")
}
