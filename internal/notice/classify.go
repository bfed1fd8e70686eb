// Package notice turns derived milestones and their completion flags into
// the overdue and upcoming lists shown on the notices dashboard.
package notice

import (
	"sort"

	"cloud.google.com/go/civil"

	"github.com/sells-group/dealdesk/internal/model"
)

// HorizonDays is how far ahead of today a milestone becomes upcoming.
const HorizonDays = 3

// Status of a notice item.
const (
	StatusOverdue  = "overdue"
	StatusUpcoming = "upcoming"
)

// PropertyMilestones is one property's derived milestones.
type PropertyMilestones struct {
	PropertyID string
	Name       string
	Address    string
	Milestones []model.Milestone
}

// Item is a single outstanding milestone.
type Item struct {
	PropertyID   string              `json:"property_id"`
	PropertyName string              `json:"property_name,omitempty"`
	Address      string              `json:"address,omitempty"`
	Type         model.MilestoneType `json:"type"`
	Label        string              `json:"label"`
	Due          civil.Date          `json:"due"`
	Status       string              `json:"status"`
	DaysUntil    int                 `json:"days_until"`
}

// Result holds the classified items, each list sorted by due date.
type Result struct {
	Overdue  []Item `json:"overdue"`
	Upcoming []Item `json:"upcoming"`
}

// Len returns the total number of items.
func (r Result) Len() int { return len(r.Overdue) + len(r.Upcoming) }

// Classify selects the incomplete milestones that are overdue or due within
// HorizonDays of today. Milestones without a due date and waived milestones
// are never reported.
func Classify(props []PropertyMilestones, statuses model.StatusSet, today civil.Date) Result {
	res := Result{Overdue: []Item{}, Upcoming: []Item{}}
	horizon := today.AddDays(HorizonDays)

	for _, p := range props {
		for _, m := range p.Milestones {
			if m.Due == nil || m.Waived {
				continue
			}
			if statuses.Completed(p.PropertyID, m.Type) {
				continue
			}
			due := *m.Due
			if due.After(horizon) {
				continue
			}
			it := Item{
				PropertyID:   p.PropertyID,
				PropertyName: p.Name,
				Address:      p.Address,
				Type:         m.Type,
				Label:        m.Label,
				Due:          due,
				DaysUntil:    due.DaysSince(today),
			}
			if due.Before(today) {
				it.Status = StatusOverdue
				res.Overdue = append(res.Overdue, it)
			} else {
				it.Status = StatusUpcoming
				res.Upcoming = append(res.Upcoming, it)
			}
		}
	}

	sortItems(res.Overdue)
	sortItems(res.Upcoming)
	return res
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Due != b.Due {
			return a.Due.Before(b.Due)
		}
		if a.PropertyID != b.PropertyID {
			return a.PropertyID < b.PropertyID
		}
		return a.Type.Order() < b.Type.Order()
	})
}
