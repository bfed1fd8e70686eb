package model

import "time"

// NoticeKey identifies the completion flag of one milestone on one property.
// The store guarantees at most one status per key.
type NoticeKey struct {
	PropertyID string        `json:"property_id"`
	Type       MilestoneType `json:"milestone_type"`
}

// NoticeStatus is the persisted completion flag for a NoticeKey.
type NoticeStatus struct {
	NoticeKey
	Completed bool      `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusSet indexes completion flags by composite key. A missing key reads
// as not completed.
type StatusSet map[NoticeKey]bool

// NewStatusSet builds a StatusSet from stored statuses. When the same key
// appears twice the later entry wins.
func NewStatusSet(statuses []NoticeStatus) StatusSet {
	set := make(StatusSet, len(statuses))
	for _, s := range statuses {
		set[s.NoticeKey] = s.Completed
	}
	return set
}

// Completed reports whether the milestone of the given property is done.
func (s StatusSet) Completed(propertyID string, t MilestoneType) bool {
	return s[NoticeKey{PropertyID: propertyID, Type: t}]
}
