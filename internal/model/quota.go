package model

import "time"

// QuotaState mirrors the remote counter for one user and period.
// The counter service owns the authoritative value.
type QuotaState struct {
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	PeriodKey string `json:"period"`
}

// Remaining returns the budget left in the period, never negative.
func (q QuotaState) Remaining() int {
	if q.Count >= q.Limit {
		return 0
	}
	return q.Limit - q.Count
}

// PeriodKey buckets a point in time into the quota reset window, one UTC
// calendar day.
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
