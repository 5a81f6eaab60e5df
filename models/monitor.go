package models

import "time"

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// NextAfter returns the due time that follows anchor for this frequency.
// Monthly uses calendar months via AddDate, so Jan 31 + monthly normalizes
// into early March the way time.AddDate does.
func (f Frequency) NextAfter(anchor time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return anchor.Add(7 * 24 * time.Hour)
	case FrequencyMonthly:
		return anchor.AddDate(0, 1, 0)
	default:
		return anchor.Add(24 * time.Hour)
	}
}

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Stage identifies the pipeline step a run record refers to.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageParse   Stage = "parse"
	StageAnalyze Stage = "analyze"
	StageDeliver Stage = "deliver"
)

// RunRecord is one entry of a monitor's run history: outcome plus a compact
// result summary, never the raw product set.
type RunRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	Success       bool      `json:"success"`
	FailedStage   Stage     `json:"failed_stage,omitempty"`
	Error         string    `json:"error,omitempty"`
	TotalProducts int       `json:"total_products"`
	ValidProducts int       `json:"valid_products"`
	TopPicks      []string  `json:"top_picks,omitempty"`
	EmailSent     bool      `json:"email_sent"`
}

// Monitor is a persisted recurring search-and-report job. Search parameters
// are fixed for its lifetime; recreate the monitor to change them.
type Monitor struct {
	ID         string      `json:"id"`
	Keyword    string      `json:"keyword"`
	Category   string      `json:"category"`
	MaxPages   int         `json:"max_pages"`
	Email      string      `json:"email"`
	Frequency  Frequency   `json:"frequency"`
	CreatedAt  time.Time   `json:"created_at"`
	LastRunAt  *time.Time  `json:"last_run_at,omitempty"`
	NextDueAt  time.Time   `json:"next_due_at"`
	Enabled    bool        `json:"enabled"`
	RunHistory []RunRecord `json:"run_history"`
}

// Due reports whether the monitor should run at now.
func (m *Monitor) Due(now time.Time) bool {
	return m.Enabled && !now.Before(m.NextDueAt)
}
