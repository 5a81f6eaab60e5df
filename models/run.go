package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SearchRun is the operational record of one fetch/analyze pipeline
// execution, kept in SQLite for inspection while the daemon runs.
type SearchRun struct {
	ID             int64      `json:"id" db:"id"`
	Keyword        string     `json:"keyword" db:"keyword"`
	Category       string     `json:"category" db:"category"`
	MonitorID      string     `json:"monitor_id,omitempty" db:"monitor_id"`
	Strategy       string     `json:"strategy" db:"strategy"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	Status         RunStatus  `json:"status" db:"status"`
	FragmentsFound int        `json:"fragments_found" db:"fragments_found"`
	ProductsParsed int        `json:"products_parsed" db:"products_parsed"`
	ErrorsCount    int        `json:"errors_count" db:"errors_count"`
}
