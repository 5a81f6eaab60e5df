package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdSearchNow  CommandType = "search_now"
	CmdRunMonitor CommandType = "run_monitor"
	CmdPause      CommandType = "pause"
	CmdResume     CommandType = "resume"
)

// Command is an operator request queued in SQLite and picked up by the
// scheduler's poll loop.
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Keyword   string `json:"keyword,omitempty"`
	Category  string `json:"category,omitempty"`
	MaxPages  int    `json:"max_pages,omitempty"`
	MonitorID string `json:"monitor_id,omitempty"`
}
