package models

import "time"

// RunStatus is the terminal-or-running state of a scrape run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusStopped   RunStatus = "stopped"
)

// RunLog tracks the execution and progress of one orchestrator run (or one
// scheduler batch). The orchestrator worker is the only writer of counters;
// observers read it as eventually consistent. StopRequested is the single
// externally-mutable control input, observed cooperatively between URLs.
type RunLog struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id,omitempty" badgerhold:"index"`

	Status        RunStatus `json:"status" badgerhold:"index"`
	StopRequested bool      `json:"stop_requested"`

	// Progress metrics
	TotalTarget   int    `json:"total_target"`
	Processed     int    `json:"processed"`
	JobsFound     int    `json:"jobs_found"`
	CurrentTarget string `json:"current_target,omitempty"`
	Message       string `json:"message,omitempty"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// ProgressPercentage returns completion as 0-100, 0 when no target is set
func (r *RunLog) ProgressPercentage() int {
	if r.TotalTarget == 0 {
		return 0
	}
	return r.Processed * 100 / r.TotalTarget
}

// IsTerminal reports whether the run has reached a terminal status
func (r *RunLog) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed || r.Status == RunStatusStopped
}
