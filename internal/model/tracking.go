package model

import "time"

// StageMetrics represents metrics for a specific pipeline stage
type StageMetrics struct {
	StageName string        `json:"stage_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	RowsIn    int           `json:"rows_in"`
	RowsOut   int           `json:"rows_out"`
	Status    string        `json:"status"` // "running", "completed", "failed"
}

// RowsDropped returns how many rows the stage removed.
func (s StageMetrics) RowsDropped() int {
	if s.RowsIn < s.RowsOut {
		return 0
	}
	return s.RowsIn - s.RowsOut
}

// ErrorDetail represents a detailed error with context
type ErrorDetail struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunMetrics represents overall run metrics
type RunMetrics struct {
	RunID     string         `json:"run_id"`
	Status    string         `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Duration  time.Duration  `json:"duration"`
	Stages    []StageMetrics `json:"stages"`
	Errors    []ErrorDetail  `json:"errors"`
}

// Stage returns the metrics of the named stage.
func (m RunMetrics) Stage(name string) (StageMetrics, bool) {
	for _, s := range m.Stages {
		if s.StageName == name {
			return s, true
		}
	}
	return StageMetrics{}, false
}
