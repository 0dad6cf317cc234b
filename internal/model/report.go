package model

import "time"

// Outcome is the per-item result of a sync run.
type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeExisting    Outcome = "existing"
	OutcomeFailed      Outcome = "failed"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeOutOfScope  Outcome = "out_of_scope"
)

// ItemReport records what happened to one work item during a run.
type ItemReport struct {
	WorkItemID int     `json:"work_item_id"`
	Title      string  `json:"title,omitempty"`
	State      string  `json:"state,omitempty"`
	NotePath   string  `json:"note_path,omitempty"`
	Outcome    Outcome `json:"outcome"`
	Error      string  `json:"error,omitempty"`
}

// RunReport is the aggregated result of one sync run.
type RunReport struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Iteration  string        `json:"iteration,omitempty"`
	BoardPath  string        `json:"board_path,omitempty"`
	Items      []*ItemReport `json:"items"`
	Error      string        `json:"error,omitempty"`
}

// Count returns the number of items with the given outcome.
func (r *RunReport) Count(o Outcome) int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == o {
			n++
		}
	}
	return n
}

// Failed reports whether the run itself, or any item in it, failed.
func (r *RunReport) Failed() bool {
	return r.Error != "" || r.Count(OutcomeFailed) > 0 || r.Count(OutcomeFetchFailed) > 0
}
