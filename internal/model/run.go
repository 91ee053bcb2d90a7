package model

import "time"

// RunStatus represents the status of a siting run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusScoring    RunStatus = "scoring"
	RunStatusExcluding  RunStatus = "excluding"
	RunStatusSolving    RunStatus = "solving"
	RunStatusComplete   RunStatus = "complete"
	RunStatusInfeasible RunStatus = "infeasible"
	RunStatusFailed     RunStatus = "failed"
)

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusComplete, RunStatusInfeasible, RunStatusFailed:
		return true
	}
	return false
}

// RunParams records the knobs a run was executed with.
type RunParams struct {
	RadiusKM               float64 `json:"radius_km"`
	FixedCost              float64 `json:"fixed_cost"`
	MinSelected            int     `json:"min_selected"`
	MinExclusionDistanceKM float64 `json:"min_exclusion_distance_km"`
}

// Run is a persisted record of one siting run.
type Run struct {
	ID        string     `json:"id"`
	Region    string     `json:"region"`
	Status    RunStatus  `json:"status"`
	Params    RunParams  `json:"params"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult summarises a completed run.
type RunResult struct {
	Candidates int            `json:"candidates"`
	Excluded   int            `json:"excluded"`
	Selected   int            `json:"selected"`
	Objective  float64        `json:"objective"`
	Nodes      int            `json:"nodes"`
	Sites      []SelectedSite `json:"sites,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// RunFilter constrains run listings.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Region string    `json:"region,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}
