package model

import "time"

// RunStatus represents the current state of a coverage analysis run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams records the core inputs of a run.
type RunParams struct {
	RadiusMeters float64 `json:"radius_meters" yaml:"radius_meters"`
	Threshold    int     `json:"threshold" yaml:"threshold"`
	Workers      int     `json:"workers" yaml:"workers"`
	Categories   int     `json:"categories" yaml:"categories"`
}

// Diagnostics summarizes what happened to each unit of work during a run.
// A run either completes with these counts or fails fast on input validation.
type Diagnostics struct {
	BufferedCategories int      `json:"buffered_categories" yaml:"buffered_categories"`
	EmptyCategories    []string `json:"empty_categories,omitempty" yaml:"empty_categories,omitempty"`

	Attempted          int      `json:"attempted" yaml:"attempted"`
	SkippedEmpty       int      `json:"skipped_empty" yaml:"skipped_empty"`
	Failed             int      `json:"failed" yaml:"failed"`
	Succeeded          int      `json:"succeeded" yaml:"succeeded"`
	FailedCombinations []string `json:"failed_combinations,omitempty" yaml:"failed_combinations,omitempty"`

	Regions      int     `json:"regions" yaml:"regions"`
	TotalAreaSqM float64 `json:"total_area_sqm" yaml:"total_area_sqm"`
}

// Run represents a single coverage analysis run.
type Run struct {
	ID          string       `json:"id"`
	Status      RunStatus    `json:"status"`
	Params      RunParams    `json:"params"`
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
