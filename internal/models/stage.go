package models

// Stage is the state of a pipeline run.
type Stage string

const (
	StageIdle               Stage = "idle"
	StageResolvingReference Stage = "resolving_reference"
	StageProcessingBatch    Stage = "processing_batch"
	StageSorting            Stage = "sorting"
	StageDone               Stage = "done"
	StageFailed             Stage = "failed"
)

// RunStatus is a point-in-time view of the current or last run.
type RunStatus struct {
	RunID     string `json:"run_id,omitempty"`
	Stage     Stage  `json:"stage"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
}
