package model

import "time"

// PipelineRun records the outcome of one pipeline invocation. The quality
// scorer and the REST quality endpoint read these counts; they never
// re-validate rows.
type PipelineRun struct {
	ID           string                    `json:"id"`
	StartedAt    time.Time                 `json:"started_at"`
	FinishedAt   time.Time                 `json:"finished_at"`
	TotalRows    int64                     `json:"total_rows"`
	Accepted     int64                     `json:"accepted"`
	Rejected     int64                     `json:"rejected"`
	QualityScore float64                   `json:"quality_score"`
	Breakdown    map[RejectionReason]int64 `json:"breakdown,omitempty"`
}
