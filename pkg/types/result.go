package types

import "time"

// FileResult holds the outcome of organizing a single file. It is filled in
// exactly once, when the file's journey through the engine completes.
type FileResult struct {
	FilePath        string `json:"file_path"`
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	DestinationPath string `json:"destination_path,omitempty"`
	Category        string `json:"category,omitempty"`
	Size            int64  `json:"size,omitempty"`
}

// Progress is one event of a run's progress stream. The stream is ordered
// and ends with exactly one event whose Finished field is true.
type Progress struct {
	RunID          string      `json:"run_id"`
	TotalFiles     int         `json:"total_files"`
	ProcessedFiles int         `json:"processed_files"`
	CurrentResult  *FileResult `json:"current_result,omitempty"`
	Finished       bool        `json:"finished"`
	Cancelled      bool        `json:"cancelled,omitempty"`
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID           string       `json:"run_id"`
	DestinationRoot string       `json:"destination_root"`
	StartedAt       time.Time    `json:"started_at"`
	FinishedAt      time.Time    `json:"finished_at"`
	TotalFiles      int          `json:"total_files"`
	ProcessedFiles  int          `json:"processed_files"`
	Succeeded       int          `json:"succeeded"`
	Failed          int          `json:"failed"`
	Cancelled       bool         `json:"cancelled"`
	DryRun          bool         `json:"dry_run"`
	Results         []FileResult `json:"results,omitempty"`
}

// Duration returns how long the run took.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
