package models

import "time"

// FileStatus tracks one file inside an upload batch. Statuses only move
// forward once an upload starts; there is no transition back to pending.
type FileStatus string

const (
	// FileStatusPending means the file has not started uploading yet.
	FileStatusPending FileStatus = "pending"
	// FileStatusUploading means the multipart request is in flight.
	FileStatusUploading FileStatus = "uploading"
	// FileStatusCompleted means the backend accepted the file and assigned a submission.
	FileStatusCompleted FileStatus = "completed"
	// FileStatusFailed means the upload ended with an error.
	FileStatusFailed FileStatus = "failed"
)

// IsTerminal reports whether the file needs no further upload work.
func (s FileStatus) IsTerminal() bool {
	return s == FileStatusCompleted || s == FileStatusFailed
}

// UploadFileEntry is the per-file slot of an upload batch. Entries are
// addressed by FileIndex, which is fixed at batch creation and never reused.
type UploadFileEntry struct {
	FileIndex    int        `json:"file_index"`
	FileName     string     `json:"file_name"`
	Status       FileStatus `json:"status"`
	Progress     int        `json:"progress"`
	SubmissionID *int64     `json:"submission_id,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// UploadBatch groups the files of one upload action. The file list length is
// fixed once the batch starts.
type UploadBatch struct {
	ID           string            `json:"id"`
	GradingItem  int64             `json:"grading_item_id"`
	Files        []UploadFileEntry `json:"files"`
	IsActive     bool              `json:"is_active"`
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// SubmissionIDs returns the backend submission ids of all completed files.
func (b UploadBatch) SubmissionIDs() []int64 {
	ids := make([]int64, 0, len(b.Files))
	for _, file := range b.Files {
		if file.SubmissionID != nil {
			ids = append(ids, *file.SubmissionID)
		}
	}
	return ids
}

// AllTerminal reports whether every file reached completed or failed.
func (b UploadBatch) AllTerminal() bool {
	for _, file := range b.Files {
		if !file.Status.IsTerminal() {
			return false
		}
	}
	return true
}
