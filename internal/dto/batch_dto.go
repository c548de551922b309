package dto

import (
	"time"

	"github.com/noah-isme/gradeflow-go-api/internal/models"
)

// BatchCreateRequest describes the multipart payload for starting an upload batch.
type BatchCreateRequest struct {
	GradingItemID int64   `form:"grading_item_id" validate:"required,gt=0"`
	SourceType    string  `form:"source_type" validate:"required,oneof=scan photo document"`
	StudentIDs    []int64 `form:"student_ids" validate:"required,min=1,dive,gt=0"`
}

// FileEntryResponse serializes one per-file slot of a batch.
type FileEntryResponse struct {
	FileIndex    int    `json:"file_index"`
	FileName     string `json:"file_name"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	SubmissionID *int64 `json:"submission_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// BatchResponse serializes the full state of an upload batch.
type BatchResponse struct {
	ID            string              `json:"id"`
	GradingItemID int64               `json:"grading_item_id"`
	Files         []FileEntryResponse `json:"files"`
	IsActive      bool                `json:"is_active"`
	StartedAt     time.Time           `json:"started_at"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
}

// BatchProgressResponse combines derived counts with the two percentages the
// UI renders.
type BatchProgressResponse struct {
	BatchID            string `json:"batch_id"`
	Total              int    `json:"total"`
	Pending            int    `json:"pending"`
	Processing         int    `json:"processing"`
	Completed          int    `json:"completed"`
	Failed             int    `json:"failed"`
	OverallProgress    int    `json:"overall_progress"`
	ProcessingProgress int    `json:"processing_progress"`
}

// NewBatchResponse converts an upload batch into its DTO.
func NewBatchResponse(batch models.UploadBatch) BatchResponse {
	files := make([]FileEntryResponse, 0, len(batch.Files))
	for _, entry := range batch.Files {
		files = append(files, FileEntryResponse{
			FileIndex:    entry.FileIndex,
			FileName:     entry.FileName,
			Status:       string(entry.Status),
			Progress:     entry.Progress,
			SubmissionID: entry.SubmissionID,
			Error:        entry.Error,
		})
	}

	return BatchResponse{
		ID:            batch.ID,
		GradingItemID: batch.GradingItem,
		Files:         files,
		IsActive:      batch.IsActive,
		StartedAt:     batch.StartedAt,
		CompletedAt:   batch.CompletedAt,
	}
}
