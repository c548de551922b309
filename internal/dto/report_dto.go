package dto

import (
	"time"

	"github.com/noah-isme/gradeflow-go-api/internal/models"
)

// ReportGenerateRequest asks the backend to render a report for an assessment.
type ReportGenerateRequest struct {
	AssessmentID int64  `json:"assessment_id" validate:"required,gt=0"`
	ReportType   string `json:"report_type" validate:"required,oneof=summary detailed per_student"`
	Format       string `json:"format" validate:"required,oneof=pdf xlsx"`
}

// ReportEmailRequest asks the backend to deliver a generated report by email.
type ReportEmailRequest struct {
	ReportID   int64    `json:"report_id" validate:"required,gt=0"`
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
	Subject    string   `json:"subject" validate:"required,min=3,max=200"`
	Message    string   `json:"message" validate:"omitempty,max=5000"`
}

// ReportResponse identifies a generated report.
type ReportResponse struct {
	ReportID     int64  `json:"report_id"`
	AssessmentID int64  `json:"assessment_id"`
	DownloadURL  string `json:"download_url"`
	Status       string `json:"status"`
}

// ReportHistoryItem is one row of the local report history.
type ReportHistoryItem struct {
	ReportID     int64     `json:"report_id"`
	AssessmentID int64     `json:"assessment_id"`
	ReportType   string    `json:"report_type"`
	Format       string    `json:"format"`
	DownloadURL  string    `json:"download_url"`
	EmailedTo    string    `json:"emailed_to,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// NewReportHistoryItem converts a report record into its DTO.
func NewReportHistoryItem(record models.ReportRecord) ReportHistoryItem {
	return ReportHistoryItem{
		ReportID:     record.BackendID,
		AssessmentID: record.AssessmentID,
		ReportType:   record.ReportType,
		Format:       record.Format,
		DownloadURL:  record.DownloadURL,
		EmailedTo:    record.EmailedTo,
		GeneratedAt:  record.CreatedAt,
	}
}

// NewReportHistoryItems converts report records into DTOs.
func NewReportHistoryItems(records []models.ReportRecord) []ReportHistoryItem {
	items := make([]ReportHistoryItem, 0, len(records))
	for _, record := range records {
		items = append(items, NewReportHistoryItem(record))
	}
	return items
}
