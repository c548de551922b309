package gradingapi

import "time"

// SubmissionStatus enumerates the processing states reported by the grading backend.
type SubmissionStatus string

const (
	// StatusPending means the submission is queued and OCR has not started.
	StatusPending SubmissionStatus = "pending"
	// StatusProcessing means OCR or grading is currently running.
	StatusProcessing SubmissionStatus = "processing"
	// StatusCompleted means grading finished and a result is attached.
	StatusCompleted SubmissionStatus = "completed"
	// StatusFailed means processing ended with an error.
	StatusFailed SubmissionStatus = "failed"
)

// IsTerminal reports whether no further status transitions are expected.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid reports whether the value is one of the known backend statuses.
func (s SubmissionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// QuestionScore carries the per-question breakdown inside a grading result.
type QuestionScore struct {
	QuestionNumber int      `json:"question_number"`
	Score          float64  `json:"score"`
	MaxScore       float64  `json:"max_score"`
	Feedback       string   `json:"feedback,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
}

// GradingResult is attached to a submission once grading completes.
type GradingResult struct {
	TotalScore        float64         `json:"total_score"`
	MaxScore          float64         `json:"max_score"`
	Percentage        float64         `json:"percentage"`
	Feedback          string          `json:"feedback,omitempty"`
	PerQuestionScores []QuestionScore `json:"per_question_scores,omitempty"`
}

// SubmissionStatusResponse is returned by GET /submissions/{id}/status.
type SubmissionStatusResponse struct {
	SubmissionID  int64            `json:"submission_id"`
	Status        SubmissionStatus `json:"status"`
	OCRText       *string          `json:"ocr_text,omitempty"`
	OCRConfidence *float64         `json:"ocr_confidence,omitempty"`
	GradingResult *GradingResult   `json:"grading_result,omitempty"`
	ErrorMessage  *string          `json:"error_message,omitempty"`
}

// UploadResponse is returned by POST /grading-items/{id}/submissions.
type UploadResponse struct {
	SubmissionID int64  `json:"submission_id"`
	Message      string `json:"message"`
	Status       string `json:"status"`
}

// GradingItem summarizes a gradable assessment owned by the backend.
type GradingItem struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	ItemType  string    `json:"item_type"`
	MaxScore  float64   `json:"max_score"`
	CreatedAt time.Time `json:"created_at"`
}

// GradingItemsPage is returned by GET /grading-items.
type GradingItemsPage struct {
	Items                  []GradingItem `json:"items"`
	Total                  int64         `json:"total"`
	ManualAssessmentsCount int64         `json:"manual_assessments_count"`
	AIExamsCount           int64         `json:"ai_exams_count"`
}

// AssessmentSubmission is a submission embedded in an assessment payload.
type AssessmentSubmission struct {
	SubmissionID  int64            `json:"submission_id"`
	StudentID     int64            `json:"student_id"`
	StudentName   string           `json:"student_name"`
	Status        SubmissionStatus `json:"status"`
	GradingResult *GradingResult   `json:"grading_result,omitempty"`
	ErrorMessage  *string          `json:"error_message,omitempty"`
}

// Assessment is returned by GET /assessments/{id} with its submissions embedded.
type Assessment struct {
	ID          int64                  `json:"id"`
	Title       string                 `json:"title"`
	MaxScore    float64                `json:"max_score"`
	Submissions []AssessmentSubmission `json:"submissions"`
}

// GenerateReportRequest describes the payload for POST /reports/generate.
type GenerateReportRequest struct {
	AssessmentID int64  `json:"assessment_id"`
	ReportType   string `json:"report_type"`
	Format       string `json:"format"`
}

// ReportResponse identifies a generated report on the backend.
type ReportResponse struct {
	ReportID    int64  `json:"report_id"`
	DownloadURL string `json:"download_url"`
	Status      string `json:"status"`
}

// EmailReportRequest describes the payload for POST /reports/email.
type EmailReportRequest struct {
	ReportID   int64    `json:"report_id"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Message    string   `json:"message"`
}

// ReportHistoryEntry is one row of GET /reports/history.
type ReportHistoryEntry struct {
	ReportID     int64     `json:"report_id"`
	AssessmentID int64     `json:"assessment_id"`
	ReportType   string    `json:"report_type"`
	Format       string    `json:"format"`
	GeneratedAt  time.Time `json:"generated_at"`
}
