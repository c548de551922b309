package models

import "time"

// ReportRecord keeps a local row for every report generated through this
// service, so history survives backend retention limits.
type ReportRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BackendID    int64     `gorm:"not null;index" json:"backend_id"`
	AssessmentID int64     `gorm:"not null;index" json:"assessment_id"`
	ReportType   string    `gorm:"size:64;not null" json:"report_type"`
	Format       string    `gorm:"size:16;not null" json:"format"`
	DownloadURL  string    `gorm:"size:512" json:"download_url"`
	RequestedBy  *uint     `json:"requested_by"`
	EmailedTo    string    `gorm:"type:text" json:"emailed_to"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
