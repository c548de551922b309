package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gradeflow-go-api/internal/models"
)

// ReportRepository persists the local history of generated reports.
type ReportRepository interface {
	Create(ctx context.Context, record *models.ReportRecord) error
	GetByBackendID(ctx context.Context, backendID int64) (models.ReportRecord, error)
	Update(ctx context.Context, record *models.ReportRecord) error
	List(ctx context.Context, limit, offset int) ([]models.ReportRecord, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository builds a gorm-backed report repository.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, record *models.ReportRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *reportRepository) GetByBackendID(ctx context.Context, backendID int64) (models.ReportRecord, error) {
	var record models.ReportRecord
	err := r.db.WithContext(ctx).Where("backend_id = ?", backendID).First(&record).Error
	return record, err
}

func (r *reportRepository) Update(ctx context.Context, record *models.ReportRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *reportRepository) List(ctx context.Context, limit, offset int) ([]models.ReportRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var records []models.ReportRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	return records, err
}
