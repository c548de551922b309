package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gradeflow-go-api/internal/dto"
	"github.com/noah-isme/gradeflow-go-api/internal/models"
	"github.com/noah-isme/gradeflow-go-api/internal/repository"
	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

// ErrReportNotFound indicates no local history row matches the report id.
var ErrReportNotFound = errors.New("report not found")

// ErrEmptySubject indicates the email subject was empty after sanitization.
var ErrEmptySubject = errors.New("email subject empty after sanitization")

// ReportBackend is the slice of the grading backend the report service needs.
type ReportBackend interface {
	GenerateReport(ctx context.Context, payload gradingapi.GenerateReportRequest) (gradingapi.ReportResponse, error)
	EmailReport(ctx context.Context, payload gradingapi.EmailReportRequest) error
}

// ReportService proxies report generation and delivery to the backend while
// keeping a local history row per generated report.
type ReportService interface {
	Generate(ctx context.Context, payload dto.ReportGenerateRequest, requestedBy *uint) (dto.ReportResponse, error)
	Email(ctx context.Context, payload dto.ReportEmailRequest) error
	History(ctx context.Context, limit, offset int) ([]dto.ReportHistoryItem, error)
}

type reportService struct {
	backend   ReportBackend
	repo      repository.ReportRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewReportService constructs the report service.
func NewReportService(backend ReportBackend, repo repository.ReportRepository, validate *validator.Validate, logger zerolog.Logger) ReportService {
	return &reportService{
		backend:   backend,
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "report_service").Logger(),
	}
}

func (s *reportService) Generate(ctx context.Context, payload dto.ReportGenerateRequest, requestedBy *uint) (dto.ReportResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReportResponse{}, err
	}

	response, err := s.backend.GenerateReport(ctx, gradingapi.GenerateReportRequest{
		AssessmentID: payload.AssessmentID,
		ReportType:   payload.ReportType,
		Format:       payload.Format,
	})
	if err != nil {
		return dto.ReportResponse{}, err
	}

	record := models.ReportRecord{
		BackendID:    response.ReportID,
		AssessmentID: payload.AssessmentID,
		ReportType:   payload.ReportType,
		Format:       payload.Format,
		DownloadURL:  response.DownloadURL,
		RequestedBy:  requestedBy,
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		// The report exists on the backend either way; history is best-effort.
		s.logger.Warn().Err(err).Int64("report_id", response.ReportID).Msg("failed to persist report history")
	}

	s.logger.Info().Int64("report_id", response.ReportID).Int64("assessment_id", payload.AssessmentID).Msg("report generated")

	return dto.ReportResponse{
		ReportID:     response.ReportID,
		AssessmentID: payload.AssessmentID,
		DownloadURL:  response.DownloadURL,
		Status:       response.Status,
	}, nil
}

func (s *reportService) Email(ctx context.Context, payload dto.ReportEmailRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	subject := strings.TrimSpace(s.sanitizer.Sanitize(payload.Subject))
	if subject == "" {
		return ErrEmptySubject
	}
	message := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))

	if err := s.backend.EmailReport(ctx, gradingapi.EmailReportRequest{
		ReportID:   payload.ReportID,
		Recipients: payload.Recipients,
		Subject:    subject,
		Message:    message,
	}); err != nil {
		return err
	}

	record, err := s.repo.GetByBackendID(ctx, payload.ReportID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.Warn().Int64("report_id", payload.ReportID).Msg("emailed report with no local history row")
	case err != nil:
		s.logger.Warn().Err(err).Int64("report_id", payload.ReportID).Msg("failed to load report history")
	default:
		record.EmailedTo = strings.Join(payload.Recipients, ", ")
		if err := s.repo.Update(ctx, &record); err != nil {
			s.logger.Warn().Err(err).Int64("report_id", payload.ReportID).Msg("failed to update report history")
		}
	}

	s.logger.Info().Int64("report_id", payload.ReportID).Int("recipients", len(payload.Recipients)).Msg("report emailed")
	return nil
}

func (s *reportService) History(ctx context.Context, limit, offset int) ([]dto.ReportHistoryItem, error) {
	records, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewReportHistoryItems(records), nil
}
