package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeflow-go-api/internal/service"
	"github.com/noah-isme/gradeflow-go-api/internal/utils"
	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

// SubmissionHandler exposes individual submission status lookups.
type SubmissionHandler struct {
	service service.BatchUploadService
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs a submission handler.
func NewSubmissionHandler(service service.BatchUploadService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register binds submission routes under the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("/:id/status", h.status)
}

func (h *SubmissionHandler) status(c *fiber.Ctx) error {
	submissionID, err := parseParamID(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	status, err := h.service.SubmissionStatus(c.Context(), submissionID)
	if err != nil {
		switch {
		case errors.Is(err, gradingapi.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, gradingapi.ErrInvalidStatusPayload):
			requestLogger(h.logger, c).Error().Err(err).Int64("submission_id", submissionID).Msg("backend returned an invalid status payload")
			return utils.SendError(c, fiber.StatusBadGateway, "grading backend returned an invalid payload")
		default:
			requestLogger(h.logger, c).Error().Err(err).Int64("submission_id", submissionID).Msg("failed to fetch submission status")
			return utils.SendError(c, fiber.StatusBadGateway, "failed to fetch submission status")
		}
	}

	return utils.SendSuccess(c, "submission status", status)
}
