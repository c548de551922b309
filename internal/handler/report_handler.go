package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeflow-go-api/internal/dto"
	"github.com/noah-isme/gradeflow-go-api/internal/service"
	"github.com/noah-isme/gradeflow-go-api/internal/utils"
	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

// ReportHandler exposes report generation, email delivery and history.
type ReportHandler struct {
	service service.ReportService
	logger  zerolog.Logger
}

// NewReportHandler constructs a report handler.
func NewReportHandler(service service.ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register binds report routes under the provided router group.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Post("/generate", h.generate)
	router.Post("/email", h.email)
	router.Get("/history", h.history)
}

func (h *ReportHandler) generate(c *fiber.Ctx) error {
	var payload dto.ReportGenerateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Generate(c.Context(), payload, userIDFromContext(c))
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, gradingapi.ErrAssessmentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "assessment not found")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to generate report")
			return utils.SendError(c, fiber.StatusBadGateway, "failed to generate report")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "report generated", response)
}

func (h *ReportHandler) email(c *fiber.Ctx) error {
	var payload dto.ReportEmailRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.Email(c.Context(), payload); err != nil {
		switch {
		case isValidationError(err), errors.Is(err, service.ErrEmptySubject):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to email report")
			return utils.SendError(c, fiber.StatusBadGateway, "failed to email report")
		}
	}

	return utils.SendSuccess(c, "report emailed", nil)
}

func (h *ReportHandler) history(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	offset, err := parseQueryInt(c, "offset")
	if err != nil || offset < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	items, err := h.service.History(c.Context(), limit, offset)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load report history")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load report history")
	}

	return utils.SendSuccess(c, "report history", items)
}
