package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeflow-go-api/internal/service"
	"github.com/noah-isme/gradeflow-go-api/internal/utils"
	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

// ScoreStatsHandler serves score distribution analytics per assessment.
type ScoreStatsHandler struct {
	service service.ScoreStatsService
	logger  zerolog.Logger
}

// NewScoreStatsHandler constructs a score stats handler.
func NewScoreStatsHandler(service service.ScoreStatsService, logger zerolog.Logger) *ScoreStatsHandler {
	return &ScoreStatsHandler{
		service: service,
		logger:  logger.With().Str("component", "score_stats_handler").Logger(),
	}
}

// Register binds statistics routes under the provided router group.
func (h *ScoreStatsHandler) Register(router fiber.Router) {
	router.Get("/:id/statistics", h.statistics)
}

func (h *ScoreStatsHandler) statistics(c *fiber.Ctx) error {
	assessmentID, err := parseParamID(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assessment id")
	}

	stats, err := h.service.ForAssessment(c.Context(), assessmentID)
	if err != nil {
		if errors.Is(err, gradingapi.ErrAssessmentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "assessment not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Int64("assessment_id", assessmentID).Msg("failed to compute score statistics")
		return utils.SendError(c, fiber.StatusBadGateway, "failed to compute score statistics")
	}

	return utils.SendSuccess(c, "score statistics", stats)
}
