package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeflow-go-api/internal/service"
	"github.com/noah-isme/gradeflow-go-api/internal/utils"
)

// GradingItemsHandler lists gradable items from the backend.
type GradingItemsHandler struct {
	service service.GradingItemsService
	logger  zerolog.Logger
}

// NewGradingItemsHandler constructs a grading items handler.
func NewGradingItemsHandler(service service.GradingItemsService, logger zerolog.Logger) *GradingItemsHandler {
	return &GradingItemsHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_items_handler").Logger(),
	}
}

// Register binds grading item routes under the provided router group.
func (h *GradingItemsHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *GradingItemsHandler) list(c *fiber.Ctx) error {
	skip, err := parseQueryInt(c, "skip")
	if err != nil || skip < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid skip")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	if limit == 0 {
		limit = 20
	}

	itemType := strings.TrimSpace(c.Query("item_type"))
	switch itemType {
	case "", "manual", "ai":
	default:
		return utils.SendError(c, fiber.StatusBadRequest, "invalid item_type")
	}

	page, err := h.service.List(c.Context(), skip, limit, itemType)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list grading items")
		return utils.SendError(c, fiber.StatusBadGateway, "failed to list grading items")
	}

	return utils.SendSuccess(c, "grading items", page)
}
