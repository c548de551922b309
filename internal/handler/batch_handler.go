package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeflow-go-api/internal/dto"
	"github.com/noah-isme/gradeflow-go-api/internal/middleware"
	"github.com/noah-isme/gradeflow-go-api/internal/service"
	"github.com/noah-isme/gradeflow-go-api/internal/utils"
)

// BatchHandler exposes upload batch creation, inspection and the progress
// stream websocket.
type BatchHandler struct {
	service service.BatchUploadService
	logger  zerolog.Logger
}

// NewBatchHandler constructs a batch handler.
func NewBatchHandler(service service.BatchUploadService, logger zerolog.Logger) *BatchHandler {
	return &BatchHandler{
		service: service,
		logger:  logger.With().Str("component", "batch_handler").Logger(),
	}
}

// Register binds batch routes under the provided router group.
func (h *BatchHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Get("/:id/progress", h.progress)

	router.Use("/:id/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("correlation_id", middleware.GetCorrelationID(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/:id/stream", websocket.New(h.stream))
}

func (h *BatchHandler) create(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form required")
	}

	files := form.File["files"]
	if len(files) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "at least one file is required")
	}

	gradingItemID, err := strconv.ParseInt(strings.TrimSpace(c.FormValue("grading_item_id")), 10, 64)
	if err != nil || gradingItemID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid grading_item_id")
	}

	studentIDs, err := parseStudentIDs(form.Value["student_ids"])
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.BatchCreateRequest{
		GradingItemID: gradingItemID,
		SourceType:    strings.TrimSpace(c.FormValue("source_type")),
		StudentIDs:    studentIDs,
	}

	batch, err := h.service.StartBatch(c.Context(), payload, files)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileCountMismatch), isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to start upload batch")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to start upload batch")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "upload batch started", batch)
}

func (h *BatchHandler) get(c *fiber.Ctx) error {
	batch, err := h.service.Batch(c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "batch not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load batch")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load batch")
	}

	return utils.SendSuccess(c, "batch loaded", batch)
}

func (h *BatchHandler) progress(c *fiber.Ctx) error {
	progress, err := h.service.Progress(c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "batch not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to compute batch progress")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to compute batch progress")
	}

	return utils.SendSuccess(c, "batch progress", progress)
}

// stream pushes progress snapshots over the websocket until the batch
// session ends or the client goes away.
func (h *BatchHandler) stream(conn *websocket.Conn) {
	defer conn.Close()

	batchID := conn.Params("id")
	logger := h.logger.With().Str("batch_id", batchID).Logger()
	if correlation, ok := conn.Locals("correlation_id").(string); ok && correlation != "" {
		logger = logger.With().Str("correlation_id", correlation).Logger()
	}

	updates, unsubscribe, err := h.service.Subscribe(batchID)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "batch not found"))
		return
	}
	defer unsubscribe()

	// The read loop only exists to observe the client closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Send the current snapshot first so late subscribers are not blank
	// until the next poll round.
	if progress, err := h.service.Progress(batchID); err == nil {
		if err := conn.WriteJSON(progress); err != nil {
			return
		}
	}

	logger.Info().Msg("progress stream connected")
	defer logger.Info().Msg("progress stream disconnected")

	for {
		select {
		case update, open := <-updates:
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch finished"))
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func parseStudentIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			id, err := strconv.ParseInt(trimmed, 10, 64)
			if err != nil || id <= 0 {
				return nil, errors.New("invalid student_ids")
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("student_ids required")
	}
	return ids, nil
}
