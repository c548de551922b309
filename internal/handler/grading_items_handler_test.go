package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradeflow-go-api/internal/handler"
	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

type mockItemsService struct {
	lastSkip  int
	lastLimit int
	lastType  string
	page      gradingapi.GradingItemsPage
}

func (m *mockItemsService) List(_ context.Context, skip, limit int, itemType string) (gradingapi.GradingItemsPage, error) {
	m.lastSkip = skip
	m.lastLimit = limit
	m.lastType = itemType
	return m.page, nil
}

func newItemsApp(svc *mockItemsService) *fiber.App {
	app := fiber.New()
	handler.NewGradingItemsHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/grading-items"))
	return app
}

func TestGradingItemsHandler_List(t *testing.T) {
	svc := &mockItemsService{page: gradingapi.GradingItemsPage{
		Items: []gradingapi.GradingItem{{ID: 1, Title: "Midterm", ItemType: "manual"}},
		Total: 1,
	}}
	app := newItemsApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/grading-items?skip=40&limit=20&item_type=manual", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data gradingapi.GradingItemsPage `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, int64(1), response.Data.Total)

	require.Equal(t, 40, svc.lastSkip)
	require.Equal(t, 20, svc.lastLimit)
	require.Equal(t, "manual", svc.lastType)
}

func TestGradingItemsHandler_DefaultLimit(t *testing.T) {
	svc := &mockItemsService{}
	app := newItemsApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/grading-items", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 20, svc.lastLimit)
}

func TestGradingItemsHandler_InvalidItemType(t *testing.T) {
	app := newItemsApp(&mockItemsService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/grading-items?item_type=essay", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
