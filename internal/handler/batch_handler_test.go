package handler_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradeflow-go-api/internal/dto"
	"github.com/noah-isme/gradeflow-go-api/internal/handler"
	"github.com/noah-isme/gradeflow-go-api/internal/service"
	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

type mockBatchService struct {
	lastPayload   dto.BatchCreateRequest
	lastFileCount int
	startErr      error
	batch         dto.BatchResponse
	progress      dto.BatchProgressResponse
	getErr        error
	status        gradingapi.SubmissionStatusResponse
	statusErr     error
}

func (m *mockBatchService) StartBatch(_ context.Context, payload dto.BatchCreateRequest, files []*multipart.FileHeader) (dto.BatchResponse, error) {
	m.lastPayload = payload
	m.lastFileCount = len(files)
	if m.startErr != nil {
		return dto.BatchResponse{}, m.startErr
	}
	return m.batch, nil
}

func (m *mockBatchService) Batch(string) (dto.BatchResponse, error) {
	if m.getErr != nil {
		return dto.BatchResponse{}, m.getErr
	}
	return m.batch, nil
}

func (m *mockBatchService) Progress(string) (dto.BatchProgressResponse, error) {
	if m.getErr != nil {
		return dto.BatchProgressResponse{}, m.getErr
	}
	return m.progress, nil
}

func (m *mockBatchService) Subscribe(string) (<-chan dto.BatchProgressResponse, func(), error) {
	ch := make(chan dto.BatchProgressResponse)
	close(ch)
	return ch, func() {}, nil
}

func (m *mockBatchService) SubmissionStatus(context.Context, int64) (gradingapi.SubmissionStatusResponse, error) {
	if m.statusErr != nil {
		return gradingapi.SubmissionStatusResponse{}, m.statusErr
	}
	return m.status, nil
}

func (m *mockBatchService) Shutdown() {}

func newBatchApp(svc service.BatchUploadService) *fiber.App {
	app := fiber.New()
	handler.NewBatchHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/batches"))
	return app
}

func multipartBody(t *testing.T, fields map[string]string, fileNames ...string) (*bytes.Buffer, string) {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	writer := multipart.NewWriter(buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, name := range fileNames {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4\n"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestBatchHandler_CreateSuccess(t *testing.T) {
	svc := &mockBatchService{batch: dto.BatchResponse{ID: "batch-1", IsActive: true}}
	app := newBatchApp(svc)

	body, contentType := multipartBody(t, map[string]string{
		"grading_item_id": "7",
		"source_type":     "scan",
		"student_ids":     "11, 12",
	}, "a.pdf", "b.pdf")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var response struct {
		Success bool              `json:"success"`
		Data    dto.BatchResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, "batch-1", response.Data.ID)

	require.Equal(t, int64(7), svc.lastPayload.GradingItemID)
	require.Equal(t, []int64{11, 12}, svc.lastPayload.StudentIDs)
	require.Equal(t, 2, svc.lastFileCount)
}

func TestBatchHandler_CreateRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		files  []string
	}{
		{
			name:   "missing files",
			fields: map[string]string{"grading_item_id": "7", "source_type": "scan", "student_ids": "1"},
		},
		{
			name:   "bad grading item id",
			fields: map[string]string{"grading_item_id": "zero", "source_type": "scan", "student_ids": "1"},
			files:  []string{"a.pdf"},
		},
		{
			name:   "bad student ids",
			fields: map[string]string{"grading_item_id": "7", "source_type": "scan", "student_ids": "1,-2"},
			files:  []string{"a.pdf"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockBatchService{}
			app := newBatchApp(svc)

			body, contentType := multipartBody(t, tc.fields, tc.files...)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", body)
			req.Header.Set("Content-Type", contentType)

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			require.Zero(t, svc.lastFileCount, "invalid requests never reach the service")
		})
	}
}

func TestBatchHandler_CreateFileCountMismatch(t *testing.T) {
	svc := &mockBatchService{startErr: service.ErrFileCountMismatch}
	app := newBatchApp(svc)

	body, contentType := multipartBody(t, map[string]string{
		"grading_item_id": "7",
		"source_type":     "scan",
		"student_ids":     "1,2,3",
	}, "a.pdf")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestBatchHandler_GetNotFound(t *testing.T) {
	svc := &mockBatchService{getErr: service.ErrBatchNotFound}
	app := newBatchApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/batches/nope", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestBatchHandler_Progress(t *testing.T) {
	svc := &mockBatchService{progress: dto.BatchProgressResponse{BatchID: "batch-1", Total: 4, Completed: 2, OverallProgress: 50}}
	app := newBatchApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/batches/batch-1/progress", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data dto.BatchProgressResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, 50, response.Data.OverallProgress)
	require.Equal(t, 4, response.Data.Total)
}
