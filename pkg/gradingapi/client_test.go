package gradingapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, strict bool) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		BaseURL:        server.URL,
		StrictPayloads: strict,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)
	return client, server
}

func TestSubmissionStatusCompleted(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/submissions/42/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"submission_id": 42,
			"status": "completed",
			"ocr_confidence": 0.93,
			"grading_result": {"total_score": 87, "max_score": 100, "percentage": 87, "feedback": "solid"}
		}`))
	}), true)

	status, err := client.SubmissionStatus(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), status.SubmissionID)
	require.Equal(t, StatusCompleted, status.Status)
	require.NotNil(t, status.OCRConfidence)
	require.InDelta(t, 0.93, *status.OCRConfidence, 1e-9)
	require.NotNil(t, status.GradingResult)
	require.InDelta(t, 87.0, status.GradingResult.Percentage, 1e-9)
}

func TestSubmissionStatusNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}), false)

	_, err := client.SubmissionStatus(context.Background(), 7)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmissionStatusStrictRejectsMalformedPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"submission_id": 5, "status": "exploded"}`))
	}), true)

	_, err := client.SubmissionStatus(context.Background(), 5)
	require.ErrorIs(t, err, ErrInvalidStatusPayload)
}

func TestSubmissionStatusFailedDropsResultWhenLenient(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"submission_id": 9,
			"status": "failed",
			"error_message": "ocr timeout",
			"grading_result": {"total_score": 1, "max_score": 10, "percentage": 10}
		}`))
	}), false)

	status, err := client.SubmissionStatus(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, status.Status)
	require.Nil(t, status.GradingResult, "failed submissions must not carry a result")
	require.NotNil(t, status.ErrorMessage)
}

func TestUploadSubmissionReportsProgress(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/grading-items/3/submissions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "scan", r.FormValue("source_type"))
		require.Equal(t, "15", r.FormValue("student_id"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "essay.pdf", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"submission_id": 77, "message": "queued", "status": "pending"}`))
	}), false)

	var percents []int
	response, err := client.UploadSubmission(
		context.Background(), 3, "essay.pdf",
		strings.NewReader(strings.Repeat("x", 4096)),
		"scan", 15,
		func(p int) { percents = append(percents, p) },
	)
	require.NoError(t, err)
	require.Equal(t, int64(77), response.SubmissionID)

	require.NotEmpty(t, percents)
	require.Equal(t, 100, percents[len(percents)-1])
	for i := 1; i < len(percents); i++ {
		require.GreaterOrEqual(t, percents[i], percents[i-1], "progress must not decrease")
	}
}

func TestListGradingItems(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/grading-items", r.URL.Path)
		require.Equal(t, "10", r.URL.Query().Get("skip"))
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		require.Equal(t, "ai_exam", r.URL.Query().Get("item_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [{"id": 1, "title": "Midterm", "item_type": "ai_exam", "max_score": 100}], "total": 1, "manual_assessments_count": 0, "ai_exams_count": 1}`))
	}), false)

	page, err := client.ListGradingItems(context.Background(), 10, 5, "ai_exam")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, int64(1), page.AIExamsCount)
}

func TestGenerateReport(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/reports/generate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"report_id": 12, "download_url": "https://backend.example.com/r/12.pdf", "status": "ready"}`))
	}), false)

	report, err := client.GenerateReport(context.Background(), GenerateReportRequest{AssessmentID: 4, ReportType: "summary", Format: "pdf"})
	require.NoError(t, err)
	require.Equal(t, int64(12), report.ReportID)
}
