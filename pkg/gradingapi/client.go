package gradingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	backendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gradeflow",
		Subsystem: "backend",
		Name:      "request_duration_seconds",
		Help:      "Duration of grading backend requests",
	}, []string{"operation"})

	backendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradeflow",
		Subsystem: "backend",
		Name:      "request_failures_total",
		Help:      "Number of failed grading backend requests",
	}, []string{"operation"})
)

var (
	// ErrSubmissionNotFound indicates the backend does not know the submission id.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrGradingItemNotFound indicates the grading item does not exist.
	ErrGradingItemNotFound = errors.New("grading item not found")
	// ErrAssessmentNotFound indicates the assessment does not exist.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrInvalidStatusPayload indicates the backend returned a malformed status document.
	ErrInvalidStatusPayload = errors.New("invalid submission status payload")
)

// ProgressFunc receives upload progress as an integer percentage 0-100.
type ProgressFunc func(percent int)

// Config defines configuration options for the grading backend client.
type Config struct {
	BaseURL string
	// APIToken is forwarded as a bearer token when set.
	APIToken string
	Timeout  time.Duration
	// StrictPayloads enables JSON Schema validation of status responses.
	// Meant for development; malformed payloads fail the call instead of
	// being logged and passed through.
	StrictPayloads bool
	Logger         zerolog.Logger
}

// Client talks to the grading/OCR backend over its REST contract.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	strict  bool
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// New builds a grading backend client from the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("grading backend base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIToken,
		http:    &http.Client{Timeout: timeout},
		strict:  cfg.StrictPayloads,
		logger:  logger.With().Str("component", "gradingapi_client").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"),
	}, nil
}

// SubmissionStatus fetches the current processing status of one submission.
func (c *Client) SubmissionStatus(ctx context.Context, submissionID int64) (SubmissionStatusResponse, error) {
	ctx, span := c.tracer.Start(ctx, "gradingapi.submission_status", trace.WithAttributes(
		attribute.Int64("submission.id", submissionID),
	))
	defer span.End()

	var response SubmissionStatusResponse
	body, err := c.get(ctx, "submission_status", fmt.Sprintf("/submissions/%d/status", submissionID), ErrSubmissionNotFound)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status_fetch_failed")
		return SubmissionStatusResponse{}, err
	}

	if err := c.decodeStatusPayload(body, &response); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status_decode_failed")
		return SubmissionStatusResponse{}, err
	}

	span.SetAttributes(attribute.String("submission.status", string(response.Status)))
	return response, nil
}

// UploadSubmission posts one file to a grading item as a multipart request.
// The progress callback, when non-nil, is invoked with 0-100 percentages as
// the request body is consumed by the transport.
func (c *Client) UploadSubmission(ctx context.Context, itemID int64, fileName string, file io.Reader, sourceType string, studentID int64, progress ProgressFunc) (UploadResponse, error) {
	ctx, span := c.tracer.Start(ctx, "gradingapi.upload_submission", trace.WithAttributes(
		attribute.Int64("grading_item.id", itemID),
		attribute.String("upload.file_name", fileName),
	))
	defer span.End()

	buf := bytes.NewBuffer(nil)
	writer := multipart.NewWriter(buf)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return UploadResponse{}, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return UploadResponse{}, fmt.Errorf("failed to read upload file: %w", err)
	}
	if err := writer.WriteField("source_type", sourceType); err != nil {
		return UploadResponse{}, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := writer.WriteField("student_id", strconv.FormatInt(studentID, 10)); err != nil {
		return UploadResponse{}, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResponse{}, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	total := int64(buf.Len())
	var body io.Reader = buf
	if progress != nil {
		body = &progressReader{reader: buf, total: total, report: progress}
	}

	url := fmt.Sprintf("%s/grading-items/%d/submissions", c.baseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return UploadResponse{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.ContentLength = total
	c.authorize(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	backendDuration.WithLabelValues("upload_submission").Observe(time.Since(start).Seconds())
	if err != nil {
		backendFailures.WithLabelValues("upload_submission").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload_failed")
		return UploadResponse{}, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResponse{}, fmt.Errorf("failed to read upload response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		backendFailures.WithLabelValues("upload_submission").Inc()
		return UploadResponse{}, ErrGradingItemNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		backendFailures.WithLabelValues("upload_submission").Inc()
		return UploadResponse{}, fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var response UploadResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return UploadResponse{}, fmt.Errorf("failed to decode upload response: %w", err)
	}

	if progress != nil {
		progress(100)
	}

	span.SetAttributes(attribute.Int64("submission.id", response.SubmissionID))
	return response, nil
}

// ListGradingItems pages through gradable items.
func (c *Client) ListGradingItems(ctx context.Context, skip, limit int, itemType string) (GradingItemsPage, error) {
	path := fmt.Sprintf("/grading-items?skip=%d&limit=%d", skip, limit)
	if itemType != "" {
		path += "&item_type=" + itemType
	}

	body, err := c.get(ctx, "list_grading_items", path, ErrGradingItemNotFound)
	if err != nil {
		return GradingItemsPage{}, err
	}

	var page GradingItemsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return GradingItemsPage{}, fmt.Errorf("failed to decode grading items page: %w", err)
	}
	return page, nil
}

// Assessment fetches an assessment together with its embedded submissions.
func (c *Client) Assessment(ctx context.Context, assessmentID int64) (Assessment, error) {
	body, err := c.get(ctx, "assessment", fmt.Sprintf("/assessments/%d", assessmentID), ErrAssessmentNotFound)
	if err != nil {
		return Assessment{}, err
	}

	var assessment Assessment
	if err := json.Unmarshal(body, &assessment); err != nil {
		return Assessment{}, fmt.Errorf("failed to decode assessment: %w", err)
	}
	return assessment, nil
}

// GenerateReport asks the backend to render a report for an assessment.
func (c *Client) GenerateReport(ctx context.Context, payload GenerateReportRequest) (ReportResponse, error) {
	body, err := c.post(ctx, "generate_report", "/reports/generate", payload)
	if err != nil {
		return ReportResponse{}, err
	}

	var response ReportResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return ReportResponse{}, fmt.Errorf("failed to decode report response: %w", err)
	}
	return response, nil
}

// EmailReport asks the backend to deliver a generated report by email.
func (c *Client) EmailReport(ctx context.Context, payload EmailReportRequest) error {
	_, err := c.post(ctx, "email_report", "/reports/email", payload)
	return err
}

// ReportHistory lists previously generated reports.
func (c *Client) ReportHistory(ctx context.Context) ([]ReportHistoryEntry, error) {
	body, err := c.get(ctx, "report_history", "/reports/history", nil)
	if err != nil {
		return nil, err
	}

	var entries []ReportHistoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode report history: %w", err)
	}
	return entries, nil
}

func (c *Client) get(ctx context.Context, operation, path string, notFound error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	return c.do(operation, req, notFound)
}

func (c *Client) post(ctx context.Context, operation, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	return c.do(operation, req, nil)
}

func (c *Client) do(operation string, req *http.Request, notFound error) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	backendDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		backendFailures.WithLabelValues(operation).Inc()
		return nil, fmt.Errorf("grading backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && notFound != nil:
		backendFailures.WithLabelValues(operation).Inc()
		return nil, notFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		backendFailures.WithLabelValues(operation).Inc()
		return nil, fmt.Errorf("grading backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) decodeStatusPayload(body []byte, out *SubmissionStatusResponse) error {
	if err := validateStatusDocument(body, c.strict, c.logger); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode submission status: %w", err)
	}

	if !out.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStatusPayload, out.Status)
	}

	// A submission cannot hold a grading result and be failed at once.
	if out.Status == StatusFailed && out.GradingResult != nil {
		if c.strict {
			return fmt.Errorf("%w: failed submission carries a grading result", ErrInvalidStatusPayload)
		}
		c.logger.Warn().
			Int64("submission_id", out.SubmissionID).
			Msg("failed submission carried a grading result, dropping result")
		out.GradingResult = nil
	}

	return nil
}

// progressReader reports consumption of the request body as a percentage.
type progressReader struct {
	reader io.Reader
	total  int64
	read   int64
	last   int
	report ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 && r.total > 0 {
		r.read += int64(n)
		percent := int(r.read * 100 / r.total)
		if percent > 100 {
			percent = 100
		}
		if percent > r.last {
			r.last = percent
			r.report(percent)
		}
	}
	return n, err
}
