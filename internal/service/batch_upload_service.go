package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gradeflow-go-api/internal/dto"
	"github.com/noah-isme/gradeflow-go-api/internal/events"
	"github.com/noah-isme/gradeflow-go-api/internal/models"
	"github.com/noah-isme/gradeflow-go-api/internal/observability"
	"github.com/noah-isme/gradeflow-go-api/internal/tracking"
	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

var (
	// ErrFileCountMismatch indicates the file and student id counts differ.
	ErrFileCountMismatch = errors.New("file count must match student id count")
	// ErrUploadTooLarge indicates a file exceeded the configured size limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the detected MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

const progressBufferSize = 16

// SubmissionUploader posts one file to the grading backend.
type SubmissionUploader interface {
	UploadSubmission(ctx context.Context, itemID int64, fileName string, file io.Reader, sourceType string, studentID int64, progress gradingapi.ProgressFunc) (gradingapi.UploadResponse, error)
}

// BatchUploadService orchestrates tracked upload batches: it validates and
// uploads files, drives the batch tracker, then polls submission statuses and
// exposes derived progress until everything is terminal.
type BatchUploadService interface {
	StartBatch(ctx context.Context, payload dto.BatchCreateRequest, files []*multipart.FileHeader) (dto.BatchResponse, error)
	Batch(batchID string) (dto.BatchResponse, error)
	Progress(batchID string) (dto.BatchProgressResponse, error)
	Subscribe(batchID string) (<-chan dto.BatchProgressResponse, func(), error)
	SubmissionStatus(ctx context.Context, submissionID int64) (gradingapi.SubmissionStatusResponse, error)
	Shutdown()
}

// BatchUploadConfig tunes upload execution and the follow-up polling session.
type BatchUploadConfig struct {
	MaxFileSizeMB int
	// UploadConcurrency bounds simultaneous file uploads within one batch.
	// The default of 1 keeps uploads sequential in index order.
	UploadConcurrency int
	Poller            PollerConfig
}

type batchSession struct {
	aggregator *ProgressAggregator
	cancel     context.CancelFunc
}

type batchUploadService struct {
	tracker   *BatchTracker
	store     *tracking.Store
	uploader  SubmissionUploader
	fetcher   StatusFetcher
	validator *validator.Validate
	publisher *events.Publisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	cfg       BatchUploadConfig
	maxSize   int64

	mu       sync.Mutex
	sessions map[string]*batchSession

	broker *progressBroker
}

// NewBatchUploadService wires the upload orchestration together.
func NewBatchUploadService(
	tracker *BatchTracker,
	store *tracking.Store,
	uploader SubmissionUploader,
	fetcher StatusFetcher,
	validate *validator.Validate,
	publisher *events.Publisher,
	cfg BatchUploadConfig,
	logger zerolog.Logger,
) BatchUploadService {
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 20
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 1
	}

	return &batchUploadService{
		tracker:   tracker,
		store:     store,
		uploader:  uploader,
		fetcher:   fetcher,
		validator: validate,
		publisher: publisher,
		logger:    logger.With().Str("component", "batch_upload_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gradeflow-go-api/internal/service/batch_upload"),
		cfg:       cfg,
		maxSize:   int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		sessions:  make(map[string]*batchSession),
		broker:    newProgressBroker(),
	}
}

type bufferedFile struct {
	name      string
	data      []byte
	studentID int64
	// rejected carries a validation error discovered before upload; the
	// file still occupies its batch slot and is marked failed.
	rejected error
}

func (s *batchUploadService) StartBatch(ctx context.Context, payload dto.BatchCreateRequest, files []*multipart.FileHeader) (dto.BatchResponse, error) {
	ctx, span := s.tracer.Start(ctx, "batch.start", trace.WithAttributes(
		attribute.Int64("grading_item.id", payload.GradingItemID),
		attribute.Int("batch.file_count", len(files)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.BatchResponse{}, err
	}
	if len(files) == 0 {
		return dto.BatchResponse{}, fmt.Errorf("at least one file is required")
	}
	if len(files) != len(payload.StudentIDs) {
		return dto.BatchResponse{}, ErrFileCountMismatch
	}

	// Buffer every file before the request context goes away; the uploads
	// run in a background session.
	buffered := make([]bufferedFile, len(files))
	names := make([]string, len(files))
	for i, header := range files {
		names[i] = header.Filename
		buffered[i] = s.bufferFile(header, payload.StudentIDs[i])
	}

	batch := s.tracker.Start(payload.GradingItemID, names)
	span.SetAttributes(attribute.String("batch.id", batch.ID))

	sessionCtx, cancel := context.WithCancel(context.Background())
	aggregator := NewProgressAggregator(s.store, s.logger)

	s.mu.Lock()
	s.sessions[batch.ID] = &batchSession{aggregator: aggregator, cancel: cancel}
	s.mu.Unlock()

	go s.run(sessionCtx, batch, payload, buffered, aggregator)

	return dto.NewBatchResponse(batch), nil
}

func (s *batchUploadService) bufferFile(header *multipart.FileHeader, studentID int64) bufferedFile {
	file := bufferedFile{name: header.Filename, studentID: studentID}

	if header.Size > s.maxSize {
		file.rejected = ErrUploadTooLarge
		return file
	}

	handle, err := header.Open()
	if err != nil {
		file.rejected = fmt.Errorf("failed to open file: %w", err)
		return file
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		file.rejected = fmt.Errorf("failed to read file: %w", err)
		return file
	}
	if int64(buf.Len()) > s.maxSize {
		file.rejected = ErrUploadTooLarge
		return file
	}

	mime := mimetype.Detect(buf.Bytes())
	if !isAllowedSubmissionType(mime.String()) {
		file.rejected = fmt.Errorf("%w: %s", ErrUploadTypeNotAllowed, mime.String())
		return file
	}

	file.data = buf.Bytes()
	return file
}

// run executes the uploads, completes the batch, then polls submission
// statuses until terminal. One goroutine per batch session.
func (s *batchUploadService) run(ctx context.Context, batch models.UploadBatch, payload dto.BatchCreateRequest, files []bufferedFile, aggregator *ProgressAggregator) {
	defer s.endSession(batch.ID)

	s.uploadFiles(ctx, batch.ID, payload, files)

	if err := s.tracker.Complete(batch.ID); err != nil {
		s.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to complete batch")
		return
	}
	s.broadcast(batch.ID, aggregator.Recompute())

	completed, err := s.tracker.Get(batch.ID)
	if err != nil {
		return
	}
	ids := completed.SubmissionIDs()
	if len(ids) == 0 {
		s.logger.Warn().Str("batch_id", batch.ID).Msg("no submissions to poll, every upload failed")
		return
	}

	aggregator.Track(ids...)
	aggregator.OnComplete(func(final map[int64]gradingapi.SubmissionStatus) {
		event := events.BatchCompletedEvent{
			BatchID:       batch.ID,
			GradingItemID: batch.GradingItem,
			Final:         make(map[int64]string, len(final)),
			CompletedAt:   time.Now(),
		}
		for id, status := range final {
			event.Final[id] = string(status)
		}
		s.publisher.BatchCompleted(event)
	})

	poller := NewStatusPoller(s.fetcher, s.cfg.Poller, s.logger)
	poller.Poll(ctx, ids, func(status gradingapi.SubmissionStatusResponse) {
		if ctx.Err() != nil {
			return
		}
		s.store.Apply(status)
		s.broadcast(batch.ID, aggregator.Recompute())
	})
}

// uploadFiles drives the tracker through every file slot. Sequential in
// index order unless a higher concurrency cap is configured; either way each
// result lands in its fixed index-addressed slot.
func (s *batchUploadService) uploadFiles(ctx context.Context, batchID string, payload dto.BatchCreateRequest, files []bufferedFile) {
	semaphore := make(chan struct{}, s.cfg.UploadConcurrency)
	var wg sync.WaitGroup

	for index, file := range files {
		if ctx.Err() != nil {
			break
		}

		semaphore <- struct{}{}
		wg.Add(1)
		go func(index int, file bufferedFile) {
			defer wg.Done()
			defer func() { <-semaphore }()
			s.uploadOne(ctx, batchID, index, payload, file)
		}(index, file)
	}

	wg.Wait()
}

func (s *batchUploadService) uploadOne(ctx context.Context, batchID string, index int, payload dto.BatchCreateRequest, file bufferedFile) {
	if file.rejected != nil {
		observability.UploadFiles().WithLabelValues("rejected").Inc()
		_ = s.tracker.ReportFailure(batchID, index, file.rejected)
		return
	}

	start := time.Now()
	_ = s.tracker.ReportProgress(batchID, index, 0)

	response, err := s.uploader.UploadSubmission(
		ctx, payload.GradingItemID, file.name, bytes.NewReader(file.data),
		payload.SourceType, file.studentID,
		func(percent int) {
			_ = s.tracker.ReportProgress(batchID, index, percent)
		},
	)
	observability.UploadLatency().Observe(time.Since(start).Seconds())

	if err != nil {
		observability.UploadFiles().WithLabelValues("failed").Inc()
		s.logger.Warn().Err(err).Str("batch_id", batchID).Int("file_index", index).Msg("file upload failed")
		_ = s.tracker.ReportFailure(batchID, index, err)
		return
	}

	observability.UploadFiles().WithLabelValues("completed").Inc()
	_ = s.tracker.ReportSuccess(batchID, index, response.SubmissionID)
}

func (s *batchUploadService) Batch(batchID string) (dto.BatchResponse, error) {
	batch, err := s.tracker.Get(batchID)
	if err != nil {
		return dto.BatchResponse{}, err
	}
	return dto.NewBatchResponse(batch), nil
}

func (s *batchUploadService) Progress(batchID string) (dto.BatchProgressResponse, error) {
	s.mu.Lock()
	session, ok := s.sessions[batchID]
	s.mu.Unlock()

	if ok {
		return progressResponse(batchID, session.aggregator.Recompute()), nil
	}

	// The session is gone; derive final counts from the batch itself.
	batch, err := s.tracker.Get(batchID)
	if err != nil {
		return dto.BatchProgressResponse{}, err
	}
	aggregator := NewProgressAggregator(s.store, s.logger)
	aggregator.Track(batch.SubmissionIDs()...)
	return progressResponse(batchID, aggregator.Recompute()), nil
}

func (s *batchUploadService) Subscribe(batchID string) (<-chan dto.BatchProgressResponse, func(), error) {
	if _, err := s.tracker.Get(batchID); err != nil {
		return nil, nil, err
	}
	ch, unsubscribe := s.broker.subscribe(batchID)
	return ch, unsubscribe, nil
}

func (s *batchUploadService) SubmissionStatus(ctx context.Context, submissionID int64) (gradingapi.SubmissionStatusResponse, error) {
	if entry, ok := s.store.Get(submissionID); ok {
		return entry.Status, nil
	}

	status, err := s.fetcher.SubmissionStatus(ctx, submissionID)
	if err != nil {
		return gradingapi.SubmissionStatusResponse{}, err
	}
	s.store.Apply(status)
	return status, nil
}

// Shutdown cancels every in-flight batch session.
func (s *batchUploadService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		session.cancel()
	}
}

func (s *batchUploadService) endSession(batchID string) {
	s.mu.Lock()
	session, ok := s.sessions[batchID]
	delete(s.sessions, batchID)
	s.mu.Unlock()

	if ok {
		session.cancel()
	}
	s.broker.close(batchID)
}

func (s *batchUploadService) broadcast(batchID string, stats ProgressStats) {
	s.broker.publish(batchID, progressResponse(batchID, stats))
}

func progressResponse(batchID string, stats ProgressStats) dto.BatchProgressResponse {
	return dto.BatchProgressResponse{
		BatchID:            batchID,
		Total:              stats.Total,
		Pending:            stats.Pending,
		Processing:         stats.Processing,
		Completed:          stats.Completed,
		Failed:             stats.Failed,
		OverallProgress:    stats.OverallProgress(),
		ProcessingProgress: stats.ProcessingProgress(),
	}
}

func isAllowedSubmissionType(mime string) bool {
	lower := strings.ToLower(strings.TrimSpace(mime))
	if strings.HasPrefix(lower, "image/") {
		return true
	}
	switch lower {
	case "application/pdf", "application/zip", "application/x-zip-compressed":
		return true
	default:
		return false
	}
}

// progressBroker fans progress snapshots out to per-batch subscribers.
type progressBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.BatchProgressResponse]struct{}
}

func newProgressBroker() *progressBroker {
	return &progressBroker{
		subscribers: make(map[string]map[chan dto.BatchProgressResponse]struct{}),
	}
}

func (b *progressBroker) subscribe(batchID string) (chan dto.BatchProgressResponse, func()) {
	ch := make(chan dto.BatchProgressResponse, progressBufferSize)

	b.mu.Lock()
	if b.subscribers[batchID] == nil {
		b.subscribers[batchID] = make(map[chan dto.BatchProgressResponse]struct{})
	}
	b.subscribers[batchID][ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if subs, ok := b.subscribers[batchID]; ok {
			if _, present := subs[ch]; present {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.subscribers, batchID)
			}
		}
		b.mu.Unlock()
	}
	return ch, unsubscribe
}

func (b *progressBroker) publish(batchID string, progress dto.BatchProgressResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers[batchID] {
		select {
		case ch <- progress:
		default:
			// Slow subscribers miss intermediate snapshots rather than
			// blocking the polling session.
		}
	}
}

func (b *progressBroker) close(batchID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers[batchID] {
		close(ch)
	}
	delete(b.subscribers, batchID)
}
