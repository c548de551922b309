package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradeflow-go-api/internal/dto"
	"github.com/noah-isme/gradeflow-go-api/internal/events"
	"github.com/noah-isme/gradeflow-go-api/internal/models"
	"github.com/noah-isme/gradeflow-go-api/internal/tracking"
	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

type namedFile struct {
	name string
	data []byte
}

func makeFileHeaders(t *testing.T, files []namedFile) []*multipart.FileHeader {
	t.Helper()

	buf := bytes.NewBuffer(nil)
	writer := multipart.NewWriter(buf)
	for _, file := range files {
		part, err := writer.CreateFormFile("files", file.name)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(buf, writer.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["files"]
}

// fakeUploader assigns submission ids in call order and fails configured names.
type fakeUploader struct {
	mu       sync.Mutex
	nextID   int64
	failing  map[string]error
	uploaded []string
}

func (f *fakeUploader) UploadSubmission(ctx context.Context, itemID int64, fileName string, file io.Reader, sourceType string, studentID int64, progress gradingapi.ProgressFunc) (gradingapi.UploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failing[fileName]; ok {
		return gradingapi.UploadResponse{}, err
	}

	if progress != nil {
		progress(50)
		progress(100)
	}

	f.nextID++
	f.uploaded = append(f.uploaded, fileName)
	return gradingapi.UploadResponse{SubmissionID: f.nextID, Status: "pending", Message: "queued"}, nil
}

func (f *fakeUploader) uploadedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploaded...)
}

func newBatchService(t *testing.T, uploader SubmissionUploader, fetcher StatusFetcher) (BatchUploadService, *BatchTracker, *tracking.Store) {
	t.Helper()

	tracker := NewBatchTracker(testLogger())
	store := tracking.NewStore()
	validate := validator.New(validator.WithRequiredStructEnabled())
	publisher := events.NewPublisher(nil, "", testLogger())

	svc := NewBatchUploadService(tracker, store, uploader, fetcher, validate, publisher, BatchUploadConfig{
		MaxFileSizeMB:     1,
		UploadConcurrency: 1,
		Poller: PollerConfig{
			Interval:    time.Millisecond,
			MaxAttempts: 20,
			Concurrency: 4,
		},
	}, testLogger())
	t.Cleanup(svc.Shutdown)

	return svc, tracker, store
}

func TestBatchUploadPartialFailureStillCompletes(t *testing.T) {
	uploader := &fakeUploader{failing: map[string]error{"b.pdf": errors.New("connection reset")}}
	fetcher := newScriptedFetcher()
	fetcher.scripts[1] = []gradingapi.SubmissionStatus{gradingapi.StatusProcessing, gradingapi.StatusCompleted}
	fetcher.scripts[2] = []gradingapi.SubmissionStatus{gradingapi.StatusCompleted}

	svc, tracker, _ := newBatchService(t, uploader, fetcher)

	headers := makeFileHeaders(t, []namedFile{
		{name: "a.pdf", data: pdfBytes},
		{name: "b.pdf", data: pdfBytes},
		{name: "c.pdf", data: pdfBytes},
	})

	batch, err := svc.StartBatch(context.Background(), dto.BatchCreateRequest{
		GradingItemID: 7,
		SourceType:    "scan",
		StudentIDs:    []int64{11, 12, 13},
	}, headers)
	require.NoError(t, err)
	require.True(t, batch.IsActive)
	require.Len(t, batch.Files, 3)

	require.Eventually(t, func() bool {
		state, err := tracker.Get(batch.ID)
		return err == nil && !state.IsActive && state.AllTerminal()
	}, 2*time.Second, 5*time.Millisecond)

	state, err := tracker.Get(batch.ID)
	require.NoError(t, err)
	require.NotNil(t, state.CompletedAt, "completedAt is stamped even with a failed file")

	require.Equal(t, models.FileStatusCompleted, state.Files[0].Status)
	require.Equal(t, models.FileStatusFailed, state.Files[1].Status)
	require.Equal(t, "connection reset", state.Files[1].Error)
	require.Equal(t, models.FileStatusCompleted, state.Files[2].Status)

	// Sequential uploads preserve index order.
	require.Equal(t, []string{"a.pdf", "c.pdf"}, uploader.uploadedNames())

	require.Eventually(t, func() bool {
		progress, err := svc.Progress(batch.ID)
		return err == nil && progress.OverallProgress == 100
	}, 2*time.Second, 5*time.Millisecond)

	progress, err := svc.Progress(batch.ID)
	require.NoError(t, err)
	require.Equal(t, 2, progress.Total, "only uploaded submissions are polled")
	require.Equal(t, 2, progress.Completed)
}

func TestBatchUploadRejectsDisallowedFileType(t *testing.T) {
	uploader := &fakeUploader{}
	svc, tracker, _ := newBatchService(t, uploader, newScriptedFetcher())

	headers := makeFileHeaders(t, []namedFile{
		{name: "a.pdf", data: pdfBytes},
		{name: "notes.txt", data: []byte("plain text, not a scan")},
	})

	batch, err := svc.StartBatch(context.Background(), dto.BatchCreateRequest{
		GradingItemID: 3,
		SourceType:    "scan",
		StudentIDs:    []int64{1, 2},
	}, headers)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, err := tracker.Get(batch.ID)
		return err == nil && state.AllTerminal()
	}, 2*time.Second, 5*time.Millisecond)

	state, err := tracker.Get(batch.ID)
	require.NoError(t, err)
	require.Equal(t, models.FileStatusFailed, state.Files[1].Status)
	require.Contains(t, state.Files[1].Error, "file type not allowed")
	require.Equal(t, models.FileStatusCompleted, state.Files[0].Status, "rejection does not abort the rest of the batch")
}

func TestBatchUploadValidation(t *testing.T) {
	svc, _, _ := newBatchService(t, &fakeUploader{}, newScriptedFetcher())

	headers := makeFileHeaders(t, []namedFile{{name: "a.pdf", data: pdfBytes}})

	_, err := svc.StartBatch(context.Background(), dto.BatchCreateRequest{
		GradingItemID: 1,
		SourceType:    "scan",
		StudentIDs:    []int64{1, 2},
	}, headers)
	require.ErrorIs(t, err, ErrFileCountMismatch)

	_, err = svc.StartBatch(context.Background(), dto.BatchCreateRequest{
		GradingItemID: 1,
		SourceType:    "carrier-pigeon",
		StudentIDs:    []int64{1},
	}, headers)
	require.Error(t, err)
}

func TestBatchUploadSubscribeStreamsProgress(t *testing.T) {
	uploader := &fakeUploader{}
	fetcher := newScriptedFetcher()
	fetcher.scripts[1] = []gradingapi.SubmissionStatus{gradingapi.StatusProcessing, gradingapi.StatusCompleted}

	svc, _, _ := newBatchService(t, uploader, fetcher)

	headers := makeFileHeaders(t, []namedFile{{name: "a.pdf", data: pdfBytes}})
	batch, err := svc.StartBatch(context.Background(), dto.BatchCreateRequest{
		GradingItemID: 5,
		SourceType:    "scan",
		StudentIDs:    []int64{1},
	}, headers)
	require.NoError(t, err)

	updates, unsubscribe, err := svc.Subscribe(batch.ID)
	require.NoError(t, err)
	defer unsubscribe()

	var last dto.BatchProgressResponse
	deadline := time.After(2 * time.Second)
stream:
	for {
		select {
		case update, open := <-updates:
			if !open {
				// The session may finish before we subscribe; the final
				// snapshot is still served below.
				break stream
			}
			if last.Total > 0 && update.Total == last.Total {
				require.GreaterOrEqual(t, update.OverallProgress, last.OverallProgress, "progress must not regress")
			}
			last = update
			if update.Total > 0 && update.OverallProgress == 100 {
				break stream
			}
		case <-deadline:
			t.Fatal("timed out waiting for progress updates")
		}
	}

	require.Eventually(t, func() bool {
		progress, err := svc.Progress(batch.ID)
		return err == nil && progress.Total == 1 && progress.OverallProgress == 100
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSubmissionStatusUsesStoreThenLiveFetch(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.scripts[42] = []gradingapi.SubmissionStatus{gradingapi.StatusProcessing}

	svc, _, store := newBatchService(t, &fakeUploader{}, fetcher)

	status, err := svc.SubmissionStatus(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, gradingapi.StatusProcessing, status.Status)
	require.Equal(t, 1, fetcher.callCount(42))

	// Second read is served from the tracking store.
	_, err = svc.SubmissionStatus(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.callCount(42))

	_, ok := store.Get(42)
	require.True(t, ok)
}
