package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeflow-go-api/internal/models"
	"github.com/noah-isme/gradeflow-go-api/internal/observability"
)

var (
	// ErrBatchNotFound indicates no batch is registered under the given id.
	ErrBatchNotFound = errors.New("upload batch not found")
	// ErrFileIndexOutOfRange indicates the file index does not exist in the batch.
	ErrFileIndexOutOfRange = errors.New("file index out of range")
	// ErrFileAlreadyTerminal indicates the file entry already reached completed or failed.
	ErrFileAlreadyTerminal = errors.New("file entry already terminal")
)

// BatchTracker owns the per-file state of upload batches. It performs no I/O
// itself; the upload runner drives its mutations as requests progress.
type BatchTracker struct {
	mu      sync.RWMutex
	batches map[string]*models.UploadBatch
	logger  zerolog.Logger
	now     func() time.Time
}

// NewBatchTracker constructs an empty tracker.
func NewBatchTracker(logger zerolog.Logger) *BatchTracker {
	return &BatchTracker{
		batches: make(map[string]*models.UploadBatch),
		logger:  logger.With().Str("component", "batch_tracker").Logger(),
		now:     time.Now,
	}
}

// Start registers a new active batch with every file pending at progress 0.
// The file list is fixed for the lifetime of the batch and entries are
// addressed by their index in fileNames.
func (t *BatchTracker) Start(gradingItemID int64, fileNames []string) models.UploadBatch {
	entries := make([]models.UploadFileEntry, len(fileNames))
	for i, name := range fileNames {
		entries[i] = models.UploadFileEntry{
			FileIndex: i,
			FileName:  name,
			Status:    models.FileStatusPending,
		}
	}

	batch := &models.UploadBatch{
		ID:          uuid.NewString(),
		GradingItem: gradingItemID,
		Files:       entries,
		IsActive:    true,
		StartedAt:   t.now(),
	}

	t.mu.Lock()
	t.batches[batch.ID] = batch
	t.mu.Unlock()

	t.logger.Info().Str("batch_id", batch.ID).Int("files", len(fileNames)).Msg("upload batch started")
	return *batch
}

// ReportProgress marks a file uploading and records its progress percentage.
// The caller is responsible for only reporting non-decreasing values; the
// tracker does not clamp.
func (t *BatchTracker) ReportProgress(batchID string, fileIndex, progress int) error {
	return t.mutateFile(batchID, fileIndex, func(entry *models.UploadFileEntry) error {
		if entry.Status.IsTerminal() {
			return ErrFileAlreadyTerminal
		}
		entry.Status = models.FileStatusUploading
		entry.Progress = progress
		return nil
	})
}

// ReportSuccess marks a file completed at 100% and records its submission id.
func (t *BatchTracker) ReportSuccess(batchID string, fileIndex int, submissionID int64) error {
	return t.mutateFile(batchID, fileIndex, func(entry *models.UploadFileEntry) error {
		if entry.Status.IsTerminal() {
			return ErrFileAlreadyTerminal
		}
		entry.Status = models.FileStatusCompleted
		entry.Progress = 100
		entry.SubmissionID = &submissionID
		return nil
	})
}

// ReportFailure marks a file failed with the given message. Progress stays at
// its last reported value.
func (t *BatchTracker) ReportFailure(batchID string, fileIndex int, uploadErr error) error {
	return t.mutateFile(batchID, fileIndex, func(entry *models.UploadFileEntry) error {
		if entry.Status.IsTerminal() {
			return ErrFileAlreadyTerminal
		}
		entry.Status = models.FileStatusFailed
		if uploadErr != nil {
			entry.Error = uploadErr.Error()
		}
		return nil
	})
}

// Complete deactivates the batch and stamps CompletedAt, regardless of
// whether every file individually succeeded.
func (t *BatchTracker) Complete(batchID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	batch, ok := t.batches[batchID]
	if !ok {
		return ErrBatchNotFound
	}

	if batch.IsActive {
		batch.IsActive = false
		completedAt := t.now()
		batch.CompletedAt = &completedAt
		observability.BatchesCompleted().Inc()
		t.logger.Info().Str("batch_id", batchID).Msg("upload batch completed")
	}
	return nil
}

// Get returns a copy of the batch state.
func (t *BatchTracker) Get(batchID string) (models.UploadBatch, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	batch, ok := t.batches[batchID]
	if !ok {
		return models.UploadBatch{}, ErrBatchNotFound
	}
	return copyBatch(batch), nil
}

// Remove drops a batch, typically after the owning view cleared it.
func (t *BatchTracker) Remove(batchID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.batches, batchID)
}

func (t *BatchTracker) mutateFile(batchID string, fileIndex int, mutate func(*models.UploadFileEntry) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	batch, ok := t.batches[batchID]
	if !ok {
		return ErrBatchNotFound
	}
	if fileIndex < 0 || fileIndex >= len(batch.Files) {
		return ErrFileIndexOutOfRange
	}
	return mutate(&batch.Files[fileIndex])
}

func copyBatch(batch *models.UploadBatch) models.UploadBatch {
	copied := *batch
	copied.Files = append([]models.UploadFileEntry(nil), batch.Files...)
	return copied
}
