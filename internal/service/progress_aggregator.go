package service

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeflow-go-api/internal/tracking"
	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

// ProgressStats are the counts derived from the tracking snapshot for a set
// of submission ids. Ids with no tracking entry yet count as pending.
type ProgressStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// OverallProgress is the percentage of submissions that reached a terminal
// status. Returns 0 when nothing is tracked.
func (s ProgressStats) OverallProgress() int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.Completed+s.Failed) / float64(s.Total)))
}

// ProcessingProgress is the percentage of submissions that at least started
// processing. Returns 0 when nothing is tracked.
func (s ProgressStats) ProcessingProgress() int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.Processing+s.Completed+s.Failed) / float64(s.Total)))
}

// CompletionFunc receives the final status of every tracked id when the whole
// set becomes terminal.
type CompletionFunc func(final map[int64]gradingapi.SubmissionStatus)

// ProgressAggregator derives progress counts for a tracked id set and fires a
// completion callback exactly once per contiguous terminal period. The latch
// is an explicit state field transitioned on every recomputation, so it is
// robust to out-of-order status arrivals and re-arms when new non-terminal
// ids join the set.
type ProgressAggregator struct {
	mu         sync.Mutex
	store      *tracking.Store
	ids        []int64
	notified   bool
	onComplete CompletionFunc
	logger     zerolog.Logger
}

// NewProgressAggregator builds an aggregator over the given tracking store.
func NewProgressAggregator(store *tracking.Store, logger zerolog.Logger) *ProgressAggregator {
	return &ProgressAggregator{
		store:  store,
		logger: logger.With().Str("component", "progress_aggregator").Logger(),
	}
}

// OnComplete registers the completion callback.
func (a *ProgressAggregator) OnComplete(fn CompletionFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onComplete = fn
}

// Track adds submission ids to the tracked set, ignoring duplicates.
func (a *ProgressAggregator) Track(ids ...int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[int64]struct{}, len(a.ids))
	for _, id := range a.ids {
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		a.ids = append(a.ids, id)
	}
}

// Reset clears the tracked set and re-arms the completion latch.
func (a *ProgressAggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = nil
	a.notified = false
}

// Recompute derives fresh counts from the full current tracking snapshot and
// transitions the completion latch. It never works from deltas.
func (a *ProgressAggregator) Recompute() ProgressStats {
	a.mu.Lock()
	ids := append([]int64(nil), a.ids...)
	a.mu.Unlock()

	snapshot := a.store.Snapshot(ids)

	stats := ProgressStats{Total: len(ids)}
	final := make(map[int64]gradingapi.SubmissionStatus, len(ids))
	for _, id := range ids {
		entry, tracked := snapshot[id]
		if !tracked {
			stats.Pending++
			continue
		}

		final[id] = entry.Status.Status
		switch entry.Status.Status {
		case gradingapi.StatusProcessing:
			stats.Processing++
		case gradingapi.StatusCompleted:
			stats.Completed++
		case gradingapi.StatusFailed:
			stats.Failed++
		default:
			stats.Pending++
		}
	}

	allTerminal := stats.Total > 0 && stats.Completed+stats.Failed == stats.Total

	a.mu.Lock()
	var notify CompletionFunc
	switch {
	case allTerminal && !a.notified:
		a.notified = true
		notify = a.onComplete
	case !allTerminal && a.notified:
		// The set regressed to a non-terminal condition, re-arm the latch.
		a.notified = false
	}
	a.mu.Unlock()

	if notify != nil {
		a.logger.Info().Int("total", stats.Total).Int("failed", stats.Failed).Msg("all tracked submissions terminal")
		notify(final)
	}

	return stats
}
