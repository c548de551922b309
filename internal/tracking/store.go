// Package tracking holds the process-wide cache of last known submission
// statuses. It is written by status polling and read by progress aggregation.
package tracking

import (
	"sync"
	"time"

	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

// Entry is the last known backend status for one submission.
type Entry struct {
	Status      gradingapi.SubmissionStatusResponse
	LastUpdated time.Time
}

// Store is a concurrency-safe map of submission id to tracking entry. It has
// an explicit lifecycle: constructed once, reset only via Reset.
type Store struct {
	mu      sync.RWMutex
	entries map[int64]Entry
	now     func() time.Time
}

// NewStore constructs an empty tracking store.
func NewStore() *Store {
	return &Store{
		entries: make(map[int64]Entry),
		now:     time.Now,
	}
}

// Apply records a status snapshot for its submission id.
func (s *Store) Apply(status gradingapi.SubmissionStatusResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[status.SubmissionID] = Entry{Status: status, LastUpdated: s.now()}
}

// Get returns the entry for a submission id, if one exists.
func (s *Store) Get(submissionID int64) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[submissionID]
	return entry, ok
}

// Snapshot returns the entries currently known for the given ids. Ids with
// no entry yet are simply absent from the result.
func (s *Store) Snapshot(ids []int64) map[int64]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[int64]Entry, len(ids))
	for _, id := range ids {
		if entry, ok := s.entries[id]; ok {
			snapshot[id] = entry
		}
	}
	return snapshot
}

// Len returns the number of tracked submissions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reset drops all entries.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[int64]Entry)
}
