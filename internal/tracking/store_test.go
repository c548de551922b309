package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

func TestStoreApplyAndSnapshot(t *testing.T) {
	store := NewStore()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	store.Apply(gradingapi.SubmissionStatusResponse{SubmissionID: 1, Status: gradingapi.StatusProcessing})
	store.Apply(gradingapi.SubmissionStatusResponse{SubmissionID: 2, Status: gradingapi.StatusCompleted})

	snapshot := store.Snapshot([]int64{1, 2, 3})
	require.Len(t, snapshot, 2)
	require.Equal(t, gradingapi.StatusProcessing, snapshot[1].Status.Status)
	require.Equal(t, fixed, snapshot[1].LastUpdated)
	_, tracked := snapshot[3]
	require.False(t, tracked, "untracked ids must be absent from the snapshot")
}

func TestStoreApplyOverwritesPreviousEntry(t *testing.T) {
	store := NewStore()
	store.Apply(gradingapi.SubmissionStatusResponse{SubmissionID: 5, Status: gradingapi.StatusPending})
	store.Apply(gradingapi.SubmissionStatusResponse{SubmissionID: 5, Status: gradingapi.StatusCompleted})

	entry, ok := store.Get(5)
	require.True(t, ok)
	require.Equal(t, gradingapi.StatusCompleted, entry.Status.Status)
	require.Equal(t, 1, store.Len())
}

func TestStoreReset(t *testing.T) {
	store := NewStore()
	store.Apply(gradingapi.SubmissionStatusResponse{SubmissionID: 1, Status: gradingapi.StatusPending})
	store.Reset()
	require.Equal(t, 0, store.Len())
}
