package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening an existing database is a no-op schema-wise.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestRecordAndListRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	runs := []Run{
		{ID: "a", Scenario: "default", Mode: "build", StartedAt: base, Duration: 90 * time.Second, Status: StatusOK, OutPath: "/nix/store/abc"},
		{ID: "b", Scenario: "netns", Mode: "build", StartedAt: base.Add(time.Minute), Duration: 2 * time.Minute, Status: StatusFailed},
		{ID: "c", Scenario: "default", Mode: "ci", StartedAt: base.Add(2 * time.Minute), Duration: time.Minute, Status: StatusOK},
	}
	for _, r := range runs {
		require.NoError(t, s.RecordRun(ctx, r))
	}

	got, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "a", got[2].ID)

	assert.Equal(t, "default", got[2].Scenario)
	assert.Equal(t, "build", got[2].Mode)
	assert.Equal(t, base, got[2].StartedAt)
	assert.Equal(t, 90*time.Second, got[2].Duration)
	assert.Equal(t, StatusOK, got[2].Status)
	assert.Equal(t, "/nix/store/abc", got[2].OutPath)
	assert.Empty(t, got[1].OutPath)
}

func TestListRunsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordRun(ctx, Run{
			ID:        NewRunID(),
			Scenario:  "default",
			Mode:      "build",
			StartedAt: base.Add(time.Duration(i) * time.Second),
			Duration:  time.Second,
			Status:    StatusOK,
		}))
	}

	got, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRecordRunRejectsUnknownStatus(t *testing.T) {
	s := openTestStore(t)

	err := s.RecordRun(context.Background(), Run{
		ID:        NewRunID(),
		Scenario:  "default",
		Mode:      "build",
		StartedAt: time.Now(),
		Status:    "exploded",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run status")
}

func TestNewRunIDsAreOrderedAndUnique(t *testing.T) {
	a := NewRunID()
	b := NewRunID()

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
