package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bevelworks/cadent/pkg/models"
	"github.com/bevelworks/cadent/pkg/store/file"
)

func saveSchedules(t *testing.T, st *file.Store, count int, mutate func(i int, s *models.Schedule)) {
	t.Helper()

	for i := range count {
		schedule := &models.Schedule{
			ID:      fmt.Sprintf("sched-%03d", i),
			AgentID: "agent-1",
			Name:    fmt.Sprintf("Schedule %03d", i),
			Mode:    models.ScheduleModeRecurring,
			Status:  models.ScheduleStatusActive,
		}

		if mutate != nil {
			mutate(i, schedule)
		}

		require.NoError(t, st.SaveSchedule(t.Context(), schedule))
	}
}

func TestScanner_AdmissionCeiling(t *testing.T) {
	st := file.NewStore(t.TempDir())
	scanner := NewScanner(st, testLogger())

	saveSchedules(t, st, 150, nil)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	due, err := scanner.ScanDue(t.Context(), 100, "", now)
	require.NoError(t, err)
	assert.Len(t, due, 100)

	// Admission is deterministic: the same 100 lowest ids every tick.
	assert.Equal(t, "sched-000", due[0].ID)
	assert.Equal(t, "sched-099", due[99].ID)
}

func TestScanner_DefaultLimit(t *testing.T) {
	st := file.NewStore(t.TempDir())
	scanner := NewScanner(st, testLogger())

	saveSchedules(t, st, 120, nil)

	due, err := scanner.ScanDue(t.Context(), 0, "", time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, due, DefaultMaxSchedules)
}

func TestScanner_AgentFilter(t *testing.T) {
	st := file.NewStore(t.TempDir())
	scanner := NewScanner(st, testLogger())

	saveSchedules(t, st, 4, func(i int, s *models.Schedule) {
		if i%2 == 0 {
			s.AgentID = "agent-2"
		}
	})

	due, err := scanner.ScanDue(t.Context(), 10, "agent-2", time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestScanner_DuePartition(t *testing.T) {
	st := file.NewStore(t.TempDir())
	scanner := NewScanner(st, testLogger())

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)
	stale := now.Add(-30 * time.Hour)

	saveSchedules(t, st, 4, func(i int, s *models.Schedule) {
		switch i {
		case 0:
			// Never run: due.
		case 1:
			s.LastRunAt = &recent // within the default 24h interval: not due
		case 2:
			s.LastRunAt = &stale // interval elapsed: due
		case 3:
			s.Status = models.ScheduleStatusPaused
		}
	})

	due, err := scanner.ScanDue(t.Context(), 10, "", now)
	require.NoError(t, err)

	require.Len(t, due, 2)
	assert.Equal(t, "sched-000", due[0].ID)
	assert.Equal(t, "sched-002", due[1].ID)
}

func TestScanner_OnceSchedules(t *testing.T) {
	st := file.NewStore(t.TempDir())
	scanner := NewScanner(st, testLogger())

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ran := now.Add(-100 * time.Hour)

	saveSchedules(t, st, 2, func(i int, s *models.Schedule) {
		s.Mode = models.ScheduleModeOnce
		if i == 1 {
			s.LastRunAt = &ran
		}
	})

	due, err := scanner.ScanDue(t.Context(), 10, "", now)
	require.NoError(t, err)

	// A once schedule is due only until its first run.
	require.Len(t, due, 1)
	assert.Equal(t, "sched-000", due[0].ID)
}

func TestScanner_CandidatesRecurringOnly(t *testing.T) {
	st := file.NewStore(t.TempDir())
	scanner := NewScanner(st, testLogger())

	saveSchedules(t, st, 3, func(i int, s *models.Schedule) {
		if i == 2 {
			s.Mode = models.ScheduleModeOnce
		}
	})

	candidates, err := scanner.Candidates(t.Context(), 10, "")
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}
