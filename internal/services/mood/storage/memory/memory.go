// Package memory provides an in-memory mood store with optimistic
// concurrency. It implements the same contracts as the durable stores and
// exists for tests: update transactions read a versioned copy, compute
// outside the lock, and commit only when the version is unchanged, retrying
// on conflict up to a fixed budget. A conflict injection hook lets tests
// force commit collisions deterministically.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/moodtide/moodtide.app/internal/mood"
	"github.com/moodtide/moodtide.app/internal/services/mood/storage"
)

// RetryBudget is the number of commit attempts per update transaction.
// Genuine version races resolve in a handful of attempts; exhausting the
// budget means the caller's contribution is not recorded.
const RetryBudget = 25

// Store is an in-memory implementation of the mood storage contracts.
type Store struct {
	mu                sync.Mutex
	collective        storage.CollectiveMoodState
	collectiveFound   bool
	collectiveVersion uint64
	days              map[string]storage.UserDailyMoodSummary
	streaks           map[string]storage.UserStreakProfile
	userVersions      map[string]uint64
	snapshots         []storage.HistoricalMoodSnapshot
	events            []storage.TelemetryEvent

	forcedConflicts int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		days:         map[string]storage.UserDailyMoodSummary{},
		streaks:      map[string]storage.UserStreakProfile{},
		userVersions: map[string]uint64{},
	}
}

// InjectConflicts forces the next n commit attempts to fail with a version
// conflict, as if a concurrent writer had won the race.
func (s *Store) InjectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedConflicts = n
}

// UpdateCollective applies fn to the collective record under optimistic
// concurrency. Exhausting the retry budget returns ErrTxConflict.
func (s *Store) UpdateCollective(ctx context.Context, fn storage.CollectiveUpdateFn) (storage.CollectiveMoodState, error) {
	if err := ctx.Err(); err != nil {
		return storage.CollectiveMoodState{}, err
	}
	if fn == nil {
		return storage.CollectiveMoodState{}, fmt.Errorf("update function is required")
	}

	for attempt := 0; attempt < RetryBudget; attempt++ {
		s.mu.Lock()
		state := cloneCollective(s.collective)
		found := s.collectiveFound
		version := s.collectiveVersion
		s.mu.Unlock()

		next, err := fn(state, found)
		if err != nil {
			return storage.CollectiveMoodState{}, err
		}
		next.SchemaVersion = storage.SchemaVersion

		s.mu.Lock()
		if s.collectiveVersion != version || s.takeForcedConflict() {
			s.mu.Unlock()
			continue
		}
		s.collective = cloneCollective(next)
		s.collectiveFound = true
		s.collectiveVersion++
		s.mu.Unlock()
		return next, nil
	}
	return storage.CollectiveMoodState{}, storage.ErrTxConflict
}

// GetCollective fetches the collective record.
func (s *Store) GetCollective(ctx context.Context) (storage.CollectiveMoodState, error) {
	if err := ctx.Err(); err != nil {
		return storage.CollectiveMoodState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.collectiveFound {
		return storage.CollectiveMoodState{}, storage.ErrNotFound
	}
	return cloneCollective(s.collective), nil
}

// UpdateUserDay applies fn to a user's daily summary and streak profile
// under optimistic concurrency scoped to that user.
func (s *Store) UpdateUserDay(ctx context.Context, userID string, day string, fn storage.UserDayUpdateFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(day) == "" {
		return fmt.Errorf("day is required")
	}
	if fn == nil {
		return fmt.Errorf("update function is required")
	}

	key := userID + "|" + day
	for attempt := 0; attempt < RetryBudget; attempt++ {
		s.mu.Lock()
		summary, dayFound := s.days[key]
		profile, profileFound := s.streaks[userID]
		version := s.userVersions[userID]
		summary = cloneSummary(summary)
		s.mu.Unlock()

		nextSummary, nextProfile, err := fn(summary, dayFound, profile, profileFound)
		if err != nil {
			return err
		}
		nextSummary.SchemaVersion = storage.SchemaVersion
		nextProfile.SchemaVersion = storage.SchemaVersion

		s.mu.Lock()
		if s.userVersions[userID] != version || s.takeForcedConflict() {
			s.mu.Unlock()
			continue
		}
		s.days[key] = cloneSummary(nextSummary)
		s.streaks[userID] = nextProfile
		s.userVersions[userID] = version + 1
		s.mu.Unlock()
		return nil
	}
	return storage.ErrTxConflict
}

// GetUserDay fetches one user's daily summary record.
func (s *Store) GetUserDay(ctx context.Context, userID string, day string) (storage.UserDailyMoodSummary, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserDailyMoodSummary{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	summary, ok := s.days[userID+"|"+day]
	if !ok {
		return storage.UserDailyMoodSummary{}, storage.ErrNotFound
	}
	return cloneSummary(summary), nil
}

// GetStreakProfile fetches one user's streak profile record.
func (s *Store) GetStreakProfile(ctx context.Context, userID string) (storage.UserStreakProfile, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserStreakProfile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.streaks[userID]
	if !ok {
		return storage.UserStreakProfile{}, storage.ErrNotFound
	}
	return profile, nil
}

// AppendSnapshot appends one immutable snapshot entry.
func (s *Store) AppendSnapshot(ctx context.Context, snap storage.HistoricalMoodSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

// LatestSnapshot returns the snapshot with the most recent timestamp.
func (s *Store) LatestSnapshot(ctx context.Context) (storage.HistoricalMoodSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.HistoricalMoodSnapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return storage.HistoricalMoodSnapshot{}, storage.ErrNotFound
	}
	latest := s.snapshots[0]
	for _, snap := range s.snapshots[1:] {
		if snap.Timestamp.After(latest.Timestamp) {
			latest = snap
		}
	}
	return latest, nil
}

// ListSnapshots returns snapshots newest first, up to limit.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]storage.HistoricalMoodSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cloned := append([]storage.HistoricalMoodSnapshot(nil), s.snapshots...)
	for i, j := 0, len(cloned)-1; i < j; i, j = i+1, j-1 {
		cloned[i], cloned[j] = cloned[j], cloned[i]
	}
	if limit > 0 && limit < len(cloned) {
		cloned = cloned[:limit]
	}
	return cloned, nil
}

// AppendTelemetryEvent records one telemetry event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

// TelemetryEvents returns a copy of the recorded telemetry events.
func (s *Store) TelemetryEvents() []storage.TelemetryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.TelemetryEvent(nil), s.events...)
}

// SnapshotCount returns the number of stored snapshots.
func (s *Store) SnapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// takeForcedConflict consumes one injected conflict. Caller holds the lock.
func (s *Store) takeForcedConflict() bool {
	if s.forcedConflicts > 0 {
		s.forcedConflicts--
		return true
	}
	return false
}

func cloneCollective(state storage.CollectiveMoodState) storage.CollectiveMoodState {
	out := state
	out.RecentContributions = append([]mood.Sample(nil), state.RecentContributions...)
	out.CelebratedMilestones = append([]int64(nil), state.CelebratedMilestones...)
	return out
}

func cloneSummary(summary storage.UserDailyMoodSummary) storage.UserDailyMoodSummary {
	out := summary
	out.Moods = append([]mood.Sample(nil), summary.Moods...)
	return out
}
