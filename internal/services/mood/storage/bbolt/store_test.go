package bbolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	apperrors "github.com/moodtide/moodtide.app/internal/errors"
	"github.com/moodtide/moodtide.app/internal/mood"
	"github.com/moodtide/moodtide.app/internal/services/mood/storage"
)

func seedRecord(t *testing.T, store *Store, bucket string, key []byte, record any) {
	t.Helper()
	payload, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	err = store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put(key, payload)
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "moodtide.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUpdateCollectiveCreatesRecord(t *testing.T) {
	store := openTestStore(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	updated, err := store.UpdateCollective(context.Background(), func(state storage.CollectiveMoodState, found bool) (storage.CollectiveMoodState, error) {
		if found {
			t.Fatal("expected no existing record")
		}
		state.Hue = 120
		state.TotalContributions = 1
		state.RecentContributions = []mood.Sample{{Hue: 120, Saturation: 50, Lightness: 50}}
		state.LastUpdated = now
		return state, nil
	})
	if err != nil {
		t.Fatalf("update collective: %v", err)
	}
	if updated.SchemaVersion != storage.SchemaVersion {
		t.Fatalf("expected schema version %d, got %d", storage.SchemaVersion, updated.SchemaVersion)
	}

	loaded, err := store.GetCollective(context.Background())
	if err != nil {
		t.Fatalf("get collective: %v", err)
	}
	if loaded.Hue != 120 {
		t.Fatalf("expected hue 120, got %v", loaded.Hue)
	}
	if loaded.TotalContributions != 1 {
		t.Fatalf("expected 1 contribution, got %d", loaded.TotalContributions)
	}
	if !loaded.LastUpdated.Equal(now) {
		t.Fatalf("expected last updated %v, got %v", now, loaded.LastUpdated)
	}
}

func TestUpdateCollectiveObservesPriorWrite(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.UpdateCollective(context.Background(), func(state storage.CollectiveMoodState, found bool) (storage.CollectiveMoodState, error) {
			state.TotalContributions++
			return state, nil
		})
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	loaded, err := store.GetCollective(context.Background())
	if err != nil {
		t.Fatalf("get collective: %v", err)
	}
	if loaded.TotalContributions != 3 {
		t.Fatalf("expected 3 contributions, got %d", loaded.TotalContributions)
	}
}

func TestUpdateCollectiveConcurrentWritersLoseNothing(t *testing.T) {
	store := openTestStore(t)

	const writers = 16
	const perWriter = 20
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := store.UpdateCollective(context.Background(), func(state storage.CollectiveMoodState, found bool) (storage.CollectiveMoodState, error) {
					state.TotalContributions++
					return state, nil
				})
				if err != nil {
					errCh <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent update: %v", err)
	}

	loaded, err := store.GetCollective(context.Background())
	if err != nil {
		t.Fatalf("get collective: %v", err)
	}
	if loaded.TotalContributions != writers*perWriter {
		t.Fatalf("expected %d contributions, got %d", writers*perWriter, loaded.TotalContributions)
	}
}

func TestUpdateCollectiveRollsBackOnError(t *testing.T) {
	store := openTestStore(t)

	updateErr := fmt.Errorf("boom")
	_, err := store.UpdateCollective(context.Background(), func(state storage.CollectiveMoodState, found bool) (storage.CollectiveMoodState, error) {
		return storage.CollectiveMoodState{}, updateErr
	})
	if !errors.Is(err, updateErr) {
		t.Fatalf("expected update error, got %v", err)
	}

	if _, err := store.GetCollective(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found after rollback, got %v", err)
	}
}

func TestGetCollectiveNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetCollective(context.Background())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestUpdateUserDayWritesBothRecords(t *testing.T) {
	store := openTestStore(t)

	err := store.UpdateUserDay(context.Background(), "user-1", "2026-03-01", func(day storage.UserDailyMoodSummary, dayFound bool, profile storage.UserStreakProfile, profileFound bool) (storage.UserDailyMoodSummary, storage.UserStreakProfile, error) {
		if dayFound || profileFound {
			t.Fatal("expected fresh records")
		}
		day.UserID = "user-1"
		day.Date = "2026-03-01"
		day.ContributionCount = 1
		day.Moods = []mood.Sample{{Hue: 90, Saturation: 60, Lightness: 50}}
		profile.UserID = "user-1"
		profile.CurrentStreak = 1
		profile.LastContributionDate = "2026-03-01"
		return day, profile, nil
	})
	if err != nil {
		t.Fatalf("update user day: %v", err)
	}

	summary, err := store.GetUserDay(context.Background(), "user-1", "2026-03-01")
	if err != nil {
		t.Fatalf("get user day: %v", err)
	}
	if summary.ContributionCount != 1 {
		t.Fatalf("expected 1 contribution, got %d", summary.ContributionCount)
	}
	if len(summary.Moods) != 1 {
		t.Fatalf("expected 1 mood, got %d", len(summary.Moods))
	}

	profile, err := store.GetStreakProfile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get streak profile: %v", err)
	}
	if profile.CurrentStreak != 1 {
		t.Fatalf("expected streak 1, got %d", profile.CurrentStreak)
	}
	if profile.LastContributionDate != "2026-03-01" {
		t.Fatalf("expected last date 2026-03-01, got %q", profile.LastContributionDate)
	}
}

func TestUpdateUserDayFailureWritesNeither(t *testing.T) {
	store := openTestStore(t)

	updateErr := fmt.Errorf("boom")
	err := store.UpdateUserDay(context.Background(), "user-1", "2026-03-01", func(day storage.UserDailyMoodSummary, dayFound bool, profile storage.UserStreakProfile, profileFound bool) (storage.UserDailyMoodSummary, storage.UserStreakProfile, error) {
		return day, profile, updateErr
	})
	if !errors.Is(err, updateErr) {
		t.Fatalf("expected update error, got %v", err)
	}

	if _, err := store.GetUserDay(context.Background(), "user-1", "2026-03-01"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected day not found, got %v", err)
	}
	if _, err := store.GetStreakProfile(context.Background(), "user-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected profile not found, got %v", err)
	}
}

func TestUpdateUserDayScopesRecordsByUser(t *testing.T) {
	store := openTestStore(t)

	for _, uid := range []string{"user-1", "user-2"} {
		uid := uid
		err := store.UpdateUserDay(context.Background(), uid, "2026-03-01", func(day storage.UserDailyMoodSummary, dayFound bool, profile storage.UserStreakProfile, profileFound bool) (storage.UserDailyMoodSummary, storage.UserStreakProfile, error) {
			day.UserID = uid
			day.Date = "2026-03-01"
			day.ContributionCount = 1
			profile.UserID = uid
			profile.CurrentStreak = 1
			profile.LastContributionDate = "2026-03-01"
			return day, profile, nil
		})
		if err != nil {
			t.Fatalf("update %s: %v", uid, err)
		}
	}

	summary, err := store.GetUserDay(context.Background(), "user-2", "2026-03-01")
	if err != nil {
		t.Fatalf("get user day: %v", err)
	}
	if summary.UserID != "user-2" {
		t.Fatalf("expected user-2 record, got %q", summary.UserID)
	}
}

func TestUpdateUserDayEmptyUser(t *testing.T) {
	store := openTestStore(t)

	err := store.UpdateUserDay(context.Background(), " ", "2026-03-01", func(day storage.UserDailyMoodSummary, dayFound bool, profile storage.UserStreakProfile, profileFound bool) (storage.UserDailyMoodSummary, storage.UserStreakProfile, error) {
		return day, profile, nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGetCollectiveRejectsSchemaMismatch(t *testing.T) {
	store := openTestStore(t)
	seedRecord(t, store, collectiveBucket, []byte(collectiveKey), storage.CollectiveMoodState{
		SchemaVersion:      storage.SchemaVersion + 1,
		Hue:                120,
		TotalContributions: 1,
	})

	_, err := store.GetCollective(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeSchemaMismatch {
		t.Fatalf("expected schema mismatch code, got %q (%v)", code, err)
	}
}

func TestUpdateCollectiveRejectsSchemaMismatch(t *testing.T) {
	store := openTestStore(t)
	seedRecord(t, store, collectiveBucket, []byte(collectiveKey), storage.CollectiveMoodState{
		SchemaVersion:      storage.SchemaVersion + 1,
		TotalContributions: 7,
	})

	_, err := store.UpdateCollective(context.Background(), func(state storage.CollectiveMoodState, found bool) (storage.CollectiveMoodState, error) {
		t.Fatal("update fn must not run against a mismatched record")
		return state, nil
	})
	if code := apperrors.CodeOf(err); code != apperrors.CodeSchemaMismatch {
		t.Fatalf("expected schema mismatch code, got %q (%v)", code, err)
	}

	// The mismatched record is left untouched.
	var raw storage.CollectiveMoodState
	viewErr := store.db.View(func(tx *bolt.Tx) error {
		return json.Unmarshal(tx.Bucket([]byte(collectiveBucket)).Get([]byte(collectiveKey)), &raw)
	})
	if viewErr != nil {
		t.Fatalf("read raw record: %v", viewErr)
	}
	if raw.TotalContributions != 7 {
		t.Fatalf("expected record unchanged, got total %d", raw.TotalContributions)
	}
}

func TestGetUserDayRejectsSchemaMismatch(t *testing.T) {
	store := openTestStore(t)
	seedRecord(t, store, userDayBucket, userDayKey("user-1", "2026-03-01"), storage.UserDailyMoodSummary{
		SchemaVersion: storage.SchemaVersion + 1,
		UserID:        "user-1",
		Date:          "2026-03-01",
	})

	_, err := store.GetUserDay(context.Background(), "user-1", "2026-03-01")
	if code := apperrors.CodeOf(err); code != apperrors.CodeSchemaMismatch {
		t.Fatalf("expected schema mismatch code, got %q (%v)", code, err)
	}
}

func TestUpdateUserDayRejectsMismatchedStreakProfile(t *testing.T) {
	store := openTestStore(t)
	seedRecord(t, store, streakBucket, []byte("user-1"), storage.UserStreakProfile{
		SchemaVersion: storage.SchemaVersion + 1,
		UserID:        "user-1",
		CurrentStreak: 3,
	})

	err := store.UpdateUserDay(context.Background(), "user-1", "2026-03-01", func(day storage.UserDailyMoodSummary, dayFound bool, profile storage.UserStreakProfile, profileFound bool) (storage.UserDailyMoodSummary, storage.UserStreakProfile, error) {
		t.Fatal("update fn must not run against a mismatched record")
		return day, profile, nil
	})
	if code := apperrors.CodeOf(err); code != apperrors.CodeSchemaMismatch {
		t.Fatalf("expected schema mismatch code, got %q (%v)", code, err)
	}
}

func TestUpdateCollectiveCanceledContext(t *testing.T) {
	store := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.UpdateCollective(ctx, func(state storage.CollectiveMoodState, found bool) (storage.CollectiveMoodState, error) {
		return state, nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
