// Package bbolt provides a BoltDB-backed mood document store.
//
// Records are JSON documents keyed inside per-collection buckets. bbolt
// serializes all Update transactions through a single writer, so a
// read-modify-write inside one Update observes every previously committed
// write; concurrent contributions cannot lose counter increments or window
// entries.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/moodtide/moodtide.app/internal/services/mood/storage"
)

const (
	collectiveBucket = "collective"
	userDayBucket    = "user_days"
	streakBucket     = "streaks"

	collectiveKey = "state"
)

// Store provides a BoltDB-backed implementation of the collective and
// per-user mood stores.
type Store struct {
	db *bolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bolt.Open(cleanPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpdateCollective applies fn to the global collective record inside one
// write transaction and persists the result as a full overwrite.
func (s *Store) UpdateCollective(ctx context.Context, fn storage.CollectiveUpdateFn) (storage.CollectiveMoodState, error) {
	if err := ctx.Err(); err != nil {
		return storage.CollectiveMoodState{}, err
	}
	if s == nil || s.db == nil {
		return storage.CollectiveMoodState{}, fmt.Errorf("storage is not configured")
	}
	if fn == nil {
		return storage.CollectiveMoodState{}, fmt.Errorf("update function is required")
	}

	var updated storage.CollectiveMoodState
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collectiveBucket))
		if bucket == nil {
			return fmt.Errorf("collective bucket is missing")
		}

		var state storage.CollectiveMoodState
		found := false
		if payload := bucket.Get([]byte(collectiveKey)); payload != nil {
			if err := json.Unmarshal(payload, &state); err != nil {
				return fmt.Errorf("unmarshal collective state: %w", err)
			}
			if err := storage.CheckSchema("collective", state.SchemaVersion); err != nil {
				return err
			}
			found = true
		}

		next, err := fn(state, found)
		if err != nil {
			return err
		}
		next.SchemaVersion = storage.SchemaVersion

		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal collective state: %w", err)
		}
		if err := bucket.Put([]byte(collectiveKey), payload); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return storage.CollectiveMoodState{}, err
	}
	return updated, nil
}

// GetCollective fetches the global collective record.
func (s *Store) GetCollective(ctx context.Context) (storage.CollectiveMoodState, error) {
	if err := ctx.Err(); err != nil {
		return storage.CollectiveMoodState{}, err
	}
	if s == nil || s.db == nil {
		return storage.CollectiveMoodState{}, fmt.Errorf("storage is not configured")
	}

	var state storage.CollectiveMoodState
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collectiveBucket))
		if bucket == nil {
			return fmt.Errorf("collective bucket is missing")
		}
		payload := bucket.Get([]byte(collectiveKey))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &state); err != nil {
			return fmt.Errorf("unmarshal collective state: %w", err)
		}
		return storage.CheckSchema("collective", state.SchemaVersion)
	})
	if err != nil {
		return storage.CollectiveMoodState{}, err
	}
	return state, nil
}

// UpdateUserDay applies fn to a user's daily summary and streak profile
// inside one write transaction. Both records commit together or not at all.
func (s *Store) UpdateUserDay(ctx context.Context, userID string, day string, fn storage.UserDayUpdateFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
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

	return s.db.Update(func(tx *bolt.Tx) error {
		days := tx.Bucket([]byte(userDayBucket))
		streaks := tx.Bucket([]byte(streakBucket))
		if days == nil || streaks == nil {
			return fmt.Errorf("user buckets are missing")
		}

		var summary storage.UserDailyMoodSummary
		dayFound := false
		if payload := days.Get(userDayKey(userID, day)); payload != nil {
			if err := json.Unmarshal(payload, &summary); err != nil {
				return fmt.Errorf("unmarshal daily summary: %w", err)
			}
			if err := storage.CheckSchema("daily summary", summary.SchemaVersion); err != nil {
				return err
			}
			dayFound = true
		}

		var profile storage.UserStreakProfile
		profileFound := false
		if payload := streaks.Get([]byte(userID)); payload != nil {
			if err := json.Unmarshal(payload, &profile); err != nil {
				return fmt.Errorf("unmarshal streak profile: %w", err)
			}
			if err := storage.CheckSchema("streak profile", profile.SchemaVersion); err != nil {
				return err
			}
			profileFound = true
		}

		nextSummary, nextProfile, err := fn(summary, dayFound, profile, profileFound)
		if err != nil {
			return err
		}
		nextSummary.SchemaVersion = storage.SchemaVersion
		nextProfile.SchemaVersion = storage.SchemaVersion

		summaryPayload, err := json.Marshal(nextSummary)
		if err != nil {
			return fmt.Errorf("marshal daily summary: %w", err)
		}
		if err := days.Put(userDayKey(userID, day), summaryPayload); err != nil {
			return err
		}

		profilePayload, err := json.Marshal(nextProfile)
		if err != nil {
			return fmt.Errorf("marshal streak profile: %w", err)
		}
		return streaks.Put([]byte(userID), profilePayload)
	})
}

// GetUserDay fetches one user's daily summary record.
func (s *Store) GetUserDay(ctx context.Context, userID string, day string) (storage.UserDailyMoodSummary, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserDailyMoodSummary{}, err
	}
	if s == nil || s.db == nil {
		return storage.UserDailyMoodSummary{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return storage.UserDailyMoodSummary{}, fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(day) == "" {
		return storage.UserDailyMoodSummary{}, fmt.Errorf("day is required")
	}

	var summary storage.UserDailyMoodSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(userDayBucket))
		if bucket == nil {
			return fmt.Errorf("user day bucket is missing")
		}
		payload := bucket.Get(userDayKey(userID, day))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &summary); err != nil {
			return fmt.Errorf("unmarshal daily summary: %w", err)
		}
		return storage.CheckSchema("daily summary", summary.SchemaVersion)
	})
	if err != nil {
		return storage.UserDailyMoodSummary{}, err
	}
	return summary, nil
}

// GetStreakProfile fetches one user's streak profile record.
func (s *Store) GetStreakProfile(ctx context.Context, userID string) (storage.UserStreakProfile, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserStreakProfile{}, err
	}
	if s == nil || s.db == nil {
		return storage.UserStreakProfile{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return storage.UserStreakProfile{}, fmt.Errorf("user id is required")
	}

	var profile storage.UserStreakProfile
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(streakBucket))
		if bucket == nil {
			return fmt.Errorf("streak bucket is missing")
		}
		payload := bucket.Get([]byte(userID))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &profile); err != nil {
			return fmt.Errorf("unmarshal streak profile: %w", err)
		}
		return storage.CheckSchema("streak profile", profile.SchemaVersion)
	})
	if err != nil {
		return storage.UserStreakProfile{}, err
	}
	return profile, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{collectiveBucket, userDayBucket, streakBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func userDayKey(userID, day string) []byte {
	return []byte(userID + "|" + day)
}
