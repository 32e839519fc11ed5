// Package storage defines persistence contracts for mood service state.
package storage

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/moodtide/moodtide.app/internal/errors"
	"github.com/moodtide/moodtide.app/internal/mood"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrTxConflict indicates concurrent writers could not be linearized within
// the store's retry budget.
var ErrTxConflict = apperrors.New(apperrors.CodeTxConflict, "transaction conflict")

// SchemaVersion is the record shape version written by this build. Reads of
// a record with a different version fail closed with a SCHEMA_MISMATCH
// domain error rather than coercing silently.
const SchemaVersion = 1

// RecentWindow is the size of the collective state's sliding window of raw
// contributions.
const RecentWindow = 20

// CollectiveMoodState is the single global collective mood record. Its
// hue/saturation/lightness are always the circular mean of exactly
// RecentContributions.
type CollectiveMoodState struct {
	SchemaVersion        int
	Hue                  float64
	Saturation           float64
	Lightness            float64
	MoodAdjective        string
	TotalContributions   int64
	RecentContributions  []mood.Sample
	CelebratedMilestones []int64
	LastUpdated          time.Time
}

// UserDailyMoodSummary is one user's mood summary for one calendar day.
// Averages are always the mean of Moods. Records are never mutated after
// their day rolls over; the next day gets a fresh record.
type UserDailyMoodSummary struct {
	SchemaVersion     int
	UserID            string
	Date              string
	AverageHue        float64
	AverageSaturation float64
	AverageLightness  float64
	DominantAdjective string
	ContributionCount int
	Moods             []mood.Sample
	UpdatedAt         time.Time
}

// UserStreakProfile is one user's consecutive-day contribution streak.
// CurrentStreak changes only through the streak state machine and mutates
// at most once per calendar day.
type UserStreakProfile struct {
	SchemaVersion        int
	UserID               string
	CurrentStreak        int
	LastContributionDate string
	UpdatedAt            time.Time
}

// HistoricalMoodSnapshot is one append-only time-series entry copied from
// the collective state. Immutable once written.
type HistoricalMoodSnapshot struct {
	Timestamp         time.Time
	Hue               float64
	Saturation        float64
	Lightness         float64
	MoodAdjective     string
	ContributionCount int64
}

// TelemetryEvent records one operational event for audits and incident
// analysis.
type TelemetryEvent struct {
	Timestamp  time.Time
	EventName  string
	Severity   string
	UserID     string
	TraceID    string
	SpanID     string
	Attributes map[string]string
}

// CheckSchema validates a record's schema version on read.
func CheckSchema(record string, version int) error {
	if version != SchemaVersion {
		return apperrors.WithMetadata(
			apperrors.CodeSchemaMismatch,
			fmt.Sprintf("%s record has schema version %d, want %d", record, version, SchemaVersion),
			map[string]string{"record": record, "version": fmt.Sprint(version)},
		)
	}
	return nil
}

// CollectiveUpdateFn computes the next collective state from the
// transaction's own consistent read. found reports whether a record
// existed; when false, state is the zero value.
type CollectiveUpdateFn func(state CollectiveMoodState, found bool) (CollectiveMoodState, error)

// CollectiveStore persists the single global collective mood record. All
// mutation flows through UpdateCollective so the read-compute-replace cycle
// happens inside one store transaction: concurrent updates must not lose
// increments to TotalContributions or entries of RecentContributions.
type CollectiveStore interface {
	UpdateCollective(ctx context.Context, fn CollectiveUpdateFn) (CollectiveMoodState, error)
	GetCollective(ctx context.Context) (CollectiveMoodState, error)
}

// UserDayUpdateFn computes the next daily summary and streak profile for a
// user from the transaction's own consistent read of both records.
type UserDayUpdateFn func(day UserDailyMoodSummary, dayFound bool, profile UserStreakProfile, profileFound bool) (UserDailyMoodSummary, UserStreakProfile, error)

// UserMoodStore persists per-user daily summaries and streak profiles.
// UpdateUserDay reads and writes both records in one transaction: the daily
// fold and the streak advance succeed or fail together.
type UserMoodStore interface {
	UpdateUserDay(ctx context.Context, userID string, day string, fn UserDayUpdateFn) error
	GetUserDay(ctx context.Context, userID string, day string) (UserDailyMoodSummary, error)
	GetStreakProfile(ctx context.Context, userID string) (UserStreakProfile, error)
}

// SnapshotStore persists the append-only collective mood time series.
type SnapshotStore interface {
	AppendSnapshot(ctx context.Context, snap HistoricalMoodSnapshot) error
	LatestSnapshot(ctx context.Context) (HistoricalMoodSnapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]HistoricalMoodSnapshot, error)
}

// TelemetryStore persists operational telemetry records.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, evt TelemetryEvent) error
}
