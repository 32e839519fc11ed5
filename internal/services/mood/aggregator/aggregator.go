// Package aggregator folds mood contributions into the collective state and
// per-user daily records.
//
// Two independent transactional units handle one submitted contribution:
// the collective update against the single global record, and the joint
// daily-summary/streak update against the user's two records. The two are
// deliberately not atomic across each other: the collective update is the
// primary outcome of a submission, and per-user bookkeeping failures are
// swallowed, logged, and emitted to telemetry rather than failing the user
// action.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/moodtide/moodtide.app/internal/errors"
	"github.com/moodtide/moodtide.app/internal/mood"
	"github.com/moodtide/moodtide.app/internal/services/mood/storage"
	"github.com/moodtide/moodtide.app/internal/telemetry"
)

// Milestones is the fixed ascending list of total-contribution thresholds
// that trigger a one-time celebration.
var Milestones = []int64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// ErrSubmissionFailed indicates the store could not commit the collective
// update within its retry budget; the contribution is not counted anywhere.
var ErrSubmissionFailed = apperrors.New(apperrors.CodeSubmissionFailed, "submission could not be recorded")

// ErrEmptyUserID indicates a per-user update without an identity.
var ErrEmptyUserID = apperrors.New(apperrors.CodeUserEmptyID, "user id is required")

// Aggregator applies contributions to the collective and per-user records.
type Aggregator struct {
	collective storage.CollectiveStore
	users      storage.UserMoodStore
	emitter    *telemetry.Emitter
	clock      func() time.Time
	tracer     trace.Tracer
}

// New creates an aggregator over the given stores. emitter may be nil; the
// telemetry sink is then skipped and background failures are only logged.
func New(collective storage.CollectiveStore, users storage.UserMoodStore, emitter *telemetry.Emitter) *Aggregator {
	return &Aggregator{
		collective: collective,
		users:      users,
		emitter:    emitter,
		clock:      time.Now,
		tracer:     otel.Tracer("moodtide.app/aggregator"),
	}
}

// WithClock returns an aggregator using clock for timestamps and calendar
// days. Each submission reads the clock once, so two contributions near
// midnight cannot observe different days within one call.
func (a *Aggregator) WithClock(clock func() time.Time) *Aggregator {
	copied := *a
	copied.clock = clock
	return &copied
}

// Submit records one contribution: the collective update first, then the
// per-user daily and streak bookkeeping. Only the collective update can
// fail the submission; a per-user failure after a committed collective
// update is logged and emitted, never returned.
func (a *Aggregator) Submit(ctx context.Context, contribution mood.Contribution) (storage.CollectiveMoodState, error) {
	state, err := a.Apply(ctx, contribution)
	if err != nil {
		return storage.CollectiveMoodState{}, err
	}

	if err := a.RecordUserMood(ctx, contribution.SubmittedBy, contribution); err != nil {
		log.Printf("user mood bookkeeping for %s: %v", contribution.SubmittedBy, err)
		if emitErr := a.emitter.Emit(ctx, storage.TelemetryEvent{
			EventName: "mood.user_update_failed",
			Severity:  string(telemetry.SeverityError),
			UserID:    contribution.SubmittedBy,
			Attributes: map[string]string{
				"error": err.Error(),
				"code":  string(apperrors.CodeOf(err)),
			},
		}); emitErr != nil {
			log.Printf("telemetry emit: %v", emitErr)
		}
	}

	return state, nil
}

// Apply folds one contribution into the global collective record as a
// single read-compute-replace transaction. The new state is computed from
// the transaction's own consistent read, never from a cached value.
func (a *Aggregator) Apply(ctx context.Context, contribution mood.Contribution) (storage.CollectiveMoodState, error) {
	if err := contribution.Validate(); err != nil {
		return storage.CollectiveMoodState{}, err
	}

	ctx, span := a.tracer.Start(ctx, "aggregator.Apply",
		trace.WithAttributes(attribute.Float64("mood.hue", contribution.Hue)))
	defer span.End()

	now := a.clock().UTC()
	updated, err := a.collective.UpdateCollective(ctx, func(state storage.CollectiveMoodState, found bool) (storage.CollectiveMoodState, error) {
		if !found {
			state = seedCollectiveState(now)
		}

		state.TotalContributions++

		window := make([]mood.Sample, 0, storage.RecentWindow)
		window = append(window, contribution.Sample())
		window = append(window, state.RecentContributions...)
		if len(window) > storage.RecentWindow {
			window = window[:storage.RecentWindow]
		}
		state.RecentContributions = window

		mean := mood.CircularMean(state.RecentContributions)
		state.Hue = mean.Hue
		state.Saturation = mean.Saturation
		state.Lightness = mean.Lightness
		state.MoodAdjective = mood.Nearest(mean.Hue).Adjective

		state.CelebratedMilestones = celebrate(state.TotalContributions, state.CelebratedMilestones)
		state.LastUpdated = now
		return state, nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrTxConflict) {
			return storage.CollectiveMoodState{}, apperrors.Wrap(apperrors.CodeSubmissionFailed, "submission could not be recorded", err)
		}
		return storage.CollectiveMoodState{}, fmt.Errorf("update collective state: %w", err)
	}
	return updated, nil
}

// RecordUserMood folds one contribution into the user's daily summary and
// advances the streak in the same transaction: both commit or neither does.
func (a *Aggregator) RecordUserMood(ctx context.Context, userID string, contribution mood.Contribution) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	if err := contribution.Validate(); err != nil {
		return err
	}

	ctx, span := a.tracer.Start(ctx, "aggregator.RecordUserMood")
	defer span.End()

	now := a.clock().UTC()
	today := mood.Day(now)

	err := a.users.UpdateUserDay(ctx, userID, today, func(day storage.UserDailyMoodSummary, dayFound bool, profile storage.UserStreakProfile, profileFound bool) (storage.UserDailyMoodSummary, storage.UserStreakProfile, error) {
		if !dayFound {
			day = storage.UserDailyMoodSummary{
				UserID: userID,
				Date:   today,
			}
		}
		day.Moods = append(day.Moods, contribution.Sample())
		day.ContributionCount++
		mean := mood.CircularMean(day.Moods)
		day.AverageHue = mean.Hue
		day.AverageSaturation = mean.Saturation
		day.AverageLightness = mean.Lightness
		day.DominantAdjective = mood.Nearest(mean.Hue).Adjective
		day.UpdatedAt = now

		next := mood.AdvanceStreak(mood.StreakState{
			Current:  profile.CurrentStreak,
			LastDate: profile.LastContributionDate,
		}, profileFound, today)
		profile.UserID = userID
		profile.CurrentStreak = next.Current
		profile.LastContributionDate = next.LastDate
		profile.UpdatedAt = now

		return day, profile, nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrTxConflict) {
			return apperrors.Wrap(apperrors.CodeSubmissionFailed, "user mood could not be recorded", err)
		}
		return fmt.Errorf("update user day: %w", err)
	}
	return nil
}

// Current returns the collective state, or the seeded default when no
// contribution has ever been recorded. A missing record is a valid state,
// not an error.
func (a *Aggregator) Current(ctx context.Context) (storage.CollectiveMoodState, error) {
	state, err := a.collective.GetCollective(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return seedCollectiveState(a.clock().UTC()), nil
		}
		return storage.CollectiveMoodState{}, fmt.Errorf("get collective state: %w", err)
	}
	return state, nil
}

// UserDay returns the user's summary for today per the aggregator clock.
func (a *Aggregator) UserDay(ctx context.Context, userID string) (storage.UserDailyMoodSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return storage.UserDailyMoodSummary{}, ErrEmptyUserID
	}
	return a.users.GetUserDay(ctx, userID, mood.Day(a.clock().UTC()))
}

// Streak returns the user's streak profile.
func (a *Aggregator) Streak(ctx context.Context, userID string) (storage.UserStreakProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return storage.UserStreakProfile{}, ErrEmptyUserID
	}
	return a.users.GetStreakProfile(ctx, userID)
}

// seedCollectiveState is the documented default for an absent collective
// record: the catalog seed entry, zero contributions, an empty window, and
// an empty milestone set.
func seedCollectiveState(now time.Time) storage.CollectiveMoodState {
	seed := mood.Default()
	return storage.CollectiveMoodState{
		SchemaVersion: storage.SchemaVersion,
		Hue:           seed.Hue,
		Saturation:    seed.Saturation,
		Lightness:     seed.Lightness,
		MoodAdjective: seed.Adjective,
		LastUpdated:   now,
	}
}

// celebrate appends total to the celebrated set when it lands exactly on an
// uncelebrated milestone. The check is exact equality, not first-crossing:
// the store serializes every Apply, so the counter moves by exactly one per
// committed transaction and equality cannot skip a threshold.
func celebrate(total int64, celebrated []int64) []int64 {
	for _, m := range Milestones {
		if m > total {
			break
		}
		if m != total {
			continue
		}
		for _, c := range celebrated {
			if c == m {
				return celebrated
			}
		}
		return append(celebrated, m)
	}
	return celebrated
}
