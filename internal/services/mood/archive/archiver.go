// Package archive copies the collective mood into an append-only history.
//
// Archiving is best effort and cooldown gated: read-path visits trigger it,
// at most one snapshot is written per cooldown window per process, and its
// failures are reported to the telemetry sink instead of the caller's user
// action.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	apperrors "github.com/moodtide/moodtide.app/internal/errors"
	"github.com/moodtide/moodtide.app/internal/services/mood/storage"
	"github.com/moodtide/moodtide.app/internal/telemetry"
)

// Cooldown is the minimum interval between snapshots.
const Cooldown = time.Hour

// Archiver appends periodic snapshots of the collective mood state.
type Archiver struct {
	collective storage.CollectiveStore
	snapshots  storage.SnapshotStore
	emitter    *telemetry.Emitter

	// mu serializes check-then-write within this process so two concurrent
	// read-path triggers cannot both pass the cooldown check. Concurrent
	// archivers in separate processes may still write duplicates; that is
	// tolerated redundancy, not a correctness violation.
	mu sync.Mutex
}

// New creates an archiver over the given stores. emitter may be nil.
func New(collective storage.CollectiveStore, snapshots storage.SnapshotStore, emitter *telemetry.Emitter) *Archiver {
	return &Archiver{collective: collective, snapshots: snapshots, emitter: emitter}
}

// ArchiveIfDue writes one snapshot when the cooldown has elapsed. It
// reports whether a snapshot was written. "Not due yet" and "nothing to
// archive yet" are success outcomes, not errors.
func (a *Archiver) ArchiveIfDue(ctx context.Context, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	latest, err := a.snapshots.LatestSnapshot(ctx)
	switch {
	case err == nil:
		if now.Sub(latest.Timestamp) < Cooldown {
			return false, nil
		}
	case errors.Is(err, storage.ErrNotFound):
		// Empty log: first snapshot is always due.
	default:
		return false, apperrors.Wrap(apperrors.CodeArchiveFailed, "read latest snapshot", err)
	}

	state, err := a.collective.GetCollective(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.CodeArchiveFailed, "read collective state", err)
	}

	snap := storage.HistoricalMoodSnapshot{
		Timestamp:         now.UTC(),
		Hue:               state.Hue,
		Saturation:        state.Saturation,
		Lightness:         state.Lightness,
		MoodAdjective:     state.MoodAdjective,
		ContributionCount: state.TotalContributions,
	}
	if err := a.snapshots.AppendSnapshot(ctx, snap); err != nil {
		return false, apperrors.Wrap(apperrors.CodeArchiveFailed, "append snapshot", err)
	}
	return true, nil
}

// TriggerAsync runs ArchiveIfDue on a detached goroutine with no caller
// visible completion signal. Failures go to the log and telemetry sink.
func (a *Archiver) TriggerAsync(now time.Time) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := a.ArchiveIfDue(ctx, now); err != nil {
			log.Printf("archive collective mood: %v", err)
			if emitErr := a.emitter.Emit(ctx, storage.TelemetryEvent{
				EventName: "mood.archive_failed",
				Severity:  string(telemetry.SeverityError),
				Attributes: map[string]string{
					"error": err.Error(),
					"code":  string(apperrors.CodeOf(err)),
				},
			}); emitErr != nil {
				log.Printf("telemetry emit: %v", emitErr)
			}
		}
	}()
}

// History lists archived snapshots, newest first.
func (a *Archiver) History(ctx context.Context, limit int) ([]storage.HistoricalMoodSnapshot, error) {
	snaps, err := a.snapshots.ListSnapshots(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}
