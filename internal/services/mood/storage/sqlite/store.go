// Package sqlite provides a SQLite-backed mood history store: the
// append-only collective mood time series and the telemetry event sink.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	sqlitemigrate "github.com/moodtide/moodtide.app/internal/platform/storage/sqlitemigrate"
	"github.com/moodtide/moodtide.app/internal/services/mood/storage"
	"github.com/moodtide/moodtide.app/internal/services/mood/storage/sqlite/migrations"
)

// Store persists mood history in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite history store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendSnapshot inserts one immutable snapshot entry.
func (s *Store) AppendSnapshot(ctx context.Context, snap storage.HistoricalMoodSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	capturedAt := snap.Timestamp
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO mood_snapshots (
		   captured_at,
		   hue,
		   saturation,
		   lightness,
		   mood_adjective,
		   contribution_count
		 ) VALUES (?, ?, ?, ?, ?, ?)`,
		toMillis(capturedAt),
		snap.Hue,
		snap.Saturation,
		snap.Lightness,
		snap.MoodAdjective,
		snap.ContributionCount,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot fetches the most recent snapshot entry.
func (s *Store) LatestSnapshot(ctx context.Context) (storage.HistoricalMoodSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.HistoricalMoodSnapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.HistoricalMoodSnapshot{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT captured_at, hue, saturation, lightness, mood_adjective, contribution_count
		 FROM mood_snapshots
		 ORDER BY captured_at DESC, id DESC
		 LIMIT 1`,
	)
	snap, err := scanSnapshot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return storage.HistoricalMoodSnapshot{}, storage.ErrNotFound
		}
		return storage.HistoricalMoodSnapshot{}, fmt.Errorf("query latest snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots fetches snapshots newest first, up to limit (0 means all).
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]storage.HistoricalMoodSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT captured_at, hue, saturation, lightness, mood_adjective, contribution_count
		 FROM mood_snapshots
		 ORDER BY captured_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []storage.HistoricalMoodSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// AppendTelemetryEvent inserts one telemetry event record.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	occurredAt := evt.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO telemetry_events (
		   occurred_at,
		   event_name,
		   severity,
		   user_id,
		   trace_id,
		   span_id,
		   attributes_json
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		toMillis(occurredAt),
		evt.EventName,
		evt.Severity,
		evt.UserID,
		evt.TraceID,
		evt.SpanID,
		string(attrsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert telemetry event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (storage.HistoricalMoodSnapshot, error) {
	var snap storage.HistoricalMoodSnapshot
	var capturedAt int64
	if err := row.Scan(
		&capturedAt,
		&snap.Hue,
		&snap.Saturation,
		&snap.Lightness,
		&snap.MoodAdjective,
		&snap.ContributionCount,
	); err != nil {
		return storage.HistoricalMoodSnapshot{}, err
	}
	snap.Timestamp = fromMillis(capturedAt)
	return snap, nil
}
