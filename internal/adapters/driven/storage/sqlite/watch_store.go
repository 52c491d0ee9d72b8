package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
)

// WatchStore persists watches and their watermarks.
type WatchStore struct {
	store *Store
}

var (
	_ driven.WatchStore     = (*WatchStore)(nil)
	_ driven.WatermarkStore = (*WatchStore)(nil)
)

const watchColumns = `id, name, keywords_json, channels_json, interval_seconds, last_run, next_run, last_error, enabled`

// GetWatch retrieves a watch by ID.
// Returns nil and no error if the watch does not exist.
func (s *WatchStore) GetWatch(ctx context.Context, id string) (*domain.Watch, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+watchColumns+` FROM watches WHERE id = ?`, id)

	watch, err := scanWatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return watch, nil
}

// ListWatches returns all watches ordered by name.
func (s *WatchStore) ListWatches(ctx context.Context) ([]domain.Watch, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+watchColumns+` FROM watches ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying watches: %w", err)
	}
	defer rows.Close()

	var watches []domain.Watch //nolint:prealloc // size unknown from query
	for rows.Next() {
		watch, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, *watch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating watches: %w", err)
	}
	return watches, nil
}

// SaveWatch creates or updates a watch based on ID.
func (s *WatchStore) SaveWatch(ctx context.Context, w *domain.Watch) error {
	if w == nil {
		return domain.ErrInvalidRequest
	}
	keywords, err := json.Marshal(w.Keywords)
	if err != nil {
		return fmt.Errorf("marshalling keywords: %w", err)
	}
	channels, err := json.Marshal(w.Channels)
	if err != nil {
		return fmt.Errorf("marshalling channels: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO watches (`+watchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			keywords_json = excluded.keywords_json,
			channels_json = excluded.channels_json,
			interval_seconds = excluded.interval_seconds,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			enabled = excluded.enabled
	`, w.ID, w.Name, string(keywords), string(channels), int64(w.Interval.Seconds()),
		formatNullableTime(w.LastRun), formatNullableTime(w.NextRun),
		nullString(w.LastError), boolToInt(w.Enabled))
	if err != nil {
		return fmt.Errorf("saving watch: %w", err)
	}
	return nil
}

// UpdateSchedule writes only the schedule columns of an existing watch.
func (s *WatchStore) UpdateSchedule(ctx context.Context, id string, lastRun, nextRun time.Time, lastError string) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE watches SET last_run = ?, next_run = ?, last_error = ? WHERE id = ?",
		formatNullableTime(lastRun), formatNullableTime(nextRun), nullString(lastError), id)
	if err != nil {
		return fmt.Errorf("updating watch schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating watch schedule: %w", err)
	}
	if n == 0 {
		return domain.ErrWatchNotFound
	}
	return nil
}

// DeleteWatch removes a watch. Its watermarks go with it.
func (s *WatchStore) DeleteWatch(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM watches WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting watch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting watch: %w", err)
	}
	if n == 0 {
		return domain.ErrWatchNotFound
	}
	return nil
}

// Get returns the watermarks for a watch, empty if none were saved.
func (s *WatchStore) Get(ctx context.Context, watchID string) (domain.Watermarks, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT channel, message_id FROM watermarks WHERE watch_id = ?", watchID)
	if err != nil {
		return nil, fmt.Errorf("querying watermarks: %w", err)
	}
	defer rows.Close()

	marks := make(domain.Watermarks)
	for rows.Next() {
		var channel string
		var id int64
		if err := rows.Scan(&channel, &id); err != nil {
			return nil, fmt.Errorf("scanning watermark: %w", err)
		}
		marks[channel] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating watermarks: %w", err)
	}
	return marks, nil
}

// Save replaces the watermarks for a watch in one transaction.
// Marks for a watch that no longer exists are dropped.
func (s *WatchStore) Save(ctx context.Context, watchID string, marks domain.Watermarks) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM watermarks WHERE watch_id = ?", watchID); err != nil {
		return fmt.Errorf("clearing watermarks: %w", err)
	}

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM watches WHERE id = ?", watchID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking watch: %w", err)
	}
	if exists > 0 {
		for channel, id := range marks {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO watermarks (watch_id, channel, message_id) VALUES (?, ?, ?)",
				watchID, channel, id); err != nil {
				return fmt.Errorf("saving watermark %s: %w", channel, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing watermarks: %w", err)
	}
	return nil
}

// scanWatch scans a single watch row.
func scanWatch(row scanner) (*domain.Watch, error) {
	var (
		w                         domain.Watch
		keywords, channels        string
		intervalSeconds           int64
		lastRun, nextRun, lastErr sql.NullString
		enabled                   int
	)
	if err := row.Scan(&w.ID, &w.Name, &keywords, &channels, &intervalSeconds,
		&lastRun, &nextRun, &lastErr, &enabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning watch: %w", err)
	}

	if err := json.Unmarshal([]byte(keywords), &w.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshalling keywords for %s: %w", w.ID, err)
	}
	if err := json.Unmarshal([]byte(channels), &w.Channels); err != nil {
		return nil, fmt.Errorf("unmarshalling channels for %s: %w", w.ID, err)
	}
	w.Interval = time.Duration(intervalSeconds) * time.Second
	w.LastRun = parseNullableTime(lastRun)
	w.NextRun = parseNullableTime(nextRun)
	if lastErr.Valid {
		w.LastError = lastErr.String
	}
	w.Enabled = enabled == 1
	return &w, nil
}
