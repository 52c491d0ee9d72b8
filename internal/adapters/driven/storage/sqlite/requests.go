package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
)

// requestStore implements driven.RequestStore.
type requestStore struct {
	store *Store
}

var _ driven.RequestStore = (*requestStore)(nil)

// Record appends a request, assigning ID and RecordedAt when unset.
func (s *requestStore) Record(ctx context.Context, rec *domain.RequestRecord) error {
	if rec == nil {
		return domain.ErrInvalidRequest
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	reqJSON, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}
	result, err := s.store.compressResult(rec.Result)
	if err != nil {
		return err
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO requests (id, fingerprint, requester, request_json, result_zst, cached, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, string(rec.Fingerprint), nullString(rec.Request.Requester), string(reqJSON),
		result, boolToInt(rec.Cached), formatNullableTime(rec.RecordedAt))
	if err != nil {
		return fmt.Errorf("recording request: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *requestStore) Get(ctx context.Context, id string) (*domain.RequestRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, request_json, result_zst, cached, recorded_at
		FROM requests WHERE id = ?
	`, id)

	rec, err := s.scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns records most recent first.
func (s *requestStore) List(ctx context.Context, filter domain.HistoryFilter) ([]domain.RequestRecord, error) {
	query := `
		SELECT id, fingerprint, request_json, result_zst, cached, recorded_at
		FROM requests`
	var args []any
	if filter.Requester != "" {
		query += " WHERE requester = ?"
		args = append(args, filter.Requester)
	}
	query += " ORDER BY recorded_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying requests: %w", err)
	}
	defer rows.Close()

	var records []domain.RequestRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating requests: %w", err)
	}
	return records, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *requestStore) scanRecord(row scanner) (*domain.RequestRecord, error) {
	var (
		rec        domain.RequestRecord
		fp         string
		reqJSON    string
		result     []byte
		cached     int
		recordedAt sql.NullString
	)
	if err := row.Scan(&rec.ID, &fp, &reqJSON, &result, &cached, &recordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning request: %w", err)
	}

	if err := json.Unmarshal([]byte(reqJSON), &rec.Request); err != nil {
		return nil, fmt.Errorf("unmarshalling request %s: %w", rec.ID, err)
	}
	rs, err := s.store.decompressResult(result)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", rec.ID, err)
	}
	rec.Fingerprint = domain.Fingerprint(fp)
	rec.Result = rs
	rec.Cached = cached == 1
	rec.RecordedAt = parseNullableTime(recordedAt)
	return &rec, nil
}

// compressResult encodes a result set as zstd-compressed JSON.
// A nil result is stored as NULL.
func (s *Store) compressResult(rs *domain.ResultSet) (any, error) {
	if rs == nil {
		return nil, nil
	}
	raw, err := json.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("marshalling result: %w", err)
	}
	return s.enc.EncodeAll(raw, nil), nil
}

func (s *Store) decompressResult(data []byte) (*domain.ResultSet, error) {
	if len(data) == 0 {
		return nil, nil
	}
	raw, err := s.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing result: %w", err)
	}
	var rs domain.ResultSet
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("unmarshalling result: %w", err)
	}
	return &rs, nil
}
