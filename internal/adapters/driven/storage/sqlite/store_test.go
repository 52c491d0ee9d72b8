package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testRecord(requester string, at time.Time) *domain.RequestRecord {
	msg := domain.RawMessage{Channel: "golang", ID: 42, Text: "go 1.23 released", PostedAt: base}
	m, _ := domain.NewMatchedMessage(msg, []string{"go"}, "go 1.23 released")
	return &domain.RequestRecord{
		Fingerprint: "abc123",
		Request: domain.SearchRequest{
			Keywords:   []string{"go"},
			Channels:   []string{"golang"},
			MaxResults: 50,
			Requester:  requester,
		},
		Result: &domain.ResultSet{
			Fingerprint: "abc123",
			Matches:     []domain.MatchedMessage{m},
			FetchedAt:   base,
			Channels:    []domain.ChannelStatus{{Channel: "golang", Scanned: 10, Matched: 1, Complete: true}},
		},
		RecordedAt: at,
	}
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, "chanscout.db"), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	rec := testRecord("alice", base)
	require.NoError(t, store.RequestStore().Record(ctx, rec))
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.RequestStore().Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	var versions int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 2, versions, "migrations applied once")
}

func TestRequestStore_RecordAndGet(t *testing.T) {
	store := setupTestStore(t)
	requests := store.RequestStore()
	ctx := context.Background()
	rec := testRecord("alice", time.Time{})
	rec.Cached = true

	require.NoError(t, requests.Record(ctx, rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.RecordedAt.IsZero())

	got, err := requests.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Fingerprint("abc123"), got.Fingerprint)
	assert.Equal(t, rec.Request, got.Request)
	assert.True(t, got.Cached)
	assert.True(t, rec.RecordedAt.Equal(got.RecordedAt))

	require.NotNil(t, got.Result)
	require.Len(t, got.Result.Matches, 1)
	m := got.Result.Matches[0]
	assert.Equal(t, "golang", m.Channel)
	assert.Equal(t, int64(42), m.ID)
	assert.Equal(t, []string{"go"}, m.Keywords)
	assert.Equal(t, "https://t.me/golang/42", m.Link)
	assert.True(t, base.Equal(m.PostedAt))
	assert.Equal(t, rec.Result.Channels, got.Result.Channels)
}

func TestRequestStore_NilResult(t *testing.T) {
	store := setupTestStore(t)
	requests := store.RequestStore()
	ctx := context.Background()
	rec := testRecord("", base)
	rec.Result = nil

	require.NoError(t, requests.Record(ctx, rec))

	got, err := requests.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Result)
}

func TestRequestStore_GetNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.RequestStore().Get(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestStore_List(t *testing.T) {
	store := setupTestStore(t)
	requests := store.RequestStore()
	ctx := context.Background()

	require.NoError(t, requests.Record(ctx, testRecord("alice", base)))
	require.NoError(t, requests.Record(ctx, testRecord("bob", base.Add(500*time.Millisecond))))
	require.NoError(t, requests.Record(ctx, testRecord("alice", base.Add(time.Second))))

	tests := []struct {
		name   string
		filter domain.HistoryFilter
		want   []string
	}{
		{"all, newest first", domain.HistoryFilter{}, []string{"alice", "bob", "alice"}},
		{"by requester", domain.HistoryFilter{Requester: "bob"}, []string{"bob"}},
		{"limit", domain.HistoryFilter{Limit: 2}, []string{"alice", "bob"}},
		{"unknown requester", domain.HistoryFilter{Requester: "carol"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := requests.List(ctx, tt.filter)
			require.NoError(t, err)
			var got []string
			for _, r := range recs {
				got = append(got, r.Request.Requester)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	recs, err := requests.List(ctx, domain.HistoryFilter{})
	require.NoError(t, err)
	assert.True(t, base.Add(time.Second).Equal(recs[0].RecordedAt))
	assert.True(t, base.Add(500*time.Millisecond).Equal(recs[1].RecordedAt), "sub-second order kept")
}

func TestWatchStore_SaveAndGet(t *testing.T) {
	store := setupTestStore(t)
	watches := store.WatchStore()
	ctx := context.Background()
	w := &domain.Watch{
		ID:        "w1",
		Name:      "releases",
		Keywords:  []string{"release", "go"},
		Channels:  []string{"golang"},
		Interval:  10 * time.Minute,
		LastRun:   base,
		NextRun:   base.Add(10 * time.Minute),
		LastError: "boom",
		Enabled:   true,
	}

	require.NoError(t, watches.SaveWatch(ctx, w))

	got, err := watches.GetWatch(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, w.Name, got.Name)
	assert.Equal(t, w.Keywords, got.Keywords)
	assert.Equal(t, w.Channels, got.Channels)
	assert.Equal(t, w.Interval, got.Interval)
	assert.True(t, w.LastRun.Equal(got.LastRun))
	assert.True(t, w.NextRun.Equal(got.NextRun))
	assert.Equal(t, "boom", got.LastError)
	assert.True(t, got.Enabled)

	w.LastError = ""
	w.Enabled = false
	require.NoError(t, watches.SaveWatch(ctx, w))
	got, err = watches.GetWatch(ctx, "w1")
	require.NoError(t, err)
	assert.Empty(t, got.LastError)
	assert.False(t, got.Enabled)
}

func TestWatchStore_GetMissing(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.WatchStore().GetWatch(context.Background(), "nope")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWatchStore_ListOrderedByName(t *testing.T) {
	store := setupTestStore(t)
	watches := store.WatchStore()
	ctx := context.Background()
	for id, name := range map[string]string{"1": "zeta", "2": "alpha", "3": "mid"} {
		require.NoError(t, watches.SaveWatch(ctx, &domain.Watch{ID: id, Name: name, Keywords: []string{"go"}, Channels: []string{"c1"}}))
	}

	list, err := watches.ListWatches(ctx)

	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "mid", list[1].Name)
	assert.Equal(t, "zeta", list[2].Name)
}

func TestWatchStore_Watermarks(t *testing.T) {
	store := setupTestStore(t)
	watches := store.WatchStore()
	ctx := context.Background()
	require.NoError(t, watches.SaveWatch(ctx, &domain.Watch{ID: "w1", Name: "w", Keywords: []string{"go"}, Channels: []string{"c1"}}))

	marks, err := watches.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Empty(t, marks)

	require.NoError(t, watches.Save(ctx, "w1", domain.Watermarks{"c1": 10, "c2": 4}))
	require.NoError(t, watches.Save(ctx, "w1", domain.Watermarks{"c1": 12}))

	marks, err = watches.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, domain.Watermarks{"c1": 12}, marks)

	require.NoError(t, watches.Save(ctx, "ghost", domain.Watermarks{"c1": 1}))
	marks, err = watches.Get(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, marks, "marks of unknown watches are dropped")
}

func TestWatchStore_DeleteCascades(t *testing.T) {
	store := setupTestStore(t)
	watches := store.WatchStore()
	ctx := context.Background()
	require.NoError(t, watches.SaveWatch(ctx, &domain.Watch{ID: "w1", Name: "w", Keywords: []string{"go"}, Channels: []string{"c1"}}))
	require.NoError(t, watches.Save(ctx, "w1", domain.Watermarks{"c1": 10}))

	require.NoError(t, watches.DeleteWatch(ctx, "w1"))

	marks, err := watches.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Empty(t, marks)
	assert.ErrorIs(t, watches.DeleteWatch(ctx, "w1"), domain.ErrWatchNotFound)
}

func TestWatchStore_UpdateSchedule(t *testing.T) {
	store := setupTestStore(t)
	watches := store.WatchStore()
	ctx := context.Background()
	require.NoError(t, watches.SaveWatch(ctx, &domain.Watch{ID: "w1", Name: "w", Keywords: []string{"go"}, Channels: []string{"c1"}, Enabled: true}))

	require.NoError(t, watches.UpdateSchedule(ctx, "w1", base, base.Add(time.Hour), "flood"))

	got, err := watches.GetWatch(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, base.Equal(got.LastRun))
	assert.True(t, base.Add(time.Hour).Equal(got.NextRun))
	assert.Equal(t, "flood", got.LastError)
	assert.Equal(t, []string{"go"}, got.Keywords)
	assert.True(t, got.Enabled)
}

func TestWatchStore_UpdateScheduleMissing(t *testing.T) {
	store := setupTestStore(t)
	watches := store.WatchStore()
	ctx := context.Background()

	err := watches.UpdateSchedule(ctx, "gone", base, base, "")

	assert.ErrorIs(t, err, domain.ErrWatchNotFound)
	got, err := watches.GetWatch(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, got, "no row is created")
}
