package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

func TestWatchStore_SaveGetList(t *testing.T) {
	store := NewWatchStore()
	ctx := context.Background()

	require.NoError(t, store.SaveWatch(ctx, &domain.Watch{ID: "2", Name: "zeta", Keywords: []string{"go"}, Enabled: true}))
	require.NoError(t, store.SaveWatch(ctx, &domain.Watch{ID: "1", Name: "alpha", Interval: time.Minute}))

	got, err := store.GetWatch(ctx, "2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "zeta", got.Name)
	assert.True(t, got.Enabled)

	missing, err := store.GetWatch(ctx, "3")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := store.ListWatches(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)
}

func TestWatchStore_SaveCopies(t *testing.T) {
	store := NewWatchStore()
	ctx := context.Background()
	w := &domain.Watch{ID: "1", Name: "w", Keywords: []string{"go"}}
	require.NoError(t, store.SaveWatch(ctx, w))

	w.Keywords[0] = "rust"
	got, err := store.GetWatch(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, got.Keywords)
}

func TestWatchStore_Delete(t *testing.T) {
	store := NewWatchStore()
	ctx := context.Background()
	require.NoError(t, store.SaveWatch(ctx, &domain.Watch{ID: "1"}))
	require.NoError(t, store.Save(ctx, "1", domain.Watermarks{"c1": 10}))

	require.NoError(t, store.DeleteWatch(ctx, "1"))

	marks, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, marks)
	assert.ErrorIs(t, store.DeleteWatch(ctx, "1"), domain.ErrWatchNotFound)
}

func TestWatchStore_Watermarks(t *testing.T) {
	store := NewWatchStore()
	ctx := context.Background()

	marks, err := store.Get(ctx, "w")
	require.NoError(t, err)
	assert.Empty(t, marks)

	saved := domain.Watermarks{"c1": 10, "c2": 3}
	require.NoError(t, store.Save(ctx, "w", saved))
	saved["c1"] = 99

	marks, err = store.Get(ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, domain.Watermarks{"c1": 10, "c2": 3}, marks)

	marks["c2"] = 50
	again, err := store.Get(ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, int64(3), again["c2"])

	require.NoError(t, store.Save(ctx, "w", nil))
	marks, err = store.Get(ctx, "w")
	require.NoError(t, err)
	assert.Empty(t, marks)
}

func TestWatchStore_UpdateSchedule(t *testing.T) {
	store := NewWatchStore()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveWatch(ctx, &domain.Watch{ID: "1", Name: "w", Keywords: []string{"go"}, Enabled: true}))

	require.NoError(t, store.UpdateSchedule(ctx, "1", now, now.Add(time.Minute), "boom"))

	got, err := store.GetWatch(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, now, got.LastRun)
	assert.Equal(t, now.Add(time.Minute), got.NextRun)
	assert.Equal(t, "boom", got.LastError)
	assert.Equal(t, []string{"go"}, got.Keywords)

	assert.ErrorIs(t, store.UpdateSchedule(ctx, "2", now, now, ""), domain.ErrWatchNotFound)
	missing, err := store.GetWatch(ctx, "2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
