package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-timeline/internal/config"
	"ms-timeline/internal/database"
	"ms-timeline/internal/events/db"
	"ms-timeline/internal/models"
)

func setupTestDB(t *testing.T) *db.DB {
	ctx := context.Background()
	bunDB, err := database.Open(ctx, config.DatabaseConfig{URL: "sqlite://:memory:"})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	if err := database.EnsureSchema(ctx, bunDB); err != nil {
		t.Fatalf("Failed to create events table: %v", err)
	}
	t.Cleanup(func() { bunDB.Close() })
	return db.New(bunDB)
}

func newEvent(title string, order int, start time.Time) *models.Event {
	return &models.Event{
		Title:     title,
		EventType: "milestone",
		StartDate: start,
		EndDate:   start.Add(time.Hour),
		Order:     order,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestInsertAndGetByID(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	ev := newEvent("Launch", 1, jan1)
	require.NoError(t, store.Insert(ctx, ev))
	assert.NotZero(t, ev.ID)

	got, err := store.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch", got.Title)
	assert.Equal(t, "milestone", got.EventType)
	assert.True(t, jan1.Equal(got.StartDate))
	assert.True(t, jan1.Add(time.Hour).Equal(got.EndDate))
	assert.Equal(t, 1, got.Order)
	assert.True(t, ev.CreatedAt.Equal(got.CreatedAt))

	_, err = store.GetByID(ctx, ev.ID+100)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestIDsIncrease(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	a := newEvent("a", 1, jan1)
	b := newEvent("b", 2, jan1)
	require.NoError(t, store.Insert(ctx, a))
	require.NoError(t, store.Insert(ctx, b))
	assert.Greater(t, b.ID, a.ID)
}

func TestListOrdersByOrderThenStartDate(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newEvent("late-2", 2, jan1.Add(48*time.Hour))))
	require.NoError(t, store.Insert(ctx, newEvent("early-2", 2, jan1)))
	require.NoError(t, store.Insert(ctx, newEvent("only-1", 1, jan1.Add(72*time.Hour))))
	require.NoError(t, store.Insert(ctx, newEvent("zero", 0, jan1.Add(96*time.Hour))))

	events, err := store.List(ctx)
	require.NoError(t, err)

	var titles []string
	for _, e := range events {
		titles = append(titles, e.Title)
	}
	assert.Equal(t, []string{"zero", "only-1", "early-2", "late-2"}, titles)
}

func TestListEmptyIsNotNil(t *testing.T) {
	store := setupTestDB(t)

	events, err := store.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestUpdate(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	ev := newEvent("Launch", 3, jan1)
	require.NoError(t, store.Insert(ctx, ev))

	ev.Title = "Relaunch"
	ev.EndDate = jan1.Add(24 * time.Hour)
	ev.Order = 99
	require.NoError(t, store.Update(ctx, *ev))

	got, err := store.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Relaunch", got.Title)
	assert.True(t, jan1.Add(24*time.Hour).Equal(got.EndDate))
	assert.Equal(t, 3, got.Order, "update must not touch order")

	missing := *ev
	missing.ID = 4242
	assert.ErrorIs(t, store.Update(ctx, missing), db.ErrNotFound)
}

func TestSetOrderAndDelete(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	ev := newEvent("Launch", 1, jan1)
	require.NoError(t, store.Insert(ctx, ev))

	require.NoError(t, store.SetOrder(ctx, ev.ID, 7))
	got, err := store.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Order)

	require.NoError(t, store.Delete(ctx, ev.ID))
	_, err = store.GetByID(ctx, ev.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, ev.ID), db.ErrNotFound)
	assert.ErrorIs(t, store.SetOrder(ctx, ev.ID, 1), db.ErrNotFound)
}

func TestMaxOrder(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, ok, err := store.MaxOrder(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Insert(ctx, newEvent("a", 4, jan1)))
	require.NoError(t, store.Insert(ctx, newEvent("b", 11, jan1)))
	require.NoError(t, store.Insert(ctx, newEvent("c", 2, jan1)))

	highest, ok, err := store.MaxOrder(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 11, highest)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	ev := newEvent("Launch", 1, jan1)
	require.NoError(t, store.Insert(ctx, ev))

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(ctx context.Context, tx *db.DB) error {
		if err := tx.SetOrder(ctx, ev.ID, 50); err != nil {
			return err
		}
		if err := tx.Insert(ctx, newEvent("ghost", 2, jan1)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	events, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Order)
}

func TestRunInTxCommits(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	err := store.RunInTx(ctx, func(ctx context.Context, tx *db.DB) error {
		if err := tx.LockOrderSequence(ctx); err != nil {
			return err
		}
		return tx.Insert(ctx, newEvent("committed", 1, jan1))
	})
	require.NoError(t, err)

	events, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "committed", events[0].Title)
}

func TestLockOrderSequenceOutsideTx(t *testing.T) {
	store := setupTestDB(t)
	assert.Error(t, store.LockOrderSequence(context.Background()))
}

func TestPing(t *testing.T) {
	store := setupTestDB(t)
	assert.NoError(t, store.Ping(context.Background()))
}
