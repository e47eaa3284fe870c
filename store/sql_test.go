package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	defense "github.com/jassus213/go-defense"
)

func newTestSQLite(t *testing.T, opts ...Option) *SQLStore {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "defense.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLStore(t *testing.T) {
	testCounterStore(t, func(t *testing.T) (defense.CounterStore, func(time.Duration)) {
		clock := newFakeClock()
		return newTestSQLite(t, WithClock(clock.Now)), clock.Advance
	})
}

func TestSQLStore_MigrateIsIdempotent(t *testing.T) {
	st := newTestSQLite(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	st := newTestSQLite(t, WithClock(clock.Now))

	_, err := st.Increase(ctx, "short", 1, time.Second)
	require.NoError(t, err)
	_, err = st.Increase(ctx, "forever", 1, 0)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "long", 5, time.Hour))

	clock.Advance(time.Minute)
	removed, err := st.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	var rows int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM defense_counters`).Scan(&rows))
	assert.Equal(t, 2, rows)
}

func TestSQLStore_MalformedValueIsProtocolError(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)
	_, err := st.db.ExecContext(ctx, `INSERT INTO defense_counters (counter_key, value, expires_at) VALUES ('k', 'abc', 0)`)
	require.NoError(t, err)

	_, _, err = st.Get(ctx, "k")
	assert.ErrorIs(t, err, defense.ErrBackendProtocol)
}

func TestSQLStore_ClosedDatabaseIsUnavailable(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)
	require.NoError(t, st.Close())

	_, err := st.Increase(ctx, "k", 1, time.Minute)
	assert.ErrorIs(t, err, defense.ErrBackendUnavailable)
	_, _, err = st.Get(ctx, "k")
	assert.ErrorIs(t, err, defense.ErrBackendUnavailable)
	assert.ErrorIs(t, st.Remove(ctx, "k"), defense.ErrBackendUnavailable)
	_, err = st.Sweep(ctx)
	assert.ErrorIs(t, err, defense.ErrBackendUnavailable)

	reached, err := defense.NewSimple(st, "k", 1, time.Minute).Reach(ctx)
	assert.NoError(t, err)
	assert.False(t, reached)
}

func TestSQLStore_RunSweeperStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := newTestSQLite(t)

	done := make(chan struct{})
	go func() {
		st.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSQLStore_ExpiredDeadlineIsUnavailable(t *testing.T) {
	st := newTestSQLite(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := st.Increase(ctx, "k", 1, time.Minute)
	assert.ErrorIs(t, err, defense.ErrBackendUnavailable)

	reached, err := defense.NewSimple(st, "k", 1, time.Minute).Reach(ctx)
	assert.NoError(t, err)
	assert.False(t, reached)
}

func TestSQLStore_CallerCancellationPropagates(t *testing.T) {
	st := newTestSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := st.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, defense.IsBackendError(err))
}
