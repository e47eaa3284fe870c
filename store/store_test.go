package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	defense "github.com/jassus213/go-defense"
)

// fakeClock is a manually advanced clock for the memory and SQL stores.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testCounterStore runs the behaviour every CounterStore must share.
// advance moves the store's notion of time forward.
func testCounterStore(t *testing.T, newStore func(t *testing.T) (defense.CounterStore, func(time.Duration))) {
	ctx := context.Background()

	t.Run("increase counts from zero and expires after timeout", func(t *testing.T) {
		st, advance := newStore(t)

		for i := int64(1); i <= 5; i++ {
			value, err := st.Increase(ctx, "k", 1, time.Minute)
			require.NoError(t, err)
			assert.Equal(t, i, value)
		}

		value, ok, err := st.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(5), value)

		advance(time.Minute)
		_, ok, err = st.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("every write resets the expiry", func(t *testing.T) {
		st, advance := newStore(t)

		_, err := st.Increase(ctx, "k", 1, time.Minute)
		require.NoError(t, err)
		advance(40 * time.Second)
		_, err = st.Decrease(ctx, "k", 1, time.Minute)
		require.NoError(t, err)
		advance(40 * time.Second)

		value, ok, err := st.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(0), value)

		advance(21 * time.Second)
		_, ok, err = st.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("increase after expiry restarts", func(t *testing.T) {
		st, advance := newStore(t)

		_, err := st.Increase(ctx, "k", 7, time.Second)
		require.NoError(t, err)
		advance(2 * time.Second)

		value, err := st.Increase(ctx, "k", 2, time.Second)
		require.NoError(t, err)
		assert.Equal(t, int64(2), value)
	})

	t.Run("decrease goes below zero", func(t *testing.T) {
		st, _ := newStore(t)

		value, err := st.Decrease(ctx, "k", 1, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(-1), value)

		value, err = st.Decrease(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(-4), value)
	})

	t.Run("non-positive timeout never expires", func(t *testing.T) {
		st, advance := newStore(t)

		_, err := st.Increase(ctx, "k", 1, 0)
		require.NoError(t, err)
		require.NoError(t, st.Set(ctx, "s", 9, -time.Second))
		advance(24 * time.Hour)

		value, ok, err := st.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1), value)

		value, ok, err = st.Get(ctx, "s")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(9), value)
	})

	t.Run("set overwrites and remove deletes", func(t *testing.T) {
		st, advance := newStore(t)

		_, err := st.Increase(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		require.NoError(t, st.Set(ctx, "k", 42, time.Second))

		value, ok, err := st.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(42), value)

		advance(time.Second)
		_, ok, err = st.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, st.Set(ctx, "k", 1, time.Minute))
		require.NoError(t, st.Remove(ctx, "k"))
		_, ok, err = st.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, st.Remove(ctx, "missing"))
	})

	t.Run("invalid step", func(t *testing.T) {
		st, _ := newStore(t)

		_, err := st.Increase(ctx, "k", 0, time.Minute)
		assert.ErrorIs(t, err, defense.ErrInvalidStep)
		_, err = st.Decrease(ctx, "k", -1, time.Minute)
		assert.ErrorIs(t, err, defense.ErrInvalidStep)

		_, ok, err := st.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent increases are not lost", func(t *testing.T) {
		st, _ := newStore(t)

		const workers, perWorker = 20, 25
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					_, err := st.Increase(ctx, "k", 1, time.Minute)
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		value, ok, err := st.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(workers*perWorker), value)
	})

	t.Run("simple condition over the store", func(t *testing.T) {
		st, advance := newStore(t)
		c := defense.NewSimple(st, "login_fail:1.2.3.4", 3, time.Minute)

		for i := 0; i < 3; i++ {
			require.NoError(t, c.IncreaseValue(ctx))
		}
		reached, err := c.Reach(ctx)
		require.NoError(t, err)
		assert.True(t, reached)

		advance(time.Minute)
		reached, err = c.Reach(ctx)
		require.NoError(t, err)
		assert.False(t, reached)
	})
}
