package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	defense "github.com/jassus213/go-defense"
	"github.com/jassus213/go-defense/store"
)

func newBuilder(t *testing.T) (*Builder, *store.MemoryStore) {
	t.Helper()
	cfg, err := Parse([]byte(lockoutYAML))
	require.NoError(t, err)

	st := store.NewMemory(context.Background(), 0)
	return NewBuilder(cfg, st), st
}

func hit(t *testing.T, c defense.Condition, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		require.NoError(t, c.IncreaseValue(context.Background()))
	}
}

func TestBuilder_TrackedCountsEachCounterOnce(t *testing.T) {
	ctx := context.Background()
	b, st := newBuilder(t)

	hit(t, b.Tracked("1.2.3.4"), 2)

	for _, key := range []string{"login_fail:ip:1.2.3.4", "login_fail:global"} {
		value, ok, err := st.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok, key)
		assert.Equal(t, int64(2), value, key)
	}
	assert.Equal(t, 2, st.Len())
}

func TestBuilder_DefenseFiresInDeclarationOrder(t *testing.T) {
	ctx := context.Background()
	b, _ := newBuilder(t)

	_, fired, err := b.Defense("1.2.3.4").IsConditionReached(ctx)
	require.NoError(t, err)
	assert.False(t, fired)

	hit(t, b.Tracked("1.2.3.4"), 3)

	result, fired, err := b.Defense("1.2.3.4").IsConditionReached(ctx)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, "locked", result)

	// Another subject shares only the global counter.
	_, fired, err = b.Defense("5.6.7.8").IsConditionReached(ctx)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestBuilder_ThrottledAlert(t *testing.T) {
	ctx := context.Background()
	b, _ := newBuilder(t)

	// Five failures spread over distinct subjects trip only the global alert.
	for _, ip := range []string{"a", "b", "c", "d", "e"} {
		hit(t, b.Tracked(ip), 1)
	}

	result, fired, err := b.Defense("a").IsConditionReached(ctx)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, "alert", result)

	_, fired, err = b.Defense("a").IsConditionReached(ctx)
	require.NoError(t, err)
	assert.False(t, fired, "alert is throttled within its window")

	require.NoError(t, b.Reset(ctx, "a"))
	for _, ip := range []string{"f", "g", "h", "i", "j"} {
		hit(t, b.Tracked(ip), 1)
	}
	result, fired, err = b.Defense("a").IsConditionReached(ctx)
	require.NoError(t, err)
	assert.True(t, fired, "Reset clears the throttle")
	assert.Equal(t, "alert", result)
}

func TestBuilder_Reset(t *testing.T) {
	ctx := context.Background()
	b, st := newBuilder(t)

	hit(t, b.Tracked("1.2.3.4"), 3)
	require.NoError(t, b.Reset(ctx, "1.2.3.4"))

	assert.Equal(t, 0, st.Len())
	_, fired, err := b.Defense("1.2.3.4").IsConditionReached(ctx)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestOpenStore_Memory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeFn, err := OpenStore(ctx, StoreConfig{Type: "memory", KeyPrefix: "p:"})
	require.NoError(t, err)
	defer closeFn()

	_, err = st.Increase(ctx, "k", 1, 0)
	require.NoError(t, err)
	value, ok, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), value)
}

func TestOpenStore_Unknown(t *testing.T) {
	_, _, err := OpenStore(context.Background(), StoreConfig{Type: "etcd"})
	assert.Error(t, err)
}

// downStore fails every call with an unavailable backend error.
type downStore struct{}

func (downStore) Increase(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, down("increase")
}

func (downStore) Decrease(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, down("decrease")
}

func (downStore) Get(context.Context, string) (int64, bool, error) { return 0, false, down("get") }

func (downStore) Set(context.Context, string, int64, time.Duration) error { return down("set") }

func (downStore) Remove(context.Context, string) error { return down("remove") }

func down(op string) error {
	return defense.NewBackendError(defense.KindUnavailable, op, "", errors.New("connection refused"))
}

type suppressedKeys struct{ keys []string }

func (o *suppressedKeys) BackendErrorSuppressed(op, key string, err error) {
	o.keys = append(o.keys, op+":"+key)
}

func (o *suppressedKeys) DefenseFired(string) {}

func TestBuilder_ResetSuppressesBackendErrors(t *testing.T) {
	cfg, err := Parse([]byte(lockoutYAML))
	require.NoError(t, err)

	obs := &suppressedKeys{}
	b := NewBuilder(cfg, downStore{}, defense.WithObserver(obs))

	require.NoError(t, b.Reset(context.Background(), "1.2.3.4"))
	assert.Contains(t, obs.keys, "destroy:login_fail:ip:1.2.3.4")
	assert.Contains(t, obs.keys, "destroy:alert:1.2.3.4")
}
