package defense_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	defense "github.com/jassus213/go-defense"
	"github.com/jassus213/go-defense/store"
)

func newMemoryStore() *store.MemoryStore {
	return store.NewMemory(context.Background(), 0)
}

// failingStore returns err from every call.
type failingStore struct {
	err error
}

func (s failingStore) Increase(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, s.err
}

func (s failingStore) Decrease(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, s.err
}

func (s failingStore) Get(context.Context, string) (int64, bool, error) {
	return 0, false, s.err
}

func (s failingStore) Set(context.Context, string, int64, time.Duration) error {
	return s.err
}

func (s failingStore) Remove(context.Context, string) error {
	return s.err
}

func unavailable(op string) error {
	return defense.NewBackendError(defense.KindUnavailable, op, "", fmt.Errorf("dial tcp 127.0.0.1:6379: connect: connection refused"))
}

// countingStore counts Get calls per key on top of a real store.
type countingStore struct {
	defense.CounterStore
	mu   sync.Mutex
	gets map[string]int
}

func newCountingStore() *countingStore {
	return &countingStore{CounterStore: newMemoryStore(), gets: make(map[string]int)}
}

func (s *countingStore) Get(ctx context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	s.gets[key]++
	s.mu.Unlock()
	return s.CounterStore.Get(ctx, key)
}

func (s *countingStore) reads(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[key]
}

type recordingObserver struct {
	mu         sync.Mutex
	suppressed []string
	fired      []string
}

func (o *recordingObserver) BackendErrorSuppressed(op, key string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.suppressed = append(o.suppressed, op+":"+key)
}

func (o *recordingObserver) DefenseFired(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fired = append(o.fired, name)
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debugf(format string, args ...interface{}) {}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func increase(ctx context.Context, c defense.Condition, times int) error {
	for i := 0; i < times; i++ {
		if err := c.IncreaseValue(ctx); err != nil {
			return err
		}
	}
	return nil
}

// parkingStore blocks the first call of every caller until release is
// closed, so that concurrent callers all reach the store before any of
// them proceeds. parked must be Add-ed once per caller.
type parkingStore struct {
	defense.CounterStore
	parked  sync.WaitGroup
	release chan struct{}
}

func newParkingStore(callers int) *parkingStore {
	s := &parkingStore{CounterStore: newMemoryStore(), release: make(chan struct{})}
	s.parked.Add(callers)
	return s
}

func (s *parkingStore) park() {
	select {
	case <-s.release:
		return
	default:
	}
	s.parked.Done()
	<-s.release
}

func (s *parkingStore) Increase(ctx context.Context, key string, step int64, timeout time.Duration) (int64, error) {
	s.park()
	return s.CounterStore.Increase(ctx, key, step, timeout)
}

func (s *parkingStore) Get(ctx context.Context, key string) (int64, bool, error) {
	s.park()
	return s.CounterStore.Get(ctx, key)
}
