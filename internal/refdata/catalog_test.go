package refdata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingLoader struct {
	inner Loader
	calls atomic.Int32
	delay time.Duration
}

func (l *countingLoader) LoadTables(ctx context.Context, version string) (*Tables, error) {
	l.calls.Add(1)
	time.Sleep(l.delay)
	return l.inner.LoadTables(ctx, version)
}

func TestCatalog_Memoizes(t *testing.T) {
	loader := &countingLoader{inner: MapLoader{SampleVersion: SampleTables()}}
	cat := NewCatalog(loader, zerolog.Nop())
	ctx := context.Background()

	first, err := cat.Load(ctx, SampleVersion)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := cat.Load(ctx, SampleVersion)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first != second {
		t.Error("second Load should return the cached set")
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}

	cat.Invalidate()
	third, err := cat.Load(ctx, SampleVersion)
	if err != nil {
		t.Fatalf("Load after Invalidate: %v", err)
	}
	if third == first {
		t.Error("Invalidate should force a fresh set")
	}
	if n := loader.calls.Load(); n != 2 {
		t.Errorf("loader called %d times, want 2", n)
	}
}

func TestCatalog_ConcurrentFirstLoad(t *testing.T) {
	loader := &countingLoader{inner: MapLoader{SampleVersion: SampleTables()}, delay: 50 * time.Millisecond}
	cat := NewCatalog(loader, zerolog.Nop())

	var wg sync.WaitGroup
	sets := make([]*TableSet, 8)
	for i := range sets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts, err := cat.Load(context.Background(), SampleVersion)
			if err != nil {
				t.Errorf("Load: %v", err)
				return
			}
			sets[i] = ts
		}(i)
	}
	wg.Wait()

	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
	for i := 1; i < len(sets); i++ {
		if sets[i] != sets[0] {
			t.Fatalf("caller %d got a different set", i)
		}
	}
}

func TestCatalog_UnknownVersion(t *testing.T) {
	cat := NewCatalog(MapLoader{}, zerolog.Nop())
	_, err := cat.Load(context.Background(), "1999")
	if !errors.Is(err, ErrUnsupportedModelVersion) {
		t.Fatalf("expected ErrUnsupportedModelVersion, got %v", err)
	}
}

func TestCatalog_InvalidTablesNotCached(t *testing.T) {
	bad := SampleTables()
	bad.Hierarchy = append(bad.Hierarchy, HierarchyRow{Superior: "HHS_HCC010", Inferior: "HHS_HCC008"})
	loader := &countingLoader{inner: MapLoader{"bad": bad}}
	cat := NewCatalog(loader, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := cat.Load(context.Background(), "bad"); !errors.Is(err, ErrInvalidHierarchy) {
			t.Fatalf("attempt %d: expected ErrInvalidHierarchy, got %v", i, err)
		}
	}
	if n := loader.calls.Load(); n != 2 {
		t.Errorf("failed loads should not be cached; loader called %d times", n)
	}
}

// gatedLoader blocks until release is closed and fails if its ctx has ended.
type gatedLoader struct {
	inner   Loader
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (l *gatedLoader) LoadTables(ctx context.Context, version string) (*Tables, error) {
	if l.calls.Add(1) == 1 {
		close(l.started)
	}
	<-l.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.inner.LoadTables(ctx, version)
}

func TestCatalog_CancelledFirstCallerDoesNotFailWaiters(t *testing.T) {
	loader := &gatedLoader{
		inner:   MapLoader{SampleVersion: SampleTables()},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	cat := NewCatalog(loader, zerolog.Nop())

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cat.Load(firstCtx, SampleVersion)
		firstErr <- err
	}()
	<-loader.started

	type result struct {
		ts  *TableSet
		err error
	}
	waiter := make(chan result, 1)
	go func() {
		ts, err := cat.Load(context.Background(), SampleVersion)
		waiter <- result{ts, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: got %v, want context.Canceled", err)
	}
	close(loader.release)

	res := <-waiter
	if res.err != nil || res.ts == nil {
		t.Fatalf("waiter: got %v, want a table set", res.err)
	}
	if _, err := cat.Load(context.Background(), SampleVersion); err != nil {
		t.Fatalf("cached Load: %v", err)
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
}
