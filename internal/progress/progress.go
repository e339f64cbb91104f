package progress

import (
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Tracker tracks progress for a single phase. Increment is safe for
// concurrent use by scoring workers.
type Tracker interface {
	Increment(n int64)
	SetTotal(total int64)
	Done()
}

// Manager creates trackers for pipeline phases.
type Manager interface {
	NewTracker(name string, total int64) Tracker
	Wait()
}

// MPBManager implements Manager using the mpb multi-progress-bar library.
type MPBManager struct {
	container *mpb.Progress
	mu        sync.Mutex
}

// NewMPBManager creates a new mpb-based progress manager.
func NewMPBManager() *MPBManager {
	p := mpb.New(mpb.WithWidth(60))
	return &MPBManager{container: p}
}

// NewTracker adds a bar for a phase with a known number of steps.
func (m *MPBManager) NewTracker(name string, total int64) Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()

	bar := m.container.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name+" ", decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Name(" "),
			decor.AverageSpeed(0, "%.0f/s"),
		),
	)
	return &mpbTracker{bar: bar}
}

// Wait waits for all progress bars to finish.
func (m *MPBManager) Wait() {
	m.container.Wait()
}

type mpbTracker struct {
	bar *mpb.Bar
}

func (t *mpbTracker) Increment(n int64) {
	t.bar.IncrInt64(n)
}

func (t *mpbTracker) SetTotal(total int64) {
	t.bar.SetTotal(total, false)
}

func (t *mpbTracker) Done() {
	t.bar.SetTotal(-1, true)
}

// NoopManager is a no-op progress manager for non-interactive use.
type NoopManager struct{}

func (NoopManager) NewTracker(string, int64) Tracker { return noopTracker{} }
func (NoopManager) Wait()                            {}

type noopTracker struct{}

func (noopTracker) Increment(int64) {}
func (noopTracker) SetTotal(int64)  {}
func (noopTracker) Done()           {}
