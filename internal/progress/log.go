package progress

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// LogManager implements Manager with throttled log lines for non-TTY
// environments such as CI or scheduled jobs.
type LogManager struct {
	log      zerolog.Logger
	interval time.Duration
}

// NewLogManager creates a log-based progress manager that reports at most
// once per interval per tracker.
func NewLogManager(log zerolog.Logger, interval time.Duration) *LogManager {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	return &LogManager{log: log, interval: interval}
}

func (m *LogManager) NewTracker(name string, total int64) Tracker {
	t := &logTracker{mgr: m, name: name, start: time.Now()}
	t.total.Store(total)
	t.lastLog.Store(time.Now().UnixNano())
	return t
}

func (m *LogManager) Wait() {}

type logTracker struct {
	mgr     *LogManager
	name    string
	start   time.Time
	current atomic.Int64
	total   atomic.Int64
	lastLog atomic.Int64 // unix nanos
}

func (t *logTracker) Increment(n int64) {
	cur := t.current.Add(n)
	now := time.Now().UnixNano()
	last := t.lastLog.Load()
	if time.Duration(now-last) < t.mgr.interval || !t.lastLog.CompareAndSwap(last, now) {
		return
	}
	total := t.total.Load()
	ev := t.mgr.log.Info().Str("phase", t.name).Int64("done", cur)
	if total > 0 {
		ev = ev.Int64("total", total).Float64("pct", float64(cur)/float64(total)*100)
	}
	ev.Msg("progress")
}

func (t *logTracker) SetTotal(total int64) {
	t.total.Store(total)
}

func (t *logTracker) Done() {
	t.mgr.log.Info().
		Str("phase", t.name).
		Int64("done", t.current.Load()).
		Str("duration", time.Since(t.start).Truncate(time.Millisecond).String()).
		Msg("phase finished")
}
