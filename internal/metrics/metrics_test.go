package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

// counterValue sums every series of the named counter family.
func counterValue(m *Manager, name string) float64 {
	families, err := m.Gatherer().Gather()
	if err != nil {
		return -1
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestManager(t *testing.T) {
	Convey("Given a metrics manager on its own registry", t, func() {
		m := NewManager(WithRegistry(prometheus.NewRegistry()), WithConstLabels(map[string]string{"model_version": "2025-sample"}))

		Convey("When members are scored and skipped", func() {
			m.RecordScored("Adult", 1.2, time.Millisecond)
			m.RecordScored("Child", 0.4, time.Millisecond)
			m.RecordSkipped()
			m.RecordFinding("unmapped_diagnosis")
			m.RecordWritten(2)

			Convey("Then the counters reflect them", func() {
				So(counterValue(m, "hcc_scoring_members_scored_total"), ShouldEqual, 2)
				So(counterValue(m, "hcc_scoring_members_skipped_total"), ShouldEqual, 1)
				So(counterValue(m, "hcc_scoring_findings_total"), ShouldEqual, 1)
				So(counterValue(m, "hcc_scoring_records_written_total"), ShouldEqual, 2)
			})
		})

		Convey("When the textfile is written", func() {
			m.ObservePhase("score", 2*time.Second)
			m.RecordRun("scoring", "success")
			path := filepath.Join(t.TempDir(), "hcc.prom")
			err := m.WriteTextfile(path)

			Convey("Then it holds the exposition text", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `hcc_scoring_phase_duration_seconds{model_version="2025-sample",phase="score"} 2`)
				So(strings.Contains(string(data), "hcc_scoring_runs_total"), ShouldBeTrue)
			})
		})
	})

	Convey("Given a disabled manager", t, func() {
		m := NewManager(WithMetricsEnabled(false))
		m.RecordScored("Adult", 1, time.Millisecond)

		Convey("Then nothing is recorded", func() {
			So(counterValue(m, "hcc_scoring_members_scored_total"), ShouldEqual, 0)
		})
	})

	Convey("Given a nil manager", t, func() {
		var m *Manager

		Convey("Then recording is a no-op", func() {
			So(func() {
				m.RecordScored("Adult", 1, time.Millisecond)
				m.RecordSkipped()
				m.ObserveCrossValDelta(-0.5)
			}, ShouldNotPanic)
			So(m.WriteTextfile("ignored"), ShouldBeNil)
		})
	})
}
