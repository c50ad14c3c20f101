package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"laspipe/internal/metrics"
)

// DefaultInterval is the monitor's tick interval.
const DefaultInterval = time.Second

// Monitor periodically snapshots the run's counters and emits one status
// line per tick: records read/written since the last tick, percent complete,
// instantaneous rate, and an hh:mm:ss estimate of time remaining.
//
// The monitor is observational only: it never blocks pipeline progress and
// never terminates the run. When nothing moved during a tick it emits an
// idle notice and keeps going.
type Monitor struct {
	counters *Counters
	interval time.Duration
	job      string
	logf     func(format string, args ...any)

	last Snapshot
}

// NewMonitor returns a monitor over c ticking at interval (DefaultInterval
// when zero). Status lines go through log.Printf unless logf is replaced.
func NewMonitor(c *Counters, interval time.Duration, job string) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		counters: c,
		interval: interval,
		job:      job,
		logf:     log.Printf,
	}
}

// Run ticks until ctx is canceled. It is started as a background goroutine
// by the orchestrator and is not waited on; cancellation of the run context
// is what stops it.
func (m *Monitor) Run(ctx context.Context) {
	tick := time.NewTicker(m.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			m.logf("%s", m.tick(m.interval))
		}
	}
}

// tick advances the monitor by one interval and returns the status line.
// Split out from Run so the arithmetic (and its zero guards) is testable
// without timers.
func (m *Monitor) tick(elapsed time.Duration) string {
	cur := m.counters.Snapshot()
	readDelta := cur.Read - m.last.Read
	writtenDelta := cur.Written - m.last.Written
	m.last = cur

	metrics.RecordPoints(m.job, "read", readDelta)
	metrics.RecordPoints(m.job, "written", writtenDelta)

	if readDelta == 0 && writtenDelta == 0 {
		return fmt.Sprintf("monitor: no records read or written in the last %s", elapsed)
	}

	// Every division below is guarded: a zero total, zero elapsed time, or
	// zero rate skips the derived figure instead of faulting.
	percent := "?"
	if cur.ToRead > 0 {
		percent = fmt.Sprintf("%.1f%%", 100*float64(cur.Read)/float64(cur.ToRead))
	}

	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(readDelta) / secs
	}

	eta := "?"
	if remaining := cur.ToRead - cur.Read; remaining > 0 && rate > 0 {
		eta = formatETA(time.Duration(float64(remaining)/rate) * time.Second)
	} else if remaining <= 0 {
		eta = formatETA(0)
	}

	return fmt.Sprintf(
		"monitor: read=%d/%d (%s) written=%d left_to_write=%d rate=%.0f/s eta=%s",
		cur.Read, cur.ToRead, percent, cur.Written, cur.ToWrite-cur.Written, rate, eta,
	)
}

// formatETA renders a duration as hh:mm:ss.
func formatETA(d time.Duration) string {
	secs := int64(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
