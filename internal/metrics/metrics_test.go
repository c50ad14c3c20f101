package metrics

import (
	"errors"
	"testing"
	"time"
)

// recordingBackend captures calls for assertions.
type recordingBackend struct {
	counters   map[string]float64
	labels     map[string]Labels
	histograms map[string][]float64
	flushed    int
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{
		counters:   map[string]float64{},
		labels:     map[string]Labels{},
		histograms: map[string][]float64{},
	}
}

func (r *recordingBackend) IncCounter(name string, delta float64, labels Labels) {
	r.counters[name] += delta
	r.labels[name] = labels
}

func (r *recordingBackend) ObserveHistogram(name string, value float64, labels Labels) {
	r.histograms[name] = append(r.histograms[name], value)
	r.labels[name] = labels
}

func (r *recordingBackend) Flush() error {
	r.flushed++
	return nil
}

// swapBackend installs b for the duration of the test.
func swapBackend(t *testing.T, b Backend) {
	t.Helper()
	old := backend
	backend = b
	t.Cleanup(func() { backend = old })
}

func TestNopBackendIsSafe(t *testing.T) {
	swapBackend(t, nopBackend{})
	RecordPoints("j", "read", 10)
	RecordBatches("j", 1)
	RecordRun("j", nil, time.Second)
	if err := Flush(); err != nil {
		t.Fatalf("Flush = %v, want nil", err)
	}
}

func TestSetBackendNilKeepsCurrent(t *testing.T) {
	rec := newRecordingBackend()
	swapBackend(t, rec)

	SetBackend(nil)
	RecordBatches("j", 1)
	if rec.counters["laspipe_batches_total"] != 1 {
		t.Fatalf("SetBackend(nil) replaced the backend")
	}
}

func TestRecordPoints(t *testing.T) {
	rec := newRecordingBackend()
	swapBackend(t, rec)

	RecordPoints("crop", "read", 250)
	RecordPoints("crop", "read", 50)

	if got := rec.counters["laspipe_points_total"]; got != 300 {
		t.Fatalf("points counter = %v, want 300", got)
	}
	lbls := rec.labels["laspipe_points_total"]
	if lbls["job"] != "crop" || lbls["kind"] != "read" {
		t.Fatalf("labels = %v, want job=crop kind=read", lbls)
	}
}

func TestRecordPointsIgnoresNonPositive(t *testing.T) {
	rec := newRecordingBackend()
	swapBackend(t, rec)

	RecordPoints("j", "read", 0)
	RecordPoints("j", "read", -5)
	RecordBatches("j", 0)

	if len(rec.counters) != 0 {
		t.Fatalf("non-positive deltas were recorded: %v", rec.counters)
	}
}

func TestRecordRun(t *testing.T) {
	rec := newRecordingBackend()
	swapBackend(t, rec)

	RecordRun("crop", nil, 2*time.Second)
	if rec.labels["laspipe_runs_total"]["status"] != "success" {
		t.Fatalf("status = %v, want success", rec.labels["laspipe_runs_total"])
	}
	if got := rec.histograms["laspipe_run_duration_seconds"]; len(got) != 1 || got[0] != 2 {
		t.Fatalf("duration observations = %v, want [2]", got)
	}

	RecordRun("crop", errors.New("boom"), time.Second)
	if rec.labels["laspipe_runs_total"]["status"] != "failure" {
		t.Fatalf("status = %v, want failure", rec.labels["laspipe_runs_total"])
	}
	if rec.counters["laspipe_runs_total"] != 2 {
		t.Fatalf("runs counter = %v, want 2", rec.counters["laspipe_runs_total"])
	}
}

func TestFlushDelegates(t *testing.T) {
	rec := newRecordingBackend()
	swapBackend(t, rec)

	if err := Flush(); err != nil {
		t.Fatalf("Flush = %v", err)
	}
	if rec.flushed != 1 {
		t.Fatalf("flushed = %d, want 1", rec.flushed)
	}
}
