package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatalf("Open(empty path) = nil, want error")
	}
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)

	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	first := Run{
		Job:      "crop",
		Started:  started,
		Duration: 1500 * time.Millisecond,
		Sources:  2,
		Read:     1000,
		Written:  400,
		Sinks: []SinkResult{
			{Name: "out/a.las", Written: 250, Digest: "00000000deadbeef"},
			{Name: "out/b.las", Written: 150, Digest: "00000000cafef00d"},
		},
	}
	if err := c.RecordRun(ctx, first); err != nil {
		t.Fatalf("RecordRun = %v", err)
	}
	second := Run{
		Job:     "crop",
		Started: started.Add(time.Hour),
		Err:     errors.New("source open failed"),
	}
	if err := c.RecordRun(ctx, second); err != nil {
		t.Fatalf("RecordRun = %v", err)
	}

	runs, err := c.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}

	// Newest first.
	if runs[0].Err == nil || runs[0].Err.Error() != "source open failed" {
		t.Fatalf("runs[0].Err = %v, want the recorded failure", runs[0].Err)
	}
	got := runs[1]
	if got.Err != nil {
		t.Fatalf("runs[1].Err = %v, want nil", got.Err)
	}
	if got.Job != "crop" || got.Sources != 2 || got.Read != 1000 || got.Written != 400 {
		t.Fatalf("run row = %+v", got)
	}
	if !got.Started.Equal(started) {
		t.Fatalf("Started = %v, want %v", got.Started, started)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Fatalf("Duration = %v, want 1.5s", got.Duration)
	}
	if len(got.Sinks) != 2 || got.Sinks[0].Name != "out/a.las" || got.Sinks[0].Written != 250 {
		t.Fatalf("sinks = %+v", got.Sinks)
	}
	if got.Sinks[1].Digest != "00000000cafef00d" {
		t.Fatalf("sink digest = %q", got.Sinks[1].Digest)
	}
}

func TestRecentLimit(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)

	for i := 0; i < 5; i++ {
		if err := c.RecordRun(ctx, Run{Job: "j", Started: time.Now()}); err != nil {
			t.Fatalf("RecordRun = %v", err)
		}
	}
	runs, err := c.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
}
