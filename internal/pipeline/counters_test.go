package pipeline

import (
	"sync"
	"testing"
)

func TestCountersSnapshot(t *testing.T) {
	c := NewCounters(2)
	c.AddToRead(100)
	c.AddRead(40)
	c.AddRouted(0, 30)
	c.AddRouted(1, 10)
	c.AddWritten(0, 25)
	c.AddWritten(1, 10)

	s := c.Snapshot()
	if s.ToRead != 100 || s.Read != 40 {
		t.Fatalf("ToRead/Read = %d/%d, want 100/40", s.ToRead, s.Read)
	}
	if s.ToWrite != 40 {
		t.Fatalf("ToWrite = %d, want 40", s.ToWrite)
	}
	if s.Written != 35 {
		t.Fatalf("Written = %d, want 35", s.Written)
	}
	if got := c.SinkWritten(0); got != 25 {
		t.Fatalf("SinkWritten(0) = %d, want 25", got)
	}
	if got := c.SinkWritten(1); got != 10 {
		t.Fatalf("SinkWritten(1) = %d, want 10", got)
	}
}

func TestCountersConcurrent(t *testing.T) {
	const (
		workers = 8
		perW    = 10_000
	)
	c := NewCounters(1)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perW; i++ {
				c.AddRead(1)
				c.AddRouted(0, 1)
				c.AddWritten(0, 1)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	want := int64(workers * perW)
	if s.Read != want || s.ToWrite != want || s.Written != want {
		t.Fatalf("Read/ToWrite/Written = %d/%d/%d, want %d", s.Read, s.ToWrite, s.Written, want)
	}
}
