package config

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPipelineDecode(t *testing.T) {
	raw := `{
		"job": "crop",
		"source": { "path": "scans/" },
		"filters": [
			{ "kind": "bounds",
			  "options": { "min_x": 1, "max_x": 2.5, "strict": true, "classes": [2, 6] },
			  "sink": { "kind": "file", "path": "out/a.las" } },
			{ "kind": "all",
			  "sink": { "kind": "postgres", "db": { "dsn": "postgresql://x", "table": "public.pts", "auto_create_table": true } } }
		],
		"strip_extra": true,
		"runtime": { "reader_workers": 2, "chunk_size": 5000, "channel_buffer": 4 },
		"catalog": "runs.db"
	}`

	var p Pipeline
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("Unmarshal = %v", err)
	}

	if p.Job != "crop" || p.Source.Path != "scans/" {
		t.Fatalf("job/source = %q/%q, want crop/scans/", p.Job, p.Source.Path)
	}
	if len(p.Filters) != 2 {
		t.Fatalf("len(filters) = %d, want 2", len(p.Filters))
	}
	if !p.StripExtra {
		t.Fatalf("StripExtra = false, want true")
	}
	if p.Runtime.ChunkSize != 5000 || p.Runtime.ReaderWorkers != 2 || p.Runtime.ChannelBuffer != 4 {
		t.Fatalf("runtime = %+v", p.Runtime)
	}
	if p.Catalog != "runs.db" {
		t.Fatalf("Catalog = %q, want runs.db", p.Catalog)
	}

	opts := p.Filters[0].Options
	if got := opts.Float("min_x", 0); got != 1 {
		t.Fatalf("Float(min_x) = %v, want 1", got)
	}
	if got := opts.Float("max_x", 0); got != 2.5 {
		t.Fatalf("Float(max_x) = %v, want 2.5", got)
	}
	if !opts.Bool("strict", false) {
		t.Fatalf("Bool(strict) = false, want true")
	}
	if got := opts.IntSlice("classes"); !reflect.DeepEqual(got, []int{2, 6}) {
		t.Fatalf("IntSlice(classes) = %v, want [2 6]", got)
	}

	db := p.Filters[1].Sink.DB
	if db.DSN != "postgresql://x" || db.Table != "public.pts" || !db.AutoCreateTable {
		t.Fatalf("db = %+v", db)
	}
}

func TestOptionsMissingIsNotNil(t *testing.T) {
	var f Filter
	if err := json.Unmarshal([]byte(`{"kind": "all"}`), &f); err != nil {
		t.Fatalf("Unmarshal = %v", err)
	}
	if f.Options == nil {
		// json leaves absent fields at their zero value; a nil Options map
		// must still be safe to query.
		if got := f.Options.String("k", "d"); got != "d" {
			t.Fatalf("String on nil = %q, want d", got)
		}
	}

	if err := json.Unmarshal([]byte(`{"kind": "all", "options": null}`), &f); err != nil {
		t.Fatalf("Unmarshal(null options) = %v", err)
	}
	if f.Options == nil {
		t.Fatalf("Options = nil after null, want empty map")
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{"n": float64(3), "s": "x"}
	if got := o.Int("n", 0); got != 3 {
		t.Fatalf("Int(n) = %d, want 3", got)
	}
	if got := o.Int("missing", 7); got != 7 {
		t.Fatalf("Int(missing) = %d, want 7", got)
	}
	if got := o.Int("s", 7); got != 7 {
		t.Fatalf("Int(wrong type) = %d, want 7", got)
	}
	if got := o.String("s", ""); got != "x" {
		t.Fatalf("String(s) = %q, want x", got)
	}
	if !o.Has("n") || o.Has("missing") {
		t.Fatalf("Has misreports presence")
	}
}

func TestMarshalConfigRoundTrip(t *testing.T) {
	p := Pipeline{
		Job:    "rt",
		Source: Source{Path: "in.las"},
		Filters: []Filter{{
			Kind:    "intensity",
			Options: Options{"min": float64(50)},
			Sink:    Sink{Kind: "file", Path: "out.las"},
		}},
	}
	b, err := MarshalConfig(p)
	if err != nil {
		t.Fatalf("MarshalConfig = %v", err)
	}
	var back Pipeline
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal = %v", err)
	}
	if back.Job != p.Job || back.Filters[0].Options.Int("min", 0) != 50 {
		t.Fatalf("round trip changed pipeline: %+v", back)
	}
}
