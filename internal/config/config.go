// Package config defines the canonical, JSON-serializable configuration model
// for a filtering run. It is intentionally small, explicit, and dependency-
// free so that pipelines can be loaded from disk (or built in code) and passed
// through the program without additional glue.
//
// Design goals:
//
//  1. Stability: changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: field names in Go mirror the JSON structure of pipeline files.
//  3. Minimalism: no third-party config libraries; decoding is performed by
//     the standard library, with a light Options helper for typed access.
//
// Example (trimmed):
//
//	{
//	  "job":    "ruapehu_crop",
//	  "source": { "path": "scans/" },
//	  "filters": [
//	    { "kind": "bounds",
//	      "options": { "min_x": 1821710, "max_x": 1825753 },
//	      "sink": { "kind": "file", "path": "out/crop.las" } }
//	  ],
//	  "runtime": { "chunk_size": 10000 }
//	}
package config

import "encoding/json"

// Pipeline describes one filtering run: where records come from, the ordered
// (filter, sink) pairs they are routed through, and runtime knobs.
type Pipeline struct {
	// Job names the run; it is used for metrics labeling and the run catalog.
	Job string `json:"job"`

	// Source describes where input records come from.
	Source Source `json:"source"`

	// Filters lists the (predicate, sink) pairs. Each record is evaluated
	// against every filter; a record matching several filters is written to
	// each of their sinks.
	Filters []Filter `json:"filters"`

	// StripExtra drops the opaque extra-bytes block from every record written
	// to file sinks, shrinking the output schema to the base point format.
	StripExtra bool `json:"strip_extra"`

	Runtime RuntimeConfig `json:"runtime"`

	// Catalog optionally names a SQLite file recording one row per run.
	Catalog string `json:"catalog,omitempty"`
}

// RuntimeConfig controls concurrency, chunking, and channel buffer sizes.
type RuntimeConfig struct {
	// ReaderWorkers bounds the read pool. Zero means derived from the host:
	// max(1, NumCPU - number of sinks).
	ReaderWorkers int `json:"reader_workers"`

	// ChunkSize is the number of records pulled per read call and the local
	// batch flush threshold. Zero selects the default (10_000).
	ChunkSize int `json:"chunk_size"`

	// ChannelBuffer is the routing channel capacity, in batches, per sink.
	ChannelBuffer int `json:"channel_buffer"`
}

// Source identifies the input. Path may be a single record file or a
// directory; directories are expanded to the record files they contain.
type Source struct {
	Path string `json:"path"`
}

// Filter pairs one predicate with one sink.
type Filter struct {
	// Kind selects the predicate implementation: "all", "none", "bounds",
	// "intensity", "classification".
	Kind string `json:"kind"`

	// Options is a free-form map interpreted by the selected predicate.
	Options Options `json:"options"`

	Sink Sink `json:"sink"`
}

// Sink selects where matched records are written.
type Sink struct {
	// Kind selects the sink implementation: "file" (default) or "postgres".
	Kind string `json:"kind"`

	// Path is the output record file for the "file" kind.
	Path string `json:"path"`

	// DB carries options for the "postgres" kind.
	DB DBConfig `json:"db"`
}

// DBConfig configures a relational sink.
type DBConfig struct {
	// DSN is the connection string for pgxpool (e.g. postgresql://...).
	DSN string `json:"dsn"`

	// Table is the fully qualified destination table (e.g. "public.points").
	Table string `json:"table"`

	// AutoCreateTable creates the destination table if it does not exist.
	AutoCreateTable bool `json:"auto_create_table"`
}

// MarshalConfig renders a pipeline back to indented JSON, e.g. for -dump.
func MarshalConfig(p Pipeline) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It performs only
// minimal type coercion and returns provided defaults when a key is absent or
// of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so this accepts float64 and casts.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Float returns the float64 value for key or def. Integers are widened.
func (o Options) Float(key string, def float64) float64 {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return def
}

// IntSlice returns an []int for key when the value is an array of numbers.
// Returns nil when the key is missing or the value is not an array.
func (o Options) IntSlice(key string) []int {
	v, ok := o[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(arr))
	for _, x := range arr {
		if n, ok := x.(float64); ok {
			out = append(out, int(n))
		}
	}
	return out
}

// Has reports whether key is present at all, letting callers distinguish an
// explicit zero from an absent option.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null
// "options" object decodes to a non-nil, empty Options map. This removes the
// need to nil-check Options at call sites.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
