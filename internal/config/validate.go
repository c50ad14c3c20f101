// Package config provides configuration models and helpers for filtering runs.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "filters[1].sink.path").
// Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// AcceptedExtensions lists the record-file extensions the codec understands,
// for both inputs and file sinks.
var AcceptedExtensions = []string{".las", ".laz"}

// AcceptedExtension reports whether path carries an accepted record-file
// extension.
func AcceptedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range AcceptedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// knownFilterKinds are the predicate kinds with an implementation in
// internal/filter. Unknown kinds are warnings here (forward compatibility);
// filter construction fails hard later.
var knownFilterKinds = map[string]struct{}{
	"all":            {},
	"none":           {},
	"bounds":         {},
	"intensity":      {},
	"classification": {},
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline and performs no I/O. It returns a slice of
// Issue values; callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; it is used for metrics labeling and the run catalog",
		})
	}

	if strings.TrimSpace(p.Source.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.path",
			Message:  "source.path must not be empty",
		})
	}

	issues = append(issues, validateFilters(p.Filters)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	return issues
}

func validateFilters(fs []Filter) []Issue {
	var issues []Issue

	if len(fs) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "filters",
			Message:  "at least one (filter, sink) pair is required",
		})
		return issues
	}

	seen := map[string]int{}
	for i, f := range fs {
		if strings.TrimSpace(f.Kind) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("filters[%d].kind", i),
				Message:  "filter kind must not be empty",
			})
		} else if _, ok := knownFilterKinds[f.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("filters[%d].kind", i),
				Message:  fmt.Sprintf("unknown filter kind %q; ensure a matching implementation exists", f.Kind),
			})
		}

		issues = append(issues, validateSink(i, f.Sink, seen)...)
	}
	return issues
}

func validateSink(i int, s Sink, seen map[string]int) []Issue {
	var issues []Issue
	kind := s.Kind
	if kind == "" {
		kind = "file"
	}

	switch kind {
	case "file":
		path := fmt.Sprintf("filters[%d].sink.path", i)
		if strings.TrimSpace(s.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  "file sink requires a non-empty path",
			})
			break
		}
		if !AcceptedExtension(s.Path) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message: fmt.Sprintf("output extension of %q not accepted (want one of %s)",
					s.Path, strings.Join(AcceptedExtensions, ", ")),
			})
		}
		// Two writers appending to the same file would corrupt it.
		if prev, dup := seen[s.Path]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  fmt.Sprintf("sink path duplicates filters[%d]; each sink is owned by exactly one writer", prev),
			})
		} else {
			seen[s.Path] = i
		}

	case "postgres":
		if strings.TrimSpace(s.DB.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("filters[%d].sink.db.dsn", i),
				Message:  "postgres sink requires a DSN",
			})
		}
		if strings.TrimSpace(s.DB.Table) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("filters[%d].sink.db.table", i),
				Message:  "postgres sink requires a table",
			})
		}

	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     fmt.Sprintf("filters[%d].sink.kind", i),
			Message:  fmt.Sprintf("unknown sink kind %q", s.Kind),
		})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.ReaderWorkers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.reader_workers",
			Message:  "reader_workers must not be negative",
		})
	}
	if r.ChunkSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.chunk_size",
			Message:  "chunk_size must not be negative",
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}
	return issues
}

// FirstError returns the first error-severity issue as an error, or nil.
func FirstError(issues []Issue) error {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return iss
		}
	}
	return nil
}
