// Package filter defines the predicate capability applied to each record and
// the named builtin predicates selectable from configuration.
//
// Predicates must be pure and safe for concurrent use: every read worker
// evaluates every configured predicate against every record it pulls, so a
// predicate may be called from many goroutines at once. Builtins share only
// immutable captured configuration.
package filter

import (
	"errors"
	"fmt"
	"math"

	"laspipe/internal/config"
	"laspipe/internal/las"
)

// ErrUnknownFilter is returned when a configuration names a predicate kind
// with no implementation.
var ErrUnknownFilter = errors.New("unknown filter kind")

// Predicate decides whether a record is routed to the sink it is paired with.
type Predicate interface {
	Match(p *las.Point) bool
}

// Func adapts a plain function to the Predicate interface.
type Func func(p *las.Point) bool

// Match implements Predicate.
func (f Func) Match(p *las.Point) bool { return f(p) }

// All accepts every record.
type All struct{}

func (All) Match(*las.Point) bool { return true }

// None rejects every record.
type None struct{}

func (None) Match(*las.Point) bool { return false }

// Bounds is an axis-aligned crop. Unset limits default to ±infinity, so a
// two-dimensional crop simply leaves the Z limits open. Limits are inclusive
// on the minimum and exclusive on the maximum.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// Match implements Predicate.
func (b Bounds) Match(p *las.Point) bool {
	return p.X >= b.MinX && p.X < b.MaxX &&
		p.Y >= b.MinY && p.Y < b.MaxY &&
		p.Z >= b.MinZ && p.Z < b.MaxZ
}

// Intensity accepts records whose intensity is strictly above Min.
type Intensity struct {
	Min uint16
}

// Match implements Predicate.
func (i Intensity) Match(p *las.Point) bool { return p.Intensity > i.Min }

// Classification accepts records whose classification code is in the set.
type Classification struct {
	classes [256]bool
}

// NewClassification builds a Classification predicate accepting the given
// class codes (e.g. 1 unclassified, 2 ground).
func NewClassification(codes ...byte) *Classification {
	c := &Classification{}
	for _, code := range codes {
		c.classes[code] = true
	}
	return c
}

// Match implements Predicate.
func (c *Classification) Match(p *las.Point) bool { return c.classes[p.Classification] }

// FromConfig constructs the predicate named by kind using its options bag.
// Unknown kinds return ErrUnknownFilter.
func FromConfig(kind string, opts config.Options) (Predicate, error) {
	switch kind {
	case "all":
		return All{}, nil

	case "none":
		return None{}, nil

	case "bounds":
		return Bounds{
			MinX: opts.Float("min_x", math.Inf(-1)),
			MaxX: opts.Float("max_x", math.Inf(1)),
			MinY: opts.Float("min_y", math.Inf(-1)),
			MaxY: opts.Float("max_y", math.Inf(1)),
			MinZ: opts.Float("min_z", math.Inf(-1)),
			MaxZ: opts.Float("max_z", math.Inf(1)),
		}, nil

	case "intensity":
		min := opts.Int("min", 0)
		if min < 0 || min > math.MaxUint16 {
			return nil, fmt.Errorf("filter intensity: min=%d out of range", min)
		}
		return Intensity{Min: uint16(min)}, nil

	case "classification":
		codes := opts.IntSlice("classes")
		if len(codes) == 0 {
			return nil, fmt.Errorf("filter classification: classes must not be empty")
		}
		bytes := make([]byte, 0, len(codes))
		for _, c := range codes {
			if c < 0 || c > 255 {
				return nil, fmt.Errorf("filter classification: class %d out of range", c)
			}
			bytes = append(bytes, byte(c))
		}
		return NewClassification(bytes...), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, kind)
	}
}
