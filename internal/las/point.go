// Package las implements the point-record codec consumed by the pipeline:
// reading and writing LAS 1.2 files containing fixed-format point samples.
//
// Supported point formats are 0 (20 bytes) and 1 (28 bytes, adds GPS time).
// A record length larger than the base format carries opaque "extra bytes"
// appended to each record; the codec preserves them without interpretation.
//
// Two containers exist:
//
//   - ".las": the raw record stream.
//   - ".laz": the same stream inside a gzip container. This is the codec's
//     compressed variant; it round-trips only against this codec.
//
// The codec exposes the narrow contract the pipeline needs: open a source and
// learn its declared record count and schema, pull records in chunks, open a
// sink from a header, and append records one at a time.
package las

import "math"

// Point is one decoded point record. X, Y and Z are real-world coordinates
// (scale and offset from the header already applied). Extra holds any bytes
// beyond the base point format, verbatim.
type Point struct {
	X, Y, Z        float64
	Intensity      uint16
	ReturnInfo     byte // raw flag byte: return number, count, direction, edge
	Classification byte
	ScanAngle      int8
	UserData       byte
	PointSourceID  uint16
	GPSTime        float64 // meaningful for point format 1 only
	Extra          []byte
}

// ReturnNumber extracts the return number from the raw flag byte.
func (p *Point) ReturnNumber() byte { return p.ReturnInfo & 0x07 }

// NumberOfReturns extracts the total return count from the raw flag byte.
func (p *Point) NumberOfReturns() byte { return (p.ReturnInfo >> 3) & 0x07 }

// quantize converts a real coordinate to its stored integer representation.
func quantize(v, scale, offset float64) int32 {
	if scale == 0 {
		scale = defaultScale
	}
	return int32(math.Round((v - offset) / scale))
}

// dequantize converts a stored integer back to a real coordinate.
func dequantize(raw int32, scale, offset float64) float64 {
	if scale == 0 {
		scale = defaultScale
	}
	return float64(raw)*scale + offset
}
