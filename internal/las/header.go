package las

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	headerSize   = 227 // LAS 1.2 public header block
	magic        = "LASF"
	defaultScale = 0.001

	// Base record lengths per point format.
	fmt0Length = 20
	fmt1Length = 28
)

// Header describes a point file: its schema (point format and record length)
// and the declared number of records. It is the unit of schema compatibility
// between sources and the template from which sinks are opened.
type Header struct {
	PointFormat  byte
	RecordLength uint16
	PointCount   uint64

	ScaleX, ScaleY, ScaleZ    float64
	OffsetX, OffsetY, OffsetZ float64

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// NewHeader returns a header for the given point format with default
// millimeter scales and no extra bytes.
func NewHeader(pointFormat byte) Header {
	base, _ := baseLength(pointFormat)
	return Header{
		PointFormat:  pointFormat,
		RecordLength: base,
		ScaleX:       defaultScale,
		ScaleY:       defaultScale,
		ScaleZ:       defaultScale,
	}
}

func baseLength(pointFormat byte) (uint16, error) {
	switch pointFormat {
	case 0:
		return fmt0Length, nil
	case 1:
		return fmt1Length, nil
	default:
		return 0, fmt.Errorf("las: unsupported point format %d", pointFormat)
	}
}

// ExtraLength returns the number of opaque bytes carried past the base point
// format in each record.
func (h Header) ExtraLength() int {
	base, err := baseLength(h.PointFormat)
	if err != nil || h.RecordLength < base {
		return 0
	}
	return int(h.RecordLength - base)
}

// Strip returns a copy of the header whose record length is reduced to the
// base point format, dropping the extra-bytes block from the schema. Sinks
// opened from a stripped header write every record without extra bytes.
func (h Header) Strip() Header {
	base, err := baseLength(h.PointFormat)
	if err == nil {
		h.RecordLength = base
	}
	return h
}

// Compatible reports whether records from a source with header o can be
// written through a sink opened from h: same point format and record length.
func (h Header) Compatible(o Header) bool {
	return h.PointFormat == o.PointFormat && h.RecordLength == o.RecordLength
}

func (h Header) validate() error {
	base, err := baseLength(h.PointFormat)
	if err != nil {
		return err
	}
	if h.RecordLength < base {
		return fmt.Errorf("las: record length %d below base %d for format %d",
			h.RecordLength, base, h.PointFormat)
	}
	return nil
}

// marshal encodes the public header block. Count and bounds are encoded from
// the header's current values; the writer patches them again on Close.
func (h Header) marshal() []byte {
	b := make([]byte, headerSize)
	copy(b[0:4], magic)
	b[24] = 1 // version major
	b[25] = 2 // version minor
	copy(b[26:58], "laspipe")
	copy(b[58:90], "laspipe")
	binary.LittleEndian.PutUint16(b[94:96], headerSize)
	binary.LittleEndian.PutUint32(b[96:100], headerSize) // offset to point data
	b[104] = h.PointFormat
	binary.LittleEndian.PutUint16(b[105:107], h.RecordLength)
	binary.LittleEndian.PutUint32(b[107:111], uint32(h.PointCount))

	putF := func(off int, v float64) {
		binary.LittleEndian.PutUint64(b[off:off+8], math.Float64bits(v))
	}
	putF(131, h.ScaleX)
	putF(139, h.ScaleY)
	putF(147, h.ScaleZ)
	putF(155, h.OffsetX)
	putF(163, h.OffsetY)
	putF(171, h.OffsetZ)
	putF(179, h.MaxX)
	putF(187, h.MinX)
	putF(195, h.MaxY)
	putF(203, h.MinY)
	putF(211, h.MaxZ)
	putF(219, h.MinZ)
	return b
}

func unmarshalHeader(b []byte) (Header, error) {
	if len(b) < headerSize {
		return Header{}, fmt.Errorf("las: short header: %d bytes", len(b))
	}
	if string(b[0:4]) != magic {
		return Header{}, fmt.Errorf("las: bad magic %q", b[0:4])
	}
	if b[24] != 1 {
		return Header{}, fmt.Errorf("las: unsupported version %d.%d", b[24], b[25])
	}
	getF := func(off int) float64 {
		return math.Float64frombits(binary.LittleEndian.Uint64(b[off : off+8]))
	}
	h := Header{
		PointFormat:  b[104],
		RecordLength: binary.LittleEndian.Uint16(b[105:107]),
		PointCount:   uint64(binary.LittleEndian.Uint32(b[107:111])),
		ScaleX:       getF(131),
		ScaleY:       getF(139),
		ScaleZ:       getF(147),
		OffsetX:      getF(155),
		OffsetY:      getF(163),
		OffsetZ:      getF(171),
		MaxX:         getF(179),
		MinX:         getF(187),
		MaxY:         getF(195),
		MinY:         getF(203),
		MaxZ:         getF(211),
		MinZ:         getF(219),
	}
	if err := h.validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}
