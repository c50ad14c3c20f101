package las

import (
	"encoding/binary"
	"math"
)

// encodeRecord writes p into buf according to h. buf must be at least
// h.RecordLength bytes. Extra bytes are truncated or zero-padded to the
// header's extra length so every record on disk has identical width.
func encodeRecord(buf []byte, p *Point, h *Header) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(quantize(p.X, h.ScaleX, h.OffsetX)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(quantize(p.Y, h.ScaleY, h.OffsetY)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(quantize(p.Z, h.ScaleZ, h.OffsetZ)))
	binary.LittleEndian.PutUint16(buf[12:14], p.Intensity)
	buf[14] = p.ReturnInfo
	buf[15] = p.Classification
	buf[16] = byte(p.ScanAngle)
	buf[17] = p.UserData
	binary.LittleEndian.PutUint16(buf[18:20], p.PointSourceID)

	off := fmt0Length
	if h.PointFormat == 1 {
		binary.LittleEndian.PutUint64(buf[20:28], math.Float64bits(p.GPSTime))
		off = fmt1Length
	}
	extra := buf[off:h.RecordLength]
	n := copy(extra, p.Extra)
	for i := n; i < len(extra); i++ {
		extra[i] = 0
	}
}

// decodeRecord parses one record from buf according to h.
func decodeRecord(buf []byte, h *Header) Point {
	p := Point{
		X:              dequantize(int32(binary.LittleEndian.Uint32(buf[0:4])), h.ScaleX, h.OffsetX),
		Y:              dequantize(int32(binary.LittleEndian.Uint32(buf[4:8])), h.ScaleY, h.OffsetY),
		Z:              dequantize(int32(binary.LittleEndian.Uint32(buf[8:12])), h.ScaleZ, h.OffsetZ),
		Intensity:      binary.LittleEndian.Uint16(buf[12:14]),
		ReturnInfo:     buf[14],
		Classification: buf[15],
		ScanAngle:      int8(buf[16]),
		UserData:       buf[17],
		PointSourceID:  binary.LittleEndian.Uint16(buf[18:20]),
	}
	off := fmt0Length
	if h.PointFormat == 1 {
		p.GPSTime = math.Float64frombits(binary.LittleEndian.Uint64(buf[20:28]))
		off = fmt1Length
	}
	if extra := h.ExtraLength(); extra > 0 {
		p.Extra = make([]byte, extra)
		copy(p.Extra, buf[off:off+extra])
	}
	return p
}
