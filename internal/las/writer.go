package las

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Writer appends point records to a .las or .laz sink. The header's record
// count and coordinate bounds are patched into the file on Close, so a sink
// is not a valid point file until Close returns.
//
// For the compressed container the record stream is staged in a raw temp
// file next to the destination and gzip-packed on Close, because the count
// patch needs a seekable file.
type Writer struct {
	path    string
	tmpPath string // non-empty for compressed sinks
	f       *os.File
	bw      *bufio.Writer
	hdr     Header
	count   uint64
	rec     []byte

	minX, minY, minZ float64
	maxX, maxY, maxZ float64
}

// Create opens a sink at path using hdr as the output schema. The header's
// PointCount and bounds are ignored; they are recomputed from appended
// records.
func Create(path string, hdr Header) (*Writer, error) {
	if err := hdr.validate(); err != nil {
		return nil, fmt.Errorf("las: create %s: %w", path, err)
	}
	w := &Writer{
		path: path,
		hdr:  hdr,
		rec:  make([]byte, hdr.RecordLength),
		minX: math.Inf(1), minY: math.Inf(1), minZ: math.Inf(1),
		maxX: math.Inf(-1), maxY: math.Inf(-1), maxZ: math.Inf(-1),
	}

	target := path
	if IsCompressed(path) {
		tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
		if err != nil {
			return nil, fmt.Errorf("las: create %s: %w", path, err)
		}
		w.tmpPath = tmp.Name()
		w.f = tmp
	} else {
		f, err := os.Create(target)
		if err != nil {
			return nil, fmt.Errorf("las: create %s: %w", path, err)
		}
		w.f = f
	}

	w.bw = bufio.NewWriterSize(w.f, readBufSize)
	w.hdr.PointCount = 0
	if _, err := w.bw.Write(w.hdr.marshal()); err != nil {
		w.abort()
		return nil, fmt.Errorf("las: create %s: %w", path, err)
	}
	return w, nil
}

// Header returns the sink's output schema.
func (w *Writer) Header() Header { return w.hdr }

// Count returns the number of records appended so far.
func (w *Writer) Count() uint64 { return w.count }

// Append writes one record in the sink's schema. Extra bytes are truncated
// or padded to the schema's extra length.
func (w *Writer) Append(p *Point) error {
	if w.count >= math.MaxUint32 {
		return fmt.Errorf("las: %s: record count exceeds format limit", w.path)
	}
	encodeRecord(w.rec, p, &w.hdr)
	if _, err := w.bw.Write(w.rec); err != nil {
		return fmt.Errorf("las: append %s: %w", w.path, err)
	}
	w.count++
	w.minX = math.Min(w.minX, p.X)
	w.minY = math.Min(w.minY, p.Y)
	w.minZ = math.Min(w.minZ, p.Z)
	w.maxX = math.Max(w.maxX, p.X)
	w.maxY = math.Max(w.maxY, p.Y)
	w.maxZ = math.Max(w.maxZ, p.Z)
	return nil
}

// Close flushes buffered records, patches the header with the final count
// and bounds, and (for compressed sinks) packs the staged stream into the
// destination.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	if err := w.bw.Flush(); err != nil {
		w.abort()
		return fmt.Errorf("las: flush %s: %w", w.path, err)
	}
	if err := w.patchHeader(); err != nil {
		w.abort()
		return err
	}
	if w.tmpPath == "" {
		f := w.f
		w.f = nil
		if err := f.Close(); err != nil {
			return fmt.Errorf("las: close %s: %w", w.path, err)
		}
		return nil
	}
	return w.pack()
}

// patchHeader rewrites count and bounds in place on the staged raw file.
func (w *Writer) patchHeader() error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(w.count))
	if _, err := w.f.WriteAt(b[:], 107); err != nil {
		return fmt.Errorf("las: patch count %s: %w", w.path, err)
	}

	// Bounds are meaningless for an empty sink; leave the zero values.
	if w.count > 0 {
		var bounds [48]byte
		for i, v := range []float64{w.maxX, w.minX, w.maxY, w.minY, w.maxZ, w.minZ} {
			binary.LittleEndian.PutUint64(bounds[i*8:i*8+8], math.Float64bits(v))
		}
		if _, err := w.f.WriteAt(bounds[:], 179); err != nil {
			return fmt.Errorf("las: patch bounds %s: %w", w.path, err)
		}
	}
	return nil
}

// pack gzips the staged raw stream into the final destination and removes
// the staging file.
func (w *Writer) pack() error {
	src := w.f
	w.f = nil
	defer os.Remove(w.tmpPath)
	defer src.Close()

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("las: pack %s: %w", w.path, err)
	}
	dst, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("las: pack %s: %w", w.path, err)
	}
	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, bufio.NewReaderSize(src, readBufSize)); err != nil {
		dst.Close()
		return fmt.Errorf("las: pack %s: %w", w.path, err)
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		return fmt.Errorf("las: pack %s: %w", w.path, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("las: pack %s: %w", w.path, err)
	}
	return nil
}

// abort closes and removes a partially written sink after a fatal error.
func (w *Writer) abort() {
	if w.f == nil {
		return
	}
	w.f.Close()
	w.f = nil
	if w.tmpPath != "" {
		os.Remove(w.tmpPath)
	}
}
