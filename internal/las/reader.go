package las

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// readBufSize is the buffered-reader size for sequential scans.
const readBufSize = 1 << 20 // 1 MiB

// Reader pulls point records sequentially from a .las or .laz file. It is
// owned by a single goroutine for its lifetime; the pipeline assigns one
// reader per source.
type Reader struct {
	f         *os.File
	gz        *gzip.Reader
	br        *bufio.Reader
	hdr       Header
	remaining uint64
	rec       []byte
}

// IsCompressed reports whether path names the codec's compressed container.
func IsCompressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".laz")
}

// Open opens a point file and reads its header. The returned reader yields
// records start-to-finish; there is no random access.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("las: open %s: %w", path, err)
	}
	fadviseSequential(f)

	r := &Reader{f: f}
	var src io.Reader = f
	if IsCompressed(path) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("las: open %s: %w", path, err)
		}
		r.gz = gz
		src = gz
	}
	r.br = bufio.NewReaderSize(src, readBufSize)

	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r.br, raw); err != nil {
		r.Close()
		return nil, fmt.Errorf("las: read header %s: %w", path, err)
	}
	hdr, err := unmarshalHeader(raw)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("las: %s: %w", path, err)
	}
	r.hdr = hdr
	r.remaining = hdr.PointCount
	r.rec = make([]byte, hdr.RecordLength)
	return r, nil
}

// Header returns the file's header as read at Open time.
func (r *Reader) Header() Header { return r.hdr }

// ReadN decodes up to max records into dst (appending) and returns the
// extended slice. A zero-growth return signals exhaustion. A truncated file
// (fewer records than the header declares) is an error.
func (r *Reader) ReadN(dst []Point, max int) ([]Point, error) {
	for i := 0; i < max && r.remaining > 0; i++ {
		if _, err := io.ReadFull(r.br, r.rec); err != nil {
			return dst, fmt.Errorf("las: read record: %w", err)
		}
		dst = append(dst, decodeRecord(r.rec, &r.hdr))
		r.remaining--
	}
	return dst, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.gz != nil {
		r.gz.Close()
	}
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}
