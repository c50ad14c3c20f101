package las

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeFile creates a point file at path with the given schema and records,
// failing the test on any error.
func writeFile(t *testing.T, path string, hdr Header, pts []Point) {
	t.Helper()
	w, err := Create(path, hdr)
	if err != nil {
		t.Fatalf("Create(%s) = %v", path, err)
	}
	for i := range pts {
		if err := w.Append(&pts[i]); err != nil {
			t.Fatalf("Append(%d) = %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
}

// readAll opens path and pulls every record.
func readAll(t *testing.T, path string) (Header, []Point) {
	t.Helper()
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%s) = %v", path, err)
	}
	defer r.Close()

	var pts []Point
	for {
		before := len(pts)
		pts, err = r.ReadN(pts, 3) // small pull to exercise multiple calls
		if err != nil {
			t.Fatalf("ReadN() = %v", err)
		}
		if len(pts) == before {
			return r.Header(), pts
		}
	}
}

// near reports whether a and b agree within half the coordinate scale.
func near(a, b float64) bool { return math.Abs(a-b) < defaultScale/2 }

func testPoints(n int) []Point {
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = Point{
			X:              float64(i),
			Y:              float64(i) * 2,
			Z:              -float64(i),
			Intensity:      uint16(100 + i),
			ReturnInfo:     0x09, // return 1 of 1
			Classification: byte(i % 4),
			ScanAngle:      int8(i - 3),
			UserData:       byte(i),
			PointSourceID:  uint16(7000 + i),
			GPSTime:        1e9 + float64(i)*0.25,
		}
	}
	return pts
}

func TestRoundTrip(t *testing.T) {
	for _, ext := range []string{".las", ".laz"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pts"+ext)
			in := testPoints(10)
			writeFile(t, path, NewHeader(1), in)

			hdr, out := readAll(t, path)
			if hdr.PointCount != 10 {
				t.Fatalf("PointCount = %d, want 10", hdr.PointCount)
			}
			if len(out) != len(in) {
				t.Fatalf("len(out) = %d, want %d", len(out), len(in))
			}
			for i := range in {
				if !near(out[i].X, in[i].X) || !near(out[i].Y, in[i].Y) || !near(out[i].Z, in[i].Z) {
					t.Fatalf("point %d coords = (%v,%v,%v), want (%v,%v,%v)",
						i, out[i].X, out[i].Y, out[i].Z, in[i].X, in[i].Y, in[i].Z)
				}
				if out[i].Intensity != in[i].Intensity {
					t.Fatalf("point %d intensity = %d, want %d", i, out[i].Intensity, in[i].Intensity)
				}
				if out[i].Classification != in[i].Classification {
					t.Fatalf("point %d class = %d, want %d", i, out[i].Classification, in[i].Classification)
				}
				if out[i].GPSTime != in[i].GPSTime {
					t.Fatalf("point %d gps = %v, want %v", i, out[i].GPSTime, in[i].GPSTime)
				}
			}
		})
	}
}

func TestExtraBytesRoundTrip(t *testing.T) {
	hdr := NewHeader(0)
	hdr.RecordLength += 4

	in := testPoints(3)
	in[0].Extra = []byte{1, 2, 3, 4}
	in[1].Extra = []byte{9}                // short: zero-padded on disk
	in[2].Extra = []byte{1, 2, 3, 4, 5, 6} // long: truncated

	path := filepath.Join(t.TempDir(), "extra.las")
	writeFile(t, path, hdr, in)

	gotHdr, out := readAll(t, path)
	if gotHdr.ExtraLength() != 4 {
		t.Fatalf("ExtraLength() = %d, want 4", gotHdr.ExtraLength())
	}
	want := [][]byte{{1, 2, 3, 4}, {9, 0, 0, 0}, {1, 2, 3, 4}}
	for i := range out {
		if string(out[i].Extra) != string(want[i]) {
			t.Fatalf("point %d extra = %v, want %v", i, out[i].Extra, want[i])
		}
	}
}

func TestHeaderStrip(t *testing.T) {
	hdr := NewHeader(1)
	hdr.RecordLength += 6

	stripped := hdr.Strip()
	if stripped.RecordLength != fmt1Length {
		t.Fatalf("stripped RecordLength = %d, want %d", stripped.RecordLength, fmt1Length)
	}
	if stripped.ExtraLength() != 0 {
		t.Fatalf("stripped ExtraLength() = %d, want 0", stripped.ExtraLength())
	}
	if hdr.RecordLength != fmt1Length+6 {
		t.Fatalf("Strip mutated receiver: RecordLength = %d", hdr.RecordLength)
	}

	// Records written through a stripped schema carry no extra bytes.
	in := testPoints(2)
	in[0].Extra = []byte{1, 2, 3}
	path := filepath.Join(t.TempDir(), "stripped.las")
	writeFile(t, path, stripped, in)

	_, out := readAll(t, path)
	for i := range out {
		if len(out[i].Extra) != 0 {
			t.Fatalf("point %d extra = %v, want empty", i, out[i].Extra)
		}
	}
}

func TestCompatible(t *testing.T) {
	a := NewHeader(1)
	b := NewHeader(1)
	if !a.Compatible(b) {
		t.Fatalf("Compatible(same) = false, want true")
	}
	b.RecordLength += 2
	if a.Compatible(b) {
		t.Fatalf("Compatible(different record length) = true, want false")
	}
	c := NewHeader(0)
	if a.Compatible(c) {
		t.Fatalf("Compatible(different format) = true, want false")
	}
}

func TestCountAndBoundsPatched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patched.las")
	writeFile(t, path, NewHeader(0), testPoints(5))

	hdr, _ := readAll(t, path)
	if hdr.PointCount != 5 {
		t.Fatalf("PointCount = %d, want 5", hdr.PointCount)
	}
	if !near(hdr.MinX, 0) || !near(hdr.MaxX, 4) {
		t.Fatalf("X bounds = [%v, %v], want [0, 4]", hdr.MinX, hdr.MaxX)
	}
	if !near(hdr.MinZ, -4) || !near(hdr.MaxZ, 0) {
		t.Fatalf("Z bounds = [%v, %v], want [-4, 0]", hdr.MinZ, hdr.MaxZ)
	}
}

func TestEmptySink(t *testing.T) {
	for _, ext := range []string{".las", ".laz"} {
		path := filepath.Join(t.TempDir(), "empty"+ext)
		writeFile(t, path, NewHeader(1), nil)

		hdr, pts := readAll(t, path)
		if hdr.PointCount != 0 {
			t.Fatalf("%s: PointCount = %d, want 0", ext, hdr.PointCount)
		}
		if len(pts) != 0 {
			t.Fatalf("%s: len(pts) = %d, want 0", ext, len(pts))
		}
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.las")); err == nil {
		t.Fatalf("Open(missing) = nil, want error")
	}
}

func TestOpenBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.las")
	if err := os.WriteFile(path, make([]byte, headerSize), 0o644); err != nil {
		t.Fatalf("WriteFile = %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatalf("Open(bad magic) = nil, want error")
	}
}

func TestTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trunc.las")
	writeFile(t, path, NewHeader(0), testPoints(4))

	// Chop off the last record and half of the one before it.
	if err := os.Truncate(path, headerSize+int64(fmt0Length)*2+10); err != nil {
		t.Fatalf("Truncate = %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open = %v", err)
	}
	defer r.Close()

	var pts []Point
	pts, err = r.ReadN(pts, 2)
	if err != nil {
		t.Fatalf("ReadN(first 2) = %v", err)
	}
	if _, err := r.ReadN(pts, 10); err == nil {
		t.Fatalf("ReadN past truncation = nil, want error")
	}
}

func TestIsCompressed(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"a.las", false},
		{"a.laz", true},
		{"A.LAZ", true},
		{"a.txt", false},
	}
	for _, c := range cases {
		if got := IsCompressed(c.path); got != c.want {
			t.Fatalf("IsCompressed(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestAppendCountLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limit.las")
	w, err := Create(path, NewHeader(0))
	if err != nil {
		t.Fatalf("Create = %v", err)
	}
	defer w.abort()

	w.count = math.MaxUint32
	p := Point{}
	if err := w.Append(&p); err == nil {
		t.Fatalf("Append at format limit = nil, want error")
	}
}
