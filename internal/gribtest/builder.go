// Package gribtest builds synthetic GRIB2 messages for tests and fixture
// generation. The encoder mirrors the subset the grib package decodes:
// sections 0/1/3/5/7, optional 2/4/6 padding, grid templates 0 and 30, and
// data representation templates 0, 40, 41, and 200.
package gribtest

import (
	"bytes"
	"math"
	"time"

	"github.com/klauspost/compress/gzip"
)

// GridOptions describes the section 3 contents. Angles are degrees; they are
// encoded as microdegrees unless BasicAngle/Subdivisions override the divisor.
type GridOptions struct {
	Template     uint16 // 0 or 30
	Width        int
	Height       int
	Lat1, Lon1   float64
	Lat2, Lon2   float64
	Dx, Dy       float64
	BasicAngle   uint32
	Subdivisions uint32
	ScanningMode uint8

	// NumPointsOverride forces the declared point count away from
	// Width*Height for invariant tests. Zero means consistent.
	NumPointsOverride int
}

// PackingOptions describes the section 5 contents.
type PackingOptions struct {
	Template     uint16 // 0, 40, 41, or 200
	Reference    float32
	BinaryScale  int16
	DecimalScale int16
	Bits         uint8

	// NumPointsOverride forces the declared point count away from the
	// grid's. Zero means consistent.
	NumPointsOverride int
}

// Options describes a complete synthetic message.
type Options struct {
	Edition uint8 // zero means 2
	RefTime time.Time
	Grid    GridOptions
	Packing PackingOptions
	Data    []byte // section 7 payload

	LocalUse       []byte // section 2 payload; nil omits the section
	IncludeProduct bool   // emit a minimal section 4 between 3 and 5
	IncludeBitmap  bool   // emit an empty section 6 between 5 and 7

	OmitGrid    bool // drop section 3 for error-path tests
	OmitPacking bool // drop section 5
	OmitData    bool // drop section 7
}

// Build encodes the message described by o.
func Build(o Options) []byte {
	edition := o.Edition
	if edition == 0 {
		edition = 2
	}
	refTime := o.RefTime
	if refTime.IsZero() {
		refTime = time.Date(2024, time.January, 15, 18, 42, 0, 0, time.UTC)
	}

	var body bytes.Buffer
	body.Write(section1(refTime))
	if o.LocalUse != nil {
		body.Write(section(2, o.LocalUse))
	}
	if !o.OmitGrid {
		body.Write(section3(o.Grid))
	}
	if o.IncludeProduct {
		// Product definition template 4.0 header with no coordinate values.
		body.Write(section(4, []byte{0, 0, 0, 0}))
	}
	if !o.OmitPacking {
		body.Write(section5(o.Grid, o.Packing))
	}
	if o.IncludeBitmap {
		// Bitmap indicator 255: no bitmap applies.
		body.Write(section(6, []byte{255}))
	}
	if !o.OmitData {
		body.Write(section(7, o.Data))
	}

	total := 16 + body.Len() + 4
	msg := make([]byte, 0, total)
	msg = append(msg, 'G', 'R', 'I', 'B')
	msg = append(msg, 0, 0) // reserved
	msg = append(msg, 209)  // discipline: MRMS local
	msg = append(msg, edition)
	msg = appendUint(msg, uint64(total), 8)
	msg = append(msg, body.Bytes()...)
	msg = append(msg, '7', '7', '7', '7')
	return msg
}

// BuildGzip encodes the message and gzip-compresses it, matching the wire
// form of the MRMS feed.
func BuildGzip(o Options) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(Build(o)) //nolint:errcheck // bytes.Buffer cannot fail
	zw.Close()         //nolint:errcheck
	return buf.Bytes()
}

// PackSimple8 encodes a dBZ field as 8-bit simple packing with the given
// reference value (binary and decimal scale zero): X = round(dbz - ref).
// Missing cells encode as zero, so pick a reference at or below the field
// minimum.
func PackSimple8(field []float32, ref float32) []byte {
	data := make([]byte, len(field))
	for i, v := range field {
		if v < -900 {
			continue
		}
		x := math.Round(float64(v - ref))
		if x < 0 {
			x = 0
		}
		if x > 255 {
			x = 255
		}
		data[i] = byte(x)
	}
	return data
}

// PackBits appends values MSB-first at the given bit width, the encoding
// simple packing expects in section 7.
func PackBits(values []uint32, width int) []byte {
	nbits := len(values) * width
	buf := make([]byte, (nbits+7)/8)
	pos := 0
	for _, v := range values {
		for b := width - 1; b >= 0; b-- {
			if v&(1<<uint(b)) != 0 {
				buf[pos>>3] |= 0x80 >> uint(pos&7)
			}
			pos++
		}
	}
	return buf
}

// section frames a payload with the 4-byte length and 1-byte number header.
func section(number uint8, payload []byte) []byte {
	out := make([]byte, 0, 5+len(payload))
	out = appendUint(out, uint64(5+len(payload)), 4)
	out = append(out, number)
	return append(out, payload...)
}

func section1(refTime time.Time) []byte {
	p := make([]byte, 0, 16)
	p = appendUint(p, 161, 2) // originating center: NOAA NSSL
	p = appendUint(p, 0, 2)   // subcenter
	p = append(p, 2, 1, 1)    // table versions, significance of reference time
	p = appendUint(p, uint64(refTime.Year()), 2)
	p = append(p,
		byte(refTime.Month()), byte(refTime.Day()),
		byte(refTime.Hour()), byte(refTime.Minute()), byte(refTime.Second()),
		0, 1, // production status, type of data
	)
	return section(1, p)
}

func section3(g GridOptions) []byte {
	numPoints := g.Width * g.Height
	if g.NumPointsOverride != 0 {
		numPoints = g.NumPointsOverride
	}

	p := make([]byte, 0, 72)
	p = append(p, 0)                         // source of grid definition
	p = appendUint(p, uint64(numPoints), 4)  // number of data points
	p = append(p, 0, 0)                      // no optional list of numbers
	p = appendUint(p, uint64(g.Template), 2) // grid definition template

	divisor := 1_000_000.0
	if g.BasicAngle != 0 && g.Subdivisions != 0 {
		divisor = float64(g.BasicAngle) * float64(g.Subdivisions)
	}
	angle := func(deg float64) int64 {
		return int64(math.Round(deg * divisor))
	}

	switch g.Template {
	case 0:
		p = append(p, 6)                   // shape of earth: spherical
		p = append(p, make([]byte, 15)...) // earth radius parameters unused
		p = appendUint(p, uint64(g.Width), 4)
		p = appendUint(p, uint64(g.Height), 4)
		p = appendUint(p, uint64(g.BasicAngle), 4)
		p = appendUint(p, uint64(g.Subdivisions), 4)
		p = appendSignMagnitude(p, angle(g.Lat1), 4)
		p = appendSignMagnitude(p, angle(g.Lon1), 4)
		p = append(p, 0x30) // resolution and component flags
		p = appendSignMagnitude(p, angle(g.Lat2), 4)
		p = appendSignMagnitude(p, angle(g.Lon2), 4)
		p = appendSignMagnitude(p, angle(g.Dx), 4)
		p = appendSignMagnitude(p, angle(g.Dy), 4)
		p = append(p, g.ScanningMode)
	case 30:
		p = append(p, 6)
		p = append(p, make([]byte, 15)...)
		p = appendUint(p, uint64(g.Width), 4)
		p = appendUint(p, uint64(g.Height), 4)
		p = appendSignMagnitude(p, angle(g.Lat1), 4)
		p = appendSignMagnitude(p, angle(g.Lon1), 4)
		p = append(p, 0x30)                          // resolution flags
		p = appendSignMagnitude(p, angle(g.Lat1), 4) // LaD
		p = appendSignMagnitude(p, angle(g.Lon1), 4) // LoV
		p = appendUint(p, 1000, 4)                   // Dx meters
		p = appendUint(p, 1000, 4)                   // Dy meters
		p = append(p, 0)                             // projection centre
		p = append(p, g.ScanningMode)
		p = appendSignMagnitude(p, angle(25), 4) // Latin1
		p = appendSignMagnitude(p, angle(25), 4) // Latin2
		p = appendSignMagnitude(p, 0, 4)         // south pole lat
		p = appendSignMagnitude(p, 0, 4)         // south pole lon
	default:
		// Unknown template: emit an empty body so the decoder rejects it.
		p = append(p, make([]byte, 58)...)
	}
	return section(3, p)
}

func section5(g GridOptions, pk PackingOptions) []byte {
	numPoints := g.Width * g.Height
	if pk.NumPointsOverride != 0 {
		numPoints = pk.NumPointsOverride
	}

	p := make([]byte, 0, 16)
	p = appendUint(p, uint64(numPoints), 4)
	p = appendUint(p, uint64(pk.Template), 2)
	p = appendUint(p, uint64(math.Float32bits(pk.Reference)), 4)
	p = appendSignMagnitude(p, int64(pk.BinaryScale), 2)
	p = appendSignMagnitude(p, int64(pk.DecimalScale), 2)
	p = append(p, pk.Bits)
	p = append(p, 0) // original field type: floating point
	return section(5, p)
}

func appendUint(out []byte, v uint64, n int) []byte {
	for i := n - 1; i >= 0; i-- {
		out = append(out, byte(v>>(8*i)))
	}
	return out
}

// appendSignMagnitude encodes v in the GRIB2 sign-magnitude convention: the
// top bit carries the sign, the rest the magnitude.
func appendSignMagnitude(out []byte, v int64, n int) []byte {
	u := uint64(v)
	if v < 0 {
		u = uint64(-v) | 1<<uint(8*n-1)
	}
	return appendUint(out, u, n)
}
