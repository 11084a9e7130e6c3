package grib

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
)

// Data representation template numbers handled by Unpack.
const (
	packingSimple   = 0
	packingJPEG2000 = 40
	packingPNG      = 41
	packingMRMSRLE  = 200
)

// Packing holds the section 5 data representation parameters. The scale
// fields apply to templates 0, 40, and 41; template 200 carries its own
// fixed value encoding.
type Packing struct {
	TemplateNum    uint16
	NumDataPoints  int
	ReferenceValue float32
	BinaryScale    int16
	DecimalScale   int16
	BitsPerValue   uint8
	OriginalType   uint8
}

// parsePacking decodes section 5 starting at off.
func parsePacking(r *reader, off, length int) (Packing, error) {
	numPoints, err := r.uint(off+5, 4)
	if err != nil {
		return Packing{}, err
	}
	templateNum, err := r.uint(off+9, 2)
	if err != nil {
		return Packing{}, err
	}

	p := Packing{
		TemplateNum:   uint16(templateNum),
		NumDataPoints: int(numPoints),
	}

	switch templateNum {
	case packingSimple, packingJPEG2000, packingPNG:
		// Templates 0, 40, and 41 share the 5.0 header: reference value,
		// binary and decimal scale factors, bits per value.
		if length < 21 {
			return Packing{}, fmt.Errorf("%w: section 5 template %d length %d", ErrInvalidFormat, templateNum, length)
		}
		if p.ReferenceValue, err = r.float32(off + 11); err != nil {
			return Packing{}, err
		}
		binScale, err := r.int(off+15, 2)
		if err != nil {
			return Packing{}, err
		}
		decScale, err := r.int(off+17, 2)
		if err != nil {
			return Packing{}, err
		}
		p.BinaryScale = int16(binScale)
		p.DecimalScale = int16(decScale)
		p.BitsPerValue = r.buf[off+19]
		p.OriginalType = r.buf[off+20]
		if p.BitsPerValue > 32 {
			return Packing{}, fmt.Errorf("%w: %d bits per value", ErrInvalidFormat, p.BitsPerValue)
		}
	case packingMRMSRLE:
		// MRMS run-length encoding. The value scale is fixed by the product
		// definition; nothing beyond the point count is needed here.
	default:
		return Packing{}, &UnsupportedPackingError{Template: uint16(templateNum)}
	}

	return p, nil
}

// Unpack decodes the section 7 payload into a dense dBZ field of
// Grid.NumPoints values, with Missing for absent cells. approximate is true
// when a lossy fallback was used (JPEG 2000 byte-per-sample or raw
// embedded-PNG bytes); the specifics are logged as warnings.
func (m *Message) Unpack(logger *slog.Logger) (field []float32, approximate bool, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	n := m.Grid.NumPoints
	if m.Packing.NumDataPoints != n {
		return nil, false, fmt.Errorf("%w: section 5 declares %d points, grid has %d",
			ErrInvalidFormat, m.Packing.NumDataPoints, n)
	}

	switch m.Packing.TemplateNum {
	case packingSimple:
		return m.unpackSimple(n), false, nil
	case packingPNG:
		field, approximate = m.unpackPNG(n, logger)
		return field, approximate, nil
	case packingMRMSRLE:
		return m.unpackRunLength(n), false, nil
	case packingJPEG2000:
		return m.unpackJPEG2000(n, logger), true, nil
	}
	return nil, false, &UnsupportedPackingError{Template: m.Packing.TemplateNum}
}

// scale applies the GRIB2 decoding formula Y = (R + X*2^E) * 10^(-D).
func (p Packing) scale(x uint32) float32 {
	y := (float64(p.ReferenceValue) + float64(x)*math.Pow(2, float64(p.BinaryScale))) *
		math.Pow(10, -float64(p.DecimalScale))
	return float32(y)
}

// unpackSimple decodes template 5.0 bit-packed values. A zero bit width
// means every cell holds the reference value.
func (m *Message) unpackSimple(n int) []float32 {
	field := make([]float32, n)
	p := m.Packing
	if p.BitsPerValue == 0 {
		v := p.scale(0)
		for i := range field {
			field[i] = v
		}
		return field
	}
	width := int(p.BitsPerValue)
	for i := 0; i < n; i++ {
		x := bitsAt(m.data, i*width, width)
		field[i] = p.scale(x)
	}
	return field
}

// unpackPNG decodes template 5.41: the section 7 payload is itself a PNG
// image whose samples are the packed integers. A sample of zero, or a scaled
// value below -30 dBZ, is missing. If the embedded image does not decode,
// the payload bytes past the PNG signature are taken as raw 8-bit samples.
func (m *Message) unpackPNG(n int, logger *slog.Logger) ([]float32, bool) {
	p := m.Packing
	img, err := png.Decode(bytes.NewReader(m.data))
	if err != nil {
		logger.Warn("embedded PNG decode failed, falling back to raw bytes", "error", err)
		return m.unpackPNGRaw(n), true
	}

	field := make([]float32, n)
	for i := range field {
		field[i] = Missing
	}

	bounds := img.Bounds()
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y && i < n; y++ {
		for x := bounds.Min.X; x < bounds.Max.X && i < n; x++ {
			ch0, ch1, channels := samplePNG(img, x, y)
			var sample uint32
			if p.BitsPerValue > 8 && p.BitsPerValue <= 16 && channels >= 2 {
				sample = uint32(ch0)<<8 | uint32(ch1)
			} else {
				sample = uint32(ch0)
			}
			field[i] = pngSampleValue(p, sample)
			i++
		}
	}
	return field, false
}

// unpackPNGRaw is the best-effort fallback when the embedded PNG is
// undecodable: payload bytes after the 8-byte PNG signature become samples.
func (m *Message) unpackPNGRaw(n int) []float32 {
	field := make([]float32, n)
	for i := range field {
		field[i] = Missing
	}
	raw := m.data
	if len(raw) > 8 {
		raw = raw[8:]
	}
	for i := 0; i < n && i < len(raw); i++ {
		field[i] = pngSampleValue(m.Packing, uint32(raw[i]))
	}
	return field
}

// pngSampleValue applies the scale formula with the template 41 missing
// rule: sample zero or a result below -30 dBZ is no echo.
func pngSampleValue(p Packing, sample uint32) float32 {
	if sample == 0 {
		return Missing
	}
	v := p.scale(sample)
	if v < -30 {
		return Missing
	}
	return v
}

// samplePNG returns the first two channel bytes of the pixel and the channel
// count, avoiding the 16-bit premultiplication of the generic color API for
// the common image types.
func samplePNG(img image.Image, x, y int) (ch0, ch1 uint8, channels int) {
	switch im := img.(type) {
	case *image.Gray:
		return im.GrayAt(x, y).Y, 0, 1
	case *image.Gray16:
		g := im.Gray16At(x, y).Y
		return uint8(g >> 8), uint8(g), 2
	case *image.NRGBA:
		c := im.NRGBAAt(x, y)
		return c.R, c.G, 4
	case *image.RGBA:
		c := im.RGBAAt(x, y)
		return c.R, c.G, 4
	default:
		c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
		return c.R, c.G, 4
	}
}

// unpackRunLength decodes the MRMS template 5.200 byte stream: alternating
// (value, count) pairs where value 0 is no data and any other value v maps
// to v*0.5 - 33 dBZ. Decoding stops when the field is full or the stream
// runs out; unreached cells stay missing.
func (m *Message) unpackRunLength(n int) []float32 {
	field := make([]float32, n)
	for i := range field {
		field[i] = Missing
	}
	i := 0
	for pos := 0; pos+1 < len(m.data) && i < n; pos += 2 {
		value := m.data[pos]
		count := int(m.data[pos+1])
		dbz := Missing
		if value != 0 {
			dbz = float32(value)*0.5 - 33
		}
		for k := 0; k < count && i < n; k++ {
			field[i] = dbz
			i++
		}
	}
	return field
}

// unpackJPEG2000 handles template 5.40 without a JPEG 2000 codec: each
// payload byte is taken as one sample. The result is visually meaningful but
// not quantitatively correct, so it is flagged rather than failed.
func (m *Message) unpackJPEG2000(n int, logger *slog.Logger) []float32 {
	logger.Warn("JPEG 2000 packing decoded byte-per-sample; values are approximate",
		"num_points", n, "payload_bytes", len(m.data))
	field := make([]float32, n)
	for i := range field {
		field[i] = Missing
	}
	for i := 0; i < n && i < len(m.data); i++ {
		field[i] = m.Packing.scale(uint32(m.data[i]))
	}
	return field
}
