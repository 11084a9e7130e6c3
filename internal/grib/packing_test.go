package grib_test

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/mrms-radar-service/internal/grib"
	"github.com/couchcryptid/mrms-radar-service/internal/gribtest"
)

func parseAndUnpack(t *testing.T, o gribtest.Options) ([]float32, bool) {
	t.Helper()
	msg, err := grib.Parse(gribtest.Build(o))
	require.NoError(t, err)
	field, approximate, err := msg.Unpack(nil)
	require.NoError(t, err)
	return field, approximate
}

func TestSimplePacking(t *testing.T) {
	t.Run("single 8-bit cell", func(t *testing.T) {
		o := baseOptions()
		o.Grid.Width, o.Grid.Height = 1, 1
		o.Packing = gribtest.PackingOptions{Template: 0, Bits: 8}
		o.Data = []byte{0x1E}

		field, approximate := parseAndUnpack(t, o)
		assert.False(t, approximate)
		require.Len(t, field, 1)
		assert.Equal(t, float32(30), field[0])
	})

	t.Run("zero bits fills reference value", func(t *testing.T) {
		o := baseOptions()
		o.Packing = gribtest.PackingOptions{Template: 0, Reference: 45, DecimalScale: 1, Bits: 0}
		o.Data = nil

		field, _ := parseAndUnpack(t, o)
		require.Len(t, field, 4)
		for _, v := range field {
			assert.InDelta(t, 4.5, v, 1e-6)
		}
	})

	t.Run("12-bit values cross byte boundaries", func(t *testing.T) {
		o := baseOptions()
		o.Grid.Width, o.Grid.Height = 3, 1
		o.Packing = gribtest.PackingOptions{Template: 0, Bits: 12}
		o.Data = gribtest.PackBits([]uint32{100, 2000, 4095}, 12)

		field, _ := parseAndUnpack(t, o)
		assert.Equal(t, []float32{100, 2000, 4095}, field)
	})

	t.Run("binary and decimal scale factors", func(t *testing.T) {
		// Y = (R + X*2^E) * 10^(-D) with R=-10, E=1, D=1, X=30: (−10+60)/10 = 5.
		o := baseOptions()
		o.Grid.Width, o.Grid.Height = 1, 1
		o.Packing = gribtest.PackingOptions{
			Template: 0, Reference: -10, BinaryScale: 1, DecimalScale: 1, Bits: 8,
		}
		o.Data = []byte{30}

		field, _ := parseAndUnpack(t, o)
		assert.InDelta(t, 5.0, field[0], 1e-6)
	})

	t.Run("negative binary scale", func(t *testing.T) {
		// X=3, E=-1: 3 * 0.5 = 1.5.
		o := baseOptions()
		o.Grid.Width, o.Grid.Height = 1, 1
		o.Packing = gribtest.PackingOptions{Template: 0, BinaryScale: -1, Bits: 8}
		o.Data = []byte{3}

		field, _ := parseAndUnpack(t, o)
		assert.InDelta(t, 1.5, field[0], 1e-6)
	})

	t.Run("point count mismatch with grid", func(t *testing.T) {
		o := baseOptions()
		o.Packing.NumPointsOverride = 3

		msg, err := grib.Parse(gribtest.Build(o))
		require.NoError(t, err)
		_, _, err = msg.Unpack(nil)
		assert.ErrorIs(t, err, grib.ErrInvalidFormat)
	})
}

func TestRunLengthPacking(t *testing.T) {
	t.Run("value zero is missing, others scale by half minus 33", func(t *testing.T) {
		o := baseOptions()
		o.Packing = gribtest.PackingOptions{Template: 200}
		o.Data = []byte{0x00, 0x02, 0x40, 0x02}

		field, approximate := parseAndUnpack(t, o)
		assert.False(t, approximate)
		assert.Equal(t, []float32{-999, -999, -1, -1}, field)
	})

	t.Run("short stream leaves tail missing", func(t *testing.T) {
		o := baseOptions()
		o.Packing = gribtest.PackingOptions{Template: 200}
		o.Data = []byte{0x96, 0x01} // 150*0.5-33 = 42 dBZ, one cell

		field, _ := parseAndUnpack(t, o)
		assert.Equal(t, []float32{42, -999, -999, -999}, field)
	})

	t.Run("run longer than field is clamped", func(t *testing.T) {
		o := baseOptions()
		o.Packing = gribtest.PackingOptions{Template: 200}
		o.Data = []byte{0x96, 0xFF}

		field, _ := parseAndUnpack(t, o)
		assert.Equal(t, []float32{42, 42, 42, 42}, field)
	})
}

// encodeGray builds a grayscale PNG with the given pixel values, row-major.
func encodeGray(t *testing.T, width, height int, pixels []byte) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	copy(img.Pix, pixels)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPNGPacking(t *testing.T) {
	t.Run("8-bit grayscale samples", func(t *testing.T) {
		o := baseOptions()
		o.Grid.Width, o.Grid.Height = 2, 1
		o.Packing = gribtest.PackingOptions{Template: 41, Bits: 8}
		o.Data = encodeGray(t, 2, 1, []byte{100, 200})

		field, approximate := parseAndUnpack(t, o)
		assert.False(t, approximate)
		assert.Equal(t, []float32{100, 200}, field)
	})

	t.Run("sample zero is missing", func(t *testing.T) {
		o := baseOptions()
		o.Grid.Width, o.Grid.Height = 2, 1
		o.Packing = gribtest.PackingOptions{Template: 41, Bits: 8}
		o.Data = encodeGray(t, 2, 1, []byte{0, 100})

		field, _ := parseAndUnpack(t, o)
		assert.Equal(t, []float32{-999, 100}, field)
	})

	t.Run("values below -30 dBZ are missing", func(t *testing.T) {
		o := baseOptions()
		o.Grid.Width, o.Grid.Height = 2, 1
		o.Packing = gribtest.PackingOptions{Template: 41, Reference: -100, Bits: 8}
		o.Data = encodeGray(t, 2, 1, []byte{10, 90})

		field, _ := parseAndUnpack(t, o)
		assert.Equal(t, []float32{-999, -10}, field)
	})

	t.Run("16-bit samples combine two channels", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		// Channels 0 and 1 assemble big-endian: 0x01F4 = 500.
		img.Pix[0], img.Pix[1], img.Pix[2], img.Pix[3] = 0x01, 0xF4, 0x00, 0xFF
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))

		o := baseOptions()
		o.Grid.Width, o.Grid.Height = 1, 1
		o.Packing = gribtest.PackingOptions{Template: 41, Bits: 16}
		o.Data = buf.Bytes()

		field, _ := parseAndUnpack(t, o)
		assert.Equal(t, []float32{500}, field)
	})

	t.Run("undecodable payload falls back to raw bytes", func(t *testing.T) {
		o := baseOptions()
		o.Grid.Width, o.Grid.Height = 2, 1
		o.Packing = gribtest.PackingOptions{Template: 41, Bits: 8}
		o.Data = []byte{1, 2, 3, 4, 5, 6, 7, 8, 50, 60}

		field, approximate := parseAndUnpack(t, o)
		assert.True(t, approximate)
		assert.Equal(t, []float32{50, 60}, field)
	})
}

func TestJPEG2000Packing(t *testing.T) {
	o := baseOptions()
	o.Grid.Width, o.Grid.Height = 2, 1
	o.Packing = gribtest.PackingOptions{Template: 40, Bits: 8}
	o.Data = []byte{10, 20}

	field, approximate := parseAndUnpack(t, o)
	assert.True(t, approximate)
	assert.Equal(t, []float32{10, 20}, field)
}

func TestUnsupportedPacking(t *testing.T) {
	o := baseOptions()
	o.Packing.Template = 3

	_, err := grib.Parse(gribtest.Build(o))

	var unsupported *grib.UnsupportedPackingError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, uint16(3), unsupported.Template)
}
