package grib_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/mrms-radar-service/internal/grib"
	"github.com/couchcryptid/mrms-radar-service/internal/gribtest"
)

// baseOptions returns a minimal valid 2x2 template-0 message.
func baseOptions() gribtest.Options {
	return gribtest.Options{
		RefTime: time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
		Grid: gribtest.GridOptions{
			Template: 0,
			Width:    2,
			Height:   2,
			Lat1:     41, Lon1: -100,
			Lat2: 40, Lon2: -99,
			Dx: 1, Dy: 1,
		},
		Packing: gribtest.PackingOptions{Template: 0, Bits: 8},
		Data:    []byte{10, 20, 30, 40},
	}
}

func TestParse(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		msg, err := grib.Parse(gribtest.Build(baseOptions()))
		require.NoError(t, err)

		assert.Equal(t, time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC), msg.RefTime)
		assert.Equal(t, 2, msg.Grid.Width)
		assert.Equal(t, 2, msg.Grid.Height)
		assert.Equal(t, 4, msg.Grid.NumPoints)
		assert.Equal(t, uint16(0), msg.Packing.TemplateNum)
		assert.Equal(t, uint8(8), msg.Packing.BitsPerValue)
	})

	t.Run("bad magic", func(t *testing.T) {
		buf := gribtest.Build(baseOptions())
		copy(buf, "JUNK")
		_, err := grib.Parse(buf)
		assert.ErrorIs(t, err, grib.ErrInvalidFormat)
	})

	t.Run("edition 1 rejected", func(t *testing.T) {
		o := baseOptions()
		o.Edition = 1
		_, err := grib.Parse(gribtest.Build(o))
		assert.ErrorIs(t, err, grib.ErrUnsupportedEdition)
	})

	t.Run("truncated message", func(t *testing.T) {
		buf := gribtest.Build(baseOptions())
		_, err := grib.Parse(buf[:len(buf)-10])
		assert.ErrorIs(t, err, grib.ErrInvalidFormat)
	})

	t.Run("shorter than section 0", func(t *testing.T) {
		_, err := grib.Parse([]byte("GRIB"))
		assert.ErrorIs(t, err, grib.ErrInvalidFormat)
	})

	t.Run("missing section 3", func(t *testing.T) {
		o := baseOptions()
		o.OmitGrid = true
		_, err := grib.Parse(gribtest.Build(o))

		var missing *grib.MissingSectionError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, 3, missing.Section)
	})

	t.Run("missing section 5", func(t *testing.T) {
		o := baseOptions()
		o.OmitPacking = true
		_, err := grib.Parse(gribtest.Build(o))

		var missing *grib.MissingSectionError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, 5, missing.Section)
	})

	t.Run("missing section 7", func(t *testing.T) {
		o := baseOptions()
		o.OmitData = true
		_, err := grib.Parse(gribtest.Build(o))

		var missing *grib.MissingSectionError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, 7, missing.Section)
	})

	t.Run("invalid reference time", func(t *testing.T) {
		buf := gribtest.Build(baseOptions())
		// Month byte lives at octet 15 of section 1 (offset 16+14).
		buf[16+14] = 13
		_, err := grib.Parse(buf)
		assert.ErrorIs(t, err, grib.ErrInvalidFormat)
	})

	t.Run("grid point count mismatch", func(t *testing.T) {
		o := baseOptions()
		o.Grid.NumPointsOverride = 5
		_, err := grib.Parse(gribtest.Build(o))
		assert.ErrorIs(t, err, grib.ErrInvalidFormat)
	})
}

// TestParseSkipsOptionalSections verifies that local-use, product-definition,
// and bitmap sections between the required ones do not change the decode.
func TestParseSkipsOptionalSections(t *testing.T) {
	plain := baseOptions()

	padded := baseOptions()
	padded.LocalUse = []byte("MRMS local metadata")
	padded.IncludeProduct = true
	padded.IncludeBitmap = true

	msgPlain, err := grib.Parse(gribtest.Build(plain))
	require.NoError(t, err)
	msgPadded, err := grib.Parse(gribtest.Build(padded))
	require.NoError(t, err)

	assert.Equal(t, msgPlain.Grid, msgPadded.Grid)
	assert.Equal(t, msgPlain.Packing, msgPadded.Packing)
	assert.Equal(t, msgPlain.RefTime, msgPadded.RefTime)

	fieldPlain, _, err := msgPlain.Unpack(nil)
	require.NoError(t, err)
	fieldPadded, _, err := msgPadded.Unpack(nil)
	require.NoError(t, err)
	assert.Equal(t, fieldPlain, fieldPadded)
}
