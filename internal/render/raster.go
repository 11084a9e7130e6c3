package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
)

// ErrRenderFailed marks a PNG encoder rejection of the pixel buffer.
var ErrRenderFailed = errors.New("render failed")

// Scanning mode flags from GRIB2 flag table 3.4. Only the two axis-direction
// bits matter for reorientation.
const (
	scanEastToWest   = 0x80 // points in the -i direction
	scanSouthToNorth = 0x40 // points in the +j direction
)

// Raster converts a dBZ field into a north-up, west-left RGBA image,
// undoing the grid's scanning order, and PNG-encodes it.
func Raster(field []float32, width, height int, scanningMode uint8) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d image", ErrRenderFailed, width, height)
	}
	if len(field) != width*height {
		return nil, fmt.Errorf("%w: field has %d values for %dx%d grid", ErrRenderFailed, len(field), width, height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	westToEast := scanningMode&scanEastToWest == 0
	northToSouth := scanningMode&scanSouthToNorth == 0

	for j := 0; j < height; j++ {
		srcY := j
		if !northToSouth {
			srcY = height - 1 - j
		}
		row := img.Pix[j*img.Stride:]
		for i := 0; i < width; i++ {
			srcX := i
			if !westToEast {
				srcX = width - 1 - i
			}
			c := ColorForDBZ(field[srcY*width+srcX])
			px := row[i*4 : i*4+4]
			px[0] = c.R
			px[1] = c.G
			px[2] = c.B
			px[3] = c.A
		}
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}
