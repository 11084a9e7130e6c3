package grib

import "fmt"

// Bounds is an axis-aligned geographic rectangle in degrees, longitudes
// normalized to [-180, 180].
type Bounds struct {
	North float64
	South float64
	East  float64
	West  float64
}

// conusBounds is the fixed rectangle reported for Lambert Conformal grids.
// The projection itself is not computed; callers treat the raster as if it
// mapped to this box. See the template 30 notes on parseLambertGrid.
var conusBounds = Bounds{North: 55.0, South: 20.0, East: -60.0, West: -130.0}

// Grid describes the geometry declared in section 3.
type Grid struct {
	TemplateNum  uint16
	Width        int
	Height       int
	NumPoints    int
	Bounds       Bounds
	ScanningMode uint8

	// Template 0 raw values, in degrees after divisor scaling.
	Lat1, Lon1 float64
	Lat2, Lon2 float64
	Dx, Dy     float64
}

// Grid definition template numbers handled by parseGrid.
const (
	gridTemplateLatLon  = 0
	gridTemplateLambert = 30
)

// parseGrid decodes section 3 starting at off.
func parseGrid(r *reader, off, length int) (Grid, error) {
	numPoints, err := r.uint(off+6, 4)
	if err != nil {
		return Grid{}, err
	}
	templateNum, err := r.uint(off+12, 2)
	if err != nil {
		return Grid{}, err
	}

	g := Grid{
		TemplateNum: uint16(templateNum),
		NumPoints:   int(numPoints),
	}

	switch templateNum {
	case gridTemplateLatLon:
		if err := parseLatLonGrid(r, off, length, &g); err != nil {
			return Grid{}, err
		}
	case gridTemplateLambert:
		if err := parseLambertGrid(r, off, length, &g); err != nil {
			return Grid{}, err
		}
	default:
		return Grid{}, &UnsupportedGridTemplateError{Template: uint16(templateNum)}
	}

	if g.Width*g.Height != g.NumPoints {
		return Grid{}, fmt.Errorf("%w: %d grid points for %dx%d grid",
			ErrInvalidFormat, g.NumPoints, g.Width, g.Height)
	}
	return g, nil
}

// parseLatLonGrid decodes template 3.0, equidistant cylindrical. Corner
// coordinates and increments are sign-magnitude integers scaled by the basic
// angle divisor (10^6 unless both basic angle and subdivisions are set).
func parseLatLonGrid(r *reader, off, length int, g *Grid) error {
	if length < 72 {
		return fmt.Errorf("%w: section 3 template 0 length %d", ErrInvalidFormat, length)
	}
	ni, err := r.uint(off+30, 4)
	if err != nil {
		return err
	}
	nj, err := r.uint(off+34, 4)
	if err != nil {
		return err
	}
	basicAngle, err := r.uint(off+38, 4)
	if err != nil {
		return err
	}
	subdivisions, err := r.uint(off+42, 4)
	if err != nil {
		return err
	}
	divisor := 1_000_000.0
	if basicAngle != 0 && subdivisions != 0 {
		divisor = float64(basicAngle) * float64(subdivisions)
	}

	angle := func(byteOff int) (float64, error) {
		v, err := r.int(byteOff, 4)
		if err != nil {
			return 0, err
		}
		return float64(v) / divisor, nil
	}

	if g.Lat1, err = angle(off + 46); err != nil {
		return err
	}
	if g.Lon1, err = angle(off + 50); err != nil {
		return err
	}
	// Octet 55 holds the resolution and component flags; the second corner
	// and increments follow it.
	if g.Lat2, err = angle(off + 55); err != nil {
		return err
	}
	if g.Lon2, err = angle(off + 59); err != nil {
		return err
	}
	if g.Dx, err = angle(off + 63); err != nil {
		return err
	}
	if g.Dy, err = angle(off + 67); err != nil {
		return err
	}
	g.ScanningMode = r.buf[off+71]

	g.Width = int(ni)
	g.Height = int(nj)
	g.Lon1 = normalizeLon(g.Lon1)
	g.Lon2 = normalizeLon(g.Lon2)
	g.Bounds = Bounds{
		North: max(g.Lat1, g.Lat2),
		South: min(g.Lat1, g.Lat2),
		East:  max(g.Lon1, g.Lon2),
		West:  min(g.Lon1, g.Lon2),
	}
	return nil
}

// parseLambertGrid decodes the dimensions and scanning mode of template 3.30
// but does not compute the projection: the bounds are reported as the fixed
// CONUS rectangle, matching the MRMS CONUS domain these products cover.
func parseLambertGrid(r *reader, off, length int, g *Grid) error {
	if length < 65 {
		return fmt.Errorf("%w: section 3 template 30 length %d", ErrInvalidFormat, length)
	}
	nx, err := r.uint(off+30, 4)
	if err != nil {
		return err
	}
	ny, err := r.uint(off+34, 4)
	if err != nil {
		return err
	}
	lat1, err := r.int(off+38, 4)
	if err != nil {
		return err
	}
	lon1, err := r.int(off+42, 4)
	if err != nil {
		return err
	}

	g.Width = int(nx)
	g.Height = int(ny)
	g.Lat1 = float64(lat1) / 1_000_000.0
	g.Lon1 = normalizeLon(float64(lon1) / 1_000_000.0)
	g.ScanningMode = r.buf[off+64]
	g.Bounds = conusBounds
	return nil
}

// normalizeLon wraps longitudes above 180 into [-180, 180]. GRIB2 encodes
// longitudes in [0, 360).
func normalizeLon(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	return lon
}
