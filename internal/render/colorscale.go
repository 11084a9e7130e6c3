// Package render turns decoded dBZ fields into geo-aligned PNG overlays.
package render

import "math"

// RGBA is a straight (non-premultiplied) color.
type RGBA struct {
	R, G, B, A uint8
}

type colorStop struct {
	dbz   float32
	color RGBA
}

// reflectivityScale is the NWS-style reflectivity ramp from -30 to 75 dBZ.
// At or below 0 dBZ the overlay is transparent: no significant precipitation.
// Between 0 and 5 dBZ it fades in toward the first visible stop.
var reflectivityScale = []colorStop{
	{-30, RGBA{0, 0, 0, 0}},
	{0, RGBA{0, 0, 0, 0}},
	{5, RGBA{4, 68, 94, 160}},
	{10, RGBA{0, 160, 180, 200}},
	{15, RGBA{0, 200, 160, 220}},
	{20, RGBA{0, 230, 0, 240}},
	{25, RGBA{0, 200, 0, 250}},
	{30, RGBA{0, 144, 0, 255}},
	{35, RGBA{255, 255, 0, 255}},
	{40, RGBA{255, 192, 0, 255}},
	{45, RGBA{255, 128, 0, 255}},
	{50, RGBA{255, 0, 0, 255}},
	{55, RGBA{200, 0, 0, 255}},
	{60, RGBA{255, 0, 200, 255}},
	{65, RGBA{160, 0, 255, 255}},
	{70, RGBA{255, 255, 255, 255}},
	{75, RGBA{200, 200, 255, 255}},
}

// ColorForDBZ maps a reflectivity value to its overlay color, interpolating
// linearly between adjacent scale stops. Missing cells (below -900 or NaN)
// are fully transparent.
func ColorForDBZ(dbz float32) RGBA {
	if dbz < -900 || math.IsNaN(float64(dbz)) {
		return RGBA{}
	}
	stops := reflectivityScale
	if dbz < stops[0].dbz {
		return stops[0].color
	}
	last := len(stops) - 1
	if dbz >= stops[last].dbz {
		return stops[last].color
	}
	for i := 0; i < last; i++ {
		lo, hi := stops[i], stops[i+1]
		if dbz >= lo.dbz && dbz < hi.dbz {
			t := (dbz - lo.dbz) / (hi.dbz - lo.dbz)
			return RGBA{
				R: lerpChannel(lo.color.R, hi.color.R, t),
				G: lerpChannel(lo.color.G, hi.color.G, t),
				B: lerpChannel(lo.color.B, hi.color.B, t),
				A: lerpChannel(lo.color.A, hi.color.A, t),
			}
		}
	}
	return stops[last].color
}

func lerpChannel(a, b uint8, t float32) uint8 {
	v := float64(a) + float64(t)*(float64(b)-float64(a))
	return uint8(math.Round(v))
}
