// Package domain models NOAA MRMS radar products.
//
// # Data Source
//
// Products originate from the NOAA MRMS (Multi-Radar Multi-Sensor) product
// feed, specifically the "Reflectivity at Lowest Altitude" (RALA) grid
// published as a gzip-compressed GRIB2 message at
// https://mrms.ncep.noaa.gov/data/2D/ReflectivityAtLowestAltitude/. The
// refresher fetches the latest file on an interval and runs it through the
// decode pipeline.
//
// # Conventions
//
// Reflectivity is in dBZ. Cells with no echo or outside radar coverage carry
// the sentinel -999 in the decoded field and render fully transparent. The
// overlay raster is always north-up and west-left regardless of the GRIB2
// scanning mode, so the browser can stretch it directly over the metadata
// bounds.
package domain

import "time"

// Bounds is the geographic rectangle the overlay maps onto, WGS-84 degrees.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Metadata describes a rendered overlay. Timestamp is the GRIB2 reference
// time; Width and Height match the PNG dimensions exactly.
type Metadata struct {
	Timestamp string `json:"timestamp"`
	Bounds    Bounds `json:"bounds"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// TimestampFormat renders UTC reference times as ISO-8601 with millisecond
// precision, e.g. "2024-01-15T18:42:00.000Z".
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// FormatTimestamp produces the metadata timestamp string for t.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// RadarProduct is one fully processed radar refresh: the encoded overlay,
// its metadata, and the wall-clock time processing finished.
type RadarProduct struct {
	PNG         []byte
	Metadata    Metadata
	ProcessedAt time.Time
}

// Stamp records the processing time from the package clock.
func (p *RadarProduct) Stamp() {
	p.ProcessedAt = clock.Now()
}
