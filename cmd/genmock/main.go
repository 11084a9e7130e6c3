// Command genmock generates synthetic MRMS RALA fixtures for the radar test
// suites: gzip-compressed GRIB2 products with gaussian storm cells, plus the
// golden metadata JSON the pipeline is expected to emit for them. It uses
// the actual decode pipeline so the goldens match real behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir data/mock \
//	  -width 600 -height 300
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/mrms-radar-service/internal/domain"
	"github.com/couchcryptid/mrms-radar-service/internal/gribtest"
	"github.com/couchcryptid/mrms-radar-service/internal/observability"
	"github.com/couchcryptid/mrms-radar-service/internal/pipeline"
)

var refTime = time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)

// storm is one synthetic gaussian reflectivity cell.
type storm struct {
	cx, cy  float64 // center, grid fraction [0,1]
	radius  float64 // e-folding radius, grid fraction
	peakDBZ float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "data/mock", "output directory for fixtures")
	width := flag.Int("width", 600, "grid width")
	height := flag.Int("height", 300, "grid height")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// Fix the clock so the fixture run stamps a reproducible ProcessedAt. The
	// goldens themselves (PNG and metadata JSON) carry no processing time.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.April, 26, 15, 12, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	storms := []storm{
		{cx: 0.30, cy: 0.40, radius: 0.06, peakDBZ: 55},
		{cx: 0.55, cy: 0.55, radius: 0.10, peakDBZ: 42},
		{cx: 0.70, cy: 0.30, radius: 0.04, peakDBZ: 62},
	}
	field := synthesizeField(*width, *height, storms)

	compressed := gribtest.BuildGzip(gribtest.Options{
		RefTime: refTime,
		Grid: gribtest.GridOptions{
			Template: 0,
			Width:    *width,
			Height:   *height,
			Lat1:     55, Lon1: -130,
			Lat2: 20, Lon2: -60,
			Dx: 70.0 / float64(*width), Dy: 35.0 / float64(*height),
		},
		Packing: gribtest.PackingOptions{
			Template:  0,
			Reference: -33,
			Bits:      8,
		},
		Data:           gribtest.PackSimple8(field, -33),
		IncludeProduct: true,
		IncludeBitmap:  true,
	})

	gribPath := filepath.Join(*outDir, "rala_240426_1510.grib2.gz")
	if err := os.WriteFile(gribPath, compressed, 0o644); err != nil {
		return fmt.Errorf("writing GRIB2 fixture: %w", err)
	}
	log.Printf("wrote GRIB2 fixture: %s (%d bytes)", gribPath, len(compressed))

	// Run the fixture through the real pipeline for the golden outputs.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	p := pipeline.New(logger, observability.NewMetricsForTesting())
	product, err := p.Process(context.Background(), compressed)
	if err != nil {
		return fmt.Errorf("processing fixture: %w", err)
	}

	pngPath := filepath.Join(*outDir, "rala_240426_1510.png")
	if err := os.WriteFile(pngPath, product.PNG, 0o644); err != nil {
		return fmt.Errorf("writing PNG golden: %w", err)
	}
	log.Printf("wrote PNG golden: %s (%d bytes)", pngPath, len(product.PNG))

	metaPath := filepath.Join(*outDir, "rala_240426_1510.metadata.json")
	meta, err := json.MarshalIndent(product.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, append(meta, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing metadata golden: %w", err)
	}
	log.Printf("wrote metadata golden: %s", metaPath)

	return nil
}

// synthesizeField builds a dBZ field from gaussian cells over a missing
// background, mimicking isolated convection on an otherwise clear CONUS.
func synthesizeField(width, height int, storms []storm) []float32 {
	field := make([]float32, width*height)
	for i := range field {
		field[i] = -999
	}
	for j := 0; j < height; j++ {
		for i := 0; i < width; i++ {
			fx := float64(i) / float64(width)
			fy := float64(j) / float64(height)
			var dbz float64
			for _, s := range storms {
				d2 := (fx-s.cx)*(fx-s.cx) + (fy-s.cy)*(fy-s.cy)
				dbz = math.Max(dbz, s.peakDBZ*math.Exp(-d2/(s.radius*s.radius)))
			}
			if dbz >= 5 {
				field[j*width+i] = float32(dbz)
			}
		}
	}
	return field
}
