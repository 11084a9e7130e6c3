// Command validate performs integrity checks on an MRMS GRIB2 product file:
// message structure, grid consistency, field statistics, and render health.
// It accepts raw or gzip-compressed input and can dump the rendered PNG and
// metadata for inspection.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -in data/mock/rala_240426_1510.grib2.gz \
//	  -png-out /tmp/overlay.png \
//	  -meta-out /tmp/metadata.json
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/mrms-radar-service/internal/domain"
	"github.com/couchcryptid/mrms-radar-service/internal/grib"
	"github.com/couchcryptid/mrms-radar-service/internal/render"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	in := flag.String("in", "", "path to a .grib2 or .grib2.gz product file")
	pngOut := flag.String("png-out", "", "optional path to write the rendered PNG")
	metaOut := flag.String("meta-out", "", "optional path to write the metadata JSON")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*in, *pngOut, *metaOut); code != 0 {
		os.Exit(code)
	}
}

func run(inPath, pngOut, metaOut string) int {
	fmt.Println("=== MRMS Product Integrity Validation ===")
	fmt.Println()

	raw, err := loadProduct(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load product: %v\n", err)
		return 1
	}

	var phases []*phase

	// ── Structure ──
	structure := &phase{name: "message structure"}
	msg, err := grib.Parse(raw)
	if err != nil {
		structure.errorf("parse: %v", err)
		report(append(phases, structure))
		return 1
	}
	if msg.RefTime.IsZero() {
		structure.errorf("zero reference time")
	}
	phases = append(phases, structure)

	// ── Grid ──
	gridPhase := &phase{name: "grid consistency"}
	g := msg.Grid
	if g.NumPoints != g.Width*g.Height {
		gridPhase.errorf("num_points %d != %dx%d", g.NumPoints, g.Width, g.Height)
	}
	if g.Bounds.North < g.Bounds.South {
		gridPhase.errorf("north %.3f below south %.3f", g.Bounds.North, g.Bounds.South)
	}
	if g.Bounds.East < g.Bounds.West {
		gridPhase.errorf("east %.3f west of west %.3f", g.Bounds.East, g.Bounds.West)
	}
	if g.Bounds.West < -180 || g.Bounds.East > 180 {
		gridPhase.errorf("bounds not normalized: W=%.3f E=%.3f", g.Bounds.West, g.Bounds.East)
	}
	phases = append(phases, gridPhase)

	// ── Field ──
	fieldPhase := &phase{name: "field statistics"}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	field, approximate, err := msg.Unpack(logger)
	if err != nil {
		fieldPhase.errorf("unpack: %v", err)
		report(append(phases, fieldPhase))
		return 1
	}
	minDBZ, maxDBZ, missing := fieldStats(field)
	if len(field) != g.NumPoints {
		fieldPhase.errorf("field has %d values, grid declares %d", len(field), g.NumPoints)
	}
	if missing < len(field) && (minDBZ < -35 || maxDBZ > 95) {
		fieldPhase.errorf("dBZ range [%.1f, %.1f] implausible for reflectivity", minDBZ, maxDBZ)
	}
	phases = append(phases, fieldPhase)

	// ── Render ──
	renderPhase := &phase{name: "render"}
	png, err := render.Raster(field, g.Width, g.Height, g.ScanningMode)
	if err != nil {
		renderPhase.errorf("raster: %v", err)
	}
	phases = append(phases, renderPhase)

	report(phases)

	fmt.Printf("reference time:  %s\n", domain.FormatTimestamp(msg.RefTime))
	fmt.Printf("grid:            %dx%d (template %d, scan 0x%02X)\n", g.Width, g.Height, g.TemplateNum, g.ScanningMode)
	fmt.Printf("bounds:          N=%.3f S=%.3f E=%.3f W=%.3f\n", g.Bounds.North, g.Bounds.South, g.Bounds.East, g.Bounds.West)
	fmt.Printf("packing:         template %d, %d bits\n", msg.Packing.TemplateNum, msg.Packing.BitsPerValue)
	fmt.Printf("dBZ range:       [%.1f, %.1f], %.1f%% missing\n", minDBZ, maxDBZ, 100*float64(missing)/float64(len(field)))
	if approximate {
		fmt.Println("note:            values decoded through a lossy fallback")
	}

	if pngOut != "" && len(png) > 0 {
		if err := os.WriteFile(pngOut, png, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: write PNG: %v\n", err)
			return 1
		}
		fmt.Printf("wrote PNG:       %s (%d bytes)\n", pngOut, len(png))
	}
	if metaOut != "" {
		meta := domain.Metadata{
			Timestamp: domain.FormatTimestamp(msg.RefTime),
			Bounds: domain.Bounds{
				North: g.Bounds.North, South: g.Bounds.South,
				East: g.Bounds.East, West: g.Bounds.West,
			},
			Width:  g.Width,
			Height: g.Height,
		}
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: marshal metadata: %v\n", err)
			return 1
		}
		if err := os.WriteFile(metaOut, append(data, '\n'), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: write metadata: %v\n", err)
			return 1
		}
		fmt.Printf("wrote metadata:  %s\n", metaOut)
	}

	for _, p := range phases {
		if !p.passed() {
			return 1
		}
	}
	return 0
}

// loadProduct reads the file, transparently decompressing gzip input.
func loadProduct(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") || (len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gunzip: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	}
	return data, nil
}

func fieldStats(field []float32) (minDBZ, maxDBZ float32, missing int) {
	minDBZ, maxDBZ = float32(1e9), float32(-1e9)
	for _, v := range field {
		if v < -900 {
			missing++
			continue
		}
		minDBZ = min(minDBZ, v)
		maxDBZ = max(maxDBZ, v)
	}
	if missing == len(field) {
		minDBZ, maxDBZ = 0, 0
	}
	return minDBZ, maxDBZ, missing
}

func report(phases []*phase) {
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		fmt.Printf("FAIL  %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("      - %s\n", e)
		}
	}
	fmt.Println()
}
