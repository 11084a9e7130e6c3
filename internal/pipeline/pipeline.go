// Package pipeline contains the radar decode facade and the refresh loop
// that keeps the latest product flowing from the MRMS feed into the cache.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/mrms-radar-service/internal/domain"
	"github.com/couchcryptid/mrms-radar-service/internal/grib"
	"github.com/couchcryptid/mrms-radar-service/internal/observability"
	"github.com/couchcryptid/mrms-radar-service/internal/render"
)

// ErrDecompressionFailed marks a gzip stream the decompressor rejected.
var ErrDecompressionFailed = errors.New("decompression failed")

// Pipeline decodes compressed MRMS products into rendered overlays. It holds
// no per-invocation state and is safe for concurrent use.
type Pipeline struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Pipeline with the given observability.
func New(logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{logger: logger, metrics: metrics}
}

// Process runs one product through decompress, GRIB2 parse, unpack, and
// render, returning the overlay with its metadata. The input and all
// intermediate buffers belong to this invocation alone.
func (p *Pipeline) Process(ctx context.Context, compressed []byte) (*domain.RadarProduct, error) {
	decodeStart := time.Now()

	raw, err := gunzip(compressed)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg, err := grib.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse product: %w", err)
	}
	field, approximate, err := msg.Unpack(p.logger)
	if err != nil {
		return nil, fmt.Errorf("unpack product: %w", err)
	}
	p.metrics.DecodeDuration.Observe(time.Since(decodeStart).Seconds())
	p.metrics.PackingTemplate.WithLabelValues(strconv.Itoa(int(msg.Packing.TemplateNum))).Inc()
	if approximate {
		p.metrics.ApproximateDecodes.Inc()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	renderStart := time.Now()
	pngBytes, err := render.Raster(field, msg.Grid.Width, msg.Grid.Height, msg.Grid.ScanningMode)
	if err != nil {
		return nil, err
	}
	p.metrics.RenderDuration.Observe(time.Since(renderStart).Seconds())
	p.metrics.OverlayBytes.Observe(float64(len(pngBytes)))
	p.metrics.GridPoints.Set(float64(msg.Grid.NumPoints))
	p.metrics.MissingRatio.Set(missingRatio(field))
	p.metrics.ProductTimestamp.Set(float64(msg.RefTime.Unix()))

	product := &domain.RadarProduct{
		PNG: pngBytes,
		Metadata: domain.Metadata{
			Timestamp: domain.FormatTimestamp(msg.RefTime),
			Bounds: domain.Bounds{
				North: msg.Grid.Bounds.North,
				South: msg.Grid.Bounds.South,
				East:  msg.Grid.Bounds.East,
				West:  msg.Grid.Bounds.West,
			},
			Width:  msg.Grid.Width,
			Height: msg.Grid.Height,
		},
	}
	product.Stamp()
	return product, nil
}

// gunzip inflates a single-member gzip stream.
func gunzip(compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}
	return raw, nil
}

func missingRatio(field []float32) float64 {
	if len(field) == 0 {
		return 0
	}
	missing := 0
	for _, v := range field {
		if v < -900 {
			missing++
		}
	}
	return float64(missing) / float64(len(field))
}
