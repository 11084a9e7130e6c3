package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// radar refresh pipeline.
type Metrics struct {
	ProductsFetched    prometheus.Counter
	FetchErrors        prometheus.Counter
	DecodeErrors       prometheus.Counter
	ApproximateDecodes prometheus.Counter
	Announcements      prometheus.Counter
	RefresherRunning   prometheus.Gauge

	// Decode pipeline metrics.
	FetchDuration   prometheus.Histogram
	DecodeDuration  prometheus.Histogram
	RenderDuration  prometheus.Histogram
	OverlayBytes    prometheus.Histogram
	PackingTemplate *prometheus.CounterVec // label: template

	// Latest product metrics.
	ProductTimestamp prometheus.Gauge
	GridPoints       prometheus.Gauge
	MissingRatio     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProductsFetched,
		m.FetchErrors,
		m.DecodeErrors,
		m.ApproximateDecodes,
		m.Announcements,
		m.RefresherRunning,
		m.FetchDuration,
		m.DecodeDuration,
		m.RenderDuration,
		m.OverlayBytes,
		m.PackingTemplate,
		m.ProductTimestamp,
		m.GridPoints,
		m.MissingRatio,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ProductsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "products_fetched_total",
			Help:      "Total radar products fetched from the MRMS feed.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "fetch_errors_total",
			Help:      "Total upstream fetch failures.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "decode_errors_total",
			Help:      "Total GRIB2 decode or render failures.",
		}),
		ApproximateDecodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "approximate_decodes_total",
			Help:      "Products decoded through a lossy fallback (JPEG 2000 byte-per-sample or raw embedded-PNG bytes).",
		}),
		Announcements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "announcements_total",
			Help:      "Product announcements published to Kafka.",
		}),
		RefresherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radar",
			Name:      "refresher_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radar",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of an upstream product download.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		DecodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radar",
			Name:      "decode_duration_seconds",
			Help:      "Duration of gunzip plus GRIB2 parse and unpack.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radar",
			Name:      "render_duration_seconds",
			Help:      "Duration of raster reorientation and PNG encode.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		OverlayBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radar",
			Name:      "overlay_bytes",
			Help:      "Size of the encoded PNG overlay.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		PackingTemplate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "packing_template_total",
			Help:      "Products seen per GRIB2 data representation template.",
		}, []string{"template"}),
		ProductTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radar",
			Name:      "product_timestamp_seconds",
			Help:      "Reference time of the latest decoded product, unix seconds.",
		}),
		GridPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radar",
			Name:      "grid_points",
			Help:      "Cell count of the latest decoded grid.",
		}),
		MissingRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radar",
			Name:      "missing_ratio",
			Help:      "Fraction of missing cells in the latest decoded field.",
		}),
	}
}
