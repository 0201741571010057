package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transformations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfstudio",
			Name:      "transformations_total",
			Help:      "Transformations run, by tool and result (success, error)",
		},
		[]string{"tool", "result"},
	)

	transformLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfstudio",
			Name:      "transformation_duration_seconds",
			Help:      "Duration of transformations by tool",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	previewPages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfstudio",
			Name:      "preview_pages_rendered_total",
			Help:      "Thumbnail pages rasterised",
		},
	)

	previewCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfstudio",
			Name:      "preview_cache_total",
			Help:      "Preview cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	previewLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfstudio",
			Name:      "preview_generation_duration_seconds",
			Help:      "Duration of full thumbnail strip generation",
			Buckets:   prometheus.DefBuckets,
		},
	)

	reduction = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfstudio",
			Name:      "compression_reduction_percent",
			Help:      "Reported size reduction of compressed outputs",
			Buckets:   []float64{0, 5, 10, 20, 30, 50, 75, 100},
		},
	)

	once sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(transformations, transformLatency, previewPages, previewCache, previewLatency, reduction)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveTransformation(tool, result string, dur time.Duration) {
	transformations.WithLabelValues(tool, result).Inc()
	transformLatency.WithLabelValues(tool).Observe(dur.Seconds())
}

func IncPreviewPages(n int)          { previewPages.Add(float64(n)) }
func CacheHit()                      { previewCache.WithLabelValues("hit").Inc() }
func CacheMiss()                     { previewCache.WithLabelValues("miss").Inc() }
func ObservePreview(d time.Duration) { previewLatency.Observe(d.Seconds()) }
func ObserveReduction(percent int)   { reduction.Observe(float64(percent)) }
