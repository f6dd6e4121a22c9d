package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	FragmentsExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "jlatex", Name: "fragments_extracted_total", Help: "Number of fragments discovered in the document tree, by kind."},
		[]string{"kind"},
	)
	DedupHits = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "jlatex", Name: "fragment_dedup_hits_total", Help: "Number of fragments that reused an earlier identical body."},
	)
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "jlatex", Name: "stage_duration_seconds", Help: "Wall-clock time spent per pipeline stage.", Buckets: prometheus.ExponentialBuckets(0.01, 4, 8)},
		[]string{"stage"},
	)
	RefineShrink = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "jlatex", Name: "refine_area_ratio", Help: "Refined region area divided by located region area.", Buckets: prometheus.LinearBuckets(0.1, 0.1, 10)},
	)
)

var registry = prometheus.NewRegistry()

func init() {
	RegisterCollectors(registry)
}

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(FragmentsExtracted)
	reg.MustRegister(DedupHits)
	reg.MustRegister(StageDuration)
	reg.MustRegister(RefineShrink)
}

// Dump renders the collected run metrics in the Prometheus text format.
// The filter has no HTTP surface, so the debug flag routes this to stderr
// at the end of a run instead of exposing a /metrics endpoint.
func Dump(w io.Writer) error {
	mfs, err := registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
