package observability

import (
	"sort"

	"github.com/xraph/go-utils/metrics"
)

// Sample is a point-in-time reading of one metric. For histograms Value is
// the sum of observations.
type Sample struct {
	Name  string  `json:"name"`
	Kind  string  `json:"kind"`
	Value float64 `json:"value"`
	Count uint64  `json:"count,omitempty"`
	Min   float64 `json:"min,omitempty"`
	Max   float64 `json:"max,omitempty"`
}

// Snapshot reads every counter, gauge and histogram in repo, sorted by name.
// Other metric kinds are skipped.
func Snapshot(repo metrics.MetricRepository) []Sample {
	all := repo.ListMetrics()
	out := make([]Sample, 0, len(all))
	for name, m := range all {
		switch v := m.(type) {
		case metrics.Histogram:
			out = append(out, Sample{
				Name:  name,
				Kind:  string(metrics.MetricTypeHistogram),
				Value: v.Sum(),
				Count: v.Count(),
				Min:   v.Min(),
				Max:   v.Max(),
			})
		case metrics.Counter:
			out = append(out, Sample{Name: name, Kind: string(metrics.MetricTypeCounter), Value: v.Value()})
		case metrics.Gauge:
			out = append(out, Sample{Name: name, Kind: string(metrics.MetricTypeGauge), Value: v.Value()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
