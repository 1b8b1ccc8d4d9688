package util

import (
	"math"
)

// ----------------------------------------------------------------------------
// Summary statistics
// ----------------------------------------------------------------------------

// Stats summarizes a set of values
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes mean, population standard deviation, minimum and maximum
// of values. An empty input yields the zero Stats.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sum / float64(len(values))

	var squares float64
	for _, v := range values {
		squares += (v - s.Mean) * (v - s.Mean)
	}
	s.StdDeviation = math.Sqrt(squares / float64(len(values)))

	s.MinMaxRatio = 1.0
	if s.Max > 0 {
		s.MinMaxRatio = s.Min / s.Max
	}
	return s
}

// DistributionStats extends Stats with a quality score in [0, 1].
// 1 means every value is equal, values close to 0 mean a few values dominate.
type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats scores how evenly values are distributed.
// The score averages the inverted coefficient of variation and the min/max ratio.
func NewDistributionStats(values []float64) DistributionStats {
	stats := NewStats(values)

	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBoundaries are the upper bounds (inclusive) of the histogram buckets.
// The last bucket collects everything larger than the final boundary.
// BSON documents are limited to 16MB, so the range stops there.
var sizeBoundaries = []int{
	32, 64, 128, 256, 512, // small documents
	1 << 10, 4 << 10, 16 << 10, 64 << 10, // KB range
	256 << 10, 1 << 20, 4 << 20, 16 << 20, // MB range
}

// SizeHistogram tracks the distribution of encoded document sizes.
// It is not safe for concurrent use.
type SizeHistogram struct {
	buckets []int64
	count   int64
	sum     int64
}

// NewSizeHistogram creates an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{
		buckets: make([]int64, len(sizeBoundaries)+1),
	}
}

// AddSample records a single size
func (h *SizeHistogram) AddSample(size int) {
	i := len(sizeBoundaries)
	for j, boundary := range sizeBoundaries {
		if size <= boundary {
			i = j
			break
		}
	}
	h.buckets[i]++
	h.count++
	h.sum += int64(size)
}

// GetCount returns the number of samples
func (h *SizeHistogram) GetCount() int64 {
	return h.count
}

// AverageSize returns the exact mean of all samples
func (h *SizeHistogram) AverageSize() int {
	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// MedianEstimate estimates the median size
func (h *SizeHistogram) MedianEstimate() int {
	return h.PercentileEstimate(50)
}

// PercentileEstimate estimates the given percentile (0-100). The estimate is
// the middle of the bucket the percentile falls into. Out of range percentiles
// and empty histograms yield 0.
func (h *SizeHistogram) PercentileEstimate(percentile int) int {
	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	var cumulative int64
	for i, n := range h.buckets {
		cumulative += n
		if cumulative >= target {
			return bucketMidpoint(i)
		}
	}
	return h.AverageSize()
}

func bucketMidpoint(i int) int {
	switch {
	case i == 0:
		return sizeBoundaries[0] / 2
	case i < len(sizeBoundaries):
		return (sizeBoundaries[i-1] + sizeBoundaries[i]) / 2
	default:
		// beyond the last boundary
		return sizeBoundaries[len(sizeBoundaries)-1] * 2
	}
}
