// Package util provides statistics helpers used to describe document
// collections without scanning them completely.
//
// The package contains:
//   - Stats and DistributionStats: summary statistics over a set of values,
//     used to describe how documents are spread over resident collections
//   - SizeHistogram: a bucketed histogram of encoded document sizes that gives
//     median, percentile and average estimates from a small sample
package util
