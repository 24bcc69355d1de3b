package detect

import (
	"math"
	"sort"
	"strings"
)

func sortStrings(s []string) { sort.Strings(s) }

// joinKey builds a map key from an ordered member list. The unit separator
// cannot appear in account IDs coming out of the CSV parser.
func joinKey(members []string) string { return strings.Join(members, "\x1f") }

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
