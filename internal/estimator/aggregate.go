package estimator

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
)

// Aggregation — способ свести оценки по фазам в одну
type Aggregation int

const (
	AggMedian Aggregation = iota
	AggMean
)

func (a Aggregation) String() string {
	switch a {
	case AggMedian:
		return "median"
	case AggMean:
		return "mean"
	default:
		return "unknown"
	}
}

// ParseAggregation разбирает имя; пустая строка — median.
func ParseAggregation(s string) (Aggregation, error) {
	switch s {
	case "", "median":
		return AggMedian, nil
	case "mean":
		return AggMean, nil
	}
	return 0, fmt.Errorf("%w: unknown aggregation %q", pmu.ErrConfiguration, s)
}

// Aggregate сводит значения; при чётном числе медиана — среднее двух средних. Пусто — 0.
func Aggregate(vals []float64, a Aggregation) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	if a == AggMean {
		return stat.Mean(vals, nil)
	}
	s := slices.Clone(vals)
	slices.Sort(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
