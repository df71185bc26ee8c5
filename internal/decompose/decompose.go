// Package decompose splits a monthly accident series into trend, seasonal and
// residual components.
package decompose

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/accident.report/internal/accidents"
)

// MonthsPerYear is the seasonal period of a monthly series.
const MonthsPerYear = 12

// ErrSeriesTooShort is returned when the series holds fewer than two full
// seasonal cycles.
var ErrSeriesTooShort = errors.New("series shorter than two seasonal cycles")

// Series is a run of consecutive monthly values starting at Start.
type Series struct {
	Start  time.Time
	Values []float64
}

// Len returns the number of months in the series.
func (s Series) Len() int { return len(s.Values) }

// Time returns the first day of the i-th month of the series.
func (s Series) Time(i int) time.Time { return s.Start.AddDate(0, i, 0) }

// MonthlySeries lays counts out as a consecutive-month series spanning the
// first to the last observed month. Months with no accidents are 0.
func MonthlySeries(counts []accidents.MonthlyCount) Series {
	if len(counts) == 0 {
		return Series{}
	}
	index := func(c accidents.MonthlyCount) int {
		return c.Year*MonthsPerYear + int(c.Month) - 1
	}
	first, last := index(counts[0]), index(counts[0])
	for _, c := range counts[1:] {
		first = min(first, index(c))
		last = max(last, index(c))
	}

	values := make([]float64, last-first+1)
	for _, c := range counts {
		values[index(c)-first] += float64(c.Count)
	}
	start := time.Date(first/MonthsPerYear, time.Month(first%MonthsPerYear+1), 1, 0, 0, 0, 0, time.UTC)
	return Series{Start: start, Values: values}
}

// Result holds the additive decomposition Observed = Trend + Seasonal +
// Residual. Trend and Residual are NaN where the moving average window does
// not fit.
type Result struct {
	Observed Series
	Trend    []float64
	Seasonal []float64
	Residual []float64
	Period   int
}

// Additive performs a classical additive decomposition of s with the given
// period. The trend is a centered moving average (2 x period for even
// periods), the seasonal component is the per-phase mean of the detrended
// series centered on zero, and the residual is what remains.
func Additive(s Series, period int) (*Result, error) {
	if period < 2 {
		return nil, fmt.Errorf("period must be at least 2, got %d", period)
	}
	n := s.Len()
	if n < 2*period {
		return nil, fmt.Errorf("%w: %d observations, need %d", ErrSeriesTooShort, n, 2*period)
	}

	trend := movingAverage(s.Values, period)

	pattern := make([]float64, period)
	counts := make([]int, period)
	for i, v := range s.Values {
		if math.IsNaN(trend[i]) {
			continue
		}
		pattern[i%period] += v - trend[i]
		counts[i%period]++
	}
	for i := range pattern {
		if counts[i] > 0 {
			pattern[i] /= float64(counts[i])
		}
	}
	floats.AddConst(-stat.Mean(pattern, nil), pattern)

	seasonal := make([]float64, n)
	residual := make([]float64, n)
	for i, v := range s.Values {
		seasonal[i] = pattern[i%period]
		residual[i] = v - trend[i] - seasonal[i]
	}

	return &Result{
		Observed: s,
		Trend:    trend,
		Seasonal: seasonal,
		Residual: residual,
		Period:   period,
	}, nil
}

func movingAverage(x []float64, period int) []float64 {
	n := len(x)
	half := period / 2
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	for i := half; i < n-half; i++ {
		var sum float64
		if period%2 == 0 {
			sum = 0.5*x[i-half] + 0.5*x[i+half] + floats.Sum(x[i-half+1:i+half])
		} else {
			sum = floats.Sum(x[i-half : i+half+1])
		}
		out[i] = sum / float64(period)
	}
	return out
}
