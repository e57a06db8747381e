package patterns

import (
	"math"

	"extrato/internal/core"
)

// Direction classifies how spending moves over time.
type Direction string

const (
	DirectionInsufficientData Direction = "insufficient_data"
	DirectionIncreasing       Direction = "increasing"
	DirectionDecreasing       Direction = "decreasing"
	DirectionStable           Direction = "stable"
)

// TrendThreshold is the change percentage beyond which a series is no
// longer stable.
const TrendThreshold = 10.0

// TrendResult is the outcome of Trend.
type TrendResult struct {
	Direction         Direction `json:"direction"`
	ChangePercentage  float64   `json:"change_percentage"`
	FirstHalfAverage  float64   `json:"first_half_average"`
	SecondHalfAverage float64   `json:"second_half_average"`
	Months            int       `json:"months"`
}

// Trend compares the average of the first half of a chronological series
// with the average of the second half. With an odd number of months the
// middle one belongs to the second half. window > 0 keeps only the last
// window months.
func Trend(totals []core.MonthlyTotal, window int) TrendResult {
	if window > 0 && len(totals) > window {
		totals = totals[len(totals)-window:]
	}
	res := TrendResult{Direction: DirectionInsufficientData, Months: len(totals)}
	if len(totals) < 2 {
		return res
	}

	mid := len(totals) / 2
	res.FirstHalfAverage = average(totals[:mid])
	res.SecondHalfAverage = average(totals[mid:])
	res.ChangePercentage = changePercentage(res.FirstHalfAverage, res.SecondHalfAverage)

	switch {
	case res.ChangePercentage > TrendThreshold:
		res.Direction = DirectionIncreasing
	case res.ChangePercentage < -TrendThreshold:
		res.Direction = DirectionDecreasing
	default:
		res.Direction = DirectionStable
	}
	return res
}

func average(totals []core.MonthlyTotal) float64 {
	var sum float64
	for _, m := range totals {
		sum += m.Total
	}
	return sum / float64(len(totals))
}

func changePercentage(first, second float64) float64 {
	if first == 0 {
		switch {
		case second > 0:
			return 100
		case second < 0:
			return -100
		default:
			return 0
		}
	}
	return (second - first) / math.Abs(first) * 100
}
