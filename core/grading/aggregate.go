package grading

import (
	"math"

	"github.com/shopspring/decimal"
)

// ComputeAverage returns Σ(score*weight) / Σ(weight), rounded half-up to 2 decimals.
// Missing or malformed scores count as 0 while their weight still counts.
// When Σ(weight) is 0, including for no entries at all, the average is 0.
func ComputeAverage(entries []GradeEntry) float64 {
	num, den := decimal.Zero, decimal.Zero
	for _, e := range entries {
		if e.Weight == 0 {
			continue
		}
		w := decimal.NewFromInt(int64(e.Weight))
		num = num.Add(scoreOf(e).Mul(w))
		den = den.Add(w)
	}
	if den.IsZero() {
		return 0
	}
	return num.DivRound(den, 2).InexactFloat64()
}

// Aggregate computes the weighted average of entries and its mention.
func Aggregate(entries []GradeEntry) AggregateResult {
	avg := ComputeAverage(entries)
	var count int
	for _, e := range entries {
		if e.Graded() {
			count++
		}
	}
	return AggregateResult{
		WeightedAverage: avg,
		Mention:         Classify(avg),
		EntryCount:      count,
	}
}

// Contribution returns score*weight rounded half-up to 1 decimal, as shown on bulletins.
func Contribution(e GradeEntry) float64 {
	return scoreOf(e).Mul(decimal.NewFromInt(int64(e.Weight))).Round(1).InexactFloat64()
}

// scoreOf resolves the "no grade" sentinel and non-finite values to 0.
func scoreOf(e GradeEntry) decimal.Decimal {
	if !e.Score.Valid || math.IsNaN(e.Score.Float64) || math.IsInf(e.Score.Float64, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(e.Score.Float64)
}
