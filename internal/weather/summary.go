package weather

import (
	"context"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summarize computes statistics over samples recorded in [from, to].
// An empty window yields a Summary with Count zero.
func Summarize(ctx context.Context, repo Repository, from, to time.Time, unit Unit) (*Summary, error) {
	samples, err := repo.Range(ctx, from, to)
	if err != nil {
		return nil, err
	}

	sum := &Summary{From: from, To: to, Count: len(samples), Unit: unit}
	if len(samples) == 0 {
		return sum, nil
	}

	temps := make([]float64, len(samples))
	hums := make([]float64, len(samples))
	for i, s := range samples {
		temps[i] = s.Temperature
		hums[i] = s.Humidity
	}
	sum.Temperature = describe(temps)
	sum.Humidity = describe(hums)
	return sum, nil
}

func describe(xs []float64) Stats {
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		// Sample standard deviation is undefined for one value.
		std = 0
	}
	return Stats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(xs),
		Max:    floats.Max(xs),
	}
}
