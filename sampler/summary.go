package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// essWindowFactor is the c in Sokal's automatic windowing rule: the lag sum
// stops once M >= c * tau.
const essWindowFactor = 5.0

// ParamSummary describes the marginal sample of one parameter
type ParamSummary struct {
	Name         string
	Mode         float64 // Value at the record with the highest log kernel
	Mean         float64
	Min          float64
	Max          float64
	Variance     float64 // Sample variance (n-1 divisor)
	ESS          float64 // Effective sample size
	AutocorrTime float64 // Integrated autocorrelation time
	MaxLag       int     // Largest lag used in the autocorrelation sum
}

// Summarize computes a ParamSummary for every parameter of p
func Summarize(p *PosteriorSample) ([]ParamSummary, error) {
	if p == nil || p.Len() < 1 {
		return nil, errors.New("Cannot summarize an empty sample")
	}

	modeIdx := floats.MaxIdx(p.LogKernels())
	out := make([]ParamSummary, p.Dim())
	for i, name := range p.Names {
		col := p.Column(i)
		mean, variance := stat.MeanVariance(col, nil)
		ess, lag, tau := EffectiveSampleSize(col)
		out[i] = ParamSummary{
			Name:         name,
			Mode:         col[modeIdx],
			Mean:         mean,
			Min:          floats.Min(col),
			Max:          floats.Max(col),
			Variance:     variance,
			ESS:          ess,
			AutocorrTime: tau,
			MaxLag:       lag,
		}
	}
	return out, nil
}

// EffectiveSampleSize estimates ESS = N / tau, where tau = 1 + 2 sum(rho_k)
// and the lag sum is truncated at the first M with M >= 5 tau (Sokal 1997).
// A constant or too-short series yields NaN.
func EffectiveSampleSize(f []float64) (ess float64, maxLag int, tau float64) {
	n := len(f)
	if n < 2 {
		return math.NaN(), 0, math.NaN()
	}

	mu := stat.Mean(f, nil)
	var cf0 float64
	for _, x := range f {
		d := x - mu
		cf0 += d * d
	}
	cf0 /= float64(n)
	if cf0 == 0 {
		return math.NaN(), 0, math.NaN()
	}

	var rhoSum float64
	tau = 1.0
	m := 1
	for lag := 1; lag < n; lag++ {
		var cf float64
		for j := 0; j < n-lag; j++ {
			cf += (f[j] - mu) * (f[j+lag] - mu)
		}
		cf /= float64(n - lag)

		rhoSum += cf / cf0
		tau = 1.0 + 2.0*rhoSum
		maxLag = m
		if float64(m) >= essWindowFactor*tau {
			break
		}
		m++
	}

	return float64(n) / tau, maxLag, tau
}
