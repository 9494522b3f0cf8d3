package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Gamma is a shape/scale Gamma distribution used for priors and for the
// steppingstone reference distributions. Densities are only ever evaluated on
// the log scale.
type Gamma struct {
	Shape float64 `yaml:"shape"`
	Scale float64 `yaml:"scale"`
}

// NewGamma returns a checked Gamma
func NewGamma(shape, scale float64) (Gamma, error) {
	g := Gamma{Shape: shape, Scale: scale}
	if err := g.Check(); err != nil {
		return Gamma{}, err
	}
	return g, nil
}

// GammaFromMoments moment-matches a Gamma to a sample mean and variance:
// shape = mean^2/variance, scale = variance/mean.
func GammaFromMoments(mean, variance float64) (Gamma, error) {
	if !(mean > 0) || math.IsInf(mean, 0) {
		return Gamma{}, errors.Errorf("Cannot moment-match Gamma with mean %v", mean)
	}
	if !(variance > 0) || math.IsInf(variance, 0) {
		return Gamma{}, errors.Errorf("Cannot moment-match Gamma with variance %v", variance)
	}
	return NewGamma(mean*mean/variance, variance/mean)
}

// Check returns an error if the shape or scale is not usable
func (g Gamma) Check() error {
	if !(g.Shape > 0) || math.IsInf(g.Shape, 0) {
		return errors.Errorf("Invalid Gamma shape %v", g.Shape)
	}
	if !(g.Scale > 0) || math.IsInf(g.Scale, 0) {
		return errors.Errorf("Invalid Gamma scale %v", g.Scale)
	}
	return nil
}

// LogDensity is the log probability density at x (-Inf for x <= 0)
func (g Gamma) LogDensity(x float64) float64 {
	return distuv.Gamma{Alpha: g.Shape, Beta: 1.0 / g.Scale}.LogProb(x)
}

// Mean of the distribution
func (g Gamma) Mean() float64 {
	return g.Shape * g.Scale
}

// Variance of the distribution
func (g Gamma) Variance() float64 {
	return g.Shape * g.Scale * g.Scale
}
