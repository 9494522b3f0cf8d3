// Package gss estimates the log marginal likelihood with generalized
// steppingstone sampling: a chain is annealed from a moment-matched reference
// distribution (beta = 0) to the posterior (beta = 1) and each step between
// adjacent powers contributes one importance-sampled log ratio.
package gss

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/marglike/model"
	"github.com/CraigKelly/marglike/sampler"
)

// BetaLadder returns the nStones+1 powers (i/nStones)^(1/alpha). These are
// the quantiles of a Beta(alpha, 1) distribution, so alpha < 1 packs the
// powers near zero.
func BetaLadder(alpha float64, nStones int) ([]float64, error) {
	if nStones < 1 {
		return nil, errors.Errorf("Invalid stone count %d", nStones)
	}
	if !(alpha > 0) || math.IsInf(alpha, 0) {
		return nil, errors.Errorf("Invalid ladder shape alpha=%v", alpha)
	}

	inv := 1.0 / alpha
	ladder := make([]float64, nStones+1)
	for i := range ladder {
		ladder[i] = math.Pow(float64(i)/float64(nStones), inv)
	}
	ladder[nStones] = 1.0
	return ladder, nil
}

// FitReferences moment-matches a Gamma to the marginal sample of each
// parameter (shape = mean^2/variance, scale = variance/mean).
func FitReferences(p *sampler.PosteriorSample) ([]model.Gamma, error) {
	if p == nil || p.Len() < 2 {
		return nil, model.NewEstimationError("FitReferences", "need at least 2 samples to fit reference distributions")
	}

	refs := make([]model.Gamma, p.Dim())
	for i, name := range p.Names {
		mean, variance := stat.MeanVariance(p.Column(i), nil)
		g, err := model.GammaFromMoments(mean, variance)
		if err != nil {
			return nil, model.NewEstimationError("FitReferences", "%s sample (mean %g, variance %g) has no Gamma match: %v", name, mean, variance, err)
		}
		refs[i] = g
	}
	return refs, nil
}
