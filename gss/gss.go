package gss

import (
	"context"

	"github.com/pkg/errors"

	"github.com/CraigKelly/marglike/model"
	"github.com/CraigKelly/marglike/sampler"
)

// Result of a full steppingstone run
type Result struct {
	LogMarginalLikelihood float64
	Ladder                []float64
	References            []model.Gamma
	Stones                []StoneResult
}

// StoneObserver is told about every stone as it starts (done == false) and as
// it finishes (done == true).
type StoneObserver func(sr StoneResult, done bool)

// Estimate fits reference distributions to the posterior sample, installs
// them in the chain's model and runs one stone per ladder interval. The chain
// should start where the caller wants the annealing to begin; each stone
// continues from where the previous one stopped.
func Estimate(ctx context.Context, ch *sampler.Chain, posterior *sampler.PosteriorSample, opts Options, obs StoneObserver) (*Result, error) {
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, errors.New("A chain is required for steppingstone sampling")
	}

	ladder, err := BetaLadder(opts.Alpha, opts.Stones)
	if err != nil {
		return nil, err
	}
	refs, err := FitReferences(posterior)
	if err != nil {
		return nil, err
	}

	refModel, err := ch.State.Model.WithReferences(refs)
	if err != nil {
		return nil, errors.Wrap(err, "Could not install reference distributions")
	}
	if err := ch.State.SetModel(refModel); err != nil {
		return nil, err
	}

	res := &Result{
		Ladder:     ladder,
		References: refs,
		Stones:     make([]StoneResult, 0, opts.Stones),
	}

	for i := 0; i < opts.Stones; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		beta, incr := ladder[i], ladder[i+1]-ladder[i]
		if obs != nil {
			obs(StoneResult{Index: i, Beta: beta, Increment: incr, Cumulative: res.LogMarginalLikelihood}, false)
		}

		sr, err := RunStone(ctx, ch, i, beta, incr, opts)
		if err != nil {
			return nil, err
		}

		res.LogMarginalLikelihood += sr.LogRatio
		sr.Cumulative = res.LogMarginalLikelihood
		res.Stones = append(res.Stones, sr)
		if obs != nil {
			obs(sr, true)
		}
	}

	return res, nil
}
