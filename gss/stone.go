package gss

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/marglike/logspace"
	"github.com/CraigKelly/marglike/model"
	"github.com/CraigKelly/marglike/sampler"
)

// Options controls the work done per stone
type Options struct {
	Stones     int     `yaml:"stones"`
	Alpha      float64 `yaml:"alpha"`
	Iterations int     `yaml:"iterations"`
	ThinBy     int     `yaml:"thin"`
	BurnIn     int     `yaml:"burnin"`
}

// Check returns an error if the options can't produce an estimate
func (o Options) Check() error {
	if o.Stones < 1 {
		return errors.Errorf("Invalid stone count %d", o.Stones)
	}
	if !(o.Alpha > 0) {
		return errors.Errorf("Invalid ladder alpha %v", o.Alpha)
	}
	if o.ThinBy < 1 {
		return errors.Errorf("Invalid per-stone thinning %d", o.ThinBy)
	}
	if o.Iterations < o.ThinBy {
		return errors.Errorf("Per-stone iterations %d collect no terms with thinning %d", o.Iterations, o.ThinBy)
	}
	if o.BurnIn < 0 {
		return errors.Errorf("Invalid per-stone burn in %d", o.BurnIn)
	}
	return nil
}

// StoneResult is the outcome of one power-posterior run
type StoneResult struct {
	Index      int     // Zero-based stone number
	Beta       float64 // Power sampled by this stone
	Increment  float64 // Distance to the next power on the ladder
	Terms      int     // Finite terms collected
	Discarded  int     // Non-finite terms dropped
	LogRatio   float64 // Log mean of exp(terms)
	Cumulative float64 // Running log marginal likelihood after this stone
}

// RunStone burns the chain in at beta (with tuning), then samples it and
// collects increment * (loglike + logprior - logref) every ThinBy-th
// iteration. Acceptance counters are reset first; window widths carry over.
func RunStone(ctx context.Context, ch *sampler.Chain, index int, beta float64, increment float64, opts Options) (StoneResult, error) {
	res := StoneResult{Index: index, Beta: beta, Increment: increment}

	ch.ResetCounters()
	if err := ch.State.Refresh(); err != nil {
		return res, err
	}
	if err := ch.BurnIn(ctx, opts.BurnIn, beta); err != nil {
		return res, errors.Wrapf(err, "Stone %d burn in failed", index+1)
	}

	terms := make([]float64, 0, opts.Iterations/opts.ThinBy)
	err := ch.Sample(ctx, opts.Iterations, opts.ThinBy, beta, func(iter int, s *sampler.State) error {
		terms = append(terms, increment*(s.LogLike+s.LogPrior()-s.LogReference()))
		return nil
	})
	if err != nil {
		return res, errors.Wrapf(err, "Stone %d sampling failed", index+1)
	}

	finite := logspace.Finite(terms)
	res.Terms = len(finite)
	res.Discarded = len(terms) - len(finite)
	if len(finite) < 1 {
		return res, model.NewEstimationError("RunStone", "stone %d (beta %.5f) produced no finite terms out of %d", index+1, beta, len(terms))
	}

	lr, err := logspace.LogMeanExp(finite)
	if err != nil {
		return res, errors.Wrapf(err, "Stone %d reduction failed", index+1)
	}
	if math.IsInf(lr, 0) {
		return res, model.NewEstimationError("RunStone", "stone %d (beta %.5f) log ratio is %v", index+1, beta, lr)
	}
	res.LogRatio = lr
	return res, nil
}
