package sampler

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/marglike/buffer"
	"github.com/CraigKelly/marglike/rand"
)

// Recorder receives the chain state after every thinned iteration. The State
// is owned by the chain and is only valid for the duration of the call.
type Recorder func(iter int, s *State) error

// Chain drives a set of single-coordinate updaters over one State. One
// iteration updates every coordinate once, in updater order.
type Chain struct {
	State             *State
	Updaters          []*Updater
	Gen               *rand.Generator
	ConvergenceWindow int
	History           *buffer.CircularFloat // Log kernels of recorded iterations
	TotalIterations   int64
}

// NewChain returns a chain ready to go. Burn in is a separate step.
func NewChain(gen *rand.Generator, s *State, updaters []*Updater, cw int) (*Chain, error) {
	if gen == nil {
		return nil, errors.New("A random generator is required")
	}
	if s == nil {
		return nil, errors.New("A starting state is required")
	}
	if len(updaters) < 1 {
		return nil, errors.New("At least one updater is required")
	}
	for _, u := range updaters {
		if u.Index >= len(s.Params) {
			return nil, errors.Errorf("Updater %s targets coordinate %d of a %d-dim state", u.Name, u.Index, len(s.Params))
		}
	}
	if cw < 2 {
		cw = 2
	}

	return &Chain{
		State:             s,
		Updaters:          updaters,
		Gen:               gen,
		ConvergenceWindow: cw,
		History:           buffer.NewCircularFloat(cw),
	}, nil
}

// Iterate performs one full sweep at the given power
func (c *Chain) Iterate(beta float64, tune bool) error {
	for _, u := range c.Updaters {
		if _, err := u.Update(c.Gen, c.State, beta, tune); err != nil {
			return errors.Wrapf(err, "Update of %s failed", u.Name)
		}
	}
	c.TotalIterations++
	return nil
}

// BurnIn runs n tuned iterations at power beta. Nothing is recorded.
func (c *Chain) BurnIn(ctx context.Context, n int, beta float64) error {
	for i := 0; i < n; i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := c.Iterate(beta, true); err != nil {
			return errors.Wrap(err, "Failure during chain burn in")
		}
	}
	return nil
}

// Sample runs n untuned iterations at power beta, handing every thinBy-th
// state to rec.
func (c *Chain) Sample(ctx context.Context, n int, thinBy int, beta float64, rec Recorder) error {
	if thinBy < 1 {
		return errors.Errorf("Invalid thinning interval %d", thinBy)
	}
	for i := 0; i < n; i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := c.Iterate(beta, false); err != nil {
			return errors.Wrap(err, "Failure during sampling")
		}
		if (i+1)%thinBy != 0 {
			continue
		}

		c.History.Add(c.State.LogKernel())
		if rec != nil {
			if err := rec(i+1, c.State); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run performs burn in followed by sampling and returns every thinned
// iteration as a PosteriorSample.
func (c *Chain) Run(ctx context.Context, burnIn int, iterations int, thinBy int, beta float64) (*PosteriorSample, error) {
	if err := c.BurnIn(ctx, burnIn, beta); err != nil {
		return nil, err
	}

	names := make([]string, len(c.Updaters))
	for i, u := range c.Updaters {
		names[i] = u.Name
	}
	if len(names) != len(c.State.Params) {
		names = c.State.Model.ParamNames()
	}

	capacity := 0
	if thinBy > 0 {
		capacity = iterations / thinBy
	}
	samp := NewPosteriorSample(names, capacity)

	err := c.Sample(ctx, iterations, thinBy, beta, func(iter int, s *State) error {
		return samp.Add(s.LogKernel(), s.Params)
	})
	if err != nil {
		return nil, err
	}
	return samp, nil
}

// ResetCounters clears acceptance counters on every updater. Window widths
// are kept.
func (c *Chain) ResetCounters() {
	for _, u := range c.Updaters {
		u.ResetCounters()
	}
}

// SplitHalfZ compares the mean log kernel of the older and newer halves of
// the convergence window. The result is a z-score; values far from zero
// suggest the chain is still drifting. NaN is returned until the window has
// filled.
func (c *Chain) SplitHalfZ() float64 {
	first, second := c.History.FirstHalf(), c.History.SecondHalf()
	if first == nil || second == nil {
		return math.NaN()
	}

	m1, v1 := stat.MeanVariance(first.Collect(), nil)
	m2, v2 := stat.MeanVariance(second.Collect(), nil)
	n := float64(c.History.BufSize / 2)
	se := math.Sqrt(v1/n + v2/n)
	if se == 0 {
		if m1 == m2 {
			return 0
		}
		return math.Inf(1)
	}
	return (m2 - m1) / se
}
