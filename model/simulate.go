package model

import (
	"github.com/pkg/errors"
)

// Uniform is the only thing the simulator needs from a PRNG
type Uniform interface {
	Float64() float64
}

// Simulate draws nsites independent site categories for two sequences joined
// by an edge with the given parameters, returning only the counts.
func Simulate(gen Uniform, m SubstitutionModel, params []float64, nsites int) (SufficientStatistics, error) {
	if nsites < 1 {
		return SufficientStatistics{}, errors.Errorf("Invalid sequence length %d", nsites)
	}

	p, err := m.TransitionProbabilities(params)
	if err != nil {
		return SufficientStatistics{}, errors.Wrap(err, "Could not simulate data")
	}

	var s SufficientStatistics
	for i := 0; i < nsites; i++ {
		u := gen.Float64()
		switch {
		case u < p.Same:
			s.Same++
		case u < p.Same+p.Transition:
			s.Transitions++
		default:
			s.Transversions++
		}
	}
	return s, nil
}
