package model

import (
	"math"

	"github.com/pkg/errors"
)

// Model names accepted by NewSubstitutionModel
const (
	JC69 = "jc69" // one parameter: edge length
	K80  = "k80"  // two parameters: edge length and kappa
)

// TransitionProbs holds the probability that a site shows no change, a
// transition-type change, or a transversion-type change (either of the two
// transversion states) along the edge. The three always sum to one.
type TransitionProbs struct {
	Same         float64
	Transition   float64
	Transversion float64
}

// Sum of the three category probabilities
func (p TransitionProbs) Sum() float64 {
	return p.Same + p.Transition + p.Transversion
}

// SubstitutionModel is a continuous-parameter model of two sequences joined by
// one edge. Every coordinate of a parameter vector must be > 0.
type SubstitutionModel interface {
	Name() string
	Dim() int
	ParamNames() []string

	TransitionProbabilities(params []float64) (TransitionProbs, error)
	LogLikelihood(stats SufficientStatistics, params []float64) (float64, error)

	// Joint log prior and log reference density (sum over coordinates)
	LogPrior(params []float64) float64
	LogReference(params []float64) float64

	// Single coordinate terms, used by one-parameter-at-a-time updaters
	LogPriorAt(i int, x float64) float64
	LogReferenceAt(i int, x float64) float64

	Priors() []Gamma
	References() []Gamma

	// WithReferences returns a copy of the model using the given reference
	// distributions (one per coordinate).
	WithReferences(refs []Gamma) (SubstitutionModel, error)
}

// NewSubstitutionModel creates the named model with one prior per coordinate.
// Reference distributions start out equal to the priors.
func NewSubstitutionModel(name string, priors []Gamma) (SubstitutionModel, error) {
	var m SubstitutionModel
	switch name {
	case JC69:
		m = &JukesCantor{densities: densities{names: []string{"edgelen"}}}
	case K80:
		m = &Kimura{densities: densities{names: []string{"edgelen", "kappa"}}}
	default:
		return nil, errors.Errorf("Unknown substitution model %q", name)
	}

	if len(priors) != m.Dim() {
		return nil, errors.Errorf("Model %s needs %d priors, got %d", name, m.Dim(), len(priors))
	}
	for i, p := range priors {
		if err := p.Check(); err != nil {
			return nil, errors.Wrapf(err, "Invalid prior for %s", m.ParamNames()[i])
		}
	}

	switch mm := m.(type) {
	case *JukesCantor:
		mm.setPriors(priors)
	case *Kimura:
		mm.setPriors(priors)
	}
	return m, nil
}

// densities carries the per-coordinate prior and reference distributions
// shared by every model variant.
type densities struct {
	names  []string
	priors []Gamma
	refs   []Gamma
}

func (d *densities) setPriors(priors []Gamma) {
	d.priors = append([]Gamma(nil), priors...)
	d.refs = append([]Gamma(nil), priors...)
}

func (d *densities) withRefs(refs []Gamma) (densities, error) {
	if len(refs) != len(d.names) {
		return densities{}, errors.Errorf("Need %d reference distributions, got %d", len(d.names), len(refs))
	}
	for i, r := range refs {
		if err := r.Check(); err != nil {
			return densities{}, errors.Wrapf(err, "Invalid reference distribution for %s", d.names[i])
		}
	}
	return densities{
		names:  d.names,
		priors: append([]Gamma(nil), d.priors...),
		refs:   append([]Gamma(nil), refs...),
	}, nil
}

func (d *densities) Dim() int             { return len(d.names) }
func (d *densities) ParamNames() []string { return append([]string(nil), d.names...) }
func (d *densities) Priors() []Gamma      { return append([]Gamma(nil), d.priors...) }
func (d *densities) References() []Gamma  { return append([]Gamma(nil), d.refs...) }

func (d *densities) LogPriorAt(i int, x float64) float64 {
	return d.priors[i].LogDensity(x)
}

func (d *densities) LogReferenceAt(i int, x float64) float64 {
	return d.refs[i].LogDensity(x)
}

func (d *densities) LogPrior(params []float64) float64 {
	var lp float64
	for i, x := range params {
		lp += d.LogPriorAt(i, x)
	}
	return lp
}

func (d *densities) LogReference(params []float64) float64 {
	var lr float64
	for i, x := range params {
		lr += d.LogReferenceAt(i, x)
	}
	return lr
}

// checkParams makes sure we have a feasible vector of the right size
func checkParams(op string, dim int, params []float64) error {
	if len(params) != dim {
		return errors.Errorf("%s expects %d parameters, got %d", op, dim, len(params))
	}
	for _, x := range params {
		if !(x > 0) || math.IsInf(x, 0) {
			return NewDomainError(op, params, "parameter %v is not a positive finite value", x)
		}
	}
	return nil
}

// k80Probs uses exp(-4v/3) for the transversion decay and
// exp(-(4v/3)(k+1)/2) for the transition decay; with k = 1 the two decays
// coincide and the result is Jukes-Cantor.
func k80Probs(v, k float64) TransitionProbs {
	a := math.Exp(-4.0 * v / 3.0)
	b := math.Exp((-4.0 * v / 3.0) * 0.5 * (k + 1.0))
	return TransitionProbs{
		Same:         0.25 + 0.25*a + 0.5*b,
		Transition:   0.25 + 0.25*a - 0.5*b,
		Transversion: 2.0 * (0.25 - 0.25*a),
	}
}

// logLikelihood is shared by the variants. The stationary frequency of the
// first state contributes log(1/4) per site, and an observed transversion is
// one specific state out of two so it contributes log(p/2).
func logLikelihood(op string, stats SufficientStatistics, params []float64, p TransitionProbs) (float64, error) {
	if p.Same <= 0 || math.IsNaN(p.Same) {
		return 0, NewDomainError(op, params, "log of non-positive same probability %v (stats %v)", p.Same, stats)
	}
	if p.Transition <= 0 || math.IsNaN(p.Transition) {
		return 0, NewDomainError(op, params, "log of non-positive transition probability %v (stats %v)", p.Transition, stats)
	}
	if p.Transversion <= 0 || math.IsNaN(p.Transversion) {
		return 0, NewDomainError(op, params, "log of non-positive transversion probability %v (stats %v)", p.Transversion, stats)
	}

	n := float64(stats.Sites())
	ll := math.Log(0.25) * n
	ll += math.Log(p.Same) * float64(stats.Same)
	ll += math.Log(p.Transition) * float64(stats.Transitions)
	ll += math.Log(p.Transversion*0.5) * float64(stats.Transversions)
	return ll, nil
}
