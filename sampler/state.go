package sampler

import (
	"github.com/pkg/errors"

	"github.com/CraigKelly/marglike/model"
)

// State is the current position of one chain plus the cached log terms for
// that position. Each chain owns its State; nothing here is shared between
// runs.
type State struct {
	Model   model.SubstitutionModel
	Stats   model.SufficientStatistics
	Params  []float64 // Current parameter vector (every value > 0)
	LogLike float64   // Log likelihood at Params
	LogPri  []float64 // Per-coordinate log prior at Params
	LogRef  []float64 // Per-coordinate log reference density at Params

	scratch []float64
}

// NewState evaluates the model at start and returns a ready State
func NewState(m model.SubstitutionModel, stats model.SufficientStatistics, start []float64) (*State, error) {
	if m == nil {
		return nil, errors.New("No model supplied")
	}
	if len(start) != m.Dim() {
		return nil, errors.Errorf("Model %s needs %d starting values, got %d", m.Name(), m.Dim(), len(start))
	}

	s := &State{
		Model:   m,
		Stats:   stats,
		Params:  append([]float64(nil), start...),
		LogPri:  make([]float64, m.Dim()),
		LogRef:  make([]float64, m.Dim()),
		scratch: make([]float64, m.Dim()),
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh recomputes every cached term from Params
func (s *State) Refresh() error {
	ll, err := s.Model.LogLikelihood(s.Stats, s.Params)
	if err != nil {
		return errors.Wrap(err, "Could not evaluate starting state")
	}
	s.LogLike = ll
	for i, x := range s.Params {
		s.LogPri[i] = s.Model.LogPriorAt(i, x)
		s.LogRef[i] = s.Model.LogReferenceAt(i, x)
	}
	return nil
}

// SetModel swaps the model (e.g. to one with fitted reference
// distributions) and refreshes the cache.
func (s *State) SetModel(m model.SubstitutionModel) error {
	if m.Dim() != len(s.Params) {
		return errors.Errorf("Model %s has dimension %d, state has %d", m.Name(), m.Dim(), len(s.Params))
	}
	s.Model = m
	return s.Refresh()
}

// LogPrior is the joint log prior at the current position
func (s *State) LogPrior() float64 {
	var lp float64
	for _, v := range s.LogPri {
		lp += v
	}
	return lp
}

// LogReference is the joint log reference density at the current position
func (s *State) LogReference() float64 {
	var lr float64
	for _, v := range s.LogRef {
		lr += v
	}
	return lr
}

// LogKernel is the log posterior kernel (log likelihood + log prior)
func (s *State) LogKernel() float64 {
	return s.LogLike + s.LogPrior()
}

// candidateLogLike evaluates the likelihood with coordinate i replaced by x
func (s *State) candidateLogLike(i int, x float64) (float64, error) {
	copy(s.scratch, s.Params)
	s.scratch[i] = x
	return s.Model.LogLikelihood(s.Stats, s.scratch)
}
