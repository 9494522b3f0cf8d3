package model

// JukesCantor is the one parameter model: only the edge length is free and
// the transition/transversion rate ratio is fixed at 1.
type JukesCantor struct {
	densities
}

// Name implements SubstitutionModel
func (m *JukesCantor) Name() string { return JC69 }

// TransitionProbabilities implements SubstitutionModel
func (m *JukesCantor) TransitionProbabilities(params []float64) (TransitionProbs, error) {
	if err := checkParams("TransitionProbabilities", 1, params); err != nil {
		return TransitionProbs{}, err
	}
	return k80Probs(params[0], 1.0), nil
}

// LogLikelihood implements SubstitutionModel
func (m *JukesCantor) LogLikelihood(stats SufficientStatistics, params []float64) (float64, error) {
	p, err := m.TransitionProbabilities(params)
	if err != nil {
		return 0, err
	}
	return logLikelihood("LogLikelihood", stats, params, p)
}

// WithReferences implements SubstitutionModel
func (m *JukesCantor) WithReferences(refs []Gamma) (SubstitutionModel, error) {
	d, err := m.densities.withRefs(refs)
	if err != nil {
		return nil, err
	}
	return &JukesCantor{densities: d}, nil
}
