package model

// Kimura is the two parameter model: edge length and the
// transition/transversion rate ratio kappa.
type Kimura struct {
	densities
}

// Name implements SubstitutionModel
func (m *Kimura) Name() string { return K80 }

// TransitionProbabilities implements SubstitutionModel
func (m *Kimura) TransitionProbabilities(params []float64) (TransitionProbs, error) {
	if err := checkParams("TransitionProbabilities", 2, params); err != nil {
		return TransitionProbs{}, err
	}
	return k80Probs(params[0], params[1]), nil
}

// LogLikelihood implements SubstitutionModel
func (m *Kimura) LogLikelihood(stats SufficientStatistics, params []float64) (float64, error) {
	p, err := m.TransitionProbabilities(params)
	if err != nil {
		return 0, err
	}
	return logLikelihood("LogLikelihood", stats, params, p)
}

// WithReferences implements SubstitutionModel
func (m *Kimura) WithReferences(refs []Gamma) (SubstitutionModel, error) {
	d, err := m.densities.withRefs(refs)
	if err != nil {
		return nil, err
	}
	return &Kimura{densities: d}, nil
}
