package model

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPriors(n int) []Gamma {
	p := make([]Gamma, n)
	for i := range p {
		p[i] = Gamma{Shape: 1.0, Scale: 50.0}
	}
	return p
}

func TestNewSubstitutionModel(t *testing.T) {
	assert := assert.New(t)

	m, err := NewSubstitutionModel(JC69, testPriors(1))
	assert.NoError(err)
	assert.Equal(1, m.Dim())
	assert.Equal([]string{"edgelen"}, m.ParamNames())

	m, err = NewSubstitutionModel(K80, testPriors(2))
	assert.NoError(err)
	assert.Equal(2, m.Dim())
	assert.Equal([]string{"edgelen", "kappa"}, m.ParamNames())
	assert.Equal(m.Priors(), m.References())

	_, err = NewSubstitutionModel("hky", testPriors(2))
	assert.Error(err)
	_, err = NewSubstitutionModel(K80, testPriors(1))
	assert.Error(err)
	_, err = NewSubstitutionModel(JC69, []Gamma{{Shape: 0, Scale: 1}})
	assert.Error(err)
}

func TestTransitionProbabilitiesSumToOne(t *testing.T) {
	assert := assert.New(t)

	jc, err := NewSubstitutionModel(JC69, testPriors(1))
	require.NoError(t, err)
	k80, err := NewSubstitutionModel(K80, testPriors(2))
	require.NoError(t, err)

	for _, v := range []float64{1e-6, 0.001, 0.05, 0.2, 1.0, 3.7, 25.0, 400.0} {
		p, err := jc.TransitionProbabilities([]float64{v})
		assert.NoError(err)
		assert.InDelta(1.0, p.Sum(), 1e-9)

		for _, k := range []float64{1e-4, 0.3, 1.0, 5.0, 42.0, 900.0} {
			p, err := k80.TransitionProbabilities([]float64{v, k})
			assert.NoError(err)
			assert.InDelta(1.0, p.Sum(), 1e-9, "v=%v k=%v", v, k)
			assert.True(p.Same > 0 && p.Transition >= 0 && p.Transversion > 0)
		}
	}
}

func TestJukesCantorIsKimuraWithKappaOne(t *testing.T) {
	assert := assert.New(t)

	jc, _ := NewSubstitutionModel(JC69, testPriors(1))
	k80, _ := NewSubstitutionModel(K80, testPriors(2))
	stats := SufficientStatistics{Same: 150, Transitions: 30, Transversions: 20}

	for _, v := range []float64{0.01, 0.2, 0.9} {
		p1, _ := jc.TransitionProbabilities([]float64{v})
		p2, _ := k80.TransitionProbabilities([]float64{v, 1.0})
		assert.InDelta(p1.Same, p2.Same, 1e-15)
		assert.InDelta(p1.Transition, p2.Transition, 1e-15)

		// JC: the one transition state is as likely as each transversion state
		assert.InDelta(p1.Transition, p1.Transversion/2.0, 1e-15)

		l1, err := jc.LogLikelihood(stats, []float64{v})
		assert.NoError(err)
		l2, err := k80.LogLikelihood(stats, []float64{v, 1.0})
		assert.NoError(err)
		assert.InDelta(l1, l2, 1e-9)
	}
}

func TestLogLikelihoodValue(t *testing.T) {
	assert := assert.New(t)

	k80, _ := NewSubstitutionModel(K80, testPriors(2))
	stats := SufficientStatistics{Same: 140, Transitions: 40, Transversions: 20}
	v, k := 0.2, 5.0

	a := math.Exp(-4 * v / 3)
	b := math.Exp((-4 * v / 3) * 0.5 * (k + 1))
	same := 0.25 + 0.25*a + 0.5*b
	trs := 0.25 + 0.25*a - 0.5*b
	trv := 0.25 - 0.25*a
	exp := math.Log(0.25)*200 + 140*math.Log(same) + 40*math.Log(trs) + 20*math.Log(trv)

	ll, err := k80.LogLikelihood(stats, []float64{v, k})
	assert.NoError(err)
	assert.InDelta(exp, ll, 1e-9)
}

func TestLogLikelihoodDomainError(t *testing.T) {
	assert := assert.New(t)

	k80, _ := NewSubstitutionModel(K80, testPriors(2))
	stats := SufficientStatistics{Same: 10, Transitions: 1, Transversions: 1}

	// v so small that exp(-4v/3) rounds to 1: transversion probability is 0
	_, err := k80.LogLikelihood(stats, []float64{1e-18, 2.0})
	assert.Error(err)
	assert.True(IsDomainError(err))

	_, err = k80.LogLikelihood(stats, []float64{-0.1, 2.0})
	assert.True(IsDomainError(err))

	var de *DomainError
	assert.True(errors.As(errors.Wrap(err, "outer"), &de))
	assert.Equal([]float64{-0.1, 2.0}, de.Params)
	assert.Contains(err.Error(), "-0.1")

	// Wrong dimension is a usage problem, not a domain problem
	_, err = k80.LogLikelihood(stats, []float64{0.1})
	assert.Error(err)
	assert.False(IsDomainError(err))
}

func TestPriorAndReferenceTerms(t *testing.T) {
	assert := assert.New(t)

	k80, _ := NewSubstitutionModel(K80, []Gamma{{Shape: 2, Scale: 3}, {Shape: 1, Scale: 50}})
	params := []float64{0.4, 6.0}

	lp0 := Gamma{Shape: 2, Scale: 3}.LogDensity(0.4)
	lp1 := Gamma{Shape: 1, Scale: 50}.LogDensity(6.0)
	assert.InDelta(lp0+lp1, k80.LogPrior(params), 1e-12)
	assert.InDelta(lp0, k80.LogPriorAt(0, 0.4), 1e-12)
	assert.InDelta(k80.LogPrior(params), k80.LogReference(params), 1e-12)

	refs := []Gamma{{Shape: 4, Scale: 0.05}, {Shape: 9, Scale: 0.6}}
	m2, err := k80.WithReferences(refs)
	assert.NoError(err)
	assert.Equal(refs, m2.References())
	assert.InDelta(refs[0].LogDensity(0.4)+refs[1].LogDensity(6.0), m2.LogReference(params), 1e-12)
	assert.InDelta(k80.LogPrior(params), m2.LogPrior(params), 1e-12)

	// original untouched
	assert.Equal(k80.Priors(), k80.References())

	_, err = k80.WithReferences(refs[:1])
	assert.Error(err)
	_, err = k80.WithReferences([]Gamma{{Shape: 1, Scale: 1}, {Shape: -1, Scale: 1}})
	assert.Error(err)
}
