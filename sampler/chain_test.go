package sampler

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CraigKelly/marglike/model"
	"github.com/CraigKelly/marglike/rand"
)

func testChain(t *testing.T, seed int64, name string) *Chain {
	gen, err := rand.NewGenerator(seed)
	assert.NoError(t, err)

	s := testState(t, name)
	ups := []*Updater{}
	u, _ := NewUpdater(0, "edgelen", 2.0, 0.3)
	ups = append(ups, u)
	if name == model.K80 {
		u, _ = NewUpdater(1, "kappa", 50.0, 0.3)
		ups = append(ups, u)
	}

	ch, err := NewChain(gen, s, ups, 100)
	assert.NoError(t, err)
	return ch
}

func TestNewChain(t *testing.T) {
	assert := assert.New(t)

	gen, _ := rand.NewGenerator(1)
	s := testState(t, model.JC69)
	u, _ := NewUpdater(0, "edgelen", 1.0, 0.3)
	bad, _ := NewUpdater(1, "kappa", 1.0, 0.3)

	_, err := NewChain(nil, s, []*Updater{u}, 10)
	assert.Error(err)
	_, err = NewChain(gen, nil, []*Updater{u}, 10)
	assert.Error(err)
	_, err = NewChain(gen, s, nil, 10)
	assert.Error(err)
	_, err = NewChain(gen, s, []*Updater{u, bad}, 10)
	assert.Error(err)

	ch, err := NewChain(gen, s, []*Updater{u}, 10)
	assert.NoError(err)
	assert.True(math.IsNaN(ch.SplitHalfZ()))
}

func TestTuningReachesTarget(t *testing.T) {
	assert := assert.New(t)

	ch := testChain(t, 13579, model.K80)
	ctx := context.Background()
	assert.NoError(ch.BurnIn(ctx, 10000, 1.0))

	for _, u := range ch.Updaters {
		assert.True(u.Width < 2.0*50.0)
		assert.Equal(int64(10000), u.TuneUpdates)
	}

	ch.ResetCounters()
	assert.NoError(ch.Sample(ctx, 20000, 1, 1.0, nil))
	for _, u := range ch.Updaters {
		assert.Equal(int64(0), u.TuneUpdates)
		assert.InDelta(0.3, u.AcceptanceRate(), 0.1, u.Name)
	}
}

func TestRunDeterministic(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	s1, err := testChain(t, 42, model.K80).Run(ctx, 500, 2000, 10, 1.0)
	assert.NoError(err)
	s2, err := testChain(t, 42, model.K80).Run(ctx, 500, 2000, 10, 1.0)
	assert.NoError(err)
	s3, err := testChain(t, 43, model.K80).Run(ctx, 500, 2000, 10, 1.0)
	assert.NoError(err)

	assert.Equal(200, s1.Len())
	assert.Equal([]string{"edgelen", "kappa"}, s1.Names)
	assert.Equal(s1.Records, s2.Records)
	assert.NotEqual(s1.Records, s3.Records)

	for _, rec := range s1.Records {
		assert.False(math.IsNaN(rec.LogKernel))
		for _, x := range rec.Params {
			assert.True(x > 0)
		}
	}
}

func TestSampleRecorder(t *testing.T) {
	assert := assert.New(t)

	ch := testChain(t, 5, model.JC69)
	ctx := context.Background()

	var iters []int
	err := ch.Sample(ctx, 100, 25, 1.0, func(iter int, s *State) error {
		iters = append(iters, iter)
		return nil
	})
	assert.NoError(err)
	assert.Equal([]int{25, 50, 75, 100}, iters)
	assert.Equal(int64(100), ch.TotalIterations)

	assert.Error(ch.Sample(ctx, 10, 0, 1.0, nil))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(ch.BurnIn(cancelled, 10, 1.0))
}

func TestSplitHalfZ(t *testing.T) {
	assert := assert.New(t)

	ch := testChain(t, 11, model.JC69)
	ctx := context.Background()
	assert.NoError(ch.BurnIn(ctx, 1000, 1.0))
	assert.NoError(ch.Sample(ctx, 2000, 10, 1.0, nil))
	assert.True(ch.History.Full())

	z := ch.SplitHalfZ()
	assert.False(math.IsNaN(z))
	assert.True(math.Abs(z) < 6.0)
}

// failAfter evaluates the wrapped model until limit likelihood calls have
// been made, then reports a DomainError.
type failAfter struct {
	model.SubstitutionModel
	calls *int
	limit int
}

func (m failAfter) LogLikelihood(stats model.SufficientStatistics, params []float64) (float64, error) {
	*m.calls++
	if *m.calls > m.limit {
		return 0, model.NewDomainError("LogLikelihood", params, "call %d past limit %d", *m.calls, m.limit)
	}
	return m.SubstitutionModel.LogLikelihood(stats, params)
}

func TestChainPropagatesDomainError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// One likelihood call per iteration with a single updater
	ch := testChain(t, 5, model.JC69)
	calls := 0
	assert.NoError(ch.State.SetModel(failAfter{ch.State.Model, &calls, 150}))
	assert.NoError(ch.BurnIn(ctx, 100, 1.0))

	recorded := 0
	err := ch.Sample(ctx, 1000, 10, 1.0, func(iter int, s *State) error {
		recorded++
		return nil
	})
	assert.True(model.IsDomainError(err))
	assert.False(model.IsEstimationError(err))
	assert.Equal(4, recorded)

	err = ch.BurnIn(ctx, 10, 1.0)
	assert.True(model.IsDomainError(err))
}
