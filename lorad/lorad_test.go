package lorad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/marglike/model"
	"github.com/CraigKelly/marglike/rand"
	"github.com/CraigKelly/marglike/sampler"
)

// normal draws a standard normal deviate with Box-Muller
func normal(gen *rand.Generator) float64 {
	u1 := 1.0 - gen.Float64()
	u2 := gen.Float64()
	return math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
}

// lognormalSample draws x = exp(mu + A z) and records the log kernel
// logc + log density(x), so the exact log marginal likelihood is logc.
// A is lower triangular.
func lognormalSample(t *testing.T, seed int64, mu []float64, a [][]float64, n int, logc float64) *sampler.PosteriorSample {
	gen, err := rand.NewGenerator(seed)
	require.NoError(t, err)

	dim := len(mu)
	names := []string{"edgelen", "kappa"}[:dim]
	logDetA := 0.0
	for i := 0; i < dim; i++ {
		logDetA += math.Log(a[i][i])
	}

	p := sampler.NewPosteriorSample(names, n)
	z := make([]float64, dim)
	x := make([]float64, dim)
	for r := 0; r < n; r++ {
		zz := 0.0
		for i := range z {
			z[i] = normal(gen)
			zz += z[i] * z[i]
		}
		sumLog := 0.0
		for i := 0; i < dim; i++ {
			l := mu[i]
			for j := 0; j <= i; j++ {
				l += a[i][j] * z[j]
			}
			x[i] = math.Exp(l)
			sumLog += l
		}
		logDens := -0.5*zz - 0.5*float64(dim)*math.Log(2*math.Pi) - logDetA - sumLog
		require.NoError(t, p.Add(logc+logDens, x))
	}
	return p
}

var (
	mu1 = []float64{math.Log(0.2)}
	a1  = [][]float64{{0.25}}
	mu2 = []float64{math.Log(0.2), math.Log(5.0)}
	a2  = [][]float64{{0.25, 0}, {-0.3, 0.4}}
)

func TestTransformRoundTrip(t *testing.T) {
	assert := assert.New(t)

	for _, tc := range []struct {
		mu []float64
		a  [][]float64
	}{{mu1, a1}, {mu2, a2}} {
		p := lognormalSample(t, 1, tc.mu, tc.a, 500, 0.0)
		tr, err := NewTransformer(p)
		require.NoError(t, err)
		assert.Equal(len(tc.mu), tr.Dim)

		ts, err := tr.TransformSample(p)
		require.NoError(t, err)
		for i, rec := range p.Records {
			back, err := tr.InverseTransform(ts[i].Std)
			assert.NoError(err)
			assert.InDeltaSlice(rec.Params, back, 1e-9)
		}

		// Whitened sample has zero mean and identity covariance
		for c := 0; c < tr.Dim; c++ {
			col := make([]float64, len(ts))
			for i := range ts {
				col[i] = ts[i].Std[c]
			}
			m, v := stat.MeanVariance(col, nil)
			assert.InDelta(0.0, m, 1e-9)
			assert.InDelta(1.0, v, 1e-9)
		}
		if tr.Dim == 2 {
			c0 := make([]float64, len(ts))
			c1 := make([]float64, len(ts))
			for i := range ts {
				c0[i], c1[i] = ts[i].Std[0], ts[i].Std[1]
			}
			assert.InDelta(0.0, stat.Covariance(c0, c1, nil), 1e-9)

			// SqrtS really is a square root of the covariance it inverts
			assert.InDelta(1.0, tr.SqrtS.At(0, 0)*tr.InvSqrtS.At(0, 0)+tr.SqrtS.At(0, 1)*tr.InvSqrtS.At(1, 0), 1e-9)
			assert.InDelta(tr.SqrtS.At(0, 1), tr.SqrtS.At(1, 0), 1e-12)
		}

		// Kernel adjustment is the log Jacobian
		rec := p.Records[0]
		adj := tr.LogDetSqrtS
		for _, x := range rec.Params {
			adj += math.Log(x)
		}
		assert.InDelta(rec.LogKernel+adj, ts[0].LogKernel, 1e-12)
	}
}

func TestTransformerErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := NewTransformer(nil)
	assert.True(model.IsEstimationError(err))

	one := sampler.NewPosteriorSample([]string{"edgelen"}, 1)
	one.Add(-1, []float64{0.2})
	_, err = NewTransformer(one)
	assert.True(model.IsEstimationError(err))

	flat := sampler.NewPosteriorSample([]string{"edgelen", "kappa"}, 3)
	flat.Add(-1, []float64{0.2, 5.0})
	flat.Add(-1, []float64{0.3, 5.0})
	flat.Add(-1, []float64{0.4, 5.0})
	_, err = NewTransformer(flat)
	assert.True(model.IsEstimationError(err))

	p := lognormalSample(t, 2, mu1, a1, 10, 0)
	tr, err := NewTransformer(p)
	require.NoError(t, err)
	_, err = tr.Transform(sampler.SampleRecord{Params: []float64{0.1, 0.2}})
	assert.Error(err)
	_, err = tr.Transform(sampler.SampleRecord{Params: []float64{-0.1}})
	assert.True(model.IsEstimationError(err))
	assert.False(model.IsDomainError(err))

	neg := sampler.NewPosteriorSample([]string{"edgelen"}, 3)
	neg.Add(-1, []float64{0.2})
	neg.Add(-1, []float64{0.0})
	neg.Add(-1, []float64{0.4})
	_, err = NewTransformer(neg)
	assert.True(model.IsEstimationError(err))
	assert.False(model.IsDomainError(err))
	_, err = tr.InverseTransform([]float64{0, 0})
	assert.Error(err)
}

func TestRadialCoverage(t *testing.T) {
	assert := assert.New(t)

	for _, r := range []float64{0.01, 0.5, 1.0, 1.96, 3.0, 5.0} {
		assert.InDelta(math.Erf(r/math.Sqrt2), RadialCoverage(1, r), 1e-12)
		assert.InDelta(1.0-math.Exp(-r*r/2.0), RadialCoverage(2, r), 1e-12)
	}
	assert.InDelta(2.0, unitSphereArea(1), 1e-12)
	assert.InDelta(2.0*math.Pi, unitSphereArea(2), 1e-12)
}

func TestWorkingSpace(t *testing.T) {
	assert := assert.New(t)

	p := lognormalSample(t, 3, mu2, a2, 1000, 0)
	tr, _ := NewTransformer(p)
	ts, _ := tr.TransformSample(p)
	before := append([]TransformedRecord(nil), ts...)

	est, err := NewEstimator(ts)
	require.NoError(t, err)
	assert.Equal(before, ts)
	assert.Equal(1000, est.Len())

	_, err = est.WorkingSpace(-0.1, CenterMean)
	assert.Error(err)
	assert.False(model.IsEstimationError(err))
	_, err = est.WorkingSpace(1.1, CenterMean)
	assert.Error(err)
	_, err = est.WorkingSpace(0.5, Center("median"))
	assert.Error(err)

	_, err = est.WorkingSpace(0.0, CenterMean)
	assert.True(model.IsEstimationError(err))
	_, err = est.Estimate(0.0, CenterMode)
	assert.True(model.IsEstimationError(err))

	ws, err := est.WorkingSpace(0.9, CenterMean)
	require.NoError(t, err)
	// (1-0.9)*1000 is just under 100 in float64, so the bound is 99
	assert.Equal(99, ws.LowerBound)
	assert.Equal(901, len(ws.Retained))

	// Retained is a copy; editing it leaves later coverages intact
	ws.Retained[0].LogKernel = math.Inf(1)
	ws.Retained[0].Std[0] = 1e6
	again, err := est.WorkingSpace(0.9, CenterMean)
	require.NoError(t, err)
	assert.Equal(ws.Center, again.Center)
	assert.False(math.IsInf(again.Retained[0].LogKernel, 1))
	for i := 1; i < len(ws.Retained); i++ {
		assert.True(ws.Retained[i].LogKernel >= ws.Retained[i-1].LogKernel)
	}

	// With the mode as center, wider coverage never shrinks the ball
	prevNorm, prevDelta := 0.0, 0.0
	for _, c := range []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.95, 1.0} {
		res, err := est.Estimate(c, CenterMode)
		require.NoError(t, err)
		assert.True(res.NormMax >= prevNorm)
		assert.True(res.Delta >= prevDelta)
		assert.True(res.Delta > 0 && res.Delta <= 1)
		prevNorm, prevDelta = res.NormMax, res.Delta
	}
}

func TestDegenerateNormMax(t *testing.T) {
	assert := assert.New(t)

	ts := []TransformedRecord{
		{LogKernel: -3, Std: []float64{1.0}},
		{LogKernel: -2, Std: []float64{0.5}},
		{LogKernel: -1, Std: []float64{0.0}},
	}
	est, err := NewEstimator(ts)
	require.NoError(t, err)

	// A single retained point is its own mode and mean
	_, err = est.Estimate(0.33, CenterMode)
	assert.True(model.IsEstimationError(err))
	_, err = est.Estimate(0.33, CenterMean)
	assert.True(model.IsEstimationError(err))

	res, err := est.Estimate(1.0, CenterMode)
	assert.NoError(err)
	assert.Equal(1.0, res.NormMax)

	_, err = est.EstimateRegression(0.5, CenterMean)
	assert.True(model.IsEstimationError(err))

	_, err = NewEstimator(nil)
	assert.True(model.IsEstimationError(err))
	_, err = NewEstimator([]TransformedRecord{{Std: []float64{1}}, {Std: []float64{1, 2}}})
	assert.Error(err)
}

func TestEstimateKnownNormalizer(t *testing.T) {
	assert := assert.New(t)

	const logc = -537.25
	for _, tc := range []struct {
		name string
		mu   []float64
		a    [][]float64
	}{{"jc69", mu1, a1}, {"k80", mu2, a2}} {
		p := lognormalSample(t, 13579, tc.mu, tc.a, 5000, logc)
		tr, err := NewTransformer(p)
		require.NoError(t, err)
		ts, err := tr.TransformSample(p)
		require.NoError(t, err)
		est, err := NewEstimator(ts)
		require.NoError(t, err)

		for _, c := range []float64{0.5, 0.7, 0.9} {
			for _, center := range []Center{CenterMean, CenterMode} {
				res, err := est.Estimate(c, center)
				require.NoError(t, err)
				assert.InDelta(logc, res.LogMarginalLikelihood, 0.1, "%s coverage %v center %s", tc.name, c, center)
				assert.False(res.Regression)
			}

			reg, err := est.EstimateRegression(c, CenterMean)
			require.NoError(t, err)
			assert.True(reg.Regression)
			assert.InDelta(logc, reg.LogMarginalLikelihood, 0.1, "%s regression coverage %v", tc.name, c)
			assert.InDelta(-0.5, reg.Beta[2], 0.25)
		}
	}
}

func TestFitRadialPolynomial(t *testing.T) {
	assert := assert.New(t)

	r := []float64{0, 0.5, 1, 1.5, 2, 2.5}
	y := make([]float64, len(r))
	for i, x := range r {
		y[i] = 3.0 - 0.5*x + 0.25*x*x
	}
	beta, err := FitRadialPolynomial(r, y)
	assert.NoError(err)
	assert.InDeltaSlice([]float64{3.0, -0.5, 0.25}, beta[:], 1e-9)

	_, err = FitRadialPolynomial(r[:2], y[:2])
	assert.True(model.IsEstimationError(err))

	// Normalizer of a standard normal over a huge ball is (2 pi)^(p/2)
	assert.InDelta(0.5*math.Log(2*math.Pi), logRadialNormalizer(1, 0, -0.5, 12.0), 1e-9)
	assert.InDelta(math.Log(2*math.Pi), logRadialNormalizer(2, 0, -0.5, 12.0), 1e-9)
}

func TestParseCenter(t *testing.T) {
	assert := assert.New(t)

	c, err := ParseCenter("mode")
	assert.NoError(err)
	assert.Equal(CenterMode, c)
	_, err = ParseCenter("bogus")
	assert.Error(err)
}
