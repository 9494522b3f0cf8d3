// Package lorad implements the LoRaD marginal likelihood estimator: the
// posterior sample is log-transformed and whitened, the highest-density
// fraction is kept, and a truncated standard normal reference is used for
// importance sampling over the ball that fraction occupies.
package lorad

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/marglike/model"
	"github.com/CraigKelly/marglike/sampler"
)

const singularTolerance = 1e-12

// TransformedRecord is one whitened draw: the log kernel adjusted by the
// Jacobian of the transformation and the standardized vector.
type TransformedRecord struct {
	LogKernel float64
	Std       []float64
}

// Transformer maps raw parameter vectors x to y = S^(-1/2) (log x - mean),
// where mean and S are the mean and covariance (n-1 divisor) of log x over
// the posterior sample it was built from.
type Transformer struct {
	Dim         int
	Mean        []float64
	SqrtS       *mat.Dense
	InvSqrtS    *mat.Dense
	LogDetSqrtS float64
}

// NewTransformer computes the whitening map for p
func NewTransformer(p *sampler.PosteriorSample) (*Transformer, error) {
	if p == nil || p.Len() < 2 {
		return nil, model.NewEstimationError("NewTransformer", "need at least 2 samples to estimate a covariance")
	}

	n, dim := p.Len(), p.Dim()
	logs := mat.NewDense(n, dim, nil)
	for r, rec := range p.Records {
		for c, x := range rec.Params {
			if !(x > 0) {
				return nil, model.NewEstimationError("NewTransformer", "sample %d has non-positive coordinate %v", r, x)
			}
			logs.Set(r, c, math.Log(x))
		}
	}

	t := &Transformer{
		Dim:  dim,
		Mean: make([]float64, dim),
	}
	for c := 0; c < dim; c++ {
		t.Mean[c] = stat.Mean(mat.Col(nil, c, logs), nil)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, logs, nil)

	if dim == 1 {
		s := cov.At(0, 0)
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, model.NewEstimationError("NewTransformer", "log-scale variance %v is degenerate", s)
		}
		sd := math.Sqrt(s)
		t.SqrtS = mat.NewDense(1, 1, []float64{sd})
		t.InvSqrtS = mat.NewDense(1, 1, []float64{1.0 / sd})
		t.LogDetSqrtS = math.Log(sd)
		return t, nil
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return nil, model.NewEstimationError("NewTransformer", "eigen decomposition of the covariance failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues below this are round-off from a rank-deficient sample
	floor := floats.Max(vals) * singularTolerance

	root := make([]float64, dim)
	invRoot := make([]float64, dim)
	for i, v := range vals {
		if !(v > floor) || math.IsInf(v, 0) {
			return nil, model.NewEstimationError("NewTransformer", "covariance is singular (eigenvalue %v)", v)
		}
		root[i] = math.Sqrt(v)
		invRoot[i] = 1.0 / root[i]
		t.LogDetSqrtS += math.Log(root[i])
	}

	t.SqrtS = symmetricFunc(&vecs, root)
	t.InvSqrtS = symmetricFunc(&vecs, invRoot)
	return t, nil
}

// symmetricFunc returns V diag(d) V^T
func symmetricFunc(vecs *mat.Dense, d []float64) *mat.Dense {
	var tmp, out mat.Dense
	tmp.Mul(vecs, mat.NewDiagDense(len(d), d))
	out.Mul(&tmp, vecs.T())
	return &out
}

// Transform whitens one record and adjusts its log kernel by the log
// Jacobian: sum(log x) + log|det(S^(1/2))|.
func (t *Transformer) Transform(rec sampler.SampleRecord) (TransformedRecord, error) {
	if len(rec.Params) != t.Dim {
		return TransformedRecord{}, errors.Errorf("Record has %d parameters, transformer expects %d", len(rec.Params), t.Dim)
	}

	centered := make([]float64, t.Dim)
	logJacobian := t.LogDetSqrtS
	for i, x := range rec.Params {
		if !(x > 0) {
			return TransformedRecord{}, model.NewEstimationError("Transform", "coordinate %d is %v", i, x)
		}
		lx := math.Log(x)
		centered[i] = lx - t.Mean[i]
		logJacobian += lx
	}

	var y mat.VecDense
	y.MulVec(t.InvSqrtS, mat.NewVecDense(t.Dim, centered))
	return TransformedRecord{
		LogKernel: rec.LogKernel + logJacobian,
		Std:       mat.Col(nil, 0, &y),
	}, nil
}

// InverseTransform maps a standardized vector back to raw parameters:
// exp(S^(1/2) y + mean).
func (t *Transformer) InverseTransform(std []float64) ([]float64, error) {
	if len(std) != t.Dim {
		return nil, errors.Errorf("Vector has %d coordinates, transformer expects %d", len(std), t.Dim)
	}

	var lx mat.VecDense
	lx.MulVec(t.SqrtS, mat.NewVecDense(t.Dim, append([]float64(nil), std...)))
	x := make([]float64, t.Dim)
	for i := range x {
		x[i] = math.Exp(lx.AtVec(i) + t.Mean[i])
	}
	return x, nil
}

// TransformSample transforms every record of p, preserving order
func (t *Transformer) TransformSample(p *sampler.PosteriorSample) ([]TransformedRecord, error) {
	out := make([]TransformedRecord, p.Len())
	for i, rec := range p.Records {
		tr, err := t.Transform(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "Could not transform sample %d", i)
		}
		out[i] = tr
	}
	return out, nil
}
