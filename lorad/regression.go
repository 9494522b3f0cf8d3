package lorad

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/marglike/model"
)

// Gauss-Legendre points used for the radial normalizer
const quadPoints = 64

// unitSphereArea is the surface area of the unit sphere in dim dimensions
func unitSphereArea(dim int) float64 {
	return 2.0 * math.Pow(math.Pi, float64(dim)/2.0) / math.Gamma(float64(dim)/2.0)
}

// FitRadialPolynomial fits logq = b0 + b1 r + b2 r^2 by least squares
func FitRadialPolynomial(radii []float64, logq []float64) ([3]float64, error) {
	var beta [3]float64
	n := len(radii)
	if n < 3 || len(logq) != n {
		return beta, model.NewEstimationError("FitRadialPolynomial", "need at least 3 points, have %d", n)
	}

	x := mat.NewDense(n, 3, nil)
	for i, r := range radii {
		x.Set(i, 0, 1.0)
		x.Set(i, 1, r)
		x.Set(i, 2, r*r)
	}

	var b mat.VecDense
	if err := b.SolveVec(x, mat.NewVecDense(n, append([]float64(nil), logq...))); err != nil {
		return beta, model.NewEstimationError("FitRadialPolynomial", "least squares fit failed: %v", err)
	}
	for i := range beta {
		beta[i] = b.AtVec(i)
		if math.IsNaN(beta[i]) || math.IsInf(beta[i], 0) {
			return beta, model.NewEstimationError("FitRadialPolynomial", "coefficient %d is %v", i, beta[i])
		}
	}
	return beta, nil
}

// logRadialNormalizer returns log( A_dim * integral_0^R exp(b1 r + b2 r^2) r^(dim-1) dr )
func logRadialNormalizer(dim int, b1, b2, rmax float64) float64 {
	expo := func(r float64) float64 { return b1*r + b2*r*r }

	// Shift by the largest exponent on [0, R] so the integrand is <= 1
	shift := math.Max(expo(0), expo(rmax))
	if b2 < 0 {
		if v := -b1 / (2.0 * b2); v > 0 && v < rmax {
			shift = math.Max(shift, expo(v))
		}
	}

	f := func(r float64) float64 {
		return math.Exp(expo(r)-shift) * math.Pow(r, float64(dim-1))
	}
	integral := quad.Fixed(f, 0, rmax, quadPoints, quad.Legendre{}, 0)
	return shift + math.Log(unitSphereArea(dim)*integral)
}

// EstimateRegression is the LoRaD variant whose reference density is fitted
// to the retained sample: log g(r) = b1 r + b2 r^2 - log Z on the ball
// r <= NormMax, with Z the exact normalizer over that ball.
func (e *Estimator) EstimateRegression(coverage float64, center Center) (*CoverageResult, error) {
	ws, err := e.WorkingSpace(coverage, center)
	if err != nil {
		return nil, err
	}

	logq := make([]float64, len(ws.Retained))
	for i, tr := range ws.Retained {
		logq[i] = tr.LogKernel
	}
	beta, err := FitRadialPolynomial(ws.Radii, logq)
	if err != nil {
		return nil, err
	}

	logZ := logRadialNormalizer(e.Dim, beta[1], beta[2], ws.NormMax)
	if math.IsNaN(logZ) || math.IsInf(logZ, 0) {
		return nil, model.NewEstimationError("EstimateRegression", "reference normalizer is %v", logZ)
	}

	ratios := make([]float64, len(ws.Retained))
	for i, r := range ws.Radii {
		ratios[i] = beta[1]*r + beta[2]*r*r - logZ - logq[i]
	}
	lml, err := e.combine(ratios, "EstimateRegression")
	if err != nil {
		return nil, err
	}

	return &CoverageResult{
		WorkingSpace:          *ws,
		Delta:                 1.0,
		LogMarginalLikelihood: -lml,
		Regression:            true,
		Beta:                  beta,
	}, nil
}
