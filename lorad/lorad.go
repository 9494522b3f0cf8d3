package lorad

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext"

	"github.com/CraigKelly/marglike/logspace"
	"github.com/CraigKelly/marglike/model"
)

// Center selects the point radii are measured from
type Center string

// Supported centers
const (
	CenterMean Center = "mean" // Mean of the retained standardized vectors
	CenterMode Center = "mode" // Retained vector with the highest log kernel
)

// ParseCenter checks a configured center name
func ParseCenter(s string) (Center, error) {
	switch Center(s) {
	case CenterMean, CenterMode:
		return Center(s), nil
	}
	return "", errors.Errorf("Unknown LoRaD center %q (want mean or mode)", s)
}

// WorkingSpace is the retained high-density part of a transformed sample
type WorkingSpace struct {
	Coverage   float64
	Total      int // Size of the full sample
	LowerBound int // Index of the first retained record in sorted order
	Retained   []TransformedRecord
	Center     []float64
	Radii      []float64 // Distance of each retained record from Center
	NormMax    float64
}

// CoverageResult is one LoRaD estimate
type CoverageResult struct {
	WorkingSpace
	Delta                 float64 // Standard normal mass inside the ball of radius NormMax
	LogMarginalLikelihood float64

	// Set by the regression variant only
	Regression bool
	Beta       [3]float64
}

// Estimator holds a transformed sample sorted by increasing log kernel
type Estimator struct {
	Dim    int
	sorted []TransformedRecord
}

// NewEstimator copies and sorts ts. The caller's order is left alone.
func NewEstimator(ts []TransformedRecord) (*Estimator, error) {
	if len(ts) < 1 {
		return nil, model.NewEstimationError("NewEstimator", "transformed sample is empty")
	}
	dim := len(ts[0].Std)
	sorted := make([]TransformedRecord, len(ts))
	for i, tr := range ts {
		if len(tr.Std) != dim {
			return nil, errors.Errorf("Transformed record %d has dimension %d, expected %d", i, len(tr.Std), dim)
		}
		sorted[i] = tr
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LogKernel < sorted[j].LogKernel
	})
	return &Estimator{Dim: dim, sorted: sorted}, nil
}

// Len is the size of the full sample
func (e *Estimator) Len() int {
	return len(e.sorted)
}

// RadialCoverage is P(|Z| <= r) for a dim-dimensional standard normal Z:
// the regularized lower incomplete gamma function P(dim/2, r^2/2).
func RadialCoverage(dim int, r float64) float64 {
	return mathext.GammaIncReg(float64(dim)/2.0, r*r/2.0)
}

// WorkingSpace keeps the records above floor((1-coverage) N) in sorted order
// and measures their distance from the chosen center.
func (e *Estimator) WorkingSpace(coverage float64, center Center) (*WorkingSpace, error) {
	if math.IsNaN(coverage) || coverage < 0 || coverage > 1 {
		return nil, errors.Errorf("Coverage %v must be in [0,1]", coverage)
	}
	if _, err := ParseCenter(string(center)); err != nil {
		return nil, err
	}

	n := len(e.sorted)
	lb := int(math.Floor((1.0 - coverage) * float64(n)))
	if lb >= n {
		return nil, model.NewEstimationError("WorkingSpace", "coverage %v of %d samples retains nothing", coverage, n)
	}

	ws := &WorkingSpace{
		Coverage:   coverage,
		Total:      n,
		LowerBound: lb,
		Retained:   make([]TransformedRecord, n-lb),
		Center:     make([]float64, e.Dim),
	}
	for i, tr := range e.sorted[lb:] {
		ws.Retained[i] = TransformedRecord{LogKernel: tr.LogKernel, Std: append([]float64(nil), tr.Std...)}
	}

	switch center {
	case CenterMode:
		best := 0
		for i, tr := range ws.Retained {
			if tr.LogKernel > ws.Retained[best].LogKernel {
				best = i
			}
		}
		copy(ws.Center, ws.Retained[best].Std)
	default:
		for _, tr := range ws.Retained {
			floats.Add(ws.Center, tr.Std)
		}
		floats.Scale(1.0/float64(len(ws.Retained)), ws.Center)
	}

	ws.Radii = make([]float64, len(ws.Retained))
	for i, tr := range ws.Retained {
		ws.Radii[i] = floats.Distance(tr.Std, ws.Center, 2)
	}
	ws.NormMax = floats.Max(ws.Radii)
	if !(ws.NormMax > 0) || math.IsInf(ws.NormMax, 0) {
		return nil, model.NewEstimationError("WorkingSpace", "norm max %v is degenerate for coverage %v", ws.NormMax, coverage)
	}
	return ws, nil
}

// Estimate computes the LoRaD log marginal likelihood for one coverage
func (e *Estimator) Estimate(coverage float64, center Center) (*CoverageResult, error) {
	ws, err := e.WorkingSpace(coverage, center)
	if err != nil {
		return nil, err
	}

	res := &CoverageResult{WorkingSpace: *ws}
	res.Delta = RadialCoverage(e.Dim, ws.NormMax)
	if !(res.Delta > 0) {
		return nil, model.NewEstimationError("Estimate", "radial coverage of norm max %v is zero", ws.NormMax)
	}

	logNorm := 0.5 * float64(e.Dim) * math.Log(2.0*math.Pi)
	ratios := make([]float64, len(ws.Retained))
	for i, tr := range ws.Retained {
		r := ws.Radii[i]
		ratios[i] = -0.5*r*r - logNorm - tr.LogKernel
	}

	lml, err := e.combine(ratios, "Estimate")
	if err != nil {
		return nil, err
	}
	res.LogMarginalLikelihood = math.Log(res.Delta) - lml
	return res, nil
}

// combine returns log( sum(exp(ratios)) / N ) over the full sample size N
func (e *Estimator) combine(ratios []float64, op string) (float64, error) {
	s, err := logspace.LogSumExp(ratios)
	if err != nil {
		return 0, model.NewEstimationError(op, "log ratios are not summable: %v", err)
	}
	if math.IsInf(s, -1) {
		return 0, model.NewEstimationError(op, "every log ratio is -Inf")
	}
	return s - math.Log(float64(len(e.sorted))), nil
}
