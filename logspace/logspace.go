// Package logspace holds the log-domain summation used by both marginal
// likelihood estimators.
package logspace

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// LogSumExp returns log(sum(exp(x))) with the maximum factored out, so any
// number of very negative terms can be summed without underflow. Terms equal
// to -Inf contribute nothing; if every term is -Inf the result is -Inf. NaN
// or +Inf terms are an error, as is an empty slice.
func LogSumExp(logx []float64) (float64, error) {
	if len(logx) < 1 {
		return 0, errors.New("LogSumExp requires at least one value")
	}
	for i, v := range logx {
		if math.IsNaN(v) || math.IsInf(v, 1) {
			return 0, errors.Errorf("LogSumExp term %d is not summable: %v", i, v)
		}
	}

	if math.IsInf(floats.Max(logx), -1) {
		return math.Inf(-1), nil
	}

	return floats.LogSumExp(logx), nil
}

// LogMeanExp returns log(mean(exp(x))), i.e. LogSumExp minus log(n).
func LogMeanExp(logx []float64) (float64, error) {
	s, err := LogSumExp(logx)
	if err != nil {
		return 0, err
	}
	return s - math.Log(float64(len(logx))), nil
}

// Finite returns the finite members of logx, preserving order
func Finite(logx []float64) []float64 {
	out := make([]float64, 0, len(logx))
	for _, v := range logx {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
