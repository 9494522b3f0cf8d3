package pipeline

import (
	"fmt"
	"io"
	"strings"
)

// WriteReport writes the human readable run report. Several lines are parsed
// by downstream tooling and must keep their exact shape:
//
//	Pseudorandom number seed: <int>
//	user-seconds <float>                  (first: MCMC, second: steppingstone)
//	log(marginal likelihood) = <float>    (at line start: steppingstone)
//	 Determining working parameter space for coverage = <c>...
//	  Polynomial regression: beta0 = <f> beta1 = <f> beta2 = <f>
//	  log(marginal likelihood) = <float>
func WriteReport(w io.Writer, cfg *Config, res *Result) error {
	rw := &reportWriter{w: w}

	rw.printf("Pseudorandom number seed: %d\n", res.Seed)
	rw.printf("Model: %s\n", res.Model)

	s := res.Stats
	if res.Simulated {
		rw.printf("Simulated data from %s = %s\n",
			strings.Join(res.Posterior.Names, ", "), joinFloats(cfg.TrueParams[:cfg.Dim()], "%g"))
	} else {
		rw.printf("Data read from %s\n", cfg.DataFile)
	}
	rw.printf("  %d sites: %d same, %d transitions, %d transversions\n", s.Sites(), s.Same, s.Transitions, s.Transversions)

	mc := cfg.MCMC
	rw.printf("\nMCMC:\n")
	rw.printf("  burn-in %d, %d iterations thinned by %d (%d samples)\n", mc.BurnIn, mc.Iterations, mc.ThinBy, res.Posterior.Len())
	for _, u := range res.Updaters {
		rw.printf("  %s window = %.5f (burn-in accept %% = %.1f, sampling accept %% = %.1f)\n",
			u.Name, u.Width, 100*u.BurnInAccept, 100*u.SamplingAccept)
	}
	rw.printf("  %12s %12s %12s %12s %12s %12s %12s %8s %12s\n",
		"parameter", "mode", "mean", "min", "max", "variance", "ESS", "maxlag", "tau")
	for _, ps := range res.Summaries {
		rw.printf("  %12s %12.5f %12.5f %12.5f %12.5f %12.5f %12.1f %8d %12.3f\n",
			ps.Name, ps.Mode, ps.Mean, ps.Min, ps.Max, ps.Variance, ps.ESS, ps.MaxLag, ps.AutocorrTime)
	}
	rw.printf("  split-half convergence z = %.3f\n", res.ConvergenceZ)
	rw.printf("user-seconds %.3f\n", res.MCMCSeconds)

	if g := res.GSS; g != nil {
		rw.printf("\nGeneralized steppingstone:\n")
		rw.printf("  Using %d stones, %d iterations/stone (thinning by %d), burn-in %d\n",
			cfg.GSS.Stones, cfg.GSS.Iterations, cfg.GSS.ThinBy, cfg.GSS.BurnIn)
		rw.printf("  Power for power posterior from Beta(%g,1) distribution\n", cfg.GSS.Alpha)
		for i, ref := range g.References {
			rw.printf("  Reference distribution for %s is Gamma(%.5f, %.5f)\n", res.Posterior.Names[i], ref.Shape, ref.Scale)
		}
		for _, sr := range g.Stones {
			rw.printf("    Step %d of %d: n = %d, beta = %.5f, diff = %.5f, logrk = %.5f, cumulative = %.5f\n",
				sr.Index+1, len(g.Stones), sr.Terms, sr.Beta, sr.Increment, sr.LogRatio, sr.Cumulative)
		}
		rw.printf("log(marginal likelihood) = %.5f\n", g.LogMarginalLikelihood)
		rw.printf("user-seconds %.3f\n", res.GSSSeconds)
	}

	rw.printf("\nLoRaD (%s center):\n", cfg.LoRaD.Center)
	for _, cr := range res.Regression {
		rw.printf(" Determining working parameter space for coverage = %g...\n", cr.Coverage)
		rw.printf("  retained %d of %d, norm_max = %.5f\n", len(cr.Retained), cr.Total, cr.NormMax)
		rw.printf("  Polynomial regression: beta0 = %.5f beta1 = %.5f beta2 = %.5f\n", cr.Beta[0], cr.Beta[1], cr.Beta[2])
		rw.printf("  log(marginal likelihood) = %.5f\n", cr.LogMarginalLikelihood)
	}
	for _, cr := range res.LoRaD {
		rw.printf(" Determining working parameter space for coverage = %g...\n", cr.Coverage)
		rw.printf("  retained %d of %d, norm_max = %.5f, delta = %.5f\n", len(cr.Retained), cr.Total, cr.NormMax, cr.Delta)
		rw.printf("  log(marginal likelihood) = %.5f\n", cr.LogMarginalLikelihood)
	}

	return rw.err
}

// reportWriter remembers the first write error so the report reads straight
type reportWriter struct {
	w   io.Writer
	err error
}

func (rw *reportWriter) printf(format string, args ...interface{}) {
	if rw.err != nil {
		return
	}
	_, rw.err = fmt.Fprintf(rw.w, format, args...)
}

func joinFloats(vals []float64, format string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf(format, v)
	}
	return strings.Join(parts, ", ")
}
