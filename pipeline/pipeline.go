// Package pipeline runs the full experiment: obtain data, sample the
// posterior, then estimate the marginal likelihood twice (generalized
// steppingstone and LoRaD) so the two can be checked against each other.
package pipeline

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/CraigKelly/marglike/gss"
	"github.com/CraigKelly/marglike/lorad"
	"github.com/CraigKelly/marglike/model"
	"github.com/CraigKelly/marglike/rand"
	"github.com/CraigKelly/marglike/sampler"
)

// Records between progress ticks during sampling
const progressEvery = 100

// UpdaterReport is the final state of one updater after the posterior run
type UpdaterReport struct {
	Name           string
	Width          float64
	BurnInAccept   float64 // Acceptance rate while tuning
	SamplingAccept float64 // Acceptance rate with the window frozen
}

// Result holds everything a run produces
type Result struct {
	Seed      int64
	Model     string
	Simulated bool
	Stats     model.SufficientStatistics

	Posterior    *sampler.PosteriorSample
	Summaries    []sampler.ParamSummary
	Updaters     []UpdaterReport
	ConvergenceZ float64
	MCMCSeconds  float64

	GSS        *gss.Result // nil when skipped
	GSSSeconds float64

	Regression []*lorad.CoverageResult // One per coverage when enabled
	LoRaD      []*lorad.CoverageResult // One per coverage

	// The two headline scalars. GSS is NaN when skipped; LoRaD is the standard
	// estimate at the highest coverage.
	GSSLogMarginalLikelihood   float64
	LoRaDLogMarginalLikelihood float64
}

type runner struct {
	ctx   context.Context
	cfg   *Config
	obs   Observer
	gen   *rand.Generator
	res   *Result
	phase Phase
}

func (r *runner) enter(p Phase) error {
	if err := r.ctx.Err(); err != nil {
		return errors.Wrapf(err, "Run cancelled before %v", p)
	}
	logrus.Infof("Phase %v -> %v", r.phase, p)
	r.phase = p
	r.obs.Observe(Event{Phase: p})
	return nil
}

// Run executes one experiment. Each call owns its own generator and chain
// state, so independent runs may execute concurrently. On failure the
// observer sees Failed and no estimate is returned.
func Run(ctx context.Context, cfg *Config, obs Observer) (*Result, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	if err := cfg.Check(); err != nil {
		obs.Observe(Event{Phase: Failed, Err: err})
		return nil, err
	}

	r := &runner{ctx: ctx, cfg: cfg, obs: obs, phase: Idle}
	obs.Observe(Event{Phase: Idle})

	res, err := r.run()
	if err != nil {
		logrus.Errorf("Run failed during %v: %v", r.phase, err)
		r.phase = Failed
		obs.Observe(Event{Phase: Failed, Err: err})
		return nil, err
	}

	logrus.Infof("Phase %v -> %v", r.phase, Done)
	r.phase = Done
	obs.Observe(Event{Phase: Done, Result: res, Estimate: res.LoRaDLogMarginalLikelihood})
	return res, nil
}

func (r *runner) run() (*Result, error) {
	cfg := r.cfg
	dim := cfg.Dim()

	gen, err := rand.NewGenerator(cfg.Seed)
	if err != nil {
		return nil, err
	}
	r.gen = gen
	r.res = &Result{
		Seed:                     cfg.Seed,
		Model:                    cfg.Model,
		GSSLogMarginalLikelihood: math.NaN(),
	}

	mod, err := model.NewSubstitutionModel(cfg.Model, cfg.Priors[:dim])
	if err != nil {
		return nil, err
	}

	if err := r.enter(Simulate); err != nil {
		return nil, err
	}
	if err := r.data(mod); err != nil {
		return nil, err
	}

	posterior, widths, err := r.mcmc(mod)
	if err != nil {
		return nil, err
	}

	if !cfg.SkipGSS {
		if err := r.steppingstone(mod, posterior, widths); err != nil {
			return nil, err
		}
	}

	if err := r.lorad(posterior); err != nil {
		return nil, err
	}
	return r.res, nil
}

// data simulates or reads the sufficient statistics
func (r *runner) data(mod model.SubstitutionModel) error {
	cfg := r.cfg
	if cfg.DataFile != "" {
		stats, err := model.ReadStatisticsFile(cfg.DataFile)
		if err != nil {
			return err
		}
		r.res.Stats = stats
		logrus.Infof("Read %d sites from %s", stats.Sites(), cfg.DataFile)
		return nil
	}

	stats, err := model.Simulate(r.gen, mod, cfg.TrueParams[:mod.Dim()], cfg.Sites)
	if err != nil {
		return errors.Wrap(err, "Could not simulate data")
	}
	r.res.Stats = stats
	r.res.Simulated = true
	logrus.Infof("Simulated %d sites: %d same, %d transitions, %d transversions",
		stats.Sites(), stats.Same, stats.Transitions, stats.Transversions)
	return nil
}

func (r *runner) newUpdaters(mod model.SubstitutionModel, widths []float64) ([]*sampler.Updater, error) {
	ups := make([]*sampler.Updater, mod.Dim())
	for i, name := range mod.ParamNames() {
		u, err := sampler.NewUpdater(i, name, widths[i], r.cfg.MCMC.TargetAcceptance)
		if err != nil {
			return nil, err
		}
		ups[i] = u
	}
	return ups, nil
}

func recentAcceptance(ch *sampler.Chain) []float64 {
	acc := make([]float64, len(ch.Updaters))
	for i, u := range ch.Updaters {
		acc[i] = u.RecentAcceptanceRate()
	}
	return acc
}

// mcmc samples the posterior and returns the sample and the tuned widths
func (r *runner) mcmc(mod model.SubstitutionModel) (*sampler.PosteriorSample, []float64, error) {
	cfg := r.cfg
	mc := cfg.MCMC

	start := userSeconds()

	if err := r.enter(BurnIn); err != nil {
		return nil, nil, err
	}

	state, err := sampler.NewState(mod, r.res.Stats, cfg.StartParams[:mod.Dim()])
	if err != nil {
		return nil, nil, err
	}
	ups, err := r.newUpdaters(mod, mc.Windows)
	if err != nil {
		return nil, nil, err
	}
	ch, err := sampler.NewChain(r.gen, state, ups, mc.ConvergenceWindow)
	if err != nil {
		return nil, nil, err
	}
	if err := ch.BurnIn(r.ctx, mc.BurnIn, 1.0); err != nil {
		return nil, nil, err
	}

	burnAccept := make([]float64, len(ups))
	for i, u := range ups {
		burnAccept[i] = u.TuneAcceptanceRate()
		logrus.Debugf("Tuned %s window to %.5f (accept %.1f%%)", u.Name, u.Width, 100*burnAccept[i])
	}
	ch.ResetCounters()

	if err := r.enter(Sampling); err != nil {
		return nil, nil, err
	}
	posterior := sampler.NewPosteriorSample(mod.ParamNames(), mc.Iterations/mc.ThinBy)
	err = ch.Sample(r.ctx, mc.Iterations, mc.ThinBy, 1.0, func(iter int, s *sampler.State) error {
		if err := posterior.Add(s.LogKernel(), s.Params); err != nil {
			return err
		}
		if posterior.Len()%progressEvery == 0 {
			r.obs.Observe(Event{
				Phase:      Sampling,
				Tick:       true,
				Iterations: ch.TotalIterations,
				Acceptance: recentAcceptance(ch),
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	r.res.MCMCSeconds = userSeconds() - start
	r.res.Posterior = posterior
	r.res.ConvergenceZ = ch.SplitHalfZ()

	widths := make([]float64, len(ups))
	r.res.Updaters = make([]UpdaterReport, len(ups))
	for i, u := range ups {
		widths[i] = u.Width
		r.res.Updaters[i] = UpdaterReport{
			Name:           u.Name,
			Width:          u.Width,
			BurnInAccept:   burnAccept[i],
			SamplingAccept: u.AcceptanceRate(),
		}
		if math.Abs(burnAccept[i]-mc.TargetAcceptance) > 0.1 {
			logrus.Warnf("Updater %s accepted %.1f%% during burn in (target %.1f%%): consider a longer burn in",
				u.Name, 100*burnAccept[i], 100*mc.TargetAcceptance)
		}
	}
	if math.Abs(r.res.ConvergenceZ) > 3 {
		logrus.Warnf("Split-half convergence z = %.2f: the posterior run may not have converged", r.res.ConvergenceZ)
	}

	r.res.Summaries, err = sampler.Summarize(posterior)
	if err != nil {
		return nil, nil, err
	}
	logrus.Infof("Posterior run kept %d samples in %.3f user-seconds", posterior.Len(), r.res.MCMCSeconds)

	if cfg.SamplesFile != "" {
		if err := sampler.WriteSamplesFile(cfg.SamplesFile, posterior); err != nil {
			return nil, nil, err
		}
		logrus.Infof("Wrote posterior sample to %s", cfg.SamplesFile)
	}

	return posterior, widths, nil
}

// steppingstone restarts a chain at the starting values, using the tuned
// widths from the posterior run, and anneals it through the ladder.
func (r *runner) steppingstone(mod model.SubstitutionModel, posterior *sampler.PosteriorSample, widths []float64) error {
	cfg := r.cfg

	state, err := sampler.NewState(mod, r.res.Stats, cfg.StartParams[:mod.Dim()])
	if err != nil {
		return err
	}
	ups, err := r.newUpdaters(mod, widths)
	if err != nil {
		return err
	}
	ch, err := sampler.NewChain(r.gen, state, ups, cfg.MCMC.ConvergenceWindow)
	if err != nil {
		return err
	}

	start := userSeconds()
	res, err := gss.Estimate(r.ctx, ch, posterior, cfg.GSS, func(sr gss.StoneResult, done bool) {
		if !done {
			logrus.Infof("Phase %v -> %v (stone %d of %d, beta %.5f)", r.phase, LadderStep, sr.Index+1, cfg.GSS.Stones, sr.Beta)
			r.phase = LadderStep
		} else {
			logrus.Debugf("Stone %d: %d terms, log ratio %.5f, running total %.5f", sr.Index+1, sr.Terms, sr.LogRatio, sr.Cumulative)
		}
		r.obs.Observe(Event{
			Phase:      LadderStep,
			Tick:       done,
			Iterations: ch.TotalIterations,
			Acceptance: recentAcceptance(ch),
			Stone:      sr.Index + 1,
			Stones:     cfg.GSS.Stones,
			Beta:       sr.Beta,
			Estimate:   sr.Cumulative,
		})
	})
	if err != nil {
		return err
	}

	r.res.GSSSeconds = userSeconds() - start
	r.res.GSS = res
	r.res.GSSLogMarginalLikelihood = res.LogMarginalLikelihood
	logrus.Infof("Steppingstone log marginal likelihood %.5f in %.3f user-seconds", res.LogMarginalLikelihood, r.res.GSSSeconds)
	return nil
}

func (r *runner) lorad(posterior *sampler.PosteriorSample) error {
	cfg := r.cfg.LoRaD

	if err := r.enter(Transform); err != nil {
		return err
	}
	tr, err := lorad.NewTransformer(posterior)
	if err != nil {
		return err
	}
	ts, err := tr.TransformSample(posterior)
	if err != nil {
		return err
	}
	est, err := lorad.NewEstimator(ts)
	if err != nil {
		return err
	}

	if err := r.enter(LoRaD); err != nil {
		return err
	}
	center, _ := lorad.ParseCenter(cfg.Center)

	if cfg.Regression {
		for _, c := range cfg.Coverages {
			cr, err := est.EstimateRegression(c, center)
			if err != nil {
				return errors.Wrapf(err, "Regression LoRaD failed at coverage %v", c)
			}
			r.res.Regression = append(r.res.Regression, cr)
		}
	}

	best := -1.0
	for _, c := range cfg.Coverages {
		cr, err := est.Estimate(c, center)
		if err != nil {
			return errors.Wrapf(err, "LoRaD failed at coverage %v", c)
		}
		r.res.LoRaD = append(r.res.LoRaD, cr)
		if c > best {
			best = c
			r.res.LoRaDLogMarginalLikelihood = cr.LogMarginalLikelihood
		}
		logrus.Debugf("LoRaD coverage %v: norm max %.5f, delta %.5f, estimate %.5f", c, cr.NormMax, cr.Delta, cr.LogMarginalLikelihood)
	}

	logrus.Infof("LoRaD log marginal likelihood %.5f", r.res.LoRaDLogMarginalLikelihood)
	return nil
}
