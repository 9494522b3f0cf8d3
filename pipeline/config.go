package pipeline

import (
	"bytes"
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/CraigKelly/marglike/gss"
	"github.com/CraigKelly/marglike/lorad"
	"github.com/CraigKelly/marglike/model"
)

// MCMCConfig controls the posterior run
type MCMCConfig struct {
	BurnIn            int       `yaml:"burnin"`
	Iterations        int       `yaml:"iterations"`
	ThinBy            int       `yaml:"thin"`
	TargetAcceptance  float64   `yaml:"target_acceptance"`
	Windows           []float64 `yaml:"windows"`            // Initial proposal width per parameter
	ConvergenceWindow int       `yaml:"convergence_window"` // Recorded log kernels kept for the split-half check
}

// LoRaDConfig controls the LoRaD estimates
type LoRaDConfig struct {
	Coverages  []float64 `yaml:"coverages"`
	Center     string    `yaml:"center"`     // mean or mode
	Regression bool      `yaml:"regression"` // Also run the polynomial regression variant
}

// Config is everything needed for one run. Per-parameter lists may be longer
// than the model dimension; trailing values are ignored so a k80 config can
// be switched to jc69 without editing.
type Config struct {
	Seed        int64         `yaml:"seed"`
	Model       string        `yaml:"model"`
	TrueParams  []float64     `yaml:"true_params"`  // Used to simulate data
	StartParams []float64     `yaml:"start_params"` // Chain starting point
	Sites       int           `yaml:"sites"`
	DataFile    string        `yaml:"data"` // Read "nsame ntrs ntrv" from here instead of simulating
	Priors      []model.Gamma `yaml:"priors"`
	SamplesFile string        `yaml:"samples"` // Optional raw posterior sample dump

	MCMC    MCMCConfig  `yaml:"mcmc"`
	SkipGSS bool        `yaml:"skip_gss"`
	GSS     gss.Options `yaml:"gss"`
	LoRaD   LoRaDConfig `yaml:"lorad"`
}

// DefaultConfig returns the standard K80 experiment
func DefaultConfig() *Config {
	return &Config{
		Seed:        13579,
		Model:       model.K80,
		TrueParams:  []float64{0.2, 5.0},
		StartParams: []float64{0.2, 5.0},
		Sites:       200,
		Priors:      []model.Gamma{{Shape: 1.0, Scale: 50.0}, {Shape: 1.0, Scale: 50.0}},
		MCMC: MCMCConfig{
			BurnIn:            1000,
			Iterations:        1000000,
			ThinBy:            100,
			TargetAcceptance:  0.3,
			Windows:           []float64{2.0, 50.0},
			ConvergenceWindow: 1000,
		},
		GSS: gss.Options{
			Stones:     5,
			Alpha:      1.0,
			Iterations: 100000,
			ThinBy:     100,
			BurnIn:     1000,
		},
		LoRaD: LoRaDConfig{
			Coverages:  []float64{0.5, 0.7, 0.9},
			Center:     string(lorad.CenterMean),
			Regression: true,
		},
	}
}

// LoadConfig reads YAML from fn over the defaults. Unknown keys are an error.
func LoadConfig(fn string) (*Config, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ config from %s", fn)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE config from %s", fn)
	}
	return cfg, nil
}

// Dim is the parameter count of the configured model
func (c *Config) Dim() int {
	if c.Model == model.JC69 {
		return 1
	}
	return 2
}

func positiveList(name string, vals []float64, dim int) error {
	if len(vals) < dim {
		return errors.Errorf("Invalid %s: need %d values, have %d", name, dim, len(vals))
	}
	for _, v := range vals[:dim] {
		if !(v > 0) || math.IsInf(v, 0) {
			return errors.Errorf("Invalid %s value %v", name, v)
		}
	}
	return nil
}

// Check returns an error describing the first problem found
func (c *Config) Check() error {
	if c.Model != model.JC69 && c.Model != model.K80 {
		return errors.Errorf("Invalid model %q (want %s or %s)", c.Model, model.JC69, model.K80)
	}
	dim := c.Dim()

	if c.DataFile == "" {
		if err := positiveList("true_params", c.TrueParams, dim); err != nil {
			return err
		}
		if c.Sites < 1 {
			return errors.Errorf("Invalid site count %d", c.Sites)
		}
	}
	if err := positiveList("start_params", c.StartParams, dim); err != nil {
		return err
	}
	if len(c.Priors) < dim {
		return errors.Errorf("Invalid priors: need %d, have %d", dim, len(c.Priors))
	}
	for i, p := range c.Priors[:dim] {
		if err := p.Check(); err != nil {
			return errors.Wrapf(err, "Invalid prior %d", i)
		}
	}

	m := c.MCMC
	if m.BurnIn < 0 {
		return errors.Errorf("Invalid MCMC burn in %d", m.BurnIn)
	}
	if m.ThinBy < 1 {
		return errors.Errorf("Invalid MCMC thinning %d", m.ThinBy)
	}
	if m.Iterations/m.ThinBy < 2 {
		return errors.Errorf("MCMC run of %d iterations thinned by %d keeps fewer than 2 samples", m.Iterations, m.ThinBy)
	}
	if !(m.TargetAcceptance > 0 && m.TargetAcceptance < 1) {
		return errors.Errorf("Invalid target acceptance %v", m.TargetAcceptance)
	}
	if err := positiveList("windows", m.Windows, dim); err != nil {
		return err
	}

	if !c.SkipGSS {
		if err := c.GSS.Check(); err != nil {
			return errors.Wrap(err, "Invalid steppingstone settings")
		}
	}

	l := c.LoRaD
	if len(l.Coverages) < 1 {
		return errors.New("At least one LoRaD coverage is required")
	}
	if l.Regression && len(l.Coverages) != 3 {
		return errors.Errorf("Regression LoRaD reports exactly 3 coverages, have %d", len(l.Coverages))
	}
	for _, cov := range l.Coverages {
		if !(cov > 0 && cov <= 1) {
			return errors.Errorf("Invalid LoRaD coverage %v", cov)
		}
	}
	if _, err := lorad.ParseCenter(l.Center); err != nil {
		return err
	}

	return nil
}
