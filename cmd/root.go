package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/CraigKelly/marglike/pipeline"
)

var (
	cfgFile     string    // YAML run configuration
	logLevel    string    // logrus level name
	monitorAddr string    // expvar HTTP address (empty for none)
	randomSeed  int64     // PRNG seed
	modelName   string    // jc69 or k80
	dataFile    string    // Read sufficient statistics instead of simulating
	samplesFile string    // Raw posterior sample dump
	noGSS       bool      // Skip the steppingstone estimate
	burnIn      int       // MCMC burn in
	iterations  int       // MCMC iterations
	thinBy      int       // MCMC thinning
	stones      int       // Steppingstone stone count
	coverages   []float64 // LoRaD coverages
	center      string    // LoRaD center
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "marglike",
	Short: "Marginal likelihood estimation by steppingstone and LoRaD",
	Long: `marglike estimates the marginal likelihood of a substitution model
for a pair of aligned sequences. Among other features:

  - Simulated data or sufficient statistics read from a file
  - An adaptive sliding-window Metropolis sampler
  - Generalized steppingstone sampling with fitted reference distributions
  - LoRaD (standard and polynomial regression) at several coverages
`,
}

// runCmd performs one complete experiment and writes the report to stdout
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sample the posterior and estimate the marginal likelihood",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return errors.Errorf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}

		var obs pipeline.Observer
		if monitorAddr != "" {
			mon := newMonitor()
			if err := mon.Start(monitorAddr); err != nil {
				return err
			}
			defer mon.Stop()
			obs = mon
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		logrus.Infof("Starting %s run with seed %d", cfg.Model, cfg.Seed)
		res, err := pipeline.Run(ctx, cfg, obs)
		if err != nil {
			return err
		}
		return pipeline.WriteReport(cmd.OutOrStdout(), cfg, res)
	},
}

// buildConfig loads the config file (or defaults) and applies any flags the
// user actually set.
func buildConfig(cmd *cobra.Command) (*pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if cfgFile != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(cfgFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = randomSeed
	}
	if flags.Changed("model") {
		cfg.Model = modelName
	}
	if flags.Changed("data") {
		cfg.DataFile = dataFile
	}
	if flags.Changed("samples") {
		cfg.SamplesFile = samplesFile
	}
	if flags.Changed("no-gss") {
		cfg.SkipGSS = noGSS
	}
	if flags.Changed("burnin") {
		cfg.MCMC.BurnIn = burnIn
	}
	if flags.Changed("iterations") {
		cfg.MCMC.Iterations = iterations
	}
	if flags.Changed("thin") {
		cfg.MCMC.ThinBy = thinBy
	}
	if flags.Changed("stones") {
		cfg.GSS.Stones = stones
	}
	if flags.Changed("coverage") {
		cfg.LoRaD.Coverages = append([]float64(nil), coverages...)
	}
	if flags.Changed("center") {
		cfg.LoRaD.Center = center
	}

	if err := cfg.Check(); err != nil {
		return nil, errors.Wrap(err, "Invalid configuration")
	}
	return cfg, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (default is the built-in K80 experiment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&monitorAddr, "monitor", "", "Serve progress at ADDR/debug/vars (e.g. :8000)")

	runCmd.Flags().Int64VarP(&randomSeed, "seed", "r", 13579, "Random seed to use")
	runCmd.Flags().StringVarP(&modelName, "model", "m", "k80", "Substitution model (jc69 or k80)")
	runCmd.Flags().StringVar(&dataFile, "data", "", "Read 'nsame ntrs ntrv' from this file instead of simulating")
	runCmd.Flags().StringVar(&samplesFile, "samples", "", "Write the posterior sample to this file")
	runCmd.Flags().BoolVar(&noGSS, "no-gss", false, "Skip the steppingstone estimate")
	runCmd.Flags().IntVar(&burnIn, "burnin", 1000, "MCMC burn-in iterations")
	runCmd.Flags().IntVar(&iterations, "iterations", 1000000, "MCMC sampling iterations")
	runCmd.Flags().IntVar(&thinBy, "thin", 100, "Keep every thin-th MCMC iteration")
	runCmd.Flags().IntVar(&stones, "stones", 5, "Steppingstone stone count")
	runCmd.Flags().Float64SliceVar(&coverages, "coverage", []float64{0.5, 0.7, 0.9}, "Comma-separated LoRaD coverages")
	runCmd.Flags().StringVar(&center, "center", "mean", "LoRaD center (mean or mode)")

	rootCmd.AddCommand(runCmd)
}
