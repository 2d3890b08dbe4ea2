package lambert

import (
	"errors"
	"fmt"
	"os"
	"strings"

	kitlog "github.com/go-kit/log"
	"github.com/spf13/viper"

	"github.com/ChristopherRabotin/lambert/rootfind"
)

// ConfigEnv is the environment variable pointing to the directory of conf.toml.
const ConfigEnv = "LAMBERT_CONFIG"

// SolverConfig configures the nonlinear solver and the continuation sweeps.
type SolverConfig struct {
	Method        string // "lm" (Levenberg-Marquardt) or "minimize" (Nelder-Mead)
	Tolerance     float64
	MaxIterations int
	Retries       int
	Perturbation  float64
	Closure       float64
	Concurrent    bool
}

// Config is the general configuration.
type Config struct {
	Solver    SolverConfig
	OutputDir string
	LogLevel  string
}

// DefaultConfig returns the configuration used when no conf.toml is provided.
func DefaultConfig() Config {
	set := rootfind.DefaultSettings()
	return Config{
		Solver: SolverConfig{
			Method:        "lm",
			Tolerance:     set.Tolerance,
			MaxIterations: set.MaxIterations,
			Retries:       DefaultRetries,
			Perturbation:  DefaultPerturbation,
			Closure:       ClosureTolerance,
			Concurrent:    true,
		},
		OutputDir: ".",
		LogLevel:  "info",
	}
}

// SetDefaults sets this configuration as the defaults of v, so that any key
// set in v overrides it.
func (c Config) SetDefaults(v *viper.Viper) {
	v.SetDefault("solver.method", c.Solver.Method)
	v.SetDefault("solver.tolerance", c.Solver.Tolerance)
	v.SetDefault("solver.max_iterations", c.Solver.MaxIterations)
	v.SetDefault("solver.retries", c.Solver.Retries)
	v.SetDefault("solver.perturbation", c.Solver.Perturbation)
	v.SetDefault("solver.closure", c.Solver.Closure)
	v.SetDefault("solver.concurrent", c.Solver.Concurrent)
	v.SetDefault("general.output_path", c.OutputDir)
	v.SetDefault("general.log_level", c.LogLevel)
}

// ConfigFrom reads the configuration from an already loaded viper instance,
// with the DefaultConfig for the missing keys.
func ConfigFrom(v *viper.Viper) (Config, error) {
	return configOver(DefaultConfig(), v)
}

// configOver reads the configuration from v, using base for the missing keys.
func configOver(base Config, v *viper.Viper) (Config, error) {
	base.SetDefaults(v)
	conf := Config{
		Solver: SolverConfig{
			Method:        strings.ToLower(v.GetString("solver.method")),
			Tolerance:     v.GetFloat64("solver.tolerance"),
			MaxIterations: v.GetInt("solver.max_iterations"),
			Retries:       v.GetInt("solver.retries"),
			Perturbation:  v.GetFloat64("solver.perturbation"),
			Closure:       v.GetFloat64("solver.closure"),
			Concurrent:    v.GetBool("solver.concurrent"),
		},
		OutputDir: v.GetString("general.output_path"),
		LogLevel:  v.GetString("general.log_level"),
	}
	return conf, conf.Solver.validate()
}

// LoadConfig loads conf.toml from the directory in LAMBERT_CONFIG. The defaults
// are returned if the variable is unset.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(os.Getenv(ConfigEnv))
}

// LoadConfigFrom loads conf.toml from confPath, or returns the defaults if
// confPath is empty.
func LoadConfigFrom(confPath string) (Config, error) {
	v := viper.New()
	if confPath != "" {
		v.SetConfigName("conf")
		v.AddConfigPath(confPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%s/conf.toml: %w", confPath, err)
		}
	}
	return ConfigFrom(v)
}

func (c SolverConfig) validate() error {
	switch {
	case c.Method != "lm" && c.Method != "minimize":
		return fmt.Errorf("unknown solver method `%s`", c.Method)
	case c.Tolerance <= 0 || c.Closure <= 0:
		return errors.New("solver tolerances must be positive")
	case c.Closure < c.Tolerance:
		return fmt.Errorf("closure tolerance %g is tighter than the solver tolerance %g", c.Closure, c.Tolerance)
	case c.MaxIterations <= 0:
		return errors.New("solver.max_iterations must be positive")
	case c.Retries < 0 || c.Perturbation < 0 || c.Perturbation >= 1:
		return errors.New("solver.retries must be non negative and solver.perturbation in [0, 1)")
	}
	return nil
}

// NewSolver returns the configured root finder.
func (c SolverConfig) NewSolver() rootfind.Solver {
	set := rootfind.Settings{MaxIterations: c.MaxIterations, Tolerance: c.Tolerance}
	if c.Method == "minimize" {
		return rootfind.Minimizer{Settings: set}
	}
	return rootfind.LevenbergMarquardt{Settings: set}
}

// NewSweeper returns a Sweeper with the configured solver and re-seeding policy.
func (c SolverConfig) NewSweeper(logger kitlog.Logger, metrics *Metrics) *Sweeper {
	opts := []Option{WithRetries(c.Retries), WithPerturbation(c.Perturbation),
		WithClosureTolerance(c.Closure), WithConcurrency(c.Concurrent), WithMetrics(metrics)}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return NewSweeper(c.NewSolver(), opts...)
}
