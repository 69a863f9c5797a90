package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"impactsim/domain/core"
	"impactsim/internal/errors"

	"gopkg.in/yaml.v3"
)

// Probability policies for generated probabilities that fall outside [0,1]
const (
	PolicyReject = "reject"
	PolicyClamp  = "clamp"
)

// Config represents the complete application configuration
type Config struct {
	Grid      GridConfig   `yaml:"grid"`
	Constants Constants    `yaml:"constants"`
	Run       RunConfig    `yaml:"run"`
	Output    OutputConfig `yaml:"output"`
	LogLevel  string       `yaml:"log_level"`
}

// GridConfig is the (sample size × iteration) grid
type GridConfig struct {
	MinN       int `yaml:"min_n"`
	MaxN       int `yaml:"max_n"`
	Step       int `yaml:"step"`
	Iterations int `yaml:"iterations"`
}

// Constants are the distributional constants of the generative process
type Constants struct {
	RaceRate                     float64 `yaml:"race_rate"`
	IncarcerationBase            float64 `yaml:"incarceration_base"`
	IncarcerationRaceEffect      float64 `yaml:"incarceration_race_effect"`
	IncarcerationNoise           float64 `yaml:"incarceration_noise"`
	GammaShape                   float64 `yaml:"gamma_shape"`
	GammaRate                    float64 `yaml:"gamma_rate"`
	EarningsScale                float64 `yaml:"earnings_scale"`
	EarningsIncarcerationPenalty float64 `yaml:"earnings_incarceration_penalty"`
	EarningsRacePenalty          float64 `yaml:"earnings_race_penalty"`
	JailPenalty                  float64 `yaml:"jail_penalty"`
	ProxyJailPenalty             float64 `yaml:"proxy_jail_penalty"`
	DirectRacePenalty            float64 `yaml:"direct_race_penalty"`
	FlagRate                     float64 `yaml:"flag_rate"`
	FlagPenalty                  float64 `yaml:"flag_penalty"`
}

// RunConfig holds execution settings
type RunConfig struct {
	Seed              int64   `yaml:"seed"`
	Workers           int     `yaml:"workers"`
	ProbabilityPolicy string  `yaml:"probability_policy"`
	FailFast          bool    `yaml:"fail_fast"`
	MaxFitIterations  int     `yaml:"max_fit_iterations"`
	FitTolerance      float64 `yaml:"fit_tolerance"`
	Alpha             float64 `yaml:"alpha"`
}

// OutputConfig holds reporter settings
type OutputConfig struct {
	Dir         string  `yaml:"dir"`
	ChartFormat string  `yaml:"chart_format"`
	TrueRatio   float64 `yaml:"true_ratio"`
	FourFifths  float64 `yaml:"four_fifths"`
	WriteCells  bool    `yaml:"write_cells"`
}

// Default returns the reference grid and constants
func Default() *Config {
	return &Config{
		Grid: GridConfig{
			MinN:       200,
			MaxN:       4000,
			Step:       200,
			Iterations: 100,
		},
		Constants: DefaultConstants(),
		Run: RunConfig{
			Seed:              9487565,
			Workers:           runtime.NumCPU(),
			ProbabilityPolicy: PolicyReject,
			MaxFitIterations:  25,
			FitTolerance:      1e-8,
			Alpha:             0.05,
		},
		Output: OutputConfig{
			Dir:         "out",
			ChartFormat: "png",
			TrueRatio:   0.75,
			FourFifths:  0.8,
			WriteCells:  true,
		},
		LogLevel: "INFO",
	}
}

// DefaultConstants returns the constants of the reference process
func DefaultConstants() Constants {
	return Constants{
		RaceRate:                     0.14,
		IncarcerationBase:            0.04,
		IncarcerationRaceEffect:      0.241,
		IncarcerationNoise:           0.03,
		GammaShape:                   2,
		GammaRate:                    3,
		EarningsScale:                1000,
		EarningsIncarcerationPenalty: 0.2,
		EarningsRacePenalty:          0.35,
		JailPenalty:                  0.5,
		ProxyJailPenalty:             0.99,
		DirectRacePenalty:            0.25,
		FlagRate:                     0.3,
		FlagPenalty:                  0.75,
	}
}

// SampleSizes expands the grid into the ordered list of sample sizes
func (g GridConfig) SampleSizes() []int {
	if g.Step <= 0 || g.MinN <= 0 || g.MaxN < g.MinN {
		return nil
	}
	sizes := make([]int, 0, (g.MaxN-g.MinN)/g.Step+1)
	for n := g.MinN; n <= g.MaxN; n += g.Step {
		sizes = append(sizes, n)
	}
	return sizes
}

// Cells is the number of (sample size, iteration) cells
func (g GridConfig) Cells() int {
	return len(g.SampleSizes()) * g.Iterations
}

// Hash fingerprints the grid
func (g GridConfig) Hash() core.GridHash {
	return core.ComputeGridHash(g.SampleSizes(), g.Iterations)
}

// Params flattens the constants for hashing and reporting
func (c Constants) Params() map[string]float64 {
	return map[string]float64{
		"race_rate":                      c.RaceRate,
		"incarceration_base":             c.IncarcerationBase,
		"incarceration_race_effect":      c.IncarcerationRaceEffect,
		"incarceration_noise":            c.IncarcerationNoise,
		"gamma_shape":                    c.GammaShape,
		"gamma_rate":                     c.GammaRate,
		"earnings_scale":                 c.EarningsScale,
		"earnings_incarceration_penalty": c.EarningsIncarcerationPenalty,
		"earnings_race_penalty":          c.EarningsRacePenalty,
		"jail_penalty":                   c.JailPenalty,
		"proxy_jail_penalty":             c.ProxyJailPenalty,
		"direct_race_penalty":            c.DirectRacePenalty,
		"flag_rate":                      c.FlagRate,
		"flag_penalty":                   c.FlagPenalty,
	}
}

// Hash fingerprints the constants
func (c Constants) Hash() core.ConstantsHash {
	return core.ComputeConstantsHash(c.Params())
}

// Load builds the configuration from defaults, an optional YAML file and
// IMPACTSIM_* environment variables, in that order, then validates it
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("IMPACTSIM_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Grid.MinN = getEnvIntOrDefault("IMPACTSIM_MIN_N", c.Grid.MinN)
	c.Grid.MaxN = getEnvIntOrDefault("IMPACTSIM_MAX_N", c.Grid.MaxN)
	c.Grid.Step = getEnvIntOrDefault("IMPACTSIM_STEP", c.Grid.Step)
	c.Grid.Iterations = getEnvIntOrDefault("IMPACTSIM_ITERATIONS", c.Grid.Iterations)

	c.Run.Seed = getEnvInt64OrDefault("IMPACTSIM_SEED", c.Run.Seed)
	c.Run.Workers = getEnvIntOrDefault("IMPACTSIM_WORKERS", c.Run.Workers)
	c.Run.ProbabilityPolicy = getEnvOrDefault("IMPACTSIM_PROBABILITY_POLICY", c.Run.ProbabilityPolicy)
	c.Run.FailFast = getEnvBoolOrDefault("IMPACTSIM_FAIL_FAST", c.Run.FailFast)
	c.Run.Alpha = getEnvFloatOrDefault("IMPACTSIM_ALPHA", c.Run.Alpha)

	c.Output.Dir = getEnvOrDefault("IMPACTSIM_OUT_DIR", c.Output.Dir)
	c.Output.ChartFormat = getEnvOrDefault("IMPACTSIM_CHART_FORMAT", c.Output.ChartFormat)

	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	g := c.Grid
	if g.MinN <= 0 {
		return errors.ConfigInvalid("grid.min_n must be > 0")
	}
	if g.Step <= 0 {
		return errors.ConfigInvalid("grid.step must be > 0")
	}
	if g.MaxN < g.MinN {
		return errors.ConfigInvalid(fmt.Sprintf("grid.max_n (%d) must be >= grid.min_n (%d)", g.MaxN, g.MinN))
	}
	if g.Iterations <= 0 {
		return errors.ConfigInvalid("grid.iterations must be > 0")
	}

	k := c.Constants
	for name, p := range map[string]float64{
		"race_rate":                 k.RaceRate,
		"flag_rate":                 k.FlagRate,
		"incarceration_base":        k.IncarcerationBase,
		"incarceration_race_effect": k.IncarcerationRaceEffect,
	} {
		if p < 0 || p > 1 {
			return errors.ConfigInvalid(fmt.Sprintf("constants.%s must be in [0,1], got %g", name, p))
		}
	}
	if k.IncarcerationNoise < 0 {
		return errors.ConfigInvalid("constants.incarceration_noise must be >= 0")
	}
	if k.GammaShape <= 0 || k.GammaRate <= 0 || k.EarningsScale <= 0 {
		return errors.ConfigInvalid("gamma shape, gamma rate and earnings scale must be > 0")
	}

	r := c.Run
	switch r.ProbabilityPolicy {
	case PolicyReject, PolicyClamp:
	default:
		return errors.ConfigInvalid(fmt.Sprintf("run.probability_policy must be %q or %q, got %q", PolicyReject, PolicyClamp, r.ProbabilityPolicy))
	}
	if r.Workers <= 0 {
		return errors.ConfigInvalid("run.workers must be > 0")
	}
	if r.MaxFitIterations <= 0 || r.FitTolerance <= 0 {
		return errors.ConfigInvalid("run.max_fit_iterations and run.fit_tolerance must be > 0")
	}
	if r.Alpha <= 0 || r.Alpha >= 1 {
		return errors.ConfigInvalid("run.alpha must be in (0,1)")
	}

	switch strings.ToLower(c.Output.ChartFormat) {
	case "png", "svg", "pdf":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("output.chart_format %q is not one of png, svg, pdf", c.Output.ChartFormat))
	}
	if c.Output.Dir == "" {
		return errors.ConfigInvalid("output.dir is required")
	}
	return nil
}

// YAML renders the effective configuration
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
