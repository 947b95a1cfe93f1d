package eigenmodel

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages model and sampler configuration using Viper.
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults.
func NewConfig() *Config {
	v := viper.New()

	// Model hyperparameters
	v.SetDefault("model.dimensions", 3)
	v.SetDefault("model.shrinkage_a1", 2.0)
	v.SetDefault("model.shrinkage_a2", 3.0)
	v.SetDefault("model.intercept_mean", 0.0)
	v.SetDefault("model.intercept_sd", 10.0)

	// Sampler parameters
	v.SetDefault("sampler.kind", "hmc")
	v.SetDefault("sampler.chains", 4)
	v.SetDefault("sampler.iterations", 2000)
	v.SetDefault("sampler.burnin", 1000)
	v.SetDefault("sampler.thin", 1)
	v.SetDefault("algorithm.random_seed", time.Now().UnixNano())

	// HMC parameters
	v.SetDefault("hmc.step_size", 0.02)
	v.SetDefault("hmc.leapfrog_steps", 20)
	v.SetDefault("hmc.max_energy_error", 1000.0)

	// Slice sampler parameters
	v.SetDefault("slice.width", 1.0)
	v.SetDefault("slice.max_steps", 50)

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", true)
	v.SetDefault("logging.progress_interval", 500)

	return &Config{v: v}
}

// LoadFromFile loads configuration from file.
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Getters for model hyperparameters
func (c *Config) Dimensions() int { return c.v.GetInt("model.dimensions") }
func (c *Config) ShrinkageA1() float64 { return c.v.GetFloat64("model.shrinkage_a1") }
func (c *Config) ShrinkageA2() float64 { return c.v.GetFloat64("model.shrinkage_a2") }
func (c *Config) InterceptMean() float64 { return c.v.GetFloat64("model.intercept_mean") }
func (c *Config) InterceptSD() float64 { return c.v.GetFloat64("model.intercept_sd") }

// Getters for sampler parameters
func (c *Config) SamplerKind() string { return c.v.GetString("sampler.kind") }
func (c *Config) Chains() int { return c.v.GetInt("sampler.chains") }
func (c *Config) Iterations() int { return c.v.GetInt("sampler.iterations") }
func (c *Config) Burnin() int { return c.v.GetInt("sampler.burnin") }
func (c *Config) Thin() int { return c.v.GetInt("sampler.thin") }
func (c *Config) RandomSeed() int64 { return c.v.GetInt64("algorithm.random_seed") }

func (c *Config) StepSize() float64 { return c.v.GetFloat64("hmc.step_size") }
func (c *Config) LeapfrogSteps() int { return c.v.GetInt("hmc.leapfrog_steps") }
func (c *Config) MaxEnergyError() float64 { return c.v.GetFloat64("hmc.max_energy_error") }

func (c *Config) SliceWidth() float64 { return c.v.GetFloat64("slice.width") }
func (c *Config) SliceMaxSteps() int { return c.v.GetInt("slice.max_steps") }

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }
func (c *Config) ProgressInterval() int { return c.v.GetInt("logging.progress_interval") }

// Set allows dynamic configuration changes.
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// CreateLogger creates a zerolog logger based on config.
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "eigenmodel").Logger()
}
