// Package config holds the configuration for the racedetective harness.
//
// Values are resolved in this order, highest first: command line flags, environment
// variables prefixed with RACEDETECTIVE_ (dashes become underscores), a config file
// (any format viper reads, such as yaml, json or toml) and the defaults below.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gostdlib/racefree"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that set configuration keys.
const EnvPrefix = "RACEDETECTIVE"

// Keys used in flags, environment variables and config files.
const (
	KeyWorkers       = "workers"
	KeyIterations    = "iterations"
	KeyPool          = "pool"
	KeyFlushInterval = "flush-interval"
	KeyFormat        = "format"
	KeyVerbose       = "verbose"
)

// Pool types.
const (
	PoolPooled  = "pooled"
	PoolLimited = "limited"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Config is the harness configuration.
type Config struct {
	// Workers is the number of concurrent goroutines each scenario uses.
	Workers int
	// Iterations is the number of operations each worker performs.
	Iterations int
	// Pool is the goroutine pool type the workers run on, PoolPooled or PoolLimited.
	Pool string
	// FlushInterval is the auto flush interval of the logsink scenario.
	FlushInterval time.Duration
	// Format is the report format, FormatText, FormatJSON or FormatCSV.
	Format string
	// Verbose turns on debug logging.
	Verbose bool
}

// Default returns the default Config.
func Default() Config {
	return Config{
		Workers:       10,
		Iterations:    10000,
		Pool:          PoolPooled,
		FlushInterval: 10 * time.Millisecond,
		Format:        FormatText,
	}
}

// SetDefaults registers the Default() values with v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyWorkers, d.Workers)
	v.SetDefault(KeyIterations, d.Iterations)
	v.SetDefault(KeyPool, d.Pool)
	v.SetDefault(KeyFlushInterval, d.FlushInterval)
	v.SetDefault(KeyFormat, d.Format)
	v.SetDefault(KeyVerbose, d.Verbose)
}

// Load reads the Config from v. Flags must already be bound to v. If file is not empty it
// is read as a config file. The result is validated.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file(%s): %w", file, err)
		}
	}

	c := Config{
		Workers:       v.GetInt(KeyWorkers),
		Iterations:    v.GetInt(KeyIterations),
		Pool:          strings.ToLower(v.GetString(KeyPool)),
		FlushInterval: v.GetDuration(KeyFlushInterval),
		Format:        strings.ToLower(v.GetString(KeyFormat)),
		Verbose:       v.GetBool(KeyVerbose),
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate returns an InvalidArgument error listing every invalid field.
func (c Config) Validate() error {
	var errs *multierror.Error

	if c.Workers < 1 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be >= 1, got %d", KeyWorkers, c.Workers))
	}
	if c.Iterations < 1 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be >= 1, got %d", KeyIterations, c.Iterations))
	}
	switch c.Pool {
	case PoolPooled, PoolLimited:
	default:
		errs = multierror.Append(errs, fmt.Errorf("%s must be %q or %q, got %q", KeyPool, PoolPooled, PoolLimited, c.Pool))
	}
	if c.FlushInterval <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be > 0, got %v", KeyFlushInterval, c.FlushInterval))
	}
	switch c.Format {
	case FormatText, FormatJSON, FormatCSV:
	default:
		errs = multierror.Append(errs, fmt.Errorf("%s must be one of text, json or csv, got %q", KeyFormat, c.Format))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return racefree.InvalidArgument("invalid config: %s", err)
	}
	return nil
}
