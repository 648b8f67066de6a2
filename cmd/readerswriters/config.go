package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"gitlab.com/slon/readerswriters/simulate"
)

// Config describes one invocation of run. It is read from a YAML file and
// then overridden by flags.
type Config struct {
	Strategies        []string      `yaml:"strategies"`
	Readers           int           `yaml:"readers"`
	Writers           int           `yaml:"writers"`
	Rounds            int           `yaml:"rounds"`
	Work              time.Duration `yaml:"work"`
	RendezvousTimeout time.Duration `yaml:"rendezvous_timeout"`

	LogLevel    string `yaml:"log_level"`
	Console     bool   `yaml:"console"`
	MetricsAddr string `yaml:"metrics_addr"`
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	Report      string `yaml:"report"`
}

func defaultConfig() Config {
	return Config{
		Strategies:        append([]string(nil), simulate.Names...),
		Readers:           10,
		Writers:           1,
		Rounds:            1,
		Work:              10 * time.Millisecond,
		RendezvousTimeout: 5 * time.Second,
		LogLevel:          "info",
		Console:           true,
	}
}

// loadConfig reads path over the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

func bindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringSliceVarP(&cfg.Strategies, "strategy", "s", cfg.Strategies, "strategies to run")
	fs.IntVarP(&cfg.Readers, "readers", "r", cfg.Readers, "reader goroutines per strategy")
	fs.IntVarP(&cfg.Writers, "writers", "w", cfg.Writers, "writer goroutines per strategy")
	fs.IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "calls per goroutine")
	fs.DurationVar(&cfg.Work, "work", cfg.Work, "duration of one critical section")
	fs.DurationVar(&cfg.RendezvousTimeout, "rendezvous-timeout", cfg.RendezvousTimeout, "how long a barrier party waits for the other")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&cfg.Console, "console", cfg.Console, "print events to stdout instead of the log")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve /metrics on this address")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "record run events in this database")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "keep message mailboxes in this redis")
	fs.StringVar(&cfg.Report, "report", cfg.Report, "write an xlsx comparison to this path")
}

// override copies the flags that were set on the command line from flags.
func (c *Config) override(fs *pflag.FlagSet, flags Config) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "strategy":
			c.Strategies = flags.Strategies
		case "readers":
			c.Readers = flags.Readers
		case "writers":
			c.Writers = flags.Writers
		case "rounds":
			c.Rounds = flags.Rounds
		case "work":
			c.Work = flags.Work
		case "rendezvous-timeout":
			c.RendezvousTimeout = flags.RendezvousTimeout
		case "log-level":
			c.LogLevel = flags.LogLevel
		case "console":
			c.Console = flags.Console
		case "metrics-addr":
			c.MetricsAddr = flags.MetricsAddr
		case "postgres-dsn":
			c.PostgresDSN = flags.PostgresDSN
		case "redis-addr":
			c.RedisAddr = flags.RedisAddr
		case "report":
			c.Report = flags.Report
		}
	})
}

func (c *Config) validate() error {
	var errs []error
	if len(c.Strategies) == 0 {
		errs = append(errs, errors.New("no strategies"))
	}
	for _, name := range c.Strategies {
		if !slices.Contains(simulate.Names, name) {
			errs = append(errs, fmt.Errorf("%w %q", simulate.ErrUnknownStrategy, name))
		}
	}
	if c.Readers < 0 || c.Writers < 0 {
		errs = append(errs, errors.New("readers and writers must not be negative"))
	}
	if c.Rounds <= 0 {
		errs = append(errs, errors.New("rounds must be positive"))
	}
	if c.Work < 0 || c.RendezvousTimeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) plan() simulate.Plan {
	return simulate.Plan{Readers: c.Readers, Writers: c.Writers, Rounds: c.Rounds, Work: c.Work}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
