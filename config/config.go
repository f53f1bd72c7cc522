package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"termprobe/batch"
	"termprobe/browser"
	"termprobe/search"
	"termprobe/site"
)

type Config struct {
	Site      string `yaml:"site"`
	TermsPath string `yaml:"terms"`
	TermsDB   string `yaml:"terms_db"`
	SitesPath string `yaml:"sites"`

	ProxyURL    string        `yaml:"proxy_url"`
	ChromePath  string        `yaml:"chrome_path"`
	Headless    bool          `yaml:"headless"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
	UserAgent   string        `yaml:"user_agent"`

	// CheckEgress logs the public IP seen through ProxyURL before the run.
	CheckEgress bool `yaml:"check_egress"`

	MaxAttempts int           `yaml:"max_attempts"`
	HumanDelay  time.Duration `yaml:"human_delay"`

	// MinDelay and MaxDelay override the site's pacing when non-zero.
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`

	DebugAddr string `yaml:"debug_addr"`
	LogLevel  string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		Site:        "wikipedia",
		Headless:    true,
		CheckEgress: true,
		WaitTimeout: browser.DefaultTimeout,
		UserAgent:   search.DefaultUserAgent,
		MaxAttempts: batch.DefaultMaxAttempts,
		HumanDelay:  search.DefaultHumanDelay,
		LogLevel:    "info",
	}
}

// Load builds the config from defaults, then the YAML file named by
// TERMPROBE_CONFIG (if set), then individual environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("TERMPROBE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"TERMPROBE_SITE":       &c.Site,
		"TERMPROBE_TERMS":      &c.TermsPath,
		"TERMPROBE_TERMS_DB":   &c.TermsDB,
		"TERMPROBE_SITES":      &c.SitesPath,
		"PROXY_URL":            &c.ProxyURL,
		"CHROME_PATH":          &c.ChromePath,
		"TERMPROBE_USER_AGENT": &c.UserAgent,
		"TERMPROBE_DEBUG_ADDR": &c.DebugAddr,
		"LOG_LEVEL":            &c.LogLevel,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"TERMPROBE_WAIT_TIMEOUT": &c.WaitTimeout,
		"TERMPROBE_HUMAN_DELAY":  &c.HumanDelay,
		"TERMPROBE_MIN_DELAY":    &c.MinDelay,
		"TERMPROBE_MAX_DELAY":    &c.MaxDelay,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	if v := os.Getenv("TERMPROBE_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TERMPROBE_MAX_ATTEMPTS: %w", err)
		}
		c.MaxAttempts = n
	}
	bools := map[string]*bool{
		"TERMPROBE_HEADLESS":     &c.Headless,
		"TERMPROBE_CHECK_EGRESS": &c.CheckEgress,
	}
	for key, dst := range bools {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Site == "" {
		errs = append(errs, errors.New("site is required"))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.HumanDelay < 0 {
		errs = append(errs, fmt.Errorf("human_delay must not be negative, got %s", c.HumanDelay))
	}
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		errs = append(errs, errors.New("pacing delays must not be negative"))
	}
	if c.MinDelay > 0 && c.MaxDelay > 0 && c.MinDelay > c.MaxDelay {
		errs = append(errs, fmt.Errorf("min_delay %s exceeds max_delay %s", c.MinDelay, c.MaxDelay))
	}
	return errors.Join(errs...)
}

// Pacing applies the configured overrides on top of the site's own pacing.
func (c *Config) Pacing(def site.Pacing) site.Pacing {
	p := def
	if c.MinDelay > 0 {
		p.Min = c.MinDelay
	}
	if c.MaxDelay > 0 {
		p.Max = c.MaxDelay
	}
	if p.Max < p.Min {
		p.Max = p.Min
	}
	return p
}

func (c *Config) BrowserOptions() browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = c.Headless
	opts.ProxyURL = c.ProxyURL
	opts.ExecPath = c.ChromePath
	if c.WaitTimeout > 0 {
		opts.Timeout = c.WaitTimeout
	}
	return opts
}
