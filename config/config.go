// Package config loads the process configuration of dcprobe from a YAML file
// and DCPROBE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getpup/dcprobe"
	"gopkg.in/yaml.v3"
)

// Supported cluster drivers.
const (
	DriverCQL  = "cql"
	DriverCRDB = "crdb"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DCPROBE_"

// Config is the process configuration. It is built once at startup and
// passed by reference; nothing mutates it afterwards.
type Config struct {
	Cluster struct {
		// Driver is "cql" or "crdb".
		Driver string `yaml:"driver"`

		// Hosts and Port address CQL clusters.
		Hosts []string `yaml:"hosts"`
		Port  int      `yaml:"port"`

		// DSN addresses CockroachDB clusters.
		DSN string `yaml:"dsn"`

		// LocalDC is a load balancing hint for the CQL driver.
		LocalDC string `yaml:"local_dc"`

		Username string `yaml:"username"`
		Password string `yaml:"password"`

		ConnectTimeout time.Duration `yaml:"connect_timeout"`
		Timeout        time.Duration `yaml:"timeout"`
		ProtoVersion   int           `yaml:"proto_version"`
	} `yaml:"cluster"`

	Experiment struct {
		NamespacePrefix string `yaml:"namespace_prefix"`

		// ExpectedDCs is the total datacenter count, local included.
		ExpectedDCs int `yaml:"expected_dcs"`

		PollInterval time.Duration `yaml:"poll_interval"`

		// Negative timeouts disable the bound.
		DiscoveryTimeout   time.Duration `yaml:"discovery_timeout"`
		ConvergenceTimeout time.Duration `yaml:"convergence_timeout"`
	} `yaml:"experiment"`

	Log struct {
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	Metrics struct {
		// Addr enables the /metrics endpoint when set, e.g. ":9090".
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the YAML file at path and applies defaults.
// An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Cluster.Driver == "" {
		c.Cluster.Driver = DriverCQL
	}
	if c.Cluster.Driver == DriverCQL && len(c.Cluster.Hosts) == 0 {
		c.Cluster.Hosts = []string{"127.0.0.1"}
	}
	if c.Cluster.Port == 0 {
		c.Cluster.Port = 9042
	}
	if c.Cluster.ConnectTimeout == 0 {
		c.Cluster.ConnectTimeout = 10 * time.Second
	}
	if c.Cluster.Timeout == 0 {
		c.Cluster.Timeout = 10 * time.Second
	}
	if c.Experiment.NamespacePrefix == "" {
		c.Experiment.NamespacePrefix = dcprobe.DefaultNamespacePrefix
	}
	if c.Experiment.ExpectedDCs == 0 {
		c.Experiment.ExpectedDCs = 2
	}
	if c.Experiment.PollInterval == 0 {
		c.Experiment.PollInterval = 100 * time.Millisecond
	}
	if c.Experiment.DiscoveryTimeout == 0 {
		c.Experiment.DiscoveryTimeout = 5 * time.Minute
	}
	if c.Experiment.ConvergenceTimeout == 0 {
		c.Experiment.ConvergenceTimeout = 5 * time.Minute
	}
	if c.Log.Env == "" {
		c.Log.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ApplyEnv overrides fields from DCPROBE_* variables found by lookup,
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("DRIVER", &c.Cluster.Driver)
	if v, ok := lookup(EnvPrefix + "HOSTS"); ok && v != "" {
		c.Cluster.Hosts = SplitHosts(v)
	}
	str("DSN", &c.Cluster.DSN)
	str("LOCAL_DC", &c.Cluster.LocalDC)
	str("USERNAME", &c.Cluster.Username)
	str("PASSWORD", &c.Cluster.Password)
	str("NAMESPACE_PREFIX", &c.Experiment.NamespacePrefix)
	str("LOG_ENV", &c.Log.Env)
	str("LOG_LEVEL", &c.Log.Level)
	str("METRICS_ADDR", &c.Metrics.Addr)

	return errors.Join(
		num("PORT", &c.Cluster.Port),
		num("EXPECTED_DCS", &c.Experiment.ExpectedDCs),
		dur("POLL_INTERVAL", &c.Experiment.PollInterval),
		dur("DISCOVERY_TIMEOUT", &c.Experiment.DiscoveryTimeout),
		dur("CONVERGENCE_TIMEOUT", &c.Experiment.ConvergenceTimeout),
	)
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	var errs []error

	switch c.Cluster.Driver {
	case DriverCQL:
		if len(c.Cluster.Hosts) == 0 {
			errs = append(errs, errors.New("cluster.hosts is required for the cql driver"))
		}
	case DriverCRDB:
		if c.Cluster.DSN == "" {
			errs = append(errs, errors.New("cluster.dsn is required for the crdb driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cluster.driver %q", c.Cluster.Driver))
	}

	if c.Experiment.ExpectedDCs < 1 {
		errs = append(errs, fmt.Errorf("experiment.expected_dcs must be at least 1, got %d", c.Experiment.ExpectedDCs))
	}
	if c.Experiment.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("experiment.poll_interval must be positive, got %s", c.Experiment.PollInterval))
	}
	if dcprobe.Sanitize(c.Experiment.NamespacePrefix) == "" {
		errs = append(errs, errors.New("experiment.namespace_prefix is empty"))
	}

	return errors.Join(errs...)
}

// SplitHosts splits a comma separated host list, dropping blanks.
func SplitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
