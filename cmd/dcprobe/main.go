package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/cluster"
	"github.com/getpup/dcprobe/cluster/cql"
	"github.com/getpup/dcprobe/cluster/crdb"
	"github.com/getpup/dcprobe/config"
	"github.com/getpup/dcprobe/experiment"
	"github.com/getpup/dcprobe/internal/logging"
	"github.com/getpup/dcprobe/metrics"
	"github.com/getpup/dcprobe/pkg/version"
	"github.com/getpup/dcprobe/progress"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

type options struct {
	configPath string
	envFile    string

	driver   string
	hosts    string
	port     int
	dsn      string
	localDC  string
	username string
	password string

	prefix             string
	expectedDCs        int
	pollInterval       time.Duration
	discoveryTimeout   time.Duration
	convergenceTimeout time.Duration

	logLevel    string
	metricsAddr string
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	started := false
	cmd := newRootCmd(&options{}, stdout, &started)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		if !started {
			return exitUsage
		}
		return exitFailed
	}
	return exitOK
}

func newRootCmd(opts *options, stdout io.Writer, started *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dcprobe [flags] <run-id>",
		Short: "Measure cross-datacenter schema propagation",
		Long: `dcprobe discovers the datacenters of a replicated cluster, creates a
namespace named after the run id replicated once to every datacenter, and
waits until a table created in it is readable in the local datacenter.

Start one dcprobe per datacenter with the same run id.`,
		Version: version.Version,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Arguments are valid from here on; failures are not usage errors.
			*started = true
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, args[0], stdout)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	f.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading DCPROBE_* variables")
	f.StringVar(&opts.driver, "driver", "", "cluster driver: cql or crdb")
	f.StringVar(&opts.hosts, "hosts", "", "comma separated CQL contact points")
	f.IntVar(&opts.port, "port", 0, "CQL native protocol port")
	f.StringVar(&opts.dsn, "dsn", "", "CockroachDB connection string")
	f.StringVar(&opts.localDC, "local-dc", "", "datacenter to route CQL requests to")
	f.StringVar(&opts.username, "username", "", "cluster username")
	f.StringVar(&opts.password, "password", "", "cluster password")
	f.StringVar(&opts.prefix, "prefix", "", "namespace prefix")
	f.IntVar(&opts.expectedDCs, "expected-dcs", 0, "total number of datacenters, local included")
	f.DurationVar(&opts.pollInterval, "poll-interval", 0, "sleep between polls")
	f.DurationVar(&opts.discoveryTimeout, "discovery-timeout", 0, "bound on topology discovery, negative for none")
	f.DurationVar(&opts.convergenceTimeout, "convergence-timeout", 0, "bound on convergence polling, negative for none")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics on this address during the run")

	return cmd
}

// loadConfig layers the config file, the environment and the flags, in that order.
func loadConfig(flags *pflag.FlagSet, opts *options) (*config.Config, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", opts.envFile, err)
		}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("driver", func() { cfg.Cluster.Driver = opts.driver })
	set("hosts", func() { cfg.Cluster.Hosts = config.SplitHosts(opts.hosts) })
	set("port", func() { cfg.Cluster.Port = opts.port })
	set("dsn", func() { cfg.Cluster.DSN = opts.dsn })
	set("local-dc", func() { cfg.Cluster.LocalDC = opts.localDC })
	set("username", func() { cfg.Cluster.Username = opts.username })
	set("password", func() { cfg.Cluster.Password = opts.password })
	set("prefix", func() { cfg.Experiment.NamespacePrefix = opts.prefix })
	set("expected-dcs", func() { cfg.Experiment.ExpectedDCs = opts.expectedDCs })
	set("poll-interval", func() { cfg.Experiment.PollInterval = opts.pollInterval })
	set("discovery-timeout", func() { cfg.Experiment.DiscoveryTimeout = opts.discoveryTimeout })
	set("convergence-timeout", func() { cfg.Experiment.ConvergenceTimeout = opts.convergenceTimeout })
	set("log-level", func() { cfg.Log.Level = opts.logLevel })
	set("metrics-addr", func() { cfg.Metrics.Addr = opts.metricsAddr })

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newDriver(cfg *config.Config) cluster.Driver {
	if cfg.Cluster.Driver == config.DriverCRDB {
		return crdb.New(crdb.Config{
			DSN:            cfg.Cluster.DSN,
			ConnectTimeout: cfg.Cluster.ConnectTimeout,
		})
	}
	return cql.New(cql.Config{
		Hosts:          cfg.Cluster.Hosts,
		Port:           cfg.Cluster.Port,
		LocalDC:        cfg.Cluster.LocalDC,
		Username:       cfg.Cluster.Username,
		Password:       cfg.Cluster.Password,
		ConnectTimeout: cfg.Cluster.ConnectTimeout,
		Timeout:        cfg.Cluster.Timeout,
		ProtoVersion:   cfg.Cluster.ProtoVersion,
	})
}

func run(parent context.Context, cfg *config.Config, runID string, stdout io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}

	identity, err := dcprobe.NewRunIdentity(cfg.Experiment.NamespacePrefix, runID)
	if err != nil {
		return err
	}

	zl := logging.New(logging.Config{
		Env:    cfg.Log.Env,
		Level:  cfg.Log.Level,
		Fields: map[string]string{"run": identity.RunID},
	})
	logger := logging.NewAdapter(zl)
	defer func() { _ = logger.Sync() }()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Info(ctx, "received shutdown signal, stopping probe")
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.Metrics.Addr != "" {
		defer startMetrics(ctx, cfg.Metrics.Addr, logger)()
	}

	logger.Info(ctx, "starting dcprobe", "version", version.Version, "driver", cfg.Cluster.Driver)

	handle, err := cluster.Connect(ctx, newDriver(cfg), logger)
	if err != nil {
		return report(stdout, err)
	}
	defer func() { _ = handle.Close() }()

	runner := experiment.New(experiment.Config{
		Executor:           handle,
		Identity:           identity,
		ExpectedDCs:        cfg.Experiment.ExpectedDCs,
		PollInterval:       cfg.Experiment.PollInterval,
		DiscoveryTimeout:   cfg.Experiment.DiscoveryTimeout,
		ConvergenceTimeout: cfg.Experiment.ConvergenceTimeout,
		Logger:             logger,
		Observer:           progress.NewConsole(stdout),
	})

	res, err := runner.Run(ctx)
	if err != nil {
		return report(stdout, err)
	}

	fmt.Fprintf(stdout, "%s visible in %s after %s\n",
		res.Object.QualifiedName(), res.Topology.LocalDC, res.Elapsed().Round(time.Millisecond))
	return nil
}

// startMetrics serves the default registry on addr and returns the function
// stopping it. A metrics server that cannot bind is logged and the run goes
// on without it.
func startMetrics(ctx context.Context, addr string, logger dcprobe.Logger) func() {
	srv := metrics.NewServer(addr, nil)
	if err := srv.Start(); err != nil {
		logger.Error(ctx, "failed to start metrics server", "addr", addr, "error", err)
		return func() {}
	}
	logger.Info(ctx, "serving metrics", "addr", srv.Addr())

	return func() {
		if err := srv.Err(); err != nil {
			logger.Error(ctx, "metrics server failed", "addr", addr, "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "failed to stop metrics server", "error", err)
		}
	}
}

// report prints the failed phase and kind and returns err for the exit status.
func report(w io.Writer, err error) error {
	phase := dcprobe.PhaseOf(err)
	kind := dcprobe.KindOf(err)
	if phase != "" && kind != nil {
		fmt.Fprintf(w, "%s failed: %v\n", phase, kind)
	}
	return err
}
