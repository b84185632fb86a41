package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/majiddarvishan/threadpool/internal/bench"
	"github.com/majiddarvishan/threadpool/internal/logger"
	"github.com/majiddarvishan/threadpool/threadpool"
)

const (
	flagConfigFile  = "config-file"
	flagLogLevel    = "log-level"
	flagLogFormat   = "log-format"
	flagLogFile     = "log-file"
	flagMetricsAddr = "metrics-addr"
)

// newRootCmd builds the poolbench command. Every bench.Config field has a
// flag named after its yaml key, so a config file and the command line
// share one set of names. Flags given explicitly win over the file.
func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "poolbench",
		Short: "Measure submission overhead and throughput of the thread pool",
		Long: `poolbench runs a set of workloads against the thread pool and reports
average wall-clock time and throughput per scenario: submission overhead,
end-to-end throughput, CPU-bound, mixed, failure handling, concurrent
submitters, priority ordering and a thread-count scalability sweep.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return run(cmd, v, cfg)
		},
	}

	if err := bindFlags(cmd.Flags(), v); err != nil {
		panic(fmt.Sprintf("binding flags: %v", err))
	}
	return cmd
}

func bindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	def := bench.DefaultConfig()

	fs.String(flagConfigFile, "", "YAML config file with the same keys as the flags")
	fs.Int("threads", def.Threads, "Number of worker threads")
	fs.Int("tasks", def.Tasks, "Number of tasks per scenario")
	fs.Int("iterations", def.Iterations, "Number of iterations averaged per scenario")
	fs.StringSlice("scenarios", def.Scenarios, "Scenarios to run")
	fs.BoolP("verbose", "v", def.Verbose, "Log every iteration")
	fs.String("output", def.Output, "Report format: text or yaml")
	fs.Int("cpu-fib-n", def.CPUFibN, "Fibonacci index computed by cpu scenario tasks")
	fs.Int("scale-tasks", def.ScaleTasks, "Tasks per run in the scalability sweep")
	fs.Int("scale-fib-n", def.ScaleFibN, "Fibonacci index computed by scalability tasks")
	fs.Int("failure-tasks", def.FailureTasks, "Tasks in the failures scenario")

	fs.String(flagLogLevel, logger.LevelInfo, "TRACE, DEBUG, INFO, WARNING, ERROR or OFF")
	fs.String(flagLogFormat, "text", "Log format: text or json")
	fs.String(flagLogFile, "", "Write logs to this file instead of stdout")
	fs.String(flagMetricsAddr, "", "Serve Prometheus metrics on this address while running")

	return v.BindPFlags(fs)
}

// loadConfig merges the optional config file with the flags.
func loadConfig(v *viper.Viper) (bench.Config, error) {
	var cfg bench.Config

	if path := v.GetString(flagConfigFile); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("error while reading the config file: %w", err)
		}
	}

	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return cfg, fmt.Errorf("error while unmarshaling the config: %w", err)
	}
	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, v *viper.Viper, cfg bench.Config) error {
	if err := logger.InitLogFile(v.GetString(flagLogFile), v.GetString(flagLogFormat), logger.DefaultRotateConfig()); err != nil {
		return err
	}
	defer logger.Close()
	logger.SetLogLevel(v.GetString(flagLogLevel))

	var opts []threadpool.Option
	if addr := v.GetString(flagMetricsAddr); addr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, threadpool.WithMetrics(threadpool.NewMetrics(reg)))

		stop, err := serveMetrics(addr, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	runner, err := bench.NewRunner(cfg, nil, opts...)
	if err != nil {
		return err
	}

	report, runErr := runner.Run(cmd.Context())
	if err := report.Write(cmd.OutOrStdout(), cfg.Output); err != nil {
		return err
	}
	return runErr
}

// serveMetrics exposes reg on addr until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server: %v", err)
		}
	}()
	logger.Infof("serving metrics on http://%s/metrics", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
