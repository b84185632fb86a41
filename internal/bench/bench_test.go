package bench

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/majiddarvishan/threadpool/internal/logger"
	"github.com/majiddarvishan/threadpool/threadpool"
)

func TestMain(m *testing.M) {
	logger.SetLogLevel(logger.LevelError)
	os.Exit(m.Run())
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Threads = 2
	cfg.Tasks = 40
	cfg.Iterations = 1
	cfg.CPUFibN = 10
	cfg.ScaleTasks = 20
	cfg.ScaleFibN = 5
	cfg.FailureTasks = 10
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero threads", func(c *Config) { c.Threads = 0 }, "threads must be at least 1"},
		{"zero tasks", func(c *Config) { c.Tasks = 0 }, "tasks must be at least 1"},
		{"zero iterations", func(c *Config) { c.Iterations = 0 }, "iterations must be at least 1"},
		{"negative fib", func(c *Config) { c.CPUFibN = -1 }, "must not be negative"},
		{"odd failure tasks", func(c *Config) { c.FailureTasks = 7 }, "positive even number"},
		{"bad output", func(c *Config) { c.Output = "xml" }, `unsupported output "xml"`},
		{"unknown scenario", func(c *Config) { c.Scenarios = []string{"cpu", "gpu"} }, `unknown scenario "gpu"`},
		{"uppercase output", func(c *Config) { c.Output = "YAML" }, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()

			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestConfig_ValidateReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threads = 0
	cfg.Tasks = 0

	err := cfg.Validate()

	assert.ErrorContains(t, err, "threads")
	assert.ErrorContains(t, err, "tasks")
}

func TestNewRunner_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Iterations = 0

	r, err := NewRunner(cfg, nil)

	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestRunner_MeasureUsesClock(t *testing.T) {
	var clock timeutil.SimulatedClock
	clock.SetTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r, err := NewRunner(smallConfig(), &clock)
	require.NoError(t, err)

	d, err := r.measure(func() error {
		clock.AdvanceTime(250 * time.Millisecond)
		return errExpected
	})

	assert.Equal(t, 250*time.Millisecond, d)
	assert.ErrorIs(t, err, errExpected)
}

func TestRunner_IterateAverages(t *testing.T) {
	var clock timeutil.SimulatedClock
	r, err := NewRunner(smallConfig(), &clock)
	require.NoError(t, err)

	durations := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	i := 0
	avg, err := r.iterate("test", 3, func() (time.Duration, error) {
		d := durations[i]
		i++
		return d, nil
	})

	require.NoError(t, err)
	assert.InDelta(t, 20.0, avg, 1e-9)
}

func TestRunner_IterateStopsOnError(t *testing.T) {
	r, err := NewRunner(smallConfig(), nil)
	require.NoError(t, err)

	calls := 0
	_, err = r.iterate("test", 5, func() (time.Duration, error) {
		calls++
		return 0, errors.New("broken")
	})

	assert.EqualError(t, err, "broken")
	assert.Equal(t, 1, calls)
}

func TestRunner_RunAllScenarios(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := threadpool.NewMetrics(reg)
	r, err := NewRunner(smallConfig(), nil, threadpool.WithMetrics(metrics))
	require.NoError(t, err)
	r.maxThreads = 2

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	var names []string
	for _, res := range report.Results {
		names = append(names, res.Name)
		assert.GreaterOrEqual(t, res.AvgMillis, 0.0)
	}
	assert.Equal(t, []string{
		ScenarioSubmission,
		ScenarioEndToEnd,
		ScenarioCPU,
		ScenarioMixed,
		ScenarioFailures,
		ScenarioContention,
		ScenarioPriority,
		ScenarioScalability,
		ScenarioScalability,
	}, names)

	last := report.Results[len(report.Results)-1]
	assert.Equal(t, 2, last.Threads)
	assert.Contains(t, last.Extra, "efficiency_pct")

	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.TasksFailed.WithLabelValues("bench-failures")))
	assert.Equal(t, 40.0, testutil.ToFloat64(metrics.TasksSubmitted.WithLabelValues("bench-submission")))
}

func TestRunner_RunSelectedScenarios(t *testing.T) {
	cfg := smallConfig()
	cfg.Scenarios = []string{ScenarioPriority, ScenarioFailures}
	r, err := NewRunner(cfg, nil)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, ScenarioFailures, report.Results[0].Name)
	assert.Equal(t, ScenarioPriority, report.Results[1].Name)
	assert.Equal(t, 0.0, report.Results[1].Extra["inversions"])
}

func TestRunner_RunHonoursCancelledContext(t *testing.T) {
	r, err := NewRunner(smallConfig(), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
}

func TestRunner_ContentionStopsSubmittersOnCancel(t *testing.T) {
	r, err := NewRunner(smallConfig(), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := r.contention(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestReport_Write(t *testing.T) {
	report := &Report{
		HardwareThreads: 8,
		Config:          smallConfig(),
		Results: []Result{
			{Name: ScenarioSubmission, Threads: 2, Tasks: 40, AvgMillis: 1.5, TasksPerSec: 26666, Extra: map[string]float64{"us_per_submission": 37.5}},
			{Name: ScenarioEndToEnd, Threads: 2, Tasks: 40, AvgMillis: 3},
		},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, report.Write(&buf, OutputText))

		out := buf.String()
		assert.Contains(t, out, "Hardware threads: 8")
		assert.Contains(t, out, "us_per_submission=37.50")
		assert.Contains(t, out, "end-to-end")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, report.Write(&buf, OutputYAML))

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, 8, decoded["hardware-threads"])
		results, ok := decoded["results"].([]any)
		require.True(t, ok)
		assert.Len(t, results, 2)
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.Error(t, report.Write(&bytes.Buffer{}, "csv"))
	})
}

func TestWorkloads(t *testing.T) {
	assert.Equal(t, 55, fibonacci(10))
	assert.Equal(t, uint64(4950), memoryWork(100))
}
