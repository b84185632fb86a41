package bench

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
)

// Scenario names accepted in Config.Scenarios.
const (
	ScenarioSubmission  = "submission"
	ScenarioEndToEnd    = "end-to-end"
	ScenarioCPU         = "cpu"
	ScenarioMixed       = "mixed"
	ScenarioFailures    = "failures"
	ScenarioContention  = "contention"
	ScenarioPriority    = "priority"
	ScenarioScalability = "scalability"
)

// AllScenarios lists every scenario in the order Run executes them.
var AllScenarios = []string{
	ScenarioSubmission,
	ScenarioEndToEnd,
	ScenarioCPU,
	ScenarioMixed,
	ScenarioFailures,
	ScenarioContention,
	ScenarioPriority,
	ScenarioScalability,
}

// Output formats understood by Report.Write.
const (
	OutputText = "text"
	OutputYAML = "yaml"
)

// Config drives a benchmark run. The yaml tags double as the keys used by
// the poolbench flags and config file.
type Config struct {
	Threads    int      `yaml:"threads"`
	Tasks      int      `yaml:"tasks"`
	Iterations int      `yaml:"iterations"`
	Scenarios  []string `yaml:"scenarios"`
	Verbose    bool     `yaml:"verbose"`
	Output     string   `yaml:"output"`

	// CPUFibN is the Fibonacci index computed by each cpu scenario task.
	CPUFibN int `yaml:"cpu-fib-n"`
	// ScaleTasks and ScaleFibN size the scalability sweep.
	ScaleTasks int `yaml:"scale-tasks"`
	ScaleFibN  int `yaml:"scale-fib-n"`
	// FailureTasks is the number of tasks in the failures scenario; every
	// even-indexed one fails.
	FailureTasks int `yaml:"failure-tasks"`
}

// DefaultConfig mirrors the defaults of the poolbench flags.
func DefaultConfig() Config {
	return Config{
		Threads:      runtime.NumCPU(),
		Tasks:        10000,
		Iterations:   5,
		Scenarios:    slices.Clone(AllScenarios),
		Output:       OutputText,
		CPUFibN:      35,
		ScaleTasks:   5000,
		ScaleFibN:    30,
		FailureTasks: 1000,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Threads < 1 {
		errs = append(errs, fmt.Errorf("threads must be at least 1, got %d", c.Threads))
	}
	if c.Tasks < 1 {
		errs = append(errs, fmt.Errorf("tasks must be at least 1, got %d", c.Tasks))
	}
	if c.Iterations < 1 {
		errs = append(errs, fmt.Errorf("iterations must be at least 1, got %d", c.Iterations))
	}
	if c.CPUFibN < 0 || c.ScaleFibN < 0 {
		errs = append(errs, errors.New("fibonacci indexes must not be negative"))
	}
	if c.ScaleTasks < 1 {
		errs = append(errs, fmt.Errorf("scale-tasks must be at least 1, got %d", c.ScaleTasks))
	}
	if c.FailureTasks < 2 || c.FailureTasks%2 != 0 {
		errs = append(errs, fmt.Errorf("failure-tasks must be a positive even number, got %d", c.FailureTasks))
	}
	switch strings.ToLower(c.Output) {
	case OutputText, OutputYAML:
	default:
		errs = append(errs, fmt.Errorf("unsupported output %q", c.Output))
	}
	for _, s := range c.Scenarios {
		if !slices.Contains(AllScenarios, s) {
			errs = append(errs, fmt.Errorf("unknown scenario %q", s))
		}
	}
	return errors.Join(errs...)
}
