package bench

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Result is one row of a benchmark report.
type Result struct {
	Name        string             `yaml:"name"`
	Threads     int                `yaml:"threads"`
	Tasks       int                `yaml:"tasks"`
	AvgMillis   float64            `yaml:"avg-ms"`
	TasksPerSec float64            `yaml:"tasks-per-sec"`
	Extra       map[string]float64 `yaml:"extra,omitempty"`
}

// Report collects the results of a run together with its configuration.
type Report struct {
	HardwareThreads int      `yaml:"hardware-threads"`
	Config          Config   `yaml:"config"`
	Results         []Result `yaml:"results"`
}

// Write renders the report in the given format (OutputText or OutputYAML).
func (r *Report) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case OutputText, "":
		return r.writeText(w)
	case OutputYAML:
		return r.writeYAML(w)
	}
	return fmt.Errorf("unsupported output %q", format)
}

func (r *Report) writeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}

func (r *Report) writeText(w io.Writer) error {
	fmt.Fprintf(w, "ThreadPool Performance Tests\n")
	fmt.Fprintf(w, "Hardware threads: %d\n", r.HardwareThreads)
	fmt.Fprintf(w, "Threads: %d, Tasks: %d, Iterations: %d\n\n",
		r.Config.Threads, r.Config.Tasks, r.Config.Iterations)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Scenario\tThreads\tTasks\tAvg (ms)\tTasks/sec\tExtra\t")
	for _, res := range r.Results {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.0f\t%s\t\n",
			res.Name, res.Threads, res.Tasks, res.AvgMillis, res.TasksPerSec, formatExtra(res.Extra))
	}
	return tw.Flush()
}

func formatExtra(extra map[string]float64) string {
	if len(extra) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, extra[k]))
	}
	return strings.Join(parts, " ")
}
