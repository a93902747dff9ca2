package cli

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/catom/internal/harness"
	"github.com/roach88/catom/internal/journal"
	"github.com/roach88/catom/internal/metrics"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Metrics bool
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Scenario   string               `json:"scenario"`
	Pass       bool                 `json:"pass"`
	InstanceID string               `json:"instance_id"`
	Trace      []harness.TraceEvent `json:"trace"`
	Errors     []string             `json:"errors,omitempty"`
	Journal    string               `json:"journal,omitempty"`
	Metrics    []MetricSample       `json:"metrics,omitempty"`
}

// MetricSample is one counter series.
type MetricSample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
	Value  float64           `json:"value"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its change trace",
		Long: `Run a scenario file and print every change notification it produced.

With --journal the changes are also written to a SQLite journal (the
journal key in catom.yaml sets a default path). With --metrics the change
counters are printed after the trace.

Exit codes:
  0 - Scenario passed
  1 - A step or assertion failed
  2 - Command error (unreadable scenario, schema error, journal error)

Examples:
  catom run ./scenarios/person.yaml
  catom run ./scenarios/person.yaml --journal ./changes.db --metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record changes in this SQLite journal")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print change counters")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	log := opts.logger()

	s, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(log)}
	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal, journal.WithLogger(log))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithJournal(j))
	}

	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		c, err := metrics.NewCollector(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		runOpts = append(runOpts, harness.WithCollector(c))
	}

	log.Debug("running scenario", "scenario", s.Name, "schema", s.Schema)
	result, err := harness.Run(s, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario setup failed", err)
	}
	log.Info("scenario finished", "scenario", s.Name, "pass", result.Pass, "events", len(result.Trace))

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		payload := RunOutput{
			Scenario:   s.Name,
			Pass:       result.Pass,
			InstanceID: result.InstanceID,
			Trace:      result.Trace,
			Errors:     result.Errors,
			Journal:    opts.Journal,
		}
		if reg != nil {
			if payload.Metrics, err = samples(reg); err != nil {
				return WrapExitError(ExitCommandError, "failed to gather metrics", err)
			}
		}
		if err := writeJSON(out, payload); err != nil {
			return err
		}
	} else {
		if err := printRun(out, s.Name, result); err != nil {
			return err
		}
		if reg != nil {
			if err := printMetrics(out, reg); err != nil {
				return WrapExitError(ExitCommandError, "failed to gather metrics", err)
			}
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", s.Name))
	}
	return nil
}

func printRun(w io.Writer, name string, r *harness.Result) error {
	status := "PASS"
	if !r.Pass {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%s %s (%s, %d events)\n", status, name, r.InstanceID, len(r.Trace))
	for _, e := range r.Trace {
		fmt.Fprintf(w, "  %s\n", e)
	}
	for _, msg := range r.Errors {
		fmt.Fprintf(w, "  error: %s\n", msg)
	}
	return nil
}

func printMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// samples flattens the gathered counters. Gather already orders families
// by name and series by label values.
func samples(reg *prometheus.Registry) ([]MetricSample, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	var out []MetricSample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			out = append(out, MetricSample{
				Name:   mf.GetName(),
				Labels: labels,
				Value:  m.GetCounter().GetValue(),
			})
		}
	}
	return out, nil
}
