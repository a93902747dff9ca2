package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/catom/internal/atom"
	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/change"
	"github.com/roach88/catom/internal/compiler"
	"github.com/roach88/catom/internal/journal"
	"github.com/roach88/catom/internal/metrics"
	"github.com/roach88/catom/internal/testutil"
)

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger used for step failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithJournal records every change of the scenario instance in j as well.
func WithJournal(j *journal.Journal) Option {
	return func(h *Harness) { h.journal = j }
}

// WithCollector counts every change of the scenario instance in c as well.
func WithCollector(c *metrics.Collector) Option {
	return func(h *Harness) { h.collector = c }
}

// Harness executes one scenario with a deterministic clock and
// deterministic instance identities.
type Harness struct {
	scenario  *Scenario
	clock     *testutil.DeterministicClock
	logger    *slog.Logger
	journal   *journal.Journal
	collector *metrics.Collector

	inst     *atom.Instance
	result   *Result
	watchers map[string]watcher
}

type watcher struct {
	member string
	handle *atom.Handle
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile the schema and resolve the scenario type
//  2. Construct the instance from Init
//  3. Register the trace recorder on every member
//  4. Execute the steps
//  5. Read the final values and evaluate the assertions
//
// A returned error means the scenario could not be set up. Step and
// assertion failures are reported in the Result.
func Run(s *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		scenario: s,
		clock:    testutil.NewDeterministicClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		result:   NewResult(),
		watchers: map[string]watcher{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h.run(context.Background())
}

func (h *Harness) run(ctx context.Context) (*Result, error) {
	s := h.scenario
	ids := testutil.NewSequentialIDs(strings.ToLower(s.Type))
	reg, err := compiler.CompileFile(s.Schema, compiler.WithTypeOptions(
		atom.WithIDGenerator(ids),
		atom.WithLogger(h.logger),
	))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	typ, err := reg.Resolve(s.Type)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(s.Init))
	for k := range s.Init {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	assign := make([]atom.Assignment, len(keys))
	for i, k := range keys {
		assign[i] = atom.Assign(k, s.Init[k])
	}
	inst, err := typ.New(assign...)
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", s.Type, err)
	}
	h.inst = inst
	h.result.InstanceID = inst.ID()

	names := typ.MemberNames()
	trace := atom.Func(func(rec change.Record) error {
		h.emit(TraceObserver, rec)
		return nil
	})
	for _, name := range names {
		if _, err := inst.Observe(name, trace); err != nil {
			return nil, err
		}
	}
	if h.journal != nil {
		if _, err := h.journal.Attach(ctx, inst); err != nil {
			return nil, fmt.Errorf("attach journal: %w", err)
		}
	}
	if h.collector != nil {
		if _, err := h.collector.Watch(inst); err != nil {
			return nil, fmt.Errorf("attach metrics: %w", err)
		}
	}

	for i := range s.Steps {
		if err := h.step(&s.Steps[i]); err != nil {
			h.result.AddError("step %d (%s): %v", i, s.Steps[i].Action(), err)
			h.logger.Warn("scenario step failed",
				"scenario", s.Name,
				"step", i,
				"error", err)
		}
	}

	for _, name := range names {
		v, err := inst.Get(name)
		if err != nil {
			continue
		}
		h.result.Final[name] = snapshot(v)
	}

	for i := range s.Assertions {
		if err := evaluateAssertion(h.result, &s.Assertions[i]); err != nil {
			h.result.AddError("assertion %d (%s): %v", i, s.Assertions[i].Type, err)
		}
	}
	return h.result, nil
}

func (h *Harness) emit(observer string, rec change.Record) {
	h.result.Trace = append(h.result.Trace, newTraceEvent(h.clock.Next(), observer, rec))
}

// step runs one step and checks its error expectation.
func (h *Harness) step(step *Step) error {
	got, err := h.perform(step)
	if step.Error != "" {
		if err == nil {
			return fmt.Errorf("expected %s error, got none", step.Error)
		}
		code, _ := atomerr.CodeOf(err)
		if string(code) != step.Error {
			return fmt.Errorf("expected %s error, got %v", step.Error, err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	want, ok, err := decodeNode(&step.Expect)
	if err != nil {
		return fmt.Errorf("decode expect: %w", err)
	}
	if ok && !valuesMatch(want, got) {
		return fmt.Errorf("expected %s, got %s", render(want), render(got))
	}
	return nil
}

// perform executes the action and returns the value it produced, if any.
func (h *Harness) perform(step *Step) (any, error) {
	switch step.Action() {
	case ActionSet:
		return nil, h.inst.Set(step.Set, step.Value)
	case ActionGet:
		return h.inst.Get(step.Get)
	case ActionDelete:
		return nil, h.inst.Delete(step.Delete)
	case ActionObserve:
		return nil, h.observe(step.Observe)
	case ActionUnobserve:
		w, ok := h.watchers[step.Unobserve]
		if !ok || !h.inst.Unobserve(w.member, w.handle) {
			return nil, fmt.Errorf("watcher %q is not registered", step.Unobserve)
		}
		delete(h.watchers, step.Unobserve)
		return nil, nil
	case ActionContainer:
		return h.container(step.Container)
	}
	return nil, fmt.Errorf("step has no action")
}

func (h *Harness) observe(o *ObserveStep) error {
	kinds := change.All
	if len(o.Kinds) > 0 {
		kinds = 0
		for _, name := range o.Kinds {
			k, err := change.ParseKind(name)
			if err != nil {
				return err
			}
			kinds |= k
		}
	}
	handle := atom.Func(func(rec change.Record) error {
		h.emit(o.Name, rec)
		if o.Then == nil {
			return nil
		}
		return h.step(o.Then)
	}).Only(kinds)
	if _, err := h.inst.Observe(o.Member, handle); err != nil {
		return err
	}
	h.watchers[o.Name] = watcher{member: o.Member, handle: handle}
	return nil
}
