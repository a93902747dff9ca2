package harness

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/catom/internal/canon"
	"github.com/roach88/catom/internal/change"
)

// evaluateAssertion dispatches to the checker for a.Type.
func evaluateAssertion(r *Result, a *Assertion) error {
	switch a.Type {
	case AssertTraceCount:
		return assertTraceCount(r.Trace, a)
	case AssertTraceContains:
		return assertTraceContains(r.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(r.Trace, a.Members)
	case AssertFinalValue:
		return assertFinalValue(r.Final, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// matches applies the member, kind, op and observer filters of a.
// Events from watchers only match when Observer names them.
func matches(e TraceEvent, a *Assertion) bool {
	observer := a.Observer
	if observer == "" {
		observer = TraceObserver
	}
	if e.Observer != observer {
		return false
	}
	if a.Member != "" && e.Member != a.Member {
		return false
	}
	if a.Kind != "" {
		k, err := change.ParseKind(a.Kind)
		if err != nil || e.Kind != k.String() {
			return false
		}
	}
	if a.Op != "" && e.Op != a.Op {
		return false
	}
	return true
}

func assertTraceCount(trace []TraceEvent, a *Assertion) error {
	n := 0
	for _, e := range trace {
		if matches(e, a) {
			n++
		}
	}
	if n != a.Count {
		return fmt.Errorf("expected %d matching events, found %d", a.Count, n)
	}
	return nil
}

func assertTraceContains(trace []TraceEvent, a *Assertion) error {
	oldWant, checkOld, err := decodeNode(&a.Old)
	if err != nil {
		return fmt.Errorf("decode old: %w", err)
	}
	newWant, checkNew, err := decodeNode(&a.New)
	if err != nil {
		return fmt.Errorf("decode new: %w", err)
	}
	for _, e := range trace {
		if !matches(e, a) {
			continue
		}
		if checkOld && !valuesMatch(oldWant, e.Old) {
			continue
		}
		if checkNew && !valuesMatch(newWant, e.New) {
			continue
		}
		return nil
	}
	return fmt.Errorf("no event matches %s", describe(a, &a.Old, &a.New))
}

// assertTraceOrder checks that the first event of each member (as seen by
// the trace recorder) appears in the given relative order.
func assertTraceOrder(trace []TraceEvent, members []string) error {
	first := map[string]int64{}
	for _, e := range trace {
		if e.Observer != TraceObserver {
			continue
		}
		if _, ok := first[e.Member]; !ok {
			first[e.Member] = e.Seq
		}
	}
	var prev int64
	for i, m := range members {
		seq, ok := first[m]
		if !ok {
			return fmt.Errorf("member %q never changed", m)
		}
		if i > 0 && seq <= prev {
			return fmt.Errorf("member %q (seq %d) changed before %q (seq %d)", m, seq, members[i-1], prev)
		}
		prev = seq
	}
	return nil
}

func assertFinalValue(final map[string]any, a *Assertion) error {
	want, _, err := decodeNode(&a.Expect)
	if err != nil {
		return fmt.Errorf("decode expect: %w", err)
	}
	got, ok := final[a.Member]
	if !ok {
		return fmt.Errorf("member %q has no readable value", a.Member)
	}
	if !valuesMatch(want, got) {
		return fmt.Errorf("%s: expected %s, got %s", a.Member, render(want), render(got))
	}
	return nil
}

// valuesMatch compares an expected YAML value with an actual value by their
// canonical JSON form. Integers and integral floats compare equal, and a
// container compares as its snapshot.
func valuesMatch(want, got any) bool {
	return render(want) == render(got)
}

func render(v any) string {
	return canon.String(snapshot(v))
}

func describe(a *Assertion, oldNode, newNode *yaml.Node) string {
	parts := []string{"member=" + a.Member}
	if a.Kind != "" {
		parts = append(parts, "kind="+a.Kind)
	}
	if a.Op != "" {
		parts = append(parts, "op="+a.Op)
	}
	if a.Observer != "" {
		parts = append(parts, "observer="+a.Observer)
	}
	if v, ok, _ := decodeNode(oldNode); ok {
		parts = append(parts, "old="+render(v))
	}
	if v, ok, _ := decodeNode(newNode); ok {
		parts = append(parts, "new="+render(v))
	}
	return strings.Join(parts, " ")
}
