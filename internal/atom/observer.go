package atom

import (
	"reflect"
	"slices"
	"weak"

	"github.com/roach88/catom/internal/change"
	"github.com/roach88/catom/internal/ordmap"
)

// Handle is a dynamic observer registration. Two registrations of the same
// Handle on one attribute collapse into one.
//
// Handles made with Func are identified by the *Handle itself. Handles made
// with Bind are identified by their owner and method, so binding the same
// method of the same owner twice yields equal handles.
type Handle struct {
	call  func(rec change.Record) (alive bool, err error)
	live  func() bool
	key   any
	kinds change.Kind
}

// Func wraps fn in a new Handle that receives every kind of change.
func Func(fn func(rec change.Record) error) *Handle {
	return &Handle{
		call:  func(rec change.Record) (bool, error) { return true, fn(rec) },
		kinds: change.All,
	}
}

// Observer wraps an existing change.Observer in a new Handle.
func Observer(obs change.Observer) *Handle {
	return Func(obs.Observe)
}

type bindKey struct {
	owner any // weak.Pointer[T]
	code  uintptr
}

// Bind returns a Handle calling method on owner while owner is alive. The
// Handle holds only a weak reference, so registering it does not keep owner
// reachable. method should be a method expression such as (*View).OnChange;
// a closure capturing owner would keep it alive.
func Bind[T any](owner *T, method func(owner *T, rec change.Record) error) *Handle {
	wp := weak.Make(owner)
	return &Handle{
		call: func(rec change.Record) (bool, error) {
			p := wp.Value()
			if p == nil {
				return false, nil
			}
			return true, method(p, rec)
		},
		live:  func() bool { return wp.Value() != nil },
		key:   bindKey{owner: wp, code: reflect.ValueOf(method).Pointer()},
		kinds: change.All,
	}
}

// Only restricts h to the given change kinds and returns h.
// It must be called before h is registered.
func (h *Handle) Only(kinds change.Kind) *Handle {
	h.kinds = kinds
	return h
}

// Kinds returns the change kinds h receives.
func (h *Handle) Kinds() change.Kind { return h.kinds }

// Alive reports whether the Handle's target still exists.
func (h *Handle) Alive() bool {
	return h.live == nil || h.live()
}

// Same reports whether h and other identify the same registration.
func (h *Handle) Same(other *Handle) bool {
	if h == other {
		return true
	}
	if h == nil || other == nil || h.key == nil || other.key == nil {
		return false
	}
	return h.key == other.key
}

// observerPool holds the dynamic handles of one instance, keyed by
// attribute name. Each handle slice is replaced, never modified in place,
// so a dispatch in progress keeps iterating the slice it started with.
type observerPool struct {
	lists *ordmap.Map[string, []*Handle]
}

func newObserverPool() *observerPool {
	return &observerPool{lists: ordmap.NewOrdered[string, []*Handle]()}
}

func (p *observerPool) add(name string, h *Handle) bool {
	list, _ := p.lists.Find(name)
	if slices.ContainsFunc(list, h.Same) {
		return false
	}
	p.lists.Insert(name, append(slices.Clip(list), h))
	return true
}

func (p *observerPool) remove(name string, h *Handle) bool {
	list, ok := p.lists.Find(name)
	if !ok {
		return false
	}
	i := slices.IndexFunc(list, h.Same)
	if i < 0 {
		return false
	}
	p.store(name, slices.Delete(slices.Clone(list), i, i+1))
	return true
}

func (p *observerPool) removeAll(name string) int {
	list, ok := p.lists.Remove(name)
	if !ok {
		return 0
	}
	return len(list)
}

func (p *observerPool) handles(name string) []*Handle {
	list, _ := p.lists.Find(name)
	return list
}

func (p *observerPool) contains(name string, h *Handle) bool {
	return slices.ContainsFunc(p.handles(name), func(o *Handle) bool {
		return o.Same(h) && o.Alive()
	})
}

func (p *observerPool) live(name string) bool {
	return slices.ContainsFunc(p.handles(name), (*Handle).Alive)
}

// prune drops handles whose target is gone and returns how many it dropped.
func (p *observerPool) prune(name string) int {
	list, ok := p.lists.Find(name)
	if !ok {
		return 0
	}
	kept := slices.DeleteFunc(slices.Clone(list), func(h *Handle) bool { return !h.Alive() })
	p.store(name, kept)
	return len(list) - len(kept)
}

func (p *observerPool) store(name string, list []*Handle) {
	if len(list) == 0 {
		p.lists.Remove(name)
		return
	}
	p.lists.Insert(name, list)
}

func (p *observerPool) names() []string {
	return p.lists.Keys()
}
