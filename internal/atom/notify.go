package atom

import (
	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/change"
)

// Notify dispatches rec to the observers of rec.Name: static observers
// first, then live dynamic handles whose kind filter matches. Object and
// Type are filled in from the instance. Containers call Notify for their
// mutations; custom handlers may call it to emit records of their own.
//
// The first observer error stops dispatch and is returned unchanged.
func (i *Instance) Notify(rec change.Record) error {
	if i.destroyed || !i.notify {
		return nil
	}
	rec.Object = i
	if rec.Type == "" {
		rec.Type = i.typ.name
	}

	if m, ok := i.typ.byName.Find(rec.Name); ok {
		for _, s := range m.static {
			if err := i.callStatic(m, s, rec); err != nil {
				return err
			}
		}
	}

	if i.pool == nil {
		return nil
	}
	dead := false
	for _, h := range i.pool.handles(rec.Name) {
		if h.kinds&rec.Kind == 0 {
			continue
		}
		alive, err := h.call(rec)
		if !alive {
			dead = true
			continue
		}
		if err != nil {
			if dead {
				i.prune(rec.Name)
			}
			return err
		}
	}
	if dead {
		i.prune(rec.Name)
	}
	return nil
}

func (i *Instance) callStatic(m *Member, s staticObserver, rec change.Record) error {
	if s.method == "" {
		return s.fn.Observe(rec)
	}
	fn, err := method[func(*Instance, change.Record) error](i.typ, m, s.method)
	if err != nil {
		return err
	}
	return fn(i, rec)
}

func (i *Instance) prune(name string) {
	if i.pool == nil {
		return
	}
	if n := i.pool.prune(name); n > 0 {
		i.typ.logger.Debug("pruned dead observers",
			"type", i.typ.name,
			"member", name,
			"pruned", n)
	}
}

// Observe registers h on the member called name. It returns false when an
// identical handle is already registered there.
func (i *Instance) Observe(name string, h *Handle) (bool, error) {
	if _, err := i.lookup(name); err != nil {
		return false, err
	}
	if h == nil {
		return false, atomerr.Validation(i.typ.name, name, "observer handle is nil")
	}
	if i.pool == nil {
		i.pool = newObserverPool()
	}
	return i.pool.add(name, h), nil
}

// Unobserve removes h from the member called name and reports whether it
// was registered.
func (i *Instance) Unobserve(name string, h *Handle) bool {
	if i.pool == nil || h == nil {
		return false
	}
	return i.pool.remove(name, h)
}

// UnobserveAll removes every dynamic handle from the member called name and
// returns how many were removed.
func (i *Instance) UnobserveAll(name string) int {
	if i.pool == nil {
		return 0
	}
	return i.pool.removeAll(name)
}

// HasObservers reports whether any static observer or live dynamic handle
// is attached to the member called name.
func (i *Instance) HasObservers(name string) bool {
	if m, ok := i.typ.byName.Find(name); ok && len(m.static) > 0 {
		return true
	}
	return i.pool != nil && i.pool.live(name)
}

// HasObserver reports whether a live handle identical to h is registered on
// the member called name.
func (i *Instance) HasObserver(name string, h *Handle) bool {
	return i.pool != nil && h != nil && i.pool.contains(name, h)
}

// ObservedNames returns the names with dynamic handles, in ascending order.
func (i *Instance) ObservedNames() []string {
	if i.pool == nil {
		return nil
	}
	return i.pool.names()
}

// SetNotificationsEnabled turns notification on or off and returns the
// previous setting. Writes still happen while notification is off.
func (i *Instance) SetNotificationsEnabled(on bool) bool {
	prev := i.notify
	i.notify = on
	return prev
}

// NotificationsEnabled reports whether changes are dispatched.
func (i *Instance) NotificationsEnabled() bool { return i.notify }

// Suppress runs fn with notification off and restores the previous setting.
func (i *Instance) Suppress(fn func() error) error {
	prev := i.SetNotificationsEnabled(false)
	defer i.SetNotificationsEnabled(prev)
	return fn()
}
