package ordmap

import (
	"cmp"
	"errors"
	"iter"
)

// ErrMutationDuringIteration is the panic value raised when a Map is
// modified while an iterator over it is active.
var ErrMutationDuringIteration = errors.New("ordmap: map mutated during iteration")

// Entry is a key/value pair returned by Snapshot.
type Entry[K, V any] struct {
	Key   K
	Value V
}

type node[K, V any] struct {
	key    K
	value  V
	left   *node[K, V]
	right  *node[K, V]
	height int8
}

// Map is an AVL-balanced ordered map.
// The zero value is not usable; construct with New or NewOrdered.
type Map[K, V any] struct {
	root      *node[K, V]
	cmp       func(a, b K) int
	size      int
	iterating int
}

// New creates an empty Map ordered by the given three-way comparator.
// compare must return a negative number when a < b, zero when a == b and a
// positive number when a > b, and must define a total order.
func New[K, V any](compare func(a, b K) int) *Map[K, V] {
	if compare == nil {
		panic("ordmap: nil comparator")
	}
	return &Map[K, V]{cmp: compare}
}

// NewOrdered creates an empty Map for a naturally ordered key type.
func NewOrdered[K cmp.Ordered, V any]() *Map[K, V] {
	return New[K, V](cmp.Compare[K])
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return m.size
}

// Insert stores value under key. If key was already present its previous
// value is returned with replaced=true and the entry is overwritten in place.
func (m *Map[K, V]) Insert(key K, value V) (old V, replaced bool) {
	m.guard()
	m.root, old, replaced = m.insert(m.root, key, value)
	return old, replaced
}

// Find returns the value stored under key.
func (m *Map[K, V]) Find(key K) (V, bool) {
	n := m.root
	for n != nil {
		c := m.cmp(key, n.key)
		switch {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.value, true
		}
	}
	var zero V
	return zero, false
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.Find(key)
	return ok
}

// Remove deletes key and returns the value it held.
func (m *Map[K, V]) Remove(key K) (V, bool) {
	m.guard()
	var (
		value V
		ok    bool
	)
	m.root, value, ok = m.remove(m.root, key)
	return value, ok
}

// Clear removes every entry.
func (m *Map[K, V]) Clear() {
	m.guard()
	m.root = nil
	m.size = 0
}

// Min returns the smallest key and its value.
func (m *Map[K, V]) Min() (K, V, bool) {
	if m.root == nil {
		var (
			k K
			v V
		)
		return k, v, false
	}
	n := m.root
	for n.left != nil {
		n = n.left
	}
	return n.key, n.value, true
}

// Max returns the largest key and its value.
func (m *Map[K, V]) Max() (K, V, bool) {
	if m.root == nil {
		var (
			k K
			v V
		)
		return k, v, false
	}
	n := m.root
	for n.right != nil {
		n = n.right
	}
	return n.key, n.value, true
}

// Ceiling returns the smallest entry whose key is >= key.
func (m *Map[K, V]) Ceiling(key K) (K, V, bool) {
	var best *node[K, V]
	for n := m.root; n != nil; {
		if m.cmp(n.key, key) >= 0 {
			best = n
			n = n.left
		} else {
			n = n.right
		}
	}
	if best == nil {
		var (
			k K
			v V
		)
		return k, v, false
	}
	return best.key, best.value, true
}

// Floor returns the largest entry whose key is <= key.
func (m *Map[K, V]) Floor(key K) (K, V, bool) {
	var best *node[K, V]
	for n := m.root; n != nil; {
		if m.cmp(n.key, key) <= 0 {
			best = n
			n = n.right
		} else {
			n = n.left
		}
	}
	if best == nil {
		var (
			k K
			v V
		)
		return k, v, false
	}
	return best.key, best.value, true
}

// All iterates every entry in ascending key order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.iterating++
		defer func() { m.iterating-- }()

		var stack []*node[K, V]
		for n := m.root; n != nil; n = n.left {
			stack = append(stack, n)
		}
		m.walk(stack, nil, yield)
	}
}

// Ascend iterates entries with keys >= from in ascending order.
func (m *Map[K, V]) Ascend(from K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.iterating++
		defer func() { m.iterating-- }()
		m.walk(m.seek(from), nil, yield)
	}
}

// Range iterates entries with lo <= key < hi in ascending order.
func (m *Map[K, V]) Range(lo, hi K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.iterating++
		defer func() { m.iterating-- }()
		m.walk(m.seek(lo), func(k K) bool { return m.cmp(k, hi) < 0 }, yield)
	}
}

// Backward iterates every entry in descending key order.
func (m *Map[K, V]) Backward() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.iterating++
		defer func() { m.iterating-- }()

		var stack []*node[K, V]
		for n := m.root; n != nil; n = n.right {
			stack = append(stack, n)
		}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(n.key, n.value) {
				return
			}
			for c := n.left; c != nil; c = c.right {
				stack = append(stack, c)
			}
		}
	}
}

// Keys returns a snapshot of every key in ascending order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.size)
	for k := range m.All() {
		keys = append(keys, k)
	}
	return keys
}

// Snapshot returns every entry in ascending order. The returned slice is
// independent of the map and may be used while mutating it.
func (m *Map[K, V]) Snapshot() []Entry[K, V] {
	entries := make([]Entry[K, V], 0, m.size)
	for k, v := range m.All() {
		entries = append(entries, Entry[K, V]{Key: k, Value: v})
	}
	return entries
}

func (m *Map[K, V]) guard() {
	if m.iterating > 0 {
		panic(ErrMutationDuringIteration)
	}
}

// seek returns the in-order stack positioned at the first key >= from.
func (m *Map[K, V]) seek(from K) []*node[K, V] {
	var stack []*node[K, V]
	for n := m.root; n != nil; {
		if m.cmp(n.key, from) >= 0 {
			stack = append(stack, n)
			n = n.left
		} else {
			n = n.right
		}
	}
	return stack
}

func (m *Map[K, V]) walk(stack []*node[K, V], keep func(K) bool, yield func(K, V) bool) {
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if keep != nil && !keep(n.key) {
			return
		}
		if !yield(n.key, n.value) {
			return
		}
		for c := n.right; c != nil; c = c.left {
			stack = append(stack, c)
		}
	}
}

func (m *Map[K, V]) insert(n *node[K, V], key K, value V) (*node[K, V], V, bool) {
	if n == nil {
		m.size++
		var zero V
		return &node[K, V]{key: key, value: value, height: 1}, zero, false
	}

	var (
		old      V
		replaced bool
	)
	c := m.cmp(key, n.key)
	switch {
	case c < 0:
		n.left, old, replaced = m.insert(n.left, key, value)
	case c > 0:
		n.right, old, replaced = m.insert(n.right, key, value)
	default:
		old = n.value
		n.value = value
		return n, old, true
	}
	return rebalance(n), old, replaced
}

func (m *Map[K, V]) remove(n *node[K, V], key K) (*node[K, V], V, bool) {
	if n == nil {
		var zero V
		return nil, zero, false
	}

	var (
		value V
		ok    bool
	)
	c := m.cmp(key, n.key)
	switch {
	case c < 0:
		n.left, value, ok = m.remove(n.left, key)
	case c > 0:
		n.right, value, ok = m.remove(n.right, key)
	default:
		value = n.value
		m.size--
		if n.left == nil {
			return n.right, value, true
		}
		if n.right == nil {
			return n.left, value, true
		}
		right, succ := removeMin(n.right)
		succ.left = n.left
		succ.right = right
		return rebalance(succ), value, true
	}
	if !ok {
		return n, value, false
	}
	return rebalance(n), value, true
}

// removeMin detaches the leftmost node of the subtree rooted at n.
func removeMin[K, V any](n *node[K, V]) (*node[K, V], *node[K, V]) {
	if n.left == nil {
		return n.right, n
	}
	var lowest *node[K, V]
	n.left, lowest = removeMin(n.left)
	return rebalance(n), lowest
}

func height[K, V any](n *node[K, V]) int8 {
	if n == nil {
		return 0
	}
	return n.height
}

func (n *node[K, V]) fix() {
	n.height = 1 + max(height(n.left), height(n.right))
}

func balance[K, V any](n *node[K, V]) int {
	return int(height(n.left)) - int(height(n.right))
}

func rotateRight[K, V any](y *node[K, V]) *node[K, V] {
	x := y.left
	y.left = x.right
	x.right = y
	y.fix()
	x.fix()
	return x
}

func rotateLeft[K, V any](x *node[K, V]) *node[K, V] {
	y := x.right
	x.right = y.left
	y.left = x
	x.fix()
	y.fix()
	return y
}

func rebalance[K, V any](n *node[K, V]) *node[K, V] {
	n.fix()
	switch bf := balance(n); {
	case bf > 1:
		if balance(n.left) < 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	case bf < -1:
		if balance(n.right) > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	}
	return n
}
