// Package index maintains ordered secondary views over mutable items.
//
// A Set owns the membership of its items and keeps one sorted View per
// registered key. Keys are captured when an item enters a view, so any
// change to the state a key reads from must go through Set.Reindex.
// NaN keys sort as -Inf.
package index

import (
	"math"

	"github.com/google/btree"
)

const degree = 32

// KeyFunc extracts the sort key of an item for one view.
type KeyFunc[T any] func(T) float64

type entry[T any] struct {
	key  float64
	id   int64
	item T
}

func lessEntry[T any](a, b entry[T]) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.id < b.id
}

// View is a sorted view over the members of a Set, ascending by key.
// Items with equal keys are ordered by id.
type View[T any] struct {
	name string
	key  KeyFunc[T]
	tree *btree.BTreeG[entry[T]]
	keys map[int64]float64
}

func newView[T any](name string, key KeyFunc[T]) *View[T] {
	return &View[T]{
		name: name,
		key:  key,
		tree: btree.NewG(degree, lessEntry[T]),
		keys: make(map[int64]float64),
	}
}

// Name returns the view's name.
func (v *View[T]) Name() string { return v.name }

// Len returns the number of items in the view.
func (v *View[T]) Len() int { return v.tree.Len() }

// Ascend calls fn for every item from lowest to highest key until fn returns false.
func (v *View[T]) Ascend(fn func(T) bool) {
	v.tree.Ascend(func(e entry[T]) bool { return fn(e.item) })
}

// Descend calls fn for every item from highest to lowest key until fn returns false.
func (v *View[T]) Descend(fn func(T) bool) {
	v.tree.Descend(func(e entry[T]) bool { return fn(e.item) })
}

// Slice returns the items in ascending key order.
func (v *View[T]) Slice() []T {
	out := make([]T, 0, v.tree.Len())
	v.Ascend(func(item T) bool {
		out = append(out, item)
		return true
	})
	return out
}

// Min returns the item with the lowest key.
func (v *View[T]) Min() (T, bool) {
	e, ok := v.tree.Min()
	return e.item, ok
}

// Max returns the item with the highest key.
func (v *View[T]) Max() (T, bool) {
	e, ok := v.tree.Max()
	return e.item, ok
}

// Key returns the key an item was indexed under.
func (v *View[T]) Key(id int64) (float64, bool) {
	k, ok := v.keys[id]
	return k, ok
}

func (v *View[T]) insert(id int64, item T) {
	k := v.key(item)
	if math.IsNaN(k) {
		k = math.Inf(-1)
	}
	v.keys[id] = k
	v.tree.ReplaceOrInsert(entry[T]{key: k, id: id, item: item})
}

func (v *View[T]) remove(id int64) {
	k, ok := v.keys[id]
	if !ok {
		return
	}
	delete(v.keys, id)
	v.tree.Delete(entry[T]{key: k, id: id})
}

// Set is a collection of uniquely identified items with any number of sorted views.
type Set[T any] struct {
	id      func(T) int64
	members map[int64]T
	views   map[string]*View[T]
	names   []string
}

// NewSet creates an empty set. id must return a stable identity for each item.
func NewSet[T any](id func(T) int64) *Set[T] {
	return &Set[T]{
		id:      id,
		members: make(map[int64]T),
		views:   make(map[string]*View[T]),
	}
}

// AddView registers a view and indexes every current member into it.
// Registering a name twice replaces the earlier view.
func (s *Set[T]) AddView(name string, key KeyFunc[T]) *View[T] {
	v := newView(name, key)
	for id, item := range s.members {
		v.insert(id, item)
	}
	if _, exists := s.views[name]; !exists {
		s.names = append(s.names, name)
	}
	s.views[name] = v
	return v
}

// View returns the named view, or nil if none is registered.
func (s *Set[T]) View(name string) *View[T] {
	return s.views[name]
}

// Views returns the view names in registration order.
func (s *Set[T]) Views() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of members.
func (s *Set[T]) Len() int { return len(s.members) }

// Has reports whether item is a member.
func (s *Set[T]) Has(item T) bool {
	_, ok := s.members[s.id(item)]
	return ok
}

// Get returns the member with the given id.
func (s *Set[T]) Get(id int64) (T, bool) {
	item, ok := s.members[id]
	return item, ok
}

// Add inserts item into the set and all views. It returns false if an item
// with the same id is already a member.
func (s *Set[T]) Add(item T) bool {
	id := s.id(item)
	if _, ok := s.members[id]; ok {
		return false
	}
	s.members[id] = item
	for _, name := range s.names {
		s.views[name].insert(id, item)
	}
	return true
}

// Remove deletes item from the set and all views.
func (s *Set[T]) Remove(item T) bool {
	id := s.id(item)
	if _, ok := s.members[id]; !ok {
		return false
	}
	delete(s.members, id)
	for _, name := range s.names {
		s.views[name].remove(id)
	}
	return true
}

// Reindex pulls item out of every view, runs mutate, and reinserts it under
// fresh keys. Non-members are mutated without touching any view.
func (s *Set[T]) Reindex(item T, mutate func()) {
	id := s.id(item)
	if _, ok := s.members[id]; !ok {
		mutate()
		return
	}
	for _, name := range s.names {
		s.views[name].remove(id)
	}
	mutate()
	for _, name := range s.names {
		s.views[name].insert(id, item)
	}
}
