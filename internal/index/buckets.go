package index

import (
	"math"
	"sort"

	"github.com/google/btree"
)

type bucket[T any] struct {
	key   float64
	items map[int64]T
}

func lessBucket[T any](a, b *bucket[T]) bool { return a.key < b.key }

// Buckets groups items by an exact float key, ordered by key.
type Buckets[T any] struct {
	id   func(T) int64
	tree *btree.BTreeG[*bucket[T]]
	size int
}

// NewBuckets creates an empty bucket index.
func NewBuckets[T any](id func(T) int64) *Buckets[T] {
	return &Buckets[T]{
		id:   id,
		tree: btree.NewG(degree, lessBucket[T]),
	}
}

// Len returns the total number of items across all buckets.
func (b *Buckets[T]) Len() int { return b.size }

// Count returns the number of non-empty buckets.
func (b *Buckets[T]) Count() int { return b.tree.Len() }

// Put adds item to the bucket for key.
func (b *Buckets[T]) Put(key float64, item T) {
	bk, ok := b.tree.Get(&bucket[T]{key: key})
	if !ok {
		bk = &bucket[T]{key: key, items: make(map[int64]T)}
		b.tree.ReplaceOrInsert(bk)
	}
	id := b.id(item)
	if _, exists := bk.items[id]; !exists {
		b.size++
	}
	bk.items[id] = item
}

// Delete removes item from the bucket for key. Emptied buckets are dropped.
func (b *Buckets[T]) Delete(key float64, item T) bool {
	bk, ok := b.tree.Get(&bucket[T]{key: key})
	if !ok {
		return false
	}
	id := b.id(item)
	if _, exists := bk.items[id]; !exists {
		return false
	}
	delete(bk.items, id)
	b.size--
	if len(bk.items) == 0 {
		b.tree.Delete(bk)
	}
	return true
}

// Get returns the items stored under exactly key, ordered by id.
func (b *Buckets[T]) Get(key float64) []T {
	bk, ok := b.tree.Get(&bucket[T]{key: key})
	if !ok {
		return nil
	}
	return b.sorted(bk)
}

// Min returns the lowest key and its items.
func (b *Buckets[T]) Min() (float64, []T, bool) {
	bk, ok := b.tree.Min()
	if !ok {
		return 0, nil, false
	}
	return bk.key, b.sorted(bk), true
}

// Max returns the highest key and its items.
func (b *Buckets[T]) Max() (float64, []T, bool) {
	bk, ok := b.tree.Max()
	if !ok {
		return 0, nil, false
	}
	return bk.key, b.sorted(bk), true
}

// Nearest returns the bucket whose key is closest to key. An exact match wins;
// on equal distance the lower key is returned.
func (b *Buckets[T]) Nearest(key float64) (float64, []T, bool) {
	pivot := &bucket[T]{key: key}
	var below, above *bucket[T]
	b.tree.DescendLessOrEqual(pivot, func(bk *bucket[T]) bool {
		below = bk
		return false
	})
	b.tree.AscendGreaterOrEqual(pivot, func(bk *bucket[T]) bool {
		above = bk
		return false
	})
	switch {
	case below == nil && above == nil:
		return 0, nil, false
	case below == nil:
		return above.key, b.sorted(above), true
	case above == nil:
		return below.key, b.sorted(below), true
	}
	if math.Abs(above.key-key) < math.Abs(key-below.key) {
		return above.key, b.sorted(above), true
	}
	return below.key, b.sorted(below), true
}

// Descend walks buckets from the highest key down until fn returns false.
func (b *Buckets[T]) Descend(fn func(key float64, items []T) bool) {
	b.tree.Descend(func(bk *bucket[T]) bool {
		return fn(bk.key, b.sorted(bk))
	})
}

// Ascend walks buckets from the lowest key up until fn returns false.
func (b *Buckets[T]) Ascend(fn func(key float64, items []T) bool) {
	b.tree.Ascend(func(bk *bucket[T]) bool {
		return fn(bk.key, b.sorted(bk))
	})
}

func (b *Buckets[T]) sorted(bk *bucket[T]) []T {
	ids := make([]int64, 0, len(bk.items))
	for id := range bk.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = bk.items[id]
	}
	return out
}
