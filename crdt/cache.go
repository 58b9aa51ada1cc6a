// Copyright 2022 Democratized Data Foundation
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.

// This file implements the "ordering cache" shared by RGArray (§4.7),
// FIArray (§4.8), and CausalTree (§4.9): a sorted structure backed by
// github.com/tidwall/btree the same way the teacher's go.mod pulls it in
// for sorted in-memory indices. RGArray and FIArray maintain it
// incrementally via Insert/Remove at O(log n) per apply; CausalTree
// rebuilds it in full with Reset on every apply.
package crdt

import "github.com/tidwall/btree"

// orderingCache is a generic sorted container. Every list CRDT in this
// package instantiates one with its own item type and ordering function;
// the cache itself knows nothing about visibility, tombstones, or tree
// shape, only total order over T.
type orderingCache[T any] struct {
	tr *btree.BTree
}

// newOrderingCache creates an empty cache ordered by less.
func newOrderingCache[T any](less func(a, b T) bool) *orderingCache[T] {
	return &orderingCache[T]{
		tr: btree.New(func(a, b any) bool {
			return less(a.(T), b.(T))
		}),
	}
}

// Insert adds or replaces item at its ordered position.
func (c *orderingCache[T]) Insert(item T) {
	c.tr.Set(item)
}

// Remove deletes item (matched by the cache's ordering function, so any
// value comparing equal to a stored item removes it).
func (c *orderingCache[T]) Remove(item T) {
	c.tr.Delete(item)
}

// Len reports the number of cached items.
func (c *orderingCache[T]) Len() int {
	return c.tr.Len()
}

// Items returns the cache contents in ascending order. This is the
// "derived flat list" spec.md §4.7 says is rebuilt only when the sorted
// list changed; callers should memoize the result themselves if calling
// it from a hot path.
func (c *orderingCache[T]) Items() []T {
	out := make([]T, 0, c.tr.Len())
	c.tr.Ascend(nil, func(item any) bool {
		out = append(out, item.(T))
		return true
	})
	return out
}

// Reset clears and rebuilds the cache from scratch, used by
// calculate_cache per spec.md §4.8/§4.9.
func (c *orderingCache[T]) Reset(items []T) {
	c.tr.Clear()
	for _, it := range items {
		c.tr.Set(it)
	}
}
