/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package audio

import (
	"slices"
	"strings"
	"sync/atomic"

	"github.com/fvbommel/sortorder"
)

// Limits caps the live population of each category.
type Limits struct {
	Listeners int
	Sources   int
	Buffers   int
}

// DefaultLimits allows a single listener and 255 sources and buffers.
func DefaultLimits() Limits {
	return Limits{Listeners: 1, Sources: 255, Buffers: 255}
}

// For returns the limit for c, or 0 for an unrecognized category.
func (l Limits) For(c Category) int {
	switch c {
	case CategoryListener:
		return l.Listeners
	case CategorySource:
		return l.Sources
	case CategoryBuffer:
		return l.Buffers
	}
	return 0
}

// registry tracks live objects. It has no lock of its own; the Manager mutex
// guards it. Counters are atomics so Count can be read without that mutex.
type registry struct {
	limits    Limits
	sets      map[Category][]Object
	counters  map[Category]*atomic.Int64
	systemIdx map[string]Object
	userIdx   map[string]Object
}

func newRegistry(limits Limits) *registry {
	r := &registry{
		limits:   limits,
		sets:     make(map[Category][]Object, len(Categories)),
		counters: make(map[Category]*atomic.Int64, len(Categories)),
	}
	for _, c := range Categories {
		r.counters[c] = new(atomic.Int64)
	}
	r.reset()
	return r
}

// compareObjects orders by system name with numeric runs compared by value,
// so IAS2 sorts before IAS10. Names that only differ in leading zeros fall
// back to byte order to keep the ordering total.
func compareObjects(a, b Object) int {
	x, y := a.SystemName(), b.SystemName()
	switch {
	case sortorder.NaturalLess(x, y):
		return -1
	case sortorder.NaturalLess(y, x):
		return 1
	}
	return strings.Compare(x, y)
}

func (r *registry) count(c Category) int {
	ctr, ok := r.counters[c]
	if !ok {
		return 0
	}
	return int(ctr.Load())
}

func (r *registry) insert(obj Object) {
	c := obj.Category()
	set := r.sets[c]
	i, _ := slices.BinarySearchFunc(set, obj, compareObjects)
	r.sets[c] = slices.Insert(set, i, obj)
	r.counters[c].Add(1)
	r.systemIdx[obj.SystemName()] = obj
	if obj.UserName() != "" {
		r.userIdx[obj.UserName()] = obj
	}
}

// remove reports whether obj was held.
func (r *registry) remove(obj Object) bool {
	c := obj.Category()
	set := r.sets[c]
	i, found := slices.BinarySearchFunc(set, obj, compareObjects)
	if !found || set[i] != obj {
		return false
	}
	r.sets[c] = slices.Delete(set, i, i+1)
	r.counters[c].Add(-1)
	delete(r.systemIdx, obj.SystemName())
	if obj.UserName() != "" {
		delete(r.userIdx, obj.UserName())
	}
	return true
}

func (r *registry) snapshot(c Category) []Object {
	set := r.sets[c]
	out := make([]Object, len(set))
	copy(out, set)
	return out
}

func (r *registry) all() []Object {
	var out []Object
	for _, c := range Categories {
		out = append(out, r.sets[c]...)
	}
	return out
}

// reset clears sets, indexes and counters together.
func (r *registry) reset() {
	for _, c := range Categories {
		r.sets[c] = nil
		r.counters[c].Store(0)
	}
	r.systemIdx = make(map[string]Object)
	r.userIdx = make(map[string]Object)
}
