// Package table implements the open-addressing hash map used for
// globals, instance fields, class method tables, and — via the same
// structure — the VM's string-intern pool.
//
// The table never imports package object: its Key is the narrow
// interface a key must satisfy (Hash and Bytes), which *object.String
// implements. This keeps the dependency graph a line
// (object -> table -> value) instead of a cycle, while letting the
// table's string-interning lookup (FindString) compare candidate keys
// by content without the table package knowing anything about heap
// objects.
package table

import "github.com/kristofer/vela/pkg/value"

// Key is what the table stores entries under. Every key in a given
// table is expected to be the same concrete (pointer) type, so
// interface equality (==) is a valid identity test — this is what lets
// the table compare keys by pointer, per spec §4.2.
type Key interface {
	Hash() uint32
	Bytes() string
}

const loadFactorThreshold = 0.75

type entry struct {
	key   Key // nil means empty-or-tombstone; Value distinguishes which
	value value.Value
}

func (e *entry) isEmpty() bool     { return e.key == nil && e.value.IsNull() }
func (e *entry) isTombstone() bool { return e.key == nil && !e.value.IsNull() }

// Table is an open-addressing map with linear probing.
type Table struct {
	entries []entry
	count   int // occupied slots: live entries + tombstones
	live    int // live entries only
}

// New returns an empty table. The backing array is allocated lazily on
// first insert, matching the teacher's and clox's "grow from zero"
// discipline.
func New() *Table {
	return &Table{}
}

// Len reports the number of live (non-tombstone) entries.
func (t *Table) Len() int { return t.live }

// findEntry locates the slot a key occupies, or the first
// tombstone-or-empty slot it should occupy on insert. It never
// allocates and never grows the table.
func findEntry(entries []entry, key Key) int {
	cap := len(entries)
	idx := int(key.Hash()) % cap
	var firstTombstone = -1
	for {
		e := &entries[idx]
		switch {
		case e.isEmpty():
			if firstTombstone != -1 {
				return firstTombstone
			}
			return idx
		case e.isTombstone():
			if firstTombstone == -1 {
				firstTombstone = idx
			}
		case e.key == key:
			return idx
		}
		idx = (idx + 1) % cap
	}
}

func (t *Table) adjustCapacity(newCap int) {
	fresh := make([]entry, newCap)
	for i := range fresh {
		fresh[i] = entry{key: nil, value: value.Nil}
	}
	t.live = 0
	for _, e := range t.entries {
		if e.key == nil {
			continue // skip both empty slots and tombstones
		}
		idx := findEntry(fresh, e.key)
		fresh[idx] = e
		t.live++
	}
	t.entries = fresh
	t.count = t.live
}

// Set inserts or overwrites key's value. It returns true if this
// created a brand new entry (as opposed to overwriting one).
func (t *Table) Set(key Key, v value.Value) bool {
	if len(t.entries) == 0 || float64(t.count+1) > float64(len(t.entries))*loadFactorThreshold {
		newCap := 8
		if len(t.entries) > 0 {
			newCap = len(t.entries) * 2
		}
		t.adjustCapacity(newCap)
	}

	idx := findEntry(t.entries, key)
	e := &t.entries[idx]
	isNewKey := e.key == nil
	if isNewKey && e.isEmpty() {
		t.count++
	}
	if isNewKey {
		t.live++
	}
	e.key = key
	e.value = v
	return isNewKey
}

// Get looks up key, returning (value, true) if present.
func (t *Table) Get(key Key) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.Nil, false
	}
	idx := findEntry(t.entries, key)
	e := &t.entries[idx]
	if e.key == nil {
		return value.Nil, false
	}
	return e.value, true
}

// Delete removes key, leaving a tombstone behind so later probes still
// find keys that hashed past it.
func (t *Table) Delete(key Key) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx := findEntry(t.entries, key)
	e := &t.entries[idx]
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = value.BoolVal(true) // tombstone marker
	t.live--
	return true
}

// FindString probes the table for a key whose content matches chars
// without allocating a candidate key first — this is how the VM checks
// whether a string literal is already interned before creating a new
// String object.
func (t *Table) FindString(chars string, hash uint32) (Key, bool) {
	if len(t.entries) == 0 {
		return nil, false
	}
	cap := len(t.entries)
	idx := int(hash) % cap
	for {
		e := &t.entries[idx]
		switch {
		case e.isEmpty():
			return nil, false
		case e.isTombstone():
			// keep probing past tombstones
		case e.key.Hash() == hash && len(e.key.Bytes()) == len(chars) && e.key.Bytes() == chars:
			return e.key, true
		}
		idx = (idx + 1) % cap
	}
}

// Keys returns every live key currently in the table. The GC does not
// use it: its mark phase walks tables with Each, and the string-intern
// prune pass uses RemoveIf.
func (t *Table) Keys() []Key {
	keys := make([]Key, 0, t.live)
	for i := range t.entries {
		if e := &t.entries[i]; e.key != nil {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// RemoveIf deletes every live entry for which keep returns false. Used
// by the GC's "remove white" pass over the weak string-intern table:
// keep reports whether the entry's key object survived the mark phase.
func (t *Table) RemoveIf(keep func(Key) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !keep(e.key) {
			e.key = nil
			e.value = value.BoolVal(true)
			t.live--
		}
	}
}

// Each calls fn for every live (key, value) pair — used by the GC to
// mark both sides of globals and instance-field tables.
func (t *Table) Each(fn func(Key, value.Value)) {
	for i := range t.entries {
		if e := &t.entries[i]; e.key != nil {
			fn(e.key, e.value)
		}
	}
}
