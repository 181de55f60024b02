// Package table implements the open-addressed hash table used throughout
// Fer: VM globals and permanent globals, the string intern pool, Dictionary
// objects, Instance fields, and Class method tables all share this one
// implementation.
package table

import "github.com/kristofer/fer/internal/value"

// StringKey is the minimal surface a key must expose: its raw bytes and a
// precomputed hash. object.String implements this without package object
// needing to import package table, and without this package needing to
// import object — avoiding the cycle that would otherwise exist between
// the object model and the table it's keyed by.
type StringKey interface {
	Bytes() []byte
	HashCode() uint32
}

type entry struct {
	key   StringKey
	value value.Value
	// tombstone marks a deleted slot: key == nil but tombstone == true,
	// distinguishing "never used" (key == nil, tombstone == false) from
	// "used then deleted" so probing sequences stay intact.
	tombstone bool
}

const maxLoad = 0.75

// Table is an open-addressed hash table with linear probing.
type Table struct {
	count   int // live entries + tombstones, used against maxLoad
	entries []entry
}

// New returns an empty table. The backing array is allocated lazily on
// first Set rather than up front.
func New() *Table {
	return &Table{}
}

// Len reports the number of live (non-tombstone) entries.
func (t *Table) Len() int {
	n := 0
	for _, e := range t.entries {
		if e.key != nil && !e.tombstone {
			n++
		}
	}
	return n
}

// Get looks up key, reporting whether it was present.
func (t *Table) Get(key StringKey) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.NilValue, false
	}
	e := t.find(key)
	if e.key == nil {
		return value.NilValue, false
	}
	return e.value, true
}

// Set inserts or overwrites key's value, growing the table first if that
// would push the load factor past 0.75. Returns true if this created a new
// entry (as opposed to overwriting an existing one).
func (t *Table) Set(key StringKey, v value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow()
	}
	idx := t.findIndex(key)
	e := &t.entries[idx]
	isNew := e.key == nil
	if isNew && !e.tombstone {
		t.count++
	}
	e.key = key
	e.value = v
	e.tombstone = false
	return isNew
}

// Delete removes key, leaving a tombstone so later probe sequences through
// this slot remain unbroken.
func (t *Table) Delete(key StringKey) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx := t.findIndex(key)
	e := &t.entries[idx]
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = value.NilValue
	e.tombstone = true
	return true
}

// Each calls fn once per live entry, in table order. Callers must not call
// Set/Delete from within fn.
func (t *Table) Each(fn func(key StringKey, v value.Value)) {
	for _, e := range t.entries {
		if e.key != nil && !e.tombstone {
			fn(e.key, e.value)
		}
	}
}

// FindInterned looks up a key by content (hash + byte equality) rather than
// identity, for use by the VM/compiler's string intern pool when deciding
// whether a freshly scanned or concatenated string already has an
// interned twin.
func (t *Table) FindInterned(chars []byte, hash uint32) (StringKey, bool) {
	if len(t.entries) == 0 {
		return nil, false
	}
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		if e.key == nil {
			if !e.tombstone {
				return nil, false
			}
		} else if e.key.HashCode() == hash && string(e.key.Bytes()) == string(chars) {
			return e.key, true
		}
		idx = (idx + 1) & mask
	}
}

func (t *Table) find(key StringKey) *entry {
	idx := t.findIndex(key)
	return &t.entries[idx]
}

// findIndex returns the slot key belongs in: either its existing slot, or
// the first empty/tombstone slot found while probing linearly from its
// hash bucket.
func (t *Table) findIndex(key StringKey) int {
	mask := uint32(len(t.entries) - 1)
	idx := key.HashCode() & mask
	var firstTombstone = -1
	for {
		e := &t.entries[idx]
		if e.key == nil {
			if !e.tombstone {
				if firstTombstone != -1 {
					return firstTombstone
				}
				return int(idx)
			}
			if firstTombstone == -1 {
				firstTombstone = int(idx)
			}
		} else if sameKey(e.key, key) {
			return int(idx)
		}
		idx = (idx + 1) & mask
	}
}

func sameKey(a, b StringKey) bool {
	if a == b {
		return true
	}
	return a.HashCode() == b.HashCode() && string(a.Bytes()) == string(b.Bytes())
}

func (t *Table) grow() {
	newCap := 8
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	old := t.entries
	t.entries = make([]entry, newCap)
	t.count = 0
	for _, e := range old {
		if e.key == nil {
			continue
		}
		idx := t.findIndex(e.key)
		t.entries[idx] = entry{key: e.key, value: e.value}
		t.count++
	}
}
