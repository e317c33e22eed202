/*
Package mibstore holds the ordered OID-to-value table the request handlers query: an array of
entries built once at startup and refreshed in place thereafter, never grown or reordered after
build() returns.
*/
package mibstore

import (
	"errors"

	"github.com/coreboard/snmpagentd/internal/oid"
)

// MaxValues bounds the total number of entries a store may hold.
const MaxValues = 2048

// ErrTableOverflow is returned by Builder.Add when the store would exceed MaxValues.
var ErrTableOverflow = errors.New("mibstore: table overflow")

// ErrOutOfOrder is returned by Builder.Add when the supplied OID does not strictly exceed the
// previously added one; the store's GETNEXT behaviour depends on strictly ascending order.
var ErrOutOfOrder = errors.New("mibstore: entries must be added in strictly ascending order")

// ErrCellOverflow is returned by Cell.Set when the re-encoded value does not fit the
// cell's capacity.
var ErrCellOverflow = errors.New("mibstore: cell capacity exceeded")

// Cell is an owned byte buffer holding a fully BER-encoded value (tag + length + content).
// Its capacity is fixed at build time to the worst case of its declared type; Set must not
// exceed it, except for string-backed cells which may grow by reallocation.
type Cell struct {
	buffer   []byte
	length   int
	growable bool
}

// NewCell allocates a cell with the given capacity.
func NewCell(capacity int) *Cell {
	return &Cell{buffer: make([]byte, capacity)}
}

// NewGrowableCell allocates a cell that may reallocate its buffer on Update rather than
// failing with ErrCellOverflow, for string-valued entries whose length is not known in
// advance (sysDescr and friends).
func NewGrowableCell(capacity int) *Cell {
	return &Cell{buffer: make([]byte, capacity), growable: true}
}

// Bytes returns the cell's current encoded value.
func (c *Cell) Bytes() []byte { return c.buffer[:c.length] }

// Set replaces the cell's encoded value with encoded, reallocating the backing buffer if the
// cell is growable and encoded does not fit the current capacity; otherwise failing with
// ErrCellOverflow.
func (c *Cell) Set(encoded []byte) error {
	if len(encoded) > len(c.buffer) {
		if !c.growable {
			return ErrCellOverflow
		}
		c.buffer = make([]byte, len(encoded))
	}
	copy(c.buffer, encoded)
	c.length = len(encoded)
	return nil
}

// Entry pairs an OID with its owned data cell. Entries are never deleted during the process
// lifetime; only their cell contents are refreshed.
type Entry struct {
	OID  oid.OID
	Cell *Cell
}

// Store is the ordered sequence of MIB entries: strictly ascending by OID, at most MaxValues
// entries, with stable indices from Build through process exit.
type Store struct {
	entries []Entry
}

// Builder accumulates entries in ascending OID order to produce a Store. Use NewBuilder, call
// Add for every entry in ascending order, then Build.
type Builder struct {
	entries []Entry
	last    oid.OID
	hasLast bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends an entry, failing with ErrOutOfOrder if id does not strictly exceed the OID of
// the previously added entry, or ErrTableOverflow if the store would exceed MaxValues.
func (b *Builder) Add(id oid.OID, cell *Cell) error {
	if len(b.entries) >= MaxValues {
		return ErrTableOverflow
	}
	if b.hasLast && oid.Compare(b.last, id) >= 0 {
		return ErrOutOfOrder
	}
	b.entries = append(b.entries, Entry{OID: id, Cell: cell})
	b.last = id
	b.hasLast = true
	return nil
}

// Build finalises the accumulated entries into a Store.
func (b *Builder) Build() *Store {
	return &Store{entries: b.entries}
}

// Len returns the number of entries in the store.
func (s *Store) Len() int { return len(s.entries) }

// At returns the entry at index i.
func (s *Store) At(i int) Entry { return s.entries[i] }

// Find starts scanning at *cursor and advances it until reaching an entry whose OID is a
// prefix of, or equal to, id, returning that entry and leaving *cursor at the match. It
// returns ok=false, with *cursor left past the end, if no such entry exists at or after the
// cursor. A caller that walks the store in the same order it was built, with a monotonically
// advancing cursor, visits each entry once: O(total entries) for a full pass.
func (s *Store) Find(id oid.OID, cursor *int) (Entry, bool) {
	for *cursor < len(s.entries) {
		e := s.entries[*cursor]
		if e.OID.IsPrefixOf(id) || oid.Compare(e.OID, id) == 0 {
			return e, true
		}
		*cursor++
	}
	return Entry{}, false
}

// FindExactOrChild performs the GET lookup rule directly: it returns the first entry whose
// OID equals id or extends it (id is a prefix of the entry's OID), scanning from the beginning
// (GET requests are not presumed to arrive in any particular order relative to each other).
func (s *Store) FindExactOrChild(id oid.OID) (Entry, bool) {
	for _, e := range s.entries {
		if id.IsPrefixOf(e.OID) {
			return e, true
		}
	}
	return Entry{}, false
}

// FindNext returns the lexicographic successor of id: the entry with the smallest OID that
// strictly exceeds id. A linear scan is acceptable at this scale (at most MaxValues entries).
func (s *Store) FindNext(id oid.OID) (Entry, bool) {
	best := -1
	for i, e := range s.entries {
		if oid.Compare(e.OID, id) > 0 {
			if best == -1 || oid.Compare(e.OID, s.entries[best].OID) < 0 {
				best = i
			}
		}
	}
	if best == -1 {
		return Entry{}, false
	}
	return s.entries[best], true
}
