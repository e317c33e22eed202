package mibstore

import (
	"testing"

	"github.com/coreboard/snmpagentd/internal/oid"
)

func mustCell(t *testing.T, s string) *Cell {
	t.Helper()
	c := NewCell(len(s))
	if err := c.Set([]byte(s)); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBuilderRejectsOutOfOrderEntries(t *testing.T) {
	b := NewBuilder()
	if err := b.Add(oid.MustNew(1, 3, 6, 1, 2), mustCell(t, "a")); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(oid.MustNew(1, 3, 6, 1, 1), mustCell(t, "b")); err != ErrOutOfOrder {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
	if err := b.Add(oid.MustNew(1, 3, 6, 1, 2), mustCell(t, "c")); err != ErrOutOfOrder {
		t.Fatalf("expected ErrOutOfOrder for a duplicate OID, got %v", err)
	}
}

func TestBuilderRejectsOverflow(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < MaxValues; i++ {
		if err := b.Add(oid.MustNew(1, 3, 6, uint32(i+1)), mustCell(t, "x")); err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
	}
	if err := b.Add(oid.MustNew(1, 3, 6, MaxValues+1), mustCell(t, "overflow")); err != ErrTableOverflow {
		t.Fatalf("expected ErrTableOverflow, got %v", err)
	}
}

func buildTestStore(t *testing.T) *Store {
	t.Helper()
	b := NewBuilder()
	oids := [][]uint32{
		{1, 3, 6, 1, 2, 1, 1, 1, 0},
		{1, 3, 6, 1, 2, 1, 1, 2, 0},
		{1, 3, 6, 1, 2, 1, 2, 2, 1, 1, 1},
		{1, 3, 6, 1, 2, 1, 2, 2, 1, 1, 2},
	}
	for _, o := range oids {
		if err := b.Add(oid.MustNew(o...), mustCell(t, "v")); err != nil {
			t.Fatalf("%v: %v", o, err)
		}
	}
	return b.Build()
}

func TestFindExactOrChildExactMatch(t *testing.T) {
	s := buildTestStore(t)
	target := oid.MustNew(1, 3, 6, 1, 2, 1, 1, 1, 0)
	entry, ok := s.FindExactOrChild(target)
	if !ok || oid.Compare(entry.OID, target) != 0 {
		t.Fatalf("expected exact match, got ok=%v entry=%v", ok, entry.OID.SubIDs())
	}
}

func TestFindExactOrChildInstanceShort(t *testing.T) {
	s := buildTestStore(t)
	// one subid short of the stored instance .1.1 column-then-index entry
	target := oid.MustNew(1, 3, 6, 1, 2, 1, 2, 2, 1, 1)
	entry, ok := s.FindExactOrChild(target)
	if !ok {
		t.Fatal("expected a prefix match for the table column")
	}
	if entry.OID.Len() != target.Len()+1 {
		t.Fatalf("expected the match to be exactly one subid longer (no-such-instance case), got %d vs %d", entry.OID.Len(), target.Len())
	}
}

func TestFindExactOrChildNoMatch(t *testing.T) {
	s := buildTestStore(t)
	target := oid.MustNew(1, 3, 6, 1, 9, 9, 9)
	if _, ok := s.FindExactOrChild(target); ok {
		t.Fatal("expected no match")
	}
}

func TestFindNextSuccessor(t *testing.T) {
	s := buildTestStore(t)
	entry, ok := s.FindNext(oid.MustNew(1, 3, 6, 1, 2, 1, 1, 1, 0))
	if !ok {
		t.Fatal("expected a successor")
	}
	want := oid.MustNew(1, 3, 6, 1, 2, 1, 1, 2, 0)
	if oid.Compare(entry.OID, want) != 0 {
		t.Fatalf("got %v, want %v", entry.OID.SubIDs(), want.SubIDs())
	}
}

func TestFindNextAtEndOfTable(t *testing.T) {
	s := buildTestStore(t)
	last := s.At(s.Len() - 1)
	if _, ok := s.FindNext(last.OID); ok {
		t.Fatal("expected no successor past the last entry")
	}
}

func TestFindNextBeforeFirstEntry(t *testing.T) {
	s := buildTestStore(t)
	entry, ok := s.FindNext(oid.MustNew(1, 3, 6, 1))
	if !ok {
		t.Fatal("expected a successor")
	}
	want := s.At(0)
	if oid.Compare(entry.OID, want.OID) != 0 {
		t.Fatalf("got %v, want first entry %v", entry.OID.SubIDs(), want.OID.SubIDs())
	}
}

func TestFindAdvancesCursorMonotonically(t *testing.T) {
	s := buildTestStore(t)
	cursor := 0
	for i := 0; i < s.Len(); i++ {
		entry, ok := s.Find(s.At(i).OID, &cursor)
		if !ok || oid.Compare(entry.OID, s.At(i).OID) != 0 {
			t.Fatalf("entry %d: expected match at cursor %d", i, cursor)
		}
	}
}

func TestCellSetRejectsOverflowOnFixedCell(t *testing.T) {
	c := NewCell(2)
	if err := c.Set([]byte{1, 2, 3}); err != ErrCellOverflow {
		t.Fatalf("expected ErrCellOverflow, got %v", err)
	}
}

func TestGrowableCellReallocates(t *testing.T) {
	c := NewGrowableCell(1)
	if err := c.Set([]byte("a longer value than the initial capacity")); err != nil {
		t.Fatal(err)
	}
	if string(c.Bytes()) != "a longer value than the initial capacity" {
		t.Fatalf("got %q", c.Bytes())
	}
}
