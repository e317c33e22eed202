package oid

import "testing"

func TestFromASCIIToASCIIRoundTrip(t *testing.T) {
	s := ".1.3.6.1.2.1.1.1.0"
	o, err := FromASCII(s)
	if err != nil {
		t.Fatal(err)
	}
	if got := ToASCII(o); got != s {
		t.Fatalf("got %q, want %q", got, s)
	}
}

func TestFromASCIIRejectsMissingLeadingDot(t *testing.T) {
	if _, err := FromASCII("1.3.6.1"); err != ErrMalformedOID {
		t.Fatalf("expected ErrMalformedOID, got %v", err)
	}
}

func TestFromASCIIRejectsEmptySegment(t *testing.T) {
	if _, err := FromASCII(".1..3"); err != ErrMalformedOID {
		t.Fatalf("expected ErrMalformedOID, got %v", err)
	}
}

func TestFromASCIIRejectsTooFewSubIDs(t *testing.T) {
	if _, err := FromASCII(".1"); err != ErrMalformedOID {
		t.Fatalf("expected ErrMalformedOID, got %v", err)
	}
}

func TestNewRejectsInvalidFirstByteCombination(t *testing.T) {
	if _, err := New([]uint32{3, 136}); err != ErrMalformedOID {
		t.Fatalf("expected ErrMalformedOID for 40*3+136 > 255, got %v", err)
	}
}

func TestNewRejectsTooManySubIDs(t *testing.T) {
	subIDs := make([]uint32, MaxSubIDs+1)
	subIDs[0], subIDs[1] = 1, 3
	if _, err := New(subIDs); err != ErrOidOverflow {
		t.Fatalf("expected ErrOidOverflow, got %v", err)
	}
}

func TestCompareShorterPrefixIsLess(t *testing.T) {
	a := MustNew(1, 3, 6, 1)
	b := MustNew(1, 3, 6, 1, 2)
	if Compare(a, b) >= 0 {
		t.Fatalf("expected %v < %v", a, b)
	}
	if Compare(b, a) <= 0 {
		t.Fatalf("expected %v > %v", b, a)
	}
	if Compare(a, a) != 0 {
		t.Fatalf("expected equal OIDs to compare 0")
	}
}

func TestCompareDivergingSiblings(t *testing.T) {
	a := MustNew(1, 3, 6, 1, 2)
	b := MustNew(1, 3, 6, 1, 3)
	if Compare(a, b) >= 0 {
		t.Fatalf("expected %v < %v", a, b)
	}
}

func TestIsPrefixOf(t *testing.T) {
	prefix := MustNew(1, 3, 6, 1, 2, 1)
	full := MustNew(1, 3, 6, 1, 2, 1, 1, 1, 0)
	if !prefix.IsPrefixOf(full) {
		t.Fatal("expected prefix.IsPrefixOf(full)")
	}
	if full.IsPrefixOf(prefix) {
		t.Fatal("did not expect full.IsPrefixOf(prefix)")
	}
	sibling := MustNew(1, 3, 6, 1, 2, 2)
	if prefix.IsPrefixOf(sibling) {
		t.Fatal("did not expect prefix.IsPrefixOf(sibling) across a diverging subid")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]uint32{
		{1, 3, 6, 1, 2, 1, 1, 1, 0},
		{0, 0},
		{2, 5, 200, 100000, 1},
	}
	for _, subIDs := range cases {
		o, err := New(subIDs)
		if err != nil {
			t.Fatalf("%v: %v", subIDs, err)
		}
		buf := make([]byte, o.EncodedLength())
		n, err := Encode(buf, 0, o)
		if err != nil {
			t.Fatalf("%v: %v", subIDs, err)
		}
		if n != o.EncodedLength() {
			t.Fatalf("%v: wrote %d bytes, expected %d", subIDs, n, o.EncodedLength())
		}
		decoded, pos, err := Decode(buf, 0)
		if err != nil {
			t.Fatalf("%v: %v", subIDs, err)
		}
		if pos != n || Compare(decoded, o) != 0 {
			t.Fatalf("%v: round trip mismatch, got %v at pos %d", subIDs, decoded.SubIDs(), pos)
		}
	}
}

func TestDecodeRejectsHighBitFirstByte(t *testing.T) {
	buf := []byte{0x06, 0x01, 0x80}
	if _, _, err := Decode(buf, 0); err == nil {
		t.Fatal("expected an error for a high-bit-set first content byte")
	}
}

func TestDecodeRejectsWrongTag(t *testing.T) {
	buf := []byte{0x04, 0x01, 0x2b}
	if _, _, err := Decode(buf, 0); err == nil {
		t.Fatal("expected an error for a non-OID tag")
	}
}
