/*
Package oid implements the OBJECT IDENTIFIER type used as the MIB store's sort and lookup key:
a bounded sequence of unsigned subidentifiers, BER encode/decode, lexicographic comparison, and
the leading-dot ASCII form used by configuration and test fixtures.
*/
package oid

import (
	"errors"
	"strconv"
	"strings"

	"github.com/coreboard/snmpagentd/internal/ber"
)

// MaxSubIDs bounds the length of any OID this agent decodes, encodes, or builds.
const MaxSubIDs = 128

// ErrMalformedOID is returned by New and FromASCII when the input cannot form a valid OID.
var ErrMalformedOID = errors.New("oid: malformed")

// ErrOidOverflow is returned when an OID would exceed MaxSubIDs.
var ErrOidOverflow = errors.New("oid: too many subidentifiers")

// OID is an ordered, immutable sequence of unsigned subidentifiers.
type OID struct {
	subIDs        []uint32
	encodedLength int
}

// New validates subIDs and returns an OID with its BER encoded length precomputed. subIDs must
// have length >= 2 and 40*subIDs[0]+subIDs[1] <= 255, matching the first encoded content byte.
func New(subIDs []uint32) (OID, error) {
	if len(subIDs) < 2 {
		return OID{}, ErrMalformedOID
	}
	if len(subIDs) > MaxSubIDs {
		return OID{}, ErrOidOverflow
	}
	if 40*subIDs[0]+subIDs[1] > 255 {
		return OID{}, ErrMalformedOID
	}
	cp := make([]uint32, len(subIDs))
	copy(cp, subIDs)
	o := OID{subIDs: cp}
	o.encodedLength = ber.EncodedTLVLength(contentLength(cp))
	return o, nil
}

// MustNew is New, panicking on error. It exists for building the static MIB skeleton from
// literal OID constants, where a malformed literal is a programming error.
func MustNew(subIDs ...uint32) OID {
	o, err := New(subIDs)
	if err != nil {
		panic(err)
	}
	return o
}

// SubIDs returns the subidentifier sequence. The returned slice must not be mutated.
func (o OID) SubIDs() []uint32 { return o.subIDs }

// Len returns the number of subidentifiers.
func (o OID) Len() int { return len(o.subIDs) }

// EncodedLength returns the total BER byte length (tag + length header + content), cached at
// construction.
func (o OID) EncodedLength() int { return o.encodedLength }

// IsZero reports whether o is the zero value (no subidentifiers).
func (o OID) IsZero() bool { return len(o.subIDs) == 0 }

// Compare implements lexicographic ordering: a shorter prefix compares less than any strict
// extension of itself. It returns <0, 0, or >0 the way bytes.Compare does.
func Compare(a, b OID) int {
	n := len(a.subIDs)
	if len(b.subIDs) < n {
		n = len(b.subIDs)
	}
	for i := 0; i < n; i++ {
		if a.subIDs[i] != b.subIDs[i] {
			if a.subIDs[i] < b.subIDs[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a.subIDs) < len(b.subIDs):
		return -1
	case len(a.subIDs) > len(b.subIDs):
		return 1
	default:
		return 0
	}
}

// IsPrefixOf reports whether o is a prefix of (or equal to) other.
func (o OID) IsPrefixOf(other OID) bool {
	if len(o.subIDs) > len(other.subIDs) {
		return false
	}
	for i, s := range o.subIDs {
		if other.subIDs[i] != s {
			return false
		}
	}
	return true
}

// subIDByteLen returns how many base-128 bytes a single subidentifier encodes to.
func subIDByteLen(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// contentLength returns the BER content length (excluding tag and length header) for subIDs.
func contentLength(subIDs []uint32) int {
	length := 1 // first content byte combines subIDs[0] and subIDs[1]
	for _, v := range subIDs[2:] {
		length += subIDByteLen(v)
	}
	return length
}

// Encode writes o's BER OBJECT IDENTIFIER encoding (tag, length, content) into dst[pos:] and
// returns the position following it.
func Encode(dst []byte, pos int, o OID) (int, error) {
	content := contentLength(o.subIDs)
	contentPos, err := ber.EncodeTagLength(dst, pos, ber.TagOID, content)
	if err != nil {
		return 0, err
	}
	p := contentPos
	dst[p] = byte(40*o.subIDs[0] + o.subIDs[1])
	p++
	for _, v := range o.subIDs[2:] {
		n := subIDByteLen(v)
		for i := n - 1; i >= 0; i-- {
			b := byte(v>>(7*uint(i))) & 0x7f
			if i != 0 {
				b |= 0x80
			}
			dst[p] = b
			p++
		}
	}
	return p, nil
}

// Decode reads a BER OBJECT IDENTIFIER at buf[pos] and returns the decoded OID and the
// position following it. A first content byte with its high bit set is rejected, matching the
// historical restriction against a three-subid leading prefix.
func Decode(buf []byte, pos int) (OID, int, error) {
	tag, length, contentPos, err := ber.DecodeTagLength(buf, pos)
	if err != nil {
		return OID{}, 0, err
	}
	if tag != ber.TagOID {
		return OID{}, 0, ber.ErrMalformedPacket
	}
	if err := ber.CheckBounds(buf, contentPos, length); err != nil {
		return OID{}, 0, err
	}
	if length == 0 {
		return OID{}, 0, ber.ErrMalformedPacket
	}
	content := buf[contentPos : contentPos+length]
	if content[0]&0x80 != 0 {
		return OID{}, 0, ber.ErrMalformedPacket
	}
	subIDs := make([]uint32, 0, MaxSubIDs)
	subIDs = append(subIDs, uint32(content[0])/40, uint32(content[0])%40)
	i := 1
	for i < len(content) {
		var v uint32
		for {
			if i >= len(content) {
				return OID{}, 0, ber.ErrMalformedPacket
			}
			b := content[i]
			v = v<<7 | uint32(b&0x7f)
			i++
			if b&0x80 == 0 {
				break
			}
		}
		if len(subIDs) >= MaxSubIDs {
			return OID{}, 0, ErrOidOverflow
		}
		subIDs = append(subIDs, v)
	}
	if len(subIDs) < 1 {
		return OID{}, 0, ber.ErrMalformedPacket
	}
	o, err := New(subIDs)
	if err != nil {
		return OID{}, 0, err
	}
	return o, contentPos + length, nil
}

// FromASCII parses a leading-dot dotted form such as ".1.3.6.1.2.1.1.1.0". It fails if the
// string does not start with a dot, contains an empty segment, decodes to fewer than two
// subidentifiers, or has 40*subIDs[0]+subIDs[1] > 255.
func FromASCII(s string) (OID, error) {
	if !strings.HasPrefix(s, ".") {
		return OID{}, ErrMalformedOID
	}
	parts := strings.Split(s[1:], ".")
	if len(parts) < 2 {
		return OID{}, ErrMalformedOID
	}
	subIDs := make([]uint32, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return OID{}, ErrMalformedOID
		}
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return OID{}, ErrMalformedOID
		}
		subIDs = append(subIDs, uint32(v))
	}
	return New(subIDs)
}

// ToASCII renders o in the leading-dot dotted form, the inverse of FromASCII.
func ToASCII(o OID) string {
	var b strings.Builder
	for _, v := range o.subIDs {
		b.WriteByte('.')
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	return b.String()
}
