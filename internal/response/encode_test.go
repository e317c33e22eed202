package response

import (
	"testing"

	"github.com/coreboard/snmpagentd/internal/ber"
	"github.com/coreboard/snmpagentd/internal/oid"
)

// TestEncodeSysDescrResponse builds the response to the sysDescr.0 worked example by hand and
// decodes the encoded message back field by field with the same primitives the wire decoder
// uses, rather than asserting on a literal byte dump.
func TestEncodeSysDescrResponse(t *testing.T) {
	target := mustOID(t, 1, 3, 6, 1, 2, 1, 1, 1, 0)
	resp := &Response{
		RequestID:   1,
		ErrorStatus: ErrNoError,
		ErrorIndex:  0,
		Varbinds:    []Varbind{{OID: target, Value: []byte{ber.TagOctetString, 0x0c, 'a', ' ', 't', 'e', 's', 't', ' ', 'a', 'g', 'e', 'n', 't'}}},
	}
	buf := make([]byte, 256)
	n, err := Encode(buf, 0, "public", resp)
	if err != nil {
		t.Fatal(err)
	}
	msg := buf[:n]

	_, msgLen, pos, err := ber.DecodeTagLength(msg, 0)
	if err != nil {
		t.Fatal(err)
	}
	if pos+msgLen != n {
		t.Fatalf("outer SEQUENCE length %d does not span the encoded message (%d bytes)", msgLen, n)
	}

	version, pos, err := ber.DecodeInteger(msg, pos)
	if err != nil {
		t.Fatal(err)
	}
	if version != 0 {
		t.Fatalf("expected version 0 (v1), got %d", version)
	}

	community, pos, err := ber.DecodeOctetString(msg, pos)
	if err != nil {
		t.Fatal(err)
	}
	if string(community) != "public" {
		t.Fatalf("expected community %q, got %q", "public", community)
	}

	pduTag, pduLen, pos, err := ber.DecodeTagLength(msg, pos)
	if err != nil {
		t.Fatal(err)
	}
	if pduTag != ber.PDUGetResponse {
		t.Fatalf("expected a GetResponse PDU, got %#x", pduTag)
	}
	pduEnd := pos + pduLen

	requestID, pos, err := ber.DecodeInteger(msg, pos)
	if err != nil {
		t.Fatal(err)
	}
	if requestID != 1 {
		t.Fatalf("expected request-id 1, got %d", requestID)
	}
	errStatus, pos, err := ber.DecodeInteger(msg, pos)
	if err != nil {
		t.Fatal(err)
	}
	if errStatus != 0 {
		t.Fatalf("expected error-status 0, got %d", errStatus)
	}
	errIndex, pos, err := ber.DecodeInteger(msg, pos)
	if err != nil {
		t.Fatal(err)
	}
	if errIndex != 0 {
		t.Fatalf("expected error-index 0, got %d", errIndex)
	}

	_, vbListLen, pos, err := ber.DecodeTagLength(msg, pos)
	if err != nil {
		t.Fatal(err)
	}
	if pos+vbListLen != pduEnd {
		t.Fatalf("varbind-list length %d does not span to the PDU end", vbListLen)
	}

	_, _, pos, err = ber.DecodeTagLength(msg, pos) // one varbind SEQUENCE
	if err != nil {
		t.Fatal(err)
	}
	decodedOID, pos, err := oid.Decode(msg, pos)
	if err != nil {
		t.Fatal(err)
	}
	if oid.Compare(decodedOID, target) != 0 {
		t.Fatalf("got OID %v, want %v", decodedOID.SubIDs(), target.SubIDs())
	}
	value, pos, err := ber.DecodeOctetString(msg, pos)
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != "a test agent" {
		t.Fatalf("got value %q, want %q", value, "a test agent")
	}
	if pos != n {
		t.Fatalf("decoded %d bytes, message is %d bytes", pos, n)
	}
}

// TestEncodeOverflowRejectsUndersizedBuffer exercises the forward two-pass measurement: it must
// fail closed with ErrEncodingOverflow rather than write a truncated message.
func TestEncodeOverflowRejectsUndersizedBuffer(t *testing.T) {
	resp := &Response{
		RequestID: 1,
		Varbinds:  []Varbind{{OID: mustOID(t, 1, 3, 6, 1, 2, 1, 1, 1, 0), Value: []byte{ber.TagOctetString, 0x00}}},
	}
	buf := make([]byte, 4)
	if _, err := Encode(buf, 0, "public", resp); err != ber.ErrEncodingOverflow {
		t.Fatalf("expected ErrEncodingOverflow, got %v", err)
	}
}

// TestEncodeExceptionVarbind checks that an EndOfMIBView-carrying varbind encodes its sentinel
// bytes rather than a borrowed value.
func TestEncodeExceptionVarbind(t *testing.T) {
	resp := &Response{
		RequestID: 1,
		Varbinds:  []Varbind{{OID: mustOID(t, 1, 3, 6, 1, 2, 1, 1, 1, 0), Exception: EndOfMIBView}},
	}
	buf := make([]byte, 64)
	n, err := Encode(buf, 1, "public", resp)
	if err != nil {
		t.Fatal(err)
	}
	msg := buf[:n]
	// endOfMibView's tag (0x82, context-specific primitive) must appear somewhere in the
	// trailing value position; confirm the exact two-byte sentinel was written at the tail.
	if msg[n-2] != ber.TagEndOfMIBView || msg[n-1] != 0x00 {
		t.Fatalf("expected a trailing endOfMibView sentinel, got % x", msg[n-2:])
	}
}
