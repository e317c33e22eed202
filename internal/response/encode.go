package response

import (
	"github.com/coreboard/snmpagentd/internal/ber"
	"github.com/coreboard/snmpagentd/internal/oid"
)

// Encode serialises resp into dst as a complete SNMP message: outer SEQUENCE, version
// INTEGER, community OCTET STRING, RESPONSE PDU (request-id, error-status, error-index), and
// a SEQUENCE OF varbind SEQUENCE { OID, value }. It measures the content length of each nested
// SEQUENCE in a first pass and emits forward in a second, the design notes' preferred
// alternative to encoding from the buffer's tail. It returns ErrEncodingOverflow if the
// encoded message would not fit dst.
func Encode(dst []byte, version int32, community string, resp *Response) (int, error) {
	vbListLen, err := varbindListLength(resp.Varbinds)
	if err != nil {
		return 0, err
	}
	pduContentLen := intContentLen(resp.RequestID) + intContentLen(resp.ErrorStatus) + intContentLen(resp.ErrorIndex) + ber.EncodedTLVLength(vbListLen)
	pduLen := ber.EncodedTLVLength(pduContentLen)
	msgContentLen := intContentLen(version) + ber.EncodedTLVLength(len(community)) + pduLen
	total := ber.EncodedTLVLength(msgContentLen)
	if total > len(dst) {
		return 0, ber.ErrEncodingOverflow
	}

	pos, err := ber.EncodeTagLength(dst, 0, ber.TagSequence, msgContentLen)
	if err != nil {
		return 0, err
	}
	pos, err = ber.EncodeInteger(dst, pos, version)
	if err != nil {
		return 0, err
	}
	pos, err = ber.EncodeOctetString(dst, pos, []byte(community))
	if err != nil {
		return 0, err
	}
	pos, err = ber.EncodeTagLength(dst, pos, ber.PDUGetResponse, pduContentLen)
	if err != nil {
		return 0, err
	}
	pos, err = ber.EncodeInteger(dst, pos, resp.RequestID)
	if err != nil {
		return 0, err
	}
	pos, err = ber.EncodeInteger(dst, pos, resp.ErrorStatus)
	if err != nil {
		return 0, err
	}
	pos, err = ber.EncodeInteger(dst, pos, resp.ErrorIndex)
	if err != nil {
		return 0, err
	}
	pos, err = ber.EncodeTagLength(dst, pos, ber.TagSequence, vbListLen)
	if err != nil {
		return 0, err
	}
	for _, vb := range resp.Varbinds {
		pos, err = encodeVarbind(dst, pos, vb)
		if err != nil {
			return 0, err
		}
	}
	return pos, nil
}

// intContentLen returns the encoded length of v as a BER INTEGER.
func intContentLen(v int32) int {
	var buf [8]byte
	n, _ := ber.EncodeInteger(buf[:], 0, v)
	return n
}

func varbindLength(vb Varbind) int {
	value := vb.encodedValue()
	return ber.EncodedTLVLength(vb.OID.EncodedLength() + len(value))
}

func varbindListLength(vbs []Varbind) (int, error) {
	total := 0
	for _, vb := range vbs {
		total += varbindLength(vb)
	}
	return total, nil
}

func encodeVarbind(dst []byte, pos int, vb Varbind) (int, error) {
	value := vb.encodedValue()
	content := vb.OID.EncodedLength() + len(value)
	pos, err := ber.EncodeTagLength(dst, pos, ber.TagSequence, content)
	if err != nil {
		return 0, err
	}
	pos, err = oid.Encode(dst, pos, vb.OID)
	if err != nil {
		return 0, err
	}
	if len(value) > len(dst)-pos {
		return 0, ber.ErrEncodingOverflow
	}
	copy(dst[pos:], value)
	return pos + len(value), nil
}
