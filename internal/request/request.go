/*
Package request decodes an incoming SNMP message buffer into a Request record. Decoding is the
only place untrusted bytes are interpreted; every step checks bounds before advancing and
returns ber.ErrMalformedPacket on any violation, causing the caller to drop the datagram or
close the connection rather than propagate a partially decoded value.
*/
package request

import (
	"github.com/coreboard/snmpagentd/internal/ber"
	"github.com/coreboard/snmpagentd/internal/oid"
)

// MaxOIDs bounds the number of varbinds (queried OIDs) a single request may carry.
const MaxOIDs = 20

// MaxCommunityLen bounds the community string's length.
const MaxCommunityLen = 64

// Version identifies the SNMP protocol version of a request.
type Version int32

const (
	V1  Version = 0
	V2C Version = 1
)

// Request is the ephemeral, decoded form of one incoming PDU.
type Request struct {
	Version         Version
	Community       string
	PDUType         byte
	RequestID       int32
	// ErrorStatus and ErrorIndex alias the wire positions of NonRepeaters and MaxRepetitions
	// for every PDU type except GetBulkRequest; a request never arrives with these set to
	// anything meaningful, but the raw decoded values are kept for a byte-faithful error
	// response (§4.G reconstructs the original varbind list, not these two fields).
	ErrorStatus     int32
	ErrorIndex      int32
	NonRepeaters    uint32
	MaxRepetitions  uint32
	OIDs            []oid.OID
}

// Decode parses buf as a complete SNMP v1/v2c message per the grammar in the wire protocol
// description: SEQUENCE { version, community, PDU { request-id, err-status|non-rep,
// err-index|max-rep, varbinds SEQUENCE OF { name, value } } }.
func Decode(buf []byte) (*Request, error) {
	pos, msgEnd, err := ber.DecodeSequenceHeader(buf, 0, ber.TagSequence)
	if err != nil {
		return nil, err
	}
	if msgEnd != len(buf) {
		return nil, ber.ErrMalformedPacket
	}

	version, pos, err := ber.DecodeInteger(buf, pos)
	if err != nil {
		return nil, err
	}
	if version != int32(V1) && version != int32(V2C) {
		return nil, ber.ErrMalformedPacket
	}

	community, pos, err := ber.DecodeOctetString(buf, pos)
	if err != nil {
		return nil, err
	}
	if len(community) == 0 || len(community) > MaxCommunityLen {
		return nil, ber.ErrMalformedPacket
	}

	pduTag, pduLength, pduContentPos, err := ber.DecodeTagLength(buf, pos)
	if err != nil {
		return nil, err
	}
	switch pduTag {
	case ber.PDUGetRequest, ber.PDUGetNextRequest, ber.PDUGetResponse, ber.PDUSetRequest, ber.PDUGetBulkRequest:
	default:
		return nil, ber.ErrMalformedPacket
	}
	if pduContentPos+pduLength != msgEnd {
		return nil, ber.ErrMalformedPacket
	}
	pos = pduContentPos

	requestID, pos, err := ber.DecodeInteger(buf, pos)
	if err != nil {
		return nil, err
	}
	field2, pos, err := ber.DecodeInteger(buf, pos)
	if err != nil {
		return nil, err
	}
	field3, pos, err := ber.DecodeInteger(buf, pos)
	if err != nil {
		return nil, err
	}

	vbContentPos, vbEnd, err := ber.DecodeSequenceHeader(buf, pos, ber.TagSequence)
	if err != nil {
		return nil, err
	}
	if vbEnd != pduContentPos+pduLength {
		return nil, ber.ErrMalformedPacket
	}
	pos = vbContentPos

	var oids []oid.OID
	for pos < vbEnd {
		if len(oids) >= MaxOIDs {
			return nil, ber.ErrMalformedPacket
		}
		entryContentPos, entryEnd, err := ber.DecodeSequenceHeader(buf, pos, ber.TagSequence)
		if err != nil {
			return nil, err
		}
		name, namePos, err := oid.Decode(buf, entryContentPos)
		if err != nil {
			return nil, err
		}
		valueTag, valueLength, valueContentPos, err := ber.DecodeTagLength(buf, namePos)
		if err != nil {
			return nil, err
		}
		if valueTag == ber.TagNull && valueLength != 0 {
			return nil, ber.ErrMalformedPacket
		} else if valueTag != ber.TagNull && valueLength == 0 {
			return nil, ber.ErrMalformedPacket
		}
		if err := ber.CheckBounds(buf, valueContentPos, valueLength); err != nil {
			return nil, err
		}
		valueEnd := valueContentPos + valueLength
		if valueEnd != entryEnd {
			return nil, ber.ErrMalformedPacket
		}
		oids = append(oids, name)
		pos = entryEnd
	}
	if pos != vbEnd {
		return nil, ber.ErrMalformedPacket
	}

	r := &Request{
		Version:   Version(version),
		Community: string(community),
		PDUType:   pduTag,
		RequestID: requestID,
		OIDs:      oids,
	}
	if pduTag == ber.PDUGetBulkRequest {
		r.NonRepeaters = clampUnsigned(field2)
		r.MaxRepetitions = clampUnsigned(field3)
	} else {
		r.ErrorStatus = field2
		r.ErrorIndex = field3
	}
	return r, nil
}

// clampUnsigned treats a decoded signed field as unsigned 32-bit, clamping a negative on-wire
// value to zero rather than letting it wrap to a large unsigned magnitude.
func clampUnsigned(v int32) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}
