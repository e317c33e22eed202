/*
Package response implements the GET/GETNEXT/GETBULK/SET request handlers and the encoder that
serialises their result into a wire-ready SNMP message. A varbind's value is modelled as either
a borrowed reference into the MIB store or one of the four immutable exception sentinels —
never a second copy of the MIB's bytes.
*/
package response

import (
	"crypto/subtle"

	"github.com/coreboard/snmpagentd/internal/ber"
	"github.com/coreboard/snmpagentd/internal/mibstore"
	"github.com/coreboard/snmpagentd/internal/oid"
	"github.com/coreboard/snmpagentd/internal/request"
)

// v1/v2c error-status codes this agent produces.
const (
	ErrNoError      = 0
	ErrNoSuchName   = 2
	ErrGenErr       = 5
	ErrNoAccess     = 6
)

// Exception kinds a varbind's value may carry in place of borrowed MIB bytes.
type Exception int

const (
	NoException Exception = iota
	NoSuchObject
	NoSuchInstance
	EndOfMIBView
)

var exceptionBytes = map[Exception][]byte{
	NoSuchObject:   {ber.TagNoSuchObject, 0x00},
	NoSuchInstance: {ber.TagNoSuchInstance, 0x00},
	EndOfMIBView:   {ber.TagEndOfMIBView, 0x00},
}

// nullBytes is the immutable encoded NULL value, `05 00`, used both as a query placeholder and
// as the value every varbind carries in an error response.
var nullBytes = []byte{ber.TagNull, 0x00}

// Varbind is one (OID, value) result pair. Value is either borrowed MIB bytes, one of the
// exception sentinels, or nil to mean "encode NULL".
type Varbind struct {
	OID       oid.OID
	Value     []byte
	Exception Exception
}

// encodedValue returns the bytes to emit for this varbind's value.
func (v Varbind) encodedValue() []byte {
	if v.Exception != NoException {
		return exceptionBytes[v.Exception]
	}
	if v.Value == nil {
		return nullBytes
	}
	return v.Value
}

// Response is the ephemeral result of handling one request.
type Response struct {
	RequestID   int32
	ErrorStatus int32
	ErrorIndex  int32
	Varbinds    []Varbind
}

// Handle dispatches req to the appropriate handler and returns the Response to encode.
// community is the configured community string and authRequired makes v1 requests fail; when
// the request fails that check, Handle itself builds the error response described in §4.F and
// never touches the MIB store. It returns nil for a PDU type it does not handle.
func Handle(store *mibstore.Store, req *request.Request, community string, authRequired bool) *Response {
	if errStatus, failed := authenticate(req, community, authRequired); failed {
		return errorResponse(req, errStatus)
	}
	switch req.PDUType {
	case ber.PDUGetRequest:
		return handleGet(store, req)
	case ber.PDUGetNextRequest:
		return handleGetNext(store, req)
	case ber.PDUGetBulkRequest:
		return handleGetBulk(store, req)
	case ber.PDUSetRequest:
		return handleSet(req)
	default:
		return nil
	}
}

// authenticate applies §4.F's authentication rule: a v2c request whose community does not
// match the configured one fails with NO_ACCESS; a v1 request fails with GEN_ERR when the
// auth flag is enabled. Either failure means the PDU is never executed.
func authenticate(req *request.Request, community string, authRequired bool) (errStatus int32, failed bool) {
	if req.Version == request.V2C && subtle.ConstantTimeCompare([]byte(req.Community), []byte(community)) != 1 {
		return ErrNoAccess, true
	}
	if req.Version == request.V1 && authRequired {
		return ErrGenErr, true
	}
	return ErrNoError, false
}

// nullVarbinds reconstructs the varbind list from the original request's queried OIDs with
// every value replaced by BER NULL, preserving the queried OIDs and their count — the
// error-response shape §4.G requires whenever error_status is non-zero.
func nullVarbinds(oids []oid.OID) []Varbind {
	vbs := make([]Varbind, len(oids))
	for i, o := range oids {
		vbs[i] = Varbind{OID: o}
	}
	return vbs
}

// errorResponse builds the auth-failure response: the original varbind list with NULL values,
// per §4.G.
func errorResponse(req *request.Request, errStatus int32) *Response {
	return &Response{RequestID: req.RequestID, ErrorStatus: errStatus, ErrorIndex: 0, Varbinds: nullVarbinds(req.OIDs)}
}

// lookupResult classifies the store's answer to a GET-style query against O: an exact match,
// a strict-prefix match one subid short of an instance ("no such instance"), a strict-prefix
// match that is not an instance at all ("no such object"), or no match at all ("no such
// name"/"no such object" depending on version, handled by the caller).
func lookupResult(store *mibstore.Store, o oid.OID) (entry mibstore.Entry, exception Exception, found bool) {
	e, ok := store.FindExactOrChild(o)
	if !ok {
		return mibstore.Entry{}, NoSuchObject, false
	}
	switch {
	case e.OID.Len() == o.Len()+1:
		return mibstore.Entry{}, NoSuchInstance, false
	case e.OID.Len() != o.Len():
		return mibstore.Entry{}, NoSuchObject, false
	default:
		return e, NoException, true
	}
}

func handleGet(store *mibstore.Store, req *request.Request) *Response {
	resp := &Response{RequestID: req.RequestID}
	for i, o := range req.OIDs {
		entry, exception, found := lookupResult(store, o)
		if !found {
			if req.Version == request.V1 {
				resp.ErrorStatus = ErrNoSuchName
				resp.ErrorIndex = int32(i + 1)
				resp.Varbinds = nullVarbinds(req.OIDs)
				return resp
			}
			resp.Varbinds = append(resp.Varbinds, Varbind{OID: o, Exception: exception})
			continue
		}
		resp.Varbinds = append(resp.Varbinds, Varbind{OID: entry.OID, Value: entry.Cell.Bytes()})
	}
	return resp
}

func handleGetNext(store *mibstore.Store, req *request.Request) *Response {
	resp := &Response{RequestID: req.RequestID}
	for i, o := range req.OIDs {
		entry, ok := store.FindNext(o)
		if !ok {
			if req.Version == request.V1 {
				resp.ErrorStatus = ErrNoSuchName
				resp.ErrorIndex = int32(i + 1)
				resp.Varbinds = nullVarbinds(req.OIDs)
				return resp
			}
			resp.Varbinds = append(resp.Varbinds, Varbind{OID: o, Exception: EndOfMIBView})
			continue
		}
		resp.Varbinds = append(resp.Varbinds, Varbind{OID: entry.OID, Value: entry.Cell.Bytes()})
	}
	return resp
}

// handleGetBulk implements §4.F's GETBULK algorithm: GETNEXT semantics for the first
// non_repeaters OIDs in a single pass, then up to max_repetitions further passes over the
// remaining ("repeating") variables, each pass advancing a per-variable successor cursor and
// appending either the successor or endOfMibView. The outer loop stops early once a full pass
// makes no progress on any repeating variable. The response is capped at mibstore.MaxValues
// varbinds; growing past that bound is a fatal, log-and-drop condition for the request.
func handleGetBulk(store *mibstore.Store, req *request.Request) *Response {
	resp := &Response{RequestID: req.RequestID}
	n := int(req.NonRepeaters)
	if n > len(req.OIDs) {
		n = len(req.OIDs)
	}
	for _, o := range req.OIDs[:n] {
		entry, ok := store.FindNext(o)
		if !ok {
			appendVarbind(resp, Varbind{OID: o, Exception: EndOfMIBView})
			continue
		}
		appendVarbind(resp, Varbind{OID: entry.OID, Value: entry.Cell.Bytes()})
	}

	repeating := append([]oid.OID(nil), req.OIDs[n:]...)
	done := make([]bool, len(repeating))
	for rep := uint32(0); rep < req.MaxRepetitions; rep++ {
		progressed := false
		for i := range repeating {
			if done[i] {
				continue
			}
			entry, ok := store.FindNext(repeating[i])
			if !ok {
				appendVarbind(resp, Varbind{OID: repeating[i], Exception: EndOfMIBView})
				done[i] = true
				continue
			}
			appendVarbind(resp, Varbind{OID: entry.OID, Value: entry.Cell.Bytes()})
			repeating[i] = entry.OID
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return resp
}

// appendVarbind appends vb to resp, marking a fatal table overflow with a response that the
// caller must recognise and drop rather than encode, per §4.F's hard bound.
func appendVarbind(resp *Response, vb Varbind) {
	if len(resp.Varbinds) >= mibstore.MaxValues {
		resp.ErrorStatus = errTableOverflowSentinel
		return
	}
	resp.Varbinds = append(resp.Varbinds, vb)
}

// errTableOverflowSentinel is an error-status value no real SNMP error code uses; Handle's
// caller treats its presence as "drop, do not encode" rather than a real protocol error.
const errTableOverflowSentinel = -1

// Overflowed reports whether r hit the MAX_VALUES bound while accumulating a GETBULK response
// and must be dropped rather than encoded.
func (r *Response) Overflowed() bool {
	return r.ErrorStatus == errTableOverflowSentinel
}

func handleSet(req *request.Request) *Response {
	resp := &Response{RequestID: req.RequestID, ErrorIndex: 0}
	if req.Version == request.V1 {
		resp.ErrorStatus = ErrNoSuchName
	} else {
		resp.ErrorStatus = ErrNoAccess
	}
	resp.Varbinds = nullVarbinds(req.OIDs)
	return resp
}
