package ldap

import "fmt"

// Result is the directory's verdict on one operation: the numeric result
// code plus the matched DN and diagnostic message from the response PDU.
// A non-zero code is a normal directory-level refusal, not a protocol
// failure, and is never surfaced as an error by the executor methods.
type Result struct {
	Code      ResultCode
	MatchedDN string
	Message   string
}

// OK reports whether the directory accepted the operation.
func (r *Result) OK() bool {
	return r.Code == ResultSuccess
}

func (r *Result) String() string {
	if r.Message == "" {
		return r.Code.String()
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

// parseResult interprets a response PDU that follows the common
// LDAPResult shape: resultCode, matchedDN, diagnosticMessage. The
// caller names the application tag it expects; anything else is a
// protocol violation.
func parseResult(pkt *Packet, tag int) (*Result, error) {
	if pkt.Class != ClassApplication || pkt.Tag != tag {
		return nil, ProtocolError(fmt.Sprintf("expected %s, got class %d tag %d",
			ApplicationMap[uint8(tag)], pkt.Class, pkt.Tag))
	}
	if len(pkt.Items) < 3 {
		return nil, ProtocolError("result should have at least 3 values")
	}
	code, ok := pkt.Items[0].Int()
	if !ok {
		return nil, ProtocolError("invalid code in result")
	}
	res := &Result{Code: ResultCode(code)}
	if res.MatchedDN, ok = pkt.Items[1].Str(); !ok {
		return nil, ProtocolError("invalid matchedDN in result")
	}
	if res.Message, ok = pkt.Items[2].Str(); !ok {
		return nil, ProtocolError("invalid message in result")
	}
	return res, nil
}
