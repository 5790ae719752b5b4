package ldap

import (
	"fmt"
)

// http://www.iana.org/assignments/ldap-parameters/ldap-parameters.xml

const protocolVersion = 3

// Application tags for the operations this client speaks. Responses always
// use the request tag plus one, except search which fans out into entry,
// done and reference PDUs.
const (
	ApplicationBindRequest           = 0
	ApplicationBindResponse          = 1
	ApplicationUnbindRequest         = 2
	ApplicationSearchRequest         = 3
	ApplicationSearchResultEntry     = 4
	ApplicationSearchResultDone      = 5
	ApplicationModifyRequest         = 6
	ApplicationModifyResponse        = 7
	ApplicationAddRequest            = 8
	ApplicationAddResponse           = 9
	ApplicationDelRequest            = 10
	ApplicationDelResponse           = 11
	ApplicationModifyDNRequest       = 12
	ApplicationModifyDNResponse      = 13
	ApplicationSearchResultReference = 19
)

var ApplicationMap = map[uint8]string{
	ApplicationBindRequest:           "Bind Request",
	ApplicationBindResponse:          "Bind Response",
	ApplicationUnbindRequest:         "Unbind Request",
	ApplicationSearchRequest:         "Search Request",
	ApplicationSearchResultEntry:     "Search Result Entry",
	ApplicationSearchResultDone:      "Search Result Done",
	ApplicationModifyRequest:         "Modify Request",
	ApplicationModifyResponse:        "Modify Response",
	ApplicationAddRequest:            "Add Request",
	ApplicationAddResponse:           "Add Response",
	ApplicationDelRequest:            "Del Request",
	ApplicationDelResponse:           "Del Response",
	ApplicationModifyDNRequest:       "Modify DN Request",
	ApplicationModifyDNResponse:      "Modify DN Response",
	ApplicationSearchResultReference: "Search Result Reference",
}

type ResultCode int

const (
	ResultSuccess                      ResultCode = 0
	ResultOperationsError              ResultCode = 1
	ResultProtocolError                ResultCode = 2
	ResultTimeLimitExceeded            ResultCode = 3
	ResultSizeLimitExceeded            ResultCode = 4
	ResultUnavailableCriticalExtension ResultCode = 12
	ResultNoSuchAttribute              ResultCode = 16
	ResultUndefinedAttributeType       ResultCode = 17
	ResultAttributeOrValueExists       ResultCode = 20
	ResultNoSuchObject                 ResultCode = 32
	ResultInvalidDNSyntax              ResultCode = 34
	ResultInappropriateAuthentication  ResultCode = 48
	ResultInvalidCredentials           ResultCode = 49
	ResultInsufficientAccessRights     ResultCode = 50
	ResultBusy                         ResultCode = 51
	ResultUnavailable                  ResultCode = 52
	ResultUnwillingToPerform           ResultCode = 53
	ResultObjectClassViolation         ResultCode = 65
	ResultEntryAlreadyExists           ResultCode = 68
)

var ResultCodeMap = map[ResultCode]string{
	ResultSuccess:                      "success",
	ResultOperationsError:              "operationsError",
	ResultProtocolError:                "protocolError",
	ResultTimeLimitExceeded:            "timeLimitExceeded",
	ResultSizeLimitExceeded:            "sizeLimitExceeded",
	ResultUnavailableCriticalExtension: "unavailableCriticalExtension",
	ResultNoSuchAttribute:              "noSuchAttribute",
	ResultUndefinedAttributeType:       "undefinedAttributeType",
	ResultAttributeOrValueExists:       "attributeOrValueExists",
	ResultNoSuchObject:                 "noSuchObject",
	ResultInvalidDNSyntax:              "invalidDNSyntax",
	ResultInappropriateAuthentication:  "inappropriateAuthentication",
	ResultInvalidCredentials:           "invalidCredentials",
	ResultInsufficientAccessRights:     "insufficientAccessRights",
	ResultBusy:                         "busy",
	ResultUnavailable:                  "unavailable",
	ResultUnwillingToPerform:           "unwillingToPerform",
	ResultObjectClassViolation:         "objectClassViolation",
	ResultEntryAlreadyExists:           "entryAlreadyExists",
}

func (c ResultCode) String() string {
	if s := ResultCodeMap[c]; s != "" {
		return s
	}
	return fmt.Sprintf("unknown result (%d)", int(c))
}

// ProtocolError indicates a decoded PDU had an unexpected application tag
// or a malformed internal structure for its tag. It is fatal to the
// connection and never retried: something on the wire does not speak the
// protocol this client expects.
type ProtocolError string

func (e ProtocolError) Error() string {
	return fmt.Sprintf("ldap: protocol error: %s", string(e))
}

// ArgumentError is returned for a missing or invalid request argument.
// It is detected before any I/O takes place.
type ArgumentError string

func (e ArgumentError) Error() string {
	return fmt.Sprintf("ldap: invalid argument: %s", string(e))
}
