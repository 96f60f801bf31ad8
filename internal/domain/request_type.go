package domain

import (
	"fmt"
	"strings"
)

// RequestType classifies a ticket and supplies its default urgency and
// visibility.
type RequestType string

const (
	RequestTypeSecurity        RequestType = "SECURITY"
	RequestTypeNetwork         RequestType = "NETWORK"
	RequestTypeSoftwareInstall RequestType = "SOFTWARE_INSTALL"
	RequestTypeNewPC           RequestType = "NEW_PC"
	RequestTypeOther           RequestType = "OTHER"
)

type requestDefaults struct {
	priority int
	level    SecurityLevel
	label    string
}

var requestTypeDefaults = map[RequestType]requestDefaults{
	RequestTypeSecurity:        {1, SecurityLevelTopLevel, "Security issue (password reset, phishing, ...)"},
	RequestTypeNetwork:         {2, SecurityLevelBase, "Network outage / connectivity"},
	RequestTypeSoftwareInstall: {3, SecurityLevelBase, "Software / app installation"},
	RequestTypeNewPC:           {4, SecurityLevelBase, "New computer configuration"},
	RequestTypeOther:           {4, SecurityLevelBase, "Anything else"},
}

// RequestTypes lists the known types in menu order.
func RequestTypes() []RequestType {
	return []RequestType{
		RequestTypeSecurity,
		RequestTypeNetwork,
		RequestTypeSoftwareInstall,
		RequestTypeNewPC,
		RequestTypeOther,
	}
}

// ParseRequestType matches a type name case-insensitively.
func ParseRequestType(s string) (RequestType, error) {
	rt := RequestType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := requestTypeDefaults[rt]; !ok {
		return "", fmt.Errorf("unknown request type %q", s)
	}
	return rt, nil
}

func (r RequestType) defaults() requestDefaults {
	if d, ok := requestTypeDefaults[r]; ok {
		return d
	}
	return requestTypeDefaults[RequestTypeOther]
}

// DefaultPriority is the priority used when no override is given.
func (r RequestType) DefaultPriority() int { return r.defaults().priority }

// DefaultSecurityLevel is the visibility used when no override is given.
func (r RequestType) DefaultSecurityLevel() SecurityLevel { return r.defaults().level }

// Label is a human readable description.
func (r RequestType) Label() string { return r.defaults().label }
