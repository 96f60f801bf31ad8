package domain

import (
	"fmt"
	"strings"
)

// SecurityLevel is an ordered clearance. On a ticket it is the minimum caller
// level required to see it; on a caller it is the clearance held.
type SecurityLevel int

const (
	SecurityLevelBase SecurityLevel = iota
	SecurityLevelAdmin
	SecurityLevelTopLevel
)

var securityLevelNames = [...]string{"BASE", "ADMIN", "TOPLEVEL"}

// Valid reports whether l is one of the defined levels.
func (l SecurityLevel) Valid() bool {
	return l >= SecurityLevelBase && l <= SecurityLevelTopLevel
}

func (l SecurityLevel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("SecurityLevel(%d)", int(l))
	}
	return securityLevelNames[l]
}

// AtLeast reports whether l's ordinal is >= required's.
func (l SecurityLevel) AtLeast(required SecurityLevel) bool {
	return l >= required
}

// ParseSecurityLevel accepts the upper-case names used in the log file.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, candidate := range securityLevelNames {
		if candidate == name {
			return SecurityLevel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown security level %q", s)
}

func (l SecurityLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid security level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *SecurityLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseSecurityLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Caller is the identity on whose behalf a queue operation runs. It replaces
// any process-wide "current user" state: every operation that needs the
// caller's identity receives it explicitly.
type Caller struct {
	Username string
	Level    SecurityLevel
}

// Name returns the username, or "anonymous" when unset.
func (c Caller) Name() string {
	if c.Username == "" {
		return "anonymous"
	}
	return c.Username
}
