// Package access decides what a caller may see and do. Every visibility
// check in the queue goes through Visible so poll, list and search cannot
// drift apart.
package access

import (
	"strings"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
)

// Visible reports whether a caller holding level may see t.
func Visible(t domain.Ticket, level domain.SecurityLevel) bool {
	return t.SecurityLevel <= level
}

// MatchesTitle reports whether query is a case-insensitive substring of the
// ticket title. An empty query matches everything.
func MatchesTitle(t domain.Ticket, query string) bool {
	return strings.Contains(strings.ToLower(t.Title), strings.ToLower(query))
}

// HasPrivilege reports whether caller holds at least the required level.
func HasPrivilege(caller domain.Caller, required domain.SecurityLevel) bool {
	return caller.Level.AtLeast(required)
}
