package access

import (
	"strings"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
)

// Command names an operator action gated by clearance.
type Command string

const (
	CommandAddTicket     Command = "ADD_TICKET"
	CommandViewMyTickets Command = "VIEW_MY_TICKETS"
	CommandUpdateTicket  Command = "UPDATE_TICKET"
	CommandDeleteTicket  Command = "DELETE_TICKET"
	CommandAssignTicket  Command = "ASSIGN_TICKET"
	CommandSaveSnapshot  Command = "SAVE_SNAPSHOT"
	CommandTruncateLog   Command = "TRUNCATE_LOG"
	CommandViewAuditLog  Command = "VIEW_AUDIT_LOG"
)

var requiredLevels = map[Command]domain.SecurityLevel{
	CommandAddTicket:     domain.SecurityLevelBase,
	CommandViewMyTickets: domain.SecurityLevelBase,
	CommandUpdateTicket:  domain.SecurityLevelTopLevel,
	CommandDeleteTicket:  domain.SecurityLevelTopLevel,
	CommandAssignTicket:  domain.SecurityLevelTopLevel,
	CommandSaveSnapshot:  domain.SecurityLevelAdmin,
	CommandTruncateLog:   domain.SecurityLevelAdmin,
	CommandViewAuditLog:  domain.SecurityLevelAdmin,
}

// RequiredLevel returns the clearance needed for command. Unknown commands
// require BASE.
func RequiredLevel(command Command) domain.SecurityLevel {
	if lvl, ok := requiredLevels[Command(strings.ToUpper(string(command)))]; ok {
		return lvl
	}
	return domain.SecurityLevelBase
}

// Allowed reports whether caller may run command.
func Allowed(caller domain.Caller, command Command) bool {
	return HasPrivilege(caller, RequiredLevel(command))
}
