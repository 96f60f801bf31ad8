package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
)

func ticketAt(level domain.SecurityLevel, title string) domain.Ticket {
	return domain.Ticket{ID: 1, Title: title, SecurityLevel: level}
}

func TestVisibleComparesOrdinals(t *testing.T) {
	levels := []domain.SecurityLevel{
		domain.SecurityLevelBase,
		domain.SecurityLevelAdmin,
		domain.SecurityLevelTopLevel,
	}
	for _, ticketLevel := range levels {
		for _, callerLevel := range levels {
			want := int(ticketLevel) <= int(callerLevel)
			assert.Equal(t, want, Visible(ticketAt(ticketLevel, "x"), callerLevel),
				"ticket=%s caller=%s", ticketLevel, callerLevel)
		}
	}
}

func TestMatchesTitleIsCaseInsensitive(t *testing.T) {
	tk := ticketAt(domain.SecurityLevelBase, "Secret VPN outage")
	assert.True(t, MatchesTitle(tk, "sec"))
	assert.True(t, MatchesTitle(tk, "vpn OUT"))
	assert.True(t, MatchesTitle(tk, ""))
	assert.False(t, MatchesTitle(tk, "printer"))
}

func TestRequiredLevel(t *testing.T) {
	assert.Equal(t, domain.SecurityLevelBase, RequiredLevel(CommandAddTicket))
	assert.Equal(t, domain.SecurityLevelTopLevel, RequiredLevel("delete_ticket"))
	assert.Equal(t, domain.SecurityLevelAdmin, RequiredLevel(CommandSaveSnapshot))
	assert.Equal(t, domain.SecurityLevelBase, RequiredLevel("SOMETHING_ELSE"))
}

func TestAllowed(t *testing.T) {
	admin := domain.Caller{Username: "ann", Level: domain.SecurityLevelAdmin}
	base := domain.Caller{Username: "bob", Level: domain.SecurityLevelBase}

	assert.True(t, Allowed(admin, CommandSaveSnapshot))
	assert.False(t, Allowed(admin, CommandDeleteTicket))
	assert.False(t, Allowed(base, CommandSaveSnapshot))
	assert.True(t, Allowed(base, CommandAddTicket))
}
