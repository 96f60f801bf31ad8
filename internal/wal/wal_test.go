package wal

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
)

func fixedClock() time.Time {
	return time.Date(2025, time.April, 16, 9, 0, 0, 0, time.Local)
}

func mustTicket(t *testing.T, id int64, title string, priority int, level domain.SecurityLevel) domain.Ticket {
	t.Helper()
	tk, err := domain.NewTicketWithID(id, title, "bob", priority, level)
	require.NoError(t, err)
	return tk
}

func readAll(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(b)
}

func TestSanitizeRoundTrip(t *testing.T) {
	assert.Equal(t, "a;b c d", Sanitize("a,b\r\nc\nd"))
	assert.Equal(t, "a,b c d", Unsanitize(Sanitize("a,b\r\nc\nd")))
	// A literal semicolon does not survive.
	assert.Equal(t, "x,y", Unsanitize(Sanitize("x;y")))
}

func TestFormatLineShapes(t *testing.T) {
	tk := mustTicket(t, 200, "Email, outage", 2, domain.SecurityLevelBase)

	add := Format(Record{Timestamp: fixedClock(), Op: OpAdd, Ticket: tk})
	assert.Equal(t, "2025-04-16T09:00:00,ADD,200,Email; outage,bob,2,,BASE,OTHER", add)

	tk.Owner = "carol"
	tk.Priority = 1
	tk.Type = domain.RequestTypeNetwork
	upd := Format(Record{Timestamp: fixedClock(), Op: OpUpdate, Ticket: tk})
	assert.Equal(t, "2025-04-16T09:00:00,UPDATE,200,Email; outage,bob,1,carol,BASE,NETWORK", upd)

	del := Format(Record{Timestamp: fixedClock(), Op: OpDelete, Ticket: domain.Ticket{ID: 200}})
	assert.Equal(t, "2025-04-16T09:00:00,DELETE,200", del)
}

func TestParseRestoresTicket(t *testing.T) {
	rec, ok, err := Parse("2025-04-16T09:05:00,UPDATE,200,Email; outage,bob,1,carol,ADMIN", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, OpUpdate, rec.Op)
	assert.Equal(t, int64(200), rec.Ticket.ID)
	assert.Equal(t, "Email, outage", rec.Ticket.Title)
	assert.Equal(t, 1, rec.Ticket.Priority)
	assert.Equal(t, "carol", rec.Ticket.Owner)
	assert.Equal(t, domain.TicketStatusClaimed, rec.Ticket.Status)
	assert.Equal(t, domain.SecurityLevelAdmin, rec.Ticket.SecurityLevel)
	assert.Equal(t, domain.RequestTypeOther, rec.Ticket.Type, "eight-column lines default to OTHER")

	rec, ok, err = Parse("2025-04-16T09:05:00,ADD,201,Phish,bob,1,,TOPLEVEL,SECURITY", 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.RequestTypeSecurity, rec.Ticket.Type)
}

func TestParseRejectsMalformedLines(t *testing.T) {
	for _, line := range []string{
		"MALFORMED LINE",
		"2025-04-16T09:00:00,ADD",
		"2025-04-16T09:00:00,ADD,7,short,bob",
		"2025-04-16T09:00:00,ADD,seven,t,bob,1,,BASE",
		"2025-04-16T09:00:00,ADD,7,t,bob,high,,BASE",
		"2025-04-16T09:00:00,ADD,7,t,bob,1,,ROOT",
		"2025-04-16T09:00:00,ADD,7,t,bob,1,,BASE,PRINTER",
		"2025-04-16T09:00:00,DELETE,x",
	} {
		_, ok, err := Parse(line, 3)
		assert.False(t, ok, line)
		var malformed *MalformedLineError
		assert.ErrorAs(t, err, &malformed, line)
	}

	_, ok, err := Parse("2025-04-16T09:00:00,TRUNCATE,1", 1)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestAppenderWritesOneLinePerCall(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, err := OpenAppender(fs, "tickets.log", WithClock(fixedClock))
	require.NoError(t, err)

	tk := mustTicket(t, 1, "One", 1, domain.SecurityLevelBase)
	require.NoError(t, a.AppendAdd(tk))
	tk.Priority = 9
	require.NoError(t, a.AppendUpdate(tk))
	require.NoError(t, a.AppendDelete(1))
	require.NoError(t, a.Close())

	lines := strings.Split(strings.TrimSuffix(readAll(t, fs, "tickets.log"), "\n"), "\n")
	assert.Equal(t, []string{
		"2025-04-16T09:00:00,ADD,1,One,bob,1,,BASE,OTHER",
		"2025-04-16T09:00:00,UPDATE,1,One,bob,9,,BASE,OTHER",
		"2025-04-16T09:00:00,DELETE,1",
	}, lines)

	assert.Error(t, a.AppendDelete(2), "closed appender must refuse writes")
}

func TestAppenderAppendsToExistingLog(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "tickets.log", []byte("2025-04-16T09:00:00,DELETE,4\n"), 0o600))

	a, err := OpenAppender(fs, "tickets.log", WithClock(fixedClock))
	require.NoError(t, err)
	require.NoError(t, a.AppendDelete(5))
	require.NoError(t, a.Close())

	assert.Equal(t, "2025-04-16T09:00:00,DELETE,4\n2025-04-16T09:00:00,DELETE,5\n", readAll(t, fs, "tickets.log"))
}

func TestReplayFoldsAddUpdateDelete(t *testing.T) {
	log := strings.Join([]string{
		"2025-04-16T09:00:00,ADD,1,One,alice,1,,BASE",
		"2025-04-16T09:00:01,ADD,2,Two,bob,2,,BASE",
		"2025-04-16T09:00:02,UPDATE,1,One,alice,9,,BASE",
		"2025-04-16T09:00:03,DELETE,2",
		"MALFORMED LINE",
		"",
	}, "\n")

	result, err := Replay(strings.NewReader(log), nil)
	require.NoError(t, err)

	require.Len(t, result.Tickets, 1)
	assert.Equal(t, int64(1), result.Tickets[0].ID)
	assert.Equal(t, 9, result.Tickets[0].Priority)
	assert.Equal(t, int64(2), result.MaxID, "deleted ids still count toward the high-water mark")
	assert.Equal(t, []int64{2}, result.Deleted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 4, result.Applied)
}

func TestReplayReportsDeletedIDsNotLive(t *testing.T) {
	log := strings.Join([]string{
		"2025-04-16T09:00:00,ADD,4,Four,alice,1,,BASE",
		"2025-04-16T09:00:01,ADD,2,Two,alice,1,,BASE",
		"2025-04-16T09:00:02,DELETE,4",
		"2025-04-16T09:00:03,DELETE,2",
		"2025-04-16T09:00:04,ADD,2,Two again,alice,1,,BASE",
		"2025-04-16T09:00:05,DELETE,9",
	}, "\n")

	result, err := Replay(strings.NewReader(log), nil)
	require.NoError(t, err)
	require.Len(t, result.Tickets, 1)
	assert.Equal(t, int64(2), result.Tickets[0].ID)
	assert.Equal(t, []int64{4, 9}, result.Deleted)
	assert.Equal(t, int64(9), result.MaxID)
}

func TestReplayOnlyMalformedYieldsEmpty(t *testing.T) {
	result, err := Replay(strings.NewReader("MALFORMED LINE\n"), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Tickets)
	assert.Equal(t, int64(0), result.MaxID)
	assert.Equal(t, 1, result.Skipped)
}

func TestReplayFileMissingIsEmpty(t *testing.T) {
	result, err := ReplayFile(afero.NewMemMapFs(), "absent.log", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Tickets)
}

func TestAppendThenReplayRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, err := OpenAppender(fs, "tickets.log")
	require.NoError(t, err)

	first := mustTicket(t, 3, "VPN, broken\nagain", 4, domain.SecurityLevelTopLevel)
	first.Type = domain.RequestTypeSecurity
	second := mustTicket(t, 8, "Printer", 2, domain.SecurityLevelBase)
	second.Type = domain.RequestTypeNewPC
	require.NoError(t, a.AppendAdd(first))
	require.NoError(t, a.AppendAdd(second))
	second.Owner = "carol"
	second.Status = domain.TicketStatusClaimed
	require.NoError(t, a.AppendUpdate(second))
	require.NoError(t, a.Close())

	result, err := ReplayFile(fs, "tickets.log", nil)
	require.NoError(t, err)
	require.Len(t, result.Tickets, 2)

	first.Title = "VPN, broken again"
	assert.Equal(t, first, result.Tickets[0])
	assert.Equal(t, second, result.Tickets[1])
	assert.Equal(t, int64(8), result.MaxID)
}
