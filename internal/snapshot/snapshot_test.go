package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
	"github.com/PlanetLumi/TicketSystem/internal/sealed"
	apperrors "github.com/PlanetLumi/TicketSystem/pkg/util"
)

func newCipher(t *testing.T) *sealed.AEAD {
	t.Helper()
	key, err := sealed.GenerateKey()
	require.NoError(t, err)
	c, err := sealed.New(key)
	require.NoError(t, err)
	return c
}

func sampleState() State {
	return State{
		SavedAt: 1744794000,
		MaxID:   9,
		Tickets: []domain.Ticket{
			{ID: 2, Title: "Printer", Creator: "alice", Priority: 1, SecurityLevel: domain.SecurityLevelBase, Status: domain.TicketStatusOpen, Type: domain.RequestTypeOther},
			{ID: 9, Title: "Phish, again", Creator: "bob", Owner: "carol", Priority: 3, SecurityLevel: domain.SecurityLevelTopLevel, Status: domain.TicketStatusClaimed, Type: domain.RequestTypeSecurity},
		},
		Retired: []int64{3, 5},
	}
}

type failingCipher struct{}

func (failingCipher) Encrypt([]byte) ([]byte, error) { return nil, errors.New("no key") }
func (failingCipher) Decrypt([]byte) ([]byte, error) { return nil, errors.New("no key") }

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := newCipher(t)
	encoded, err := Encode(sampleState(), c)
	require.NoError(t, err)

	state, err := Decode(encoded, c)
	require.NoError(t, err)

	want := sampleState()
	want.Version = FormatVersion
	assert.Equal(t, want, state)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	c := newCipher(t)

	_, err := Decode([]byte("!!not base64!!"), c)
	assert.ErrorIs(t, err, apperrors.ErrCorruptSnapshot)

	encoded, err := Encode(sampleState(), newCipher(t))
	require.NoError(t, err)
	_, err = Decode(encoded, c)
	assert.ErrorIs(t, err, apperrors.ErrCorruptSnapshot, "a different key must not decrypt")
}

func TestSaveWritesRestrictedFileAndRemovesTemp(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newCipher(t)

	require.NoError(t, Save(fs, "tickets.snapshot", sampleState(), c))

	info, err := fs.Stat("tickets.snapshot")
	require.NoError(t, err)
	assert.Equal(t, FileMode, info.Mode().Perm())

	_, err = fs.Stat("tickets.snapshot" + TempSuffix)
	assert.True(t, os.IsNotExist(err))

	state, ok, err := Load(fs, "tickets.snapshot", c)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleState().Tickets, state.Tickets)
}

func TestSaveReplacesExistingSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newCipher(t)
	require.NoError(t, Save(fs, "tickets.snapshot", sampleState(), c))

	next := sampleState()
	next.Tickets = next.Tickets[:1]
	require.NoError(t, Save(fs, "tickets.snapshot", next, c))

	state, ok, err := Load(fs, "tickets.snapshot", c)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, state.Tickets, 1)
}

func TestSaveFailureLeavesPreviousSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newCipher(t)
	require.NoError(t, Save(fs, "tickets.snapshot", sampleState(), c))

	err := Save(fs, "tickets.snapshot", State{}, failingCipher{})
	require.Error(t, err)

	state, ok, err := Load(fs, "tickets.snapshot", c)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, state.Tickets, 2)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	_, ok, err := Load(afero.NewMemMapFs(), "absent.snapshot", newCipher(t))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveOnDiskPermissions(t *testing.T) {
	fs := afero.NewOsFs()
	path := filepath.Join(t.TempDir(), "tickets.snapshot")
	c := newCipher(t)

	require.NoError(t, Save(fs, path, sampleState(), c))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
