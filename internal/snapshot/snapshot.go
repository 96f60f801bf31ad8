// Package snapshot writes and reads the encrypted full-state image of the
// ticket queue.
//
// Encoding chain: CBOR state -> zstd -> AEAD (nonce || ciphertext || tag)
// -> standard base64. The file is replaced by writing a temporary sibling,
// restricting it to 0600, and renaming it over the target, so readers only
// ever see a complete snapshot.
package snapshot

import (
	"bytes"
	"encoding/base64"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/PlanetLumi/TicketSystem/internal/codec"
	"github.com/PlanetLumi/TicketSystem/internal/domain"
	apperrors "github.com/PlanetLumi/TicketSystem/pkg/util"
)

// FormatVersion is written into every snapshot.
const FormatVersion = 1

// FileMode is applied to both the temporary and the final file.
const FileMode os.FileMode = 0o600

// TempSuffix names the sibling written before the rename.
const TempSuffix = ".temp"

// Cipher is the authenticated encryption capability. The key is owned by
// the caller.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(sealed []byte) ([]byte, error)
}

// State is the serialized queue. Tickets are in heap slot order, so
// re-inserting them in order reproduces the same heap.
type State struct {
	Version int             `cbor:"version"`
	SavedAt int64           `cbor:"saved_at"`
	MaxID   int64           `cbor:"max_id"`
	Tickets []domain.Ticket `cbor:"tickets"`
	// Retired holds ids that were removed and may not be queued again.
	Retired []int64 `cbor:"retired,omitempty"`
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Encode produces the base64 text stored on disk.
func Encode(state State, c Cipher) ([]byte, error) {
	if state.Version == 0 {
		state.Version = FormatVersion
	}
	raw, err := codec.Marshal(state)
	if err != nil {
		return nil, errors.WithMessage(err, "encoding state")
	}
	sealed, err := c.Encrypt(zstdEncoder.EncodeAll(raw, nil))
	if err != nil {
		return nil, errors.WithMessage(err, "encrypting state")
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

// Decode reverses Encode. Every failure is reported as a corrupt snapshot.
func Decode(data []byte, c Cipher) (State, error) {
	sealed, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data)))
	if err != nil {
		return State{}, apperrors.NewCorruptSnapshot(errors.WithMessage(err, "decoding base64"))
	}
	compressed, err := c.Decrypt(sealed)
	if err != nil {
		return State{}, apperrors.NewCorruptSnapshot(errors.WithMessage(err, "decrypting"))
	}
	raw, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return State{}, apperrors.NewCorruptSnapshot(errors.WithMessage(err, "decompressing"))
	}
	var state State
	if err := codec.Unmarshal(raw, &state); err != nil {
		return State{}, apperrors.NewCorruptSnapshot(errors.WithMessage(err, "decoding state"))
	}
	if state.Version != FormatVersion {
		return State{}, apperrors.NewCorruptSnapshot(errors.Errorf("unsupported snapshot version %d", state.Version))
	}
	return state, nil
}

// Save encodes state and atomically replaces path with it.
func Save(fs afero.Fs, path string, state State, c Cipher) error {
	encoded, err := Encode(state, c)
	if err != nil {
		return err
	}

	temp := path + TempSuffix
	f, err := fs.OpenFile(temp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FileMode)
	if err != nil {
		return errors.WithMessage(err, "creating temporary snapshot")
	}
	if _, err = f.Write(encoded); err != nil {
		_ = f.Close()
		return errors.WithMessage(err, "writing temporary snapshot")
	} else if err = f.Sync(); err != nil {
		_ = f.Close()
		return errors.WithMessage(err, "syncing temporary snapshot")
	} else if err = f.Close(); err != nil {
		return errors.WithMessage(err, "closing temporary snapshot")
	} else if err = fs.Chmod(temp, FileMode); err != nil {
		return errors.WithMessage(err, "restricting temporary snapshot")
	} else if err = fs.Rename(temp, path); err != nil {
		return errors.WithMessage(err, "renaming temporary => snapshot")
	} else if err = fs.Chmod(path, FileMode); err != nil {
		return errors.WithMessage(err, "restricting snapshot")
	}
	return nil
}

// Load reads the snapshot at path. ok is false, with a nil error, when the
// file does not exist.
func Load(fs afero.Fs, path string, c Cipher) (state State, ok bool, err error) {
	data, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return State{}, false, nil
	} else if err != nil {
		return State{}, false, errors.WithMessagef(err, "reading snapshot %s", path)
	}
	state, err = Decode(data, c)
	if err != nil {
		return State{}, false, err
	}
	return state, true, nil
}
