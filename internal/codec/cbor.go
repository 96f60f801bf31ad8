// Package codec is the CBOR dialect for persisted queue state.
//
// Encoding is Core Deterministic (RFC 8949 §4.2), so one queue state always
// yields the same bytes. Enum types that implement encoding.TextMarshaler,
// such as domain.SecurityLevel, are written as their names rather than
// their ordinals, which keeps snapshots readable if the enum is reordered.
package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// maxTickets bounds array lengths accepted by Unmarshal. An unbounded queue
// may hold more than the library default.
const maxTickets = 1 << 24

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.TextMarshaler = cbor.TextMarshalerTextString
	mode, err := opts.EncMode()
	if err != nil {
		panic("codec: building encoder: " + err.Error())
	}
	return mode
}

func mustDecMode() cbor.DecMode {
	mode, err := cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
		// A snapshot with a repeated key was not written by Marshal.
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: maxTickets,
	}.DecMode()
	if err != nil {
		panic("codec: building decoder: " + err.Error())
	}
	return mode
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v. Unknown fields are ignored so older
// binaries can read newer snapshots; duplicate keys are rejected.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
