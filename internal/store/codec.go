package store

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"

	"github.com/DTPriya20/click-gait/pkg/models"
)

// encMode writes deterministic CBOR with times as float seconds carrying
// microseconds, which keeps sealed cookies small.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeUnixMicro
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalCBOR encodes v with the store's CBOR settings.
func MarshalCBOR(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// UnmarshalCBOR decodes CBOR data into v.
func UnmarshalCBOR(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeStateJSON encodes a state for text columns.
func EncodeStateJSON(state *models.SessionState) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode session state: %w", err)
	}
	return data, nil
}

// DecodeStateJSON decodes a state written by EncodeStateJSON.
func DecodeStateJSON(data []byte) (*models.SessionState, error) {
	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	normalize(&state)
	return &state, nil
}

// EncodeStateCBOR encodes a state for binary stores.
func EncodeStateCBOR(state *models.SessionState) ([]byte, error) {
	data, err := MarshalCBOR(state)
	if err != nil {
		return nil, fmt.Errorf("encode session state: %w", err)
	}
	return data, nil
}

// DecodeStateCBOR decodes a state written by EncodeStateCBOR.
func DecodeStateCBOR(data []byte) (*models.SessionState, error) {
	var state models.SessionState
	if err := UnmarshalCBOR(data, &state); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	normalize(&state)
	return &state, nil
}

func normalize(state *models.SessionState) {
	if state.Durations == nil {
		state.Durations = make(map[string]float64)
	}
}
