package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Codec errors.
var (
	// ErrNotEnvelope indicates the payload is not an EasyDarwin envelope.
	ErrNotEnvelope = errors.New("payload is not a protocol envelope")

	// ErrNoBody indicates the envelope carries no body.
	ErrNoBody = errors.New("envelope has no body")
)

// flexString decodes a JSON value that may arrive as a string or a number.
// Device firmware is not consistent about quoting CSeq.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type headerJSON struct {
	Version     string     `json:"Version,omitempty"`
	MessageType int        `json:"MessageType"`
	CSeq        flexString `json:"CSeq,omitempty"`
	ErrorNum    int        `json:"ErrorNum,omitempty"`
	ErrorString string     `json:"ErrorString,omitempty"`
}

type envelopeJSON struct {
	Root rootJSON `json:"EasyDarwin"`
}

type rootJSON struct {
	Header headerJSON      `json:"Header"`
	Body   json.RawMessage `json:"Body,omitempty"`
}

// Decode parses a JSON envelope.
func Decode(data []byte) (*Envelope, error) {
	var wire envelopeJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if wire.Root.Header == (headerJSON{}) && len(wire.Root.Body) == 0 {
		return nil, ErrNotEnvelope
	}

	env := &Envelope{
		Header: Header{
			Version:     wire.Root.Header.Version,
			MessageType: MessageKind(wire.Root.Header.MessageType),
			CSeq:        string(wire.Root.Header.CSeq),
			ErrorNum:    ErrorNum(wire.Root.Header.ErrorNum),
			ErrorString: wire.Root.Header.ErrorString,
		},
		RawBody: wire.Root.Body,
	}

	if len(wire.Root.Body) > 0 {
		body := make(map[string]any)
		if err := json.Unmarshal(wire.Root.Body, &body); err != nil {
			return nil, fmt.Errorf("failed to decode envelope body: %w", err)
		}
		env.Body = body
	} else {
		env.Body = make(map[string]any)
	}

	return env, nil
}

// Encode serializes an envelope to JSON.
func Encode(env *Envelope) ([]byte, error) {
	wire := envelopeJSON{
		Root: rootJSON{
			Header: headerJSON{
				Version:     env.Header.Version,
				MessageType: int(env.Header.MessageType),
				CSeq:        flexString(env.Header.CSeq),
				ErrorNum:    int(env.Header.ErrorNum),
				ErrorString: env.Header.ErrorString,
			},
		},
	}

	if len(env.Body) > 0 {
		body, err := json.Marshal(env.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode envelope body: %w", err)
		}
		wire.Root.Body = body
	}

	data, err := json.Marshal(&wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// PeekMessageKind extracts the message kind without decoding the body.
// Used by the dispatcher to route before committing to a full decode.
func PeekMessageKind(data []byte) (MessageKind, error) {
	var wire struct {
		Root struct {
			Header struct {
				MessageType int `json:"MessageType"`
			} `json:"Header"`
		} `json:"EasyDarwin"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return 0, fmt.Errorf("failed to peek message kind: %w", err)
	}
	if wire.Root.Header.MessageType == 0 {
		return 0, ErrNotEnvelope
	}
	return MessageKind(wire.Root.Header.MessageType), nil
}

// FormatCSeq renders a CSeq counter value for the wire.
func FormatCSeq(cseq uint32) string {
	return strconv.FormatUint(uint64(cseq), 10)
}
