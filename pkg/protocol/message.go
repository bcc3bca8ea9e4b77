package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Header is the envelope header present on every message.
type Header struct {
	// Version is the protocol version ("1.0").
	Version string

	// MessageType identifies the message kind.
	MessageType MessageKind

	// CSeq is the string-encoded correlation sequence number.
	CSeq string

	// ErrorNum is the result code (responses only; 0 on requests).
	ErrorNum ErrorNum

	// ErrorString is the canonical text for ErrorNum (responses only).
	ErrorString string
}

// CSeqInt returns the CSeq as an integer, or 0 if it does not parse.
func (h *Header) CSeqInt() uint32 {
	n, err := strconv.ParseUint(h.CSeq, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

// Envelope is a decoded protocol message.
//
// Body holds the generic key/value view used when building messages.
// RawBody preserves the received body bytes so callers can decode them
// into a typed struct (e.g. RegisterBody).
type Envelope struct {
	Header  Header
	Body    map[string]any
	RawBody json.RawMessage
}

// NewRequest creates an envelope for a hub-initiated request.
func NewRequest(kind MessageKind, cseq uint32) *Envelope {
	return &Envelope{
		Header: Header{
			Version:     Version,
			MessageType: kind,
			CSeq:        strconv.FormatUint(uint64(cseq), 10),
		},
		Body: make(map[string]any),
	}
}

// NewAck creates a response envelope echoing the given CSeq.
func NewAck(kind MessageKind, cseq string, num ErrorNum) *Envelope {
	return &Envelope{
		Header: Header{
			Version:     Version,
			MessageType: kind,
			CSeq:        cseq,
			ErrorNum:    num,
			ErrorString: num.String(),
		},
		Body: make(map[string]any),
	}
}

// Set assigns a body field and returns the envelope for chaining.
func (e *Envelope) Set(key string, value any) *Envelope {
	if e.Body == nil {
		e.Body = make(map[string]any)
	}
	e.Body[key] = value
	return e
}

// BodyString returns a body field as a string.
// Numeric values are formatted; missing keys return "".
func (e *Envelope) BodyString(key string) string {
	v, ok := e.Body[key]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// encoding/json decodes untyped numbers as float64.
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// ChannelInfo describes one channel of an NVR (or the single channel of a
// camera) as carried in register and device-info bodies.
type ChannelInfo struct {
	Channel string `json:"Channel"`
	Name    string `json:"Name"`
	Status  string `json:"Status"`
	SnapURL string `json:"SnapURL,omitempty"`
}

// DeviceEntry is one element of a device-list body.
type DeviceEntry struct {
	Serial       string `json:"Serial"`
	Name         string `json:"Name"`
	Tag          string `json:"Tag"`
	AppType      string `json:"AppType"`
	TerminalType string `json:"TerminalType"`
	SnapURL      string `json:"SnapURL,omitempty"`
}

// RegisterBody is the typed body of a DS_REGISTER_REQ.
type RegisterBody struct {
	Serial       string        `json:"Serial"`
	Name         string        `json:"Name"`
	Tag          string        `json:"Tag"`
	AppType      string        `json:"AppType"`
	TerminalType string        `json:"TerminalType"`
	Token        string        `json:"Token"`
	ChannelCount int           `json:"ChannelCount,string"`
	Channels     []ChannelInfo `json:"Channels"`
}

// DecodeRegisterBody decodes the envelope body as a RegisterBody.
func (e *Envelope) DecodeRegisterBody() (*RegisterBody, error) {
	if len(e.RawBody) == 0 {
		return nil, ErrNoBody
	}
	var body RegisterBody
	dec := json.NewDecoder(bytes.NewReader(e.RawBody))
	if err := dec.Decode(&body); err != nil {
		// Devices are inconsistent about encoding ChannelCount as a
		// string; retry with the numeric form before giving up.
		var alt struct {
			RegisterBody
			ChannelCount int `json:"ChannelCount"`
		}
		if err2 := json.Unmarshal(e.RawBody, &alt); err2 != nil {
			return nil, err
		}
		body = alt.RegisterBody
		body.ChannelCount = alt.ChannelCount
	}
	return &body, nil
}
