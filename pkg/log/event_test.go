package log

import (
	"testing"
	"time"

	"github.com/easydarwin/easycms-go/pkg/protocol"
)

func TestEncodeDecodeEvent(t *testing.T) {
	now := time.Now().Truncate(0)
	event := Event{
		Timestamp: now,
		SessionID: "sess-123",
		Direction: DirectionIn,
		Layer:     LayerWire,
		Category:  CategoryMessage,
		Serial:    "CAM001",
		Message: &MessageEvent{
			Kind: protocol.KindDSRegisterReq,
			CSeq: "1",
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}

	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	if got.SessionID != event.SessionID {
		t.Errorf("SessionID = %q, want %q", got.SessionID, event.SessionID)
	}
	if got.Serial != "CAM001" {
		t.Errorf("Serial = %q, want CAM001", got.Serial)
	}
	if got.Message == nil || got.Message.Kind != protocol.KindDSRegisterReq {
		t.Errorf("Message = %+v", got.Message)
	}
	if !got.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, now)
	}
}

func TestEnumStrings(t *testing.T) {
	if DirectionIn.String() != "IN" || DirectionOut.String() != "OUT" {
		t.Error("Direction.String() mismatch")
	}
	if LayerTransport.String() != "TRANSPORT" || LayerService.String() != "SERVICE" {
		t.Error("Layer.String() mismatch")
	}
	if CategoryState.String() != "STATE" || CategoryError.String() != "ERROR" {
		t.Error("Category.String() mismatch")
	}
	if StateEntitySession.String() != "SESSION" || StateEntityStream.String() != "STREAM" {
		t.Error("StateEntity.String() mismatch")
	}
}
