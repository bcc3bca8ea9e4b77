package protocol

import "testing"

func TestMessageKindAckPairs(t *testing.T) {
	pairs := map[MessageKind]MessageKind{
		KindDSRegisterReq:   KindSDRegisterAck,
		KindDSPostSnapReq:   KindSDPostSnapAck,
		KindSDPushStreamReq: KindDSPushStreamAck,
		KindSDStreamStopReq: KindDSStreamStopAck,
		KindCSDeviceListReq: KindSCDeviceListAck,
		KindCSDeviceInfoReq: KindSCDeviceInfoAck,
		KindCSGetStreamReq:  KindSCGetStreamAck,
		KindCSFreeStreamReq: KindSCFreeStreamAck,
	}
	for req, ack := range pairs {
		if got := req.Ack(); got != ack {
			t.Errorf("%v.Ack() = %v, want %v", req, got, ack)
		}
	}
}

func TestMessageKindAckFallback(t *testing.T) {
	if got := MessageKind(0x9999).Ack(); got != KindSCException {
		t.Errorf("unknown kind Ack() = %v, want %v", got, KindSCException)
	}
	if got := KindSDRegisterAck.Ack(); got != KindSCException {
		t.Errorf("ack kind Ack() = %v, want %v", got, KindSCException)
	}
}

func TestMessageKindString(t *testing.T) {
	if got := KindCSGetStreamReq.String(); got != "MSG_CS_GET_STREAM_REQ" {
		t.Errorf("String() = %q", got)
	}
	if got := MessageKind(0).String(); got != "MSG_UNKNOWN" {
		t.Errorf("String() = %q, want MSG_UNKNOWN", got)
	}
}

func TestAppType(t *testing.T) {
	if ParseAppType("EasyCamera") != AppTypeCamera {
		t.Error("ParseAppType(EasyCamera) failed")
	}
	if ParseAppType("EasyNVR") != AppTypeNVR {
		t.Error("ParseAppType(EasyNVR) failed")
	}
	if ParseAppType("EasyClient").IsValid() {
		t.Error("unknown app type should be invalid")
	}
	if AppTypeCamera.String() != "EasyCamera" || AppTypeNVR.String() != "EasyNVR" {
		t.Error("AppType.String() mismatch")
	}
}
