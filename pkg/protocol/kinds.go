package protocol

// Version is the protocol version carried in every envelope header.
const Version = "1.0"

// MessageKind identifies an EasyCMS protocol message.
// The integer values travel on the wire and must match device firmware.
type MessageKind int

const (
	// KindDSRegisterReq is a device announcing itself (also its heartbeat).
	KindDSRegisterReq MessageKind = 0x0010

	// KindSDRegisterAck acknowledges a device registration.
	KindSDRegisterAck MessageKind = 0x0011

	// KindDSPostSnapReq carries a Base64 snapshot upload from a device.
	KindDSPostSnapReq MessageKind = 0x0012

	// KindSDPostSnapAck acknowledges a snapshot upload.
	KindSDPostSnapAck MessageKind = 0x0013

	// KindSDPushStreamReq asks a device to push media to a relay.
	KindSDPushStreamReq MessageKind = 0x0014

	// KindDSPushStreamAck is the device's reply to a push request.
	KindDSPushStreamAck MessageKind = 0x0015

	// KindSDStreamStopReq asks a device to stop pushing.
	KindSDStreamStopReq MessageKind = 0x0016

	// KindDSStreamStopAck is the device's reply to a stop request.
	KindDSStreamStopAck MessageKind = 0x0017

	// KindCSDeviceListReq asks for all registered devices.
	KindCSDeviceListReq MessageKind = 0x0018

	// KindSCDeviceListAck carries the device list.
	KindSCDeviceListAck MessageKind = 0x0019

	// KindCSDeviceInfoReq asks for a single device's channels.
	KindCSDeviceInfoReq MessageKind = 0x001a

	// KindSCDeviceInfoAck carries a device's channel details.
	KindSCDeviceInfoAck MessageKind = 0x001b

	// KindCSGetStreamReq asks the hub to broker a live stream.
	KindCSGetStreamReq MessageKind = 0x001c

	// KindSCGetStreamAck carries the playback URL (or an error).
	KindSCGetStreamAck MessageKind = 0x001d

	// KindCSFreeStreamReq releases a previously requested stream.
	KindCSFreeStreamReq MessageKind = 0x001e

	// KindSCFreeStreamAck acknowledges a stream release.
	KindSCFreeStreamAck MessageKind = 0x001f

	// KindSCException is the ack for requests the hub cannot classify.
	KindSCException MessageKind = 0x0f00
)

// String returns the protocol name of the kind.
func (k MessageKind) String() string {
	switch k {
	case KindDSRegisterReq:
		return "MSG_DS_REGISTER_REQ"
	case KindSDRegisterAck:
		return "MSG_SD_REGISTER_ACK"
	case KindDSPostSnapReq:
		return "MSG_DS_POST_SNAP_REQ"
	case KindSDPostSnapAck:
		return "MSG_SD_POST_SNAP_ACK"
	case KindSDPushStreamReq:
		return "MSG_SD_PUSH_STREAM_REQ"
	case KindDSPushStreamAck:
		return "MSG_DS_PUSH_STREAM_ACK"
	case KindSDStreamStopReq:
		return "MSG_SD_STREAM_STOP_REQ"
	case KindDSStreamStopAck:
		return "MSG_DS_STREAM_STOP_ACK"
	case KindCSDeviceListReq:
		return "MSG_CS_DEVICE_LIST_REQ"
	case KindSCDeviceListAck:
		return "MSG_SC_DEVICE_LIST_ACK"
	case KindCSDeviceInfoReq:
		return "MSG_CS_DEVICE_INFO_REQ"
	case KindSCDeviceInfoAck:
		return "MSG_SC_DEVICE_INFO_ACK"
	case KindCSGetStreamReq:
		return "MSG_CS_GET_STREAM_REQ"
	case KindSCGetStreamAck:
		return "MSG_SC_GET_STREAM_ACK"
	case KindCSFreeStreamReq:
		return "MSG_CS_FREE_STREAM_REQ"
	case KindSCFreeStreamAck:
		return "MSG_SC_FREE_STREAM_ACK"
	case KindSCException:
		return "MSG_SC_EXCEPTION"
	default:
		return "MSG_UNKNOWN"
	}
}

// Ack returns the response kind paired with a request kind.
// Kinds that are themselves acks, and unknown kinds, map to KindSCException.
func (k MessageKind) Ack() MessageKind {
	switch k {
	case KindDSRegisterReq:
		return KindSDRegisterAck
	case KindDSPostSnapReq:
		return KindSDPostSnapAck
	case KindSDPushStreamReq:
		return KindDSPushStreamAck
	case KindSDStreamStopReq:
		return KindDSStreamStopAck
	case KindCSDeviceListReq:
		return KindSCDeviceListAck
	case KindCSDeviceInfoReq:
		return KindSCDeviceInfoAck
	case KindCSGetStreamReq:
		return KindSCGetStreamAck
	case KindCSFreeStreamReq:
		return KindSCFreeStreamAck
	default:
		return KindSCException
	}
}

// AppType classifies a registered device.
type AppType int

const (
	// AppTypeCamera is a single-lens IP camera.
	AppTypeCamera AppType = 1

	// AppTypeNVR is a network video recorder with multiple channels.
	AppTypeNVR AppType = 2
)

// String returns the wire name of the app type.
func (a AppType) String() string {
	switch a {
	case AppTypeCamera:
		return "EasyCamera"
	case AppTypeNVR:
		return "EasyNVR"
	default:
		return "Unknown"
	}
}

// ParseAppType maps a wire name back to an AppType.
// Returns 0 if the name is not a known app type.
func ParseAppType(s string) AppType {
	switch s {
	case "EasyCamera":
		return AppTypeCamera
	case "EasyNVR":
		return AppTypeNVR
	default:
		return 0
	}
}

// IsValid reports whether the app type is one a device may register as.
func (a AppType) IsValid() bool {
	return a == AppTypeCamera || a == AppTypeNVR
}
