package protocol

// JSON field names used by the envelope. The capitalized forms appear in
// message bodies; the lowercase forms are REST query parameter names.
const (
	TagRoot        = "EasyDarwin"
	TagHeader      = "Header"
	TagBody        = "Body"
	TagVersion     = "Version"
	TagMessageType = "MessageType"
	TagCSeq        = "CSeq"
	TagErrorNum    = "ErrorNum"
	TagErrorString = "ErrorString"

	TagSerial       = "Serial"
	TagName         = "Name"
	TagTag          = "Tag"
	TagAppType      = "AppType"
	TagTerminalType = "TerminalType"
	TagToken        = "Token"
	TagChannel      = "Channel"
	TagChannelCount = "ChannelCount"
	TagChannels     = "Channels"
	TagStatus       = "Status"
	TagSnapURL      = "SnapURL"
	TagURL          = "URL"
	TagProtocol     = "Protocol"
	TagReserve      = "Reserve"
	TagStreamID     = "StreamID"
	TagServerAddr   = "EasyDarwinServerAddr"
	TagServerPort   = "EasyDarwinServerPort"
	TagDeviceCount  = "DeviceCount"
	TagDevices      = "Devices"
	TagSessionID    = "SessionID"
	TagImage        = "Image"
	TagType         = "Type"
	TagTime         = "Time"

	// REST query parameter names.
	ParamDevice       = "device"
	ParamChannel      = "channel"
	ParamProtocol     = "protocol"
	ParamReserve      = "reserve"
	ParamAppType      = "AppType"
	ParamTerminalType = "TerminalType"
)
