// Package protocol defines the EasyCMS JSON wire format.
//
// Every message is a JSON envelope carried in an HTTP/1.1 body:
//
//	{"EasyDarwin":{"Header":{...},"Body":{...}}}
//
// The header identifies the message kind (an integer), the per-session
// CSeq used for request/response correlation, and - on responses - the
// error number and string. Body keys depend on the message kind.
//
// # Message Kinds
//
// Kinds are named by direction: DS (device to server), SD (server to
// device), CS (client to server), SC (server to client). Requests and
// acks come in pairs; SC_EXCEPTION is the ack for unrecognized requests.
//
// # CSeq
//
// CSeq is a string-encoded integer that increases monotonically per
// session. A device echoes the CSeq of a server-initiated request in its
// ack, which is how the hub routes the ack back to the waiting client.
package protocol
