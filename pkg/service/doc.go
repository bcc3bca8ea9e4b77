// Package service implements the hub's session and correlation layer.
//
// Every accepted connection becomes a Session. Devices classify their
// session by registering (the register request doubles as their
// heartbeat); clients never register and simply issue requests.
//
// The hub brokers streams by forwarding a client's request to the
// device's session as a hub-initiated push, then parking the client
// until the device's ack arrives on the device's own connection. Each
// parked request is keyed by the CSeq the hub assigned to the push,
// so replies correlate across sessions without polling.
package service
