package service

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/easydarwin/easycms-go/pkg/log"
	"github.com/easydarwin/easycms-go/pkg/protocol"
	"github.com/easydarwin/easycms-go/pkg/registry"
	"github.com/easydarwin/easycms-go/pkg/transport"
)

// SessionKind classifies a session once its first message reveals
// what the peer is.
type SessionKind int

const (
	// SessionUnclassified is a connection that has not identified itself.
	SessionUnclassified SessionKind = iota

	// SessionCamera is a registered single-lens camera.
	SessionCamera

	// SessionNVR is a registered multi-channel recorder.
	SessionNVR

	// SessionClient is a consumer issuing CS requests.
	SessionClient
)

// String returns the kind name.
func (k SessionKind) String() string {
	switch k {
	case SessionCamera:
		return "CAMERA"
	case SessionNVR:
		return "NVR"
	case SessionClient:
		return "CLIENT"
	default:
		return "UNCLASSIFIED"
	}
}

// Session is the hub's state for one connection.
type Session struct {
	id   string
	conn *transport.Conn
	svc  *Service

	mu       sync.Mutex
	kind     SessionKind
	authed   bool
	entry    protocol.DeviceEntry
	channels []protocol.ChannelInfo
	pending  map[string]*pendingCall

	// cseq numbers the requests the hub initiates on this session.
	cseq    atomic.Uint32
	holders atomic.Int32
	closed  atomic.Bool
}

// pendingCall parks a caller until the peer's ack for a specific
// hub-assigned CSeq arrives.
type pendingCall struct {
	ack protocol.MessageKind
	ch  chan *protocol.Envelope
}

func newSession(svc *Service, conn *transport.Conn) *Session {
	return &Session{
		id:      conn.ID(),
		conn:    conn,
		svc:     svc,
		pending: make(map[string]*pendingCall),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Kind returns the session's current classification.
func (s *Session) Kind() SessionKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// Serial returns the registered device serial, or "".
func (s *Session) Serial() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry.Serial
}

// Entry returns the device's directory information.
func (s *Session) Entry() protocol.DeviceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry
}

// Channels returns a copy of the device's channel table.
func (s *Session) Channels() []protocol.ChannelInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.ChannelInfo, len(s.channels))
	copy(out, s.channels)
	return out
}

// Retain increments the holder count. While held, resolvers may keep
// using the session even if its connection dies underneath them.
func (s *Session) Retain() {
	s.holders.Add(1)
}

// Release decrements the holder count.
func (s *Session) Release() {
	s.holders.Add(-1)
}

// Holders returns the current holder count.
func (s *Session) Holders() int32 {
	return s.holders.Load()
}

// Kill tears the session down by closing its connection. Teardown
// completes asynchronously on the connection's read goroutine.
func (s *Session) Kill(reason string) {
	s.svc.logState(s, log.StateEntitySession, s.Kind().String(), "KILLED", reason)
	s.conn.Close()
}

// setDevice applies a register body to the session. Registration is
// also the heartbeat, so names and channel tables refresh on every
// beat.
func (s *Session) setDevice(body *protocol.RegisterBody, kind SessionKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = kind
	s.authed = true
	s.entry = protocol.DeviceEntry{
		Serial:       body.Serial,
		Name:         body.Name,
		Tag:          body.Tag,
		AppType:      body.AppType,
		TerminalType: body.TerminalType,
	}
	s.channels = body.Channels
	if len(s.channels) == 0 {
		// Cameras often omit the channel table; they have exactly one,
		// addressed as channel "0".
		s.channels = []protocol.ChannelInfo{{Channel: "0", Name: body.Name, Status: "online"}}
	}
}

// markClient classifies the session as a consumer on its first CS
// request.
func (s *Session) markClient() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kind == SessionUnclassified {
		s.kind = SessionClient
	}
}

// isDevice reports whether the session registered as a device.
func (s *Session) isDevice() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

// setChannelSnap records the latest snapshot URL for a channel, so
// device listings can carry previews.
func (s *Session) setChannelSnap(channel, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// NVR listings carry snapshots per channel, not on the entry.
	if s.kind == SessionCamera {
		s.entry.SnapURL = url
	}
	for i := range s.channels {
		if s.channels[i].Channel == channel {
			s.channels[i].SnapURL = url
			return
		}
	}
}

// send encodes env and writes it to the session's connection.
func (s *Session) send(env *protocol.Envelope, closeAfter bool) error {
	return s.sendStatus(env, http.StatusOK, closeAfter)
}

// sendStatus is send with an explicit HTTP status line, for replies
// that refuse the request at the frame level.
func (s *Session) sendStatus(env *protocol.Envelope, status int, closeAfter bool) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	s.svc.logMessage(s, log.DirectionOut, env, 0)
	return s.conn.WriteResponse(status, data, closeAfter)
}

// call pushes a hub-initiated request to this session's peer and
// waits for the matching ack, up to timeout. The CSeq the hub assigns
// here is the correlation key: the peer echoes it in the ack, which
// arrives on this session's read goroutine and is delivered through
// resolvePending.
func (s *Session) call(kind protocol.MessageKind, body map[string]any, timeout time.Duration) (*protocol.Envelope, error) {
	cseq := s.cseq.Add(1)
	key := protocol.FormatCSeq(cseq)

	pc := &pendingCall{
		ack: kind.Ack(),
		ch:  make(chan *protocol.Envelope, 1),
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil, protocol.NewStatusError(protocol.ErrDeviceNotFound, "device disconnected")
	}
	s.pending[key] = pc
	s.mu.Unlock()

	env := protocol.NewRequest(kind, cseq)
	for k, v := range body {
		env.Set(k, v)
	}
	if err := s.send(env, false); err != nil {
		s.dropPending(key)
		return nil, protocol.NewStatusError(protocol.ErrDeviceNotFound, "device disconnected")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack, ok := <-pc.ch:
		if !ok {
			return nil, protocol.NewStatusError(protocol.ErrDeviceNotFound, "device disconnected")
		}
		return ack, nil
	case <-timer.C:
		s.dropPending(key)
		return nil, protocol.NewStatusError(protocol.ErrRequestTimeout, "device did not reply")
	}
}

// notify pushes a hub-initiated request without waiting for the ack.
// The peer's eventual ack carries a CSeq with no pending entry and is
// dropped by resolvePending.
func (s *Session) notify(kind protocol.MessageKind, body map[string]any) error {
	env := protocol.NewRequest(kind, s.cseq.Add(1))
	for k, v := range body {
		env.Set(k, v)
	}
	return s.send(env, false)
}

// resolvePending routes a peer ack to whoever is parked on its CSeq.
// It reports whether a waiter consumed the ack.
func (s *Session) resolvePending(env *protocol.Envelope) bool {
	key := env.Header.CSeq

	s.mu.Lock()
	pc, ok := s.pending[key]
	if ok && pc.ack == env.Header.MessageType {
		delete(s.pending, key)
	} else {
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	pc.ch <- env
	return true
}

func (s *Session) dropPending(key string) {
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}

// teardown fails every parked caller. Closed channels read as "device
// disconnected" on the waiting side.
func (s *Session) teardown() {
	s.closed.Store(true)

	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]*pendingCall)
	s.mu.Unlock()

	for _, pc := range pending {
		close(pc.ch)
	}
}

// Session satisfies the device registry's view of a session.
var _ registry.Device = (*Session)(nil)
