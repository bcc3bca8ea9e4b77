package service

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/easydarwin/easycms-go/pkg/config"
	"github.com/easydarwin/easycms-go/pkg/log"
	"github.com/easydarwin/easycms-go/pkg/metastore"
	"github.com/easydarwin/easycms-go/pkg/protocol"
	"github.com/easydarwin/easycms-go/pkg/registry"
	"github.com/easydarwin/easycms-go/pkg/snapshot"
	"github.com/easydarwin/easycms-go/pkg/transport"
)

// Service wires the transport, device registry, metadata store, and
// snapshot store into the running hub.
type Service struct {
	cfg    *config.Config
	server *transport.Server
	reg    *registry.Registry
	store  metastore.Store
	snaps  *snapshot.Store
	plog   log.Logger
	logger *slog.Logger

	sessions   map[string]*Session
	sessionsMu sync.RWMutex
}

// New creates a hub service. plog may be nil to disable protocol
// event capture; logger may be nil to use slog's default.
func New(cfg *config.Config, store metastore.Store, snaps *snapshot.Store, plog log.Logger, logger *slog.Logger) *Service {
	if plog == nil {
		plog = &log.NoopLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:      cfg,
		reg:      registry.New(),
		store:    store,
		snaps:    snaps,
		plog:     plog,
		logger:   logger,
		sessions: make(map[string]*Session),
	}

	s.server = transport.NewServer(transport.Config{
		Address:      cfg.Server.Listen,
		IdleTimeout:  cfg.Session.IdleTimeout,
		Logger:       plog,
		OnConnect:    s.onConnect,
		OnDisconnect: s.onDisconnect,
		OnRequest:    s.onRequest,
		OnError:      s.onError,
	})

	return s
}

// Start begins accepting connections.
func (s *Service) Start(ctx context.Context) error {
	if err := s.server.Start(ctx); err != nil {
		return err
	}
	s.logger.Info("hub listening", "addr", s.server.Addr().String())
	return nil
}

// Stop closes all sessions and stops the listener.
func (s *Service) Stop() error {
	return s.server.Stop()
}

// Addr returns the listen address.
func (s *Service) Addr() net.Addr {
	return s.server.Addr()
}

// Registry exposes the device registry.
func (s *Service) Registry() *registry.Registry {
	return s.reg
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

func (s *Service) onConnect(conn *transport.Conn) {
	s.sessionsMu.Lock()
	if max := s.cfg.Server.MaxConnections; max > 0 && len(s.sessions) >= max {
		s.sessionsMu.Unlock()
		s.logger.Warn("rejecting connection, session limit reached",
			"remote", conn.RemoteAddr().String(), "limit", max)
		s.rejectOverLimit(conn)
		return
	}
	sess := newSession(s, conn)
	s.sessions[conn.ID()] = sess
	s.sessionsMu.Unlock()

	s.logger.Debug("session opened", "session", sess.id, "remote", conn.RemoteAddr().String())
}

// rejectOverLimit answers an over-limit connection with an exception
// envelope and drops it.
func (s *Service) rejectOverLimit(conn *transport.Conn) {
	env := protocol.NewAck(protocol.KindSCException, "0", protocol.ErrServerInternal)
	if data, err := protocol.Encode(env); err == nil {
		conn.WriteResponse(http.StatusOK, data, true)
	} else {
		conn.Close()
	}
}

func (s *Service) onDisconnect(conn *transport.Conn) {
	s.sessionsMu.Lock()
	sess, ok := s.sessions[conn.ID()]
	delete(s.sessions, conn.ID())
	s.sessionsMu.Unlock()
	if !ok {
		return
	}

	sess.teardown()
	if serial := sess.Serial(); serial != "" {
		s.reg.Unregister(serial, sess)
		s.logState(sess, log.StateEntitySession, sess.Kind().String(), "OFFLINE", "disconnected")
		s.logger.Info("device offline", "serial", serial, "session", sess.id)
	}
}

func (s *Service) onError(conn *transport.Conn, err error) {
	if conn != nil {
		s.logger.Debug("transport error", "session", conn.ID(), "err", err)
	} else {
		s.logger.Warn("transport error", "err", err)
	}
}

func (s *Service) onRequest(conn *transport.Conn, req *transport.Request) {
	s.sessionsMu.RLock()
	sess, ok := s.sessions[conn.ID()]
	s.sessionsMu.RUnlock()
	if !ok {
		conn.Close()
		return
	}

	if req.Method == http.MethodGet {
		s.handleREST(sess, req)
		return
	}

	env, err := protocol.Decode(req.Body)
	if err != nil {
		s.logger.Debug("undecodable message", "session", sess.id, "err", err)
		s.sendException(sess, "", protocol.ErrClientBadRequest)
		return
	}

	s.dispatch(sess, env)
}

// handler processes one request envelope and returns the ack body.
type handler func(sess *Session, env *protocol.Envelope) (map[string]any, error)

// dispatch routes an envelope to its handler and writes the paired
// ack. Device acks terminate here: they resolve a parked call instead
// of producing a reply.
func (s *Service) dispatch(sess *Session, env *protocol.Envelope) {
	start := time.Now()
	kind := env.Header.MessageType
	s.logMessage(sess, log.DirectionIn, env, 0)

	switch kind {
	case protocol.KindDSPushStreamAck, protocol.KindDSStreamStopAck:
		s.handleDeviceAck(sess, env)
		return
	}

	var h handler
	switch kind {
	case protocol.KindDSRegisterReq:
		h = s.handleRegister
	case protocol.KindDSPostSnapReq:
		h = s.handlePostSnap
	case protocol.KindCSDeviceListReq:
		h = s.handleDeviceList
	case protocol.KindCSDeviceInfoReq:
		h = s.handleDeviceInfo
	case protocol.KindCSGetStreamReq:
		h = s.handleGetStream
	case protocol.KindCSFreeStreamReq:
		h = s.handleFreeStream
	}

	var body map[string]any
	var err error
	if h == nil {
		err = protocol.NewStatusError(protocol.ErrServerNotImplemented,
			fmt.Sprintf("unsupported message type 0x%04x", int(kind)))
	} else {
		body, err = h(sess, env)
	}

	num := protocol.StatusOf(err)
	if err != nil {
		s.logger.Debug("request failed",
			"session", sess.id, "kind", kind.String(), "num", int(num), "err", err)
	}

	ack := protocol.NewAck(kind.Ack(), env.Header.CSeq, num)
	for k, v := range body {
		ack.Set(k, v)
	}

	s.svcElapsed(sess, ack, time.Since(start))

	// A kind the hub does not speak ends the session: 501 at the
	// frame level and the connection dropped.
	if h == nil {
		if err := sess.sendStatus(ack, http.StatusNotImplemented, true); err != nil {
			s.logger.Debug("failed to send ack", "session", sess.id, "err", err)
		}
		return
	}
	if err := sess.send(ack, false); err != nil {
		s.logger.Debug("failed to send ack", "session", sess.id, "err", err)
	}
}

// handleDeviceAck consumes a device's reply to a hub-initiated push.
// Acks with no parked caller (fire-and-forget stops, late replies)
// are dropped.
func (s *Service) handleDeviceAck(sess *Session, env *protocol.Envelope) {
	if !sess.isDevice() {
		s.logger.Debug("ack from unregistered session ignored", "session", sess.id)
		return
	}
	if !sess.resolvePending(env) {
		s.logger.Debug("unmatched device ack",
			"session", sess.id, "kind", env.Header.MessageType.String(), "cseq", env.Header.CSeq)
	}
}

// sendException answers a message the hub cannot parse and drops the
// connection.
func (s *Service) sendException(sess *Session, cseq string, num protocol.ErrorNum) {
	env := protocol.NewAck(protocol.KindSCException, cseq, num)
	sess.send(env, true)
}

func (s *Service) logMessage(sess *Session, dir log.Direction, env *protocol.Envelope, elapsed time.Duration) {
	event := log.Event{
		Timestamp:  time.Now(),
		SessionID:  sess.id,
		Direction:  dir,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		RemoteAddr: sess.conn.RemoteAddr().String(),
		Serial:     sess.Serial(),
		Message: &log.MessageEvent{
			Kind:     env.Header.MessageType,
			CSeq:     env.Header.CSeq,
			ErrorNum: int(env.Header.ErrorNum),
		},
	}
	if elapsed > 0 {
		event.Message.ProcessingTime = &elapsed
	}
	s.plog.Log(event)
}

// svcElapsed stamps the ack's processing time into the outgoing
// message event. The send path logs with zero elapsed otherwise.
func (s *Service) svcElapsed(sess *Session, ack *protocol.Envelope, elapsed time.Duration) {
	s.plog.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  sess.id,
		Direction:  log.DirectionOut,
		Layer:      log.LayerService,
		Category:   log.CategoryMessage,
		RemoteAddr: sess.conn.RemoteAddr().String(),
		Serial:     sess.Serial(),
		Message: &log.MessageEvent{
			Kind:           ack.Header.MessageType,
			CSeq:           ack.Header.CSeq,
			ErrorNum:       int(ack.Header.ErrorNum),
			ProcessingTime: &elapsed,
		},
	})
}

func (s *Service) logState(sess *Session, entity log.StateEntity, oldState, newState, reason string) {
	s.plog.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  sess.id,
		Layer:      log.LayerService,
		Category:   log.CategoryState,
		RemoteAddr: sess.conn.RemoteAddr().String(),
		Serial:     sess.Serial(),
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
