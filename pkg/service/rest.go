package service

import (
	"strings"

	"github.com/easydarwin/easycms-go/pkg/protocol"
	"github.com/easydarwin/easycms-go/pkg/transport"
)

// REST endpoint paths. The answers reuse the protocol's ack
// envelopes; only the request side differs from the JSON form.
const (
	restDeviceList   = "/api/getdevicelist"
	restDeviceInfo   = "/api/getdeviceinfo"
	restDeviceStream = "/api/getdevicestream"
)

// restCSeq labels REST-synthesized requests; REST has no sequence
// numbers of its own.
const restCSeq = "1"

// handleREST serves the GET endpoints. REST peers are one-shot, so
// every reply carries Connection: close.
func (s *Service) handleREST(sess *Session, req *transport.Request) {
	sess.markClient()

	// Endpoints match regardless of case, with one trailing slash
	// tolerated.
	path := strings.ToLower(strings.TrimSuffix(req.Path, "/"))

	switch path {
	case restDeviceList:
		s.restDeviceList(sess, req)
	case restDeviceInfo:
		s.restDispatch(sess, protocol.KindCSDeviceInfoReq, map[string]any{
			protocol.TagSerial: req.Query.Get(protocol.ParamDevice),
		})
	case restDeviceStream:
		s.restDispatch(sess, protocol.KindCSGetStreamReq, map[string]any{
			protocol.TagSerial:   req.Query.Get(protocol.ParamDevice),
			protocol.TagChannel:  req.Query.Get(protocol.ParamChannel),
			protocol.TagProtocol: req.Query.Get(protocol.ParamProtocol),
			protocol.TagReserve:  req.Query.Get(protocol.ParamReserve),
		})
	default:
		ack := protocol.NewAck(protocol.KindSCException, restCSeq, protocol.ErrClientBadRequest)
		s.restReply(sess, ack)
	}
}

// restDeviceList answers the directory, optionally filtered by
// AppType and TerminalType.
func (s *Service) restDeviceList(sess *Session, req *transport.Request) {
	appType := req.Query.Get(protocol.ParamAppType)
	terminalType := req.Query.Get(protocol.ParamTerminalType)

	entries := s.reg.Snapshot()
	filtered := entries[:0]
	for _, e := range entries {
		if appType != "" && e.AppType != appType {
			continue
		}
		if terminalType != "" && e.TerminalType != terminalType {
			continue
		}
		filtered = append(filtered, e)
	}

	ack := protocol.NewAck(protocol.KindSCDeviceListAck, restCSeq, protocol.ErrSuccessOK)
	ack.Set(protocol.TagDeviceCount, len(filtered))
	ack.Set(protocol.TagDevices, filtered)
	s.restReply(sess, ack)
}

// restDispatch synthesizes a request envelope for the endpoint and
// runs it through the regular handler, so REST and JSON peers get
// identical semantics (including the parked wait on get-stream).
func (s *Service) restDispatch(sess *Session, kind protocol.MessageKind, body map[string]any) {
	env := &protocol.Envelope{
		Header: protocol.Header{
			Version:     protocol.Version,
			MessageType: kind,
			CSeq:        restCSeq,
		},
		Body: body,
	}

	var h handler
	switch kind {
	case protocol.KindCSDeviceInfoReq:
		h = s.handleDeviceInfo
	case protocol.KindCSGetStreamReq:
		h = s.handleGetStream
	}

	ackBody, err := h(sess, env)
	ack := protocol.NewAck(kind.Ack(), restCSeq, protocol.StatusOf(err))
	for k, v := range ackBody {
		ack.Set(k, v)
	}
	s.restReply(sess, ack)
}

func (s *Service) restReply(sess *Session, ack *protocol.Envelope) {
	if err := sess.send(ack, true); err != nil {
		s.logger.Debug("failed to send rest reply", "session", sess.id, "err", err)
	}
}
