package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/easydarwin/easycms-go/pkg/log"
	"github.com/easydarwin/easycms-go/pkg/metastore"
	"github.com/easydarwin/easycms-go/pkg/protocol"
	"github.com/easydarwin/easycms-go/pkg/registry"
	"github.com/easydarwin/easycms-go/pkg/version"
)

// storeCallTimeout bounds metadata store round trips so a stalled
// Redis cannot wedge a session's read goroutine.
const storeCallTimeout = 3 * time.Second

// handleRegister processes a device registration. Devices re-send the
// register request as their heartbeat, so this path also refreshes
// names and channel tables.
func (s *Service) handleRegister(sess *Session, env *protocol.Envelope) (map[string]any, error) {
	if !version.Accepts(env.Header.Version) {
		return nil, protocol.NewStatusError(protocol.ErrClientBadRequest,
			fmt.Sprintf("unsupported protocol version %q", env.Header.Version))
	}

	body, err := env.DecodeRegisterBody()
	if err != nil {
		return nil, protocol.NewStatusError(protocol.ErrClientBadRequest, "malformed register body")
	}
	if body.Serial == "" {
		return nil, protocol.NewStatusError(protocol.ErrClientBadRequest, "missing serial")
	}

	appType := protocol.ParseAppType(body.AppType)
	if !appType.IsValid() {
		return nil, protocol.NewStatusError(protocol.ErrClientBadRequest,
			fmt.Sprintf("unknown app type %q", body.AppType))
	}

	kind := SessionCamera
	if appType == protocol.AppTypeNVR {
		kind = SessionNVR
	}

	firstBeat := !sess.isDevice()

	// The session authenticates only once it owns the serial: a loser
	// of the conflict below must stay unauthenticated.
	incumbent, err := s.reg.Register(body.Serial, sess)
	if errors.Is(err, registry.ErrSerialConflict) {
		// The serial is taken. Evict the incumbent so the device's
		// next heartbeat can claim it, but report the collision.
		s.logger.Warn("serial conflict, evicting incumbent",
			"serial", body.Serial, "incumbent", incumbent.ID(), "session", sess.id)
		incumbent.Kill("replaced by new registration")
		return nil, protocol.NewStatusError(protocol.ErrConflict, "serial already registered")
	}
	if err != nil {
		return nil, protocol.NewStatusError(protocol.ErrServerInternal, "registry failure")
	}
	sess.setDevice(body, kind)

	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	if err := s.store.SetDeviceName(ctx, body.Serial, body.Name, body.Tag); err != nil {
		s.logger.Warn("failed to record device name", "serial", body.Serial, "err", err)
	}

	if firstBeat {
		s.logState(sess, log.StateEntitySession, SessionUnclassified.String(), kind.String(), "registered")
		s.logger.Info("device online",
			"serial", body.Serial, "app_type", body.AppType, "session", sess.id)
	}

	return map[string]any{
		protocol.TagSerial:    body.Serial,
		protocol.TagSessionID: sess.id,
	}, nil
}

// handlePostSnap stores a device-posted snapshot and remembers its
// URL for device listings.
func (s *Service) handlePostSnap(sess *Session, env *protocol.Envelope) (map[string]any, error) {
	if !sess.isDevice() {
		return nil, protocol.NewStatusError(protocol.ErrClientUnauthorized, "session is not a registered device")
	}

	serial := env.BodyString(protocol.TagSerial)
	if serial == "" {
		serial = sess.Serial()
	}
	channel := env.BodyString(protocol.TagChannel)
	if channel == "" {
		channel = "0"
	}

	url, err := s.snaps.Save(
		serial,
		channel,
		env.BodyString(protocol.TagType),
		env.BodyString(protocol.TagTime),
		env.BodyString(protocol.TagImage),
	)
	if err != nil {
		return nil, protocol.NewStatusError(protocol.ErrClientBadRequest, err.Error())
	}

	sess.setChannelSnap(channel, url)

	return map[string]any{
		protocol.TagSerial:  serial,
		protocol.TagChannel: channel,
		protocol.TagSnapURL: url,
	}, nil
}

// handleDeviceList answers with every online device. The JSON form
// carries the full list; filtering belongs to the REST variant.
func (s *Service) handleDeviceList(sess *Session, _ *protocol.Envelope) (map[string]any, error) {
	sess.markClient()
	entries := s.reg.Snapshot()
	return map[string]any{
		protocol.TagDeviceCount: len(entries),
		protocol.TagDevices:     entries,
	}, nil
}

// handleDeviceInfo answers with one device's channel table.
func (s *Service) handleDeviceInfo(sess *Session, env *protocol.Envelope) (map[string]any, error) {
	sess.markClient()

	serial := env.BodyString(protocol.TagSerial)
	if serial == "" {
		return nil, protocol.NewStatusError(protocol.ErrClientBadRequest, "missing serial")
	}

	dev, err := s.reg.Resolve(serial)
	if err != nil {
		return nil, protocol.NewStatusError(protocol.ErrDeviceNotFound, serial)
	}
	defer dev.Release()

	devSess, ok := dev.(*Session)
	if !ok {
		return nil, protocol.NewStatusError(protocol.ErrServerInternal, "unexpected registry entry")
	}

	entry := devSess.Entry()
	if devSess.Kind() == SessionCamera {
		// Cameras have no channel table to report, just their preview.
		return map[string]any{
			protocol.TagSerial:  entry.Serial,
			protocol.TagName:    entry.Name,
			protocol.TagAppType: entry.AppType,
			protocol.TagSnapURL: entry.SnapURL,
		}, nil
	}

	channels := devSess.Channels()
	return map[string]any{
		protocol.TagSerial:       entry.Serial,
		protocol.TagName:         entry.Name,
		protocol.TagAppType:      entry.AppType,
		protocol.TagChannelCount: len(channels),
		protocol.TagChannels:     channels,
	}, nil
}

// handleGetStream brokers a live stream: it places the client's
// request on the device's connection and parks the client until the
// device acks, then hands back the playback URL on the chosen relay.
func (s *Service) handleGetStream(sess *Session, env *protocol.Envelope) (map[string]any, error) {
	sess.markClient()

	serial := env.BodyString(protocol.TagSerial)
	streamProto := env.BodyString(protocol.TagProtocol)
	if serial == "" || streamProto == "" {
		return nil, protocol.NewStatusError(protocol.ErrClientBadRequest, "missing serial or protocol")
	}
	channel := env.BodyString(protocol.TagChannel)
	if channel == "" {
		channel = "0"
	}
	reserve := env.BodyString(protocol.TagReserve)

	// The device must be online even when a relay already carries the
	// stream; a stale live association must not outlive its device.
	dev, err := s.reg.Resolve(serial)
	if err != nil {
		return nil, protocol.NewStatusError(protocol.ErrDeviceNotFound, serial)
	}
	defer dev.Release()

	devSess, ok := dev.(*Session)
	if !ok {
		return nil, protocol.NewStatusError(protocol.ErrServerInternal, "unexpected registry entry")
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()

	// A relay already carrying this channel serves new viewers
	// without touching the device.
	if addr, err := s.store.LiveServer(ctx, serial, channel); err == nil {
		return s.streamAckBody(serial, channel, streamProto, reserve, addr)
	} else if !errors.Is(err, metastore.ErrNotLive) {
		return nil, protocol.NewStatusError(protocol.ErrServerInternal, "metadata store unavailable")
	}

	addr, err := s.store.BestServer(ctx)
	if errors.Is(err, metastore.ErrNoServer) {
		return nil, protocol.NewStatusError(protocol.ErrServiceNotFound, "no media relay available")
	}
	if err != nil {
		return nil, protocol.NewStatusError(protocol.ErrServerInternal, "metadata store unavailable")
	}

	s.logState(sess, log.StateEntityStream, "", "REQUESTED", serial+"/"+channel)

	ack, err := devSess.call(protocol.KindSDPushStreamReq, map[string]any{
		protocol.TagSerial:     serial,
		protocol.TagChannel:    channel,
		protocol.TagProtocol:   streamProto,
		protocol.TagReserve:    reserve,
		protocol.TagServerAddr: addr.Host,
		protocol.TagServerPort: addr.Port,
	}, s.cfg.Session.StartStreamTimeout)
	if err != nil {
		s.logState(sess, log.StateEntityStream, "REQUESTED", "FAILED", err.Error())
		return nil, err
	}

	if ack.Header.ErrorNum != protocol.ErrSuccessOK {
		s.logState(sess, log.StateEntityStream, "REQUESTED", "FAILED", ack.Header.ErrorString)
		return nil, protocol.NewStatusError(ack.Header.ErrorNum, "device refused to push")
	}

	s.logState(sess, log.StateEntityStream, "REQUESTED", "ACTIVE", serial+"/"+channel)
	return s.streamAckBody(serial, channel, streamProto, reserve, addr)
}

// streamAckBody mints a playback token and assembles the get-stream
// ack body. It uses its own store deadline because the caller may
// have spent its budget waiting on the device.
func (s *Service) streamAckBody(serial, channel, streamProto, reserve string, addr metastore.ServerAddr) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()

	token, err := s.store.MintStreamToken(ctx, s.cfg.Session.StreamTokenTTL)
	if err != nil {
		return nil, protocol.NewStatusError(protocol.ErrServerInternal, "failed to mint stream token")
	}

	url := fmt.Sprintf("rtsp://%s:%d/%s/%s.sdp?token=%s", addr.Host, addr.Port, serial, channel, token)
	return map[string]any{
		protocol.TagSerial:     serial,
		protocol.TagChannel:    channel,
		protocol.TagProtocol:   streamProto,
		protocol.TagReserve:    reserve,
		protocol.TagURL:        url,
		protocol.TagToken:      token,
		protocol.TagServerAddr: addr.Host,
		protocol.TagServerPort: addr.Port,
	}, nil
}

// handleFreeStream tells the device to stop pushing. The stop travels
// fire-and-forget: viewers are already gone, so nobody waits on the
// device's ack and the client is answered immediately.
func (s *Service) handleFreeStream(sess *Session, env *protocol.Envelope) (map[string]any, error) {
	sess.markClient()

	serial := env.BodyString(protocol.TagSerial)
	channel := env.BodyString(protocol.TagChannel)
	// Some clients send the compound "serial/channel" form.
	if i := strings.IndexByte(serial, '/'); i >= 0 {
		channel = serial[i+1:]
		serial = serial[:i]
	}
	if serial == "" {
		return nil, protocol.NewStatusError(protocol.ErrClientBadRequest, "missing serial")
	}
	if channel == "" {
		channel = "0"
	}
	streamProto := env.BodyString(protocol.TagProtocol)
	reserve := env.BodyString(protocol.TagReserve)
	if reserve == "" {
		reserve = "1"
	}

	dev, err := s.reg.Resolve(serial)
	if err != nil {
		return nil, protocol.NewStatusError(protocol.ErrDeviceNotFound, serial)
	}
	defer dev.Release()

	devSess, ok := dev.(*Session)
	if !ok {
		return nil, protocol.NewStatusError(protocol.ErrServerInternal, "unexpected registry entry")
	}

	if err := devSess.notify(protocol.KindSDStreamStopReq, map[string]any{
		protocol.TagSerial:   serial,
		protocol.TagChannel:  channel,
		protocol.TagProtocol: streamProto,
		protocol.TagReserve:  reserve,
	}); err != nil {
		return nil, protocol.NewStatusError(protocol.ErrDeviceNotFound, "device disconnected")
	}

	s.logState(sess, log.StateEntityStream, "ACTIVE", "RELEASED", serial+"/"+channel)

	return map[string]any{
		protocol.TagSerial:   serial,
		protocol.TagChannel:  channel,
		protocol.TagProtocol: streamProto,
		protocol.TagReserve:  reserve,
	}, nil
}
