package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/easydarwin/easycms-go/pkg/log"
)

const (
	// DefaultPort is the default hub listen port.
	DefaultPort = 10000

	// DefaultMaxMessageSize caps a single request body (snapshots
	// arrive base64-encoded in the body, so this is generous).
	DefaultMaxMessageSize = 4 << 20

	// ServerHeader is sent on every response.
	ServerHeader = "EasyCMS/1.0"

	// frameLogCap bounds how much payload a frame event captures.
	frameLogCap = 2048
)

// Request is one parsed inbound HTTP frame.
type Request struct {
	// Method is the HTTP method (POST for protocol messages, GET
	// for REST endpoints).
	Method string

	// Path is the URL path.
	Path string

	// Query holds the parsed query parameters.
	Query url.Values

	// Header holds the request headers.
	Header http.Header

	// Body is the full request body.
	Body []byte
}

// Config configures a Server.
type Config struct {
	// Address to listen on (e.g. ":10000").
	Address string

	// IdleTimeout closes connections with no inbound traffic for
	// this long. Zero disables the idle check.
	IdleTimeout time.Duration

	// MaxMessageSize caps a single request body
	// (default: DefaultMaxMessageSize).
	MaxMessageSize int64

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is established.
	OnConnect func(conn *Conn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *Conn)

	// OnRequest is called for each parsed inbound request.
	OnRequest func(conn *Conn, req *Request)

	// OnError is called when an error occurs.
	OnError func(conn *Conn, err error)
}

// Server accepts device and client connections and frames their
// traffic.
type Server struct {
	config   Config
	listener net.Listener

	// Active connections
	conns   map[*Conn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new server.
func NewServer(config Config) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	return &Server{
		config: config,
		conns:  make(map[*Conn]struct{}),
	}
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server and closes all connections.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()

	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				if s.config.OnError != nil {
					s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
				}
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection processes a single connection.
func (s *Server) handleConnection(nc net.Conn) {
	defer s.wg.Done()

	conn := &Conn{
		conn:       nc,
		br:         bufio.NewReader(nc),
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: nc.RemoteAddr(),
		id:         uuid.New().String(),
	}

	s.logConnState(conn, "", "CONNECTED", "")

	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(conn)
	}

	reason := conn.readLoop()

	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()

	conn.Close()

	s.logConnState(conn, "CONNECTED", "DISCONNECTED", reason)

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(conn)
	}
}

func (s *Server) logConnState(c *Conn, oldState, newState, reason string) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  c.id,
		Layer:      log.LayerTransport,
		Category:   log.CategoryState,
		RemoteAddr: c.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Conn is one accepted connection.
type Conn struct {
	conn       net.Conn
	br         *bufio.Reader
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	id         string

	// Synchronization: replies and pushes can race on the socket.
	writeMu sync.Mutex
}

// ID returns the unique connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the remote address of the peer.
func (c *Conn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// WriteResponse sends an HTTP response frame carrying body. This is
// the single outbound path: replies to inbound requests and
// hub-initiated pushes both travel as responses. When closeAfter is
// set a Connection: close header is added and the connection is
// closed once the frame is on the wire.
func (c *Conn) WriteResponse(status int, body []byte, closeAfter bool) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	fmt.Fprintf(&buf, "Server: %s\r\n", ServerHeader)
	buf.WriteString("Content-Type: application/json\r\n")
	if closeAfter {
		buf.WriteString("Connection: close\r\n")
	}
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)

	c.writeMu.Lock()
	_, err := c.conn.Write(buf.Bytes())
	c.writeMu.Unlock()

	c.logFrame(log.DirectionOut, buf.Len(), body)

	if closeAfter {
		c.Close()
	}
	return err
}

// Close closes the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// readLoop parses inbound HTTP requests until the connection dies.
// It returns the teardown reason for the state log.
func (c *Conn) readLoop() string {
	for {
		select {
		case <-c.closeCh:
			return ""
		case <-c.server.ctx.Done():
			return "server stopped"
		default:
		}

		if c.server.config.IdleTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.server.config.IdleTimeout))
		}

		httpReq, err := http.ReadRequest(c.br)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				return "peer closed"
			case errors.Is(err, os.ErrDeadlineExceeded):
				return "idle timeout"
			}
			c.reportError(fmt.Errorf("failed to parse request: %w", err))
			return "protocol error"
		}

		if httpReq.ContentLength > c.server.config.MaxMessageSize {
			httpReq.Body.Close()
			c.reportError(fmt.Errorf("request body of %d bytes exceeds limit", httpReq.ContentLength))
			c.WriteResponse(http.StatusBadRequest, nil, true)
			return "oversized message"
		}

		body, err := io.ReadAll(io.LimitReader(httpReq.Body, c.server.config.MaxMessageSize+1))
		httpReq.Body.Close()
		if err != nil {
			c.reportError(fmt.Errorf("failed to read request body: %w", err))
			return "read error"
		}
		if int64(len(body)) > c.server.config.MaxMessageSize {
			c.reportError(fmt.Errorf("request body exceeds %d byte limit", c.server.config.MaxMessageSize))
			c.WriteResponse(http.StatusBadRequest, nil, true)
			return "oversized message"
		}

		c.logFrame(log.DirectionIn, len(body), body)

		req := &Request{
			Method: httpReq.Method,
			Path:   httpReq.URL.Path,
			Query:  httpReq.URL.Query(),
			Header: httpReq.Header,
			Body:   body,
		}
		if c.server.config.OnRequest != nil {
			c.server.config.OnRequest(c, req)
		}
	}
}

func (c *Conn) reportError(err error) {
	if c.server.config.OnError == nil || !c.server.running.Load() {
		return
	}
	select {
	case <-c.closeCh:
		// Already closing, don't report
	default:
		c.server.config.OnError(c, err)
	}
}

func (c *Conn) logFrame(dir log.Direction, size int, payload []byte) {
	if c.server.config.Logger == nil {
		return
	}
	truncated := false
	if len(payload) > frameLogCap {
		payload = payload[:frameLogCap]
		truncated = true
	}
	data := make([]byte, len(payload))
	copy(data, payload)
	c.server.config.Logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  c.id,
		Direction:  dir,
		Layer:      log.LayerTransport,
		Category:   log.CategoryMessage,
		RemoteAddr: c.remoteAddr.String(),
		Frame: &log.FrameEvent{
			Size:      size,
			Data:      data,
			Truncated: truncated,
		},
	})
}
