package transport

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// Client is the peer side of the framing: it dials the hub, sends
// HTTP requests, and reads HTTP responses off the same connection.
// Both camera firmware simulators and test harnesses use it; the
// unsolicited frames the hub pushes arrive through Receive just like
// reply frames do.
type Client struct {
	conn net.Conn
	br   *bufio.Reader

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to the hub at addr.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		br:   bufio.NewReader(conn),
	}
}

// Post sends body as an HTTP POST to path.
func (c *Client) Post(path string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, "http://hub"+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.write(req)
}

// Get sends an HTTP GET for path (query string included in path).
func (c *Client) Get(path string) error {
	req, err := http.NewRequest(http.MethodGet, "http://hub"+path, nil)
	if err != nil {
		return err
	}
	return c.write(req)
}

func (c *Client) write(req *http.Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return req.Write(c.conn)
}

// Response is one inbound HTTP frame as seen by the peer.
type Response struct {
	// StatusCode is the HTTP status.
	StatusCode int

	// Close reports whether the hub asked for the connection to be
	// closed after this frame.
	Close bool

	// Body is the full response body.
	Body []byte
}

// Receive reads the next response frame, waiting up to timeout.
// A zero timeout waits forever.
func (c *Client) Receive(timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}

	resp, err := http.ReadResponse(c.br, nil)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Close:      resp.Close,
		Body:       body,
	}, nil
}

// LocalAddr returns the local network address.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}
