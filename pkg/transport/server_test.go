package transport

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"
)

// startServer runs a server on a loopback port and returns it with
// its address.
func startServer(t *testing.T, config Config) *Server {
	t.Helper()
	config.Address = "127.0.0.1:0"
	s := NewServer(config)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func dialServer(t *testing.T, s *Server) *Client {
	t.Helper()
	c, err := Dial(s.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRequestResponse(t *testing.T) {
	got := make(chan *Request, 1)
	s := startServer(t, Config{
		OnRequest: func(conn *Conn, req *Request) {
			got <- req
			conn.WriteResponse(http.StatusOK, []byte(`{"ok":true}`), false)
		},
	})

	c := dialServer(t, s)
	if err := c.Post("/", []byte(`{"hello":1}`)); err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	select {
	case req := <-got:
		if req.Method != http.MethodPost {
			t.Errorf("Method = %q, want POST", req.Method)
		}
		if string(req.Body) != `{"hello":1}` {
			t.Errorf("Body = %q", req.Body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for request")
	}

	resp, err := c.Receive(2 * time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %q", resp.Body)
	}
	if resp.Close {
		t.Error("Close = true, want false")
	}
}

func TestGetQueryParsing(t *testing.T) {
	got := make(chan *Request, 1)
	s := startServer(t, Config{
		OnRequest: func(conn *Conn, req *Request) {
			got <- req
			conn.WriteResponse(http.StatusOK, nil, false)
		},
	})

	c := dialServer(t, s)
	if err := c.Get("/api/getdevicelist?AppType=EasyCamera"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	select {
	case req := <-got:
		if req.Path != "/api/getdevicelist" {
			t.Errorf("Path = %q", req.Path)
		}
		if req.Query.Get("AppType") != "EasyCamera" {
			t.Errorf("AppType = %q", req.Query.Get("AppType"))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for request")
	}
}

func TestServerPush(t *testing.T) {
	conns := make(chan *Conn, 1)
	s := startServer(t, Config{
		OnConnect: func(conn *Conn) { conns <- conn },
	})

	c := dialServer(t, s)

	var conn *Conn
	select {
	case conn = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect")
	}

	// Unsolicited frame from the hub, no inbound request pending.
	if err := conn.WriteResponse(http.StatusOK, []byte(`{"push":1}`), false); err != nil {
		t.Fatalf("WriteResponse() error = %v", err)
	}

	resp, err := c.Receive(2 * time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if string(resp.Body) != `{"push":1}` {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestWriteResponseCloseAfter(t *testing.T) {
	s := startServer(t, Config{
		OnRequest: func(conn *Conn, req *Request) {
			conn.WriteResponse(http.StatusOK, []byte(`{}`), true)
		},
	})

	c := dialServer(t, s)
	if err := c.Post("/", []byte(`{}`)); err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	resp, err := c.Receive(2 * time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if !resp.Close {
		t.Error("Close = false, want true")
	}

	// The hub closed its side; the next read fails.
	if _, err := c.Receive(2 * time.Second); err == nil {
		t.Error("Receive() after close: error = nil, want error")
	}
}

func TestConnectDisconnectCallbacks(t *testing.T) {
	var mu sync.Mutex
	var events []string
	done := make(chan struct{})
	s := startServer(t, Config{
		OnConnect: func(conn *Conn) {
			mu.Lock()
			events = append(events, "connect")
			mu.Unlock()
		},
		OnDisconnect: func(conn *Conn) {
			mu.Lock()
			events = append(events, "disconnect")
			mu.Unlock()
			close(done)
		},
	})

	c := dialServer(t, s)
	c.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != "connect" || events[1] != "disconnect" {
		t.Errorf("events = %v", events)
	}
}

func TestIdleTimeoutClosesConnection(t *testing.T) {
	done := make(chan struct{})
	s := startServer(t, Config{
		IdleTimeout:  100 * time.Millisecond,
		OnDisconnect: func(conn *Conn) { close(done) },
	})

	c := dialServer(t, s)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("idle connection was not closed")
	}

	// The peer sees the close as a read error.
	if _, err := c.Receive(2 * time.Second); err == nil {
		t.Error("Receive() error = nil, want connection closed")
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	done := make(chan struct{})
	s := startServer(t, Config{
		MaxMessageSize: 64,
		OnDisconnect:   func(conn *Conn) { close(done) },
	})

	c := dialServer(t, s)
	if err := c.Post("/", make([]byte, 1024)); err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	// The peer is told why before the connection goes away.
	resp, err := c.Receive(2 * time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", resp.StatusCode)
	}
	if !resp.Close {
		t.Error("Close = false, want true")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("oversized request did not close the connection")
	}
}

func TestConnectionCount(t *testing.T) {
	connected := make(chan struct{}, 2)
	s := startServer(t, Config{
		OnConnect: func(conn *Conn) { connected <- struct{}{} },
	})

	dialServer(t, s)
	dialServer(t, s)
	for i := 0; i < 2; i++ {
		select {
		case <-connected:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for connections")
		}
	}

	if n := s.ConnectionCount(); n != 2 {
		t.Errorf("ConnectionCount() = %d, want 2", n)
	}
}
