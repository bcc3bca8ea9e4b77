package metastore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store for single-node deployments
// and tests. Media servers are registered by the admin API or test
// setup via AddServer.
type MemoryStore struct {
	mu      sync.Mutex
	names   map[string]deviceName
	live    map[string]ServerAddr
	servers []serverEntry
	tokens  map[string]time.Time
	now     func() time.Time
}

type deviceName struct {
	name string
	tag  string
}

type serverEntry struct {
	addr ServerAddr
	load int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		names:  make(map[string]deviceName),
		live:   make(map[string]ServerAddr),
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

// AddServer registers a media server with an initial load of zero.
func (s *MemoryStore) AddServer(addr ServerAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers = append(s.servers, serverEntry{addr: addr})
}

// SetLive marks serial/channel as carried by addr. Used by tests and
// by the stream broker after a successful push.
func (s *MemoryStore) SetLive(serial, channel string, addr ServerAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[serial+"/"+channel] = addr
}

// ClearLive removes the live marker for serial/channel.
func (s *MemoryStore) ClearLive(serial, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, serial+"/"+channel)
}

func (s *MemoryStore) SetDeviceName(_ context.Context, serial, name, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[serial] = deviceName{name: name, tag: tag}
	return nil
}

func (s *MemoryStore) LiveServer(_ context.Context, serial, channel string) (ServerAddr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.live[serial+"/"+channel]
	if !ok {
		return ServerAddr{}, ErrNotLive
	}
	return addr, nil
}

func (s *MemoryStore) BestServer(_ context.Context) (ServerAddr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.servers) == 0 {
		return ServerAddr{}, ErrNoServer
	}
	best := 0
	for i := 1; i < len(s.servers); i++ {
		if s.servers[i].load < s.servers[best].load {
			best = i
		}
	}
	s.servers[best].load++
	return s.servers[best].addr, nil
}

func (s *MemoryStore) MintStreamToken(_ context.Context, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = s.now().Add(ttl)
	return token, nil
}

// ValidToken reports whether token exists and has not expired.
func (s *MemoryStore) ValidToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.tokens[token]
	if !ok {
		return false
	}
	if s.now().After(deadline) {
		delete(s.tokens, token)
		return false
	}
	return true
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
