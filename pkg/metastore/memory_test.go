package metastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLiveServer(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.LiveServer(ctx, "CAM001", "1")
	assert.ErrorIs(t, err, ErrNotLive)

	want := ServerAddr{Host: "10.0.0.5", Port: 554}
	s.SetLive("CAM001", "1", want)

	got, err := s.LiveServer(ctx, "CAM001", "1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Other channels of the same device are unaffected.
	_, err = s.LiveServer(ctx, "CAM001", "2")
	assert.ErrorIs(t, err, ErrNotLive)

	s.ClearLive("CAM001", "1")
	_, err = s.LiveServer(ctx, "CAM001", "1")
	assert.ErrorIs(t, err, ErrNotLive)
}

func TestMemoryStoreBestServerBalances(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.BestServer(ctx)
	assert.ErrorIs(t, err, ErrNoServer)

	a := ServerAddr{Host: "10.0.0.1", Port: 554}
	b := ServerAddr{Host: "10.0.0.2", Port: 554}
	s.AddServer(a)
	s.AddServer(b)

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		addr, err := s.BestServer(ctx)
		require.NoError(t, err)
		seen[addr.Host]++
	}
	// Load counting alternates placement between the two servers.
	assert.Equal(t, 2, seen[a.Host])
	assert.Equal(t, 2, seen[b.Host])
}

func TestMemoryStoreTokens(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	token, err := s.MintStreamToken(context.Background(), time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.True(t, s.ValidToken(token))
	assert.False(t, s.ValidToken("unknown"))

	now = now.Add(2 * time.Minute)
	assert.False(t, s.ValidToken(token), "token should expire after its TTL")
}

func TestParseServerAddr(t *testing.T) {
	addr, err := parseServerAddr("192.168.1.10:10554")
	require.NoError(t, err)
	assert.Equal(t, ServerAddr{Host: "192.168.1.10", Port: 10554}, addr)

	_, err = parseServerAddr("no-port")
	assert.Error(t, err)

	_, err = parseServerAddr("host:abc")
	assert.Error(t, err)
}
