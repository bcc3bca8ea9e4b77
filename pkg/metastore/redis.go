package metastore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis key layout. Media servers report into the "media_servers"
// sorted set themselves, scored by their current session count; the
// hub only reads it.
const (
	keyServers    = "media_servers"
	keyDevPrefix  = "device:"
	keyLivePrefix = "live:"
	keyTokPrefix  = "token:"
)

// RedisStore backs the hub metadata with Redis so multiple hub
// instances can share media-server placement and playback tokens.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) SetDeviceName(ctx context.Context, serial, name, tag string) error {
	return s.client.HSet(ctx, keyDevPrefix+serial, "name", name, "tag", tag).Err()
}

func (s *RedisStore) LiveServer(ctx context.Context, serial, channel string) (ServerAddr, error) {
	val, err := s.client.Get(ctx, keyLivePrefix+serial+"/"+channel).Result()
	if err == redis.Nil {
		return ServerAddr{}, ErrNotLive
	}
	if err != nil {
		return ServerAddr{}, err
	}
	return parseServerAddr(val)
}

func (s *RedisStore) BestServer(ctx context.Context) (ServerAddr, error) {
	members, err := s.client.ZRangeByScore(ctx, keyServers, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return ServerAddr{}, err
	}
	if len(members) == 0 {
		return ServerAddr{}, ErrNoServer
	}
	addr, err := parseServerAddr(members[0])
	if err != nil {
		return ServerAddr{}, err
	}
	// Bump the score so back-to-back requests spread across servers
	// even before the server reports its real session count.
	s.client.ZIncrBy(ctx, keyServers, 1, members[0])
	return addr, nil
}

func (s *RedisStore) MintStreamToken(ctx context.Context, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	if err := s.client.Set(ctx, keyTokPrefix+token, "1", ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func parseServerAddr(val string) (ServerAddr, error) {
	host, portStr, err := net.SplitHostPort(val)
	if err != nil {
		return ServerAddr{}, fmt.Errorf("malformed media server address %q: %w", val, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return ServerAddr{}, fmt.Errorf("malformed media server port %q: %w", portStr, err)
	}
	return ServerAddr{Host: host, Port: port}, nil
}

var _ Store = (*RedisStore)(nil)
