// Package presence answers whether a participant is currently connected.
package presence

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const DefaultSet = "online_users"

// Checker is consulted by the liveness supervisor.
type Checker interface {
	IsPresent(ctx context.Context, participantID string) (bool, error)
}

// RedisSet reads the connection gateway's presence set.
type RedisSet struct {
	rdb redis.Cmdable
	key string
}

func NewRedisSet(rdb redis.Cmdable, key string) *RedisSet {
	if strings.TrimSpace(key) == "" {
		key = DefaultSet
	}
	return &RedisSet{rdb: rdb, key: key}
}

func (p *RedisSet) IsPresent(ctx context.Context, participantID string) (bool, error) {
	if strings.TrimSpace(participantID) == "" {
		return false, nil
	}
	return p.rdb.SIsMember(ctx, p.key, participantID).Result()
}

// Static is an in-process presence set.
type Static struct {
	mu     sync.RWMutex
	online map[string]bool
	err    error
}

func NewStatic(ids ...string) *Static {
	s := &Static{online: make(map[string]bool, len(ids))}
	for _, id := range ids {
		s.online[id] = true
	}
	return s
}

func (s *Static) Set(id string, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if online {
		s.online[id] = true
		return
	}
	delete(s.online, id)
}

// Fail makes every lookup return err until cleared with Fail(nil).
func (s *Static) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Static) IsPresent(_ context.Context, participantID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return false, s.err
	}
	return s.online[participantID], nil
}
