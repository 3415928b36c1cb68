// Package store keeps live session records in Redis and serializes every
// mutation through an optimistic WATCH/MULTI transaction.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/EoCiMrEo/TikTacToeArena/internal/obslog"
	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
)

const (
	DefaultTTL       = 24 * time.Hour
	DefaultOpTimeout = 3 * time.Second

	maxAttempts  = 16
	scanCount    = 100
	statePattern = "game:*:state"
	indexPrefix  = "game:index:user:"
)

// TransitionFunc derives the next record from cur at store time now. It must
// not mutate cur. A returned error aborts the transaction without writing.
type TransitionFunc func(cur *session.Record, now int64) (*session.Record, error)

type Options struct {
	TTL       time.Duration
	OpTimeout time.Duration
}

type Store struct {
	rdb       *redis.Client
	ttl       time.Duration
	opTimeout time.Duration
}

// New wraps an existing client. Zero options fall back to the defaults.
func New(rdb *redis.Client, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	return &Store{rdb: rdb, ttl: opts.TTL, opTimeout: opts.OpTimeout}
}

// Open dials redisURL and verifies the connection.
func Open(ctx context.Context, redisURL string, opts Options) (*Store, error) {
	ropts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(ropts)
	s := New(rdb, opts)
	if err := s.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return s, nil
}

// ParseRedisURL accepts redis:// and rediss:// URLs.
func ParseRedisURL(raw string) (*redis.Options, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("redis url required")
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}

func (s *Store) Client() *redis.Client { return s.rdb }

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Now returns the Redis server clock in epoch seconds. Every timestamp on a
// record comes from here.
func (s *Store) Now(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	t, err := s.rdb.Time(ctx).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return t.Unix(), nil
}

// Create stores the record produced by build under a fresh key. build is
// called with the store clock. An existing key is reported as a conflict.
func (s *Store) Create(ctx context.Context, build func(now int64) *session.Record) (*session.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	t, err := s.rdb.Time(ctx).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	rec := build(t.Unix())
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, stateKey(rec.GameID), raw, s.ttl).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if !ok {
		return nil, session.ErrConflict
	}
	return rec, nil
}

// Get returns the current record or session.ErrNotFound when it is unknown
// or expired.
func (s *Store) Get(ctx context.Context, gameID string) (*session.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	raw, err := s.rdb.Get(ctx, stateKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return decode(raw)
}

// Transition applies fn to the latest record of gameID atomically. Lost
// races are retried against the fresh record; after maxAttempts the caller
// gets session.ErrConflict.
func (s *Store) Transition(ctx context.Context, gameID string, fn TransitionFunc) (*session.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	key := stateKey(gameID)

	var next *session.Record
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return session.ErrNotFound
		}
		if err != nil {
			return err
		}
		t, err := tx.Time(ctx).Result()
		if err != nil {
			return err
		}
		cur, err := decode(raw)
		if err != nil {
			return err
		}
		out, err := fn(cur, t.Unix())
		if err != nil {
			return rejection{err}
		}
		payload, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err == nil {
			next = out
		}
		return err
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			var rej rejection
			if errors.As(err, &rej) {
				return nil, rej.err
			}
			if errors.Is(err, session.ErrNotFound) {
				return nil, err
			}
			return nil, unavailable(err)
		}
		obslog.L().Debug("store_transition_retry", zap.String("game_id", gameID), zap.Int("attempt", attempt))
		if err := backoff(ctx, attempt); err != nil {
			return nil, unavailable(err)
		}
	}
	obslog.L().Warn("store_transition_conflict", zap.String("game_id", gameID))
	return nil, session.ErrConflict
}

// Scan walks every stored record with SCAN. Undecodable or vanished keys
// are skipped.
func (s *Store) Scan(ctx context.Context, fn func(*session.Record)) error {
	var cursor uint64
	for {
		keys, nextCursor, err := s.rdb.Scan(ctx, cursor, statePattern, scanCount).Result()
		if err != nil {
			return unavailable(err)
		}
		for _, key := range keys {
			if strings.HasPrefix(key, indexPrefix) {
				continue
			}
			raw, err := s.rdb.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return unavailable(err)
			}
			rec, err := decode(raw)
			if err != nil {
				obslog.L().Warn("store_scan_decode_error", zap.String("key", key), zap.Error(err))
				continue
			}
			fn(rec)
		}
		cursor = nextCursor
		if cursor == 0 {
			return nil
		}
	}
}

// IndexParticipants remembers gameID under each player's index key and
// refreshes the index expiration alongside the record.
func (s *Store) IndexParticipants(ctx context.Context, gameID string, players ...string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	for _, p := range players {
		if strings.TrimSpace(p) == "" {
			continue
		}
		key := userKey(p)
		if err := s.rdb.SAdd(ctx, key, gameID).Err(); err != nil {
			return unavailable(err)
		}
		_ = s.rdb.Expire(ctx, key, s.ttl).Err()
	}
	return nil
}

func (s *Store) GamesByUser(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	ids, err := s.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	return ids, nil
}

// RemoveFromIndex drops ids whose records have expired.
func (s *Store) RemoveFromIndex(ctx context.Context, userID string, gameIDs ...string) error {
	if len(gameIDs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	members := make([]any, len(gameIDs))
	for i, id := range gameIDs {
		members[i] = id
	}
	if err := s.rdb.SRem(ctx, userKey(userID), members...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// rejection marks an error returned by a TransitionFunc so it reaches the
// caller unchanged.
type rejection struct{ err error }

func (r rejection) Error() string { return r.err.Error() }
func (r rejection) Unwrap() error { return r.err }

func decode(raw []byte) (*session.Record, error) {
	var rec session.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec.WinningLine == nil {
		rec.WinningLine = []int{}
	}
	return &rec, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
}

func backoff(ctx context.Context, attempt int) error {
	base := time.Duration(attempt) * 2 * time.Millisecond
	wait := base + time.Duration(rand.Int63n(int64(base+time.Millisecond)))
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func stateKey(id string) string    { return "game:" + strings.TrimSpace(id) + ":state" }
func userKey(userID string) string { return indexPrefix + strings.TrimSpace(userID) }
