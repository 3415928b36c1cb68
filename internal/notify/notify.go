// Package notify publishes session events on the event bus consumed by the
// connection gateway.
package notify

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/EoCiMrEo/TikTacToeArena/internal/obslog"
	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
)

const (
	DefaultChannel = "game_updates"
	publishTimeout = time.Second
)

type Event string

const (
	EventStart  Event = "game_start"
	EventUpdate Event = "game_update"
	EventOver   Event = "game_over"
)

// Envelope is the wire shape of every bus message.
type Envelope struct {
	EventID string          `json:"event_id"`
	Event   Event           `json:"event"`
	GameID  string          `json:"game_id"`
	Room    string          `json:"room"`
	Data    *session.Record `json:"data"`
}

// Sink never reports failures to the caller; a lost notification must not
// undo an applied transition.
type Sink interface {
	Publish(ctx context.Context, ev Event, rec *session.Record)
}

func Room(gameID string) string { return "game_" + gameID }

var (
	idEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	idEntropyMu sync.Mutex
)

// NewEventID returns a lexically sortable event id.
func NewEventID() string {
	idEntropyMu.Lock()
	defer idEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy).String()
}

func NewEnvelope(ev Event, rec *session.Record) Envelope {
	return Envelope{
		EventID: NewEventID(),
		Event:   ev,
		GameID:  rec.GameID,
		Room:    Room(rec.GameID),
		Data:    rec,
	}
}

// RedisPublisher publishes envelopes with PUBLISH.
type RedisPublisher struct {
	rdb     redis.Cmdable
	channel string
}

func NewRedisPublisher(rdb redis.Cmdable, channel string) *RedisPublisher {
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event, rec *session.Record) {
	if p == nil || rec == nil {
		return
	}
	env := NewEnvelope(ev, rec)
	raw, err := json.Marshal(env)
	if err != nil {
		obslog.L().Error("notify_encode_error", zap.String("game_id", rec.GameID), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		obslog.L().Error("notify_publish_error",
			zap.String("game_id", rec.GameID),
			zap.String("event", string(ev)),
			zap.String("event_id", env.EventID),
			zap.Error(err),
		)
		return
	}
	obslog.L().Debug("notify_publish", zap.String("game_id", rec.GameID), zap.String("event", string(ev)), zap.String("event_id", env.EventID))
}

// Recorder keeps published envelopes in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(_ context.Context, ev Event, rec *session.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NewEnvelope(ev, rec.Clone()))
}

func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.events...)
}

// Count returns how many envelopes of ev were published for gameID.
func (r *Recorder) Count(gameID string, ev Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.GameID == gameID && e.Event == ev {
			n++
		}
	}
	return n
}
