package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ProgressEvent announces a progress write. A zero StudentID means every record of
// the course changed (course tree saved).
type ProgressEvent struct {
	StudentID    uint      `json:"studentId"`
	CourseID     uint      `json:"courseId"`
	ModuleIndex  int       `json:"moduleIndex"`
	SectionIndex int       `json:"sectionIndex"`
	IsCompleted  bool      `json:"isCompleted"`
	Source       string    `json:"source"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// ProgressListener reacts to progress events.
type ProgressListener func(ctx context.Context, event ProgressEvent)

// ProgressEventBus delivers progress events to in-process listeners and to other API
// nodes through redis pub/sub and NATS.
type ProgressEventBus interface {
	Publish(ctx context.Context, event ProgressEvent)
	Listen(listener ProgressListener)
	Start(ctx context.Context)
}

type progressEnvelope struct {
	Node   string        `json:"node"`
	Event  ProgressEvent `json:"event"`
	SentAt time.Time     `json:"sent_at"`
}

type progressEventBus struct {
	mu          sync.RWMutex
	listeners   []ProgressListener
	redis       *redis.Client
	redisTopic  string
	nats        *nats.Conn
	natsSubject string
	nodeID      string
	logger      zerolog.Logger
}

// NewProgressEventBus constructs the bus. Redis and NATS are optional.
func NewProgressEventBus(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) ProgressEventBus {
	topic := ""
	subject := ""
	if channelBase != "" {
		topic = channelBase + ":progress"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".progress"
	}

	return &progressEventBus{
		redis:       redisClient,
		redisTopic:  topic,
		nats:        natsConn,
		natsSubject: subject,
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "progress_events").Logger(),
	}
}

func (b *progressEventBus) Listen(listener ProgressListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

func (b *progressEventBus) Start(ctx context.Context) {
	if b.redis != nil && b.redisTopic != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		b.consumeNATS(ctx)
	}
}

// Publish runs local listeners before forwarding the event to other nodes.
func (b *progressEventBus) Publish(ctx context.Context, event ProgressEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	b.dispatch(ctx, event)

	payload, err := json.Marshal(progressEnvelope{Node: b.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to encode progress event")
		return
	}

	if b.redis != nil && b.redisTopic != "" {
		if err := b.redis.Publish(ctx, b.redisTopic, payload).Err(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to publish progress event to redis")
		}
	}
	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			b.logger.Warn().Err(err).Msg("failed to publish progress event to nats")
		}
	}
}

func (b *progressEventBus) dispatch(ctx context.Context, event ProgressEvent) {
	b.mu.RLock()
	listeners := append([]ProgressListener(nil), b.listeners...)
	b.mu.RUnlock()

	for _, listener := range listeners {
		listener(ctx, event)
	}
}

func (b *progressEventBus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisTopic)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			b.logger.Error().Err(err).Msg("progress redis subscription closed")
			return
		}
		b.handle(ctx, []byte(msg.Payload))
	}
}

// Every node needs every event, so NATS uses a plain subscription rather than a queue group.
func (b *progressEventBus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handle(ctx, msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats progress subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain progress nats subscription")
		}
	}()
}

func (b *progressEventBus) handle(ctx context.Context, payload []byte) {
	var envelope progressEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid progress event payload")
		return
	}
	if envelope.Node == b.nodeID {
		return
	}
	b.dispatch(ctx, envelope.Event)
}
