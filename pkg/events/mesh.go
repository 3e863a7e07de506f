package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
	"github.com/ai-ops-core/core/pkg/shared/logging"
)

// streams enumerates the five logical event streams (spec.md §4.D,
// §6).
var streams = []string{
	"events:service",
	"events:task",
	"events:learning",
	"events:collaboration",
	"events:system",
}

// Subscription describes what a subscriber wants to see (spec.md
// §4.D/H EventPattern).
type Subscription struct {
	EventTypes     []string
	SourceFilter   string
	MetadataFilter map[string]interface{}
}

func (s Subscription) matches(e *Event) bool {
	if len(s.EventTypes) > 0 && !contains(s.EventTypes, e.EventType) {
		return false
	}
	if s.SourceFilter != "" && e.Source != s.SourceFilter {
		return false
	}
	for k, v := range s.MetadataFilter {
		mv, ok := e.Metadata[k]
		if !ok || mv != v {
			return false
		}
	}
	return true
}

// SubscriptionHandler consumes events accepted by a Subscription.
type SubscriptionHandler func(ctx context.Context, event *Event) error

// Mesh binds the Event Store, Event Router, and a Redis stream backend
// (spec.md §4.D). A published event is stored, appended to its
// family's stream, and delivered to every accepted in-process
// Processor as a detached goroutine.
type Mesh struct {
	store      *Store
	router     *Router
	client     *redis.Client
	logger     *logrus.Logger
	pipeline   *ProcessorPipeline
	groupPrefix string

	mu        sync.Mutex
	cancels   []context.CancelFunc
	consumers sync.WaitGroup
}

// NewMesh constructs a Mesh over an existing Store/Router/redis
// client. groupPrefix defaults to "ai-ops-" (spec.md §4.D consumer
// group naming: "ai-ops-{name}").
func NewMesh(store *Store, router *Router, client *redis.Client, pipeline *ProcessorPipeline, groupPrefix string, logger *logrus.Logger) *Mesh {
	if groupPrefix == "" {
		groupPrefix = "ai-ops-"
	}
	return &Mesh{
		store:       store,
		router:      router,
		client:      client,
		pipeline:    pipeline,
		groupPrefix: groupPrefix,
		logger:      logger,
	}
}

// EnsureGroups creates the Redis consumer groups for every stream
// (idempotent; BUSYGROUP errors are ignored), starting each group at
// the newest entry ("$") per spec.md §6.
func (m *Mesh) EnsureGroups(ctx context.Context, groupName string) error {
	for _, stream := range streams {
		err := m.client.XGroupCreateMkStream(ctx, stream, groupName, "$").Err()
		if err != nil && !isBusyGroup(err) {
			return aerrors.WithKind(aerrors.FailedToWithDetails("create consumer group", "redis", stream, err), aerrors.KindStreamBackend)
		}
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

// Publish stores event, routes it, appends it to its stream, and
// fans it out to every Processor that accepts it (spec.md §4.D).
func (m *Mesh) Publish(ctx context.Context, event *Event) error {
	m.store.Store(event)

	if m.router != nil {
		if err := m.router.Route(ctx, event); err != nil {
			m.logger.WithFields(logging.NewFields().Component("event_mesh").Operation("route").Error(err).Logrus()).
				Error("router handler failed")
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return aerrors.WithKind(aerrors.FailedTo("serialize event", err), aerrors.KindSerialization)
	}

	stream := StreamKey(event.EventType)
	if err := m.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"event_id":   event.ID.String(),
			"event_type": event.EventType,
			"source":     event.Source,
			"data":       payload,
		},
	}).Err(); err != nil {
		return aerrors.WithKind(aerrors.FailedToWithDetails("publish event", "redis", stream, err), aerrors.KindStreamBackend)
	}

	if m.pipeline != nil {
		go func() {
			if err := m.pipeline.Process(context.Background(), event); err != nil {
				m.logger.WithFields(logging.NewFields().Component("event_mesh").Operation("process").Error(err).Logrus()).
					Error("processor pipeline failed")
			}
		}()
	}

	return nil
}

// Subscribe creates a long-running consumer for consumer group
// "{groupPrefix}{name}" across all five streams. It blocks up to ~1s
// for up to 10 new messages at a time, deserialises each, tests
// subscription.matches, invokes handler, and acks the message; on read
// error it logs and backs off 1s (spec.md §4.D).
func (m *Mesh) Subscribe(ctx context.Context, name string, subscription Subscription, handler SubscriptionHandler) error {
	group := m.groupPrefix + name
	if err := m.EnsureGroups(ctx, group); err != nil {
		return err
	}

	consumerCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancels = append(m.cancels, cancel)
	m.consumers.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.consumers.Done()
		defer cancel()
		m.consumeLoop(consumerCtx, group, name, subscription, handler)
	}()

	return nil
}

func (m *Mesh) consumeLoop(ctx context.Context, group, consumerName string, subscription Subscription, handler SubscriptionHandler) {
	streamArgs := make([]string, 0, len(streams)*2)
	for _, s := range streams {
		streamArgs = append(streamArgs, s)
	}
	ids := make([]string, len(streams))
	for i := range ids {
		ids[i] = ">"
	}
	streamArgs = append(streamArgs, ids...)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := m.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumerName,
			Streams:  streamArgs,
			Count:    10,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			m.logger.WithFields(logging.NewFields().Component("event_mesh").Operation("read").Error(err).Logrus()).
				Error("consumer read failed")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				m.handleMessage(ctx, stream.Stream, group, msg, subscription, handler)
			}
		}
	}
}

func (m *Mesh) handleMessage(ctx context.Context, stream, group string, msg redis.XMessage, subscription Subscription, handler SubscriptionHandler) {
	raw, _ := msg.Values["data"].(string)
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		m.logger.WithFields(logging.NewFields().Component("event_mesh").Operation("decode").Error(err).Logrus()).
			Error("failed to decode stream message")
		return
	}

	if subscription.matches(&event) {
		if err := handler(ctx, &event); err != nil {
			m.logger.WithFields(logging.NewFields().Component("event_mesh").Operation("handle").Error(err).
				CorrelationID(correlationIDString(&event)).Logrus()).
				Error("subscription handler failed")
		}
	}

	m.client.XAck(ctx, stream, group, msg.ID)
}

func correlationIDString(e *Event) string {
	if e.CorrelationID == nil {
		return ""
	}
	return e.CorrelationID.String()
}

// Shutdown cancels all consumer goroutines and waits for them to
// exit.
func (m *Mesh) Shutdown() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = nil
	m.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	m.consumers.Wait()
}
