// Package queue implements the Durable Queue (spec.md §4.A): a
// per-queue Redis-backed priority store with blocking dequeue, ack,
// retry-with-backoff, and a dead-letter queue, grounded on the
// original a2a QueueService (queue.rs).
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
	"github.com/ai-ops-core/core/pkg/shared/logging"
)

// Queue names for the default bookmark_processing pipeline's five
// agent types (spec.md §4.A, §6).
const (
	QueueImport         = "a2a:queue:import"
	QueueValidation     = "a2a:queue:validation"
	QueueEnrichment     = "a2a:queue:enrichment"
	QueueCategorization = "a2a:queue:categorization"
	QueueEmbedding      = "a2a:queue:embedding"
)

// QueueForAgent maps an agent-type string to its backing queue name.
func QueueForAgent(agentType string) (string, error) {
	switch agentType {
	case "import":
		return QueueImport, nil
	case "validation":
		return QueueValidation, nil
	case "enrichment":
		return QueueEnrichment, nil
	case "categorization":
		return QueueCategorization, nil
	case "embedding":
		return QueueEmbedding, nil
	default:
		return "", fmt.Errorf("unknown agent type: %s", agentType)
	}
}

// QueueTask is a unit of work dispatched to an agent queue (spec.md
// §3 QueueTask, §6 wire contract).
type QueueTask struct {
	TaskID    string          `json:"task_id"`
	AgentType string          `json:"type"`
	Priority  int             `json:"priority"`
	Attempts  uint            `json:"attempts"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// BullJob is a Bull-compatible envelope for interoperability with
// external Node.js producers (spec.md §6).
type BullJob struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Opts      BullJobOptions  `json:"opts"`
	Timestamp int64           `json:"timestamp"`
	Attempts  uint            `json:"attempts"`
	Delay     uint64          `json:"delay"`
}

// BullJobOptions carries Bull's per-job retry policy.
type BullJobOptions struct {
	Priority int         `json:"priority"`
	Attempts uint        `json:"attempts"`
	Backoff  BullBackoff `json:"backoff"`
}

// BullBackoff configures Bull's retry backoff strategy.
type BullBackoff struct {
	Type  string `json:"type"`
	Delay uint64 `json:"delay"`
}

// MaxAttempts is the retry budget before a task is moved to the
// queue's dead-letter space (spec.md §4.A, Invariant 6).
const MaxAttempts = 3

// RetryBackoff is the priority points subtracted on each requeue
// (spec.md §4.A: "decreases priority by 10, saturating").
const RetryBackoff = 10

// Service is a Redis-backed priority queue service. One Service
// instance may drive any number of named queues; each operation
// acquires its own connection from the pooled redis.Client, so a
// blocking Dequeue on one queue never blocks an Enqueue on another
// (spec.md §9, "queue consumer concurrency" refinement).
type Service struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewService constructs a Service from an already-connected
// redis.Client.
func NewService(client *redis.Client, logger *logrus.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Enqueue inserts task into queueName, scored so that higher-priority
// tasks dequeue first (score = -priority, spec.md §6).
func (s *Service) Enqueue(ctx context.Context, queueName string, task *QueueTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return aerrors.WithKind(aerrors.FailedTo("serialize queue task", err), aerrors.KindSerialization)
	}

	score := float64(-task.Priority)
	if err := s.client.ZAdd(ctx, queueName, redis.Z{Score: score, Member: payload}).Err(); err != nil {
		return aerrors.WithKind(aerrors.FailedToWithDetails("enqueue task", "redis", queueName, err), aerrors.KindStreamBackend)
	}

	s.logger.WithFields(logging.NewFields().
		Component("queue").Operation("enqueue").Resource("queue", queueName).
		TaskID(task.TaskID).Logrus()).Info("enqueued task")
	return nil
}

// Dequeue blocks up to timeout for the highest-priority task on
// queueName. Returns (nil, nil) on timeout. Removal is atomic with
// read (BZPOPMIN).
func (s *Service) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*QueueTask, error) {
	result, err := s.client.BZPopMin(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedToWithDetails("dequeue task", "redis", queueName, err), aerrors.KindStreamBackend)
	}

	member, ok := result.Member.(string)
	if !ok {
		return nil, aerrors.WithKind(aerrors.FailedTo("decode dequeued member", fmt.Errorf("unexpected member type %T", result.Member)), aerrors.KindSerialization)
	}

	var task QueueTask
	if err := json.Unmarshal([]byte(member), &task); err != nil {
		return nil, aerrors.WithKind(aerrors.FailedTo("deserialize queue task", err), aerrors.KindSerialization)
	}

	s.logger.WithFields(logging.NewFields().
		Component("queue").Operation("dequeue").Resource("queue", queueName).
		TaskID(task.TaskID).Logrus()).Info("dequeued task")
	return &task, nil
}

// Ack records task completion in queueName's completion map.
func (s *Service) Ack(ctx context.Context, queueName, taskID string) error {
	key := queueName + ":completed"
	if err := s.client.HSet(ctx, key, taskID, time.Now().UTC().Format(time.RFC3339)).Err(); err != nil {
		return aerrors.WithKind(aerrors.FailedToWithDetails("ack task", "redis", queueName, err), aerrors.KindStreamBackend)
	}
	return nil
}

// Requeue increments task.Attempts. If the new attempt count exceeds
// MaxAttempts, the task is moved to "{queueName}:dead" and not
// re-enqueued to the primary queue. Otherwise its priority is
// decreased (saturating) by RetryBackoff and it is re-enqueued
// (spec.md §4.A, Invariant 6).
func (s *Service) Requeue(ctx context.Context, queueName string, task *QueueTask) error {
	task.Attempts++

	if task.Attempts > MaxAttempts {
		dlqName := queueName + ":dead"
		if err := s.Enqueue(ctx, dlqName, task); err != nil {
			return err
		}
		s.logger.WithFields(logging.NewFields().
			Component("queue").Operation("dead_letter").Resource("queue", queueName).
			TaskID(task.TaskID).Count(int(task.Attempts)).Logrus()).
			Warn("task moved to dead letter queue")
		return nil
	}

	task.Priority = saturatingSub(task.Priority, RetryBackoff)
	if err := s.Enqueue(ctx, queueName, task); err != nil {
		return err
	}
	s.logger.WithFields(logging.NewFields().
		Component("queue").Operation("requeue").Resource("queue", queueName).
		TaskID(task.TaskID).Count(int(task.Attempts)).Logrus()).Info("requeued task")
	return nil
}

func saturatingSub(a, b int) int {
	const minInt = -int(^uint(0)>>1) - 1
	if a > minInt+b {
		return a - b
	}
	return minInt
}

// QueueLength returns the number of tasks currently in queueName.
func (s *Service) QueueLength(ctx context.Context, queueName string) (int64, error) {
	n, err := s.client.ZCard(ctx, queueName).Result()
	if err != nil {
		return 0, aerrors.WithKind(aerrors.FailedToWithDetails("get queue length", "redis", queueName, err), aerrors.KindStreamBackend)
	}
	return n, nil
}
