package queue_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ai-ops-core/core/pkg/queue"
)

func TestQueue(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Durable Queue Suite")
}

var _ = Describe("Durable Queue", func() {
	var (
		mr     *miniredis.Miniredis
		client *redis.Client
		svc    *queue.Service
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())

		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		logger := logrus.New()
		logger.SetLevel(logrus.FatalLevel)
		svc = queue.NewService(client, logger)
		ctx = context.Background()
	})

	AfterEach(func() {
		client.Close()
		mr.Close()
	})

	newTask := func(id string, priority int) *queue.QueueTask {
		return &queue.QueueTask{
			TaskID:    id,
			AgentType: "import",
			Priority:  priority,
			Attempts:  0,
			Data:      json.RawMessage(`{"taskId":"` + id + `"}`),
			CreatedAt: time.Now().UTC(),
		}
	}

	Describe("Enqueue and Dequeue", func() {
		It("dequeues the highest priority task first", func() {
			Expect(svc.Enqueue(ctx, queue.QueueImport, newTask("low", 1))).To(Succeed())
			Expect(svc.Enqueue(ctx, queue.QueueImport, newTask("high", 10))).To(Succeed())

			got, err := svc.Dequeue(ctx, queue.QueueImport, time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.TaskID).To(Equal("high"))
		})

		It("returns nil on timeout when the queue is empty", func() {
			got, err := svc.Dequeue(ctx, queue.QueueImport, 50*time.Millisecond)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})
	})

	Describe("Ack", func() {
		It("records completion", func() {
			Expect(svc.Ack(ctx, queue.QueueImport, "task-1")).To(Succeed())
			exists, err := mr.HGet(queue.QueueImport+":completed", "task-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).NotTo(BeEmpty())
		})
	})

	Describe("Requeue", func() {
		It("decreases priority and re-enqueues when under the retry budget", func() {
			task := newTask("retry-me", 10)
			Expect(svc.Requeue(ctx, queue.QueueImport, task)).To(Succeed())

			Expect(task.Attempts).To(Equal(uint(1)))

			got, err := svc.Dequeue(ctx, queue.QueueImport, time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TaskID).To(Equal("retry-me"))
			Expect(got.Priority).To(Equal(0))
		})

		It("moves to the dead-letter queue after exceeding MaxAttempts", func() {
			task := newTask("doomed", 10)
			task.Attempts = queue.MaxAttempts // next Requeue call will push attempts to MaxAttempts+1

			Expect(svc.Requeue(ctx, queue.QueueImport, task)).To(Succeed())
			Expect(task.Attempts).To(Equal(uint(queue.MaxAttempts + 1)))

			primaryLen, err := svc.QueueLength(ctx, queue.QueueImport)
			Expect(err).NotTo(HaveOccurred())
			Expect(primaryLen).To(Equal(int64(0)))

			dlqLen, err := svc.QueueLength(ctx, queue.QueueImport+":dead")
			Expect(err).NotTo(HaveOccurred())
			Expect(dlqLen).To(Equal(int64(1)))
		})

		It("dead-letters after four sequential requeues of one task (S3)", func() {
			task := newTask("s3", 10)

			for i := 0; i < 4; i++ {
				Expect(svc.Requeue(ctx, queue.QueueImport, task)).To(Succeed())
				if task.Attempts <= queue.MaxAttempts {
					dequeued, err := svc.Dequeue(ctx, queue.QueueImport, time.Second)
					Expect(err).NotTo(HaveOccurred())
					task = dequeued
				}
			}

			Expect(task.Attempts).To(Equal(uint(4)))

			primaryLen, err := svc.QueueLength(ctx, queue.QueueImport)
			Expect(err).NotTo(HaveOccurred())
			Expect(primaryLen).To(Equal(int64(0)))

			dlqLen, err := svc.QueueLength(ctx, queue.QueueImport+":dead")
			Expect(err).NotTo(HaveOccurred())
			Expect(dlqLen).To(Equal(int64(1)))
		})
	})

	Describe("QueueForAgent", func() {
		It("maps known agent types to their queue names", func() {
			name, err := queue.QueueForAgent("validation")
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal(queue.QueueValidation))
		})

		It("errors on unknown agent types", func() {
			_, err := queue.QueueForAgent("unknown")
			Expect(err).To(HaveOccurred())
		})
	})
})
