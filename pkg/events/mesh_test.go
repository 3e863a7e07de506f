package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ai-ops-core/core/pkg/events"
)

func TestMesh(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Event Mesh Suite")
}

var _ = Describe("Event Mesh", func() {
	var (
		mr     *miniredis.Miniredis
		client *redis.Client
		store  *events.Store
		router *events.Router
		mesh   *events.Mesh
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())

		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		logger := logrus.New()
		logger.SetLevel(logrus.FatalLevel)

		store = events.NewStore(100)
		router = events.NewRouter()
		mesh = events.NewMesh(store, router, client, nil, "", logger)
		ctx = context.Background()
	})

	AfterEach(func() {
		mesh.Shutdown()
		client.Close()
		mr.Close()
	})

	It("stores and appends a published event to its stream", func() {
		event := events.NewEvent("TaskCompleted", "task-manager", map[string]interface{}{"task_id": "t-1"})

		Expect(mesh.Publish(ctx, event)).To(Succeed())

		_, err := store.Get(event.ID)
		Expect(err).NotTo(HaveOccurred())

		length, err := client.XLen(ctx, events.StreamKey(event.EventType)).Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(length).To(Equal(int64(1)))
	})

	It("delivers matching events to a subscriber and acks them", func() {
		var (
			mu       sync.Mutex
			received []*events.Event
		)

		Expect(mesh.Subscribe(ctx, "test-consumer", events.Subscription{
			EventTypes: []string{"TaskCompleted"},
		}, func(_ context.Context, event *events.Event) error {
			mu.Lock()
			received = append(received, event)
			mu.Unlock()
			return nil
		})).To(Succeed())

		event := events.NewEvent("TaskCompleted", "task-manager", map[string]interface{}{"task_id": "t-2"})
		Expect(mesh.Publish(ctx, event)).To(Succeed())

		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(received)
		}, time.Second*3, time.Millisecond*50).Should(Equal(1))

		mu.Lock()
		Expect(received[0].ID).To(Equal(event.ID))
		mu.Unlock()
	})

	It("does not invoke the handler for events outside the subscription filter", func() {
		var (
			mu    sync.Mutex
			count int
		)

		Expect(mesh.Subscribe(ctx, "filtered-consumer", events.Subscription{
			EventTypes: []string{"ServiceFailure"},
		}, func(_ context.Context, _ *events.Event) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})).To(Succeed())

		event := events.NewEvent("TaskCompleted", "task-manager", map[string]interface{}{"task_id": "t-3"})
		Expect(mesh.Publish(ctx, event)).To(Succeed())

		Consistently(func() int {
			mu.Lock()
			defer mu.Unlock()
			return count
		}, time.Millisecond*300, time.Millisecond*50).Should(Equal(0))
	})
})
