package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ai-ops-core/core/pkg/agent"
	"github.com/ai-ops-core/core/pkg/queue"
	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
	"github.com/ai-ops-core/core/pkg/shared/logging"
)

var tracer = otel.Tracer("ai-ops-core/task")

// queueByAgentType mirrors queue.QueueForAgent's wiring into the five
// built-in pipeline stages (manager.rs's queue_next_agent match).
func queueByAgentType(agentType string) (string, error) {
	return queue.QueueForAgent(agentType)
}

// Manager orchestrates agent workflows: it owns the agent table, the
// task table, and the workflow definitions, and drives tasks through
// their workflow by enqueueing work onto the Durable Queue (spec.md
// §4.I, manager.rs's TaskManager).
type Manager struct {
	mu        sync.RWMutex
	agents    map[string]A2AAgent
	tasks     map[string]A2ATask
	workflows map[string]WorkflowDefinition

	queue  *queue.Service
	logger *logrus.Logger
}

// NewManager builds a Manager with the three built-in workflows
// registered (manager.rs's register_builtin_workflows).
func NewManager(queueService *queue.Service, logger *logrus.Logger) *Manager {
	m := &Manager{
		agents:    map[string]A2AAgent{},
		tasks:     map[string]A2ATask{},
		workflows: map[string]WorkflowDefinition{},
		queue:     queueService,
		logger:    logger,
	}
	m.registerBuiltinWorkflows()
	return m
}

func (m *Manager) registerBuiltinWorkflows() {
	m.workflows["bookmark_processing"] = WorkflowDefinition{
		Name:        "Bookmark Processing",
		Agents:      []string{"import", "validation", "enrichment", "categorization", "embedding"},
		Description: "Complete bookmark processing pipeline",
	}
	m.workflows["import_only"] = WorkflowDefinition{
		Name:        "Import Only",
		Agents:      []string{"import"},
		Description: "Import bookmarks without processing",
	}
	m.workflows["validate_enrich"] = WorkflowDefinition{
		Name:        "Validate and Enrich",
		Agents:      []string{"validation", "enrichment"},
		Description: "Validate URLs and enrich with metadata",
	}
}

// RegisterWorkflow installs (or overrides) a named workflow
// definition, for callers whose pipeline extends beyond the three
// built-ins.
func (m *Manager) RegisterWorkflow(name string, definition WorkflowDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[name] = definition
}

// RegisterAgent registers an agent under its agent_type (manager.rs's
// register_agent).
func (m *Manager) RegisterAgent(a A2AAgent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[a.AgentType()] = a
	m.logger.WithFields(logging.NewFields().
		Component("task_manager").Operation("register_agent").
		Resource("agent_type", a.AgentType()).Logrus()).Info("agent registered")
}

// GetAgents returns the discovery card for every registered agent.
func (m *Manager) GetAgents() []agent.Card {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cards := make([]agent.Card, 0, len(m.agents))
	for _, a := range m.agents {
		cards = append(cards, a.GetAgentCard())
	}
	return cards
}

// CreateTask instantiates a task for request.WorkflowType and queues
// its first agent (manager.rs's create_task).
func (m *Manager) CreateTask(ctx context.Context, request CreateTaskRequest) (Response, error) {
	m.mu.RLock()
	workflow, ok := m.workflows[request.WorkflowType]
	m.mu.RUnlock()
	if !ok {
		return Response{}, aerrors.NotFound("workflow", request.WorkflowType)
	}

	t := NewA2ATask(request.WorkflowType, workflow.Name, workflow.Agents, request.Context)

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()

	if err := m.queueNextAgent(ctx, t.ID); err != nil {
		return Response{}, err
	}

	m.logger.WithFields(logging.NewFields().
		Component("task_manager").Operation("create_task").
		TaskID(t.ID).Logrus()).Info("created task")

	return Response{
		ID:        t.ID,
		TaskType:  t.TaskType,
		Status:    t.Status,
		Progress:  t.ProgressPercentage(),
		StreamURL: fmt.Sprintf("/api/tasks/%s/stream", t.ID),
	}, nil
}

// GetTask returns a snapshot of a task by id.
func (m *Manager) GetTask(_ context.Context, taskID string) (A2ATask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return A2ATask{}, aerrors.NotFound("task", taskID)
	}
	return t, nil
}

// UpdateTaskStatus transitions a task's status in place.
func (m *Manager) UpdateTaskStatus(_ context.Context, taskID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return aerrors.NotFound("task", taskID)
	}
	t.UpdateStatus(status)
	m.tasks[taskID] = t
	return nil
}

// ProcessTask dispatches task_id to agent_type and records the
// outcome. It follows a snapshot-then-release locking pattern: the
// task is read under RLock and the lock released before the
// (potentially slow) agent call runs; the write lock is reacquired
// only to commit the resulting artifacts/messages/status (spec.md §9:
// avoids holding the task table lock for the duration of agent
// execution).
func (m *Manager) ProcessTask(ctx context.Context, taskID, agentType string) error {
	ctx, span := tracer.Start(ctx, "task.process_task", trace.WithAttributes(
		attribute.String("task_id", taskID),
		attribute.String("agent_type", agentType),
	))
	defer span.End()

	m.mu.RLock()
	t, ok := m.tasks[taskID]
	a, agentOK := m.agents[agentType]
	m.mu.RUnlock()

	if !ok {
		return aerrors.NotFound("task", taskID)
	}
	if !agentOK {
		return aerrors.NotFound("agent", agentType)
	}

	if err := m.UpdateTaskStatus(ctx, taskID, StatusRunning); err != nil {
		return err
	}

	artifacts, err := a.ExecuteTask(ctx, &t)

	m.mu.Lock()
	t, ok = m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return aerrors.NotFound("task", taskID)
	}
	if err != nil {
		t.AddMessage(ErrorMessage(fmt.Sprintf("agent %s failed: %s", agentType, err)))
		t.UpdateStatus(StatusFailed)
		m.tasks[taskID] = t
		m.mu.Unlock()

		m.logger.WithFields(logging.NewFields().
			Component("task_manager").Operation("process_task").
			TaskID(taskID).Error(err).Logrus()).Error("agent failed")
		span.RecordError(err)
		return nil
	}

	for _, artifact := range artifacts {
		t.AddArtifact(artifact)
	}
	t.AddMessage(InfoMessage(fmt.Sprintf("agent %s completed successfully", agentType)))
	m.tasks[taskID] = t
	m.mu.Unlock()

	return m.queueNextAgent(ctx, taskID)
}

// queueNextAgent advances task_id's workflow and enqueues its next
// agent, or marks the task Completed once the workflow is exhausted
// (manager.rs's queue_next_agent).
func (m *Manager) queueNextAgent(ctx context.Context, taskID string) error {
	m.mu.Lock()
	t, ok := m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return aerrors.NotFound("task", taskID)
	}

	nextAgent, hasNext := t.NextAgent()
	if !hasNext {
		t.UpdateStatus(StatusCompleted)
		t.AddMessage(InfoMessage("workflow completed successfully"))
		m.tasks[taskID] = t
		m.mu.Unlock()
		return nil
	}
	m.tasks[taskID] = t
	m.mu.Unlock()

	queueName, err := queueByAgentType(nextAgent)
	if err != nil {
		return aerrors.FailedToWithDetails("queue next agent", "task_manager", nextAgent, err)
	}

	queueTask := &queue.QueueTask{
		TaskID:    taskID,
		AgentType: nextAgent,
		Priority:  10,
		Attempts:  0,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.queue.Enqueue(ctx, queueName, queueTask); err != nil {
		return err
	}

	m.logger.WithFields(logging.NewFields().
		Component("task_manager").Operation("queue_next_agent").
		Resource("queue", queueName).TaskID(taskID).Logrus()).Info("queued agent")
	return nil
}

// StartProcessor spawns one consumer goroutine per built-in queue.
// Each loop dequeues with a 5s timeout, processes any task it finds,
// requeues on failure, and sleeps 1s between iterations
// (manager.rs's start_processor/process_queue). Goroutines exit when
// ctx is cancelled.
func (m *Manager) StartProcessor(ctx context.Context) {
	stages := []struct {
		queueName string
		agentType string
	}{
		{queue.QueueImport, "import"},
		{queue.QueueValidation, "validation"},
		{queue.QueueEnrichment, "enrichment"},
		{queue.QueueCategorization, "categorization"},
		{queue.QueueEmbedding, "embedding"},
	}

	for _, stage := range stages {
		go m.runQueueProcessor(ctx, stage.queueName, stage.agentType)
	}
}

func (m *Manager) runQueueProcessor(ctx context.Context, queueName, agentType string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.processQueue(ctx, queueName, agentType); err != nil {
			m.logger.WithFields(logging.NewFields().
				Component("task_manager").Operation("process_queue").
				Resource("queue", queueName).Error(err).Logrus()).Error("queue processor error")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (m *Manager) processQueue(ctx context.Context, queueName, agentType string) error {
	task, err := m.queue.Dequeue(ctx, queueName, 5*time.Second)
	if err != nil {
		return err
	}
	if task == nil {
		return nil
	}

	if err := m.ProcessTask(ctx, task.TaskID, agentType); err != nil {
		m.logger.WithFields(logging.NewFields().
			Component("task_manager").Operation("process_task").
			TaskID(task.TaskID).Error(err).Logrus()).Error("failed to process task")
		return m.queue.Requeue(ctx, queueName, task)
	}
	return nil
}
