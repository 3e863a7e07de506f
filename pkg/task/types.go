// Package task implements the Task Manager (spec.md §4.I): a workflow
// registry, a task table, and the create/queue/process loop driving
// agents through a named, ordered workflow. Grounded on
// original_source's a2a/src/{manager,task,artifact}.rs.
package task

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is where an A2ATask sits in its lifecycle (task.rs's
// TaskStatus).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// WorkflowState tracks a task's position within its workflow
// (task.rs's WorkflowState).
type WorkflowState struct {
	WorkflowType string   `json:"type"`
	Agents       []string `json:"agents"`
	CurrentAgent string   `json:"currentAgent,omitempty"`
	CurrentStep  int      `json:"currentStep"`
	TotalSteps   int      `json:"totalSteps"`
}

// Artifact is immutable data produced by an agent while executing a
// task (a2a/src/artifact.rs's Artifact). Unlike the bookmark-app
// original, this package exposes only the generic constructor:
// callers build domain-specific artifacts (a root-cause report, a fix
// plan, a classification) by naming their own artifact_type/mime_type
// rather than through bookmark-specific convenience constructors.
type Artifact struct {
	ID           string      `json:"id"`
	ArtifactType string      `json:"type"`
	MimeType     string      `json:"mimeType"`
	Data         interface{} `json:"data"`
	Created      time.Time   `json:"created"`
	Immutable    bool        `json:"immutable"`
	Metadata     interface{} `json:"metadata,omitempty"`
}

// NewArtifact builds an immutable Artifact of the given type.
func NewArtifact(artifactType, mimeType string, data interface{}) Artifact {
	return Artifact{
		ID:           "artifact_" + uuid.New().String(),
		ArtifactType: artifactType,
		MimeType:     mimeType,
		Data:         data,
		Created:      time.Now().UTC(),
		Immutable:    true,
	}
}

// Message is communication between an agent and the task manager
// (a2a/src/artifact.rs's Message).
type Message struct {
	ID          string      `json:"id"`
	MessageType string      `json:"type"`
	Content     string      `json:"content"`
	Timestamp   time.Time   `json:"timestamp"`
	Metadata    interface{} `json:"metadata,omitempty"`
}

func newMessage(messageType, content string) Message {
	return Message{
		ID:          "msg_" + uuid.New().String(),
		MessageType: messageType,
		Content:     content,
		Timestamp:   time.Now().UTC(),
	}
}

// InfoMessage builds an informational Message.
func InfoMessage(content string) Message { return newMessage("info", content) }

// ErrorMessage builds an error Message.
func ErrorMessage(content string) Message { return newMessage("error", content) }

// WarningMessage builds a warning Message.
func WarningMessage(content string) Message { return newMessage("warning", content) }

// ProgressMessage builds a progress Message carrying a current/total
// percentage in its metadata.
func ProgressMessage(current, total int, description string) Message {
	msg := newMessage("progress", description)
	percentage := uint8(0)
	if total > 0 {
		percentage = uint8(float64(current) / float64(total) * 100.0)
	}
	msg.Metadata = map[string]interface{}{
		"current":    current,
		"total":      total,
		"percentage": percentage,
	}
	return msg
}

// A2ATask is one in-flight (or finished) workflow execution (task.rs's
// A2ATask).
type A2ATask struct {
	ID        string        `json:"id"`
	TaskType  string        `json:"type"`
	Status    Status        `json:"status"`
	Created   time.Time     `json:"created"`
	Updated   time.Time     `json:"updated"`
	Artifacts []Artifact    `json:"artifacts"`
	Messages  []Message     `json:"messages"`
	Workflow  WorkflowState `json:"workflow"`
	Context   interface{}   `json:"context"`
	Metadata  interface{}   `json:"metadata,omitempty"`
}

// NewA2ATask starts a new task pending its workflow's first agent
// (task.rs's A2ATask::new).
func NewA2ATask(taskType, workflowType string, agents []string, context interface{}) A2ATask {
	now := time.Now().UTC()
	id := fmt.Sprintf("task_%d_%s", now.UnixMilli(), shortUUID())
	return A2ATask{
		ID:       id,
		TaskType: taskType,
		Status:   StatusPending,
		Created:  now,
		Updated:  now,
		Workflow: WorkflowState{
			WorkflowType: workflowType,
			Agents:       agents,
			TotalSteps:   len(agents),
		},
		Context: context,
	}
}

func shortUUID() string {
	full := uuid.New().String()
	for i, c := range full {
		if c == '-' {
			return full[:i]
		}
	}
	return full
}

// AddArtifact appends artifact and bumps Updated.
func (t *A2ATask) AddArtifact(artifact Artifact) {
	t.Artifacts = append(t.Artifacts, artifact)
	t.Updated = time.Now().UTC()
}

// AddMessage appends message and bumps Updated.
func (t *A2ATask) AddMessage(message Message) {
	t.Messages = append(t.Messages, message)
	t.Updated = time.Now().UTC()
}

// UpdateStatus transitions the task's status and bumps Updated.
func (t *A2ATask) UpdateStatus(status Status) {
	t.Status = status
	t.Updated = time.Now().UTC()
}

// NextAgent advances the workflow to its next step, returning the
// agent type to dispatch and whether one remained (task.rs's
// next_agent: current_step is monotonic and bounded by total_steps).
func (t *A2ATask) NextAgent() (string, bool) {
	if t.Workflow.CurrentStep >= t.Workflow.TotalSteps {
		return "", false
	}
	next := t.Workflow.Agents[t.Workflow.CurrentStep]
	t.Workflow.CurrentAgent = next
	t.Workflow.CurrentStep++
	return next, true
}

// ProgressPercentage reports how far through its workflow the task
// has advanced.
func (t *A2ATask) ProgressPercentage() uint8 {
	if t.Workflow.TotalSteps == 0 {
		return 100
	}
	return uint8(float64(t.Workflow.CurrentStep) / float64(t.Workflow.TotalSteps) * 100.0)
}

// CreateTaskRequest is what a caller submits to start a new task.
type CreateTaskRequest struct {
	WorkflowType string
	Context      interface{}
	Options      interface{}
}

// Response is what CreateTask returns.
type Response struct {
	ID        string
	TaskType  string
	Status    Status
	Progress  uint8
	StreamURL string
}

// WorkflowDefinition is a named, ordered sequence of agent-type
// strings (spec.md §4.I).
type WorkflowDefinition struct {
	Name        string
	Agents      []string
	Description string
}
