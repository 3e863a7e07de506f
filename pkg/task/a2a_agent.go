package task

import (
	"context"

	"github.com/ai-ops-core/core/pkg/agent"
)

// A2AAgent is the contract a workflow step implements so the Task
// Manager can dispatch work to it and collect its output (a2a/src/
// agent.rs's A2AAgent trait).
type A2AAgent interface {
	GetAgentCard() agent.Card
	AgentType() string
	ExecuteTask(ctx context.Context, t *A2ATask) ([]Artifact, error)
	SupportsStreaming() bool
}
