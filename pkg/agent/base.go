package agent

import (
	"context"
	"sync"
	"time"
)

// maxKnowledgeItems bounds the knowledge cache; the oldest entries are
// dropped once it fills (base.rs's store_knowledge).
const maxKnowledgeItems = 1000

// BaseAgent is the shared state every concrete agent embeds: identity,
// declared capabilities/subscriptions, a status cell, and a bounded
// knowledge cache (original_source's agent/base.rs). Concrete agents
// embed *BaseAgent and implement the behavioural methods of
// UniversalAgent (Process/Learn/Collaborate) themselves.
type BaseAgent struct {
	id            AgentID
	name          string
	agentType     AgentType
	capabilities  []Capability
	subscriptions []EventPattern

	mu        sync.RWMutex
	status    AgentStatus
	knowledge []Knowledge
}

// NewBaseAgent builds a BaseAgent starting in StateStarting with
// unknown health.
func NewBaseAgent(id AgentID, name string, agentType AgentType) *BaseAgent {
	return &BaseAgent{
		id:        id,
		name:      name,
		agentType: agentType,
		status: AgentStatus{
			State:        StateStarting,
			Health:       HealthUnknown,
			LastActivity: time.Now().UTC(),
			Metrics:      map[string]float64{},
		},
	}
}

// WithCapabilities sets the capabilities this agent declares.
func (b *BaseAgent) WithCapabilities(capabilities []Capability) *BaseAgent {
	b.capabilities = capabilities
	return b
}

// WithSubscriptions sets the event patterns this agent declares.
func (b *BaseAgent) WithSubscriptions(subscriptions []EventPattern) *BaseAgent {
	b.subscriptions = subscriptions
	return b
}

func (b *BaseAgent) ID() AgentID                    { return b.id }
func (b *BaseAgent) Name() string                   { return b.name }
func (b *BaseAgent) AgentType() AgentType           { return b.agentType }
func (b *BaseAgent) Capabilities() []Capability     { return b.capabilities }
func (b *BaseAgent) Subscriptions() []EventPattern  { return b.subscriptions }

// SetState transitions the agent's state and refreshes last_activity.
func (b *BaseAgent) SetState(state AgentState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.State = state
	b.status.LastActivity = time.Now().UTC()
}

// SetHealth updates the agent's self-reported health.
func (b *BaseAgent) SetHealth(health Health) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.Health = health
}

// TaskStarted records the start of one more in-flight task, recomputes
// load assuming a capacity of 10 concurrent tasks, and enters
// StateProcessing (base.rs's task_started).
func (b *BaseAgent) TaskStarted() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.ActiveTasks++
	b.status.CurrentLoad = float64(b.status.ActiveTasks) / 10.0
	b.status.State = StateProcessing
}

// TaskCompleted records the completion of one in-flight task and
// returns to StateIdle once none remain (base.rs's task_completed).
func (b *BaseAgent) TaskCompleted() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status.ActiveTasks > 0 {
		b.status.ActiveTasks--
	}
	b.status.CurrentLoad = float64(b.status.ActiveTasks) / 10.0
	if b.status.ActiveTasks == 0 {
		b.status.State = StateIdle
	}
}

// Status returns a snapshot of the agent's current status.
func (b *BaseAgent) Status(_ context.Context) AgentStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	metrics := make(map[string]float64, len(b.status.Metrics))
	for k, v := range b.status.Metrics {
		metrics[k] = v
	}
	status := b.status
	status.Metrics = metrics
	return status
}

// StoreKnowledge appends knowledge to the cache, dropping the oldest
// entries once it exceeds maxKnowledgeItems (base.rs's store_knowledge).
func (b *BaseAgent) StoreKnowledge(knowledge Knowledge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.knowledge = append(b.knowledge, knowledge)
	if overflow := len(b.knowledge) - maxKnowledgeItems; overflow > 0 {
		b.knowledge = b.knowledge[overflow:]
	}
}

// RetrieveKnowledge returns every cached Knowledge item whose
// applicable context is a superset of queryCtx's environment (base.rs's
// retrieve_knowledge / context_matches: the query's keys must all be
// present with matching values in the candidate's environment).
func (b *BaseAgent) RetrieveKnowledge(queryCtx KnowledgeContext) []Knowledge {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matches []Knowledge
	for _, k := range b.knowledge {
		for _, applicable := range k.ApplicableContexts {
			if contextMatches(applicable, queryCtx) {
				matches = append(matches, k)
				break
			}
		}
	}
	return matches
}

// contextMatches reports whether every environment key set in query is
// present with an equal value in candidate (a subset test).
func contextMatches(candidate, query KnowledgeContext) bool {
	for key, value := range query.Environment {
		if candidateValue, ok := candidate.Environment[key]; !ok || candidateValue != value {
			return false
		}
	}
	return true
}
