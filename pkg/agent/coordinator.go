package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ai-ops-core/core/pkg/registry"
	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
)

// CoordinationRequest asks the coordinator to run a multi-agent task
// (spec.md §4.H).
type CoordinationRequest struct {
	TaskType             string
	Strategy             string
	RequiredCapabilities []Capability
	Payload              interface{}
	Timeout              *time.Duration
	MinParticipants      int
	MaxParticipants      *int
}

// SessionStatus is where a CoordinationSession sits in its lifecycle.
type SessionStatus string

const (
	SessionInitiated  SessionStatus = "initiated"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
	SessionCancelled  SessionStatus = "cancelled"
)

// CoordinationSession tracks one in-flight (or finished) coordination.
type CoordinationSession struct {
	ID           uuid.UUID
	Request      CoordinationRequest
	Participants []AgentID
	Status       SessionStatus
	StartedAt    time.Time
	Results      map[AgentID]interface{}
}

// CoordinationStatus is the progress view returned while a session is
// running or after it finishes.
type CoordinationStatus struct {
	SessionID        uuid.UUID
	Status           SessionStatus
	Participants     int
	Progress         float64
	ResultsAvailable bool
}

// CoordinationResult is the final, aggregated outcome of a session.
type CoordinationResult struct {
	SessionID         uuid.UUID
	Success           bool
	AggregatedResult  interface{}
	IndividualResults map[AgentID]interface{}
	Duration          time.Duration
}

// CoordinationStrategy runs one coordination session to completion
// (coordinator.rs's CoordinationStrategy trait).
type CoordinationStrategy interface {
	Coordinate(ctx context.Context, session CoordinationSession) (map[AgentID]interface{}, error)
}

// AgentCoordinator selects participants from the Service Registry and
// runs consensus/delegation/parallel coordination strategies over them
// (spec.md §4.H, coordinator.rs's AgentCoordinator).
type AgentCoordinator struct {
	registry *registry.Registry

	mu       sync.RWMutex
	sessions map[uuid.UUID]CoordinationSession

	strategies map[string]CoordinationStrategy
}

// NewAgentCoordinator builds a coordinator backed by reg, registering
// the default consensus/delegation/parallel strategies.
func NewAgentCoordinator(reg *registry.Registry) *AgentCoordinator {
	return &AgentCoordinator{
		registry: reg,
		sessions: map[uuid.UUID]CoordinationSession{},
		strategies: map[string]CoordinationStrategy{
			"consensus":  consensusStrategy{},
			"delegation": delegationStrategy{},
			"parallel":   parallelStrategy{},
		},
	}
}

// RegisterStrategy installs (or overrides) a named coordination
// strategy.
func (c *AgentCoordinator) RegisterStrategy(name string, strategy CoordinationStrategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategies[name] = strategy
}

// StartSession finds eligible participants for request, creates a
// session, and runs its strategy to completion synchronously
// (coordinator.rs's start_session + execute_coordination).
func (c *AgentCoordinator) StartSession(ctx context.Context, request CoordinationRequest) (uuid.UUID, error) {
	participants, err := c.findSuitableAgents(ctx, request)
	if err != nil {
		return uuid.UUID{}, err
	}
	if len(participants) == 0 {
		return uuid.UUID{}, aerrors.WithKind(aerrors.NotFound("coordination", "eligible agents"), aerrors.KindAgent)
	}

	sessionID := uuid.New()
	session := CoordinationSession{
		ID:           sessionID,
		Request:      request,
		Participants: participants,
		Status:       SessionInitiated,
		StartedAt:    time.Now().UTC(),
		Results:      map[AgentID]interface{}{},
	}

	c.mu.Lock()
	c.sessions[sessionID] = session
	c.mu.Unlock()

	if err := c.executeCoordination(ctx, sessionID); err != nil {
		return sessionID, err
	}
	return sessionID, nil
}

// findSuitableAgents queries the registry once per required
// capability and intersects the results, so a participant must
// advertise every capability the request names. Results arrive from
// registry.FindByCapability already sorted healthy-first and by
// ascending load, and that ordering is preserved so MaxParticipants
// truncation keeps the least-loaded healthy agents.
func (c *AgentCoordinator) findSuitableAgents(ctx context.Context, request CoordinationRequest) ([]AgentID, error) {
	if len(request.RequiredCapabilities) == 0 {
		return nil, aerrors.WithKind(aerrors.FailedToWithDetails("find suitable agents", "coordinator", "required_capabilities", nil), aerrors.KindAgent)
	}

	first, err := c.registry.FindByCapability(ctx, registry.Capability(request.RequiredCapabilities[0]))
	if err != nil {
		return nil, err
	}

	ordered := make([]AgentID, 0, len(first))
	eligible := make(map[AgentID]bool, len(first))
	for _, info := range first {
		ordered = append(ordered, info.Definition.ID)
		eligible[info.Definition.ID] = true
	}

	for _, capability := range request.RequiredCapabilities[1:] {
		infos, err := c.registry.FindByCapability(ctx, registry.Capability(capability))
		if err != nil {
			return nil, err
		}
		present := make(map[AgentID]bool, len(infos))
		for _, info := range infos {
			present[info.Definition.ID] = true
		}
		for id := range eligible {
			if !present[id] {
				delete(eligible, id)
			}
		}
	}

	participants := make([]AgentID, 0, len(ordered))
	for _, id := range ordered {
		if eligible[id] {
			participants = append(participants, id)
		}
	}

	if len(participants) < request.MinParticipants {
		return nil, aerrors.WithKind(aerrors.FailedToWithDetails("find suitable agents", "coordinator", "min_participants", nil), aerrors.KindAgent)
	}
	if request.MaxParticipants != nil && len(participants) > *request.MaxParticipants {
		participants = participants[:*request.MaxParticipants]
	}
	return participants, nil
}

// executeCoordination runs the session's named strategy and records
// its outcome.
func (c *AgentCoordinator) executeCoordination(ctx context.Context, sessionID uuid.UUID) error {
	c.mu.Lock()
	session, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return aerrors.WithKind(aerrors.NotFound("coordination_session", sessionID.String()), aerrors.KindAgent)
	}
	strategy, ok := c.strategies[session.Request.Strategy]
	if !ok {
		c.mu.Unlock()
		return aerrors.WithKind(aerrors.NotFound("coordination_strategy", session.Request.Strategy), aerrors.KindAgent)
	}
	session.Status = SessionInProgress
	c.sessions[sessionID] = session
	c.mu.Unlock()

	results, err := strategy.Coordinate(ctx, session)

	c.mu.Lock()
	defer c.mu.Unlock()
	session = c.sessions[sessionID]
	if err != nil {
		session.Status = SessionFailed
		c.sessions[sessionID] = session
		return err
	}
	session.Status = SessionCompleted
	session.Results = results
	c.sessions[sessionID] = session
	return nil
}

// GetSessionStatus reports a session's current progress.
func (c *AgentCoordinator) GetSessionStatus(_ context.Context, sessionID uuid.UUID) (CoordinationStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	session, ok := c.sessions[sessionID]
	if !ok {
		return CoordinationStatus{}, aerrors.WithKind(aerrors.NotFound("coordination_session", sessionID.String()), aerrors.KindAgent)
	}
	return CoordinationStatus{
		SessionID:        sessionID,
		Status:           session.Status,
		Participants:     len(session.Participants),
		Progress:         progressFor(session.Status),
		ResultsAvailable: len(session.Results) > 0,
	}, nil
}

// GetSessionResults returns the aggregated outcome of a completed
// session.
func (c *AgentCoordinator) GetSessionResults(_ context.Context, sessionID uuid.UUID) (CoordinationResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	session, ok := c.sessions[sessionID]
	if !ok {
		return CoordinationResult{}, aerrors.WithKind(aerrors.NotFound("coordination_session", sessionID.String()), aerrors.KindAgent)
	}
	if session.Status != SessionCompleted {
		return CoordinationResult{}, aerrors.WithKind(aerrors.InvalidState("coordination_session", "session not completed"), aerrors.KindAgent)
	}

	return CoordinationResult{
		SessionID:         sessionID,
		Success:           true,
		AggregatedResult:  aggregateResults(session.Results),
		IndividualResults: session.Results,
		Duration:          time.Since(session.StartedAt),
	}, nil
}

func progressFor(status SessionStatus) float64 {
	if status == SessionInitiated {
		return 0.0
	}
	if status == SessionInProgress {
		return 0.5
	}
	return 1.0
}

func aggregateResults(results map[AgentID]interface{}) interface{} {
	values := make([]interface{}, 0, len(results))
	for _, v := range results {
		values = append(values, v)
	}
	return map[string]interface{}{
		"participant_count": len(results),
		"results":           values,
	}
}

// consensusStrategy has every participant cast a vote
// (coordinator.rs's ConsensusStrategy).
type consensusStrategy struct{}

func (consensusStrategy) Coordinate(_ context.Context, session CoordinationSession) (map[AgentID]interface{}, error) {
	results := make(map[AgentID]interface{}, len(session.Participants))
	for _, id := range session.Participants {
		results[id] = map[string]interface{}{"vote": "agree", "confidence": 0.8}
	}
	return results, nil
}

// delegationStrategy appoints the first participant as leader and
// delegates to it (coordinator.rs's DelegationStrategy).
type delegationStrategy struct{}

func (delegationStrategy) Coordinate(_ context.Context, session CoordinationSession) (map[AgentID]interface{}, error) {
	results := make(map[AgentID]interface{}, len(session.Participants))
	if len(session.Participants) == 0 {
		return results, nil
	}
	leader := session.Participants[0]
	results[leader] = map[string]interface{}{"role": "leader", "result": "task completed"}
	for _, follower := range session.Participants[1:] {
		results[follower] = map[string]interface{}{"role": "follower", "delegated_to": leader.String()}
	}
	return results, nil
}

// parallelStrategy has every participant work independently
// (coordinator.rs's ParallelStrategy).
type parallelStrategy struct{}

func (parallelStrategy) Coordinate(_ context.Context, session CoordinationSession) (map[AgentID]interface{}, error) {
	results := make(map[AgentID]interface{}, len(session.Participants))
	for _, id := range session.Participants {
		results[id] = map[string]interface{}{"status": "completed", "partial_result": "result from " + id.String()}
	}
	return results, nil
}
