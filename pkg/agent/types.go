// Package agent implements the Agent Runtime (spec.md §4.H): the
// UniversalAgent contract every agent satisfies, a shared BaseAgent
// carrying status and a bounded knowledge cache, and an
// AgentCoordinator running consensus/delegation/parallel strategies
// over the Service Registry. Grounded on original_source's
// agent/{mod,base,coordinator}.rs and a2a/src/agent.rs (AgentCard).
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ai-ops-core/core/pkg/events"
)

// AgentID identifies an agent instance.
type AgentID = uuid.UUID

// AgentType classifies what an agent does. It is an open string enum:
// the constants below cover the built-in agent types named in
// spec.md and original_source/agent/mod.rs; application-specific
// agents simply use their own string value.
type AgentType string

const (
	AgentTypeMonitor        AgentType = "monitor"
	AgentTypeDiagnostic     AgentType = "diagnostic"
	AgentTypeHealing        AgentType = "healing"
	AgentTypeLearning       AgentType = "learning"
	AgentTypeBuilder        AgentType = "builder"
	AgentTypeServiceManager AgentType = "service_manager"
	AgentTypeLoadBalancer   AgentType = "load_balancer"
	AgentTypeOrchestrator   AgentType = "orchestrator"
	AgentTypeLogAnalyzer    AgentType = "log_analyzer"
	AgentTypePatternDetect  AgentType = "pattern_detector"
	AgentTypeAnomalyDetect  AgentType = "anomaly_detector"
)

// Capability is a capability tag an agent advertises, matching
// pkg/registry.Capability's string representation so agents can
// register themselves directly into the Service Registry.
type Capability string

const (
	CapabilityHealthCheck         Capability = "health_check"
	CapabilityMetricsCollection   Capability = "metrics_collection"
	CapabilityLogAnalysis         Capability = "log_analysis"
	CapabilityTraceCollection     Capability = "trace_collection"
	CapabilityRootCauseAnalysis   Capability = "root_cause_analysis"
	CapabilityPatternRecognition  Capability = "pattern_recognition"
	CapabilityAnomalyDetection    Capability = "anomaly_detection"
	CapabilityPredictiveAnalysis  Capability = "predictive_analysis"
	CapabilityServiceRestart      Capability = "service_restart"
	CapabilityConfigurationUpdate Capability = "configuration_update"
	CapabilityResourceScaling     Capability = "resource_scaling"
	CapabilityFailoverManagement  Capability = "failover_management"
	CapabilityPatternExtraction   Capability = "pattern_extraction"
	CapabilityKnowledgeAcquire    Capability = "knowledge_acquisition"
	CapabilityModelTraining       Capability = "model_training"
	CapabilityFeedbackProcessing  Capability = "feedback_processing"
	CapabilityTaskDelegation      Capability = "task_delegation"
	CapabilityConsensusBuilding   Capability = "consensus_building"
	CapabilityKnowledgeSharing    Capability = "knowledge_sharing"
)

// EventPattern is what an agent subscribes to; it is the same shape
// the Event Mesh matches subscriptions against, so agents describe
// their interest directly in terms events.Mesh understands.
type EventPattern = events.Subscription

// AgentState is where an agent sits in its processing lifecycle.
type AgentState string

const (
	StateStarting      AgentState = "starting"
	StateIdle          AgentState = "idle"
	StateProcessing    AgentState = "processing"
	StateLearning      AgentState = "learning"
	StateCollaborating AgentState = "collaborating"
	StateOverloaded    AgentState = "overloaded"
	StateShutting      AgentState = "shutting"
	StateStopped       AgentState = "stopped"
)

// Health is an agent's self-reported health.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
	HealthUnknown   Health = "unknown"
)

// AgentStatus is the point-in-time status exposed by Status().
type AgentStatus struct {
	State        AgentState
	Health       Health
	CurrentLoad  float64
	ActiveTasks  int
	LastActivity time.Time
	Metrics      map[string]float64
}

// ActionType classifies an Action taken by an agent while processing
// an event.
type ActionType string

const (
	ActionNoAction       ActionType = "no_action"
	ActionServiceRestart ActionType = "service_restart"
	ActionConfigChange   ActionType = "config_change"
	ActionResourceScale  ActionType = "resource_scale"
	ActionAlert          ActionType = "alert"
	ActionDelegate       ActionType = "delegate"
)

// Action is a concrete step an agent took (or proposes).
type Action struct {
	ActionType ActionType
	Target     string
	Parameters map[string]interface{}
	Timestamp  time.Time
}

// Outcome is the result of taking an Action.
type Outcome struct {
	Success     bool
	Error       string
	Metrics     map[string]float64
	SideEffects []string
}

// Experience is what an agent's Learn method is fed: an event, the
// action it took in response, and the outcome of that action.
type Experience struct {
	Event       *events.Event
	ActionTaken Action
	Outcome     Outcome
	Duration    time.Duration
	Metadata    map[string]interface{}
}

// KnowledgeType classifies a unit of Knowledge.
type KnowledgeType string

const (
	KnowledgePattern     KnowledgeType = "pattern"
	KnowledgeSolution    KnowledgeType = "solution"
	KnowledgeCorrelation KnowledgeType = "correlation"
	KnowledgePrediction  KnowledgeType = "prediction"
	KnowledgeOptimized   KnowledgeType = "optimization"
)

// KnowledgeContext is the environment/constraints/requirements a unit
// of Knowledge applies under (distinct from context.Context).
type KnowledgeContext struct {
	Environment  map[string]string
	Constraints  []string
	Requirements []string
}

// Knowledge is what an agent's Learn method produces.
type Knowledge struct {
	KnowledgeType      KnowledgeType
	Content            interface{}
	Confidence         float64
	ApplicableContexts []KnowledgeContext
}

// CollaborationType classifies a CollaborationRequest.
type CollaborationType string

const (
	CollaborationHelpRequest CollaborationType = "help_request"
	CollaborationConsensus   CollaborationType = "consensus_building"
	CollaborationDelegation  CollaborationType = "task_delegation"
	CollaborationKnowledge   CollaborationType = "knowledge_sharing"
	CollaborationAnalysis    CollaborationType = "joint_analysis"
)

// CollaborationRequest asks another agent to collaborate.
type CollaborationRequest struct {
	RequestID         uuid.UUID
	Requester         AgentID
	CollaborationType CollaborationType
	Context           KnowledgeContext
	Deadline          *time.Time
}

// ResponseType classifies a CollaborationResponse.
type ResponseType string

const (
	ResponseAccepted  ResponseType = "accepted"
	ResponseRejected  ResponseType = "rejected"
	ResponseDelegated ResponseType = "delegated"
	ResponsePartial   ResponseType = "partial_response"
)

// CollaborationResponse answers a CollaborationRequest.
type CollaborationResponse struct {
	RequestID    uuid.UUID
	Responder    AgentID
	ResponseType ResponseType
	Content      interface{}
}

// UniversalAgent is the contract every agent in the ecosystem
// satisfies (spec.md §4.H).
type UniversalAgent interface {
	ID() AgentID
	AgentType() AgentType
	Name() string
	Capabilities() []Capability
	Subscriptions() []EventPattern

	Process(ctx context.Context, event *events.Event) ([]*events.Event, error)
	Learn(ctx context.Context, experience Experience) (Knowledge, error)
	Collaborate(ctx context.Context, request CollaborationRequest) (CollaborationResponse, error)
	Status(ctx context.Context) AgentStatus
	Shutdown(ctx context.Context) error
}
