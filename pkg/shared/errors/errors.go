// Package errors defines the shared error taxonomy used across the
// ai-ops-core packages: a single OperationError shape plus a Kind enum
// that callers can branch on without string matching.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an OperationError by the subsystem that raised it.
type Kind int

const (
	KindOther Kind = iota
	KindDatabase
	KindStreamBackend
	KindAIProvider
	KindAgent
	KindKnowledgeGraph
	KindEventProcessing
	KindServiceRegistry
	KindPatternMatching
	KindConfiguration
	KindNotFound
	KindInvalidState
	KindTimeout
	KindSerialization
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindDatabase:
		return "database"
	case KindStreamBackend:
		return "stream_backend"
	case KindAIProvider:
		return "ai_provider"
	case KindAgent:
		return "agent"
	case KindKnowledgeGraph:
		return "knowledge_graph"
	case KindEventProcessing:
		return "event_processing"
	case KindServiceRegistry:
		return "service_registry"
	case KindPatternMatching:
		return "pattern_matching"
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindTimeout:
		return "timeout"
	case KindSerialization:
		return "serialization"
	case KindIO:
		return "io"
	default:
		return "other"
	}
}

// OperationError describes a failed operation with enough context to
// diagnose it: what was being done, which component was doing it,
// which resource it concerned, and what the underlying cause was.
type OperationError struct {
	Kind      Kind
	Operation string
	Component string
	Resource  string
	Cause     error

	// AgentID/AgentType/Source apply only to Kind == KindAgent.
	AgentID   string
	AgentType string
	Source    string

	// After applies only to Kind == KindTimeout.
	After time.Duration
}

func (e *OperationError) Error() string {
	msg := "failed to " + e.Operation
	if e.Component != "" {
		msg += ", component: " + e.Component
	}
	if e.Resource != "" {
		msg += ", resource: " + e.Resource
	}
	if e.Kind == KindAgent && e.AgentType != "" {
		msg += fmt.Sprintf(", agent: %s (%s)", e.AgentID, e.AgentType)
	}
	if e.Kind == KindTimeout && e.After > 0 {
		msg += fmt.Sprintf(", after: %s", e.After)
	}
	if e.Cause != nil {
		msg += ", cause: " + e.Cause.Error()
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds the common two-field case: an action and its cause.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return &OperationError{Operation: action}
	}
	return &OperationError{Operation: action, Cause: cause}
}

// FailedToWithDetails builds an OperationError naming the component
// and resource involved, in addition to the action and cause.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{
		Operation: action,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// WithKind attaches a Kind to an OperationError built via FailedTo or
// FailedToWithDetails, returning it unchanged if err is not one.
func WithKind(err error, kind Kind) error {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		opErr.Kind = kind
	}
	return err
}

// NotFound builds a KindNotFound error for a missing resource.
func NotFound(component, resource string) error {
	return &OperationError{
		Kind:      KindNotFound,
		Operation: "find " + resource,
		Component: component,
		Resource:  resource,
	}
}

// InvalidState builds a KindInvalidState error describing a violated
// state-machine transition or invariant.
func InvalidState(component, detail string) error {
	return &OperationError{
		Kind:      KindInvalidState,
		Operation: "transition state",
		Component: component,
		Cause:     fmt.Errorf("%s", detail),
	}
}

// Timeout builds a KindTimeout error for an operation that exceeded
// its deadline.
func Timeout(operation, component string, after time.Duration) error {
	return &OperationError{
		Kind:      KindTimeout,
		Operation: operation,
		Component: component,
		After:     after,
	}
}

// AgentError builds a KindAgent error carrying the agent's identity.
func AgentError(agentID, agentType, source, action string, cause error) error {
	return &OperationError{
		Kind:      KindAgent,
		Operation: action,
		Component: "agent",
		AgentID:   agentID,
		AgentType: agentType,
		Source:    source,
		Cause:     cause,
	}
}

// Wrapf wraps err with a formatted message, stdlib %w-style, returning
// nil when err is nil so callers can wrap unconditionally.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is is a re-export of the standard library's errors.Is for callers
// that only import this package.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is a re-export of the standard library's errors.As for callers
// that only import this package.
func As(err error, target interface{}) bool { return errors.As(err, target) }
