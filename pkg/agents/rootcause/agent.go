package rootcause

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ai-ops-core/core/pkg/agent"
	"github.com/ai-ops-core/core/pkg/ai/llm"
	"github.com/ai-ops-core/core/pkg/events"
	"github.com/ai-ops-core/core/pkg/knowledge"
	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
	"github.com/ai-ops-core/core/pkg/shared/logging"
)

// maxConcurrentInvestigations bounds the agent's reported load the
// same way base.rs's task_started assumes a capacity (root_cause.rs's
// status: `active_investigations.len() as f64 / 10.0`).
const maxConcurrentInvestigations = 10.0

// Agent correlates ServiceFailure/DatabaseError/LogPatternDetected
// events into investigations, asks an AI provider to determine a root
// cause, and proposes solutions informed by the knowledge graph's
// history of what has worked before (root_cause.rs's
// RootCauseAnalysisAgent).
type Agent struct {
	*agent.BaseAgent

	ai     llm.Client
	graph  *knowledge.Graph
	logger *logrus.Logger

	mu             sync.Mutex
	investigations map[string]*investigation
}

// New builds a Root Cause Analysis agent over an AI client and the
// knowledge graph.
func New(ai llm.Client, graph *knowledge.Graph, logger *logrus.Logger) *Agent {
	base := agent.NewBaseAgent(uuid.New(), "Root Cause Analysis Agent", agent.AgentTypeDiagnostic).
		WithCapabilities([]agent.Capability{
			agent.CapabilityRootCauseAnalysis,
			agent.CapabilityPatternRecognition,
			agent.CapabilityPredictiveAnalysis,
		}).
		WithSubscriptions([]agent.EventPattern{
			{EventTypes: []string{"ServiceFailure", "DatabaseError", "LogPatternDetected"}},
		})

	return &Agent{
		BaseAgent:      base,
		ai:             ai,
		graph:          graph,
		logger:         logger,
		investigations: map[string]*investigation{},
	}
}

// Process folds event into its investigation (grouped by
// correlation id, or a fresh one if unset) and, once the investigation
// has accumulated enough evidence, runs the error-pattern -> root-cause
// -> proposed-solutions pipeline, emitting a RootCauseDetermined event
// and then a SolutionsProposed event as each stage completes
// (root_cause.rs's process).
func (a *Agent) Process(ctx context.Context, event *events.Event) ([]*events.Event, error) {
	investigationID := uuid.New().String()
	if event.CorrelationID != nil {
		investigationID = event.CorrelationID.String()
	}

	a.mu.Lock()
	inv, exists := a.investigations[investigationID]
	if !exists {
		inv = &investigation{ID: investigationID, StartedAt: time.Now().UTC()}
		a.investigations[investigationID] = inv
		a.mu.Unlock()
		a.TaskStarted()
	} else {
		a.mu.Unlock()
	}

	a.mu.Lock()
	inv.RelatedEvents = append(inv.RelatedEvents, event)
	ready := len(inv.RelatedEvents) >= minEventsToAnalyze || time.Since(inv.StartedAt) > investigationMaxWait
	a.mu.Unlock()

	if !ready {
		return nil, nil
	}

	var out []*events.Event

	if inv.ErrorPattern == "" {
		pattern, err := a.analyzeErrorPattern(ctx, inv.RelatedEvents)
		if err != nil {
			return out, aerrors.WithKind(aerrors.FailedToWithDetails("analyze error pattern", "rootcause_agent", investigationID, err), aerrors.KindAIProvider)
		}
		inv.ErrorPattern = pattern
	}

	if inv.RootCause == nil {
		cause, err := a.determineRootCause(ctx, inv)
		if err != nil {
			return out, aerrors.WithKind(aerrors.FailedToWithDetails("determine root cause", "rootcause_agent", investigationID, err), aerrors.KindAIProvider)
		}
		inv.RootCause = cause

		correlationID := uuid.MustParse(investigationID)
		rootCauseEvent := events.NewEvent("RootCauseDetermined", a.ID().String(), map[string]interface{}{
			"description": cause.Description,
			"category":    cause.Category,
			"confidence":  cause.Confidence,
			"evidence":    cause.Evidence,
		}).WithCorrelation(correlationID)
		out = append(out, rootCauseEvent)

		a.logger.WithFields(logging.NewFields().
			Component("rootcause_agent").Operation("determine_root_cause").
			CorrelationID(investigationID).Logrus()).Info("root cause determined")
	}

	if len(inv.ProposedSolutions) == 0 && inv.RootCause != nil {
		solutions, err := a.proposeSolutions(ctx, inv)
		if err != nil {
			return out, aerrors.WithKind(aerrors.FailedToWithDetails("propose solutions", "rootcause_agent", investigationID, err), aerrors.KindAIProvider)
		}
		inv.ProposedSolutions = solutions

		correlationID := uuid.MustParse(investigationID)
		solutionsEvent := events.NewEvent("SolutionsProposed", a.ID().String(), map[string]interface{}{
			"solutions":  solutions,
			"root_cause": inv.RootCause,
		}).WithCorrelation(correlationID)
		out = append(out, solutionsEvent)

		a.scheduleCleanup(investigationID)
	}

	return out, nil
}

// scheduleCleanup evicts a completed investigation from the active set
// after investigationRetention, freeing the slot counted against
// maxConcurrentInvestigations (root_cause.rs's process spawns an
// equivalent delayed task, but only logs; this adaptation also
// performs the eviction it announces).
func (a *Agent) scheduleCleanup(investigationID string) {
	time.AfterFunc(investigationRetention, func() {
		a.mu.Lock()
		_, ok := a.investigations[investigationID]
		delete(a.investigations, investigationID)
		a.mu.Unlock()
		if ok {
			a.TaskCompleted()
			a.logger.WithFields(logging.NewFields().
				Component("rootcause_agent").Operation("cleanup_investigation").
				CorrelationID(investigationID).Logrus()).Info("investigation cleaned up")
		}
	})
}

func (a *Agent) analyzeErrorPattern(ctx context.Context, relatedEvents []*events.Event) (string, error) {
	var errorMessages, stackTraces []string
	for _, e := range relatedEvents {
		if msg, ok := e.Metadata["error_message"].(string); ok {
			errorMessages = append(errorMessages, msg)
		}
		if trace, ok := e.Metadata["stack_trace"].(string); ok {
			stackTraces = append(stackTraces, trace)
		}
	}

	prompt := fmt.Sprintf(`Analyze the following error messages and stack traces to identify patterns:

Error Messages:
%s

Stack Traces:
%s

Please identify:
1. Common patterns in the errors
2. Likely components involved
3. Potential root causes
4. Severity assessment

Format your response as JSON with fields: pattern, components, potential_causes, severity`,
		strings.Join(errorMessages, "\n"), strings.Join(stackTraces, "\n"))

	input := llm.FromPrompt(prompt).
		WithSystem("You are an expert system administrator analyzing production errors. Provide detailed technical analysis.").
		WithTemperature(0.2).
		WithMaxTokens(1000)

	output, err := a.ai.Complete(ctx, input)
	if err != nil {
		return "", err
	}
	return output.Content, nil
}

func (a *Agent) determineRootCause(ctx context.Context, inv *investigation) (*rootCause, error) {
	similarCases, err := a.graph.FindSimilarPatterns(ctx, inv.ErrorPattern, 5)
	if err != nil {
		return nil, err
	}

	var similarDesc []string
	for _, c := range similarCases {
		similarDesc = append(similarDesc, fmt.Sprintf("- %s: %s", c.PatternType, c.Description))
	}

	var hypothesesDesc []string
	for _, h := range inv.Hypotheses {
		hypothesesDesc = append(hypothesesDesc, fmt.Sprintf("- %s (confidence: %.2f)", h.Description, h.Confidence))
	}

	prompt := fmt.Sprintf(`Based on the following investigation data, determine the root cause:

Error Pattern: %s

Hypotheses:
%s

Similar Historical Cases:
%s

Related Events: %d events over %.0f minutes

Please determine:
1. The most likely root cause
2. Category (e.g., Configuration, Resource, Code Bug, Network, Database)
3. Confidence level (0-1)
4. Supporting evidence

Format your response as JSON with fields: description, category, confidence, evidence`,
		inv.ErrorPattern,
		strings.Join(hypothesesDesc, "\n"),
		strings.Join(similarDesc, "\n"),
		len(inv.RelatedEvents),
		time.Since(inv.StartedAt).Minutes())

	input := llm.FromPrompt(prompt).WithTemperature(0.1).WithMaxTokens(800)

	output, err := a.ai.Complete(ctx, input)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Confidence  float64  `json:"confidence"`
		Evidence    []string `json:"evidence"`
	}
	if err := json.Unmarshal([]byte(output.Content), &parsed); err != nil {
		parsed.Description = output.Content
		parsed.Category = "Unknown"
		parsed.Confidence = 0.5
	}
	if parsed.Description == "" {
		parsed.Description = "Unknown"
	}
	if parsed.Category == "" {
		parsed.Category = "Unknown"
	}

	return &rootCause{
		Description: parsed.Description,
		Category:    parsed.Category,
		Confidence:  parsed.Confidence,
		Evidence:    parsed.Evidence,
	}, nil
}

func (a *Agent) proposeSolutions(ctx context.Context, inv *investigation) ([]proposedSolution, error) {
	cause := inv.RootCause
	if cause == nil {
		return nil, aerrors.WithKind(aerrors.InvalidState("rootcause_agent", "no root cause determined"), aerrors.KindInvalidState)
	}

	successfulSolutions, err := a.graph.FindSuccessfulSolutions(ctx, cause.Category)
	if err != nil {
		return nil, err
	}

	var solutionsDesc []string
	for _, s := range successfulSolutions {
		solutionsDesc = append(solutionsDesc, fmt.Sprintf("- %s (success rate: %.0f%%)", s.Description, s.SuccessRate*100))
	}

	serviceID := "Unknown"
	if len(inv.RelatedEvents) > 0 {
		if svc, ok := inv.RelatedEvents[0].Payload["service_id"].(string); ok && svc != "" {
			serviceID = svc
		}
	}

	prompt := fmt.Sprintf(`Based on the root cause analysis, propose solutions:

Root Cause: %s
Category: %s

Previous Successful Solutions:
%s

System Context:
- Service experiencing issues: %s
- Error frequency: %d errors
- Time span: %.0f minutes

Please propose 2-3 solutions with:
1. Clear description
2. Step-by-step instructions
3. Risk assessment (Low/Medium/High)
4. Confidence level (0-1)
5. Estimated time to implement

Format as JSON array with fields: description, steps, risk_level, confidence, estimated_fix_time`,
		cause.Description, cause.Category,
		strings.Join(solutionsDesc, "\n"),
		serviceID, len(inv.RelatedEvents), time.Since(inv.StartedAt).Minutes())

	input := llm.FromPrompt(prompt).WithTemperature(0.3).WithMaxTokens(1500)

	output, err := a.ai.Complete(ctx, input)
	if err != nil {
		return nil, err
	}

	var parsed []struct {
		Description      string   `json:"description"`
		Steps            []string `json:"steps"`
		RiskLevel        string   `json:"risk_level"`
		Confidence       float64  `json:"confidence"`
		EstimatedFixTime string   `json:"estimated_fix_time"`
	}
	if err := json.Unmarshal([]byte(output.Content), &parsed); err != nil {
		return nil, nil
	}

	// Persist the investigation's Problem once and attach every proposed
	// solution to it, so FixExecuted/FixFailed can carry a real
	// knowledge-graph Solution id back to the Learning agent
	// (spec.md §4.E, Invariant 3). A persistence failure degrades that
	// one solution to an untracked candidate rather than aborting the
	// whole proposal.
	problemID, err := a.graph.AddProblem(ctx, knowledge.Problem{
		Category:      cause.Category,
		Description:   cause.Description,
		ErrorPatterns: []string{inv.ErrorPattern},
		Severity:      knowledge.SeverityMedium,
	})
	if err != nil {
		a.logger.WithError(err).Warn("failed to persist investigation problem")
	}

	solutions := make([]proposedSolution, 0, len(parsed))
	for _, p := range parsed {
		if p.Description == "" {
			continue
		}
		solution := proposedSolution{
			Description:      p.Description,
			Steps:            p.Steps,
			RiskLevel:        parseRiskLevel(p.RiskLevel),
			Confidence:       p.Confidence,
			EstimatedFixTime: p.EstimatedFixTime,
		}

		if problemID != uuid.Nil {
			actions := make([]knowledge.Action, 0, len(p.Steps))
			for i, step := range p.Steps {
				actions = append(actions, knowledge.Action{
					ActionType: "manual",
					Parameters: map[string]interface{}{"description": step},
					Order:      uint32(i),
				})
			}
			solutionID, err := a.graph.AddSolution(ctx, knowledge.Solution{
				Description: p.Description,
				Actions:     actions,
			}, problemID)
			if err != nil {
				a.logger.WithError(err).Warn("failed to persist proposed solution")
			} else {
				solution.SolutionID = solutionID.String()
			}
		}

		solutions = append(solutions, solution)
	}
	return solutions, nil
}

// Learn records a pattern node for successful investigations and
// returns the derived Knowledge either way (root_cause.rs's learn).
func (a *Agent) Learn(ctx context.Context, experience agent.Experience) (agent.Knowledge, error) {
	content := map[string]interface{}{
		"event_type": experience.Event.EventType,
		"action":     experience.ActionTaken,
		"outcome":    experience.Outcome,
		"duration":   experience.Duration.Seconds(),
		"timestamp":  time.Now().UTC(),
	}

	confidence := 0.3
	if experience.Outcome.Success {
		confidence = 0.9
		_, err := a.graph.AddPattern(ctx, knowledge.Pattern{
			PatternType: "diagnostic",
			Description: fmt.Sprintf("Successfully identified root cause for %s", experience.Event.EventType),
			Confidence:  0.8,
			Occurrences: 1,
		})
		if err != nil {
			return agent.Knowledge{}, err
		}
	}

	return agent.Knowledge{
		KnowledgeType: agent.KnowledgePattern,
		Content:       content,
		Confidence:    confidence,
		ApplicableContexts: []agent.KnowledgeContext{{
			Environment:  map[string]string{},
			Constraints:  []string{"error_analysis"},
			Requirements: []string{"ai_provider"},
		}},
	}, nil
}

// Collaborate accepts joint-analysis requests and rejects everything
// else (root_cause.rs's collaborate).
func (a *Agent) Collaborate(_ context.Context, request agent.CollaborationRequest) (agent.CollaborationResponse, error) {
	if request.CollaborationType == agent.CollaborationAnalysis {
		return agent.CollaborationResponse{
			RequestID:    request.RequestID,
			Responder:    a.ID(),
			ResponseType: agent.ResponseAccepted,
			Content: map[string]interface{}{
				"message":      "ready to collaborate on root cause analysis",
				"capabilities": []string{"pattern_analysis", "ai_reasoning", "solution_generation"},
			},
		}, nil
	}
	return agent.CollaborationResponse{
		RequestID:    request.RequestID,
		Responder:    a.ID(),
		ResponseType: agent.ResponseRejected,
		Content:      map[string]interface{}{"reason": "unsupported collaboration type"},
	}, nil
}

// Shutdown clears any in-flight investigations (root_cause.rs's
// shutdown).
func (a *Agent) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger.WithFields(logging.NewFields().
		Component("rootcause_agent").Operation("shutdown").
		Count(len(a.investigations)).Logrus()).Info("root cause agent shutting down")
	a.investigations = map[string]*investigation{}
	return nil
}

var _ agent.UniversalAgent = (*Agent)(nil)
