package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ai-ops-core/core/pkg/agent"
	"github.com/ai-ops-core/core/pkg/ai/llm"
	"github.com/ai-ops-core/core/pkg/events"
	"github.com/ai-ops-core/core/pkg/knowledge"
	"github.com/ai-ops-core/core/pkg/notification"
	"github.com/ai-ops-core/core/pkg/shared/logging"
)

// Agent observes the outcome of every investigation and keeps running
// pattern/solution-effectiveness statistics, surfacing improvement
// recommendations once enough sessions have completed
// (learning.rs's LearningAgent). ai may be nil: the original treats
// AI-assisted lesson extraction as an optional enhancement, not a
// requirement.
type Agent struct {
	*agent.BaseAgent

	ai       llm.Client
	graph    *knowledge.Graph
	notifier notification.Notifier
	logger   *logrus.Logger

	mu             sync.Mutex
	sessions       map[string]*learningSession
	patternStats   map[string]*patternStats
	solutionStats  map[string]*solutionStats
}

// New builds a Learning agent. ai may be nil to disable AI-assisted
// lesson extraction.
func New(graph *knowledge.Graph, ai llm.Client, notifier notification.Notifier, logger *logrus.Logger) *Agent {
	base := agent.NewBaseAgent(uuid.New(), "Learning Agent", agent.AgentTypeLearning).
		WithCapabilities([]agent.Capability{
			agent.CapabilityPatternExtraction,
			agent.CapabilityKnowledgeAcquire,
			agent.CapabilityFeedbackProcessing,
		}).
		WithSubscriptions([]agent.EventPattern{
			{EventTypes: []string{"RootCauseDetermined", "FixExecuted", "FixFailed", "ValidationCompleted"}},
		})

	return &Agent{
		BaseAgent:     base,
		ai:            ai,
		graph:         graph,
		notifier:      notifier,
		logger:        logger,
		sessions:      map[string]*learningSession{},
		patternStats:  map[string]*patternStats{},
		solutionStats: map[string]*solutionStats{},
	}
}

// Process opens a learningSession on RootCauseDetermined and closes it
// on FixExecuted/FixFailed, analyzing the outcome into lessons and
// updating statistics; it emits ImprovementsSuggested whenever the
// number of currently open sessions is a nonzero multiple of
// improvementSuggestionInterval (learning.rs's process).
func (a *Agent) Process(ctx context.Context, event *events.Event) ([]*events.Event, error) {
	correlationID := uuid.New()
	if event.CorrelationID != nil {
		correlationID = *event.CorrelationID
	}
	correlationKey := correlationID.String()

	var out []*events.Event

	switch event.EventType {
	case "RootCauseDetermined":
		a.startSession(correlationKey, event)

	case "FixExecuted", "FixFailed":
		completed, err := a.closeSession(ctx, correlationKey, event)
		if err != nil {
			return out, err
		}
		if completed != nil {
			out = append(out, events.NewEvent("LearningCompleted", a.ID().String(), map[string]interface{}{
				"lessons_learned": len(completed.LessonsLearned),
				"success":         event.EventType == "FixExecuted",
			}).WithCorrelation(correlationID))
		}
	}

	a.mu.Lock()
	sessionCount := len(a.sessions)
	a.mu.Unlock()

	if sessionCount > 0 && sessionCount%improvementSuggestionInterval == 0 {
		improvements := a.suggestImprovements()
		if len(improvements) > 0 {
			out = append(out, events.NewEvent("ImprovementsSuggested", a.ID().String(), map[string]interface{}{
				"improvements": improvements,
			}))
			for _, imp := range improvements {
				if imp.Priority == priorityHigh {
					_ = a.notifier.Notify(ctx, "Improvement suggested: "+string(imp.ImprovementType), imp.Description)
				}
			}
		}
	}

	return out, nil
}

func (a *Agent) startSession(correlationKey string, event *events.Event) {
	var rootCause *rootCauseSummary
	raw, err := json.Marshal(event.Payload)
	if err == nil {
		var rc rootCauseSummary
		if json.Unmarshal(raw, &rc) == nil && rc.Description != "" {
			rootCause = &rc
		}
	}

	problemType := "Unknown"
	if rootCause != nil && rootCause.Category != "" {
		problemType = rootCause.Category
	}

	a.mu.Lock()
	a.sessions[correlationKey] = &learningSession{
		ID:          correlationKey,
		StartedAt:   time.Now().UTC(),
		ProblemType: problemType,
		RootCause:   rootCause,
	}
	a.mu.Unlock()
	a.TaskStarted()
}

func (a *Agent) closeSession(ctx context.Context, correlationKey string, event *events.Event) (*learningSession, error) {
	a.mu.Lock()
	session, ok := a.sessions[correlationKey]
	a.mu.Unlock()
	if !ok {
		return nil, nil
	}

	if raw, ok := event.Payload["solution"]; ok {
		encoded, err := json.Marshal(raw)
		if err == nil {
			var solution appliedSolution
			if json.Unmarshal(encoded, &solution) == nil {
				session.SolutionApplied = &solution
			}
		}
	}

	session.Outcome = &outcomeAnalysis{
		Success:     event.EventType == "FixExecuted",
		FixDuration: time.Since(session.StartedAt),
	}

	a.reportSolutionOutcome(ctx, session)

	if err := a.analyzeOutcome(ctx, session); err != nil {
		return nil, err
	}

	a.mu.Lock()
	delete(a.sessions, correlationKey)
	a.mu.Unlock()
	a.TaskCompleted()

	return session, nil
}

// reportSolutionOutcome is the sole production caller of
// Graph.UpdateSolutionOutcome (spec.md §4.E, Invariant 3): when the
// applied solution names the knowledge-graph Solution node it came
// from, the session's outcome is the feedback that updates its
// success_rate. A missing or unparsable SolutionID (e.g. the solution
// proposal failed to persist) leaves that node untouched rather than
// failing the session close.
func (a *Agent) reportSolutionOutcome(ctx context.Context, session *learningSession) {
	if session.SolutionApplied == nil || session.SolutionApplied.SolutionID == "" || session.Outcome == nil {
		return
	}

	solutionID, err := uuid.Parse(session.SolutionApplied.SolutionID)
	if err != nil {
		a.logger.WithError(err).WithField("solution_id", session.SolutionApplied.SolutionID).
			Warn("learning agent received an unparsable solution id")
		return
	}

	if err := a.graph.UpdateSolutionOutcome(ctx, solutionID, session.Outcome.Success); err != nil {
		a.logger.WithError(err).WithField("solution_id", solutionID).
			Warn("failed to update solution outcome")
	}
}

func (a *Agent) analyzeOutcome(ctx context.Context, session *learningSession) error {
	if session.Outcome == nil {
		return nil
	}

	var lessons []lesson
	if session.Outcome.Success {
		lessons = a.extractSuccessLessons(ctx, session)
	} else {
		lessons = extractFailureLessons(session)
	}
	session.LessonsLearned = lessons

	a.updatePatternStats(session)
	a.updateSolutionStats(session)

	return a.storeLessons(ctx, session)
}

func (a *Agent) extractSuccessLessons(ctx context.Context, session *learningSession) []lesson {
	solutionDesc := "unknown"
	if session.SolutionApplied != nil {
		solutionDesc = session.SolutionApplied.Description
	}

	lessons := []lesson{{
		LessonType:         lessonSuccessfulPattern,
		Description:        fmt.Sprintf("Solution %q successfully resolved %s issue", solutionDesc, session.ProblemType),
		Confidence:         0.8,
		ApplicablePatterns: []string{session.ProblemType},
	}}

	if a.ai == nil {
		return lessons
	}

	rootCauseDesc := "Unknown"
	if session.RootCause != nil {
		rootCauseDesc = session.RootCause.Description
	}

	prompt := fmt.Sprintf(`Analyze this successful fix and extract lessons learned:

Problem Type: %s
Root Cause: %s
Solution Applied: %s
Execution Time: %.0f seconds

Please identify:
1. Why this solution worked
2. Key success factors
3. Optimization opportunities
4. Conditions for reapplication

Format as JSON array of lessons with fields: description, confidence`,
		session.ProblemType, rootCauseDesc, solutionDesc, session.Outcome.FixDuration.Seconds())

	input := llm.FromPrompt(prompt).WithTemperature(0.3).WithMaxTokens(800)
	output, err := a.ai.Complete(ctx, input)
	if err != nil {
		a.logger.WithFields(logging.NewFields().Component("learning_agent").Error(err).Logrus()).Warn("AI lesson extraction failed")
		return lessons
	}

	var aiLessons []struct {
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(output.Content), &aiLessons); err != nil {
		return lessons
	}
	for _, l := range aiLessons {
		if l.Description == "" {
			continue
		}
		lessons = append(lessons, lesson{
			LessonType:         lessonSuccessfulPattern,
			Description:        l.Description,
			Confidence:         l.Confidence,
			ApplicablePatterns: []string{session.ProblemType},
		})
	}
	return lessons
}

func extractFailureLessons(session *learningSession) []lesson {
	solutionDesc := "unknown"
	if session.SolutionApplied != nil {
		solutionDesc = session.SolutionApplied.Description
	}

	lessons := []lesson{{
		LessonType:         lessonFailurePattern,
		Description:        fmt.Sprintf("Solution %q failed to resolve %s issue", solutionDesc, session.ProblemType),
		Confidence:         0.9,
		ApplicablePatterns: []string{session.ProblemType},
	}}

	if session.Outcome == nil {
		return lessons
	}
	for _, v := range session.Outcome.ValidationResults {
		if v.Passed {
			continue
		}
		lessons = append(lessons, lesson{
			LessonType:         lessonFailurePattern,
			Description:        fmt.Sprintf("Validation %q failed: %s", v.CheckName, v.Details),
			Confidence:         0.85,
			ApplicablePatterns: []string{session.ProblemType},
		})
	}
	return lessons
}

func (a *Agent) updatePatternStats(session *learningSession) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats, ok := a.patternStats[session.ProblemType]
	if !ok {
		stats = &patternStats{}
		a.patternStats[session.ProblemType] = stats
	}
	stats.Occurrences++
	stats.LastSeen = time.Now().UTC()

	if session.Outcome == nil {
		return
	}
	if session.Outcome.Success {
		stats.SuccessfulApplications++
	} else {
		stats.FailedApplications++
	}
	totalNanos := stats.AverageResolutionTime.Nanoseconds()*int64(stats.Occurrences-1) + session.Outcome.FixDuration.Nanoseconds()
	stats.AverageResolutionTime = time.Duration(totalNanos / int64(stats.Occurrences))
}

func (a *Agent) updateSolutionStats(session *learningSession) {
	if session.SolutionApplied == nil || session.Outcome == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := session.SolutionApplied.Description
	stats, ok := a.solutionStats[key]
	if !ok {
		stats = &solutionStats{EffectivenessByContext: map[string]float64{}}
		a.solutionStats[key] = stats
	}
	stats.Applications++
	if session.Outcome.Success {
		stats.Successes++
	} else {
		stats.Failures++
	}

	totalNanos := stats.AverageExecutionTime.Nanoseconds()*int64(stats.Applications-1) + session.Outcome.FixDuration.Nanoseconds()
	stats.AverageExecutionTime = time.Duration(totalNanos / int64(stats.Applications))

	current := stats.EffectivenessByContext[session.ProblemType]
	outcomeScore := 0.0
	if session.Outcome.Success {
		outcomeScore = 1.0
	}
	stats.EffectivenessByContext[session.ProblemType] = current*0.8 + outcomeScore*0.2
}

func (a *Agent) storeLessons(ctx context.Context, session *learningSession) error {
	for _, l := range session.LessonsLearned {
		patternType := "behavioral"
		switch l.LessonType {
		case lessonSuccessfulPattern:
			patternType = "solution"
		case lessonFailurePattern:
			patternType = "failure"
		}

		_, err := a.graph.AddPattern(ctx, knowledge.Pattern{
			PatternType: patternType,
			Description: fmt.Sprintf("%s - %s", session.ProblemType, l.Description),
			Confidence:  l.Confidence,
			Occurrences: 1,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// suggestImprovements scans solution and pattern statistics for
// underperforming spots worth flagging (learning.rs's
// suggest_improvements).
func (a *Agent) suggestImprovements() []improvement {
	a.mu.Lock()
	defer a.mu.Unlock()

	var improvements []improvement

	for solutionType, stats := range a.solutionStats {
		successRate := 0.0
		if stats.Applications > 0 {
			successRate = float64(stats.Successes) / float64(stats.Applications)
		}

		if successRate < 0.5 && stats.Applications > 5 {
			p := priorityMedium
			if successRate < 0.3 {
				p = priorityHigh
			}
			improvements = append(improvements, improvement{
				ImprovementType: improvementSolutionOptimization,
				Target:          solutionType,
				Description: fmt.Sprintf("Solution %q has low success rate (%.1f%%). Consider reviewing implementation or adding prerequisites.",
					solutionType, successRate*100),
				Priority: p,
			})
		}

		for ctxName, effectiveness := range stats.EffectivenessByContext {
			if effectiveness < 0.4 && stats.Applications > 3 {
				improvements = append(improvements, improvement{
					ImprovementType: improvementContextualAdjustment,
					Target:          solutionType,
					Description: fmt.Sprintf("Solution %q performs poorly in context %q (%.1f%% success). Consider context-specific adjustments.",
						solutionType, ctxName, effectiveness*100),
					Priority: priorityMedium,
				})
			}
		}
	}

	for patternKey, stats := range a.patternStats {
		if stats.Occurrences > 10 && stats.FailedApplications > stats.SuccessfulApplications {
			improvements = append(improvements, improvement{
				ImprovementType: improvementPatternReview,
				Target:          patternKey,
				Description: fmt.Sprintf("Pattern %q has more failures (%d) than successes (%d). Root cause analysis may be flawed.",
					patternKey, stats.FailedApplications, stats.SuccessfulApplications),
				Priority: priorityHigh,
			})
		}
	}

	return improvements
}

// Learn performs meta-learning about the learning process itself
// (learning.rs's learn).
func (a *Agent) Learn(ctx context.Context, experience agent.Experience) (agent.Knowledge, error) {
	a.mu.Lock()
	content := map[string]interface{}{
		"learning_sessions_completed": len(a.sessions),
		"patterns_identified":         len(a.patternStats),
		"solution_types_tracked":      len(a.solutionStats),
		"experience":                  experience,
	}
	a.mu.Unlock()

	return agent.Knowledge{
		KnowledgeType: agent.KnowledgeOptimized,
		Content:       content,
		Confidence:    0.7,
		ApplicableContexts: []agent.KnowledgeContext{{
			Environment:  map[string]string{},
			Constraints:  []string{"continuous_learning"},
			Requirements: []string{"outcome_tracking"},
		}},
	}, nil
}

// Collaborate shares learning insights on a knowledge-sharing request
// and rejects everything else (learning.rs's collaborate).
func (a *Agent) Collaborate(_ context.Context, request agent.CollaborationRequest) (agent.CollaborationResponse, error) {
	if request.CollaborationType != agent.CollaborationKnowledge {
		return agent.CollaborationResponse{
			RequestID:    request.RequestID,
			Responder:    a.ID(),
			ResponseType: agent.ResponseRejected,
			Content:      map[string]interface{}{"reason": "learning agent only shares knowledge"},
		}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return agent.CollaborationResponse{
		RequestID:    request.RequestID,
		Responder:    a.ID(),
		ResponseType: agent.ResponseAccepted,
		Content: map[string]interface{}{
			"pattern_stats":         a.patternStats,
			"solution_effectiveness": a.solutionStats,
		},
	}, nil
}

// Shutdown finishes analyzing any session that has an outcome but no
// lessons yet (learning.rs's shutdown).
func (a *Agent) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	sessionCount := len(a.sessions)
	var pending []*learningSession
	for _, s := range a.sessions {
		if s.Outcome != nil && len(s.LessonsLearned) == 0 {
			pending = append(pending, s)
		}
	}
	a.mu.Unlock()

	a.logger.WithFields(logging.NewFields().
		Component("learning_agent").Operation("shutdown").
		Count(sessionCount).Logrus()).Info("learning agent shutting down")

	for _, s := range pending {
		a.logger.WithField("session_id", s.ID).Warn("incomplete learning session during shutdown")
		if err := a.analyzeOutcome(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

var _ agent.UniversalAgent = (*Agent)(nil)
