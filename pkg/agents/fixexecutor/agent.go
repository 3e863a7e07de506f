package fixexecutor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ai-ops-core/core/pkg/agent"
	"github.com/ai-ops-core/core/pkg/events"
	"github.com/ai-ops-core/core/pkg/knowledge"
	"github.com/ai-ops-core/core/pkg/notification"
	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
	"github.com/ai-ops-core/core/pkg/shared/logging"
)

// Agent executes low-risk SolutionsProposed solutions autonomously,
// validates the result, and rolls back on failure when the solution is
// flagged high-risk (fix_executor.rs's FixExecutorAgent).
type Agent struct {
	*agent.BaseAgent

	graph    *knowledge.Graph
	notifier notification.Notifier
	logger   *logrus.Logger

	mu      sync.Mutex
	active  map[string]*activeFix
	history []executionRecord
}

// New builds a Fix Executor agent. notifier may be notification.NoopNotifier{}
// when no alerting channel is configured.
func New(graph *knowledge.Graph, notifier notification.Notifier, logger *logrus.Logger) *Agent {
	base := agent.NewBaseAgent(uuid.New(), "Fix Executor Agent", agent.AgentTypeHealing).
		WithCapabilities([]agent.Capability{
			agent.CapabilityServiceRestart,
			agent.CapabilityConfigurationUpdate,
			agent.CapabilityResourceScaling,
		}).
		WithSubscriptions([]agent.EventPattern{
			{EventTypes: []string{"SolutionsProposed"}},
		})

	return &Agent{
		BaseAgent: base,
		graph:     graph,
		notifier:  notifier,
		logger:    logger,
		active:    map[string]*activeFix{},
	}
}

// Process executes the first low-risk solution in a SolutionsProposed
// event's payload, emitting FixExecuted on success or FixFailed on
// failure (fix_executor.rs's process: "Only execute one solution at a
// time").
func (a *Agent) Process(ctx context.Context, event *events.Event) ([]*events.Event, error) {
	if event.EventType != "SolutionsProposed" {
		return nil, nil
	}

	raw, ok := event.Payload["solutions"]
	if !ok {
		return nil, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedTo("encode proposed solutions", err), aerrors.KindSerialization)
	}

	// The root-cause agent's solution shape carries only description/
	// steps/risk_level/confidence/estimated_fix_time; rollback_steps and
	// validation_checks are populated only when the proposer supplies
	// them, defaulting to empty otherwise.
	var solutions []proposedSolution
	if err := json.Unmarshal(encoded, &solutions); err != nil {
		return nil, nil
	}

	correlationID := uuid.New()
	if event.CorrelationID != nil {
		correlationID = *event.CorrelationID
	}

	for _, solution := range solutions {
		if solution.RiskLevel != riskLow {
			continue
		}

		a.logger.WithFields(logging.NewFields().
			Component("fixexecutor_agent").Operation("execute_fix").
			CorrelationID(correlationID.String()).Logrus()).
			Info("executing low-risk fix: " + solution.Description)

		out := a.executeFix(ctx, solution, correlationID)
		return []*events.Event{out}, nil
	}

	return nil, nil
}

func (a *Agent) executeFix(ctx context.Context, solution proposedSolution, correlationID uuid.UUID) *events.Event {
	fixID := correlationID.String()
	fix := &activeFix{
		ID:        fixID,
		Solution:  solution,
		StartedAt: time.Now().UTC(),
		Status:    fixInProgress,
	}

	a.mu.Lock()
	a.active[fixID] = fix
	a.mu.Unlock()
	a.TaskStarted()

	for index, step := range solution.Steps {
		if err := a.executeStep(ctx, fix, index, step); err != nil {
			a.mu.Lock()
			fix.Status = fixFailed
			a.mu.Unlock()

			// fix_executor.rs rolls back whenever the failed solution is
			// High risk; in practice only Low-risk solutions reach this
			// path (Process filters upstream), so this branch mirrors
			// the original's latent dead code rather than a live path.
			if solution.RiskLevel == riskHigh {
				a.rollbackFix(ctx, fix)
			}

			return a.finish(fix, false, err)
		}
		a.mu.Lock()
		fix.CurrentStep = index + 1
		a.mu.Unlock()
	}

	passed, err := a.validateFix(ctx, fix)
	if err != nil {
		return a.finish(fix, false, err)
	}
	return a.finish(fix, passed, nil)
}

func (a *Agent) finish(fix *activeFix, success bool, cause error) *events.Event {
	a.mu.Lock()
	delete(a.active, fix.ID)
	a.history = append(a.history, executionRecord{
		FixID:      fix.ID,
		Solution:   fix.Solution,
		Succeeded:  success,
		Duration:   time.Since(fix.StartedAt),
		ExecutedAt: fix.StartedAt,
	})
	a.mu.Unlock()
	a.TaskCompleted()

	if success {
		return events.NewEvent("FixExecuted", a.ID().String(), map[string]interface{}{
			"solution": fix.Solution,
			"status":   "completed",
		}).WithCorrelation(uuid.MustParse(fix.ID))
	}

	message := "validation failed"
	if cause != nil {
		message = cause.Error()
	}
	a.logger.WithFields(logging.NewFields().
		Component("fixexecutor_agent").Operation("execute_fix").
		CorrelationID(fix.ID).Error(cause).Logrus()).
		Warn("fix execution failed")

	if fix.Solution.RiskLevel == riskHigh {
		_ = a.notifier.Notify(context.Background(),
			"High-risk fix failed",
			fmt.Sprintf("%s: %s", fix.Solution.Description, message))
	}

	return events.NewEvent("FixFailed", a.ID().String(), map[string]interface{}{
		"solution": fix.Solution,
		"error":    message,
	}).WithCorrelation(uuid.MustParse(fix.ID))
}

func (a *Agent) executeStep(ctx context.Context, fix *activeFix, index int, step fixStep) error {
	started := time.Now().UTC()
	record := executionStep{StepIndex: index, StartedAt: started, Status: stepRunning}

	var output string
	var err error
	switch {
	case step.Command != "":
		output, err = a.runCommand(ctx, step.Command, step.TimeoutSeconds)
	case step.Script != "":
		output, err = a.runScript(ctx, step.Script, step.TimeoutSeconds)
	case step.ConfigChange != nil:
		output, err = applyConfigChange(*step.ConfigChange)
	default:
		err = aerrors.WithKind(aerrors.FailedTo("execute step", fmt.Errorf("no execution method specified")), aerrors.KindInvalidState)
	}

	record.CompletedAt = time.Now().UTC()
	if err != nil {
		record.Status = stepFailed
		record.Error = err.Error()
	} else {
		record.Status = stepSuccess
		record.Output = output
	}

	a.mu.Lock()
	fix.Log = append(fix.Log, record)
	a.mu.Unlock()

	return err
}

func (a *Agent) runCommand(ctx context.Context, command string, timeoutSeconds int) (string, error) {
	runCtx := ctx
	if timeoutSeconds > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", aerrors.WithKind(aerrors.FailedTo(fmt.Sprintf("run command %q", command), fmt.Errorf("%w: %s", err, output)), aerrors.KindIO)
	}
	return string(output), nil
}

func (a *Agent) runScript(ctx context.Context, script string, timeoutSeconds int) (string, error) {
	path := fmt.Sprintf("%s/fix_script_%s.sh", os.TempDir(), uuid.New().String())
	if err := os.WriteFile(path, []byte(script), 0o700); err != nil {
		return "", aerrors.WithKind(aerrors.FailedTo("write fix script", err), aerrors.KindIO)
	}
	defer os.Remove(path)

	return a.runCommand(ctx, path, timeoutSeconds)
}

func applyConfigChange(change configChange) (string, error) {
	content, err := os.ReadFile(change.FilePath)
	if err != nil {
		return "", aerrors.WithKind(aerrors.FailedTo("read config file", err), aerrors.KindIO)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(content, &doc); err != nil {
		return "", aerrors.WithKind(aerrors.FailedTo("parse config file", err), aerrors.KindSerialization)
	}
	doc[change.Key] = change.NewValue

	updated, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", aerrors.WithKind(aerrors.FailedTo("serialize config file", err), aerrors.KindSerialization)
	}
	if err := os.WriteFile(change.FilePath, updated, 0o644); err != nil {
		return "", aerrors.WithKind(aerrors.FailedTo("write config file", err), aerrors.KindIO)
	}
	return fmt.Sprintf("updated %s in %s", change.Key, change.FilePath), nil
}

func (a *Agent) validateFix(ctx context.Context, fix *activeFix) (bool, error) {
	var results []checkResult
	for _, check := range fix.Solution.ValidationChecks {
		results = append(results, performValidationCheck(check))
	}

	allPassed := true
	for _, r := range results {
		if !r.Passed {
			allPassed = false
			break
		}
	}

	a.mu.Lock()
	fix.Validation = &validationResult{AllPassed: allPassed, Checks: results, ValidatedAt: time.Now().UTC()}
	if allPassed {
		fix.Status = fixCompleted
	} else {
		fix.Status = fixFailed
	}
	a.mu.Unlock()

	return allPassed, nil
}

// performValidationCheck only implements the two check types
// fix_executor.rs implements (the rest are stubbed "not implemented" in
// the original too).
func performValidationCheck(check validationCheck) checkResult {
	switch check.CheckType {
	case checkServiceHealth:
		return checkResult{CheckName: check.Name, Passed: true, Message: "service is healthy"}
	case checkLogAbsence:
		return checkResult{CheckName: check.Name, Passed: true, Message: "no errors found in logs"}
	default:
		return checkResult{CheckName: check.Name, Passed: false, Message: "check type not implemented"}
	}
}

func (a *Agent) rollbackFix(ctx context.Context, fix *activeFix) {
	a.logger.WithFields(logging.NewFields().
		Component("fixexecutor_agent").Operation("rollback_fix").
		CorrelationID(fix.ID).Logrus()).Warn("rolling back fix")

	for index, step := range fix.Solution.RollbackSteps {
		if err := a.executeStep(ctx, fix, index, step); err != nil {
			a.logger.WithFields(logging.NewFields().
				Component("fixexecutor_agent").Operation("rollback_fix").
				CorrelationID(fix.ID).Error(err).Logrus()).Error("rollback step failed")
		}
	}

	a.mu.Lock()
	fix.Status = fixRolledBack
	a.mu.Unlock()
}

// Learn records a completed fix's outcome (fix_executor.rs's learn).
func (a *Agent) Learn(ctx context.Context, experience agent.Experience) (agent.Knowledge, error) {
	confidence := 0.2
	if experience.Outcome.Success {
		confidence = 0.9
	}

	return agent.Knowledge{
		KnowledgeType: agent.KnowledgeSolution,
		Content: map[string]interface{}{
			"fix_type": experience.ActionTaken.ActionType,
			"outcome":  experience.Outcome,
			"duration": experience.Duration.Seconds(),
		},
		Confidence: confidence,
		ApplicableContexts: []agent.KnowledgeContext{{
			Environment:  map[string]string{},
			Constraints:  []string{"automated_fix"},
			Requirements: []string{"low_risk"},
		}},
	}, nil
}

// Collaborate accepts every request, advertising fix-execution
// capabilities (fix_executor.rs's collaborate).
func (a *Agent) Collaborate(_ context.Context, request agent.CollaborationRequest) (agent.CollaborationResponse, error) {
	return agent.CollaborationResponse{
		RequestID:    request.RequestID,
		Responder:    a.ID(),
		ResponseType: agent.ResponseAccepted,
		Content: map[string]interface{}{
			"message":      "ready to execute proposed fixes",
			"capabilities": []string{"command_execution", "config_updates", "validation"},
		},
	}, nil
}

// Shutdown warns about any fix still in progress but does not block on
// it (fix_executor.rs's shutdown).
func (a *Agent) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.logger.WithFields(logging.NewFields().
		Component("fixexecutor_agent").Operation("shutdown").
		Count(len(a.active)).Logrus()).Info("fix executor agent shutting down")

	for id, fix := range a.active {
		if fix.Status == fixInProgress {
			a.logger.WithField("fix_id", id).Warn("active fix still in progress during shutdown")
		}
	}
	return nil
}

var _ agent.UniversalAgent = (*Agent)(nil)
