package patterns

import (
	"context"
	"fmt"
	"time"
)

// StepResult is the outcome of executing a single SolutionStep.
type StepResult struct {
	StepOrder uint32
	Success   bool
	Output    string
	Error     string
	Duration  time.Duration
}

// ApplicationResult is the outcome of applying a whole pattern.
type ApplicationResult struct {
	PatternID     PatternID
	Success       bool
	StepsExecuted []StepResult
	Duration      time.Duration
	DryRun        bool
}

// ActionExecutor runs one Action and reports a human-readable result,
// grounded on application.rs's ActionExecutor trait. Exported so
// callers (e.g. the fix-executor agent) can register real executors in
// place of the stub ones via RegisterExecutor.
type ActionExecutor interface {
	Execute(ctx context.Context, action Action) (string, error)
}

// Applicator executes a pattern's solution steps in order, honouring
// each step's FailureStrategy and running rollback_steps in reverse
// order when a step aborts or rolls back (spec.md §4.F Application).
type Applicator struct {
	executors map[ActionType]ActionExecutor
}

// NewApplicator builds an Applicator with the default execute/
// configure/scale executors (application.rs's PatternApplicator::new).
func NewApplicator() *Applicator {
	return &Applicator{
		executors: map[ActionType]ActionExecutor{
			ActionExecute:   commandExecutor{},
			ActionConfigure: configurationExecutor{},
			ActionScale:     scalingExecutor{},
		},
	}
}

// RegisterExecutor installs an executor for an action type, letting
// callers (e.g. the fix-executor agent) wire in real side effects in
// place of the stub executors.
func (a *Applicator) RegisterExecutor(actionType ActionType, executor ActionExecutor) {
	a.executors[actionType] = executor
}

// Apply runs pattern.Solution.Steps in order. A step's on_failure
// strategy governs what happens next: Retry re-runs the step once and
// rolls back only if the retry also fails; Skip continues to the next
// step; Abort and Rollback both stop the loop and trigger rollback
// (spec.md §4.F, and the open-question resolution in SPEC_FULL.md §9:
// a step, once started, always runs to completion — cancellation is
// only honoured between steps).
func (a *Applicator) Apply(ctx context.Context, pattern UniversalPattern, appCtx ApplicationContext) ApplicationResult {
	start := time.Now()
	var stepResults []StepResult
	rollbackNeeded := false

	for _, step := range pattern.Solution.Steps {
		if err := ctx.Err(); err != nil {
			rollbackNeeded = true
			break
		}

		result := a.executeStep(ctx, step, appCtx)

		if !result.Success {
			switch step.OnFailure {
			case FailureRetry:
				retryResult := a.executeStep(ctx, step, appCtx)
				stepResults = append(stepResults, retryResult)
				if !retryResult.Success {
					rollbackNeeded = true
				}
			case FailureSkip:
				stepResults = append(stepResults, result)
				continue
			case FailureAbort, FailureRollback:
				stepResults = append(stepResults, result)
				rollbackNeeded = true
			}
			if rollbackNeeded {
				break
			}
		} else {
			stepResults = append(stepResults, result)
		}
	}

	if rollbackNeeded && !appCtx.DryRun {
		a.rollback(ctx, pattern, appCtx)
	}

	return ApplicationResult{
		PatternID:     pattern.ID,
		Success:       !rollbackNeeded,
		StepsExecuted: stepResults,
		Duration:      time.Since(start),
		DryRun:        appCtx.DryRun,
	}
}

func (a *Applicator) executeStep(ctx context.Context, step SolutionStep, appCtx ApplicationContext) StepResult {
	start := time.Now()

	if appCtx.DryRun {
		return StepResult{
			StepOrder: step.Order,
			Success:   true,
			Output:    "dry run - step would be executed",
			Duration:  time.Millisecond,
		}
	}

	executor, ok := a.executors[step.Action.ActionType]
	if !ok {
		return StepResult{
			StepOrder: step.Order,
			Success:   false,
			Error:     fmt.Sprintf("no executor for action type: %s", step.Action.ActionType),
			Duration:  time.Since(start),
		}
	}

	output, err := executor.Execute(ctx, step.Action)
	result := StepResult{StepOrder: step.Order, Success: err == nil, Output: output, Duration: time.Since(start)}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func (a *Applicator) rollback(ctx context.Context, pattern UniversalPattern, appCtx ApplicationContext) {
	steps := pattern.Solution.RollbackSteps
	for i := len(steps) - 1; i >= 0; i-- {
		a.executeStep(ctx, steps[i], appCtx)
	}
}

// commandExecutor is a stub matching application.rs's CommandExecutor;
// real command execution is wired in by callers via RegisterExecutor.
type commandExecutor struct{}

func (commandExecutor) Execute(_ context.Context, action Action) (string, error) {
	return fmt.Sprintf("executed command: %v", action.Parameters), nil
}

// configurationExecutor is a stub matching ConfigurationExecutor.
type configurationExecutor struct{}

func (configurationExecutor) Execute(_ context.Context, action Action) (string, error) {
	return fmt.Sprintf("applied configuration: %v", action.Parameters), nil
}

// scalingExecutor is a stub matching ScalingExecutor.
type scalingExecutor struct{}

func (scalingExecutor) Execute(_ context.Context, action Action) (string, error) {
	return fmt.Sprintf("scaled resource: %s", action.Target), nil
}
