package construction

import (
	"fmt"
	"strings"

	validate "github.com/go-playground/validator/v10"
)

// Severity is how serious a ValidationIssue is
// (construction/validation.rs's Severity).
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IssueCategory classifies what part of the specification an issue
// concerns (construction/validation.rs's IssueCategory).
type IssueCategory string

const (
	CategorySpecification IssueCategory = "specification"
	CategoryInterface      IssueCategory = "interface"
	CategoryBehavior       IssueCategory = "behavior"
	CategorySecurity       IssueCategory = "security"
	CategoryPerformance    IssueCategory = "performance"
)

// ValidationIssue is one finding surfaced by ValidateSpecification
// (construction/validation.rs's ValidationIssue).
type ValidationIssue struct {
	Severity Severity      `json:"severity"`
	Category IssueCategory `json:"category"`
	Message  string        `json:"message"`
	Location string        `json:"location,omitempty"`
}

// ValidationResult is ValidateSpecification's return value
// (construction/validation.rs's ValidationResult).
type ValidationResult struct {
	Valid       bool              `json:"valid"`
	Issues      []ValidationIssue `json:"issues"`
	Warnings    []ValidationIssue `json:"warnings"`
	Suggestions []string          `json:"suggestions"`
}

// destructiveVerbs flags an action as needing extra scrutiny before
// it's allowed to run unattended (construction/validation.rs's
// SecurityValidator checked only "delete"/"remove"; this port widens
// it to the verb set fixexecutor/rootcause's prompts already treat as
// high-risk, so the two packages agree on what "destructive" means).
var destructiveVerbs = []string{"delete", "remove", "drop", "terminate", "purge"}

// validatorInstance is reused across calls, matching
// go-playground/validator's own recommendation to construct it once.
var validatorInstance = validate.New()

// ValidateSpecification runs the structural validator (driven by
// ToolSpecification's `validate` struct tags) followed by the
// specification/interface/behavior/security/performance checks
// (construction/validation.rs's ToolValidator::validate_specification,
// fanning out across its five Validator impls).
func ValidateSpecification(spec ToolSpecification) ValidationResult {
	var issues, warnings []ValidationIssue

	if err := validatorInstance.Struct(spec); err != nil {
		for _, fe := range err.(validate.ValidationErrors) {
			issues = append(issues, ValidationIssue{
				Severity: SeverityError,
				Category: CategorySpecification,
				Message:  fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()),
				Location: fe.Namespace(),
			})
		}
	}

	specIssues, specWarnings := validateSpecificationFields(spec)
	issues = append(issues, specIssues...)
	warnings = append(warnings, specWarnings...)

	ifaceIssues, ifaceWarnings := validateInterface(spec)
	issues = append(issues, ifaceIssues...)
	warnings = append(warnings, ifaceWarnings...)

	warnings = append(warnings, validateBehavior(spec)...)
	warnings = append(warnings, validateSecurity(spec)...)
	warnings = append(warnings, validatePerformance(spec)...)

	return ValidationResult{
		Valid:       len(issues) == 0,
		Issues:      issues,
		Warnings:    warnings,
		Suggestions: suggestionsFor(issues),
	}
}

// validateSpecificationFields mirrors validation.rs's
// SpecificationValidator: an empty name is an error, an empty
// description is a warning.
func validateSpecificationFields(spec ToolSpecification) (issues, warnings []ValidationIssue) {
	if spec.Name == "" {
		issues = append(issues, ValidationIssue{Severity: SeverityError, Category: CategorySpecification, Message: "tool name cannot be empty", Location: "name"})
	}
	if spec.Description == "" {
		warnings = append(warnings, ValidationIssue{Severity: SeverityWarning, Category: CategorySpecification, Message: "tool description is empty", Location: "description"})
	}
	return issues, warnings
}

// validateInterface mirrors validation.rs's InterfaceValidator: no
// inputs and no event triggers is a warning; duplicate input field
// names are an error.
func validateInterface(spec ToolSpecification) (issues, warnings []ValidationIssue) {
	if len(spec.Interface.Inputs) == 0 && len(spec.Interface.Events) == 0 {
		warnings = append(warnings, ValidationIssue{Severity: SeverityWarning, Category: CategoryInterface, Message: "tool has no inputs or event triggers", Location: "interface"})
	}

	seen := map[string]bool{}
	for _, input := range spec.Interface.Inputs {
		if seen[input.Name] {
			issues = append(issues, ValidationIssue{
				Severity: SeverityError,
				Category: CategoryInterface,
				Message:  fmt.Sprintf("duplicate input field name: %s", input.Name),
				Location: fmt.Sprintf("interface.inputs.%s", input.Name),
			})
		}
		seen[input.Name] = true
	}
	return issues, warnings
}

// validateBehavior mirrors validation.rs's BehaviorValidator: no
// triggers or no actions is a warning, never an error.
func validateBehavior(spec ToolSpecification) []ValidationIssue {
	var warnings []ValidationIssue
	if len(spec.Behavior.Triggers) == 0 {
		warnings = append(warnings, ValidationIssue{Severity: SeverityWarning, Category: CategoryBehavior, Message: "no triggers defined", Location: "behavior.triggers"})
	}
	if len(spec.Behavior.Actions) == 0 {
		warnings = append(warnings, ValidationIssue{Severity: SeverityWarning, Category: CategoryBehavior, Message: "no actions defined", Location: "behavior.actions"})
	}
	return warnings
}

// validateSecurity mirrors validation.rs's SecurityValidator: missing
// permissions is informational, and any action whose name contains a
// destructive verb is flagged for review.
func validateSecurity(spec ToolSpecification) []ValidationIssue {
	var warnings []ValidationIssue
	if len(spec.Requirements.Permissions) == 0 {
		warnings = append(warnings, ValidationIssue{Severity: SeverityInfo, Category: CategorySecurity, Message: "no permissions specified - tool will run with minimal privileges", Location: "requirements.permissions"})
	}

	for _, action := range spec.Behavior.Actions {
		lower := strings.ToLower(action.Name)
		for _, verb := range destructiveVerbs {
			if strings.Contains(lower, verb) {
				warnings = append(warnings, ValidationIssue{
					Severity: SeverityWarning,
					Category: CategorySecurity,
					Message:  fmt.Sprintf("destructive action detected: %s", action.Name),
					Location: fmt.Sprintf("behavior.actions.%s", action.Name),
				})
				break
			}
		}
	}
	return warnings
}

// validatePerformance mirrors validation.rs's PerformanceValidator:
// no declared CPU/memory caps and a zero minimum instance count are
// both informational-to-warning nudges, never hard failures.
func validatePerformance(spec ToolSpecification) []ValidationIssue {
	var warnings []ValidationIssue
	if spec.Requirements.Resources.CPU == "" && spec.Requirements.Resources.Memory == "" {
		warnings = append(warnings, ValidationIssue{Severity: SeverityInfo, Category: CategoryPerformance, Message: "no resource limits specified", Location: "requirements.resources"})
	}
	if spec.Deployment.Scaling.MinInstances == 0 {
		warnings = append(warnings, ValidationIssue{Severity: SeverityWarning, Category: CategoryPerformance, Message: "minimum instances set to 0 - tool may not be available", Location: "deployment.scaling.min_instances"})
	}
	return warnings
}

// suggestionsFor turns issue categories into actionable follow-ups,
// deduplicated in encounter order (validation.rs's generate_suggestions).
func suggestionsFor(issues []ValidationIssue) []string {
	var suggestions []string
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			suggestions = append(suggestions, s)
		}
	}

	for _, issue := range issues {
		switch issue.Category {
		case CategoryInterface:
			add("Consider adding input validation rules")
		case CategorySecurity:
			add("Review security best practices for your tool type")
		case CategoryPerformance:
			add("Consider adding resource limits and timeouts")
		}
	}
	return suggestions
}

// ValidateArtifact checks a built ToolArtifact for the minimum shape
// ValidateSpecification can't see before generation happens
// (construction/validation.rs's validate_artifact).
func ValidateArtifact(artifact ToolArtifact) ValidationResult {
	var issues, warnings []ValidationIssue

	if artifact.Specification.Name == "" {
		issues = append(issues, ValidationIssue{Severity: SeverityError, Category: CategorySpecification, Message: "tool name is empty", Location: "specification.name"})
	}
	if len(artifact.Code.Files) == 0 {
		issues = append(issues, ValidationIssue{Severity: SeverityError, Category: IssueCategory("code"), Message: "no code files generated"})
	}
	if len(artifact.Tests.UnitTests) == 0 && len(artifact.Tests.IntegrationTests) == 0 {
		warnings = append(warnings, ValidationIssue{Severity: SeverityWarning, Category: IssueCategory("testing"), Message: "no tests generated"})
	}

	return ValidationResult{Valid: len(issues) == 0, Issues: issues, Warnings: warnings}
}
