// Package construction implements the Tool Construction pipeline
// (spec.md §4.K): a ToolSpecification is validated, compiled into a
// ToolArtifact by a language-specific generator, and handed to a
// deployment strategy that prepares environment-specific files without
// standing up real infrastructure. Grounded on original_source's
// construction/{mod,builder,validation,deployment}.rs.
package construction

import (
	"time"

	"github.com/google/uuid"
)

// ToolType classifies what kind of tool a specification describes
// (construction/mod.rs's ToolType).
type ToolType string

const (
	ToolTypeService     ToolType = "service"
	ToolTypeAgent       ToolType = "agent"
	ToolTypeProcessor   ToolType = "processor"
	ToolTypeAnalyzer    ToolType = "analyzer"
	ToolTypeMonitor     ToolType = "monitor"
	ToolTypeActuator    ToolType = "actuator"
	ToolTypeTransformer ToolType = "transformer"
)

// FieldType is the wire type of an interface field
// (construction/mod.rs's FieldType).
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "boolean"
	FieldObject FieldType = "object"
	FieldArray  FieldType = "array"
	FieldBinary FieldType = "binary"
)

// DeploymentType is where the built tool is meant to run
// (construction/mod.rs's DeploymentType).
type DeploymentType string

const (
	DeploymentStandalone DeploymentType = "standalone"
	DeploymentClustered  DeploymentType = "clustered"
	DeploymentServerless DeploymentType = "serverless"
	DeploymentEmbedded   DeploymentType = "embedded"
)

// ResourceRequirements declares the tool's expected footprint
// (construction/mod.rs's ResourceRequirements).
type ResourceRequirements struct {
	CPU     string `json:"cpu,omitempty" yaml:"cpu,omitempty"`
	Memory  string `json:"memory,omitempty" yaml:"memory,omitempty"`
	Storage string `json:"storage,omitempty" yaml:"storage,omitempty"`
}

// Permission is one resource/actions grant the tool requires
// (construction/mod.rs's Permission).
type Permission struct {
	Resource string   `json:"resource" yaml:"resource"`
	Actions  []string `json:"actions" yaml:"actions"`
}

// Requirements is a ToolSpecification's capability/dependency/
// resource/permission bill of materials (construction/mod.rs's
// Requirements).
type Requirements struct {
	Capabilities []string             `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Resources    ResourceRequirements `json:"resources" yaml:"resources"`
	Permissions  []Permission         `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// FieldSpec describes one input or output field
// (construction/mod.rs's FieldSpec).
type FieldSpec struct {
	Name        string    `json:"name" validate:"required" yaml:"name"`
	FieldType   FieldType `json:"field_type" validate:"required" yaml:"field_type"`
	Required    bool      `json:"required" yaml:"required"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// EventSpec describes one event the tool emits
// (construction/mod.rs's EventSpec).
type EventSpec struct {
	Name      string    `json:"name" yaml:"name"`
	EventType string    `json:"event_type" yaml:"event_type"`
	Payload   FieldSpec `json:"payload" yaml:"payload"`
}

// InterfaceSpec is a ToolSpecification's input/output/event contract
// (construction/mod.rs's InterfaceSpec).
type InterfaceSpec struct {
	Inputs  []FieldSpec `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs []FieldSpec `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Events  []EventSpec `json:"events,omitempty" yaml:"events,omitempty"`
}

// Trigger is one condition that invokes an action
// (construction/mod.rs's Trigger).
type Trigger struct {
	TriggerType string `json:"trigger_type" yaml:"trigger_type"`
	Action      string `json:"action" yaml:"action"`
}

// ActionSpec is one named action the tool can take
// (construction/mod.rs's ActionSpec).
type ActionSpec struct {
	Name       string `json:"name" yaml:"name"`
	ActionType string `json:"action_type" yaml:"action_type"`
}

// BehaviorSpec is what the tool does and when
// (construction/mod.rs's BehaviorSpec).
type BehaviorSpec struct {
	Triggers []Trigger    `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Actions  []ActionSpec `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// ScalingSpec bounds how many instances a deployment runs
// (construction/mod.rs's ScalingSpec).
type ScalingSpec struct {
	MinInstances int `json:"min_instances" yaml:"min_instances"`
	MaxInstances int `json:"max_instances" yaml:"max_instances"`
}

// DeploymentSpec is where and how the tool is meant to run
// (construction/mod.rs's DeploymentSpec).
type DeploymentSpec struct {
	DeploymentType DeploymentType `json:"deployment_type" yaml:"deployment_type"`
	Scaling        ScalingSpec    `json:"scaling" yaml:"scaling"`
}

// ToolSpecification is the input to the construction pipeline
// (construction/mod.rs's ToolSpecification). The struct tags drive
// go-playground/validator's structural checks in validate.go;
// InterfaceValidator/BehaviorValidator/SecurityValidator/
// PerformanceValidator layer semantic, spec-aware checks on top.
type ToolSpecification struct {
	Name         string        `json:"name" validate:"required" yaml:"name"`
	ToolType     ToolType      `json:"tool_type" validate:"required" yaml:"tool_type"`
	Description  string        `json:"description" yaml:"description"`
	Requirements Requirements  `json:"requirements" yaml:"requirements"`
	Interface    InterfaceSpec `json:"interface" yaml:"interface"`
	Behavior     BehaviorSpec  `json:"behavior" yaml:"behavior"`
	Deployment   DeploymentSpec `json:"deployment" yaml:"deployment"`
}

// GeneratedCode is a generator's output source tree
// (construction/mod.rs's GeneratedCode).
type GeneratedCode struct {
	Language   string            `json:"language"`
	Files      map[string]string `json:"files"`
	EntryPoint string            `json:"entry_point"`
}

// GeneratedTests is a generator's output test scaffold
// (construction/mod.rs's GeneratedTests).
type GeneratedTests struct {
	UnitTests        map[string]string `json:"unit_tests"`
	IntegrationTests map[string]string `json:"integration_tests"`
}

// Documentation is the generated artifact's human-facing docs
// (construction/mod.rs's Documentation).
type Documentation struct {
	Readme  string `json:"readme"`
	APIDocs string `json:"api_docs"`
}

// ToolArtifact is the construction pipeline's final output
// (construction/mod.rs's ToolArtifact).
type ToolArtifact struct {
	ID                 uuid.UUID         `json:"id"`
	Specification      ToolSpecification `json:"specification"`
	Code               GeneratedCode     `json:"code"`
	Tests              GeneratedTests    `json:"tests"`
	Documentation      Documentation     `json:"documentation"`
	DeploymentManifest []byte            `json:"deployment_manifest"`
	CreatedAt          time.Time         `json:"created_at"`
}

// BuildContext parameterizes a single build (construction/builder.rs's
// BuildContext, trimmed to the fields this port's generators consult).
type BuildContext struct {
	TargetLanguage string
	IncludeTests   bool
}
