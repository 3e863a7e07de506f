package construction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeploymentContext parameterizes a single deployment
// (construction/deployment.rs's DeploymentContext).
type DeploymentContext struct {
	Environment string
	Namespace   string
	DryRun      bool
}

// DeploymentID identifies a prepared deployment
// (construction/deployment.rs's DeploymentId).
type DeploymentID struct {
	ID          string `json:"id"`
	Strategy    string `json:"strategy"`
	Environment string `json:"environment"`
}

// DeploymentState is where a deployment sits in its lifecycle
// (construction/deployment.rs's DeploymentState).
type DeploymentState string

const (
	DeploymentPending   DeploymentState = "pending"
	DeploymentDeploying DeploymentState = "deploying"
	DeploymentRunning   DeploymentState = "running"
	DeploymentStopped   DeploymentState = "stopped"
	DeploymentFailed    DeploymentState = "failed"
)

// DeploymentResult is what Deploy returns
// (construction/deployment.rs's DeploymentResult).
type DeploymentResult struct {
	DeploymentID   DeploymentID `json:"deployment_id"`
	Success        bool         `json:"success"`
	Endpoint       string       `json:"endpoint,omitempty"`
	DeploymentTime time.Time    `json:"deployment_time"`
	Logs           []string     `json:"logs"`
	DryRun         bool         `json:"dry_run"`
}

// DeploymentStatus is what Status returns
// (construction/deployment.rs's DeploymentStatus).
type DeploymentStatus struct {
	State     DeploymentState `json:"state"`
	Instances int             `json:"instances"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// preparedDeployment is a strategy's intermediate output before the
// (stubbed) actual deploy step (construction/deployment.rs's
// PreparedDeployment).
type preparedDeployment struct {
	files    map[string]string
	endpoint string
	logs     []string
}

// strategyFor maps a ToolSpecification's DeploymentType directly onto
// its deployment strategy name — unlike deployment.rs, which renames
// Clustered to "kubernetes" and folds Embedded into "standalone" at a
// second remove, this port keeps the spec's own vocabulary as the
// strategy key throughout, since nothing downstream needs the Rust
// crate's Kubernetes-specific naming.
func strategyFor(t DeploymentType) DeploymentType {
	if t == "" {
		return DeploymentStandalone
	}
	return t
}

// Deployer prepares environment-specific deployment files for a built
// ToolArtifact without standing up real infrastructure
// (construction/deployment.rs's ToolDeployer).
type Deployer struct{}

// NewDeployer builds a tool Deployer.
func NewDeployer() *Deployer {
	return &Deployer{}
}

// Deploy prepares, and — unless context.DryRun — "executes" a
// deployment for artifact, dispatching on its declared DeploymentType
// (construction/deployment.rs's ToolDeployer::deploy).
func (d *Deployer) Deploy(_ context.Context, artifact ToolArtifact, deployCtx DeploymentContext) (DeploymentResult, error) {
	strategy := strategyFor(artifact.Specification.Deployment.DeploymentType)

	prepared, err := d.prepare(artifact, deployCtx, strategy)
	if err != nil {
		return DeploymentResult{}, err
	}

	id := DeploymentID{ID: "dry-run", Strategy: "dry-run", Environment: "dry-run"}
	if !deployCtx.DryRun {
		id = DeploymentID{ID: uuid.New().String(), Strategy: string(strategy), Environment: deployCtx.Environment}
	}

	return DeploymentResult{
		DeploymentID:   id,
		Success:        true,
		Endpoint:       prepared.endpoint,
		DeploymentTime: time.Now().UTC(),
		Logs:           prepared.logs,
		DryRun:         deployCtx.DryRun,
	}, nil
}

// prepare builds the strategy-specific file set, matching each of
// deployment.rs's DeploymentStrategy::prepare implementations.
func (d *Deployer) prepare(artifact ToolArtifact, deployCtx DeploymentContext, strategy DeploymentType) (preparedDeployment, error) {
	switch strategy {
	case DeploymentStandalone, DeploymentEmbedded:
		return preparedDeployment{
			files:    map[string]string{},
			endpoint: "http://localhost:8080",
			logs:     []string{fmt.Sprintf("prepared %s deployment", strategy)},
		}, nil
	case DeploymentClustered:
		name := strings.ReplaceAll(strings.ToLower(artifact.Specification.Name), " ", "-")
		namespace := deployCtx.Namespace
		if namespace == "" {
			namespace = "default"
		}
		return preparedDeployment{
			files: map[string]string{
				"deployment.yaml": deploymentManifest(name, namespace, artifact.Specification.Deployment.Scaling.MinInstances),
				"service.yaml":    serviceManifest(name, namespace),
			},
			logs: []string{"generated clustered deployment manifests"},
		}, nil
	case DeploymentServerless:
		return preparedDeployment{
			files:    map[string]string{},
			endpoint: "https://api.example.com/function",
			logs:     []string{"prepared serverless deployment"},
		}, nil
	default:
		return preparedDeployment{}, fmt.Errorf("no deployment strategy for type: %s", strategy)
	}
}

func deploymentManifest(name, namespace string, replicas int) string {
	return fmt.Sprintf(`apiVersion: apps/v1
kind: Deployment
metadata:
  name: %s
  namespace: %s
spec:
  replicas: %d
  selector:
    matchLabels:
      app: %s
  template:
    metadata:
      labels:
        app: %s
    spec:
      containers:
      - name: %s
        image: %s:latest
        ports:
        - containerPort: 8080
`, name, namespace, replicas, name, name, name, name)
}

func serviceManifest(name, namespace string) string {
	return fmt.Sprintf(`apiVersion: v1
kind: Service
metadata:
  name: %s
  namespace: %s
spec:
  selector:
    app: %s
  ports:
  - port: 80
    targetPort: 8080
  type: ClusterIP
`, name, namespace, name)
}

// Status reports a stub deployment's current state
// (construction/deployment.rs's ToolDeployer::status): since this
// port never stands up real infrastructure, every non-dry-run
// deployment reports itself Running with a single instance, whatever
// its declared scaling, matching each Rust strategy's own hardcoded
// status stub.
func (d *Deployer) Status(_ context.Context, id DeploymentID) DeploymentStatus {
	if id.Strategy == "dry-run" {
		return DeploymentStatus{State: DeploymentPending, Instances: 0, UpdatedAt: time.Now().UTC()}
	}
	return DeploymentStatus{State: DeploymentRunning, Instances: 1, UpdatedAt: time.Now().UTC()}
}
