// Package registry implements the Service Registry (spec.md §4.G):
// agent/tool discovery with a capability index and heartbeat-driven
// health tracking, grounded on original_source's registry/mod.rs.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
)

// ServiceID identifies a registered service.
type ServiceID = uuid.UUID

// ServiceType classifies what a registered service is.
type ServiceType string

const (
	ServiceTypeAgent     ServiceType = "agent"
	ServiceTypeTool      ServiceType = "tool"
	ServiceTypeGateway   ServiceType = "gateway"
	ServiceTypeStorage   ServiceType = "storage"
	ServiceTypeProcessor ServiceType = "processor"
)

// Protocol is the transport a ServiceEndpoint speaks.
type Protocol string

const (
	ProtocolHTTP      Protocol = "http"
	ProtocolHTTPS     Protocol = "https"
	ProtocolGRPC      Protocol = "grpc"
	ProtocolWebSocket Protocol = "websocket"
)

// Capability is a string tag a service advertises (e.g.
// "log_analysis", "fix_execution") and that find_by_capability queries
// against, matching pkg/agent.Capability's string representation.
type Capability string

// ServiceEndpoint is where a service can be reached.
type ServiceEndpoint struct {
	Protocol Protocol
	Host     string
	Port     uint16
	Path     string
}

// ServiceDefinition is what a caller registers.
type ServiceDefinition struct {
	ID           ServiceID
	Name         string
	ServiceType  ServiceType
	AgentType    string
	Capabilities []Capability
	Endpoint     ServiceEndpoint
	Metadata     map[string]interface{}
	RegisteredAt time.Time
}

// HealthStatus is a service's current health as last reported.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// rank orders HealthStatus for sorting (healthy < degraded < unhealthy,
// per spec.md §4.G's find_by_capability ordering).
func (h HealthStatus) rank() int {
	switch h {
	case HealthHealthy:
		return 0
	case HealthDegraded:
		return 1
	default:
		return 2
	}
}

// ServiceHealth is the most recently reported health of a service.
type ServiceHealth struct {
	Status        HealthStatus
	LastHeartbeat time.Time
	Metrics       map[string]float64
}

// HealthUpdate is what update_health applies to a ServiceHealth.
type HealthUpdate struct {
	Status  HealthStatus
	Metrics map[string]float64
}

// ServiceInfo pairs a definition with its current health.
type ServiceInfo struct {
	Definition ServiceDefinition
	Health     ServiceHealth
}

// HealthReport is the aggregate view returned by CheckHealth.
type HealthReport struct {
	TotalServices  int
	Healthy        int
	Degraded       int
	Unhealthy      int
	StaleServices  []ServiceID
	Timestamp      time.Time
}

// staleAfter is how long a heartbeat may go unseen before a service is
// flagged stale by CheckHealth (spec.md §4.G: "marks heartbeats older
// than 60s as stale"). Stale status is reported only — it does not
// itself change HealthStatus.
const staleAfter = 60 * time.Second

// Registry is the Service Registry: a service map, a derived
// capability index, and a health tracker (spec.md §4.G).
type Registry struct {
	mu                 sync.RWMutex
	services           map[ServiceID]ServiceDefinition
	capabilitiesIndex  map[Capability][]ServiceID
	health             map[ServiceID]ServiceHealth
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		services:          map[ServiceID]ServiceDefinition{},
		capabilitiesIndex: map[Capability][]ServiceID{},
		health:            map[ServiceID]ServiceHealth{},
	}
}

// Register adds definition to the registry, updates the capability
// index and seeds health tracking as Healthy (registry/mod.rs's
// register).
func (r *Registry) Register(_ context.Context, definition ServiceDefinition) (ServiceID, error) {
	if definition.ID == (ServiceID{}) {
		definition.ID = uuid.New()
	}
	if definition.RegisteredAt.IsZero() {
		definition.RegisteredAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.services[definition.ID] = definition
	for _, capability := range definition.Capabilities {
		r.capabilitiesIndex[capability] = append(r.capabilitiesIndex[capability], definition.ID)
	}
	r.health[definition.ID] = ServiceHealth{
		Status:        HealthHealthy,
		LastHeartbeat: time.Now().UTC(),
		Metrics:       map[string]float64{},
	}

	return definition.ID, nil
}

// Deregister removes a service and its capability-index entries.
func (r *Registry) Deregister(_ context.Context, id ServiceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	definition, ok := r.services[id]
	if !ok {
		return aerrors.WithKind(aerrors.NotFound("service", id.String()), aerrors.KindServiceRegistry)
	}
	delete(r.services, id)
	delete(r.health, id)

	for _, capability := range definition.Capabilities {
		ids := r.capabilitiesIndex[capability]
		for i, existing := range ids {
			if existing == id {
				r.capabilitiesIndex[capability] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
	return nil
}

// FindByCapability returns every service advertising capability,
// sorted healthy-first and, among healthy services, by ascending
// metrics["load"] (spec.md §4.G).
func (r *Registry) FindByCapability(_ context.Context, capability Capability) ([]ServiceInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.capabilitiesIndex[capability]
	results := make([]ServiceInfo, 0, len(ids))
	for _, id := range ids {
		definition, ok := r.services[id]
		if !ok {
			continue
		}
		health, ok := r.health[id]
		if !ok {
			continue
		}
		results = append(results, ServiceInfo{Definition: definition, Health: health})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Health, results[j].Health
		if a.Status.rank() != b.Status.rank() {
			return a.Status.rank() < b.Status.rank()
		}
		if a.Status != HealthHealthy {
			return false
		}
		return a.Metrics["load"] < b.Metrics["load"]
	})

	return results, nil
}

// FindByType returns every service of the given ServiceType.
func (r *Registry) FindByType(_ context.Context, serviceType ServiceType) ([]ServiceInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []ServiceInfo
	for id, definition := range r.services {
		if definition.ServiceType != serviceType {
			continue
		}
		if health, ok := r.health[id]; ok {
			results = append(results, ServiceInfo{Definition: definition, Health: health})
		}
	}
	return results, nil
}

// UpdateHealth applies a HealthUpdate, refreshing the heartbeat and
// merging reported metrics (spec.md §4.G update_health).
func (r *Registry) UpdateHealth(_ context.Context, id ServiceID, update HealthUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	health, ok := r.health[id]
	if !ok {
		return aerrors.WithKind(aerrors.NotFound("service", id.String()), aerrors.KindServiceRegistry)
	}

	health.Status = update.Status
	health.LastHeartbeat = time.Now().UTC()
	if health.Metrics == nil {
		health.Metrics = map[string]float64{}
	}
	for key, value := range update.Metrics {
		health.Metrics[key] = value
	}

	r.health[id] = health
	return nil
}

// GetService returns a single service's definition and health.
func (r *Registry) GetService(_ context.Context, id ServiceID) (ServiceInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	definition, ok := r.services[id]
	if !ok {
		return ServiceInfo{}, aerrors.WithKind(aerrors.NotFound("service", id.String()), aerrors.KindServiceRegistry)
	}
	health, ok := r.health[id]
	if !ok {
		return ServiceInfo{}, aerrors.WithKind(aerrors.NotFound("service_health", id.String()), aerrors.KindServiceRegistry)
	}
	return ServiceInfo{Definition: definition, Health: health}, nil
}

// ListAll returns every registered service.
func (r *Registry) ListAll(_ context.Context) ([]ServiceInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]ServiceInfo, 0, len(r.services))
	for id, definition := range r.services {
		if health, ok := r.health[id]; ok {
			results = append(results, ServiceInfo{Definition: definition, Health: health})
		}
	}
	return results, nil
}

// CheckHealth aggregates status counts across all tracked services and
// flags heartbeats older than staleAfter as stale (status itself is
// left unchanged — staleness is informational, per spec.md §4.G).
func (r *Registry) CheckHealth(_ context.Context) (HealthReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now().UTC()
	report := HealthReport{TotalServices: len(r.health), Timestamp: now}

	for id, health := range r.health {
		if now.Sub(health.LastHeartbeat) > staleAfter {
			report.StaleServices = append(report.StaleServices, id)
		}
		switch health.Status {
		case HealthHealthy:
			report.Healthy++
		case HealthDegraded:
			report.Degraded++
		case HealthUnhealthy:
			report.Unhealthy++
		}
	}

	return report, nil
}
