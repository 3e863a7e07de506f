package registry_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ai-ops-core/core/pkg/registry"
)

func TestRegistry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Service Registry Suite")
}

var _ = Describe("Registry", func() {
	var (
		reg *registry.Registry
		ctx context.Context
	)

	BeforeEach(func() {
		reg = registry.New()
		ctx = context.Background()
	})

	It("registers a service, seeding health as Healthy and indexing its capabilities", func() {
		id, err := reg.Register(ctx, registry.ServiceDefinition{
			Name:         "log-monitor",
			ServiceType:  registry.ServiceTypeAgent,
			Capabilities: []registry.Capability{"log_analysis"},
		})
		Expect(err).NotTo(HaveOccurred())

		info, err := reg.GetService(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Health.Status).To(Equal(registry.HealthHealthy))

		found, err := reg.FindByCapability(ctx, "log_analysis")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(1))
		Expect(found[0].Definition.ID).To(Equal(id))
	})

	It("removes a deregistered service from the capability index", func() {
		id, err := reg.Register(ctx, registry.ServiceDefinition{
			Name: "fix-executor", Capabilities: []registry.Capability{"fix_execution"},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(reg.Deregister(ctx, id)).To(Succeed())

		found, err := reg.FindByCapability(ctx, "fix_execution")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeEmpty())

		_, err = reg.GetService(ctx, id)
		Expect(err).To(HaveOccurred())
	})

	It("sorts FindByCapability results healthy-first, then by ascending load", func() {
		loaded, err := reg.Register(ctx, registry.ServiceDefinition{Name: "a", Capabilities: []registry.Capability{"x"}})
		Expect(err).NotTo(HaveOccurred())
		light, err := reg.Register(ctx, registry.ServiceDefinition{Name: "b", Capabilities: []registry.Capability{"x"}})
		Expect(err).NotTo(HaveOccurred())
		degraded, err := reg.Register(ctx, registry.ServiceDefinition{Name: "c", Capabilities: []registry.Capability{"x"}})
		Expect(err).NotTo(HaveOccurred())

		Expect(reg.UpdateHealth(ctx, loaded, registry.HealthUpdate{Status: registry.HealthHealthy, Metrics: map[string]float64{"load": 0.9}})).To(Succeed())
		Expect(reg.UpdateHealth(ctx, light, registry.HealthUpdate{Status: registry.HealthHealthy, Metrics: map[string]float64{"load": 0.1}})).To(Succeed())
		Expect(reg.UpdateHealth(ctx, degraded, registry.HealthUpdate{Status: registry.HealthDegraded})).To(Succeed())

		found, err := reg.FindByCapability(ctx, "x")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(3))
		Expect(found[0].Definition.ID).To(Equal(light))
		Expect(found[1].Definition.ID).To(Equal(loaded))
		Expect(found[2].Definition.ID).To(Equal(degraded))
	})

	It("reports aggregate health counts with no stale services for a fresh heartbeat", func() {
		id, err := reg.Register(ctx, registry.ServiceDefinition{Name: "a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.UpdateHealth(ctx, id, registry.HealthUpdate{Status: registry.HealthHealthy})).To(Succeed())

		report, err := reg.CheckHealth(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.StaleServices).To(BeEmpty())
		Expect(report.Healthy).To(Equal(1))
	})
})
