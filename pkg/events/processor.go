package events

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Processor is an in-process event consumer registered with the Event
// Mesh; CanProcess gates whether Process is invoked for a given event
// (spec.md §4.D).
type Processor interface {
	CanProcess(event *Event) bool
	Process(ctx context.Context, event *Event) error
}

// ProcessorPipeline runs a fixed sequence of Processors over every
// accepted event.
type ProcessorPipeline struct {
	processors []Processor
}

// NewProcessorPipeline constructs a pipeline from the given
// processors, run in order.
func NewProcessorPipeline(processors ...Processor) *ProcessorPipeline {
	return &ProcessorPipeline{processors: processors}
}

// Process runs every processor that accepts event, in pipeline order,
// stopping at the first error.
func (p *ProcessorPipeline) Process(ctx context.Context, event *Event) error {
	for _, proc := range p.processors {
		if !proc.CanProcess(event) {
			continue
		}
		if err := proc.Process(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// LoggingProcessor logs every event it accepts.
type LoggingProcessor struct {
	Logger *logrus.Logger
	Accept func(e *Event) bool
}

func (p *LoggingProcessor) CanProcess(e *Event) bool {
	if p.Accept == nil {
		return true
	}
	return p.Accept(e)
}

func (p *LoggingProcessor) Process(_ context.Context, e *Event) error {
	p.Logger.WithFields(logrus.Fields{
		"event_id":   e.ID.String(),
		"event_type": e.EventType,
		"source":     e.Source,
	}).Info("processed event")
	return nil
}

// MetricsProcessor counts events by type and source and retains the
// last 1000 processing durations for latency reporting (spec.md §4.D).
type MetricsProcessor struct {
	mu         sync.Mutex
	byType     map[string]int64
	bySource   map[string]int64
	durations  []time.Duration
	maxSamples int

	counter  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetricsProcessor constructs a MetricsProcessor, registering its
// Prometheus counter and histogram with reg (nil skips registration,
// so the metrics are not exported to any registry).
func NewMetricsProcessor(reg prometheus.Registerer) *MetricsProcessor {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_ops_events_processed_total",
		Help: "Total events processed by the event mesh, by type and source.",
	}, []string{"event_type", "source"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "ai_ops_event_processing_duration_seconds",
		Help: "Event processing duration in seconds.",
	}, []string{"event_type"})
	if reg != nil {
		reg.MustRegister(counter, latency)
	}
	return &MetricsProcessor{
		byType:     map[string]int64{},
		bySource:   map[string]int64{},
		maxSamples: 1000,
		counter:    counter,
		latency:    latency,
	}
}

func (p *MetricsProcessor) CanProcess(*Event) bool { return true }

func (p *MetricsProcessor) Process(_ context.Context, e *Event) error {
	start := time.Now()
	p.mu.Lock()
	p.byType[e.EventType]++
	p.bySource[e.Source]++
	p.mu.Unlock()

	p.counter.WithLabelValues(e.EventType, e.Source).Inc()

	d := time.Since(start)
	p.latency.WithLabelValues(e.EventType).Observe(d.Seconds())

	p.mu.Lock()
	p.durations = append(p.durations, d)
	if len(p.durations) > p.maxSamples {
		p.durations = p.durations[len(p.durations)-p.maxSamples:]
	}
	p.mu.Unlock()
	return nil
}

// Counts returns a snapshot of the per-type and per-source counters.
func (p *MetricsProcessor) Counts() (byType, bySource map[string]int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	byType = make(map[string]int64, len(p.byType))
	for k, v := range p.byType {
		byType[k] = v
	}
	bySource = make(map[string]int64, len(p.bySource))
	for k, v := range p.bySource {
		bySource[k] = v
	}
	return byType, bySource
}

// ErrorHandlingProcessor retries a wrapped processor up to MaxRetries
// times with a fixed delay, routing to DeadLetter on final failure
// (spec.md §4.D, §7).
type ErrorHandlingProcessor struct {
	Inner      Processor
	MaxRetries int
	Delay      time.Duration
	DeadLetter func(ctx context.Context, event *Event, cause error)
}

func (p *ErrorHandlingProcessor) CanProcess(e *Event) bool { return p.Inner.CanProcess(e) }

func (p *ErrorHandlingProcessor) Process(ctx context.Context, e *Event) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}
		if err := p.Inner.Process(ctx, e); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if p.DeadLetter != nil {
		p.DeadLetter(ctx, e, lastErr)
	}
	return lastErr
}

// FilteringProcessor only forwards events accepted by Predicate to
// Inner.
type FilteringProcessor struct {
	Predicate func(e *Event) bool
	Inner     Processor
}

func (p *FilteringProcessor) CanProcess(e *Event) bool {
	return p.Predicate(e) && p.Inner.CanProcess(e)
}

func (p *FilteringProcessor) Process(ctx context.Context, e *Event) error {
	return p.Inner.Process(ctx, e)
}

// BatchingProcessor accumulates events and hands them to Flush when
// BatchSize is reached, and on every tick of a background ticker with
// period BatchTimeout (the ticker is not reset by a size-triggered
// flush) (spec.md §4.D).
type BatchingProcessor struct {
	BatchSize    int
	BatchTimeout time.Duration
	Flush        func(ctx context.Context, batch []*Event) error

	mu      sync.Mutex
	pending []*Event
	ticker  *time.Ticker
	stop    chan struct{}
	once    sync.Once
}

func (p *BatchingProcessor) CanProcess(*Event) bool { return true }

// Start launches the background ticker that flushes on timeout. Must
// be called once before Process is used, and Stop called on shutdown.
func (p *BatchingProcessor) Start(ctx context.Context) {
	p.stop = make(chan struct{})
	p.ticker = time.NewTicker(p.BatchTimeout)
	go func() {
		for {
			select {
			case <-p.ticker.C:
				_ = p.flushLocked(ctx)
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the background ticker.
func (p *BatchingProcessor) Stop() {
	p.once.Do(func() {
		if p.ticker != nil {
			p.ticker.Stop()
		}
		if p.stop != nil {
			close(p.stop)
		}
	})
}

func (p *BatchingProcessor) Process(ctx context.Context, e *Event) error {
	p.mu.Lock()
	p.pending = append(p.pending, e)
	shouldFlush := len(p.pending) >= p.BatchSize
	p.mu.Unlock()

	if shouldFlush {
		return p.flushLocked(ctx)
	}
	return nil
}

func (p *BatchingProcessor) flushLocked(ctx context.Context) error {
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.mu.Unlock()
		return nil
	}
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()

	return p.Flush(ctx, batch)
}
