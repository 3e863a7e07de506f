package events

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Handler processes a routed event.
type Handler interface {
	Handle(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event *Event) error

func (f HandlerFunc) Handle(ctx context.Context, event *Event) error { return f(ctx, event) }

// PatternMatcher tests a single condition against an event's JSON
// projection (spec.md §4.C).
type PatternMatcher interface {
	Matches(event *Event) bool
}

// FieldEquals matches when the dot-path field equals value exactly.
type FieldEquals struct {
	Path  string
	Value interface{}
}

func (m FieldEquals) Matches(e *Event) bool {
	v, ok := fieldAt(e, m.Path)
	if !ok {
		return false
	}
	return fmt.Sprintf("%v", v) == fmt.Sprintf("%v", m.Value)
}

// FieldMatches matches when the dot-path field (stringified) matches
// a regular expression.
type FieldMatches struct {
	Path  string
	Regex *regexp.Regexp
}

func (m FieldMatches) Matches(e *Event) bool {
	v, ok := fieldAt(e, m.Path)
	if !ok {
		return false
	}
	return m.Regex.MatchString(fmt.Sprintf("%v", v))
}

// FieldContains matches when the dot-path field (stringified)
// contains substr.
type FieldContains struct {
	Path   string
	Substr string
}

func (m FieldContains) Matches(e *Event) bool {
	v, ok := fieldAt(e, m.Path)
	if !ok {
		return false
	}
	return strings.Contains(fmt.Sprintf("%v", v), m.Substr)
}

// FieldExists matches when the dot-path field is present.
type FieldExists struct {
	Path string
}

func (m FieldExists) Matches(e *Event) bool {
	_, ok := fieldAt(e, m.Path)
	return ok
}

// CustomMatcher wraps an arbitrary predicate.
type CustomMatcher struct {
	Fn func(e *Event) bool
}

func (m CustomMatcher) Matches(e *Event) bool { return m.Fn(e) }

// fieldAt resolves a dot-separated path over the event's "payload" and
// "metadata" maps (and a handful of top-level fields).
func fieldAt(e *Event, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{}
	switch parts[0] {
	case "event_type":
		return e.EventType, true
	case "source":
		return e.Source, true
	case "payload":
		cur = map[string]interface{}(e.Payload)
		parts = parts[1:]
	case "metadata":
		cur = map[string]interface{}(e.Metadata)
		parts = parts[1:]
	default:
		cur = map[string]interface{}(e.Payload)
	}

	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// RoutingRule gates a Handler by event type, source, and/or pattern
// conjuncts; the rule matches only when ALL specified conjuncts match
// (spec.md §4.C).
type RoutingRule struct {
	EventTypes []string
	Sources    []string
	Patterns   []PatternMatcher
}

func (r RoutingRule) matches(e *Event) bool {
	if len(r.EventTypes) > 0 && !contains(r.EventTypes, e.EventType) {
		return false
	}
	if len(r.Sources) > 0 && !contains(r.Sources, e.Source) {
		return false
	}
	for _, p := range r.Patterns {
		if !p.Matches(e) {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type route struct {
	rule     RoutingRule
	handler  Handler
	priority int
	seq      int
}

// Router holds an ordered list of (rule, handler) routes, sorted by
// priority descending with stable insertion order for ties, and an
// optional default handler invoked when no route matches (spec.md
// §4.C).
type Router struct {
	mu      sync.RWMutex
	routes  []route
	seq     int
	dflt    Handler
}

// NewRouter constructs an empty Router.
func NewRouter() *Router {
	return &Router{}
}

// AddRoute registers handler under rule at the given priority (higher
// priority runs first).
func (r *Router) AddRoute(rule RoutingRule, priority int, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.routes = append(r.routes, route{rule: rule, handler: handler, priority: priority, seq: r.seq})
	sort.SliceStable(r.routes, func(i, j int) bool {
		return r.routes[i].priority > r.routes[j].priority
	})
}

// SetDefault sets the handler invoked when no route matches.
func (r *Router) SetDefault(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dflt = handler
}

// Route invokes every matching handler in priority order, returning
// the first error encountered. If no route matches, the default
// handler runs (when set).
func (r *Router) Route(ctx context.Context, event *Event) error {
	r.mu.RLock()
	routes := append([]route(nil), r.routes...)
	dflt := r.dflt
	r.mu.RUnlock()

	matched := false
	for _, rt := range routes {
		if rt.rule.matches(event) {
			matched = true
			if err := rt.handler.Handle(ctx, event); err != nil {
				return err
			}
		}
	}
	if !matched && dflt != nil {
		return dflt.Handle(ctx, event)
	}
	return nil
}

// CompositeHandler invokes a list of handlers in order, stopping (and
// returning) on the first error.
type CompositeHandler struct {
	Handlers []Handler
}

func (c CompositeHandler) Handle(ctx context.Context, event *Event) error {
	for _, h := range c.Handlers {
		if err := h.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// ConditionalHandler runs Then only when Predicate(event) is true.
type ConditionalHandler struct {
	Predicate func(e *Event) bool
	Then      Handler
}

func (c ConditionalHandler) Handle(ctx context.Context, event *Event) error {
	if !c.Predicate(event) {
		return nil
	}
	return c.Then.Handle(ctx, event)
}

// TransformingHandler rewrites the event via Transform before passing
// it to Next.
type TransformingHandler struct {
	Transform func(e *Event) *Event
	Next      Handler
}

func (t TransformingHandler) Handle(ctx context.Context, event *Event) error {
	return t.Next.Handle(ctx, t.Transform(event))
}
