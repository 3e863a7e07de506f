package events

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	aerrors "github.com/ai-ops-core/core/pkg/shared/errors"
)

// DefaultRingCapacity is the default bound on the number of events
// the in-memory Store retains (spec.md §4.B).
const DefaultRingCapacity = 10000

// Filter narrows a Query by any combination of fields; nil/zero fields
// are unconstrained.
type Filter struct {
	EventType     string
	Source        string
	CorrelationID *uuid.UUID
	From, To      *time.Time
}

func (f *Filter) matches(e *Event) bool {
	if f == nil {
		return true
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.CorrelationID != nil && (e.CorrelationID == nil || *e.CorrelationID != *f.CorrelationID) {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// Stats summarizes the Store's current contents.
type Stats struct {
	TotalEvents  int            `json:"total_events"`
	ByType       map[string]int `json:"by_type"`
	BySource     map[string]int `json:"by_source"`
	OldestTime   *time.Time     `json:"oldest_time,omitempty"`
	NewestTime   *time.Time     `json:"newest_time,omitempty"`
}

// Store is a bounded, oldest-first FIFO ring of events, indexed by
// type, source, correlation id, and causation id (spec.md §4.B).
// Every stored event appears in exactly the indices applicable to it;
// eviction removes it from all of them (Invariant 5).
type Store struct {
	mu       sync.RWMutex
	capacity int

	sequence []*Event // oldest-first

	byType        map[string][]*Event
	bySource      map[string][]*Event
	byCorrelation map[uuid.UUID][]*Event
	byCausation   map[uuid.UUID][]*Event
	byID          map[uuid.UUID]*Event
}

// NewStore constructs a Store with the given ring capacity; capacity
// <= 0 uses DefaultRingCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Store{
		capacity:      capacity,
		byType:        map[string][]*Event{},
		bySource:      map[string][]*Event{},
		byCorrelation: map[uuid.UUID][]*Event{},
		byCausation:   map[uuid.UUID][]*Event{},
		byID:          map[uuid.UUID]*Event{},
	}
}

// Store appends event to the ring, evicting the oldest event if the
// ring is at capacity.
func (s *Store) Store(event *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence = append(s.sequence, event)
	s.index(event)

	if len(s.sequence) > s.capacity {
		evicted := s.sequence[0]
		s.sequence = s.sequence[1:]
		s.unindex(evicted)
	}
}

func (s *Store) index(e *Event) {
	s.byID[e.ID] = e
	s.byType[e.EventType] = append(s.byType[e.EventType], e)
	s.bySource[e.Source] = append(s.bySource[e.Source], e)
	if e.CorrelationID != nil {
		s.byCorrelation[*e.CorrelationID] = append(s.byCorrelation[*e.CorrelationID], e)
	}
	if e.CausationID != nil {
		s.byCausation[*e.CausationID] = append(s.byCausation[*e.CausationID], e)
	}
}

func (s *Store) unindex(e *Event) {
	delete(s.byID, e.ID)
	s.byType[e.EventType] = removeEvent(s.byType[e.EventType], e.ID)
	s.bySource[e.Source] = removeEvent(s.bySource[e.Source], e.ID)
	if e.CorrelationID != nil {
		s.byCorrelation[*e.CorrelationID] = removeEvent(s.byCorrelation[*e.CorrelationID], e.ID)
	}
	if e.CausationID != nil {
		s.byCausation[*e.CausationID] = removeEvent(s.byCausation[*e.CausationID], e.ID)
	}
}

func removeEvent(list []*Event, id uuid.UUID) []*Event {
	out := list[:0:0]
	for _, e := range list {
		if e.ID != id {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Get returns the event with the given id, or an error if absent.
func (s *Store) Get(id uuid.UUID) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, aerrors.WithKind(aerrors.NotFound("event_store", id.String()), aerrors.KindNotFound)
	}
	return e, nil
}

// Query returns up to limit events matching filter (a nil filter
// matches every event), most-recent-first.
func (s *Store) Query(filter *Filter, limit int) []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Event
	for i := len(s.sequence) - 1; i >= 0; i-- {
		e := s.sequence[i]
		if filter.matches(e) {
			matched = append(matched, e)
			if limit > 0 && len(matched) >= limit {
				break
			}
		}
	}
	return matched
}

// GetByType returns all stored events of the given type, oldest-first.
func (s *Store) GetByType(eventType string) []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Event(nil), s.byType[eventType]...)
}

// GetBySource returns all stored events from the given source,
// oldest-first.
func (s *Store) GetBySource(source string) []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Event(nil), s.bySource[source]...)
}

// GetCorrelated returns all stored events sharing correlationID.
func (s *Store) GetCorrelated(correlationID uuid.UUID) []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Event(nil), s.byCorrelation[correlationID]...)
}

// GetCausedBy returns all stored events whose causation id is
// causationID.
func (s *Store) GetCausedBy(causationID uuid.UUID) []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Event(nil), s.byCausation[causationID]...)
}

// GetInRange returns all stored events with from <= timestamp <= to,
// oldest-first.
func (s *Store) GetInRange(from, to time.Time) []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Event
	for _, e := range s.sequence {
		if !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Stats summarizes the store's current contents.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalEvents: len(s.sequence),
		ByType:      map[string]int{},
		BySource:    map[string]int{},
	}
	for t, list := range s.byType {
		stats.ByType[t] = len(list)
	}
	for src, list := range s.bySource {
		stats.BySource[src] = len(list)
	}
	if len(s.sequence) > 0 {
		oldest := s.sequence[0].Timestamp
		newest := s.sequence[len(s.sequence)-1].Timestamp
		stats.OldestTime = &oldest
		stats.NewestTime = &newest
	}
	return stats
}

// Clear empties the store and all its indices.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence = nil
	s.byType = map[string][]*Event{}
	s.bySource = map[string][]*Event{}
	s.byCorrelation = map[uuid.UUID][]*Event{}
	s.byCausation = map[uuid.UUID][]*Event{}
	s.byID = map[uuid.UUID]*Event{}
}

// ExportJSON serializes the current sequence (oldest-first) to JSON.
func (s *Store) ExportJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := json.Marshal(s.sequence)
	if err != nil {
		return nil, aerrors.WithKind(aerrors.FailedTo("export event store", err), aerrors.KindSerialization)
	}
	return data, nil
}

// ImportJSON replaces the store's contents with the events encoded in
// data, re-indexing each and respecting the ring capacity (most recent
// `capacity` events are kept if data exceeds it).
func (s *Store) ImportJSON(data []byte) error {
	var imported []*Event
	if err := json.Unmarshal(data, &imported); err != nil {
		return aerrors.WithKind(aerrors.FailedTo("import event store", err), aerrors.KindSerialization)
	}

	s.Clear()
	if len(imported) > s.capacity {
		imported = imported[len(imported)-s.capacity:]
	}
	for _, e := range imported {
		s.Store(e)
	}
	return nil
}
