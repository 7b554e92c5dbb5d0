package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// StoreOption configures a PolygonStore.
type StoreOption func(*PolygonStore)

// WithIDFunc overrides record id generation, mainly for deterministic tests.
func WithIDFunc(fn func() string) StoreOption {
	return func(s *PolygonStore) {
		s.newID = fn
	}
}

// PolygonStore owns the polygon records of one dashboard. It is not safe for
// concurrent use; the owner serializes access.
//
// Every read returns deep copies and every rule edit swaps in a new slice, so
// a caller holding an earlier result never observes later edits.
type PolygonStore struct {
	records []PolygonRecord
	newID   func() string
}

// NewPolygonStore creates an empty store.
func NewPolygonStore(opts ...StoreOption) *PolygonStore {
	s := &PolygonStore{
		newID: func() string { return "poly_" + uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends a record built from points with the default rule set.
func (s *PolygonStore) Add(points []Point, sourceID, field string, value float64) PolygonRecord {
	if field == "" {
		field = DefaultField
	}
	rec := PolygonRecord{
		ID:           s.newID(),
		Points:       slices.Clone(points),
		DataSourceID: sourceID,
		Field:        field,
		Rules:        DefaultRules(),
		Value:        value,
		CreatedAt:    Now(),
	}
	s.records = append(s.records, rec)
	return rec.clone()
}

// Len returns the number of records.
func (s *PolygonStore) Len() int { return len(s.records) }

// List returns every record in creation order.
func (s *PolygonStore) List() []PolygonRecord {
	out := make([]PolygonRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.clone()
	}
	return out
}

// Get returns the record with the given id.
func (s *PolygonStore) Get(id string) (PolygonRecord, bool) {
	i := s.index(id)
	if i < 0 {
		return PolygonRecord{}, false
	}
	return s.records[i].clone(), true
}

// Delete removes the record with the given id. Deleting an unknown id is a
// no-op and reports false.
func (s *PolygonStore) Delete(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.records = slices.Delete(s.records, i, i+1)
	return true
}

// ApplyValue broadcasts v to every record. A non-finite v leaves the store
// untouched and reports false.
func (s *PolygonStore) ApplyValue(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	for i := range s.records {
		s.records[i].Value = v
	}
	return true
}

// SetField rebinds a record to another measured quantity.
func (s *PolygonStore) SetField(id, field string) error {
	field = strings.TrimSpace(field)
	if field == "" {
		return ErrEmptyField
	}
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("set field %s: %w", id, ErrPolygonNotFound)
	}
	s.records[i].Field = field
	return nil
}

// Rules returns a copy of the record's rule list.
func (s *PolygonStore) Rules(id string) ([]ThresholdRule, error) {
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("rules %s: %w", id, ErrPolygonNotFound)
	}
	return slices.Clone(s.records[i].Rules), nil
}

// AddRule appends rule to the record's list and returns the new list.
func (s *PolygonStore) AddRule(id string, rule ThresholdRule) ([]ThresholdRule, error) {
	if !rule.Operator.Valid() {
		return nil, ErrInvalidOperator
	}
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("add rule %s: %w", id, ErrPolygonNotFound)
	}
	next := make([]ThresholdRule, 0, len(s.records[i].Rules)+1)
	next = append(next, s.records[i].Rules...)
	next = append(next, rule)
	s.records[i].Rules = next
	return slices.Clone(next), nil
}

// UpdateRule replaces the whole rule at index. Partial edits are composed by
// the caller before the replace.
func (s *PolygonStore) UpdateRule(id string, index int, rule ThresholdRule) ([]ThresholdRule, error) {
	if !rule.Operator.Valid() {
		return nil, ErrInvalidOperator
	}
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("update rule %s: %w", id, ErrPolygonNotFound)
	}
	rules := s.records[i].Rules
	if index < 0 || index >= len(rules) {
		return nil, fmt.Errorf("update rule %s[%d]: %w", id, index, ErrRuleIndexOutOfRange)
	}
	next := slices.Clone(rules)
	next[index] = rule
	s.records[i].Rules = next
	return slices.Clone(next), nil
}

// DeleteRule removes exactly the rule at index.
func (s *PolygonStore) DeleteRule(id string, index int) ([]ThresholdRule, error) {
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("delete rule %s: %w", id, ErrPolygonNotFound)
	}
	rules := s.records[i].Rules
	if index < 0 || index >= len(rules) {
		return nil, fmt.Errorf("delete rule %s[%d]: %w", id, index, ErrRuleIndexOutOfRange)
	}
	next := make([]ThresholdRule, 0, len(rules)-1)
	next = append(next, rules[:index]...)
	next = append(next, rules[index+1:]...)
	s.records[i].Rules = next
	return slices.Clone(next), nil
}

func (s *PolygonStore) index(id string) int {
	return slices.IndexFunc(s.records, func(r PolygonRecord) bool { return r.ID == id })
}
