package storage

import (
	"encoding/json"
	"fmt"
)

// TypedStore wraps Store with JSON marshaling for one kind of value.
type TypedStore[T any] struct {
	store *Store
	kind  string
}

// NewTypedStore creates a typed view of store for kind.
func NewTypedStore[T any](store *Store, kind string) *TypedStore[T] {
	return &TypedStore[T]{
		store: store,
		kind:  kind,
	}
}

// Kind returns the kind this store handles.
func (s *TypedStore[T]) Kind() string {
	return s.kind
}

// Get retrieves and unmarshals the value for an ID. ok is false if there is
// no value.
func (s *TypedStore[T]) Get(id string) (value T, ok bool, err error) {
	payload, err := s.store.Get(s.kind, id)
	if err != nil || payload == nil {
		return value, false, err
	}

	if err := json.Unmarshal(payload, &value); err != nil {
		return value, false, fmt.Errorf("failed to unmarshal %s %s: %w", s.kind, id, err)
	}
	return value, true, nil
}

// Set marshals and stores the value for an ID.
func (s *TypedStore[T]) Set(id string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", s.kind, id, err)
	}

	return s.store.Set(s.kind, id, payload)
}

// Delete removes the values for the given IDs.
func (s *TypedStore[T]) Delete(ids ...string) error {
	return s.store.Delete(s.kind, ids...)
}

// Clear removes every value of this kind.
func (s *TypedStore[T]) Clear() error {
	return s.store.Clear(s.kind)
}

// GetAll retrieves all values of this kind.
func (s *TypedStore[T]) GetAll() (map[string]T, error) {
	payloads, err := s.store.GetAll(s.kind)
	if err != nil {
		return nil, err
	}

	values := make(map[string]T, len(payloads))
	for id, payload := range payloads {
		var value T
		if err := json.Unmarshal(payload, &value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s %s: %w", s.kind, id, err)
		}
		values[id] = value
	}

	return values, nil
}
