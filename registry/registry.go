//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of ImportMap.
//
// ImportMap is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ImportMap is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with ImportMap. If not, see https://www.gnu.org/licenses/.

package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Package registry maps stable TypeId strings to factories so that rules,
// transformations and comparisons can be constructed without reflection.
//
// A Registry is safe for concurrent use. The catalog package populates the
// process-wide instances once at startup; after that they are read-only.

// ErrTypeNotRegistered is wrapped by NotRegisteredError.
var ErrTypeNotRegistered = errors.New("type not registered")

// ErrDuplicateType is returned when a TypeId is registered twice.
var ErrDuplicateType = errors.New("type already registered")

// NotRegisteredError reports an unknown TypeId.
type NotRegisteredError struct {
	Kind   string
	TypeID string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("%s registry: %q: %v", e.Kind, e.TypeID, ErrTypeNotRegistered)
}

func (e *NotRegisteredError) Unwrap() error {
	return ErrTypeNotRegistered
}

// Factory constructs a fresh instance with default configuration.
type Factory[T any] func() T

// Registry is a TypeId to factory map for one polymorphic family.
type Registry[T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// New creates an empty registry. kind names the family in error messages.
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		factories: make(map[string]Factory[T]),
	}
}

// Register adds a factory under typeID.
func (r *Registry[T]) Register(typeID string, factory Factory[T]) error {
	if typeID == "" {
		return fmt.Errorf("%s registry: empty type id", r.kind)
	}
	if factory == nil {
		return fmt.Errorf("%s registry: %q: nil factory", r.kind, typeID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typeID]; exists {
		return fmt.Errorf("%s registry: %q: %w", r.kind, typeID, ErrDuplicateType)
	}
	r.factories[typeID] = factory
	return nil
}

// MustRegister is Register that panics on error. It is meant for static
// population at init time.
func (r *Registry[T]) MustRegister(typeID string, factory Factory[T]) {
	if err := r.Register(typeID, factory); err != nil {
		panic(err)
	}
}

// CreateInstance constructs a new instance for typeID.
func (r *Registry[T]) CreateInstance(typeID string) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[typeID]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, &NotRegisteredError{Kind: r.kind, TypeID: typeID}
	}
	return factory(), nil
}

// IsRegistered reports whether typeID has a factory.
func (r *Registry[T]) IsRegistered(typeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typeID]
	return ok
}

// Registered returns every registered TypeId in sorted order.
func (r *Registry[T]) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Kind returns the family name.
func (r *Registry[T]) Kind() string { return r.kind }
