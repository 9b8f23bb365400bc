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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct{ name string }

// TestRegistry_CreateInstance tests construction through registered factories
func TestRegistry_CreateInstance(t *testing.T) {
	r := New[*widget]("widget")
	require.NoError(t, r.Register("a", func() *widget { return &widget{name: "a"} }))

	first, err := r.CreateInstance("a")
	require.NoError(t, err)
	second, err := r.CreateInstance("a")
	require.NoError(t, err)

	assert.Equal(t, "a", first.name)
	assert.NotSame(t, first, second)
	assert.True(t, r.IsRegistered("a"))
	assert.Equal(t, "widget", r.Kind())
}

// TestRegistry_Unknown tests the not-registered error
func TestRegistry_Unknown(t *testing.T) {
	r := New[*widget]("widget")
	w, err := r.CreateInstance("missing")
	assert.Nil(t, w)
	assert.True(t, errors.Is(err, ErrTypeNotRegistered))

	var nre *NotRegisteredError
	require.ErrorAs(t, err, &nre)
	assert.Equal(t, "missing", nre.TypeID)
	assert.Contains(t, err.Error(), `widget registry: "missing"`)
}

// TestRegistry_RegisterErrors tests invalid registrations
func TestRegistry_RegisterErrors(t *testing.T) {
	r := New[*widget]("widget")
	f := func() *widget { return &widget{} }

	assert.Error(t, r.Register("", f))
	assert.Error(t, r.Register("x", nil))
	require.NoError(t, r.Register("x", f))
	assert.ErrorIs(t, r.Register("x", f), ErrDuplicateType)
	assert.Panics(t, func() { r.MustRegister("x", f) })
}

// TestRegistry_Registered tests sorted listing
func TestRegistry_Registered(t *testing.T) {
	r := New[int]("number")
	r.MustRegister("two", func() int { return 2 })
	r.MustRegister("one", func() int { return 1 })
	assert.Equal(t, []string{"one", "two"}, r.Registered())
}

// TestRegistry_ConcurrentReads tests concurrent lookups after population
func TestRegistry_ConcurrentReads(t *testing.T) {
	r := New[int]("number")
	r.MustRegister("one", func() int { return 1 })

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := r.CreateInstance("one")
			assert.NoError(t, err)
			assert.Equal(t, 1, v)
		}()
	}
	wg.Wait()
}
