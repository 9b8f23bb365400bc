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

package transform

import (
	"context"

	"github.com/aaronlmathis/importmap/core"
)

// ValueMapping replaces FromValue with ToValue for the named imported field.
type ValueMapping struct {
	ImportedFieldName string `yaml:"importedFieldName,omitempty"`
	FromValue         string `yaml:"from"`
	ToValue           string `yaml:"to"`
}

// Map translates values through a lookup list. The first matching entry wins
// and an unmatched value passes through unchanged.
type Map struct {
	base
	// FieldName restricts the lookup to entries for one imported field.
	FieldName     string
	ValueMappings []ValueMapping
}

// NewMap creates a lookup step.
func NewMap(fieldName string, mappings ...ValueMapping) *Map {
	return &Map{FieldName: fieldName, ValueMappings: mappings}
}

func (t *Map) TypeID() string { return TypeMap }

func (t *Map) OutputType() core.ValueType { return core.TypeString }

func (t *Map) IsEmpty() bool { return len(t.ValueMappings) == 0 }

// AddMapping appends an entry.
func (t *Map) AddMapping(m ValueMapping) {
	t.ValueMappings = append(t.ValueMappings, m)
	t.Touch()
}

func (t *Map) Apply(_ context.Context, in core.TransformationResult) (core.TransformationResult, error) {
	if in.WasFailure() || t.IsEmpty() {
		return in, nil
	}
	if in.IsCollection() {
		return in.WithError(core.ErrMsgCollection), nil
	}
	current := in.StringValue()
	for _, m := range t.ValueMappings {
		if t.FieldName != "" && m.ImportedFieldName != t.FieldName {
			continue
		}
		if m.FromValue == current {
			to := m.ToValue
			return in.WithValue(&to, core.TypeString), nil
		}
	}
	return in, nil
}

func (t *Map) Clone() core.ValueTransformation {
	c := *t
	c.ValueMappings = append([]ValueMapping(nil), t.ValueMappings...)
	return &c
}
