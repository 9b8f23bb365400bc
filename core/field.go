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

package core

import (
	"context"
	"fmt"
)

// FieldDescriptor identifies an imported source column. Table is the source
// table the column was bound from, which lets a rule evaluate without an
// explicit table argument.
type FieldDescriptor struct {
	Name  string
	Type  ValueType
	Table *Table
}

// FieldTransformation binds a source column to an ordered chain of value
// transformations. The chain is exclusively owned.
type FieldTransformation struct {
	Field           FieldDescriptor
	Transformations []ValueTransformation
}

// NewFieldTransformation binds column name to the given chain.
func NewFieldTransformation(name string, steps ...ValueTransformation) *FieldTransformation {
	return &FieldTransformation{
		Field:           FieldDescriptor{Name: name, Type: TypeString},
		Transformations: steps,
	}
}

// IsEmpty reports whether no field name is populated.
func (ft *FieldTransformation) IsEmpty() bool {
	return ft == nil || ft.Field.Name == ""
}

// Add appends a step to the chain.
func (ft *FieldTransformation) Add(step ValueTransformation) {
	ft.Transformations = append(ft.Transformations, step)
}

// Remove deletes the step at index i.
func (ft *FieldTransformation) Remove(i int) error {
	if i < 0 || i >= len(ft.Transformations) {
		return fmt.Errorf("remove transformation %d: %w", i, ErrRowOutOfRange)
	}
	ft.Transformations = append(ft.Transformations[:i], ft.Transformations[i+1:]...)
	return nil
}

// Seed builds the initial result for this field from the context's row.
func (ft *FieldTransformation) Seed(ctx TransformationResult) TransformationResult {
	r := NewResult(ctx.Record.Get(ft.Field.Name))
	if ft.Field.Type != "" && ft.Field.Type != TypeString && r.OriginalValueType != TypeCollection {
		r.OriginalValueType = ft.Field.Type
		r.CurrentValueType = ft.Field.Type
	}
	return r.WithContext(ctx)
}

// ApplyResult runs the chain starting from in, recording each step.
func (ft *FieldTransformation) ApplyResult(ctx context.Context, in TransformationResult) (TransformationResult, error) {
	res := in
	for _, step := range ft.Transformations {
		next, err := step.Apply(ctx, res)
		if err != nil {
			return res, fmt.Errorf("field %s: %s: %w", ft.Field.Name, step.TypeID(), err)
		}
		res = next.WithApplied(step.TypeID())
	}
	return res, nil
}

// Apply seeds a result from row i of table and runs the chain.
func (ft *FieldTransformation) Apply(ctx context.Context, table *Table, i int) (TransformationResult, error) {
	return ft.ApplyResult(ctx, ft.Seed(NewRowResult(table, i)))
}

// ApplyTable runs the chain over every row of table in order.
func (ft *FieldTransformation) ApplyTable(ctx context.Context, table *Table) ([]TransformationResult, error) {
	if !table.HasColumn(ft.Field.Name) {
		return nil, &MissingSourceFieldsError{Fields: []string{ft.Field.Name}}
	}
	out := make([]TransformationResult, 0, table.Len())
	for i := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := ft.Apply(ctx, table, i)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Rules returns every rule held by steps of the chain.
func (ft *FieldTransformation) Rules() []Rule {
	var out []Rule
	for _, step := range ft.Transformations {
		if owner, ok := step.(RuleOwner); ok {
			out = append(out, owner.Rules()...)
		}
	}
	return out
}

// Clone deep-copies the binding and its chain. The bound table is shared.
func (ft *FieldTransformation) Clone() *FieldTransformation {
	if ft == nil {
		return nil
	}
	c := &FieldTransformation{Field: ft.Field}
	if ft.Transformations != nil {
		c.Transformations = make([]ValueTransformation, len(ft.Transformations))
		for i, step := range ft.Transformations {
			c.Transformations[i] = step.Clone()
		}
	}
	return c
}
