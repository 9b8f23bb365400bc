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

package rules

import (
	"context"
	"fmt"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/transform"
)

// Copy writes the result of its single field chain.
type Copy struct {
	base
}

// NewCopy creates a copy rule, optionally bound to ft.
func NewCopy(ft *core.FieldTransformation) *Copy {
	r := &Copy{base: base{maxFields: 1}}
	if ft != nil {
		r.fields = []*core.FieldTransformation{ft}
	}
	return r
}

func (r *Copy) TypeID() string { return TypeCopy }

func (r *Copy) IsEmpty() bool { return r.fieldsEmpty() }

func (r *Copy) AddFieldTransformation(ft *core.FieldTransformation) error {
	return r.addField(r, ft)
}

func (r *Copy) RemoveFieldTransformation(ft *core.FieldTransformation) bool {
	return r.removeField(ft)
}

func (r *Copy) Apply(ctx context.Context, in core.TransformationResult) (*core.TransformationResult, error) {
	if r.IsEmpty() {
		return nil, nil
	}
	ctx, err := core.EnterRule(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TypeCopy, err)
	}
	ft := r.fields[0]
	res, err := ft.ApplyResult(ctx, ft.Seed(in))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TypeCopy, err)
	}
	return &res, nil
}

func (r *Copy) ApplyRow(ctx context.Context, table *core.Table, i int) (*core.TransformationResult, error) {
	return applyRow(ctx, r, table, i)
}

func (r *Copy) ApplyTable(ctx context.Context, table *core.Table) ([]*core.TransformationResult, error) {
	return applyTable(ctx, r, r.missingColumns(table), table)
}

func (r *Copy) ApplyAll(ctx context.Context) ([]*core.TransformationResult, error) {
	return applyAll(ctx, r, r.boundTable())
}

func (r *Copy) Children() []core.Rule { return r.fieldRules() }

func (r *Copy) Clone() core.Rule {
	return &Copy{base: r.base.clone()}
}

// CombineFields zips its field chains by row position. The ordered values
// become a collection carrier in OriginalValue and the rule detail is
// interpolated against them to produce Value.
type CombineFields struct {
	base
}

// NewCombineFields creates a combination rule with format detail.
func NewCombineFields(format string, fields ...*core.FieldTransformation) *CombineFields {
	return &CombineFields{base: base{detail: format, maxFields: Unlimited, fields: fields}}
}

func (r *CombineFields) TypeID() string { return TypeCombineFields }

func (r *CombineFields) IsEmpty() bool { return r.fieldsEmpty() }

func (r *CombineFields) AddFieldTransformation(ft *core.FieldTransformation) error {
	return r.addField(r, ft)
}

func (r *CombineFields) RemoveFieldTransformation(ft *core.FieldTransformation) bool {
	return r.removeField(ft)
}

func (r *CombineFields) Apply(ctx context.Context, in core.TransformationResult) (*core.TransformationResult, error) {
	if r.IsEmpty() {
		return nil, nil
	}
	ctx, err := core.EnterRule(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TypeCombineFields, err)
	}
	parts := make([]core.TransformationResult, 0, len(r.fields))
	for _, ft := range r.fields {
		if ft.IsEmpty() {
			continue
		}
		res, err := ft.ApplyResult(ctx, ft.Seed(in))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", TypeCombineFields, err)
		}
		parts = append(parts, res)
	}
	return r.combine(ctx, in, parts)
}

// combine folds per-field results of one row into the rule result. The first
// failed part fails the combination.
func (r *CombineFields) combine(ctx context.Context, in core.TransformationResult, parts []core.TransformationResult) (*core.TransformationResult, error) {
	values := make([]*string, len(parts))
	for i, p := range parts {
		values[i] = p.Value
	}
	encoded := core.EncodeCollection(values)
	seed := core.NewResult(&encoded).WithContext(in)
	for _, p := range parts {
		if p.WasFailure() {
			failed := seed.WithError(p.ErrorMessage)
			return &failed, nil
		}
	}
	out, err := transform.NewInterpolate(r.detail).Apply(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TypeCombineFields, err)
	}
	out = out.WithApplied(TypeCombineFields)
	return &out, nil
}

func (r *CombineFields) ApplyRow(ctx context.Context, table *core.Table, i int) (*core.TransformationResult, error) {
	return applyRow(ctx, r, table, i)
}

// ApplyTable resolves every field chain across the whole table first, then
// groups the results by row position.
func (r *CombineFields) ApplyTable(ctx context.Context, table *core.Table) ([]*core.TransformationResult, error) {
	if missing := r.missingColumns(table); len(missing) > 0 {
		return nil, &core.MissingSourceFieldsError{Fields: missing}
	}
	ctx, err := core.EnterRule(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TypeCombineFields, err)
	}
	var columns [][]core.TransformationResult
	for _, ft := range r.fields {
		if ft.IsEmpty() {
			continue
		}
		results, err := ft.ApplyTable(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", TypeCombineFields, err)
		}
		if len(results) != table.Len() {
			return nil, fmt.Errorf("%s: field %s produced %d results for %d rows: %w",
				TypeCombineFields, ft.Field.Name, len(results), table.Len(), core.ErrFieldCountMismatch)
		}
		columns = append(columns, results)
	}

	out := make([]*core.TransformationResult, table.Len())
	if len(columns) == 0 {
		return out, nil
	}
	for i := range out {
		parts := make([]core.TransformationResult, len(columns))
		for f := range columns {
			parts[f] = columns[f][i]
		}
		res, err := r.combine(ctx, core.NewRowResult(table, i), parts)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

func (r *CombineFields) ApplyAll(ctx context.Context) ([]*core.TransformationResult, error) {
	return applyAll(ctx, r, r.boundTable())
}

func (r *CombineFields) Children() []core.Rule { return r.fieldRules() }

func (r *CombineFields) Clone() core.Rule {
	return &CombineFields{base: r.base.clone()}
}
