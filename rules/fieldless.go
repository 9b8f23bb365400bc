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
	"errors"

	"github.com/aaronlmathis/importmap/core"
)

// fieldless implements the field binding methods of rules that never read a
// source field.
type fieldless struct {
	base
}

func (f *fieldless) AddFieldTransformation(*core.FieldTransformation) error {
	return core.ErrTooManySourceFields
}

func (f *fieldless) RemoveFieldTransformation(*core.FieldTransformation) bool { return false }

func (f *fieldless) Children() []core.Rule { return nil }

func (f *fieldless) ApplyAll(context.Context) ([]*core.TransformationResult, error) {
	return nil, core.ErrUnboundRule
}

// Constant writes its detail for every row.
type Constant struct {
	fieldless
}

// NewConstant creates a constant rule.
func NewConstant(value string) *Constant {
	return &Constant{fieldless{base{detail: value}}}
}

func (r *Constant) TypeID() string { return TypeConstant }

func (r *Constant) IsEmpty() bool { return false }

func (r *Constant) Apply(_ context.Context, in core.TransformationResult) (*core.TransformationResult, error) {
	v := r.detail
	return valueResult(&v, in), nil
}

func (r *Constant) ApplyRow(ctx context.Context, table *core.Table, i int) (*core.TransformationResult, error) {
	return applyRow(ctx, r, table, i)
}

func (r *Constant) ApplyTable(ctx context.Context, table *core.Table) ([]*core.TransformationResult, error) {
	return applyTable(ctx, r, nil, table)
}

func (r *Constant) Clone() core.Rule {
	c := *r
	return &c
}

// FieldAccess reads the column named by its detail from the context row. An
// empty detail reads the context's current value.
type FieldAccess struct {
	fieldless
}

// NewFieldAccess creates a field access rule for column.
func NewFieldAccess(column string) *FieldAccess {
	return &FieldAccess{fieldless{base{detail: column}}}
}

func (r *FieldAccess) TypeID() string { return TypeFieldAccess }

func (r *FieldAccess) IsEmpty() bool { return false }

func (r *FieldAccess) Apply(_ context.Context, in core.TransformationResult) (*core.TransformationResult, error) {
	if r.detail == "" {
		res := core.NewResult(in.Value).WithContext(in)
		res.CurrentValueType = in.CurrentValueType
		return &res, nil
	}
	return valueResult(in.Record.Get(r.detail), in), nil
}

func (r *FieldAccess) ApplyRow(ctx context.Context, table *core.Table, i int) (*core.TransformationResult, error) {
	return applyRow(ctx, r, table, i)
}

func (r *FieldAccess) ApplyTable(ctx context.Context, table *core.Table) ([]*core.TransformationResult, error) {
	var missing []string
	if r.detail != "" && !table.HasColumn(r.detail) {
		missing = []string{r.detail}
	}
	return applyTable(ctx, r, missing, table)
}

func (r *FieldAccess) Clone() core.Rule {
	c := *r
	return &c
}

// Ignore never produces output.
type Ignore struct {
	fieldless
}

// NewIgnore creates an ignore rule.
func NewIgnore() *Ignore {
	return &Ignore{}
}

func (r *Ignore) TypeID() string { return TypeIgnore }

func (r *Ignore) IsEmpty() bool { return true }

func (r *Ignore) Apply(context.Context, core.TransformationResult) (*core.TransformationResult, error) {
	return nil, nil
}

func (r *Ignore) ApplyRow(ctx context.Context, table *core.Table, i int) (*core.TransformationResult, error) {
	return applyRow(ctx, r, table, i)
}

func (r *Ignore) ApplyTable(ctx context.Context, table *core.Table) ([]*core.TransformationResult, error) {
	return make([]*core.TransformationResult, table.Len()), nil
}

func (r *Ignore) Clone() core.Rule {
	return &Ignore{}
}

// CustomFieldless resolves its value through a caller supplied function,
// such as a lookup against another system. The default function returns the
// context's current value.
type CustomFieldless struct {
	fieldless
	Func core.CustomFunc
}

// NewCustomFieldless creates a custom rule around fn.
func NewCustomFieldless(fn core.CustomFunc) *CustomFieldless {
	if fn == nil {
		fn = identity
	}
	return &CustomFieldless{Func: fn}
}

func identity(_ context.Context, in core.TransformationResult) (*string, error) {
	return in.Value, nil
}

func (r *CustomFieldless) TypeID() string { return TypeCustomFieldless }

func (r *CustomFieldless) IsEmpty() bool { return false }

// SetFunc replaces the resolver.
func (r *CustomFieldless) SetFunc(fn core.CustomFunc) {
	r.Func = fn
	r.Touch()
}

// Apply reports a resolver error as a failed result. Context cancellation is
// returned as an error.
func (r *CustomFieldless) Apply(ctx context.Context, in core.TransformationResult) (*core.TransformationResult, error) {
	fn := r.Func
	if fn == nil {
		fn = identity
	}
	v, err := fn.Resolve(ctx, in)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		failed := valueResult(in.Value, in).WithError(err.Error())
		return &failed, nil
	}
	return valueResult(v, in), nil
}

func (r *CustomFieldless) ApplyRow(ctx context.Context, table *core.Table, i int) (*core.TransformationResult, error) {
	return applyRow(ctx, r, table, i)
}

func (r *CustomFieldless) ApplyTable(ctx context.Context, table *core.Table) ([]*core.TransformationResult, error) {
	return applyTable(ctx, r, nil, table)
}

func (r *CustomFieldless) Clone() core.Rule {
	c := *r
	return &c
}
