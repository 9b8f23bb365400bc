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
)

// Package rules provides the mapping rules of the ImportMap engine. A rule
// resolves zero or more source fields, each through its own transformation
// chain, into the single value written to a destination field.

// Registry identifiers.
const (
	TypeCopy            = "copy"
	TypeCombineFields   = "combineFields"
	TypeConstant        = "constant"
	TypeFieldAccess     = "fieldAccess"
	TypeIgnore          = "ignore"
	TypeCustomFieldless = "customFieldless"
	TypeConditional     = "conditional"
)

// Unlimited is the MaxSourceFields value of rules without a field limit.
const Unlimited = -1

// base carries the state shared by every rule. Methods that need to call
// back into the concrete rule take it as an argument.
type base struct {
	core.Revision
	detail    string
	fields    []*core.FieldTransformation
	maxFields int
}

func (b *base) Detail() string { return b.detail }

func (b *base) SetDetail(detail string) {
	b.detail = detail
	b.Touch()
}

func (b *base) MaxSourceFields() int { return b.maxFields }

func (b *base) FieldTransformations() []*core.FieldTransformation {
	return append([]*core.FieldTransformation(nil), b.fields...)
}

// fieldsEmpty reports whether no bound field has a populated name.
func (b *base) fieldsEmpty() bool {
	for _, ft := range b.fields {
		if !ft.IsEmpty() {
			return false
		}
	}
	return true
}

func (b *base) addField(owner core.Rule, ft *core.FieldTransformation) error {
	if ft == nil {
		return fmt.Errorf("%s: nil field transformation", owner.TypeID())
	}
	if b.maxFields >= 0 && len(b.fields) >= b.maxFields {
		return fmt.Errorf("%s: %w (max %d)", owner.TypeID(), core.ErrTooManySourceFields, b.maxFields)
	}
	for _, r := range ft.Rules() {
		if err := core.CheckOperand(owner, r); err != nil {
			return fmt.Errorf("%s: field %s: %w", owner.TypeID(), ft.Field.Name, err)
		}
	}
	b.fields = append(b.fields, ft)
	b.Touch()
	return nil
}

func (b *base) removeField(ft *core.FieldTransformation) bool {
	for i, f := range b.fields {
		if f == ft {
			b.fields = append(b.fields[:i], b.fields[i+1:]...)
			b.Touch()
			return true
		}
	}
	return false
}

func (b *base) fieldRules() []core.Rule {
	var out []core.Rule
	for _, ft := range b.fields {
		out = append(out, ft.Rules()...)
	}
	return out
}

func (b base) clone() base {
	c := b
	c.fields = make([]*core.FieldTransformation, len(b.fields))
	for i, ft := range b.fields {
		c.fields[i] = ft.Clone()
	}
	return c
}

// boundTable returns the first table bound in a field descriptor.
func (b *base) boundTable() *core.Table {
	for _, ft := range b.fields {
		if ft != nil && ft.Field.Table != nil {
			return ft.Field.Table
		}
	}
	return nil
}

// missingColumns lists bound field names that table does not declare.
func (b *base) missingColumns(table *core.Table) []string {
	var missing []string
	for _, ft := range b.fields {
		if ft.IsEmpty() {
			continue
		}
		if !table.HasColumn(ft.Field.Name) {
			missing = append(missing, ft.Field.Name)
		}
	}
	return missing
}

// applyRow evaluates rule for row i of table.
func applyRow(ctx context.Context, rule core.Rule, table *core.Table, i int) (*core.TransformationResult, error) {
	if i < 0 || i >= table.Len() {
		return nil, fmt.Errorf("%s: row %d: %w", rule.TypeID(), i, core.ErrRowOutOfRange)
	}
	return rule.Apply(ctx, core.NewRowResult(table, i))
}

// applyTable evaluates rule for every row of table in order after checking
// that every referenced column exists.
func applyTable(ctx context.Context, rule core.Rule, missing []string, table *core.Table) ([]*core.TransformationResult, error) {
	if len(missing) > 0 {
		return nil, &core.MissingSourceFieldsError{Fields: missing}
	}
	out := make([]*core.TransformationResult, table.Len())
	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := rule.Apply(ctx, core.NewRowResult(table, i))
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", rule.TypeID(), i, err)
		}
		out[i] = res
	}
	return out, nil
}

// applyAll evaluates rule over the table bound in its field descriptors.
func applyAll(ctx context.Context, rule core.Rule, table *core.Table) ([]*core.TransformationResult, error) {
	if table == nil {
		return nil, fmt.Errorf("%s: %w", rule.TypeID(), core.ErrUnboundRule)
	}
	return rule.ApplyTable(ctx, table)
}

// Bind sets table as the source of every field transformation reachable from
// rule, including operands and branches.
func Bind(rule core.Rule, table *core.Table) {
	visited := make(map[core.Rule]struct{})
	var walk func(r core.Rule)
	walk = func(r core.Rule) {
		if r == nil {
			return
		}
		if _, ok := visited[r]; ok {
			return
		}
		visited[r] = struct{}{}
		for _, ft := range r.FieldTransformations() {
			ft.Field.Table = table
		}
		for _, child := range r.Children() {
			walk(child)
		}
	}
	walk(rule)
}

// valueResult builds a result for a value produced by a fieldless rule.
func valueResult(v *string, ctx core.TransformationResult) *core.TransformationResult {
	r := core.NewResult(v).WithContext(ctx)
	return &r
}
