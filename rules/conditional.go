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

// Conditional evaluates Comparison and applies TrueRule or FalseRule. When a
// source field is bound, its chain result is the context both the comparison
// and the chosen branch see.
type Conditional struct {
	base
	comparison core.Comparison
	trueRule   core.Rule
	falseRule  core.Rule
}

// NewConditional creates a conditional rule. The members can be supplied
// later with SetComparison and SetBranches.
func NewConditional() *Conditional {
	return &Conditional{base: base{maxFields: 1}}
}

func (r *Conditional) TypeID() string { return TypeConditional }

// Comparison returns the configured comparison.
func (r *Conditional) Comparison() core.Comparison { return r.comparison }

// Branches returns the true and false rules.
func (r *Conditional) Branches() (whenTrue, whenFalse core.Rule) { return r.trueRule, r.falseRule }

// SetComparison replaces the comparison. An operand that already contains
// this rule is rejected.
func (r *Conditional) SetComparison(cmp core.Comparison) error {
	for _, op := range core.ComparisonRules(cmp) {
		if err := core.CheckOperand(r, op); err != nil {
			return fmt.Errorf("%s: comparison %s: %w", TypeConditional, cmp.TypeID(), err)
		}
	}
	r.comparison = cmp
	r.Touch()
	return nil
}

// SetBranches replaces both branch rules.
func (r *Conditional) SetBranches(whenTrue, whenFalse core.Rule) error {
	for _, b := range []core.Rule{whenTrue, whenFalse} {
		if err := core.CheckOperand(r, b); err != nil {
			return fmt.Errorf("%s: branch: %w", TypeConditional, err)
		}
	}
	r.trueRule, r.falseRule = whenTrue, whenFalse
	r.Touch()
	return nil
}

// Validate reports a missing member or an invalid comparison.
func (r *Conditional) Validate() error {
	if r.comparison == nil || r.trueRule == nil || r.falseRule == nil {
		return fmt.Errorf("%s: %w", TypeConditional, core.ErrIncompleteConditional)
	}
	return r.comparison.Validate()
}

func (r *Conditional) IsEmpty() bool {
	return r.comparison == nil && r.trueRule == nil && r.falseRule == nil
}

func (r *Conditional) AddFieldTransformation(ft *core.FieldTransformation) error {
	return r.addField(r, ft)
}

func (r *Conditional) RemoveFieldTransformation(ft *core.FieldTransformation) bool {
	return r.removeField(ft)
}

func (r *Conditional) Apply(ctx context.Context, in core.TransformationResult) (*core.TransformationResult, error) {
	if r.comparison == nil || r.trueRule == nil || r.falseRule == nil {
		return nil, fmt.Errorf("%s: %w", TypeConditional, core.ErrIncompleteConditional)
	}
	ctx, err := core.EnterRule(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TypeConditional, err)
	}
	subject := in
	if !r.fieldsEmpty() {
		ft := r.fields[0]
		res, err := ft.ApplyResult(ctx, ft.Seed(in))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", TypeConditional, err)
		}
		if res.WasFailure() {
			return &res, nil
		}
		subject = res
	}
	matched, err := r.comparison.Evaluate(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TypeConditional, err)
	}
	branch := r.falseRule
	if matched {
		branch = r.trueRule
	}
	res, err := branch.Apply(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("%s: %s branch: %w", TypeConditional, branch.TypeID(), err)
	}
	return res, nil
}

func (r *Conditional) ApplyRow(ctx context.Context, table *core.Table, i int) (*core.TransformationResult, error) {
	return applyRow(ctx, r, table, i)
}

func (r *Conditional) ApplyTable(ctx context.Context, table *core.Table) ([]*core.TransformationResult, error) {
	missing := r.missingColumns(table)
	for _, child := range r.Children() {
		for _, ft := range child.FieldTransformations() {
			if !ft.IsEmpty() && !table.HasColumn(ft.Field.Name) {
				missing = append(missing, ft.Field.Name)
			}
		}
	}
	return applyTable(ctx, r, missing, table)
}

func (r *Conditional) ApplyAll(ctx context.Context) ([]*core.TransformationResult, error) {
	table := r.boundTable()
	if table == nil {
		for _, child := range r.Children() {
			for _, ft := range child.FieldTransformations() {
				if ft.Field.Table != nil {
					table = ft.Field.Table
					break
				}
			}
			if table != nil {
				break
			}
		}
	}
	return applyAll(ctx, r, table)
}

// Children returns comparison operands, both branches and rules held by the
// bound field chain.
func (r *Conditional) Children() []core.Rule {
	out := core.ComparisonRules(r.comparison)
	for _, b := range []core.Rule{r.trueRule, r.falseRule} {
		if b != nil {
			out = append(out, b)
		}
	}
	return append(out, r.fieldRules()...)
}

func (r *Conditional) Clone() core.Rule {
	c := &Conditional{base: r.base.clone()}
	if r.comparison != nil {
		c.comparison = r.comparison.Clone()
	}
	if r.trueRule != nil {
		c.trueRule = r.trueRule.Clone()
	}
	if r.falseRule != nil {
		c.falseRule = r.falseRule.Clone()
	}
	return c
}
