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
	"fmt"

	"github.com/aaronlmathis/importmap/core"
)

// Conditional evaluates a comparison against the incoming result and applies
// the true or false rule to the same context.
type Conditional struct {
	base
	Comparison core.Comparison
	TrueRule   core.Rule
	FalseRule  core.Rule
}

// NewConditional creates a conditional step.
func NewConditional(cmp core.Comparison, whenTrue, whenFalse core.Rule) *Conditional {
	return &Conditional{Comparison: cmp, TrueRule: whenTrue, FalseRule: whenFalse}
}

func (t *Conditional) TypeID() string { return TypeConditional }

func (t *Conditional) OutputType() core.ValueType { return core.TypeAny }

func (t *Conditional) IsEmpty() bool {
	return t.Comparison == nil && t.TrueRule == nil && t.FalseRule == nil
}

// SetComparison replaces the comparison.
func (t *Conditional) SetComparison(cmp core.Comparison) error {
	t.Comparison = cmp
	t.Touch()
	return nil
}

// SetBranches replaces both branch rules.
func (t *Conditional) SetBranches(whenTrue, whenFalse core.Rule) error {
	t.TrueRule, t.FalseRule = whenTrue, whenFalse
	t.Touch()
	return nil
}

// Validate reports a missing member or an invalid comparison.
func (t *Conditional) Validate() error {
	if t.Comparison == nil || t.TrueRule == nil || t.FalseRule == nil {
		return core.ErrIncompleteConditional
	}
	return t.Comparison.Validate()
}

// Rules returns the comparison operands and both branches.
func (t *Conditional) Rules() []core.Rule {
	out := core.ComparisonRules(t.Comparison)
	for _, r := range []core.Rule{t.TrueRule, t.FalseRule} {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (t *Conditional) Apply(ctx context.Context, in core.TransformationResult) (core.TransformationResult, error) {
	if t.Comparison == nil || t.TrueRule == nil || t.FalseRule == nil {
		return in, core.ErrIncompleteConditional
	}
	if in.WasFailure() {
		return in, nil
	}
	matched, err := t.Comparison.Evaluate(ctx, in)
	if err != nil {
		return in, fmt.Errorf("conditional %s: %w", t.Comparison.TypeID(), err)
	}
	branch := t.FalseRule
	if matched {
		branch = t.TrueRule
	}
	res, err := branch.Apply(ctx, in)
	if err != nil {
		return in, fmt.Errorf("conditional branch %s: %w", branch.TypeID(), err)
	}
	if res == nil {
		return in.WithValue(nil, core.TypeString), nil
	}
	out := in.WithValue(res.Value, res.CurrentValueType)
	if res.WasFailure() {
		out = out.WithError(res.ErrorMessage)
	}
	return out, nil
}

func (t *Conditional) Clone() core.ValueTransformation {
	c := *t
	if t.Comparison != nil {
		c.Comparison = t.Comparison.Clone()
	}
	if t.TrueRule != nil {
		c.TrueRule = t.TrueRule.Clone()
	}
	if t.FalseRule != nil {
		c.FalseRule = t.FalseRule.Clone()
	}
	return &c
}
