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

package filter

import (
	"context"

	"github.com/aaronlmathis/importmap/core"
)

// And is true when every condition is true. Evaluation stops at the first
// false condition.
type And struct {
	Conditions []core.Comparison
}

// NewAnd creates a conjunction.
func NewAnd(conditions ...core.Comparison) *And {
	return &And{Conditions: conditions}
}

func (c *And) TypeID() string { return TypeAnd }

// SetConditions replaces the conditions.
func (c *And) SetConditions(conditions []core.Comparison) { c.Conditions = conditions }

func (c *And) Operands() []core.Rule { return conditionRules(c.Conditions) }

func (c *And) Validate() error { return validateConditions(TypeAnd, c.Conditions) }

func (c *And) Evaluate(ctx context.Context, in core.TransformationResult) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	for _, cond := range c.Conditions {
		ok, err := cond.Evaluate(ctx, in)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c *And) Clone() core.Comparison {
	return &And{Conditions: cloneConditions(c.Conditions)}
}

// Or is true when any condition is true. Evaluation stops at the first true
// condition.
type Or struct {
	Conditions []core.Comparison
}

// NewOr creates a disjunction.
func NewOr(conditions ...core.Comparison) *Or {
	return &Or{Conditions: conditions}
}

func (c *Or) TypeID() string { return TypeOr }

// SetConditions replaces the conditions.
func (c *Or) SetConditions(conditions []core.Comparison) { c.Conditions = conditions }

func (c *Or) Operands() []core.Rule { return conditionRules(c.Conditions) }

func (c *Or) Validate() error { return validateConditions(TypeOr, c.Conditions) }

func (c *Or) Evaluate(ctx context.Context, in core.TransformationResult) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	for _, cond := range c.Conditions {
		ok, err := cond.Evaluate(ctx, in)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (c *Or) Clone() core.Comparison {
	return &Or{Conditions: cloneConditions(c.Conditions)}
}

// Not negates a single condition.
type Not struct {
	Condition core.Comparison
}

// NewNot creates a negation.
func NewNot(condition core.Comparison) *Not {
	return &Not{Condition: condition}
}

func (c *Not) TypeID() string { return TypeNot }

// SetConditions takes the single negated condition.
func (c *Not) SetConditions(conditions []core.Comparison) {
	c.Condition = nil
	if len(conditions) > 0 {
		c.Condition = conditions[0]
	}
}

func (c *Not) Operands() []core.Rule { return core.ComparisonRules(c.Condition) }

func (c *Not) Validate() error {
	if c.Condition == nil {
		return &MissingOperandError{Comparison: TypeNot, Operand: OperandCond}
	}
	return c.Condition.Validate()
}

func (c *Not) Evaluate(ctx context.Context, in core.TransformationResult) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	ok, err := c.Condition.Evaluate(ctx, in)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (c *Not) Clone() core.Comparison {
	if c.Condition == nil {
		return &Not{}
	}
	return &Not{Condition: c.Condition.Clone()}
}

func conditionRules(conditions []core.Comparison) []core.Rule {
	var out []core.Rule
	for _, cond := range conditions {
		out = append(out, core.ComparisonRules(cond)...)
	}
	return out
}

func validateConditions(typeID string, conditions []core.Comparison) error {
	if len(conditions) == 0 {
		return &MissingOperandError{Comparison: typeID, Operand: OperandCond}
	}
	for _, cond := range conditions {
		if cond == nil {
			return &MissingOperandError{Comparison: typeID, Operand: OperandCond}
		}
		if err := cond.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func cloneConditions(conditions []core.Comparison) []core.Comparison {
	out := make([]core.Comparison, len(conditions))
	for i, cond := range conditions {
		if cond != nil {
			out[i] = cond.Clone()
		}
	}
	return out
}
