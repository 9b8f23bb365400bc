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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/transform"
)

// Package filter provides the comparison operations of the ImportMap engine.
//
// A comparison is a boolean predicate over operand rules. Every operand is
// applied to the same incoming TransformationResult, so operands see the same
// source row. Missing required operands and failed operand results are
// returned as errors and never read as false.

// Registry identifiers.
const (
	TypeEquals                = "equals"
	TypeNotEqual              = "notEqual"
	TypeGreaterThan           = "greaterThan"
	TypeGreaterThanOrEqual    = "greaterThanOrEqual"
	TypeLessThan              = "lessThan"
	TypeLessThanOrEqual       = "lessThanOrEqual"
	TypeBetween               = "between"
	TypeNotBetween            = "notBetween"
	TypeContains              = "contains"
	TypeNotContains           = "notContains"
	TypeStartsWith            = "startsWith"
	TypeEndsWith              = "endsWith"
	TypeIn                    = "in"
	TypeNotIn                 = "notIn"
	TypeIsNull                = "isNull"
	TypeIsNotNull             = "isNotNull"
	TypeIsNullOrEmpty         = "isNullOrEmpty"
	TypeIsNotNullOrEmpty      = "isNotNullOrEmpty"
	TypeIsNullOrWhiteSpace    = "isNullOrWhiteSpace"
	TypeIsNotNullOrWhiteSpace = "isNotNullOrWhiteSpace"
	TypeIsTrue                = "isTrue"
	TypeIsFalse               = "isFalse"
	TypeRegexMatch            = "regexMatch"
	TypeAnd                   = "and"
	TypeOr                    = "or"
	TypeNot                   = "not"
)

// Operand slot names used in errors.
const (
	OperandLeft  = "left"
	OperandRight = "right"
	OperandLow   = "lowLimit"
	OperandHigh  = "highLimit"
	OperandValue = "values"
	OperandCond  = "conditions"
)

// OperandError reports an operand whose evaluation produced a failed result.
type OperandError struct {
	Comparison string
	Operand    string
	Message    string
}

func (e *OperandError) Error() string {
	return fmt.Sprintf("%s: %s operand failed: %s", e.Comparison, e.Operand, e.Message)
}

// MissingOperandError reports a required operand that is not configured.
type MissingOperandError struct {
	Comparison string
	Operand    string
}

func (e *MissingOperandError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Comparison, e.Operand, core.ErrMissingOperand)
}

func (e *MissingOperandError) Unwrap() error {
	return core.ErrMissingOperand
}

// Slots holds the operand slots shared by the comparison operations.
// Which slots are required depends on the operation.
type Slots struct {
	Left      core.Rule
	Right     core.Rule
	LowLimit  core.Rule
	HighLimit core.Rule
}

// ConfigureOperands assigns every slot at once. A nil left operand is rejected.
func (o *Slots) ConfigureOperands(left, right, low, high core.Rule) error {
	if left == nil {
		return core.ErrNilLeftOperand
	}
	o.Left, o.Right, o.LowLimit, o.HighLimit = left, right, low, high
	return nil
}

// Operands returns the configured slots in left, right, low, high order.
func (o *Slots) Operands() []core.Rule {
	var out []core.Rule
	for _, r := range []core.Rule{o.Left, o.Right, o.LowLimit, o.HighLimit} {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (o Slots) clone() Slots {
	return Slots{
		Left:      cloneRule(o.Left),
		Right:     cloneRule(o.Right),
		LowLimit:  cloneRule(o.LowLimit),
		HighLimit: cloneRule(o.HighLimit),
	}
}

func cloneRule(r core.Rule) core.Rule {
	if r == nil {
		return nil
	}
	return r.Clone()
}

// Slot returns the rule in the named slot, or nil.
func (o *Slots) Slot(name string) core.Rule {
	switch name {
	case OperandLeft:
		return o.Left
	case OperandRight:
		return o.Right
	case OperandLow:
		return o.LowLimit
	case OperandHigh:
		return o.HighLimit
	}
	return nil
}

// require checks that every named slot is set.
func (o *Slots) require(typeID string, slots ...string) error {
	for _, slot := range slots {
		if o.Slot(slot) == nil {
			return &MissingOperandError{Comparison: typeID, Operand: slot}
		}
	}
	return nil
}

// resolve applies an operand rule to in. A nil rule result resolves to nil.
func resolve(ctx context.Context, typeID, slot string, r core.Rule, in core.TransformationResult) (*string, error) {
	res, err := r.Apply(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %s operand: %w", typeID, slot, err)
	}
	if res == nil {
		return nil, nil
	}
	if res.WasFailure() {
		return nil, &OperandError{Comparison: typeID, Operand: slot, Message: res.ErrorMessage}
	}
	return res.Value, nil
}

// resolvePair validates and resolves the left and right operands.
func (o *Slots) resolvePair(ctx context.Context, typeID string, in core.TransformationResult) (left, right *string, err error) {
	if err = o.require(typeID, OperandLeft, OperandRight); err != nil {
		return nil, nil, err
	}
	if left, err = resolve(ctx, typeID, OperandLeft, o.Left, in); err != nil {
		return nil, nil, err
	}
	if right, err = resolve(ctx, typeID, OperandRight, o.Right, in); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// Compare orders a and b. Both sides are tried as numbers first, then as
// dates, and finally compared as ordinal strings.
func Compare(a, b string) int {
	if x, ok := transform.ParseFloat(a); ok {
		if y, ok := transform.ParseFloat(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	if x, ok := transform.ParseDateTime(a); ok {
		if y, ok := transform.ParseDateTime(b); ok {
			return compareTimes(x, y)
		}
	}
	return strings.Compare(a, b)
}

func compareTimes(x, y time.Time) int {
	switch {
	case x.Before(y):
		return -1
	case x.After(y):
		return 1
	}
	return 0
}

func equalValues(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Where adapts a comparison to a row filter.
func Where(cmp core.Comparison) core.Filter {
	return core.FilterFunc(func(ctx context.Context, row core.TransformationResult) (bool, error) {
		return cmp.Evaluate(ctx, row)
	})
}

// IsConfigurationError reports whether err is a comparison configuration
// error rather than an operand data failure.
func IsConfigurationError(err error) bool {
	var oe *OperandError
	return err != nil && !errors.As(err, &oe)
}
