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
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aaronlmathis/importmap/core"
)

// Equals compares the resolved string values of its operands without
// numeric coercion. Two absent values are equal.
type Equals struct {
	Slots
	negate bool
}

// NewEquals creates an equality comparison.
func NewEquals(left, right core.Rule) *Equals {
	return &Equals{Slots: Slots{Left: left, Right: right}}
}

// NewNotEqual creates the negated equality comparison.
func NewNotEqual(left, right core.Rule) *Equals {
	return &Equals{Slots: Slots{Left: left, Right: right}, negate: true}
}

func (c *Equals) TypeID() string {
	if c.negate {
		return TypeNotEqual
	}
	return TypeEquals
}

func (c *Equals) Validate() error { return c.require(c.TypeID(), OperandLeft, OperandRight) }

func (c *Equals) Evaluate(ctx context.Context, in core.TransformationResult) (bool, error) {
	left, right, err := c.resolvePair(ctx, c.TypeID(), in)
	if err != nil {
		return false, err
	}
	return equalValues(left, right) != c.negate, nil
}

func (c *Equals) Clone() core.Comparison {
	return &Equals{Slots: c.Slots.clone(), negate: c.negate}
}

// Order selects the relation tested by an Ordering comparison.
type Order int

const (
	Greater Order = iota
	GreaterOrEqual
	Less
	LessOrEqual
)

// Ordering tests left against right with the numeric, date, string fallback
// of Compare. An absent value on either side makes the comparison false.
type Ordering struct {
	Slots
	Order Order
}

// NewOrdering creates an ordering comparison.
func NewOrdering(order Order, left, right core.Rule) *Ordering {
	return &Ordering{Slots: Slots{Left: left, Right: right}, Order: order}
}

func (c *Ordering) TypeID() string {
	switch c.Order {
	case GreaterOrEqual:
		return TypeGreaterThanOrEqual
	case Less:
		return TypeLessThan
	case LessOrEqual:
		return TypeLessThanOrEqual
	}
	return TypeGreaterThan
}

func (c *Ordering) Validate() error { return c.require(c.TypeID(), OperandLeft, OperandRight) }

func (c *Ordering) Evaluate(ctx context.Context, in core.TransformationResult) (bool, error) {
	left, right, err := c.resolvePair(ctx, c.TypeID(), in)
	if err != nil || left == nil || right == nil {
		return false, err
	}
	cmp := Compare(*left, *right)
	switch c.Order {
	case GreaterOrEqual:
		return cmp >= 0, nil
	case Less:
		return cmp < 0, nil
	case LessOrEqual:
		return cmp <= 0, nil
	}
	return cmp > 0, nil
}

func (c *Ordering) Clone() core.Comparison {
	return &Ordering{Slots: c.Slots.clone(), Order: c.Order}
}

// Between tests low <= left <= high, both limits inclusive.
type Between struct {
	Slots
	negate bool
}

// NewBetween creates an inclusive range comparison.
func NewBetween(left, low, high core.Rule) *Between {
	return &Between{Slots: Slots{Left: left, LowLimit: low, HighLimit: high}}
}

// NewNotBetween creates the negated range comparison.
func NewNotBetween(left, low, high core.Rule) *Between {
	b := NewBetween(left, low, high)
	b.negate = true
	return b
}

func (c *Between) TypeID() string {
	if c.negate {
		return TypeNotBetween
	}
	return TypeBetween
}

func (c *Between) Validate() error {
	return c.require(c.TypeID(), OperandLeft, OperandLow, OperandHigh)
}

func (c *Between) Evaluate(ctx context.Context, in core.TransformationResult) (bool, error) {
	id := c.TypeID()
	if err := c.Validate(); err != nil {
		return false, err
	}
	left, err := resolve(ctx, id, OperandLeft, c.Left, in)
	if err != nil {
		return false, err
	}
	low, err := resolve(ctx, id, OperandLow, c.LowLimit, in)
	if err != nil {
		return false, err
	}
	high, err := resolve(ctx, id, OperandHigh, c.HighLimit, in)
	if err != nil {
		return false, err
	}
	within := left != nil && low != nil && high != nil &&
		Compare(*low, *left) <= 0 && Compare(*left, *high) <= 0
	return within != c.negate, nil
}

func (c *Between) Clone() core.Comparison {
	return &Between{Slots: c.Slots.clone(), negate: c.negate}
}

// Contains tests substring containment, or element membership when the left
// value is a collection carrier.
type Contains struct {
	Slots
	negate bool
}

// NewContains creates a containment comparison.
func NewContains(left, right core.Rule) *Contains {
	return &Contains{Slots: Slots{Left: left, Right: right}}
}

// NewNotContains creates the negated containment comparison.
func NewNotContains(left, right core.Rule) *Contains {
	return &Contains{Slots: Slots{Left: left, Right: right}, negate: true}
}

func (c *Contains) TypeID() string {
	if c.negate {
		return TypeNotContains
	}
	return TypeContains
}

func (c *Contains) Validate() error { return c.require(c.TypeID(), OperandLeft, OperandRight) }

func (c *Contains) Evaluate(ctx context.Context, in core.TransformationResult) (bool, error) {
	left, right, err := c.resolvePair(ctx, c.TypeID(), in)
	if err != nil {
		return false, err
	}
	return contains(left, right) != c.negate, nil
}

func contains(left, right *string) bool {
	if left == nil {
		return false
	}
	if core.IsCollection(left) {
		items, err := core.ParseCollection(*left)
		if err == nil {
			for _, item := range items {
				if equalValues(item, right) {
					return true
				}
			}
			return false
		}
	}
	if right == nil {
		return false
	}
	return strings.Contains(*left, *right)
}

func (c *Contains) Clone() core.Comparison {
	return &Contains{Slots: c.Slots.clone(), negate: c.negate}
}

// Affix tests whether the left value starts or ends with the right value.
type Affix struct {
	Slots
	suffix bool
}

// NewStartsWith creates a prefix comparison.
func NewStartsWith(left, right core.Rule) *Affix {
	return &Affix{Slots: Slots{Left: left, Right: right}}
}

// NewEndsWith creates a suffix comparison.
func NewEndsWith(left, right core.Rule) *Affix {
	return &Affix{Slots: Slots{Left: left, Right: right}, suffix: true}
}

func (c *Affix) TypeID() string {
	if c.suffix {
		return TypeEndsWith
	}
	return TypeStartsWith
}

func (c *Affix) Validate() error { return c.require(c.TypeID(), OperandLeft, OperandRight) }

func (c *Affix) Evaluate(ctx context.Context, in core.TransformationResult) (bool, error) {
	left, right, err := c.resolvePair(ctx, c.TypeID(), in)
	if err != nil || left == nil || right == nil {
		return false, err
	}
	if c.suffix {
		return strings.HasSuffix(*left, *right), nil
	}
	return strings.HasPrefix(*left, *right), nil
}

func (c *Affix) Clone() core.Comparison {
	return &Affix{Slots: c.Slots.clone(), suffix: c.suffix}
}

// In tests the left value against a list of value rules. Every value rule is
// evaluated; any failure aborts the comparison.
type In struct {
	Slots
	Values []core.Rule
	negate bool
}

// NewIn creates a membership comparison.
func NewIn(left core.Rule, values ...core.Rule) *In {
	return &In{Slots: Slots{Left: left}, Values: values}
}

// NewNotIn creates the negated membership comparison.
func NewNotIn(left core.Rule, values ...core.Rule) *In {
	c := NewIn(left, values...)
	c.negate = true
	return c
}

func (c *In) TypeID() string {
	if c.negate {
		return TypeNotIn
	}
	return TypeIn
}

// SetValues replaces the value rules.
func (c *In) SetValues(values []core.Rule) {
	c.Values = values
}

func (c *In) Operands() []core.Rule {
	out := c.Slots.Operands()
	for _, v := range c.Values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func (c *In) Validate() error {
	if err := c.require(c.TypeID(), OperandLeft); err != nil {
		return err
	}
	for i, v := range c.Values {
		if v == nil {
			return &MissingOperandError{Comparison: c.TypeID(), Operand: fmt.Sprintf("%s[%d]", OperandValue, i)}
		}
	}
	return nil
}

func (c *In) Evaluate(ctx context.Context, in core.TransformationResult) (bool, error) {
	id := c.TypeID()
	if err := c.Validate(); err != nil {
		return false, err
	}
	left, err := resolve(ctx, id, OperandLeft, c.Left, in)
	if err != nil {
		return false, err
	}
	found := false
	for i, v := range c.Values {
		value, err := resolve(ctx, id, fmt.Sprintf("%s[%d]", OperandValue, i), v, in)
		if err != nil {
			return false, err
		}
		if equalValues(left, value) {
			found = true
		}
	}
	return found != c.negate, nil
}

func (c *In) Clone() core.Comparison {
	values := make([]core.Rule, len(c.Values))
	for i, v := range c.Values {
		values[i] = cloneRule(v)
	}
	return &In{Slots: c.Slots.clone(), Values: values, negate: c.negate}
}

// Predicate is a single-operand test on the left value.
type Predicate struct {
	Slots
	typeID string
	test   func(v *string) bool
}

func newPredicate(typeID string, left core.Rule, test func(v *string) bool) *Predicate {
	return &Predicate{Slots: Slots{Left: left}, typeID: typeID, test: test}
}

func isNull(v *string) bool             { return v == nil }
func isNullOrEmpty(v *string) bool      { return v == nil || *v == "" }
func isNullOrWhiteSpace(v *string) bool { return v == nil || strings.TrimSpace(*v) == "" }

func parseBool(v *string) (value, ok bool) {
	if v == nil {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(*v)) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(*v))
	return b, err == nil
}

// NewIsNull creates a null test.
func NewIsNull(left core.Rule) *Predicate { return newPredicate(TypeIsNull, left, isNull) }

// NewIsNotNull creates a non-null test.
func NewIsNotNull(left core.Rule) *Predicate {
	return newPredicate(TypeIsNotNull, left, func(v *string) bool { return !isNull(v) })
}

// NewIsNullOrEmpty creates a null-or-empty test.
func NewIsNullOrEmpty(left core.Rule) *Predicate {
	return newPredicate(TypeIsNullOrEmpty, left, isNullOrEmpty)
}

// NewIsNotNullOrEmpty creates the negated null-or-empty test.
func NewIsNotNullOrEmpty(left core.Rule) *Predicate {
	return newPredicate(TypeIsNotNullOrEmpty, left, func(v *string) bool { return !isNullOrEmpty(v) })
}

// NewIsNullOrWhiteSpace creates a null-or-blank test.
func NewIsNullOrWhiteSpace(left core.Rule) *Predicate {
	return newPredicate(TypeIsNullOrWhiteSpace, left, isNullOrWhiteSpace)
}

// NewIsNotNullOrWhiteSpace creates the negated null-or-blank test.
func NewIsNotNullOrWhiteSpace(left core.Rule) *Predicate {
	return newPredicate(TypeIsNotNullOrWhiteSpace, left, func(v *string) bool { return !isNullOrWhiteSpace(v) })
}

// NewIsTrue creates a test that the value parses as true.
func NewIsTrue(left core.Rule) *Predicate {
	return newPredicate(TypeIsTrue, left, func(v *string) bool {
		b, ok := parseBool(v)
		return ok && b
	})
}

// NewIsFalse creates a test that the value parses as false.
func NewIsFalse(left core.Rule) *Predicate {
	return newPredicate(TypeIsFalse, left, func(v *string) bool {
		b, ok := parseBool(v)
		return ok && !b
	})
}

func (c *Predicate) TypeID() string { return c.typeID }

func (c *Predicate) Validate() error { return c.require(c.typeID, OperandLeft) }

func (c *Predicate) Evaluate(ctx context.Context, in core.TransformationResult) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	v, err := resolve(ctx, c.typeID, OperandLeft, c.Left, in)
	if err != nil {
		return false, err
	}
	return c.test(v), nil
}

func (c *Predicate) Clone() core.Comparison {
	return &Predicate{Slots: c.Slots.clone(), typeID: c.typeID, test: c.test}
}

// RegexMatch tests the left value against a pattern. The pattern comes from
// the right operand when set, otherwise from Pattern.
type RegexMatch struct {
	Slots
	Pattern string
}

// NewRegexMatch creates a pattern comparison with a fixed pattern.
func NewRegexMatch(left core.Rule, pattern string) *RegexMatch {
	return &RegexMatch{Slots: Slots{Left: left}, Pattern: pattern}
}

func (c *RegexMatch) TypeID() string { return TypeRegexMatch }

func (c *RegexMatch) Validate() error {
	if err := c.require(TypeRegexMatch, OperandLeft); err != nil {
		return err
	}
	if c.Right == nil {
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return fmt.Errorf("%s: invalid pattern: %w", TypeRegexMatch, err)
		}
	}
	return nil
}

func (c *RegexMatch) Evaluate(ctx context.Context, in core.TransformationResult) (bool, error) {
	if err := c.require(TypeRegexMatch, OperandLeft); err != nil {
		return false, err
	}
	left, err := resolve(ctx, TypeRegexMatch, OperandLeft, c.Left, in)
	if err != nil {
		return false, err
	}
	pattern := c.Pattern
	if c.Right != nil {
		p, err := resolve(ctx, TypeRegexMatch, OperandRight, c.Right, in)
		if err != nil {
			return false, err
		}
		pattern = core.StringValue(p)
	}
	if left == nil {
		return false, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, &OperandError{Comparison: TypeRegexMatch, Operand: OperandRight, Message: err.Error()}
	}
	return re.MatchString(*left), nil
}

func (c *RegexMatch) Clone() core.Comparison {
	return &RegexMatch{Slots: c.Slots.clone(), Pattern: c.Pattern}
}
