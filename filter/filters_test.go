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

package filter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/filter"
	"github.com/aaronlmathis/importmap/rules"
	"github.com/aaronlmathis/importmap/transform"
)

func lit(v string) core.Rule { return rules.NewConstant(v) }

func null() core.Rule { return rules.NewIgnore() }

func eval(t *testing.T, c core.Comparison) bool {
	t.Helper()
	ok, err := c.Evaluate(context.Background(), core.NewResult(nil))
	require.NoError(t, err)
	return ok
}

// TestOrdering tests the numeric, date and string fallback
func TestOrdering(t *testing.T) {
	tests := []struct {
		name  string
		order filter.Order
		left  string
		right string
		want  bool
	}{
		{"numeric not lexical", filter.Greater, "10", "9", true},
		{"decimal", filter.Less, "2.5", "10", true},
		{"equal numbers", filter.GreaterOrEqual, "3.0", "3", true},
		{"dates", filter.Greater, "2024-03-01", "2023-12-31", true},
		{"mixed date layouts", filter.LessOrEqual, "01/15/2024", "2024-01-15", true},
		{"strings", filter.Less, "apple", "banana", true},
		{"number against text", filter.Greater, "10", "abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, filter.NewOrdering(tt.order, lit(tt.left), lit(tt.right))))
		})
	}

	assert.False(t, eval(t, filter.NewOrdering(filter.Greater, null(), lit("1"))))
	assert.False(t, eval(t, filter.NewOrdering(filter.Less, lit("1"), null())))
	assert.Equal(t, filter.TypeLessThanOrEqual, filter.NewOrdering(filter.LessOrEqual, nil, nil).TypeID())
}

// TestCompare tests the exported ordering helper
func TestCompare(t *testing.T) {
	assert.Equal(t, 1, filter.Compare("10", "9"))
	assert.Equal(t, -1, filter.Compare("a10", "a9"))
	assert.Equal(t, 0, filter.Compare("1e2", "100"))
}

// TestEquals tests string equality and absence handling
func TestEquals(t *testing.T) {
	assert.True(t, eval(t, filter.NewEquals(lit("a"), lit("a"))))
	assert.False(t, eval(t, filter.NewEquals(lit("1.0"), lit("1"))))
	assert.True(t, eval(t, filter.NewEquals(null(), null())))
	assert.False(t, eval(t, filter.NewEquals(null(), lit(""))))
	assert.True(t, eval(t, filter.NewNotEqual(lit("a"), lit("b"))))
	assert.False(t, eval(t, filter.NewNotEqual(null(), null())))
}

// TestBetween tests inclusive range checks
func TestBetween(t *testing.T) {
	assert.True(t, eval(t, filter.NewBetween(lit("5"), lit("5"), lit("10"))))
	assert.True(t, eval(t, filter.NewBetween(lit("10"), lit("5"), lit("10"))))
	assert.False(t, eval(t, filter.NewBetween(lit("11"), lit("5"), lit("10"))))
	assert.True(t, eval(t, filter.NewNotBetween(lit("11"), lit("5"), lit("10"))))
	assert.False(t, eval(t, filter.NewBetween(null(), lit("5"), lit("10"))))

	_, err := filter.NewBetween(lit("5"), lit("1"), nil).Evaluate(context.Background(), core.NewResult(nil))
	var missing *filter.MissingOperandError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, filter.OperandHigh, missing.Operand)
	assert.ErrorIs(t, err, core.ErrMissingOperand)
}

// TestContains tests substring and collection membership
func TestContains(t *testing.T) {
	assert.True(t, eval(t, filter.NewContains(lit("hello world"), lit("lo w"))))
	assert.True(t, eval(t, filter.NewContains(lit(`["1","22"]`), lit("22"))))
	assert.False(t, eval(t, filter.NewContains(lit(`["1","22"]`), lit("2"))))
	assert.True(t, eval(t, filter.NewContains(lit(`["a",null]`), null())))
	assert.True(t, eval(t, filter.NewNotContains(lit("abc"), lit("z"))))
	assert.False(t, eval(t, filter.NewContains(null(), lit("a"))))

	assert.True(t, eval(t, filter.NewStartsWith(lit("prefix"), lit("pre"))))
	assert.True(t, eval(t, filter.NewEndsWith(lit("prefix"), lit("fix"))))
	assert.False(t, eval(t, filter.NewEndsWith(null(), lit("fix"))))
}

// TestIn tests membership over value rules
func TestIn(t *testing.T) {
	assert.True(t, eval(t, filter.NewIn(lit("b"), lit("a"), lit("b"))))
	assert.False(t, eval(t, filter.NewIn(lit("c"), lit("a"), lit("b"))))
	assert.False(t, eval(t, filter.NewIn(lit("c"))))
	assert.True(t, eval(t, filter.NewNotIn(lit("c"), lit("a"))))

	failing := rules.NewCopy(core.NewFieldTransformation("x", transform.NewCalculate("${0} +* 1", 0)))
	row := core.NewTable("t", "x")
	row.AddStrings("1")
	_, err := filter.NewIn(lit("a"), lit("a"), failing).Evaluate(context.Background(), core.NewRowResult(row, 0))
	var operandErr *filter.OperandError
	require.ErrorAs(t, err, &operandErr)
	assert.Equal(t, "values[1]", operandErr.Operand)
	assert.Equal(t, core.ErrMsgInvalidCalculation, operandErr.Message)
}

// TestPredicates tests the single-operand predicates
func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		cmp  func(core.Rule) *filter.Predicate
		in   core.Rule
		want bool
	}{
		{"isNull nil", filter.NewIsNull, null(), true},
		{"isNull empty", filter.NewIsNull, lit(""), false},
		{"isNotNull", filter.NewIsNotNull, lit(""), true},
		{"isNullOrEmpty", filter.NewIsNullOrEmpty, lit(""), true},
		{"isNotNullOrEmpty", filter.NewIsNotNullOrEmpty, lit(" "), true},
		{"isNullOrWhiteSpace", filter.NewIsNullOrWhiteSpace, lit(" \t"), true},
		{"isNotNullOrWhiteSpace", filter.NewIsNotNullOrWhiteSpace, lit(" x "), true},
		{"isTrue", filter.NewIsTrue, lit("TRUE"), true},
		{"isTrue yes", filter.NewIsTrue, lit("yes"), true},
		{"isTrue junk", filter.NewIsTrue, lit("maybe"), false},
		{"isFalse", filter.NewIsFalse, lit("0"), true},
		{"isFalse nil", filter.NewIsFalse, null(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, tt.cmp(tt.in)))
		})
	}

	_, err := filter.NewIsNull(nil).Evaluate(context.Background(), core.NewResult(nil))
	assert.ErrorIs(t, err, core.ErrMissingOperand)
}

// TestRegexMatch tests pattern comparisons
func TestRegexMatch(t *testing.T) {
	assert.True(t, eval(t, filter.NewRegexMatch(lit("AB-123"), `^[A-Z]+-\d+$`)))
	assert.False(t, eval(t, filter.NewRegexMatch(lit("ab"), `^\d+$`)))

	dynamic := filter.NewRegexMatch(lit("x1"), "")
	require.NoError(t, dynamic.ConfigureOperands(lit("x1"), lit(`\d`), nil, nil))
	assert.True(t, eval(t, dynamic))

	assert.Error(t, filter.NewRegexMatch(lit("x"), "(").Validate())
	_, err := filter.NewRegexMatch(lit("x"), "(").Evaluate(context.Background(), core.NewResult(nil))
	var operandErr *filter.OperandError
	assert.ErrorAs(t, err, &operandErr)
}

// TestComposite tests and, or and not
func TestComposite(t *testing.T) {
	yes := filter.NewEquals(lit("a"), lit("a"))
	no := filter.NewEquals(lit("a"), lit("b"))
	broken := filter.NewEquals(nil, nil)

	assert.True(t, eval(t, filter.NewAnd(yes, yes)))
	assert.False(t, eval(t, filter.NewAnd(yes, no)))
	assert.True(t, eval(t, filter.NewOr(no, yes)))
	assert.False(t, eval(t, filter.NewOr(no, no)))
	assert.True(t, eval(t, filter.NewNot(no)))

	_, err := filter.NewAnd(yes, broken).Evaluate(context.Background(), core.NewResult(nil))
	assert.ErrorIs(t, err, core.ErrMissingOperand)
	_, err = filter.NewOr().Evaluate(context.Background(), core.NewResult(nil))
	assert.ErrorIs(t, err, core.ErrMissingOperand)
	_, err = filter.NewNot(nil).Evaluate(context.Background(), core.NewResult(nil))
	assert.ErrorIs(t, err, core.ErrMissingOperand)

	assert.Len(t, filter.NewAnd(yes, no).Operands(), 4)
}

// TestOperandFailure tests that a failed operand aborts evaluation
func TestOperandFailure(t *testing.T) {
	table := core.NewTable("t", "v")
	table.AddStrings(`["1","2"]`)
	failing := rules.NewCopy(core.NewFieldTransformation("v", transform.NewRegexMatch(`\d`)))

	ok, err := filter.NewEquals(failing, lit("1")).Evaluate(context.Background(), core.NewRowResult(table, 0))
	assert.False(t, ok)
	var operandErr *filter.OperandError
	require.ErrorAs(t, err, &operandErr)
	assert.Equal(t, filter.OperandLeft, operandErr.Operand)
	assert.Equal(t, core.ErrMsgCollection, operandErr.Message)
	assert.False(t, filter.IsConfigurationError(err))
	assert.True(t, filter.IsConfigurationError(&filter.MissingOperandError{}))
}

// TestConfigureOperands tests operand assignment
func TestConfigureOperands(t *testing.T) {
	c := filter.NewEquals(nil, nil)
	assert.ErrorIs(t, c.ConfigureOperands(nil, lit("a"), nil, nil), core.ErrNilLeftOperand)
	require.NoError(t, c.ConfigureOperands(lit("a"), lit("a"), nil, nil))
	assert.Len(t, c.Operands(), 2)
	assert.NoError(t, c.Validate())
	assert.True(t, errors.Is(filter.NewEquals(lit("a"), nil).Validate(), core.ErrMissingOperand))
}

// TestClone tests that operand subtrees are deep copied
func TestClone(t *testing.T) {
	left := rules.NewConstant("a")
	original := filter.NewIn(left, lit("a"))
	clone := original.Clone().(*filter.In)
	clone.Left.SetDetail("changed")
	clone.SetValues(nil)

	assert.Equal(t, "a", left.Detail())
	assert.Len(t, original.Values, 1)
	assert.True(t, eval(t, original))
}

// TestWhere tests the row filter adapter
func TestWhere(t *testing.T) {
	table := core.NewTable("t", "Qty")
	table.AddStrings("3")
	table.AddStrings("30")
	f := filter.Where(filter.NewOrdering(filter.Greater, rules.NewFieldAccess("Qty"), lit("10")))

	ok, err := f.ShouldInclude(context.Background(), core.NewRowResult(table, 0))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.ShouldInclude(context.Background(), core.NewRowResult(table, 1))
	require.NoError(t, err)
	assert.True(t, ok)
}
