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
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"

	"github.com/aaronlmathis/importmap/core"
)

// Calculation limits for DecimalPlaces. -1 disables rounding.
const (
	MinDecimalPlaces = -1
	MaxDecimalPlaces = 15
)

// ErrInvalidCalculation is returned by ValidateDetail for a formula that does
// not compile.
var ErrInvalidCalculation = errors.New(core.ErrMsgInvalidCalculation)

// Calculate evaluates an arithmetic formula with ${i} placeholders in decimal
// arithmetic and rounds the result with banker's rounding.
type Calculate struct {
	base
	DecimalPlaces int
}

// NewCalculate creates a calculation step. places is clamped to the supported range.
func NewCalculate(formula string, places int) *Calculate {
	c := &Calculate{base: base{detail: formula}}
	c.SetDecimalPlaces(places)
	return c
}

func (t *Calculate) TypeID() string { return TypeCalculate }

func (t *Calculate) OutputType() core.ValueType { return core.TypeDecimal }

// SetDecimalPlaces sets the rounding precision, clamped to [-1, 15].
func (t *Calculate) SetDecimalPlaces(places int) {
	t.DecimalPlaces = clampPlaces(places)
	t.Touch()
}

func clampPlaces(places int) int {
	if places < MinDecimalPlaces {
		return MinDecimalPlaces
	}
	if places > MaxDecimalPlaces {
		return MaxDecimalPlaces
	}
	return places
}

func (t *Calculate) ValidateDetail(detail string) error {
	if strings.TrimSpace(detail) == "" {
		return nil
	}
	calc := &calculation{env: map[string]interface{}{}}
	if _, err := calc.compile(FormatPlaceholders(detail, nil, "0")); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCalculation, err)
	}
	return nil
}

func (t *Calculate) Apply(_ context.Context, in core.TransformationResult) (core.TransformationResult, error) {
	if in.WasFailure() {
		return in, nil
	}
	if t.IsEmpty() {
		empty := ""
		return in.WithValue(&empty, core.TypeString), nil
	}
	if in.Value == nil {
		return in, nil
	}

	// Placeholders become variables so cell text never reaches the formula source.
	calc := &calculation{env: map[string]interface{}{}}
	values := substitutionValues(in)
	names := make([]*string, len(values))
	for i, v := range values {
		name := fmt.Sprintf("v%d", i)
		names[i] = &name
		d := decimal.Zero
		if v != nil && strings.TrimSpace(*v) != "" {
			parsed, err := decimal.NewFromString(strings.TrimSpace(*v))
			if err != nil {
				return in.WithError(fmt.Sprintf("cannot convert %q to a number", strings.TrimSpace(*v))), nil
			}
			d = parsed
		}
		calc.env[name] = d
	}

	program, err := calc.compile(FormatPlaceholders(t.detail, names, "0"))
	if err != nil {
		return in.WithError(core.ErrMsgInvalidCalculation), nil
	}
	raw, err := expr.Run(program, calc.env)
	if calc.err != nil {
		return in.WithError(calc.err.Error()), nil
	}
	if err != nil {
		return in.WithError(core.ErrMsgInvalidCalculation), nil
	}

	d, ok := toDecimal(raw)
	if !ok {
		s := fmt.Sprint(raw)
		return in.WithValue(&s, core.TypeString), nil
	}
	if places := clampPlaces(t.DecimalPlaces); places >= 0 {
		d = d.RoundBank(int32(places))
	}
	s := d.String()
	return in.WithValue(&s, core.TypeDecimal), nil
}

// calculation evaluates one formula in decimal arithmetic. Numeric literals
// and operators are rewritten into calls on the functions in env, so binary
// floating point never enters the result.
type calculation struct {
	env map[string]interface{}
	err error
}

var errDivideByZero = errors.New("ArithmeticError: attempted to divide by zero")

func (c *calculation) compile(formula string) (*vm.Program, error) {
	c.env["add"] = func(a, b decimal.Decimal) decimal.Decimal { return a.Add(b) }
	c.env["sub"] = func(a, b decimal.Decimal) decimal.Decimal { return a.Sub(b) }
	c.env["mul"] = func(a, b decimal.Decimal) decimal.Decimal { return a.Mul(b) }
	c.env["neg"] = func(a decimal.Decimal) decimal.Decimal { return a.Neg() }
	c.env["pow"] = func(a, b decimal.Decimal) decimal.Decimal { return a.Pow(b) }
	c.env["div"] = func(a, b decimal.Decimal) decimal.Decimal {
		if b.IsZero() {
			c.err = errDivideByZero
			return decimal.Zero
		}
		return a.Div(b)
	}
	c.env["mod"] = func(a, b decimal.Decimal) decimal.Decimal {
		if b.IsZero() {
			c.err = errDivideByZero
			return decimal.Zero
		}
		return a.Mod(b)
	}
	return expr.Compile(formula, expr.Env(c.env), expr.Patch(decimalPatcher{}))
}

// decimalPatcher rewrites arithmetic nodes into decimal function calls.
type decimalPatcher struct{}

var decimalOperators = map[string]string{
	"+": "add", "-": "sub", "*": "mul", "/": "div", "%": "mod", "**": "pow", "^": "pow",
}

func (decimalPatcher) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IntegerNode:
		ast.Patch(node, &ast.ConstantNode{Value: decimal.NewFromInt(int64(n.Value))})
	case *ast.FloatNode:
		ast.Patch(node, &ast.ConstantNode{Value: decimal.NewFromFloat(n.Value)})
	case *ast.UnaryNode:
		switch n.Operator {
		case "-":
			ast.Patch(node, &ast.CallNode{Callee: &ast.IdentifierNode{Value: "neg"}, Arguments: []ast.Node{n.Node}})
		case "+":
			ast.Patch(node, n.Node)
		}
	case *ast.BinaryNode:
		if fn, ok := decimalOperators[n.Operator]; ok {
			ast.Patch(node, &ast.CallNode{Callee: &ast.IdentifierNode{Value: fn}, Arguments: []ast.Node{n.Left, n.Right}})
		}
	}
}

// toDecimal converts an expression result. ok is false for non-numeric results.
func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	}
	return decimal.Zero, false
}

func (t *Calculate) Clone() core.ValueTransformation {
	c := *t
	return &c
}
