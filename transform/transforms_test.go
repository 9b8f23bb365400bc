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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/importmap/core"
)

func result(v string) core.TransformationResult {
	return core.NewResult(core.StringPtr(v))
}

func apply(t *testing.T, step core.ValueTransformation, in core.TransformationResult) core.TransformationResult {
	t.Helper()
	out, err := step.Apply(context.Background(), in)
	require.NoError(t, err)
	return out
}

// TestInterpolate tests placeholder substitution for scalars and collections
func TestInterpolate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		input    string
		want     string
	}{
		{"scalar", "<${0}>", "abc", "<abc>"},
		{"collection", "${1}/${0}", `["a","b"]`, "b/a"},
		{"missing index", "${0}-${3}", `["a","b"]`, "a-"},
		{"no placeholders", "fixed", "abc", "fixed"},
		{"scalar index past zero", "${0}${1}", "x", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := apply(t, NewInterpolate(tt.template), result(tt.input))
			assert.Equal(t, tt.want, out.StringValue())
			assert.Equal(t, tt.input, core.StringValue(out.OriginalValue))
			assert.Equal(t, core.TypeString, out.CurrentValueType)
		})
	}
}

// TestInterpolate_EmptyIsIdentity tests the empty-template identity law
func TestInterpolate_EmptyIsIdentity(t *testing.T) {
	in := result(`["a"]`)
	require.Equal(t, core.TypeCollection, in.CurrentValueType)

	out := apply(t, NewInterpolate(""), in)
	assert.Equal(t, in.Value, out.Value)
	assert.Equal(t, core.TypeString, out.CurrentValueType)

	nilOut := apply(t, NewInterpolate("${0}"), core.NewResult(nil))
	assert.Nil(t, nilOut.Value)
}

// TestCalculate tests formula evaluation and rounding
func TestCalculate(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		places  int
		input   string
		want    string
	}{
		{"rounded", "${0} + 0.01", 2, "1.234", "1.24"},
		{"unrounded", "${0} + 0.01", -1, "1.234", "1.244"},
		{"price uplift", "${0} * 1.1", 2, "19.99", "21.99"},
		{"collection operands", "${0} * ${1}", 0, `["3","4"]`, "12"},
		{"unresolved placeholder is zero", "${0} + ${5}", -1, "7", "7"},
		{"negative operand", "${0} * 2", -1, "-2.5", "-5"},
		{"bankers rounding", "${0}", 0, "2.5", "2"},
		{"integer division", "${0} / 4", -1, "10", "2.5"},
		{"exact decimal product", "${0} * 3", -1, "0.1", "0.3"},
		{"exact decimal sum", "${0} + 0.2", -1, "0.1", "0.3"},
		{"power", "${0} ** 2", -1, "1.5", "2.25"},
		{"modulo", "${0} % 4", -1, "10", "2"},
		{"unary minus", "-${0} + 1", -1, "3", "-2"},
		{"padded operand", "${0} * 2", -1, " 4 ", "8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := apply(t, NewCalculate(tt.formula, tt.places), result(tt.input))
			require.False(t, out.WasFailure(), out.ErrorMessage)
			assert.Equal(t, tt.want, out.StringValue())
			assert.Equal(t, core.TypeDecimal, out.CurrentValueType)
		})
	}
}

// TestCalculate_EdgeCases tests empty formulas, invalid formulas and clamping
func TestCalculate_EdgeCases(t *testing.T) {
	out := apply(t, NewCalculate("", 2), result("5"))
	assert.False(t, out.WasFailure())
	assert.Equal(t, "", out.StringValue())

	out = apply(t, NewCalculate("${0} +* 2", 2), result("5"))
	assert.True(t, out.WasFailure())
	assert.Equal(t, core.ErrMsgInvalidCalculation, out.ErrorMessage)

	out = apply(t, NewCalculate("${0} * 2", 2), result("abc"))
	assert.True(t, out.WasFailure())
	assert.Equal(t, `cannot convert "abc" to a number`, out.ErrorMessage)

	out = apply(t, NewCalculate("${0} / 0", 2), result("1"))
	assert.True(t, out.WasFailure())

	out = apply(t, NewCalculate("${0} % 0", 2), result("1"))
	assert.True(t, out.WasFailure())

	out = apply(t, NewCalculate("${0} * 2", 2), core.NewResult(nil))
	assert.Nil(t, out.Value)
	assert.False(t, out.WasFailure())

	assert.Equal(t, MaxDecimalPlaces, NewCalculate("1", 40).DecimalPlaces)
	assert.Equal(t, MinDecimalPlaces, NewCalculate("1", -9).DecimalPlaces)

	c := NewCalculate("", 2)
	assert.NoError(t, c.ValidateDetail("${0} * (${1} + 2)"))
	assert.ErrorIs(t, c.ValidateDetail("${0} *"), ErrInvalidCalculation)
}

// TestCalculate_OperandsAreData tests that source values are bound as
// numbers and never parsed as part of the formula
func TestCalculate_OperandsAreData(t *testing.T) {
	for _, input := range []string{"1) * 0 + (7", "2 + 2", "len(\"abc\")", "v0"} {
		out := apply(t, NewCalculate("${0} * 2", 2), result(input))
		assert.True(t, out.WasFailure(), input)
		assert.Equal(t, fmt.Sprintf("cannot convert %q to a number", input), out.ErrorMessage)
	}

	out := apply(t, NewCalculate("${0} * ${1}", -1), result(`["3","x"]`))
	assert.True(t, out.WasFailure())
	assert.Equal(t, `cannot convert "x" to a number`, out.ErrorMessage)

	out = apply(t, NewCalculate("${0} * ${1}", -1), result(`["3",""]`))
	require.False(t, out.WasFailure(), out.ErrorMessage)
	assert.Equal(t, "0", out.StringValue())
}

// TestRegexMatch tests the collapse and expand rule
func TestRegexMatch(t *testing.T) {
	re := NewRegexMatch(`\d+`)

	out := apply(t, re, result("a1b22c"))
	assert.Equal(t, `["1","22"]`, out.StringValue())
	assert.Equal(t, core.TypeCollection, out.CurrentValueType)

	out = apply(t, re, result("a1bc"))
	assert.Equal(t, "1", out.StringValue())
	assert.Equal(t, core.TypeString, out.CurrentValueType)

	out = apply(t, re, result("abc"))
	assert.Equal(t, "", out.StringValue())
	assert.False(t, out.WasFailure())
}

// TestRegexMatch_EdgeCases tests empty patterns, invalid patterns and collections
func TestRegexMatch_EdgeCases(t *testing.T) {
	out := apply(t, NewRegexMatch(""), result("abc"))
	assert.Equal(t, `["abc"]`, out.StringValue())

	out = apply(t, NewRegexMatch(`(`), result("abc"))
	assert.True(t, out.WasFailure())
	assert.Error(t, NewRegexMatch("").ValidateDetail("("))

	out = apply(t, NewRegexMatch(`\d`), result(`["1","2"]`))
	assert.Equal(t, core.ErrMsgCollection, out.ErrorMessage)

	re := NewRegexMatch(`a`)
	assert.Equal(t, "a", apply(t, re, result("cab")).StringValue())
	re.SetDetail(`b`)
	assert.Equal(t, "b", apply(t, re, result("cab")).StringValue())
}

// TestSubstring tests clamped rune-based substring
func TestSubstring(t *testing.T) {
	tests := []struct {
		name   string
		start  int
		length int
		input  string
		want   string
	}{
		{"prefix", 0, 3, "abcdef", "abc"},
		{"middle", 2, 2, "abcdef", "cd"},
		{"to end", 2, -1, "abcdef", "cdef"},
		{"length past end", 4, 10, "abcdef", "ef"},
		{"start past end", 10, 2, "abc", ""},
		{"negative start", -3, 2, "abc", "ab"},
		{"runes", 1, 2, "héllo", "él"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := apply(t, NewSubstring(tt.start, tt.length), result(tt.input))
			assert.Equal(t, tt.want, out.StringValue())
		})
	}

	s := &Substring{MaxLength: -1}
	s.SetDetail("1,2")
	assert.Equal(t, 1, s.StartIndex)
	assert.Equal(t, 2, s.MaxLength)
	assert.Error(t, s.ValidateDetail("x"))
}

// TestMap tests value lookups
func TestMap(t *testing.T) {
	m := NewMap("",
		ValueMapping{FromValue: "Y", ToValue: "Yes"},
		ValueMapping{FromValue: "Y", ToValue: "Ignored"},
		ValueMapping{FromValue: "", ToValue: "Unknown"},
	)

	assert.Equal(t, "Yes", apply(t, m, result("Y")).StringValue())
	assert.Equal(t, "Q", apply(t, m, result("Q")).StringValue())
	assert.Equal(t, "Unknown", apply(t, m, core.NewResult(nil)).StringValue())

	scoped := NewMap("status",
		ValueMapping{ImportedFieldName: "other", FromValue: "A", ToValue: "wrong"},
		ValueMapping{ImportedFieldName: "status", FromValue: "A", ToValue: "Active"},
	)
	assert.Equal(t, "Active", apply(t, scoped, result("A")).StringValue())

	empty := NewMap("")
	in := result("A")
	assert.Equal(t, in, apply(t, empty, in))

	out := apply(t, m, result(`["Y"]`))
	assert.Equal(t, core.ErrMsgCollection, out.ErrorMessage)
}

// TestTextTransforms tests trim, case conversion and date formatting
func TestTextTransforms(t *testing.T) {
	assert.Equal(t, "abc", apply(t, NewTrim(""), result("  abc \t")).StringValue())
	assert.Equal(t, "abc", apply(t, NewTrim("*"), result("**abc*")).StringValue())

	assert.Equal(t, "ABC", apply(t, NewChangeCase(CaseUpper), result("aBc")).StringValue())
	assert.Equal(t, "abc", apply(t, NewChangeCase(CaseLower), result("aBc")).StringValue())
	assert.Equal(t, "Hello World-Wide", apply(t, NewChangeCase(CaseTitle), result("hELLO world-wide")).StringValue())

	_, err := NewChangeCase("sideways").Apply(context.Background(), result("x"))
	assert.Error(t, err)

	out := apply(t, NewDateFormat("", "02/01/2006"), result("2024-03-15"))
	assert.Equal(t, "15/03/2024", out.StringValue())

	out = apply(t, NewDateFormat("01/02/2006", "2006-01-02"), result("03/15/2024"))
	assert.Equal(t, "2024-03-15", out.StringValue())

	out = apply(t, NewDateFormat("", "2006"), result("not a date"))
	assert.True(t, out.WasFailure())
}

// TestFailurePropagation tests that no step clears an existing failure
func TestFailurePropagation(t *testing.T) {
	failed := result("12").WithError("upstream")
	steps := []core.ValueTransformation{
		NewInterpolate("${0}"),
		NewInterpolate(""),
		NewCalculate("${0} * 2", 2),
		NewCalculate("", 2),
		NewRegexMatch(`\d`),
		NewRegexMatch(""),
		NewSubstring(0, 1),
		NewMap("", ValueMapping{FromValue: "12", ToValue: "x"}),
		NewTrim(""),
		NewChangeCase(CaseUpper),
		NewDateFormat("", "2006"),
	}
	for _, step := range steps {
		t.Run(step.TypeID(), func(t *testing.T) {
			out := apply(t, step, failed)
			assert.True(t, out.WasFailure())
			assert.Equal(t, "upstream", out.ErrorMessage)
			assert.Equal(t, "12", out.StringValue())
		})
	}
}

// TestClone tests that clones are independent
func TestClone(t *testing.T) {
	m := NewMap("", ValueMapping{FromValue: "a", ToValue: "b"})
	c := m.Clone().(*Map)
	c.AddMapping(ValueMapping{FromValue: "c", ToValue: "d"})
	c.SetDetail("changed")

	assert.Len(t, m.ValueMappings, 1)
	assert.Equal(t, "", m.Detail())
	assert.Greater(t, c.Version(), m.Version())
}

// TestConvert tests typed materialization
func TestConvert(t *testing.T) {
	v, err := Convert(core.StringPtr("21.99"), core.TypeDecimal)
	require.NoError(t, err)
	assert.Equal(t, "21.99", v.(interface{ String() string }).String())

	v, err = Convert(core.StringPtr("4.0"), core.TypeInt)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)

	_, err = Convert(core.StringPtr("4.5"), core.TypeInt)
	assert.Error(t, err)

	v, err = Convert(core.StringPtr("yes"), core.TypeBool)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = Convert(core.StringPtr(`["a","b"]`), core.TypeCollection)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)

	v, err = Convert(nil, core.TypeInt)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = Convert(core.StringPtr("soon"), core.TypeDateTime)
	assert.Error(t, err)
}
