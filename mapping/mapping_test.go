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

package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/filter"
	"github.com/aaronlmathis/importmap/rules"
	"github.com/aaronlmathis/importmap/transform"
	"github.com/aaronlmathis/importmap/validators"
)

func sourceTable() *core.Table {
	t := core.NewTable("import", "Name", "Price", "First", "Last")
	t.AddStrings("Widget", "19.99", "Ada", "Lovelace")
	t.AddStrings("Gadget", "5", "Alan", "Turing")
	t.AddRow(core.StringPtr(""), core.StringPtr("abc"), core.StringPtr("Grace"), nil)
	return t
}

func productTarget() core.TableDefinition {
	return core.TableDefinition{
		Name: "products",
		Columns: []core.ColumnDefinition{
			{Name: "Name", Type: core.TypeString},
			{Name: "Price", Type: core.TypeDecimal},
			{Name: "Contact", Type: core.TypeString},
			{Name: "Source", Type: core.TypeString},
			{Name: "Notes", Type: core.TypeString},
		},
	}
}

func productMapper() *Mapper {
	return NewMapper(productTarget(),
		NewFieldMapping("Name", core.TypeString,
			rules.NewCopy(core.NewFieldTransformation("Name", transform.NewTrim(""))),
			WithRequired(), WithMaxLength(10)),
		NewFieldMapping("Price", core.TypeDecimal,
			rules.NewCopy(core.NewFieldTransformation("Price", transform.NewCalculate("${0} * 1.1", 2)))),
		NewFieldMapping("Contact", core.TypeString,
			rules.NewCombineFields("${0} ${1}",
				core.NewFieldTransformation("First"),
				core.NewFieldTransformation("Last"))),
		NewFieldMapping("Source", core.TypeString, rules.NewConstant("legacy")),
		NewFieldMapping("Notes", core.TypeString, rules.NewIgnore()),
	)
}

// TestFieldMapping_State tests the lifecycle states
func TestFieldMapping_State(t *testing.T) {
	fm := NewFieldMapping("Price", core.TypeDecimal, nil)
	assert.Equal(t, Unconfigured, fm.State())
	assert.Equal(t, "unconfigured", fm.State().String())

	fm.SetRule(rules.NewCopy(nil))
	assert.Equal(t, Configured, fm.State())
	assert.ErrorIs(t, fm.CheckReady(), ErrNoSourceFields)

	require.NoError(t, fm.Rule.AddFieldTransformation(core.NewFieldTransformation("Price")))
	assert.Equal(t, Ready, fm.State())
	assert.NoError(t, fm.CheckReady())

	_, err := NewMapper(productTarget(), fm).ApplyRow(context.Background(), sourceTable(), 0)
	require.NoError(t, err)
	assert.Equal(t, Applied, fm.State())

	fm.SetRule(rules.NewConstant("1"))
	assert.Equal(t, Ready, fm.State())

	cond := rules.NewConditional()
	require.NoError(t, cond.SetComparison(filter.NewIsNull(rules.NewFieldAccess("Price"))))
	require.NoError(t, cond.SetBranches(rules.NewConstant("0"), rules.NewFieldAccess("Price")))
	fm.SetRule(cond)
	assert.Equal(t, Ready, fm.State())
}

// TestFieldMapping_RequiredIgnored tests that a required field cannot be ignored
func TestFieldMapping_RequiredIgnored(t *testing.T) {
	fm := NewFieldMapping("Name", core.TypeString, rules.NewIgnore(), WithRequired())
	assert.True(t, fm.IgnoreMapping())
	assert.ErrorIs(t, fm.CheckReady(), core.ErrRequiredFieldIgnored)

	ok, msgs := fm.Validate(nil)
	assert.False(t, ok)
	assert.Equal(t, []string{core.ErrRequiredFieldIgnored.Error()}, msgs)

	_, err := NewMapper(productTarget(), fm).ApplyTable(context.Background(), sourceTable())
	assert.ErrorIs(t, err, core.ErrRequiredFieldIgnored)

	fm.Required = false
	assert.NoError(t, fm.CheckReady())
}

// TestFieldMapping_Validate tests destination constraint checks
func TestFieldMapping_Validate(t *testing.T) {
	rng, err := validators.NewRange("0", "100")
	require.NoError(t, err)
	fm := NewFieldMapping("Price", core.TypeDecimal, rules.NewConstant("1"),
		WithRequired(), WithMaxLength(5), WithAttributes(rng))

	result := func(v string) *core.TransformationResult {
		r := core.NewResult(core.StringPtr(v))
		return &r
	}

	ok, msgs := fm.Validate(result("42"))
	assert.True(t, ok)
	assert.Empty(t, msgs)

	ok, msgs = fm.Validate(result(""))
	assert.False(t, ok)
	assert.Equal(t, []string{"a value is required"}, msgs)

	ok, msgs = fm.Validate(result("abc"))
	assert.False(t, ok)
	assert.Contains(t, msgs, `cannot convert "abc" to decimal`)

	ok, _ = fm.Validate(result("123456"))
	assert.False(t, ok)

	failed := core.NewResult(core.StringPtr("x")).WithError("boom")
	ok, msgs = fm.Validate(&failed)
	assert.False(t, ok)
	assert.Equal(t, []string{"boom"}, msgs)
}

// TestMapper_CheckFields tests missing field detection
func TestMapper_CheckFields(t *testing.T) {
	m := productMapper()
	assert.NoError(t, m.CheckFields(sourceTable()))

	m.Add(NewFieldMapping("Sku", core.TypeString,
		rules.NewCopy(core.NewFieldTransformation("Code"))))
	m.Add(NewFieldMapping("Region", core.TypeString, rules.NewFieldAccess("Area")))
	err := m.CheckFields(sourceTable())
	require.Error(t, err)

	var src *core.MissingSourceFieldsError
	require.True(t, errors.As(err, &src))
	assert.Equal(t, []string{"Area", "Code"}, src.Fields)

	var tgt *core.MissingTargetFieldsError
	require.True(t, errors.As(err, &tgt))
	assert.Equal(t, []string{"Region", "Sku"}, tgt.Fields)

	_, err = m.ApplyTable(context.Background(), sourceTable())
	assert.Error(t, err)
}

// TestMapper_ApplyTable tests end-to-end evaluation into an output table
func TestMapper_ApplyTable(t *testing.T) {
	m := productMapper()
	require.NoError(t, m.Prepare(sourceTable()))

	out, err := m.ApplyTable(context.Background(), sourceTable())
	require.NoError(t, err)

	assert.Equal(t, "products", out.Table.Name)
	assert.Equal(t, []string{"Name", "Price", "Contact", "Source"}, out.Table.Columns)
	require.Equal(t, 3, out.Table.Len())

	assert.Equal(t, "21.99", core.StringValue(out.Table.Cell(0, "Price")))
	assert.Equal(t, "5.5", core.StringValue(out.Table.Cell(1, "Price")))
	assert.Equal(t, "Ada Lovelace", core.StringValue(out.Table.Cell(0, "Contact")))
	assert.Equal(t, "legacy", core.StringValue(out.Table.Cell(2, "Source")))

	assert.Nil(t, out.Table.Cell(2, "Price"))
	assert.False(t, out.Valid())
	assert.Equal(t, 2, out.ErrorCount())
	assert.Contains(t, out.RowErrors(2), "Name")
	assert.Contains(t, out.RowErrors(2), "Price")
	assert.Nil(t, out.RowErrors(0))

	price := out.Results["Price"][0]
	assert.Equal(t, core.TypeDecimal, price.TargetFieldType)
	assert.Equal(t, []string{transform.TypeCalculate}, price.AppliedTransformations)
}

// TestMapper_ApplyRow tests single row evaluation
func TestMapper_ApplyRow(t *testing.T) {
	m := productMapper()
	row, err := m.ApplyRow(context.Background(), sourceTable(), 1)
	require.NoError(t, err)

	assert.Len(t, row, 4)
	assert.NotContains(t, row, "Notes")
	assert.Equal(t, "5.5", row["Price"].StringValue())
	assert.Equal(t, "Alan Turing", row["Contact"].StringValue())

	_, err = m.ApplyRow(context.Background(), sourceTable(), 9)
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Name", fe.Field)
	assert.ErrorIs(t, err, core.ErrRowOutOfRange)
}

// TestMapper_Materialize tests typed record conversion
func TestMapper_Materialize(t *testing.T) {
	m := productMapper()
	out, err := m.ApplyTable(context.Background(), sourceTable())
	require.NoError(t, err)

	rec, err := m.MaterializeRow(out, 0)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("21.99").Equal(rec["Price"].(decimal.Decimal)))
	assert.Equal(t, "Widget", rec["Name"])
	assert.NotContains(t, rec, "Notes")

	rec, err = m.MaterializeRow(out, 2)
	require.NoError(t, err)
	assert.Nil(t, rec["Price"])

	records, err := m.Materialize(out)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	_, err = m.MaterializeRow(out, 3)
	assert.ErrorIs(t, err, core.ErrRowOutOfRange)
}

// TestMapper_Preview tests per-step tracing of the first rows
func TestMapper_Preview(t *testing.T) {
	m := NewMapper(productTarget(),
		NewFieldMapping("Name", core.TypeString, rules.NewCopy(core.NewFieldTransformation("Name",
			transform.NewChangeCase("upper"),
			transform.NewSubstring(0, 3)))))

	rows, err := m.Preview(context.Background(), sourceTable(), 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	cell := rows[0].Cells["Name"]
	require.NotNil(t, cell)
	assert.Equal(t, "WID", cell.Result.StringValue())
	require.Len(t, cell.Traces, 1)

	steps := cell.Traces[0].Steps
	require.Len(t, steps, 2)
	assert.Equal(t, "Widget", core.StringValue(steps[0].Input))
	assert.Equal(t, "WIDGET", steps[0].Output.StringValue())
	assert.Equal(t, "WIDGET", core.StringValue(steps[1].Output.OriginalValue))
	assert.Equal(t, "WID", steps[1].Output.StringValue())

	all, err := m.Preview(context.Background(), sourceTable(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// TestMapper_Clone tests that clones share no rules
func TestMapper_Clone(t *testing.T) {
	m := productMapper()
	c := m.Clone()
	require.Len(t, c.Mappings, len(m.Mappings))
	assert.NotSame(t, m.Mappings[0].Rule, c.Mappings[0].Rule)

	c.Mappings[3].Rule.SetDetail("changed")
	assert.Equal(t, "legacy", m.Mappings[3].Rule.Detail())
}
