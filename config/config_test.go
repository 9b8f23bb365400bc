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

package config

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/filter"
	"github.com/aaronlmathis/importmap/mapping"
	"github.com/aaronlmathis/importmap/registry"
	"github.com/aaronlmathis/importmap/rules"
	"github.com/aaronlmathis/importmap/transform"
)

const productsYAML = `
version: "1"
target: products
fields:
  - name: Price
    type: decimal
    required: true
    maxLength: 12
    validation:
      - type: range
        min: "0"
    rule:
      type: copy
      sources:
        - field: Price
          transformations:
            - type: calculate
              detail: "${0} * 1.1"
              decimalPlaces: 2
  - name: Label
    rule:
      type: combineFields
      detail: "${0} (${1})"
      sources:
        - field: Name
          transformations:
            - type: changeCase
              detail: upper
        - field: Code
  - name: Size
    rule:
      type: conditional
      comparison:
        type: greaterThan
        left:
          type: fieldAccess
          detail: Qty
        right:
          type: constant
          detail: "10"
      whenTrue:
        type: constant
        detail: bulk
      whenFalse:
        type: constant
        detail: single
  - name: Country
    validation:
      - type: allowedValues
        values: [United States, Canada]
    rule:
      type: copy
      sources:
        - field: Country
          transformations:
            - type: trim
            - type: map
              mappings:
                - from: US
                  to: United States
                - from: CA
                  to: Canada
  - name: Flagged
    type: bool
    rule:
      type: conditional
      comparison:
        type: or
        conditions:
          - type: in
            left:
              type: fieldAccess
              detail: Code
            values:
              - type: constant
                detail: W-1
              - type: constant
                detail: Z
          - type: not
            conditions:
              - type: regexMatch
                pattern: "^[A-Z]-"
                left:
                  type: fieldAccess
                  detail: Code
      whenTrue:
        type: constant
        detail: "true"
      whenFalse:
        type: constant
        detail: "false"
  - name: Legacy
    rule:
      type: ignore
`

func productTable() *core.Table {
	t := core.NewTable("import", "Name", "Price", "Qty", "Code", "Country")
	t.AddStrings("Widget", "19.99", "12", "W-1", " US ")
	t.AddStrings("Gadget", "5", "3", "G-22", "CA")
	t.AddStrings("Gizmo", "-1", "40", "Z", "FR")
	return t
}

// TestParseBuild tests building a mapper from YAML and evaluating a table
func TestParseBuild(t *testing.T) {
	cfg, err := Parse([]byte(productsYAML))
	require.NoError(t, err)
	assert.Equal(t, "1", cfg.Version)
	require.Len(t, cfg.Fields, 6)

	m, err := Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, "products", m.Target.Name)
	require.Len(t, m.Target.Columns, 6)
	assert.Equal(t, core.TypeDecimal, m.Target.Columns[0].Type)
	require.NoError(t, m.Prepare(productTable()))

	out, err := m.ApplyTable(context.Background(), productTable())
	require.NoError(t, err)
	assert.Equal(t, []string{"Price", "Label", "Size", "Country", "Flagged"}, out.Table.Columns)

	cell := func(i int, col string) string { return core.StringValue(out.Table.Cell(i, col)) }
	assert.Equal(t, "21.99", cell(0, "Price"))
	assert.Equal(t, "WIDGET (W-1)", cell(0, "Label"))
	assert.Equal(t, "bulk", cell(0, "Size"))
	assert.Equal(t, "single", cell(1, "Size"))
	assert.Equal(t, "United States", cell(0, "Country"))
	assert.Equal(t, "Canada", cell(1, "Country"))
	assert.Equal(t, "true", cell(0, "Flagged"))
	assert.Equal(t, "false", cell(1, "Flagged"))
	assert.Equal(t, "true", cell(2, "Flagged"))

	assert.Nil(t, out.RowErrors(0))
	assert.Contains(t, out.RowErrors(2), "Price")
	assert.Contains(t, out.RowErrors(2), "Country")
}

// TestBuild_Errors tests configuration errors and their paths
func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		path     string
		sentinel error
	}{
		{
			name:     "unknown rule",
			yaml:     "fields:\n  - name: A\n    rule:\n      type: nope\n",
			path:     "fields[0].rule",
			sentinel: registry.ErrTypeNotRegistered,
		},
		{
			name:     "unknown transformation",
			yaml:     "fields:\n  - name: A\n    rule:\n      type: copy\n      sources:\n        - field: A\n          transformations:\n            - type: nope\n",
			path:     "fields[0].rule.sources[0].transformations[0]",
			sentinel: registry.ErrTypeNotRegistered,
		},
		{
			name:     "missing operand",
			yaml:     "fields:\n  - name: A\n    rule:\n      type: conditional\n      comparison:\n        type: greaterThan\n        left:\n          type: constant\n          detail: \"1\"\n",
			path:     "fields[0].rule.comparison",
			sentinel: core.ErrMissingOperand,
		},
		{
			name:     "too many sources",
			yaml:     "fields:\n  - name: A\n    rule:\n      type: copy\n      sources:\n        - field: A\n        - field: B\n",
			path:     "fields[0].rule.sources[1]",
			sentinel: core.ErrTooManySourceFields,
		},
		{
			name:     "invalid calculation",
			yaml:     "fields:\n  - name: A\n    rule:\n      type: copy\n      sources:\n        - field: A\n          transformations:\n            - type: calculate\n              detail: \"${0} * (\"\n",
			path:     "fields[0].rule.sources[0].transformations[0].detail",
			sentinel: transform.ErrInvalidCalculation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = Build(cfg)
			require.Error(t, err)

			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.path, ce.Path)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

// TestParse_Errors tests schema level rejections
func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("version: \"2\"\nfields: []\n"))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Parse([]byte("fields:\n  - name: A\n    colour: red\n"))
	assert.Error(t, err)

	_, err = Parse(nil)
	assert.Error(t, err)

	cfg, err := Parse([]byte("fields:\n  - name: A\n    type: money\n"))
	require.NoError(t, err)
	_, err = Build(cfg)
	assert.Error(t, err)
}

// TestBuild_CustomFunctions tests named resolvers and validators
func TestBuild_CustomFunctions(t *testing.T) {
	const doc = `
fields:
  - name: Region
    validation:
      - type: custom
        name: notBlank
    rule:
      type: customFieldless
      detail: region
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	_, err = Build(cfg)
	assert.Error(t, err)

	lookup := func(_ context.Context, in core.TransformationResult) (*string, error) {
		return core.StringPtr("region-" + core.StringValue(in.Record.Get("Code"))), nil
	}
	notBlank := func(v *string) (bool, error) { return core.StringValue(v) != "", nil }
	m, err := Build(cfg, WithFunc("region", lookup), WithValidator("notBlank", notBlank))
	require.NoError(t, err)

	row, err := m.ApplyRow(context.Background(), productTable(), 1)
	require.NoError(t, err)
	assert.Equal(t, "region-G-22", row["Region"].StringValue())
}

// TestExport_RoundTrip tests that an exported mapper rebuilds to the same output
func TestExport_RoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(productsYAML))
	require.NoError(t, err)
	m, err := Build(cfg)
	require.NoError(t, err)

	exported, err := Export(m)
	require.NoError(t, err)
	data, err := Marshal(exported)
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	rebuilt, err := Build(again)
	require.NoError(t, err)

	want, err := m.ApplyTable(context.Background(), productTable())
	require.NoError(t, err)
	got, err := rebuilt.ApplyTable(context.Background(), productTable())
	require.NoError(t, err)
	assert.Equal(t, want.Table.Rows, got.Table.Rows)
	assert.Equal(t, want.CellErrors, got.CellErrors)

	reexported, err := Export(rebuilt)
	require.NoError(t, err)
	data2, err := Marshal(reexported)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(data2))
	assert.Empty(t, reexported.Columns)
}

// TestExport_Programmatic tests exporting a mapper assembled in code
func TestExport_Programmatic(t *testing.T) {
	cond := rules.NewConditional()
	require.NoError(t, cond.SetComparison(filter.NewBetween(
		rules.NewFieldAccess("Qty"), rules.NewConstant("1"), rules.NewConstant("10"))))
	require.NoError(t, cond.SetBranches(rules.NewConstant("small"), rules.NewConstant("large")))

	m, err := Build(&Config{Target: "t"})
	require.NoError(t, err)
	m.Target.Columns = []core.ColumnDefinition{{Name: "Size", Type: core.TypeString}, {Name: "Extra", Type: core.TypeInt}}
	m.Mappings = nil
	m.Add(mapping.NewFieldMapping("Size", core.TypeString, cond))

	cfg, err := Export(m)
	require.NoError(t, err)
	require.Len(t, cfg.Columns, 2)
	node := cfg.Fields[0].Rule
	require.NotNil(t, node.Comparison)
	assert.Equal(t, filter.TypeBetween, node.Comparison.Type)
	assert.Equal(t, "Qty", node.Comparison.Left.Detail)
	assert.Equal(t, "10", node.Comparison.HighLimit.Detail)
	assert.Equal(t, "small", node.WhenTrue.Detail)

	rebuilt, err := Build(cfg)
	require.NoError(t, err)
	row, err := rebuilt.ApplyRow(context.Background(), productTable(), 1)
	require.NoError(t, err)
	assert.Equal(t, "small", row["Size"].StringValue())
}

// TestFiles tests writing and loading a configuration file
func TestFiles(t *testing.T) {
	cfg, err := Parse([]byte(productsYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, WriteFile(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
