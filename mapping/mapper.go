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
	"fmt"
	"sort"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/rules"
	"github.com/aaronlmathis/importmap/transform"
)

// Mapper evaluates a set of field mappings against a source table and
// produces destination rows.
type Mapper struct {
	Target   core.TableDefinition
	Mappings []*FieldMapping
}

// NewMapper creates a mapper for the target definition.
func NewMapper(target core.TableDefinition, mappings ...*FieldMapping) *Mapper {
	return &Mapper{Target: target, Mappings: mappings}
}

// Add appends a field mapping.
func (m *Mapper) Add(fm *FieldMapping) {
	m.Mappings = append(m.Mappings, fm)
}

// Mapping returns the field mapping for a destination field.
func (m *Mapper) Mapping(field string) (*FieldMapping, bool) {
	for _, fm := range m.Mappings {
		if fm.FieldName == field {
			return fm, true
		}
	}
	return nil, false
}

// Columns returns the destination columns in mapping order, skipping ignored
// mappings.
func (m *Mapper) Columns() []string {
	cols := make([]string, 0, len(m.Mappings))
	for _, fm := range m.Mappings {
		if !fm.IgnoreMapping() {
			cols = append(cols, fm.FieldName)
		}
	}
	return cols
}

// SourceFields returns every source column read anywhere in rule's tree.
func SourceFields(rule core.Rule) []string {
	seen := make(map[string]struct{})
	visited := make(map[core.Rule]struct{})
	var walk func(r core.Rule)
	walk = func(r core.Rule) {
		if r == nil {
			return
		}
		if _, ok := visited[r]; ok {
			return
		}
		visited[r] = struct{}{}
		for _, ft := range r.FieldTransformations() {
			if !ft.IsEmpty() {
				seen[ft.Field.Name] = struct{}{}
			}
		}
		if fa, ok := r.(*rules.FieldAccess); ok && fa.Detail() != "" {
			seen[fa.Detail()] = struct{}{}
		}
		for _, child := range r.Children() {
			walk(child)
		}
	}
	walk(rule)

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CheckFields reports source columns the mappings read that the source
// table lacks, and mapped fields the target definition does not declare.
func (m *Mapper) CheckFields(source *core.Table) error {
	var missingSource, missingTarget []string
	for _, fm := range m.Mappings {
		if !m.Target.HasColumn(fm.FieldName) {
			missingTarget = append(missingTarget, fm.FieldName)
		}
		if fm.IgnoreMapping() {
			continue
		}
		for _, name := range SourceFields(fm.Rule) {
			if !source.HasColumn(name) {
				missingSource = append(missingSource, name)
			}
		}
	}
	return core.MissingFieldsError(missingSource, missingTarget)
}

// Prepare checks the configuration of every mapping against source. All
// problems are reported together.
func (m *Mapper) Prepare(source *core.Table) error {
	var errs []error
	if err := m.CheckFields(source); err != nil {
		errs = append(errs, err)
	}
	for _, fm := range m.Mappings {
		if err := fm.CheckReady(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ApplyRow evaluates every non-ignored mapping for row i.
func (m *Mapper) ApplyRow(ctx context.Context, table *core.Table, i int) (map[string]*core.TransformationResult, error) {
	out := make(map[string]*core.TransformationResult, len(m.Mappings))
	for _, fm := range m.Mappings {
		if fm.IgnoreMapping() {
			continue
		}
		res, err := fm.Rule.ApplyRow(ctx, table, i)
		if err != nil {
			return nil, &FieldError{Field: fm.FieldName, Err: err}
		}
		fm.applied = true
		out[fm.FieldName] = typed(res, fm.FieldType)
	}
	return out, nil
}

// Output is the evaluated destination table. Cell errors are kept out of
// band so that the table itself holds only values.
type Output struct {
	Table      *core.Table
	CellErrors map[int]map[string][]string
	Results    map[string][]*core.TransformationResult
}

// Valid reports whether no cell failed validation.
func (o *Output) Valid() bool {
	return len(o.CellErrors) == 0
}

// RowErrors returns the failures of row i keyed by destination column.
func (o *Output) RowErrors(i int) map[string][]string {
	return o.CellErrors[i]
}

// ErrorCount returns the number of failed cells.
func (o *Output) ErrorCount() int {
	n := 0
	for _, row := range o.CellErrors {
		n += len(row)
	}
	return n
}

func (o *Output) addError(row int, column string, msgs []string) {
	if o.CellErrors == nil {
		o.CellErrors = make(map[int]map[string][]string)
	}
	if o.CellErrors[row] == nil {
		o.CellErrors[row] = make(map[string][]string)
	}
	o.CellErrors[row][column] = append(o.CellErrors[row][column], msgs...)
}

// ApplyTable evaluates every mapping over table. Rows keep the order of the
// source; a nil result becomes a null cell.
func (m *Mapper) ApplyTable(ctx context.Context, table *core.Table) (*Output, error) {
	if err := m.CheckFields(table); err != nil {
		return nil, err
	}
	cols := m.Columns()
	out := &Output{
		Table:   core.NewTable(m.Target.Name, cols...),
		Results: make(map[string][]*core.TransformationResult, len(cols)),
	}
	for i := 0; i < table.Len(); i++ {
		out.Table.Rows = append(out.Table.Rows, make(core.DataRow, len(cols)))
	}

	for _, fm := range m.Mappings {
		if fm.IgnoreMapping() {
			if fm.Required {
				return nil, &FieldError{Field: fm.FieldName, Err: core.ErrRequiredFieldIgnored}
			}
			continue
		}
		results, err := fm.Rule.ApplyTable(ctx, table)
		if err != nil {
			return nil, &FieldError{Field: fm.FieldName, Err: err}
		}
		if len(results) != table.Len() {
			return nil, &FieldError{Field: fm.FieldName, Err: fmt.Errorf("%d results for %d rows: %w", len(results), table.Len(), core.ErrFieldCountMismatch)}
		}
		fm.applied = true

		column := make([]*core.TransformationResult, len(results))
		for i, res := range results {
			res = typed(res, fm.FieldType)
			column[i] = res
			if res != nil && !res.WasFailure() {
				out.Table.Rows[i][fm.FieldName] = res.Value
			} else {
				out.Table.Rows[i][fm.FieldName] = nil
			}
			if ok, msgs := fm.Validate(res); !ok {
				out.addError(i, fm.FieldName, msgs)
			}
		}
		out.Results[fm.FieldName] = column
	}
	return out, nil
}

// MaterializeRow converts row i of out into a record typed by each mapping's
// FieldType.
func (m *Mapper) MaterializeRow(out *Output, i int) (core.Record, error) {
	if i < 0 || i >= out.Table.Len() {
		return nil, fmt.Errorf("materialize row %d: %w", i, core.ErrRowOutOfRange)
	}
	rec := make(core.Record, len(out.Table.Columns))
	for _, col := range out.Table.Columns {
		typ := core.TypeString
		if fm, ok := m.Mapping(col); ok {
			typ = fm.FieldType
		}
		cell := out.Table.Rows[i][col]
		if cell != nil && *cell == "" && typ != core.TypeString && typ != core.TypeAny {
			rec[col] = nil
			continue
		}
		v, err := transform.Convert(cell, typ)
		if err != nil {
			return nil, fmt.Errorf("materialize row %d: field %s: %w", i, col, err)
		}
		rec[col] = v
	}
	return rec, nil
}

// Materialize converts every row of out into typed records.
func (m *Mapper) Materialize(out *Output) ([]core.Record, error) {
	records := make([]core.Record, 0, out.Table.Len())
	for i := 0; i < out.Table.Len(); i++ {
		rec, err := m.MaterializeRow(out, i)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Clone deep-copies the mapper and all of its rules.
func (m *Mapper) Clone() *Mapper {
	c := &Mapper{Target: m.Target, Mappings: make([]*FieldMapping, len(m.Mappings))}
	c.Target.Columns = append([]core.ColumnDefinition(nil), m.Target.Columns...)
	for i, fm := range m.Mappings {
		c.Mappings[i] = fm.Clone()
	}
	return c
}

func typed(res *core.TransformationResult, t core.ValueType) *core.TransformationResult {
	if res == nil {
		return nil
	}
	r := res.WithTargetType(t)
	return &r
}
