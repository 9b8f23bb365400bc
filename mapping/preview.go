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

	"github.com/aaronlmathis/importmap/core"
)

// Step is the outcome of one value transformation observed in isolation.
type Step struct {
	TypeID string
	Input  *string
	Output core.TransformationResult
}

// Trace is the chain of steps run for one bound source field.
type Trace struct {
	Field string
	Steps []Step
}

// Cell is a previewed destination value.
type Cell struct {
	Result *core.TransformationResult
	Traces []Trace
	Errors []string
}

// PreviewRow holds the cells of one source row keyed by destination column.
type PreviewRow struct {
	Index int
	Cells map[string]*Cell
}

// Preview evaluates the first n rows of table (all rows when n <= 0). Each
// step of every bound field chain is recorded with its own input, so a step's
// OriginalValue is the value it received rather than the raw cell.
func (m *Mapper) Preview(ctx context.Context, table *core.Table, n int) ([]PreviewRow, error) {
	if err := m.CheckFields(table); err != nil {
		return nil, err
	}
	if n <= 0 || n > table.Len() {
		n = table.Len()
	}

	rows := make([]PreviewRow, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := m.ApplyRow(ctx, table, i)
		if err != nil {
			return nil, err
		}
		row := PreviewRow{Index: i, Cells: make(map[string]*Cell, len(results))}
		for _, fm := range m.Mappings {
			res, ok := results[fm.FieldName]
			if !ok {
				continue
			}
			cell := &Cell{Result: res}
			if valid, msgs := fm.Validate(res); !valid {
				cell.Errors = msgs
			}
			for _, ft := range fm.Rule.FieldTransformations() {
				if ft.IsEmpty() {
					continue
				}
				tr, err := trace(ctx, ft, core.NewRowResult(table, i))
				if err != nil {
					return nil, &FieldError{Field: fm.FieldName, Err: err}
				}
				cell.Traces = append(cell.Traces, tr)
			}
			row.Cells[fm.FieldName] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func trace(ctx context.Context, ft *core.FieldTransformation, row core.TransformationResult) (Trace, error) {
	tr := Trace{Field: ft.Field.Name}
	cur := ft.Seed(row)
	for _, step := range ft.Transformations {
		in := cur.ResetOriginal()
		out, err := step.Apply(ctx, in)
		if err != nil {
			return tr, err
		}
		out = out.WithApplied(step.TypeID())
		tr.Steps = append(tr.Steps, Step{TypeID: step.TypeID(), Input: in.Value, Output: out})
		cur = out
	}
	return tr, nil
}
