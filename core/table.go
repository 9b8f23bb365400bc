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

package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// DataRow is one source row: column name to cell value, nil for a null cell.
type DataRow map[string]*string

// Get returns the cell for column, nil when the column is absent or null.
func (r DataRow) Get(column string) *string {
	if r == nil {
		return nil
	}
	return r[column]
}

// Table is a tabular source: named columns of string-typed cells.
type Table struct {
	Name    string
	Columns []string
	Rows    []DataRow
}

// NewTable creates an empty table with the given column order.
func NewTable(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: append([]string(nil), columns...)}
}

// AddRow appends a positional row. Missing trailing values are null.
func (t *Table) AddRow(values ...*string) DataRow {
	row := make(DataRow, len(t.Columns))
	for i, col := range t.Columns {
		if i < len(values) {
			row[col] = values[i]
		} else {
			row[col] = nil
		}
	}
	t.Rows = append(t.Rows, row)
	return row
}

// AddStrings appends a positional row of non-null values.
func (t *Table) AddStrings(values ...string) DataRow {
	ptrs := make([]*string, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	return t.AddRow(ptrs...)
}

// HasColumn reports whether the table declares column.
func (t *Table) HasColumn(column string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Cell returns the value at row i and column, nil when out of range.
func (t *Table) Cell(i int, column string) *string {
	if t == nil || i < 0 || i >= len(t.Rows) {
		return nil
	}
	return t.Rows[i].Get(column)
}

// ColumnDefinition describes one destination column.
type ColumnDefinition struct {
	Name      string
	Type      ValueType
	Required  bool
	MaxLength int
}

// TableDefinition is the destination schema a mapping writes into.
type TableDefinition struct {
	Name    string
	Columns []ColumnDefinition
}

// HasColumn reports whether the definition declares column. An empty
// definition accepts any column.
func (d TableDefinition) HasColumn(column string) bool {
	if len(d.Columns) == 0 {
		return true
	}
	for _, c := range d.Columns {
		if c.Name == column {
			return true
		}
	}
	return false
}

// Column returns the definition for column.
func (d TableDefinition) Column(column string) (ColumnDefinition, bool) {
	for _, c := range d.Columns {
		if c.Name == column {
			return c, true
		}
	}
	return ColumnDefinition{}, false
}

// LoadTable drains src into a Table, converting every value to its string
// form. Column order comes from src when it implements ColumnSource; otherwise
// columns are ordered by first appearance, sorted within each record.
func LoadTable(ctx context.Context, name string, src DataSource) (*Table, error) {
	t := &Table{Name: name}
	seen := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("load table %s: row %d: %w", name, len(t.Rows), err)
		}
		var fresh []string
		row := make(DataRow, len(rec))
		for k, v := range rec {
			row[k] = Stringify(v)
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				fresh = append(fresh, k)
			}
		}
		sort.Strings(fresh)
		t.Columns = append(t.Columns, fresh...)
		t.Rows = append(t.Rows, row)
	}
	if cs, ok := src.(ColumnSource); ok {
		if cols := cs.Columns(); len(cols) > 0 {
			ordered := append([]string(nil), cols...)
			for _, c := range t.Columns {
				if !contains(ordered, c) {
					ordered = append(ordered, c)
				}
			}
			t.Columns = ordered
		}
	}
	return t, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Stringify converts a source value to its cell representation.
func Stringify(v interface{}) *string {
	var s string
	switch val := v.(type) {
	case nil:
		return nil
	case *string:
		return val
	case string:
		s = val
	case []byte:
		s = string(val)
	case bool:
		s = strconv.FormatBool(val)
	case int:
		s = strconv.Itoa(val)
	case int32:
		s = strconv.FormatInt(int64(val), 10)
	case int64:
		s = strconv.FormatInt(val, 10)
	case float32:
		s = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		s = val.Format(time.RFC3339)
	case fmt.Stringer:
		s = val.String()
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprint(val)
		} else {
			s = string(b)
		}
	default:
		s = fmt.Sprint(val)
	}
	return &s
}
