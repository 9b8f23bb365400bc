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

package writers

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aaronlmathis/importmap/core"
)

// Package writers provides implementations of core.DataSink for writing
// materialized destination records to files, databases and object stores.
//
// This file holds the value formatting shared by the text sinks.

// formatValue renders a materialized value as text. nil renders as "".
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case decimal.Decimal:
		return decimalText(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []string:
		return core.EncodeStrings(x)
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// decimalText renders d keeping its fractional scale, so 10.50 stays 10.50.
func decimalText(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// schemaColumns returns the column names of def in declaration order.
func schemaColumns(def core.TableDefinition) []string {
	cols := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		cols[i] = c.Name
	}
	return cols
}

// recordColumns returns the keys of record in sorted order. Sinks without a
// schema lay out their columns this way.
func recordColumns(record core.Record) []string {
	cols := make([]string, 0, len(record))
	for k := range record {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// countNulls records the nil values of record in counts.
func countNulls(counts map[string]int64, record core.Record) {
	for k, v := range record {
		if v == nil {
			counts[k]++
		}
	}
}

// quoteIdent quotes a SQL identifier unless it is already quoted.
func quoteIdent(name string) string {
	if strings.HasPrefix(name, `"`) {
		return name
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
