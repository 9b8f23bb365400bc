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
	"strings"
)

// Package core defines the core types for the ImportMap library.
//
// ImportMap maps a tabular source onto a destination schema through
// composable mapping rules, value transformations and comparison operations.
//
// This file contains the record and value types and the function adapters.

// Record represents a single materialized destination record.
// Each record is a map from field names to typed values.
type Record map[string]interface{}

// ValueType describes the type carried by a TransformationResult at a given
// stage. It decides numeric versus string semantics downstream.
type ValueType string

const (
	TypeString     ValueType = "string"
	TypeDecimal    ValueType = "decimal"
	TypeInt        ValueType = "int"
	TypeBool       ValueType = "bool"
	TypeDateTime   ValueType = "datetime"
	TypeCollection ValueType = "collection"
	TypeAny        ValueType = "any"
)

// ValueTypes lists every supported value type in declaration order.
var ValueTypes = []ValueType{TypeString, TypeDecimal, TypeInt, TypeBool, TypeDateTime, TypeCollection, TypeAny}

// ParseValueType resolves a type name, accepting a few common aliases.
// Unknown or empty names resolve to TypeString and ok=false.
func ParseValueType(name string) (ValueType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string", "text", "varchar":
		return TypeString, true
	case "decimal", "float", "double", "number", "numeric":
		return TypeDecimal, true
	case "int", "integer", "int64", "bigint":
		return TypeInt, true
	case "bool", "boolean":
		return TypeBool, true
	case "datetime", "date", "time", "timestamp":
		return TypeDateTime, true
	case "collection", "array":
		return TypeCollection, true
	case "any":
		return TypeAny, true
	}
	return TypeString, false
}

// IsNumeric reports whether the type is compared numerically.
func (t ValueType) IsNumeric() bool {
	return t == TypeDecimal || t == TypeInt
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// CustomFunc is a function adapter used by fieldless rules that resolve their
// value from outside the source table (lookups, generated keys and the like).
type CustomFunc func(ctx context.Context, in TransformationResult) (*string, error)

// Resolve calls f.
func (f CustomFunc) Resolve(ctx context.Context, in TransformationResult) (*string, error) {
	return f(ctx, in)
}

// ErrorHandlerFunc is a function adapter for the ErrorHandler interface.
// Allows ordinary functions to be used as error handlers.
type ErrorHandlerFunc func(ctx context.Context, record Record, err error) error

// HandleError implements the ErrorHandler interface for ErrorHandlerFunc.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, record Record, err error) error {
	return f(ctx, record, err)
}
