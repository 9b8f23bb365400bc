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

// attributes.go - Destination field validation attributes
package validators

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aaronlmathis/importmap/transform"
)

// Attribute is a validation rule attached to a destination field. Validate
// returns nil for a valid value and a *ValidationError otherwise. Only
// Required rejects a nil value; every other attribute accepts it.
type Attribute interface {
	Kind() string
	Validate(field string, value *string) error
}

// Attribute kinds, also used as the type key in configuration files.
const (
	KindRequired      = "required"
	KindStringLength  = "stringLength"
	KindPattern       = "pattern"
	KindRange         = "range"
	KindAllowedValues = "allowedValues"
	KindDataType      = "dataType"
	KindCustom        = "custom"
)

// ValidationError describes a value rejected by an attribute.
type ValidationError struct {
	Field   string
	Kind    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Message)
}

func invalid(field, kind, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Required rejects nil and blank values.
type Required struct{}

func (Required) Kind() string { return KindRequired }

func (Required) Validate(field string, value *string) error {
	if value == nil || strings.TrimSpace(*value) == "" {
		return invalid(field, KindRequired, "a value is required")
	}
	return nil
}

// StringLength bounds the rune length of a value. A zero Max is unbounded.
type StringLength struct {
	Min int
	Max int
}

func (StringLength) Kind() string { return KindStringLength }

func (a StringLength) Validate(field string, value *string) error {
	if value == nil {
		return nil
	}
	n := utf8.RuneCountInString(*value)
	if n < a.Min {
		return invalid(field, KindStringLength, "length %d is shorter than %d", n, a.Min)
	}
	if a.Max > 0 && n > a.Max {
		return invalid(field, KindStringLength, "length %d exceeds maximum %d", n, a.Max)
	}
	return nil
}

// Pattern requires the value to match a regular expression.
type Pattern struct {
	Regexp *regexp.Regexp
}

// NewPattern compiles expr into a Pattern attribute.
func NewPattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern %q: %w", expr, err)
	}
	return Pattern{Regexp: re}, nil
}

func (Pattern) Kind() string { return KindPattern }

func (a Pattern) Validate(field string, value *string) error {
	if value == nil || a.Regexp == nil {
		return nil
	}
	if !a.Regexp.MatchString(*value) {
		return invalid(field, KindPattern, "value '%s' does not match pattern %s", *value, a.Regexp)
	}
	return nil
}

// Range bounds a numeric value. Nil limits are open. Non-numeric values are
// left to DataType.
type Range struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

// NewRange parses the limits; an empty string leaves that side open.
func NewRange(min, max string) (Range, error) {
	var r Range
	for _, side := range []struct {
		raw string
		dst **decimal.Decimal
	}{{min, &r.Min}, {max, &r.Max}} {
		if strings.TrimSpace(side.raw) == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(side.raw))
		if err != nil {
			return Range{}, fmt.Errorf("range limit %q: %w", side.raw, err)
		}
		*side.dst = &d
	}
	return r, nil
}

func (Range) Kind() string { return KindRange }

func (a Range) Validate(field string, value *string) error {
	if value == nil {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*value))
	if err != nil {
		return nil
	}
	if a.Min != nil && d.LessThan(*a.Min) {
		return invalid(field, KindRange, "value %s below minimum %s", d, a.Min)
	}
	if a.Max != nil && d.GreaterThan(*a.Max) {
		return invalid(field, KindRange, "value %s above maximum %s", d, a.Max)
	}
	return nil
}

// AllowedValues whitelists exact values.
type AllowedValues struct {
	Values []string
}

func (AllowedValues) Kind() string { return KindAllowedValues }

func (a AllowedValues) Validate(field string, value *string) error {
	if value == nil {
		return nil
	}
	for _, v := range a.Values {
		if v == *value {
			return nil
		}
	}
	return invalid(field, KindAllowedValues, "value '%s' not in allowed values", *value)
}

// FieldDataType represents expected data types for validation
type FieldDataType string

const (
	FieldTypeString  FieldDataType = "string"
	FieldTypeInt     FieldDataType = "int"
	FieldTypeFloat   FieldDataType = "float"
	FieldTypeDecimal FieldDataType = "decimal"
	FieldTypeBool    FieldDataType = "bool"
	FieldTypeDate    FieldDataType = "date"
	FieldTypeEmail   FieldDataType = "email"
	FieldTypeURL     FieldDataType = "url"
	FieldTypeUUID    FieldDataType = "uuid"
	FieldTypeAny     FieldDataType = "any"
)

// DataType requires the value to parse as Type.
type DataType struct {
	Type FieldDataType
}

func (DataType) Kind() string { return KindDataType }

func (a DataType) Validate(field string, value *string) error {
	if value == nil || *value == "" {
		return nil
	}
	if !validateDataType(*value, a.Type) {
		return invalid(field, KindDataType, "value '%s' has invalid type, expected %s", *value, a.Type)
	}
	return nil
}

// validateDataType checks if a value parses as the expected data type
func validateDataType(value string, expectedType FieldDataType) bool {
	value = strings.TrimSpace(value)
	switch expectedType {
	case FieldTypeInt:
		_, err := strconv.ParseInt(value, 10, 64)
		return err == nil
	case FieldTypeFloat, FieldTypeDecimal:
		_, err := decimal.NewFromString(value)
		return err == nil
	case FieldTypeBool:
		switch strings.ToLower(value) {
		case "yes", "no", "y", "n", "on", "off":
			return true
		}
		_, err := strconv.ParseBool(value)
		return err == nil
	case FieldTypeDate:
		_, ok := transform.ParseDateTime(value)
		return ok
	case FieldTypeEmail:
		at := strings.LastIndex(value, "@")
		return at > 0 && strings.Contains(value[at:], ".")
	case FieldTypeURL:
		u, err := url.ParseRequestURI(value)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	case FieldTypeUUID:
		_, err := uuid.Parse(value)
		return err == nil
	default:
		return true // Unknown types pass validation
	}
}

// Custom wraps a caller supplied check.
type Custom struct {
	Name string
	Func func(value *string) (bool, error)
}

func (Custom) Kind() string { return KindCustom }

func (a Custom) Validate(field string, value *string) error {
	if a.Func == nil {
		return nil
	}
	ok, err := a.Func(value)
	if err != nil {
		return invalid(field, KindCustom, "%s: %v", a.Name, err)
	}
	if !ok {
		return invalid(field, KindCustom, "failed %s validation", a.Name)
	}
	return nil
}

// Run applies attrs to value and returns every failure.
func Run(field string, value *string, attrs ...Attribute) []error {
	var errs []error
	for _, a := range attrs {
		if err := a.Validate(field, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
