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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aaronlmathis/importmap/core"
)

// DateLayouts are the layouts tried, in order, when a value is parsed as a
// date without an explicit layout.
var DateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseDateTime parses s with the first matching layout of DateLayouts.
func ParseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range DateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseFloat parses s as a float64 after trimming white space.
func ParseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

// Convert coerces a cell value to the Go representation of t: string,
// decimal.Decimal, int64, bool, time.Time or, for collections, []string.
// A nil value converts to nil.
func Convert(value *string, t core.ValueType) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	switch t {
	case core.TypeDecimal:
		return convertToDecimal(*value)
	case core.TypeInt:
		return convertToInt(*value)
	case core.TypeBool:
		return convertToBool(*value)
	case core.TypeDateTime:
		return convertToTime(*value)
	case core.TypeCollection:
		return convertToStrings(*value)
	}
	return *value, nil
}

// convertToDecimal attempts to convert a value to decimal.Decimal.
func convertToDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("cannot convert %q to decimal", s)
	}
	return d, nil
}

// convertToInt attempts to convert a value to int64. Whole decimals such as
// "4.0" are accepted.
func convertToInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("cannot convert %q to int", s)
	}
	return d.IntPart(), nil
}

// convertToBool attempts to convert a value to bool.
func convertToBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("cannot convert %q to bool", s)
	}
	return b, nil
}

// convertToTime attempts to convert a value to time.Time.
func convertToTime(s string) (time.Time, error) {
	ts, ok := ParseDateTime(s)
	if !ok {
		return time.Time{}, fmt.Errorf("cannot convert %q to datetime", s)
	}
	return ts, nil
}

// convertToStrings decodes a collection carrier; a scalar becomes a
// one-element slice.
func convertToStrings(s string) ([]string, error) {
	if !core.IsCollection(&s) {
		return []string{s}, nil
	}
	items, err := core.ParseCollection(s)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = core.StringValue(item)
	}
	return out, nil
}
