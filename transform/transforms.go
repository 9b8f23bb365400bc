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
	"regexp"
	"strconv"
	"strings"

	"github.com/aaronlmathis/importmap/core"
)

// Package transform provides the value transformations of the ImportMap
// engine. Each transformation is a single chainable step consuming and
// producing a core.TransformationResult.
//
// Every step passes a failed input through unchanged and treats a nil value
// or an empty configuration as identity, so a chain stays usable while it is
// only partly configured.

// Registry identifiers.
const (
	TypeInterpolate = "interpolate"
	TypeCalculate   = "calculate"
	TypeRegexMatch  = "regexMatch"
	TypeSubstring   = "substring"
	TypeMap         = "map"
	TypeConditional = "conditional"
	TypeTrim        = "trim"
	TypeChangeCase  = "changeCase"
	TypeDateFormat  = "dateFormat"
)

var placeholderPattern = regexp.MustCompile(`\$\{(\d+)\}`)

// base carries the detail string and revision shared by every step.
type base struct {
	core.Revision
	detail string
}

func (b *base) Detail() string { return b.detail }

func (b *base) SetDetail(detail string) {
	b.detail = detail
	b.Touch()
}

func (b *base) ValidateDetail(string) error { return nil }

func (b *base) IsEmpty() bool { return strings.TrimSpace(b.detail) == "" }

// Placeholders returns the indexes referenced by ${i} tokens in template.
func Placeholders(template string) []int {
	var out []int
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if i, err := strconv.Atoi(m[1]); err == nil {
			out = append(out, i)
		}
	}
	return out
}

// FormatPlaceholders replaces every ${i} in template with values[i]. Indexes
// past the end of values, and nil values, are replaced with missing.
func FormatPlaceholders(template string, values []*string, missing string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		i, err := strconv.Atoi(token[2 : len(token)-1])
		if err != nil || i < 0 || i >= len(values) || values[i] == nil {
			return missing
		}
		return *values[i]
	})
}

// substitutionValues returns the values ${i} placeholders resolve against:
// the elements of a collection carrier, or the scalar value as ${0}.
func substitutionValues(in core.TransformationResult) []*string {
	elems, _ := in.Elements()
	return elems
}

// passThrough reports whether a step must return in unchanged.
func passThrough(in core.TransformationResult) bool {
	return in.WasFailure() || in.Value == nil
}

// Interpolate substitutes ${i} placeholders in its detail template.
type Interpolate struct {
	base
}

// NewInterpolate creates an interpolation step for template.
func NewInterpolate(template string) *Interpolate {
	return &Interpolate{base: base{detail: template}}
}

func (t *Interpolate) TypeID() string { return TypeInterpolate }

func (t *Interpolate) OutputType() core.ValueType { return core.TypeString }

func (t *Interpolate) Apply(_ context.Context, in core.TransformationResult) (core.TransformationResult, error) {
	if in.WasFailure() {
		return in, nil
	}
	if t.IsEmpty() {
		return in.WithValue(in.Value, core.TypeString), nil
	}
	if in.Value == nil {
		return in, nil
	}
	out := FormatPlaceholders(t.detail, substitutionValues(in), "")
	return in.WithValue(&out, core.TypeString), nil
}

func (t *Interpolate) Clone() core.ValueTransformation {
	c := *t
	return &c
}
