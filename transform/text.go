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
	"fmt"
	"strings"
	"unicode"

	"github.com/aaronlmathis/importmap/core"
)

// Trim removes the characters of its detail cutset from both ends of the
// value; an empty cutset trims white space.
type Trim struct {
	base
}

// NewTrim creates a trim step.
func NewTrim(cutset string) *Trim {
	return &Trim{base: base{detail: cutset}}
}

func (t *Trim) TypeID() string { return TypeTrim }

func (t *Trim) OutputType() core.ValueType { return core.TypeString }

// IsEmpty is always false: an empty cutset still trims white space.
func (t *Trim) IsEmpty() bool { return false }

func (t *Trim) Apply(_ context.Context, in core.TransformationResult) (core.TransformationResult, error) {
	if passThrough(in) {
		return in, nil
	}
	if in.IsCollection() {
		return in.WithError(core.ErrMsgCollection), nil
	}
	var out string
	if t.detail == "" {
		out = strings.TrimSpace(*in.Value)
	} else {
		out = strings.Trim(*in.Value, t.detail)
	}
	return in.WithValue(&out, core.TypeString), nil
}

func (t *Trim) Clone() core.ValueTransformation {
	c := *t
	return &c
}

// Case modes accepted by ChangeCase.
const (
	CaseUpper = "upper"
	CaseLower = "lower"
	CaseTitle = "title"
)

// ChangeCase converts the value to upper, lower or title case.
type ChangeCase struct {
	base
}

// NewChangeCase creates a case step for mode.
func NewChangeCase(mode string) *ChangeCase {
	return &ChangeCase{base: base{detail: mode}}
}

func (t *ChangeCase) TypeID() string { return TypeChangeCase }

func (t *ChangeCase) OutputType() core.ValueType { return core.TypeString }

func (t *ChangeCase) ValidateDetail(detail string) error {
	switch strings.ToLower(strings.TrimSpace(detail)) {
	case "", CaseUpper, CaseLower, CaseTitle:
		return nil
	}
	return fmt.Errorf("unknown case mode %q", detail)
}

func (t *ChangeCase) Apply(_ context.Context, in core.TransformationResult) (core.TransformationResult, error) {
	if in.WasFailure() || t.IsEmpty() {
		return in, nil
	}
	if err := t.ValidateDetail(t.detail); err != nil {
		return in, err
	}
	if in.Value == nil {
		return in, nil
	}
	if in.IsCollection() {
		return in.WithError(core.ErrMsgCollection), nil
	}
	var out string
	switch strings.ToLower(strings.TrimSpace(t.detail)) {
	case CaseUpper:
		out = strings.ToUpper(*in.Value)
	case CaseLower:
		out = strings.ToLower(*in.Value)
	case CaseTitle:
		out = titleCase(*in.Value)
	}
	return in.WithValue(&out, core.TypeString), nil
}

func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	start := true
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			start = true
			b.WriteRune(r)
			continue
		}
		if start {
			b.WriteRune(unicode.ToUpper(r))
			start = false
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func (t *ChangeCase) Clone() core.ValueTransformation {
	c := *t
	return &c
}
