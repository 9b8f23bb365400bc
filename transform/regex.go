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
	"regexp"

	"github.com/aaronlmathis/importmap/core"
)

// RegexMatch extracts the matches of its detail pattern. One match yields a
// scalar, two or more yield a collection carrier.
type RegexMatch struct {
	base
	compiled *regexp.Regexp
	compErr  error
}

// NewRegexMatch creates a match step for pattern.
func NewRegexMatch(pattern string) *RegexMatch {
	return &RegexMatch{base: base{detail: pattern}}
}

func (t *RegexMatch) TypeID() string { return TypeRegexMatch }

func (t *RegexMatch) OutputType() core.ValueType { return core.TypeString }

func (t *RegexMatch) SetDetail(detail string) {
	t.base.SetDetail(detail)
	t.compiled, t.compErr = nil, nil
}

func (t *RegexMatch) ValidateDetail(detail string) error {
	if _, err := regexp.Compile(detail); err != nil {
		return fmt.Errorf("invalid regular expression: %w", err)
	}
	return nil
}

func (t *RegexMatch) pattern() (*regexp.Regexp, error) {
	if t.compiled == nil && t.compErr == nil {
		t.compiled, t.compErr = regexp.Compile(t.detail)
	}
	return t.compiled, t.compErr
}

func (t *RegexMatch) Apply(_ context.Context, in core.TransformationResult) (core.TransformationResult, error) {
	if passThrough(in) {
		return in, nil
	}
	if in.IsCollection() {
		return in.WithError(core.ErrMsgCollection), nil
	}
	if t.detail == "" {
		wrapped := core.EncodeCollection([]*string{in.Value})
		return in.WithValue(&wrapped, core.TypeCollection), nil
	}
	re, err := t.pattern()
	if err != nil {
		return in.WithError(fmt.Sprintf("invalid regular expression: %v", err)), nil
	}

	matches := re.FindAllString(*in.Value, -1)
	switch len(matches) {
	case 0:
		empty := ""
		return in.WithValue(&empty, core.TypeString), nil
	case 1:
		return in.WithValue(&matches[0], core.TypeString), nil
	}
	out := core.EncodeStrings(matches)
	return in.WithValue(&out, core.TypeCollection), nil
}

func (t *RegexMatch) Clone() core.ValueTransformation {
	c := *t
	return &c
}
