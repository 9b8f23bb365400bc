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
	"strconv"
	"strings"

	"github.com/aaronlmathis/importmap/core"
)

// Substring keeps at most MaxLength runes starting at StartIndex. A negative
// MaxLength keeps everything to the end. Bounds are clamped to the value.
//
// The detail form is "start" or "start,length".
type Substring struct {
	base
	StartIndex int
	MaxLength  int
}

// NewSubstring creates a substring step.
func NewSubstring(start, length int) *Substring {
	s := &Substring{StartIndex: start, MaxLength: length}
	s.detail = s.formatDetail()
	return s
}

func (t *Substring) TypeID() string { return TypeSubstring }

func (t *Substring) OutputType() core.ValueType { return core.TypeString }

func (t *Substring) IsEmpty() bool { return t.StartIndex <= 0 && t.MaxLength < 0 }

func (t *Substring) formatDetail() string {
	if t.MaxLength < 0 {
		return strconv.Itoa(t.StartIndex)
	}
	return fmt.Sprintf("%d,%d", t.StartIndex, t.MaxLength)
}

func parseSubstringDetail(detail string) (start, length int, err error) {
	length = -1
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return 0, -1, nil
	}
	parts := strings.SplitN(detail, ",", 2)
	if start, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, -1, fmt.Errorf("substring start %q: %w", parts[0], err)
	}
	if len(parts) == 2 {
		if length, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
			return 0, -1, fmt.Errorf("substring length %q: %w", parts[1], err)
		}
	}
	return start, length, nil
}

func (t *Substring) ValidateDetail(detail string) error {
	_, _, err := parseSubstringDetail(detail)
	return err
}

// SetDetail parses "start[,length]". An unparseable detail leaves the bounds unchanged.
func (t *Substring) SetDetail(detail string) {
	t.base.SetDetail(detail)
	if start, length, err := parseSubstringDetail(detail); err == nil {
		t.StartIndex, t.MaxLength = start, length
	}
}

func (t *Substring) Apply(_ context.Context, in core.TransformationResult) (core.TransformationResult, error) {
	if passThrough(in) {
		return in, nil
	}
	runes := []rune(*in.Value)
	start := t.StartIndex
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		start = len(runes)
	}
	end := len(runes)
	if t.MaxLength >= 0 && start+t.MaxLength < end {
		end = start + t.MaxLength
	}
	out := string(runes[start:end])
	return in.WithValue(&out, core.TypeString), nil
}

func (t *Substring) Clone() core.ValueTransformation {
	c := *t
	return &c
}
