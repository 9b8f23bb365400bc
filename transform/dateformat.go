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
	"time"

	"github.com/aaronlmathis/importmap/core"
)

// DateFormat re-renders a date value. The detail is the output layout; an
// empty InputLayout tries the DateLayouts list.
type DateFormat struct {
	base
	InputLayout string
}

// NewDateFormat creates a date formatting step.
func NewDateFormat(inputLayout, outputLayout string) *DateFormat {
	return &DateFormat{base: base{detail: outputLayout}, InputLayout: inputLayout}
}

func (t *DateFormat) TypeID() string { return TypeDateFormat }

func (t *DateFormat) OutputType() core.ValueType { return core.TypeDateTime }

func (t *DateFormat) Apply(_ context.Context, in core.TransformationResult) (core.TransformationResult, error) {
	if passThrough(in) || t.IsEmpty() {
		return in, nil
	}
	if in.IsCollection() {
		return in.WithError(core.ErrMsgCollection), nil
	}
	raw := strings.TrimSpace(*in.Value)
	if raw == "" {
		return in, nil
	}
	var (
		ts  time.Time
		err error
	)
	if t.InputLayout != "" {
		ts, err = time.Parse(t.InputLayout, raw)
	} else {
		var ok bool
		if ts, ok = ParseDateTime(raw); !ok {
			err = fmt.Errorf("no known layout matches")
		}
	}
	if err != nil {
		return in.WithError(fmt.Sprintf("cannot parse %q as a date: %v", raw, err)), nil
	}
	out := ts.Format(t.detail)
	return in.WithValue(&out, core.TypeDateTime), nil
}

func (t *DateFormat) Clone() core.ValueTransformation {
	c := *t
	return &c
}
