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
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

// IsCollection reports whether v is a collection carrier: a string that
// starts with '[' and parses as a JSON array.
func IsCollection(v *string) bool {
	if v == nil {
		return false
	}
	s := strings.TrimSpace(*v)
	if !strings.HasPrefix(s, "[") {
		return false
	}
	var raw []json.RawMessage
	return json.Unmarshal([]byte(s), &raw) == nil
}

// ParseCollection decodes a collection carrier. String elements are unquoted,
// JSON null becomes a nil element and any other element keeps its JSON text.
func ParseCollection(s string) ([]*string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &raw); err != nil {
		return nil, err
	}
	out := make([]*string, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		switch {
		case bytes.Equal(item, []byte("null")):
			out[i] = nil
		case len(item) > 0 && item[0] == '"':
			var str string
			if err := json.Unmarshal(item, &str); err != nil {
				return nil, err
			}
			out[i] = &str
		default:
			text := string(item)
			out[i] = &text
		}
	}
	return out, nil
}

// EncodeCollection encodes values as a JSON array of strings; nil elements
// encode as null.
func EncodeCollection(values []*string) string {
	if values == nil {
		values = []*string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return "[]"
	}
	return strings.TrimRight(buf.String(), "\n")
}

// EncodeStrings is EncodeCollection for plain strings.
func EncodeStrings(values []string) string {
	ptrs := make([]*string, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	return EncodeCollection(ptrs)
}
