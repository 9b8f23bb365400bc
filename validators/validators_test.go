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

package validators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/importmap/core"
)

func ptr(s string) *string { return &s }

// TestAttributes tests each attribute against valid, invalid and nil values
func TestAttributes(t *testing.T) {
	pattern, err := NewPattern(`^[A-Z]{3}$`)
	require.NoError(t, err)
	rng, err := NewRange("0", "100")
	require.NoError(t, err)

	tests := []struct {
		name    string
		attr    Attribute
		value   *string
		wantErr bool
	}{
		{"required ok", Required{}, ptr("x"), false},
		{"required nil", Required{}, nil, true},
		{"required blank", Required{}, ptr("  "), true},
		{"length ok", StringLength{Max: 3}, ptr("abc"), false},
		{"length runes", StringLength{Max: 2}, ptr("é1"), false},
		{"length long", StringLength{Max: 3}, ptr("abcd"), true},
		{"length short", StringLength{Min: 2}, ptr("a"), true},
		{"length nil", StringLength{Max: 1}, nil, false},
		{"pattern ok", pattern, ptr("EUR"), false},
		{"pattern bad", pattern, ptr("eur"), true},
		{"range ok", rng, ptr("99.5"), false},
		{"range low", rng, ptr("-1"), true},
		{"range high", rng, ptr("100.01"), true},
		{"range non numeric", rng, ptr("n/a"), false},
		{"allowed ok", AllowedValues{Values: []string{"A", "B"}}, ptr("B"), false},
		{"allowed bad", AllowedValues{Values: []string{"A", "B"}}, ptr("C"), true},
		{"custom ok", Custom{Name: "even", Func: func(v *string) (bool, error) { return len(*v)%2 == 0, nil }}, ptr("ab"), false},
		{"custom bad", Custom{Name: "even", Func: func(v *string) (bool, error) { return len(*v)%2 == 0, nil }}, ptr("a"), true},
		{"custom error", Custom{Name: "boom", Func: func(*string) (bool, error) { return false, errors.New("x") }}, ptr("a"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.attr.Validate("F", tt.value)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "F", ve.Field)
			assert.Equal(t, tt.attr.Kind(), ve.Kind)
		})
	}
}

// TestDataType tests data type validation
func TestDataType(t *testing.T) {
	tests := []struct {
		typ   FieldDataType
		value string
		want  bool
	}{
		{FieldTypeInt, "42", true},
		{FieldTypeInt, "4.2", false},
		{FieldTypeDecimal, "4.20", true},
		{FieldTypeFloat, "abc", false},
		{FieldTypeBool, "yes", true},
		{FieldTypeBool, "maybe", false},
		{FieldTypeDate, "2024-02-29", true},
		{FieldTypeDate, "someday", false},
		{FieldTypeEmail, "a@b.io", true},
		{FieldTypeEmail, "a.b@io", false},
		{FieldTypeURL, "https://example.com/x", true},
		{FieldTypeURL, "example.com", false},
		{FieldTypeUUID, "123e4567-e89b-12d3-a456-426614174000", true},
		{FieldTypeUUID, "123e4567", false},
		{FieldTypeString, "anything", true},
		{FieldTypeAny, "anything", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ)+"/"+tt.value, func(t *testing.T) {
			err := DataType{Type: tt.typ}.Validate("F", ptr(tt.value))
			assert.Equal(t, tt.want, err == nil)
		})
	}
	assert.NoError(t, DataType{Type: FieldTypeInt}.Validate("F", nil))
}

// TestRun tests collecting every failure
func TestRun(t *testing.T) {
	errs := Run("Code", ptr("toolong"), StringLength{Max: 3}, AllowedValues{Values: []string{"A"}}, Required{})
	assert.Len(t, errs, 2)

	_, err := NewRange("x", "")
	assert.Error(t, err)
	_, err = NewPattern("(")
	assert.Error(t, err)
}

// TestDataQualityValidator tests batch checks over destination records
func TestDataQualityValidator(t *testing.T) {
	records := []core.Record{
		{"id": 1, "name": "a"},
		{"id": 2, "name": nil},
	}

	assert.NoError(t, NewDataQualityValidator(1, []string{"id"}).Validate(records))
	assert.Error(t, NewDataQualityValidator(3, nil).Validate(records))
	assert.Error(t, NewDataQualityValidator(0, nil, WithMaxRecords(1)).Validate(records))
	assert.Error(t, NewDataQualityValidator(0, []string{"email"}).Validate(records))
	assert.Error(t, NewDataQualityValidator(0, nil, WithForbiddenFields([]string{"name"})).Validate(records))
	assert.Error(t, NewDataQualityValidator(0, nil, WithMaxNullRate(0.25)).Validate(records))
	assert.NoError(t, NewDataQualityValidator(0, nil, WithMaxNullRate(0.5)).Validate(records))

	failing := WithCustomValidator(func([]core.Record) (bool, error) { return false, nil })
	assert.Error(t, NewDataQualityValidator(0, nil, failing).Validate(records))
	assert.NoError(t, NewDataQualityValidator(0, nil).Validate(nil))
}
