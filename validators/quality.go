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

// quality.go - Batch data quality checks over materialized destination records
package validators

import (
	"fmt"
	"sort"

	"github.com/aaronlmathis/importmap/core"
)

// DataQualityValidator checks a whole batch of destination records before it
// is written: record counts, field presence and null rates.
type DataQualityValidator struct {
	MinRecords       int                                  // Minimum number of records required
	MaxRecords       int                                  // Maximum number of records allowed (0 = unlimited)
	MaxNullRate      float64                              // Maximum allowed null rate (0.0-1.0)
	RequiredFields   []string                             // Fields that must be present in all records
	ForbiddenFields  []string                             // Fields that must not be present
	CustomValidators []func([]core.Record) (bool, error) // Custom validation functions
}

// DataQualityOption is a functional option for configuring DataQualityValidator
type DataQualityOption func(*DataQualityValidator)

// NewDataQualityValidator creates a validator with functional options
func NewDataQualityValidator(minRecords int, requiredFields []string, options ...DataQualityOption) *DataQualityValidator {
	dqv := &DataQualityValidator{
		MinRecords:     minRecords,
		RequiredFields: requiredFields,
	}
	for _, option := range options {
		option(dqv)
	}
	return dqv
}

// WithMaxRecords sets the maximum record count
func WithMaxRecords(max int) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.MaxRecords = max
	}
}

// WithMaxNullRate sets the maximum null value rate
func WithMaxNullRate(rate float64) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.MaxNullRate = rate
	}
}

// WithForbiddenFields sets fields that must not be present
func WithForbiddenFields(fields []string) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.ForbiddenFields = fields
	}
}

// WithCustomValidator adds a custom validation function
func WithCustomValidator(validator func([]core.Record) (bool, error)) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.CustomValidators = append(dqv.CustomValidators, validator)
	}
}

// Validate runs every configured check and returns the first failure.
func (dqv *DataQualityValidator) Validate(records []core.Record) error {
	recordCount := len(records)

	if recordCount < dqv.MinRecords {
		return fmt.Errorf("insufficient records: got %d, need at least %d", recordCount, dqv.MinRecords)
	}
	if dqv.MaxRecords > 0 && recordCount > dqv.MaxRecords {
		return fmt.Errorf("too many records: got %d, maximum allowed %d", recordCount, dqv.MaxRecords)
	}
	if recordCount == 0 {
		return nil
	}

	if err := dqv.validateFieldPresence(records); err != nil {
		return err
	}
	if err := dqv.validateNullRates(records); err != nil {
		return err
	}

	for i, validator := range dqv.CustomValidators {
		valid, err := validator(records)
		if err != nil {
			return fmt.Errorf("custom validator %d failed: %w", i, err)
		}
		if !valid {
			return fmt.Errorf("custom validator %d failed validation", i)
		}
	}
	return nil
}

// validateFieldPresence checks for required and forbidden fields
func (dqv *DataQualityValidator) validateFieldPresence(records []core.Record) error {
	for recordIdx, record := range records {
		for _, field := range dqv.RequiredFields {
			if _, exists := record[field]; !exists {
				return fmt.Errorf("record %d missing required field: %s", recordIdx, field)
			}
		}
		for _, field := range dqv.ForbiddenFields {
			if _, exists := record[field]; exists {
				return fmt.Errorf("record %d contains forbidden field: %s", recordIdx, field)
			}
		}
	}
	return nil
}

// validateNullRates checks null value rates across all records
func (dqv *DataQualityValidator) validateNullRates(records []core.Record) error {
	if dqv.MaxNullRate <= 0 {
		return nil
	}

	fieldNames := make(map[string]bool)
	for _, record := range records {
		for field := range record {
			fieldNames[field] = true
		}
	}
	names := make([]string, 0, len(fieldNames))
	for field := range fieldNames {
		names = append(names, field)
	}
	sort.Strings(names)

	for _, field := range names {
		nullCount := 0
		for _, record := range records {
			if value, exists := record[field]; !exists || value == nil {
				nullCount++
			}
		}
		nullRate := float64(nullCount) / float64(len(records))
		if nullRate > dqv.MaxNullRate {
			return fmt.Errorf("field %s has null rate %.2f, exceeds maximum %.2f",
				field, nullRate, dqv.MaxNullRate)
		}
	}
	return nil
}
