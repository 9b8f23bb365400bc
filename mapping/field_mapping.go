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

package mapping

import (
	"errors"
	"fmt"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/transform"
	"github.com/aaronlmathis/importmap/validators"
)

// Package mapping binds mapping rules to destination fields and evaluates a
// whole source table into destination rows.

var (
	// ErrUnconfigured is returned for a field mapping without a rule.
	ErrUnconfigured = errors.New("no mapping rule selected")
	// ErrNoSourceFields is returned for a rule that needs source fields but has none bound.
	ErrNoSourceFields = errors.New("mapping rule has no source fields")
)

// State is the lifecycle position of a field mapping.
type State int

const (
	// Unconfigured means no rule is selected.
	Unconfigured State = iota
	// Configured means a rule is selected but cannot produce output yet.
	Configured
	// Ready means the rule can be evaluated.
	Ready
	// Applied means the mapping has been evaluated at least once.
	Applied
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case Ready:
		return "ready"
	case Applied:
		return "applied"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// FieldError wraps a configuration error raised while evaluating one
// destination field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("mapping %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// FieldMapping is the destination side contract of one field: its name, type
// and constraints, and the rule that produces its value.
type FieldMapping struct {
	FieldName            string
	FieldType            core.ValueType
	Required             bool
	MaxLength            int
	Rule                 core.Rule
	ValidationAttributes []validators.Attribute

	applied bool
}

// FieldOption configures a FieldMapping.
type FieldOption func(*FieldMapping)

// WithRequired marks the field as required.
func WithRequired() FieldOption {
	return func(m *FieldMapping) { m.Required = true }
}

// WithMaxLength bounds the rune length of the field value.
func WithMaxLength(n int) FieldOption {
	return func(m *FieldMapping) { m.MaxLength = n }
}

// WithAttributes attaches validation attributes.
func WithAttributes(attrs ...validators.Attribute) FieldOption {
	return func(m *FieldMapping) {
		m.ValidationAttributes = append(m.ValidationAttributes, attrs...)
	}
}

// NewFieldMapping creates a field mapping.
func NewFieldMapping(name string, typ core.ValueType, rule core.Rule, opts ...FieldOption) *FieldMapping {
	if typ == "" {
		typ = core.TypeString
	}
	m := &FieldMapping{FieldName: name, FieldType: typ, Rule: rule}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IgnoreMapping reports whether the mapping produces no output and is
// skipped when generating destination rows.
func (m *FieldMapping) IgnoreMapping() bool {
	return m.Rule == nil || m.Rule.IsEmpty()
}

// SetRule replaces the rule and resets the applied state.
func (m *FieldMapping) SetRule(rule core.Rule) {
	m.Rule = rule
	m.applied = false
}

// State derives the lifecycle position from the rule configuration.
func (m *FieldMapping) State() State {
	if m.Rule == nil {
		return Unconfigured
	}
	if !m.ready() {
		return Configured
	}
	if m.applied {
		return Applied
	}
	return Ready
}

// ready reports whether the rule can produce output. Rules that take no
// source fields are always ready; other rules need a bound field or operand
// rules that read the row for them.
func (m *FieldMapping) ready() bool {
	if m.Rule.MaxSourceFields() == 0 {
		return true
	}
	for _, ft := range m.Rule.FieldTransformations() {
		if !ft.IsEmpty() {
			return true
		}
	}
	return len(m.Rule.Children()) > 0
}

// CheckReady returns the configuration error that blocks output generation,
// if any.
func (m *FieldMapping) CheckReady() error {
	switch {
	case m.Rule == nil:
		if m.Required {
			return &FieldError{Field: m.FieldName, Err: ErrUnconfigured}
		}
		return nil
	case m.Required && m.IgnoreMapping():
		return &FieldError{Field: m.FieldName, Err: core.ErrRequiredFieldIgnored}
	case !m.ready():
		return &FieldError{Field: m.FieldName, Err: ErrNoSourceFields}
	}
	if v, ok := m.Rule.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return &FieldError{Field: m.FieldName, Err: err}
		}
	}
	return nil
}

// Validate checks a result against the destination constraints. It reports
// whether the result is valid and the message of every violation.
func (m *FieldMapping) Validate(result *core.TransformationResult) (bool, []string) {
	var msgs []string
	if m.Required && m.IgnoreMapping() {
		return false, []string{core.ErrRequiredFieldIgnored.Error()}
	}
	if result != nil && result.WasFailure() {
		return false, []string{result.ErrorMessage}
	}

	var value *string
	if result != nil {
		value = result.Value
	}
	attrs := make([]validators.Attribute, 0, len(m.ValidationAttributes)+2)
	if m.Required {
		attrs = append(attrs, validators.Required{})
	}
	if m.MaxLength > 0 {
		attrs = append(attrs, validators.StringLength{Max: m.MaxLength})
	}
	attrs = append(attrs, m.ValidationAttributes...)
	for _, err := range validators.Run(m.FieldName, value, attrs...) {
		var ve *validators.ValidationError
		if errors.As(err, &ve) {
			msgs = append(msgs, ve.Message)
		} else {
			msgs = append(msgs, err.Error())
		}
	}

	if value != nil && *value != "" && m.FieldType != core.TypeString && m.FieldType != core.TypeAny {
		if _, err := transform.Convert(value, m.FieldType); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return len(msgs) == 0, msgs
}

// Clone deep-copies the mapping including its rule subtree.
func (m *FieldMapping) Clone() *FieldMapping {
	c := *m
	if m.Rule != nil {
		c.Rule = m.Rule.Clone()
	}
	c.ValidationAttributes = append([]validators.Attribute(nil), m.ValidationAttributes...)
	return &c
}

// Column returns the destination column definition implied by the mapping.
func (m *FieldMapping) Column() core.ColumnDefinition {
	return core.ColumnDefinition{
		Name:      m.FieldName,
		Type:      m.FieldType,
		Required:  m.Required,
		MaxLength: m.MaxLength,
	}
}
