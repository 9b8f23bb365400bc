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
	"context"
)

// Package core defines the core interfaces for the ImportMap library.
//
// This file contains the interfaces for data sources and sinks and the three
// polymorphic families of the evaluation engine: mapping rules, value
// transformations and comparison operations.

// DataSource defines the interface for data extraction.
// Implementations stream records from a source (e.g., CSV, Parquet, PostgreSQL).
type DataSource interface {
	// Read returns the next record or io.EOF when no more records are available.
	Read(ctx context.Context) (Record, error)
	// Close releases any resources held by the data source.
	Close() error
}

// ColumnSource is implemented by sources that know their column order
// (a CSV header, an Excel header row, a SQL result set).
type ColumnSource interface {
	Columns() []string
}

// DataSink defines the interface for data loading.
// Implementations write records to a destination (e.g., CSV, Parquet, PostgreSQL).
type DataSink interface {
	// Write outputs a single record to the sink.
	Write(ctx context.Context, record Record) error
	// Flush ensures all buffered data is written to the sink.
	Flush() error
	// Close releases any resources held by the data sink.
	Close() error
}

// SchemaSink is implemented by sinks that lay out their output from the
// destination schema (column order, column types) rather than from the
// first record written. SetSchema is called once, before the first Write.
type SchemaSink interface {
	SetSchema(def TableDefinition) error
}

// Filter decides whether a source row takes part in a mapping run. The row
// is passed as a context result seeded by NewRowResult.
type Filter interface {
	// ShouldInclude returns true if the row should be mapped.
	ShouldInclude(ctx context.Context, row TransformationResult) (bool, error)
}

// FilterFunc is a function adapter for the Filter interface.
type FilterFunc func(ctx context.Context, row TransformationResult) (bool, error)

// ShouldInclude implements the Filter interface for FilterFunc.
func (f FilterFunc) ShouldInclude(ctx context.Context, row TransformationResult) (bool, error) {
	return f(ctx, row)
}

// Versioned is implemented by every configurable engine object. The version
// increases on each mutation so callers can detect configuration changes.
type Versioned interface {
	Version() uint64
}

// ValueTransformation is a single chainable step mapping one
// TransformationResult to another.
type ValueTransformation interface {
	Versioned
	// TypeID returns the stable registry identifier.
	TypeID() string
	// Detail returns the free-form configuration string.
	Detail() string
	// SetDetail replaces the configuration string.
	SetDetail(detail string)
	// ValidateDetail checks a candidate configuration string.
	ValidateDetail(detail string) error
	// IsEmpty reports whether the step has no configuration and acts as identity.
	IsEmpty() bool
	// OutputType is the value type produced on success.
	OutputType() ValueType
	// Apply runs the step. A returned error is a configuration error; data
	// failures are reported through the result's ErrorMessage.
	Apply(ctx context.Context, in TransformationResult) (TransformationResult, error)
	// Clone deep-copies the step.
	Clone() ValueTransformation
}

// Comparison is a boolean predicate over one or more operand rules, each
// evaluated against the same incoming context.
type Comparison interface {
	// TypeID returns the stable registry identifier.
	TypeID() string
	// Evaluate applies the operands to in and compares their values.
	Evaluate(ctx context.Context, in TransformationResult) (bool, error)
	// Operands returns the configured operand rules, nil slots omitted.
	Operands() []Rule
	// Validate reports missing required operands.
	Validate() error
	// Clone deep-copies the comparison including its operand subtrees.
	Clone() Comparison
}

// Rule resolves zero or more source fields into a single destination value.
type Rule interface {
	Versioned
	// TypeID returns the stable registry identifier.
	TypeID() string
	// Detail returns RuleDetail.
	Detail() string
	// SetDetail replaces RuleDetail.
	SetDetail(detail string)
	// MaxSourceFields is the number of source fields the rule accepts; -1 means unlimited.
	MaxSourceFields() int
	// IsEmpty reports whether the rule produces no output.
	IsEmpty() bool
	// FieldTransformations returns the bound source field chains in order.
	FieldTransformations() []*FieldTransformation
	// AddFieldTransformation binds another source field chain.
	AddFieldTransformation(ft *FieldTransformation) error
	// RemoveFieldTransformation unbinds ft, reporting whether it was present.
	RemoveFieldTransformation(ft *FieldTransformation) bool
	// Apply evaluates the rule against a context result. A nil result means no output.
	Apply(ctx context.Context, in TransformationResult) (*TransformationResult, error)
	// ApplyRow evaluates the rule for a single row of table.
	ApplyRow(ctx context.Context, table *Table, row int) (*TransformationResult, error)
	// ApplyTable evaluates every row of table, result i matching row i.
	ApplyTable(ctx context.Context, table *Table) ([]*TransformationResult, error)
	// ApplyAll evaluates every row of the table the source fields are bound to.
	ApplyAll(ctx context.Context) ([]*TransformationResult, error)
	// Clone deep-copies the rule subtree.
	Clone() Rule
	// Children returns the rules directly owned by this rule.
	Children() []Rule
}

// RuleOwner is implemented by value transformations that own rules, such as
// the conditional transformation's branches.
type RuleOwner interface {
	Rules() []Rule
}

// Revision is an embeddable mutation counter implementing Versioned.
type Revision struct {
	n uint64
}

// Version returns the current revision.
func (r *Revision) Version() uint64 { return r.n }

// Touch records a mutation.
func (r *Revision) Touch() { r.n++ }
