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

// TransformationResult threads a value with its provenance and error state
// through every evaluation step. It is a value type: every With helper returns
// a modified copy and never touches the receiver.
type TransformationResult struct {
	// OriginalValue is the value captured before the current chain step.
	OriginalValue *string
	// Value is the value carried forward.
	Value *string

	OriginalValueType ValueType
	CurrentValueType  ValueType

	// ErrorMessage is non-empty when the result is a failure.
	ErrorMessage string

	// AppliedTransformations records the TypeID of each step applied, in order.
	AppliedTransformations []string

	// Record is the source row the value came from.
	Record DataRow
	// Table is the source table the row belongs to.
	Table *Table
	// RowIndex is the position of Record in Table, -1 when unknown.
	RowIndex int

	// TargetFieldType is the declared type of the destination field.
	TargetFieldType ValueType
}

// NewResult seeds a result from a raw value. Both the original and current
// value point at v and the type is inferred from its shape.
func NewResult(v *string) TransformationResult {
	t := TypeString
	if IsCollection(v) {
		t = TypeCollection
	}
	return TransformationResult{
		OriginalValue:     v,
		Value:             v,
		OriginalValueType: t,
		CurrentValueType:  t,
		RowIndex:          -1,
	}
}

// NewRowResult seeds a result carrying the context of row i of table and no value.
func NewRowResult(table *Table, i int) TransformationResult {
	r := NewResult(nil)
	r.Table = table
	r.RowIndex = i
	if table != nil && i >= 0 && i < len(table.Rows) {
		r.Record = table.Rows[i]
	}
	return r
}

// WasFailure reports whether an error message is set.
func (r TransformationResult) WasFailure() bool {
	return r.ErrorMessage != ""
}

// WithValue returns a copy carrying v as the current value.
func (r TransformationResult) WithValue(v *string, t ValueType) TransformationResult {
	r.Value = v
	r.CurrentValueType = t
	r.AppliedTransformations = cloneStrings(r.AppliedTransformations)
	return r
}

// WithOriginalValue returns a copy with a new original value. Only chain
// boundaries (combination rules, preview harnesses) should call it.
func (r TransformationResult) WithOriginalValue(v *string, t ValueType) TransformationResult {
	r.OriginalValue = v
	r.OriginalValueType = t
	r.AppliedTransformations = cloneStrings(r.AppliedTransformations)
	return r
}

// WithError returns a failed copy. An empty message leaves an existing
// failure in place.
func (r TransformationResult) WithError(msg string) TransformationResult {
	if msg != "" {
		r.ErrorMessage = msg
	}
	r.AppliedTransformations = cloneStrings(r.AppliedTransformations)
	return r
}

// WithApplied returns a copy with typeID appended to the audit trail.
func (r TransformationResult) WithApplied(typeID string) TransformationResult {
	applied := make([]string, len(r.AppliedTransformations), len(r.AppliedTransformations)+1)
	copy(applied, r.AppliedTransformations)
	r.AppliedTransformations = append(applied, typeID)
	return r
}

// WithTargetType returns a copy carrying the destination field type.
func (r TransformationResult) WithTargetType(t ValueType) TransformationResult {
	r.TargetFieldType = t
	r.AppliedTransformations = cloneStrings(r.AppliedTransformations)
	return r
}

// WithContext returns a copy carrying the row context of ctx.
func (r TransformationResult) WithContext(ctx TransformationResult) TransformationResult {
	r.Record = ctx.Record
	r.Table = ctx.Table
	r.RowIndex = ctx.RowIndex
	if r.TargetFieldType == "" {
		r.TargetFieldType = ctx.TargetFieldType
	}
	r.AppliedTransformations = cloneStrings(r.AppliedTransformations)
	return r
}

// ResetOriginal returns a copy whose original value is the current value, so
// the next step can be inspected in isolation.
func (r TransformationResult) ResetOriginal() TransformationResult {
	return r.WithOriginalValue(r.Value, r.CurrentValueType)
}

// IsNull reports whether the current value is absent.
func (r TransformationResult) IsNull() bool {
	return r.Value == nil
}

// StringValue returns the current value, "" when absent.
func (r TransformationResult) StringValue() string {
	return StringValue(r.Value)
}

// IsCollection reports whether the current value is a collection carrier.
func (r TransformationResult) IsCollection() bool {
	return IsCollection(r.Value)
}

// Elements returns the elements of a collection carrier. For a scalar value
// it returns a one-element slice and ok=false.
func (r TransformationResult) Elements() (elems []*string, ok bool) {
	if r.Value == nil {
		return nil, false
	}
	if IsCollection(r.Value) {
		if items, err := ParseCollection(*r.Value); err == nil {
			return items, true
		}
	}
	return []*string{r.Value}, false
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
