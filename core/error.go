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
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Package core defines the error handling types for the ImportMap library.
//
// Two error channels exist. Configuration errors (missing operands, unknown
// type ids, cyclic rule graphs, missing columns) are returned as Go errors and
// abort the operation that found them. Data-level failures travel inside a
// TransformationResult as ErrorMessage and never abort other rows or fields.

var (
	// ErrMissingOperand is wrapped by MissingOperandError.
	ErrMissingOperand = errors.New("required operand is not configured")
	// ErrNilLeftOperand is returned when ConfigureOperands is given a nil left operand.
	ErrNilLeftOperand = errors.New("left operand cannot be nil")
	// ErrRuleCycle is returned when a rule would become its own (transitive) operand.
	ErrRuleCycle = errors.New("rule cannot reference itself as an operand")
	// ErrIncompleteConditional is returned when a conditional lacks its comparison or a branch.
	ErrIncompleteConditional = errors.New("conditional requires a comparison, a true rule and a false rule")
	// ErrFieldCountMismatch is returned when per-field results do not line up with the table rows.
	ErrFieldCountMismatch = errors.New("field result count does not match row count")
	// ErrTooManySourceFields is returned when a rule already holds MaxSourceFields fields.
	ErrTooManySourceFields = errors.New("rule does not accept more source fields")
	// ErrUnboundRule is returned by ApplyAll when no source table is bound.
	ErrUnboundRule = errors.New("rule has no bound source table")
	// ErrRowOutOfRange is returned when a row index falls outside the table.
	ErrRowOutOfRange = errors.New("row index out of range")
	// ErrRequiredFieldIgnored is returned when a required field is mapped with an ignore rule.
	ErrRequiredFieldIgnored = errors.New("required field cannot be ignored")
)

// Data-level failure messages carried in TransformationResult.ErrorMessage.
const (
	ErrMsgCollection         = "operation cannot be applied to a collection"
	ErrMsgInvalidCalculation = "The calculation format is invalid."
)

// MissingSourceFieldsError lists source columns referenced by a mapping that
// are absent from the source table.
type MissingSourceFieldsError struct {
	Fields []string
}

func (e *MissingSourceFieldsError) Error() string {
	return fmt.Sprintf("missing source field(s): %s", strings.Join(e.Fields, ", "))
}

// MissingTargetFieldsError lists destination fields named by a mapping that
// are absent from the target table definition.
type MissingTargetFieldsError struct {
	Fields []string
}

func (e *MissingTargetFieldsError) Error() string {
	return fmt.Sprintf("missing target field(s): %s", strings.Join(e.Fields, ", "))
}

// MissingFieldsError builds the error for a missing-field check. It returns nil
// when both lists are empty, the specific error when only one side has missing
// fields, and an errors.Join of both otherwise.
func MissingFieldsError(source, target []string) error {
	var srcErr, tgtErr error
	if len(source) > 0 {
		srcErr = &MissingSourceFieldsError{Fields: dedupe(source)}
	}
	if len(target) > 0 {
		tgtErr = &MissingTargetFieldsError{Fields: dedupe(target)}
	}
	switch {
	case srcErr != nil && tgtErr != nil:
		return errors.Join(srcErr, tgtErr)
	case srcErr != nil:
		return srcErr
	case tgtErr != nil:
		return tgtErr
	}
	return nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ErrorHandler defines how errors are handled during processing.
// Custom error handlers can be used to log, collect, or transform errors.
type ErrorHandler interface {
	// HandleError processes an error raised for a destination record.
	// Returning a non-nil error will stop the pipeline; returning nil will continue.
	HandleError(ctx context.Context, record Record, err error) error
}

// ErrorStrategy defines how to handle invalid rows in the pipeline.
type ErrorStrategy int

const (
	// FailFast stops processing on the first invalid row.
	FailFast ErrorStrategy = iota
	// SkipErrors continues processing, skipping invalid rows.
	SkipErrors
	// CollectErrors continues processing, writing invalid rows and collecting their errors.
	CollectErrors
)

// String returns the strategy name used by the CLI.
func (s ErrorStrategy) String() string {
	switch s {
	case FailFast:
		return "fail-fast"
	case SkipErrors:
		return "skip"
	case CollectErrors:
		return "collect"
	}
	return fmt.Sprintf("ErrorStrategy(%d)", int(s))
}

// ParseErrorStrategy resolves a strategy name produced by String.
func ParseErrorStrategy(name string) (ErrorStrategy, error) {
	switch strings.ToLower(name) {
	case "fail-fast", "failfast", "":
		return FailFast, nil
	case "skip":
		return SkipErrors, nil
	case "collect":
		return CollectErrors, nil
	}
	return FailFast, fmt.Errorf("unknown error strategy %q", name)
}
