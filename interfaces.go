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


// interfaces.go - Root-level names for the pipeline's building blocks
package importmap

import (
	"github.com/aaronlmathis/importmap/core"
)

// Record is a materialized destination row keyed by column name.
type Record = core.Record

// DataSource reads source records one at a time until io.EOF.
type DataSource = core.DataSource

// DataSink receives destination records. Sinks that also implement
// SchemaSink are told the destination definition before the first write.
type DataSink = core.DataSink

// SchemaSink is a sink that types its output from a table definition.
type SchemaSink = core.SchemaSink

// Filter decides whether a source row takes part in the import.
type Filter = core.Filter

// FilterFunc is a function adapter for Filter.
type FilterFunc = core.FilterFunc

// ErrorStrategy selects how rows with failed cells are treated.
type ErrorStrategy = core.ErrorStrategy

// ErrorHandler observes row failures. Returning a non-nil error stops the
// pipeline.
type ErrorHandler = core.ErrorHandler

// ErrorHandlerFunc is a function adapter for ErrorHandler.
type ErrorHandlerFunc = core.ErrorHandlerFunc

const (
	// FailFast stops at the first row with a failed cell.
	FailFast = core.FailFast
	// SkipErrors drops rows with failed cells and keeps going.
	SkipErrors = core.SkipErrors
	// CollectErrors writes every row and reports the failed cells.
	CollectErrors = core.CollectErrors
)
