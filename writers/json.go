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

package writers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/aaronlmathis/importmap/core"
)

// JSONWriterError wraps JSON lines write errors with context.
type JSONWriterError struct {
	Op  string
	Err error
}

func (e *JSONWriterError) Error() string {
	return fmt.Sprintf("json writer %s: %v", e.Op, e.Err)
}

func (e *JSONWriterError) Unwrap() error {
	return e.Err
}

// JSONWriterOptions configures JSON lines output.
type JSONWriterOptions struct {
	// DecimalsAsNumbers writes decimals as JSON numbers instead of strings.
	DecimalsAsNumbers bool
	// OmitNulls drops nil values from each line.
	OmitNulls bool
}

// WriterOptionJSON is a functional option.
type WriterOptionJSON func(*JSONWriterOptions)

func WithDecimalsAsNumbers(enabled bool) WriterOptionJSON {
	return func(opts *JSONWriterOptions) { opts.DecimalsAsNumbers = enabled }
}

func WithOmitNulls(enabled bool) WriterOptionJSON {
	return func(opts *JSONWriterOptions) { opts.OmitNulls = enabled }
}

// JSONWriter implements core.DataSink for JSON lines files
type JSONWriter struct {
	writer  *bufio.Writer
	closer  io.Closer
	opts    JSONWriterOptions
	written int64
}

// NewJSONWriter creates a new JSON writer for line-delimited JSON output
func NewJSONWriter(w io.WriteCloser, options ...WriterOptionJSON) *JSONWriter {
	var opts JSONWriterOptions
	for _, opt := range options {
		opt(&opts)
	}
	return &JSONWriter{
		writer: bufio.NewWriter(w),
		closer: w,
		opts:   opts,
	}
}

// Write implements the core.DataSink interface
func (j *JSONWriter) Write(ctx context.Context, record core.Record) error {
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		switch x := v.(type) {
		case nil:
			if j.opts.OmitNulls {
				continue
			}
			out[k] = nil
		case decimal.Decimal:
			if j.opts.DecimalsAsNumbers {
				out[k] = json.Number(decimalText(x))
			} else {
				out[k] = decimalText(x)
			}
		case time.Time:
			out[k] = x.Format(time.RFC3339Nano)
		default:
			out[k] = v
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return &JSONWriterError{Op: "marshal", Err: err}
	}
	if _, err := j.writer.Write(data); err != nil {
		return &JSONWriterError{Op: "write", Err: err}
	}
	if err := j.writer.WriteByte('\n'); err != nil {
		return &JSONWriterError{Op: "write", Err: err}
	}
	j.written++
	return nil
}

// RecordsWritten returns the number of lines written.
func (j *JSONWriter) RecordsWritten() int64 {
	return j.written
}

// Flush implements the core.DataSink interface
func (j *JSONWriter) Flush() error {
	if err := j.writer.Flush(); err != nil {
		return &JSONWriterError{Op: "flush", Err: err}
	}
	return nil
}

// Close implements the core.DataSink interface
func (j *JSONWriter) Close() error {
	if err := j.Flush(); err != nil {
		return err
	}
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
