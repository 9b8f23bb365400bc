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

package readers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/aaronlmathis/importmap/core"
)

// XLSXReaderError wraps structured error information for the Excel reader.
type XLSXReaderError struct {
	Op  string
	Err error
}

func (e *XLSXReaderError) Error() string {
	return fmt.Sprintf("xlsx reader %s: %v", e.Op, e.Err)
}

func (e *XLSXReaderError) Unwrap() error {
	return e.Err
}

// XLSXReaderStats holds statistics about the Excel reader.
type XLSXReaderStats struct {
	RecordsRead  int64
	SkippedRows  int64
	ReadDuration time.Duration
}

// XLSXReaderOptions configures the Excel reader.
type XLSXReaderOptions struct {
	// Sheet is the worksheet to read. Empty selects the first sheet.
	Sheet      string
	HasHeaders bool
	// SkipEmptyRows drops rows in which every cell is blank.
	SkipEmptyRows bool
	Password      string
}

// ReaderOptionXLSX allows functional customization of XLSXReader.
type ReaderOptionXLSX func(*XLSXReaderOptions)

func WithXLSXSheet(name string) ReaderOptionXLSX {
	return func(o *XLSXReaderOptions) { o.Sheet = name }
}

func WithXLSXHasHeaders(hasHeaders bool) ReaderOptionXLSX {
	return func(o *XLSXReaderOptions) { o.HasHeaders = hasHeaders }
}

func WithXLSXSkipEmptyRows(skip bool) ReaderOptionXLSX {
	return func(o *XLSXReaderOptions) { o.SkipEmptyRows = skip }
}

func WithXLSXPassword(password string) ReaderOptionXLSX {
	return func(o *XLSXReaderOptions) { o.Password = password }
}

// XLSXReader implements core.DataSource for one worksheet of an Excel
// workbook. Cells are read as their formatted text.
type XLSXReader struct {
	file    *excelize.File
	rows    *excelize.Rows
	headers []string
	closer  io.Closer
	opts    XLSXReaderOptions
	stats   XLSXReaderStats
}

// NewXLSXReader opens the workbook in r and positions the reader after the
// header row of the selected sheet.
func NewXLSXReader(r io.ReadCloser, options ...ReaderOptionXLSX) (*XLSXReader, error) {
	opts := XLSXReaderOptions{HasHeaders: true, SkipEmptyRows: true}
	for _, opt := range options {
		opt(&opts)
	}

	file, err := excelize.OpenReader(r, excelize.Options{Password: opts.Password})
	if err != nil {
		r.Close()
		return nil, &XLSXReaderError{Op: "open", Err: err}
	}

	sheet := opts.Sheet
	if sheet == "" {
		sheets := file.GetSheetList()
		if len(sheets) == 0 {
			file.Close()
			r.Close()
			return nil, &XLSXReaderError{Op: "open", Err: fmt.Errorf("workbook has no sheets")}
		}
		sheet = sheets[0]
	}

	rows, err := file.Rows(sheet)
	if err != nil {
		file.Close()
		r.Close()
		return nil, &XLSXReaderError{Op: "open_sheet", Err: err}
	}

	reader := &XLSXReader{file: file, rows: rows, closer: r, opts: opts}
	if opts.HasHeaders && rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			reader.Close()
			return nil, &XLSXReaderError{Op: "read_headers", Err: err}
		}
		reader.headers = uniqueHeaders(cols)
	}
	return reader, nil
}

// Columns returns the header names of the sheet.
func (x *XLSXReader) Columns() []string {
	return append([]string(nil), x.headers...)
}

// Read implements the core.DataSource interface.
func (x *XLSXReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()
	defer func() { x.stats.ReadDuration += time.Since(start) }()

	for {
		if err := ctx.Err(); err != nil {
			return nil, &XLSXReaderError{Op: "read", Err: err}
		}
		if !x.rows.Next() {
			if err := x.rows.Error(); err != nil {
				return nil, &XLSXReaderError{Op: "read_row", Err: err}
			}
			return nil, io.EOF
		}
		cols, err := x.rows.Columns()
		if err != nil {
			return nil, &XLSXReaderError{Op: "read_row", Err: err}
		}
		if x.opts.SkipEmptyRows && blankRow(cols) {
			x.stats.SkippedRows++
			continue
		}

		for len(x.headers) < len(cols) {
			x.headers = append(x.headers, fmt.Sprintf("col_%d", len(x.headers)))
		}
		rec := make(core.Record, len(x.headers))
		for i, key := range x.headers {
			if i >= len(cols) || strings.TrimSpace(cols[i]) == "" {
				rec[key] = nil
				continue
			}
			rec[key] = cols[i]
		}
		x.stats.RecordsRead++
		return rec, nil
	}
}

func blankRow(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Stats returns Excel reader stats.
func (x *XLSXReader) Stats() XLSXReaderStats {
	return x.stats
}

// Close implements the core.DataSource interface.
func (x *XLSXReader) Close() error {
	var firstErr error
	if x.rows != nil {
		if err := x.rows.Close(); err != nil {
			firstErr = err
		}
	}
	if x.file != nil {
		if err := x.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if x.closer != nil {
		if err := x.closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return &XLSXReaderError{Op: "close", Err: firstErr}
	}
	return nil
}
