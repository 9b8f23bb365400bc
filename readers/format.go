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
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/goccy/go-json"

	"github.com/aaronlmathis/importmap/core"
)

// Format names a file encoding understood by the readers package.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatJSON    Format = "json"  // a JSON array or an object holding one
	FormatJSONL   Format = "jsonl" // one JSON object per line
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// FormatFromName guesses the format of a file name or object key from its
// extension. It returns "" when the extension is unknown.
func FormatFromName(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return FormatCSV
	case ".tsv", ".tab":
		return FormatTSV
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".parquet":
		return FormatParquet
	}
	return ""
}

// FormatOptions carries per-format reader options for OpenFormat.
type FormatOptions struct {
	CSV      []ReaderOptionCSV
	XLSX     []ReaderOptionXLSX
	Parquet  []ReaderOptionParquet
	DataPath string // dotted path to the record array inside a JSON document
}

// OpenFormat returns the reader for format over body. Formats needing
// random access are buffered in memory first. body is closed by the
// returned reader, or immediately on error.
func OpenFormat(format Format, body io.ReadCloser, opts FormatOptions) (core.DataSource, error) {
	switch format {
	case FormatCSV:
		return NewCSVReader(body, opts.CSV...)
	case FormatTSV:
		return NewCSVReader(body, append([]ReaderOptionCSV{WithCSVComma('\t')}, opts.CSV...)...)
	case FormatJSONL:
		return NewJSONReader(body), nil
	case FormatJSON:
		return NewJSONDocumentReader(body, opts.DataPath)
	case FormatXLSX:
		return NewXLSXReader(body, opts.XLSX...)
	case FormatParquet:
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			return nil, fmt.Errorf("buffer parquet data: %w", err)
		}
		return NewParquetReaderFrom(bytes.NewReader(data), nil, opts.Parquet...)
	default:
		body.Close()
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// SliceReader serves records from memory.
type SliceReader struct {
	records []core.Record
	pos     int
}

// NewSliceReader returns a core.DataSource over records.
func NewSliceReader(records []core.Record) *SliceReader {
	return &SliceReader{records: records}
}

func (s *SliceReader) Read(ctx context.Context) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func (s *SliceReader) Close() error { return nil }

// NewJSONDocumentReader decodes a whole JSON document: an array of objects,
// a single object, or either of those found at dataPath ("data.items").
func NewJSONDocumentReader(r io.ReadCloser, dataPath string) (*SliceReader, error) {
	defer r.Close()

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return NewSliceReader(nil), nil
		}
		return nil, &JSONReaderError{Op: "decode", Err: err}
	}

	for _, part := range strings.Split(dataPath, ".") {
		if part == "" {
			continue
		}
		obj, ok := doc.(map[string]interface{})
		if !ok {
			return nil, &JSONReaderError{Op: "data_path", Err: fmt.Errorf("cannot traverse %q: not an object", part)}
		}
		if doc, ok = obj[part]; !ok {
			return nil, &JSONReaderError{Op: "data_path", Err: fmt.Errorf("path element %q not found", part)}
		}
	}

	switch v := doc.(type) {
	case []interface{}:
		records := make([]core.Record, 0, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, &JSONReaderError{Op: "decode", Err: fmt.Errorf("element %d is %T, not an object", i, item)}
			}
			records = append(records, core.Record(obj))
		}
		return NewSliceReader(records), nil
	case map[string]interface{}:
		return NewSliceReader([]core.Record{core.Record(v)}), nil
	default:
		return nil, &JSONReaderError{Op: "decode", Err: fmt.Errorf("unexpected document type %T", doc)}
	}
}
