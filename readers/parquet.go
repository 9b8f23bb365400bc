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
	"os"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
	"github.com/shopspring/decimal"

	"github.com/aaronlmathis/importmap/core"
)

// ParquetReaderError wraps structured error information for the Parquet reader.
type ParquetReaderError struct {
	Op  string // Operation that failed (e.g., "read", "load_batch", "open_file", "schema")
	Err error  // Underlying error
}

func (e *ParquetReaderError) Error() string {
	return fmt.Sprintf("parquet reader %s: %v", e.Op, e.Err)
}

func (e *ParquetReaderError) Unwrap() error {
	return e.Err
}

// ParquetReaderStats holds statistics about the Parquet reader.
type ParquetReaderStats struct {
	RecordsRead     int64
	BatchesRead     int64
	BytesRead       int64
	ReadDuration    time.Duration
	LastReadTime    time.Time
	NullValueCounts map[string]int64
}

// ParquetReaderOptions configures the Parquet reader
// BatchSize: rows per batch
// Columns: optional list of column names to project
type ParquetReaderOptions struct {
	BatchSize   int64
	Columns     []string
	MemoryLimit int64 // Estimated bytes read before the reader refuses more batches
}

// ReaderOptionParquet represents a configuration function
type ReaderOptionParquet func(*ParquetReaderOptions)

func WithBatchSize(size int64) ReaderOptionParquet {
	return func(opts *ParquetReaderOptions) {
		opts.BatchSize = size
	}
}

func WithColumnProjection(columns ...string) ReaderOptionParquet {
	return func(opts *ParquetReaderOptions) {
		opts.Columns = make([]string, len(columns))
		copy(opts.Columns, columns)
	}
}

func WithMemoryLimit(limit int64) ReaderOptionParquet {
	return func(opts *ParquetReaderOptions) {
		opts.MemoryLimit = limit
	}
}

// ParquetReader implements core.DataSource for Parquet files
// Supports optional column projection and safe resource management
type ParquetReader struct {
	closer          io.Closer
	recordReader    pqarrow.RecordReader
	currentBatch    arrow.Record
	currentBatchIdx int
	totalRows       int64
	schema          *arrow.Schema
	columns         []string
	stats           ParquetReaderStats
	opts            ParquetReaderOptions
}

// NewParquetReader opens a Parquet file and prepares an Arrow RecordReader
func NewParquetReader(filename string, options ...ReaderOptionParquet) (*ParquetReader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, &ParquetReaderError{Op: "open_file", Err: err}
	}
	reader, err := NewParquetReaderFrom(f, f, options...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return reader, nil
}

// NewParquetReaderFrom reads Parquet data from src, which must support random
// access. closer, if not nil, is closed with the reader.
func NewParquetReaderFrom(src parquet.ReaderAtSeeker, closer io.Closer, options ...ReaderOptionParquet) (*ParquetReader, error) {
	opts := ParquetReaderOptions{BatchSize: 1000, MemoryLimit: 64 * 1024 * 1024}
	for _, option := range options {
		option(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}

	parquetReader, err := file.NewParquetReader(src)
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_reader", Err: err}
	}

	arrowReader, err := pqarrow.NewFileReader(parquetReader,
		pqarrow.ArrowReadProperties{BatchSize: opts.BatchSize}, memory.NewGoAllocator())
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_arrow_reader", Err: err}
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, &ParquetReaderError{Op: "get_schema", Err: err}
	}

	var colIndices []int
	columns := make([]string, 0, len(schema.Fields()))
	if len(opts.Columns) > 0 {
		for _, name := range opts.Columns {
			indices := schema.FieldIndices(name)
			if len(indices) == 0 {
				return nil, &ParquetReaderError{Op: "column_projection", Err: fmt.Errorf("column %q not found in schema", name)}
			}
			colIndices = append(colIndices, indices[0])
			columns = append(columns, name)
		}
	} else {
		for _, field := range schema.Fields() {
			columns = append(columns, field.Name)
		}
	}

	recordReader, err := arrowReader.GetRecordReader(context.Background(), colIndices, nil)
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_record_reader", Err: err}
	}

	return &ParquetReader{
		closer:       closer,
		recordReader: recordReader,
		totalRows:    parquetReader.NumRows(),
		schema:       schema,
		columns:      columns,
		stats:        ParquetReaderStats{NullValueCounts: make(map[string]int64)},
		opts:         opts,
	}, nil
}

// Read reads the next record from the Parquet file, returning core.Record or io.EOF
func (p *ParquetReader) Read(ctx context.Context) (core.Record, error) {
	startTime := time.Now()
	defer func() {
		p.stats.ReadDuration += time.Since(startTime)
		p.stats.LastReadTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return nil, &ParquetReaderError{Op: "read", Err: ctx.Err()}
	default:
	}

	if p.currentBatch == nil || p.currentBatchIdx >= int(p.currentBatch.NumRows()) {
		if err := p.loadNextBatch(); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &ParquetReaderError{Op: "load_batch", Err: err}
		}
	}

	result := p.extractRecordFromBatch(p.currentBatch, p.currentBatchIdx)
	p.currentBatchIdx++
	p.stats.RecordsRead++

	return result, nil
}

// Columns returns the projected column names in schema order.
func (p *ParquetReader) Columns() []string {
	return append([]string(nil), p.columns...)
}

// NumRows returns the row count recorded in the file metadata.
func (p *ParquetReader) NumRows() int64 {
	return p.totalRows
}

// Close releases resources and closes the underlying file
func (p *ParquetReader) Close() error {
	if p.currentBatch != nil {
		p.currentBatch.Release()
		p.currentBatch = nil
	}
	if p.recordReader != nil {
		p.recordReader.Release()
		p.recordReader = nil
	}
	if p.closer != nil {
		err := p.closer.Close()
		p.closer = nil
		return err
	}
	return nil
}

// Schema returns the Arrow schema of the Parquet file
func (p *ParquetReader) Schema() *arrow.Schema {
	return p.schema
}

// Stats returns statistics about the Parquet reader.
func (p *ParquetReader) Stats() ParquetReaderStats {
	return p.stats
}

func (p *ParquetReader) loadNextBatch() error {
	if p.opts.MemoryLimit > 0 && p.stats.BytesRead >= p.opts.MemoryLimit {
		return fmt.Errorf("memory limit exceeded: %d bytes >= %d limit", p.stats.BytesRead, p.opts.MemoryLimit)
	}

	if p.currentBatch != nil {
		p.currentBatch.Release()
		p.currentBatch = nil
	}

	rec, err := p.recordReader.Read()
	if err != nil && err != io.EOF {
		return err
	}
	if rec == nil || rec.NumRows() == 0 {
		return io.EOF
	}
	// The record reader releases its batch on the next Read.
	rec.Retain()

	p.currentBatch = rec
	p.currentBatchIdx = 0
	p.stats.BatchesRead++
	p.stats.BytesRead += estimateBatchBytes(rec)
	return nil
}

// estimateBatchBytes approximates the in-memory size of a batch from the
// column widths.
func estimateBatchBytes(rec arrow.Record) int64 {
	var estimated int64
	rows := rec.NumRows()
	for i := 0; i < int(rec.NumCols()); i++ {
		switch rec.Column(i).DataType().ID() {
		case arrow.BOOL, arrow.INT8, arrow.UINT8:
			estimated += rows
		case arrow.INT16, arrow.UINT16:
			estimated += rows * 2
		case arrow.INT32, arrow.UINT32, arrow.FLOAT32, arrow.DATE32:
			estimated += rows * 4
		case arrow.STRING, arrow.BINARY:
			estimated += rows * 32
		default:
			estimated += rows * 8
		}
	}
	return estimated
}

// extractRecordFromBatch builds a core.Record from a row in an Arrow Record batch
func (p *ParquetReader) extractRecordFromBatch(record arrow.Record, pos int) core.Record {
	res := make(core.Record, record.NumCols())
	sch := record.Schema()
	for i := 0; i < int(record.NumCols()); i++ {
		field := sch.Field(i)
		res[field.Name] = p.extractValue(record.Column(i), pos, field.Name)
	}
	return res
}

// extractValue returns the Go value of one cell. Nulls are counted per column.
func (p *ParquetReader) extractValue(col arrow.Array, rowIdx int, fieldName string) interface{} {
	if col.IsNull(rowIdx) {
		p.stats.NullValueCounts[fieldName]++
		return nil
	}

	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(rowIdx)
	case *array.Int8:
		return int64(arr.Value(rowIdx))
	case *array.Int16:
		return int64(arr.Value(rowIdx))
	case *array.Int32:
		return int64(arr.Value(rowIdx))
	case *array.Int64:
		return arr.Value(rowIdx)
	case *array.Uint8:
		return int64(arr.Value(rowIdx))
	case *array.Uint16:
		return int64(arr.Value(rowIdx))
	case *array.Uint32:
		return int64(arr.Value(rowIdx))
	case *array.Uint64:
		return fmt.Sprint(arr.Value(rowIdx))
	case *array.Float32:
		return float64(arr.Value(rowIdx))
	case *array.Float64:
		return arr.Value(rowIdx)
	case *array.String:
		return arr.Value(rowIdx)
	case *array.Binary:
		return string(arr.Value(rowIdx))
	case *array.Timestamp:
		unit := arrow.Microsecond
		if ts, ok := arr.DataType().(*arrow.TimestampType); ok {
			unit = ts.Unit
		}
		return arr.Value(rowIdx).ToTime(unit).UTC()
	case *array.Decimal128:
		scale := int32(0)
		if dt, ok := arr.DataType().(*arrow.Decimal128Type); ok {
			scale = dt.Scale
		}
		return decimal.NewFromBigInt(arr.Value(rowIdx).BigInt(), -scale).String()
	case *array.List:
		start, end := arr.ValueOffsets(rowIdx)
		values := arr.ListValues()
		items := make([]interface{}, 0, end-start)
		for j := int(start); j < int(end); j++ {
			if values.IsNull(j) {
				items = append(items, nil)
				continue
			}
			items = append(items, p.extractValue(values, j, fieldName))
		}
		return items
	case *array.Date32:
		return arr.Value(rowIdx).ToTime()
	case *array.Date64:
		return arr.Value(rowIdx).ToTime()
	default:
		return fmt.Sprintf("%v", col.GetOneForMarshal(rowIdx))
	}
}
