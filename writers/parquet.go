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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/decimal128"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
	"github.com/shopspring/decimal"

	"github.com/aaronlmathis/importmap/core"
)

// This file implements a batching Parquet writer. The Arrow schema comes
// from the destination schema when one is set, otherwise it is inferred
// from the first record.

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "schema", "append_value", "write_batch")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// decimalPrecision is the widest precision an Arrow Decimal128 holds.
const decimalPrecision = 38

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of records to buffer before writing
	Compression  compress.Compression // Compression algorithm
	FieldOrder   []string             // Explicit field ordering
	RowGroupSize int64                // Maximum rows per row group
	DecimalScale int32                // Digits kept after the point in decimal columns
	Metadata     map[string]string    // Key/value metadata stored with the schema
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	ErrorCount      int64
	NullValueCounts map[string]int64
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithFieldOrder sets the explicit field ordering for the Parquet schema.
func WithFieldOrder(fields []string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.FieldOrder = append([]string(nil), fields...)
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithDecimalScale sets the scale of decimal columns. Values are rounded
// half-even to this many digits.
func WithDecimalScale(scale int32) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.DecimalScale = scale
	}
}

// WithMetadata sets key/value metadata for the Parquet file.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			opts.Metadata[k] = v
		}
	}
}

// ParquetWriter implements core.DataSink for Parquet output.
type ParquetWriter struct {
	sink         io.WriteCloser
	writer       *pqarrow.FileWriter
	schema       *arrow.Schema
	fieldOrder   []string
	recordBuffer []core.Record
	allocator    memory.Allocator
	opts         ParquetWriterOptions
	stats        WriterStats
	closed       bool
	errorState   bool
}

// NewParquetWriter creates a new Parquet writer for a file, creating its
// parent directories.
func NewParquetWriter(filename string, options ...WriterOption) (*ParquetWriter, error) {
	if dir := filepath.Dir(filename); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &ParquetWriterError{Op: "create_directory", Err: err}
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, &ParquetWriterError{Op: "open_file", Err: err}
	}
	return NewParquetWriterTo(file, options...), nil
}

// NewParquetWriterTo writes Parquet data to w, which is closed with the writer.
func NewParquetWriterTo(w io.WriteCloser, options ...WriterOption) *ParquetWriter {
	opts := ParquetWriterOptions{
		BatchSize:    1000,
		Compression:  compress.Codecs.Snappy,
		RowGroupSize: 10000,
		DecimalScale: 6,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}

	return &ParquetWriter{
		sink:         w,
		fieldOrder:   opts.FieldOrder,
		recordBuffer: make([]core.Record, 0, opts.BatchSize),
		allocator:    memory.NewGoAllocator(),
		opts:         opts,
		stats:        WriterStats{NullValueCounts: make(map[string]int64)},
	}
}

// SetSchema implements core.SchemaSink by deriving the Arrow schema from the
// destination column types.
func (p *ParquetWriter) SetSchema(def core.TableDefinition) error {
	if p.schema != nil {
		return &ParquetWriterError{Op: "schema", Err: fmt.Errorf("schema already initialized")}
	}
	types := make(map[string]arrow.DataType, len(def.Columns))
	for _, c := range def.Columns {
		types[c.Name] = p.arrowType(c.Type)
	}
	names := p.fieldOrder
	if len(names) == 0 {
		names = schemaColumns(def)
	}
	return p.initializeSchema(names, func(name string) (arrow.DataType, error) {
		if t, ok := types[name]; ok {
			return t, nil
		}
		return arrow.BinaryTypes.String, nil
	})
}

// Schema returns the Arrow schema, nil until known.
func (p *ParquetWriter) Schema() *arrow.Schema {
	return p.schema
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	return p.stats
}

// Write implements the core.DataSink interface. Records are buffered and
// written as one Arrow record batch per BatchSize records.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	if p.schema == nil {
		names := p.fieldOrder
		if len(names) == 0 {
			names = recordColumns(record)
		}
		err := p.initializeSchema(names, func(name string) (arrow.DataType, error) {
			return p.inferArrowType(record[name])
		})
		if err != nil {
			p.errorState = true
			return err
		}
	}

	p.recordBuffer = append(p.recordBuffer, record)
	p.stats.RecordsWritten++

	if int64(len(p.recordBuffer)) >= p.opts.BatchSize {
		return p.flushBatch()
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (p *ParquetWriter) Flush() error {
	return p.flushBatch()
}

// Close implements the core.DataSink interface. It flushes, finalizes the
// file footer and closes the underlying sink.
func (p *ParquetWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if !p.errorState {
		if err := p.flushBatch(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.writer != nil {
		// The file writer closes the sink it was created with.
		if err := p.writer.Close(); err != nil {
			errs = append(errs, &ParquetWriterError{Op: "close_writer", Err: err})
		}
		p.writer = nil
	} else if p.sink != nil {
		if err := p.sink.Close(); err != nil {
			errs = append(errs, &ParquetWriterError{Op: "close_sink", Err: err})
		}
	}
	p.sink = nil
	return errors.Join(errs...)
}

// initializeSchema builds the Arrow schema for names and opens the file writer.
func (p *ParquetWriter) initializeSchema(names []string, typeOf func(string) (arrow.DataType, error)) error {
	fields := make([]arrow.Field, 0, len(names))
	for _, name := range names {
		dataType, err := typeOf(name)
		if err != nil {
			return &ParquetWriterError{Op: "schema", Err: fmt.Errorf("field %s: %w", name, err)}
		}
		fields = append(fields, arrow.Field{Name: name, Type: dataType, Nullable: true})
	}

	var md *arrow.Metadata
	if len(p.opts.Metadata) > 0 {
		m := arrow.MetadataFrom(p.opts.Metadata)
		md = &m
	}
	schema := arrow.NewSchema(fields, md)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.opts.Compression),
		parquet.WithMaxRowGroupLength(p.opts.RowGroupSize),
	)
	writer, err := pqarrow.NewFileWriter(schema, p.sink, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return &ParquetWriterError{Op: "create_writer", Err: err}
	}

	p.schema = schema
	p.fieldOrder = names
	p.writer = writer
	return nil
}

// arrowType maps a destination value type to its Arrow column type.
func (p *ParquetWriter) arrowType(t core.ValueType) arrow.DataType {
	switch t {
	case core.TypeDecimal:
		return &arrow.Decimal128Type{Precision: decimalPrecision, Scale: p.opts.DecimalScale}
	case core.TypeInt:
		return arrow.PrimitiveTypes.Int64
	case core.TypeBool:
		return arrow.FixedWidthTypes.Boolean
	case core.TypeDateTime:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	case core.TypeCollection:
		return arrow.ListOf(arrow.BinaryTypes.String)
	default:
		return arrow.BinaryTypes.String
	}
}

// inferArrowType infers the Arrow data type from a Go value.
func (p *ParquetWriter) inferArrowType(value interface{}) (arrow.DataType, error) {
	switch value.(type) {
	case nil, string, []byte:
		return arrow.BinaryTypes.String, nil
	case bool:
		return p.arrowType(core.TypeBool), nil
	case int, int8, int16, int32, int64:
		return p.arrowType(core.TypeInt), nil
	case float32, float64:
		return arrow.PrimitiveTypes.Float64, nil
	case decimal.Decimal:
		return p.arrowType(core.TypeDecimal), nil
	case time.Time:
		return p.arrowType(core.TypeDateTime), nil
	case []string:
		return p.arrowType(core.TypeCollection), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}

// flushBatch writes the buffered records as one Arrow record batch.
func (p *ParquetWriter) flushBatch() error {
	if len(p.recordBuffer) == 0 {
		return nil
	}
	start := time.Now()

	builder := array.NewRecordBuilder(p.allocator, p.schema)
	defer builder.Release()

	for _, record := range p.recordBuffer {
		for i, name := range p.fieldOrder {
			value, ok := record[name]
			if !ok || value == nil {
				builder.Field(i).AppendNull()
				p.stats.NullValueCounts[name]++
				continue
			}
			if err := p.appendValue(builder.Field(i), value); err != nil {
				p.errorState = true
				p.stats.ErrorCount++
				return &ParquetWriterError{Op: "append_value", Err: fmt.Errorf("field %s: %w", name, err)}
			}
		}
	}

	rec := builder.NewRecord()
	defer rec.Release()
	if err := p.writer.Write(rec); err != nil {
		p.errorState = true
		p.stats.ErrorCount++
		return &ParquetWriterError{Op: "write_batch", Err: err}
	}

	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(start)
	p.stats.LastFlushTime = time.Now()
	p.recordBuffer = p.recordBuffer[:0]
	return nil
}

// appendValue appends a non-nil value to the builder of its column.
func (p *ParquetWriter) appendValue(builder array.Builder, value interface{}) error {
	switch b := builder.(type) {
	case *array.StringBuilder:
		b.Append(formatValue(value))
	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		b.Append(v)
	case *array.Int64Builder:
		switch v := value.(type) {
		case int64:
			b.Append(v)
		case int:
			b.Append(int64(v))
		case int32:
			b.Append(int64(v))
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case *array.Float64Builder:
		switch v := value.(type) {
		case float64:
			b.Append(v)
		case float32:
			b.Append(float64(v))
		default:
			return fmt.Errorf("expected float, got %T", value)
		}
	case *array.TimestampBuilder:
		v, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", value)
		}
		b.Append(arrow.Timestamp(v.UnixMicro()))
	case *array.Decimal128Builder:
		num, err := p.decimalValue(value)
		if err != nil {
			return err
		}
		b.Append(num)
	case *array.ListBuilder:
		values, ok := value.([]string)
		if !ok {
			return fmt.Errorf("expected []string, got %T", value)
		}
		b.Append(true)
		vb := b.ValueBuilder().(*array.StringBuilder)
		for _, v := range values {
			vb.Append(v)
		}
	default:
		return fmt.Errorf("unsupported builder %T", builder)
	}
	return nil
}

// decimalValue rounds value to the column scale and checks it fits the
// Decimal128 precision.
func (p *ParquetWriter) decimalValue(value interface{}) (decimal128.Num, error) {
	var d decimal.Decimal
	switch v := value.(type) {
	case decimal.Decimal:
		d = v
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return decimal128.Num{}, err
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(v)
	case int64:
		d = decimal.NewFromInt(v)
	default:
		return decimal128.Num{}, fmt.Errorf("expected decimal, got %T", value)
	}

	unscaled := d.RoundBank(p.opts.DecimalScale).Shift(p.opts.DecimalScale)
	if unscaled.Abs().Cmp(decimal.New(1, decimalPrecision)) >= 0 {
		return decimal128.Num{}, fmt.Errorf("decimal %s exceeds precision %d", d, decimalPrecision)
	}
	return decimal128.FromBigInt(unscaled.BigInt()), nil
}
