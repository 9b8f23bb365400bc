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


package importmap

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/filter"
	"github.com/aaronlmathis/importmap/mapping"
	"github.com/aaronlmathis/importmap/readers"
	"github.com/aaronlmathis/importmap/rules"
	"github.com/aaronlmathis/importmap/transform"
	"github.com/aaronlmathis/importmap/validators"
)

// memorySink is a SchemaSink that keeps records in memory
type memorySink struct {
	schema  *core.TableDefinition
	records []Record
	flushed bool
	closed  bool
	failOn  int
}

func (s *memorySink) SetSchema(def core.TableDefinition) error {
	s.schema = &def
	return nil
}

func (s *memorySink) Write(ctx context.Context, record Record) error {
	if s.failOn > 0 && len(s.records)+1 == s.failOn {
		return errors.New("disk full")
	}
	s.records = append(s.records, record)
	return nil
}

func (s *memorySink) Flush() error {
	s.flushed = true
	return nil
}

func (s *memorySink) Close() error {
	s.closed = true
	return nil
}

func sourceRecords() *readers.SliceReader {
	return readers.NewSliceReader([]core.Record{
		{"Name": "Widget", "Price": "19.99", "First": "Ada", "Last": "Lovelace"},
		{"Name": "Gadget", "Price": "5", "First": "Alan", "Last": "Turing"},
		{"Name": "", "Price": "abc", "First": "Grace", "Last": nil},
	})
}

func productMapper() *mapping.Mapper {
	target := core.TableDefinition{
		Name: "products",
		Columns: []core.ColumnDefinition{
			{Name: "Name", Type: core.TypeString, Required: true},
			{Name: "Price", Type: core.TypeDecimal},
			{Name: "Contact", Type: core.TypeString},
		},
	}
	return mapping.NewMapper(target,
		mapping.NewFieldMapping("Name", core.TypeString,
			rules.NewCopy(core.NewFieldTransformation("Name", transform.NewTrim(""))),
			mapping.WithRequired(), mapping.WithMaxLength(10)),
		mapping.NewFieldMapping("Price", core.TypeDecimal,
			rules.NewCopy(core.NewFieldTransformation("Price", transform.NewCalculate("${0} * 1.1", 2)))),
		mapping.NewFieldMapping("Contact", core.TypeString,
			rules.NewCombineFields("${0} ${1}",
				core.NewFieldTransformation("First"),
				core.NewFieldTransformation("Last"))),
	)
}

// TestPipelineBuilder_Build tests required components
func TestPipelineBuilder_Build(t *testing.T) {
	_, err := NewPipeline().Map(productMapper()).To(&memorySink{}).Build()
	assert.EqualError(t, err, "pipeline requires a data source")

	_, err = NewPipeline().From(sourceRecords()).To(&memorySink{}).Build()
	assert.EqualError(t, err, "pipeline requires a mapper")

	_, err = NewPipeline().From(sourceRecords()).Map(productMapper()).Build()
	assert.EqualError(t, err, "pipeline requires a data sink")

	p, err := NewPipeline().From(sourceRecords()).Map(productMapper()).To(&memorySink{}).Build()
	require.NoError(t, err)
	assert.Equal(t, "source", p.sourceName)
	assert.Equal(t, FailFast, p.strategy)
}

// TestPipeline_FailFast tests that the first invalid row stops the run
func TestPipeline_FailFast(t *testing.T) {
	sink := &memorySink{}
	p, err := NewPipeline().From(sourceRecords()).Map(productMapper()).To(sink).Build()
	require.NoError(t, err)

	report, err := p.Execute(context.Background())
	require.Error(t, err)

	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 2, rowErr.Row)
	assert.Contains(t, rowErr.Cells, "Name")
	assert.Contains(t, rowErr.Cells, "Price")
	assert.Contains(t, rowErr.Error(), "row 2: Name:")

	assert.Equal(t, 3, report.RowsRead)
	assert.Equal(t, 0, report.RowsWritten)
	assert.Empty(t, sink.records)
	assert.True(t, sink.closed)
}

// TestPipeline_ExecuteOnce tests that a consumed pipeline refuses to run again
func TestPipeline_ExecuteOnce(t *testing.T) {
	sink := &memorySink{}
	p, err := NewPipeline().
		From(sourceRecords()).
		Map(productMapper()).
		To(sink).
		WithErrorStrategy(SkipErrors).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.records, 2)

	report, err := p.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPipelineExecuted)
	var pErr *PipelineError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "execute", pErr.Op)
	require.NotNil(t, report)
	assert.Equal(t, 0, report.RowsRead)
	assert.Len(t, sink.records, 2)
}

// TestPipeline_SkipErrors tests that invalid rows are dropped
func TestPipeline_SkipErrors(t *testing.T) {
	sink := &memorySink{}
	var handled []error
	handler := ErrorHandlerFunc(func(ctx context.Context, record Record, err error) error {
		handled = append(handled, err)
		return nil
	})
	p, err := NewPipeline().
		From(sourceRecords()).
		Map(productMapper()).
		To(sink).
		WithErrorStrategy(SkipErrors).
		WithErrorHandler(handler).
		Build()
	require.NoError(t, err)

	report, err := p.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.RowsRead)
	assert.Equal(t, 2, report.RowsWritten)
	assert.Equal(t, 1, report.RowsSkipped)
	assert.Equal(t, 2, report.CellErrors)
	require.Len(t, report.Errors, 1)
	assert.Len(t, handled, 1)

	require.Len(t, sink.records, 2)
	assert.Equal(t, "Widget", sink.records[0]["Name"])
	assert.True(t, decimal.RequireFromString("21.99").Equal(sink.records[0]["Price"].(decimal.Decimal)))
	assert.Equal(t, "Alan Turing", sink.records[1]["Contact"])

	require.NotNil(t, sink.schema)
	assert.Equal(t, "products", sink.schema.Name)
	assert.True(t, sink.flushed)
	assert.True(t, sink.closed)
}

// TestPipeline_CollectErrors tests that invalid rows are written and reported
func TestPipeline_CollectErrors(t *testing.T) {
	sink := &memorySink{}
	p, err := NewPipeline().
		From(sourceRecords()).
		Map(productMapper()).
		To(sink).
		WithErrorStrategy(CollectErrors).
		Build()
	require.NoError(t, err)

	report, err := p.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.RowsWritten)
	assert.Equal(t, 0, report.RowsSkipped)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 2, report.Errors[0].Row)

	require.Len(t, sink.records, 3)
	assert.Nil(t, sink.records[2]["Price"])
}

// TestPipeline_HandlerStops tests that a handler error ends the run
func TestPipeline_HandlerStops(t *testing.T) {
	stop := errors.New("stop")
	p, err := NewPipeline().
		From(sourceRecords()).
		Map(productMapper()).
		To(&memorySink{}).
		WithErrorStrategy(SkipErrors).
		WithErrorHandler(ErrorHandlerFunc(func(ctx context.Context, record Record, err error) error {
			return stop
		})).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	assert.ErrorIs(t, err, stop)
}

// TestPipeline_Where tests source row filtering
func TestPipeline_Where(t *testing.T) {
	sink := &memorySink{}
	p, err := NewPipeline().
		From(sourceRecords()).
		Where(filter.NewIsNotNullOrEmpty(rules.NewFieldAccess("Last"))).
		Map(productMapper()).
		To(sink).
		Build()
	require.NoError(t, err)

	report, err := p.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.RowsRead)
	assert.Equal(t, 1, report.RowsFiltered)
	assert.Equal(t, 2, report.RowsWritten)
	assert.Empty(t, report.Errors)
	assert.Len(t, sink.records, 2)
}

// TestPipeline_QualityCheck tests the batch check before writing
func TestPipeline_QualityCheck(t *testing.T) {
	sink := &memorySink{}
	p, err := NewPipeline().
		From(sourceRecords()).
		Map(productMapper()).
		Check(validators.NewDataQualityValidator(5, nil)).
		To(sink).
		WithErrorStrategy(SkipErrors).
		Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "quality", pe.Op)
	assert.Contains(t, err.Error(), "insufficient records")
	assert.Empty(t, sink.records)
	assert.True(t, sink.closed)
}

// TestPipeline_Prepare tests that configuration errors abort before mapping
func TestPipeline_Prepare(t *testing.T) {
	src := readers.NewSliceReader([]core.Record{{"Name": "Widget"}})
	p, err := NewPipeline().From(src).Map(productMapper()).To(&memorySink{}).WithErrorStrategy(CollectErrors).Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "prepare", pe.Op)
	assert.Contains(t, err.Error(), "Price")
}

// TestPipeline_WriteError tests that sink failures abort
func TestPipeline_WriteError(t *testing.T) {
	sink := &memorySink{failOn: 2}
	p, err := NewPipeline().From(sourceRecords()).Map(productMapper()).To(sink).WithErrorStrategy(SkipErrors).Build()
	require.NoError(t, err)

	report, err := p.Execute(context.Background())
	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "write", pe.Op)
	assert.Equal(t, 1, report.RowsWritten)
	assert.True(t, sink.closed)
}
