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
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/filter"
	"github.com/aaronlmathis/importmap/mapping"
	"github.com/aaronlmathis/importmap/validators"
)

// Package importmap maps a tabular source onto a destination schema and
// writes the typed result to a sink.
//
// A pipeline loads the whole source into a core.Table, keeps the rows that
// pass its filters, evaluates every field mapping over the remaining rows,
// validates each destination cell and materializes the valid rows into typed
// records before handing them to the sink.
//
// Example usage:
//
//	pipeline, err := importmap.NewPipeline().
//	    From(csvReader).
//	    Where(filter.NewIsNotNullOrEmpty(rules.NewFieldAccess("Sku"))).
//	    Map(mapper).
//	    To(parquetWriter).
//	    WithErrorStrategy(importmap.SkipErrors).
//	    Build()
//	if err != nil { log.Fatal(err) }
//	report, err := pipeline.Execute(context.Background())
//
// Rows are evaluated sequentially; sources and sinks are consumed on the
// calling goroutine.

// ErrPipelineExecuted is returned by Execute on a pipeline that already ran.
// Its source and sink are consumed by the first run.
var ErrPipelineExecuted = errors.New("pipeline already executed")

// PipelineError is returned when a pipeline stage fails as a whole.
type PipelineError struct {
	Op  string
	Err error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// RowError describes a destination row that failed validation or
// materialization. Row is the index in the filtered source.
type RowError struct {
	Row   int
	Cells map[string][]string
	Err   error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	cols := make([]string, 0, len(e.Cells))
	for c := range e.Cells {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("%s: %s", c, strings.Join(e.Cells[c], "; ")))
	}
	return fmt.Sprintf("row %d: %s", e.Row, strings.Join(parts, ", "))
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Report summarizes one pipeline run.
type Report struct {
	RowsRead     int
	RowsFiltered int
	RowsWritten  int
	RowsSkipped  int
	CellErrors   int
	Errors       []*RowError
	Duration     time.Duration
}

// PipelineBuilder provides a fluent API for constructing import pipelines.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			filters:  make([]Filter, 0),
			strategy: FailFast,
			logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	}
}

// From sets the DataSource for the pipeline.
func (pb *PipelineBuilder) From(source DataSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// Named sets the name given to the loaded source table.
func (pb *PipelineBuilder) Named(name string) *PipelineBuilder {
	pb.pipeline.sourceName = name
	return pb
}

// Filter adds a source row filter.
func (pb *PipelineBuilder) Filter(f Filter) *PipelineBuilder {
	pb.pipeline.filters = append(pb.pipeline.filters, f)
	return pb
}

// Where keeps only the source rows for which cmp holds.
func (pb *PipelineBuilder) Where(cmp core.Comparison) *PipelineBuilder {
	return pb.Filter(filter.Where(cmp))
}

// Map sets the mapper that turns source rows into destination rows.
func (pb *PipelineBuilder) Map(m *mapping.Mapper) *PipelineBuilder {
	pb.pipeline.mapper = m
	return pb
}

// Check runs a quality check over the materialized records before any of
// them is written.
func (pb *PipelineBuilder) Check(v *validators.DataQualityValidator) *PipelineBuilder {
	pb.pipeline.quality = v
	return pb
}

// To sets the DataSink for the pipeline.
func (pb *PipelineBuilder) To(sink DataSink) *PipelineBuilder {
	pb.pipeline.sink = sink
	return pb
}

// WithErrorStrategy sets how rows with failed cells are treated.
func (pb *PipelineBuilder) WithErrorStrategy(strategy ErrorStrategy) *PipelineBuilder {
	pb.pipeline.strategy = strategy
	return pb
}

// WithErrorHandler sets a handler that observes every row failure.
func (pb *PipelineBuilder) WithErrorHandler(handler ErrorHandler) *PipelineBuilder {
	pb.pipeline.errorHandler = handler
	return pb
}

// WithLogger sets the structured logger. The default discards output.
func (pb *PipelineBuilder) WithLogger(logger *slog.Logger) *PipelineBuilder {
	if logger != nil {
		pb.pipeline.logger = logger
	}
	return pb
}

// Build validates and constructs the Pipeline.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	if pb.pipeline.source == nil {
		return nil, fmt.Errorf("pipeline requires a data source")
	}
	if pb.pipeline.mapper == nil {
		return nil, fmt.Errorf("pipeline requires a mapper")
	}
	if pb.pipeline.sink == nil {
		return nil, fmt.Errorf("pipeline requires a data sink")
	}
	if pb.pipeline.sourceName == "" {
		pb.pipeline.sourceName = "source"
	}
	return pb.pipeline, nil
}

// Pipeline imports one source into one sink through a mapper.
type Pipeline struct {
	source       DataSource
	sourceName   string
	filters      []Filter
	mapper       *mapping.Mapper
	quality      *validators.DataQualityValidator
	sink         DataSink
	strategy     ErrorStrategy
	errorHandler ErrorHandler
	logger       *slog.Logger
	executed     atomic.Bool
}

// Execute runs the pipeline. The source and the sink are closed on return, so
// a pipeline runs once; later calls return ErrPipelineExecuted. The report is
// returned even when the run fails part way.
func (p *Pipeline) Execute(ctx context.Context) (report *Report, err error) {
	start := time.Now()
	report = &Report{}
	if !p.executed.CompareAndSwap(false, true) {
		return report, &PipelineError{Op: "execute", Err: ErrPipelineExecuted}
	}
	defer func() {
		report.Duration = time.Since(start)
		if cerr := p.closeSink(); cerr != nil && err == nil {
			err = &PipelineError{Op: "close", Err: cerr}
		}
	}()

	table, err := p.load(ctx)
	if err != nil {
		return report, err
	}
	report.RowsRead = table.Len()
	p.logger.Info("source loaded", "source", p.sourceName, "rows", table.Len(), "columns", len(table.Columns))

	if err := p.mapper.Prepare(table); err != nil {
		return report, &PipelineError{Op: "prepare", Err: err}
	}

	filtered, err := p.applyFilters(ctx, table)
	if err != nil {
		return report, err
	}
	report.RowsFiltered = table.Len() - filtered.Len()
	if report.RowsFiltered > 0 {
		p.logger.Info("rows filtered", "filtered", report.RowsFiltered, "kept", filtered.Len())
	}

	out, err := p.mapper.ApplyTable(ctx, filtered)
	if err != nil {
		return report, &PipelineError{Op: "map", Err: err}
	}
	report.CellErrors = out.ErrorCount()

	records, err := p.collect(ctx, out, report)
	if err != nil {
		return report, err
	}

	if p.quality != nil {
		if err := p.quality.Validate(records); err != nil {
			return report, &PipelineError{Op: "quality", Err: err}
		}
	}

	if err := p.write(ctx, records, report); err != nil {
		return report, err
	}
	p.logger.Info("pipeline complete",
		"read", report.RowsRead,
		"written", report.RowsWritten,
		"skipped", report.RowsSkipped,
		"cell_errors", report.CellErrors,
		"duration", time.Since(start))
	return report, nil
}

func (p *Pipeline) load(ctx context.Context) (*core.Table, error) {
	defer p.source.Close()
	table, err := core.LoadTable(ctx, p.sourceName, p.source)
	if err != nil {
		return nil, &PipelineError{Op: "load", Err: err}
	}
	return table, nil
}

// applyFilters returns a table holding the rows every filter accepts.
// Operand failures count against the row; configuration errors abort.
func (p *Pipeline) applyFilters(ctx context.Context, table *core.Table) (*core.Table, error) {
	if len(p.filters) == 0 {
		return table, nil
	}
	kept := core.NewTable(table.Name, table.Columns...)
	for i := range table.Rows {
		include, err := p.shouldInclude(ctx, table, i)
		if err != nil {
			if filter.IsConfigurationError(err) {
				return nil, &PipelineError{Op: "filter", Err: err}
			}
			p.logger.Debug("filter failed", "row", i, "error", err)
			continue
		}
		if include {
			kept.Rows = append(kept.Rows, table.Rows[i])
		}
	}
	return kept, nil
}

func (p *Pipeline) shouldInclude(ctx context.Context, table *core.Table, i int) (bool, error) {
	row := core.NewRowResult(table, i)
	for _, f := range p.filters {
		include, err := f.ShouldInclude(ctx, row)
		if err != nil {
			return false, err
		}
		if !include {
			return false, nil
		}
	}
	return true, nil
}

// collect materializes the rows of out, applying the error strategy to rows
// with failed cells.
func (p *Pipeline) collect(ctx context.Context, out *mapping.Output, report *Report) ([]Record, error) {
	records := make([]Record, 0, out.Table.Len())
	for i := 0; i < out.Table.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, merr := p.mapper.MaterializeRow(out, i)

		var rowErr *RowError
		switch {
		case merr != nil:
			rowErr = &RowError{Row: i, Cells: out.RowErrors(i), Err: merr}
		case len(out.RowErrors(i)) > 0:
			rowErr = &RowError{Row: i, Cells: out.RowErrors(i)}
		}
		if rowErr == nil {
			records = append(records, rec)
			continue
		}

		report.Errors = append(report.Errors, rowErr)
		if err := p.handleError(ctx, rec, rowErr); err != nil {
			return nil, err
		}
		if p.strategy == CollectErrors && merr == nil {
			records = append(records, rec)
			continue
		}
		report.RowsSkipped++
		p.logger.Debug("row skipped", "row", i, "error", rowErr)
	}
	return records, nil
}

func (p *Pipeline) write(ctx context.Context, records []Record, report *Report) error {
	if ss, ok := p.sink.(SchemaSink); ok {
		if err := ss.SetSchema(p.mapper.Target); err != nil {
			return &PipelineError{Op: "schema", Err: err}
		}
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.sink.Write(ctx, rec); err != nil {
			return &PipelineError{Op: "write", Err: err}
		}
		report.RowsWritten++
	}
	if err := p.sink.Flush(); err != nil {
		return &PipelineError{Op: "flush", Err: err}
	}
	return nil
}

func (p *Pipeline) closeSink() error {
	if p.sink == nil {
		return nil
	}
	sink := p.sink
	p.sink = nil
	return sink.Close()
}

// handleError applies the error strategy to a row failure. A non-nil return
// stops the pipeline.
func (p *Pipeline) handleError(ctx context.Context, record Record, rowErr *RowError) error {
	switch p.strategy {
	case SkipErrors, CollectErrors:
		if p.errorHandler != nil {
			if err := p.errorHandler.HandleError(ctx, record, rowErr); err != nil {
				return errors.Join(rowErr, err)
			}
		}
		return nil
	default:
		if p.errorHandler != nil {
			_ = p.errorHandler.HandleError(ctx, record, rowErr)
		}
		return rowErr
	}
}
