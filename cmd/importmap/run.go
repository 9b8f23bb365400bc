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


package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/importmap"
	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/readers"
	"github.com/aaronlmathis/importmap/types"
	"github.com/aaronlmathis/importmap/validators"
)

type runFlags struct {
	sourceFlags
	output       string
	outputFormat string
	outputTable  string
	createTable  bool
	strategy     string
	minRecords   int
	maxNullRate  float64
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Map a source and write the destination records",
		Long: `Run loads the source, evaluates the mapping configuration over every row and
writes the typed destination records to the output location.

Examples:
  importmap run -c products.yaml -s legacy.csv -o products.parquet
  importmap run -c products.yaml -s s3://exports/2025/ -o postgres://localhost/shop --output-table products --create-table
  importmap run -c products.yaml -s mongodb://localhost/shop --collection items -o items.jsonl --error-strategy skip`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, g, f)
		},
	}
	f.bind(cmd)
	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "Output location: file path, s3://, postgres:// or mongodb://")
	fl.StringVar(&f.outputFormat, "output-format", "", "Output format (csv, tsv, json, jsonl, parquet); detected from the name when empty")
	fl.StringVar(&f.outputTable, "output-table", "", "PostgreSQL table or MongoDB collection to write")
	fl.BoolVar(&f.createTable, "create-table", false, "Create the PostgreSQL output table when missing")
	fl.StringVar(&f.strategy, "error-strategy", "fail-fast", "Invalid row handling: fail-fast, skip or collect")
	fl.IntVar(&f.minRecords, "min-records", 0, "Fail when fewer records would be written")
	fl.Float64Var(&f.maxNullRate, "max-null-rate", 0, "Fail when any column has a higher null rate (0 disables)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runImport(cmd *cobra.Command, g *globalFlags, f *runFlags) error {
	ctx := cmd.Context()
	logger, err := g.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	strategy, err := core.ParseErrorStrategy(f.strategy)
	if err != nil {
		return err
	}
	mapper, err := f.mapper()
	if err != nil {
		return err
	}

	out, err := types.ParseLocation(f.output, types.LocationOptions{
		Table:      f.outputTable,
		Collection: f.outputTable,
		Create:     f.createTable,
	})
	if err != nil {
		return err
	}
	loc, src, err := f.open(ctx)
	if err != nil {
		return err
	}
	sink, err := out.NewSink(ctx, readers.Format(f.outputFormat))
	if err != nil {
		src.Close()
		return err
	}

	builder := importmap.NewPipeline().
		From(src).
		Named(loc.String()).
		Map(mapper).
		To(sink).
		WithErrorStrategy(strategy).
		WithLogger(logger)
	if f.minRecords > 0 || f.maxNullRate > 0 {
		builder.Check(validators.NewDataQualityValidator(f.minRecords, nil, validators.WithMaxNullRate(f.maxNullRate)))
	}
	pipeline, err := builder.Build()
	if err != nil {
		return err
	}

	report, err := pipeline.Execute(ctx)
	for _, rowErr := range report.Errors {
		logger.Warn("invalid row", "row", rowErr.Row, "error", rowErr)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "read %d, filtered %d, written %d, skipped %d, cell errors %d -> %s\n",
		report.RowsRead, report.RowsFiltered, report.RowsWritten, report.RowsSkipped, report.CellErrors, out)
	return nil
}
