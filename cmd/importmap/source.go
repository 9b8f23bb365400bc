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
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/importmap/config"
	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/mapping"
	"github.com/aaronlmathis/importmap/readers"
	"github.com/aaronlmathis/importmap/types"
)

// sourceFlags select the mapping configuration and the source to read.
type sourceFlags struct {
	config     string
	source     string
	format     string
	table      string
	query      string
	collection string
	dataPath   string
	delimiter  string
	nullValues []string
}

func (f *sourceFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "c", "", "Mapping configuration (YAML)")
	fl.StringVarP(&f.source, "source", "s", "", "Source location: file path, s3://, http(s)://, postgres:// or mongodb://")
	fl.StringVar(&f.format, "source-format", "", "Source format (csv, tsv, json, jsonl, xlsx, parquet); detected from the name when empty")
	fl.StringVar(&f.table, "source-table", "", "PostgreSQL source table")
	fl.StringVar(&f.query, "query", "", "PostgreSQL source query")
	fl.StringVar(&f.collection, "collection", "", "MongoDB source collection")
	fl.StringVar(&f.dataPath, "data-path", "", "Dotted path to the records inside a JSON document")
	fl.StringVar(&f.delimiter, "delimiter", "", "CSV field delimiter")
	fl.StringSliceVar(&f.nullValues, "null-values", nil, "CSV cell values read as null")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("source")
}

func (f *sourceFlags) csvOptions() ([]readers.ReaderOptionCSV, error) {
	var opts []readers.ReaderOptionCSV
	if f.delimiter != "" {
		r, size := utf8.DecodeRuneInString(f.delimiter)
		if size != len(f.delimiter) {
			return nil, fmt.Errorf("--delimiter must be a single character, got %q", f.delimiter)
		}
		opts = append(opts, readers.WithCSVComma(r))
	}
	if len(f.nullValues) > 0 {
		opts = append(opts, readers.WithCSVNullValues(f.nullValues...))
	}
	return opts, nil
}

// mapper loads and builds the mapping configuration.
func (f *sourceFlags) mapper() (*mapping.Mapper, error) {
	cfg, err := config.LoadFile(f.config)
	if err != nil {
		return nil, err
	}
	return config.Build(cfg)
}

// open resolves the source location and opens its reader.
func (f *sourceFlags) open(ctx context.Context) (types.Location, core.DataSource, error) {
	csvOpts, err := f.csvOptions()
	if err != nil {
		return nil, nil, err
	}
	loc, err := types.ParseLocation(f.source, types.LocationOptions{
		Table:      f.table,
		Query:      f.query,
		Collection: f.collection,
		DataPath:   f.dataPath,
		CSV:        csvOpts,
	})
	if err != nil {
		return nil, nil, err
	}
	src, err := loc.NewSource(ctx, readers.Format(f.format))
	if err != nil {
		return nil, nil, err
	}
	return loc, src, nil
}

// load reads the whole source into a table.
func (f *sourceFlags) load(ctx context.Context) (*core.Table, error) {
	loc, src, err := f.open(ctx)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return core.LoadTable(ctx, loc.String(), src)
}
