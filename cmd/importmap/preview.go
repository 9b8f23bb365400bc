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
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/importmap/mapping"
)

const nullCell = "<null>"

type previewFlags struct {
	sourceFlags
	rows  int
	trace bool
}

func newPreviewCmd(g *globalFlags) *cobra.Command {
	f := &previewFlags{}
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the destination values of the first source rows",
		Long: `Preview evaluates the mapping configuration over the first rows of the source
and prints the destination value of every field. Cells that fail validation are
marked with "!" and their messages are listed under the table. With --trace the
input and output of every transformation step are printed as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := g.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			mapper, err := f.mapper()
			if err != nil {
				return err
			}
			table, err := f.load(cmd.Context())
			if err != nil {
				return err
			}
			logger.Debug("source loaded", "rows", table.Len(), "columns", table.Columns)
			if err := mapper.Prepare(table); err != nil {
				return err
			}
			rows, err := mapper.Preview(cmd.Context(), table, f.rows)
			if err != nil {
				return err
			}
			return printPreview(cmd.OutOrStdout(), mapper.Columns(), rows, f.trace)
		},
	}
	f.bind(cmd)
	cmd.Flags().IntVarP(&f.rows, "rows", "n", 10, "Number of rows to preview (0 for all)")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "Print every transformation step")
	return cmd
}

func printPreview(w io.Writer, columns []string, rows []mapping.PreviewRow, trace bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "#\t%s\n", strings.Join(columns, "\t"))

	var problems []string
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cell := row.Cells[col]
			cells[i] = cellText(cell)
			if cell != nil && len(cell.Errors) > 0 {
				cells[i] += " !"
				problems = append(problems, fmt.Sprintf("row %d %s: %s", row.Index, col, strings.Join(cell.Errors, "; ")))
			}
		}
		fmt.Fprintf(tw, "%d\t%s\n", row.Index, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, p := range problems {
		fmt.Fprintln(w, p)
	}
	if trace {
		printTraces(w, columns, rows)
	}
	return nil
}

func cellText(cell *mapping.Cell) string {
	if cell == nil || cell.Result == nil || cell.Result.IsNull() || cell.Result.WasFailure() {
		return nullCell
	}
	return cell.Result.StringValue()
}

func printTraces(w io.Writer, columns []string, rows []mapping.PreviewRow) {
	for _, row := range rows {
		for _, col := range columns {
			cell := row.Cells[col]
			if cell == nil {
				continue
			}
			for _, tr := range cell.Traces {
				for _, step := range tr.Steps {
					out := nullCell
					if !step.Output.IsNull() {
						out = step.Output.StringValue()
					}
					if step.Output.WasFailure() {
						out = "error: " + step.Output.ErrorMessage
					}
					fmt.Fprintf(w, "row %d %s <- %s: %s(%s) = %s\n",
						row.Index, col, tr.Field, step.TypeID, valueText(step.Input), out)
				}
			}
		}
	}
}

func valueText(v *string) string {
	if v == nil {
		return nullCell
	}
	return fmt.Sprintf("%q", *v)
}

type validateFlags struct {
	sourceFlags
	limit int
}

func newValidateCmd(g *globalFlags) *cobra.Command {
	f := &validateFlags{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every source row against the destination constraints",
		Long: `Validate evaluates the mapping configuration over the whole source and reports
every destination cell that fails validation. The command fails when any cell
is invalid or the configuration does not match the source columns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := g.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			mapper, err := f.mapper()
			if err != nil {
				return err
			}
			table, err := f.load(cmd.Context())
			if err != nil {
				return err
			}
			if err := mapper.Prepare(table); err != nil {
				return err
			}
			out, err := mapper.ApplyTable(cmd.Context(), table)
			if err != nil {
				return err
			}
			logger.Info("source validated", "rows", table.Len(), "cell_errors", out.ErrorCount())
			return reportCellErrors(cmd.OutOrStdout(), out, table.Len(), f.limit)
		},
	}
	f.bind(cmd)
	cmd.Flags().IntVar(&f.limit, "limit", 50, "Maximum number of invalid cells to list (0 for all)")
	return cmd
}

// reportCellErrors lists the failed cells of out in row order and returns an
// error when there is at least one.
func reportCellErrors(w io.Writer, out *mapping.Output, rows, limit int) error {
	if out.Valid() {
		fmt.Fprintf(w, "%d rows valid\n", rows)
		return nil
	}
	indexes := make([]int, 0, len(out.CellErrors))
	for i := range out.CellErrors {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	listed := 0
	for _, i := range indexes {
		cols := make([]string, 0, len(out.CellErrors[i]))
		for col := range out.CellErrors[i] {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		for _, col := range cols {
			if limit > 0 && listed == limit {
				fmt.Fprintf(w, "... %d more\n", out.ErrorCount()-listed)
				return fmt.Errorf("%d invalid cells in %d rows", out.ErrorCount(), len(indexes))
			}
			fmt.Fprintf(w, "row %d %s %s: %s\n", i, col, valueText(out.Table.Cell(i, col)), strings.Join(out.CellErrors[i][col], "; "))
			listed++
		}
	}
	return fmt.Errorf("%d invalid cells in %d rows", out.ErrorCount(), len(indexes))
}

