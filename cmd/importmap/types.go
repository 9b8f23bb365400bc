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
	"strings"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/importmap/catalog"
	"github.com/aaronlmathis/importmap/config"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types [rules|transformations|comparisons]",
		Short: "List the registered type identifiers",
		Long:  `Types lists the identifiers accepted in the "type" keys of a mapping configuration.`,
		Args:  cobra.MaximumNArgs(1),
		ValidArgs: []string{
			"rules", "transformations", "comparisons",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			families := []struct {
				name string
				ids  []string
			}{
				{"rules", catalog.Rules().Registered()},
				{"transformations", catalog.Transformations().Registered()},
				{"comparisons", catalog.Comparisons().Registered()},
			}
			w := cmd.OutOrStdout()
			shown := 0
			for _, fam := range families {
				if len(args) == 1 && args[0] != fam.name {
					continue
				}
				fmt.Fprintf(w, "%s:\n  %s\n", fam.name, strings.Join(fam.ids, "\n  "))
				shown++
			}
			if shown == 0 {
				return fmt.Errorf("unknown type family %q", args[0])
			}
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export CONFIG",
		Short: "Build a mapping configuration and write it back in canonical form",
		Long: `Export builds the mapping configuration, which checks every type identifier
and operand, then writes the configuration exported from the built mapping.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(args[0])
			if err != nil {
				return err
			}
			m, err := config.Build(cfg)
			if err != nil {
				return err
			}
			exported, err := config.Export(m)
			if err != nil {
				return err
			}
			if output != "" {
				return config.WriteFile(output, exported)
			}
			data, err := config.Marshal(exported)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}
