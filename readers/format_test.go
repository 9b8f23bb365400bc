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
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFromName(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatFromName("exports/Products.CSV"))
	assert.Equal(t, FormatTSV, FormatFromName("a.tsv"))
	assert.Equal(t, FormatJSONL, FormatFromName("a.ndjson"))
	assert.Equal(t, FormatXLSX, FormatFromName("book.xlsx"))
	assert.Equal(t, FormatParquet, FormatFromName("part-0001.parquet"))
	assert.Equal(t, Format(""), FormatFromName("README"))
}

func TestJSONDocumentReader(t *testing.T) {
	body := io.NopCloser(strings.NewReader(`[{"a":1},{"a":2}]`))
	reader, err := NewJSONDocumentReader(body, "")
	require.NoError(t, err)
	assert.Len(t, readAllRecords(t, reader), 2)

	body = io.NopCloser(strings.NewReader(`{"name":"single"}`))
	reader, err = NewJSONDocumentReader(body, "")
	require.NoError(t, err)
	records := readAllRecords(t, reader)
	require.Len(t, records, 1)
	assert.Equal(t, "single", records[0]["name"])

	_, err = NewJSONDocumentReader(io.NopCloser(strings.NewReader(`{"data":[1]}`)), "data")
	assert.ErrorContains(t, err, "element 0")

	_, err = NewJSONDocumentReader(io.NopCloser(strings.NewReader(`{"data":[]}`)), "rows")
	assert.ErrorContains(t, err, `path element "rows" not found`)
}

func TestOpenFormat_TSV(t *testing.T) {
	src, err := OpenFormat(FormatTSV, io.NopCloser(strings.NewReader("a\tb\n1\t2\n")), FormatOptions{})
	require.NoError(t, err)
	records := readAllRecords(t, src)
	require.Len(t, records, 1)
	assert.Equal(t, "2", records[0]["b"])

	_, err = OpenFormat("xml", io.NopCloser(strings.NewReader("")), FormatOptions{})
	assert.ErrorContains(t, err, "unsupported format")
}
