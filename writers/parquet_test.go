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
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/readers"
)

func readParquet(t *testing.T, filename string) []core.Record {
	t.Helper()
	reader, err := readers.NewParquetReader(filename)
	require.NoError(t, err)
	defer reader.Close()

	var out []core.Record
	for {
		rec, err := reader.Read(context.Background())
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestParquetWriter_SchemaRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "out", "products.parquet")

	writer, err := NewParquetWriter(filename, WithBatchSize(1), WithDecimalScale(2),
		WithCompression(compress.Codecs.Gzip))
	require.NoError(t, err)
	require.NoError(t, writer.SetSchema(productSchema()))

	schema := writer.Schema()
	require.NotNil(t, schema)
	assert.Equal(t, arrow.DECIMAL128, schema.Field(1).Type.ID())
	assert.Equal(t, arrow.LIST, schema.Field(5).Type.ID())

	ctx := context.Background()
	require.NoError(t, writer.Write(ctx, productRecord()))
	require.NoError(t, writer.Write(ctx, core.Record{"Sku": "WID-2", "Price": decimal.RequireFromString("3.145")}))
	require.NoError(t, writer.Close())

	stats := writer.Stats()
	assert.Equal(t, int64(2), stats.RecordsWritten)
	assert.Equal(t, int64(2), stats.BatchesWritten)
	assert.Equal(t, int64(1), stats.NullValueCounts["Stock"])

	records := readParquet(t, filename)
	require.Len(t, records, 2)
	assert.Equal(t, "WID-1", records[0]["Sku"])
	assert.Equal(t, "21.99", records[0]["Price"])
	assert.Equal(t, int64(4), records[0]["Stock"])
	assert.Equal(t, true, records[0]["Active"])
	assert.Equal(t, time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC), records[0]["Updated"])
	assert.Equal(t, []interface{}{"red", "large"}, records[0]["Tags"])

	assert.Equal(t, "3.14", records[1]["Price"])
	assert.Nil(t, records[1]["Stock"])
}

func TestParquetWriter_InferredSchema(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "inferred.parquet")

	writer, err := NewParquetWriter(filename)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Write(ctx, core.Record{"id": int64(1), "name": "Alice", "score": 95.5}))
	require.NoError(t, writer.Write(ctx, core.Record{"id": int64(2), "name": nil, "score": 87.25}))
	require.NoError(t, writer.Close())

	names := make([]string, 0, 3)
	for _, f := range writer.Schema().Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"id", "name", "score"}, names)

	records := readParquet(t, filename)
	require.Len(t, records, 2)
	assert.Equal(t, 87.25, records[1]["score"])
	assert.Nil(t, records[1]["name"])
}

func TestParquetWriter_Errors(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "bad.parquet")
	writer, err := NewParquetWriter(filename, WithBatchSize(1))
	require.NoError(t, err)

	ctx := context.Background()
	err = writer.Write(ctx, core.Record{"v": struct{}{}})
	var pErr *ParquetWriterError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "schema", pErr.Op)
	assert.ErrorContains(t, writer.Write(ctx, core.Record{"v": "x"}), "error state")
	require.NoError(t, writer.Close())

	filename = filepath.Join(t.TempDir(), "mismatch.parquet")
	writer, err = NewParquetWriter(filename, WithBatchSize(1))
	require.NoError(t, err)
	require.NoError(t, writer.Write(ctx, core.Record{"n": int64(1)}))
	err = writer.Write(ctx, core.Record{"n": "two"})
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "append_value", pErr.Op)
	writer.Close()

	_, err = os.Stat(filename)
	assert.NoError(t, err)
}

func TestParquetWriter_EmptyWithSchema(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "empty.parquet")
	writer, err := NewParquetWriter(filename)
	require.NoError(t, err)
	require.NoError(t, writer.SetSchema(productSchema()))
	require.NoError(t, writer.Close())

	assert.Empty(t, readParquet(t, filename))
	assert.Error(t, writer.SetSchema(productSchema()))
}
