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
	"database/sql/driver"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/importmap/core"
)

func TestPostgresWriter_Validation(t *testing.T) {
	tests := []struct {
		name    string
		options []PostgresWriterOption
		errMsg  string
	}{
		{"missing dsn", []PostgresWriterOption{WithTableName("t")}, "dsn or db is required"},
		{"missing table", []PostgresWriterOption{WithPostgresDSN("postgres://x")}, "table name is required"},
		{"bad batch", []PostgresWriterOption{WithPostgresDSN("postgres://x"), WithTableName("t"), WithPostgresBatchSize(0)}, "batch size"},
		{
			"update without columns",
			[]PostgresWriterOption{WithPostgresDSN("postgres://x"), WithTableName("t"),
				WithConflictResolution(ConflictUpdate, []string{"id"}, nil)},
			"update columns required",
		},
		{
			"ignore without conflict columns",
			[]PostgresWriterOption{WithPostgresDSN("postgres://x"), WithTableName("t"),
				WithConflictResolution(ConflictIgnore, nil, nil)},
			"conflict columns required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPostgresWriter(context.Background(), tt.options...)
			var pgErr *PostgresWriterError
			require.ErrorAs(t, err, &pgErr)
			assert.Equal(t, "validate", pgErr.Op)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestInsertQuery(t *testing.T) {
	opts := defaultPostgresWriterOptions()
	opts.TableName = "shop.products"
	cols := []string{"Sku", "Price"}

	assert.Equal(t, `INSERT INTO "shop"."products" ("Sku", "Price") VALUES ($1, $2)`, insertQuery(opts, cols))

	opts.ConflictResolution = ConflictIgnore
	opts.ConflictColumns = []string{"Sku"}
	assert.Equal(t, `INSERT INTO "shop"."products" ("Sku", "Price") VALUES ($1, $2) ON CONFLICT ("Sku") DO NOTHING`,
		insertQuery(opts, cols))

	opts.ConflictResolution = ConflictUpdate
	opts.UpdateColumns = []string{"Price"}
	assert.Equal(t, `INSERT INTO "shop"."products" ("Sku", "Price") VALUES ($1, $2) ON CONFLICT ("Sku") DO UPDATE SET "Price" = EXCLUDED."Price"`,
		insertQuery(opts, cols))
}

func TestCreateTableQuery(t *testing.T) {
	w := &PostgresWriter{}
	w.columnTypes = map[string]core.ValueType{"Price": core.TypeDecimal, "Tags": core.TypeCollection}
	query := createTableQuery("products", []string{"Price", "Tags", "Seen"},
		w.columnType(core.Record{"Seen": time.Now()}))
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "products" ("Price" NUMERIC, "Tags" TEXT[], "Seen" TIMESTAMPTZ)`, query)
}

func TestConvertValue(t *testing.T) {
	assert.Nil(t, convertValue(nil))
	assert.Equal(t, "21.99", convertValue(decimal.RequireFromString("21.99")))
	assert.Equal(t, int64(3), convertValue(3))
	assert.Equal(t, true, convertValue(true))

	arr, ok := convertValue([]string{"a", "b"}).(driver.Valuer)
	require.True(t, ok)
	v, err := arr.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a","b"}`, v)
}

func TestPostgresWriter_Integration(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	writer, err := NewPostgresWriter(ctx,
		WithPostgresDSN(dsn),
		WithTableName("importmap_writer_test"),
		WithCreateTable(true),
		WithTruncateTable(true),
		WithPostgresBatchSize(2),
	)
	require.NoError(t, err)
	require.NoError(t, writer.SetSchema(productSchema()))

	for i := 0; i < 3; i++ {
		require.NoError(t, writer.Write(ctx, productRecord()))
	}
	require.NoError(t, writer.Close())
	assert.Equal(t, int64(3), writer.Stats().RecordsWritten)
}
