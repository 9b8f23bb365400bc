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
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMongoWriter_Validation(t *testing.T) {
	_, err := NewMongoWriter(context.Background(), WithMongoWriterCollection("products"))
	var mErr *MongoWriterError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "validate", mErr.Op)

	_, err = NewMongoWriter(context.Background(), WithMongoWriterDatabase("shop"), WithMongoWriterCollection("p"),
		WithMongoWriterBatchSize(0))
	assert.ErrorContains(t, err, "batch size must be positive")
}

func TestToBSON(t *testing.T) {
	doc, err := toBSON(productRecord())
	require.NoError(t, err)

	dec, ok := doc["Price"].(primitive.Decimal128)
	require.True(t, ok)
	assert.Equal(t, "21.99", dec.String())
	assert.Equal(t, primitive.NewDateTimeFromTime(time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)), doc["Updated"])
	assert.Equal(t, []string{"red", "large"}, doc["Tags"])
	assert.Equal(t, int64(4), doc["Stock"])
}

func TestMongoWriter_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	writer, err := NewMongoWriter(ctx,
		WithMongoWriterURI(uri),
		WithMongoWriterDatabase("importmap_test"),
		WithMongoWriterCollection("products_out"),
		WithMongoWriterDrop(true),
		WithMongoWriterBatchSize(2),
	)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, writer.Write(ctx, productRecord()))
	}
	require.NoError(t, writer.Close())
	assert.Equal(t, int64(3), writer.Stats().RecordsWritten)
}
