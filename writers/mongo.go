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
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aaronlmathis/importmap/core"
)

// This file implements a MongoDB sink inserting records in batches.

// MongoWriterError wraps MongoDB write errors with context about the operation.
type MongoWriterError struct {
	Op         string
	Collection string
	Err        error
}

func (e *MongoWriterError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo writer %s [%s]: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo writer %s: %v", e.Op, e.Err)
}

func (e *MongoWriterError) Unwrap() error {
	return e.Err
}

// MongoWriterStats holds MongoDB write statistics.
type MongoWriterStats struct {
	RecordsWritten int64
	BatchesWritten int64
	WriteDuration  time.Duration
}

// MongoWriterOptions configures the MongoDB writer.
type MongoWriterOptions struct {
	URI        string
	Database   string
	Collection string
	BatchSize  int
	Ordered    bool // Stop a batch at the first failed insert
	Drop       bool // Drop the collection before the first insert
	Timeout    time.Duration
}

// MongoWriterOption is a functional option for MongoWriterOptions.
type MongoWriterOption func(*MongoWriterOptions)

func WithMongoWriterURI(uri string) MongoWriterOption {
	return func(opts *MongoWriterOptions) { opts.URI = uri }
}

func WithMongoWriterDatabase(database string) MongoWriterOption {
	return func(opts *MongoWriterOptions) { opts.Database = database }
}

func WithMongoWriterCollection(collection string) MongoWriterOption {
	return func(opts *MongoWriterOptions) { opts.Collection = collection }
}

func WithMongoWriterBatchSize(size int) MongoWriterOption {
	return func(opts *MongoWriterOptions) { opts.BatchSize = size }
}

func WithMongoWriterOrdered(ordered bool) MongoWriterOption {
	return func(opts *MongoWriterOptions) { opts.Ordered = ordered }
}

func WithMongoWriterDrop(drop bool) MongoWriterOption {
	return func(opts *MongoWriterOptions) { opts.Drop = drop }
}

// MongoWriter implements core.DataSink for a MongoDB collection.
type MongoWriter struct {
	client     *mongo.Client
	collection *mongo.Collection
	opts       MongoWriterOptions
	buffer     []interface{}
	stats      MongoWriterStats
	dropped    bool
}

// NewMongoWriter connects to MongoDB and returns a writer for the collection.
func NewMongoWriter(ctx context.Context, options ...MongoWriterOption) (*MongoWriter, error) {
	opts := MongoWriterOptions{
		URI:       "mongodb://localhost:27017",
		BatchSize: 500,
		Ordered:   true,
		Timeout:   30 * time.Second,
	}
	for _, option := range options {
		option(&opts)
	}
	if err := validateMongoWriterOptions(opts); err != nil {
		return nil, &MongoWriterError{Op: "validate", Err: err}
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, mongoClientOptions(opts))
	if err != nil {
		return nil, &MongoWriterError{Op: "connect", Err: err}
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, &MongoWriterError{Op: "ping", Err: err}
	}

	return &MongoWriter{
		client:     client,
		collection: client.Database(opts.Database).Collection(opts.Collection),
		opts:       opts,
		buffer:     make([]interface{}, 0, opts.BatchSize),
	}, nil
}

func validateMongoWriterOptions(opts MongoWriterOptions) error {
	if opts.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if opts.Collection == "" {
		return fmt.Errorf("collection name is required")
	}
	if opts.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	return nil
}

func mongoClientOptions(opts MongoWriterOptions) *options.ClientOptions {
	return options.Client().ApplyURI(opts.URI).SetConnectTimeout(opts.Timeout)
}

// Write implements the core.DataSink interface.
func (m *MongoWriter) Write(ctx context.Context, record core.Record) error {
	doc, err := toBSON(record)
	if err != nil {
		return &MongoWriterError{Op: "convert", Collection: m.opts.Collection, Err: err}
	}
	m.buffer = append(m.buffer, doc)
	if len(m.buffer) >= m.opts.BatchSize {
		return m.flush(ctx)
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (m *MongoWriter) Flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
	defer cancel()
	return m.flush(ctx)
}

func (m *MongoWriter) flush(ctx context.Context) error {
	if len(m.buffer) == 0 {
		return nil
	}
	start := time.Now()

	if m.opts.Drop && !m.dropped {
		if err := m.collection.Drop(ctx); err != nil {
			return &MongoWriterError{Op: "drop", Collection: m.opts.Collection, Err: err}
		}
		m.dropped = true
	}

	res, err := m.collection.InsertMany(ctx, m.buffer, options.InsertMany().SetOrdered(m.opts.Ordered))
	if res != nil {
		m.stats.RecordsWritten += int64(len(res.InsertedIDs))
	}
	if err != nil {
		return &MongoWriterError{Op: "insert", Collection: m.opts.Collection, Err: err}
	}
	m.stats.BatchesWritten++
	m.stats.WriteDuration += time.Since(start)
	m.buffer = m.buffer[:0]
	return nil
}

// Close implements the core.DataSink interface.
func (m *MongoWriter) Close() error {
	err := m.Flush()
	if m.client != nil {
		err = errors.Join(err, m.client.Disconnect(context.Background()))
		m.client = nil
	}
	return err
}

// Stats returns MongoDB writer statistics.
func (m *MongoWriter) Stats() MongoWriterStats {
	return m.stats
}

// toBSON converts a materialized record to a BSON document. Decimals keep
// their exact value as Decimal128.
func toBSON(record core.Record) (bson.M, error) {
	doc := make(bson.M, len(record))
	for k, v := range record {
		switch x := v.(type) {
		case decimal.Decimal:
			d, err := primitive.ParseDecimal128(x.String())
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", k, err)
			}
			doc[k] = d
		case time.Time:
			doc[k] = primitive.NewDateTimeFromTime(x)
		default:
			doc[k] = v
		}
	}
	return doc, nil
}
