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

package types

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/importmap/core"
	"github.com/aaronlmathis/importmap/readers"
	"github.com/aaronlmathis/importmap/writers"
)

// Package types resolves where an import reads from and writes to. A
// Location pairs an address (file path, S3 key, database table) with the
// reader or writer for its format.

// Location opens data sources and sinks at one address.
type Location interface {
	// NewSource opens a reader. An empty format is detected from the address.
	NewSource(ctx context.Context, format readers.Format) (core.DataSource, error)
	// NewSink opens a writer. An empty format is detected from the address.
	NewSink(ctx context.Context, format readers.Format) (core.DataSink, error)
	// String returns the address for logs.
	String() string
}

// LocationError reports a location that cannot serve a request.
type LocationError struct {
	Location string
	Op       string
	Err      error
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("location %s: %s: %v", e.Location, e.Op, e.Err)
}

func (e *LocationError) Unwrap() error {
	return e.Err
}

// LocationOptions carries the settings an address string cannot express.
type LocationOptions struct {
	Table      string // PostgreSQL table for sinks, or source table without Query
	Query      string // PostgreSQL source query
	Collection string // MongoDB collection
	DataPath   string // JSON path to the record array of HTTP responses
	Create     bool   // create the PostgreSQL sink table when missing
	CSV        []readers.ReaderOptionCSV
}

// ParseLocation resolves an address:
//
//	products.csv, /data/out.parquet   local files
//	s3://bucket/prefix/                S3 objects
//	https://host/export.csv            HTTP download (source only)
//	postgres://user@host/db            PostgreSQL, with Table or Query
//	mongodb://host/db                  MongoDB, with Collection
func ParseLocation(raw string, opts LocationOptions) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare paths and Windows drive letters are files.
		return FileLocation{Path: raw, CSV: opts.CSV}, nil
	}

	switch u.Scheme {
	case "file":
		return FileLocation{Path: u.Path, CSV: opts.CSV}, nil
	case "s3":
		return &S3Location{Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/"), CSV: opts.CSV}, nil
	case "http", "https":
		return HTTPLocation{URL: raw, DataPath: opts.DataPath, CSV: opts.CSV}, nil
	case "postgres", "postgresql":
		return PostgresLocation{DSN: raw, Table: opts.Table, Query: opts.Query, Create: opts.Create}, nil
	case "mongodb", "mongodb+srv":
		collection := opts.Collection
		if collection == "" {
			collection = u.Query().Get("collection")
		}
		return MongoLocation{
			URI:        raw,
			Database:   strings.TrimPrefix(u.Path, "/"),
			Collection: collection,
		}, nil
	}
	return nil, &LocationError{Location: raw, Op: "parse", Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
}

// FileLocation reads and writes a local file.
type FileLocation struct {
	Path string
	CSV  []readers.ReaderOptionCSV
}

func (f FileLocation) String() string { return f.Path }

func (f FileLocation) format(format readers.Format) (readers.Format, error) {
	if format == "" {
		format = readers.FormatFromName(f.Path)
	}
	if format == "" {
		return "", &LocationError{Location: f.Path, Op: "format", Err: fmt.Errorf("cannot detect format from %q", path.Ext(f.Path))}
	}
	return format, nil
}

// NewSource opens the file with the reader for its format.
func (f FileLocation) NewSource(ctx context.Context, format readers.Format) (core.DataSource, error) {
	format, err := f.format(format)
	if err != nil {
		return nil, err
	}
	if format == readers.FormatParquet {
		return readers.NewParquetReader(f.Path)
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, &LocationError{Location: f.Path, Op: "open", Err: err}
	}
	return readers.OpenFormat(format, file, readers.FormatOptions{CSV: f.CSV})
}

// NewSink creates the file and the writer for its format.
func (f FileLocation) NewSink(ctx context.Context, format readers.Format) (core.DataSink, error) {
	format, err := f.format(format)
	if err != nil {
		return nil, err
	}
	if format == readers.FormatParquet {
		return writers.NewParquetWriter(f.Path)
	}
	if !sinkFormat(format) {
		return nil, &LocationError{Location: f.Path, Op: "sink", Err: fmt.Errorf("cannot write format %q", format)}
	}
	file, err := os.Create(f.Path)
	if err != nil {
		return nil, &LocationError{Location: f.Path, Op: "create", Err: err}
	}
	return newStreamSink(format, file)
}

// S3Client is the subset of the S3 API used by S3Location.
type S3Client interface {
	readers.S3API
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Location reads every object under a key prefix and writes one object.
type S3Location struct {
	Bucket string
	Key    string
	Region string
	Client S3Client
	CSV    []readers.ReaderOptionCSV
}

func (s *S3Location) String() string { return "s3://" + s.Bucket + "/" + s.Key }

func (s *S3Location) client(ctx context.Context) (S3Client, error) {
	if s.Client != nil {
		return s.Client, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &LocationError{Location: s.String(), Op: "aws_config", Err: err}
	}
	s.Client = s3.NewFromConfig(cfg)
	return s.Client, nil
}

// NewSource reads the objects under Key. A non-empty format keeps only keys
// with that extension.
func (s *S3Location) NewSource(ctx context.Context, format readers.Format) (core.DataSource, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	opts := []readers.ReaderOptionS3{
		readers.WithS3Bucket(s.Bucket),
		readers.WithS3Prefix(s.Key),
		readers.WithS3CSVOptions(s.CSV...),
	}
	if format != "" {
		opts = append(opts, readers.WithS3Suffix("."+string(format)))
	}
	return readers.NewS3ReaderWithClient(ctx, client, opts...)
}

// NewSink buffers the output and uploads it as Key on Close.
func (s *S3Location) NewSink(ctx context.Context, format readers.Format) (core.DataSink, error) {
	if format == "" {
		format = readers.FormatFromName(s.Key)
	}
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	upload := &s3WriteCloser{ctx: ctx, client: client, bucket: s.Bucket, key: s.Key}
	if format == readers.FormatParquet {
		return writers.NewParquetWriterTo(upload), nil
	}
	if !sinkFormat(format) {
		return nil, &LocationError{Location: s.String(), Op: "sink", Err: fmt.Errorf("cannot write format %q", format)}
	}
	return newStreamSink(format, upload)
}

// s3WriteCloser collects written bytes and uploads them once on Close.
type s3WriteCloser struct {
	ctx    context.Context
	client S3Client
	bucket string
	key    string
	buf    bytes.Buffer
	closed bool
}

func (s *s3WriteCloser) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *s3WriteCloser) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_, err := s.client.PutObject(s.ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(s.buf.Bytes()),
	})
	if err != nil {
		return &LocationError{Location: "s3://" + s.bucket + "/" + s.key, Op: "put_object", Err: err}
	}
	return nil
}

// HTTPLocation downloads a document. It cannot be written to.
type HTTPLocation struct {
	URL      string
	DataPath string
	CSV      []readers.ReaderOptionCSV
}

func (h HTTPLocation) String() string { return h.URL }

func (h HTTPLocation) NewSource(ctx context.Context, format readers.Format) (core.DataSource, error) {
	return readers.NewHTTPReader(h.URL,
		readers.WithHTTPFormat(format),
		readers.WithHTTPDataPath(h.DataPath),
		readers.WithHTTPCSVOptions(h.CSV...),
	)
}

func (h HTTPLocation) NewSink(ctx context.Context, format readers.Format) (core.DataSink, error) {
	return nil, &LocationError{Location: h.URL, Op: "sink", Err: fmt.Errorf("http locations are read-only")}
}

// PostgresLocation reads a query or table and writes a table.
type PostgresLocation struct {
	DSN    string
	Table  string
	Query  string
	Create bool
}

func (p PostgresLocation) String() string {
	if u, err := url.Parse(p.DSN); err == nil {
		return u.Redacted()
	}
	return "postgres"
}

func (p PostgresLocation) NewSource(ctx context.Context, format readers.Format) (core.DataSource, error) {
	query := p.Query
	if query == "" {
		if p.Table == "" {
			return nil, &LocationError{Location: p.String(), Op: "source", Err: fmt.Errorf("table or query is required")}
		}
		query = "SELECT * FROM " + quoteTable(p.Table)
	}
	return readers.NewPostgresReader(ctx,
		readers.WithPostgresDSN(p.DSN),
		readers.WithPostgresQuery(query),
		readers.WithPostgresCursor(true, ""),
	)
}

func (p PostgresLocation) NewSink(ctx context.Context, format readers.Format) (core.DataSink, error) {
	if p.Table == "" {
		return nil, &LocationError{Location: p.String(), Op: "sink", Err: fmt.Errorf("table is required")}
	}
	return writers.NewPostgresWriter(ctx,
		writers.WithPostgresDSN(p.DSN),
		writers.WithTableName(p.Table),
		writers.WithCreateTable(p.Create),
	)
}

// MongoLocation reads and writes a collection.
type MongoLocation struct {
	URI        string
	Database   string
	Collection string
}

func (m MongoLocation) String() string {
	if u, err := url.Parse(m.URI); err == nil {
		return u.Redacted()
	}
	return "mongodb"
}

func (m MongoLocation) NewSource(ctx context.Context, format readers.Format) (core.DataSource, error) {
	return readers.NewMongoReader(
		readers.WithMongoURI(m.URI),
		readers.WithMongoDB(m.Database),
		readers.WithMongoCollection(m.Collection),
		readers.WithMongoFlatten(true),
	)
}

func (m MongoLocation) NewSink(ctx context.Context, format readers.Format) (core.DataSink, error) {
	return writers.NewMongoWriter(ctx,
		writers.WithMongoWriterURI(m.URI),
		writers.WithMongoWriterDatabase(m.Database),
		writers.WithMongoWriterCollection(m.Collection),
	)
}

func sinkFormat(format readers.Format) bool {
	switch format {
	case readers.FormatCSV, readers.FormatTSV, readers.FormatJSON, readers.FormatJSONL:
		return true
	}
	return false
}

// newStreamSink returns the text writer for format. JSON sinks always
// write JSON lines.
func newStreamSink(format readers.Format, w interface {
	Write([]byte) (int, error)
	Close() error
}) (core.DataSink, error) {
	switch format {
	case readers.FormatCSV:
		return writers.NewCSVWriter(w)
	case readers.FormatTSV:
		return writers.NewCSVWriter(w, writers.WithComma('\t'))
	default:
		return writers.NewJSONWriter(w), nil
	}
}

func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
