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
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/aaronlmathis/importmap/core"
)

// This file implements a batching PostgreSQL writer with optional table
// creation and conflict resolution.

// PostgresWriterError wraps PostgreSQL-specific write errors with context about the operation.
type PostgresWriterError struct {
	Op  string // The operation being performed (e.g., "write", "connect")
	Err error  // The underlying error
}

// Error returns the error string for PostgresWriterError.
func (e *PostgresWriterError) Error() string {
	return fmt.Sprintf("postgres writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for PostgresWriterError.
func (e *PostgresWriterError) Unwrap() error {
	return e.Err
}

// PostgresWriterStats holds PostgreSQL write performance statistics.
type PostgresWriterStats struct {
	RecordsWritten   int64            // Total records written
	BatchesWritten   int64            // Number of batches written
	TransactionCount int64            // Number of transactions committed
	LastWriteTime    time.Time        // Time of last write
	WriteDuration    time.Duration    // Total time spent writing
	ConnectionTime   time.Duration    // Time spent establishing connection
	NullValueCounts  map[string]int64 // Count of null values per column
	ConflictCount    int64            // Number of rows skipped by ON CONFLICT DO NOTHING
}

// ConflictResolution defines how to handle INSERT conflicts in PostgreSQL.
type ConflictResolution int

const (
	// ConflictError returns an error on conflict (default PostgreSQL behavior).
	ConflictError ConflictResolution = iota
	// ConflictIgnore ignores conflicting rows (ON CONFLICT DO NOTHING).
	ConflictIgnore
	// ConflictUpdate updates conflicting rows (ON CONFLICT DO UPDATE).
	ConflictUpdate
)

// PostgresWriterOptions configures the PostgreSQL writer.
type PostgresWriterOptions struct {
	DSN                string             // PostgreSQL connection string
	DB                 *sql.DB            // Existing pool; not closed by the writer
	TableName          string             // Target table name, optionally schema-qualified
	Columns            []string           // Columns to write (order matters)
	BatchSize          int                // Number of records per batch
	CreateTable        bool               // Create table if not exists
	TruncateTable      bool               // Truncate table before writing
	ConflictResolution ConflictResolution // Conflict handling strategy
	ConflictColumns    []string           // Columns that define uniqueness for conflict resolution
	UpdateColumns      []string           // Columns to update on conflict (for ConflictUpdate)
	TransactionMode    bool               // Wrap batches in transactions
	ConnMaxLifetime    time.Duration      // Max connection lifetime
	ConnMaxIdleTime    time.Duration      // Max idle connection time
	MaxOpenConns       int                // Max open connections
	MaxIdleConns       int                // Max idle connections
	QueryTimeout       time.Duration      // Timeout for queries
}

// PostgresWriterOption represents a configuration function for PostgresWriterOptions.
type PostgresWriterOption func(*PostgresWriterOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresDB writes through an existing connection pool.
func WithPostgresDB(db *sql.DB) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.DB = db
	}
}

// WithTableName sets the target table name.
func WithTableName(tableName string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TableName = tableName
	}
}

// WithColumns sets the columns to write.
func WithColumns(columns []string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.Columns = append([]string(nil), columns...)
	}
}

// WithPostgresBatchSize sets the batch size for writes.
func WithPostgresBatchSize(size int) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCreateTable enables or disables table creation.
func WithCreateTable(create bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.CreateTable = create
	}
}

// WithTruncateTable enables or disables table truncation before writing.
func WithTruncateTable(truncate bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TruncateTable = truncate
	}
}

// WithConflictResolution sets the conflict resolution strategy and columns.
func WithConflictResolution(resolution ConflictResolution, conflictCols, updateCols []string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.ConflictResolution = resolution
		opts.ConflictColumns = append([]string(nil), conflictCols...)
		opts.UpdateColumns = append([]string(nil), updateCols...)
	}
}

// WithTransactionMode enables or disables transaction wrapping for batches.
func WithTransactionMode(enabled bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TransactionMode = enabled
	}
}

// WithPostgresConnectionPool configures the connection pool.
func WithPostgresConnectionPool(maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.MaxOpenConns = maxOpen
		opts.MaxIdleConns = maxIdle
		opts.ConnMaxLifetime = maxLifetime
		opts.ConnMaxIdleTime = maxIdleTime
	}
}

// WithPostgresQueryTimeout sets the query timeout.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.QueryTimeout = timeout
	}
}

// PostgresWriter implements core.DataSink for PostgreSQL output.
type PostgresWriter struct {
	db          *sql.DB
	ownsDB      bool
	options     PostgresWriterOptions
	columns     []string
	columnTypes map[string]core.ValueType
	recordBuf   []core.Record
	stats       PostgresWriterStats
	prepared    *sql.Stmt
	initialized bool
	errorState  bool
	mu          sync.Mutex
}

// NewPostgresWriter creates a new PostgreSQL writer with the given options
// and verifies the connection.
func NewPostgresWriter(ctx context.Context, opts ...PostgresWriterOption) (*PostgresWriter, error) {
	options := defaultPostgresWriterOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if err := validateOptions(&options); err != nil {
		return nil, &PostgresWriterError{Op: "validate", Err: err}
	}

	writer := &PostgresWriter{
		options:   options,
		columns:   append([]string(nil), options.Columns...),
		recordBuf: make([]core.Record, 0, options.BatchSize),
		stats:     PostgresWriterStats{NullValueCounts: make(map[string]int64)},
	}
	if err := writer.connect(ctx); err != nil {
		return nil, &PostgresWriterError{Op: "connect", Err: err}
	}
	return writer, nil
}

func defaultPostgresWriterOptions() PostgresWriterOptions {
	return PostgresWriterOptions{
		BatchSize:       1000,
		QueryTimeout:    30 * time.Second,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		TransactionMode: true,
	}
}

// validateOptions validates the PostgreSQL writer options.
func validateOptions(opts *PostgresWriterOptions) error {
	if opts.DSN == "" && opts.DB == nil {
		return fmt.Errorf("dsn or db is required")
	}
	if opts.TableName == "" {
		return fmt.Errorf("table name is required")
	}
	if opts.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if opts.ConflictResolution == ConflictUpdate && len(opts.UpdateColumns) == 0 {
		return fmt.Errorf("update columns required for conflict update resolution")
	}
	if opts.ConflictResolution != ConflictError && len(opts.ConflictColumns) == 0 {
		return fmt.Errorf("conflict columns required for conflict resolution")
	}
	return nil
}

// connect opens or adopts the connection pool and pings it.
func (w *PostgresWriter) connect(ctx context.Context) error {
	start := time.Now()

	db := w.options.DB
	if db == nil {
		var err error
		db, err = sql.Open("postgres", w.options.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(w.options.MaxOpenConns)
		db.SetMaxIdleConns(w.options.MaxIdleConns)
		db.SetConnMaxLifetime(w.options.ConnMaxLifetime)
		db.SetConnMaxIdleTime(w.options.ConnMaxIdleTime)
		w.ownsDB = true
	}

	pingCtx, cancel := context.WithTimeout(ctx, w.options.QueryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if w.ownsDB {
			db.Close()
		}
		return fmt.Errorf("failed to ping database: %w", err)
	}

	w.db = db
	w.stats.ConnectionTime = time.Since(start)
	return nil
}

// SetSchema implements core.SchemaSink: the destination columns become the
// insert columns and drive CREATE TABLE types.
func (w *PostgresWriter) SetSchema(def core.TableDefinition) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.initialized {
		return &PostgresWriterError{Op: "set_schema", Err: fmt.Errorf("writer already initialized")}
	}
	if len(w.columns) == 0 {
		w.columns = schemaColumns(def)
	}
	w.columnTypes = make(map[string]core.ValueType, len(def.Columns))
	for _, c := range def.Columns {
		w.columnTypes[c.Name] = c.Type
	}
	return nil
}

// Stats returns a copy of the current write statistics.
func (w *PostgresWriter) Stats() PostgresWriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	statsCopy := w.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(w.stats.NullValueCounts))
	for k, v := range w.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}

// Write implements the core.DataSink interface.
func (w *PostgresWriter) Write(ctx context.Context, record core.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.errorState {
		return &PostgresWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	if !w.initialized {
		if err := w.initializeUnsafe(ctx, record); err != nil {
			w.errorState = true
			return &PostgresWriterError{Op: "initialize", Err: err}
		}
	}

	countNulls(w.stats.NullValueCounts, record)
	w.recordBuf = append(w.recordBuf, record)

	if len(w.recordBuf) >= w.options.BatchSize {
		if err := w.flushBufferUnsafe(ctx); err != nil {
			w.errorState = true
			return &PostgresWriterError{Op: "flush_batch", Err: err}
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (w *PostgresWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), w.options.QueryTimeout)
	defer cancel()
	if err := w.flushBufferUnsafe(ctx); err != nil {
		return &PostgresWriterError{Op: "flush", Err: err}
	}
	return nil
}

// Close implements the core.DataSink interface.
func (w *PostgresWriter) Close() error {
	var errs []error
	if !w.errorState {
		if err := w.Flush(); err != nil {
			errs = append(errs, err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.prepared != nil {
		errs = append(errs, w.prepared.Close())
		w.prepared = nil
	}
	if w.db != nil && w.ownsDB {
		errs = append(errs, w.db.Close())
	}
	w.db = nil
	return errors.Join(errs...)
}

// initializeUnsafe performs one-time initialization (must hold mutex).
func (w *PostgresWriter) initializeUnsafe(ctx context.Context, firstRecord core.Record) error {
	if len(w.columns) == 0 {
		w.columns = recordColumns(firstRecord)
	}

	if w.options.CreateTable {
		if _, err := w.db.ExecContext(ctx, createTableQuery(w.options.TableName, w.columns, w.columnType(firstRecord))); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	if w.options.TruncateTable {
		if _, err := w.db.ExecContext(ctx, "TRUNCATE TABLE "+quoteIdent(w.options.TableName)); err != nil {
			return fmt.Errorf("failed to truncate table: %w", err)
		}
	}

	stmt, err := w.db.PrepareContext(ctx, insertQuery(w.options, w.columns))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	w.prepared = stmt
	w.initialized = true
	return nil
}

// columnType resolves a column's SQL type from the schema, falling back to
// the value in the first record.
func (w *PostgresWriter) columnType(first core.Record) func(string) string {
	return func(col string) string {
		if t, ok := w.columnTypes[col]; ok {
			return sqlType(t)
		}
		return inferSQLType(first[col])
	}
}

// createTableQuery builds the CREATE TABLE IF NOT EXISTS statement.
func createTableQuery(table string, columns []string, typeOf func(string) string) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = quoteIdent(col) + " " + typeOf(col)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

// insertQuery builds the parameterized INSERT with its conflict clause.
func insertQuery(opts PostgresWriterOptions, columns []string) string {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdent(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(opts.TableName), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	conflict := make([]string, len(opts.ConflictColumns))
	for i, col := range opts.ConflictColumns {
		conflict[i] = quoteIdent(col)
	}
	switch opts.ConflictResolution {
	case ConflictIgnore:
		query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(conflict, ", "))
	case ConflictUpdate:
		updates := make([]string, len(opts.UpdateColumns))
		for i, col := range opts.UpdateColumns {
			q := quoteIdent(col)
			updates[i] = fmt.Sprintf("%s = EXCLUDED.%s", q, q)
		}
		query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflict, ", "), strings.Join(updates, ", "))
	}
	return query
}

// flushBufferUnsafe writes buffered records to PostgreSQL (must hold mutex).
func (w *PostgresWriter) flushBufferUnsafe(ctx context.Context) (err error) {
	if len(w.recordBuf) == 0 || w.prepared == nil {
		return nil
	}
	start := time.Now()

	stmt := w.prepared
	var tx *sql.Tx
	if w.options.TransactionMode {
		tx, err = w.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			if err != nil {
				tx.Rollback()
			}
		}()
		stmt = tx.StmtContext(ctx, w.prepared)
		defer stmt.Close()
	}

	var conflicts int64
	values := make([]interface{}, len(w.columns))
	for _, record := range w.recordBuf {
		for i, col := range w.columns {
			values[i] = convertValue(record[col])
		}
		result, execErr := stmt.ExecContext(ctx, values...)
		if execErr != nil {
			err = fmt.Errorf("failed to execute insert: %w", execErr)
			return err
		}
		if n, raErr := result.RowsAffected(); raErr == nil && n == 0 {
			conflicts++
		}
	}

	if tx != nil {
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		w.stats.TransactionCount++
	}

	w.stats.RecordsWritten += int64(len(w.recordBuf))
	w.stats.ConflictCount += conflicts
	w.stats.BatchesWritten++
	w.stats.LastWriteTime = time.Now()
	w.stats.WriteDuration += time.Since(start)
	w.recordBuf = w.recordBuf[:0]
	return nil
}

// sqlType maps a destination value type to a PostgreSQL column type.
func sqlType(t core.ValueType) string {
	switch t {
	case core.TypeDecimal:
		return "NUMERIC"
	case core.TypeInt:
		return "BIGINT"
	case core.TypeBool:
		return "BOOLEAN"
	case core.TypeDateTime:
		return "TIMESTAMPTZ"
	case core.TypeCollection:
		return "TEXT[]"
	default:
		return "TEXT"
	}
}

// inferSQLType infers PostgreSQL column type from Go value.
func inferSQLType(value interface{}) string {
	switch value.(type) {
	case bool:
		return sqlType(core.TypeBool)
	case int, int8, int16, int32, int64:
		return sqlType(core.TypeInt)
	case float32, float64:
		return "DOUBLE PRECISION"
	case decimal.Decimal:
		return sqlType(core.TypeDecimal)
	case time.Time:
		return sqlType(core.TypeDateTime)
	case []string:
		return sqlType(core.TypeCollection)
	case []byte:
		return "BYTEA"
	default:
		return "TEXT"
	}
}

// convertValue converts materialized values to driver arguments.
func convertValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return v.String()
	case []string:
		return pq.Array(v)
	case int:
		return int64(v)
	case time.Time, bool, int64, float64, string, []byte:
		return v
	default:
		return formatValue(v)
	}
}
