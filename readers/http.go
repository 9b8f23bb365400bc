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
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/aaronlmathis/importmap/core"
)

// This file implements an HTTP source that downloads one document (a CSV
// export, a JSON API response, a spreadsheet) and reads its records.

// HTTPReaderError provides structured error information for HTTP reader operations
type HTTPReaderError struct {
	Op         string // Operation that failed (e.g., "request", "status_check", "open")
	StatusCode int    // HTTP status code if applicable
	URL        string // URL being accessed when error occurred
	Err        error  // Underlying error
}

func (e *HTTPReaderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("http reader %s [%s] (status %d): %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("http reader %s [%s]: %v", e.Op, e.URL, e.Err)
}

func (e *HTTPReaderError) Unwrap() error {
	return e.Err
}

// HTTPReaderStats holds statistics about the HTTP reader
type HTTPReaderStats struct {
	RequestCount int64         // Total HTTP requests made
	RetryCount   int64         // Number of retries performed
	RecordsRead  int64         // Total records read
	BytesRead    int64         // Total bytes downloaded
	ReadDuration time.Duration // Total time spent reading
	Format       Format        // Format the response was decoded as
}

// AuthConfig defines authentication configuration
type AuthConfig struct {
	Type       string // "bearer", "basic" or "apikey"
	Token      string // Bearer token or API key
	Username   string // For basic auth
	Password   string // For basic auth
	HeaderName string // Header carrying the API key
	QueryParam string // Query parameter carrying the API key
}

// HTTPReaderOptions configures the HTTP reader
type HTTPReaderOptions struct {
	Method        string            // HTTP method (default: GET)
	Headers       map[string]string // Additional headers
	QueryParams   map[string]string // Query parameters
	Auth          *AuthConfig       // Authentication configuration
	Timeout       time.Duration     // Request timeout
	RetryAttempts int               // Number of retry attempts
	RetryDelay    time.Duration     // Base delay between retries
	Format        Format            // Response format; detected when empty
	DataPath      string            // JSON path to the record array
	UserAgent     string            // User agent string
	Client        *http.Client      // Custom HTTP client
	CSVOptions    []ReaderOptionCSV
}

// ReaderOptionHTTP is a functional option for HTTPReaderOptions
type ReaderOptionHTTP func(*HTTPReaderOptions)

func WithHTTPMethod(method string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) { opts.Method = method }
}

func WithHTTPHeaders(headers map[string]string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		for k, v := range headers {
			opts.Headers[k] = v
		}
	}
}

func WithHTTPQueryParams(params map[string]string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		for k, v := range params {
			opts.QueryParams[k] = v
		}
	}
}

func WithHTTPBearerToken(token string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Auth = &AuthConfig{Type: "bearer", Token: token}
	}
}

func WithHTTPBasicAuth(username, password string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Auth = &AuthConfig{Type: "basic", Username: username, Password: password}
	}
}

func WithHTTPAPIKey(headerName, apiKey string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Auth = &AuthConfig{Type: "apikey", HeaderName: headerName, Token: apiKey}
	}
}

func WithHTTPTimeout(timeout time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) { opts.Timeout = timeout }
}

func WithHTTPRetries(attempts int, delay time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.RetryAttempts = attempts
		opts.RetryDelay = delay
	}
}

func WithHTTPFormat(format Format) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) { opts.Format = format }
}

func WithHTTPDataPath(path string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) { opts.DataPath = path }
}

func WithHTTPClient(client *http.Client) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) { opts.Client = client }
}

func WithHTTPCSVOptions(options ...ReaderOptionCSV) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) { opts.CSVOptions = options }
}

// HTTPReader implements core.DataSource over a document downloaded on the
// first Read.
type HTTPReader struct {
	url    string
	client *http.Client
	opts   HTTPReaderOptions
	inner  core.DataSource
	stats  HTTPReaderStats
}

// NewHTTPReader creates an HTTP reader for rawURL.
func NewHTTPReader(rawURL string, options ...ReaderOptionHTTP) (*HTTPReader, error) {
	opts := HTTPReaderOptions{
		Method:      http.MethodGet,
		Headers:     make(map[string]string),
		QueryParams: make(map[string]string),
		Timeout:     30 * time.Second,
		RetryDelay:  time.Second,
		UserAgent:   "importmap/1.0",
	}
	for _, option := range options {
		option(&opts)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &HTTPReaderError{Op: "parse_url", URL: rawURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &HTTPReaderError{Op: "parse_url", URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if opts.Auth != nil {
		switch opts.Auth.Type {
		case "bearer", "basic", "apikey":
		default:
			return nil, &HTTPReaderError{Op: "auth", URL: rawURL, Err: fmt.Errorf("unsupported auth type: %s", opts.Auth.Type)}
		}
	}
	if len(opts.QueryParams) > 0 {
		q := u.Query()
		for k, v := range opts.QueryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPReader{url: u.String(), client: client, opts: opts}, nil
}

// Read implements the core.DataSource interface
func (hr *HTTPReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()
	defer func() { hr.stats.ReadDuration += time.Since(start) }()

	if hr.inner == nil {
		if err := hr.open(ctx); err != nil {
			return nil, err
		}
	}
	rec, err := hr.inner.Read(ctx)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &HTTPReaderError{Op: "read", URL: hr.url, Err: err}
	}
	hr.stats.RecordsRead++
	return rec, nil
}

// Columns returns the columns of the downloaded document when its format
// knows them.
func (hr *HTTPReader) Columns() []string {
	if cs, ok := hr.inner.(core.ColumnSource); ok {
		return cs.Columns()
	}
	return nil
}

// Close implements the core.DataSource interface
func (hr *HTTPReader) Close() error {
	if hr.inner != nil {
		return hr.inner.Close()
	}
	return nil
}

// Stats returns HTTP reader statistics
func (hr *HTTPReader) Stats() HTTPReaderStats {
	return hr.stats
}

// open downloads the document with retries and selects its reader.
func (hr *HTTPReader) open(ctx context.Context) error {
	resp, err := hr.executeRequestWithRetry(ctx)
	if err != nil {
		return err
	}

	format := hr.opts.Format
	if format == "" {
		format = formatFromContentType(resp.Header.Get("Content-Type"))
	}
	if format == "" {
		format = FormatFromName(resp.Request.URL.Path)
	}
	if format == "" {
		format = FormatJSON
	}
	hr.stats.Format = format

	body := &countingReadCloser{ReadCloser: resp.Body, n: &hr.stats.BytesRead}
	inner, err := OpenFormat(format, body, FormatOptions{CSV: hr.opts.CSVOptions, DataPath: hr.opts.DataPath})
	if err != nil {
		return &HTTPReaderError{Op: "open", URL: hr.url, Err: err}
	}
	hr.inner = inner
	return nil
}

func (hr *HTTPReader) executeRequestWithRetry(ctx context.Context) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= hr.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := hr.opts.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &HTTPReaderError{Op: "request", URL: hr.url, Err: ctx.Err()}
			}
			hr.stats.RetryCount++
		}

		resp, err := hr.executeRequest(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var httpErr *HTTPReaderError
		if errors.As(err, &httpErr) && httpErr.StatusCode > 0 &&
			httpErr.StatusCode != http.StatusTooManyRequests && httpErr.StatusCode < 500 {
			break
		}
	}
	return nil, lastErr
}

func (hr *HTTPReader) executeRequest(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, hr.opts.Method, hr.url, nil)
	if err != nil {
		return nil, &HTTPReaderError{Op: "create_request", URL: hr.url, Err: err}
	}
	req.Header.Set("User-Agent", hr.opts.UserAgent)
	for k, v := range hr.opts.Headers {
		req.Header.Set(k, v)
	}
	hr.addAuthentication(req)

	hr.stats.RequestCount++
	resp, err := hr.client.Do(req)
	if err != nil {
		return nil, &HTTPReaderError{Op: "request", URL: hr.url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &HTTPReaderError{
			Op:         "status_check",
			URL:        hr.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}
	return resp, nil
}

func (hr *HTTPReader) addAuthentication(req *http.Request) {
	auth := hr.opts.Auth
	if auth == nil {
		return
	}
	switch auth.Type {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case "basic":
		req.SetBasicAuth(auth.Username, auth.Password)
	case "apikey":
		if auth.HeaderName != "" {
			req.Header.Set(auth.HeaderName, auth.Token)
		}
		if auth.QueryParam != "" {
			q := req.URL.Query()
			q.Set(auth.QueryParam, auth.Token)
			req.URL.RawQuery = q.Encode()
		}
	}
}

func formatFromContentType(contentType string) Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "text/csv":
		return FormatCSV
	case "text/tab-separated-values":
		return FormatTSV
	case "application/json":
		return FormatJSON
	case "application/x-ndjson", "application/jsonl":
		return FormatJSONL
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX
	case "application/vnd.apache.parquet":
		return FormatParquet
	}
	return ""
}
