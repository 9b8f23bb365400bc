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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPReader_JSONDataPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"data":{"items":[{"sku":"A1","price":12.5},{"sku":"B2","price":3}]}}`))
	}))
	defer server.Close()

	reader, err := NewHTTPReader(server.URL+"/products",
		WithHTTPBearerToken("secret"),
		WithHTTPQueryParams(map[string]string{"page": "2"}),
		WithHTTPDataPath("data.items"),
	)
	require.NoError(t, err)
	defer reader.Close()

	records := readAllRecords(t, reader)
	require.Len(t, records, 2)
	assert.Equal(t, "A1", records[0]["sku"])
	assert.Equal(t, json.Number("12.5"), records[0]["price"])
	assert.Equal(t, FormatJSON, reader.Stats().Format)
}

func TestHTTPReader_CSVByExtension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("sku,qty\nA1,4\n"))
	}))
	defer server.Close()

	reader, err := NewHTTPReader(server.URL + "/export.csv")
	require.NoError(t, err)

	records := readAllRecords(t, reader)
	require.Len(t, records, 1)
	assert.Equal(t, "4", records[0]["qty"])
	assert.Equal(t, []string{"sku", "qty"}, reader.Columns())
	assert.Positive(t, reader.Stats().BytesRead)
}

func TestHTTPReader_Retries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte("{\"id\":1}\n"))
	}))
	defer server.Close()

	reader, err := NewHTTPReader(server.URL, WithHTTPRetries(3, 0))
	require.NoError(t, err)
	records := readAllRecords(t, reader)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), reader.Stats().RetryCount)
	assert.Equal(t, FormatJSONL, reader.Stats().Format)
}

func TestHTTPReader_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	reader, err := NewHTTPReader(server.URL, WithHTTPRetries(3, 0))
	require.NoError(t, err)
	_, err = reader.Read(context.Background())
	var hErr *HTTPReaderError
	require.ErrorAs(t, err, &hErr)
	assert.Equal(t, http.StatusNotFound, hErr.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestNewHTTPReader_Validation(t *testing.T) {
	_, err := NewHTTPReader("ftp://example.com/data.csv")
	assert.ErrorContains(t, err, "unsupported scheme")
}
