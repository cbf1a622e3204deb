// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonymail/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1.0,
	}
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(b)
}

func newTestProvider(url string) *Provider {
	return New(Options{
		Endpoint: url,
		Model:    "test-model",
		APIKey:   "test-key",
		Timeout:  time.Second,
		Retry:    fastRetry(),
	}, nil)
}

func TestGenerate_ParsesReplacementPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, chatReply(`{"replacements":[
			{"original":"Jane Doe","replacement":"Person A"},
			{"original":"jane@corp.example","replacement":"persona@example.com"}
		]}`))
	}))
	defer srv.Close()

	m, err := newTestProvider(srv.URL).Generate("Jane Doe <jane@corp.example>", "email body")
	require.NoError(t, err)
	assert.Equal(t, "Person A", m["Jane Doe"])
	assert.Equal(t, "persona@example.com", m["jane@corp.example"])
}

func TestGenerate_EmptyTextSkipsAPICall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	m, err := newTestProvider(srv.URL).Generate("   ", "body")
	require.NoError(t, err)
	assert.Empty(t, m)
	assert.False(t, called, "empty input must not reach the API")
}

func TestGenerate_MalformedModelOutputDegradesToEmptyMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply("this is not json"))
	}))
	defer srv.Close()

	m, err := newTestProvider(srv.URL).Generate("Jane Doe", "body")
	require.NoError(t, err, "malformed output must degrade, not error")
	assert.Empty(t, m)
}

func TestGenerate_ServerErrorDegradesToEmptyMap(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, err := newTestProvider(srv.URL).Generate("Jane Doe", "body")
	require.NoError(t, err)
	assert.Empty(t, m)
	assert.Equal(t, 2, calls, "5xx should be retried before degrading")
}

func TestGenerate_AuthErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m, err := newTestProvider(srv.URL).Generate("Jane Doe", "body")
	require.NoError(t, err)
	assert.Empty(t, m)
	assert.Equal(t, 1, calls, "401 is permanent and must not be retried")
}

func TestParseStructuredOutput_DropsNoOpAndEmptyPairs(t *testing.T) {
	m, err := parseStructuredOutput([]byte(chatReply(`{"replacements":[
		{"original":"","replacement":"x"},
		{"original":"same","replacement":"same"},
		{"original":"Jane Doe","replacement":"Person A"}
	]}`)))
	require.NoError(t, err)
	assert.Len(t, m, 1)
	assert.Equal(t, "Person A", m["Jane Doe"])
}
