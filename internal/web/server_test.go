// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonymail/internal/providers"
	"anonymail/internal/providers/entity"
)

func newTestServer() *Server {
	factory := func() providers.Provider { return entity.New(entity.ModeAlias, nil, nil) }
	return NewServer("127.0.0.1", 0, factory, nil)
}

func postMessage(t *testing.T, s *Server, raw []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("message", "in.eml")
	require.NoError(t, err)
	_, err = fw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/anonymize", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handleAnonymize(rec, req)
	return rec
}

func TestHandleAnonymize(t *testing.T) {
	raw := []byte("From: maria.gonzalez@corp.example\r\nSubject: hello\r\n\r\nWrite to maria.gonzalez@corp.example.\r\n")
	rec := postMessage(t, newTestServer(), raw)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "message/rfc822", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "maria.gonzalez@corp.example")
	assert.NotEqual(t, "0", rec.Header().Get("X-Replacement-Count"))
}

func TestHandleAnonymizeRejectsGarbage(t *testing.T) {
	rec := postMessage(t, newTestServer(), []byte("\x00 not a message"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleAnonymizeRequiresPost(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().handleAnonymize(rec, httptest.NewRequest(http.MethodGet, "/anonymize", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
