// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package web serves a small upload form: post a raw email, download the
// anonymized copy.
package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"anonymail/internal/message"
	"anonymail/internal/observability"
	"anonymail/internal/providers"
)

// maxUploadBytes bounds the request body; mail plus attachments beyond
// this is rejected rather than buffered.
const maxUploadBytes = 50 << 20

// ProviderFactory builds a fresh replacement provider per request so
// aliasing state never leaks between uploads.
type ProviderFactory func() providers.Provider

// Server is the web front end.
type Server struct {
	host     string
	port     int
	factory  ProviderFactory
	observer *observability.Observer
	server   *http.Server
}

func NewServer(host string, port int, factory ProviderFactory, observer *observability.Observer) *Server {
	return &Server{host: host, port: port, factory: factory, observer: observer}
}

// Start listens and serves until the process ends. When the configured
// port is taken the next few ports are tried before giving up.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveHome)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/anonymize", s.handleAnonymize)

	var lastErr error
	for i := 0; i < 10; i++ {
		port := s.port + i
		addr := fmt.Sprintf("%s:%d", s.host, port)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		if i > 0 {
			fmt.Printf("Port %d is not available, using %d instead\n", s.port, port)
		}
		fmt.Printf("Listening on http://%s\n", addr)

		s.server = &http.Server{
			Handler:           mux,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		return s.server.Serve(listener)
	}
	return fmt.Errorf("no free port in range %d-%d: %w", s.port, s.port+9, lastErr)
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

func (s *Server) serveHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(homePage))
}

const homePage = `<!DOCTYPE html>
<html><head><title>Anonymail</title></head>
<body>
<h1>Anonymail</h1>
<p>Upload a raw email message (.eml). The anonymized copy downloads back.</p>
<form action="/anonymize" method="post" enctype="multipart/form-data">
<input type="file" name="message" required>
<button type="submit">Anonymize</button>
</form>
</body></html>`

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("message")
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "missing message upload")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "reading upload failed")
		return
	}

	anonymizer := message.NewAnonymizer(s.factory(), s.observer)
	out, m, err := anonymizer.Anonymize(raw)
	if err != nil {
		s.sendError(w, http.StatusUnprocessableEntity, fmt.Sprintf("message could not be processed: %v", err))
		return
	}

	w.Header().Set("Content-Type", "message/rfc822")
	w.Header().Set("Content-Disposition", `attachment; filename="anonymized.eml"`)
	w.Header().Set("X-Replacement-Count", fmt.Sprintf("%d", len(m)))
	w.Write(out)

	s.observer.Log(observability.Event{
		Component: "web",
		Operation: "anonymize",
		Target:    header.Filename,
		Success:   true,
		Metadata:  map[string]interface{}{"map_entries": len(m)},
	})
}

func (s *Server) sendError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
