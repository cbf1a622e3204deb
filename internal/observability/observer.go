// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package observability provides lightweight structured event logging for
// the anonymization pipeline. Components report timed operations through an
// observer; in debug mode each event is emitted as a JSON line.
package observability

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

type Level int

const (
	LevelOff     Level = 0
	LevelMetrics Level = 1
	LevelDebug   Level = 2
)

// Observer records component events. A nil *Observer is safe to call,
// which keeps call sites free of nil checks.
type Observer struct {
	level  Level
	writer io.Writer
	mu     sync.Mutex
}

// Event is a single observed operation.
type Event struct {
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	Target     string                 `json:"target,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Success    bool                   `json:"success"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// New creates an observer writing debug events to w.
func New(level Level, w io.Writer) *Observer {
	return &Observer{level: level, writer: w}
}

// StartTiming returns a completion function that records the elapsed time
// for an operation. Typical use:
//
//	done := obs.StartTiming("pdf_redactor", "redact", filename)
//	defer done(true, nil)
func (o *Observer) StartTiming(component, operation, target string) func(success bool, metadata map[string]interface{}) {
	if o == nil || o.level == LevelOff {
		return func(bool, map[string]interface{}) {}
	}

	start := time.Now()
	return func(success bool, metadata map[string]interface{}) {
		o.Log(Event{
			Component:  component,
			Operation:  operation,
			Target:     target,
			DurationMs: time.Since(start).Milliseconds(),
			Success:    success,
			Metadata:   metadata,
		})
	}
}

// Log emits a single event. Events are only written in debug mode; at the
// metrics level they are accepted and dropped so call sites stay uniform.
func (o *Observer) Log(event Event) {
	if o == nil || o.level != LevelDebug || o.writer == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	json.NewEncoder(o.writer).Encode(event)
}

// Debug reports whether the observer is in debug mode.
func (o *Observer) Debug() bool {
	return o != nil && o.level == LevelDebug
}
