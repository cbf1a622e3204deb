// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package message models a MIME message as an owned tree, parses raw
// messages into it and serializes anonymized trees back to wire format.
package message

import (
	"strings"
)

// HeaderField is one header line. Fields keep their original spelling and
// order; lookups are case-insensitive.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered header list. Duplicate names are preserved in
// insertion order.
type Header []HeaderField

// Get returns the first value for name.
func (h Header) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns every value for name in order.
func (h Header) Values(name string) []string {
	var vals []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			vals = append(vals, f.Value)
		}
	}
	return vals
}

// Add appends a field.
func (h *Header) Add(name, value string) {
	*h = append(*h, HeaderField{Name: name, Value: value})
}

// Part is a node of the message tree. A part with children is a multipart
// container; otherwise it is a leaf carrying a decoded payload. Children
// are exclusively owned by their parent.
type Part struct {
	Header Header

	// Derived from Content-Type. MediaType is lowercase "type/subtype".
	MediaType string
	Params    map[string]string // Content-Type parameters, lowercase keys

	Disposition string // "", "inline" or "attachment"
	Filename    string
	ContentID   string

	// Container state.
	Children []*Part
	Preamble string
	Epilogue string

	// Leaf state. Text leaves hold Text (decoded to UTF-8); binary leaves
	// hold Body (decoded from the transfer encoding).
	Text   string
	Body   []byte
	IsText bool
}

// IsMultipart reports whether the part is a container.
func (p *Part) IsMultipart() bool {
	return strings.HasPrefix(p.MediaType, "multipart/")
}

// Subtype returns the portion after the slash, e.g. "mixed" or "pdf".
func (p *Part) Subtype() string {
	if i := strings.Index(p.MediaType, "/"); i >= 0 {
		return p.MediaType[i+1:]
	}
	return p.MediaType
}

// MainType returns the portion before the slash, e.g. "text".
func (p *Part) MainType() string {
	if i := strings.Index(p.MediaType, "/"); i >= 0 {
		return p.MediaType[:i]
	}
	return p.MediaType
}

// Charset returns the declared charset of a text leaf, defaulting to
// us-ascii per RFC 2045.
func (p *Part) Charset() string {
	if cs, ok := p.Params["charset"]; ok && cs != "" {
		return cs
	}
	return "us-ascii"
}

// Extension returns the lowercase filename extension including the dot, or
// "" when the part has no filename or no extension.
func (p *Part) Extension() string {
	name := p.Filename
	if i := strings.LastIndex(name, "."); i >= 0 {
		return strings.ToLower(name[i:])
	}
	return ""
}
