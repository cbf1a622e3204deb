// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pdf rewrites PDF documents so that matched text is removed from
// the page content and its replacement drawn at the original position.
package pdf

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"anonymail/internal/observability"
	"anonymail/internal/replacement"
)

// Redactor applies a replacement map to PDF documents.
type Redactor struct {
	observer *observability.Observer
}

func NewRedactor(observer *observability.Observer) *Redactor {
	return &Redactor{observer: observer}
}

// Redact returns a copy of the document with every occurrence of a map key
// erased from the page content streams and replaced by white fill plus the
// mapped text. An empty map returns the input unchanged.
func (r *Redactor) Redact(raw []byte, m replacement.Map) (result []byte, err error) {
	if len(m) == 0 {
		return raw, nil
	}

	done := r.observer.StartTiming("pdf_redactor", "redact", "")
	defer func() {
		done(err == nil, map[string]interface{}{"bytes_in": len(raw)})
	}()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("document layout parsing failed: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}

	entries := m.Normalize().SortedEntries()
	matchesByPage := map[int][]pageMatch{}
	total := 0
	for pageNr := 1; pageNr <= reader.NumPage(); pageNr++ {
		page := reader.Page(pageNr)
		if page.V.IsNull() {
			continue
		}
		matches := searchPage(page, entries)
		if len(matches) > 0 {
			matchesByPage[pageNr] = matches
			total += len(matches)
		}
	}
	if total == 0 {
		return raw, nil
	}

	out, err := applyMatches(raw, matchesByPage)
	if err != nil {
		return nil, err
	}

	r.observer.Log(observability.Event{
		Component: "pdf_redactor",
		Operation: "matches_applied",
		Success:   true,
		Metadata:  map[string]interface{}{"pages": len(matchesByPage), "matches": total},
	})
	return out, nil
}
