// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package replacement defines the replacement map built once per
// anonymization run and the substitution engine that applies it. Every
// format-specific rewriter (plain text, PDF, DOCX, spreadsheet) consumes
// the same map so that a PII string detected anywhere in a message is
// replaced by the same value everywhere it occurs.
package replacement

import (
	"sort"
	"strings"
)

// Map maps an original PII substring to its replacement. Keys are unique
// and non-empty. The map carries no ordering at rest; application order is
// always longest-key-first (see SortedEntries).
type Map map[string]string

// Entry is a single original/replacement pair in application order.
type Entry struct {
	Original    string
	Replacement string
}

// Normalize returns a copy of m with empty keys and no-op entries (key ==
// value) removed. Rewriters call this once before applying so they never
// perform self-replacements.
func (m Map) Normalize() Map {
	out := make(Map, len(m))
	for original, repl := range m {
		if original == "" || original == repl {
			continue
		}
		out[original] = repl
	}
	return out
}

// Merge folds other into m, keeping the existing value on key collision.
// The first replacement minted for an original string wins for the whole
// run, which keeps cross-part replacements consistent.
func (m Map) Merge(other Map) {
	for original, repl := range other {
		if _, exists := m[original]; !exists {
			m[original] = repl
		}
	}
}

// SortedEntries returns the map's entries longest-original-first, with ties
// broken lexicographically for determinism. Applying in this order prevents
// a short key ("John") from corrupting an occurrence of a longer key
// ("John Smith") before the longer replacement is attempted.
func (m Map) SortedEntries() []Entry {
	entries := make([]Entry, 0, len(m))
	for original, repl := range m {
		entries = append(entries, Entry{Original: original, Replacement: repl})
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].Original) != len(entries[j].Original) {
			return len(entries[i].Original) > len(entries[j].Original)
		}
		return entries[i].Original < entries[j].Original
	})
	return entries
}

// Apply substitutes every literal occurrence of each map key in text with
// its replacement, longest key first. Substitution is exact and literal;
// keys are never interpreted as patterns. Returns text unchanged when
// either text or the map is empty.
//
// There is no word-boundary anchoring: a key that happens to be a substring
// of an unrelated larger token is still replaced. That can over-redact, and
// is accepted behavior rather than a bug to fix.
//
// Apply is idempotent only when no replacement value is itself a key of the
// map. A map like {"John":"Jim","Jim":"Bob"} rewrites "John" to "Bob" in a
// single pass and produces different results when applied twice.
func Apply(text string, m Map) string {
	if text == "" || len(m) == 0 {
		return text
	}

	result := text
	for _, e := range m.Normalize().SortedEntries() {
		if !strings.Contains(result, e.Original) {
			continue
		}
		// strings.ReplaceAll is literal substitution; map keys are never
		// interpreted as patterns, so no metacharacter escaping is needed.
		result = strings.ReplaceAll(result, e.Original, e.Replacement)
	}
	return result
}
