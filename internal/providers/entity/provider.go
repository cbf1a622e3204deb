// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package entity implements the pattern-based replacement provider. It
// recognizes structured PII (email addresses, SSNs, card and phone numbers,
// IPs, URLs, dates) plus a capitalized-bigram person-name heuristic, and
// mints deterministic replacements: readable aliases scoped by entity type
// ("Person A", "persona@example.com") or bare <ENTITY_TYPE> tags.
//
// Aliasing state (per-type counters, per-original cache) lives on the
// provider instance. Construct one provider per anonymization run; sharing
// an instance across runs would leak alias assignments between messages.
package entity

import (
	"fmt"
	"sort"
	"strings"

	"anonymail/internal/observability"
	"anonymail/internal/replacement"
)

// Mode selects how detected spans are replaced.
type Mode int

const (
	// ModeAlias emits counter-based readable aliases ("Person A").
	ModeAlias Mode = iota
	// ModeTag emits generic <ENTITY_TYPE> tags without aliasing state.
	ModeTag
)

// Provider is the entity-detector replacement provider. Not safe for
// concurrent use; the pipeline calls it sequentially within one run.
type Provider struct {
	mode     Mode
	enabled  map[string]bool // nil means all entity types
	patterns []pattern

	counters map[string]int
	cache    map[string]string

	observer *observability.Observer
}

// New creates a provider detecting the given entity types. An empty or nil
// entityTypes slice enables every recognizer.
func New(mode Mode, entityTypes []string, observer *observability.Observer) *Provider {
	var enabled map[string]bool
	if len(entityTypes) > 0 {
		enabled = make(map[string]bool, len(entityTypes))
		for _, t := range entityTypes {
			enabled[strings.ToUpper(strings.TrimSpace(t))] = true
		}
	}

	return &Provider{
		mode:     mode,
		enabled:  enabled,
		patterns: defaultPatterns,
		counters: make(map[string]int),
		cache:    make(map[string]string),
		observer: observer,
	}
}

// Name implements providers.Provider.
func (p *Provider) Name() string {
	return "entity_detector"
}

// span is a claimed region of the input text.
type span struct {
	start, end int
	entityType string
}

// Generate implements providers.Provider. The context label is recorded for
// observability only.
func (p *Provider) Generate(text, context string) (replacement.Map, error) {
	done := p.observer.StartTiming("entity_provider", "generate", context)

	if strings.TrimSpace(text) == "" {
		done(true, map[string]interface{}{"empty_input": true})
		return replacement.Map{}, nil
	}

	spans := p.detect(text)
	result := make(replacement.Map, len(spans))
	for _, s := range spans {
		original := text[s.start:s.end]
		result[original] = p.replacementFor(s.entityType, original)
	}

	done(true, map[string]interface{}{
		"detected_spans": len(spans),
		"map_size":       len(result),
	})
	return result, nil
}

// detect runs every enabled recognizer over text and resolves overlaps:
// earlier (more structured) patterns claim their spans first, and later
// matches overlapping a claimed span are discarded.
func (p *Provider) detect(text string) []span {
	var claimed []span

	for _, pat := range p.patterns {
		if p.enabled != nil && !p.enabled[pat.entityType] {
			continue
		}
		for _, loc := range pat.regex.FindAllStringIndex(text, -1) {
			s := span{start: loc[0], end: loc[1], entityType: pat.entityType}
			if overlapsAny(s, claimed) {
				continue
			}
			if pat.entityType == TypePerson && !plausiblePerson(text[s.start:s.end]) {
				continue
			}
			claimed = append(claimed, s)
		}
	}

	sort.Slice(claimed, func(i, j int) bool { return claimed[i].start < claimed[j].start })
	return claimed
}

func overlapsAny(s span, claimed []span) bool {
	for _, c := range claimed {
		if s.start < c.end && c.start < s.end {
			return true
		}
	}
	return false
}

// replacementFor returns the replacement for an original string, reusing
// the cached value when the exact string was seen before in this run.
func (p *Provider) replacementFor(entityType, original string) string {
	if p.mode == ModeTag {
		return "<" + entityType + ">"
	}

	if repl, ok := p.cache[original]; ok {
		return repl
	}

	p.counters[entityType]++
	repl := alias(entityType, p.counters[entityType])
	p.cache[original] = repl
	return repl
}

// alias builds the counter-based readable replacement for an entity type.
// The first distinct PERSON becomes "Person A", the second "Person B";
// structured identifiers get fixed masks.
func alias(entityType string, count int) string {
	switch entityType {
	case TypePerson:
		return "Person " + letter(count)
	case TypeEmail:
		return fmt.Sprintf("person%s@example.com", strings.ToLower(letter(count)))
	case TypePhone:
		return fmt.Sprintf("555-000-%04d", count)
	case TypeSSN:
		return "XXX-XX-XXXX"
	case TypeCreditCard:
		return "XXXX-XXXX-XXXX-XXXX"
	case TypeIBAN:
		return "XX00 0000 0000 0000"
	case TypeIPAddress:
		return "0.0.0.0"
	case TypeURL:
		return "https://example.com"
	case TypeDateTime:
		return "XXXX-XX-XX"
	case TypePassport:
		return "XXXXXXXXX"
	default:
		return "[REDACTED-" + entityType + "]"
	}
}

// letter maps 1 -> "A", 26 -> "Z", 27 -> "AA" and so on.
func letter(n int) string {
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}
