// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package synthetic refills <ENTITY_TYPE> tags left by the tag-mode
// provider with realistic fake values, so anonymized output reads like
// normal prose instead of redaction markup.
package synthetic

import (
	"regexp"

	"anonymail/internal/observability"
	"anonymail/internal/providers"
	"anonymail/internal/replacement"
)

var tagRE = regexp.MustCompile(`<([A-Z][A-Z_]*)>`)

// Tags returns the distinct entity tags present in text, in first-seen
// order.
func Tags(text string) []string {
	var tags []string
	seen := map[string]bool{}
	for _, m := range tagRE.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			tags = append(tags, m)
		}
	}
	return tags
}

// builtin fake values per entity tag. Deliberately reserved-domain and
// non-routable so refilled output cannot point at a real person.
var builtin = map[string]string{
	"<PERSON>":        "Alex Morgan",
	"<EMAIL_ADDRESS>": "alex.morgan@example.com",
	"<PHONE_NUMBER>":  "555-010-0199",
	"<US_SSN>":        "900-00-0000",
	"<CREDIT_CARD>":   "4000-0000-0000-0002",
	"<IBAN_CODE>":     "DE00 0000 0000 0000 0000 00",
	"<IP_ADDRESS>":    "192.0.2.1",
	"<URL>":           "https://example.com/page",
	"<DATE_TIME>":     "2001-01-01",
	"<US_PASSPORT>":   "900000000",
}

// Refiller replaces entity tags with fake values. When a generative
// provider is configured it is asked first; tags it does not cover fall
// back to the builtin values.
type Refiller struct {
	provider providers.Provider
	observer *observability.Observer
}

func New(provider providers.Provider, observer *observability.Observer) *Refiller {
	return &Refiller{provider: provider, observer: observer}
}

// Refill returns text with every known tag replaced. Text without tags is
// returned unchanged. Provider failures degrade to the builtin values.
func (r *Refiller) Refill(text string) string {
	tags := Tags(text)
	if len(tags) == 0 {
		return text
	}

	done := r.observer.StartTiming("synthetic", "refill", "")

	m := replacement.Map{}
	if r.provider != nil {
		generated, err := r.provider.Generate(text, "synthetic data refill")
		if err == nil {
			for orig, repl := range generated {
				if tagRE.MatchString(orig) {
					m[orig] = repl
				}
			}
		}
	}
	for _, tag := range tags {
		if _, ok := m[tag]; ok {
			continue
		}
		if fake, ok := builtin[tag]; ok {
			m[tag] = fake
		}
	}

	out := replacement.Apply(text, m)
	done(true, map[string]interface{}{"tags": len(tags), "filled": len(m)})
	return out
}

// RefillValues rewrites a replacement map's values, swapping any entity
// tags they contain for fake values. Plugged into the pipeline's map
// transform so tagged replacements turn synthetic before they are applied
// anywhere.
func (r *Refiller) RefillValues(m replacement.Map) replacement.Map {
	out := make(replacement.Map, len(m))
	for orig, repl := range m {
		out[orig] = r.Refill(repl)
	}
	return out
}
