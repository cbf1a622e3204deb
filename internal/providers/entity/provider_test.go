// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_EmptyTextYieldsEmptyMap(t *testing.T) {
	p := New(ModeAlias, nil, nil)

	m, err := p.Generate("", "email body")
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = p.Generate("   \n\t ", "email body")
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestGenerate_AliasesAreCounterBased(t *testing.T) {
	p := New(ModeAlias, nil, nil)

	m, err := p.Generate("John Smith met Jane Doe yesterday.", "email body")
	require.NoError(t, err)

	aliases := map[string]bool{}
	for original, repl := range m {
		assert.True(t, strings.HasPrefix(repl, "Person "), "unexpected alias %q for %q", repl, original)
		aliases[repl] = true
	}
	assert.Len(t, aliases, 2, "two distinct names should get two distinct aliases")
}

func TestGenerate_CacheGivesSameAliasForSameOriginal(t *testing.T) {
	p := New(ModeAlias, nil, nil)

	first, err := p.Generate("Contact John Smith.", "email body")
	require.NoError(t, err)
	second, err := p.Generate("John Smith sent a PDF.", "PDF attachment")
	require.NoError(t, err)

	require.Contains(t, first, "John Smith")
	require.Contains(t, second, "John Smith")
	assert.Equal(t, first["John Smith"], second["John Smith"],
		"same original must get the same alias across calls within a run")
}

func TestGenerate_StructuredMasks(t *testing.T) {
	p := New(ModeAlias, nil, nil)

	m, err := p.Generate("SSN 123-45-6789, card 4111-1111-1111-1111, ip 10.0.0.1", "body")
	require.NoError(t, err)

	assert.Equal(t, "XXX-XX-XXXX", m["123-45-6789"])
	assert.Equal(t, "XXXX-XXXX-XXXX-XXXX", m["4111-1111-1111-1111"])
	assert.Equal(t, "0.0.0.0", m["10.0.0.1"])
}

func TestGenerate_EmailAlias(t *testing.T) {
	p := New(ModeAlias, nil, nil)

	m, err := p.Generate("write to j.doe@corp.example", "header: From")
	require.NoError(t, err)
	assert.Equal(t, "persona@example.com", m["j.doe@corp.example"])
}

func TestGenerate_TagMode(t *testing.T) {
	p := New(ModeTag, nil, nil)

	m, err := p.Generate("John Smith, j.doe@corp.example, 123-45-6789", "body")
	require.NoError(t, err)

	assert.Equal(t, "<PERSON>", m["John Smith"])
	assert.Equal(t, "<EMAIL_ADDRESS>", m["j.doe@corp.example"])
	assert.Equal(t, "<US_SSN>", m["123-45-6789"])
}

func TestGenerate_EntityTypeFilter(t *testing.T) {
	p := New(ModeAlias, []string{TypeEmail}, nil)

	m, err := p.Generate("John Smith at j.doe@corp.example, SSN 123-45-6789", "body")
	require.NoError(t, err)

	assert.Contains(t, m, "j.doe@corp.example")
	assert.NotContains(t, m, "John Smith")
	assert.NotContains(t, m, "123-45-6789")
}

func TestDetect_StructuredPatternClaimsSpanFirst(t *testing.T) {
	// The person-name heuristic must not re-claim text inside an email
	// address; the SSN inside a longer digit run must not double-match.
	p := New(ModeAlias, nil, nil)

	m, err := p.Generate("Reach John Smith via John.Smith@corp.example", "body")
	require.NoError(t, err)

	assert.Contains(t, m, "John Smith")
	assert.Contains(t, m, "John.Smith@corp.example")
}

func TestGenerate_SalutationsAreNotPersons(t *testing.T) {
	p := New(ModeAlias, nil, nil)

	m, err := p.Generate("Dear Sir, Best Regards", "body")
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestLetter(t *testing.T) {
	cases := map[int]string{1: "A", 2: "B", 26: "Z", 27: "AA", 28: "AB"}
	for n, want := range cases {
		assert.Equal(t, want, letter(n), "letter(%d)", n)
	}
}
