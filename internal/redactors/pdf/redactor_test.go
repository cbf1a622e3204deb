// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonymail/internal/redactors"
	"anonymail/internal/replacement"
)

// buildOnePagePDF writes a minimal single-page document with one
// uncompressed content stream, computing xref offsets as it goes.
func buildOnePagePDF(content string) []byte {
	return buildPDF(content, nil, "")
}

// buildPDF additionally takes extra objects (numbered after the five page
// objects) and extra trailer entries.
func buildPDF(content string, extraObjs []string, trailerExtra string) []byte {
	var buf bytes.Buffer
	offsets := make([]int, 0, 5+len(extraObjs))

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj("<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
		"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>")
	obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content)+1, content+"\n"))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for _, body := range extraObjs {
		obj(body)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d %05d n \n", off, 0)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R %s>>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, trailerExtra, xrefOffset)
	return buf.Bytes()
}

func samplePDF() []byte {
	return buildOnePagePDF("BT /F1 12 Tf 72 700 Td (Jane Doe called 555-123-4567) Tj ET")
}

func TestRedactEmptyMapReturnsInputUnchanged(t *testing.T) {
	raw := samplePDF()
	out, err := NewRedactor(nil).Redact(raw, replacement.Map{})
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestRedactReplacesTextInContentStream(t *testing.T) {
	raw := samplePDF()
	out, err := NewRedactor(nil).Redact(raw, replacement.Map{
		"Jane Doe":     "Person A",
		"555-123-4567": "555-0000",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out)

	assert.NotContains(t, string(out), "Jane Doe")
	assert.NotContains(t, string(out), "555-123-4567")
	assert.Contains(t, string(out), `(Person A)`)
	assert.Contains(t, string(out), `(555-0000)`)
	assert.Contains(t, string(out), "1 1 1 rg")

	text, err := ExtractText(out)
	require.NoError(t, err)
	assert.NotContains(t, text, "Jane Doe")
	assert.Contains(t, text, "Person A")
}

func TestRedactDrawsFillsBeforeReplacementText(t *testing.T) {
	out, err := NewRedactor(nil).Redact(samplePDF(), replacement.Map{
		"Jane Doe":     "Person A",
		"555-123-4567": "555-0000",
	})
	require.NoError(t, err)

	// Both white fills precede both text draws, so a later fill can never
	// paint over an earlier replacement.
	overlay := string(out)[strings.Index(string(out), "1 1 1 rg"):]
	assert.Less(t, strings.LastIndex(overlay, "re f"), strings.Index(overlay, "BT"))
}

func TestRedactWritesIncrementalUpdate(t *testing.T) {
	raw := buildPDF(
		"BT /F1 12 Tf 72 700 Td (Jane Doe called home) Tj ET",
		[]string{
			"<< /OrphanMarker (keep-me-around) >>",
			"<< /Producer (origtool) /Title (quarterly report) >>",
		},
		"/Info 7 0 R /ID [<DEADBEEF00112233> <DEADBEEF00112233>] ",
	)
	out, err := NewRedactor(nil).Redact(raw, replacement.Map{"Jane Doe": "Person A"})
	require.NoError(t, err)

	// The input survives as the prefix of an incremental update, modulo
	// the blanked superseded content stream.
	require.Greater(t, len(out), len(raw))
	assert.Contains(t, string(out), "keep-me-around")
	assert.Contains(t, string(out), "(origtool)")
	assert.Contains(t, string(out), "DEADBEEF00112233")
	assert.NotContains(t, string(out), "pdfcpu")

	// The erased text must not be recoverable from the stale stream either.
	assert.NotContains(t, string(out), "Jane Doe")

	text, err := ExtractText(out)
	require.NoError(t, err)
	assert.Contains(t, text, "Person A")
}

func TestRedactNoMatchesReturnsInput(t *testing.T) {
	raw := samplePDF()
	out, err := NewRedactor(nil).Redact(raw, replacement.Map{"Bob": "Person B"})
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestRedactCorruptDocumentFails(t *testing.T) {
	_, err := NewRedactor(nil).Redact([]byte("not a pdf at all"), replacement.Map{"a": "b"})
	assert.Error(t, err)
}

func TestExtractTextFindsContent(t *testing.T) {
	text, err := ExtractText(samplePDF())
	require.NoError(t, err)
	assert.Contains(t, text, "Jane Doe")
}

func TestBuildRowsGroupsByBaseline(t *testing.T) {
	rows := buildRows([]ledongthuc.Text{
		{S: "B", X: 80, Y: 700, W: 7, FontSize: 12},
		{S: "A", X: 72, Y: 700.5, W: 7, FontSize: 12},
		{S: "C", X: 72, Y: 650, W: 7, FontSize: 12},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "AB", rows[0].text)
	assert.Equal(t, "C", rows[1].text)
}

func TestBuildRowsInsertsSyntheticSpaces(t *testing.T) {
	rows := buildRows([]ledongthuc.Text{
		{S: "H", X: 72, Y: 700, W: 8, FontSize: 12},
		{S: "i", X: 80, Y: 700, W: 4, FontSize: 12},
		{S: "t", X: 100, Y: 700, W: 4, FontSize: 12}, // 16pt gap
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "Hi t", rows[0].text)
}

func TestFindInRowLocatesGlyphSpans(t *testing.T) {
	row := assembleRow([]ledongthuc.Text{
		{S: "J", X: 72, Y: 700, W: 6, FontSize: 12},
		{S: "o", X: 78, Y: 700, W: 6, FontSize: 12},
		{S: "e", X: 84, Y: 700, W: 6, FontSize: 12},
	})
	spans := findInRow(row, "oe")
	require.Len(t, spans, 1)
	assert.Len(t, spans[0], 2)
	assert.Equal(t, 78.0, spans[0][0].X)
}

func TestOverlapDedupPrefersEarlierMatch(t *testing.T) {
	a := redactors.BoundingBox{X: 0, Y: 0, Width: 100, Height: 10}
	b := redactors.BoundingBox{X: 10, Y: 0, Width: 40, Height: 10}
	assert.Greater(t, overlapFraction(a, b), 0.5)

	c := redactors.BoundingBox{X: 200, Y: 0, Width: 40, Height: 10}
	assert.Equal(t, 0.0, overlapFraction(a, c))
}

func TestResolveFont(t *testing.T) {
	assert.Equal(t, "Helvetica", resolveFont(""))
	assert.Equal(t, "Helvetica-Bold", resolveFont("ABCDEF+Arial-BoldMT"))
	assert.Equal(t, "Times-Italic", resolveFont("TimesNewRomanPS-ItalicMT"))
	assert.Equal(t, "Courier", resolveFont("DejaVuSansMono"))
	assert.Equal(t, "Helvetica", resolveFont("OpenSans-Regular"))
}

func TestResolveSizeShrinksLongReplacements(t *testing.T) {
	m := pageMatch{Original: "Bob", Replacement: "Person AA", FontSize: 12}
	assert.Less(t, resolveSize(m), 12.0)

	same := pageMatch{Original: "Jane Doe", Replacement: "Person A", FontSize: 12}
	assert.Equal(t, 12.0, resolveSize(same))
}

func TestEraseInStringsBlanksLiteralTokens(t *testing.T) {
	content := []byte("BT /F1 12 Tf (Jane Doe) Tj ET")
	out := eraseInStrings(content, []string{"Jane Doe"})
	assert.Equal(t, "BT /F1 12 Tf (        ) Tj ET", string(out))
	assert.Len(t, out, len(content))
}

func TestEraseInStringsBlanksHexTokens(t *testing.T) {
	hexed := strings.ToUpper(fmt.Sprintf("%x", "Jane"))
	content := []byte("BT <" + hexed + "> Tj ET")
	out := eraseInStrings(content, []string{"Jane"})
	assert.Equal(t, "BT <20202020> Tj ET", string(out))
}

func TestEraseInStringsSkipsDictsAndOperators(t *testing.T) {
	content := []byte("<< /Name (Jane) >> BT (Jane) Tj ET % Jane\nJane")
	out := eraseInStrings(content, []string{"Jane"})
	assert.Equal(t, "<< /Name (    ) >> BT (    ) Tj ET % Jane\nJane", string(out))
}

func TestEscapeLiteral(t *testing.T) {
	assert.Equal(t, `a\(b\)c\\d`, escapeLiteral(`a(b)c\d`))
}
