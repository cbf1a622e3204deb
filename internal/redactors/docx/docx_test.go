// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonymail/internal/replacement"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Dear Jane Doe,</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Your account is </w:t></w:r><w:r><w:t>active.</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>jane@corp.example</w:t></w:r></w:p></w:tc>
<w:tc><w:p><w:r><w:t>555-123-4567</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
<w:p><w:r><w:t>Regards &amp; thanks</w:t></w:r></w:p>
</w:body>
</w:document>`

const headerXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:p><w:r><w:t>Jane Doe - Confidential</w:t></w:r></w:p>
</w:hdr>`

func buildDocx(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func sampleDocx(t *testing.T) []byte {
	return buildDocx(t, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
		"word/document.xml":   documentXML,
		"word/header1.xml":    headerXML,
		"word/media/img.png":  "\x89PNG fake image bytes",
	})
}

func readEntry(t *testing.T, raw []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func TestRewriteReplacesRunText(t *testing.T) {
	out, err := Rewrite(sampleDocx(t), replacement.Map{
		"Jane Doe":          "Person A",
		"jane@corp.example": "persona@example.com",
		"555-123-4567":      "555-0001",
	})
	require.NoError(t, err)

	doc := readEntry(t, out, "word/document.xml")
	assert.NotContains(t, doc, "Jane Doe")
	assert.NotContains(t, doc, "jane@corp.example")
	assert.Contains(t, doc, "Dear Person A,")
	assert.Contains(t, doc, "persona@example.com")
	assert.Contains(t, doc, "555-0001")

	hdr := readEntry(t, out, "word/header1.xml")
	assert.Contains(t, hdr, "Person A - Confidential")
	assert.NotContains(t, hdr, "Jane Doe")
}

func TestRewritePreservesOtherEntries(t *testing.T) {
	raw := sampleDocx(t)
	out, err := Rewrite(raw, replacement.Map{"Jane Doe": "Person A"})
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG fake image bytes", readEntry(t, out, "word/media/img.png"))
	assert.Equal(t, readEntry(t, raw, "[Content_Types].xml"), readEntry(t, out, "[Content_Types].xml"))
}

func TestRewriteEscapesXMLInReplacements(t *testing.T) {
	out, err := Rewrite(sampleDocx(t), replacement.Map{"Jane Doe": "A & B <co>"})
	require.NoError(t, err)
	doc := readEntry(t, out, "word/document.xml")
	assert.Contains(t, doc, "Dear A &amp; B &lt;co&gt;,")
}

func TestRewriteUnescapesBeforeMatching(t *testing.T) {
	out, err := Rewrite(sampleDocx(t), replacement.Map{"Regards & thanks": "Bye"})
	require.NoError(t, err)
	doc := readEntry(t, out, "word/document.xml")
	assert.Contains(t, doc, "<w:t>Bye</w:t>")
}

func TestRewriteEmptyMapReturnsInputUnchanged(t *testing.T) {
	raw := sampleDocx(t)
	out, err := Rewrite(raw, replacement.Map{})
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestRewriteCorruptArchiveFails(t *testing.T) {
	_, err := Rewrite([]byte("not a zip"), replacement.Map{"a": "b"})
	assert.Error(t, err)
}

func TestExtractTextOrdersParagraphsTablesHeaders(t *testing.T) {
	text, err := ExtractText(sampleDocx(t))
	require.NoError(t, err)

	lines := []string{
		"Dear Jane Doe,",
		"Your account is active.",
		"Regards & thanks",
		"jane@corp.example",
		"555-123-4567",
		"Jane Doe - Confidential",
	}
	pos := -1
	for _, l := range lines {
		idx := bytes.Index([]byte(text), []byte(l))
		require.GreaterOrEqual(t, idx, 0, "line %q missing", l)
		assert.Greater(t, idx, pos, "line %q out of order", l)
		pos = idx
	}
}

func TestExtractTextJoinsRunsWithinParagraph(t *testing.T) {
	text, err := ExtractText(sampleDocx(t))
	require.NoError(t, err)
	assert.Contains(t, text, "Your account is active.")
}
