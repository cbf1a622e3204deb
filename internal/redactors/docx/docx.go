// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package docx rewrites Word documents by applying a replacement map to the
// run text of the main document part, headers and footers. All other
// archive entries pass through untouched, which preserves styling, images
// and document metadata parts.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"anonymail/internal/replacement"
)

var runTextRE = regexp.MustCompile(`(<w:t(?:\s[^>]*)?>)([^<]*)(</w:t>)`)

// rewritableEntry reports whether a zip entry holds run text worth
// rewriting.
func rewritableEntry(name string) bool {
	if name == "word/document.xml" {
		return true
	}
	if !strings.HasPrefix(name, "word/") || !strings.HasSuffix(name, ".xml") {
		return false
	}
	base := strings.TrimPrefix(name, "word/")
	return strings.HasPrefix(base, "header") || strings.HasPrefix(base, "footer") ||
		base == "footnotes.xml" || base == "endnotes.xml"
}

// Rewrite returns a copy of the document with the map applied to every text
// run. Replacement happens within single runs; a value split across
// differently styled runs is not matched.
func Rewrite(raw []byte, m replacement.Map) ([]byte, error) {
	if len(m) == 0 {
		return raw, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range zr.File {
		fh := f.FileHeader
		w, err := zw.CreateHeader(&fh)
		if err != nil {
			return nil, fmt.Errorf("writing entry %s: %w", f.Name, err)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("reading entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading entry %s: %w", f.Name, err)
		}

		if rewritableEntry(f.Name) {
			data = rewriteRunText(data, m)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("writing entry %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}
	return buf.Bytes(), nil
}

// rewriteRunText applies the map to the character data of each w:t element.
func rewriteRunText(data []byte, m replacement.Map) []byte {
	return runTextRE.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := runTextRE.FindSubmatch(match)
		text := unescapeXML(string(parts[2]))
		rewritten := replacement.Apply(text, m)
		if rewritten == text {
			return match
		}
		var out bytes.Buffer
		out.Write(parts[1])
		out.WriteString(escapeXML(rewritten))
		out.Write(parts[3])
		return out.Bytes()
	})
}

var (
	xmlUnescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&")
	xmlEscaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

func unescapeXML(s string) string { return xmlUnescaper.Replace(s) }
func escapeXML(s string) string   { return xmlEscaper.Replace(s) }

// ExtractText returns the document text: body paragraphs first, then table
// cell text, then headers and footers. Table cells and paragraphs each
// become one line.
func ExtractText(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}

	var body []byte
	var headers, footers [][]byte
	for _, f := range zr.File {
		if !rewritableEntry(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("reading entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading entry %s: %w", f.Name, err)
		}
		base := strings.TrimPrefix(f.Name, "word/")
		switch {
		case f.Name == "word/document.xml":
			body = data
		case strings.HasPrefix(base, "header"):
			headers = append(headers, data)
		case strings.HasPrefix(base, "footer"):
			footers = append(footers, data)
		}
	}

	var b strings.Builder
	if body != nil {
		paragraphs, tables, err := parseBody(body)
		if err != nil {
			return "", fmt.Errorf("parsing document body: %w", err)
		}
		writeLines(&b, paragraphs)
		writeLines(&b, tables)
	}
	for _, data := range append(headers, footers...) {
		paragraphs, tables, err := parseBody(data)
		if err != nil {
			continue // a malformed header should not sink the document
		}
		writeLines(&b, paragraphs)
		writeLines(&b, tables)
	}
	return b.String(), nil
}

func writeLines(b *strings.Builder, lines []string) {
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		b.WriteString(l)
		b.WriteString("\n")
	}
}

// parseBody walks a WordprocessingML part and splits its paragraph text
// into body paragraphs and table cell paragraphs, preserving document
// order within each group.
func parseBody(data []byte) (paragraphs, tables []string, err error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		tblDepth   int
		inPara     bool
		inRunText  bool
		current    strings.Builder
		currentTbl bool
	)

	flush := func() {
		if !inPara {
			return
		}
		text := current.String()
		if currentTbl {
			tables = append(tables, text)
		} else {
			paragraphs = append(paragraphs, text)
		}
		current.Reset()
		inPara = false
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
			case "p":
				flush()
				inPara = true
				currentTbl = tblDepth > 0
			case "t":
				inRunText = inPara
			case "tab":
				if inPara {
					current.WriteString("\t")
				}
			case "br", "cr":
				if inPara {
					current.WriteString(" ")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				if tblDepth > 0 {
					tblDepth--
				}
			case "p":
				flush()
			case "t":
				inRunText = false
			}
		case xml.CharData:
			if inRunText {
				current.Write(t)
			}
		}
	}
	flush()
	return paragraphs, tables, nil
}
