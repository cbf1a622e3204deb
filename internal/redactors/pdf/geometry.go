// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"anonymail/internal/redactors"
	"anonymail/internal/replacement"
)

// rowTolerance is the Y distance (points) within which glyphs are grouped
// onto one text row.
const rowTolerance = 2.0

// pageMatch is one accepted replacement site on a page.
type pageMatch struct {
	Box         redactors.BoundingBox
	Baseline    float64 // Y of the original text baseline
	Original    string
	Replacement string
	FontName    string  // raw font name of the first intersecting glyph
	FontSize    float64 // 0 when unknown
}

// textRow is a reconstructed line of positioned glyphs.
type textRow struct {
	text  string    // row text with synthetic spaces for visual gaps
	elems []int     // byte offset -> glyph index, -1 for synthetic spaces
	chars []pdf.Text
}

// searchPage finds every occurrence of every map key in the page's glyph
// layout, longest key first, and returns the accepted matches after
// overlap deduplication.
func searchPage(page pdf.Page, entries []replacement.Entry) []pageMatch {
	content := page.Content()
	if len(content.Text) == 0 {
		return nil
	}

	rows := buildRows(content.Text)

	var accepted []pageMatch
	for _, e := range entries {
		for _, row := range rows {
			for _, span := range findInRow(row, e.Original) {
				box := boundingBox(span)
				if overlapsAccepted(box, accepted) {
					continue
				}
				m := pageMatch{
					Box:         box,
					Baseline:    spanBaseline(span),
					Original:    e.Original,
					Replacement: e.Replacement,
				}
				m.FontName, m.FontSize = spanFont(span)
				accepted = append(accepted, m)
			}
		}
	}
	return accepted
}

// buildRows groups glyphs into rows by Y coordinate and orders each row
// left to right, inserting a synthetic space where the horizontal gap
// between adjacent glyphs exceeds 20% of the font size.
func buildRows(texts []pdf.Text) []textRow {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" && t.S != " " {
			continue
		}
		glyphs = append(glyphs, t)
	}
	if len(glyphs) == 0 {
		return nil
	}

	sort.SliceStable(glyphs, func(i, j int) bool {
		if glyphs[i].Y != glyphs[j].Y {
			return glyphs[i].Y > glyphs[j].Y // top of page first
		}
		return glyphs[i].X < glyphs[j].X
	})

	var rows []textRow
	var current []pdf.Text
	flush := func() {
		if len(current) > 0 {
			rows = append(rows, assembleRow(current))
			current = nil
		}
	}

	for _, g := range glyphs {
		if len(current) > 0 && abs(current[len(current)-1].Y-g.Y) > rowTolerance {
			flush()
		}
		current = append(current, g)
	}
	flush()
	return rows
}

func assembleRow(glyphs []pdf.Text) textRow {
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

	row := textRow{chars: glyphs}
	var b strings.Builder
	for i, g := range glyphs {
		if i > 0 {
			prev := glyphs[i-1]
			gap := g.X - (prev.X + prev.W)
			size := prev.FontSize
			if size <= 0 {
				size = 12
			}
			if gap > size*0.2 && !strings.HasSuffix(b.String(), " ") {
				b.WriteString(" ")
				row.elems = append(row.elems, -1)
			}
		}
		for range []byte(g.S) {
			row.elems = append(row.elems, i)
		}
		b.WriteString(g.S)
	}
	row.text = b.String()
	return row
}

// findInRow returns the glyph runs matching original inside the row text.
func findInRow(row textRow, original string) [][]pdf.Text {
	var spans [][]pdf.Text

	start := 0
	for {
		idx := strings.Index(row.text[start:], original)
		if idx < 0 {
			break
		}
		idx += start

		var span []pdf.Text
		seen := -1
		for off := idx; off < idx+len(original); off++ {
			gi := row.elems[off]
			if gi < 0 || gi == seen {
				continue
			}
			span = append(span, row.chars[gi])
			seen = gi
		}
		if len(span) > 0 {
			spans = append(spans, span)
		}
		start = idx + len(original)
	}
	return spans
}

// boundingBox computes the rectangle covering a glyph run. The Y extent is
// derived from the baseline and font size since the layout library does not
// expose glyph ascent/descent.
func boundingBox(span []pdf.Text) redactors.BoundingBox {
	minX, maxX := span[0].X, span[0].X+span[0].W
	minY, maxY := span[0].Y, span[0].Y
	size := span[0].FontSize

	for _, g := range span[1:] {
		minX = minF(minX, g.X)
		maxX = maxF(maxX, g.X+g.W)
		minY = minF(minY, g.Y)
		maxY = maxF(maxY, g.Y)
		size = maxF(size, g.FontSize)
	}
	if size <= 0 {
		size = 12
	}

	return redactors.BoundingBox{
		X:      minX,
		Y:      minY - size*0.25,
		Width:  maxX - minX,
		Height: (maxY - minY) + size*1.05,
	}
}

func spanBaseline(span []pdf.Text) float64 {
	base := span[0].Y
	for _, g := range span[1:] {
		base = minF(base, g.Y)
	}
	return base
}

func spanFont(span []pdf.Text) (string, float64) {
	for _, g := range span {
		if g.Font != "" || g.FontSize > 0 {
			return g.Font, g.FontSize
		}
	}
	return "", 0
}

// overlapsAccepted reports whether box overlaps an already-accepted match
// by more than half of the smaller rectangle's area. Entries are searched
// longest key first, so on conflict the earlier (longer) match wins.
func overlapsAccepted(box redactors.BoundingBox, accepted []pageMatch) bool {
	for _, m := range accepted {
		if overlapFraction(box, m.Box) > 0.5 {
			return true
		}
	}
	return false
}

func overlapFraction(a, b redactors.BoundingBox) float64 {
	ix := minF(a.X+a.Width, b.X+b.Width) - maxF(a.X, b.X)
	iy := minF(a.Y+a.Height, b.Y+b.Height) - maxF(a.Y, b.Y)
	if ix <= 0 || iy <= 0 {
		return 0
	}

	smaller := minF(a.Width*a.Height, b.Width*b.Height)
	if smaller <= 0 {
		return 1
	}
	return (ix * iy) / smaller
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
