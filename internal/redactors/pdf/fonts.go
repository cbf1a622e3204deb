// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import "strings"

// resolveFont maps an embedded or subset font name to the closest standard
// Type1 font so the redrawn text can reference a font every viewer ships.
func resolveFont(raw string) string {
	name := strings.ToLower(raw)
	if i := strings.Index(name, "+"); i >= 0 {
		name = name[i+1:] // strip subset prefix like ABCDEF+
	}

	bold := strings.Contains(name, "bold") || strings.Contains(name, "black") || strings.Contains(name, "heavy")
	italic := strings.Contains(name, "italic") || strings.Contains(name, "oblique")

	switch {
	case strings.Contains(name, "courier") || strings.Contains(name, "mono"):
		return styled("Courier", bold, italic, "Oblique")
	case strings.Contains(name, "times") || strings.Contains(name, "serif") || strings.Contains(name, "roman") || strings.Contains(name, "georgia") || strings.Contains(name, "garamond"):
		if bold && italic {
			return "Times-BoldItalic"
		}
		if bold {
			return "Times-Bold"
		}
		if italic {
			return "Times-Italic"
		}
		return "Times-Roman"
	default:
		return styled("Helvetica", bold, italic, "Oblique")
	}
}

func styled(base string, bold, italic bool, slant string) string {
	switch {
	case bold && italic:
		return base + "-Bold" + slant
	case bold:
		return base + "-Bold"
	case italic:
		return base + "-" + slant
	default:
		return base
	}
}

// resolveSize picks the draw size for a replacement. When the font size is
// unknown it is estimated from the redaction rectangle, and when the
// replacement is much longer than the original the size shrinks so the new
// text stays inside the cleared area.
func resolveSize(m pageMatch) float64 {
	size := m.FontSize
	if size <= 0 {
		size = m.Box.Height * 0.75
	}
	if size <= 0 {
		size = 10
	}

	if len(m.Original) > 0 {
		ratio := float64(len(m.Replacement)) / float64(len(m.Original))
		if ratio > 1.2 {
			size = size / ratio * 1.2
		}
	}
	return size
}
