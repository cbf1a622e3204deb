// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package metadata extracts the text-bearing metadata of image attachments
// so embedded names, comments and locations take part in detection.
package metadata

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// stringFieldWalker collects every string-typed EXIF field.
type stringFieldWalker struct {
	fields map[string]string
}

func (w *stringFieldWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag == nil || tag.Format() != tiff.StringVal {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		return nil
	}
	val = strings.TrimSpace(val)
	if val != "" {
		w.fields[string(name)] = val
	}
	return nil
}

// ExtractText returns the image's EXIF string fields as "name: value"
// lines in alphabetical order, plus decimal GPS coordinates when present.
// Images without EXIF data yield an empty string.
func ExtractText(raw []byte) string {
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	walker := &stringFieldWalker{fields: map[string]string{}}
	x.Walk(walker)

	if lat, long, err := x.LatLong(); err == nil {
		walker.fields["GPSPosition"] = fmt.Sprintf("%.6f, %.6f", lat, long)
	}

	if len(walker.fields) == 0 {
		return ""
	}

	names := make([]string, 0, len(walker.fields))
	for name := range walker.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(walker.fields[name])
		b.WriteString("\n")
	}
	return b.String()
}
