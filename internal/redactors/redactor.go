// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package redactors holds shared types for the format-specific rewriters.
package redactors

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
)

// BoundingBox is a rectangle in PDF user space (origin bottom-left,
// in points).
type BoundingBox struct {
	X, Y          float64
	Width, Height float64
}

// RandomFilename returns an opaque random filename that keeps the
// extension of original. Processed attachments are renamed so the original
// name cannot leak PII on a side channel.
func RandomFilename(original, fallbackExt string) string {
	ext := filepath.Ext(original)
	if ext == "" {
		ext = fallbackExt
	}

	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is effectively unreachable; use a fixed
		// opaque name rather than the original.
		return "attachment" + ext
	}
	return hex.EncodeToString(b) + ext
}
