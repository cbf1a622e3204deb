// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTextNoExifYieldsEmpty(t *testing.T) {
	// Minimal JPEG without an EXIF segment.
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x04, 0x00, 0x00, 0xFF, 0xD9}
	assert.Empty(t, ExtractText(jpeg))
}

func TestExtractTextGarbageYieldsEmpty(t *testing.T) {
	assert.Empty(t, ExtractText([]byte("not an image")))
	assert.Empty(t, ExtractText(nil))
}
