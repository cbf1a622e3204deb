// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomFilenameKeepsExtension(t *testing.T) {
	name := RandomFilename("report.pdf", ".bin")
	assert.True(t, strings.HasSuffix(name, ".pdf"), "got %q", name)
	assert.NotEqual(t, "report.pdf", name)
}

func TestRandomFilenameFallbackExtension(t *testing.T) {
	name := RandomFilename("", ".pdf")
	assert.True(t, strings.HasSuffix(name, ".pdf"), "got %q", name)
}

func TestRandomFilenameUnique(t *testing.T) {
	assert.NotEqual(t, RandomFilename("a.docx", ""), RandomFilename("a.docx", ""))
}
