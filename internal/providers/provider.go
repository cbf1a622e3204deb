// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package providers defines the replacement provider capability: given
// arbitrary text, produce a partial replacement map covering the PII spans
// found in it. Two backends conform: the regex entity detector and the
// generative model client. Callers depend only on this interface.
package providers

import (
	"anonymail/internal/replacement"
)

// Provider generates replacement mappings for PII found in text.
//
// The context label describes where the text came from ("PDF attachment",
// "email header: Subject"); it may inform prompting but never correctness.
// Empty input yields an empty map. Implementations must be reusable across
// many calls within one anonymization run so that aliasing state stays
// consistent for the whole message; they must not be shared across runs.
type Provider interface {
	Generate(text, context string) (replacement.Map, error)
	Name() string
}
