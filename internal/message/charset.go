// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

func isUTF8Compatible(name string) bool {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8", "us-ascii", "ascii", "ansi_x3.4-1968":
		return true
	}
	return false
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.MIME.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unknown charset %q", name)
	}
	return enc, nil
}

// decodeCharset converts body bytes in the named charset to UTF-8. Unknown
// charsets fall back to interpreting the bytes as UTF-8 so a mislabeled
// part still flows through the pipeline.
func decodeCharset(b []byte, name string) string {
	if isUTF8Compatible(name) {
		return string(b)
	}
	enc, err := lookupEncoding(name)
	if err != nil {
		return string(b)
	}
	decoded, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(decoded)
}

// encodeCharset converts UTF-8 text back to the named charset. When the
// text no longer fits the original charset the UTF-8 bytes are returned
// and the caller should relabel the part.
func encodeCharset(s string, name string) ([]byte, bool) {
	if isUTF8Compatible(name) {
		return []byte(s), true
	}
	enc, err := lookupEncoding(name)
	if err != nil {
		return []byte(s), false
	}
	encoded, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s), false
	}
	return encoded, true
}
