// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"strings"
)

// Serialize writes the tree back to wire format. Boundaries, transfer
// encodings and the Content-Type family of headers are generated fresh;
// every other header is written in its original order.
func Serialize(root *Part) ([]byte, error) {
	if root.IsMultipart() {
		if _, ok := root.Header.Get("MIME-Version"); !ok {
			root.Header.Add("MIME-Version", "1.0")
		}
	}
	var b bytes.Buffer
	if err := writePart(&b, root); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func writePart(b *bytes.Buffer, p *Part) error {
	boundary := ""
	if p.IsMultipart() {
		boundary = newBoundary()
	}

	body, derived, err := encodeBody(p, boundary)
	if err != nil {
		return err
	}

	writeHeader(b, p.Header, derived)
	b.WriteString("\r\n")
	b.Write(body)
	return nil
}

// derivedField is a regenerated header occupying its original position when
// the input carried one, appended otherwise.
type derivedField struct {
	Name  string
	Value string
}

// writeHeader emits the ordered header, swapping in regenerated values for
// the derived fields and dropping stale duplicates of them.
func writeHeader(b *bytes.Buffer, h Header, derived []derivedField) {
	value := func(name string) (string, bool) {
		for _, d := range derived {
			if strings.EqualFold(d.Name, name) {
				return d.Value, true
			}
		}
		return "", false
	}
	managed := func(name string) bool {
		switch strings.ToLower(name) {
		case "content-type", "content-transfer-encoding", "content-disposition":
			return true
		}
		return false
	}

	emitted := map[string]bool{}
	for _, f := range h {
		if managed(f.Name) {
			key := strings.ToLower(f.Name)
			if v, ok := value(f.Name); ok && !emitted[key] {
				fmt.Fprintf(b, "%s: %s\r\n", f.Name, v)
				emitted[key] = true
			}
			continue
		}
		fmt.Fprintf(b, "%s: %s\r\n", f.Name, f.Value)
	}
	for _, d := range derived {
		if !emitted[strings.ToLower(d.Name)] {
			fmt.Fprintf(b, "%s: %s\r\n", d.Name, d.Value)
		}
	}
}

func encodeBody(p *Part, boundary string) ([]byte, []derivedField, error) {
	if p.IsMultipart() {
		return encodeMultipart(p, boundary)
	}
	if p.IsText {
		return encodeTextLeaf(p)
	}
	return encodeBinaryLeaf(p)
}

func encodeMultipart(p *Part, boundary string) ([]byte, []derivedField, error) {
	var b bytes.Buffer
	if p.Preamble != "" {
		b.WriteString(p.Preamble)
		b.WriteString("\r\n")
	}
	for _, child := range p.Children {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		if err := writePart(&b, child); err != nil {
			return nil, nil, err
		}
		if !bytes.HasSuffix(b.Bytes(), []byte("\r\n")) {
			b.WriteString("\r\n")
		}
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	if p.Epilogue != "" {
		b.WriteString(p.Epilogue)
		b.WriteString("\r\n")
	}

	// Non-boundary params (e.g. type on multipart/related) carry over.
	params := map[string]string{"boundary": boundary}
	for k, v := range p.Params {
		if !strings.EqualFold(k, "boundary") {
			params[k] = v
		}
	}
	ct := mime.FormatMediaType(p.MediaType, params)
	return b.Bytes(), []derivedField{{"Content-Type", ct}}, nil
}

func encodeTextLeaf(p *Part) ([]byte, []derivedField, error) {
	charset := p.Charset()
	raw, ok := encodeCharset(p.Text, charset)
	if !ok {
		charset = "utf-8"
		raw = []byte(p.Text)
	}
	if strings.EqualFold(charset, "us-ascii") && !isASCII(raw) {
		charset = "utf-8"
	}

	var b bytes.Buffer
	w := quotedprintable.NewWriter(&b)
	if _, err := w.Write(raw); err != nil {
		return nil, nil, fmt.Errorf("encoding text part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, nil, fmt.Errorf("encoding text part: %w", err)
	}

	params := map[string]string{"charset": charset}
	derived := []derivedField{
		{"Content-Type", mime.FormatMediaType(p.MediaType, params)},
		{"Content-Transfer-Encoding", "quoted-printable"},
	}
	derived = append(derived, dispositionField(p)...)
	return b.Bytes(), derived, nil
}

func encodeBinaryLeaf(p *Part) ([]byte, []derivedField, error) {
	encoded := base64.StdEncoding.EncodeToString(p.Body)

	var b bytes.Buffer
	for len(encoded) > 0 {
		n := 76
		if n > len(encoded) {
			n = len(encoded)
		}
		b.WriteString(encoded[:n])
		b.WriteString("\r\n")
		encoded = encoded[n:]
	}

	params := map[string]string{}
	if p.Filename != "" {
		params["name"] = p.Filename
	}
	derived := []derivedField{
		{"Content-Type", mime.FormatMediaType(p.MediaType, params)},
		{"Content-Transfer-Encoding", "base64"},
	}
	derived = append(derived, dispositionField(p)...)
	return b.Bytes(), derived, nil
}

func dispositionField(p *Part) []derivedField {
	if p.Disposition == "" && p.Filename == "" {
		return nil
	}
	disp := p.Disposition
	if disp == "" {
		disp = "attachment"
	}
	params := map[string]string{}
	if p.Filename != "" {
		params["filename"] = p.Filename
	}
	return []derivedField{{"Content-Disposition", mime.FormatMediaType(disp, params)}}
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c > 0x7f {
			return false
		}
	}
	return true
}

func newBoundary() string {
	var buf [12]byte
	rand.Read(buf[:])
	return "=_" + hex.EncodeToString(buf[:])
}
