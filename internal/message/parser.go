// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"strings"
)

// Parse decodes a raw RFC 5322 message into a message tree. Failure here is
// the one fatal condition of the pipeline; nothing downstream can run
// without a decoded tree.
func Parse(raw []byte) (*Part, error) {
	head, body, err := splitHeaderBody(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	header, err := parseHeader(head)
	if err != nil {
		return nil, fmt.Errorf("decoding message header: %w", err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("decoding message header: empty header block")
	}
	part, err := buildPart(header, body)
	if err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	return part, nil
}

// splitHeaderBody cuts the message at the first blank line, accepting both
// CRLF and bare LF line endings. A leading blank line means the header
// section is empty, which multipart children may have.
func splitHeaderBody(raw []byte) (head, body []byte, err error) {
	if bytes.HasPrefix(raw, []byte("\r\n")) {
		return nil, raw[2:], nil
	}
	if bytes.HasPrefix(raw, []byte("\n")) {
		return nil, raw[1:], nil
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\n' {
			continue
		}
		rest := raw[i+1:]
		if bytes.HasPrefix(rest, []byte("\r\n")) {
			return raw[:i+1], rest[2:], nil
		}
		if bytes.HasPrefix(rest, []byte("\n")) {
			return raw[:i+1], rest[1:], nil
		}
	}
	// A headers-only message has no blank line.
	if len(raw) > 0 && bytes.Contains(raw, []byte(":")) {
		return raw, nil, nil
	}
	return nil, nil, fmt.Errorf("no header block found")
}

// parseHeader reads folded header fields, preserving order, spelling and
// duplicates.
func parseHeader(head []byte) (Header, error) {
	var h Header
	lines := splitLines(head)
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if len(h) == 0 {
				return nil, fmt.Errorf("continuation line before first field")
			}
			h[len(h)-1].Value += " " + strings.TrimSpace(line)
			continue
		}
		colon := strings.Index(line, ":")
		if colon <= 0 {
			return nil, fmt.Errorf("malformed field %q", strings.TrimSpace(line))
		}
		h.Add(strings.TrimSpace(line[:colon]), strings.TrimSpace(line[colon+1:]))
	}
	return h, nil
}

// splitLines splits on LF, dropping the LF and any preceding CR.
func splitLines(b []byte) []string {
	var lines []string
	for len(b) > 0 {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			lines = append(lines, strings.TrimSuffix(string(b), "\r"))
			break
		}
		lines = append(lines, strings.TrimSuffix(string(b[:i]), "\r"))
		b = b[i+1:]
	}
	return lines
}

func buildPart(header Header, body []byte) (*Part, error) {
	p := &Part{Header: header, MediaType: "text/plain", Params: map[string]string{}}

	if ct, ok := header.Get("Content-Type"); ok {
		mediaType, params, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("parsing Content-Type %q: %w", ct, err)
		}
		p.MediaType = strings.ToLower(mediaType)
		p.Params = params
	}

	if cd, ok := header.Get("Content-Disposition"); ok {
		disp, params, err := mime.ParseMediaType(cd)
		if err == nil {
			p.Disposition = strings.ToLower(disp)
			if fn, ok := params["filename"]; ok {
				p.Filename = decodeWord(fn)
			}
		}
	}
	if p.Filename == "" {
		if name, ok := p.Params["name"]; ok {
			p.Filename = decodeWord(name)
		}
	}
	if cid, ok := header.Get("Content-ID"); ok {
		p.ContentID = strings.Trim(cid, "<>")
	}

	if p.IsMultipart() {
		boundary := p.Params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart part without boundary")
		}
		preamble, rawParts, epilogue, err := splitMultipart(body, boundary)
		if err != nil {
			return nil, err
		}
		p.Preamble = preamble
		p.Epilogue = epilogue
		for i, rp := range rawParts {
			childHead, childBody, err := splitHeaderBody(rp)
			if err != nil {
				// A bodyless child is just headers.
				childHead, childBody = rp, nil
			}
			childHeader, err := parseHeader(childHead)
			if err != nil {
				return nil, fmt.Errorf("decoding part %d header: %w", i+1, err)
			}
			child, err := buildPart(childHeader, childBody)
			if err != nil {
				return nil, fmt.Errorf("decoding part %d: %w", i+1, err)
			}
			p.Children = append(p.Children, child)
		}
		return p, nil
	}

	decoded, err := decodeTransferEncoding(body, header)
	if err != nil {
		return nil, err
	}
	if p.MainType() == "text" {
		p.IsText = true
		p.Text = decodeCharset(decoded, p.Params["charset"])
	} else {
		p.Body = decoded
	}
	return p, nil
}

func decodeWord(s string) string {
	dec := new(mime.WordDecoder)
	out, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}

func decodeTransferEncoding(body []byte, header Header) ([]byte, error) {
	enc, _ := header.Get("Content-Transfer-Encoding")
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "base64":
		cleaned := bytes.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, body)
		out := make([]byte, base64.StdEncoding.DecodedLen(len(cleaned)))
		n, err := base64.StdEncoding.Decode(out, cleaned)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 payload: %w", err)
		}
		return out[:n], nil
	case "quoted-printable":
		out, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("decoding quoted-printable payload: %w", err)
		}
		return out, nil
	default:
		// 7bit, 8bit, binary or unset pass through.
		return body, nil
	}
}

// splitMultipart separates a multipart body into preamble, raw child parts
// and epilogue. The line break preceding a boundary delimiter belongs to
// the delimiter, not to the part content.
func splitMultipart(body []byte, boundary string) (preamble string, parts [][]byte, epilogue string, err error) {
	delim := "--" + boundary

	type segment struct{ buf bytes.Buffer }
	var (
		segments []*segment
		pre, epi bytes.Buffer
		state    = 0 // 0 preamble, 1 inside parts, 2 epilogue
	)

	rest := body
	for len(rest) > 0 {
		var line []byte
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line = rest[:i+1]
			rest = rest[i+1:]
		} else {
			line = rest
			rest = nil
		}

		trimmed := strings.TrimRight(string(line), "\r\n \t")
		switch {
		case trimmed == delim && state < 2:
			state = 1
			segments = append(segments, &segment{})
			continue
		case trimmed == delim+"--" && state == 1:
			state = 2
			continue
		}

		switch state {
		case 0:
			pre.Write(line)
		case 1:
			segments[len(segments)-1].buf.Write(line)
		case 2:
			epi.Write(line)
		}
	}

	if state == 0 {
		return "", nil, "", fmt.Errorf("boundary %q not found in multipart body", boundary)
	}

	for _, seg := range segments {
		parts = append(parts, trimTrailingEOL(seg.buf.Bytes()))
	}
	return strings.TrimRight(pre.String(), "\r\n"), parts, strings.TrimRight(epi.String(), "\r\n"), nil
}

func trimTrailingEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	b = bytes.TrimSuffix(b, []byte("\r"))
	return b
}
