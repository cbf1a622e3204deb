// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"fmt"
	"strings"

	"anonymail/internal/metadata"
	"anonymail/internal/observability"
	"anonymail/internal/providers"
	"anonymail/internal/redactors"
	"anonymail/internal/redactors/docx"
	"anonymail/internal/redactors/pdf"
	"anonymail/internal/redactors/sheet"
	"anonymail/internal/replacement"
)

// Anonymizer runs the two-pass pipeline: extract all text from the tree,
// call the provider once for the whole message, then rebuild the tree
// applying the resulting map everywhere. The single global provider call is
// what keeps replacements consistent across parts.
type Anonymizer struct {
	provider providers.Provider
	observer *observability.Observer
	pdf      *pdf.Redactor

	// MapTransform, when set, rewrites the generated map after the
	// provider call and before the rebuild pass. Used to swap tag values
	// for synthetic ones so the substitution stays consistent across all
	// part types.
	MapTransform func(replacement.Map) replacement.Map
}

func NewAnonymizer(provider providers.Provider, observer *observability.Observer) *Anonymizer {
	return &Anonymizer{
		provider: provider,
		observer: observer,
		pdf:      pdf.NewRedactor(observer),
	}
}

// Anonymize processes one raw message and returns the anonymized wire
// bytes along with the map that was applied. An empty returned map means
// no PII was detected or the provider degraded; callers should surface
// that to the user.
func (a *Anonymizer) Anonymize(raw []byte) ([]byte, replacement.Map, error) {
	done := a.observer.StartTiming("walker", "anonymize", "")

	root, err := Parse(raw)
	if err != nil {
		done(false, nil)
		return nil, nil, err
	}

	var b strings.Builder
	a.extract(root, &b)
	text := b.String()

	m := replacement.Map{}
	if strings.TrimSpace(text) != "" {
		generated, err := a.provider.Generate(text, "email message")
		if err != nil {
			a.observer.Log(observability.Event{
				Component: "walker",
				Operation: "provider_call",
				Success:   false,
				Metadata:  map[string]interface{}{"error": err.Error()},
			})
		} else {
			m = generated.Normalize()
		}
	}
	if a.MapTransform != nil {
		m = a.MapTransform(m).Normalize()
	}

	rebuilt := a.rebuild(root, m)
	out, err := Serialize(rebuilt)
	done(err == nil, map[string]interface{}{"map_entries": len(m)})
	if err != nil {
		return nil, nil, fmt.Errorf("serializing anonymized message: %w", err)
	}
	return out, m, nil
}

// extract walks the tree depth-first appending header lines, text payloads
// and extractable attachment text to b.
func (a *Anonymizer) extract(p *Part, b *strings.Builder) {
	for _, f := range p.Header {
		fmt.Fprintf(b, "%s: %s\n", f.Name, f.Value)
	}

	if p.IsMultipart() {
		for _, child := range p.Children {
			a.extract(child, b)
		}
		return
	}

	if p.IsText {
		b.WriteString(p.Text)
		b.WriteString("\n")
		return
	}

	switch {
	case isPDF(p):
		text, err := pdf.ExtractText(p.Body)
		if err != nil {
			a.logExtractFailure("pdf", p.Filename, err)
			fmt.Fprintf(b, "Attachment: %s\n", p.Filename)
			return
		}
		b.WriteString(text)
	case isDocx(p):
		text, err := docx.ExtractText(p.Body)
		if err != nil {
			a.logExtractFailure("docx", p.Filename, err)
			fmt.Fprintf(b, "Attachment: %s\n", p.Filename)
			return
		}
		b.WriteString(text)
	case isSheet(p):
		text, err := sheet.ExtractText(p.Body)
		if err != nil {
			a.logExtractFailure("sheet", p.Filename, err)
			fmt.Fprintf(b, "Attachment: %s\n", p.Filename)
			return
		}
		b.WriteString(text)
	case p.MainType() == "image":
		if text := metadata.ExtractText(p.Body); text != "" {
			b.WriteString(text)
		} else if p.Filename != "" {
			fmt.Fprintf(b, "Attachment: %s\n", p.Filename)
		}
	default:
		if p.Filename != "" {
			fmt.Fprintf(b, "Attachment: %s\n", p.Filename)
		}
	}
}

func (a *Anonymizer) logExtractFailure(format, filename string, err error) {
	a.observer.Log(observability.Event{
		Component: "walker",
		Operation: "extract_" + format,
		Target:    filename,
		Success:   false,
		Metadata:  map[string]interface{}{"error": err.Error()},
	})
}

// rebuild clones the tree applying the map. The original tree is never
// mutated.
func (a *Anonymizer) rebuild(p *Part, m replacement.Map) *Part {
	out := &Part{
		MediaType:   p.MediaType,
		Params:      copyParams(p.Params),
		Disposition: p.Disposition,
		Filename:    p.Filename,
		ContentID:   p.ContentID,
		IsText:      p.IsText,
	}
	out.Header = rebuildHeader(p.Header, m)

	if p.IsMultipart() {
		out.Preamble = replacement.Apply(p.Preamble, m)
		out.Epilogue = replacement.Apply(p.Epilogue, m)
		delete(out.Params, "boundary")
		for _, child := range p.Children {
			out.Children = append(out.Children, a.rebuild(child, m))
		}
		return out
	}

	switch {
	case p.IsText:
		out.Text = replacement.Apply(p.Text, m)
		if p.Filename != "" {
			out.Filename = redactors.RandomFilename(p.Filename, ".txt")
		}
	case isPDF(p):
		a.rewriteLeaf(out, p, ".pdf", func() ([]byte, error) { return a.pdf.Redact(p.Body, m) })
	case isDocx(p):
		a.rewriteLeaf(out, p, ".docx", func() ([]byte, error) { return docx.Rewrite(p.Body, m) })
	case isSheet(p):
		a.rewriteLeaf(out, p, ".xlsx", func() ([]byte, error) { return sheet.Rewrite(p.Body, m) })
	default:
		out.Body = p.Body
		if p.Filename != "" {
			out.Filename = replacement.Apply(p.Filename, m)
		}
	}
	return out
}

// rewriteLeaf runs a format rewriter and degrades to pass-through on
// failure. Either way the attachment gets an opaque filename.
func (a *Anonymizer) rewriteLeaf(out, in *Part, fallbackExt string, rewrite func() ([]byte, error)) {
	body, err := rewrite()
	if err != nil {
		a.observer.Log(observability.Event{
			Component: "walker",
			Operation: "rewrite_attachment",
			Target:    in.Filename,
			Success:   false,
			Metadata:  map[string]interface{}{"error": err.Error()},
		})
		body = in.Body
	}
	out.Body = body
	out.Filename = redactors.RandomFilename(in.Filename, fallbackExt)
}

// rebuildHeader applies the map to header values, leaving the derived
// Content-Type family untouched for the serializer to regenerate.
func rebuildHeader(h Header, m replacement.Map) Header {
	out := make(Header, 0, len(h))
	for _, f := range h {
		switch strings.ToLower(f.Name) {
		case "content-type", "content-transfer-encoding", "content-disposition":
			out = append(out, f)
		default:
			out = append(out, HeaderField{Name: f.Name, Value: replacement.Apply(f.Value, m)})
		}
	}
	return out
}

func copyParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func isPDF(p *Part) bool {
	return p.MediaType == "application/pdf" || p.Extension() == ".pdf"
}

func isDocx(p *Part) bool {
	return strings.Contains(p.MediaType, "wordprocessingml") || p.Extension() == ".docx"
}

func isSheet(p *Part) bool {
	return strings.Contains(p.MediaType, "spreadsheetml") || p.Extension() == ".xlsx"
}
