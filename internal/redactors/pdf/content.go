// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// supersededStream records where a rewritten content stream's original bytes
// live in the input so they can be blanked out of the appended result.
type supersededStream struct {
	objNr  int
	offset int64
	length int
}

// applyMatches rewrites the document so that each match's original text is
// erased from the page content streams and its replacement drawn in place.
// The modified objects are appended as an incremental update, so everything
// else in the file, including unreferenced objects, the Info dict and the
// trailer ID, survives byte for byte. The superseded content stream bytes
// are blanked in the retained prefix so the erased text is not recoverable
// from the stale object.
func applyMatches(raw []byte, matchesByPage map[int][]pageMatch) ([]byte, error) {
	ctx, err := api.ReadContext(bytes.NewReader(raw), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("reading document structure: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("resolving page count: %w", err)
	}

	fonts := map[string]*types.IndirectRef{}
	var superseded []supersededStream

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		matches := matchesByPage[pageNr]
		if len(matches) == 0 {
			continue
		}
		if err := rewritePage(ctx, pageNr, matches, fonts, &superseded); err != nil {
			return nil, fmt.Errorf("rewriting page %d: %w", pageNr, err)
		}
	}

	ctx.Write.Increment = true
	ctx.Write.Offset = ctx.Read.FileSize
	// Readers reject a Prev chain that switches xref styles, so the
	// increment keeps the style of the original file.
	ctx.WriteXRefStream = ctx.Read.UsingXRefStreams
	ctx.WriteObjectStream = ctx.Read.UsingObjectStreams

	out := make([]byte, len(raw))
	copy(out, raw)
	// A stream shared by several pages is recorded once per rewrite; only
	// the first record carries the original region.
	blanked := map[int]bool{}
	for _, s := range superseded {
		if blanked[s.objNr] {
			continue
		}
		blanked[s.objNr] = true
		blankRegion(out, s)
	}

	buf := bytes.NewBuffer(out)
	if err := api.WriteIncrement(ctx, buf); err != nil {
		return nil, fmt.Errorf("serializing document: %w", err)
	}
	return buf.Bytes(), nil
}

// blankRegion overwrites a superseded stream's data bytes with spaces,
// leaving the file layout and every xref offset intact.
func blankRegion(out []byte, s supersededStream) {
	end := s.offset + int64(s.length)
	if s.offset < 0 || end > int64(len(out)) {
		return
	}
	for i := s.offset; i < end; i++ {
		out[i] = ' '
	}
}

func rewritePage(ctx *model.Context, pageNr int, matches []pageMatch, fonts map[string]*types.IndirectRef, superseded *[]supersededStream) error {
	pageDict, pageRef, inhPAttrs, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return err
	}
	if pageDict == nil || pageRef == nil {
		return fmt.Errorf("page dict missing")
	}

	originals := make([]string, len(matches))
	for i, m := range matches {
		originals[i] = m.Original
	}

	streamRefs, err := contentStreamRefs(ctx, pageDict)
	if err != nil {
		return err
	}
	if len(streamRefs) == 0 {
		return fmt.Errorf("page has no content stream")
	}

	overlay, err := overlayOps(ctx, pageDict, pageRef.ObjectNumber.Value(), inhPAttrs, matches, fonts)
	if err != nil {
		return err
	}

	for i, ref := range streamRefs {
		var appendix []byte
		if i == len(streamRefs)-1 {
			appendix = overlay
		}
		old, err := rewriteStream(ctx, ref, originals, appendix)
		if err != nil {
			return err
		}
		if old != nil {
			*superseded = append(*superseded, *old)
		}
	}
	return nil
}

// contentStreamRefs resolves the page's Contents entry to its stream
// references, handling both the single-stream and array forms.
func contentStreamRefs(ctx *model.Context, pageDict types.Dict) ([]types.IndirectRef, error) {
	obj, found := pageDict.Find("Contents")
	if !found {
		return nil, nil
	}

	if ref, ok := obj.(types.IndirectRef); ok {
		resolved, err := ctx.Dereference(ref)
		if err != nil {
			return nil, err
		}
		if arr, ok := resolved.(types.Array); ok {
			return refsFromArray(arr)
		}
		return []types.IndirectRef{ref}, nil
	}
	if arr, ok := obj.(types.Array); ok {
		return refsFromArray(arr)
	}
	return nil, fmt.Errorf("unsupported Contents entry %T", obj)
}

func refsFromArray(arr types.Array) ([]types.IndirectRef, error) {
	refs := make([]types.IndirectRef, 0, len(arr))
	for _, o := range arr {
		ref, ok := o.(types.IndirectRef)
		if !ok {
			return nil, fmt.Errorf("unsupported Contents element %T", o)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// rewriteStream decodes one content stream, blanks every occurrence of the
// originals inside its string tokens, appends the overlay ops and stores the
// re-encoded stream back into the cross reference table. It returns the
// location of the original stream data so the caller can blank it.
func rewriteStream(ctx *model.Context, ref types.IndirectRef, originals []string, appendix []byte) (*supersededStream, error) {
	sd, _, err := ctx.DereferenceStreamDict(ref)
	if err != nil {
		return nil, err
	}
	if sd == nil {
		return nil, fmt.Errorf("content stream %s unresolvable", ref)
	}
	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("decoding content stream: %w", err)
	}
	old := &supersededStream{
		objNr:  ref.ObjectNumber.Value(),
		offset: sd.StreamOffset,
		length: len(sd.Raw),
	}

	content := eraseInStrings(sd.Content, originals)
	if len(appendix) > 0 {
		content = append(content, '\n')
		content = append(content, appendix...)
	}
	sd.Content = content
	sd.Raw = nil
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("encoding content stream: %w", err)
	}
	sd.Dict.Update("Length", types.Integer(len(sd.Raw)))

	entry, ok := ctx.FindTableEntryLight(old.objNr)
	if !ok || entry == nil {
		return nil, fmt.Errorf("xref entry for %s missing", ref)
	}
	entry.Object = *sd
	ctx.Write.IncrementWithObjNr(old.objNr)
	return old, nil
}

// eraseInStrings walks the content stream and overwrites occurrences of the
// originals inside literal and hex string tokens with spaces, keeping every
// token's byte length unchanged so operand positions stay valid.
func eraseInStrings(content []byte, originals []string) []byte {
	out := make([]byte, len(content))
	copy(out, content)

	i := 0
	for i < len(out) {
		switch out[i] {
		case '(':
			end := literalStringEnd(out, i)
			eraseLiteral(out[i+1:end], originals)
			i = end + 1
		case '<':
			if i+1 < len(out) && out[i+1] == '<' {
				i += 2 // dict open, not a string
				continue
			}
			end := hexStringEnd(out, i)
			eraseHex(out[i+1:end], originals)
			i = end + 1
		case '%':
			for i < len(out) && out[i] != '\n' && out[i] != '\r' {
				i++
			}
		default:
			i++
		}
	}
	return out
}

// literalStringEnd returns the index of the closing paren of the literal
// string starting at open, honoring escapes and balanced inner parens.
func literalStringEnd(b []byte, open int) int {
	depth := 0
	for i := open; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(b) - 1
}

func hexStringEnd(b []byte, open int) int {
	for i := open + 1; i < len(b); i++ {
		if b[i] == '>' {
			return i
		}
	}
	return len(b) - 1
}

// eraseLiteral blanks occurrences of the originals in a literal string body.
// Matches are found on the raw bytes, which covers text stored without
// escape sequences; escaped spellings are left for the overlay fill to cover.
func eraseLiteral(body []byte, originals []string) {
	for _, orig := range originals {
		if orig == "" {
			continue
		}
		needle := []byte(orig)
		start := 0
		for {
			idx := bytes.Index(body[start:], needle)
			if idx < 0 {
				break
			}
			idx += start
			for j := idx; j < idx+len(needle); j++ {
				body[j] = ' '
			}
			start = idx + len(needle)
		}
	}
}

// eraseHex blanks occurrences of the originals in a hex string body by
// rewriting the matched character pairs to the hex code of a space.
func eraseHex(body []byte, originals []string) {
	compact := make([]byte, 0, len(body))
	pos := make([]int, 0, len(body)) // index into body of each hex digit
	for i, c := range body {
		if isHexDigit(c) {
			compact = append(compact, c)
			pos = append(pos, i)
		}
	}
	if len(compact) < 2 {
		return
	}
	if len(compact)%2 == 1 {
		compact = append(compact, '0') // trailing zero per spec
		pos = append(pos, -1)
	}

	decoded := make([]byte, hex.DecodedLen(len(compact)))
	if _, err := hex.Decode(decoded, compact); err != nil {
		return
	}

	for _, orig := range originals {
		if orig == "" {
			continue
		}
		needle := []byte(orig)
		start := 0
		for {
			idx := bytes.Index(decoded[start:], needle)
			if idx < 0 {
				break
			}
			idx += start
			for j := idx; j < idx+len(needle); j++ {
				decoded[j] = ' '
				hi, lo := pos[2*j], pos[2*j+1]
				if hi >= 0 {
					body[hi] = '2'
				}
				if lo >= 0 {
					body[lo] = '0'
				}
			}
			start = idx + len(needle)
		}
	}
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// overlayOps builds the drawing operations for a page: first every white
// fill as one batch, then every replacement text, so no fill can paint over
// an already drawn replacement. Fonts the text needs are registered in the
// page resources.
func overlayOps(ctx *model.Context, pageDict types.Dict, pageObjNr int, inhPAttrs *model.InheritedPageAttrs, matches []pageMatch, fonts map[string]*types.IndirectRef) ([]byte, error) {
	resDict, err := pageResources(ctx, pageDict, pageObjNr, inhPAttrs)
	if err != nil {
		return nil, err
	}

	var fills, texts bytes.Buffer
	for _, m := range matches {
		fmt.Fprintf(&fills, "q 1 1 1 rg %.2f %.2f %.2f %.2f re f Q\n",
			m.Box.X, m.Box.Y, m.Box.Width, m.Box.Height)

		if m.Replacement == "" {
			continue
		}
		baseFont := resolveFont(m.FontName)
		resName, err := ensureFontResource(ctx, resDict, baseFont, fonts)
		if err != nil {
			return nil, err
		}
		size := resolveSize(m)
		fmt.Fprintf(&texts, "q BT /%s %.2f Tf 0 0 0 rg %.2f %.2f Td (%s) Tj ET Q\n",
			resName, size, m.Box.X, m.Baseline, escapeLiteral(m.Replacement))
	}
	return append(fills.Bytes(), texts.Bytes()...), nil
}

// pageResources returns the page's live Resources dict and records its
// owning object for the incremental write. Inherited resources are cloned
// onto the page so the mutation stays within objects the increment rewrites.
func pageResources(ctx *model.Context, pageDict types.Dict, pageObjNr int, inhPAttrs *model.InheritedPageAttrs) (types.Dict, error) {
	if obj, found := pageDict.Find("Resources"); found {
		d, err := ctx.DereferenceDict(obj)
		if err != nil {
			return nil, err
		}
		if d != nil {
			if ref, ok := obj.(types.IndirectRef); ok {
				ctx.Write.IncrementWithObjNr(ref.ObjectNumber.Value())
			} else {
				ctx.Write.IncrementWithObjNr(pageObjNr)
			}
			return d, nil
		}
	}

	d := types.NewDict()
	if inhPAttrs != nil && inhPAttrs.Resources != nil {
		for k, v := range inhPAttrs.Resources {
			d.Update(k, v)
		}
	}
	pageDict.Update("Resources", d)
	ctx.Write.IncrementWithObjNr(pageObjNr)
	return d, nil
}

// ensureFontResource registers a standard Type1 font in the resources dict
// and returns its resource name. Fonts are shared across pages via the
// fonts cache.
func ensureFontResource(ctx *model.Context, resDict types.Dict, baseFont string, fonts map[string]*types.IndirectRef) (string, error) {
	fontRef, ok := fonts[baseFont]
	if !ok {
		d := types.Dict(map[string]types.Object{
			"Type":     types.Name("Font"),
			"Subtype":  types.Name("Type1"),
			"BaseFont": types.Name(baseFont),
			"Encoding": types.Name("WinAnsiEncoding"),
		})
		ref, err := ctx.IndRefForNewObject(d)
		if err != nil {
			return "", err
		}
		ctx.Write.IncrementWithObjNr(ref.ObjectNumber.Value())
		fontRef = ref
		fonts[baseFont] = ref
	}

	var fontDict types.Dict
	if obj, found := resDict.Find("Font"); found {
		d, err := ctx.DereferenceDict(obj)
		if err != nil {
			return "", err
		}
		if ref, ok := obj.(types.IndirectRef); ok && d != nil {
			ctx.Write.IncrementWithObjNr(ref.ObjectNumber.Value())
		}
		fontDict = d
	}
	if fontDict == nil {
		fontDict = types.NewDict()
		resDict.Update("Font", fontDict)
	}

	name := resourceName(fontDict, baseFont, *fontRef)
	fontDict.Update(name, *fontRef)
	return name, nil
}

// resourceName picks a /Font key that does not collide with existing
// resources, reusing the key when this font is already registered.
func resourceName(fontDict types.Dict, baseFont string, fontRef types.IndirectRef) string {
	base := "Fx" + strings.ReplaceAll(baseFont, "-", "")
	if len(base) > 12 {
		base = base[:12]
	}
	name := base
	for i := 0; ; i++ {
		existing, found := fontDict.Find(name)
		if !found {
			return name
		}
		if ref, ok := existing.(types.IndirectRef); ok && ref == fontRef {
			return name
		}
		name = fmt.Sprintf("%s%d", base, i)
	}
}

func escapeLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
