package richtext

import (
	"ssw-text-crdt/internal/apperrors"
	"ssw-text-crdt/internal/model"
)

// CompactStyleOp is the wire-level encoding of one style anchor, with
// peer and key resolved to small integer indices by the caller's own
// interning tables rather than stored inline (spec.md §6).
type CompactStyleOp struct {
	PeerIdx   uint32
	KeyIdx    uint32
	Counter   uint32
	Lamport   uint32
	StyleInfo model.StyleInfo
}

// EncodedRichtextState is the bit-level snapshot contract for a rich-text
// rope: Len alternates text-run/style-run lengths starting with text;
// Text holds one (start,end) Unicode range per text chunk, consumed in
// order as each text run is unpacked; Styles/IsStyleStart hold one entry
// per style anchor, consumed in order as each style run is unpacked.
type EncodedRichtextState struct {
	Len          []uint32
	Text         [][2]uint32
	Styles       []CompactStyleOp
	IsStyleStart []byte
}

// EncodeSnapshot walks the rope's chunks and serializes them to
// EncodedRichtextState, resolving each style anchor's peer and key
// through the caller-supplied interning callbacks.
func (r *Rope) EncodeSnapshot(recordPeer func(model.PeerID) uint32, recordKey func(string) uint32) EncodedRichtextState {
	var enc EncodedRichtextState
	var curLen uint32
	curIsStyle := false
	first := true

	flushRun := func() {
		enc.Len = append(enc.Len, curLen)
	}

	r.tree.Iterate(func(c model.RichtextChunk) bool {
		if first {
			if c.IsStyle {
				// First run is style: emit a zero-length leading text run
				// so Len still starts with a text entry.
				enc.Len = append(enc.Len, 0)
			}
			curIsStyle = c.IsStyle
			curLen = 0
			first = false
		} else if c.IsStyle != curIsStyle {
			flushRun()
			curIsStyle = c.IsStyle
			curLen = 0
		}

		if c.IsStyle {
			curLen++
			bitIdx := len(enc.Styles)
			enc.Styles = append(enc.Styles, CompactStyleOp{
				PeerIdx:   recordPeer(c.Style.Peer),
				KeyIdx:    recordKey(c.Style.Key),
				Counter:   uint32(c.Style.Counter),
				Lamport:   uint32(c.Style.Lamport),
				StyleInfo: c.Style.Info,
			})
			byteIdx := bitIdx / 8
			for len(enc.IsStyleStart) <= byteIdx {
				enc.IsStyleStart = append(enc.IsStyleStart, 0)
			}
			if c.Anchor == model.AnchorStart {
				enc.IsStyleStart[byteIdx] |= 1 << uint(bitIdx%8)
			}
		} else {
			curLen += c.UnicodeLen
			enc.Text = append(enc.Text, [2]uint32{c.Slice.Start, c.Slice.End})
		}
		return true
	})
	if !first {
		flushRun()
	}
	return enc
}

// DecodeSnapshot reverses EncodeSnapshot, reconstructing chunks from the
// run-length index and then coalescing each Start/End anchor pair onto a
// single shared *StyleOp, matched by (peer, counter) identity: decoding
// builds one StyleOp literal per CompactStyleOp entry, so without this
// fixup pass the Start and End anchors of the same span would end up
// pointing at two distinct (if field-identical) objects.
func (r *Rope) DecodeSnapshot(enc EncodedRichtextState, peerOf func(uint32) model.PeerID, keyOf func(uint32) string) error {
	chunks := make([]model.RichtextChunk, 0, len(enc.Text)+len(enc.Styles))
	textIdx, styleIdx := 0, 0
	isStyleRun := false

	for _, runLen := range enc.Len {
		var consumed uint32
		for consumed < runLen {
			if isStyleRun {
				if styleIdx >= len(enc.Styles) {
					return apperrors.New(apperrors.CodeInvalidSnapshot, "richtext", "DecodeSnapshot",
						"style run length exceeds available style entries")
				}
				cso := enc.Styles[styleIdx]
				anchor := model.AnchorEnd
				byteIdx := styleIdx / 8
				bit := byte(1) << uint(styleIdx%8)
				if byteIdx < len(enc.IsStyleStart) && enc.IsStyleStart[byteIdx]&bit != 0 {
					anchor = model.AnchorStart
				}
				style := &model.StyleOp{
					Peer:    peerOf(cso.PeerIdx),
					Counter: model.Counter(cso.Counter),
					Lamport: model.Lamport(cso.Lamport),
					Key:     keyOf(cso.KeyIdx),
					Info:    cso.StyleInfo,
				}
				chunks = append(chunks, model.NewStyleChunk(style, anchor))
				styleIdx++
				consumed++
			} else {
				if textIdx >= len(enc.Text) {
					return apperrors.New(apperrors.CodeInvalidSnapshot, "richtext", "DecodeSnapshot",
						"text run length exceeds available text entries")
				}
				t := enc.Text[textIdx]
				sr := model.SliceRange{Start: t[0], End: t[1]}
				chunks = append(chunks, model.NewTextChunk(sr, sr.Len(), r.a.UTF16Len(sr)))
				consumed += sr.Len()
				textIdx++
			}
		}
		isStyleRun = !isStyleRun
	}

	fixupStyleBoundsByIdentity(chunks)
	r.tree.Rebuild(chunks)
	return nil
}

// fixupStyleBoundsByIdentity resolves spec.md's Open Question (c):
// style-bound detection on load is a post-pass matching Start/End anchors
// by StyleOp identity, coalescing both onto whichever pointer was built
// first.
func fixupStyleBoundsByIdentity(chunks []model.RichtextChunk) {
	seen := make(map[model.ID]*model.StyleOp)
	for i := range chunks {
		if !chunks[i].IsStyle {
			continue
		}
		id := chunks[i].Style.ID()
		if canonical, ok := seen[id]; ok {
			chunks[i].Style = canonical
		} else {
			seen[id] = chunks[i].Style
		}
	}
}
