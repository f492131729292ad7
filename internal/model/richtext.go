package model

// RichtextChunk is the leaf payload of the rich-text rope: either a run of
// interned text or a zero-width style anchor referencing a shared StyleOp.
type RichtextChunk struct {
	IsStyle bool

	// Text fields (IsStyle == false).
	Slice      SliceRange
	UnicodeLen uint32
	UTF16Len   uint32

	// Style fields (IsStyle == true).
	Style  *StyleOp
	Anchor AnchorType
}

// NewTextChunk builds a text-run chunk.
func NewTextChunk(slice SliceRange, unicodeLen, utf16Len uint32) RichtextChunk {
	return RichtextChunk{Slice: slice, UnicodeLen: unicodeLen, UTF16Len: utf16Len}
}

// NewStyleChunk builds a zero-width style-anchor chunk.
func NewStyleChunk(style *StyleOp, anchor AnchorType) RichtextChunk {
	return RichtextChunk{IsStyle: true, Style: style, Anchor: anchor}
}

// EntityLen returns how many entity-index slots this chunk occupies: one
// per codepoint for text, exactly one for a (zero-width) style anchor.
func (c RichtextChunk) EntityLen() uint32 {
	if c.IsStyle {
		return 1
	}
	return c.UnicodeLen
}

// SplitLeaf cuts a text chunk into two at entity offset (== Unicode
// offset for text). UTF16Len is split proportionally to the Unicode
// split point: exact for BMP-only text, a documented approximation when
// the run straddles a surrogate pair, since the chunk has no arena handle
// to re-scan the original bytes. richtext.Rope's insert and delete paths
// split chunks mid-run through this method. Splitting a style-anchor
// chunk is a caller bug (its entity length is 1, so no offset in (0,1)
// can exist) and panics.
func (c RichtextChunk) SplitLeaf(offset uint32) (RichtextChunk, RichtextChunk) {
	if c.IsStyle {
		panic("model: cannot split a zero-width style anchor chunk")
	}
	leftSlice, rightSlice := c.Slice.SplitLeaf(offset)
	var leftUTF16 uint32
	if c.UnicodeLen > 0 {
		leftUTF16 = uint32(uint64(c.UTF16Len) * uint64(offset) / uint64(c.UnicodeLen))
	}
	left := RichtextChunk{Slice: leftSlice, UnicodeLen: offset, UTF16Len: leftUTF16}
	right := RichtextChunk{
		Slice:      rightSlice,
		UnicodeLen: c.UnicodeLen - offset,
		UTF16Len:   c.UTF16Len - leftUTF16,
	}
	return left, right
}
