// Package richtext implements the rich-text rope: a balanced tree of
// RichtextChunk leaves addressing Unicode, UTF-16, and entity-index
// position simultaneously (spec.md §4.3).
package richtext

import (
	"strings"

	"ssw-text-crdt/internal/apperrors"
	"ssw-text-crdt/internal/arena"
	"ssw-text-crdt/internal/crdtlog"
	"ssw-text-crdt/internal/model"
	"ssw-text-crdt/internal/rope"
)

// Rope is the rich-text rendered state. Structurally it is split/inserted
// along the entity dimension (text codepoints plus zero-width style
// anchors, each counting as one slot); Unicode and UTF-16 position are
// reached only via Seek, never used to drive a structural split.
type Rope struct {
	tree *rope.Tree[model.RichtextChunk]
	a    *arena.SharedArena
	log  *crdtlog.Logger
}

// NewRope builds an empty rich-text rope backed by a.
func NewRope(a *arena.SharedArena) *Rope {
	return &Rope{
		tree: rope.New[model.RichtextChunk](model.DimEntity),
		a:    a,
		log:  crdtlog.New("richtext", nil),
	}
}

// Len returns the rope's entity length.
func (r *Rope) Len() uint32 { return r.tree.Len() }

func (r *Rope) checkBounds(component, op string, i uint32) {
	if i > r.Len() {
		err := apperrors.NewFatal(apperrors.CodeIndexOutOfRange, component, op, "entity index out of range").
			WithMetadata("index", i).WithMetadata("len", r.Len())
		r.log.FatalError(err)
		panic(err)
	}
}

// InsertAtEntityIndex interns str into the arena and inserts it as a text
// chunk at entity index i.
func (r *Rope) InsertAtEntityIndex(i uint32, str string) model.RichtextChunk {
	r.checkBounds("richtext", "InsertAtEntityIndex", i)
	view, _ := r.a.AllocStrWithSlice(str)
	utf16 := r.a.UTF16Len(view.Range)
	chunk := model.NewTextChunk(view.Range, view.Range.Len(), utf16)
	r.tree.InsertAt(i, chunk)
	return chunk
}

// InsertElemAtEntityIndex inserts an already-built chunk (typically a
// style anchor) at entity index i.
func (r *Rope) InsertElemAtEntityIndex(i uint32, chunk model.RichtextChunk) {
	r.checkBounds("richtext", "InsertElemAtEntityIndex", i)
	r.tree.InsertAt(i, chunk)
}

// DrainByEntityIndex removes [i, i+length) and returns the removed chunks
// in order, for the caller's undo stack.
func (r *Rope) DrainByEntityIndex(i, length uint32) []model.RichtextChunk {
	r.checkBounds("richtext", "DrainByEntityIndex", i+length)
	return r.tree.DeleteRange(i, i+length)
}

// GetEntityIndexForTextInsertPos translates a user-facing position
// measured along dim (model.DimUnicode or model.DimUTF16) into an entity
// index, then adjusts for any style anchors sitting exactly at that
// boundary: by default new text lands outside the surrounding anchors,
// unless the anchor's info-flags say otherwise.
func (r *Rope) GetEntityIndexForTextInsertPos(pos uint32, dim model.Dimension) uint32 {
	seekRes := r.tree.Seek(dim, pos)
	if !seekRes.Found {
		return r.Len()
	}

	var entityOffsetInLeaf uint32
	switch {
	case seekRes.Leaf.IsStyle:
		entityOffsetInLeaf = 0
	default:
		unicodeLen := seekRes.Leaf.UnicodeLen
		if unicodeLen == 0 {
			entityOffsetInLeaf = 0
		} else if seekRes.Leaf.UTF16Len == unicodeLen {
			// Pure-BMP run: Unicode and UTF-16 offsets coincide.
			entityOffsetInLeaf = seekRes.OffsetInLeaf
		} else if seekRes.Leaf.UTF16Len > 0 {
			entityOffsetInLeaf = uint32(uint64(seekRes.OffsetInLeaf) * uint64(unicodeLen) / uint64(seekRes.Leaf.UTF16Len))
		}
	}

	idx := seekRes.Before.Entity + entityOffsetInLeaf
	if entityOffsetInLeaf != 0 {
		return idx
	}
	return r.skipBoundaryAnchors(idx)
}

// skipBoundaryAnchors walks backward over the zero-width style anchors
// immediately preceding idx, honoring each one's expand flags. The
// default is to land outside surrounding anchors: a preceding Start
// anchor without ExpandsBefore is stepped over backward (the insertion
// point moves to before it, staying outside the style it opens), and a
// preceding End anchor with ExpandsAfter is stepped over backward (the
// insertion point moves to before it, staying inside the style it
// closes). Any other case stops the walk where idx already is.
func (r *Rope) skipBoundaryAnchors(idx uint32) uint32 {
	for idx > 0 {
		res := r.tree.Seek(model.DimEntity, idx-1)
		if !res.Found || !res.Leaf.IsStyle {
			return idx
		}
		var moveBack bool
		if res.Leaf.Anchor == model.AnchorStart {
			moveBack = !res.Leaf.Style.Info.ExpandsBefore()
		} else {
			moveBack = res.Leaf.Style.Info.ExpandsAfter()
		}
		if !moveBack {
			return idx
		}
		idx--
	}
	return idx
}

// MarkWithEntityIndex brackets [start, end) with a Start anchor at start
// and an End anchor at end, accounting for the shift the Start insertion
// causes to everything after it.
func (r *Rope) MarkWithEntityIndex(start, end uint32, style *model.StyleOp) {
	r.InsertElemAtEntityIndex(start, model.NewStyleChunk(style, model.AnchorStart))
	r.InsertElemAtEntityIndex(end+1, model.NewStyleChunk(style, model.AnchorEnd))
}

// AnnotateStyleRange records that an End anchor arrived after its Start:
// since every chunk inside the enclosed span carries no per-leaf style
// set in this model (a span is defined purely by its bracketing anchor
// pair, located by shared StyleOp identity), there is nothing to mutate
// here beyond confirming the pairing exists. Kept as a named operation so
// callers that learn of a retroactive End don't need special-case logic.
func (r *Rope) AnnotateStyleRange(start, endInclusive uint32, style *model.StyleOp) {
	r.log.WithFields(map[string]interface{}{
		"start": start, "end_inclusive": endInclusive, "style_key": style.Key,
	}, "style range annotated retroactively")
}

// IterChunk calls f with every chunk in order, stopping early if f
// returns false.
func (r *Rope) IterChunk(f func(model.RichtextChunk) bool) {
	r.tree.Iterate(f)
}

// GetValue concatenates only the text chunks, skipping zero-width style
// anchors, refusing to materialize any Unknown (garbage-collected) slice.
func (r *Rope) GetValue() string {
	var b strings.Builder
	r.tree.Iterate(func(c model.RichtextChunk) bool {
		if c.IsStyle {
			return true
		}
		if c.Slice.IsUnknown() {
			err := apperrors.NewFatal(apperrors.CodeUnknownSlice, "richtext", "GetValue",
				"attempted to materialize a garbage-collected slice range")
			r.log.FatalError(err)
			panic(err)
		}
		b.WriteString(r.a.SliceStrByUnicode(c.Slice))
		return true
	})
	return b.String()
}
