package model

// SliceRange is a half-open interval [Start, End) of Unicode codepoints
// into the shared string arena. Immutable once allocated: the arena is
// append-only, so a SliceRange returned once stays valid for the life of
// the arena.
type SliceRange struct {
	Start uint32
	End   uint32
}

// Len returns the number of Unicode codepoints the range covers.
func (r SliceRange) Len() uint32 { return r.End - r.Start }

// unknownSliceRangeMarker is an out-of-band sentinel: a range whose Start
// equals this value denotes a garbage-collected placeholder of length
// End-Start with no backing text. It can never collide with a real arena
// offset because the arena can't grow past it in practice; allocation is
// not checked against it.
const unknownSliceRangeMarker = ^uint32(0) - (1 << 31)

// UnknownSliceRange builds a placeholder range of the given length,
// standing in for text the arena has garbage-collected.
func UnknownSliceRange(length uint32) SliceRange {
	return SliceRange{Start: unknownSliceRangeMarker, End: unknownSliceRangeMarker + length}
}

// IsUnknown reports whether r is a GC placeholder rather than real text.
func (r SliceRange) IsUnknown() bool {
	return r.Start == unknownSliceRangeMarker
}

// SplitLeaf cuts r into [Start, Start+offset) and [Start+offset, End),
// satisfying rope.Splittable. Range bounds are plain Unicode offsets (or,
// for an Unknown placeholder, offsets into the marker's encoding), so the
// split is exact arithmetic with no text to consult.
func (r SliceRange) SplitLeaf(offset uint32) (SliceRange, SliceRange) {
	mid := r.Start + offset
	return SliceRange{Start: r.Start, End: mid}, SliceRange{Start: mid, End: r.End}
}

// AnchorType marks whether a style chunk opens or closes its span.
type AnchorType uint8

const (
	AnchorStart AnchorType = iota
	AnchorEnd
)

// StyleInfo packs the opaque behavioral flags a StyleOp carries: whether
// text inserted exactly at the anchor is inside or outside the style
// (Expand), and whether the style applies expansively across concurrent
// insertions. These bits are meaningless to the rope; only the caller
// constructing the StyleOp sets them.
type StyleInfo uint8

const (
	// StyleInfoExpandBefore: text inserted at the Start anchor's position
	// is considered inside the style.
	StyleInfoExpandBefore StyleInfo = 1 << iota
	// StyleInfoExpandAfter: text inserted at the End anchor's position is
	// considered inside the style.
	StyleInfoExpandAfter
)

// ExpandsBefore reports whether inserts exactly at the start boundary are
// absorbed into the style.
func (f StyleInfo) ExpandsBefore() bool { return f&StyleInfoExpandBefore != 0 }

// ExpandsAfter reports whether inserts exactly at the end boundary are
// absorbed into the style.
func (f StyleInfo) ExpandsAfter() bool { return f&StyleInfoExpandAfter != 0 }

// StyleOp is one style application, shared by reference between the Start
// and End anchor chunks that bound it in the rich-text rope.
type StyleOp struct {
	Peer    PeerID
	Counter Counter
	Lamport Lamport
	Key     string
	Info    StyleInfo
}

// ID returns the (peer, counter) identity used to pair anchors on reload.
func (s *StyleOp) ID() ID { return ID{Peer: s.Peer, Counter: s.Counter} }

// OpContentKind discriminates the payload carried by an Op/RawOp.
type OpContentKind uint8

const (
	OpInsertText OpContentKind = iota
	OpDelete
	OpStyleStart
	OpStyleEnd
	OpMapSet
)

// InsertTextContent is an interned text insertion: a slice view into the
// shared string arena plus the document position it targets.
type InsertTextContent struct {
	Slice      SliceRange
	UnicodeLen uint32
	Pos        uint32
}

// DeleteContent is a deletion of Len atoms starting at Pos. Positions here
// are in tracker-local coordinates (entity index for rich text, unicode
// index for plain text); deletions commute and are accumulated.
type DeleteContent struct {
	Pos uint32
	Len uint32
}

// StyleStartContent begins a style span over [Start, End) at the time it
// was created; the paired End op closes it once it is known.
type StyleStartContent struct {
	Start uint32
	End   uint32
	Key   string
	Info  StyleInfo
}

// Op is a fully interned operation: all of its payload (text, values) has
// already been pushed into the shared arena, so it is immutable and cheap
// to store in the log.
type Op struct {
	ID        ID
	Container ContainerIdx
	Kind      OpContentKind

	InsertText  InsertTextContent
	Delete      DeleteContent
	StyleStart  StyleStartContent
}

// AtomLen returns how many causal atoms (counters) this op consumes.
func (o Op) AtomLen() int32 {
	switch o.Kind {
	case OpInsertText:
		if o.InsertText.UnicodeLen == 0 {
			return 1
		}
		return int32(o.InsertText.UnicodeLen)
	case OpDelete:
		if o.Delete.Len == 0 {
			return 1
		}
		return int32(o.Delete.Len)
	default:
		return 1
	}
}

// IDSpan returns the full causal span this op occupies.
func (o Op) IDSpan() IDSpan {
	return NewIDSpan(o.ID.Peer, o.ID.Counter, o.AtomLen())
}

// RawOpContentKind mirrors OpContentKind but for the pre-intern payload
// that arrives from the (out-of-scope) wire codec.
type RawOpContentKind = OpContentKind

// RawInsertText is the external, not-yet-interned form of a text insert.
type RawInsertText struct {
	Str string
	Pos uint32
}

// RawOp is an operation as decoded off the wire: it carries raw payloads
// (plain Go strings) rather than arena slice views. SharedArena.ConvertRawOp
// turns it into an Op.
type RawOp struct {
	ID        ID
	Lamport   Lamport
	Container ContainerID
	Kind      RawOpContentKind

	RawInsertText RawInsertText
	Delete        DeleteContent
	StyleStart    StyleStartContent
}
