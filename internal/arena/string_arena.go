package arena

import (
	"unicode/utf16"
	"unicode/utf8"

	"ssw-text-crdt/internal/model"
)

// checkpointStride is how many codepoints separate consecutive entries in
// the stringArena's checkpoint table, giving O(len/stride + stride) slicing
// instead of a full linear scan from offset zero.
const checkpointStride = 256

// checkpoint records the byte/UTF-16 offsets corresponding to a known
// Unicode codepoint offset, so slicing can jump near its target before
// decoding rune-by-rune.
type checkpoint struct {
	unicode uint32
	byteOff uint32
	utf16   uint32
}

// stringArena is the append-only text pool backing SharedArena.AllocStr.
// Bytes are never relocated or overwritten once written: a SliceRange
// returned by AllocStr remains valid (and stable) for the arena's life.
type stringArena struct {
	data        []byte
	lenUnicode  uint32
	lenUTF16    uint32
	checkpoints []checkpoint
}

func newStringArena() *stringArena {
	return &stringArena{checkpoints: []checkpoint{{0, 0, 0}}}
}

func (s *stringArena) lenBytes() uint32 { return uint32(len(s.data)) }

// alloc appends str to the pool and returns the Unicode range it now
// occupies; the UTF-16 code units it contributed are added to lenUTF16.
func (s *stringArena) alloc(str string) model.SliceRange {
	start := s.lenUnicode
	startByte := s.lenBytes()
	s.data = append(s.data, str...)

	n := uint32(0)
	for _, r := range str {
		n++
		if utf16.RuneLen(r) == 2 {
			s.lenUTF16 += 2
		} else {
			s.lenUTF16++
		}
	}
	s.lenUnicode = start + n

	// Lay down checkpoints at stride boundaries crossed by this alloc.
	s.backfillCheckpoints(str, start, startByte)
	return model.SliceRange{Start: start, End: s.lenUnicode}
}

// backfillCheckpoints walks the newly appended string once, recording a
// checkpoint every time the running Unicode offset crosses a stride
// boundary. This keeps alloc O(len(str)) while keeping slice lookups
// sub-linear in the arena's total size.
func (s *stringArena) backfillCheckpoints(str string, unicodeStart, byteStart uint32) {
	last := s.checkpoints[len(s.checkpoints)-1]
	next := ((last.unicode / checkpointStride) + 1) * checkpointStride

	unicodeIdx := unicodeStart
	byteIdx := byteStart
	utf16Idx := s.utf16AtUnicode(unicodeStart)

	for _, r := range str {
		if unicodeIdx >= next {
			s.checkpoints = append(s.checkpoints, checkpoint{unicode: unicodeIdx, byteOff: byteIdx, utf16: utf16Idx})
			next += checkpointStride
		}
		unicodeIdx++
		byteIdx += uint32(utf8.RuneLen(r))
		if utf16.RuneLen(r) == 2 {
			utf16Idx += 2
		} else {
			utf16Idx++
		}
	}
}

// utf16AtUnicode returns the UTF-16 offset corresponding to a Unicode
// offset that has already been fully committed to the arena (used while
// backfilling checkpoints for freshly appended text, and by utf16LenOf for
// any range), scanning forward from the nearest checkpoint at or before it.
func (s *stringArena) utf16AtUnicode(target uint32) uint32 {
	cp := s.nearestCheckpoint(target)
	if cp.unicode == target {
		return cp.utf16
	}
	// Scan forward from the checkpoint's byte offset.
	idx := cp.unicode
	utf16Idx := cp.utf16
	for i := int(cp.byteOff); i < len(s.data) && idx < target; {
		r, size := utf8.DecodeRune(s.data[i:])
		i += size
		idx++
		if utf16.RuneLen(r) == 2 {
			utf16Idx += 2
		} else {
			utf16Idx++
		}
	}
	return utf16Idx
}

func (s *stringArena) nearestCheckpoint(unicodeOffset uint32) checkpoint {
	lo, hi := 0, len(s.checkpoints)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if s.checkpoints[mid].unicode <= unicodeOffset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return s.checkpoints[lo]
}

// byteOffsetAtUnicode resolves a Unicode offset to a byte offset,
// decoding only the span between the nearest checkpoint and the target.
func (s *stringArena) byteOffsetAtUnicode(unicodeOffset uint32) uint32 {
	if unicodeOffset == s.lenUnicode {
		return s.lenBytes()
	}
	cp := s.nearestCheckpoint(unicodeOffset)
	idx := cp.unicode
	byteIdx := cp.byteOff
	for idx < unicodeOffset {
		_, size := utf8.DecodeRune(s.data[byteIdx:])
		byteIdx += uint32(size)
		idx++
	}
	return byteIdx
}

// sliceBytes returns the raw bytes for [start,end) Unicode codepoints.
// The returned slice aliases the arena's backing array; callers must treat
// it as read-only, per the append-only invariant.
func (s *stringArena) sliceBytes(r model.SliceRange) []byte {
	if r.IsUnknown() {
		return nil
	}
	startByte := s.byteOffsetAtUnicode(r.Start)
	endByte := s.byteOffsetAtUnicode(r.End)
	return s.data[startByte:endByte]
}

// sliceBytesByUTF8 slices directly by byte offsets.
func (s *stringArena) sliceBytesByUTF8(start, end uint32) []byte {
	return s.data[start:end]
}

// sliceStr is a convenience wrapper returning the Unicode range as a
// string (a copy, since Go strings are immutable but the source bytes
// alias the arena).
func (s *stringArena) sliceStr(r model.SliceRange) string {
	return string(s.sliceBytes(r))
}

// utf16LenOf returns how many UTF-16 code units the given Unicode range
// occupies.
func (s *stringArena) utf16LenOf(r model.SliceRange) uint32 {
	return s.utf16AtUnicode(r.End) - s.utf16AtUnicode(r.Start)
}

func (s *stringArena) isEmpty() bool { return len(s.data) == 0 }
