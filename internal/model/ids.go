// Package model holds the plain data types shared by the arena, tracker,
// and rope packages: identities, version vectors, and the interned
// operation shapes that flow between them.
package model

import "fmt"

// PeerID identifies one collaborating replica.
type PeerID uint64

// Counter is a per-peer, strictly increasing sequence number.
type Counter int32

// Lamport is a per-op scalar used to break concurrent-insert ties jointly
// with the peer ID (higher lamport wins; peer ID is the tie-breaker).
type Lamport uint32

// ID identifies a single op: the peer that created it and its counter.
type ID struct {
	Peer    PeerID
	Counter Counter
}

// NewID builds an ID from its components.
func NewID(peer PeerID, counter Counter) ID {
	return ID{Peer: peer, Counter: counter}
}

func (id ID) String() string {
	return fmt.Sprintf("%d@%d", id.Counter, id.Peer)
}

// Inc returns the ID shifted forward by delta counters.
func (id ID) Inc(delta Counter) ID {
	return ID{Peer: id.Peer, Counter: id.Counter + delta}
}

// IDSpan is an ordered, half-open counter range on one peer:
// [Counter, Counter+Len).
type IDSpan struct {
	Peer    PeerID
	Counter Counter
	Len     int32
}

// NewIDSpan builds a span covering [counter, counter+length).
func NewIDSpan(peer PeerID, counter Counter, length int32) IDSpan {
	return IDSpan{Peer: peer, Counter: counter, Len: length}
}

// Start returns the first counter covered by the span.
func (s IDSpan) Start() Counter { return s.Counter }

// End returns the exclusive upper bound of the span.
func (s IDSpan) End() Counter { return s.Counter + Counter(s.Len) }

// CounterLast returns the last counter covered by the span (inclusive).
func (s IDSpan) CounterLast() Counter { return s.End() - 1 }

// IDStart returns the span's first ID.
func (s IDSpan) IDStart() ID { return ID{Peer: s.Peer, Counter: s.Counter} }

// IDLast returns the span's last ID (inclusive).
func (s IDSpan) IDLast() ID { return ID{Peer: s.Peer, Counter: s.CounterLast()} }

// Sub returns the sub-span starting `from` counters into s.
func (s IDSpan) Sub(from int32) IDSpan {
	return IDSpan{Peer: s.Peer, Counter: s.Counter + Counter(from), Len: s.Len - from}
}

// Prefix returns the sub-span covering only the first `n` counters of s.
func (s IDSpan) Prefix(n int32) IDSpan {
	return IDSpan{Peer: s.Peer, Counter: s.Counter, Len: n}
}

// IDSpanVector is an ordered collection of IDSpans, covering an arbitrary
// (possibly discontinuous, possibly cross-peer) set of applied counters —
// what track_forward/track_retreat and apply_tracked_effects_from pass
// around as a single unit.
type IDSpanVector []IDSpan
