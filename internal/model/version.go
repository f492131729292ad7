package model

// VersionVector maps each peer to the next counter not yet seen from it.
// Comparison between two vectors is componentwise: A >= B iff every peer's
// counter in A is >= the corresponding counter in B (missing entries count
// as zero).
type VersionVector map[PeerID]Counter

// NewVersionVector returns an empty version vector.
func NewVersionVector() VersionVector {
	return make(VersionVector)
}

// Clone returns an independent copy.
func (vv VersionVector) Clone() VersionVector {
	out := make(VersionVector, len(vv))
	for p, c := range vv {
		out[p] = c
	}
	return out
}

// Get returns the next-counter for peer, or 0 if unseen.
func (vv VersionVector) Get(peer PeerID) Counter {
	return vv[peer]
}

// SetEnd records that vv has seen counters [0, end) from peer, keeping the
// maximum across repeated calls.
func (vv VersionVector) SetEnd(peer PeerID, end Counter) {
	if end > vv[peer] {
		vv[peer] = end
	}
}

// Extend folds in an applied span: the vector now covers span's end.
func (vv VersionVector) Extend(span IDSpan) {
	vv.SetEnd(span.Peer, span.End())
}

// Retreat undoes an applied span: vv rolls back to no longer cover span
// (and, implicitly, anything causally after it for that peer).
func (vv VersionVector) Retreat(span IDSpan) {
	if vv[span.Peer] > span.Start() {
		vv[span.Peer] = span.Start()
	}
}

// IncludesID reports whether id has already been recorded in vv.
func (vv VersionVector) IncludesID(id ID) bool {
	return vv[id.Peer] > id.Counter
}

// IncludesIDLast reports whether the span's last ID has been recorded.
func (vv VersionVector) IncludesIDLast(span IDSpan) bool {
	return vv.IncludesID(span.IDLast())
}

// IsEmpty reports whether vv records no progress for any peer.
func (vv VersionVector) IsEmpty() bool {
	for _, c := range vv {
		if c > 0 {
			return false
		}
	}
	return true
}

// GreaterOrEqual reports whether vv >= other componentwise.
func (vv VersionVector) GreaterOrEqual(other VersionVector) bool {
	for p, c := range other {
		if vv[p] < c {
			return false
		}
	}
	return true
}

// LessOrEqual reports whether vv <= other componentwise.
func (vv VersionVector) LessOrEqual(other VersionVector) bool {
	for p, c := range vv {
		if c > other[p] {
			return false
		}
	}
	return true
}

// InRange reports whether lo <= vv <= hi componentwise.
func (vv VersionVector) InRange(lo, hi VersionVector) bool {
	return vv.GreaterOrEqual(lo) && vv.LessOrEqual(hi)
}
