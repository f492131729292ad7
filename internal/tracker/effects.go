package tracker

import (
	"ssw-text-crdt/internal/model"
	"ssw-text-crdt/internal/telemetry"
)

// EffectKind distinguishes the two shapes a replayed effect can take.
type EffectKind int

const (
	EffectInsert EffectKind = iota
	EffectDelete
)

// Effect is one step of the diff needed to replay a checkout transition
// onto rendered state: a contiguous run of newly-visible inserts, or a
// contiguous run of newly-invisible deletes, both positioned in the
// coordinate space of the state being incrementally patched. Adjacent
// same-kind atoms are coalesced into a single Effect (invariant 6).
type Effect struct {
	Kind    EffectKind
	Pos     uint32
	Inserts []InsertPayload // set when Kind == EffectInsert
	DelLen  uint32          // set when Kind == EffectDelete
}

// toggleOp flips the visibility of rec.atomIDs[from:to], recording
// opStartID as the delete-mark key for delete-kind ops.
func (t *Tracker) toggleOp(rec *opRecord, opStartID model.ID, from, to int, visible bool) {
	if from < 0 {
		from = 0
	}
	if to > len(rec.atomIDs) {
		to = len(rec.atomIDs)
	}
	for i := from; i < to; i++ {
		a := t.byID[rec.atomIDs[i]]
		if a == nil {
			continue
		}
		if rec.kind == model.OpDelete {
			if visible {
				if a.deletedBy == nil {
					a.deletedBy = make(map[model.ID]bool)
				}
				a.deletedBy[opStartID] = true
			} else {
				delete(a.deletedBy, opStartID)
			}
		} else {
			a.insertApplied = visible
		}
	}
}

// lookupSpan resolves a (possibly partial-prefix) span back to its
// opRecord and the atom-count it covers, clamped to the record's length.
func (t *Tracker) lookupSpan(span model.IDSpan) (*opRecord, model.ID, int) {
	startID := span.IDStart()
	rec, ok := t.ops[startID]
	if !ok {
		return nil, startID, 0
	}
	n := int(span.Len)
	if n > len(rec.atomIDs) {
		n = len(rec.atomIDs)
	}
	return rec, startID, n
}

// Forward toggles the ops named by spans to visible, extending curVV.
// Every span must start exactly at a previously-Applied op's start ID
// (a whole op or any prefix of one), matching track_apply's use of
// id.to_span(shift).
func (t *Tracker) Forward(spans model.IDSpanVector) {
	for _, span := range spans {
		rec, startID, n := t.lookupSpan(span)
		if rec == nil {
			t.log.Debugf("forward: unknown op %s, skipping", startID)
			continue
		}
		t.toggleOp(rec, startID, 0, n, true)
		t.curVV.Extend(span)
	}
}

// Retreat toggles the ops named by spans to invisible, retreating curVV.
func (t *Tracker) Retreat(spans model.IDSpanVector) {
	for _, span := range spans {
		rec, startID, n := t.lookupSpan(span)
		if rec == nil {
			t.log.Debugf("retreat: unknown op %s, skipping", startID)
			continue
		}
		t.toggleOp(rec, startID, 0, n, false)
		t.curVV.Retreat(span)
	}
}

// currentToggledCount reports how many of rec's atoms are presently
// toggled visible (a contiguous prefix, by construction: atoms only ever
// become visible/invisible together as an op or a prefix of one).
func (t *Tracker) currentToggledCount(rec *opRecord, startID model.ID) int {
	count := 0
	for _, id := range rec.atomIDs {
		a := t.byID[id]
		if a == nil {
			continue
		}
		var on bool
		if rec.kind == model.OpDelete {
			on = a.deletedBy[startID]
		} else {
			on = a.insertApplied
		}
		if !on {
			break
		}
		count++
	}
	return count
}

// Checkout moves the tracker's current frame to exactly vv, toggling
// each known op's atoms forward or back as needed. vv must lie within
// [startVV, allVV] componentwise; callers needing a frame outside that
// range must build a fresh Tracker instead (see TextContainer.TrackerCheckout,
// grounded on tracker_checkout's rebuild branch).
func (t *Tracker) Checkout(vv model.VersionVector) {
	for startID, rec := range t.ops {
		n := len(rec.atomIDs)
		want := int(vv.Get(startID.Peer) - startID.Counter)
		if want < 0 {
			want = 0
		}
		if want > n {
			want = n
		}
		have := t.currentToggledCount(rec, startID)
		if want == have {
			continue
		}
		if want > have {
			t.toggleOp(rec, startID, have, want, true)
		} else {
			t.toggleOp(rec, startID, want, have, false)
		}
	}
	t.curVV = vv.Clone()
}

// Effects is the sequence IterEffects returns. It holds its coalesced
// runs precomputed (computing them requires forwarding the whole span set
// up front) and hands them out one at a time via Next — no channel or
// goroutine needed since the tracker is synchronous.
type Effects struct {
	runs []Effect
	next int
}

// Next returns the next effect and true, or a zero Effect and false once
// the sequence is exhausted.
func (e *Effects) Next() (Effect, bool) {
	if e.next >= len(e.runs) {
		return Effect{}, false
	}
	out := e.runs[e.next]
	e.next++
	telemetry.TrackerEffectsEmittedTotal.WithLabelValues(effectKindLabel(out.Kind)).Inc()
	return out, true
}

func effectKindLabel(k EffectKind) string {
	if k == EffectInsert {
		return "ins"
	}
	return "del"
}

// IterEffects temporarily forwards exactly the ops named by effectSpans
// (which must not already be part of the current frame) and returns an
// Effects sequence with one entry per coalesced run of atoms whose
// visibility changed as a result, positioned in the coordinate space of
// the document being incrementally patched from the pre-call state to
// the post-call state.
func (t *Tracker) IterEffects(effectSpans model.IDSpanVector) *Effects {
	affected := make(map[model.ID]bool)
	before := make(map[model.ID]bool)
	for _, span := range effectSpans {
		rec, _, n := t.lookupSpan(span)
		if rec == nil {
			continue
		}
		for i := 0; i < n; i++ {
			id := rec.atomIDs[i]
			if a := t.byID[id]; a != nil {
				before[id] = a.visible()
				affected[id] = true
			}
		}
	}

	t.Forward(effectSpans)

	var pos uint32
	var runs []Effect
	var runActive bool
	var runKind EffectKind
	var runPos uint32
	var runInserts []InsertPayload
	var runDelLen uint32

	flush := func() {
		if !runActive {
			return
		}
		if runKind == EffectInsert {
			runs = append(runs, Effect{Kind: EffectInsert, Pos: runPos, Inserts: runInserts})
		} else {
			runs = append(runs, Effect{Kind: EffectDelete, Pos: runPos, DelLen: runDelLen})
		}
		runActive = false
		runInserts = nil
		runDelLen = 0
	}

	for a := t.root.next; a != nil; a = a.next {
		if affected[a.id] {
			wasVisible := before[a.id]
			isVisible := a.visible()
			if !wasVisible && isVisible {
				if runActive && runKind != EffectInsert {
					flush()
				}
				runActive, runKind = true, EffectInsert
				if len(runInserts) == 0 {
					runPos = pos
				}
				runInserts = append(runInserts, a.payload)
				pos++
				continue
			}
			if wasVisible && !isVisible {
				if runActive && runKind != EffectDelete {
					flush()
				}
				runActive, runKind = true, EffectDelete
				if runDelLen == 0 {
					runPos = pos
				}
				runDelLen++
				continue
			}
		}
		flush()
		if a.visible() {
			pos++
		}
	}
	flush()

	return &Effects{runs: runs}
}
