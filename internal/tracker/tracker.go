// Package tracker implements the causal replay engine shared by every
// container's apply path (spec.md §4.2): a per-document structure that
// ingests ops as they become causally known, can be wound forward/back to
// an arbitrary version vector, and lazily yields the insert/delete
// effects needed to transform the rendered state from one version to
// another.
//
// Internally it is an RGA: each atom (one interned codepoint, or one
// style anchor) records the ID of the atom it was inserted immediately
// after, and atoms sharing a parent are ordered by (Lamport, peer)
// descending, exactly as a plain RGA orders concurrent siblings. Atoms
// are never removed, only marked invisible, so retreat/forward is just
// toggling a flag rather than rebuilding structure.
package tracker

import (
	"ssw-text-crdt/internal/apperrors"
	"ssw-text-crdt/internal/crdtlog"
	"ssw-text-crdt/internal/model"
)

// InsertPayload is what a single inserted atom replays as.
type InsertPayload struct {
	IsStyle bool
	Slice   model.SliceRange // one Unicode codepoint, when !IsStyle
	Style   *model.StyleOp
	Anchor  model.AnchorType
}

// Content is the payload Apply ingests for one op. For insert-like kinds
// (text insert, style start/end) Atoms holds one InsertPayload per atom
// the op spans; for delete it is empty and Len gives the deletion count.
type Content struct {
	Kind  model.OpContentKind
	Pos   uint32
	Atoms []InsertPayload
	Len   uint32
}

// atom is one RGA node: a single causal unit with a stable identity.
type atom struct {
	id      model.ID
	lamport model.Lamport

	hasParent bool
	parent    model.ID

	payload InsertPayload

	insertApplied bool
	deletedBy     map[model.ID]bool

	next *atom
}

func (a *atom) visible() bool {
	return a.insertApplied && len(a.deletedBy) == 0
}

// opRecord remembers the atoms one op produced (insert) or targeted
// (delete), keyed by the op's own start ID, so Forward/Retreat can
// re-locate them from a (possibly partial, always-prefix) span.
type opRecord struct {
	kind    model.OpContentKind
	atomIDs []model.ID
}

// Tracker is the causal index for one container.
type Tracker struct {
	startVV       model.VersionVector
	allVV         model.VersionVector // every op ever ingested via Apply, visible or not
	curVV         model.VersionVector // exactly the ops currently toggled visible
	counterOffset int32

	root *atom
	byID map[model.ID]*atom
	ops  map[model.ID]*opRecord
	log  *crdtlog.Logger
}

// New builds a Tracker starting at startVV. counterOffset is the
// synthetic-counter base the container passes both at construction and
// when TextContainer.TrackerCheckout rebuilds the tracker; the tracker
// only stores it and reports it through CounterOffset.
func New(startVV model.VersionVector, counterOffset int32) *Tracker {
	root := &atom{id: model.ID{}, insertApplied: true}
	return &Tracker{
		startVV:       startVV.Clone(),
		allVV:         startVV.Clone(),
		curVV:         startVV.Clone(),
		counterOffset: counterOffset,
		root:          root,
		byID:          map[model.ID]*atom{root.id: root},
		ops:           make(map[model.ID]*opRecord),
		log:           crdtlog.New("tracker", nil),
	}
}

// StartVV returns the version vector the tracker was created at.
func (t *Tracker) StartVV() model.VersionVector { return t.startVV.Clone() }

// AllVV returns the version vector of every op ever ingested via Apply,
// irrespective of whether it is currently toggled visible (it never shrinks
// on Retreat; only Apply grows it).
func (t *Tracker) AllVV() model.VersionVector { return t.allVV.Clone() }

// CurrentVV returns the version vector of ops currently toggled visible,
// the frame Forward/Retreat/Checkout move.
func (t *Tracker) CurrentVV() model.VersionVector { return t.curVV.Clone() }

// CounterOffset returns the synthetic-counter base this tracker was built
// with, so a caller deciding whether to rebuild vs. reuse a tracker can
// tell the two apart.
func (t *Tracker) CounterOffset() int32 { return t.counterOffset }

// Apply ingests a wholly new op at the tracker's current frame, placing
// its atoms into the RGA by the current visible atom at Pos and ordering
// concurrent siblings by (lamport, peer) descending. The new atoms start
// toggled visible, so both allVV and curVV grow.
func (t *Tracker) Apply(id model.ID, lamport model.Lamport, c Content) {
	switch c.Kind {
	case model.OpDelete:
		t.applyDelete(id, c.Pos, c.Len)
	default:
		t.applyInsert(id, lamport, c.Pos, c.Atoms)
	}
	span := model.NewIDSpan(id.Peer, id.Counter, int32(c.atomLen()))
	t.allVV.Extend(span)
	t.curVV.Extend(span)
}

func (c Content) atomLen() int {
	if c.Kind == model.OpDelete {
		if c.Len == 0 {
			return 1
		}
		return int(c.Len)
	}
	if len(c.Atoms) == 0 {
		return 1
	}
	return len(c.Atoms)
}

func (t *Tracker) applyInsert(id model.ID, lamport model.Lamport, pos uint32, payloads []InsertPayload) {
	parent := t.visibleAtomBefore(pos)
	atomIDs := make([]model.ID, 0, len(payloads))
	for i, p := range payloads {
		a := &atom{
			id:            model.ID{Peer: id.Peer, Counter: id.Counter + model.Counter(i)},
			lamport:       lamport,
			hasParent:     true,
			parent:        parent.id,
			payload:       p,
			insertApplied: true,
		}
		t.insertAfterParent(parent, a)
		t.byID[a.id] = a
		atomIDs = append(atomIDs, a.id)
		parent = a
	}
	t.ops[id] = &opRecord{kind: model.OpInsertText, atomIDs: atomIDs}
}

// insertAfterParent splices a into the linked list as parent's first
// child, respecting existing same-parent siblings ordered by (lamport,
// peer) descending (RGA sibling rule).
func (t *Tracker) insertAfterParent(parent *atom, a *atom) {
	prev := parent
	cur := parent.next
	for cur != nil && cur.hasParent && cur.parent == parent.id {
		if greaterID(a.lamport, a.id, cur.lamport, cur.id) {
			break
		}
		prev = cur
		cur = cur.next
	}
	a.next = cur
	prev.next = a
}

// greaterID reports whether (lamportA, idA) sorts before (lamportB, idB)
// as an RGA sibling: higher lamport wins, peer ID breaks ties.
func greaterID(lamportA model.Lamport, idA model.ID, lamportB model.Lamport, idB model.ID) bool {
	if lamportA != lamportB {
		return lamportA > lamportB
	}
	return idA.Peer > idB.Peer
}

func (t *Tracker) applyDelete(id model.ID, pos, length uint32) {
	targets := make([]model.ID, 0, length)
	cur := t.nthVisibleAfterRoot(pos)
	for i := uint32(0); i < length; i++ {
		if cur == nil {
			err := apperrors.NewFatal(apperrors.CodeTrackerPrecondition, "tracker", "Apply",
				"delete range extends past the end of the visible sequence").
				WithMetadata("pos", pos).WithMetadata("len", length)
			t.log.FatalError(err)
			panic(err)
		}
		if cur.deletedBy == nil {
			cur.deletedBy = make(map[model.ID]bool)
		}
		cur.deletedBy[id] = true
		targets = append(targets, cur.id)
		cur = t.nextVisible(cur)
	}
	t.ops[id] = &opRecord{kind: model.OpDelete, atomIDs: targets}
}

// visibleAtomBefore returns the currently-visible atom immediately before
// visible-index pos (the root sentinel if pos == 0).
func (t *Tracker) visibleAtomBefore(pos uint32) *atom {
	if pos == 0 {
		return t.root
	}
	return t.nthVisibleAfterRoot(pos - 1)
}

// nthVisibleAfterRoot returns the (n+1)-th visible atom walking forward
// from root (n == 0 is the first visible atom).
func (t *Tracker) nthVisibleAfterRoot(n uint32) *atom {
	cur := t.root.next
	var count uint32
	for cur != nil {
		if cur.visible() {
			if count == n {
				return cur
			}
			count++
		}
		cur = cur.next
	}
	return nil
}

// VisibleSequence returns the payload of every currently-visible atom, in
// RGA order. Used by callers materializing a rendered view directly from
// the tracker (and by tests) rather than through a checkout+iter_effects
// round trip.
func (t *Tracker) VisibleSequence() []InsertPayload {
	var out []InsertPayload
	for cur := t.root.next; cur != nil; cur = cur.next {
		if cur.visible() {
			out = append(out, cur.payload)
		}
	}
	return out
}

func (t *Tracker) nextVisible(a *atom) *atom {
	cur := a.next
	for cur != nil {
		if cur.visible() {
			return cur
		}
		cur = cur.next
	}
	return nil
}
