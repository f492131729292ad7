package container

import (
	"ssw-text-crdt/internal/apperrors"
	"ssw-text-crdt/internal/arena"
	"ssw-text-crdt/internal/crdtlog"
	"ssw-text-crdt/internal/model"
	"ssw-text-crdt/internal/rope"
	"ssw-text-crdt/internal/telemetry"
	"ssw-text-crdt/internal/textconfig"
	"ssw-text-crdt/internal/tracker"
)

// rebuildCounterOffset is the synthetic-counter base a rebuilt tracker
// starts from, matching text_container.rs's tracker_checkout rebuild
// branch (Counter::MAX / 2) rather than the config's ordinary
// CounterOffset used at construction time.
const rebuildCounterOffset int32 = (1<<31 - 1) / 2

// TextContainer is the plain-text container: a rope holding rendered
// state plus a Tracker indexing every op ever seen, so remote ops
// arriving out of causal order can be replayed against an older frame and
// forwarded back to the current one. Grounded on TextContainer in
// text_container.rs.
type TextContainer struct {
	id  model.ContainerID
	idx model.ContainerIdx
	a   *arena.SharedArena
	cfg textconfig.Config

	rope *rope.Rope
	tr   *tracker.Tracker
	head []model.ID

	inTxn bool
	undo  undoStack

	log *crdtlog.Logger
}

// NewTextContainer builds an empty text container registered at idx.
func NewTextContainer(id model.ContainerID, idx model.ContainerIdx, a *arena.SharedArena, cfg textconfig.Config) *TextContainer {
	return &TextContainer{
		id:   id,
		idx:  idx,
		a:    a,
		cfg:  cfg,
		rope: rope.NewRope(a, cfg.GCLiveRatioThreshold),
		tr:   tracker.New(model.NewVersionVector(), cfg.CounterOffset),
		log:  crdtlog.New("container.text", nil),
	}
}

func (c *TextContainer) ID() model.ContainerID      { return c.id }
func (c *TextContainer) Type() model.ContainerType  { return model.ContainerTypeText }
func (c *TextContainer) GetValue() string           { return c.rope.GetValue() }
func (c *TextContainer) Head() []model.ID           { return append([]model.ID(nil), c.head...) }
func (c *TextContainer) ContentHash() uint64         { return contentHash(c.GetValue()) }

// Insert performs a local edit: it talks to store directly (bypassing the
// tracker, which only mediates ops arriving out of causal order) and
// mutates the rope immediately, mirroring TextContainer::insert. Returns
// false for an empty insert, matching the source's Option<ID> == None.
func (c *TextContainer) Insert(store LogStore, pos uint32, text string) (model.ID, bool) {
	if text == "" {
		return model.ID{}, false
	}
	if pos > c.rope.Len() {
		err := apperrors.NewFatal(apperrors.CodeIndexOutOfRange, "container.text", "Insert", "insert index out of range").
			WithMetadata("pos", pos).WithMetadata("len", c.rope.Len())
		c.log.FatalError(err)
		panic(err)
	}

	id := store.NextID()
	view, _ := c.a.AllocStrWithSlice(text)
	c.rope.Insert(pos, view.Range)

	op := model.Op{
		ID:         id,
		Container:  c.idx,
		Kind:       model.OpInsertText,
		InsertText: model.InsertTextContent{Slice: view.Range, UnicodeLen: view.Range.Len(), Pos: pos},
	}
	store.AppendLocalOps([]model.Op{op})

	lastID := id.Inc(model.Counter(op.AtomLen() - 1))
	c.head = []model.ID{lastID}

	if c.inTxn {
		c.undo.recordInsert(pos, uint32(op.AtomLen()))
	}
	return id, true
}

// Delete performs a local deletion, mirroring TextContainer::delete.
func (c *TextContainer) Delete(store LogStore, pos, length uint32) (model.ID, bool) {
	if length == 0 {
		return model.ID{}, false
	}
	if pos+length > c.rope.Len() {
		err := apperrors.NewFatal(apperrors.CodeIndexOutOfRange, "container.text", "Delete", "deletion out of range").
			WithMetadata("pos", pos).WithMetadata("len", length).WithMetadata("rope_len", c.rope.Len())
		c.log.FatalError(err)
		panic(err)
	}

	id := store.NextID()
	op := model.Op{
		ID:        id,
		Container: c.idx,
		Kind:      model.OpDelete,
		Delete:    model.DeleteContent{Pos: pos, Len: length},
	}
	store.AppendLocalOps([]model.Op{op})

	removed := c.rope.DeleteRange(pos, pos+length)
	lastID := id.Inc(model.Counter(op.AtomLen() - 1))
	c.head = []model.ID{lastID}

	if c.inTxn {
		c.undo.recordDelete(pos, sliceRangesToPayloads(removed))
	}
	return id, true
}

func sliceRangesToPayloads(ranges []model.SliceRange) []tracker.InsertPayload {
	var out []tracker.InsertPayload
	for _, r := range ranges {
		for u := r.Start; u < r.End; u++ {
			out = append(out, tracker.InsertPayload{Slice: model.SliceRange{Start: u, End: u + 1}})
		}
	}
	return out
}

// ToImport interns a raw op's payload into the shared arena.
func (c *TextContainer) ToImport(conv *arena.OpConverter, raw *model.RawOp) model.Op {
	return conv.ConvertSingleOp(raw)
}

// ToExport splits an insert op's content into alive/Unknown runs for
// GC-aware export, mirroring TextContainer::to_export.
func (c *TextContainer) ToExport(op model.Op, gc bool) []rope.ExportSpan {
	if op.Kind != model.OpInsertText {
		return nil
	}
	return c.rope.ToExport(op.InsertText.Slice, gc)
}

// UpdateStateDirectly applies op straight to the rope, bypassing the
// tracker, mirroring TextContainer::update_state_directly.
func (c *TextContainer) UpdateStateDirectly(r RichOp) {
	switch r.Op.Kind {
	case model.OpInsertText:
		c.rope.Insert(r.Op.InsertText.Pos, r.Op.InsertText.Slice)
	case model.OpDelete:
		c.rope.DeleteRange(r.Op.Delete.Pos, r.Op.Delete.Pos+r.Op.Delete.Len)
	default:
		err := apperrors.NewFatal(apperrors.CodeUnreachableVariant, "container.text", "UpdateStateDirectly",
			"text container cannot apply this op kind").WithMetadata("kind", r.Op.Kind)
		c.log.FatalError(err)
		panic(err)
	}
}

func (c *TextContainer) TrackRetreat(spans model.IDSpanVector) { c.tr.Retreat(spans) }
func (c *TextContainer) TrackForward(spans model.IDSpanVector) { c.tr.Forward(spans) }

// TrackerCheckout moves the tracker to vv, reusing the existing tracker
// when vv falls within its known range and rebuilding from scratch
// otherwise, mirroring TextContainer::tracker_checkout exactly.
func (c *TextContainer) TrackerCheckout(vv model.VersionVector) {
	startVV := c.tr.StartVV()
	allVV := c.tr.AllVV()
	reuse := (!vv.IsEmpty() || startVV.IsEmpty()) && allVV.GreaterOrEqual(vv) && vv.GreaterOrEqual(startVV)
	if reuse {
		c.tr.Checkout(vv)
		return
	}
	c.tr = tracker.New(vv.Clone(), rebuildCounterOffset)
}

func contentFromOp(op model.Op) tracker.Content {
	switch op.Kind {
	case model.OpInsertText:
		n := op.InsertText.UnicodeLen
		if n == 0 {
			n = 1
		}
		atoms := make([]tracker.InsertPayload, n)
		for i := uint32(0); i < n; i++ {
			atoms[i] = tracker.InsertPayload{Slice: model.SliceRange{
				Start: op.InsertText.Slice.Start + i,
				End:   op.InsertText.Slice.Start + i + 1,
			}}
		}
		return tracker.Content{Kind: model.OpInsertText, Pos: op.InsertText.Pos, Atoms: atoms}
	case model.OpDelete:
		return tracker.Content{Kind: model.OpDelete, Pos: op.Delete.Pos, Len: op.Delete.Len}
	default:
		panic(apperrors.NewFatal(apperrors.CodeUnreachableVariant, "container.text", "contentFromOp",
			"text container cannot produce content for this op kind"))
	}
}

// sliceContentForShift returns the suffix of c starting shift atoms in.
// Delete's Pos is left unchanged: the tracker's delete target is always
// "the nth currently-visible atom", and the shifted-away prefix atoms were
// just re-marked deleted by the caller's Forward, so they have already
// dropped out of the visible count by the time this suffix applies.
// Insert's Pos, in contrast, must advance by shift: the prefix atoms are
// real siblings already in the tree, and the suffix's own insertAfterParent
// walk needs to anchor immediately after them.
func sliceContentForShift(c tracker.Content, shift int32) tracker.Content {
	if c.Kind == model.OpDelete {
		return tracker.Content{Kind: model.OpDelete, Pos: c.Pos, Len: c.Len - uint32(shift)}
	}
	return tracker.Content{Kind: c.Kind, Pos: c.Pos + uint32(shift), Atoms: c.Atoms[shift:]}
}

// TrackApply ingests rich_op into the tracker via the three-way decision
// from text_container.rs's track_apply: if the op's last atom is already
// known, it is a pure forward; if only a prefix is known, the known prefix
// is forwarded and the remaining suffix applied fresh; otherwise the whole
// op is applied fresh.
func (c *TextContainer) TrackApply(r RichOp) {
	allVV := c.tr.AllVV()
	idStart := r.IDStart()
	idLast := r.IDLast()
	atomLen := r.Op.AtomLen()

	switch {
	case allVV.IncludesID(idLast):
		span := model.NewIDSpan(idStart.Peer, idStart.Counter, atomLen)
		c.tr.Forward(model.IDSpanVector{span})
		telemetry.TrackerAppliedOpsTotal.WithLabelValues("forward").Inc()
	case allVV.IncludesID(idStart):
		shift := int32(allVV.Get(idStart.Peer) - idStart.Counter)
		prefix := model.NewIDSpan(idStart.Peer, idStart.Counter, shift)
		c.tr.Forward(model.IDSpanVector{prefix})
		content := sliceContentForShift(contentFromOp(r.Op), shift)
		c.tr.Apply(idStart.Inc(model.Counter(shift)), r.Lamport, content)
		telemetry.TrackerAppliedOpsTotal.WithLabelValues("shift").Inc()
	default:
		c.tr.Apply(idStart, r.Lamport, contentFromOp(r.Op))
		telemetry.TrackerAppliedOpsTotal.WithLabelValues("full").Inc()
	}
}

// ApplyTrackedEffectsFrom checks the tracker out to from, then replays
// every effect of effectSpans directly onto the rope, mirroring
// apply_tracked_effects_from.
func (c *TextContainer) ApplyTrackedEffectsFrom(from model.VersionVector, effectSpans model.IDSpanVector) {
	c.tr.Checkout(from)
	eff := c.tr.IterEffects(effectSpans)
	for {
		e, ok := eff.Next()
		if !ok {
			break
		}
		switch e.Kind {
		case tracker.EffectDelete:
			c.rope.DeleteRange(e.Pos, e.Pos+e.DelLen)
		case tracker.EffectInsert:
			for i, p := range e.Inserts {
				c.rope.Insert(e.Pos+uint32(i), p.Slice)
			}
		}
	}
}

// CheckHeadAgainstFrontier enforces textconfig.AssertHeadEqualsFrontier:
// when enabled, a local edit's resulting head must match the log store's
// reported frontier, or the process aborts on a contract violation.
func (c *TextContainer) CheckHeadAgainstFrontier(frontier []model.ID) {
	if !c.cfg.AssertHeadEqualsFrontier {
		return
	}
	if !idSetsEqual(c.head, frontier) {
		err := apperrors.NewFatal(apperrors.CodeTrackerPrecondition, "container.text", "CheckHeadAgainstFrontier",
			"container head diverged from log store frontier").
			WithMetadata("head", c.head).WithMetadata("frontier", frontier)
		c.log.FatalError(err)
		panic(err)
	}
}

// StartTxn begins a transaction: local edits made until CommitTxn or
// AbortTxn record undo entries.
func (c *TextContainer) StartTxn() { c.inTxn = true }

// CommitTxn ends the transaction, discarding the undo log.
func (c *TextContainer) CommitTxn() {
	c.inTxn = false
	c.undo.clear()
}

// AbortTxn unwinds every edit recorded since StartTxn, restoring the rope
// to its pre-transaction content. Returns an error instead of unwinding if
// doing so would require reinserting a style anchor (plain text never
// deletes one, so this always succeeds for TextContainer; kept symmetric
// with RichtextContainer.AbortTxn).
func (c *TextContainer) AbortTxn() error {
	if c.undo.hasStyleDelete() {
		err := apperrors.New(apperrors.CodeInvalidSnapshot, "container.text", "AbortTxn",
			"cannot undo a deleted style anchor")
		c.log.FatalError(err)
		return err
	}
	c.undo.unwind(
		func(index uint32, content []tracker.InsertPayload) {
			for i, p := range content {
				c.rope.Insert(index+uint32(i), p.Slice)
			}
		},
		func(index, length uint32) {
			c.rope.DeleteRange(index, index+length)
		},
	)
	c.inTxn = false
	return nil
}
