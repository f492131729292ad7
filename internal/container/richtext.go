package container

import (
	"ssw-text-crdt/internal/apperrors"
	"ssw-text-crdt/internal/arena"
	"ssw-text-crdt/internal/crdtlog"
	"ssw-text-crdt/internal/model"
	"ssw-text-crdt/internal/richtext"
	"ssw-text-crdt/internal/telemetry"
	"ssw-text-crdt/internal/textconfig"
	"ssw-text-crdt/internal/tracker"
)

// RichtextContainer is the rich-text container: an entity-indexed rope
// holding text runs and zero-width style anchors, plus the same causal
// Tracker machinery TextContainer uses for text and delete ops. Grounded
// on RichtextState in richtext_state.rs, with apply_diff/apply_op/to_diff
// and the StartTxn/CommitTxn/AbortTxn undo machinery following that file,
// and the tracker plumbing (TrackApply/TrackerCheckout/
// ApplyTrackedEffectsFrom) following text_container.rs, since
// richtext_state.rs has no equivalent of its own: a style op there always
// carries both of its anchor's final positions in one atom, so it never
// needs out-of-order causal replay the way a single-position text atom
// does. Style ops therefore bypass the tracker entirely here too and are
// applied straight to the rope the moment they are seen, via ApplyOp.
type RichtextContainer struct {
	id  model.ContainerID
	idx model.ContainerIdx
	a   *arena.SharedArena
	cfg textconfig.Config

	rope *richtext.Rope
	tr   *tracker.Tracker
	head []model.ID

	inTxn bool
	undo  undoStack

	log *crdtlog.Logger
}

// NewRichtextContainer builds an empty rich-text container registered at idx.
func NewRichtextContainer(id model.ContainerID, idx model.ContainerIdx, a *arena.SharedArena, cfg textconfig.Config) *RichtextContainer {
	return &RichtextContainer{
		id:   id,
		idx:  idx,
		a:    a,
		cfg:  cfg,
		rope: richtext.NewRope(a),
		tr:   tracker.New(model.NewVersionVector(), cfg.CounterOffset),
		log:  crdtlog.New("container.richtext", nil),
	}
}

func (c *RichtextContainer) ID() model.ContainerID     { return c.id }
func (c *RichtextContainer) Type() model.ContainerType { return model.ContainerTypeRichtext }
func (c *RichtextContainer) GetValue() string          { return c.rope.GetValue() }
func (c *RichtextContainer) Head() []model.ID          { return append([]model.ID(nil), c.head...) }
func (c *RichtextContainer) ContentHash() uint64       { return contentHash(c.GetValue()) }

// ToImport interns a raw op's payload into the shared arena.
func (c *RichtextContainer) ToImport(conv *arena.OpConverter, raw *model.RawOp) model.Op {
	return conv.ConvertSingleOp(raw)
}

func chunksToPayloads(chunks []model.RichtextChunk) []tracker.InsertPayload {
	out := make([]tracker.InsertPayload, len(chunks))
	for i, ch := range chunks {
		if ch.IsStyle {
			out[i] = tracker.InsertPayload{IsStyle: true, Style: ch.Style, Anchor: ch.Anchor}
		} else {
			out[i] = tracker.InsertPayload{Slice: ch.Slice}
		}
	}
	return out
}

// applyOpToRope is the single place every op kind reaches the rope,
// shared by ApplyOp and UpdateStateDirectly. Undo recording is skipped
// for style ops even mid-transaction, mirroring apply_op: only its
// Insert and Delete arms push to undo_stack, the StyleStart arm does not.
func (c *RichtextContainer) applyOpToRope(op model.Op, lamport model.Lamport, recordUndo bool) {
	switch op.Kind {
	case model.OpInsertText:
		slice := op.InsertText.Slice
		c.rope.InsertElemAtEntityIndex(op.InsertText.Pos, model.NewTextChunk(slice, slice.Len(), c.a.UTF16Len(slice)))
		if recordUndo {
			c.undo.recordInsert(op.InsertText.Pos, slice.Len())
		}
	case model.OpDelete:
		removed := c.rope.DrainByEntityIndex(op.Delete.Pos, op.Delete.Len)
		if recordUndo {
			c.undo.recordDelete(op.Delete.Pos, chunksToPayloads(removed))
		}
	case model.OpStyleStart:
		style := &model.StyleOp{
			Peer:    op.ID.Peer,
			Counter: op.ID.Counter,
			Lamport: lamport,
			Key:     op.StyleStart.Key,
			Info:    op.StyleStart.Info,
		}
		c.rope.MarkWithEntityIndex(op.StyleStart.Start, op.StyleStart.End, style)
	case model.OpStyleEnd:
		// A style's bounds are fully carried by its StyleStart atom; the
		// paired End op exists only to close out the op log, not the rope.
	default:
		err := apperrors.NewFatal(apperrors.CodeUnreachableVariant, "container.richtext", "applyOpToRope",
			"unhandled op kind").WithMetadata("kind", op.Kind)
		c.log.FatalError(err)
		panic(err)
	}
}

// ApplyOp applies a single already-causally-ready op to the rope,
// recording undo entries when a transaction is open. Mirrors
// RichtextState::apply_op.
func (c *RichtextContainer) ApplyOp(r RichOp) {
	c.applyOpToRope(r.Op, r.Lamport, c.inTxn)
}

// UpdateStateDirectly applies op straight to the rope with no undo
// bookkeeping, for ops already known to be causally next.
func (c *RichtextContainer) UpdateStateDirectly(r RichOp) {
	c.applyOpToRope(r.Op, r.Lamport, false)
}

// ApplyDiff splices a sequence of Retain/Insert/Delete steps into the
// rope, pairing up Start/End style anchors that arrive as separate Insert
// items within the same diff via AnnotateStyleRange, mirroring
// RichtextState::apply_diff. Unlike the tracker's per-atom InsertPayload
// runs, each Insert item here may carry a single payload spanning an
// entire multi-codepoint text run: this Diff shape is for bulk
// resynchronization (to_diff's own output), not for tracker replay.
func (c *RichtextContainer) ApplyDiff(diff Diff) {
	var index uint32
	styleStarts := make(map[*model.StyleOp]uint32)
	for _, item := range diff {
		switch item.Kind {
		case DiffRetain:
			index += item.Len
		case DiffInsert:
			for _, p := range item.Insert {
				if p.IsStyle {
					c.rope.InsertElemAtEntityIndex(index, model.NewStyleChunk(p.Style, p.Anchor))
					if p.Anchor == model.AnchorStart {
						styleStarts[p.Style] = index
					} else {
						start, ok := styleStarts[p.Style]
						if !ok {
							err := apperrors.NewFatal(apperrors.CodeInvalidSnapshot, "container.richtext", "ApplyDiff",
								"style end anchor arrived before its start in the same diff")
							c.log.FatalError(err)
							panic(err)
						}
						c.rope.AnnotateStyleRange(start, index, p.Style)
					}
					if c.inTxn {
						c.undo.recordInsert(index, 1)
					}
					index++
				} else {
					c.rope.InsertElemAtEntityIndex(index, model.NewTextChunk(p.Slice, p.Slice.Len(), c.a.UTF16Len(p.Slice)))
					if c.inTxn {
						c.undo.recordInsert(index, p.Slice.Len())
					}
					index += p.Slice.Len()
				}
			}
		case DiffDelete:
			removed := c.rope.DrainByEntityIndex(index, item.Len)
			if c.inTxn {
				c.undo.recordDelete(index, chunksToPayloads(removed))
			}
		}
	}
}

// ToDiff snapshots the whole rope as a sequence of Insert items, one per
// chunk, mirroring RichtextState::to_diff.
func (c *RichtextContainer) ToDiff() Diff {
	var out Diff
	c.rope.IterChunk(func(chunk model.RichtextChunk) bool {
		var payload tracker.InsertPayload
		if chunk.IsStyle {
			payload = tracker.InsertPayload{IsStyle: true, Style: chunk.Style, Anchor: chunk.Anchor}
		} else {
			payload = tracker.InsertPayload{Slice: chunk.Slice}
		}
		out = append(out, DiffItem{Kind: DiffInsert, Insert: []tracker.InsertPayload{payload}})
		return true
	})
	return out
}

func (c *RichtextContainer) TrackRetreat(spans model.IDSpanVector) { c.tr.Retreat(spans) }
func (c *RichtextContainer) TrackForward(spans model.IDSpanVector) { c.tr.Forward(spans) }

// TrackerCheckout mirrors TextContainer.TrackerCheckout exactly; the
// reuse-vs-rebuild condition and rebuildCounterOffset are not specific to
// plain text.
func (c *RichtextContainer) TrackerCheckout(vv model.VersionVector) {
	startVV := c.tr.StartVV()
	allVV := c.tr.AllVV()
	reuse := (!vv.IsEmpty() || startVV.IsEmpty()) && allVV.GreaterOrEqual(vv) && vv.GreaterOrEqual(startVV)
	if reuse {
		c.tr.Checkout(vv)
		return
	}
	c.tr = tracker.New(vv.Clone(), rebuildCounterOffset)
}

// TrackApply feeds text-insert and delete atoms through the tracker's
// three-way forward/shift/full decision, same as TextContainer.TrackApply.
// Style ops skip the tracker and are applied to the rope immediately,
// since a single style atom already names both of its anchors' final
// positions and never needs partial-prefix replay.
func (c *RichtextContainer) TrackApply(r RichOp) {
	if r.Op.Kind == model.OpStyleStart || r.Op.Kind == model.OpStyleEnd {
		c.ApplyOp(r)
		return
	}

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
// apply_tracked_effects_from. Only ever sees insert/delete effects: style
// atoms never enter the tracker (see TrackApply).
func (c *RichtextContainer) ApplyTrackedEffectsFrom(from model.VersionVector, effectSpans model.IDSpanVector) {
	c.tr.Checkout(from)
	eff := c.tr.IterEffects(effectSpans)
	for {
		e, ok := eff.Next()
		if !ok {
			break
		}
		switch e.Kind {
		case tracker.EffectDelete:
			c.rope.DrainByEntityIndex(e.Pos, e.DelLen)
		case tracker.EffectInsert:
			for i, p := range e.Inserts {
				c.rope.InsertElemAtEntityIndex(e.Pos+uint32(i), model.NewTextChunk(p.Slice, p.Slice.Len(), c.a.UTF16Len(p.Slice)))
			}
		}
	}
}

// CheckHeadAgainstFrontier enforces textconfig.AssertHeadEqualsFrontier,
// identical in spirit to TextContainer.CheckHeadAgainstFrontier.
func (c *RichtextContainer) CheckHeadAgainstFrontier(frontier []model.ID) {
	if !c.cfg.AssertHeadEqualsFrontier {
		return
	}
	if !idSetsEqual(c.head, frontier) {
		err := apperrors.NewFatal(apperrors.CodeTrackerPrecondition, "container.richtext", "CheckHeadAgainstFrontier",
			"container head diverged from log store frontier").
			WithMetadata("head", c.head).WithMetadata("frontier", frontier)
		c.log.FatalError(err)
		panic(err)
	}
}

// EncodeSnapshot serializes the container's whole rope via
// richtext.Rope.EncodeSnapshot, interning peers and style keys through
// the caller-supplied recorders.
func (c *RichtextContainer) EncodeSnapshot(recordPeer func(model.PeerID) uint32, recordKey func(string) uint32) richtext.EncodedRichtextState {
	return c.rope.EncodeSnapshot(recordPeer, recordKey)
}

// DecodeSnapshot replaces the container's rope with the one encoded in
// state, resolving peer and key indices through the caller-supplied
// lookups. Only valid on a freshly constructed, empty container.
func (c *RichtextContainer) DecodeSnapshot(state richtext.EncodedRichtextState, peerOf func(uint32) model.PeerID, keyOf func(uint32) string) error {
	return c.rope.DecodeSnapshot(state, peerOf, keyOf)
}

func (c *RichtextContainer) StartTxn() { c.inTxn = true }

func (c *RichtextContainer) CommitTxn() {
	c.inTxn = false
	c.undo.clear()
}

// AbortTxn unwinds every edit recorded since StartTxn. Mirrors
// RichtextState::undo_all, except where that function hits
// unimplemented!("should handle style annotation") on a deleted style
// anchor, this returns an error instead of panicking mid-unwind, leaving
// the rope exactly as it was before the abort was attempted.
func (c *RichtextContainer) AbortTxn() error {
	if c.undo.hasStyleDelete() {
		err := apperrors.New(apperrors.CodeInvalidSnapshot, "container.richtext", "AbortTxn",
			"cannot undo a deleted style anchor")
		c.log.FatalError(err)
		return err
	}
	c.undo.unwind(
		func(index uint32, content []tracker.InsertPayload) {
			for i, p := range content {
				if p.IsStyle {
					c.rope.InsertElemAtEntityIndex(index+uint32(i), model.NewStyleChunk(p.Style, p.Anchor))
				} else {
					c.rope.InsertElemAtEntityIndex(index+uint32(i), model.NewTextChunk(p.Slice, p.Slice.Len(), c.a.UTF16Len(p.Slice)))
				}
			}
		},
		func(index, length uint32) {
			c.rope.DrainByEntityIndex(index, length)
		},
	)
	c.inTxn = false
	return nil
}
