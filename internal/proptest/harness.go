// Package proptest runs the concrete convergence scenarios spec.md §8
// names (A, B, F) plus a randomized multi-peer interleaving check,
// grounded on the teacher's tests/goroutine_leak_test.go (goleak-checked
// entrypoints) and tests/load's stats-and-report style.
package proptest

import (
	"ssw-text-crdt/internal/arena"
	"ssw-text-crdt/internal/container"
	"ssw-text-crdt/internal/crdtlog"
	"ssw-text-crdt/internal/model"
	"ssw-text-crdt/internal/textconfig"
)

// peer bundles one simulated replica's container with its own arena and
// id-issuing counter, mirroring how a real LogStore/Container pair is
// scoped per process.
type peer struct {
	id    model.PeerID
	a     *arena.SharedArena
	c     *container.TextContainer
	cid   model.ContainerID
	idx   model.ContainerIdx
	next  model.Counter
	clock model.Lamport
}

func newPeer(id model.PeerID, containerID model.ContainerID, cfg textconfig.Config) *peer {
	a := arena.New(crdtlog.New("proptest", nil))
	idx := a.RegisterContainer(containerID)
	return &peer{id: id, a: a, c: container.NewTextContainer(containerID, idx, a, cfg), cid: containerID, idx: idx}
}

func (p *peer) nextID() model.ID {
	id := model.NewID(p.id, p.next)
	p.next++
	return id
}

// localInsert performs pos/text as a genuinely local edit (bypasses the
// tracker, since local edits apply straight to the rope) and returns the
// RawOp a remote peer would receive for it.
func (p *peer) localInsert(pos uint32, text string) model.RawOp {
	id := p.nextID()
	view, _ := p.a.AllocStrWithSlice(text)
	p.c.UpdateStateDirectly(container.NewRichOp(model.Op{
		ID: id, Container: p.idx, Kind: model.OpInsertText,
		InsertText: model.InsertTextContent{Slice: view.Range, UnicodeLen: view.Range.Len(), Pos: pos},
	}, p.clock))
	return model.RawOp{
		ID: id, Lamport: p.clock, Container: p.cid, Kind: model.OpInsertText,
		RawInsertText: model.RawInsertText{Str: text, Pos: pos},
	}
}

func (p *peer) localDelete(pos, length uint32) model.RawOp {
	id := p.nextID()
	p.c.UpdateStateDirectly(container.NewRichOp(model.Op{
		ID: id, Container: p.idx, Kind: model.OpDelete,
		Delete: model.DeleteContent{Pos: pos, Len: length},
	}, p.clock))
	return model.RawOp{
		ID: id, Lamport: p.clock, Container: p.cid, Kind: model.OpDelete,
		Delete: model.DeleteContent{Pos: pos, Len: length},
	}
}

// receive applies a remote RawOp through the full causal pipeline: intern,
// track, then replay the resulting effects onto the rope.
func (p *peer) receive(raw model.RawOp) {
	op := p.a.ConvertRawOp(&raw)
	richOp := container.NewRichOp(op, raw.Lamport)
	p.c.TrackApply(richOp)
	p.c.ApplyTrackedEffectsFrom(model.NewVersionVector(), model.IDSpanVector{op.IDSpan()})
}

func (p *peer) value() string { return p.c.GetValue() }
