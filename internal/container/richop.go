package container

import "ssw-text-crdt/internal/model"

// RichOp pairs an interned Op with the Lamport timestamp it was assigned
// when appended to the log. model.Op itself carries no Lamport (only the
// pre-intern model.RawOp does), so TrackApply and UpdateStateDirectly take
// this wrapper instead, mirroring loro-core's RichOp.
type RichOp struct {
	Op      model.Op
	Lamport model.Lamport
}

// NewRichOp builds a RichOp from an interned op and its Lamport.
func NewRichOp(op model.Op, lamport model.Lamport) RichOp {
	return RichOp{Op: op, Lamport: lamport}
}

// IDStart returns the op's first ID.
func (r RichOp) IDStart() model.ID { return r.Op.ID }

// IDLast returns the op's last ID (inclusive), accounting for multi-atom
// ops (a text insert spanning several codepoints, or a multi-atom delete).
func (r RichOp) IDLast() model.ID { return r.Op.IDSpan().IDLast() }

// IDSpan returns the full causal span this op occupies.
func (r RichOp) IDSpan() model.IDSpan { return r.Op.IDSpan() }
