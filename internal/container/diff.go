package container

import "ssw-text-crdt/internal/tracker"

// DiffItemKind discriminates one step of a Diff.
type DiffItemKind int

const (
	DiffRetain DiffItemKind = iota
	DiffInsert
	DiffDelete
)

// DiffItem is one delta step, mirroring the Retain/Insert/Delete items of
// loro-internal's Delta<RichtextStateChunk> consumed by
// RichtextState::apply_diff. Retain and Delete carry only a length; Insert
// carries the atoms to splice in, reusing tracker.InsertPayload so the
// same payload shape flows from IterEffects straight into a Diff without
// a conversion step.
type DiffItem struct {
	Kind   DiffItemKind
	Len    uint32
	Insert []tracker.InsertPayload
}

// Diff is an ordered sequence of DiffItems, applied left to right against
// a running entity-index cursor.
type Diff []DiffItem
