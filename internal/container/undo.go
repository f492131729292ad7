package container

import "ssw-text-crdt/internal/tracker"

type undoKind int

const (
	undoInsert undoKind = iota
	undoDelete
)

// undoItem mirrors loro-internal's UndoItem::{Insert,Delete}: an insert is
// undone by deleting the range it produced, a delete is undone by
// reinserting exactly what it removed.
type undoItem struct {
	kind    undoKind
	index   uint32
	length  uint32 // undoInsert
	content []tracker.InsertPayload // undoDelete
}

// undoStack is the transactional undo log shared by TextContainer and
// RichtextContainer, grounded on RichtextState's in_txn/undo_stack pair.
type undoStack struct {
	items []undoItem
}

func (u *undoStack) recordInsert(index, length uint32) {
	u.items = append(u.items, undoItem{kind: undoInsert, index: index, length: length})
}

func (u *undoStack) recordDelete(index uint32, content []tracker.InsertPayload) {
	u.items = append(u.items, undoItem{kind: undoDelete, index: index, content: content})
}

func (u *undoStack) clear() { u.items = nil }

func (u *undoStack) isEmpty() bool { return len(u.items) == 0 }

// hasStyleDelete reports whether undoing this stack would need to
// reinsert a style-anchor chunk. The source's undo_all hits
// unimplemented!() in exactly this case; this core instead rejects the
// abort up front rather than leaving the rope half-restored.
func (u *undoStack) hasStyleDelete() bool {
	for _, it := range u.items {
		if it.kind != undoDelete {
			continue
		}
		for _, p := range it.content {
			if p.IsStyle {
				return true
			}
		}
	}
	return false
}

// unwind pops every recorded item in reverse, undoing an insert via
// drainAt (delete [index, index+length)) and a delete via insertAt
// (restore content at index). Callers must check hasStyleDelete first.
func (u *undoStack) unwind(
	insertAt func(index uint32, content []tracker.InsertPayload),
	drainAt func(index, length uint32),
) {
	for i := len(u.items) - 1; i >= 0; i-- {
		it := u.items[i]
		switch it.kind {
		case undoInsert:
			drainAt(it.index, it.length)
		case undoDelete:
			insertAt(it.index, it.content)
		}
	}
	u.items = nil
}
