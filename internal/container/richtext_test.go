package container

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ssw-text-crdt/internal/arena"
	"ssw-text-crdt/internal/container/logstoretest"
	"ssw-text-crdt/internal/crdtlog"
	"ssw-text-crdt/internal/model"
	"ssw-text-crdt/internal/textconfig"
)

func newTestRichtextContainer(t *testing.T, peer model.PeerID) (*RichtextContainer, *arena.SharedArena, *logstoretest.Store) {
	t.Helper()
	a := arena.New(crdtlog.New("test", nil))
	id := model.NewRootContainerID("doc", model.ContainerTypeRichtext)
	idx := a.RegisterContainer(id)
	store := logstoretest.New(peer)
	cfg := textconfig.Defaults()
	return NewRichtextContainer(id, idx, a, cfg), a, store
}

// insertRich builds and applies a local insert op directly via ApplyOp,
// bypassing the tracker (mirroring how a txn-local edit would reach the
// rope before TrackApply/ApplyTrackedEffectsFrom ever runs for it).
func insertRich(t *testing.T, c *RichtextContainer, a *arena.SharedArena, store *logstoretest.Store, pos uint32, text string) model.Op {
	t.Helper()
	id := store.NextID()
	view, _ := a.AllocStrWithSlice(text)
	op := model.Op{
		ID:         id,
		Container:  c.idx,
		Kind:       model.OpInsertText,
		InsertText: model.InsertTextContent{Slice: view.Range, UnicodeLen: view.Range.Len(), Pos: pos},
	}
	store.AppendLocalOps([]model.Op{op})
	c.ApplyOp(NewRichOp(op, model.Lamport(0)))
	return op
}

func deleteRich(t *testing.T, c *RichtextContainer, store *logstoretest.Store, pos, length uint32) model.Op {
	t.Helper()
	id := store.NextID()
	op := model.Op{
		ID:        id,
		Container: c.idx,
		Kind:      model.OpDelete,
		Delete:    model.DeleteContent{Pos: pos, Len: length},
	}
	store.AppendLocalOps([]model.Op{op})
	c.ApplyOp(NewRichOp(op, model.Lamport(0)))
	return op
}

func TestRichtextContainerInsertAndDelete(t *testing.T) {
	c, a, store := newTestRichtextContainer(t, 1)
	insertRich(t, c, a, store, 0, "hello")
	require.Equal(t, "hello", c.GetValue())

	deleteRich(t, c, store, 0, 1)
	require.Equal(t, "ello", c.GetValue())
}

func TestRichtextContainerStyleStartCreatesBracketingAnchorsButNoVisibleText(t *testing.T) {
	c, a, store := newTestRichtextContainer(t, 1)
	insertRich(t, c, a, store, 0, "hello")

	id := store.NextID()
	op := model.Op{
		ID:        id,
		Container: c.idx,
		Kind:      model.OpStyleStart,
		StyleStart: model.StyleStartContent{
			Start: 0, End: 5, Key: "bold", Info: model.StyleInfoExpandBefore,
		},
	}
	store.AppendLocalOps([]model.Op{op})
	c.ApplyOp(NewRichOp(op, model.Lamport(7)))

	require.Equal(t, "hello", c.GetValue())
	require.Equal(t, uint32(7), c.rope.Len())
}

func TestRichtextContainerTransactionAbortRestoresContent(t *testing.T) {
	c, a, store := newTestRichtextContainer(t, 1)
	insertRich(t, c, a, store, 0, "hello")

	c.StartTxn()
	insertRich(t, c, a, store, 5, " world")
	deleteRich(t, c, store, 0, 1)
	require.Equal(t, "ello world", c.GetValue())

	err := c.AbortTxn()
	require.NoError(t, err)
	require.Equal(t, "hello", c.GetValue())
}

func TestRichtextContainerAbortTxnRejectsDeletedStyleAnchor(t *testing.T) {
	c, a, store := newTestRichtextContainer(t, 1)
	insertRich(t, c, a, store, 0, "hello")

	id := store.NextID()
	styleOp := model.Op{
		ID:        id,
		Container: c.idx,
		Kind:      model.OpStyleStart,
		StyleStart: model.StyleStartContent{
			Start: 0, End: 5, Key: "bold",
		},
	}
	store.AppendLocalOps([]model.Op{styleOp})
	c.ApplyOp(NewRichOp(styleOp, model.Lamport(1)))

	c.StartTxn()
	// Delete only entity index 0, which holds the Start anchor.
	deleteRich(t, c, store, 0, 1)

	err := c.AbortTxn()
	require.Error(t, err)
}

func TestRichtextContainerToDiffThenApplyDiffRoundTrips(t *testing.T) {
	src, a, store := newTestRichtextContainer(t, 1)
	insertRich(t, src, a, store, 0, "hello")

	diff := src.ToDiff()

	// dst shares src's arena: ToDiff's payloads are arena SliceRange views,
	// only resolvable against the arena that allocated them.
	dstID := model.NewRootContainerID("doc2", model.ContainerTypeRichtext)
	dstIdx := a.RegisterContainer(dstID)
	dst := NewRichtextContainer(dstID, dstIdx, a, textconfig.Defaults())
	dst.ApplyDiff(diff)

	require.Equal(t, src.GetValue(), dst.GetValue())
}

func TestRichtextContainerEncodeDecodeSnapshotRoundTrips(t *testing.T) {
	src, a, store := newTestRichtextContainer(t, 1)
	insertRich(t, src, a, store, 0, "hello")

	id := store.NextID()
	styleOp := model.Op{
		ID:        id,
		Container: src.idx,
		Kind:      model.OpStyleStart,
		StyleStart: model.StyleStartContent{
			Start: 0, End: 5, Key: "bold", Info: model.StyleInfoExpandBefore,
		},
	}
	store.AppendLocalOps([]model.Op{styleOp})
	src.ApplyOp(NewRichOp(styleOp, model.Lamport(3)))

	var peers []model.PeerID
	peerIdx := make(map[model.PeerID]uint32)
	recordPeer := func(p model.PeerID) uint32 {
		if idx, ok := peerIdx[p]; ok {
			return idx
		}
		idx := uint32(len(peers))
		peers = append(peers, p)
		peerIdx[p] = idx
		return idx
	}

	var keys []string
	keyIdx := make(map[string]uint32)
	recordKey := func(k string) uint32 {
		if idx, ok := keyIdx[k]; ok {
			return idx
		}
		idx := uint32(len(keys))
		keys = append(keys, k)
		keyIdx[k] = idx
		return idx
	}

	encoded := src.EncodeSnapshot(recordPeer, recordKey)

	dstID := model.NewRootContainerID("doc2", model.ContainerTypeRichtext)
	dstIdx := a.RegisterContainer(dstID)
	dst := NewRichtextContainer(dstID, dstIdx, a, textconfig.Defaults())

	err := dst.DecodeSnapshot(encoded, func(i uint32) model.PeerID { return peers[i] }, func(i uint32) string { return keys[i] })
	require.NoError(t, err)
	require.Equal(t, src.GetValue(), dst.GetValue())
	require.Equal(t, src.rope.Len(), dst.rope.Len())
}
