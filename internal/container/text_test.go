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

func newTestTextContainer(t *testing.T, peer model.PeerID) (*TextContainer, *arena.SharedArena, *logstoretest.Store) {
	t.Helper()
	a := arena.New(crdtlog.New("test", nil))
	id := model.NewRootContainerID("doc", model.ContainerTypeText)
	idx := a.RegisterContainer(id)
	store := logstoretest.New(peer)
	cfg := textconfig.Defaults()
	return NewTextContainer(id, idx, a, cfg), a, store
}

func TestTextContainerLocalInsertAndDelete(t *testing.T) {
	c, _, store := newTestTextContainer(t, 1)

	_, ok := c.Insert(store, 0, "hello")
	require.True(t, ok)
	require.Equal(t, "hello", c.GetValue())

	_, ok = c.Insert(store, 5, " world")
	require.True(t, ok)
	require.Equal(t, "hello world", c.GetValue())

	_, ok = c.Delete(store, 0, 6)
	require.True(t, ok)
	require.Equal(t, "world", c.GetValue())
}

func TestTextContainerEmptyInsertAndDeleteAreNoOps(t *testing.T) {
	c, _, store := newTestTextContainer(t, 1)

	_, ok := c.Insert(store, 0, "")
	require.False(t, ok)
	require.Equal(t, "", c.GetValue())

	_, ok = c.Delete(store, 0, 0)
	require.False(t, ok)
}

func TestTextContainerInsertOutOfRangePanics(t *testing.T) {
	c, _, store := newTestTextContainer(t, 1)
	require.Panics(t, func() {
		c.Insert(store, 10, "x")
	})
}

func TestTextContainerTransactionAbortRestoresContent(t *testing.T) {
	c, _, store := newTestTextContainer(t, 1)
	_, _ = c.Insert(store, 0, "hello")

	c.StartTxn()
	_, _ = c.Insert(store, 5, " world")
	_, _ = c.Delete(store, 0, 1)
	require.Equal(t, "ello world", c.GetValue())

	err := c.AbortTxn()
	require.NoError(t, err)
	require.Equal(t, "hello", c.GetValue())
}

func TestTextContainerTransactionCommitKeepsContent(t *testing.T) {
	c, _, store := newTestTextContainer(t, 1)
	_, _ = c.Insert(store, 0, "hello")

	c.StartTxn()
	_, _ = c.Insert(store, 5, "!")
	c.CommitTxn()

	require.Equal(t, "hello!", c.GetValue())
	require.True(t, c.undo.isEmpty())
}

// TestTextContainerTrackApplyFullThenForward replays a remote peer's insert
// through TrackApply (the full-apply branch), then checks the tracker out
// to the empty start version and forwards the op's span through
// ApplyTrackedEffectsFrom, applying the resulting effect directly to a
// second container's rope — simulating one causal hop of replication.
func TestTextContainerTrackApplyFullThenForward(t *testing.T) {
	local, a, store := newTestTextContainer(t, 1)
	_, _ = local.Insert(store, 0, "abc")

	remote := NewTextContainer(local.id, local.idx, a, textconfig.Defaults())
	startVV := model.NewVersionVector()

	op := store.Ops[0]
	richOp := NewRichOp(op, model.Lamport(0))
	remote.TrackApply(richOp)

	remote.ApplyTrackedEffectsFrom(startVV, model.IDSpanVector{op.IDSpan()})

	require.Equal(t, "abc", remote.GetValue())
}

func TestTextContainerCheckHeadAgainstFrontierPassesWhenEqual(t *testing.T) {
	c, _, store := newTestTextContainer(t, 1)
	_, _ = c.Insert(store, 0, "abc")
	c.cfg.AssertHeadEqualsFrontier = true

	require.NotPanics(t, func() {
		c.CheckHeadAgainstFrontier(store.Frontier())
	})
}

func TestTextContainerContentHashMatchesForEqualContentAndDiffersOtherwise(t *testing.T) {
	ca, _, storeA := newTestTextContainer(t, 1)
	_, _ = ca.Insert(storeA, 0, "same text")

	cb, _, storeB := newTestTextContainer(t, 2)
	_, _ = cb.Insert(storeB, 0, "same text")

	require.Equal(t, ca.ContentHash(), cb.ContentHash())

	_, _ = cb.Insert(storeB, 0, "x")
	require.NotEqual(t, ca.ContentHash(), cb.ContentHash())
}

func TestTextContainerCheckHeadAgainstFrontierPanicsWhenDivergent(t *testing.T) {
	c, _, store := newTestTextContainer(t, 1)
	_, _ = c.Insert(store, 0, "abc")
	c.cfg.AssertHeadEqualsFrontier = true

	require.Panics(t, func() {
		c.CheckHeadAgainstFrontier([]model.ID{model.NewID(99, 0)})
	})
}
