package tracker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ssw-text-crdt/internal/model"
	"ssw-text-crdt/internal/tracker"
)

func charPayload(ch rune) tracker.InsertPayload {
	return tracker.InsertPayload{Slice: model.SliceRange{Start: uint32(ch), End: uint32(ch) + 1}}
}

func insertContent(pos uint32, chars string) tracker.Content {
	atoms := make([]tracker.InsertPayload, 0, len(chars))
	for _, c := range chars {
		atoms = append(atoms, charPayload(c))
	}
	return tracker.Content{Kind: model.OpInsertText, Pos: pos, Atoms: atoms}
}

func visibleString(tr *tracker.Tracker) string {
	var out []rune
	for _, p := range tr.VisibleSequence() {
		out = append(out, rune(p.Slice.Start))
	}
	return string(out)
}

// Scenario A: two peers concurrently insert at the same position; the RGA
// sibling rule breaks the tie by peer ID, higher peer ID sorting first
// among same-lamport siblings of the same parent.
func TestTrackerConcurrentInsertTieBreaksByPeer(t *testing.T) {
	tr := tracker.New(model.NewVersionVector(), 0)

	tr.Apply(model.NewID(1, 0), 0, insertContent(0, "a"))
	tr.Apply(model.NewID(1, 1), 1, insertContent(1, "c"))
	// Both peers saw "ac" and insert concurrently at position 1 (between a
	// and c), at the same lamport: peer 3 must sort before peer 2.
	tr.Apply(model.NewID(2, 0), 2, insertContent(1, "X"))
	tr.Apply(model.NewID(3, 0), 2, insertContent(1, "Y"))

	require.Equal(t, "aYXc", visibleString(tr))
}

// Scenario B: deleting a run of atoms removes exactly that run and
// nothing else, independent of any other peer's concurrent activity.
func TestTrackerDeleteRemovesExactRun(t *testing.T) {
	tr := tracker.New(model.NewVersionVector(), 0)
	tr.Apply(model.NewID(1, 0), 0, insertContent(0, "hello"))
	require.Equal(t, "hello", visibleString(tr))

	tr.Apply(model.NewID(1, 5), 1, tracker.Content{Kind: model.OpDelete, Pos: 1, Len: 3})
	require.Equal(t, "ho", visibleString(tr))
}

// Scenario F: retreating an applied delete restores the deleted run,
// matching an aborted transaction's undo path.
func TestTrackerRetreatUndoesDelete(t *testing.T) {
	tr := tracker.New(model.NewVersionVector(), 0)
	tr.Apply(model.NewID(1, 0), 0, insertContent(0, "hello"))

	delID := model.NewID(1, 5)
	tr.Apply(delID, 1, tracker.Content{Kind: model.OpDelete, Pos: 1, Len: 3})
	require.Equal(t, "ho", visibleString(tr))

	tr.Retreat(model.IDSpanVector{model.NewIDSpan(1, 5, 3)})
	require.Equal(t, "hello", visibleString(tr))
}

// Invariant 6: forward+retreat is a no-op round trip over the visible
// sequence, whether toggling a whole op or only a prefix of it.
func TestTrackerForwardRetreatRoundTrips(t *testing.T) {
	tr := tracker.New(model.NewVersionVector(), 0)
	tr.Apply(model.NewID(1, 0), 0, insertContent(0, "hello"))

	span := model.NewIDSpan(1, 0, 5)
	before := visibleString(tr)

	tr.Retreat(model.IDSpanVector{span})
	require.Equal(t, "", visibleString(tr))

	tr.Forward(model.IDSpanVector{span})
	require.Equal(t, before, visibleString(tr))

	// Prefix-only forward (the shift branch of track_apply always forwards
	// a prefix measured from the op's own start, never a middle-anchored
	// span): forward a 3-atom prefix, then the full 5-atom span again.
	tr.Retreat(model.IDSpanVector{span})
	tr.Forward(model.IDSpanVector{span.Prefix(3)})
	require.Equal(t, "hel", visibleString(tr))
	tr.Forward(model.IDSpanVector{span})
	require.Equal(t, "hello", visibleString(tr))
}

func TestTrackerCheckoutMovesToArbitraryVersion(t *testing.T) {
	tr := tracker.New(model.NewVersionVector(), 0)
	tr.Apply(model.NewID(1, 0), 0, insertContent(0, "ab"))
	tr.Apply(model.NewID(1, 2), 1, insertContent(2, "cd"))
	require.Equal(t, "abcd", visibleString(tr))

	vv := model.NewVersionVector()
	vv.SetEnd(1, 2)
	tr.Checkout(vv)
	require.Equal(t, "ab", visibleString(tr))

	vv.SetEnd(1, 4)
	tr.Checkout(vv)
	require.Equal(t, "abcd", visibleString(tr))

	empty := model.NewVersionVector()
	tr.Checkout(empty)
	require.Equal(t, "", visibleString(tr))
}

func TestTrackerIterEffectsEmitsCoalescedRuns(t *testing.T) {
	tr := tracker.New(model.NewVersionVector(), 0)
	id := model.NewID(1, 0)
	tr.Apply(id, 0, insertContent(0, "abc"))

	// Retreat the whole op, then replay it through iter_effects and check
	// the emitted run matches what's now visible.
	full := model.NewIDSpan(1, 0, 3)
	tr.Retreat(model.IDSpanVector{full})
	require.Equal(t, "", visibleString(tr))

	eff := tr.IterEffects(model.IDSpanVector{full})
	var effects []tracker.Effect
	for {
		e, ok := eff.Next()
		if !ok {
			break
		}
		effects = append(effects, e)
	}

	require.Len(t, effects, 1)
	require.Equal(t, tracker.EffectInsert, effects[0].Kind)
	require.EqualValues(t, 0, effects[0].Pos)
	require.Len(t, effects[0].Inserts, 3)
	require.Equal(t, "abc", visibleString(tr))
}

func TestTrackerIterEffectsYieldsSeparateRunsAndDrains(t *testing.T) {
	tr := tracker.New(model.NewVersionVector(), 0)
	tr.Apply(model.NewID(1, 0), 0, insertContent(0, "a"))
	tr.Apply(model.NewID(2, 0), 1, insertContent(1, "X"))
	tr.Apply(model.NewID(3, 0), 2, insertContent(2, "b"))
	tr.Apply(model.NewID(4, 0), 3, insertContent(3, "Y"))
	require.Equal(t, "aXbY", visibleString(tr))

	xSpan := model.NewIDSpan(2, 0, 1)
	ySpan := model.NewIDSpan(4, 0, 1)
	tr.Retreat(model.IDSpanVector{xSpan, ySpan})
	require.Equal(t, "ab", visibleString(tr))

	// X and Y are separated by the always-visible "b", so bringing both
	// back online via iter_effects yields two distinct runs; a caller
	// that calls Next only once sees only the first.
	eff := tr.IterEffects(model.IDSpanVector{xSpan, ySpan})
	first, ok := eff.Next()
	require.True(t, ok)
	require.Equal(t, tracker.EffectInsert, first.Kind)
	require.EqualValues(t, 1, first.Pos)

	second, ok := eff.Next()
	require.True(t, ok)
	require.Equal(t, tracker.EffectInsert, second.Kind)

	_, ok = eff.Next()
	require.False(t, ok)
}
