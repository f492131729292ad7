package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssw-text-crdt/internal/model"
)

func TestRegisterContainerIsIdempotent(t *testing.T) {
	a := New(nil)
	id := model.NewRootContainerID("doc", model.ContainerTypeText)

	idx1 := a.RegisterContainer(id)
	idx2 := a.RegisterContainer(id)
	assert.Equal(t, idx1, idx2)

	back, ok := a.IdxToID(idx1)
	require.True(t, ok)
	assert.Equal(t, id, back)

	fetched, ok := a.IDToIdx(id)
	require.True(t, ok)
	assert.Equal(t, idx1, fetched)
}

func TestRegisterContainerDenseIndices(t *testing.T) {
	a := New(nil)
	idxA := a.RegisterContainer(model.NewRootContainerID("a", model.ContainerTypeText))
	idxB := a.RegisterContainer(model.NewRootContainerID("b", model.ContainerTypeRichtext))
	assert.Equal(t, uint32(0), idxA.Index())
	assert.Equal(t, uint32(1), idxB.Index())
	assert.Equal(t, model.ContainerTypeText, idxA.Type())
	assert.Equal(t, model.ContainerTypeRichtext, idxB.Type())
}

// Scenario / invariant 3 (spec.md §8): the arena is append-only — a
// previously returned SliceRange must keep resolving to the same bytes no
// matter what else is allocated afterward.
func TestArenaAppendOnlyInvariant(t *testing.T) {
	a := New(nil)
	r1 := a.AllocStr("hello")
	range1 := model.SliceRange{Start: r1.Start, End: r1.End}
	before := a.SliceStrByUnicode(range1)

	a.AllocStr(" world, this is more text")
	a.AllocStr("and yet more")

	after := a.SliceStrByUnicode(range1)
	assert.Equal(t, before, after)
	assert.Equal(t, "hello", after)
}

func TestAllocStrTracksUTF16Length(t *testing.T) {
	a := New(nil)
	// U+1F600 (grinning face) is one Unicode codepoint but two UTF-16
	// code units (a surrogate pair).
	res := a.AllocStr("a\U0001F600b")
	assert.Equal(t, uint32(3), res.End-res.Start)
	assert.Equal(t, uint32(4), res.UTF16Len)
}

func TestAllocStrWithSliceReturnsView(t *testing.T) {
	a := New(nil)
	view, start := a.AllocStrWithSlice("abc")
	assert.Equal(t, uint32(0), start)
	assert.Equal(t, "abc", view.String())
}

func TestParentGraphImmutableOnceSet(t *testing.T) {
	a := New(nil)
	child := a.RegisterContainer(model.NewNormalContainerID(model.NewID(1, 0), model.ContainerTypeText))
	parentA := a.RegisterContainer(model.NewRootContainerID("a", model.ContainerTypeText))
	parentB := a.RegisterContainer(model.NewRootContainerID("b", model.ContainerTypeText))

	a.SetParent(child, &parentA)
	a.SetParent(child, &parentB) // must be ignored: parent never changes once set

	got := a.GetParent(child)
	require.NotNil(t, got)
	assert.Equal(t, parentA, *got)
}

func TestWithAncestorsVisitsSelfThenChain(t *testing.T) {
	a := New(nil)
	root := a.RegisterContainer(model.NewRootContainerID("root", model.ContainerTypeText))
	mid := a.RegisterContainer(model.NewNormalContainerID(model.NewID(1, 0), model.ContainerTypeText))
	leaf := a.RegisterContainer(model.NewNormalContainerID(model.NewID(1, 1), model.ContainerTypeText))
	a.SetParent(mid, &root)
	a.SetParent(leaf, &mid)

	var visited []model.ContainerIdx
	var firstFlags []bool
	a.WithAncestors(leaf, func(idx model.ContainerIdx, isFirst bool) {
		visited = append(visited, idx)
		firstFlags = append(firstFlags, isFirst)
	})

	assert.Equal(t, []model.ContainerIdx{leaf, mid, root}, visited)
	assert.Equal(t, []bool{true, false, false}, firstFlags)
}

func TestSliceStrByUnicodePanicsOnUnknownRange(t *testing.T) {
	a := New(nil)
	unknown := model.UnknownSliceRange(4)
	assert.Panics(t, func() {
		a.SliceStrByUnicode(unknown)
	})
}

func TestWithOpConverterInternsBatchWithoutLockThrashing(t *testing.T) {
	a := New(nil)
	containerID := model.NewRootContainerID("doc", model.ContainerTypeText)

	raws := []*model.RawOp{
		{ID: model.NewID(1, 0), Container: containerID, Kind: model.OpInsertText,
			RawInsertText: model.RawInsertText{Str: "ab", Pos: 0}},
		{ID: model.NewID(1, 2), Container: containerID, Kind: model.OpInsertText,
			RawInsertText: model.RawInsertText{Str: "cd", Pos: 2}},
	}

	var ops []model.Op
	a.WithOpConverter(func(c *OpConverter) {
		for _, raw := range raws {
			ops = append(ops, c.ConvertSingleOp(raw))
		}
	})

	require.Len(t, ops, 2)
	assert.Equal(t, ops[0].Container, ops[1].Container)
	assert.Equal(t, "ab", a.SliceStrByUnicode(ops[0].InsertText.Slice))
	assert.Equal(t, "cd", a.SliceStrByUnicode(ops[1].InsertText.Slice))
}
