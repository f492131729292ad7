package container

import (
	"github.com/cespare/xxhash/v2"

	"ssw-text-crdt/internal/arena"
	"ssw-text-crdt/internal/model"
)

// Container is the dispatch surface shared by TextContainer and
// RichtextContainer, mirroring loro-core's Container trait (spec.md §6).
// ToExport is not part of this interface: only TextContainer implements
// it (returning rope.ExportSpan runs); RichtextContainer has no ToExport.
type Container interface {
	ID() model.ContainerID
	Type() model.ContainerType
	GetValue() string

	// ContentHash returns a content-addressed hash of GetValue(), cheap
	// enough to call after every remote batch to detect convergence
	// without diffing the whole document.
	ContentHash() uint64

	// ToImport interns a wire-format op's raw payload into the shared
	// arena, producing the interned Op a container can apply. Identical
	// for every container type since arena.OpConverter already dispatches
	// on the raw op's kind.
	ToImport(conv *arena.OpConverter, raw *model.RawOp) model.Op

	// UpdateStateDirectly applies op straight to rendered state, bypassing
	// the tracker: used when the op is already known to be causally next.
	UpdateStateDirectly(op RichOp)

	TrackRetreat(spans model.IDSpanVector)
	TrackForward(spans model.IDSpanVector)
	TrackerCheckout(vv model.VersionVector)
	TrackApply(op RichOp)
	ApplyTrackedEffectsFrom(from model.VersionVector, effectSpans model.IDSpanVector)
}

// contentHash hashes value with xxhash, the non-cryptographic checksum
// both TextContainer.ContentHash and RichtextContainer.ContentHash use.
func contentHash(value string) uint64 {
	return xxhash.Sum64String(value)
}

// idSetsEqual compares two ID slices as sets, ignoring order: a
// container's head and a log store's frontier are both conceptually
// SmallVec<ID> with no canonical ordering.
func idSetsEqual(a, b []model.ID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[model.ID]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		seen[id]--
		if seen[id] < 0 {
			return false
		}
	}
	return true
}
