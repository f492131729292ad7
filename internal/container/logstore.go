// Package container implements the per-document container layer that
// sits between the shared arena/tracker machinery and the outside world:
// TextContainer and RichtextContainer, each owning a rendered rope plus a
// Tracker indexing every op ever seen, grounded on
// original_source/crates/loro-core/src/container/text/text_container.rs
// and .../loro-internal/src/state/richtext_state.rs.
package container

import "ssw-text-crdt/internal/model"

// LogStore is the subset of the op log a container needs to create local
// edits: a source of fresh IDs, a place to append the resulting ops, and
// container-index registration. Mirrors the loro-core Context/LogStore
// split: TextContainer.insert/delete never touch the log's storage
// directly, only this narrow seam.
type LogStore interface {
	// NextID returns the ID the next local op will start at. A store may
	// move past it only once the op is passed to AppendLocalOps.
	NextID() model.ID
	// AppendLocalOps records ops as newly created by this client.
	AppendLocalOps(ops []model.Op)
	// GetOrCreateContainerIdx resolves (registering if necessary) the
	// dense index for a container identity.
	GetOrCreateContainerIdx(id model.ContainerID) model.ContainerIdx
	// ThisClientID returns the peer ID local edits are attributed to.
	ThisClientID() model.PeerID
}
