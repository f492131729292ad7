// Package logstoretest provides an in-memory container.LogStore for
// container package tests: a single peer issuing sequential IDs and
// recording every op appended, with no persistence or network behavior.
// Plain stateful fake rather than a testify/mock.Mock: these tests drive
// many ops through real NextID/AppendLocalOps bookkeeping and assert on
// the resulting document, not on a fixed call sequence, so there is
// nothing for expectation-based mocking to buy here.
package logstoretest

import "ssw-text-crdt/internal/model"

// Store is a single-peer in-memory LogStore.
type Store struct {
	Peer    model.PeerID
	next    model.Counter
	Ops     []model.Op
	indices map[model.ContainerID]model.ContainerIdx
}

// New builds a Store issuing IDs for peer.
func New(peer model.PeerID) *Store {
	return &Store{Peer: peer, indices: make(map[model.ContainerID]model.ContainerIdx)}
}

func (s *Store) NextID() model.ID {
	id := model.NewID(s.Peer, s.next)
	return id
}

// AppendLocalOps records ops and advances the counter past their span.
func (s *Store) AppendLocalOps(ops []model.Op) {
	for _, op := range ops {
		s.Ops = append(s.Ops, op)
		end := op.ID.Counter + model.Counter(op.AtomLen())
		if end > s.next {
			s.next = end
		}
	}
}

func (s *Store) GetOrCreateContainerIdx(id model.ContainerID) model.ContainerIdx {
	if idx, ok := s.indices[id]; ok {
		return idx
	}
	idx := model.NewContainerIdx(uint32(len(s.indices)), id.Type)
	s.indices[id] = idx
	return idx
}

func (s *Store) ThisClientID() model.PeerID { return s.Peer }

// Frontier returns the single-ID frontier implied by the last appended op.
func (s *Store) Frontier() []model.ID {
	if len(s.Ops) == 0 {
		return nil
	}
	last := s.Ops[len(s.Ops)-1]
	return []model.ID{last.ID.Inc(model.Counter(last.AtomLen() - 1))}
}
