package arena

import (
	"ssw-text-crdt/internal/apperrors"
	"ssw-text-crdt/internal/model"
)

// OpConverter holds every arena lock needed to convert a batch of RawOps
// without re-acquiring them per op. It must only be constructed via
// WithOpConverter, which takes the locks in the fixed order the package
// documents to avoid deadlock across concurrent batch conversions:
// container-id table, container-id map, string, values, roots, parents.
type OpConverter struct {
	a *SharedArena
}

// WithOpConverter acquires all six arena locks in a fixed order and hands
// f a converter scoped to that critical section, so a sequence of ops can
// be interned without repeated lock/unlock thrashing.
func (a *SharedArena) WithOpConverter(f func(c *OpConverter)) {
	a.mu.containerIdxToID.Lock()
	defer a.mu.containerIdxToID.Unlock()
	a.mu.containerIDToIdx.Lock()
	defer a.mu.containerIDToIdx.Unlock()
	a.mu.str.Lock()
	defer a.mu.str.Unlock()
	a.mu.values.Lock()
	defer a.mu.values.Unlock()
	a.mu.roots.Lock()
	defer a.mu.roots.Unlock()
	a.mu.parents.Lock()
	defer a.mu.parents.Unlock()

	f(&OpConverter{a: a})
}

// registerLocked is RegisterContainer's body assuming every arena lock is
// already held by the caller (only valid from inside WithOpConverter).
func (c *OpConverter) registerLocked(id model.ContainerID) model.ContainerIdx {
	a := c.a
	if idx, ok := a.containerIDToIdx[id]; ok {
		return idx
	}
	index := uint32(len(a.containerIdxToID))
	idx := model.NewContainerIdx(index, id.Type)
	a.containerIdxToID = append(a.containerIdxToID, id)
	a.containerIDToIdx[id] = idx
	if id.IsRoot {
		a.rootIdx = append(a.rootIdx, idx)
		a.parents[idx] = nil
	}
	return idx
}

// ConvertSingleOp interns one RawOp's payload and registers its container
// if this is the first reference to it, returning the fully-interned Op.
// Only the text/rich-text kinds (insert text, delete, style start, style
// end) are converted; any other kind, such as OpMapSet, panics. There is
// no tree op kind, so no per-node metadata map container is ever
// registered here.
func (c *OpConverter) ConvertSingleOp(raw *model.RawOp) model.Op {
	container := c.registerLocked(raw.Container)
	return c.convertLocked(raw, container)
}

func (c *OpConverter) convertLocked(raw *model.RawOp, container model.ContainerIdx) model.Op {
	a := c.a
	switch raw.Kind {
	case model.OpInsertText:
		start := a.str.lenUnicode
		r := a.str.alloc(raw.RawInsertText.Str)
		return model.Op{
			ID:        raw.ID,
			Container: container,
			Kind:      model.OpInsertText,
			InsertText: model.InsertTextContent{
				Slice:      r,
				UnicodeLen: r.End - start,
				Pos:        raw.RawInsertText.Pos,
			},
		}
	case model.OpDelete:
		return model.Op{ID: raw.ID, Container: container, Kind: model.OpDelete, Delete: raw.Delete}
	case model.OpStyleStart:
		return model.Op{ID: raw.ID, Container: container, Kind: model.OpStyleStart, StyleStart: raw.StyleStart}
	case model.OpStyleEnd:
		return model.Op{ID: raw.ID, Container: container, Kind: model.OpStyleEnd}
	default:
		panic(apperrors.NewFatal(apperrors.CodeUnreachableVariant, "arena", "convertLocked",
			"raw op content variant not handled by the text/rich-text converter"))
	}
}

// ConvertRawOp interns a single RawOp outside of a batch, acquiring and
// releasing every needed lock itself.
func (a *SharedArena) ConvertRawOp(raw *model.RawOp) model.Op {
	var out model.Op
	a.WithOpConverter(func(c *OpConverter) {
		out = c.ConvertSingleOp(raw)
	})
	return out
}
