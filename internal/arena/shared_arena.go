// Package arena implements the SharedArena: the process-local, append-only
// pool that interns text and values and tracks container identity and
// parentage, shared by reference between the op log and every container
// state (spec.md §4.1).
package arena

import (
	"sync"

	"ssw-text-crdt/internal/apperrors"
	"ssw-text-crdt/internal/crdtlog"
	"ssw-text-crdt/internal/model"
	"ssw-text-crdt/internal/telemetry"
)

// StrAllocResult is returned by AllocStr: the Unicode range the string now
// occupies, plus how many UTF-16 code units it contributed.
type StrAllocResult struct {
	Start      uint32
	End        uint32
	UTF16Len   uint32
}

// View is a non-owning reference to a span of the shared arena's string
// pool: an (arena, range) pair rather than a raw pointer, per spec.md §9's
// design note on avoiding cyclic/raw references into append-only storage.
type View struct {
	arena *SharedArena
	Range model.SliceRange
}

// Bytes resolves the view against the arena's current backing storage.
// Safe to call without external synchronization: the string arena is
// append-only, so previously allocated bytes are never relocated.
func (v View) Bytes() []byte {
	if v.arena == nil {
		return nil
	}
	v.arena.mu.str.Lock()
	defer v.arena.mu.str.Unlock()
	return v.arena.str.sliceBytes(v.Range)
}

// String materializes the view as a Go string (a copy).
func (v View) String() string {
	return string(v.Bytes())
}

// locks bundles the six independent mutexes SharedArena coordinates, kept
// unexported so no caller outside this package can ever see or hold one
// directly (spec.md §9: "do not expose the locks").
type locks struct {
	containerIdxToID sync.Mutex
	containerIDToIdx sync.Mutex
	str              sync.Mutex
	values           sync.Mutex
	roots            sync.Mutex
	parents          sync.Mutex
}

// SharedArena is the single source of truth for interned strings, interned
// values, container identity<->index mapping, and the container parent
// graph. It is shared by reference between the op log and every container
// state; all access goes through interior locking.
type SharedArena struct {
	mu locks

	containerIdxToID []model.ContainerID
	containerIDToIdx map[model.ContainerID]model.ContainerIdx
	parents          map[model.ContainerIdx]*model.ContainerIdx
	rootIdx          []model.ContainerIdx

	str    *stringArena
	values []interface{}

	log *crdtlog.Logger
}

// New builds an empty SharedArena logging through log, or through a
// default arena logger when log is nil.
func New(log *crdtlog.Logger) *SharedArena {
	if log == nil {
		log = crdtlog.New("arena", nil)
	}
	return &SharedArena{
		containerIDToIdx: make(map[model.ContainerID]model.ContainerIdx),
		parents:          make(map[model.ContainerIdx]*model.ContainerIdx),
		str:              newStringArena(),
		log:              log,
	}
}

// RegisterContainer is idempotent: if id is already known its ContainerIdx
// is returned, otherwise one is assigned densely and, for root containers,
// its parent is recorded as None and it is added to the root list.
func (a *SharedArena) RegisterContainer(id model.ContainerID) model.ContainerIdx {
	a.mu.containerIDToIdx.Lock()
	if idx, ok := a.containerIDToIdx[id]; ok {
		a.mu.containerIDToIdx.Unlock()
		return idx
	}
	a.mu.containerIDToIdx.Unlock()

	a.mu.containerIDToIdx.Lock()
	defer a.mu.containerIDToIdx.Unlock()
	// Re-check under the write section in case of a race between the
	// optimistic read above and here; every writer of this map
	// (RegisterContainer, and OpConverter.registerLocked inside
	// WithOpConverter) holds this same lock, so a second lookup suffices.
	if idx, ok := a.containerIDToIdx[id]; ok {
		return idx
	}

	a.mu.containerIdxToID.Lock()
	index := uint32(len(a.containerIdxToID))
	idx := model.NewContainerIdx(index, id.Type)
	a.containerIdxToID = append(a.containerIdxToID, id)
	a.mu.containerIdxToID.Unlock()

	a.containerIDToIdx[id] = idx

	if id.IsRoot {
		a.mu.roots.Lock()
		a.rootIdx = append(a.rootIdx, idx)
		a.mu.roots.Unlock()

		a.mu.parents.Lock()
		a.parents[idx] = nil
		a.mu.parents.Unlock()
	}

	telemetry.ArenaContainersRegistered.Set(float64(len(a.containerIdxToID)))
	return idx
}

// IDToIdx looks up the dense index for a ContainerID.
func (a *SharedArena) IDToIdx(id model.ContainerID) (model.ContainerIdx, bool) {
	a.mu.containerIDToIdx.Lock()
	defer a.mu.containerIDToIdx.Unlock()
	idx, ok := a.containerIDToIdx[id]
	return idx, ok
}

// IdxToID reverses IDToIdx.
func (a *SharedArena) IdxToID(idx model.ContainerIdx) (model.ContainerID, bool) {
	a.mu.containerIdxToID.Lock()
	defer a.mu.containerIdxToID.Unlock()
	i := int(idx.Index())
	if i < 0 || i >= len(a.containerIdxToID) {
		return model.ContainerID{}, false
	}
	return a.containerIdxToID[i], true
}

// AllocStr appends str to the string pool and returns the Unicode range it
// now occupies and how many UTF-16 code units it contributed.
func (a *SharedArena) AllocStr(str string) StrAllocResult {
	a.mu.str.Lock()
	defer a.mu.str.Unlock()
	startUTF16 := a.str.lenUTF16
	r := a.str.alloc(str)
	telemetry.ArenaAllocatedUnicodeTotal.Add(float64(r.Len()))
	return StrAllocResult{Start: r.Start, End: r.End, UTF16Len: a.str.lenUTF16 - startUTF16}
}

// AllocStrWithSlice is like AllocStr but returns a non-owning View instead
// of the raw range, for callers that will embed it directly into an Op.
func (a *SharedArena) AllocStrWithSlice(str string) (View, uint32) {
	a.mu.str.Lock()
	start := a.str.lenUnicode
	r := a.str.alloc(str)
	a.mu.str.Unlock()
	telemetry.ArenaAllocatedUnicodeTotal.Add(float64(r.Len()))
	return View{arena: a, Range: r}, start
}

// AllocValue appends one value to the interned-value pool and returns its
// index.
func (a *SharedArena) AllocValue(v interface{}) uint32 {
	a.mu.values.Lock()
	defer a.mu.values.Unlock()
	a.values = append(a.values, v)
	return uint32(len(a.values) - 1)
}

// AllocValues appends a batch of values and returns the index range they
// now occupy.
func (a *SharedArena) AllocValues(vs []interface{}) (uint32, uint32) {
	a.mu.values.Lock()
	defer a.mu.values.Unlock()
	start := uint32(len(a.values))
	a.values = append(a.values, vs...)
	return start, uint32(len(a.values))
}

// SliceByUnicode resolves a Unicode range into a non-owning View.
func (a *SharedArena) SliceByUnicode(r model.SliceRange) View {
	return View{arena: a, Range: r}
}

// SliceByUTF8 resolves a byte-offset range directly.
func (a *SharedArena) SliceByUTF8(start, end uint32) []byte {
	a.mu.str.Lock()
	defer a.mu.str.Unlock()
	return a.str.sliceBytesByUTF8(start, end)
}

// SliceStrByUnicode materializes a Unicode range as a string.
func (a *SharedArena) SliceStrByUnicode(r model.SliceRange) string {
	if r.IsUnknown() {
		err := apperrors.NewFatal(apperrors.CodeUnknownSlice, "arena", "SliceStrByUnicode",
			"attempted to materialize a garbage-collected slice range")
		a.log.FatalError(err)
		panic(err)
	}
	a.mu.str.Lock()
	defer a.mu.str.Unlock()
	return a.str.sliceStr(r)
}

// UTF16Len returns how many UTF-16 code units the given Unicode range
// occupies.
func (a *SharedArena) UTF16Len(r model.SliceRange) uint32 {
	a.mu.str.Lock()
	defer a.mu.str.Unlock()
	return a.str.utf16LenOf(r)
}

// SetParent records child's parent. A container's parent, once set, never
// changes thereafter (spec.md §3 invariant); callers that need to move a
// container must register a new ContainerID instead.
func (a *SharedArena) SetParent(child model.ContainerIdx, parent *model.ContainerIdx) {
	a.mu.parents.Lock()
	defer a.mu.parents.Unlock()
	if _, exists := a.parents[child]; !exists {
		a.parents[child] = parent
	}
}

// GetParent returns child's parent, or nil if child is a root or unknown.
func (a *SharedArena) GetParent(child model.ContainerIdx) *model.ContainerIdx {
	a.mu.parents.Lock()
	defer a.mu.parents.Unlock()
	return a.parents[child]
}

// WithAncestors visits container, then each ancestor in turn, calling f
// with a first-time flag (true only for the initial container itself).
func (a *SharedArena) WithAncestors(container model.ContainerIdx, f func(idx model.ContainerIdx, isFirst bool)) {
	cur := &container
	first := true
	for cur != nil {
		f(*cur, first)
		first = false
		cur = a.GetParent(*cur)
	}
}

// RootContainers returns every root-registered ContainerIdx.
func (a *SharedArena) RootContainers() []model.ContainerIdx {
	a.mu.roots.Lock()
	defer a.mu.roots.Unlock()
	out := make([]model.ContainerIdx, len(a.rootIdx))
	copy(out, a.rootIdx)
	return out
}

// IsEmpty reports whether nothing has ever been interned.
func (a *SharedArena) IsEmpty() bool {
	a.mu.containerIDToIdx.Lock()
	n := len(a.containerIDToIdx)
	a.mu.containerIDToIdx.Unlock()
	if n != 0 {
		return false
	}
	a.mu.str.Lock()
	empty := a.str.isEmpty()
	a.mu.str.Unlock()
	return empty
}
