package model

// ContainerType tags the logical document-object kind a ContainerID names.
// Only Text and Richtext are implemented by this core; Map and Tree are
// type tags only; no container of either kind is implemented, and
// SharedArena.ConvertRawOp never registers one on its own.
type ContainerType uint8

const (
	ContainerTypeText ContainerType = iota
	ContainerTypeRichtext
	ContainerTypeMap
	ContainerTypeTree
)

func (t ContainerType) String() string {
	switch t {
	case ContainerTypeText:
		return "Text"
	case ContainerTypeRichtext:
		return "Richtext"
	case ContainerTypeMap:
		return "Map"
	case ContainerTypeTree:
		return "Tree"
	default:
		return "Unknown"
	}
}

// ContainerID is the identity of a logical document object: either a root
// (named, process-wide singleton) or a normal container (created by some
// peer's op, identified by that op's ID).
type ContainerID struct {
	IsRoot bool

	// Root fields.
	RootName string

	// Normal fields.
	CreatedBy ID

	Type ContainerType
}

// NewRootContainerID builds the identity of a named root container.
func NewRootContainerID(name string, t ContainerType) ContainerID {
	return ContainerID{IsRoot: true, RootName: name, Type: t}
}

// NewNormalContainerID builds the identity of a container created by the op
// with the given ID.
func NewNormalContainerID(createdBy ID, t ContainerType) ContainerID {
	return ContainerID{IsRoot: false, CreatedBy: createdBy, Type: t}
}

// ContainerIdx is a dense, process-local handle for a ContainerID. The high
// byte packs the container's type tag; the low bits are a dense index
// assigned at registration, stable for the arena's lifetime.
type ContainerIdx uint32

const containerIdxTypeShift = 24
const containerIdxIndexMask = 0x00FFFFFF

// NewContainerIdx packs an index and type tag into a ContainerIdx.
func NewContainerIdx(index uint32, t ContainerType) ContainerIdx {
	return ContainerIdx(uint32(t)<<containerIdxTypeShift | (index & containerIdxIndexMask))
}

// Index returns the dense index portion, masking off the type tag.
func (c ContainerIdx) Index() uint32 {
	return uint32(c) & containerIdxIndexMask
}

// Type returns the container type tag packed into the high byte.
func (c ContainerIdx) Type() ContainerType {
	return ContainerType(uint32(c) >> containerIdxTypeShift)
}
