// Package rope implements the balanced-tree leaf storage shared by the
// plain-text and rich-text states (spec.md §4.3): an implicit treap keyed
// by position rather than by comparison key, augmented with the running
// Metrics of every subtree so it can be split/inserted/deleted in
// O(log n) along the dimension the tree addresses structurally, and
// queried (without splitting) along any other Metrics dimension.
package rope

import "ssw-text-crdt/internal/model"

// Splittable is implemented by leaf values that can be cut in two at an
// offset measured along the tree's structural dimension. Both SliceRange
// (plain-text leaves, split along Unicode) and RichtextChunk (rich-text
// leaves, split along entity index) satisfy this.
type Splittable[T any] interface {
	model.Leaf
	SplitLeaf(offset uint32) (T, T)
}

// node is one treap node. priority is a random heap key maintaining
// expected-O(log n) balance; agg is the Metrics of the node's entire
// subtree (left child, self, right child), refreshed bottom-up after any
// structural change.
type node[T Splittable[T]] struct {
	value    T
	priority uint64
	left     *node[T]
	right    *node[T]
	agg      model.Metrics
}

func (n *node[T]) metrics() model.Metrics {
	if n == nil {
		return model.Metrics{}
	}
	return n.agg
}

func (n *node[T]) update() {
	n.agg = n.left.metrics().Add(n.value.Metrics()).Add(n.right.metrics())
}

// Tree is a balanced sequence of T, structurally split/merged along Dim
// but queryable along any Metrics dimension. The zero value is not usable;
// construct with New.
type Tree[T Splittable[T]] struct {
	root *node[T]
	dim  model.Dimension
	rng  *xorshift
}

// New returns an empty Tree that splits and inserts along dim.
func New[T Splittable[T]](dim model.Dimension) *Tree[T] {
	return &Tree[T]{dim: dim, rng: newXorshift(0x9E3779B97F4A7C15)}
}

// xorshift is a tiny, dependency-free PRNG for treap priorities. Its
// output need not be cryptographically random, only well distributed
// enough to keep the treap balanced in expectation.
type xorshift struct{ state uint64 }

func newXorshift(seed uint64) *xorshift {
	if seed == 0 {
		seed = 1
	}
	return &xorshift{state: seed}
}

func (x *xorshift) next() uint64 {
	x.state ^= x.state << 13
	x.state ^= x.state >> 7
	x.state ^= x.state << 17
	return x.state
}

// Metrics returns the aggregate Metrics of the whole tree.
func (t *Tree[T]) Metrics() model.Metrics {
	return t.root.metrics()
}

// Len returns the tree's length along its structural dimension.
func (t *Tree[T]) Len() uint32 {
	return t.dim(t.root.metrics())
}

// split divides n into (left, right) such that left's structural-metric
// total is exactly target. If target falls inside a leaf, that leaf is
// cut via SplitLeaf so the boundary still lands exactly on target.
func (t *Tree[T]) split(n *node[T], target uint32) (*node[T], *node[T]) {
	if n == nil {
		return nil, nil
	}
	leftDim := t.dim(n.left.metrics())
	if target < leftDim {
		l, r := t.split(n.left, target)
		n.left = r
		n.update()
		return l, n
	}

	selfDim := t.dim(n.value.Metrics())
	offsetInSelf := target - leftDim
	if offsetInSelf == 0 {
		left := n.left
		n.left = nil
		n.update()
		return left, n
	}
	if offsetInSelf >= selfDim {
		l, r := t.split(n.right, target-leftDim-selfDim)
		n.right = l
		n.update()
		return n, r
	}

	// Boundary lands mid-leaf: cut the leaf value itself.
	leftPart, rightPart := n.value.SplitLeaf(offsetInSelf)
	leftNode := &node[T]{value: leftPart, priority: n.priority, left: n.left}
	leftNode.update()
	rightNode := &node[T]{value: rightPart, priority: t.rng.next(), right: n.right}
	rightNode.update()
	return leftNode, rightNode
}

// merge concatenates two treaps, preserving order. Standard treap merge:
// the higher-priority root wins and the other tree is merged into the
// appropriate child.
func merge[T Splittable[T]](a, b *node[T]) *node[T] {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.priority > b.priority {
		a.right = merge(a.right, b)
		a.update()
		return a
	}
	b.left = merge(a, b.left)
	b.update()
	return b
}

// InsertAt inserts value so that, measured along the tree's structural
// dimension, it lands exactly at position target.
func (t *Tree[T]) InsertAt(target uint32, value T) {
	l, r := t.split(t.root, target)
	mid := &node[T]{value: value, priority: t.rng.next()}
	mid.update()
	t.root = merge(merge(l, mid), r)
}

// DeleteRange removes [start, end) measured along the structural
// dimension and returns the removed leaves in order (possibly with their
// boundary leaves cut so the removed slice lines up exactly).
func (t *Tree[T]) DeleteRange(start, end uint32) []T {
	left, rest := t.split(t.root, start)
	mid, right := t.split(rest, end-start)
	t.root = merge(left, right)

	var removed []T
	iterate(mid, func(v T) bool {
		removed = append(removed, v)
		return true
	})
	return removed
}

// Iterate calls f with every leaf in order, stopping early if f returns
// false.
func (t *Tree[T]) Iterate(f func(T) bool) {
	iterate(t.root, f)
}

func iterate[T Splittable[T]](n *node[T], f func(T) bool) bool {
	if n == nil {
		return true
	}
	if !iterate(n.left, f) {
		return false
	}
	if !f(n.value) {
		return false
	}
	return iterate(n.right, f)
}

// Values returns every leaf in order as a slice.
func (t *Tree[T]) Values() []T {
	out := make([]T, 0)
	t.Iterate(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Rebuild replaces the tree's contents with values, in order, without
// going through repeated single-leaf inserts (used by snapshot loaders).
func (t *Tree[T]) Rebuild(values []T) {
	t.root = nil
	for _, v := range values {
		mid := &node[T]{value: v, priority: t.rng.next()}
		mid.update()
		t.root = merge(t.root, mid)
	}
}

// SeekResult is what Seek returns: the accumulated Metrics of every leaf
// strictly before the found leaf, the leaf itself, and how far into that
// leaf (along queryDim) the target position falls.
type SeekResult[T Splittable[T]] struct {
	Before       model.Metrics
	Leaf         T
	OffsetInLeaf uint32
	Found        bool
}

// Seek locates the leaf containing target measured along queryDim,
// without splitting anything. queryDim need not be the tree's structural
// dimension: this is how a rich-text rope translates a Unicode or UTF-16
// position into an entity index, by seeking along DimUnicode/DimUTF16 and
// reading Before.Entity.
func (t *Tree[T]) Seek(queryDim model.Dimension, target uint32) SeekResult[T] {
	return seek(t.root, queryDim, target, model.Metrics{})
}

func seek[T Splittable[T]](n *node[T], queryDim model.Dimension, target uint32, before model.Metrics) SeekResult[T] {
	if n == nil {
		return SeekResult[T]{Before: before, Found: false}
	}
	leftMetrics := n.left.metrics()
	leftDim := queryDim(leftMetrics)
	if target < leftDim {
		return seek(n.left, queryDim, target, before)
	}
	beforeSelf := before.Add(leftMetrics)
	selfDim := queryDim(n.value.Metrics())
	if target < leftDim+selfDim {
		return SeekResult[T]{Before: beforeSelf, Leaf: n.value, OffsetInLeaf: target - leftDim, Found: true}
	}
	return seek(n.right, queryDim, target-leftDim-selfDim, beforeSelf.Add(n.value.Metrics()))
}
