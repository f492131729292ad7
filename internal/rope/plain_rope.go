package rope

import (
	"sort"
	"strings"
	"time"

	"ssw-text-crdt/internal/apperrors"
	"ssw-text-crdt/internal/arena"
	"ssw-text-crdt/internal/crdtlog"
	"ssw-text-crdt/internal/model"
	"ssw-text-crdt/internal/telemetry"
)

// Alive marks one contiguous run of an exported insert's content as live
// text or a garbage-collected placeholder, mirroring spec.md §4.3's
// Alive::True(len) / Alive::False(len) run-length encoding.
type Alive struct {
	IsAlive bool
	Len     uint32
}

// ExportSpan is one piece of an op's content as produced by ToExport: a
// run of real text, or an Unknown(len) placeholder for reclaimed bytes.
type ExportSpan struct {
	IsUnknown bool
	Text      string
	Len       uint32
}

// Rope is the plain-text rendered state: a balanced tree of SliceRange
// leaves over a cumulative Unicode-length metric, keyed into the shared
// arena. Insert and DeleteRange are O(log n); GetValue concatenates
// leaves by resolving each against the arena.
type Rope struct {
	tree *Tree[model.SliceRange]
	a    *arena.SharedArena
	log  *crdtlog.Logger

	totalEverInserted uint32
	deadRanges        []model.SliceRange
	deadSorted        bool
	gcLiveRatioThresh float64
}

// NewRope builds an empty plain-text rope backed by a.
func NewRope(a *arena.SharedArena, gcLiveRatioThreshold float64) *Rope {
	return &Rope{
		tree:              New[model.SliceRange](model.DimUnicode),
		a:                 a,
		log:               crdtlog.New("rope", nil),
		gcLiveRatioThresh: gcLiveRatioThreshold,
	}
}

// Len returns the rope's Unicode length.
func (r *Rope) Len() uint32 { return r.tree.Len() }

// Insert places slice (already interned into the arena) at Unicode
// position pos.
func (r *Rope) Insert(pos uint32, slice model.SliceRange) {
	start := time.Now()
	if pos > r.Len() {
		err := apperrors.NewFatal(apperrors.CodeIndexOutOfRange, "rope", "Insert", "insert index out of range").
			WithMetadata("pos", pos).WithMetadata("len", r.Len())
		r.log.FatalError(err)
		panic(err)
	}
	r.tree.InsertAt(pos, slice)
	r.totalEverInserted += slice.Len()
	telemetry.RopeOperationDuration.WithLabelValues("insert").Observe(time.Since(start).Seconds())
}

// DeleteRange removes the Unicode range [start, end), records the removed
// ranges as dead for later GC export, and returns them in order so a
// caller maintaining an undo stack can restore them verbatim.
func (r *Rope) DeleteRange(start, end uint32) []model.SliceRange {
	t0 := time.Now()
	if end > r.Len() || start > end {
		err := apperrors.NewFatal(apperrors.CodeIndexOutOfRange, "rope", "DeleteRange", "deletion out of range").
			WithMetadata("start", start).WithMetadata("end", end).WithMetadata("len", r.Len())
		r.log.FatalError(err)
		panic(err)
	}
	removed := r.tree.DeleteRange(start, end)
	for _, rr := range removed {
		if !rr.IsUnknown() {
			r.deadRanges = append(r.deadRanges, rr)
			r.deadSorted = false
		}
	}
	telemetry.RopeOperationDuration.WithLabelValues("delete").Observe(time.Since(t0).Seconds())
	return removed
}

// Iter calls f with every leaf in document order, stopping early if f
// returns false.
func (r *Rope) Iter(f func(model.SliceRange) bool) {
	r.tree.Iterate(f)
}

// GetValue concatenates every leaf into a string by resolving it against
// the arena. It is fatal to call this while any leaf is an Unknown
// (garbage-collected) placeholder: the caller asked to render text the
// engine has discarded.
func (r *Rope) GetValue() string {
	var b strings.Builder
	r.tree.Iterate(func(sl model.SliceRange) bool {
		if sl.IsUnknown() {
			err := apperrors.NewFatal(apperrors.CodeUnknownSlice, "rope", "GetValue",
				"attempted to materialize a garbage-collected slice range")
			r.log.FatalError(err)
			panic(err)
		}
		b.WriteString(r.a.SliceStrByUnicode(sl))
		return true
	})
	return b.String()
}

// shouldRecomputeAliveness reports whether the live/allocated ratio has
// degraded enough to justify re-sorting the dead-range index (spec.md
// §4.3: "recomputed lazily when the ratio ... degrades").
func (r *Rope) shouldRecomputeAliveness() bool {
	if r.totalEverInserted == 0 {
		return false
	}
	ratio := float64(r.Len()) / float64(r.totalEverInserted)
	return ratio < r.gcLiveRatioThresh
}

func (r *Rope) recomputeAliveness() {
	sort.Slice(r.deadRanges, func(i, j int) bool { return r.deadRanges[i].Start < r.deadRanges[j].Start })
	merged := r.deadRanges[:0]
	for _, d := range r.deadRanges {
		if n := len(merged); n > 0 && merged[n-1].End >= d.Start {
			if d.End > merged[n-1].End {
				merged[n-1].End = d.End
			}
		} else {
			merged = append(merged, d)
		}
	}
	r.deadRanges = merged
	r.deadSorted = true

	ratio := float64(r.Len()) / float64(maxu32(r.totalEverInserted, 1))
	telemetry.RopeGCLiveRatio.Set(ratio)
	r.log.WithFields(map[string]interface{}{"live_ratio": ratio, "dead_runs": len(merged)}, "recomputed rope aliveness")
}

func maxu32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// aliveRuns splits the arena-space range full into alternating alive/dead
// runs, consulting the merged dead-range index.
func (r *Rope) aliveRuns(full model.SliceRange) []Alive {
	if !r.deadSorted {
		r.recomputeAliveness()
	}
	var runs []Alive
	cursor := full.Start
	for _, d := range r.deadRanges {
		if d.End <= cursor || d.Start >= full.End {
			continue
		}
		deadStart := d.Start
		if deadStart < cursor {
			deadStart = cursor
		}
		deadEnd := d.End
		if deadEnd > full.End {
			deadEnd = full.End
		}
		if deadStart > cursor {
			runs = append(runs, Alive{IsAlive: true, Len: deadStart - cursor})
		}
		runs = append(runs, Alive{IsAlive: false, Len: deadEnd - deadStart})
		cursor = deadEnd
	}
	if cursor < full.End {
		runs = append(runs, Alive{IsAlive: true, Len: full.End - cursor})
	}
	if len(runs) == 0 {
		runs = append(runs, Alive{IsAlive: true, Len: 0})
	}
	return runs
}

// ToExport walks an insert op's interned content and, when gc is true,
// splits it into alive text runs and Unknown(len) placeholders for
// reclaimed bytes, per spec.md §4.3. When gc is false the whole range is
// returned as a single text span.
func (r *Rope) ToExport(full model.SliceRange, gc bool) []ExportSpan {
	if !gc {
		return []ExportSpan{{Text: r.a.SliceStrByUnicode(full), Len: full.Len()}}
	}
	if r.shouldRecomputeAliveness() {
		r.recomputeAliveness()
	}

	var spans []ExportSpan
	cursor := full.Start
	for _, run := range r.aliveRuns(full) {
		if run.Len == 0 {
			continue
		}
		sub := model.SliceRange{Start: cursor, End: cursor + run.Len}
		if run.IsAlive {
			spans = append(spans, ExportSpan{Text: r.a.SliceStrByUnicode(sub), Len: run.Len})
		} else {
			spans = append(spans, ExportSpan{IsUnknown: true, Len: run.Len})
		}
		cursor += run.Len
	}
	return spans
}
