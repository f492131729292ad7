package model

// Metrics aggregates the three parallel length dimensions the rope
// packages track simultaneously: Unicode codepoints, UTF-16 code units,
// and entity slots (codepoints plus zero-width style anchors). Plain-text
// ropes only ever populate Unicode; rich-text ropes populate all three.
type Metrics struct {
	Unicode uint32
	UTF16   uint32
	Entity  uint32
}

// Add returns the componentwise sum of m and o.
func (m Metrics) Add(o Metrics) Metrics {
	return Metrics{
		Unicode: m.Unicode + o.Unicode,
		UTF16:   m.UTF16 + o.UTF16,
		Entity:  m.Entity + o.Entity,
	}
}

// Sub returns the componentwise difference m - o.
func (m Metrics) Sub(o Metrics) Metrics {
	return Metrics{
		Unicode: m.Unicode - o.Unicode,
		UTF16:   m.UTF16 - o.UTF16,
		Entity:  m.Entity - o.Entity,
	}
}

// Dimension selects one scalar component out of a Metrics value, letting
// the rope's generic tree be walked/split along Unicode, UTF-16, or entity
// position interchangeably.
type Dimension func(Metrics) uint32

// DimUnicode addresses position in Unicode codepoints.
func DimUnicode(m Metrics) uint32 { return m.Unicode }

// DimUTF16 addresses position in UTF-16 code units.
func DimUTF16(m Metrics) uint32 { return m.UTF16 }

// DimEntity addresses position in entity-index slots.
func DimEntity(m Metrics) uint32 { return m.Entity }

// Leaf is implemented by every value a rope tree can store as a leaf.
type Leaf interface {
	Metrics() Metrics
}

// Metrics reports a SliceRange's length along the Unicode dimension only;
// the plain-text rope never addresses by UTF-16 or entity index.
func (r SliceRange) Metrics() Metrics {
	return Metrics{Unicode: r.Len()}
}

// Metrics reports a RichtextChunk's length along all three dimensions: a
// text chunk contributes its Unicode/UTF-16 length and an equal number of
// entity slots; a style anchor is zero-width in Unicode/UTF-16 but
// occupies exactly one entity slot.
func (c RichtextChunk) Metrics() Metrics {
	if c.IsStyle {
		return Metrics{Entity: 1}
	}
	return Metrics{Unicode: c.UnicodeLen, UTF16: c.UTF16Len, Entity: c.UnicodeLen}
}
