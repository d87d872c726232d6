// Package coverage implements the edge hit-count map shared between an
// instrumented harness and the feedback that judges it.
package coverage

// DefaultSize is the number of edge slots, matching the classic AFL map.
const DefaultSize = 1 << 16

// Map is a fixed-size hit-count map. It is owned by a single fuzzing
// instance and is not safe for concurrent use.
type Map struct {
	hits []uint8
}

func NewMap(size int) *Map {
	if size <= 0 {
		size = DefaultSize
	}
	return &Map{hits: make([]uint8, size)}
}

// Hit records one execution of edge id. Counts saturate at 255.
func (m *Map) Hit(id uint32) {
	i := int(id) % len(m.hits)
	if m.hits[i] != 0xff {
		m.hits[i]++
	}
}

// Edge records a transition between two locations, AFL style.
func (m *Map) Edge(prev, cur uint32) {
	m.Hit((prev >> 1) ^ cur)
}

func (m *Map) Reset() {
	clear(m.hits)
}

func (m *Map) Len() int {
	return len(m.hits)
}

// Hits returns the live map. Do not retain it across executions.
func (m *Map) Hits() []uint8 {
	return m.hits
}

// Count returns the number of edges hit at least once.
func (m *Map) Count() int {
	n := 0
	for _, h := range m.hits {
		if h != 0 {
			n++
		}
	}
	return n
}

// Bucket classifies a raw hit count into AFL's power-of-two buckets so that
// loop iteration noise does not count as new behavior.
func Bucket(h uint8) uint8 {
	switch {
	case h == 0:
		return 0
	case h == 1:
		return 1
	case h == 2:
		return 2
	case h == 3:
		return 4
	case h <= 7:
		return 8
	case h <= 15:
		return 16
	case h <= 31:
		return 32
	case h <= 127:
		return 64
	default:
		return 128
	}
}
