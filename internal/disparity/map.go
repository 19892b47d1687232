// Dense disparity output
package disparity

// Map is a dense disparity image. Every cell holds either a disparity in
// [0, MaxDisparity] or Invalid, which is always MaxDisparity+1.
type Map[D Disparity] struct {
	Data         []D
	W, H         int
	MaxDisparity int
	Invalid      D
}

// Result is the kind-erased view of a Map
type Result interface {
	Width() int
	Height() int
	Range() int
	Subpixel() bool
	Value(x, y int) (float64, bool)
	InvalidCount() int
}

func newMap[D Disparity](width, height, maxDisparity int) *Map[D] {
	m := &Map[D]{
		Data:         make([]D, width*height),
		W:            width,
		H:            height,
		MaxDisparity: maxDisparity,
		Invalid:      D(maxDisparity + 1),
	}
	for i := range m.Data {
		m.Data[i] = m.Invalid
	}
	return m
}

func (m *Map[D]) Width() int  { return m.W }
func (m *Map[D]) Height() int { return m.H }
func (m *Map[D]) Range() int  { return m.MaxDisparity }

// Subpixel reports whether cells hold fractional disparities
func (m *Map[D]) Subpixel() bool {
	var zero D
	_, ok := any(zero).(float32)
	return ok
}

// At returns the raw cell, Invalid included
func (m *Map[D]) At(x, y int) D {
	return m.Data[y*m.W+x]
}

func (m *Map[D]) IsValid(x, y int) bool {
	return m.Data[y*m.W+x] != m.Invalid
}

// Value returns the disparity at (x, y) and whether it is valid
func (m *Map[D]) Value(x, y int) (float64, bool) {
	v := m.Data[y*m.W+x]
	if v == m.Invalid {
		return 0, false
	}
	return float64(v), true
}

func (m *Map[D]) InvalidCount() int {
	n := 0
	for _, v := range m.Data {
		if v == m.Invalid {
			n++
		}
	}
	return n
}

// winner returns the integer disparity at (x, y), -1 when invalid
func (m *Map[D]) winner(x, y int) int32 {
	v := m.Data[y*m.W+x]
	if v == m.Invalid {
		return -1
	}
	return int32(v)
}
