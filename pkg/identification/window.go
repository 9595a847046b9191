package identification

// WindowSize is the number of most recent innovations each hypothesis keeps.
const WindowSize = 6

// InnovationWindow is a fixed-capacity FIFO of residual vectors. Pushing into a
// full window discards the oldest entry.
type InnovationWindow struct {
	dim   int
	buf   [][]float64
	start int
	count int
}

// NewInnovationWindow allocates a window for capacity vectors of length dim.
func NewInnovationWindow(capacity, dim int) *InnovationWindow {
	if capacity < 1 {
		capacity = 1
	}
	buf := make([][]float64, capacity)
	backing := make([]float64, capacity*dim)
	for i := range buf {
		buf[i] = backing[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return &InnovationWindow{dim: dim, buf: buf}
}

// Push copies v into the window.
func (w *InnovationWindow) Push(v []float64) {
	var slot []float64
	if w.count < len(w.buf) {
		slot = w.buf[(w.start+w.count)%len(w.buf)]
		w.count++
	} else {
		slot = w.buf[w.start]
		w.start = (w.start + 1) % len(w.buf)
	}
	copy(slot, v)
}

// Len returns the number of stored vectors.
func (w *InnovationWindow) Len() int {
	return w.count
}

// Cap returns the window capacity.
func (w *InnovationWindow) Cap() int {
	return len(w.buf)
}

// Reset empties the window.
func (w *InnovationWindow) Reset() {
	w.start = 0
	w.count = 0
}

// Snapshot returns copies of the stored vectors, oldest first.
func (w *InnovationWindow) Snapshot() [][]float64 {
	out := make([][]float64, 0, w.count)
	for i := 0; i < w.count; i++ {
		src := w.buf[(w.start+i)%len(w.buf)]
		out = append(out, append([]float64(nil), src...))
	}
	return out
}

// Mean writes the element-wise mean of the stored vectors into dst (allocated
// when nil or short) and returns it. An empty window has a zero mean.
func (w *InnovationWindow) Mean(dst []float64) []float64 {
	if cap(dst) < w.dim {
		dst = make([]float64, w.dim)
	}
	dst = dst[:w.dim]
	for j := range dst {
		dst[j] = 0
	}
	if w.count == 0 {
		return dst
	}
	for i := 0; i < w.count; i++ {
		src := w.buf[(w.start+i)%len(w.buf)]
		for j, v := range src {
			dst[j] += v
		}
	}
	n := float64(w.count)
	for j := range dst {
		dst[j] /= n
	}
	return dst
}
