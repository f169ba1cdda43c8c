package indicator

// window is a bounded FIFO of the most recent values, backed by a
// preallocated circular buffer. Pushing into a full window evicts the oldest.
type window struct {
	period int
	buf    []float64
	start  int // index of the oldest value
	n      int // number of values held
}

func newWindow(period int) window {
	size := period
	if size < 1 {
		size = 1
	}
	return window{period: period, buf: make([]float64, size)}
}

func (w *window) push(v float64) {
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = v
		w.n++
		return
	}
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
}

func (w *window) len() int { return w.n }

// full reports whether the window holds exactly period values.
func (w *window) full() bool { return w.n == w.period }

// sum adds the values oldest first, matching a straight pass over the window.
func (w *window) sum() float64 {
	total := 0.0
	for i := 0; i < w.n; i++ {
		total += w.buf[(w.start+i)%len(w.buf)]
	}
	return total
}

func (w *window) mean() float64 {
	return w.sum() / float64(w.period)
}

// values returns a copy of the window contents, oldest first.
func (w *window) values() []float64 {
	out := make([]float64, w.n)
	for i := range out {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// load replaces the contents with vals (oldest first), keeping the newest
// values if vals is longer than the buffer.
func (w *window) load(vals []float64) {
	w.reset()
	for _, v := range vals {
		w.push(v)
	}
}

func (w *window) reset() {
	w.start = 0
	w.n = 0
	for i := range w.buf {
		w.buf[i] = 0
	}
}
