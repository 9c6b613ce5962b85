package tracker

// DefaultHistorySize is the number of observations kept per symbol.
const DefaultHistorySize = 10

// history is a fixed-capacity ring of prices; once full, each push overwrites the oldest.
type history struct {
	buf   []float64
	start int
	n     int
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &history{buf: make([]float64, capacity)}
}

func (h *history) push(price float64) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = price
		h.n++
		return
	}
	h.buf[h.start] = price
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history) len() int { return h.n }

// at returns the i-th oldest price.
func (h *history) at(i int) float64 {
	return h.buf[(h.start+i)%len(h.buf)]
}

func (h *history) last() (float64, bool) {
	if h.n == 0 {
		return 0, false
	}
	return h.at(h.n - 1), true
}

// lastTwo returns the previous and current observation.
func (h *history) lastTwo() (prev, cur float64, ok bool) {
	if h.n < 2 {
		return 0, 0, false
	}
	return h.at(h.n - 2), h.at(h.n - 1), true
}

func (h *history) values() []float64 {
	out := make([]float64, h.n)
	for i := range out {
		out[i] = h.at(i)
	}
	return out
}
