package player

import "time"

// renderWindow is a fixed-capacity ring of recent render durations.
type renderWindow struct {
	samples []time.Duration
	next    int
	full    bool
	sum     time.Duration
}

func newRenderWindow(capacity int) *renderWindow {
	return &renderWindow{samples: make([]time.Duration, capacity)}
}

func (w *renderWindow) Push(d time.Duration) {
	if len(w.samples) == 0 {
		return
	}
	w.sum += d - w.samples[w.next]
	w.samples[w.next] = d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

func (w *renderWindow) Full() bool {
	return w.full
}

func (w *renderWindow) Len() int {
	if w.full {
		return len(w.samples)
	}
	return w.next
}

func (w *renderWindow) Average() time.Duration {
	n := w.Len()
	if n == 0 {
		return 0
	}
	return w.sum / time.Duration(n)
}
