package queue

// boundedList keeps the most recent terminal items, oldest first.
// Pushing past the limit evicts from the head. Not safe for concurrent use;
// the queue lock guards it.
type boundedList struct {
	limit int
	items []*Item
	index map[string]*Item
}

func newBoundedList(limit int) *boundedList {
	if limit <= 0 {
		limit = 1
	}
	return &boundedList{
		limit: limit,
		index: make(map[string]*Item),
	}
}

// push appends it and returns how many old entries were evicted.
func (l *boundedList) push(it *Item) int {
	l.items = append(l.items, it)
	l.index[it.ID] = it

	overflow := len(l.items) - l.limit
	if overflow <= 0 {
		return 0
	}
	for i := 0; i < overflow; i++ {
		delete(l.index, l.items[i].ID)
		l.items[i] = nil
	}
	l.items = l.items[overflow:]
	return overflow
}

func (l *boundedList) get(id string) (*Item, bool) {
	it, ok := l.index[id]
	return it, ok
}

func (l *boundedList) len() int {
	return len(l.items)
}

// recent returns up to n items, newest first. n <= 0 means all.
func (l *boundedList) recent(n int) []*Item {
	if n <= 0 || n > len(l.items) {
		n = len(l.items)
	}
	out := make([]*Item, 0, n)
	for i := len(l.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.items[i])
	}
	return out
}

func (l *boundedList) clear() int {
	n := len(l.items)
	l.items = nil
	l.index = make(map[string]*Item)
	return n
}

// durationWindow is a sliding window over the last size processing durations.
type durationWindow struct {
	size   int
	values []float64
}

func newDurationWindow(size int) *durationWindow {
	if size <= 0 {
		size = 1
	}
	return &durationWindow{size: size}
}

func (w *durationWindow) add(ms float64) {
	w.values = append(w.values, ms)
	if len(w.values) > w.size {
		w.values = w.values[len(w.values)-w.size:]
	}
}

func (w *durationWindow) average() float64 {
	if len(w.values) == 0 {
		return 0
	}
	var total float64
	for _, v := range w.values {
		total += v
	}
	return total / float64(len(w.values))
}
