// Package queue provides a value-based binary heap used to keep bounded
// top-k candidate sets during neighbor search.
package queue

// Item is one candidate: a vector id and its distance to the query.
type Item struct {
	ID       uint32
	Distance float64
}

// Queue is a value-based binary heap of Items. A max queue keeps the
// worst candidate on top, which is the shape needed for bounded top-k
// collection; a min queue pops candidates nearest-first.
//
// Ordering is total: equal distances are broken by id, so heap contents
// and pop order never depend on insertion order.
type Queue struct {
	max   bool
	items []Item
}

// NewMax returns a max queue with the given capacity hint.
func NewMax(capacity int) *Queue {
	return &Queue{max: true, items: make([]Item, 0, capacity)}
}

// NewMin returns a min queue with the given capacity hint.
func NewMin(capacity int) *Queue {
	return &Queue{max: false, items: make([]Item, 0, capacity)}
}

// Len returns the number of items in the queue.
func (q *Queue) Len() int { return len(q.items) }

// Top returns the root item without removing it.
func (q *Queue) Top() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (q *Queue) Push(item Item) {
	q.items = append(q.items, item)
	q.siftUp(len(q.items) - 1)
}

// Pop removes and returns the root item.
func (q *Queue) Pop() (Item, bool) {
	n := len(q.items)
	if n == 0 {
		return Item{}, false
	}
	root := q.items[0]
	last := q.items[n-1]
	q.items[n-1] = Item{}
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	return root, true
}

// PushBounded inserts item into a max queue holding at most limit items,
// evicting the worst candidate when full. Returns true if the item was
// kept.
func (q *Queue) PushBounded(item Item, limit int) bool {
	if limit <= 0 {
		return false
	}
	if len(q.items) < limit {
		q.Push(item)
		return true
	}
	top := q.items[0]
	if !worse(top, item) {
		return false
	}
	q.items[0] = item
	q.siftDown(0)
	return true
}

// Drain empties the queue, returning items ordered nearest-first for a
// max queue (reverse pop order) and pop order for a min queue.
func (q *Queue) Drain() []Item {
	out := make([]Item, len(q.items))
	if q.max {
		for i := len(out) - 1; i >= 0; i-- {
			out[i], _ = q.Pop()
		}
	} else {
		for i := range out {
			out[i], _ = q.Pop()
		}
	}
	return out
}

// worse reports whether a ranks after b: greater distance, or equal
// distance and greater id.
func worse(a, b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.ID > b.ID
}

func (q *Queue) less(i, j int) bool {
	if q.max {
		return worse(q.items[i], q.items[j])
	}
	return worse(q.items[j], q.items[i])
}

func (q *Queue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *Queue) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
