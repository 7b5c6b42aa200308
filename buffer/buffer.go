package buffer

// Ring is a fixed-capacity circular buffer. Slots are allocated once and
// reused in place; when full, the newest item overwrites the oldest.
// It is not safe for concurrent use.
type Ring[T any] struct {
	tail  int // next write position
	count int
	size  int
	data  []T
}

// NewRing allocates size slots, calling init on each so that items holding
// slices can be sized up front.
func NewRing[T any](size int, init func(*T)) *Ring[T] {
	if size < 0 {
		size = 0
	}
	r := &Ring[T]{
		size: size,
		data: make([]T, size),
	}
	if init != nil {
		for i := range r.data {
			init(&r.data[i])
		}
	}
	return r
}

// Next claims the slot for a new item and returns it for filling in. If the
// ring was full the oldest item is lost and overwrote is true. A zero-size
// ring returns nil.
func (r *Ring[T]) Next() (slot *T, overwrote bool) {
	if r.size == 0 {
		return nil, false
	}
	slot = &r.data[r.tail]
	r.tail += 1
	if r.tail == r.size {
		r.tail = 0
	}
	if r.count == r.size {
		overwrote = true
	} else {
		r.count += 1
	}
	return slot, overwrote
}

// Oldest returns the oldest item, or nil when empty.
func (r *Ring[T]) Oldest() *T {
	if r.count == 0 {
		return nil
	}
	return &r.data[r.head()]
}

// Drop removes the oldest item.
func (r *Ring[T]) Drop() {
	if r.count > 0 {
		r.count -= 1
	}
}

// Each visits items oldest first until fn returns false.
func (r *Ring[T]) Each(fn func(*T) bool) {
	index := r.head()
	for i := 0; i < r.count; i++ {
		if !fn(&r.data[index]) {
			return
		}
		index += 1
		if index == r.size {
			index = 0
		}
	}
}

func (r *Ring[T]) head() int {
	index := r.tail - r.count
	if index < 0 {
		// we are at the start of the array, so need to reverse wrap
		index += r.size
	}
	return index
}

func (r *Ring[T]) Len() int {
	return r.count
}

func (r *Ring[T]) Cap() int {
	return r.size
}

func (r *Ring[T]) Full() bool {
	return r.count == r.size
}

func (r *Ring[T]) Empty() bool {
	return r.count == 0
}
