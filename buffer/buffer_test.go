package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	id   int
	vals []int
}

func push(r *Ring[item], id int) bool {
	slot, overwrote := r.Next()
	slot.id = id
	return overwrote
}

func contents(r *Ring[item]) []int {
	var ids []int
	r.Each(func(it *item) bool {
		ids = append(ids, it.id)
		return true
	})
	return ids
}

func TestRingKeepsNewest(t *testing.T) {
	r := NewRing[item](3, nil)

	assert.False(t, push(r, 1))
	assert.False(t, push(r, 2))
	assert.False(t, push(r, 3))
	assert.True(t, r.Full())
	assert.True(t, push(r, 4))
	assert.True(t, push(r, 5))

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, contents(r))
}

func TestRingDrainOldestFirst(t *testing.T) {
	r := NewRing[item](3, nil)
	for i := 1; i <= 5; i++ {
		push(r, i)
	}

	var drained []int
	for !r.Empty() {
		drained = append(drained, r.Oldest().id)
		r.Drop()
	}
	assert.Equal(t, []int{3, 4, 5}, drained)
	assert.Nil(t, r.Oldest())

	// still usable after draining
	push(r, 6)
	push(r, 7)
	assert.Equal(t, []int{6, 7}, contents(r))
}

func TestRingPartialDrain(t *testing.T) {
	r := NewRing[item](4, nil)
	for i := 1; i <= 4; i++ {
		push(r, i)
	}
	r.Drop()
	push(r, 5)
	push(r, 6)
	assert.Equal(t, []int{3, 4, 5, 6}, contents(r))
}

func TestRingSlotsReused(t *testing.T) {
	r := NewRing[item](2, func(it *item) {
		it.vals = make([]int, 0, 4)
	})
	slot, _ := r.Next()
	require.Equal(t, 4, cap(slot.vals))
	slot.vals = append(slot.vals, 1, 2)

	r.Next()
	again, overwrote := r.Next()
	assert.True(t, overwrote)
	// same backing slot, caller resets contents
	assert.Equal(t, []int{1, 2}, again.vals)
}

func TestRingEachStops(t *testing.T) {
	r := NewRing[item](3, nil)
	push(r, 1)
	push(r, 2)
	n := 0
	r.Each(func(*item) bool {
		n++
		return false
	})
	assert.Equal(t, 1, n)
}

func TestZeroSizeRing(t *testing.T) {
	r := NewRing[item](0, nil)
	slot, overwrote := r.Next()
	assert.Nil(t, slot)
	assert.False(t, overwrote)
	assert.True(t, r.Full())
	assert.True(t, r.Empty())
	assert.Equal(t, 0, r.Cap())
}
