package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_RegistrationOrder(t *testing.T) {
	var d Dispatcher[int]
	var got []string
	d.Subscribe(func(v int) { got = append(got, "a") })
	d.Subscribe(func(v int) { got = append(got, "b") })
	d.Subscribe(func(v int) { got = append(got, "c") })

	d.Emit(1)

	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 3, d.Len())
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	var d Dispatcher[int]
	calls := 0
	unsub := d.Subscribe(func(int) { calls++ })
	d.Emit(1)
	unsub()
	unsub()
	d.Emit(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, d.Len())
}

func TestDispatcher_NoReentrantDelivery(t *testing.T) {
	var d Dispatcher[int]
	depth, maxDepth := 0, 0
	var order []int
	d.Subscribe(func(v int) {
		depth++
		if depth > maxDepth {
			maxDepth = depth
		}
		order = append(order, v)
		if v < 3 {
			d.Emit(v + 1)
		}
		depth--
	})

	d.Emit(1)

	assert.Equal(t, 1, maxDepth, "handler must never run inside itself")
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDispatcher_GateStopsDelivery(t *testing.T) {
	var d Dispatcher[string]
	open := true
	var got []string
	d.Subscribe(func(s string) {
		got = append(got, "first")
		open = false
	})
	d.Subscribe(func(s string) { got = append(got, "second") })

	d.EmitGated("x", func() bool { return open })

	assert.Equal(t, []string{"first"}, got)
}

func TestDispatcher_UnsubscribeDuringDelivery(t *testing.T) {
	var d Dispatcher[int]
	var unsubB func()
	var got []string
	d.Subscribe(func(int) {
		got = append(got, "a")
		unsubB()
	})
	unsubB = d.Subscribe(func(int) { got = append(got, "b") })

	d.Emit(1)

	assert.Equal(t, []string{"a"}, got)
}
