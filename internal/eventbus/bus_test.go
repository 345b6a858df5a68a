package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	id1, ch1 := bus.Subscribe(4)
	_, ch2 := bus.Subscribe(4)
	assert.NotEmpty(t, id1)

	bus.PublishNew(EventCreated, "t1", 3)

	for _, ch := range []<-chan Event{ch1, ch2} {
		ev := <-ch
		assert.Equal(t, EventCreated, ev.Type)
		assert.Equal(t, "t1", ev.TaskID)
		assert.Equal(t, uint64(3), ev.Version)
		assert.NotEmpty(t, ev.ID)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")

	// publishing after unsubscribe must not panic on the closed channel
	bus.PublishNew(EventReset, "", 1)
	bus.Unsubscribe(id)
}

func TestBus_FullBufferDrops(t *testing.T) {
	bus := New()
	_, ch := bus.Subscribe(1)

	bus.PublishNew(EventCreated, "a", 1)
	bus.PublishNew(EventCreated, "b", 2)

	ev := <-ch
	require.Equal(t, "a", ev.TaskID)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %v", extra)
	default:
	}
}
