package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(delay time.Duration, agents int) (*MessageRouter, *ManualClock) {
	clock := NewManualClock(testEpoch)
	r := NewMessageRouter(delay, clock)
	for i := 0; i < agents; i++ {
		r.Register(i)
	}
	return r, clock
}

func TestMessageRouter_Broadcast_ReachesAllButSender(t *testing.T) {
	// GIVEN 4 registered agents
	r, _ := newTestRouter(0, 4)

	// WHEN agent 1 broadcasts
	r.Broadcast(1, Notice{Type: NoticeUpdate, Key: "k", Version: 1})

	// THEN agents 0, 2, 3 each have one pending notice and the sender none
	for id, want := range map[int]int{0: 1, 1: 0, 2: 1, 3: 1} {
		assert.Equal(t, want, r.Pending(id), "agent %d", id)
	}
	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Broadcasts)
	assert.Equal(t, int64(3), stats.Delivered)
	assert.Equal(t, 3, stats.Pending)
}

func TestMessageRouter_Delay_ChargedOncePerCall(t *testing.T) {
	// GIVEN a 5ms router
	r, clock := newTestRouter(5*time.Millisecond, 3)

	// WHEN one broadcast and one publish are issued
	r.Broadcast(0, Notice{Type: NoticeUpdate, Key: "k", Version: 1})
	r.Publish("t1", Notice{Type: NoticeUpdate, Key: "k", Version: 2})

	// THEN the caller paid exactly 10ms
	assert.Equal(t, testEpoch.Add(10*time.Millisecond), clock.Now())
	assert.Equal(t, 5*time.Millisecond, r.Delay())
}

func TestMessageRouter_Publish_OnlySubscribers(t *testing.T) {
	r, _ := newTestRouter(0, 3)
	r.Subscribe(0, "t1")
	r.Subscribe(2, "t1")
	r.Subscribe(1, "t2")

	r.Publish("t1", Notice{Type: NoticeUpdate, Key: "k", Version: 1})

	assert.Equal(t, []int{0, 2}, r.Subscribers("t1"))
	assert.Equal(t, 1, r.Pending(0))
	assert.Equal(t, 0, r.Pending(1))
	assert.Equal(t, 1, r.Pending(2))
}

func TestMessageRouter_Publish_NoSubscribers_DeliversNothing(t *testing.T) {
	r, _ := newTestRouter(0, 2)
	r.Publish("empty", Notice{Type: NoticeUpdate, Key: "k", Version: 1})
	assert.Equal(t, int64(0), r.Stats().Delivered)
	assert.Equal(t, int64(1), r.Stats().Broadcasts)
}

func TestMessageRouter_Unsubscribe(t *testing.T) {
	r, _ := newTestRouter(0, 2)
	r.Subscribe(0, "t")
	r.Subscribe(1, "t")
	r.Unsubscribe(0, "t")
	assert.Equal(t, []int{1}, r.Subscribers("t"))
	assert.Equal(t, 1, r.Stats().Topics)

	r.Unsubscribe(1, "t")
	r.Unsubscribe(1, "never")
	assert.Empty(t, r.Subscribers("t"))
	assert.Equal(t, 0, r.Stats().Topics)
}

func TestMessageRouter_Poll_FIFO_NonBlocking(t *testing.T) {
	r, _ := newTestRouter(0, 2)
	_, ok := r.Poll(1)
	assert.False(t, ok, "empty mailbox polls return immediately")
	_, ok = r.Poll(42)
	assert.False(t, ok, "unregistered agents have no mailbox")

	r.Broadcast(0, Notice{Type: NoticeUpdate, Key: "a", Version: 1})
	r.Broadcast(0, Notice{Type: NoticeUpdate, Key: "b", Version: 1})

	first, ok := r.Poll(1)
	require.True(t, ok)
	second, ok := r.Poll(1)
	require.True(t, ok)
	assert.Equal(t, "a", first.Key)
	assert.Equal(t, "b", second.Key)
	assert.Equal(t, 0, r.Pending(1))
}

func TestMessageRouter_Register_Idempotent(t *testing.T) {
	r, _ := newTestRouter(0, 2)
	r.Register(1)
	r.Broadcast(0, Notice{Type: NoticeUpdate, Key: "a", Version: 1})
	assert.Equal(t, 1, r.Pending(1))
	assert.Equal(t, int64(1), r.Stats().Delivered)
}
