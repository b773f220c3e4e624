package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/ambient/internal/ports"
)

func collect(t *testing.T, b *Bus, topics ...string) (func() []ports.Notification, func()) {
	t.Helper()
	var mu sync.Mutex
	var got []ports.Notification
	cancel := b.Subscribe(func(n ports.Notification) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, n)
	}, topics...)
	return func() []ports.Notification {
		mu.Lock()
		defer mu.Unlock()
		return append([]ports.Notification(nil), got...)
	}, cancel
}

func TestBus_TopicRouting(t *testing.T) {
	b := New()
	defer b.Close()

	weather, cancelW := collect(t, b, ports.TopicCurrentWeatherType)
	defer cancelW()
	all, cancelA := collect(t, b)
	defer cancelA()

	b.Publish(ports.TopicCurrentWeatherType, "module_5_weather", "rain")
	b.Publish(ports.TopicNewsFeed, "module_7_newsfeed", nil)

	require.Eventually(t, func() bool { return len(all()) == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(weather()) == 1 }, time.Second, time.Millisecond)

	n := weather()[0]
	assert.Equal(t, "rain", n.Payload)
	assert.Equal(t, "module_5_weather", n.Sender)
	_, err := uuid.Parse(n.ID)
	assert.NoError(t, err)
	assert.False(t, n.SentAt.IsZero())
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	b := New(WithQueueSize(1))
	defer b.Close()

	block := make(chan struct{})
	var handled atomic.Int32
	cancel := b.Subscribe(func(ports.Notification) {
		<-block
		handled.Add(1)
	})
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish("T", "s", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	close(block)
	require.Eventually(t, func() bool { return handled.Load() >= 1 }, time.Second, time.Millisecond)
	assert.LessOrEqual(t, handled.Load(), int32(2))
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	got, cancel := collect(t, b, "T")
	b.Publish("T", "s", 1)
	require.Eventually(t, func() bool { return len(got()) == 1 }, time.Second, time.Millisecond)

	cancel()
	cancel()
	b.Publish("T", "s", 2)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, got(), 1)
}

func TestBus_HandlerPanicIsContained(t *testing.T) {
	b := New()
	defer b.Close()

	var calls atomic.Int32
	cancel := b.Subscribe(func(n ports.Notification) {
		calls.Add(1)
		if n.Payload == "boom" {
			panic("handler bug")
		}
	})
	defer cancel()

	b.Publish("T", "s", "boom")
	b.Publish("T", "s", "ok")

	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
}

func TestBus_Close(t *testing.T) {
	b := New()
	got, cancel := collect(t, b)

	b.Close()
	b.Close()
	cancel()

	b.Publish("T", "s", 1)
	assert.Empty(t, got())

	late := b.Subscribe(func(ports.Notification) { t.Error("handler called after Close") })
	late()
}
