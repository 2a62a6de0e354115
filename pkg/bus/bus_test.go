package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesEveryListener(t *testing.T) {
	b := New[int]()
	var a, c []int

	b.Subscribe(func(v int) { a = append(a, v) })
	b.Subscribe(func(v int) { c = append(c, v) })

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, []int{1, 2}, a)
	assert.Equal(t, []int{1, 2}, c)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	var b Bus[string]
	var got []string

	unsubscribe := b.Subscribe(func(v string) { got = append(got, v) })
	b.Publish("one")
	unsubscribe()
	unsubscribe()
	b.Publish("two")

	assert.Equal(t, []string{"one"}, got)
	assert.Equal(t, 0, b.Len())
}

func TestUnsubscribeDuringNotification(t *testing.T) {
	b := New[int]()
	var first, second, third int

	var unsubSecond func()
	b.Subscribe(func(int) {
		first++
		unsubSecond()
	})
	unsubSecond = b.Subscribe(func(int) { second++ })
	b.Subscribe(func(int) { third++ })

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, 2, first)
	assert.Equal(t, 0, second, "listener removed before its turn must not be called")
	assert.Equal(t, 2, third, "other listeners must not be skipped")
}

func TestSelfUnsubscribeDuringNotification(t *testing.T) {
	b := New[int]()
	calls := 0
	others := 0

	var unsubscribe func()
	unsubscribe = b.Subscribe(func(int) {
		calls++
		unsubscribe()
	})
	b.Subscribe(func(int) { others++ })

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, others)
}

func TestSubscribeDuringNotificationSeesNextValue(t *testing.T) {
	b := New[int]()
	var late []int
	added := false

	b.Subscribe(func(int) {
		if !added {
			added = true
			b.Subscribe(func(v int) { late = append(late, v) })
		}
	})

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, []int{2}, late)
}

func TestReentrantPublishIsOrdered(t *testing.T) {
	b := New[int]()
	var seen []int

	b.Subscribe(func(v int) {
		if v == 1 {
			b.Publish(2)
			b.Publish(3)
		}
	})
	b.Subscribe(func(v int) { seen = append(seen, v) })

	b.Publish(1)

	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestConcurrentPublishDeliversAll(t *testing.T) {
	b := New[int]()
	var mu sync.Mutex
	count := 0
	b.Subscribe(func(int) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Publish(i)
		}(i)
	}
	wg.Wait()

	// Every Publish either drained itself or was queued behind an active
	// drainer that keeps going until the queue is empty.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 50
	}, time.Second, 5*time.Millisecond)
}

func TestPanickingListenerDoesNotWedgeBus(t *testing.T) {
	b := New[int]()
	got := 0
	unsubscribe := b.Subscribe(func(int) { panic("listener bug") })
	b.Subscribe(func(int) { got++ })

	assert.Panics(t, func() { b.Publish(1) })
	unsubscribe()

	b.Publish(2)
	assert.Equal(t, 1, got)
}

func TestQueueDefersUntilFlush(t *testing.T) {
	b := New[int]()
	var seen []int
	b.Subscribe(func(v int) { seen = append(seen, v) })

	b.Queue(1)
	b.Queue(2)
	assert.Empty(t, seen)

	b.Flush()
	assert.Equal(t, []int{1, 2}, seen)

	b.Flush()
	assert.Equal(t, []int{1, 2}, seen)
}
