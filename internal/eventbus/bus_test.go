package eventbus

import (
	"testing"
	"time"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()

	b := New[int]()
	a, unsubA := b.Subscribe(4, Lossy)
	c, unsubC := b.Subscribe(4, Lossless)
	defer unsubA()
	defer unsubC()

	b.Publish(1)
	b.Publish(2)
	for _, ch := range []<-chan int{a, c} {
		if got := <-ch; got != 1 {
			t.Fatalf("Got %d, want 1", got)
		}
		if got := <-ch; got != 2 {
			t.Fatalf("Got %d, want 2", got)
		}
	}
	if b.Dropped() != 0 {
		t.Fatalf("unexpected drops: %d", b.Dropped())
	}
}

func TestLossySubscriberDrops(t *testing.T) {
	t.Parallel()

	b := New[string]()
	ch, unsub := b.Subscribe(1, Lossy)
	b.Publish("a")
	b.Publish("b")
	b.Publish("c")
	if got := <-ch; got != "a" {
		t.Fatalf("Got %q, want a", got)
	}
	if b.Dropped() != 2 {
		t.Fatalf("Got dropped = %d, want 2", b.Dropped())
	}

	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
	if b.Subscribers() != 0 {
		t.Fatalf("Got %d subscribers, want 0", b.Subscribers())
	}
	b.Publish("d")
}

func TestLosslessSubscriberSeesEverything(t *testing.T) {
	t.Parallel()

	b := New[int]()
	ch, unsub := b.Subscribe(1, Lossless)
	defer unsub()

	const n = 100
	go func() {
		for i := range n {
			b.Publish(i)
		}
	}()
	for want := range n {
		select {
		case got := <-ch:
			if got != want {
				t.Fatalf("Got %d, want %d", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %d", want)
		}
	}
	if b.Dropped() != 0 {
		t.Fatalf("lossless subscriber dropped %d", b.Dropped())
	}
}

func TestUnsubscribeReleasesBlockedPublish(t *testing.T) {
	t.Parallel()

	b := New[int]()
	_, unsub := b.Subscribe(1, Lossless)
	b.Publish(1)

	done := make(chan struct{})
	go func() {
		b.Publish(2)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	unsub()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Publish stayed blocked after unsubscribe")
	}
}
