package eventbus

import "testing"

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Publish("hello")
	v := <-ch
	if v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after unsubscribe")
	}
}

func TestBusClose(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	bus.Publish("ignored")
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("subscribe after close should return a closed channel")
	}
}

func TestBusUnsubscribeAfterClose(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := New()
	ch := bus.SubscribeN(1)
	bus.Publish(1)
	bus.Publish(2)
	if bus.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event got %d", bus.Dropped())
	}
	if v := <-ch; v != 1 {
		t.Fatalf("expected first event, got %v", v)
	}
}
