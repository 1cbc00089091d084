package sse

import "testing"

func TestPublishSubscribe(t *testing.T) {
	var h Hub

	a, cancelA := h.Subscribe("run")
	b, cancelB := h.Subscribe("run")
	other, cancelOther := h.Subscribe("other")
	defer cancelOther()

	if n := h.Publish("run", "hello"); n != 2 {
		t.Fatalf("delivered to %d subscribers, want 2", n)
	}
	for _, ch := range []<-chan string{a, b} {
		if msg := <-ch; msg != "hello" {
			t.Errorf("got %q", msg)
		}
	}
	select {
	case msg := <-other:
		t.Errorf("other run received %q", msg)
	default:
	}

	cancelA()
	cancelA()
	if n := h.Subscribers("run"); n != 1 {
		t.Errorf("%d subscribers after cancel, want 1", n)
	}
	cancelB()
	if n := h.Publish("run", "bye"); n != 0 {
		t.Errorf("delivered to %d subscribers after cancel", n)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	var h Hub
	ch, cancel := h.Subscribe("run")
	defer cancel()

	for i := 0; i < cap(ch); i++ {
		if n := h.Publish("run", "x"); n != 1 {
			t.Fatalf("message %d not delivered", i)
		}
	}
	if n := h.Publish("run", "overflow"); n != 0 {
		t.Errorf("full channel accepted a message")
	}
}
