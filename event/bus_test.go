package event

import (
	"testing"
)

func TestPublishFansOut(t *testing.T) {
	b := NewBus(nil)
	var got1, got2 []interface{}
	b.Subscribe("x", func(p interface{}) { got1 = append(got1, p) })
	b.Subscribe("x", func(p interface{}) { got2 = append(got2, p) })
	b.Subscribe("y", func(p interface{}) { t.Error("wrong event delivered") })

	b.Publish("x", 1)
	b.Publish("x", 2)

	if len(got1) != 2 || len(got2) != 2 {
		t.Errorf("Expected 2 deliveries each got %d and %d", len(got1), len(got2))
	}
	//no implicit dedup: identical payloads are delivered per publish
	if got1[0] != 1 || got1[1] != 2 {
		t.Errorf("Unexpected payloads %v", got1)
	}
}

func TestSubscriptionClose(t *testing.T) {
	b := NewBus(nil)
	n := 0
	sub := b.Subscribe("x", func(interface{}) { n++ })
	b.Publish("x", nil)
	sub.Close()
	sub.Close() //idempotent
	b.Publish("x", nil)
	if n != 1 {
		t.Errorf("Expected 1 delivery after close got %d", n)
	}
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	b := NewBus(nil)
	n := 0
	b.Subscribe("x", func(interface{}) { panic("boom") })
	b.Subscribe("x", func(interface{}) { n++ })

	b.Publish("x", nil) //must not panic the publisher
	b.Publish("x", nil) //and future publishes still work

	if n != 2 {
		t.Errorf("Expected healthy subscriber to get 2 got %d", n)
	}
}
