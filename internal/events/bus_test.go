// internal/events/bus_test.go
package events

import (
	"testing"
	"time"

	"greymatter/internal/model"
)

func receive(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return model.Event{}
}

func TestBus_DeliversByType(t *testing.T) {
	bus := NewBus(nil)
	go bus.Start()
	defer bus.Stop()

	registered := bus.Subscribe(model.EventDeviceRegistered)
	all := bus.Subscribe(AllEvents)

	bus.Publish(model.NewEvent(model.EventDeviceSkipped, "test", nil))
	bus.Publish(model.NewEvent(model.EventDeviceRegistered, "test", map[string]interface{}{"name": "pico_0"}))

	if ev := receive(t, all); ev.Type != model.EventDeviceSkipped {
		t.Errorf("first event on all = %s", ev.Type)
	}
	if ev := receive(t, all); ev.Type != model.EventDeviceRegistered {
		t.Errorf("second event on all = %s", ev.Type)
	}

	ev := receive(t, registered)
	if ev.Type != model.EventDeviceRegistered || ev.Data["name"] != "pico_0" {
		t.Errorf("unexpected event %+v", ev)
	}
	select {
	case extra := <-registered:
		t.Errorf("unexpected extra event %s", extra.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)
	go bus.Start()
	defer bus.Stop()

	ch := bus.Subscribe(AllEvents)
	bus.Unsubscribe(AllEvents, ch)

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Unsubscribe")
	}

	// Publishing with no subscribers must not block or panic.
	bus.Publish(model.NewEvent(model.EventCommandCompleted, "test", nil))
}

func TestBus_StopClosesSubscribers(t *testing.T) {
	bus := NewBus(nil)
	done := make(chan struct{})
	go func() {
		bus.Start()
		close(done)
	}()

	ch := bus.Subscribe(AllEvents)
	bus.Stop()
	bus.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel closed")
	}

	bus.Publish(model.NewEvent(model.EventCommandFailed, "test", nil))
}

func TestMQTTForwarder_Topic(t *testing.T) {
	f := newMQTTForwarder(nil, MQTTConfig{TopicPrefix: "greymatter/events"}, nil)
	if got := f.Topic(model.EventRegistryRescanned); got != "greymatter/events/registry.rescanned" {
		t.Errorf("Topic = %q", got)
	}
}
