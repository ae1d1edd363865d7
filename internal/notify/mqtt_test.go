package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dokzlo13/lightdeck/internal/eventbus"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  string
}

type fakeBroker struct {
	mu       sync.Mutex
	messages []message
	err      error
}

func (b *fakeBroker) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, message{topic: topic, retained: retained, payload: string(payload.([]byte))})
	return doneToken{err: b.err}
}

func TestHandlePublishesByEventType(t *testing.T) {
	broker := &fakeBroker{}
	p := &MQTTPublisher{pub: broker, prefix: "lightdeck"}

	p.Handle(eventbus.Event{Type: eventbus.EventFixturesChanged, Group: "group-1", Fixtures: []string{"1", "2"}})
	p.Handle(eventbus.Event{Type: eventbus.EventGroupsChanged})
	p.Handle(eventbus.Event{Type: "something_else"})

	want := []message{
		{topic: "lightdeck/fixtures", payload: `{"type":"fixtures_changed","group":"group-1","fixtures":["1","2"]}`},
		{topic: "lightdeck/groups", payload: `{"type":"groups_changed"}`},
	}
	if len(broker.messages) != len(want) {
		t.Fatalf("messages = %+v", broker.messages)
	}
	for i, m := range want {
		if broker.messages[i] != m {
			t.Errorf("message %d = %+v, want %+v", i, broker.messages[i], m)
		}
	}
}

func TestStopPublishesRetainedOffline(t *testing.T) {
	broker := &fakeBroker{}
	p := &MQTTPublisher{pub: broker, prefix: "panel"}

	p.Stop()

	if len(broker.messages) != 1 {
		t.Fatalf("messages = %+v", broker.messages)
	}
	if m := broker.messages[0]; m.topic != "panel/state" || m.payload != "offline" || !m.retained {
		t.Fatalf("state message = %+v", m)
	}
}

func TestPublishFailureIsNotFatal(t *testing.T) {
	broker := &fakeBroker{err: errors.New("not connected")}
	p := &MQTTPublisher{pub: broker, prefix: "lightdeck"}

	p.Handle(eventbus.Event{Type: eventbus.EventGroupsChanged})

	if len(broker.messages) != 1 {
		t.Fatalf("messages = %d", len(broker.messages))
	}
}
