package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/labkit/microdoser/core/events"
	"github.com/labkit/microdoser/internal/eventbus"
)

type mockClient struct {
	published []struct {
		topic   string
		qos     byte
		payload []byte
	}
}

func (m *mockClient) IsConnected() bool    { return true }
func (m *mockClient) Connect() paho.Token  { return &dummyToken{} }
func (m *mockClient) Disconnect(uint)      {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	m.published = append(m.published, struct {
		topic   string
		qos     byte
		payload []byte
	}{topic, qos, payload.([]byte)})
	return &dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

func newMockedPublisher(t *testing.T) (*TelemetryPublisher, *mockClient) {
	t.Helper()
	mc := &mockClient{}
	orig := newMQTTClient
	newMQTTClient = func(_ *paho.ClientOptions) pahoClient { return mc }
	t.Cleanup(func() { newMQTTClient = orig })
	pub, err := NewTelemetryPublisher(Config{Broker: "tcp://localhost:1883", ClientID: "test", TopicPrefix: "lab/doser", QoS: 1})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	return pub, mc
}

func TestTelemetryPublisher_DoseEvent(t *testing.T) {
	pub, mc := newMockedPublisher(t)

	bus := eventbus.New()
	sub := bus.Subscribe()
	done := make(chan struct{})
	go func() {
		pub.Run(sub)
		close(done)
	}()

	bus.Publish(events.DoseEvent{Well: "B7", TargetMg: 5, ActualMg: 5.1, ErrorMg: 0.1, Verified: true, Time: time.Now()})
	time.Sleep(50 * time.Millisecond)
	bus.Close()
	<-done

	if len(mc.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(mc.published))
	}
	msg := mc.published[0]
	if msg.topic != "lab/doser/doses" {
		t.Fatalf("topic = %s", msg.topic)
	}
	if msg.qos != 1 {
		t.Fatalf("qos = %d", msg.qos)
	}
	var decoded doseTelemetry
	if err := json.Unmarshal(msg.payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.Well != "B7" || !decoded.Verified {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestTelemetryPublisher_CalibrationEvent(t *testing.T) {
	pub, mc := newMockedPublisher(t)

	bus := eventbus.New()
	sub := bus.Subscribe()
	done := make(chan struct{})
	go func() {
		pub.Run(sub)
		close(done)
	}()

	bus.Publish(events.CalibrationEvent{RateMgPerS: 2.0, Points: 1, Time: time.Now()})
	time.Sleep(50 * time.Millisecond)
	bus.Close()
	<-done

	if len(mc.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(mc.published))
	}
	if mc.published[0].topic != "lab/doser/calibration" {
		t.Fatalf("topic = %s", mc.published[0].topic)
	}
}
