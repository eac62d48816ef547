package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/birdhouse-core/internal/watertemp"
	"github.com/nerrad567/birdhouse-core/internal/weather"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

// mockMQTT records publishes and keeps handlers so tests can inject messages.
type mockMQTT struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	published    []published
	unsubscribed []string
	subscribeErr error
	publishErr   error
	block        chan struct{}
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic: topic, payload: payload, retained: retained})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, topic)
	delete(m.handlers, topic)
	return nil
}

func (m *mockMQTT) deliver(t *testing.T, topic string, payload string) error {
	t.Helper()
	m.mu.Lock()
	h, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no handler subscribed on %q", topic)
	}
	return h(topic, []byte(payload))
}

func (m *mockMQTT) messages() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.published...)
}

type mockSink struct {
	mu       sync.Mutex
	motions  int
	readings []weather.Reading
	water    []watertemp.Reading
}

func (s *mockSink) SignalMotion() {
	s.mu.Lock()
	s.motions++
	s.mu.Unlock()
}

func (s *mockSink) SetReading(r weather.Reading) {
	s.mu.Lock()
	s.readings = append(s.readings, r)
	s.mu.Unlock()
}

func (s *mockSink) SetWaterReading(r watertemp.Reading) {
	s.mu.Lock()
	s.water = append(s.water, r)
	s.mu.Unlock()
}

var fixedNow = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func startBridge(t *testing.T, client *mockMQTT, opts ...Option) (*Bridge, *mockSink) {
	t.Helper()
	sink := &mockSink{}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	b := New(client, mqtt.Topics{}, sink, 1, opts...)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return b, sink
}

func TestParseMotion(t *testing.T) {
	tests := []struct {
		payload string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"1", true, false},
		{" TRUE\n", true, false},
		{`"true"`, true, false},
		{`{"motion":true}`, true, false},
		{"false", false, false},
		{"0", false, false},
		{`{"motion":false}`, false, false},
		{"", false, true},
		{"maybe", false, true},
		{`{"moving":true}`, false, true},
		{`{"motion":`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := parseMotion([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMotion() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("error = %v, want ErrInvalidPayload", err)
			}
			if got != tt.want {
				t.Errorf("parseMotion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseReading(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    weather.Reading
		wantErr bool
	}{
		{
			name:    "valid",
			payload: `{"humidity":55.5,"temperature":21.2}`,
			want:    weather.Reading{Humidity: 55.5, Temperature: 21.2},
		},
		{
			name:    "checksum flag passes through",
			payload: `{"humidity":55,"temperature":21,"checksum_bad":true}`,
			want:    weather.Reading{Humidity: 55, Temperature: 21, ChecksumBad: true},
		},
		{
			name:    "zero values are left to the ingester",
			payload: `{"humidity":0,"temperature":0}`,
			want:    weather.Reading{},
		},
		{name: "missing temperature", payload: `{"humidity":55}`, wantErr: true},
		{name: "not json", payload: `55,21`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseReading([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseReading() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseReading() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseWaterReading(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    float64
		wantErr bool
	}{
		{name: "object", payload: `{"temperature":12.5}`, want: 12.5},
		{name: "bare number", payload: " 11.75\n", want: 11.75},
		{name: "freezing", payload: `{"temperature":0}`, want: 0},
		{name: "out of range is left to the ingester", payload: "300", want: 300},
		{name: "empty", payload: "", wantErr: true},
		{name: "missing temperature", payload: `{"temp":12}`, wantErr: true},
		{name: "not a number", payload: "warm", wantErr: true},
		{name: "truncated json", payload: `{"temperature":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWaterReading([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseWaterReading() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("error = %v, want ErrInvalidPayload", err)
			}
			if got.Temperature != tt.want {
				t.Errorf("parseWaterReading() = %+v, want %v", got, tt.want)
			}
		})
	}
}

func TestInboundWaterReading(t *testing.T) {
	client := newMockMQTT()
	_, sink := startBridge(t, client)
	topics := mqtt.Topics{}

	if err := client.deliver(t, topics.SensorWater(), `{"temperature":13.25}`); err != nil {
		t.Fatalf("water error = %v", err)
	}
	if err := client.deliver(t, topics.SensorWater(), "cold"); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("garbage water error = %v, want ErrInvalidPayload", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.water) != 1 || sink.water[0].Temperature != 13.25 {
		t.Errorf("water readings = %+v", sink.water)
	}
	if len(sink.readings) != 0 {
		t.Errorf("weather readings = %+v, want none", sink.readings)
	}
}

func TestPublishWaterTemp(t *testing.T) {
	client := newMockMQTT()
	b, _ := startBridge(t, client)

	if err := b.PublishWaterTemp(watertemp.Sample{RecordedAt: fixedNow, Temperature: 55.4}, "F"); err != nil {
		t.Fatalf("PublishWaterTemp() error = %v", err)
	}
	b.Stop()

	msgs := client.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].topic != "birdhouse/water_temp" || !msgs[0].retained {
		t.Errorf("water message = %+v", msgs[0])
	}
	var got WaterTempMessage
	if err := json.Unmarshal(msgs[0].payload, &got); err != nil {
		t.Fatal(err)
	}
	want := WaterTempMessage{RecordedAt: "2026-03-01T20:00:00Z", Temperature: 55.4, Unit: "F"}
	if got != want {
		t.Errorf("water payload = %+v, want %+v", got, want)
	}
}

func TestInboundEvents(t *testing.T) {
	client := newMockMQTT()
	_, sink := startBridge(t, client)
	topics := mqtt.Topics{}

	for _, payload := range []string{"true", `{"motion":true}`, "false"} {
		if err := client.deliver(t, topics.Motion(), payload); err != nil {
			t.Errorf("motion %q error = %v", payload, err)
		}
	}
	if err := client.deliver(t, topics.Motion(), "garbage"); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("garbage motion error = %v, want ErrInvalidPayload", err)
	}
	if err := client.deliver(t, topics.SensorDHT22(), `{"humidity":40,"temperature":19}`); err != nil {
		t.Errorf("sensor error = %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.motions != 2 {
		t.Errorf("motions = %d, want 2", sink.motions)
	}
	if len(sink.readings) != 1 || sink.readings[0].Temperature != 19 {
		t.Errorf("readings = %+v", sink.readings)
	}
}

func TestOutboundMessages(t *testing.T) {
	client := newMockMQTT()
	b, _ := startBridge(t, client)

	b.OutletStateChanged(17, true, "motion")
	if err := b.PublishWeather(weather.Sample{RecordedAt: fixedNow, Humidity: 40, Temperature: 66.2}, "F"); err != nil {
		t.Fatalf("PublishWeather() error = %v", err)
	}
	b.Stop()

	msgs := client.messages()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}

	if msgs[0].topic != "birdhouse/outlet/17/state" || !msgs[0].retained {
		t.Errorf("outlet message = %+v", msgs[0])
	}
	var state OutletStateMessage
	if err := json.Unmarshal(msgs[0].payload, &state); err != nil {
		t.Fatal(err)
	}
	want := OutletStateMessage{Outlet: 17, On: true, Source: "motion", Timestamp: "2026-03-01T20:00:00Z"}
	if state != want {
		t.Errorf("outlet payload = %+v, want %+v", state, want)
	}

	var w WeatherMessage
	if err := json.Unmarshal(msgs[1].payload, &w); err != nil {
		t.Fatal(err)
	}
	if msgs[1].topic != "birdhouse/weather" || w.Unit != "F" || w.Temperature != 66.2 {
		t.Errorf("weather message = %s %+v", msgs[1].topic, w)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.unsubscribed) != 3 {
		t.Errorf("unsubscribed = %v, want motion and both sensor topics", client.unsubscribed)
	}
}

func TestQueueFull(t *testing.T) {
	client := newMockMQTT()
	client.block = make(chan struct{})
	b, _ := startBridge(t, client, WithQueueSize(1))

	// The worker takes one message and blocks on it; one more fills the queue.
	var full bool
	for i := 0; i < 5; i++ {
		if err := b.PublishWeather(weather.Sample{RecordedAt: fixedNow}, "C"); errors.Is(err, ErrQueueFull) {
			full = true
		}
	}
	close(client.block)

	if !full {
		t.Error("expected ErrQueueFull once the queue filled")
	}
	if b.Dropped() == 0 {
		t.Error("Dropped() = 0, want dropped messages counted")
	}
}

func TestNotStarted(t *testing.T) {
	b := New(newMockMQTT(), mqtt.Topics{}, &mockSink{}, 1)
	if err := b.PublishWeather(weather.Sample{}, "F"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("PublishWeather() error = %v, want ErrNotStarted", err)
	}
	b.Stop()
}

func TestStartSubscribeFailure(t *testing.T) {
	client := newMockMQTT()
	client.subscribeErr = errors.New("broker gone")

	b := New(client, mqtt.Topics{}, &mockSink{}, 1)
	if err := b.Start(context.Background()); err == nil {
		t.Fatal("Start() expected error when subscribe fails")
	}
}

func TestPublishErrorIsLogged(t *testing.T) {
	client := newMockMQTT()
	client.publishErr = errors.New("not connected")
	b, _ := startBridge(t, client)

	b.OutletStateChanged(4, false, "startup")
	b.Stop()

	if got := client.messages(); len(got) != 0 {
		t.Errorf("published = %v, want none", got)
	}
}
