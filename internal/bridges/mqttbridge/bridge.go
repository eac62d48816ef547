package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/birdhouse-core/internal/watertemp"
	"github.com/nerrad567/birdhouse-core/internal/weather"
)

// defaultQueueSize bounds the outbound message queue.
const defaultQueueSize = 64

// MQTTClient is the subset of the MQTT client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Sink receives inbound events. controlloop.Inputs satisfies it.
type Sink interface {
	SignalMotion()
	SetReading(r weather.Reading)
	SetWaterReading(r watertemp.Reading)
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type outbound struct {
	topic   string
	payload []byte
}

// Bridge translates between MQTT topics and the control loop.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	client MQTTClient
	topics mqtt.Topics
	sink   Sink
	qos    byte
	logger Logger
	now    func() time.Time

	queue   chan outbound
	dropped atomic.Int64

	mu       sync.Mutex
	started  bool
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithQueueSize sets the outbound queue capacity.
func WithQueueSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.queue = make(chan outbound, n)
		}
	}
}

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// New creates a bridge. It does nothing until Start is called.
func New(client MQTTClient, topics mqtt.Topics, sink Sink, qos byte, opts ...Option) *Bridge {
	b := &Bridge{
		client: client,
		topics: topics,
		sink:   sink,
		qos:    qos,
		logger: noopLogger{},
		now:    time.Now,
		queue:  make(chan outbound, defaultQueueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start subscribes to the inbound topics and starts the publish worker.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.client.Subscribe(b.topics.Motion(), b.qos, b.handleMotion); err != nil {
		return fmt.Errorf("subscribe to motion: %w", err)
	}
	if err := b.client.Subscribe(b.topics.SensorDHT22(), b.qos, b.handleSensor); err != nil {
		return fmt.Errorf("subscribe to sensor: %w", err)
	}
	if err := b.client.Subscribe(b.topics.SensorWater(), b.qos, b.handleWater); err != nil {
		return fmt.Errorf("subscribe to water sensor: %w", err)
	}

	b.mu.Lock()
	b.started = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.publishLoop(ctx)

	b.logger.Info("mqtt bridge started",
		"motion_topic", b.topics.Motion(),
		"sensor_topic", b.topics.SensorDHT22(),
		"water_topic", b.topics.SensorWater())
	return nil
}

// Stop unsubscribes, drains the outbound queue and waits for the worker.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		started := b.started
		b.started = false
		b.mu.Unlock()
		if !started {
			return
		}

		for _, topic := range []string{b.topics.Motion(), b.topics.SensorDHT22(), b.topics.SensorWater()} {
			if err := b.client.Unsubscribe(topic); err != nil {
				b.logger.Debug("mqtt unsubscribe failed", "topic", topic, "error", err)
			}
		}
		close(b.done)
		b.wg.Wait()
	})
}

// Dropped returns the number of outbound messages discarded so far.
func (b *Bridge) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Bridge) handleMotion(topic string, payload []byte) error {
	on, err := parseMotion(payload)
	if err != nil {
		return err
	}
	if on {
		b.logger.Debug("motion event received", "topic", topic)
		b.sink.SignalMotion()
	}
	return nil
}

func (b *Bridge) handleSensor(_ string, payload []byte) error {
	r, err := parseReading(payload)
	if err != nil {
		return err
	}
	b.sink.SetReading(r)
	return nil
}

func (b *Bridge) handleWater(_ string, payload []byte) error {
	r, err := parseWaterReading(payload)
	if err != nil {
		return err
	}
	b.sink.SetWaterReading(r)
	return nil
}

// OutletStateChanged queues a retained outlet level message.
// Satisfies automation.StateListener.
func (b *Bridge) OutletStateChanged(id int, on bool, source string) {
	msg := OutletStateMessage{
		Outlet:    id,
		On:        on,
		Source:    source,
		Timestamp: formatTime(b.now()),
	}
	if err := b.enqueue(b.topics.OutletState(id), msg); err != nil {
		b.logger.Warn("outlet state not published", "outlet", id, "error", err)
	}
}

// PublishWeather queues a retained weather message.
// Satisfies weather.Publisher.
func (b *Bridge) PublishWeather(s weather.Sample, unit string) error {
	return b.enqueue(b.topics.Weather(), WeatherMessage{
		RecordedAt:  formatTime(s.RecordedAt),
		Humidity:    s.Humidity,
		Temperature: s.Temperature,
		Unit:        unit,
	})
}

// PublishWaterTemp queues a retained water temperature message.
// Satisfies watertemp.Publisher.
func (b *Bridge) PublishWaterTemp(s watertemp.Sample, unit string) error {
	return b.enqueue(b.topics.WaterTemp(), WaterTempMessage{
		RecordedAt:  formatTime(s.RecordedAt),
		Temperature: s.Temperature,
		Unit:        unit,
	})
}

func (b *Bridge) enqueue(topic string, v any) error {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	select {
	case b.queue <- outbound{topic: topic, payload: payload}:
		return nil
	default:
		b.dropped.Add(1)
		return ErrQueueFull
	}
}

func (b *Bridge) publishLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case msg := <-b.queue:
			b.publish(msg)
		case <-b.done:
			b.drain()
			return
		case <-ctx.Done():
			b.drain()
			return
		}
	}
}

// drain publishes whatever is already queued.
func (b *Bridge) drain() {
	for {
		select {
		case msg := <-b.queue:
			b.publish(msg)
		default:
			return
		}
	}
}

func (b *Bridge) publish(msg outbound) {
	if err := b.client.Publish(msg.topic, msg.payload, b.qos, true); err != nil {
		b.logger.Warn("mqtt publish failed", "topic", msg.topic, "error", err)
	}
}
