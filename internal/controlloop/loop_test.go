package controlloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/automation"
	"github.com/nerrad567/birdhouse-core/internal/outlet"
	"github.com/nerrad567/birdhouse-core/internal/watertemp"
	"github.com/nerrad567/birdhouse-core/internal/weather"
)

// callLog records the order of component calls.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(s string) {
	c.mu.Lock()
	c.calls = append(c.calls, s)
	c.mu.Unlock()
}

func (c *callLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type stubScheduler struct {
	log      *callLog
	startErr error
	cycleErr error
	onCycle  func()
}

func (s *stubScheduler) Start(context.Context, time.Time) error {
	s.log.add("start")
	return s.startErr
}

func (s *stubScheduler) RunCycle(_ context.Context, now time.Time) (automation.CycleReport, error) {
	s.log.add("cycle")
	if s.onCycle != nil {
		s.onCycle()
	}
	return automation.CycleReport{At: now}, s.cycleErr
}

type stubOverrider struct {
	log     *callLog
	minutes int
	err     error
}

func (o *stubOverrider) OnMotionDetected(_ context.Context, now time.Time, minutes int) (automation.OverrideResult, error) {
	o.log.add("override")
	o.minutes = minutes
	return automation.OverrideResult{Until: now.Add(time.Duration(minutes) * time.Minute)}, o.err
}

type stubIngester struct {
	log       *callLog
	err       error
	retention int
}

func (i *stubIngester) Ingest(_ context.Context, r weather.Reading, now time.Time, retentionDays int) (*weather.Sample, error) {
	i.log.add("ingest")
	i.retention = retentionDays
	if i.err != nil {
		return nil, i.err
	}
	return &weather.Sample{RecordedAt: now, Humidity: r.Humidity, Temperature: r.Temperature}, nil
}

type stubWaterIngester struct {
	log       *callLog
	err       error
	retention int
}

func (i *stubWaterIngester) Ingest(_ context.Context, r watertemp.Reading, now time.Time, retentionDays int) (*watertemp.Sample, error) {
	i.log.add("water")
	i.retention = retentionDays
	if i.err != nil {
		return nil, i.err
	}
	return &watertemp.Sample{RecordedAt: now, Temperature: r.Temperature}, nil
}

type countingRecorder struct {
	cycles, motions, weather, water int
}

func (r *countingRecorder) ObserveCycle(automation.CycleReport, time.Duration, error) { r.cycles++ }
func (r *countingRecorder) ObserveMotion(automation.OverrideResult, error)            { r.motions++ }
func (r *countingRecorder) ObserveWeather(*weather.Sample, error)                     { r.weather++ }
func (r *countingRecorder) ObserveWaterTemp(*watertemp.Sample, error)                 { r.water++ }

type harness struct {
	log       *callLog
	scheduler *stubScheduler
	overrider *stubOverrider
	ingester  *stubIngester
	water     *stubWaterIngester
	inputs    *Inputs
	recorder  *countingRecorder
	loop      *Loop
}

func newHarness() *harness {
	h := &harness{log: &callLog{}, inputs: NewInputs(), recorder: &countingRecorder{}}
	h.scheduler = &stubScheduler{log: h.log}
	h.overrider = &stubOverrider{log: h.log}
	h.ingester = &stubIngester{log: h.log}
	h.water = &stubWaterIngester{log: h.log}
	h.loop = New(Config{
		CycleInterval:  10 * time.Millisecond,
		SampleInterval: 5 * time.Second,
		MotionTimeout:  5,
		HistoryDays:    30,
	}, h.scheduler, h.overrider, h.ingester, h.inputs,
		WithRecorder(h.recorder),
		WithWaterIngester(h.water),
	)
	return h
}

var t0 = time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoop_IterationOrder(t *testing.T) {
	h := newHarness()
	h.inputs.SetReading(weather.Reading{Humidity: 50, Temperature: 20})
	h.inputs.SignalMotion()

	if err := h.loop.Iterate(context.Background(), t0); err != nil {
		t.Fatalf("Iterate() error = %v", err)
	}

	want := []string{"ingest", "override", "cycle"}
	if got := h.log.snapshot(); !equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if h.overrider.minutes != 5 || h.ingester.retention != 30 {
		t.Errorf("minutes = %d, retention = %d", h.overrider.minutes, h.ingester.retention)
	}
	if h.recorder.cycles != 1 || h.recorder.motions != 1 || h.recorder.weather != 1 {
		t.Errorf("recorder = %+v", h.recorder)
	}
}

func TestLoop_MotionConsumedOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.inputs.SignalMotion()
	h.inputs.SignalMotion()
	_ = h.loop.Iterate(ctx, t0)
	_ = h.loop.Iterate(ctx, t0.Add(time.Second))

	want := []string{"override", "cycle", "cycle"}
	if got := h.log.snapshot(); !equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestLoop_SampleTimerIsDriftTolerant(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	steps := []struct {
		offset   time.Duration
		wantNext time.Duration
	}{
		{0, 5 * time.Second},                        // first iteration is due
		{1 * time.Second, 5 * time.Second},          // not due
		{5200 * time.Millisecond, 10 * time.Second}, // due, keeps cadence
		{23 * time.Second, 28 * time.Second},        // several missed: fire once, realign
		{27 * time.Second, 28 * time.Second},        // not due
	}

	for _, s := range steps {
		h.inputs.SetReading(weather.Reading{Humidity: 50, Temperature: 20})
		_ = h.loop.Iterate(ctx, t0.Add(s.offset))
		if got := h.loop.NextSample(); !got.Equal(t0.Add(s.wantNext)) {
			t.Errorf("after t+%v NextSample = t+%v, want t+%v", s.offset, got.Sub(t0), s.wantNext)
		}
	}

	ingests := 0
	for _, c := range h.log.snapshot() {
		if c == "ingest" {
			ingests++
		}
	}
	if ingests != 3 {
		t.Errorf("ingests = %d, want 3", ingests)
	}
}

func TestLoop_NoReadingSkipsIngest(t *testing.T) {
	h := newHarness()
	_ = h.loop.Iterate(context.Background(), t0)

	if got := h.log.snapshot(); !equal(got, []string{"cycle"}) {
		t.Errorf("calls = %v, want only cycle", got)
	}
}

func TestLoop_ErrorsAreJoinedAndStepsContinue(t *testing.T) {
	h := newHarness()
	h.ingester.err = weather.ErrPersistence
	h.overrider.err = outlet.ErrPersistence
	h.scheduler.cycleErr = outlet.ErrPersistence
	h.inputs.SetReading(weather.Reading{Humidity: 50, Temperature: 20})
	h.inputs.SignalMotion()

	err := h.loop.Iterate(context.Background(), t0)
	if !errors.Is(err, weather.ErrPersistence) || !errors.Is(err, outlet.ErrPersistence) {
		t.Errorf("Iterate() error = %v, want both persistence failures", err)
	}
	if got := h.log.snapshot(); !equal(got, []string{"ingest", "override", "cycle"}) {
		t.Errorf("calls = %v", got)
	}
}

func TestLoop_InvalidReadingIsNotAnError(t *testing.T) {
	h := newHarness()
	h.ingester.err = weather.ErrInvalidReading
	h.inputs.SetReading(weather.Reading{Humidity: 0, Temperature: 20})

	if err := h.loop.Iterate(context.Background(), t0); err != nil {
		t.Errorf("Iterate() error = %v, want nil", err)
	}
	if h.recorder.weather != 1 {
		t.Error("rejected reading should still be recorded")
	}
}

type stubPruner struct {
	cutoff time.Time
}

func (p *stubPruner) PruneEvents(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return 3, nil
}

func TestLoop_Run(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycles := 0
	h.scheduler.onCycle = func() {
		cycles++
		if cycles == 3 {
			cancel()
		}
	}
	pruner := &stubPruner{}
	loop := New(Config{CycleInterval: time.Millisecond, MotionTimeout: 5, HistoryDays: 30},
		h.scheduler, h.overrider, h.ingester, h.inputs,
		WithEventPruner(pruner),
		WithClock(func() time.Time { return t0 }),
	)

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancellation")
	}

	calls := h.log.snapshot()
	if len(calls) < 4 || calls[0] != "start" {
		t.Errorf("calls = %v, want start then cycles", calls)
	}
	if !pruner.cutoff.Equal(t0.Add(-30 * 24 * time.Hour)) {
		t.Errorf("prune cutoff = %v", pruner.cutoff)
	}
}

func TestLoop_RunStartFailure(t *testing.T) {
	h := newHarness()
	h.scheduler.startErr = outlet.ErrPersistence

	err := h.loop.Run(context.Background())
	if !errors.Is(err, outlet.ErrPersistence) {
		t.Errorf("Run() error = %v, want ErrPersistence", err)
	}
}

func TestInputs(t *testing.T) {
	in := NewInputs()

	if in.TakeMotion() {
		t.Error("no motion signalled yet")
	}
	in.SignalMotion()
	select {
	case <-in.Wake():
	default:
		t.Error("SignalMotion should wake the loop")
	}
	if !in.TakeMotion() || in.TakeMotion() {
		t.Error("motion should be taken exactly once")
	}

	in.SetReading(weather.Reading{Humidity: 1, Temperature: 1})
	in.SetReading(weather.Reading{Humidity: 2, Temperature: 2})
	r, ok := in.TakeReading()
	if !ok || r.Humidity != 2 {
		t.Errorf("TakeReading() = %+v, %v; want latest reading", r, ok)
	}
	if _, ok := in.TakeReading(); ok {
		t.Error("reading should be consumed")
	}
}

func TestLoop_WaterIngestFollowsWeather(t *testing.T) {
	h := newHarness()
	h.inputs.SetReading(weather.Reading{Humidity: 50, Temperature: 20})
	h.inputs.SetWaterReading(watertemp.Reading{Temperature: 12.5})
	h.inputs.SignalMotion()

	if err := h.loop.Iterate(context.Background(), t0); err != nil {
		t.Fatalf("Iterate() error = %v", err)
	}

	want := []string{"ingest", "water", "override", "cycle"}
	if got := h.log.snapshot(); !equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if h.water.retention != 30 || h.recorder.water != 1 {
		t.Errorf("retention = %d, water observations = %d", h.water.retention, h.recorder.water)
	}
	if _, ok := h.inputs.TakeWaterReading(); ok {
		t.Error("water reading should be consumed")
	}
}

func TestLoop_WaterIngestWaitsForSampleTimer(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if err := h.loop.Iterate(ctx, t0); err != nil {
		t.Fatalf("Iterate() error = %v", err)
	}
	h.inputs.SetWaterReading(watertemp.Reading{Temperature: 12.5})
	if err := h.loop.Iterate(ctx, t0.Add(time.Second)); err != nil {
		t.Fatalf("Iterate() error = %v", err)
	}
	for _, c := range h.log.snapshot() {
		if c == "water" {
			t.Fatal("water reading ingested before the sample timer was due")
		}
	}

	if err := h.loop.Iterate(ctx, t0.Add(5*time.Second)); err != nil {
		t.Fatalf("Iterate() error = %v", err)
	}
	if h.recorder.water != 1 {
		t.Errorf("water observations = %d, want 1", h.recorder.water)
	}
}

func TestLoop_WaterIngestErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"invalid reading is dropped", watertemp.ErrInvalidReading, false},
		{"persistence failure is reported", watertemp.ErrPersistence, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.water.err = tt.err
			h.inputs.SetWaterReading(watertemp.Reading{Temperature: 12.5})

			err := h.loop.Iterate(context.Background(), t0)
			if tt.wantErr != (err != nil) {
				t.Fatalf("Iterate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, watertemp.ErrPersistence) {
				t.Errorf("Iterate() error = %v, want ErrPersistence", err)
			}
			// The scheduler cycle still runs.
			got := h.log.snapshot()
			if got[len(got)-1] != "cycle" {
				t.Errorf("calls = %v, want cycle last", got)
			}
		})
	}
}

func TestLoop_WithoutWaterIngesterKeepsReading(t *testing.T) {
	h := newHarness()
	h.loop.water = nil
	h.inputs.SetWaterReading(watertemp.Reading{Temperature: 12.5})

	if err := h.loop.Iterate(context.Background(), t0); err != nil {
		t.Fatalf("Iterate() error = %v", err)
	}
	if h.recorder.water != 0 {
		t.Errorf("water observations = %d, want 0", h.recorder.water)
	}
	if _, ok := h.inputs.TakeWaterReading(); !ok {
		t.Error("water reading should stay pending without an ingester")
	}
}
