// Package metrics exposes control loop activity as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/birdhouse-core/internal/automation"
	"github.com/nerrad567/birdhouse-core/internal/watertemp"
	"github.com/nerrad567/birdhouse-core/internal/weather"
)

const namespace = "birdhouse"

// Recorder records scheduler, override and sensor activity.
type Recorder struct {
	cycles        prometheus.Counter
	cycleErrors   prometheus.Counter
	cycleDuration prometheus.Histogram
	decisions     *prometheus.CounterVec
	toggles       *prometheus.CounterVec
	outletState   *prometheus.GaugeVec
	motionEvents  prometheus.Counter
	overrideUntil prometheus.Gauge
	weatherSaved  prometheus.Counter
	weatherFailed *prometheus.CounterVec
	temperature   prometheus.Gauge
	humidity      prometheus.Gauge
	waterSaved    prometheus.Counter
	waterFailed   *prometheus.CounterVec
	waterTemp     prometheus.Gauge
}

// NewRecorder registers the birdhouse collectors on reg.
// If reg is nil, the default registerer is used. Collectors that are already
// registered are reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_cycles_total",
			Help:      "Total number of scheduler cycles run",
		}),
		cycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_cycle_errors_total",
			Help:      "Scheduler cycles aborted by a persistence failure",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_cycle_duration_seconds",
			Help:      "Time taken by one scheduler cycle",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_decisions_total",
			Help:      "Per-outlet scheduler decisions by state",
		}, []string{"state"}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outlet_toggles_total",
			Help:      "Scheduler-driven outlet toggles",
		}, []string{"outlet"}),
		outletState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outlet_on",
			Help:      "Last level written to each outlet (1 = on)",
		}, []string{"outlet"}),
		motionEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "motion_events_total",
			Help:      "Motion events applied as overrides",
		}),
		overrideUntil: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "override_until_timestamp_seconds",
			Help:      "End of the current motion override (unix seconds)",
		}),
		weatherSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_samples_total",
			Help:      "Weather samples stored",
		}),
		weatherFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_samples_failed_total",
			Help:      "Weather readings not stored, by reason",
		}, []string{"reason"}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature",
			Help:      "Last stored temperature in the configured unit",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Last stored relative humidity",
		}),
		waterSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "water_temp_samples_total",
			Help:      "Water temperature samples stored",
		}),
		waterFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "water_temp_samples_failed_total",
			Help:      "Water temperature readings not stored, by reason",
		}, []string{"reason"}),
		waterTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "water_temperature",
			Help:      "Last stored water temperature in the configured unit",
		}),
	}

	var err error
	r.cycles = register(reg, r.cycles, &err)
	r.cycleErrors = register(reg, r.cycleErrors, &err)
	r.cycleDuration = register(reg, r.cycleDuration, &err)
	r.decisions = register(reg, r.decisions, &err)
	r.toggles = register(reg, r.toggles, &err)
	r.outletState = register(reg, r.outletState, &err)
	r.motionEvents = register(reg, r.motionEvents, &err)
	r.overrideUntil = register(reg, r.overrideUntil, &err)
	r.weatherSaved = register(reg, r.weatherSaved, &err)
	r.weatherFailed = register(reg, r.weatherFailed, &err)
	r.temperature = register(reg, r.temperature, &err)
	r.humidity = register(reg, r.humidity, &err)
	r.waterSaved = register(reg, r.waterSaved, &err)
	r.waterFailed = register(reg, r.waterFailed, &err)
	r.waterTemp = register(reg, r.waterTemp, &err)
	if err != nil {
		return nil, err
	}

	// Pre-create label values so dashboards see zeros instead of gaps.
	for _, s := range automation.AllStates {
		r.decisions.WithLabelValues(string(s))
	}
	r.weatherFailed.WithLabelValues("invalid")
	r.weatherFailed.WithLabelValues("persistence")
	r.waterFailed.WithLabelValues("invalid")
	r.waterFailed.WithLabelValues("persistence")

	return r, nil
}

// register adds c to reg, returning the already registered collector when
// one exists. The first hard error is kept in errp.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, errp *error) C {
	if *errp != nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		*errp = err
	}
	return c
}

// ObserveCycle records one scheduler cycle.
func (r *Recorder) ObserveCycle(report automation.CycleReport, took time.Duration, err error) {
	r.cycles.Inc()
	r.cycleDuration.Observe(took.Seconds())
	if err != nil {
		r.cycleErrors.Inc()
	}
	for _, d := range report.Decisions {
		r.decisions.WithLabelValues(string(d.State)).Inc()
		if d.Toggled {
			id := strconv.Itoa(d.OutletID)
			r.toggles.WithLabelValues(id).Inc()
			r.outletState.WithLabelValues(id).Set(boolGauge(d.NewState))
		}
	}
}

// ObserveMotion records one applied motion override.
func (r *Recorder) ObserveMotion(res automation.OverrideResult, err error) {
	if err != nil {
		return
	}
	r.motionEvents.Inc()
	r.overrideUntil.Set(float64(res.Until.Unix()))
	for _, id := range res.Forced {
		r.outletState.WithLabelValues(strconv.Itoa(id)).Set(1)
	}
}

// ObserveWeather records one ingest attempt.
func (r *Recorder) ObserveWeather(s *weather.Sample, err error) {
	switch {
	case err == nil && s != nil:
		r.weatherSaved.Inc()
		r.temperature.Set(s.Temperature)
		r.humidity.Set(s.Humidity)
	case errors.Is(err, weather.ErrInvalidReading):
		r.weatherFailed.WithLabelValues("invalid").Inc()
	case err != nil:
		r.weatherFailed.WithLabelValues("persistence").Inc()
	}
}

// ObserveWaterTemp records one water temperature ingest attempt.
func (r *Recorder) ObserveWaterTemp(s *watertemp.Sample, err error) {
	switch {
	case err == nil && s != nil:
		r.waterSaved.Inc()
		r.waterTemp.Set(s.Temperature)
	case errors.Is(err, watertemp.ErrInvalidReading):
		r.waterFailed.WithLabelValues("invalid").Inc()
	case err != nil:
		r.waterFailed.WithLabelValues("persistence").Inc()
	}
}

// SetOutletState records a level written outside the scheduler (start-up).
func (r *Recorder) SetOutletState(id int, on bool) {
	r.outletState.WithLabelValues(strconv.Itoa(id)).Set(boolGauge(on))
}

// OutletStateChanged satisfies automation.StateListener.
func (r *Recorder) OutletStateChanged(id int, on bool, _ string) {
	r.SetOutletState(id, on)
}

// Handler serves the metrics gathered by g.
// If g is nil, the default gatherer is used.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
