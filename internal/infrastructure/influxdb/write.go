package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementWeather     = "weather"
	measurementWaterTemp   = "water_temp"
	measurementOutletState = "outlet_state"
)

// WriteWeather records one stored weather sample at its own timestamp.
// Satisfies weather.Mirror.
func (c *Client) WriteWeather(recordedAt time.Time, humidity, temperature float64, unit string) {
	c.WritePointWithTime(measurementWeather,
		map[string]string{"unit": unit},
		map[string]interface{}{
			"humidity":    humidity,
			"temperature": temperature,
		},
		recordedAt,
	)
}

// WriteWaterTemp records one stored water temperature sample at its own
// timestamp. Satisfies watertemp.Mirror.
func (c *Client) WriteWaterTemp(recordedAt time.Time, temperature float64, unit string) {
	c.WritePointWithTime(measurementWaterTemp,
		map[string]string{"unit": unit},
		map[string]interface{}{
			"temperature": temperature,
		},
		recordedAt,
	)
}

// WriteOutletState records the level written to an outlet.
func (c *Client) WriteOutletState(id int, on bool, source string) {
	state := 0
	if on {
		state = 1
	}
	c.WritePoint(measurementOutletState,
		map[string]string{
			"outlet": strconv.Itoa(id),
			"source": source,
		},
		map[string]interface{}{
			"on": state,
		},
	)
}

// OutletStateChanged satisfies automation.StateListener.
func (c *Client) OutletStateChanged(id int, on bool, source string) {
	c.WriteOutletState(id, on, source)
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
// It is a no-op once the client is closed.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
