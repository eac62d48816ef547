package mqttbridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/watertemp"
	"github.com/nerrad567/birdhouse-core/internal/weather"
)

// motionMessage is the object form of a motion event.
type motionMessage struct {
	Motion *bool `json:"motion"`
}

// sensorMessage is a raw DHT22 reading as published by the sensor driver.
type sensorMessage struct {
	Humidity    *float64 `json:"humidity"`
	Temperature *float64 `json:"temperature"`
	ChecksumBad bool     `json:"checksum_bad"`
}

// waterMessage is a DS18B20 reading in degrees Celsius.
type waterMessage struct {
	Temperature *float64 `json:"temperature"`
}

// OutletStateMessage is published retained on {prefix}/outlet/{id}/state.
type OutletStateMessage struct {
	Outlet    int    `json:"outlet"`
	On        bool   `json:"on"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// WeatherMessage is published retained on {prefix}/weather.
type WeatherMessage struct {
	RecordedAt  string  `json:"recorded_at"`
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
	Unit        string  `json:"unit"`
}

// WaterTempMessage is published retained on {prefix}/water_temp.
type WaterTempMessage struct {
	RecordedAt  string  `json:"recorded_at"`
	Temperature float64 `json:"temperature"`
	Unit        string  `json:"unit"`
}

// parseMotion reports whether payload carries a true motion value.
// Accepted forms: true, 1, "true", {"motion": true}. An explicit false is
// valid and reports false.
func parseMotion(payload []byte) (bool, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return false, fmt.Errorf("%w: empty motion payload", ErrInvalidPayload)
	}

	if trimmed[0] == '{' {
		var msg motionMessage
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return false, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if msg.Motion == nil {
			return false, fmt.Errorf("%w: motion field missing", ErrInvalidPayload)
		}
		return *msg.Motion, nil
	}

	value := strings.Trim(string(trimmed), `"`)
	on, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: motion value %q", ErrInvalidPayload, value)
	}
	return on, nil
}

// parseReading decodes a sensor message. Range checks are left to the
// weather ingester so rejected readings are logged in one place.
func parseReading(payload []byte) (weather.Reading, error) {
	var msg sensorMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return weather.Reading{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if msg.Humidity == nil || msg.Temperature == nil {
		return weather.Reading{}, fmt.Errorf("%w: humidity and temperature are required", ErrInvalidPayload)
	}
	return weather.Reading{
		Humidity:    *msg.Humidity,
		Temperature: *msg.Temperature,
		ChecksumBad: msg.ChecksumBad,
	}, nil
}

// parseWaterReading decodes a water temperature message. Accepted forms:
// {"temperature": 12.5} or a bare number. Range checks are left to the
// watertemp ingester.
func parseWaterReading(payload []byte) (watertemp.Reading, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return watertemp.Reading{}, fmt.Errorf("%w: empty water payload", ErrInvalidPayload)
	}

	if trimmed[0] == '{' {
		var msg waterMessage
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return watertemp.Reading{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if msg.Temperature == nil {
			return watertemp.Reading{}, fmt.Errorf("%w: temperature is required", ErrInvalidPayload)
		}
		return watertemp.Reading{Temperature: *msg.Temperature}, nil
	}

	c, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return watertemp.Reading{}, fmt.Errorf("%w: water value %q", ErrInvalidPayload, string(trimmed))
	}
	return watertemp.Reading{Temperature: c}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
