package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted by Locate when no
// explicit path is given.
const EnvConfigPath = "BIRDHOUSE_CONFIG"

// legacyEnvConfigDir is the directory variable honoured by the original
// birdhouse daemon. It points at a directory holding birdhouse.json.
const legacyEnvConfigDir = "BIRDHOUSE_CONF"

// ErrConfigNotFound is returned by Locate when no configuration file exists
// in any of the search locations.
var ErrConfigNotFound = errors.New("config: no configuration file found")

// Config is the root configuration structure for the birdhouse daemon.
// All configuration is loaded from YAML (or JSON, which YAML accepts) and can
// be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Weather   WeatherConfig   `yaml:"weather"`
	Camera    CameraConfig    `yaml:"camera"`
	DHT22     DHT22Config     `yaml:"dht22"`
	Outlets   []OutletConfig  `yaml:"outlets"`

	// Collaborators are external programs (motion detector, DHT22 driver)
	// the daemon starts and supervises.
	Collaborators []CollaboratorConfig `yaml:"collaborators"`

	// MotionTimeout is how long (minutes) a motion event keeps every outlet
	// forced on.
	MotionTimeout int `yaml:"motion_timeout"`

	// HistoryDays is the weather retention horizon in days.
	HistoryDays int `yaml:"history_days"`

	// ShowVideo is accepted for compatibility with birdhouse.json; the
	// daemon has no video window.
	ShowVideo bool `yaml:"show_video"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	Synchronous string `yaml:"synchronous"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// GPIOConfig selects the physical switch sink.
type GPIOConfig struct {
	// Driver is "cdev" for the Linux GPIO character device or "fake" for an
	// in-memory switch (development, CI).
	Driver string `yaml:"driver"`

	// Chip is the character device name, e.g. "gpiochip0".
	Chip string `yaml:"chip"`

	// ActiveLow inverts the line level for relay boards that switch on low.
	ActiveLow bool `yaml:"active_low"`
}

// SchedulerConfig tunes the control loop.
type SchedulerConfig struct {
	// CycleInterval is the pause between control loop iterations (milliseconds).
	CycleInterval int `yaml:"cycle_interval_ms"`

	// Debounce is the minimum time between two scheduler toggles of one outlet (seconds).
	Debounce int `yaml:"debounce_seconds"`
}

// WeatherConfig tunes weather sampling.
type WeatherConfig struct {
	// SampleInterval is the nominal DHT22 sampling period (seconds).
	SampleInterval int `yaml:"sample_interval"`

	// TemperatureUnit is "F" (default, as the original daemon stored) or "C".
	TemperatureUnit string `yaml:"temperature_unit"`
}

// CameraConfig carries the motion detector settings of birdhouse.json.
// Motion detection happens outside this daemon; the values are kept so the
// detector can be configured from the same file.
type CameraConfig struct {
	Resolution []int `yaml:"resolution"`
	FPS        int   `yaml:"fps"`
	Threshold  int   `yaml:"threshold"`
	MinArea    int   `yaml:"min_area"`
	Rotate     int   `yaml:"rotate"`
}

// DHT22Config carries the sensor wiring of birdhouse.json. The sensor driver
// is external; the values are informational here.
type DHT22Config struct {
	GPIO  int `yaml:"gpio"`
	Power int `yaml:"power"`
}

// OutletConfig is an outlet definition used by `birdhouse outlets seed`.
type OutletConfig struct {
	ID             int    `yaml:"id"`
	Name           string `yaml:"name"`
	Schedule       string `yaml:"schedule"`
	InitialState   bool   `yaml:"initial_state"`
	ScheduleActive bool   `yaml:"schedule_active"`
}

// CollaboratorConfig describes a supervised external program.
type CollaboratorConfig struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`

	// RestartDelay is the first restart backoff in seconds; 0 uses the default.
	RestartDelay int `yaml:"restart_delay"`

	// MaxRestarts caps consecutive restarts; 0 means unlimited.
	MaxRestarts int `yaml:"max_restarts"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML/JSON file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BIRDHOUSE_SECTION_KEY
// For example: BIRDHOUSE_DATABASE_PATH, BIRDHOUSE_MOTION_TIMEOUT
//
// Parameters:
//   - path: Path to the configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Locate resolves which configuration file to load.
//
// An explicit path always wins. Otherwise BIRDHOUSE_CONFIG is consulted, then
// the search list the original daemon used: the working directory, the home
// directory, /etc/birdhouse and $BIRDHOUSE_CONF, each tried for
// birdhouse.yaml then birdhouse.json.
func Locate(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v, nil
	}

	for _, candidate := range searchPaths() {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", ErrConfigNotFound
}

// searchPaths lists candidate configuration files in priority order.
func searchPaths() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	dirs = append(dirs, "/etc/birdhouse")
	if v := os.Getenv(legacyEnvConfigDir); v != "" {
		dirs = append(dirs, v)
	}

	paths := make([]string, 0, len(dirs)*2)
	for _, dir := range dirs {
		paths = append(paths,
			filepath.Join(dir, "birdhouse.yaml"),
			filepath.Join(dir, "birdhouse.json"),
		)
	}
	return paths
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "birdhouse",
			Name:     "Birdhouse",
			Timezone: "Local",
		},
		Database: DatabaseConfig{
			Path:        "./data/birdhouse.db",
			WALMode:     true,
			BusyTimeout: 5,
			Synchronous: "FULL",
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			TopicPrefix: "birdhouse",
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "birdhouse",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		GPIO: GPIOConfig{
			Driver: "cdev",
			Chip:   "gpiochip0",
		},
		Scheduler: SchedulerConfig{
			CycleInterval: 1000,
			Debounce:      60,
		},
		Weather: WeatherConfig{
			SampleInterval:  5,
			TemperatureUnit: "F",
		},
		MotionTimeout: 5,
		HistoryDays:   30,
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BIRDHOUSE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("BIRDHOUSE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("BIRDHOUSE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BIRDHOUSE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BIRDHOUSE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("BIRDHOUSE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("BIRDHOUSE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("BIRDHOUSE_GPIO_DRIVER"); v != "" {
		cfg.GPIO.Driver = v
	}

	intOverrides := []struct {
		env    string
		target *int
	}{
		{"BIRDHOUSE_API_PORT", &cfg.API.Port},
		{"BIRDHOUSE_MOTION_TIMEOUT", &cfg.MotionTimeout},
		{"BIRDHOUSE_HISTORY_DAYS", &cfg.HistoryDays},
	}
	for _, o := range intOverrides {
		v := os.Getenv(o.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", o.env, err)
		}
		*o.target = n
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid IANA zone", c.Site.Timezone))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	switch strings.ToUpper(c.Database.Synchronous) {
	case "", "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		errs = append(errs, "database.synchronous must be OFF, NORMAL, FULL or EXTRA")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	switch c.GPIO.Driver {
	case "cdev":
		if c.GPIO.Chip == "" {
			errs = append(errs, "gpio.chip is required for the cdev driver")
		}
	case "fake":
	default:
		errs = append(errs, "gpio.driver must be cdev or fake")
	}

	if c.Scheduler.CycleInterval <= 0 {
		errs = append(errs, "scheduler.cycle_interval_ms must be positive")
	}
	if c.Scheduler.Debounce < 0 {
		errs = append(errs, "scheduler.debounce_seconds must not be negative")
	}

	if c.Weather.SampleInterval <= 0 {
		errs = append(errs, "weather.sample_interval must be positive")
	}
	switch strings.ToUpper(c.Weather.TemperatureUnit) {
	case "F", "C":
	default:
		errs = append(errs, "weather.temperature_unit must be F or C")
	}

	if c.MotionTimeout <= 0 {
		errs = append(errs, "motion_timeout must be a positive number of minutes")
	}
	if c.HistoryDays <= 0 {
		errs = append(errs, "history_days must be a positive number of days")
	}

	seen := make(map[int]bool, len(c.Outlets))
	for i, o := range c.Outlets {
		if o.ID <= 0 {
			errs = append(errs, fmt.Sprintf("outlets[%d].id must be a positive GPIO pin", i))
		} else if seen[o.ID] {
			errs = append(errs, fmt.Sprintf("outlets[%d].id %d is duplicated", i, o.ID))
		}
		seen[o.ID] = true
		if o.Name == "" {
			errs = append(errs, fmt.Sprintf("outlets[%d].name is required", i))
		}
		if o.ScheduleActive && o.Schedule == "" {
			errs = append(errs, fmt.Sprintf("outlets[%d].schedule is required when schedule_active is true", i))
		}
	}

	names := make(map[string]bool, len(c.Collaborators))
	for i, p := range c.Collaborators {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("collaborators[%d].name is required", i))
		} else if names[p.Name] {
			errs = append(errs, fmt.Sprintf("collaborators[%d].name %q is duplicated", i, p.Name))
		}
		names[p.Name] = true
		if p.Command == "" {
			errs = append(errs, fmt.Sprintf("collaborators[%d].command is required", i))
		}
		if p.RestartDelay < 0 || p.MaxRestarts < 0 {
			errs = append(errs, fmt.Sprintf("collaborators[%d] restart settings must not be negative", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the time zone cron schedules are evaluated in.
func (c *Config) Location() (*time.Location, error) {
	switch c.Site.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		loc, err := time.LoadLocation(c.Site.Timezone)
		if err != nil {
			return nil, fmt.Errorf("loading time zone: %w", err)
		}
		return loc, nil
	}
}

// MotionTimeoutDuration returns MotionTimeout as a Duration.
func (c *Config) MotionTimeoutDuration() time.Duration {
	return time.Duration(c.MotionTimeout) * time.Minute
}

// CycleInterval returns the control loop period.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Scheduler.CycleInterval) * time.Millisecond
}

// DebounceWindow returns the scheduler debounce window.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Scheduler.Debounce) * time.Second
}

// SampleInterval returns the weather sampling period.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Weather.SampleInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
