package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/birdlab/gotrak/pkg/pose"
)

// Device-accepted measurement rate range in Hz.
const (
	MinMeasurementRate = 20.0
	MaxMeasurementRate = 255.0
)

// Config represents the application configuration.
type Config struct {
	Serial  SerialConfig   `yaml:"serial" mapstructure:"serial"`
	Session SessionConfig  `yaml:"session" mapstructure:"session"`
	Sensors []SensorConfig `yaml:"sensors" mapstructure:"sensors"`
	Mock    MockConfig     `yaml:"mock" mapstructure:"mock"`
	Debug   bool           `yaml:"debug" mapstructure:"debug"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port        string        `yaml:"port" mapstructure:"port"`
	BaudRate    int           `yaml:"baud_rate" mapstructure:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
}

// SessionConfig contains device-wide sampling parameters.
type SessionConfig struct {
	MeasurementRateHz float64       `yaml:"measurement_rate_hz" mapstructure:"measurement_rate_hz"` // Device-internal sampling rate (20-255 Hz)
	MaxRange          string        `yaml:"max_range" mapstructure:"max_range"`                     // "36in" or "72in"
	PollInterval      time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`             // Sweep cadence, decoupled from the device rate
	RetryBudget       int           `yaml:"retry_budget" mapstructure:"retry_budget"`               // Consecutive all-timeout sweeps before the session goes fatal
	OutputMode        string        `yaml:"output_mode" mapstructure:"output_mode"`                 // Default orientation representation
	Hemisphere        string        `yaml:"hemisphere" mapstructure:"hemisphere"`                   // Default hemisphere
}

// SensorConfig overrides the session defaults for one sensor.
type SensorConfig struct {
	ID         int    `yaml:"id" mapstructure:"id"`
	OutputMode string `yaml:"output_mode" mapstructure:"output_mode"`
	Hemisphere string `yaml:"hemisphere" mapstructure:"hemisphere"`
}

// MockConfig contains simulated device configuration.
type MockConfig struct {
	Sensors     int           `yaml:"sensors" mapstructure:"sensors"`           // Number of simulated sensors
	Transmitter bool          `yaml:"transmitter" mapstructure:"transmitter"`   // Whether a transmitter is simulated
	Radius      float64       `yaml:"radius" mapstructure:"radius"`             // Orbit radius (device units)
	OrbitPeriod time.Duration `yaml:"orbit_period" mapstructure:"orbit_period"` // One full orbit per sensor
	NoiseLevel  float64       `yaml:"noise_level" mapstructure:"noise_level"`   // Position noise amplitude
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:        "/dev/ttyUSB0",
			BaudRate:    115200,
			ReadTimeout: 500 * time.Millisecond,
		},
		Session: SessionConfig{
			MeasurementRateHz: 100.0,
			MaxRange:          "36in",
			PollInterval:      100 * time.Millisecond,
			RetryBudget:       5,
			OutputMode:        "quaternion",
			Hemisphere:        "front",
		},
		Mock: MockConfig{
			Sensors:     2,
			Transmitter: true,
			Radius:      10.0,
			OrbitPeriod: 20 * time.Second,
			NoiseLevel:  0.001,
		},
		Debug: false,
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that every configured value parses and is in range.
func (c *Config) Validate() error {
	if c.Session.MeasurementRateHz < MinMeasurementRate || c.Session.MeasurementRateHz > MaxMeasurementRate {
		return fmt.Errorf("measurement_rate_hz %.1f outside device range %.0f-%.0f",
			c.Session.MeasurementRateHz, MinMeasurementRate, MaxMeasurementRate)
	}
	if c.Session.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.Session.PollInterval)
	}
	if c.Session.RetryBudget <= 0 {
		return fmt.Errorf("retry_budget must be positive, got %d", c.Session.RetryBudget)
	}
	if _, err := c.ParsedMaxRange(); err != nil {
		return err
	}
	if _, err := pose.ParseOutputMode(c.Session.OutputMode); err != nil {
		return err
	}
	if _, err := pose.ParseHemisphere(c.Session.Hemisphere); err != nil {
		return err
	}
	for _, s := range c.Sensors {
		if s.ID < 0 {
			return fmt.Errorf("sensor id must be non-negative, got %d", s.ID)
		}
		if s.OutputMode != "" {
			if _, err := pose.ParseOutputMode(s.OutputMode); err != nil {
				return fmt.Errorf("sensor %d: %w", s.ID, err)
			}
		}
		if s.Hemisphere != "" {
			if _, err := pose.ParseHemisphere(s.Hemisphere); err != nil {
				return fmt.Errorf("sensor %d: %w", s.ID, err)
			}
		}
	}
	if c.Mock.Sensors < 0 {
		return fmt.Errorf("mock sensor count must be non-negative, got %d", c.Mock.Sensors)
	}
	return nil
}

// ParsedMaxRange returns the typed max range.
func (c *Config) ParsedMaxRange() (pose.MaxRange, error) {
	return pose.ParseMaxRange(c.Session.MaxRange)
}

// SensorMode returns the output mode for a sensor, falling back to the
// session default when no override exists.
func (c *Config) SensorMode(id int) (pose.OutputMode, error) {
	for _, s := range c.Sensors {
		if s.ID == id && s.OutputMode != "" {
			return pose.ParseOutputMode(s.OutputMode)
		}
	}
	return pose.ParseOutputMode(c.Session.OutputMode)
}

// SensorHemisphere returns the hemisphere for a sensor, falling back to the
// session default when no override exists.
func (c *Config) SensorHemisphere(id int) (pose.Hemisphere, error) {
	for _, s := range c.Sensors {
		if s.ID == id && s.Hemisphere != "" {
			return pose.ParseHemisphere(s.Hemisphere)
		}
	}
	return pose.ParseHemisphere(c.Session.Hemisphere)
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}

	if c.Session.MeasurementRateHz == 0 {
		c.Session.MeasurementRateHz = def.Session.MeasurementRateHz
	}
	if c.Session.MaxRange == "" {
		c.Session.MaxRange = def.Session.MaxRange
	}
	if c.Session.PollInterval == 0 {
		c.Session.PollInterval = def.Session.PollInterval
	}
	if c.Session.RetryBudget == 0 {
		c.Session.RetryBudget = def.Session.RetryBudget
	}
	if c.Session.OutputMode == "" {
		c.Session.OutputMode = def.Session.OutputMode
	}
	if c.Session.Hemisphere == "" {
		c.Session.Hemisphere = def.Session.Hemisphere
	}

	if c.Mock.Sensors == 0 {
		c.Mock.Sensors = def.Mock.Sensors
	}
	if c.Mock.Radius == 0 {
		c.Mock.Radius = def.Mock.Radius
	}
	if c.Mock.OrbitPeriod == 0 {
		c.Mock.OrbitPeriod = def.Mock.OrbitPeriod
	}
}
