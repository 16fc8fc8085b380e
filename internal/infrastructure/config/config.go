package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the RF bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device       DeviceConfig       `yaml:"device"`
	Network      NetworkConfig      `yaml:"network"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	RF           RFConfig           `yaml:"rf"`
	Queue        QueueConfig        `yaml:"queue"`
	Loop         LoopConfig         `yaml:"loop"`
	Discovery    DiscoveryConfig    `yaml:"discovery"`
	Indicator    IndicatorConfig    `yaml:"indicator"`
	Update       UpdateConfig       `yaml:"update"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	Database     DatabaseConfig     `yaml:"database"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DeviceConfig identifies this bridge on the network and the message bus.
type DeviceConfig struct {
	// ID is the hostname-style identifier. It prefixes every MQTT topic
	// and is the mDNS instance name.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// NetworkConfig describes the link the bridge depends on.
type NetworkConfig struct {
	// Interface is the network interface that must be up (e.g. "wlan0").
	Interface string `yaml:"interface"`

	// ReassociateCommand is run (not awaited) when the link is down.
	// Typically "wpa_cli -i wlan0 reassociate". Empty disables it.
	ReassociateCommand []string `yaml:"reassociate_command"`

	// WirelessStatsPath is read for signal-strength telemetry.
	WirelessStatsPath string `yaml:"wireless_stats_path"`
}

// ConnectivityConfig contains the state machine timing settings.
type ConnectivityConfig struct {
	// LinkTimeout is how long a link acquisition attempt may take (seconds).
	LinkTimeout int `yaml:"link_timeout"`

	// SignalInterval is the period of signal-strength telemetry (seconds).
	SignalInterval int `yaml:"signal_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// KeepAlive is the MQTT keepalive interval (seconds).
	KeepAlive int `yaml:"keep_alive"`

	// InboxSize bounds the number of inbound messages buffered between ticks.
	InboxSize int `yaml:"inbox_size"`
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

// RFConfig selects and configures the 433 MHz transceiver driver.
type RFConfig struct {
	// Driver is one of "gpio", "serial" or "stub".
	Driver string `yaml:"driver"`

	// DefaultProtocol is used for requests that leave the protocol unset.
	DefaultProtocol int `yaml:"default_protocol"`

	// MaxRepeat caps the repeatTransmit a command may ask for (1..255).
	MaxRepeat int `yaml:"max_repeat"`

	GPIO   RFGPIOConfig   `yaml:"gpio"`
	Serial RFSerialConfig `yaml:"serial"`
}

// RFGPIOConfig wires the transmitter and receiver data pins to GPIO lines.
type RFGPIOConfig struct {
	Chip        string `yaml:"chip"`
	TransmitPin int    `yaml:"transmit_pin"`
	ReceivePin  int    `yaml:"receive_pin"`

	// ReceiveTolerance is the accepted pulse deviation in percent.
	ReceiveTolerance int `yaml:"receive_tolerance"`
}

// RFSerialConfig describes a serial-attached transceiver.
type RFSerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// QueueConfig contains command queue settings.
type QueueConfig struct {
	MaxCount int `yaml:"max_count"`
}

// LoopConfig contains tick loop pacing (milliseconds).
type LoopConfig struct {
	TickInterval int `yaml:"tick_interval"`
	IdleDelay    int `yaml:"idle_delay"`

	// PumpBatch bounds the inbound messages decoded per tick.
	PumpBatch int `yaml:"pump_batch"`
}

// DiscoveryConfig contains mDNS service registration settings.
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
	Domain  string `yaml:"domain"`
}

// IndicatorConfig wires an optional status LED.
type IndicatorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Chip    string `yaml:"chip"`
	Pin     int    `yaml:"pin"`
}

// UpdateConfig contains the update transport settings.
type UpdateConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Token      string `yaml:"token"`
	StagingDir string `yaml:"staging_dir"`

	// InstallPath receives the staged image once the tick loop applies it.
	// Empty leaves the image in StagingDir for the supervisor.
	InstallPath string `yaml:"install_path"`

	// MaxSize is the largest accepted image in bytes.
	MaxSize int64 `yaml:"max_size"`
}

// ProvisioningConfig contains double-reset detection settings.
type ProvisioningConfig struct {
	// ResetWindow is the double-reset detection window (seconds).
	ResetWindow int `yaml:"reset_window"`

	// Timeout bounds how long the provisioning portal waits (seconds).
	Timeout int `yaml:"timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RFBRIDGE_SECTION_KEY
// For example: RFBRIDGE_MQTT_HOST, RFBRIDGE_DEVICE_ID
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Parse decodes and validates a YAML document without environment overrides.
// Used to vet configuration uploaded during provisioning.
func Parse(data []byte) (*Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func decode(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with the defaults of the reference deployment.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   "rfbridge",
			Name: "433 MHz RF Bridge",
		},
		Network: NetworkConfig{
			Interface:         "wlan0",
			WirelessStatsPath: "/proc/net/wireless",
		},
		Connectivity: ConnectivityConfig{
			LinkTimeout:    30,
			SignalInterval: 60,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			KeepAlive: 10,
			InboxSize: 64,
		},
		RF: RFConfig{
			Driver:          "stub",
			DefaultProtocol: 2,
			MaxRepeat:       255,
			GPIO: RFGPIOConfig{
				Chip:             "gpiochip0",
				TransmitPin:      17,
				ReceivePin:       27,
				ReceiveTolerance: 60,
			},
			Serial: RFSerialConfig{
				Port:     "/dev/ttyUSB0",
				BaudRate: 115200,
			},
		},
		Queue: QueueConfig{
			MaxCount: 30,
		},
		Loop: LoopConfig{
			TickInterval: 1,
			IdleDelay:    10,
			PumpBatch:    16,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
			Service: "_rfbridge._tcp",
			Domain:  "local.",
		},
		Indicator: IndicatorConfig{
			Chip: "gpiochip0",
		},
		Update: UpdateConfig{
			Enabled:    true,
			Host:       "0.0.0.0",
			Port:       8266,
			StagingDir: "./data/update",
			MaxSize:    64 << 20,
		},
		Provisioning: ProvisioningConfig{
			ResetWindow: 10,
			Timeout:     300,
		},
		Database: DatabaseConfig{
			Path:        "./data/rfbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RFBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RFBRIDGE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// MQTT
	if v := os.Getenv("RFBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RFBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("RFBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RFBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("RFBRIDGE_RF_DRIVER"); v != "" {
		cfg.RF.Driver = v
	}
	if v := os.Getenv("RFBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("RFBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Update token (IMPORTANT: always override in production)
	if v := os.Getenv("RFBRIDGE_UPDATE_TOKEN"); v != "" {
		cfg.Update.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	} else if strings.ContainsAny(c.Device.ID, "/#+ ") {
		errs = append(errs, "device.id must not contain '/', '#', '+' or spaces")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.InitialDelay < 0 || c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must be >= initial_delay >= 0")
	}

	switch c.RF.Driver {
	case "gpio", "serial", "stub":
	default:
		errs = append(errs, fmt.Sprintf("rf.driver %q must be gpio, serial or stub", c.RF.Driver))
	}
	if c.RF.Driver == "serial" && c.RF.Serial.Port == "" {
		errs = append(errs, "rf.serial.port is required for the serial driver")
	}
	if c.RF.MaxRepeat < 1 || c.RF.MaxRepeat > 255 {
		errs = append(errs, "rf.max_repeat must be between 1 and 255")
	}

	if c.Queue.MaxCount < 1 {
		errs = append(errs, "queue.max_count must be at least 1")
	}

	if c.Update.Enabled {
		if c.Update.Port < 1 || c.Update.Port > 65535 {
			errs = append(errs, "update.port must be between 1 and 65535")
		}
		if c.Update.StagingDir == "" {
			errs = append(errs, "update.staging_dir is required")
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TopicPrefix returns the MQTT topic prefix for this device ("/<device.id>").
func (c *Config) TopicPrefix() string {
	return "/" + c.Device.ID
}

// GetTickInterval returns the loop tick interval as a Duration.
func (c *Config) GetTickInterval() time.Duration {
	return time.Duration(c.Loop.TickInterval) * time.Millisecond
}

// GetIdleDelay returns the idle yield delay as a Duration.
func (c *Config) GetIdleDelay() time.Duration {
	return time.Duration(c.Loop.IdleDelay) * time.Millisecond
}

// GetLinkTimeout returns the link acquisition timeout as a Duration.
func (c *Config) GetLinkTimeout() time.Duration {
	return time.Duration(c.Connectivity.LinkTimeout) * time.Second
}

// GetSignalInterval returns the signal telemetry period as a Duration.
func (c *Config) GetSignalInterval() time.Duration {
	return time.Duration(c.Connectivity.SignalInterval) * time.Second
}

// GetResetWindow returns the double-reset window as a Duration.
func (c *Config) GetResetWindow() time.Duration {
	return time.Duration(c.Provisioning.ResetWindow) * time.Second
}

// GetProvisioningTimeout returns the provisioning portal timeout as a Duration.
func (c *Config) GetProvisioningTimeout() time.Duration {
	return time.Duration(c.Provisioning.Timeout) * time.Second
}
