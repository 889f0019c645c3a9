package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for lumen-core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	StateStore StateStoreConfig `yaml:"statestore"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	ArtNet     ArtNetConfig     `yaml:"artnet"`
	SACN       SACNConfig       `yaml:"sacn"`
	Animation  AnimationConfig  `yaml:"animation"`
	Universes  []UniverseConfig `yaml:"universes"`
	Devices    []DeviceConfig   `yaml:"devices"`
}

// SiteConfig contains installation-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// StateStoreConfig contains SQLite snapshot store settings.
type StateStoreConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains channel telemetry settings.
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

// ArtNetConfig contains the Art-Net transport settings.
type ArtNetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BindAddress string `yaml:"bind_address"`
	ShortName   string `yaml:"short_name"`
	LongName    string `yaml:"long_name"`

	// Polling enables the controller-side ArtPoll loop that discovers
	// output nodes on the network.
	Polling bool `yaml:"polling"`

	// Sequencing enables outbound ArtDmx sequence numbering (1-255).
	Sequencing bool `yaml:"sequencing"`

	// RefreshEvery is the retransmit interval in seconds for universes
	// with no recent writes. 0 disables refresh.
	RefreshEvery float64 `yaml:"refresh_every"`

	// RateLimit bounds how many inbound updates per second are forwarded
	// to entity consumers. Excess updates coalesce, last value wins.
	RateLimit float64 `yaml:"rate_limit"`
}

// SACNConfig contains the sACN (E1.31) transport settings.
type SACNConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BindAddress string `yaml:"bind_address"`

	// SourceName is the sender identity in outbound framing layers,
	// at most 63 characters.
	SourceName string `yaml:"source_name"`

	// Priority is the default outbound priority, 0-200.
	Priority int `yaml:"priority"`

	MulticastTTL int     `yaml:"multicast_ttl"`
	RefreshEvery float64 `yaml:"refresh_every"`
	RateLimit    float64 `yaml:"rate_limit"`
}

// AnimationConfig contains the frame clock settings.
type AnimationConfig struct {
	// MaxFPS is the animation frame rate, 1-43 inclusive.
	MaxFPS int `yaml:"max_fps"`
}

// HostPort is a unicast transmit target.
type HostPort struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// UniverseConfig contains per-universe transmit options.
type UniverseConfig struct {
	// Universe is the flat sACN universe number, 1-63999.
	Universe int `yaml:"universe"`

	// PortAddress is the Art-Net "net/subnet/universe" triple this
	// universe is addressed as. Empty derives it from Universe.
	PortAddress string `yaml:"port_address"`

	// SendPartial transmits only the changed slot range instead of the
	// full 512 bytes.
	SendPartial bool `yaml:"send_partial_universe"`

	// ManualNodes are static Art-Net unicast targets used alongside or
	// instead of discovered nodes.
	ManualNodes []HostPort `yaml:"manual_nodes"`

	// UnicastAddresses replace sACN multicast for this universe.
	UnicastAddresses []HostPort `yaml:"unicast_addresses"`

	// Priority overrides the transport default for this universe.
	Priority *int `yaml:"priority"`

	// SyncAddress is carried in the sACN framing layer; 0 means
	// unsynchronized.
	SyncAddress int `yaml:"sync_address"`

	EnablePreviewData bool   `yaml:"enable_preview_data"`
	InterfaceIP       string `yaml:"interface_ip"`
}

// DeviceConfig contains one resolved fixture placement.
type DeviceConfig struct {
	Name     string `yaml:"name"`
	Universe int    `yaml:"universe"`

	// Channel is the 1-based DMX start address.
	Channel int `yaml:"channel"`

	// ChannelSize selects the per-channel byte width: 8bit, 16bit,
	// 24bit or 32bit.
	ChannelSize string `yaml:"channel_size"`

	ByteOrder        string       `yaml:"byte_order"`
	ChannelSetup     ChannelSetup `yaml:"channel_setup"`
	OutputCorrection string       `yaml:"output_correction"`

	// MinKelvin and MaxKelvin bound the colour-temperature range for
	// tunable-white devices.
	MinKelvin int `yaml:"min_kelvin"`
	MaxKelvin int `yaml:"max_kelvin"`
}

// ChannelSetup is a device channel layout: either a compact string
// ("rgbw") or a list of role tokens and literal constants.
type ChannelSetup []string

// UnmarshalYAML accepts both forms. The compact string expands to one
// token per rune; list items may be strings or integers.
func (s *ChannelSetup) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var compact string
		if err := value.Decode(&compact); err != nil {
			return err
		}
		tokens := make([]string, 0, len(compact))
		for _, r := range compact {
			tokens = append(tokens, string(r))
		}
		*s = tokens
		return nil

	case yaml.SequenceNode:
		tokens := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			var str string
			if err := item.Decode(&str); err == nil {
				tokens = append(tokens, str)
				continue
			}
			var n int
			if err := item.Decode(&n); err != nil {
				return fmt.Errorf("channel_setup item %q is neither role nor number", item.Value)
			}
			tokens = append(tokens, strconv.Itoa(n))
		}
		*s = tokens
		return nil

	default:
		return fmt.Errorf("channel_setup must be a string or a list")
	}
}

// Load reads, parses, and validates the configuration file at path.
//
// Values resolve in order: built-in defaults, then the YAML file, then
// LUMEN_* environment variable overrides.
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

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Lumen",
		},
		StateStore: StateStoreConfig{
			Path:        "./data/lumen.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lumen-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		ArtNet: ArtNetConfig{
			Enabled:      true,
			BindAddress:  "0.0.0.0",
			ShortName:    "Lumen",
			LongName:     "Lumen DMX lighting controller",
			Polling:      true,
			Sequencing:   true,
			RefreshEvery: 0.8,
			RateLimit:    2,
		},
		SACN: SACNConfig{
			Enabled:      false,
			BindAddress:  "0.0.0.0",
			SourceName:   "Lumen",
			Priority:     100,
			MulticastTTL: 8,
			RefreshEvery: 0.8,
			RateLimit:    2,
		},
		Animation: AnimationConfig{
			MaxFPS: 25,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LUMEN_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUMEN_STATESTORE_PATH"); v != "" {
		cfg.StateStore.Path = v
	}

	if v := os.Getenv("LUMEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LUMEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUMEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("LUMEN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("LUMEN_ARTNET_BIND"); v != "" {
		cfg.ArtNet.BindAddress = v
	}
	if v := os.Getenv("LUMEN_SACN_BIND"); v != "" {
		cfg.SACN.BindAddress = v
	}
}

// Validate checks the configuration for errors.
//
// Out-of-range values are rejected here, at load time, so the per-frame
// hot path never has to clamp or second-guess them.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.StateStore.Path == "" {
		errs = append(errs, "statestore.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(c.ArtNet.ShortName) > 17 {
		errs = append(errs, "artnet.short_name must be at most 17 characters")
	}
	if len(c.ArtNet.LongName) > 63 {
		errs = append(errs, "artnet.long_name must be at most 63 characters")
	}
	if c.ArtNet.RefreshEvery < 0 {
		errs = append(errs, "artnet.refresh_every must not be negative")
	}
	if c.ArtNet.RateLimit < 0 {
		errs = append(errs, "artnet.rate_limit must not be negative")
	}

	if len(c.SACN.SourceName) > 63 {
		errs = append(errs, "sacn.source_name must be at most 63 characters")
	}
	if c.SACN.Priority < 0 || c.SACN.Priority > 200 {
		errs = append(errs, "sacn.priority must be between 0 and 200")
	}
	if c.SACN.RefreshEvery < 0 {
		errs = append(errs, "sacn.refresh_every must not be negative")
	}
	if c.SACN.RateLimit < 0 {
		errs = append(errs, "sacn.rate_limit must not be negative")
	}

	if c.Animation.MaxFPS < 1 || c.Animation.MaxFPS > 43 {
		errs = append(errs, "animation.max_fps must be between 1 and 43")
	}

	for i, u := range c.Universes {
		if u.Universe < 1 || u.Universe > 63999 {
			errs = append(errs, fmt.Sprintf("universes[%d].universe must be between 1 and 63999", i))
		}
		if u.Priority != nil && (*u.Priority < 0 || *u.Priority > 200) {
			errs = append(errs, fmt.Sprintf("universes[%d].priority must be between 0 and 200", i))
		}
		if u.SyncAddress < 0 || u.SyncAddress > 63999 {
			errs = append(errs, fmt.Sprintf("universes[%d].sync_address must be between 0 and 63999", i))
		}
	}

	seen := make(map[string]bool)
	for i, d := range c.Devices {
		if d.Name == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].name is required", i))
		} else if seen[d.Name] {
			errs = append(errs, fmt.Sprintf("devices[%d].name %q is duplicated", i, d.Name))
		}
		seen[d.Name] = true

		if d.Channel < 1 || d.Channel > 512 {
			errs = append(errs, fmt.Sprintf("devices[%d].channel must be between 1 and 512", i))
		}
		switch d.ChannelSize {
		case "", "8bit", "16bit", "24bit", "32bit":
		default:
			errs = append(errs, fmt.Sprintf("devices[%d].channel_size must be one of 8bit, 16bit, 24bit, 32bit", i))
		}
		switch d.ByteOrder {
		case "", "big", "little":
		default:
			errs = append(errs, fmt.Sprintf("devices[%d].byte_order must be big or little", i))
		}
		switch d.OutputCorrection {
		case "", "linear", "quadratic", "cubic", "quadruple":
		default:
			errs = append(errs, fmt.Sprintf("devices[%d].output_correction must be one of linear, quadratic, cubic, quadruple", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ChannelWidth returns the device's channel byte width.
func (d DeviceConfig) ChannelWidth() int {
	switch d.ChannelSize {
	case "16bit":
		return 2
	case "24bit":
		return 3
	case "32bit":
		return 4
	default:
		return 1
	}
}

// GetArtNetRefresh returns the Art-Net refresh interval as a Duration.
func (c *Config) GetArtNetRefresh() time.Duration {
	return time.Duration(c.ArtNet.RefreshEvery * float64(time.Second))
}

// GetSACNRefresh returns the sACN refresh interval as a Duration.
func (c *Config) GetSACNRefresh() time.Duration {
	return time.Duration(c.SACN.RefreshEvery * float64(time.Second))
}
