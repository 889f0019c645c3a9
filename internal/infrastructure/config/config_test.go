package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
statestore:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
artnet:
  enabled: true
  short_name: "Test"
sacn:
  enabled: true
  priority: 100
universes:
  - universe: 1
    port_address: "0/0/1"
    send_partial_universe: true
devices:
  - name: "kitchen"
    universe: 1
    channel: 1
    channel_size: "8bit"
    channel_setup: "rgbw"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}

	if cfg.StateStore.Path != "/tmp/test.db" {
		t.Errorf("StateStore.Path = %q, want %q", cfg.StateStore.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if len(cfg.Universes) != 1 || !cfg.Universes[0].SendPartial {
		t.Errorf("Universes = %+v, want one with send_partial_universe", cfg.Universes)
	}

	want := []string{"r", "g", "b", "w"}
	got := cfg.Devices[0].ChannelSetup
	if len(got) != len(want) {
		t.Fatalf("ChannelSetup = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ChannelSetup[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestChannelSetupListForm(t *testing.T) {
	content := `
site:
  id: "test-site"
devices:
  - name: "spot"
    universe: 1
    channel: 10
    channel_setup:
      - r
      - g
      - b
      - 255
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []string{"r", "g", "b", "255"}
	got := cfg.Devices[0].ChannelSetup
	if len(got) != len(want) {
		t.Fatalf("ChannelSetup = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ChannelSetup[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "missing statestore path", mutate: func(c *Config) { c.StateStore.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "short name too long", mutate: func(c *Config) {
			c.ArtNet.ShortName = "a-name-well-over-seventeen-characters"
		}, wantErr: true},
		{name: "negative refresh", mutate: func(c *Config) { c.ArtNet.RefreshEvery = -1 }, wantErr: true},
		{name: "priority too high", mutate: func(c *Config) { c.SACN.Priority = 201 }, wantErr: true},
		{name: "fps zero", mutate: func(c *Config) { c.Animation.MaxFPS = 0 }, wantErr: true},
		{name: "fps above 43", mutate: func(c *Config) { c.Animation.MaxFPS = 44 }, wantErr: true},
		{name: "universe out of range", mutate: func(c *Config) {
			c.Universes = []UniverseConfig{{Universe: 64000}}
		}, wantErr: true},
		{name: "universe priority out of range", mutate: func(c *Config) {
			p := 255
			c.Universes = []UniverseConfig{{Universe: 1, Priority: &p}}
		}, wantErr: true},
		{name: "device channel zero", mutate: func(c *Config) {
			c.Devices = []DeviceConfig{{Name: "a", Universe: 1, Channel: 0}}
		}, wantErr: true},
		{name: "device channel above 512", mutate: func(c *Config) {
			c.Devices = []DeviceConfig{{Name: "a", Universe: 1, Channel: 513}}
		}, wantErr: true},
		{name: "duplicate device names", mutate: func(c *Config) {
			c.Devices = []DeviceConfig{
				{Name: "a", Universe: 1, Channel: 1},
				{Name: "a", Universe: 1, Channel: 10},
			}
		}, wantErr: true},
		{name: "bad channel size", mutate: func(c *Config) {
			c.Devices = []DeviceConfig{{Name: "a", Universe: 1, Channel: 1, ChannelSize: "12bit"}}
		}, wantErr: true},
		{name: "bad output correction", mutate: func(c *Config) {
			c.Devices = []DeviceConfig{{Name: "a", Universe: 1, Channel: 1, OutputCorrection: "exponential"}}
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("LUMEN_STATESTORE_PATH", "/custom/path.db")
	t.Setenv("LUMEN_MQTT_HOST", "mqtt.example.com")
	t.Setenv("LUMEN_MQTT_USERNAME", "testuser")
	t.Setenv("LUMEN_MQTT_PASSWORD", "testpass")
	t.Setenv("LUMEN_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("LUMEN_ARTNET_BIND", "192.168.1.10")

	applyEnvOverrides(cfg)

	if cfg.StateStore.Path != "/custom/path.db" {
		t.Errorf("StateStore.Path = %q, want %q", cfg.StateStore.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.ArtNet.BindAddress != "192.168.1.10" {
		t.Errorf("ArtNet.BindAddress = %q, want %q", cfg.ArtNet.BindAddress, "192.168.1.10")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}

	if cfg.StateStore.Path == "" {
		t.Error("defaultConfig should have non-empty StateStore.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.ArtNet.RefreshEvery != 0.8 {
		t.Errorf("defaultConfig ArtNet.RefreshEvery = %v, want 0.8", cfg.ArtNet.RefreshEvery)
	}

	if cfg.Animation.MaxFPS != 25 {
		t.Errorf("defaultConfig Animation.MaxFPS = %d, want 25", cfg.Animation.MaxFPS)
	}
}

func TestDeviceChannelWidth(t *testing.T) {
	tests := []struct {
		size string
		want int
	}{
		{size: "", want: 1},
		{size: "8bit", want: 1},
		{size: "16bit", want: 2},
		{size: "24bit", want: 3},
		{size: "32bit", want: 4},
	}

	for _, tt := range tests {
		d := DeviceConfig{ChannelSize: tt.size}
		if got := d.ChannelWidth(); got != tt.want {
			t.Errorf("ChannelWidth(%q) = %d, want %d", tt.size, got, tt.want)
		}
	}
}
