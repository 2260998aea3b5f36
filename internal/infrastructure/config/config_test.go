package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validJWTSecret meets the 32-character minimum requirement.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
coiot:
  multicast_address: "224.0.1.187"
  port: 5683
  interface: "eth0"
  fallback_validity: "3m"
registry:
  stale_time: "90m"
device_http:
  username: "admin"
  password: "hunter2"
  timeout: "2s"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  port: 8090
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Registry.StaleTime != 90*time.Minute {
		t.Errorf("Registry.StaleTime = %v, want 90m", cfg.Registry.StaleTime)
	}
	if cfg.DeviceHTTP.Timeout != 2*time.Second {
		t.Errorf("DeviceHTTP.Timeout = %v, want 2s", cfg.DeviceHTTP.Timeout)
	}
	if cfg.DeviceHTTP.Username != "admin" {
		t.Errorf("DeviceHTTP.Username = %q, want %q", cfg.DeviceHTTP.Username, "admin")
	}
	if cfg.CoIoT.Interface != "eth0" {
		t.Errorf("CoIoT.Interface = %q, want %q", cfg.CoIoT.Interface, "eth0")
	}
	if cfg.CoIoT.FallbackValidity != 3*time.Minute {
		t.Errorf("CoIoT.FallbackValidity = %v, want 3m", cfg.CoIoT.FallbackValidity)
	}
	// Defaults survive partial files
	if !cfg.CoIoT.AutoStart {
		t.Error("CoIoT.AutoStart should default to true")
	}
	if cfg.Journal.Retention != 30*24*time.Hour {
		t.Errorf("Journal.Retention = %v, want 720h", cfg.Journal.Retention)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
site:
  id: ""
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for empty site.id, got nil")
	}
	if !strings.Contains(err.Error(), "site.id is required") {
		t.Errorf("error = %v, want mention of site.id", err)
	}
}

func TestLoad_BadStaleTimeEnv(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)
	t.Setenv("GRAYLOGIC_STALE_TIME", "eight hours")

	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for unparsable GRAYLOGIC_STALE_TIME, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Security.JWT.Secret = validJWTSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}, wantErr: false},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "missing multicast address", mutate: func(c *Config) { c.CoIoT.MulticastAddress = "" }, wantErr: true},
		{name: "invalid coiot port", mutate: func(c *Config) { c.CoIoT.Port = 0 }, wantErr: true},
		{name: "negative fallback validity", mutate: func(c *Config) { c.CoIoT.FallbackValidity = -time.Second }, wantErr: true},
		{name: "zero fallback validity", mutate: func(c *Config) { c.CoIoT.FallbackValidity = 0 }, wantErr: false},
		{name: "zero stale time", mutate: func(c *Config) { c.Registry.StaleTime = 0 }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.DeviceHTTP.MaxRetries = -1 }, wantErr: true},
		{name: "zero device timeout", mutate: func(c *Config) { c.DeviceHTTP.Timeout = 0 }, wantErr: true},
		{name: "journal without database", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "no database when journal disabled", mutate: func(c *Config) {
			c.Journal.Enabled = false
			c.Database.Path = ""
		}, wantErr: false},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "influxdb without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "invalid api port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: true},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
		{name: "no JWT secret when api disabled", mutate: func(c *Config) {
			c.API.Enabled = false
			c.Security.JWT.Secret = ""
		}, wantErr: false},
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

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("GRAYLOGIC_STALE_TIME", "45m")
	t.Setenv("GRAYLOGIC_COIOT_INTERFACE", "br0")
	t.Setenv("GRAYLOGIC_COIOT_PORT", "15683")
	t.Setenv("GRAYLOGIC_COIOT_FALLBACK_VALIDITY", "90s")
	t.Setenv("GRAYLOGIC_DEVICE_USERNAME", "admin")
	t.Setenv("GRAYLOGIC_DEVICE_PASSWORD", "devicepass")
	t.Setenv("GRAYLOGIC_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_API_HOST", "192.168.1.1")
	t.Setenv("GRAYLOGIC_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYLOGIC_JWT_SECRET", "jwt-secret")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Registry.StaleTime != 45*time.Minute {
		t.Errorf("Registry.StaleTime = %v, want 45m", cfg.Registry.StaleTime)
	}
	if cfg.CoIoT.Interface != "br0" {
		t.Errorf("CoIoT.Interface = %q, want %q", cfg.CoIoT.Interface, "br0")
	}
	if cfg.CoIoT.Port != 15683 {
		t.Errorf("CoIoT.Port = %d, want 15683", cfg.CoIoT.Port)
	}
	if cfg.CoIoT.FallbackValidity != 90*time.Second {
		t.Errorf("CoIoT.FallbackValidity = %v, want 90s", cfg.CoIoT.FallbackValidity)
	}
	if cfg.DeviceHTTP.Username != "admin" || cfg.DeviceHTTP.Password != "devicepass" {
		t.Errorf("DeviceHTTP credentials = %q/%q, want admin/devicepass", cfg.DeviceHTTP.Username, cfg.DeviceHTTP.Password)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
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
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Registry.StaleTime != 8*time.Hour {
		t.Errorf("Default Registry.StaleTime = %v, want 8h", cfg.Registry.StaleTime)
	}
	if cfg.CoIoT.MulticastAddress != "224.0.1.187" {
		t.Errorf("Default CoIoT.MulticastAddress = %q, want 224.0.1.187", cfg.CoIoT.MulticastAddress)
	}
	if cfg.CoIoT.Port != 5683 {
		t.Errorf("Default CoIoT.Port = %d, want 5683", cfg.CoIoT.Port)
	}
	if cfg.CoIoT.FallbackValidity != 10*time.Minute {
		t.Errorf("Default CoIoT.FallbackValidity = %v, want 10m", cfg.CoIoT.FallbackValidity)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("Default MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if got := cfg.CoIoTAddress(); got != "224.0.1.187:5683" {
		t.Errorf("CoIoTAddress() = %q, want 224.0.1.187:5683", got)
	}
}
