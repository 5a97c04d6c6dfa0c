// Package config loads the taskboot configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcu-template/taskboot/pkg/credentials"
	"github.com/mcu-template/taskboot/pkg/netjoin"
	"github.com/mcu-template/taskboot/pkg/station"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete board configuration.
type Config struct {
	Board       BoardConfig       `yaml:"board"`
	App         AppConfig         `yaml:"app"`
	WiFi        WiFiConfig        `yaml:"wifi"`
	Credentials CredentialsConfig `yaml:"credentials"`
	MDNS        MDNSConfig        `yaml:"mdns"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Log         LogConfig         `yaml:"log"`
	Sim         SimConfig         `yaml:"sim"`
}

// BoardConfig describes the target.
type BoardConfig struct {
	Name     string `yaml:"name"`
	Cores    int    `yaml:"cores"`
	Firmware string `yaml:"firmware"`
}

// AppConfig selects the application to boot.
type AppConfig struct {
	// Select is an index into the app table or an app name.
	Select string `yaml:"select"`
}

// Index returns the selection as a table index, if it is numeric.
func (a AppConfig) Index() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(a.Select))
	if err != nil {
		return 0, false
	}
	return n, true
}

// WiFiConfig holds the fallback network credentials and join settings.
type WiFiConfig struct {
	SSID       string        `yaml:"ssid"`
	Passphrase string        `yaml:"passphrase"`
	MaxRetries int           `yaml:"max_retries"`
	MinAuth    string        `yaml:"min_auth"`
	Timeout    time.Duration `yaml:"timeout"`
}

// AuthMode parses MinAuth.
func (w WiFiConfig) AuthMode() (netjoin.AuthMode, error) {
	return netjoin.ParseAuthMode(w.MinAuth)
}

// CredentialsConfig locates the credential store.
type CredentialsConfig struct {
	// Path is the credentials file. Empty means the user config directory.
	Path string `yaml:"path"`
}

// ResolvedPath returns Path, or taskboot/wifi.json under the user config
// directory.
func (c CredentialsConfig) ResolvedPath() string {
	if c.Path != "" {
		return c.Path
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "taskboot", "wifi.json")
}

// MDNSConfig controls service advertising.
type MDNSConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Instance  string `yaml:"instance"`
	Prefix    string `yaml:"prefix"`
	Service   string `yaml:"service"`
	Port      int    `yaml:"port"`
	Interface string `yaml:"interface"`
}

// HTTPConfig configures the http_server app.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Addr returns the listen address.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}

// TelemetryConfig configures MQTT publishing. An empty broker disables it.
type TelemetryConfig struct {
	Broker string `yaml:"broker"`
	Retain bool   `yaml:"retain"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`

	// Trace is the path of the join trace file. Empty disables it.
	Trace string `yaml:"trace"`
}

// SlogLevel maps Level to a slog level.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SimConfig describes the simulated radio environment.
type SimConfig struct {
	Delay        time.Duration    `yaml:"delay"`
	AccessPoints []SimAccessPoint `yaml:"access_points"`
}

// SimAccessPoint is one simulated network.
type SimAccessPoint struct {
	SSID       string `yaml:"ssid"`
	Auth       string `yaml:"auth"`
	Passphrase string `yaml:"passphrase"`
	Address    string `yaml:"address"`
	FailFirst  int    `yaml:"fail_first"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Board: BoardConfig{
			Name:     "esp32-devkit",
			Cores:    2,
			Firmware: "1.0.0",
		},
		App: AppConfig{Select: "0"},
		WiFi: WiFiConfig{
			MaxRetries: netjoin.DefaultMaxRetries,
			MinAuth:    netjoin.AuthWPA2PSK.String(),
		},
		MDNS: MDNSConfig{
			Enabled: true,
			Prefix:  "taskboot",
			Service: "_http._tcp",
			Port:    8080,
		},
		HTTP: HTTPConfig{Port: 8080},
		Log:  LogConfig{Level: "info"},
		Sim:  SimConfig{Delay: 50 * time.Millisecond},
	}
}

// LoadError reports a configuration file that could not be used.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return e.File + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.File + ": " + e.Message
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to parse YAML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{File: path, Message: "validation failed", Cause: err}
	}
	return cfg, nil
}

// Validate reports the first problem found.
func (c *Config) Validate() error {
	if c.Board.Name == "" {
		return invalid("board.name is required")
	}
	if c.Board.Cores < 1 {
		return invalid("board.cores must be at least 1, got %d", c.Board.Cores)
	}
	if strings.TrimSpace(c.App.Select) == "" {
		return invalid("app.select is required")
	}
	if n, ok := c.App.Index(); ok && n < 0 {
		return invalid("app.select index %d is negative", n)
	}

	if c.WiFi.SSID != "" {
		if err := credentials.ValidateSSID(c.WiFi.SSID); err != nil {
			return invalid("wifi.ssid: %v", err)
		}
	}
	if err := credentials.ValidatePassphrase(c.WiFi.Passphrase); err != nil {
		return invalid("wifi.passphrase: %v", err)
	}
	if c.WiFi.MaxRetries < 0 {
		return invalid("wifi.max_retries must not be negative, got %d", c.WiFi.MaxRetries)
	}
	if _, err := c.WiFi.AuthMode(); err != nil {
		return invalid("wifi.min_auth: %v", err)
	}
	if c.WiFi.Timeout < 0 {
		return invalid("wifi.timeout must not be negative")
	}

	if c.MDNS.Enabled && (c.MDNS.Port < 1 || c.MDNS.Port > 65535) {
		return invalid("mdns.port %d out of range", c.MDNS.Port)
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return invalid("http.port %d out of range", c.HTTP.Port)
	}

	if c.Telemetry.Broker != "" {
		u, err := url.Parse(c.Telemetry.Broker)
		if err != nil || u.Host == "" {
			return invalid("telemetry.broker %q is not a broker URL", c.Telemetry.Broker)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level %q: want debug, info, warn or error", c.Log.Level)
	}

	if c.Sim.Delay < 0 {
		return invalid("sim.delay must not be negative")
	}
	for i, ap := range c.Sim.AccessPoints {
		if err := credentials.ValidateSSID(ap.SSID); err != nil {
			return invalid("sim.access_points[%d].ssid: %v", i, err)
		}
		if _, err := netjoin.ParseAuthMode(ap.Auth); err != nil {
			return invalid("sim.access_points[%d].auth: %v", i, err)
		}
		if ap.Address != "" {
			if _, err := netip.ParseAddr(ap.Address); err != nil {
				return invalid("sim.access_points[%d].address: %v", i, err)
			}
		}
		if ap.FailFirst < 0 {
			return invalid("sim.access_points[%d].fail_first must not be negative", i)
		}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// StationAccessPoints converts the simulated networks for the station driver.
func (s SimConfig) StationAccessPoints() ([]station.AccessPoint, error) {
	aps := make([]station.AccessPoint, 0, len(s.AccessPoints))
	for _, ap := range s.AccessPoints {
		mode, err := netjoin.ParseAuthMode(ap.Auth)
		if err != nil {
			return nil, fmt.Errorf("access point %s: %w", ap.SSID, err)
		}
		var addr netip.Addr
		if ap.Address != "" {
			if addr, err = netip.ParseAddr(ap.Address); err != nil {
				return nil, fmt.Errorf("access point %s: %w", ap.SSID, err)
			}
		}
		sap := station.NewAccessPoint(ap.SSID, mode, ap.Passphrase, addr)
		sap.FailFirst = ap.FailFirst
		aps = append(aps, sap)
	}
	return aps, nil
}

// JoinConfig builds the join configuration from the wifi section.
func (w WiFiConfig) JoinConfig() (netjoin.JoinConfig, error) {
	mode, err := w.AuthMode()
	if err != nil {
		return netjoin.JoinConfig{}, err
	}
	cfg := netjoin.DefaultJoinConfig(w.SSID, w.Passphrase)
	cfg.MaxRetries = w.MaxRetries
	cfg.MinAuth = mode
	cfg.Timeout = w.Timeout
	return cfg, nil
}
