// Package config loads the compass service configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/heading.report/internal/serialport"
	"github.com/banshee-data/heading.report/internal/telemetry"
	"github.com/banshee-data/heading.report/internal/wire"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/compass.defaults.json"

// Config is the root configuration. Every field is optional; the Get*
// methods supply the default for anything the file omits.
type Config struct {
	// Transport
	Port        *string `json:"port,omitempty"` // empty: discover by usb_vid/usb_pid
	USBVID      *string `json:"usb_vid,omitempty"`
	USBPID      *string `json:"usb_pid,omitempty"`
	BaudRate    *int    `json:"baud_rate,omitempty"`
	DataBits    *int    `json:"data_bits,omitempty"`
	StopBits    *int    `json:"stop_bits,omitempty"`
	Parity      *string `json:"parity,omitempty"`
	ReadTimeout *string `json:"read_timeout,omitempty"` // duration string like "1s"

	// Pipeline
	RecordShape    *string  `json:"record_shape,omitempty"` // "magnetometer" or "imu"
	FrameCapacity  *int     `json:"frame_capacity,omitempty"`
	ReadBufferSize *int     `json:"read_buffer_size,omitempty"`
	MagWindow      *int     `json:"mag_window,omitempty"`
	GyroWindow     *int     `json:"gyro_window,omitempty"`
	InitialFill    *float64 `json:"initial_fill,omitempty"`
	ChannelSize    *int     `json:"channel_size,omitempty"`

	// Link supervision
	Reconnect    *string `json:"reconnect,omitempty"`
	ReconnectMax *string `json:"reconnect_max,omitempty"`

	// Presentation and recording
	Listen *string `json:"listen,omitempty"`
	DBPath *string `json:"db_path,omitempty"`
	Tick   *string `json:"tick,omitempty"`
}

// LoadConfig loads a Config from a JSON file. The file must have a .json
// extension and be under 1 MiB. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg := &Config{}
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory
// or a parent. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/<pkg>/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every value that is set.
func (c *Config) Validate() error {
	for name, s := range map[string]*string{
		"read_timeout":  c.ReadTimeout,
		"reconnect":     c.Reconnect,
		"reconnect_max": c.ReconnectMax,
		"tick":          c.Tick,
	} {
		if s == nil || *s == "" {
			continue
		}
		d, err := time.ParseDuration(*s)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *s, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}

	for name, s := range map[string]*string{"usb_vid": c.USBVID, "usb_pid": c.USBPID} {
		if s == nil {
			continue
		}
		if _, err := parseUSBID(*s); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *s, err)
		}
	}

	if c.RecordShape != nil {
		if _, err := wire.ParseShape(*c.RecordShape); err != nil {
			return err
		}
	}

	for name, v := range map[string]*int{
		"frame_capacity":   c.FrameCapacity,
		"read_buffer_size": c.ReadBufferSize,
		"mag_window":       c.MagWindow,
		"gyro_window":      c.GyroWindow,
		"channel_size":     c.ChannelSize,
	} {
		if v != nil && *v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, *v)
		}
	}

	if _, err := c.PortOptions().Normalize(); err != nil {
		return err
	}
	return nil
}

func parseUSBID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func durationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// GetPort returns the configured device path, or "" for USB discovery.
func (c *Config) GetPort() string {
	if c.Port == nil {
		return ""
	}
	return *c.Port
}

// GetUSBVID returns the usb_vid value or the default.
func (c *Config) GetUSBVID() uint16 {
	if c.USBVID == nil {
		return serialport.DefaultVID
	}
	v, err := parseUSBID(*c.USBVID)
	if err != nil {
		return serialport.DefaultVID
	}
	return v
}

// GetUSBPID returns the usb_pid value or the default.
func (c *Config) GetUSBPID() uint16 {
	if c.USBPID == nil {
		return serialport.DefaultPID
	}
	v, err := parseUSBID(*c.USBPID)
	if err != nil {
		return serialport.DefaultPID
	}
	return v
}

// GetReadTimeout returns the read_timeout value or the default.
func (c *Config) GetReadTimeout() time.Duration {
	return durationOr(c.ReadTimeout, serialport.DefaultReadTimeout)
}

// PortOptions collects the serial settings. Unset values stay zero so
// PortOptions.Normalize applies its defaults.
func (c *Config) PortOptions() serialport.PortOptions {
	opts := serialport.PortOptions{ReadTimeout: c.GetReadTimeout()}
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	return opts
}

// Target returns the transceiver location.
func (c *Config) Target() serialport.Target {
	return serialport.Target{Path: c.GetPort(), VID: c.GetUSBVID(), PID: c.GetUSBPID()}
}

// GetRecordShape returns the record_shape value or the default.
func (c *Config) GetRecordShape() wire.Shape {
	if c.RecordShape == nil {
		return wire.ShapeMagnetometer
	}
	shape, err := wire.ParseShape(*c.RecordShape)
	if err != nil {
		return wire.ShapeMagnetometer
	}
	return shape
}

// GetChannelSize returns the channel_size value or the default.
func (c *Config) GetChannelSize() int {
	if c.ChannelSize == nil {
		return telemetry.DefaultChannelSize
	}
	return *c.ChannelSize
}

// Pipeline returns the pipeline sizing. Unset values stay zero so the
// pipeline applies its own defaults.
func (c *Config) Pipeline() telemetry.PipelineConfig {
	var p telemetry.PipelineConfig
	if c.FrameCapacity != nil {
		p.FrameCapacity = *c.FrameCapacity
	}
	if c.ReadBufferSize != nil {
		p.ReadBufferSize = *c.ReadBufferSize
	}
	if c.MagWindow != nil {
		p.MagWindow = *c.MagWindow
	}
	if c.GyroWindow != nil {
		p.GyroWindow = *c.GyroWindow
	}
	if c.InitialFill != nil {
		p.InitialFill = *c.InitialFill
	}
	return p
}

// GetReconnect returns the reconnect value or the default.
func (c *Config) GetReconnect() time.Duration {
	return durationOr(c.Reconnect, serialport.DefaultReconnect)
}

// GetReconnectMax returns the reconnect_max value or the default.
func (c *Config) GetReconnectMax() time.Duration {
	return durationOr(c.ReconnectMax, serialport.DefaultReconnectMax)
}

// GetListen returns the listen value or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil {
		return ":8080"
	}
	return *c.Listen
}

// GetDBPath returns the db_path value or the default. An explicit empty
// string disables recording.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return "compass.db"
	}
	return *c.DBPath
}

// GetTick returns the display refresh interval or the default.
func (c *Config) GetTick() time.Duration {
	return durationOr(c.Tick, 50*time.Millisecond)
}
