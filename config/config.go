// Package config provides configuration structures and defaults for the
// ekgraph visualizer variants.
package config

import "time"

type Config struct {
	Server    ServerConfig    `yaml:"server"`    // HTTP/websocket server settings
	Serial    SerialConfig    `yaml:"serial"`    // serial link settings
	Stream    StreamConfig    `yaml:"stream"`    // wire protocol / buffering settings
	View      ViewConfig      `yaml:"view"`      // window derivation settings
	Recording RecordingConfig `yaml:"recording"` // sample persistence settings
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`          // listen address
	PingInterval time.Duration `yaml:"ping_interval"` // websocket keepalive ping cadence
	PongTimeout  time.Duration `yaml:"pong_timeout"`  // wait for pong before dropping the device
	CloseTimeout time.Duration `yaml:"close_timeout"` // graceful close bound
}

type SerialConfig struct {
	Port        string        `yaml:"port"`         // device path, e.g. /dev/ttyUSB0
	Baud        int           `yaml:"baud"`         // 250000 (dual) or 500000 (raw dump)
	ReadTimeout time.Duration `yaml:"read_timeout"` // per-read timeout
}

type StreamConfig struct {
	Channels      int           `yaml:"channels"`       // fixed channel count (12-lead variant)
	BatchInterval time.Duration `yaml:"batch_interval"` // nominal inter-batch period (single-channel variant)
	BufferSize    int           `yaml:"buffer_size"`    // rolling buffer capacity per channel
}

type ViewConfig struct {
	Window         time.Duration `yaml:"window"`          // visible time span
	XPolicy        string        `yaml:"x_policy"`        // "right-aligned" or "scrolling"
	YPolicy        string        `yaml:"y_policy"`        // "auto" or "fixed"
	YMarginAbs     float64       `yaml:"y_margin_abs"`    // absolute auto-Y padding
	YMarginFrac    float64       `yaml:"y_margin_frac"`   // fractional auto-Y padding
	XScrollMargin  float64       `yaml:"x_scroll_margin"` // lead space under the scrolling policy, seconds
	RenderInterval time.Duration `yaml:"render_interval"` // view push cadence
}

type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // sqlite file
}

// Default returns the 12-channel websocket variant's settings; the other
// variants override what they need (see cmd).
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "0.0.0.0:8765",
			PingInterval: 30 * time.Second,
			PongTimeout:  10 * time.Second,
			CloseTimeout: 5 * time.Second,
		},
		Serial: SerialConfig{
			Port:        "/dev/ttyUSB0",
			Baud:        250000,
			ReadTimeout: time.Second,
		},
		Stream: StreamConfig{
			Channels:      12,
			BatchInterval: 100 * time.Millisecond,
			BufferSize:    400, // 10 seconds at ~40 frames/sec
		},
		View: ViewConfig{
			Window:         10 * time.Second,
			XPolicy:        "right-aligned",
			YPolicy:        "auto",
			YMarginFrac:    0.1,
			XScrollMargin:  1,
			RenderInterval: 50 * time.Millisecond,
		},
		Recording: RecordingConfig{
			Enabled: false,
			Path:    "ekgraph.db",
		},
	}
}
