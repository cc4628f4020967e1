package types

import "time"

// BiasConfig is a named, process-wide configuration document, keyed by
// ConfigKey. The adaptive tuner writes the "risk" document that the risk
// model reads.
type BiasConfig struct {
	ConfigKey string
	Document  map[string]any
	Version   int
	UpdatedAt time.Time
}

// ServerConfig configures the HTTP/WebSocket surface.
type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	WebSocketPath  string        `json:"websocketPath"`
	ReadTimeout    time.Duration `json:"readTimeout"`
	WriteTimeout   time.Duration `json:"writeTimeout"`
	MaxConnections int           `json:"maxConnections"`
	EnableMetrics  bool          `json:"enableMetrics"`
	MetricsPort    int           `json:"metricsPort"`
}
