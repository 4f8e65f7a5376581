package config

import (
	"fmt"
	"time"

	"ringpong/internal/game"
)

// This file defines the configuration structures used by viper_config.go
// The actual loading is handled by viper in viper_config.go

// ServerConfig represents the whole configuration shared by the relay server
// and the headless peer
type ServerConfig struct {
	Server ServerSettings `yaml:"server"`
	Game   game.Settings  `yaml:"game"`
	Peer   PeerSettings   `yaml:"peer"`
}

// ServerSettings contains relay server settings
type ServerSettings struct {
	Port            string        `yaml:"port"`
	Host            string        `yaml:"host"`
	PublicURL       string        `yaml:"publicUrl"` // base of join links encoded in QR codes
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// Rate limiting (using golang.org/x/time/rate)
	RateLimit      float64 `yaml:"rateLimit"`      // HTTP requests per second per client
	RateLimitBurst int     `yaml:"rateLimitBurst"` // burst size
	FrameRate      float64 `yaml:"frameRate"`      // relay frames per second per peer, at least game.PeakFrameRate(peer.tickHz)
	FrameBurst     int     `yaml:"frameBurst"`

	// Request and connection limits
	MaxRequestSize int64         `yaml:"maxRequestSize"`
	MaxFrameSize   int64         `yaml:"maxFrameSize"`
	MaxConnections int           `yaml:"maxConnections"`
	SendBuffer     int           `yaml:"sendBuffer"`
	PingInterval   time.Duration `yaml:"pingInterval"`
	PongWait       time.Duration `yaml:"pongWait"`

	LogLevel string `yaml:"logLevel"`
}

// PeerSettings configures a headless peer
type PeerSettings struct {
	RelayURL    string `yaml:"relayUrl"`
	TickHz      int    `yaml:"tickHz"`
	Codec       string `yaml:"codec"`
	Control     string `yaml:"control"`
	PresetsFile string `yaml:"presetsFile"`
}

// Peer control modes.
const (
	ControlAutopilot = "autopilot"
	ControlIdle      = "idle"
)

// DefaultConfig returns a default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Port:            "8080",
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,

			RateLimit:      10,
			RateLimitBurst: 20,
			FrameRate:      2 * game.PeakFrameRate(game.DefaultTickHz),
			FrameBurst:     int(2 * game.PeakFrameRate(game.DefaultTickHz)),

			MaxRequestSize: 1048576, // 1MB
			MaxFrameSize:   65536,
			MaxConnections: 1000,
			SendBuffer:     256,
			PingInterval:   25 * time.Second,
			PongWait:       60 * time.Second,

			LogLevel: "info",
		},
		Game: game.DefaultSettings(),
		Peer: PeerSettings{
			RelayURL: "ws://localhost:8080/ws",
			TickHz:   game.DefaultTickHz,
			Codec:    "json",
			Control:  ControlAutopilot,
		},
	}
}

// Validate checks if the configuration is valid
func (c *ServerConfig) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT environment variable must be set")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("HOST environment variable must be set")
	}

	if c.Server.RateLimit <= 0 || c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("rateLimit and rateLimitBurst must be positive")
	}
	if c.Server.FrameRate <= 0 || c.Server.FrameBurst < 1 {
		return fmt.Errorf("frameRate and frameBurst must be positive")
	}
	if c.Server.MaxRequestSize < 1 || c.Server.MaxFrameSize < 1 {
		return fmt.Errorf("maxRequestSize and maxFrameSize must be positive")
	}
	if c.Server.MaxConnections < 2 {
		return fmt.Errorf("maxConnections must be at least 2")
	}
	if c.Server.SendBuffer < 1 {
		return fmt.Errorf("sendBuffer must be at least 1")
	}
	if c.Server.PingInterval <= 0 || c.Server.PongWait <= c.Server.PingInterval {
		return fmt.Errorf("pongWait must be longer than pingInterval")
	}

	if err := c.Game.Validate(); err != nil {
		return fmt.Errorf("game: %w", err)
	}

	if c.Peer.TickHz < 1 || c.Peer.TickHz > 240 {
		return fmt.Errorf("peer tickHz must be between 1 and 240")
	}
	if peak := game.PeakFrameRate(c.Peer.TickHz); c.Server.FrameRate < peak {
		return fmt.Errorf("frameRate %.0f is below the %.0f frames/s a full room's host sends at %d Hz",
			c.Server.FrameRate, peak, c.Peer.TickHz)
	}
	switch c.Peer.Codec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("peer codec %q must be json or msgpack", c.Peer.Codec)
	}
	switch c.Peer.Control {
	case ControlAutopilot, ControlIdle:
	default:
		return fmt.Errorf("peer control %q must be %s or %s", c.Peer.Control, ControlAutopilot, ControlIdle)
	}

	return nil
}

// Addr is the listen address of the relay server.
func (c *ServerConfig) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// TickInterval is the peer's fixed tick period.
func (c *ServerConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Peer.TickHz)
}
