package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration using Viper
// Priority order: Environment variables > Config file > Defaults
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("ringpong")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ringpong")
	}

	// Enable environment variable binding
	// These allow both RINGPONG_SERVER_PORT and PORT to work
	v.SetEnvPrefix("RINGPONG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("server.port", "RINGPONG_SERVER_PORT", "PORT")
	v.BindEnv("server.host", "RINGPONG_SERVER_HOST", "HOST")
	v.BindEnv("server.publicurl", "RINGPONG_SERVER_PUBLICURL", "PUBLIC_URL")
	v.BindEnv("server.loglevel", "RINGPONG_SERVER_LOGLEVEL", "LOG_LEVEL")
	v.BindEnv("server.ratelimit", "RINGPONG_SERVER_RATELIMIT", "RATE_LIMIT")
	v.BindEnv("server.ratelimitburst", "RINGPONG_SERVER_RATELIMITBURST", "RATE_LIMIT_BURST")
	v.BindEnv("server.maxrequestsize", "RINGPONG_SERVER_MAXREQUESTSIZE", "MAX_REQUEST_SIZE")
	v.BindEnv("server.maxconnections", "RINGPONG_SERVER_MAXCONNECTIONS", "MAX_CONNECTIONS")
	v.BindEnv("peer.relayurl", "RINGPONG_PEER_RELAYURL", "RELAY_URL")

	setDefaults(v, DefaultConfig())

	// Try to read config file (it's optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; continue with env vars and defaults
	}

	cfg := &ServerConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *ServerConfig) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.publicurl", d.Server.PublicURL)
	v.SetDefault("server.readtimeout", d.Server.ReadTimeout)
	v.SetDefault("server.writetimeout", d.Server.WriteTimeout)
	v.SetDefault("server.idletimeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdowntimeout", d.Server.ShutdownTimeout)

	v.SetDefault("server.ratelimit", d.Server.RateLimit)
	v.SetDefault("server.ratelimitburst", d.Server.RateLimitBurst)
	v.SetDefault("server.framerate", d.Server.FrameRate)
	v.SetDefault("server.frameburst", d.Server.FrameBurst)

	v.SetDefault("server.maxrequestsize", d.Server.MaxRequestSize)
	v.SetDefault("server.maxframesize", d.Server.MaxFrameSize)
	v.SetDefault("server.maxconnections", d.Server.MaxConnections)
	v.SetDefault("server.sendbuffer", d.Server.SendBuffer)
	v.SetDefault("server.pinginterval", d.Server.PingInterval)
	v.SetDefault("server.pongwait", d.Server.PongWait)

	v.SetDefault("server.loglevel", d.Server.LogLevel)

	v.SetDefault("game.pointstowin", d.Game.PointsToWin)
	v.SetDefault("game.ballspeed", d.Game.BallSpeed)
	v.SetDefault("game.paddlewidth", d.Game.PaddleWidth)
	v.SetDefault("game.bouncemultiplier", d.Game.BounceMultiplier)
	v.SetDefault("game.maxballspeed", d.Game.MaxBallSpeed)

	v.SetDefault("peer.relayurl", d.Peer.RelayURL)
	v.SetDefault("peer.tickhz", d.Peer.TickHz)
	v.SetDefault("peer.codec", d.Peer.Codec)
	v.SetDefault("peer.control", d.Peer.Control)
	v.SetDefault("peer.presetsfile", d.Peer.PresetsFile)
}
