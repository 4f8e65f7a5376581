package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ringpong/internal/config"
	"ringpong/internal/logging"
	"ringpong/internal/protocol"
	"ringpong/internal/syncer"
	"ringpong/internal/transport"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to ringpong.yaml")
		relayURL   = flag.String("relay", "", "relay websocket URL (overrides config)")
		joinCode   = flag.String("join", "", "room code to join; creates a room when empty")
		autostart  = flag.Int("autostart", 0, "host: start once this many players are in the room")
		games      = flag.Int("games", 1, "leave after this many finished games (0 plays forever)")
		preset     = flag.String("preset", "", "host: named settings preset")
		o          overrides
	)
	flag.IntVar(&o.points, "points", 0, "host: points to win")
	flag.Float64Var(&o.speed, "speed", 0, "host: base ball speed")
	flag.Float64Var(&o.paddle, "paddle", 0, "host: paddle width")
	flag.Parse()

	if err := run(*configPath, *relayURL, *joinCode, *preset, o, *autostart, *games); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, relayURL, joinCode, preset string, o overrides, autostart, games int) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if relayURL != "" {
		cfg.Peer.RelayURL = relayURL
	}

	logs, err := logging.NewLogBackend(os.Stderr, cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	plog := logs.Logger(logging.SubsysPeer)

	presets := config.Presets{}
	if cfg.Peer.PresetsFile != "" {
		if presets, err = config.LoadPresetsFile(cfg.Peer.PresetsFile); err != nil {
			return err
		}
	}
	settings, err := resolveSettings(cfg, presets, preset, o)
	if err != nil {
		return err
	}
	codec, err := protocol.CodecByName(cfg.Peer.Codec)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	ep, err := transport.Dial(dialCtx, cfg.Peer.RelayURL)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}
	defer ep.Close()
	plog.Infof("Connected to relay %s as %s", cfg.Peer.RelayURL, ep.ID())

	opts := syncer.Options{
		Codec:        codec,
		Settings:     settings,
		Control:      controlFor(cfg.Peer.Control),
		TickInterval: cfg.TickInterval(),
		Log:          logs.Logger(logging.SubsysSync),
		SimLog:       logs.Logger(logging.SubsysSim),
	}

	var s *syncer.Synchronizer
	if joinCode == "" {
		if s, err = syncer.NewHost(ep, opts); err != nil {
			return err
		}
		fmt.Printf("Room code: %s\n", s.Code())
	} else {
		s = syncer.NewObserver(ep, opts)
		if err := s.Join(ctx, joinCode); err != nil {
			return err
		}
	}

	sb := &scoreboard{sync: s, out: os.Stdout, autostart: autostart, games: games}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Run(gctx)
	})
	g.Go(func() error {
		return sb.run(gctx, 250*time.Millisecond)
	})

	err = g.Wait()
	sb.report(s.Snapshot())
	if errors.Is(err, syncer.ErrLeft) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
