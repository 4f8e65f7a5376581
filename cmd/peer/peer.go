package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ringpong/internal/config"
	"ringpong/internal/game"
	"ringpong/internal/syncer"
)

// overrides are per-run settings from the command line; zero means unset.
type overrides struct {
	points int
	speed  float64
	paddle float64
}

// resolveSettings picks the room settings: the configured defaults, replaced
// by a named preset, then individual overrides.
func resolveSettings(cfg *config.ServerConfig, presets config.Presets, preset string, o overrides) (game.Settings, error) {
	settings := cfg.Game
	if preset != "" {
		p, ok := presets.Get(preset)
		if !ok {
			return game.Settings{}, fmt.Errorf("unknown preset %q (have %s)", preset, strings.Join(presets.Names(), ", "))
		}
		settings = p
	}
	if o.points > 0 {
		settings.PointsToWin = o.points
	}
	if o.speed > 0 {
		settings.BallSpeed = o.speed
	}
	if o.paddle > 0 {
		settings.PaddleWidth = o.paddle
	}
	if err := settings.Validate(); err != nil {
		return game.Settings{}, err
	}
	return settings, nil
}

func controlFor(mode string) game.Control {
	if mode == config.ControlIdle {
		return nil
	}
	return &game.Autopilot{}
}

// formatScores renders the scoreboard in slot order.
func formatScores(sess *game.Session, localID string) string {
	var b strings.Builder
	for i, p := range sess.OrderedPlayers() {
		if i > 0 {
			b.WriteString("  ")
		}
		marker := ""
		if p.ID == localID {
			marker = "*"
		}
		fmt.Fprintf(&b, "P%d%s:%d", p.Number, marker, sess.Scores[p.ID])
	}
	return b.String()
}

// scoreboard prints status and score changes and drives the host's automatic
// start. It leaves the room after the given number of finished games.
type scoreboard struct {
	sync      *syncer.Synchronizer
	out       io.Writer
	autostart int
	games     int

	lastStatus string
	lastLine   string
	lastWinner string
	finished   int
}

func (sb *scoreboard) run(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			done, err := sb.step(ctx)
			if err != nil || done {
				return err
			}
		}
	}
}

// report prints what changed since the last view.
func (sb *scoreboard) report(v *syncer.View) {
	if v.Status != sb.lastStatus {
		sb.lastStatus = v.Status
		fmt.Fprintf(sb.out, "[%s] %s\n", v.Code, v.Status)
	}
	sess := v.Session
	if sess.State == game.StateLobby {
		return
	}
	if line := formatScores(sess, v.LocalID); line != sb.lastLine {
		sb.lastLine = line
		fmt.Fprintf(sb.out, "[%s] %s\n", v.Code, line)
	}
}

// step inspects the latest view once. done is true once the peer is finished.
func (sb *scoreboard) step(ctx context.Context) (bool, error) {
	v := sb.sync.Snapshot()
	sb.report(v)
	if v.Err != nil {
		return true, nil
	}

	sess := v.Session
	if sess.Winner == "" {
		// the next game has begun, so the same player may win again
		sb.lastWinner = ""
	}
	if sess.Winner != "" && sess.Winner != sb.lastWinner {
		sb.lastWinner = sess.Winner
		sb.finished++
		if p := sess.Players[sess.Winner]; p != nil {
			fmt.Fprintf(sb.out, "[%s] Player %d wins!\n", v.Code, p.Number)
		}
		if sb.games > 0 && sb.finished >= sb.games {
			return true, sb.sync.Do(ctx, func(s *syncer.Synchronizer) error {
				s.Leave()
				return nil
			})
		}
		if v.Role == syncer.RoleHost {
			return false, sb.sync.Do(ctx, func(s *syncer.Synchronizer) error {
				return s.BackToLobby()
			})
		}
	}

	if v.Role == syncer.RoleHost && sb.autostart > 0 &&
		sess.PlayerCount() >= sb.autostart && sess.State == game.StateLobby {
		err := sb.sync.Do(ctx, func(s *syncer.Synchronizer) error {
			return s.StartGame(s.Clock())
		})
		if err != nil && !errors.Is(err, game.ErrNotEnoughPlayers) && !errors.Is(err, game.ErrGameAlreadyStarted) {
			return false, err
		}
	}
	return false, nil
}
