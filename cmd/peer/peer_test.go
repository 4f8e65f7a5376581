package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ringpong/internal/config"
	"ringpong/internal/game"
	"ringpong/internal/protocol"
	"ringpong/internal/syncer"
	"ringpong/internal/transport"
)

func TestResolveSettings(t *testing.T) {
	cfg := config.DefaultConfig()
	quick := game.DefaultSettings()
	quick.PointsToWin = 3
	presets := config.Presets{"quick": quick}

	tests := []struct {
		name    string
		preset  string
		o       overrides
		want    func(s *game.Settings)
		wantErr bool
	}{
		{name: "defaults", want: func(s *game.Settings) {}},
		{name: "preset", preset: "quick", want: func(s *game.Settings) { s.PointsToWin = 3 }},
		{name: "override on preset", preset: "quick", o: overrides{points: 5, speed: 7}, want: func(s *game.Settings) {
			s.PointsToWin = 5
			s.BallSpeed = 7
		}},
		{name: "paddle", o: overrides{paddle: 100}, want: func(s *game.Settings) { s.PaddleWidth = 100 }},
		{name: "unknown preset", preset: "nope", wantErr: true},
		{name: "invalid override", o: overrides{speed: 40}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveSettings(cfg, presets, tt.preset, tt.o)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			want := game.DefaultSettings()
			tt.want(&want)
			assert.Equal(t, want, got)
		})
	}
}

func TestControlFor(t *testing.T) {
	assert.Nil(t, controlFor(config.ControlIdle))
	assert.IsType(t, &game.Autopilot{}, controlFor(config.ControlAutopilot))
}

func TestFormatScores(t *testing.T) {
	s := game.NewSession(game.DefaultSettings())
	s.AddPlayer("b")
	s.AddPlayer("a")
	s.Scores["a"] = 4

	assert.Equal(t, "P1:0  P2*:4", formatScores(s, "a"))
}

func TestScoreboard_AutostartAndLeave(t *testing.T) {
	net := transport.NewNetwork()
	hostEp, err := net.Endpoint("host-aaaaaa")
	require.NoError(t, err)
	defer hostEp.Close()
	obsEp, err := net.Endpoint("peer-bbbbbb")
	require.NoError(t, err)
	defer obsEp.Close()

	host, err := syncer.NewHost(hostEp, syncer.Options{TickInterval: time.Millisecond})
	require.NoError(t, err)
	obs := syncer.NewObserver(obsEp, syncer.Options{TickInterval: time.Millisecond})
	require.NoError(t, obs.Join(context.Background(), host.Code()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hostDone := make(chan error, 1)
	go func() { hostDone <- host.Run(ctx) }()
	go func() { obs.Run(ctx) }()

	var out bytes.Buffer
	sb := &scoreboard{sync: host, out: &out, autostart: 2, games: 1}
	require.Eventually(t, func() bool {
		if _, err := sb.step(ctx); err != nil {
			return false
		}
		return host.Snapshot().Session.State == game.StateCountdown
	}, 3*time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), "[AAAAAA] "+syncer.StatusRoomCreated)

	// leaving finishes the scoreboard
	require.NoError(t, host.Do(ctx, func(s *syncer.Synchronizer) error {
		s.Leave()
		return nil
	}))
	select {
	case err := <-hostDone:
		assert.ErrorIs(t, err, syncer.ErrLeft)
	case <-time.After(2 * time.Second):
		t.Fatal("host did not stop")
	}

	done, err := sb.step(ctx)
	require.NoError(t, err)
	assert.True(t, done)
	assert.True(t, strings.HasSuffix(out.String(), syncer.StatusLeft+"\n"))
}

func TestScoreboard_ObserverCountsRepeatWinner(t *testing.T) {
	net := transport.NewNetwork()
	hostEp, err := net.Endpoint("host-aaaaaa")
	require.NoError(t, err)
	defer hostEp.Close()
	obsEp, err := net.Endpoint("peer-bbbbbb")
	require.NoError(t, err)
	defer obsEp.Close()

	obs := syncer.NewObserver(obsEp, syncer.Options{TickInterval: time.Millisecond})
	require.NoError(t, obs.Join(context.Background(), "AAAAAA"))
	select {
	case ev := <-hostEp.Events():
		require.Equal(t, transport.EventOpen, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("observer never connected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obsDone := make(chan error, 1)
	go func() { obsDone <- obs.Run(ctx) }()

	var codec protocol.JSONCodec
	send := func(m protocol.Message) {
		data, err := codec.Encode(m)
		require.NoError(t, err)
		require.NoError(t, hostEp.Send(obsEp.ID(), data))
	}

	sess := game.NewSession(game.DefaultSettings())
	sess.AddPlayer(hostEp.ID())
	num, err := sess.AddPlayer(obsEp.ID())
	require.NoError(t, err)
	send(&protocol.Welcome{PlayerNumber: num, Session: sess.Clone(), Settings: sess.Settings})

	var out bytes.Buffer
	sb := &scoreboard{sync: obs, out: &out, games: 2}
	win := func(tick uint64) {
		send(&protocol.StartCountdown{})
		send(&protocol.BallUpdate{
			Scores: map[string]int{hostEp.ID(): sess.Settings.PointsToWin},
			Winner: hostEp.ID(),
			Tick:   tick,
		})
	}

	win(1)
	require.Eventually(t, func() bool {
		done, err := sb.step(ctx)
		return err == nil && !done && sb.finished == 1
	}, 3*time.Second, 5*time.Millisecond)

	// the host goes back to the lobby between games
	send(&protocol.GameState{Session: sess.Clone()})
	require.Eventually(t, func() bool {
		_, err := sb.step(ctx)
		return err == nil && sb.lastWinner == ""
	}, 3*time.Second, 5*time.Millisecond)

	win(2)
	require.Eventually(t, func() bool {
		done, err := sb.step(ctx)
		return err == nil && done
	}, 3*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, sb.finished)
	assert.Equal(t, 2, strings.Count(out.String(), "Player 1 wins!"))
	select {
	case err := <-obsDone:
		assert.ErrorIs(t, err, syncer.ErrLeft)
	case <-time.After(2 * time.Second):
		t.Fatal("observer did not leave")
	}
}
