// Package syncer keeps every peer's copy of a session consistent. The host
// owns the ball, scores and winner and announces them; each peer owns its own
// paddle. One goroutine per process applies events, messages and ticks, so the
// session is never touched concurrently.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/decred/slog"

	"ringpong/internal/game"
	"ringpong/internal/protocol"
	"ringpong/internal/transport"
)

// Role is the part a process plays in its room.
type Role int

const (
	RoleHost Role = iota
	RoleObserver
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "observer"
}

const (
	DefaultTickInterval  = time.Second / game.DefaultTickHz
	DefaultRoomFullGrace = 100 * time.Millisecond
)

// Options configure a Synchronizer. Zero values fall back to defaults.
type Options struct {
	Codec protocol.Codec
	// Settings seed a host's room. Observers take theirs from the host.
	Settings      game.Settings
	Rand          game.Rand
	Control       game.Control
	TickInterval  time.Duration
	Clock         func() time.Time
	RoomFullGrace time.Duration
	Log           slog.Logger
	SimLog        slog.Logger
}

// View is an immutable snapshot of a Synchronizer for readers on other
// goroutines.
type View struct {
	Session  *game.Session
	Role     Role
	LocalID  string
	Code     string
	Status   string
	Stranded bool
	Err      error
}

// Synchronizer runs one peer of a room.
type Synchronizer struct {
	ep      transport.Endpoint
	codec   protocol.Codec
	log     slog.Logger
	simLog  slog.Logger
	clock   func() time.Time
	control game.Control
	tick    time.Duration
	grace   time.Duration

	role    Role
	localID string
	hostID  string
	code    string
	session *game.Session
	sim     *game.Simulator

	conns        map[string]bool
	pendingClose map[string]time.Time
	lastBallTick uint64
	joined       bool
	stranded     bool
	status       string
	terminal     error

	inbox chan func()
	view  atomic.Pointer[View]
}

func newSynchronizer(ep transport.Endpoint, opts Options, role Role) *Synchronizer {
	s := &Synchronizer{
		ep:           ep,
		codec:        opts.Codec,
		log:          opts.Log,
		simLog:       opts.SimLog,
		clock:        opts.Clock,
		control:      opts.Control,
		tick:         opts.TickInterval,
		grace:        opts.RoomFullGrace,
		role:         role,
		localID:      ep.ID(),
		conns:        make(map[string]bool),
		pendingClose: make(map[string]time.Time),
		inbox:        make(chan func()),
	}
	if s.codec == nil {
		s.codec = protocol.JSONCodec{}
	}
	if s.log == nil {
		s.log = slog.Disabled
	}
	if s.simLog == nil {
		s.simLog = slog.Disabled
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.tick <= 0 {
		s.tick = DefaultTickInterval
	}
	if s.grace <= 0 {
		s.grace = DefaultRoomFullGrace
	}
	return s
}

// NewHost creates the host of a new room. The host takes slot 1 and its room
// code is derived from its endpoint id.
func NewHost(ep transport.Endpoint, opts Options) (*Synchronizer, error) {
	settings := opts.Settings
	if settings == (game.Settings{}) {
		settings = game.DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	s := newSynchronizer(ep, opts, RoleHost)
	s.hostID = s.localID
	s.code = game.RoomCode(s.localID)
	s.session = game.NewSession(settings)
	s.sim = game.NewSimulator(opts.Rand)
	if _, err := s.session.AddPlayer(s.localID); err != nil {
		return nil, err
	}
	s.joined = true
	s.status = StatusRoomCreated
	s.log.Infof("Room %s created by %s", s.code, s.localID)
	s.publish()
	return s, nil
}

// NewObserver creates a peer that will join an existing room with Join.
func NewObserver(ep transport.Endpoint, opts Options) *Synchronizer {
	s := newSynchronizer(ep, opts, RoleObserver)
	s.session = game.NewSession(game.DefaultSettings())
	s.publish()
	return s
}

// Join resolves a room code and connects to its host. It must be called before
// Run. The welcome arrives later as an event.
func (s *Synchronizer) Join(ctx context.Context, code string) error {
	if s.role != RoleObserver {
		return errors.New("join: the host cannot join another room")
	}
	s.code = game.NormalizeCode(code)
	s.status = StatusConnecting
	s.publish()

	hostID, err := s.ep.Resolve(ctx, s.code)
	if err != nil {
		s.failJoin(err)
		return s.terminal
	}
	s.hostID = hostID
	if err := s.ep.Connect(ctx, hostID); err != nil {
		s.failJoin(err)
		return s.terminal
	}
	s.log.Debugf("Connecting to room %s (host %s)", s.code, hostID)
	return nil
}

func (s *Synchronizer) failJoin(err error) {
	s.status = StatusConnectFailed
	s.terminal = fmt.Errorf("join %s: %w", s.code, err)
	s.log.Warnf("Failed to join room %s: %v", s.code, err)
	s.publish()
}

// HandleEvent applies one transport event.
func (s *Synchronizer) HandleEvent(ev transport.Event, now time.Time) {
	defer s.publish()

	switch ev.Kind {
	case transport.EventOpen:
		s.handleOpen(ev.Peer)
	case transport.EventData:
		if !s.conns[ev.Peer] {
			s.log.Tracef("Dropping frame from unconnected peer %s", ev.Peer)
			return
		}
		m, err := s.codec.Decode(ev.Data)
		if err != nil {
			s.log.Warnf("Bad message from %s: %v", ev.Peer, err)
			return
		}
		s.apply(ev.Peer, m, now)
	case transport.EventClose:
		s.handleClose(ev.Peer)
	case transport.EventError:
		s.handleError(ev.Peer, ev.Err)
	}
}

func (s *Synchronizer) handleOpen(peer string) {
	if s.conns[peer] || s.terminal != nil {
		return
	}
	if s.role == RoleObserver {
		if peer != s.hostID {
			s.log.Debugf("Refusing connection from %s", peer)
			_ = s.ep.Disconnect(peer)
			return
		}
		s.conns[peer] = true
		s.status = StatusConnected
		return
	}

	number, err := s.session.AddPlayer(peer)
	if err != nil {
		s.log.Infof("Rejecting %s: %v", peer, err)
		s.send(peer, &protocol.RoomFull{})
		s.pendingClose[peer] = s.clock().Add(s.grace)
		return
	}
	s.conns[peer] = true
	s.log.Infof("Player %d joined (%s), %d in room", number, peer, s.session.PlayerCount())
	s.send(peer, &protocol.Welcome{
		PlayerNumber: number,
		Session:      s.session,
		Settings:     s.session.Settings,
	})
	s.broadcast(&protocol.GameState{Session: s.session}, "")
}

func (s *Synchronizer) handleClose(peer string) {
	if _, ok := s.pendingClose[peer]; ok {
		delete(s.pendingClose, peer)
		return
	}
	if !s.conns[peer] {
		return
	}
	delete(s.conns, peer)

	if s.role == RoleHost {
		if s.session.RemovePlayer(peer) {
			s.log.Infof("Player %s left, %d in room", peer, s.session.PlayerCount())
			s.broadcast(&protocol.GameState{Session: s.session}, "")
		}
		return
	}

	if s.terminal != nil {
		return
	}
	if !s.joined {
		s.status = StatusConnectFailed
		s.terminal = fmt.Errorf("%w: host closed the connection", ErrConnectionLost)
		return
	}
	// There is no host migration: without the host nothing advances.
	s.stranded = true
	s.status = StatusHostLost
	s.terminal = ErrHostLost
	s.log.Warnf("Host %s left room %s", peer, s.code)
}

func (s *Synchronizer) handleError(peer string, err error) {
	if err == nil {
		err = ErrConnectionLost
	}
	s.log.Warnf("Transport error (peer %q): %v", peer, err)

	switch {
	case s.terminal != nil:
	case errors.Is(err, transport.ErrClosed):
		s.status = StatusConnectionLost
		s.terminal = fmt.Errorf("%w: %v", ErrConnectionLost, err)
	case s.role == RoleObserver && !s.joined:
		s.failJoin(err)
	}
}

// apply runs one decoded message from peer. Authority messages are only
// accepted from the host.
func (s *Synchronizer) apply(from string, m protocol.Message, now time.Time) {
	fromHost := s.role == RoleObserver && from == s.hostID

	switch m := m.(type) {
	case *protocol.Welcome:
		if fromHost {
			s.applyWelcome(m, now)
		}
	case *protocol.GameState:
		if fromHost {
			s.applyGameState(m, now)
		}
	case *protocol.SettingsUpdate:
		if fromHost {
			s.session.Settings = m.Settings
		}
	case *protocol.PaddleMove:
		s.applyPaddleMove(from, m)
	case *protocol.StartCountdown:
		if fromHost {
			s.session.BeginCountdown(now)
			s.session.Ball = game.NewBall()
			s.log.Infof("Countdown started")
		}
	case *protocol.BallUpdate:
		if fromHost {
			s.applyBallUpdate(m)
		}
	case *protocol.RoomFull:
		if fromHost {
			s.status = StatusRoomFull
			s.terminal = fmt.Errorf("join %s: %w", s.code, game.ErrRoomFull)
			delete(s.conns, from)
			_ = s.ep.Disconnect(from)
		}
	default:
		s.log.Warnf("Unhandled message %T from %s", m, from)
	}
}

func (s *Synchronizer) applyWelcome(m *protocol.Welcome, now time.Time) {
	if m.Session != nil {
		s.session = m.Session
	} else {
		s.session = game.NewSession(m.Settings)
	}
	s.session.Settings = m.Settings
	fillSession(s.session)

	if _, ok := s.session.Players[s.localID]; !ok {
		// Placing ourselves locally must not make the host's next snapshot
		// look stale.
		v := s.session.RosterVersion
		s.session.AddPlayerWithNumber(s.localID, m.PlayerNumber)
		s.session.RosterVersion = v
	}
	resumeCountdown(s.session, now)
	s.lastBallTick = s.session.Tick
	s.joined = true
	s.status = StatusJoined
	s.log.Infof("Joined room %s as player %d", s.code, m.PlayerNumber)
}

func (s *Synchronizer) applyGameState(m *protocol.GameState, now time.Time) {
	next := m.Session
	if next == nil {
		return
	}
	cur := s.session
	if next.RosterVersion < cur.RosterVersion {
		s.log.Debugf("Discarding stale game state (version %d < %d)", next.RosterVersion, cur.RosterVersion)
		return
	}
	fillSession(next)

	// The local paddle is ours; the snapshot's copy of it is at best an echo.
	if local, ok := cur.Players[s.localID]; ok {
		next.Players[s.localID] = local
		if v, ok := next.Scores[s.localID]; ok {
			local.Score = v
		} else {
			next.Scores[s.localID] = local.Score
		}
	}
	if next.Tick < s.lastBallTick {
		next.Ball = cur.Ball
		next.Tick = cur.Tick
	}
	if next.State == game.StateCountdown && cur.State == game.StateCountdown {
		next.CountdownStartedAt = cur.CountdownStartedAt
	} else {
		resumeCountdown(next, now)
	}
	next.RecomputePartition()

	s.session = next
	if next.Tick > s.lastBallTick {
		s.lastBallTick = next.Tick
	}
}

func (s *Synchronizer) applyPaddleMove(from string, m *protocol.PaddleMove) {
	target := from
	if m.Player != "" && s.role == RoleObserver && from == s.hostID {
		target = m.Player
	}
	if target == s.localID {
		return
	}
	if err := s.session.SetPaddle(target, m.Position); err != nil {
		s.log.Debugf("Dropping paddle move from %s: %v", from, err)
		return
	}

	if s.role == RoleHost {
		s.broadcast(&protocol.PaddleMove{Position: m.Position, Player: from}, from)
	}
}

func (s *Synchronizer) applyBallUpdate(m *protocol.BallUpdate) {
	if m.Tick <= s.lastBallTick {
		s.log.Tracef("Discarding stale ball update %d (last %d)", m.Tick, s.lastBallTick)
		return
	}
	s.lastBallTick = m.Tick

	sess := s.session
	sess.Tick = m.Tick
	sess.Ball = m.Ball
	sess.ApplyScores(m.Scores)
	if m.Winner != "" {
		sess.Winner = m.Winner
		sess.Started = false
		sess.State = game.StateEnded
		sess.Countdown = 0
		s.log.Infof("Player %s wins", m.Winner)
		return
	}
	sess.Started = true
	sess.State = game.StatePlaying
	sess.Countdown = 0
}

// Tick advances the local game by one frame: countdown, local input and, on
// the host, physics with the resulting ball update. A nil control falls back
// to the one from Options.
func (s *Synchronizer) Tick(now time.Time, control game.Control) {
	defer s.publish()

	if control == nil {
		control = s.control
	}
	s.flushPendingCloses(now)
	if s.terminal != nil {
		return
	}

	if s.role == RoleObserver {
		s.session.AdvanceCountdown(now)
		s.sampleInput(control)
		return
	}

	s.sampleInput(control)
	res := s.sim.Tick(s.session, now)
	if res.Launched {
		s.simLog.Infof("Ball launched")
	}
	if res.Hit != "" {
		s.simLog.Tracef("Tick %d: %s hit the ball", s.session.Tick, res.Hit)
	}
	if res.Scorer != "" {
		s.simLog.Debugf("Tick %d: %s scored against %s", s.session.Tick, res.Scorer, res.Conceded)
	}
	if res.Winner != "" {
		s.simLog.Infof("Player %s wins after %d ticks", res.Winner, s.session.Tick)
	}
	if s.session.Started || res.Winner != "" {
		s.broadcast(&protocol.BallUpdate{
			Ball:   s.session.Ball,
			Scores: s.session.Scores,
			Winner: s.session.Winner,
			Tick:   s.session.Tick,
		}, "")
	}
}

func (s *Synchronizer) sampleInput(control game.Control) {
	if control == nil || !s.session.Playing() {
		return
	}
	p := s.session.Players[s.localID]
	if p == nil {
		return
	}
	pos, ok := control.Target(s.session, p)
	if !ok {
		return
	}
	pos = math.Max(0, math.Min(1, pos))
	if pos == p.PaddlePosition {
		return
	}
	p.PaddlePosition = pos
	s.broadcast(&protocol.PaddleMove{Position: pos}, "")
}

func (s *Synchronizer) flushPendingCloses(now time.Time) {
	for peer, deadline := range s.pendingClose {
		if now.Before(deadline) {
			continue
		}
		delete(s.pendingClose, peer)
		if err := s.ep.Disconnect(peer); err != nil {
			s.log.Debugf("Closing rejected peer %s: %v", peer, err)
		}
	}
}

// StartGame begins the countdown on the host and tells every observer to do
// the same.
func (s *Synchronizer) StartGame(now time.Time) error {
	if s.role != RoleHost {
		return ErrNotHost
	}
	defer s.publish()

	if err := s.sim.StartCountdown(s.session, now); err != nil {
		if errors.Is(err, game.ErrNotEnoughPlayers) {
			s.status = StatusNeedPlayers
		}
		return err
	}
	s.log.Infof("Starting game with %d players", s.session.PlayerCount())
	s.broadcast(&protocol.StartCountdown{}, "")
	return nil
}

// UpdateSettings validates and applies new settings and announces them.
func (s *Synchronizer) UpdateSettings(settings game.Settings) error {
	if s.role != RoleHost {
		return ErrNotHost
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	defer s.publish()

	s.session.Settings = settings
	s.broadcast(&protocol.SettingsUpdate{Settings: settings}, "")
	return nil
}

// BackToLobby stops the current game and sends everyone back to the lobby.
func (s *Synchronizer) BackToLobby() error {
	if s.role != RoleHost {
		return ErrNotHost
	}
	defer s.publish()

	s.session.BackToLobby()
	s.session.Ball = game.NewBall()
	s.broadcast(&protocol.GameState{Session: s.session}, "")
	return nil
}

// Leave closes every connection and resets the session. The Synchronizer is
// finished afterwards.
func (s *Synchronizer) Leave() {
	defer s.publish()

	for peer := range s.conns {
		_ = s.ep.Disconnect(peer)
	}
	for peer := range s.pendingClose {
		_ = s.ep.Disconnect(peer)
	}
	s.conns = make(map[string]bool)
	s.pendingClose = make(map[string]time.Time)
	s.session.Reset()
	s.joined = false
	s.status = StatusLeft
	s.terminal = ErrLeft
	s.log.Infof("Left room %s", s.code)
}

// Run owns the session until ctx is done or the peer reaches a terminal
// state, which it returns.
func (s *Synchronizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	events := s.ep.Events()
	for s.terminal == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				s.terminal = ErrConnectionLost
				s.status = StatusConnectFailed
				s.publish()
				break
			}
			s.HandleEvent(ev, s.clock())
		case fn := <-s.inbox:
			fn()
		case <-ticker.C:
			s.Tick(s.clock(), nil)
		}
	}
	return s.terminal
}

// Do runs fn on the Run goroutine and returns its error.
func (s *Synchronizer) Do(ctx context.Context, fn func(*Synchronizer) error) error {
	done := make(chan error, 1)
	select {
	case s.inbox <- func() { done <- fn(s) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest published view. It is safe to call from any
// goroutine; the returned value must not be modified.
func (s *Synchronizer) Snapshot() *View {
	return s.view.Load()
}

// Stranded reports whether the host has gone and the game can no longer advance.
func (s *Synchronizer) Stranded() bool {
	return s.Snapshot().Stranded
}

// Err returns the terminal error, if any.
func (s *Synchronizer) Err() error {
	return s.Snapshot().Err
}

func (s *Synchronizer) Role() Role       { return s.role }
func (s *Synchronizer) LocalID() string  { return s.localID }
func (s *Synchronizer) Code() string     { return s.code }
func (s *Synchronizer) Clock() time.Time { return s.clock() }

func (s *Synchronizer) publish() {
	s.view.Store(&View{
		Session:  s.session.Clone(),
		Role:     s.role,
		LocalID:  s.localID,
		Code:     s.code,
		Status:   s.status,
		Stranded: s.stranded,
		Err:      s.terminal,
	})
}

func (s *Synchronizer) send(peer string, m protocol.Message) {
	data, err := s.codec.Encode(m)
	if err != nil {
		s.log.Errorf("Encoding %s: %v", m.Type(), err)
		return
	}
	if err := s.ep.Send(peer, data); err != nil {
		s.log.Debugf("Sending %s to %s: %v", m.Type(), peer, err)
	}
}

// broadcast sends m to every open connection except skip. The frame is encoded
// once.
func (s *Synchronizer) broadcast(m protocol.Message, skip string) {
	data, err := s.codec.Encode(m)
	if err != nil {
		s.log.Errorf("Encoding %s: %v", m.Type(), err)
		return
	}
	for peer := range s.conns {
		if peer == skip {
			continue
		}
		if err := s.ep.Send(peer, data); err != nil {
			s.log.Debugf("Sending %s to %s: %v", m.Type(), peer, err)
		}
	}
}

// fillSession repairs maps a decoder may leave nil.
func fillSession(sess *game.Session) {
	if sess.Players == nil {
		sess.Players = make(map[string]*game.Player)
	}
	if sess.Scores == nil {
		sess.Scores = make(map[string]int)
	}
}

// resumeCountdown rebuilds the local start time of a countdown received in a
// snapshot, which carries only the seconds remaining.
func resumeCountdown(sess *game.Session, now time.Time) {
	if sess.State != game.StateCountdown {
		return
	}
	remaining := time.Duration(sess.Countdown * float64(time.Second))
	sess.CountdownStartedAt = now.Add(remaining - game.CountdownTime)
}
