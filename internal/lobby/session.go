// Package lobby implements the client-side state machine for one lobby:
// joining, tracking membership while waiting, and handing control to the
// game once the server broadcasts the start.
//
// Membership state only ever changes by applying full lobby snapshots from
// the server. Local actions (leave, start) wait for confirmation; nothing
// is applied optimistically.
package lobby

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/animeshcode007/quizerr-go-client/internal/events"
	"github.com/animeshcode007/quizerr-go-client/internal/models"
	"github.com/animeshcode007/quizerr-go-client/internal/transport"
)

// State is the lobby session's current phase.
type State string

const (
	StateJoining  State = "joining"
	StateWaiting  State = "waiting"
	StateStarting State = "starting"
	StateError    State = "error"
)

// errorGraceDelay is how long a join failure stays on screen before the
// session returns to the directory.
const errorGraceDelay = 3 * time.Second

// ErrNotHost rejects a host-only action locally.
var ErrNotHost = errors.New("only the host can start the game")

// ExitReason says why the session ended and where control goes next.
type ExitReason string

const (
	// ExitGameActive promotes control to a game session for this lobby.
	ExitGameActive ExitReason = "game_active"
	// ExitLeft, ExitKicked, ExitClosed, and ExitError all return control to
	// the lobby directory.
	ExitLeft   ExitReason = "left"
	ExitKicked ExitReason = "kicked"
	ExitClosed ExitReason = "closed"
	ExitError  ExitReason = "error"
)

// Exit describes a session termination.
type Exit struct {
	Reason  ExitReason
	Message string
}

// Session tracks one lobby from join to game start or departure.
type Session struct {
	bus      transport.Bus
	clock    clockwork.Clock
	lobbyID  string
	player   string
	onExit   func(Exit)
	onChange func()

	mu       sync.RWMutex
	state    State
	details  *models.LobbyDetails
	errMsg   string
	connLost bool
	ended    bool

	subs []transport.Subscription
	done chan struct{}
}

// NewSession creates a session for the given lobby. onExit is invoked once,
// on the dispatch goroutine, when the session terminates for any reason;
// the caller is responsible for closing the session and navigating.
func NewSession(bus transport.Bus, clock clockwork.Clock, lobbyID, playerName string, onExit func(Exit), onChange func()) *Session {
	if onChange == nil {
		onChange = func() {}
	}
	return &Session{
		bus:      bus,
		clock:    clock,
		lobbyID:  lobbyID,
		player:   playerName,
		onExit:   onExit,
		onChange: onChange,
		state:    StateJoining,
		done:     make(chan struct{}),
	}
}

// Start subscribes the push handlers and issues the join request. Handlers
// are registered before the request goes out because the join broadcast and
// the join acknowledgment can arrive in either order.
func (s *Session) Start() error {
	s.subs = append(s.subs,
		s.bus.On(events.PushPlayerJoined, s.handlePlayerJoined),
		s.bus.On(events.PushPlayerLeft, s.handlePlayerLeft),
		s.bus.On(events.PushNewHost, s.handleNewHost),
		s.bus.On(events.PushGameStarted, s.handleGameStarted),
		s.bus.On(events.PushKicked, s.handleKicked),
		s.bus.On(events.PushLobbyClosed, s.handleLobbyClosed),
		s.bus.On(events.Disconnect, s.handleDisconnect),
		s.bus.On(events.Connect, s.handleReconnect),
	)
	return s.join()
}

// join issues the joinLobby request. Also used after a reconnect, when the
// fresh connection id has to be re-registered as a member.
func (s *Session) join() error {
	req := events.JoinLobbyRequest{LobbyID: s.lobbyID, PlayerName: s.player}
	err := s.bus.EmitWithAck(events.ReqJoinLobby, req, s.handleJoinAck)
	if err != nil {
		s.failJoin(fmt.Sprintf("Could not join lobby: %v", err))
		return fmt.Errorf("join lobby: %w", err)
	}
	return nil
}

// Close unsubscribes every handler and cancels any scheduled return. It
// must run before another session subscribes, so a torn-down lobby can
// never mutate state for an unrelated context.
func (s *Session) Close() {
	for _, sub := range s.subs {
		s.bus.Off(sub)
	}
	s.subs = nil

	s.mu.Lock()
	if !s.ended {
		s.ended = true
		close(s.done)
	}
	s.mu.Unlock()
}

// LobbyID returns the lobby this session is bound to. Doubles as the invite
// code players share to join directly.
func (s *Session) LobbyID() string { return s.lobbyID }

// State returns the current phase.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Details returns the latest lobby snapshot, nil before the first one.
func (s *Session) Details() *models.LobbyDetails {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.details == nil {
		return nil
	}
	cp := *s.details
	cp.Players = append([]models.Player(nil), s.details.Players...)
	return &cp
}

// ErrorMessage returns the displayed error, empty outside StateError.
func (s *Session) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// IsHost reports whether the local player currently holds host authority.
// Evaluated against the latest snapshot and the live connection id, since
// both can change.
func (s *Session) IsHost() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.details.HostIs(s.bus.ID())
}

// Leave asks the server to remove the local player. On success the session
// exits to the directory; on failure nothing changes and cb gets the error.
func (s *Session) Leave(cb func(error)) {
	if cb == nil {
		cb = func(error) {}
	}
	req := events.LeaveLobbyRequest{LobbyID: s.lobbyID}
	err := s.bus.EmitWithAck(events.ReqLeaveLobby, req, func(data json.RawMessage, err error) {
		if err != nil {
			cb(fmt.Errorf("leave lobby: %w", err))
			return
		}
		var ack events.Ack
		if err := json.Unmarshal(data, &ack); err != nil {
			cb(fmt.Errorf("malformed leave ack: %w", err))
			return
		}
		if err := ack.Err(); err != nil {
			cb(err)
			return
		}
		cb(nil)
		s.exit(Exit{Reason: ExitLeft, Message: "You have left the lobby."})
	})
	if err != nil {
		cb(fmt.Errorf("leave lobby: %w", err))
	}
}

// StartGame issues the host-only start request. A successful acknowledgment
// does not transition the session: every participant, host included, moves
// in lockstep when the gameStarted broadcast arrives.
func (s *Session) StartGame(cb func(error)) {
	if cb == nil {
		cb = func(error) {}
	}
	if !s.IsHost() {
		cb(ErrNotHost)
		return
	}
	req := events.StartGameRequest{LobbyID: s.lobbyID}
	err := s.bus.EmitWithAck(events.ReqStartGame, req, func(data json.RawMessage, err error) {
		if err != nil {
			cb(fmt.Errorf("start game: %w", err))
			return
		}
		var ack events.Ack
		if err := json.Unmarshal(data, &ack); err != nil {
			cb(fmt.Errorf("malformed start ack: %w", err))
			return
		}
		if err := ack.Err(); err != nil {
			cb(err)
			return
		}
		log.Info().Str("lobby_id", s.lobbyID).Msg("start accepted, waiting for gameStarted broadcast")
		cb(nil)
	})
	if err != nil {
		cb(fmt.Errorf("start game: %w", err))
	}
}

func (s *Session) handleJoinAck(data json.RawMessage, err error) {
	if err != nil {
		s.failJoin(fmt.Sprintf("Could not join lobby: %v", err))
		return
	}
	var ack events.JoinLobbyAck
	if err := json.Unmarshal(data, &ack); err != nil {
		s.failJoin("Could not load lobby details.")
		return
	}
	if !ack.Success {
		msg := ack.Message
		if msg == "" {
			msg = "Could not load lobby details. It might not exist or you were removed."
		}
		s.failJoin(msg)
		return
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	if ack.LobbyDetails != nil {
		s.details = ack.LobbyDetails
	}
	// A gameStarted broadcast may have won the race with this ack; do not
	// demote the session back to waiting.
	if s.state == StateJoining {
		s.state = StateWaiting
	}
	s.mu.Unlock()
	s.onChange()
	log.Info().Str("lobby_id", s.lobbyID).Msg("joined lobby")
}

// failJoin enters the error state and schedules the return to the
// directory after a grace period. This is display time, not a retry.
func (s *Session) failJoin(msg string) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.state = StateError
	s.errMsg = msg
	s.mu.Unlock()
	s.onChange()

	go func() {
		select {
		case <-s.clock.After(errorGraceDelay):
			s.exit(Exit{Reason: ExitError, Message: msg})
		case <-s.done:
		}
	}()
}

func (s *Session) handlePlayerJoined(data json.RawMessage) {
	var payload events.PlayerJoinedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("dropping malformed playerJoined")
		return
	}
	log.Info().Str("player", payload.Player.Name).Msg("player joined")
	s.applySnapshot(payload.LobbyDetails)
}

func (s *Session) handlePlayerLeft(data json.RawMessage) {
	var payload events.PlayerLeftPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("dropping malformed playerLeft")
		return
	}
	s.applySnapshot(payload.LobbyDetails)

	// The only self-referential membership event: the server says the local
	// player is gone, so leave regardless of what the snapshot contains.
	if payload.PlayerID != "" && payload.PlayerID == s.bus.ID() {
		s.exit(Exit{Reason: ExitLeft, Message: "You have left the lobby."})
	}
}

func (s *Session) handleNewHost(data json.RawMessage) {
	var payload events.NewHostPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("dropping malformed newHost")
		return
	}
	log.Info().Str("host", payload.Host.Name).Msg("host reassigned")
	s.applySnapshot(payload.LobbyDetails)
}

// handleGameStarted moves the session to its terminal starting state. The
// payload is an opaque trigger; all round state arrives via newQuestion.
func (s *Session) handleGameStarted(json.RawMessage) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.state = StateStarting
	s.mu.Unlock()
	s.onChange()
	s.exit(Exit{Reason: ExitGameActive})
}

func (s *Session) handleKicked(data json.RawMessage) {
	var payload events.KickedPayload
	_ = json.Unmarshal(data, &payload)
	msg := payload.Message
	if msg == "" {
		msg = "You have been removed from the lobby."
	}
	s.exit(Exit{Reason: ExitKicked, Message: msg})
}

func (s *Session) handleLobbyClosed(json.RawMessage) {
	s.exit(Exit{Reason: ExitClosed, Message: "The lobby has been closed."})
}

// handleDisconnect marks the gap. The held snapshot predates it and the
// connection id it was joined under no longer names a member.
func (s *Session) handleDisconnect(json.RawMessage) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.connLost = true
	s.mu.Unlock()
	s.onChange()
	log.Warn().Str("lobby_id", s.lobbyID).Msg("connection lost while in lobby")
}

// handleReconnect re-establishes membership after a gap by joining again
// under the fresh connection id. The pre-gap snapshot is never trusted. A
// session already in the error state keeps its scheduled return instead.
func (s *Session) handleReconnect(json.RawMessage) {
	s.mu.Lock()
	if s.ended || !s.connLost || (s.state != StateWaiting && s.state != StateJoining) {
		s.mu.Unlock()
		return
	}
	s.connLost = false
	s.state = StateJoining
	s.mu.Unlock()
	s.onChange()
	log.Info().Str("lobby_id", s.lobbyID).Msg("reconnected, re-joining lobby")
	s.join()
}

// applySnapshot substitutes the full lobby state. Snapshots for other
// lobbies are ignored; applying the same snapshot twice is a no-op by
// construction.
func (s *Session) applySnapshot(details *models.LobbyDetails) {
	if details == nil {
		log.Warn().Str("lobby_id", s.lobbyID).Msg("membership event without snapshot")
		return
	}
	if details.ID != s.lobbyID {
		return
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.details = details
	s.mu.Unlock()
	s.onChange()
}

// exit fires onExit exactly once and marks the session dead so late events
// cannot act on it.
func (s *Session) exit(e Exit) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	close(s.done)
	s.mu.Unlock()

	log.Info().
		Str("lobby_id", s.lobbyID).
		Str("reason", string(e.Reason)).
		Msg("lobby session ended")
	if s.onExit != nil {
		s.onExit(e)
	}
}
