// Package app coordinates the client's screens: entry, lobby directory,
// lobby waiting room, and game. It owns the identity gate and guarantees
// that a departing session has unsubscribed all of its handlers before the
// next one subscribes.
package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/animeshcode007/quizerr-go-client/internal/directory"
	"github.com/animeshcode007/quizerr-go-client/internal/events"
	"github.com/animeshcode007/quizerr-go-client/internal/game"
	"github.com/animeshcode007/quizerr-go-client/internal/identity"
	"github.com/animeshcode007/quizerr-go-client/internal/lobby"
	"github.com/animeshcode007/quizerr-go-client/internal/transport"
)

// Screen names the active top-level context.
type Screen string

const (
	ScreenEntry     Screen = "entry"
	ScreenDirectory Screen = "directory"
	ScreenLobby     Screen = "lobby"
	ScreenGame      Screen = "game"
)

// Connector is the connection surface the app needs: the Bus primitives
// plus lifecycle control. *transport.Conn satisfies it.
type Connector interface {
	transport.Bus
	Connect(ctx context.Context) error
	Close() error
}

// App wires identity, connection, and the three session components
// together and decides which screen owns the UI.
type App struct {
	conn     Connector
	store    *identity.Store
	clock    clockwork.Clock
	onChange func()

	mu        sync.RWMutex
	screen    Screen
	notice    string
	directory *directory.Directory
	lobbySess *lobby.Session
	gameSess  *game.Session

	subs []transport.Subscription
}

// New creates the coordinator. Everyone starts on the entry screen; a
// persisted name only shortens the trip through it.
func New(conn Connector, store *identity.Store, clock clockwork.Clock, onChange func()) *App {
	if onChange == nil {
		onChange = func() {}
	}
	a := &App{
		conn:     conn,
		store:    store,
		clock:    clock,
		onChange: onChange,
		screen:   ScreenEntry,
	}
	// Generic server and transport errors outlive any one screen, so the
	// coordinator owns them for the app's whole lifetime.
	a.subs = append(a.subs,
		conn.On(events.PushError, a.handleServerError),
		conn.On(events.ConnectError, a.handleConnectError),
	)
	return a
}

// Screen returns the active screen.
func (a *App) Screen() Screen {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.screen
}

// Notice returns the pending one-shot message (kick reason, game over,
// "left lobby"), clearing it.
func (a *App) Notice() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.notice
	a.notice = ""
	return n
}

// PlayerName returns the current display name.
func (a *App) PlayerName() string { return a.store.Name() }

// Directory returns the directory component, nil unless on that screen.
func (a *App) Directory() *directory.Directory {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.directory
}

// Lobby returns the lobby session, nil unless on that screen.
func (a *App) Lobby() *lobby.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lobbySess
}

// Game returns the game session, nil unless on that screen.
func (a *App) Game() *game.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gameSess
}

// SubmitName validates and persists the display name, then moves to the
// directory. The connection is established eagerly so the directory can
// load immediately.
func (a *App) SubmitName(name string) error {
	if err := a.store.SetName(name); err != nil {
		return err
	}
	a.ensureConnected()
	a.EnterDirectory()
	return nil
}

// EnterDirectory makes the lobby directory the active screen. Every entry
// into a protected context re-checks the identity gate, because the stored
// name can be cleared independently.
func (a *App) EnterDirectory() {
	if !a.gate() {
		return
	}
	a.ensureConnected()

	a.mu.Lock()
	a.teardownLocked()
	d := directory.New(a.conn, a.onChange)
	a.directory = d
	a.screen = ScreenDirectory
	a.mu.Unlock()

	d.Attach()
	d.Refresh(nil)
	a.onChange()
}

// EnterLobby joins the given lobby and makes its waiting room the active
// screen.
func (a *App) EnterLobby(lobbyID string) {
	if !a.gate() {
		return
	}
	a.ensureConnected()

	a.mu.Lock()
	a.teardownLocked()
	sess := lobby.NewSession(a.conn, a.clock, lobbyID, a.store.Name(), a.handleLobbyExit, a.onChange)
	a.lobbySess = sess
	a.screen = ScreenLobby
	a.mu.Unlock()

	if err := sess.Start(); err != nil {
		log.Error().Err(err).Str("lobby_id", lobbyID).Msg("could not issue join")
	}
	a.onChange()
}

// enterGame promotes control from the lobby waiting room to the game.
func (a *App) enterGame(lobbyID string) {
	if !a.gate() {
		return
	}

	a.mu.Lock()
	a.teardownLocked()
	sess := game.NewSession(a.conn, a.clock, lobbyID, a.handleGameExit, a.onChange)
	a.gameSess = sess
	a.screen = ScreenGame
	a.mu.Unlock()

	sess.Start()
	a.onChange()
}

// Close tears down the active session and the connection.
func (a *App) Close() {
	a.mu.Lock()
	a.teardownLocked()
	a.mu.Unlock()
	for _, sub := range a.subs {
		a.conn.Off(sub)
	}
	a.subs = nil
	a.conn.Close()
}

// handleServerError surfaces the generic server error push as a notice for
// whichever screen is active.
func (a *App) handleServerError(data json.RawMessage) {
	var payload events.ErrorPayload
	_ = json.Unmarshal(data, &payload)
	msg := payload.Message
	if msg == "" {
		msg = "The server reported an error."
	}
	log.Error().Str("message", msg).Msg("server error")

	a.mu.Lock()
	a.notice = msg
	a.mu.Unlock()
	a.onChange()
}

func (a *App) handleConnectError(data json.RawMessage) {
	var payload events.ErrorPayload
	_ = json.Unmarshal(data, &payload)
	msg := "Connection error."
	if payload.Message != "" {
		msg = "Connection error: " + payload.Message
	}

	a.mu.Lock()
	a.notice = msg
	a.mu.Unlock()
	a.onChange()
}

// gate enforces the identity requirement: no name, no lobby or game
// screens.
func (a *App) gate() bool {
	if a.store.Name() != "" {
		return true
	}
	a.mu.Lock()
	a.teardownLocked()
	a.screen = ScreenEntry
	a.notice = "Please enter your name first."
	a.mu.Unlock()
	a.onChange()
	return false
}

// teardownLocked closes whichever session is active. Unsubscription is
// synchronous, so by the time a new session subscribes, no handler from
// the old context remains.
func (a *App) teardownLocked() {
	if a.directory != nil {
		a.directory.Close()
		a.directory = nil
	}
	if a.lobbySess != nil {
		a.lobbySess.Close()
		a.lobbySess = nil
	}
	if a.gameSess != nil {
		a.gameSess.Close()
		a.gameSess = nil
	}
}

func (a *App) handleLobbyExit(e lobby.Exit) {
	if e.Reason == lobby.ExitGameActive {
		a.mu.RLock()
		var lobbyID string
		if a.lobbySess != nil {
			lobbyID = a.lobbySess.LobbyID()
		}
		a.mu.RUnlock()
		a.enterGame(lobbyID)
		return
	}

	a.mu.Lock()
	a.notice = e.Message
	a.mu.Unlock()
	a.EnterDirectory()
}

func (a *App) handleGameExit(e game.Exit) {
	a.mu.Lock()
	a.notice = e.Message
	a.mu.Unlock()
	a.EnterDirectory()
}

// ensureConnected starts a dial in the background when the transport is
// down. Safe to call repeatedly; the connection manager refuses duplicate
// sessions.
func (a *App) ensureConnected() {
	if a.conn.Connected() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.conn.Connect(ctx); err != nil {
			log.Error().Err(err).Msg("could not connect to server")
		}
	}()
}
