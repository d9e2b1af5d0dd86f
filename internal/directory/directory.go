// Package directory maintains the list of joinable lobbies. The list is
// refreshed on demand and replaced wholesale on push updates; it is never
// patched, so the last applied snapshot fully determines what is shown.
package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/animeshcode007/quizerr-go-client/internal/events"
	"github.com/animeshcode007/quizerr-go-client/internal/models"
	"github.com/animeshcode007/quizerr-go-client/internal/transport"
)

// ErrMissingFields rejects a create request before it reaches the network.
var ErrMissingFields = errors.New("lobby name and category are required")

// Categories are the selectable quiz categories offered when creating a
// lobby.
var Categories = []string{
	"General Knowledge",
	"Movies",
	"Music",
	"Science & Nature",
	"History",
	"Sports",
}

// DefaultLobbyName suggests a lobby name for the given player.
func DefaultLobbyName(playerName string) string {
	return fmt.Sprintf("%s's Game", playerName)
}

// Directory tracks the joinable lobbies advertised by the server.
type Directory struct {
	bus      transport.Bus
	onChange func()

	mu      sync.RWMutex
	lobbies []models.LobbySummary
	loading bool
	lastErr string

	subs []transport.Subscription
}

// New creates a directory. onChange, if non-nil, is invoked after every
// state change so a view can re-render; it runs on the dispatch goroutine
// and must not block.
func New(bus transport.Bus, onChange func()) *Directory {
	if onChange == nil {
		onChange = func() {}
	}
	return &Directory{bus: bus, onChange: onChange}
}

// Attach subscribes to directory push events. A reconnect triggers a
// refresh, since any list held across a gap is stale.
func (d *Directory) Attach() {
	d.subs = append(d.subs,
		d.bus.On(events.PushLobbiesListUpdate, d.handleListUpdate),
		d.bus.On(events.Connect, func(json.RawMessage) {
			log.Info().Msg("reconnected, refreshing lobby list")
			d.Refresh(nil)
		}),
	)
}

// Close unsubscribes all handlers. Must run before another screen attaches.
func (d *Directory) Close() {
	for _, sub := range d.subs {
		d.bus.Off(sub)
	}
	d.subs = nil
}

// Lobbies returns a copy of the current lobby list.
func (d *Directory) Lobbies() []models.LobbySummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.LobbySummary, len(d.lobbies))
	copy(out, d.lobbies)
	return out
}

// Loading reports whether a refresh is in flight.
func (d *Directory) Loading() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loading
}

// LastError returns the most recent refresh failure message, empty when the
// last refresh succeeded.
func (d *Directory) LastError() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// Refresh requests the lobby list and replaces the local copy with the
// response. On failure the list becomes empty and the error is surfaced to
// cb; retrying is the caller's decision.
func (d *Directory) Refresh(cb func(error)) {
	if cb == nil {
		cb = func(err error) {
			if err != nil {
				log.Error().Err(err).Msg("lobby list refresh failed")
			}
		}
	}

	d.mu.Lock()
	d.loading = true
	d.lastErr = ""
	d.mu.Unlock()
	d.onChange()

	err := d.bus.EmitWithAck(events.ReqGetLobbies, struct{}{}, func(data json.RawMessage, err error) {
		if err != nil {
			d.replaceList(nil, err.Error())
			cb(fmt.Errorf("get lobbies: %w", err))
			return
		}
		lobbies, err := events.DecodeLobbyList(data)
		if err != nil {
			d.replaceList(nil, err.Error())
			cb(err)
			return
		}
		d.replaceList(lobbies, "")
		cb(nil)
	})
	if err != nil {
		d.replaceList(nil, err.Error())
		cb(fmt.Errorf("get lobbies: %w", err))
	}
}

// Create asks the server to create a lobby. On success cb receives the new
// lobby id and the caller transitions into a lobby session for it; on
// failure local state is unchanged.
func (d *Directory) Create(playerName, lobbyName, category string, cb func(lobbyID string, err error)) {
	if lobbyName == "" || category == "" {
		cb("", ErrMissingFields)
		return
	}

	req := events.CreateLobbyRequest{PlayerName: playerName, LobbyName: lobbyName, Category: category}
	err := d.bus.EmitWithAck(events.ReqCreateLobby, req, func(data json.RawMessage, err error) {
		if err != nil {
			cb("", fmt.Errorf("create lobby: %w", err))
			return
		}
		var ack events.CreateLobbyAck
		if err := json.Unmarshal(data, &ack); err != nil {
			cb("", fmt.Errorf("malformed create lobby ack: %w", err))
			return
		}
		if err := ack.Err(); err != nil {
			cb("", err)
			return
		}
		log.Info().Str("lobby_id", ack.LobbyID).Str("lobby_name", lobbyName).Msg("lobby created")
		cb(ack.LobbyID, nil)
	})
	if err != nil {
		cb("", fmt.Errorf("create lobby: %w", err))
	}
}

// handleListUpdate applies a pushed full replacement of the lobby list.
func (d *Directory) handleListUpdate(data json.RawMessage) {
	var lobbies []models.LobbySummary
	if err := json.Unmarshal(data, &lobbies); err != nil {
		log.Warn().Err(err).Msg("dropping malformed lobby list update")
		return
	}
	d.replaceList(lobbies, "")
}

func (d *Directory) replaceList(lobbies []models.LobbySummary, errMsg string) {
	d.mu.Lock()
	d.lobbies = lobbies
	d.loading = false
	d.lastErr = errMsg
	d.mu.Unlock()
	d.onChange()
}
