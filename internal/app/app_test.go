package app

import (
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animeshcode007/quizerr-go-client/internal/events"
	"github.com/animeshcode007/quizerr-go-client/internal/identity"
	"github.com/animeshcode007/quizerr-go-client/internal/models"
	"github.com/animeshcode007/quizerr-go-client/internal/transport/transporttest"
)

func newApp(t *testing.T) (*App, *transporttest.Bus, *identity.Store) {
	t.Helper()
	bus := transporttest.New("self")
	store := identity.NewStore(filepath.Join(t.TempDir(), "profile.yaml"))
	a := New(bus, store, clockwork.NewFakeClock(), nil)
	t.Cleanup(a.Close)
	return a, bus, store
}

func lobbyDetails(lobbyID string) *models.LobbyDetails {
	return &models.LobbyDetails{
		ID:       lobbyID,
		Name:     "Ann's Game",
		Settings: models.LobbySettings{Category: "Music", MaxPlayers: 8},
		Host:     models.Player{ID: "self", Name: "Ann"},
		Players:  []models.Player{{ID: "self", Name: "Ann"}},
	}
}

// joinLobby drives the app from a fresh start into a joined lobby.
func joinLobby(t *testing.T, a *App, bus *transporttest.Bus, lobbyID string) {
	t.Helper()
	require.NoError(t, a.SubmitName("Ann"))
	a.EnterLobby(lobbyID)
	bus.Ack(events.ReqJoinLobby, events.JoinLobbyAck{Ack: events.Ack{Success: true}, LobbyDetails: lobbyDetails(lobbyID)})
	require.Equal(t, ScreenLobby, a.Screen())
}

func TestStartsOnEntry(t *testing.T) {
	a, _, _ := newApp(t)
	assert.Equal(t, ScreenEntry, a.Screen())
	assert.Nil(t, a.Directory())
}

func TestSubmitNameMovesToDirectory(t *testing.T) {
	a, bus, _ := newApp(t)

	require.NoError(t, a.SubmitName("  Ann  "))

	assert.Equal(t, ScreenDirectory, a.Screen())
	assert.Equal(t, "Ann", a.PlayerName())
	require.NotNil(t, a.Directory())
	assert.NotNil(t, bus.LastRequest(events.ReqGetLobbies), "entering the directory must fetch the list")
}

func TestSubmitNameRejectsInvalid(t *testing.T) {
	a, _, _ := newApp(t)

	var verr *identity.ValidationError
	require.ErrorAs(t, a.SubmitName("   "), &verr)
	assert.Equal(t, ScreenEntry, a.Screen())
}

func TestGateRedirectsToEntryWhenNameMissing(t *testing.T) {
	a, _, store := newApp(t)
	require.NoError(t, a.SubmitName("Ann"))

	store.Clear()
	a.EnterLobby("L1")

	assert.Equal(t, ScreenEntry, a.Screen())
	assert.Equal(t, "Please enter your name first.", a.Notice())
	assert.Nil(t, a.Lobby())
}

func TestEnterLobbyTearsDownDirectoryFirst(t *testing.T) {
	a, bus, _ := newApp(t)
	require.NoError(t, a.SubmitName("Ann"))
	require.Equal(t, 1, bus.HandlerCount(events.PushLobbiesListUpdate))

	a.EnterLobby("L1")

	assert.Zero(t, bus.HandlerCount(events.PushLobbiesListUpdate), "directory handlers must be gone before the lobby subscribes")
	assert.Equal(t, ScreenLobby, a.Screen())
	require.NotNil(t, a.Lobby())
	assert.Nil(t, a.Directory())
	assert.NotNil(t, bus.LastRequest(events.ReqJoinLobby))
}

func TestGameStartedPromotesLobbyToGame(t *testing.T) {
	a, bus, _ := newApp(t)
	joinLobby(t, a, bus, "L1")

	bus.Push(events.PushGameStarted, map[string]any{"lobbyId": "L1"})

	assert.Equal(t, ScreenGame, a.Screen())
	require.NotNil(t, a.Game())
	assert.Equal(t, "L1", a.Game().LobbyID())
	assert.Nil(t, a.Lobby())
	assert.Zero(t, bus.HandlerCount(events.PushPlayerJoined), "lobby handlers must not outlive the lobby screen")
	assert.Equal(t, 1, bus.HandlerCount(events.PushNewQuestion))
}

func TestKickReturnsToDirectoryWithNotice(t *testing.T) {
	a, bus, _ := newApp(t)
	joinLobby(t, a, bus, "L1")

	bus.Push(events.PushKicked, events.KickedPayload{Message: "the host removed you"})

	assert.Equal(t, ScreenDirectory, a.Screen())
	assert.Equal(t, "the host removed you", a.Notice())
	assert.Empty(t, a.Notice(), "a notice is one-shot")
	assert.Nil(t, a.Lobby())
	require.NotNil(t, a.Directory())
}

func TestGameOverReturnsToDirectory(t *testing.T) {
	a, bus, _ := newApp(t)
	joinLobby(t, a, bus, "L1")
	bus.Push(events.PushGameStarted, nil)
	require.Equal(t, ScreenGame, a.Screen())

	bus.Push(events.PushGameOver, events.GameOverPayload{Players: []models.PlayerScore{{ID: "self", Name: "Ann", Score: 100}}})

	assert.Equal(t, ScreenDirectory, a.Screen())
	assert.Equal(t, "Game over!", a.Notice())
	assert.Nil(t, a.Game())
	assert.Zero(t, bus.HandlerCount(events.PushNewQuestion))
}

func TestServerErrorPushSurfacesAsNotice(t *testing.T) {
	a, bus, _ := newApp(t)
	require.NoError(t, a.SubmitName("Ann"))
	require.Equal(t, 1, bus.HandlerCount(events.PushError))

	bus.Push(events.PushError, events.ErrorPayload{Message: "server-side failure"})

	assert.Equal(t, "server-side failure", a.Notice())
	assert.Equal(t, ScreenDirectory, a.Screen(), "a generic error is a notice, not a navigation")
}

func TestConnectErrorSurfacesAsNotice(t *testing.T) {
	a, bus, _ := newApp(t)

	bus.Push(events.ConnectError, events.ErrorPayload{Message: "dial refused"})

	assert.Equal(t, "Connection error: dial refused", a.Notice())
}

func TestCloseTearsEverythingDown(t *testing.T) {
	a, bus, _ := newApp(t)
	require.NoError(t, a.SubmitName("Ann"))

	a.Close()

	assert.Zero(t, bus.HandlerCount(events.PushLobbiesListUpdate))
	assert.Zero(t, bus.HandlerCount(events.PushError))
	assert.Zero(t, bus.HandlerCount(events.ConnectError))
	assert.False(t, bus.Connected())
}
