package directory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animeshcode007/quizerr-go-client/internal/events"
	"github.com/animeshcode007/quizerr-go-client/internal/models"
	"github.com/animeshcode007/quizerr-go-client/internal/transport"
	"github.com/animeshcode007/quizerr-go-client/internal/transport/transporttest"
)

func twoLobbies() []models.LobbySummary {
	return []models.LobbySummary{
		{ID: "L1", Name: "Ann's Game", HostName: "Ann", Category: "Music", PlayerCount: 1, MaxPlayers: 8, Status: models.LobbyStatusWaiting},
		{ID: "L2", Name: "Trivia Night", HostName: "Bo", Category: "History", PlayerCount: 3, MaxPlayers: 4, Status: models.LobbyStatusPlaying},
	}
}

func TestRefreshReplacesListFromAck(t *testing.T) {
	bus := transporttest.New("self")
	d := New(bus, nil)
	d.Attach()
	defer d.Close()

	d.Refresh(nil)
	assert.True(t, d.Loading())

	bus.Ack(events.ReqGetLobbies, twoLobbies())

	assert.False(t, d.Loading())
	require.Len(t, d.Lobbies(), 2)
	assert.Equal(t, "L1", d.Lobbies()[0].ID)
	assert.Empty(t, d.LastError())
}

func TestRefreshErrorEmptiesListAndSurfaces(t *testing.T) {
	bus := transporttest.New("self")
	d := New(bus, nil)
	d.Attach()
	defer d.Close()

	// Seed a list, then fail the next refresh: the stale list must not
	// survive.
	d.Refresh(nil)
	bus.Ack(events.ReqGetLobbies, twoLobbies())
	require.Len(t, d.Lobbies(), 2)

	var got error
	d.Refresh(func(err error) { got = err })
	bus.FailAck(events.ReqGetLobbies, transport.ErrAckTimeout)

	require.Error(t, got)
	assert.Empty(t, d.Lobbies())
	assert.NotEmpty(t, d.LastError())
	assert.False(t, d.Loading(), "a failed refresh must not stay in loading")
}

func TestRefreshServerErrorObject(t *testing.T) {
	bus := transporttest.New("self")
	d := New(bus, nil)
	d.Attach()
	defer d.Close()

	var got error
	d.Refresh(func(err error) { got = err })
	bus.Ack(events.ReqGetLobbies, map[string]string{"error": "directory offline"})

	require.Error(t, got)
	assert.Contains(t, got.Error(), "directory offline")
	assert.Empty(t, d.Lobbies())
}

func TestPushUpdateReplacesWholesale(t *testing.T) {
	bus := transporttest.New("self")
	d := New(bus, nil)
	d.Attach()
	defer d.Close()

	d.Refresh(nil)
	bus.Ack(events.ReqGetLobbies, twoLobbies())

	replacement := []models.LobbySummary{{ID: "L9", Name: "New Room", Status: models.LobbyStatusWaiting}}
	bus.Push(events.PushLobbiesListUpdate, replacement)

	require.Len(t, d.Lobbies(), 1)
	assert.Equal(t, "L9", d.Lobbies()[0].ID)

	// Applying the same snapshot twice is idempotent.
	bus.Push(events.PushLobbiesListUpdate, replacement)
	require.Len(t, d.Lobbies(), 1)
	assert.Equal(t, "L9", d.Lobbies()[0].ID)
}

func TestReconnectTriggersRefresh(t *testing.T) {
	bus := transporttest.New("self")
	d := New(bus, nil)
	d.Attach()
	defer d.Close()

	require.Nil(t, bus.LastRequest(events.ReqGetLobbies))
	bus.Push(events.Connect, nil)
	assert.NotNil(t, bus.LastRequest(events.ReqGetLobbies), "reconnect must re-fetch the stale list")
}

func TestCreateReturnsLobbyID(t *testing.T) {
	bus := transporttest.New("self")
	d := New(bus, nil)

	var gotID string
	var gotErr error
	d.Create("Ann", "Ann's Game", "Music", func(lobbyID string, err error) {
		gotID, gotErr = lobbyID, err
	})

	req := bus.LastRequest(events.ReqCreateLobby)
	require.NotNil(t, req)
	var payload events.CreateLobbyRequest
	require.NoError(t, req.Unmarshal(&payload))
	assert.Equal(t, events.CreateLobbyRequest{PlayerName: "Ann", LobbyName: "Ann's Game", Category: "Music"}, payload)

	bus.Ack(events.ReqCreateLobby, events.CreateLobbyAck{Ack: events.Ack{Success: true}, LobbyID: "L1"})
	require.NoError(t, gotErr)
	assert.Equal(t, "L1", gotID)
}

func TestCreateFailureLeavesStateUnchanged(t *testing.T) {
	bus := transporttest.New("self")
	d := New(bus, nil)
	d.Attach()
	defer d.Close()

	d.Refresh(nil)
	bus.Ack(events.ReqGetLobbies, twoLobbies())

	var gotErr error
	d.Create("Ann", "Ann's Game", "Music", func(_ string, err error) { gotErr = err })
	bus.Ack(events.ReqCreateLobby, events.CreateLobbyAck{Ack: events.Ack{Success: false, Message: "name taken"}})

	var reqErr *events.RequestError
	require.ErrorAs(t, gotErr, &reqErr)
	assert.Equal(t, "name taken", reqErr.Message)
	assert.Len(t, d.Lobbies(), 2, "a failed create must not touch the list")
}

func TestCreateValidatesLocally(t *testing.T) {
	bus := transporttest.New("self")
	d := New(bus, nil)

	var gotErr error
	d.Create("Ann", "", "Music", func(_ string, err error) { gotErr = err })

	assert.ErrorIs(t, gotErr, ErrMissingFields)
	assert.Nil(t, bus.LastRequest(events.ReqCreateLobby), "validation failures must not reach the network")
}

func TestCloseUnsubscribes(t *testing.T) {
	bus := transporttest.New("self")
	d := New(bus, nil)
	d.Attach()
	require.Equal(t, 1, bus.HandlerCount(events.PushLobbiesListUpdate))

	d.Close()
	assert.Zero(t, bus.HandlerCount(events.PushLobbiesListUpdate))
	assert.Zero(t, bus.HandlerCount(events.Connect))

	// A late push for the torn-down directory must not resurrect state.
	bus.PushRaw(events.PushLobbiesListUpdate, json.RawMessage(`[{"id":"L3"}]`))
	assert.Empty(t, d.Lobbies())
}
