// Package events defines the wire-level event names and payloads exchanged
// with the Quizerr server over the persistent connection. Requests carry an
// acknowledgment; push events do not.
package events

// Request event names (client -> server, acknowledged).
const (
	ReqCreateLobby  = "createLobby"
	ReqGetLobbies   = "getLobbies"
	ReqJoinLobby    = "joinLobby"
	ReqLeaveLobby   = "leaveLobby"
	ReqStartGame    = "startGame"
	ReqSubmitAnswer = "submitAnswer"
)

// Push event names (server -> client, unacknowledged).
const (
	PushLobbiesListUpdate = "lobbiesListUpdate"
	PushPlayerJoined      = "playerJoined"
	PushPlayerLeft        = "playerLeft"
	PushNewHost           = "newHost"
	PushGameStarted       = "gameStarted"
	PushKicked            = "kicked"
	PushLobbyClosed       = "lobbyClosed"
	PushNewQuestion       = "newQuestion"
	PushScoreUpdate       = "scoreUpdate"
	PushAnswerFeedback    = "answerFeedback"
	PushRoundEnd          = "roundEnd"
	PushGameOver          = "gameOver"
	PushGameError         = "gameError"
	PushError             = "error"
)

// Pushes lists every push event name, for consumers that subscribe
// generically (such as the debug event tracer).
var Pushes = []string{
	PushLobbiesListUpdate, PushPlayerJoined, PushPlayerLeft, PushNewHost,
	PushGameStarted, PushKicked, PushLobbyClosed, PushNewQuestion,
	PushScoreUpdate, PushAnswerFeedback, PushRoundEnd, PushGameOver,
	PushGameError, PushError,
}

// Connection lifecycle events, delivered through the same subscription
// mechanism as server pushes so dependents react uniformly.
const (
	Connect      = "connect"
	Disconnect   = "disconnect"
	ConnectError = "connect_error"
)
