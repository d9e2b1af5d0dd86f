package events

import (
	"encoding/json"
	"fmt"

	"github.com/animeshcode007/quizerr-go-client/internal/models"
)

// Request payloads.

type CreateLobbyRequest struct {
	PlayerName string `json:"playerName"`
	LobbyName  string `json:"lobbyName"`
	Category   string `json:"category"`
}

type JoinLobbyRequest struct {
	LobbyID    string `json:"lobbyId"`
	PlayerName string `json:"playerName"`
}

type LeaveLobbyRequest struct {
	LobbyID string `json:"lobbyId"`
}

type StartGameRequest struct {
	LobbyID string `json:"lobbyId"`
}

type SubmitAnswerRequest struct {
	LobbyID     string `json:"lobbyId"`
	QuestionID  string `json:"questionId"`
	AnswerIndex int    `json:"answerIndex"`
}

// Acknowledgment payloads.

// Ack is the generic success/failure acknowledgment shape. Message is only
// meaningful when Success is false.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type CreateLobbyAck struct {
	Ack
	LobbyID string `json:"lobbyId,omitempty"`
}

type JoinLobbyAck struct {
	Ack
	LobbyDetails *models.LobbyDetails `json:"lobbyDetails,omitempty"`
}

// GetLobbiesAck is either a bare array of summaries or an error object; the
// directory decodes it with DecodeLobbyList.
type GetLobbiesAck struct {
	Error string `json:"error,omitempty"`
}

// Push payloads.

type PlayerJoinedPayload struct {
	Player       models.Player        `json:"player"`
	LobbyDetails *models.LobbyDetails `json:"lobbyDetails"`
}

type PlayerLeftPayload struct {
	PlayerID     string               `json:"playerId"`
	PlayerName   string               `json:"playerName"`
	LobbyDetails *models.LobbyDetails `json:"lobbyDetails"`
}

type NewHostPayload struct {
	Host         models.Player        `json:"host"`
	LobbyDetails *models.LobbyDetails `json:"lobbyDetails"`
}

type KickedPayload struct {
	Message string `json:"message"`
}

type NewQuestionPayload struct {
	Question       models.Question      `json:"question"`
	QuestionNumber int                  `json:"questionNumber"`
	TotalQuestions int                  `json:"totalQuestions"`
	TimeLimit      int                  `json:"timeLimit"`
	Players        []models.PlayerScore `json:"players"`
}

type AnswerFeedbackPayload struct {
	Correct            bool `json:"correct"`
	CorrectAnswerIndex int  `json:"correctAnswerIndex"`
	ScoreEarned        int  `json:"scoreEarned"`
}

type RoundEndPayload struct {
	CorrectAnswerIndex *int `json:"correctAnswerIndex"`
}

type GameOverPayload struct {
	Players []models.PlayerScore `json:"players"`
}

type GameErrorPayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// DecodeLobbyList decodes a getLobbies acknowledgment, which the server
// sends either as a bare array of summaries or as {"error": "..."}.
func DecodeLobbyList(data json.RawMessage) ([]models.LobbySummary, error) {
	var lobbies []models.LobbySummary
	if err := json.Unmarshal(data, &lobbies); err == nil {
		return lobbies, nil
	}

	var ack GetLobbiesAck
	if err := json.Unmarshal(data, &ack); err != nil {
		return nil, fmt.Errorf("unmarshal lobby list: %w", err)
	}
	if ack.Error != "" {
		return nil, fmt.Errorf("server error: %s", ack.Error)
	}
	return nil, fmt.Errorf("unexpected lobby list response")
}

// ParsePushPayload parses a push event's data into the matching payload
// struct. Unknown events return (nil, nil) so callers can ignore them.
func ParsePushPayload(event string, data json.RawMessage) (interface{}, error) {
	switch event {
	case PushLobbiesListUpdate:
		var payload []models.LobbySummary
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case PushPlayerJoined:
		var payload PlayerJoinedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case PushPlayerLeft:
		var payload PlayerLeftPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case PushNewHost:
		var payload NewHostPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case PushKicked:
		var payload KickedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case PushGameStarted, PushLobbyClosed:
		// Opaque or empty payloads pass through raw.
		return data, nil

	case PushNewQuestion:
		var payload NewQuestionPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case PushScoreUpdate:
		var payload []models.PlayerScore
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case PushAnswerFeedback:
		var payload AnswerFeedbackPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case PushRoundEnd:
		var payload RoundEndPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case PushGameOver:
		var payload GameOverPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case PushGameError:
		var payload GameErrorPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case PushError:
		var payload ErrorPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
