package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animeshcode007/quizerr-go-client/internal/models"
)

func TestDecodeLobbyListArray(t *testing.T) {
	raw := json.RawMessage(`[{"id":"L1","name":"Trivia Night","hostName":"Bo","status":"waiting"}]`)

	lobbies, err := DecodeLobbyList(raw)

	require.NoError(t, err)
	require.Len(t, lobbies, 1)
	assert.Equal(t, "L1", lobbies[0].ID)
	assert.Equal(t, models.LobbyStatusWaiting, lobbies[0].Status)
}

func TestDecodeLobbyListErrorObject(t *testing.T) {
	lobbies, err := DecodeLobbyList(json.RawMessage(`{"error":"directory offline"}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory offline")
	assert.Nil(t, lobbies)
}

func TestQuestionIDUsesMongoFieldName(t *testing.T) {
	raw := json.RawMessage(`{"question":{"_id":"q1","text":"2+2?","options":["3","4"]},"questionNumber":1,"totalQuestions":5,"timeLimit":30}`)

	parsed, err := ParsePushPayload(PushNewQuestion, raw)

	require.NoError(t, err)
	payload, ok := parsed.(NewQuestionPayload)
	require.True(t, ok)
	assert.Equal(t, "q1", payload.Question.ID)
	assert.Equal(t, []string{"3", "4"}, payload.Question.Options)
}

func TestParsePushPayloadUnknownEventIgnored(t *testing.T) {
	parsed, err := ParsePushPayload("somethingNew", json.RawMessage(`{}`))

	assert.NoError(t, err)
	assert.Nil(t, parsed)
}

func TestRoundEndOmitsCorrectIndexForLatecomers(t *testing.T) {
	parsed, err := ParsePushPayload(PushRoundEnd, json.RawMessage(`{}`))

	require.NoError(t, err)
	payload := parsed.(RoundEndPayload)
	assert.Nil(t, payload.CorrectAnswerIndex)
}

func TestEveryPushEventDecodes(t *testing.T) {
	for _, event := range Pushes {
		parsed, err := ParsePushPayload(event, json.RawMessage(`null`))
		require.NoError(t, err, event)
		assert.NotNil(t, parsed, "push event %q has no payload decoder", event)
	}
}

func TestAckErr(t *testing.T) {
	assert.NoError(t, Ack{Success: true}.Err())

	err := Ack{Success: false, Message: "lobby is full"}.Err()
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "lobby is full", reqErr.Message)
}
