package transport

import "encoding/json"

// frameType discriminates wire frames. The server speaks three kinds:
// a welcome frame carrying the session id right after the socket opens,
// named events, and acknowledgments correlated by request id.
type frameType string

const (
	frameWelcome frameType = "welcome"
	frameEvent   frameType = "event"
	frameAck     frameType = "ack"
)

type frame struct {
	Type  frameType       `json:"type"`
	Event string          `json:"event,omitempty"`
	ID    string          `json:"id,omitempty"` // ack correlation id
	Data  json.RawMessage `json:"data,omitempty"`
}

type welcomeData struct {
	SessionID string `json:"sid"`
}

func encodeFrame(f frame) ([]byte, error) {
	return json.Marshal(f)
}

func decodeFrame(raw []byte) (frame, error) {
	var f frame
	err := json.Unmarshal(raw, &f)
	return f, err
}
