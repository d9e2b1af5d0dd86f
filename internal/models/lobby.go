package models

// LobbyStatus describes whether a lobby is still gathering players or
// already running a game.
type LobbyStatus string

const (
	LobbyStatusWaiting LobbyStatus = "waiting"
	LobbyStatusPlaying LobbyStatus = "playing"
)

// LobbySummary is the directory-listing view of a lobby. It is a read-only
// snapshot: each listing or push update replaces it wholesale.
type LobbySummary struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	HostName    string      `json:"hostName"`
	Category    string      `json:"category"`
	PlayerCount int         `json:"playerCount"`
	MaxPlayers  int         `json:"maxPlayers"`
	Status      LobbyStatus `json:"status"`
}

// Player identifies a lobby member by their server-assigned connection id.
// The id is not stable across reconnects.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LobbySettings holds the host-chosen lobby parameters.
type LobbySettings struct {
	Category   string `json:"category"`
	MaxPlayers int    `json:"maxPlayers"`
}

// LobbyDetails is the full state of one lobby. The server sends a complete
// snapshot with every membership event; the client substitutes it wholesale
// and never patches individual fields.
type LobbyDetails struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Settings LobbySettings `json:"settings"`
	Host     Player        `json:"host"`
	Players  []Player      `json:"players"`
}

// HostIs reports whether the given connection id currently holds host
// authority. Host identity can change via reassignment, so callers must
// re-evaluate this on every snapshot rather than cache the result.
func (d *LobbyDetails) HostIs(connID string) bool {
	if d == nil {
		return false
	}
	return connID != "" && d.Host.ID == connID
}
