package models

import "sort"

// Question is a single quiz question as pushed by the server. The correct
// option index is withheld until the round resolves.
type Question struct {
	ID      string   `json:"_id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// PlayerScore is one row of the scoreboard.
type PlayerScore struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// SortScores orders a scoreboard score-descending in place, the display
// order used everywhere scores are shown.
func SortScores(scores []PlayerScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
}
