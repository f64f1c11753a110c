package models

import "time"

type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusCompleted MatchStatus = "completed"
)

// Match is one bracket slot. Round is 1-based, Position is 0-based within
// the round. Participants may be nil until predecessor matches resolve.
type Match struct {
	ID           int         `json:"id"`
	TournamentID int         `json:"tournament_id"`
	Round        int         `json:"round"`
	Position     int         `json:"position"`
	ParticipantA *int        `json:"participant_a,omitempty"`
	ParticipantB *int        `json:"participant_b,omitempty"`
	ScheduledAt  time.Time   `json:"scheduled_at"`
	Status       MatchStatus `json:"status"`
	WinnerID     *int        `json:"winner_id,omitempty"`
	ScoreA       *int        `json:"score_a,omitempty"`
	ScoreB       *int        `json:"score_b,omitempty"`
}

// Resolved reports whether a winner has been recorded.
func (m *Match) Resolved() bool {
	return m.WinnerID != nil
}
