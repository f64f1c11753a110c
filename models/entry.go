package models

import "time"

// Entry is one participant's registration in one tournament.
// Seed is assigned at registration and never reused within the tournament.
type Entry struct {
	ID             int       `json:"id"`
	TournamentID   int       `json:"tournament_id"`
	ParticipantID  int       `json:"participant_id"`
	Seed           int       `json:"seed"`
	Wins           int       `json:"wins"`
	Losses         int       `json:"losses"`
	PointDiff      int       `json:"point_diff"`
	FinalRank      *int      `json:"final_rank,omitempty"`
	Eliminated     bool      `json:"eliminated"`
	RewardsClaimed bool      `json:"rewards_claimed"`
	CreatedAt      time.Time `json:"created_at"`
}
