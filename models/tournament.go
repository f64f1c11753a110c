package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TournamentStatus mirrors the tournament_status ENUM in the database.
// Transitions only move forward: registration_open -> in_progress -> completed.
type TournamentStatus string

const (
	StatusRegistrationOpen TournamentStatus = "registration_open"
	StatusInProgress       TournamentStatus = "in_progress"
	StatusCompleted        TournamentStatus = "completed"
)

// TournamentFormat mirrors the tournament_format ENUM in the database.
type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatRoundRobin        TournamentFormat = "round_robin"
)

// ItemGrant is a single item reward attached to a prize rank.
type ItemGrant struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Prize describes what one final rank pays out.
type Prize struct {
	Credits int64       `json:"credits,omitempty"`
	Premium int64       `json:"premium,omitempty"`
	Items   []ItemGrant `json:"items,omitempty"`
}

// PrizePool maps final rank to its reward. Stored as jsonb.
type PrizePool map[int]Prize

func (p PrizePool) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

func (p *PrizePool) Scan(src interface{}) error {
	if src == nil {
		*p = PrizePool{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("prize pool: cannot scan %T", src)
	}
	return json.Unmarshal(b, p)
}

// Tournament represents one competition instance.
type Tournament struct {
	ID                 int              `json:"id"`
	Name               string           `json:"name"`
	Format             TournamentFormat `json:"format"`
	Division           *string          `json:"division,omitempty"`
	RegistrationOpens  time.Time        `json:"registration_opens"`
	RegistrationCloses time.Time        `json:"registration_closes"`
	EntryFee           int64            `json:"entry_fee"`
	EntryFeePremium    int64            `json:"entry_fee_premium"`
	MinEntries         int              `json:"min_entries"`
	MaxEntries         int              `json:"max_entries"`
	Status             TournamentStatus `json:"status"`
	PrizePool          PrizePool        `json:"prize_pool"`
	CreatedAt          time.Time        `json:"created_at"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	BannerKey          *string          `json:"-"`
	BannerURL          *string          `json:"banner_url,omitempty"`

	// Loaded on demand, not mapped directly.
	EntryCount int     `json:"entry_count"`
	Entries    []Entry `json:"entries,omitempty"`
	Matches    []Match `json:"matches,omitempty"`
}
