package brackets

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/leaguecraft/tournament-engine/models"
)

var ErrInsufficientParticipants = errors.New("not enough participants to generate a bracket (minimum 2)")

// Slot is one generated bracket pairing: the match at (Round, Position).
// Round is 1-based, Position is 0-based within the round. Participant fields
// stay nil for later-round slots that are filled as predecessors resolve.
type Slot struct {
	Round        int
	Position     int
	ParticipantA *int
	ParticipantB *int
}

// Generate builds the full match structure for the given format from an
// ordered participant list. The bracket shape is fully determined by the
// input order; callers wanting random placement shuffle the list first.
func Generate(format models.TournamentFormat, participantIDs []int) ([]Slot, error) {
	switch format {
	case models.FormatSingleElimination:
		return generateSingleElimination(participantIDs)
	case models.FormatRoundRobin:
		return generateRoundRobin(participantIDs)
	default:
		return nil, fmt.Errorf("unsupported tournament format %q", format)
	}
}

// Shuffle returns a shuffled copy of participantIDs. This single pass is the
// only sanctioned source of non-determinism in bracket generation.
func Shuffle(participantIDs []int) []int {
	out := make([]int, len(participantIDs))
	copy(out, participantIDs)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Rounds returns the number of single-elimination rounds for n participants.
func Rounds(n int) int {
	if n < 2 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(n))))
}

// SlotCounts returns the number of match slots per round, indexed by round
// (index 0 unused). Each round pairs its contenders two at a time; an odd
// contender carries forward without a slot, so a round with c contenders has
// floor(c/2) slots and ceil(c/2) contenders advance.
func SlotCounts(n int) []int {
	rounds := Rounds(n)
	counts := make([]int, rounds+1)
	c := n
	for r := 1; r <= rounds; r++ {
		counts[r] = c / 2
		c = (c + 1) / 2
	}
	return counts
}

func generateSingleElimination(ids []int) ([]Slot, error) {
	n := len(ids)
	if n < 2 {
		return nil, ErrInsufficientParticipants
	}

	rounds := Rounds(n)
	counts := SlotCounts(n)

	total := 0
	for r := 1; r <= rounds; r++ {
		total += counts[r]
	}

	byRound := make([][]*Slot, rounds+1)
	slots := make([]Slot, 0, total)
	for r := 1; r <= rounds; r++ {
		byRound[r] = make([]*Slot, counts[r])
		for p := 0; p < counts[r]; p++ {
			slots = append(slots, Slot{Round: r, Position: p})
			byRound[r][p] = &slots[len(slots)-1]
		}
	}

	// Round 1 pairs participants in input order, two at a time.
	for p := 0; p < counts[1]; p++ {
		a, b := ids[2*p], ids[2*p+1]
		byRound[1][p].ParticipantA = &a
		byRound[1][p].ParticipantB = &b
	}

	// An odd leftover participant gets a bye: no match record, but the
	// participant is written straight into the successor slot, chaining
	// through further byes if the target round has no slot at that position.
	if n%2 == 1 {
		bye := ids[n-1]
		placeAdvancing(byRound, rounds, 1, counts[1], &bye)
	}

	return slots, nil
}

// placeAdvancing writes an advancing participant into the next existing slot
// reachable from the (sealed or virtual) match at (round, position).
func placeAdvancing(byRound [][]*Slot, rounds, round, position int, participantID *int) {
	r, p, side := NextSlot(round, position)
	for r <= rounds {
		if p < len(byRound[r]) {
			target := byRound[r][p]
			if side == SideA {
				target.ParticipantA = participantID
			} else {
				target.ParticipantB = participantID
			}
			return
		}
		r, p, side = NextSlot(r, p)
	}
}
