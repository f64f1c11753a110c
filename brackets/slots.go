package brackets

// Side identifies which half of a match slot a participant occupies.
type Side int

const (
	SideA Side = iota
	SideB
)

// NextSlot returns the coordinates of the slot fed by the winner of the
// match at (round, position): round+1, position/2, side A for an even
// position and side B for an odd one. The predecessors of (r, p) are
// therefore exactly (r-1, 2p) and (r-1, 2p+1).
//
// An off-by-one here silently corrupts advancement, so the relationship
// lives in this one helper and nowhere else.
func NextSlot(round, position int) (nextRound, nextPosition int, side Side) {
	nextRound = round + 1
	nextPosition = position / 2
	side = SideA
	if position%2 == 1 {
		side = SideB
	}
	return nextRound, nextPosition, side
}
