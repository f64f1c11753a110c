package brackets

// generateRoundRobin emits two matches per unordered pair of participants,
// one with each side as the home participant. The two legs are labeled
// rounds 1 and 2 only to tell them apart; there is no advancement between
// rounds and every match is independent.
func generateRoundRobin(ids []int) ([]Slot, error) {
	n := len(ids)
	if n < 2 {
		return nil, ErrInsufficientParticipants
	}

	slots := make([]Slot, 0, n*(n-1))
	position := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			home, away := ids[i], ids[j]
			slots = append(slots, Slot{
				Round:        1,
				Position:     position,
				ParticipantA: &home,
				ParticipantB: &away,
			})
			slots = append(slots, Slot{
				Round:        2,
				Position:     position,
				ParticipantA: &away,
				ParticipantB: &home,
			})
			position++
		}
	}
	return slots, nil
}
