package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/leaguecraft/tournament-engine/brackets"
	"github.com/leaguecraft/tournament-engine/cache"
	"github.com/leaguecraft/tournament-engine/db"
	"github.com/leaguecraft/tournament-engine/models"
	"github.com/leaguecraft/tournament-engine/repositories"
)

// MatchResult is the outcome reported by the external match source. The
// engine never computes who wins; it records the result and advances state.
// Scores are optional pass-through used for round-robin point differential.
type MatchResult struct {
	WinnerID int  `json:"winner_id"`
	ScoreA   *int `json:"score_a"`
	ScoreB   *int `json:"score_b"`
}

// AdvancerService consumes completed match results and advances bracket
// state. ResolveMatch is deliberately not idempotent: a second resolution of
// the same match would corrupt downstream slots.
type AdvancerService interface {
	ResolveMatch(ctx context.Context, tournamentID, matchID int, result MatchResult) (*models.Match, error)
}

type advancerService struct {
	txRunner       db.TxRunner
	tournamentRepo repositories.TournamentRepository
	entryRepo      repositories.EntryRepository
	matchRepo      repositories.MatchRepository
	cache          *cache.Cache
	hub            *brackets.Hub
	logger         *slog.Logger
}

func NewAdvancerService(
	txRunner db.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	entryRepo repositories.EntryRepository,
	matchRepo repositories.MatchRepository,
	c *cache.Cache,
	hub *brackets.Hub,
	logger *slog.Logger,
) AdvancerService {
	return &advancerService{
		txRunner:       txRunner,
		tournamentRepo: tournamentRepo,
		entryRepo:      entryRepo,
		matchRepo:      matchRepo,
		cache:          c,
		hub:            hub,
		logger:         logger,
	}
}

func (s *advancerService) ResolveMatch(ctx context.Context, tournamentID, matchID int, result MatchResult) (*models.Match, error) {
	var (
		resolved  *models.Match
		completed bool
	)

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		if t.Status == models.StatusCompleted {
			return ErrTournamentCompleted
		}

		m, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if m.TournamentID != tournamentID {
			return ErrTournamentMismatch
		}
		if m.Resolved() {
			return ErrAlreadyResolved
		}
		if m.ParticipantA == nil || m.ParticipantB == nil {
			return ErrMatchNotReady
		}

		var loserID int
		switch result.WinnerID {
		case *m.ParticipantA:
			loserID = *m.ParticipantB
		case *m.ParticipantB:
			loserID = *m.ParticipantA
		default:
			return fmt.Errorf("%w: participant %d", ErrWinnerNotInMatch, result.WinnerID)
		}

		if err := s.matchRepo.RecordWinner(ctx, exec, matchID, result.WinnerID, result.ScoreA, result.ScoreB); err != nil {
			return err
		}
		m.WinnerID = &result.WinnerID
		m.ScoreA = result.ScoreA
		m.ScoreB = result.ScoreB
		m.Status = models.MatchStatusCompleted

		singleElim := t.Format == models.FormatSingleElimination
		if err := s.recordEntryResults(ctx, exec, m, result, loserID, singleElim); err != nil {
			return err
		}

		if singleElim {
			if err := s.propagateWinner(ctx, exec, t, m, result.WinnerID); err != nil {
				return err
			}
		}

		unresolved, err := s.matchRepo.CountUnresolved(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if unresolved == 0 {
			if err := s.completeTournament(ctx, exec, t); err != nil {
				return err
			}
			completed = true
		}

		resolved = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(tournamentKey(tournamentID))
	if completed {
		s.cache.Invalidate(activeListingKeyPrefix)
	}
	if s.hub != nil {
		s.hub.BroadcastTournament(tournamentID, brackets.EventMatchResolved, resolved)
		if completed {
			s.hub.BroadcastTournament(tournamentID, brackets.EventTournamentCompleted, tournamentID)
		}
	}
	return resolved, nil
}

func (s *advancerService) recordEntryResults(ctx context.Context, exec repositories.SQLExecutor, m *models.Match, result MatchResult, loserID int, singleElim bool) error {
	diff := 0
	if result.ScoreA != nil && result.ScoreB != nil {
		winnerScore, loserScore := *result.ScoreA, *result.ScoreB
		if result.WinnerID == *m.ParticipantB {
			winnerScore, loserScore = loserScore, winnerScore
		}
		diff = winnerScore - loserScore
	}

	winnerEntry, err := s.entryRepo.FindByTournamentAndParticipant(ctx, exec, m.TournamentID, result.WinnerID)
	if err != nil {
		return fmt.Errorf("winner entry lookup failed: %w", err)
	}
	if err := s.entryRepo.RecordResult(ctx, exec, winnerEntry.ID,
		winnerEntry.Wins+1, winnerEntry.Losses, winnerEntry.PointDiff+diff, winnerEntry.Eliminated); err != nil {
		return err
	}

	loserEntry, err := s.entryRepo.FindByTournamentAndParticipant(ctx, exec, m.TournamentID, loserID)
	if err != nil {
		return fmt.Errorf("loser entry lookup failed: %w", err)
	}
	eliminated := loserEntry.Eliminated || singleElim
	return s.entryRepo.RecordResult(ctx, exec, loserEntry.ID,
		loserEntry.Wins, loserEntry.Losses+1, loserEntry.PointDiff-diff, eliminated)
}

// propagateWinner writes the winner into its successor slot. When the
// successor position has no match the winner holds a bye for that round and
// the walk continues into the round after, until a real slot is found or the
// final has been passed.
func (s *advancerService) propagateWinner(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, m *models.Match, winnerID int) error {
	entryCount, err := s.entryRepo.CountByTournament(ctx, exec, t.ID)
	if err != nil {
		return err
	}
	totalRounds := brackets.Rounds(entryCount)

	round, position, side := brackets.NextSlot(m.Round, m.Position)
	for round <= totalRounds {
		next, err := s.matchRepo.FindBySlot(ctx, exec, t.ID, round, position)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				round, position, side = brackets.NextSlot(round, position)
				continue
			}
			return err
		}

		slot := repositories.SlotA
		if side == brackets.SideB {
			slot = repositories.SlotB
		}
		return s.matchRepo.SetSlotParticipant(ctx, exec, next.ID, slot, winnerID)
	}
	return nil // final match: no successor
}

func (s *advancerService) completeTournament(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	if err := s.tournamentRepo.SetCompleted(ctx, exec, t.ID, time.Now()); err != nil {
		return err
	}

	entries, err := s.entryRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return err
	}
	matches, err := s.matchRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return err
	}

	ranks := computeFinalRanks(t.Format, entries, matches)
	for entryID, rank := range ranks {
		if err := s.entryRepo.SetFinalRank(ctx, exec, entryID, rank); err != nil {
			return err
		}
	}

	s.logger.Info("tournament completed",
		slog.Int("tournament_id", t.ID), slog.Int("entries", len(entries)))
	return nil
}

// computeFinalRanks assigns each entry its final rank.
//
// Single elimination: the final's winner is rank 1 and its loser rank 2;
// semifinal losers share rank 3; losers of earlier rounds are ranked by the
// round they were eliminated in (later is better), ties broken by seed.
// Round robin: wins descending, point differential descending, seed
// ascending.
func computeFinalRanks(format models.TournamentFormat, entries []*models.Entry, matches []*models.Match) map[int]int {
	byParticipant := make(map[int]*models.Entry, len(entries))
	for _, e := range entries {
		byParticipant[e.ParticipantID] = e
	}
	ranks := make(map[int]int, len(entries))

	if format == models.FormatRoundRobin {
		sorted := make([]*models.Entry, len(entries))
		copy(sorted, entries)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Wins != sorted[j].Wins {
				return sorted[i].Wins > sorted[j].Wins
			}
			if sorted[i].PointDiff != sorted[j].PointDiff {
				return sorted[i].PointDiff > sorted[j].PointDiff
			}
			return sorted[i].Seed < sorted[j].Seed
		})
		for i, e := range sorted {
			ranks[e.ID] = i + 1
		}
		return ranks
	}

	totalRounds := 0
	losersByRound := make(map[int][]*models.Entry)
	var final *models.Match
	for _, m := range matches {
		if m.Round > totalRounds {
			totalRounds = m.Round
		}
	}
	for _, m := range matches {
		if !m.Resolved() || m.ParticipantA == nil || m.ParticipantB == nil {
			continue
		}
		loserPID := *m.ParticipantA
		if loserPID == *m.WinnerID {
			loserPID = *m.ParticipantB
		}
		if m.Round == totalRounds && m.Position == 0 {
			final = m
			continue
		}
		if loser, ok := byParticipant[loserPID]; ok {
			losersByRound[m.Round] = append(losersByRound[m.Round], loser)
		}
	}

	if final != nil {
		if winner, ok := byParticipant[*final.WinnerID]; ok {
			ranks[winner.ID] = 1
		}
		loserPID := *final.ParticipantA
		if loserPID == *final.WinnerID {
			loserPID = *final.ParticipantB
		}
		if loser, ok := byParticipant[loserPID]; ok {
			ranks[loser.ID] = 2
		}
	}

	nextRank := 3
	for round := totalRounds - 1; round >= 1; round-- {
		losers := losersByRound[round]
		sort.Slice(losers, func(i, j int) bool { return losers[i].Seed < losers[j].Seed })
		if round == totalRounds-1 {
			// Semifinal losers share rank 3; standard competition ranking
			// resumes after the shared block.
			for _, e := range losers {
				ranks[e.ID] = 3
			}
			nextRank = 3 + len(losers)
			continue
		}
		for _, e := range losers {
			ranks[e.ID] = nextRank
			nextRank++
		}
	}
	return ranks
}
