package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/leaguecraft/tournament-engine/brackets"
	"github.com/leaguecraft/tournament-engine/cache"
	"github.com/leaguecraft/tournament-engine/db"
	"github.com/leaguecraft/tournament-engine/models"
	"github.com/leaguecraft/tournament-engine/repositories"
)

// RewardService pays out a completed tournament's prize pool exactly once.
type RewardService interface {
	DistributeRewards(ctx context.Context, tournamentID int) error
}

type rewardService struct {
	txRunner       db.TxRunner
	tournamentRepo repositories.TournamentRepository
	entryRepo      repositories.EntryRepository
	walletRepo     repositories.WalletRepository
	inventoryRepo  repositories.InventoryRepository
	cache          *cache.Cache
	hub            *brackets.Hub
	logger         *slog.Logger
}

func NewRewardService(
	txRunner db.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	entryRepo repositories.EntryRepository,
	walletRepo repositories.WalletRepository,
	inventoryRepo repositories.InventoryRepository,
	c *cache.Cache,
	hub *brackets.Hub,
	logger *slog.Logger,
) RewardService {
	return &rewardService{
		txRunner:       txRunner,
		tournamentRepo: tournamentRepo,
		entryRepo:      entryRepo,
		walletRepo:     walletRepo,
		inventoryRepo:  inventoryRepo,
		cache:          c,
		hub:            hub,
		logger:         logger,
	}
}

// DistributeRewards applies the prize pool to every ranked entry that has
// not claimed yet. All payouts share one transaction, so a failure part way
// through leaves nothing applied; a retry after a partial failure resumes
// from the entries still marked unclaimed.
func (s *rewardService) DistributeRewards(ctx context.Context, tournamentID int) error {
	paid := 0
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		if t.Status != models.StatusCompleted {
			return fmt.Errorf("%w: status is %s", ErrNotCompleted, t.Status)
		}

		entries, err := s.entryRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}

		// Idempotency guard, checked before any payout is applied.
		pending := make([]*models.Entry, 0, len(entries))
		ranked := 0
		for _, e := range entries {
			if e.FinalRank == nil {
				continue
			}
			ranked++
			if !e.RewardsClaimed {
				pending = append(pending, e)
			}
		}
		if ranked > 0 && len(pending) == 0 {
			return ErrAlreadyDistributed
		}

		for _, e := range pending {
			if prize, ok := t.PrizePool[*e.FinalRank]; ok {
				if prize.Credits > 0 || prize.Premium > 0 {
					reference := fmt.Sprintf("prize:tournament:%d:rank:%d:%s", tournamentID, *e.FinalRank, uuid.NewString())
					if err := s.walletRepo.Credit(ctx, exec, e.ParticipantID, prize.Credits, prize.Premium, reference); err != nil {
						return fmt.Errorf("prize credit failed for participant %d: %w", e.ParticipantID, err)
					}
				}
				for _, item := range prize.Items {
					if err := s.inventoryRepo.GrantItem(ctx, exec, e.ParticipantID, item.ItemID, item.Quantity); err != nil {
						return fmt.Errorf("item grant failed for participant %d: %w", e.ParticipantID, err)
					}
				}
			}
			// Ranks without a defined prize are skipped, not an error, but
			// the entry is still marked claimed so retries converge.
			if err := s.entryRepo.SetRewardsClaimed(ctx, exec, e.ID); err != nil {
				return err
			}
			paid++
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(tournamentKey(tournamentID))
	if s.hub != nil {
		s.hub.BroadcastTournament(tournamentID, brackets.EventRewardsDistributed, tournamentID)
	}
	s.logger.Info("rewards distributed", slog.Int("tournament_id", tournamentID), slog.Int("entries_processed", paid))
	return nil
}
