package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leaguecraft/tournament-engine/brackets"
	"github.com/leaguecraft/tournament-engine/cache"
	"github.com/leaguecraft/tournament-engine/db"
	"github.com/leaguecraft/tournament-engine/models"
	"github.com/leaguecraft/tournament-engine/repositories"
	"github.com/leaguecraft/tournament-engine/storage"
	"golang.org/x/sync/errgroup"
)

type CreateTournamentInput struct {
	Name               string                  `json:"name"`
	Format             models.TournamentFormat `json:"format"`
	Division           *string                 `json:"division"`
	RegistrationOpens  time.Time               `json:"registration_opens"`
	RegistrationCloses time.Time               `json:"registration_closes"`
	EntryFee           int64                   `json:"entry_fee"`
	EntryFeePremium    int64                   `json:"entry_fee_premium"`
	MinEntries         int                     `json:"min_entries"`
	MaxEntries         int                     `json:"max_entries"`
	PrizePool          models.PrizePool        `json:"prize_pool"`
}

type ListActiveFilter struct {
	Format   *models.TournamentFormat
	Division *string
	Limit    int
	Offset   int
}

// RegistryService manages tournament records and entry records: creation,
// registration, placeholder auto-fill, bracket generation and the read paths.
type RegistryService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	RegisterEntry(ctx context.Context, tournamentID, participantID int, seed *int) (*models.Entry, error)
	AutoFillWithPlaceholders(ctx context.Context, tournamentID, count int) (int, error)
	GenerateBracket(ctx context.Context, tournamentID int) ([]models.Match, error)
	// CloseDueRegistrations tops up and starts every tournament whose
	// registration window has closed. Invoked by the scheduler.
	CloseDueRegistrations(ctx context.Context) error

	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	ListActiveTournaments(ctx context.Context, filter ListActiveFilter) ([]models.Tournament, error)
	GetEntries(ctx context.Context, tournamentID int) ([]models.Entry, error)

	UploadBanner(ctx context.Context, tournamentID int, contentType string, body io.Reader) (string, error)
}

type registryService struct {
	txRunner       db.TxRunner
	tournamentRepo repositories.TournamentRepository
	entryRepo      repositories.EntryRepository
	matchRepo      repositories.MatchRepository
	directoryRepo  repositories.DirectoryRepository
	walletRepo     repositories.WalletRepository
	cache          *cache.Cache
	hub            *brackets.Hub
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewRegistryService(
	txRunner db.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	entryRepo repositories.EntryRepository,
	matchRepo repositories.MatchRepository,
	directoryRepo repositories.DirectoryRepository,
	walletRepo repositories.WalletRepository,
	c *cache.Cache,
	hub *brackets.Hub,
	uploader storage.FileUploader,
	logger *slog.Logger,
) RegistryService {
	return &registryService{
		txRunner:       txRunner,
		tournamentRepo: tournamentRepo,
		entryRepo:      entryRepo,
		matchRepo:      matchRepo,
		directoryRepo:  directoryRepo,
		walletRepo:     walletRepo,
		cache:          c,
		hub:            hub,
		uploader:       uploader,
		logger:         logger,
	}
}

func (s *registryService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if input.Name == "" {
		return nil, ErrTournamentNameRequired
	}
	switch input.Format {
	case models.FormatSingleElimination, models.FormatRoundRobin:
	default:
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidFormat, input.Format)
	}
	if input.MinEntries < 2 || input.MaxEntries < input.MinEntries {
		return nil, fmt.Errorf("%w: got min %d, max %d", ErrTournamentInvalidCap, input.MinEntries, input.MaxEntries)
	}
	if !input.RegistrationCloses.After(input.RegistrationOpens) {
		return nil, ErrTournamentInvalidWindow
	}
	if input.EntryFee < 0 || input.EntryFeePremium < 0 {
		return nil, ErrTournamentInvalidFee
	}

	t := &models.Tournament{
		Name:               input.Name,
		Format:             input.Format,
		Division:           input.Division,
		RegistrationOpens:  input.RegistrationOpens,
		RegistrationCloses: input.RegistrationCloses,
		EntryFee:           input.EntryFee,
		EntryFeePremium:    input.EntryFeePremium,
		MinEntries:         input.MinEntries,
		MaxEntries:         input.MaxEntries,
		Status:             models.StatusRegistrationOpen,
		PrizePool:          input.PrizePool,
	}
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.cache.Invalidate(activeListingKeyPrefix)
	return t, nil
}

func (s *registryService) RegisterEntry(ctx context.Context, tournamentID, participantID int, seed *int) (*models.Entry, error) {
	exists, err := s.directoryRepo.Exists(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("participant directory lookup failed: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: participant %d", ErrParticipantNotFound, participantID)
	}

	var entry *models.Entry
	err = s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		if t.Status != models.StatusRegistrationOpen {
			return ErrRegistrationClosed
		}

		if _, err := s.entryRepo.FindByTournamentAndParticipant(ctx, exec, tournamentID, participantID); err == nil {
			return ErrAlreadyRegistered
		} else if !errors.Is(err, repositories.ErrEntryNotFound) {
			return err
		}

		count, err := s.entryRepo.CountByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if count >= t.MaxEntries {
			return fmt.Errorf("%w: %d of %d entries taken", ErrTournamentFull, count, t.MaxEntries)
		}

		// Fee debit and entry creation share this transaction, so a failure
		// in either leaves neither applied.
		if t.EntryFee > 0 || t.EntryFeePremium > 0 {
			reference := fmt.Sprintf("entry-fee:tournament:%d:participant:%d", tournamentID, participantID)
			if err := s.walletRepo.CheckAndDebit(ctx, exec, participantID, t.EntryFee, t.EntryFeePremium, reference); err != nil {
				if errors.Is(err, repositories.ErrInsufficientFunds) {
					return fmt.Errorf("%w: fee is %d credits", ErrInsufficientFunds, t.EntryFee)
				}
				return fmt.Errorf("funds ledger debit failed: %w", err)
			}
		}

		seedValue := count + 1
		if seed != nil {
			if *seed < 1 {
				return fmt.Errorf("%w: seed must be positive", ErrSeedTaken)
			}
			seedValue = *seed
		}

		entry = &models.Entry{
			TournamentID:  tournamentID,
			ParticipantID: participantID,
			Seed:          seedValue,
		}
		if err := s.entryRepo.Create(ctx, exec, entry); err != nil {
			switch {
			case errors.Is(err, repositories.ErrEntryConflict):
				return ErrAlreadyRegistered
			case errors.Is(err, repositories.ErrSeedConflict):
				return fmt.Errorf("%w: seed %d", ErrSeedTaken, seedValue)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(tournamentKey(tournamentID))
	return entry, nil
}

func (s *registryService) AutoFillWithPlaceholders(ctx context.Context, tournamentID, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}

	filled := 0
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		if t.Status != models.StatusRegistrationOpen {
			return ErrRegistrationClosed
		}

		current, err := s.entryRepo.CountByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		room := t.MaxEntries - current
		if room <= 0 {
			return nil // already full: idempotent no-op
		}
		want := count
		if want > room {
			want = room
		}

		// Over-fetch so candidates already registered can be skipped.
		pool, err := s.directoryRepo.ListPlaceholders(ctx, want+current)
		if err != nil {
			return fmt.Errorf("placeholder pool lookup failed: %w", err)
		}

		seed := current + 1
		for _, pid := range pool {
			if filled == want {
				break
			}
			if _, err := s.entryRepo.FindByTournamentAndParticipant(ctx, exec, tournamentID, pid); err == nil {
				continue
			} else if !errors.Is(err, repositories.ErrEntryNotFound) {
				return err
			}

			e := &models.Entry{TournamentID: tournamentID, ParticipantID: pid, Seed: seed}
			if err := s.entryRepo.Create(ctx, exec, e); err != nil {
				if errors.Is(err, repositories.ErrEntryConflict) {
					continue
				}
				return err
			}
			seed++
			filled++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if filled > 0 {
		s.cache.Invalidate(tournamentKey(tournamentID))
	}
	return filled, nil
}

func (s *registryService) GenerateBracket(ctx context.Context, tournamentID int) ([]models.Match, error) {
	var created []*models.Match
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		if t.Status != models.StatusRegistrationOpen {
			return ErrAlreadyStarted
		}

		entries, err := s.entryRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if len(entries) < t.MinEntries {
			return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughEntries, len(entries), t.MinEntries)
		}

		participantIDs := make([]int, len(entries))
		for i, e := range entries {
			participantIDs[i] = e.ParticipantID
		}

		slots, err := brackets.Generate(t.Format, participantIDs)
		if err != nil {
			if errors.Is(err, brackets.ErrInsufficientParticipants) {
				return fmt.Errorf("%w: have %d, need 2", ErrNotEnoughEntries, len(entries))
			}
			return err
		}

		matchTime := t.RegistrationCloses
		if time.Now().After(matchTime) {
			matchTime = time.Now().Add(15 * time.Minute)
		}

		created = make([]*models.Match, len(slots))
		for i, slot := range slots {
			created[i] = &models.Match{
				TournamentID: tournamentID,
				Round:        slot.Round,
				Position:     slot.Position,
				ParticipantA: slot.ParticipantA,
				ParticipantB: slot.ParticipantB,
				ScheduledAt:  matchTime,
				Status:       models.MatchStatusScheduled,
			}
		}
		if err := s.matchRepo.CreateBatch(ctx, exec, created); err != nil {
			return err
		}

		return s.tournamentRepo.UpdateStatus(ctx, exec, tournamentID, models.StatusInProgress)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(tournamentKey(tournamentID))
	s.cache.Invalidate(activeListingKeyPrefix)
	matches := matchesToValues(created)
	if s.hub != nil {
		s.hub.BroadcastTournament(tournamentID, brackets.EventBracketGenerated, matches)
	}
	return matches, nil
}

func (s *registryService) CloseDueRegistrations(ctx context.Context) error {
	due, err := s.tournamentRepo.ListDueForStart(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to list tournaments due for start: %w", err)
	}

	for _, t := range due {
		count, err := s.entryRepo.CountByTournament(ctx, nil, t.ID)
		if err != nil {
			s.logger.Error("scheduler: counting entries failed", slog.Int("tournament_id", t.ID), slog.Any("error", err))
			continue
		}
		if count < t.MinEntries {
			filled, err := s.AutoFillWithPlaceholders(ctx, t.ID, t.MinEntries-count)
			if err != nil {
				s.logger.Error("scheduler: placeholder auto-fill failed", slog.Int("tournament_id", t.ID), slog.Any("error", err))
				continue
			}
			count += filled
		}
		if count < t.MinEntries {
			s.logger.Warn("scheduler: tournament cannot reach capacity minimum, skipping",
				slog.Int("tournament_id", t.ID), slog.Int("entries", count), slog.Int("min_entries", t.MinEntries))
			continue
		}
		if _, err := s.GenerateBracket(ctx, t.ID); err != nil {
			s.logger.Error("scheduler: bracket generation failed", slog.Int("tournament_id", t.ID), slog.Any("error", err))
			continue
		}
		s.logger.Info("scheduler: tournament started", slog.Int("tournament_id", t.ID), slog.Int("entries", count))
	}
	return nil
}

func (s *registryService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	if cached, ok := s.cache.Get(tournamentKey(id)); ok {
		if t, ok := cached.(models.Tournament); ok {
			copied := t
			return &copied, nil
		}
	}

	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entries, err := s.entryRepo.ListByTournament(gCtx, nil, id)
		if err != nil {
			return fmt.Errorf("failed to load entries for tournament %d: %w", id, err)
		}
		t.Entries = entriesToValues(entries)
		t.EntryCount = len(t.Entries)
		return nil
	})
	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, nil, id)
		if err != nil {
			return fmt.Errorf("failed to load matches for tournament %d: %w", id, err)
		}
		t.Matches = matchesToValues(matches)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	populateBannerURL(t, s.uploader)

	ttl := cache.TTLVolatile
	if t.Status == models.StatusCompleted {
		ttl = cache.TTLStatic
	}
	s.cache.Set(tournamentKey(id), *t, ttl)
	return t, nil
}

func (s *registryService) ListActiveTournaments(ctx context.Context, filter ListActiveFilter) ([]models.Tournament, error) {
	key := activeListingKey(filter)
	if cached, ok := s.cache.Get(key); ok {
		if list, ok := cached.([]models.Tournament); ok {
			return list, nil
		}
	}

	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	tournaments, err := s.tournamentRepo.List(ctx, repositories.ListTournamentsFilter{
		Format:     filter.Format,
		Division:   filter.Division,
		ActiveOnly: true,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		populateBannerURL(&tournaments[i], s.uploader)
	}

	s.cache.Set(key, tournaments, cache.TTLVolatile)
	return tournaments, nil
}

func (s *registryService) GetEntries(ctx context.Context, tournamentID int) ([]models.Entry, error) {
	key := tournamentEntriesKey(tournamentID)
	if cached, ok := s.cache.Get(key); ok {
		if entries, ok := cached.([]models.Entry); ok {
			return entries, nil
		}
	}

	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}

	entries, err := s.entryRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	values := entriesToValues(entries)

	ttl := cache.TTLVolatile
	if t.Status == models.StatusCompleted {
		ttl = cache.TTLStatic
	}
	s.cache.Set(key, values, ttl)
	return values, nil
}

func (s *registryService) UploadBanner(ctx context.Context, tournamentID int, contentType string, body io.Reader) (string, error) {
	if s.uploader == nil {
		return "", ErrBannerUploadsDisabled
	}

	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return "", mapTournamentRepoError(err)
	}

	ext, err := storage.ExtensionForContentType(contentType)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("tournaments/%d/banner-%s%s", tournamentID, uuid.NewString(), ext)

	result, err := s.uploader.Upload(ctx, key, contentType, body)
	if err != nil {
		return "", fmt.Errorf("banner upload failed: %w", err)
	}
	if err := s.tournamentRepo.UpdateBannerKey(ctx, tournamentID, &result.Key); err != nil {
		return "", err
	}

	s.cache.Invalidate(tournamentKey(tournamentID))
	return result.Location, nil
}

func mapTournamentRepoError(err error) error {
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		return ErrTournamentNotFound
	}
	return err
}
