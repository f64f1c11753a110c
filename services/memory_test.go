package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/leaguecraft/tournament-engine/cache"
	"github.com/leaguecraft/tournament-engine/models"
	"github.com/leaguecraft/tournament-engine/repositories"
	"github.com/leaguecraft/tournament-engine/storage"
)

// In-memory repository fakes. They mirror the postgres implementations'
// error contracts (not-found sentinels, unique-constraint conflicts, the
// write-once final rank) so the services can be exercised without a database.
// The executor argument is ignored throughout; passthroughRunner makes the
// transactional paths run against the same shared state.

type passthroughRunner struct{}

func (passthroughRunner) RunInTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type memTournamentRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Tournament
}

func newMemTournamentRepo() *memTournamentRepo {
	return &memTournamentRepo{nextID: 1, items: make(map[int]*models.Tournament)}
}

func (r *memTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.ID = r.nextID
	r.nextID++
	t.CreatedAt = time.Now()
	stored := *t
	r.items[t.ID] = &stored
	return nil
}

func (r *memTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *memTournamentRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *memTournamentRepo) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Tournament, 0)
	for _, t := range r.items {
		if filter.Format != nil && t.Format != *filter.Format {
			continue
		}
		if filter.Division != nil && (t.Division == nil || *t.Division != *filter.Division) {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.ActiveOnly && t.Status == models.StatusCompleted {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegistrationCloses.Before(out[j].RegistrationCloses)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []models.Tournament{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r *memTournamentRepo) SetCompleted(ctx context.Context, exec repositories.SQLExecutor, id int, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = models.StatusCompleted
	t.CompletedAt = &completedAt
	return nil
}

func (r *memTournamentRepo) UpdateBannerKey(ctx context.Context, id int, bannerKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.BannerKey = bannerKey
	return nil
}

func (r *memTournamentRepo) ListDueForStart(ctx context.Context, now time.Time) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Tournament, 0)
	for _, t := range r.items {
		if t.Status == models.StatusRegistrationOpen && !t.RegistrationCloses.After(now) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegistrationCloses.Before(out[j].RegistrationCloses)
	})
	return out, nil
}

type memEntryRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Entry
}

func newMemEntryRepo() *memEntryRepo {
	return &memEntryRepo{nextID: 1, items: make(map[int]*models.Entry)}
}

func (r *memEntryRepo) Create(ctx context.Context, exec repositories.SQLExecutor, e *models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.TournamentID != e.TournamentID {
			continue
		}
		if existing.ParticipantID == e.ParticipantID {
			return repositories.ErrEntryConflict
		}
		if existing.Seed == e.Seed {
			return repositories.ErrSeedConflict
		}
	}
	e.ID = r.nextID
	r.nextID++
	e.CreatedAt = time.Now()
	stored := *e
	r.items[e.ID] = &stored
	return nil
}

func (r *memEntryRepo) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, e := range r.items {
		if e.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (r *memEntryRepo) FindByTournamentAndParticipant(ctx context.Context, exec repositories.SQLExecutor, tournamentID, participantID int) (*models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.items {
		if e.TournamentID == tournamentID && e.ParticipantID == participantID {
			copied := *e
			return &copied, nil
		}
	}
	return nil, repositories.ErrEntryNotFound
}

func (r *memEntryRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Entry, 0)
	for _, e := range r.items {
		if e.TournamentID == tournamentID {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })
	return out, nil
}

func (r *memEntryRepo) RecordResult(ctx context.Context, exec repositories.SQLExecutor, id, wins, losses, pointDiff int, eliminated bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return repositories.ErrEntryNotFound
	}
	e.Wins = wins
	e.Losses = losses
	e.PointDiff = pointDiff
	e.Eliminated = eliminated
	return nil
}

func (r *memEntryRepo) SetFinalRank(ctx context.Context, exec repositories.SQLExecutor, id, rank int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok || e.FinalRank != nil {
		// Write-once, like the guarded UPDATE in postgres.
		return repositories.ErrEntryNotFound
	}
	e.FinalRank = &rank
	return nil
}

func (r *memEntryRepo) SetRewardsClaimed(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return repositories.ErrEntryNotFound
	}
	e.RewardsClaimed = true
	return nil
}

type memMatchRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Match
}

func newMemMatchRepo() *memMatchRepo {
	return &memMatchRepo{nextID: 1, items: make(map[int]*models.Match)}
}

func (r *memMatchRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, matches []*models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range matches {
		m.ID = r.nextID
		r.nextID++
		stored := *m
		r.items[m.ID] = &stored
	}
	return nil
}

func (r *memMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *memMatchRepo) FindBySlot(ctx context.Context, exec repositories.SQLExecutor, tournamentID, round, position int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.items {
		if m.TournamentID == tournamentID && m.Round == round && m.Position == position {
			copied := *m
			return &copied, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (r *memMatchRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.items {
		if m.TournamentID == tournamentID {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (r *memMatchRepo) SetSlotParticipant(ctx context.Context, exec repositories.SQLExecutor, id, slot, participantID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	pid := participantID
	switch slot {
	case repositories.SlotA:
		m.ParticipantA = &pid
	case repositories.SlotB:
		m.ParticipantB = &pid
	default:
		return fmt.Errorf("invalid slot %d", slot)
	}
	return nil
}

func (r *memMatchRepo) RecordWinner(ctx context.Context, exec repositories.SQLExecutor, id, winnerID int, scoreA, scoreB *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	wid := winnerID
	m.WinnerID = &wid
	m.ScoreA = scoreA
	m.ScoreB = scoreB
	m.Status = models.MatchStatusCompleted
	return nil
}

func (r *memMatchRepo) CountUnresolved(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.items {
		if m.TournamentID == tournamentID && m.WinnerID == nil {
			count++
		}
	}
	return count, nil
}

type memDirectoryRepo struct {
	mu           sync.Mutex
	participants map[int]bool // id -> is placeholder
}

func newMemDirectoryRepo() *memDirectoryRepo {
	return &memDirectoryRepo{participants: make(map[int]bool)}
}

func (r *memDirectoryRepo) addParticipant(id int) {
	r.mu.Lock()
	r.participants[id] = false
	r.mu.Unlock()
}

func (r *memDirectoryRepo) addPlaceholder(id int) {
	r.mu.Lock()
	r.participants[id] = true
	r.mu.Unlock()
}

func (r *memDirectoryRepo) Exists(ctx context.Context, participantID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.participants[participantID]
	return ok, nil
}

func (r *memDirectoryRepo) ListPlaceholders(ctx context.Context, limit int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0)
	for id, placeholder := range r.participants {
		if placeholder {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type walletTxn struct {
	participantID int
	creditsDelta  int64
	premiumDelta  int64
	reference     string
}

type memWallet struct {
	credits int64
	premium int64
}

type memWalletRepo struct {
	mu      sync.Mutex
	wallets map[int]*memWallet
	ledger  []walletTxn
}

func newMemWalletRepo() *memWalletRepo {
	return &memWalletRepo{wallets: make(map[int]*memWallet)}
}

func (r *memWalletRepo) setBalance(participantID int, credits, premium int64) {
	r.mu.Lock()
	r.wallets[participantID] = &memWallet{credits: credits, premium: premium}
	r.mu.Unlock()
}

func (r *memWalletRepo) CheckAndDebit(ctx context.Context, exec repositories.SQLExecutor, participantID int, credits, premium int64, reference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[participantID]
	if !ok {
		return repositories.ErrWalletNotFound
	}
	if w.credits < credits || w.premium < premium {
		return repositories.ErrInsufficientFunds
	}
	w.credits -= credits
	w.premium -= premium
	r.ledger = append(r.ledger, walletTxn{participantID, -credits, -premium, reference})
	return nil
}

func (r *memWalletRepo) Credit(ctx context.Context, exec repositories.SQLExecutor, participantID int, credits, premium int64, reference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[participantID]
	if !ok {
		return repositories.ErrWalletNotFound
	}
	w.credits += credits
	w.premium += premium
	r.ledger = append(r.ledger, walletTxn{participantID, credits, premium, reference})
	return nil
}

func (r *memWalletRepo) Balance(ctx context.Context, participantID int) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[participantID]
	if !ok {
		return 0, 0, repositories.ErrWalletNotFound
	}
	return w.credits, w.premium, nil
}

type memInventoryRepo struct {
	mu     sync.Mutex
	grants map[int]map[string]int
}

func newMemInventoryRepo() *memInventoryRepo {
	return &memInventoryRepo{grants: make(map[int]map[string]int)}
}

func (r *memInventoryRepo) GrantItem(ctx context.Context, exec repositories.SQLExecutor, participantID int, itemID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grants[participantID] == nil {
		r.grants[participantID] = make(map[string]int)
	}
	r.grants[participantID][itemID] += quantity
	return nil
}

func (r *memInventoryRepo) quantity(participantID int, itemID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grants[participantID][itemID]
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads map[string]string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploads: make(map[string]string)}
}

func (f *fakeUploader) Upload(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	f.mu.Lock()
	f.uploads[key] = contentType
	f.mu.Unlock()
	return &storage.UploadResult{Key: key, Location: f.GetPublicURL(key)}, nil
}

func (f *fakeUploader) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	delete(f.uploads, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	tournaments *memTournamentRepo
	entries     *memEntryRepo
	matches     *memMatchRepo
	directory   *memDirectoryRepo
	wallets     *memWalletRepo
	inventory   *memInventoryRepo
	uploader    *fakeUploader
	cache       *cache.Cache

	registry RegistryService
	advancer AdvancerService
	rewards  RewardService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		tournaments: newMemTournamentRepo(),
		entries:     newMemEntryRepo(),
		matches:     newMemMatchRepo(),
		directory:   newMemDirectoryRepo(),
		wallets:     newMemWalletRepo(),
		inventory:   newMemInventoryRepo(),
		uploader:    newFakeUploader(),
		cache:       cache.New(),
	}
	logger := discardLogger()
	runner := passthroughRunner{}

	env.registry = NewRegistryService(
		runner, env.tournaments, env.entries, env.matches,
		env.directory, env.wallets, env.cache, nil, env.uploader, logger,
	)
	env.advancer = NewAdvancerService(
		runner, env.tournaments, env.entries, env.matches, env.cache, nil, logger,
	)
	env.rewards = NewRewardService(
		runner, env.tournaments, env.entries, env.wallets, env.inventory, env.cache, nil, logger,
	)
	return env
}

// addFundedParticipant registers the id in the directory with a wallet.
func (env *testEnv) addFundedParticipant(id int, credits, premium int64) {
	env.directory.addParticipant(id)
	env.wallets.setBalance(id, credits, premium)
}

func openTournamentInput(name string, format models.TournamentFormat) CreateTournamentInput {
	now := time.Now()
	return CreateTournamentInput{
		Name:               name,
		Format:             format,
		RegistrationOpens:  now.Add(-time.Hour),
		RegistrationCloses: now.Add(time.Hour),
		MinEntries:         2,
		MaxEntries:         16,
	}
}
