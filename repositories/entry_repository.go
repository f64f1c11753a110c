package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leaguecraft/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrEntryConflict = errors.New("participant already registered for this tournament")
	ErrSeedConflict  = errors.New("seed already taken in this tournament")
)

type EntryRepository interface {
	Create(ctx context.Context, exec SQLExecutor, e *models.Entry) error
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	FindByTournamentAndParticipant(ctx context.Context, exec SQLExecutor, tournamentID, participantID int) (*models.Entry, error)
	// ListByTournament returns entries ordered by seed ascending.
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Entry, error)
	RecordResult(ctx context.Context, exec SQLExecutor, id, wins, losses, pointDiff int, eliminated bool) error
	SetFinalRank(ctx context.Context, exec SQLExecutor, id, rank int) error
	SetRewardsClaimed(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresEntryRepository struct {
	db *sql.DB
}

func NewPostgresEntryRepository(db *sql.DB) EntryRepository {
	return &postgresEntryRepository{db: db}
}

func (r *postgresEntryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const entryColumns = `
	id, tournament_id, participant_id, seed, wins, losses, point_diff,
	final_rank, eliminated, rewards_claimed, created_at`

func scanEntry(row interface{ Scan(...interface{}) error }, e *models.Entry) error {
	return row.Scan(
		&e.ID, &e.TournamentID, &e.ParticipantID, &e.Seed, &e.Wins, &e.Losses, &e.PointDiff,
		&e.FinalRank, &e.Eliminated, &e.RewardsClaimed, &e.CreatedAt,
	)
}

func (r *postgresEntryRepository) Create(ctx context.Context, exec SQLExecutor, e *models.Entry) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO entries (tournament_id, participant_id, seed)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, e.TournamentID, e.ParticipantID, e.Seed).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "entries_tournament_id_participant_id_key":
				return ErrEntryConflict
			case "entries_tournament_id_seed_key":
				return ErrSeedConflict
			}
			return ErrEntryConflict
		}
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

func (r *postgresEntryRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE tournament_id = $1`, tournamentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func (r *postgresEntryRepository) FindByTournamentAndParticipant(ctx context.Context, exec SQLExecutor, tournamentID, participantID int) (*models.Entry, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + entryColumns + ` FROM entries WHERE tournament_id = $1 AND participant_id = $2`

	e := &models.Entry{}
	if err := scanEntry(executor.QueryRowContext(ctx, query, tournamentID, participantID), e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *postgresEntryRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Entry, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + entryColumns + ` FROM entries WHERE tournament_id = $1 ORDER BY seed ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*models.Entry, 0)
	for rows.Next() {
		e := &models.Entry{}
		if scanErr := scanEntry(rows, e); scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *postgresEntryRepository) RecordResult(ctx context.Context, exec SQLExecutor, id, wins, losses, pointDiff int, eliminated bool) error {
	executor := r.getExecutor(exec)
	query := `UPDATE entries SET wins = $1, losses = $2, point_diff = $3, eliminated = $4 WHERE id = $5`
	result, err := executor.ExecContext(ctx, query, wins, losses, pointDiff, eliminated, id)
	if err != nil {
		return fmt.Errorf("failed to record entry result: %w", err)
	}
	return checkAffectedRows(result, ErrEntryNotFound)
}

func (r *postgresEntryRepository) SetFinalRank(ctx context.Context, exec SQLExecutor, id, rank int) error {
	executor := r.getExecutor(exec)
	// Final rank is written once and never reset.
	query := `UPDATE entries SET final_rank = $1 WHERE id = $2 AND final_rank IS NULL`
	result, err := executor.ExecContext(ctx, query, rank, id)
	if err != nil {
		return fmt.Errorf("failed to set final rank: %w", err)
	}
	return checkAffectedRows(result, ErrEntryNotFound)
}

func (r *postgresEntryRepository) SetRewardsClaimed(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE entries SET rewards_claimed = TRUE WHERE id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark rewards claimed: %w", err)
	}
	return checkAffectedRows(result, ErrEntryNotFound)
}
