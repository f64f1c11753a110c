package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leaguecraft/tournament-engine/models"
)

var ErrMatchNotFound = errors.New("match not found")

// Slot sides as stored by SetSlotParticipant.
const (
	SlotA = 1
	SlotB = 2
)

type MatchRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	FindBySlot(ctx context.Context, exec SQLExecutor, tournamentID, round, position int) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Match, error)
	SetSlotParticipant(ctx context.Context, exec SQLExecutor, id, slot, participantID int) error
	RecordWinner(ctx context.Context, exec SQLExecutor, id, winnerID int, scoreA, scoreB *int) error
	CountUnresolved(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, round, position, participant_a, participant_b,
	scheduled_at, status, winner_id, score_a, score_b`

func scanMatch(row interface{ Scan(...interface{}) error }, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.TournamentID, &m.Round, &m.Position, &m.ParticipantA, &m.ParticipantB,
		&m.ScheduledAt, &m.Status, &m.WinnerID, &m.ScoreA, &m.ScoreB,
	)
}

func (r *postgresMatchRepository) CreateBatch(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches (tournament_id, round, position, participant_a, participant_b, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	for _, m := range matches {
		err := executor.QueryRowContext(ctx, query,
			m.TournamentID, m.Round, m.Position, m.ParticipantA, m.ParticipantB, m.ScheduledAt, m.Status,
		).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("failed to create match (round %d, position %d): %w", m.Round, m.Position, err)
		}
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`

	m := &models.Match{}
	if err := scanMatch(executor.QueryRowContext(ctx, query, id), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) FindBySlot(ctx context.Context, exec SQLExecutor, tournamentID, round, position int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1 AND round = $2 AND position = $3`

	m := &models.Match{}
	if err := scanMatch(executor.QueryRowContext(ctx, query, tournamentID, round, position), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1 ORDER BY round ASC, position ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m := &models.Match{}
		if scanErr := scanMatch(rows, m); scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) SetSlotParticipant(ctx context.Context, exec SQLExecutor, id, slot, participantID int) error {
	executor := r.getExecutor(exec)
	var column string
	switch slot {
	case SlotA:
		column = "participant_a"
	case SlotB:
		column = "participant_b"
	default:
		return fmt.Errorf("invalid slot %d", slot)
	}
	query := fmt.Sprintf(`UPDATE matches SET %s = $1 WHERE id = $2`, column)
	result, err := executor.ExecContext(ctx, query, participantID, id)
	if err != nil {
		return fmt.Errorf("failed to set match slot participant: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) RecordWinner(ctx context.Context, exec SQLExecutor, id, winnerID int, scoreA, scoreB *int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET winner_id = $1, score_a = $2, score_b = $3, status = $4
		WHERE id = $5`
	result, err := executor.ExecContext(ctx, query, winnerID, scoreA, scoreB, models.MatchStatusCompleted, id)
	if err != nil {
		return fmt.Errorf("failed to record match winner: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CountUnresolved(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE tournament_id = $1 AND winner_id IS NULL`, tournamentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unresolved matches: %w", err)
	}
	return count, nil
}
