package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// DirectoryRepository is the engine's view of the participant directory:
// existence checks for registration and the pool of placeholder (filler/AI)
// participants used to top tournaments up to their capacity minimum.
type DirectoryRepository interface {
	Exists(ctx context.Context, participantID int) (bool, error)
	ListPlaceholders(ctx context.Context, limit int) ([]int, error)
}

type postgresDirectoryRepository struct {
	db *sql.DB
}

func NewPostgresDirectoryRepository(db *sql.DB) DirectoryRepository {
	return &postgresDirectoryRepository{db: db}
}

func (r *postgresDirectoryRepository) Exists(ctx context.Context, participantID int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM participants WHERE id = $1)`, participantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check participant %d: %w", participantID, err)
	}
	return exists, nil
}

func (r *postgresDirectoryRepository) ListPlaceholders(ctx context.Context, limit int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM participants WHERE is_placeholder ORDER BY id ASC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list placeholder participants: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
