package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crescentlabs/crucible/internal/domain"
)

// CreatureRow is the persisted registration of a creature.
type CreatureRow struct {
	CreatureID    string
	Name          string
	Environment   string
	Extinct       bool
	CreatedAtUnix int64
}

// CreatureRepo handles persistence for creature registrations.
type CreatureRepo struct{}

// Create inserts a creature row.
func (r *CreatureRepo) Create(ctx context.Context, db *sql.DB, row CreatureRow) error {
	const q = `INSERT INTO creatures (creature_id, name, environment, extinct, created_at_unix)
VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q, row.CreatureID, row.Name, row.Environment, boolToInt(row.Extinct), row.CreatedAtUnix)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "create creature", err)
	}
	return nil
}

// GetByID returns a creature row by ID.
func (r *CreatureRepo) GetByID(ctx context.Context, db *sql.DB, creatureID string) (*CreatureRow, error) {
	const q = `SELECT creature_id, name, environment, extinct, created_at_unix
FROM creatures WHERE creature_id = ?`
	var row CreatureRow
	var extinct int
	err := db.QueryRowContext(ctx, q, creatureID).Scan(&row.CreatureID, &row.Name, &row.Environment, &extinct, &row.CreatedAtUnix)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUnknownCreature
	}
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "get creature", err)
	}
	row.Extinct = extinct != 0
	return &row, nil
}

// MarkExtinct flags a creature as extinct.
func (r *CreatureRepo) MarkExtinct(ctx context.Context, db *sql.DB, creatureID string) error {
	const q = `UPDATE creatures SET extinct = 1 WHERE creature_id = ?`
	res, err := db.ExecContext(ctx, q, creatureID)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "mark extinct", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrUnknownCreature
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
