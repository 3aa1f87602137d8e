package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/crescentlabs/crucible/internal/domain"
)

// ChangeRow is one journaled change outcome.
type ChangeRow struct {
	ID          int64                 `json:"id"`
	CreatureID  string                `json:"creature_id"`
	ChangeID    string                `json:"change_id"`
	Source      domain.ChangeSource   `json:"source"`
	Priority    domain.ChangePriority `json:"priority"`
	Outcome     domain.ChangeOutcome  `json:"outcome"`
	Description string                `json:"description"`
	Tags        []string              `json:"tags"`
	Reverted    bool                  `json:"reverted"`
	CreatedAt   int64                 `json:"created_at"`
}

// ChangeLogRepo handles persistence for change journal rows.
type ChangeLogRepo struct{}

// Append inserts a change row.
func (r *ChangeLogRepo) Append(ctx context.Context, db *sql.DB, row ChangeRow) error {
	tags, err := json.Marshal(row.Tags)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "marshal tags", err)
	}
	const q = `INSERT INTO change_records (creature_id, change_id, source, priority, outcome, description, tags, reverted, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, q,
		row.CreatureID,
		row.ChangeID,
		string(row.Source),
		int(row.Priority),
		string(row.Outcome),
		row.Description,
		string(tags),
		boolToInt(row.Reverted),
		row.CreatedAt,
	)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "append change record", err)
	}
	return nil
}

// MarkReverted flags the journal row for a change as reverted.
func (r *ChangeLogRepo) MarkReverted(ctx context.Context, db *sql.DB, creatureID, changeID string) error {
	const q = `UPDATE change_records SET reverted = 1 WHERE creature_id = ? AND change_id = ?`
	if _, err := db.ExecContext(ctx, q, creatureID, changeID); err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "mark reverted", err)
	}
	return nil
}

// ListByCreature returns change rows for a creature in insertion order.
func (r *ChangeLogRepo) ListByCreature(ctx context.Context, db *sql.DB, creatureID string) ([]ChangeRow, error) {
	const q = `SELECT id, creature_id, change_id, source, priority, outcome, description, tags, reverted, created_at
FROM change_records
WHERE creature_id = ?
ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, q, creatureID)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "list change records", err)
	}
	defer rows.Close()

	var out []ChangeRow
	for rows.Next() {
		var row ChangeRow
		var source, outcome, tags string
		var priority, reverted int
		if err := rows.Scan(&row.ID, &row.CreatureID, &row.ChangeID, &source, &priority, &outcome, &row.Description, &tags, &reverted, &row.CreatedAt); err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "scan change record", err)
		}
		row.Source = domain.ChangeSource(source)
		row.Priority = domain.ChangePriority(priority)
		row.Outcome = domain.ChangeOutcome(outcome)
		row.Reverted = reverted != 0
		if err := json.Unmarshal([]byte(tags), &row.Tags); err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "unmarshal tags", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
