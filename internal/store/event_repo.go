package store

import (
	"context"
	"database/sql"

	"github.com/crescentlabs/crucible/internal/domain"
)

// StressEventRow is one journaled threshold crossing.
type StressEventRow struct {
	ID         int64   `json:"id"`
	CreatureID string  `json:"creature_id"`
	Threshold  string  `json:"threshold"`
	Stress     float64 `json:"stress"`
	CreatedAt  int64   `json:"created_at"`
}

// StressEventRepo handles persistence for stress threshold events.
type StressEventRepo struct{}

// Append inserts a stress event.
func (r *StressEventRepo) Append(ctx context.Context, db *sql.DB, ev StressEventRow) error {
	const q = `INSERT INTO stress_events (creature_id, threshold, stress, created_at)
VALUES (?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q, ev.CreatureID, ev.Threshold, ev.Stress, ev.CreatedAt)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "append stress event", err)
	}
	return nil
}

// ListByCreature returns stress events for a creature in insertion order.
func (r *StressEventRepo) ListByCreature(ctx context.Context, db *sql.DB, creatureID string) ([]StressEventRow, error) {
	const q = `SELECT id, creature_id, threshold, stress, created_at
FROM stress_events
WHERE creature_id = ?
ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, q, creatureID)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "list stress events", err)
	}
	defer rows.Close()

	var out []StressEventRow
	for rows.Next() {
		var ev StressEventRow
		if err := rows.Scan(&ev.ID, &ev.CreatureID, &ev.Threshold, &ev.Stress, &ev.CreatedAt); err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "scan stress event", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// SynthesisEventRow is one journaled synthesis transition.
type SynthesisEventRow struct {
	ID         int64
	CreatureID string
	TraitID    string
	Kind       string
	SourceForm string
	ResultForm string
	Catalyst   string
	Intensity  float64
	CreatedAt  int64
}

// SynthesisEventRepo handles persistence for synthesis events.
type SynthesisEventRepo struct{}

// Append inserts a synthesis event.
func (r *SynthesisEventRepo) Append(ctx context.Context, db *sql.DB, ev SynthesisEventRow) error {
	const q = `INSERT INTO synthesis_events (creature_id, trait_id, kind, source_form, result_form, catalyst, intensity, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		ev.CreatureID, ev.TraitID, ev.Kind, ev.SourceForm, ev.ResultForm, ev.Catalyst, ev.Intensity, ev.CreatedAt)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "append synthesis event", err)
	}
	return nil
}

// ListByTrait returns synthesis events for one creature trait in insertion
// order.
func (r *SynthesisEventRepo) ListByTrait(ctx context.Context, db *sql.DB, creatureID, traitID string) ([]SynthesisEventRow, error) {
	const q = `SELECT id, creature_id, trait_id, kind, source_form, result_form, catalyst, intensity, created_at
FROM synthesis_events
WHERE creature_id = ? AND trait_id = ?
ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, q, creatureID, traitID)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "list synthesis events", err)
	}
	defer rows.Close()

	var out []SynthesisEventRow
	for rows.Next() {
		var ev SynthesisEventRow
		if err := rows.Scan(&ev.ID, &ev.CreatureID, &ev.TraitID, &ev.Kind, &ev.SourceForm, &ev.ResultForm, &ev.Catalyst, &ev.Intensity, &ev.CreatedAt); err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "scan synthesis event", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
