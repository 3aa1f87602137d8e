package creature

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/crescentlabs/crucible/internal/domain"
	"github.com/crescentlabs/crucible/internal/store"
)

// Journal persists engine events to SQLite. A nil Journal is valid and drops
// everything, so the engines run fine without a database. Write failures are
// logged and swallowed: persistence never blocks a tick.
type Journal struct {
	db  *sql.DB
	log *zap.Logger

	creatures store.CreatureRepo
	changes   store.ChangeLogRepo
	stress    store.StressEventRepo
	synthesis store.SynthesisEventRepo
}

// NewJournal creates a journal over an open database.
func NewJournal(db *sql.DB, log *zap.Logger) *Journal {
	if log == nil {
		log = zap.NewNop()
	}
	return &Journal{db: db, log: log}
}

// Spawned records the registration of a new creature.
func (j *Journal) Spawned(creatureID, name, environment string) {
	if j == nil {
		return
	}
	err := j.creatures.Create(context.Background(), j.db, store.CreatureRow{
		CreatureID:    creatureID,
		Name:          name,
		Environment:   environment,
		CreatedAtUnix: time.Now().Unix(),
	})
	if err != nil {
		j.log.Warn("journal spawn", zap.String("creature", creatureID), zap.Error(err))
	}
}

// Change records a processed change and its outcome.
func (j *Journal) Change(creatureID string, ch domain.Change, outcome domain.ChangeOutcome) {
	if j == nil {
		return
	}
	err := j.changes.Append(context.Background(), j.db, store.ChangeRow{
		CreatureID:  creatureID,
		ChangeID:    ch.Metadata.ID,
		Source:      ch.Metadata.Source,
		Priority:    ch.Metadata.Priority,
		Outcome:     outcome,
		Description: ch.Metadata.Description,
		Tags:        ch.Metadata.Tags,
		CreatedAt:   time.Now().Unix(),
	})
	if err != nil {
		j.log.Warn("journal change", zap.String("creature", creatureID), zap.Error(err))
	}
}

// Reverted marks a previously journaled change as undone.
func (j *Journal) Reverted(creatureID, changeID string) {
	if j == nil {
		return
	}
	if err := j.changes.MarkReverted(context.Background(), j.db, creatureID, changeID); err != nil {
		j.log.Warn("journal revert", zap.String("creature", creatureID), zap.Error(err))
	}
}

// Stress records a threshold crossing.
func (j *Journal) Stress(creatureID string, crossing domain.ThresholdCrossing) {
	if j == nil {
		return
	}
	err := j.stress.Append(context.Background(), j.db, store.StressEventRow{
		CreatureID: creatureID,
		Threshold:  crossing.Kind.String(),
		Stress:     crossing.Stress,
		CreatedAt:  time.Now().Unix(),
	})
	if err != nil {
		j.log.Warn("journal stress", zap.String("creature", creatureID), zap.Error(err))
	}
}

// Synthesis records a synthesis lifecycle event.
func (j *Journal) Synthesis(creatureID, traitID, kind, sourceForm, resultForm, catalyst string, intensity float64) {
	if j == nil {
		return
	}
	err := j.synthesis.Append(context.Background(), j.db, store.SynthesisEventRow{
		CreatureID: creatureID,
		TraitID:    traitID,
		Kind:       kind,
		SourceForm: sourceForm,
		ResultForm: resultForm,
		Catalyst:   catalyst,
		Intensity:  intensity,
		CreatedAt:  time.Now().Unix(),
	})
	if err != nil {
		j.log.Warn("journal synthesis", zap.String("creature", creatureID), zap.Error(err))
	}
}

// Extinct marks a creature's row extinct.
func (j *Journal) Extinct(creatureID string) {
	if j == nil {
		return
	}
	if err := j.creatures.MarkExtinct(context.Background(), j.db, creatureID); err != nil {
		j.log.Warn("journal extinction", zap.String("creature", creatureID), zap.Error(err))
	}
}
