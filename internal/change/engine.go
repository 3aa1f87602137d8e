// Package change implements the transactional change engine. All mutation of
// creature state flows through it: changes are validated, conflict-resolved
// by priority, optionally batched, applied, and recorded in bounded history
// with structural undo.
package change

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crescentlabs/crucible/internal/domain"
)

// DefaultHistoryCapacity bounds the change history when the config does not
// override it.
const DefaultHistoryCapacity = 100

// Config holds the engine tunables.
type Config struct {
	HistoryCapacity    int
	MinValidationLevel domain.ValidationLevel
}

// Result reports the outcome of processing one change, with enumerated
// reasons for anything other than a clean apply.
type Result struct {
	ChangeID string
	Outcome  domain.ChangeOutcome
	Reasons  []string
}

// Engine serializes all state mutation for a single creature. Concurrent
// callers for the same creature are safe but block each other.
type Engine struct {
	mu sync.Mutex

	history  []domain.ChangeRecord
	capacity int
	minLevel domain.ValidationLevel

	batchOpen bool
	pending   []domain.Change

	// Metrics survive history eviction.
	totalChanges int
	bySource     map[domain.ChangeSource]int
	firstChange  time.Time
	lastChange   time.Time

	log *zap.Logger
}

// NewEngine creates a change engine with the given config. A zero config gets
// the default history capacity and a Warning minimum validation level.
func NewEngine(cfg Config, log *zap.Logger) *Engine {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = DefaultHistoryCapacity
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		capacity: cfg.HistoryCapacity,
		minLevel: cfg.MinValidationLevel,
		bySource: make(map[domain.ChangeSource]int),
		log:      log,
	}
}

// ProcessChange runs the full pipeline for one change: empty check,
// validation, batch buffering, conflict resolution, apply.
func (e *Engine) ProcessChange(state *domain.CreatureState, ch domain.Change) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processLocked(state, ch)
}

// ProcessChanges processes a group of changes, returning one result per
// change in input order. Changes are ordered by priority (descending, stable)
// before application so a low-priority change never pre-empts a higher one
// arriving later in the same call.
func (e *Engine) ProcessChanges(state *domain.CreatureState, changes []domain.Change) []Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	order := make([]int, len(changes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return changes[order[a]].Metadata.Priority > changes[order[b]].Metadata.Priority
	})

	results := make([]Result, len(changes))
	for _, idx := range order {
		results[idx] = e.processLocked(state, changes[idx])
	}
	return results
}

func (e *Engine) processLocked(state *domain.CreatureState, ch domain.Change) Result {
	res := Result{ChangeID: ch.Metadata.ID}

	if ch.IsEmpty() {
		res.Outcome = domain.OutcomeRejected
		res.Reasons = append(res.Reasons, domain.ErrEmptyChange.Message)
		return res
	}

	structural, projected := validate(state, ch)
	if reasons := issuesAtOrAbove(structural, e.minLevel); len(reasons) > 0 {
		res.Outcome = domain.OutcomeRejected
		res.Reasons = reasons
		e.log.Debug("change rejected", zap.String("change", ch.Metadata.ID), zap.Strings("reasons", reasons))
		return res
	}
	if reasons := issuesAtOrAbove(projected, domain.ValidationCritical); len(reasons) > 0 {
		res.Outcome = domain.OutcomeInvalidState
		res.Reasons = reasons
		return res
	}
	if reasons := issuesAtOrAbove(projected, e.minLevel); len(reasons) > 0 {
		res.Outcome = domain.OutcomeRejected
		res.Reasons = reasons
		return res
	}

	if e.batchOpen {
		e.pending = append(e.pending, ch)
		res.Outcome = domain.OutcomePending
		return res
	}

	if loser, winner := e.loserAgainstHistory(ch); loser {
		res.Outcome = domain.OutcomeConflicting
		res.Reasons = append(res.Reasons, "conflicts with higher-priority change "+winner)
		return res
	}

	e.applyAndRecord(state, ch)
	res.Outcome = domain.OutcomeApplied
	return res
}

// loserAgainstHistory reports whether ch loses a conflict against an
// unretired history entry. A strictly higher-priority historical change wins;
// equal or lower priority lets the newer arrival win.
func (e *Engine) loserAgainstHistory(ch domain.Change) (bool, string) {
	for i := len(e.history) - 1; i >= 0; i-- {
		rec := &e.history[i]
		if rec.Reverted {
			continue
		}
		if !sharesContext(rec.Change, ch) {
			continue
		}
		if conflicts(rec.Change, ch) && rec.Change.Metadata.Priority > ch.Metadata.Priority {
			return true, rec.Change.Metadata.ID
		}
	}
	return false, ""
}

// HasConflictingChanges reports, without mutating anything, whether the
// change conflicts with any unretired history entry.
func (e *Engine) HasConflictingChanges(ch domain.Change) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.history) - 1; i >= 0; i-- {
		rec := &e.history[i]
		if rec.Reverted {
			continue
		}
		if sharesContext(rec.Change, ch) && conflicts(rec.Change, ch) {
			return true
		}
	}
	return false
}

func (e *Engine) applyAndRecord(state *domain.CreatureState, ch domain.Change) {
	undo := apply(state, ch)
	now := time.Now()
	e.history = append(e.history, domain.ChangeRecord{
		Change:    ch,
		AppliedAt: now,
		Undo:      undo,
	})
	if len(e.history) > e.capacity {
		e.history = e.history[len(e.history)-e.capacity:]
	}

	e.totalChanges++
	e.bySource[ch.Metadata.Source]++
	if e.firstChange.IsZero() {
		e.firstChange = now
	}
	e.lastChange = now
}

// StartBatch opens change collection. Idempotent: a second call while a batch
// is open is a no-op, there are no nested batches.
func (e *Engine) StartBatch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batchOpen = true
}

// CommitBatch applies the buffered changes as one transaction. Either every
// surviving change applies and history is updated, or, when any change
// leaves the projected state invalid, nothing is written and it returns
// false. The batch is closed either way.
func (e *Engine) CommitBatch(state *domain.CreatureState) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending := e.pending
	e.pending = nil
	e.batchOpen = false
	if len(pending) == 0 {
		return true
	}

	sort.SliceStable(pending, func(a, b int) bool {
		return pending[a].Metadata.Priority > pending[b].Metadata.Priority
	})

	projected := state.Clone()
	type appliedChange struct {
		ch   domain.Change
		undo *domain.Change
	}
	var applied []appliedChange

	for _, ch := range pending {
		if loser, _ := e.loserAgainstHistory(ch); loser {
			continue
		}
		lost := false
		for _, prev := range applied {
			if sharesContext(prev.ch, ch) && conflicts(prev.ch, ch) &&
				prev.ch.Metadata.Priority > ch.Metadata.Priority {
				lost = true
				break
			}
		}
		if lost {
			continue
		}

		undo := apply(projected, ch)
		if issues := issuesAtOrAbove(projected.Validate(), domain.ValidationCritical); len(issues) > 0 {
			e.log.Debug("batch discarded", zap.String("change", ch.Metadata.ID), zap.Strings("issues", issues))
			return false
		}
		applied = append(applied, appliedChange{ch: ch, undo: undo})
	}

	*state = *projected
	now := time.Now()
	for _, ac := range applied {
		e.history = append(e.history, domain.ChangeRecord{
			Change:    ac.ch,
			AppliedAt: now,
			Undo:      ac.undo,
		})
		e.totalChanges++
		e.bySource[ac.ch.Metadata.Source]++
		if e.firstChange.IsZero() {
			e.firstChange = now
		}
		e.lastChange = now
	}
	if len(e.history) > e.capacity {
		e.history = e.history[len(e.history)-e.capacity:]
	}
	return true
}

// RollbackBatch discards pending changes unconditionally and returns to
// non-batch mode.
func (e *Engine) RollbackBatch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
	e.batchOpen = false
}

// PendingChanges returns a copy of the currently buffered batch.
func (e *Engine) PendingChanges() []domain.Change {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Change, len(e.pending))
	copy(out, e.pending)
	return out
}

// CanUndo reports whether an invertible, unreverted record is at the top of
// history.
func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec := e.newestUnreverted()
	return rec != nil && rec.Undo != nil
}

// Undo reverses the most recent unreverted change and returns its id. It
// fails without side effects when history is empty or the record has no
// computable inverse.
func (e *Engine) Undo(state *domain.CreatureState) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.newestUnreverted()
	if rec == nil || rec.Undo == nil {
		return "", false
	}
	apply(state, *rec.Undo)
	rec.Reverted = true
	e.log.Debug("change reverted", zap.String("change", rec.Change.Metadata.ID))
	return rec.Change.Metadata.ID, true
}

func (e *Engine) newestUnreverted() *domain.ChangeRecord {
	for i := len(e.history) - 1; i >= 0; i-- {
		if !e.history[i].Reverted {
			return &e.history[i]
		}
	}
	return nil
}

// ClearHistory drops all records, for creature destruction.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
}

// HistoryLen returns the number of records currently held.
func (e *Engine) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

// RecentChanges returns up to n most recent records, oldest first.
func (e *Engine) RecentChanges(n int) []domain.ChangeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 || n > len(e.history) {
		n = len(e.history)
	}
	out := make([]domain.ChangeRecord, n)
	copy(out, e.history[len(e.history)-n:])
	return out
}

// LastChangeBySource returns the most recent record with the given source,
// or false when none exists in retained history.
func (e *Engine) LastChangeBySource(src domain.ChangeSource) (domain.ChangeRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].Change.Metadata.Source == src {
			return e.history[i], true
		}
	}
	return domain.ChangeRecord{}, false
}

// Metrics summarizes all changes ever applied, including evicted ones.
type Metrics struct {
	TotalChanges int
	BySource     map[domain.ChangeSource]int
	FirstChange  time.Time
	LastChange   time.Time
}

// HistoryMetrics returns lifetime change counters.
func (e *Engine) HistoryMetrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	by := make(map[domain.ChangeSource]int, len(e.bySource))
	for k, v := range e.bySource {
		by[k] = v
	}
	return Metrics{
		TotalChanges: e.totalChanges,
		BySource:     by,
		FirstChange:  e.firstChange,
		LastChange:   e.lastChange,
	}
}

func issuesAtOrAbove(issues []domain.ValidationIssue, min domain.ValidationLevel) []string {
	if min == domain.ValidationSuccess {
		min = domain.ValidationWarning
	}
	var out []string
	for _, is := range issues {
		if is.Level >= min {
			out = append(out, is.Field+": "+is.Message)
		}
	}
	return out
}
