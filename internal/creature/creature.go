// Package creature ties the engines together: each creature owns a state
// aggregate, a change engine, and a synthesis engine, and shares the
// simulation's stress engine. Stress threshold crossings become adaptation
// changes or synthesis catalysts; completed syntheses flow back into state
// through the change engine.
package creature

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crescentlabs/crucible/internal/change"
	"github.com/crescentlabs/crucible/internal/domain"
	"github.com/crescentlabs/crucible/internal/stress"
	"github.com/crescentlabs/crucible/internal/synthesis"
)

// Pressure scaling for adaptation changes fired by stress thresholds.
const (
	minorPressureScale = 0.05
	majorPressureScale = 0.15
)

// Creature is the unit of isolation: state owned by one creature is never
// mutated by another creature's processing.
type Creature struct {
	ID          string
	Name        string
	Environment string

	// mu serializes Tick and threshold handling for this creature.
	mu    sync.Mutex
	state *domain.CreatureState
	alive bool

	changes *change.Engine
	synth   *synthesis.Engine
	stress  *stress.Engine

	journal *Journal
	log     *zap.Logger
}

func newCreature(id, name, env string, state *domain.CreatureState, ch *change.Engine, sy *synthesis.Engine, st *stress.Engine, journal *Journal, log *zap.Logger) *Creature {
	c := &Creature{
		ID:          id,
		Name:        name,
		Environment: env,
		state:       state,
		alive:       true,
		changes:     ch,
		synth:       sy,
		stress:      st,
		journal:     journal,
		log:         log,
	}
	for traitID, tr := range state.Trait.Traits {
		sy.Track(traitID, tr.Form)
	}
	return c
}

// Alive reports whether the creature has not gone extinct.
func (c *Creature) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

// State returns the creature's state aggregate. Mutate it only through
// SubmitChange.
func (c *Creature) State() *domain.CreatureState {
	return c.state
}

// StateView returns a deep copy of the state, safe to read while the
// simulation keeps ticking.
func (c *Creature) StateView() *domain.CreatureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Changes exposes the creature's change engine.
func (c *Creature) Changes() *change.Engine { return c.changes }

// Synthesis exposes the creature's synthesis engine.
func (c *Creature) Synthesis() *synthesis.Engine { return c.synth }

// SubmitChange routes a change through the change engine and journals the
// outcome.
func (c *Creature) SubmitChange(ch domain.Change) change.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitLocked(ch)
}

func (c *Creature) submitLocked(ch domain.Change) change.Result {
	res := c.changes.ProcessChange(c.state, ch)
	c.journal.Change(c.ID, ch, res.Outcome)
	return res
}

// Undo reverses the creature's most recent change.
func (c *Creature) Undo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changeID, ok := c.changes.Undo(c.state)
	if !ok {
		return false
	}
	c.journal.Reverted(c.ID, changeID)
	return true
}

// Tick advances the creature by deltaTime: exposure, dissipation, synthesis
// progression, and completion. Threshold crossings are handled via the stress
// engine's callbacks before this returns.
func (c *Creature) Tick(deltaTime float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.alive {
		return domain.ErrCreatureExtinct
	}

	if err := c.stress.ApplyExposure(c.ID, c.Environment, deltaTime); err != nil {
		return fmt.Errorf("exposure for %s: %w", c.ID, err)
	}
	if err := c.stress.Dissipate(c.ID, deltaTime); err != nil {
		return fmt.Errorf("dissipation for %s: %w", c.ID, err)
	}
	if !c.alive {
		// A critical crossing during this tick ended the creature.
		return nil
	}

	for _, traitID := range c.traitIDs() {
		tr := c.state.Trait.Traits[traitID]
		c.synth.Track(traitID, tr.Form)
		if err := c.synth.ProgressSynthesis(traitID, deltaTime); err != nil {
			return fmt.Errorf("progress %s: %w", traitID, err)
		}
		snap, err := c.synth.Snapshot(traitID)
		if err != nil {
			return err
		}
		if snap.Stage == domain.StageStabilizing && snap.Progress.CompletionLevel >= 1 {
			ch, err := c.synth.CompleteSynthesis(traitID)
			if err != nil {
				return fmt.Errorf("complete %s: %w", traitID, err)
			}
			res := c.submitLocked(ch)
			if res.Outcome != domain.OutcomeApplied {
				// The change engine refused the transformation; put the
				// tracked form back so it matches the trait's actual form.
				c.synth.RollbackCompletion(traitID, snap.CurrentForm)
				c.log.Warn("synthesis change rejected",
					zap.String("creature", c.ID),
					zap.String("trait", traitID),
					zap.String("outcome", string(res.Outcome)))
				continue
			}
			c.journal.Synthesis(c.ID, traitID, "complete", snap.CurrentForm, ch.Trait.TransformForms[traitID], string(domain.CatalystStress), snap.Progress.CatalystStrength)
		}
	}
	return nil
}

func (c *Creature) traitIDs() []string {
	ids := make([]string, 0, len(c.state.Trait.Traits))
	for id := range c.state.Trait.Traits {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// handleCrossing reacts to a stress threshold crossing. Crossings only fire
// from ApplyExposure and Dissipate, so this always runs inside this
// creature's Tick with c.mu already held. The stress engine's own lock is
// released by the time it fires.
func (c *Creature) handleCrossing(crossing domain.ThresholdCrossing) {
	c.journal.Stress(c.ID, crossing)

	switch crossing.Kind {
	case domain.ThresholdMinorAdaptation:
		c.applyAdaptation(crossing, domain.PriorityNormal, minorPressureScale)
	case domain.ThresholdMajorAdaptation:
		c.applyAdaptation(crossing, domain.PriorityHigh, majorPressureScale)
	case domain.ThresholdSynthesisEnabled:
		c.feedSynthesisCatalysts(crossing)
	case domain.ThresholdExtinctionRisk:
		c.log.Warn("extinction risk",
			zap.String("creature", c.ID),
			zap.Float64("stress", crossing.Stress))
	case domain.ThresholdCritical:
		c.alive = false
		c.journal.Extinct(c.ID)
		c.log.Error("creature extinct",
			zap.String("creature", c.ID),
			zap.Float64("stress", crossing.Stress))
	}
}

// applyAdaptation turns the active stressors' effect profiles into a
// stress-sourced change: pressure on present traits plus new adaptive
// behaviors.
func (c *Creature) applyAdaptation(crossing domain.ThresholdCrossing, priority domain.ChangePriority, scale float64) {
	snap, err := c.stress.Snapshot(c.ID)
	if err != nil {
		return
	}

	traitDelta := &domain.TraitDelta{StrengthModifiers: make(map[string]float64)}
	behaviorDelta := &domain.BehaviorDelta{AddBehaviors: make(map[string]float64)}

	for _, active := range snap.Stressors {
		def, ok := c.stress.Stressor(active.ID)
		if !ok {
			continue
		}
		for traitID, pressure := range def.Effects.TraitPressures {
			if _, present := c.state.Trait.Traits[traitID]; present {
				traitDelta.StrengthModifiers[traitID] += pressure * scale
			}
		}
		for _, adaptation := range def.Effects.PossibleAdaptations {
			if _, present := c.state.Behavior.Behaviors[adaptation]; !present {
				behaviorDelta.AddBehaviors[adaptation] = crossing.Stress
			}
		}
	}

	ch := domain.Change{
		Metadata: domain.ChangeMetadata{
			ID:          uuid.NewString(),
			Source:      domain.SourceStress,
			Priority:    priority,
			Description: fmt.Sprintf("%s adaptation at stress %.2f", crossing.Kind, crossing.Stress),
			Tags:        []string{"adaptation", crossing.Kind.String()},
		},
		Trait:    traitDelta,
		Behavior: behaviorDelta,
	}
	if ch.IsEmpty() {
		return
	}
	c.submitLocked(ch)
}

// feedSynthesisCatalysts records stress catalyst exposure for every tracked
// trait and begins a synthesis where a stress-catalyst path exists.
func (c *Creature) feedSynthesisCatalysts(crossing domain.ThresholdCrossing) {
	catalystID := "stress:" + crossing.Kind.String()

	for _, traitID := range c.traitIDs() {
		if err := c.synth.RecordCatalystExposure(traitID, domain.CatalystStress, catalystID, crossing.Stress); err != nil {
			continue
		}
		form, ok := c.synth.CurrentForm(traitID)
		if !ok {
			continue
		}
		targets := c.synth.Rules().TargetsFrom(form, domain.CatalystStress)
		if len(targets) == 0 {
			continue
		}
		err := c.synth.BeginSynthesis(traitID, targets[0], domain.CatalystStress, catalystID, crossing.Stress)
		switch err {
		case nil:
			c.journal.Synthesis(c.ID, traitID, "begin", form, targets[0], string(domain.CatalystStress), crossing.Stress)
		case domain.ErrSynthesisInProgress:
			// Already underway; the exposure above still strengthens it.
		default:
			c.log.Debug("stress catalyst rejected",
				zap.String("creature", c.ID),
				zap.String("trait", traitID),
				zap.Error(err))
		}
	}
}
