package creature

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crescentlabs/crucible/internal/change"
	"github.com/crescentlabs/crucible/internal/domain"
	"github.com/crescentlabs/crucible/internal/stress"
	"github.com/crescentlabs/crucible/internal/synthesis"
)

// EngineConfigs bundles the per-creature engine tunables the simulation hands
// to every spawned creature.
type EngineConfigs struct {
	Change    change.Config
	Stress    stress.Config
	Synthesis synthesis.Config
}

// Simulation drives a population of creatures. Creatures share one stress
// engine (ledgers are keyed by creature) and one rule registry; each creature
// gets its own change and synthesis engines.
type Simulation struct {
	mu        sync.RWMutex
	creatures map[string]*Creature

	stress  *stress.Engine
	rules   *synthesis.Registry
	cfgs    EngineConfigs
	journal *Journal
	log     *zap.Logger
}

// NewSimulation wires the shared stress engine and registry. db may be nil,
// in which case nothing is journaled.
func NewSimulation(defs *stress.Definitions, rules *synthesis.Registry, cfgs EngineConfigs, db *sql.DB, log *zap.Logger) *Simulation {
	if log == nil {
		log = zap.NewNop()
	}
	var journal *Journal
	if db != nil {
		journal = NewJournal(db, log)
	}

	sim := &Simulation{
		creatures: make(map[string]*Creature),
		stress:    stress.NewEngine(defs, cfgs.Stress, log),
		rules:     rules,
		cfgs:      cfgs,
		journal:   journal,
		log:       log,
	}
	sim.stress.TraitSource = func(creatureID string) map[string]bool {
		if c, ok := sim.Creature(creatureID); ok {
			return c.state.ActiveTraits()
		}
		return nil
	}
	sim.stress.OnThreshold(sim.dispatchCrossing)
	return sim
}

// StressEngine exposes the shared stress engine.
func (s *Simulation) StressEngine() *stress.Engine { return s.stress }

// Creature looks up a creature by id.
func (s *Simulation) Creature(id string) (*Creature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creatures[id]
	return c, ok
}

// Spawn registers a creature with its own change and synthesis engines. The
// state aggregate passes to the creature's ownership; callers must not mutate
// it afterwards.
func (s *Simulation) Spawn(id, name, environment string, state *domain.CreatureState) (*Creature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.creatures[id]; exists {
		return nil, domain.NewEngineError(domain.ErrConfigInvalid.Code, "creature id already in use: "+id)
	}

	ch := change.NewEngine(s.cfgs.Change, s.log.Named("change"))
	sy := synthesis.NewEngine(s.rules, s.cfgs.Synthesis, s.log.Named("synthesis"))
	sy.TraitSource = state.ActiveTraits
	sy.EnvironmentGate = func(ct domain.CatalystType, catalystID string) bool {
		// Lethal conditions veto new catalysts; the creature has bigger
		// problems than transformation.
		return !s.stress.IsLethal(id, environment)
	}

	c := newCreature(id, name, environment, state, ch, sy, s.stress, s.journal, s.log.With(zap.String("creature", id)))
	s.creatures[id] = c
	s.journal.Spawned(id, name, environment)
	return c, nil
}

// Remove drops a creature and its stress ledger.
func (s *Simulation) Remove(id string) {
	s.mu.Lock()
	delete(s.creatures, id)
	s.mu.Unlock()
	s.stress.RemoveLedger(id)
}

// Tick advances every living creature by deltaTime, one goroutine per
// creature. Creature state is isolated, so ticks are safe to run in parallel;
// the shared stress engine guards its ledgers internally.
func (s *Simulation) Tick(ctx context.Context, deltaTime float64) error {
	g, _ := errgroup.WithContext(ctx)
	for _, c := range s.living() {
		c := c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return c.Tick(deltaTime)
		})
	}
	return g.Wait()
}

// Creatures returns every registered creature, extinct ones included, in
// stable id order.
func (s *Simulation) Creatures() []*Creature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Creature, 0, len(s.creatures))
	for _, c := range s.creatures {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// living returns living creatures in stable id order.
func (s *Simulation) living() []*Creature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Creature, 0, len(s.creatures))
	for _, c := range s.creatures {
		if c.Alive() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Population counts living creatures.
func (s *Simulation) Population() int {
	return len(s.living())
}

// dispatchCrossing routes a threshold crossing to its creature. It runs after
// the stress engine has released its lock.
func (s *Simulation) dispatchCrossing(crossing domain.ThresholdCrossing) {
	c, ok := s.Creature(crossing.CreatureID)
	if !ok {
		return
	}
	c.handleCrossing(crossing)
}
