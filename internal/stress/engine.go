package stress

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crescentlabs/crucible/internal/domain"
)

// LethalStressThreshold is the combined intensity of lethal-flagged stressors
// above which conditions are immediately fatal, independent of the staged
// thresholds.
const LethalStressThreshold = 0.9

// traitAdjustment is how much one matching resistant or vulnerable trait
// shifts effective resistance at exposure time.
const traitAdjustment = 0.1

// Config holds the engine tunables.
type Config struct {
	Thresholds      map[domain.ThresholdKind]domain.ThresholdConfig
	LethalThreshold float64
}

// DefaultThresholds returns the standard threshold ladder.
func DefaultThresholds() map[domain.ThresholdKind]domain.ThresholdConfig {
	return map[domain.ThresholdKind]domain.ThresholdConfig{
		domain.ThresholdMinorAdaptation:  {Value: 0.25, Duration: 2, RequiresContinuous: false},
		domain.ThresholdMajorAdaptation:  {Value: 0.50, Duration: 3, RequiresContinuous: false},
		domain.ThresholdSynthesisEnabled: {Value: 0.65, Duration: 2, RequiresContinuous: true},
		domain.ThresholdExtinctionRisk:   {Value: 0.80, Duration: 2, RequiresContinuous: true},
		domain.ThresholdCritical:         {Value: 0.95, Duration: 1, RequiresContinuous: true},
	}
}

type activeStressor struct {
	def        domain.Stressor
	intensity  float64
	activeTime float64
	engaged    bool
	periodicOn bool
}

type bandState struct {
	continuous float64
	cumulative float64
	fired      bool
}

type ledger struct {
	active      map[string]*activeStressor
	accumulated float64
	resistances map[domain.StressorType]float64
	bands       map[domain.ThresholdKind]*bandState
	extinct     bool
}

func newLedger() *ledger {
	l := &ledger{
		active:      make(map[string]*activeStressor),
		resistances: make(map[domain.StressorType]float64),
		bands:       make(map[domain.ThresholdKind]*bandState),
	}
	for _, k := range domain.ThresholdKinds {
		l.bands[k] = &bandState{}
	}
	return l
}

// Engine tracks one stress ledger per creature. Updates for a single creature
// are serialized; threshold and extinction callbacks fire after the lock is
// released so handlers may call back into other engines.
type Engine struct {
	mu      sync.Mutex
	defs    *Definitions
	cfg     Config
	ledgers map[string]*ledger

	// TraitSource, when set, supplies the creature's active traits so
	// stressor resistance profiles can adjust for them.
	TraitSource func(creatureID string) map[string]bool

	onThreshold  func(domain.ThresholdCrossing)
	onExtinction func(creatureID string, stress float64)

	log *zap.Logger
}

// NewEngine creates a stress engine over the given definitions.
func NewEngine(defs *Definitions, cfg Config, log *zap.Logger) *Engine {
	if cfg.Thresholds == nil {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.LethalThreshold == 0 {
		cfg.LethalThreshold = LethalStressThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		defs:    defs,
		cfg:     cfg,
		ledgers: make(map[string]*ledger),
		log:     log,
	}
}

// Stressor looks up a stressor definition by id.
func (e *Engine) Stressor(id string) (domain.Stressor, bool) {
	return e.defs.Stressor(id)
}

// OnThreshold registers the threshold-crossing callback.
func (e *Engine) OnThreshold(fn func(domain.ThresholdCrossing)) { e.onThreshold = fn }

// OnExtinction registers the extinction callback. Extinction is terminal: the
// ledger stays extinct and further exposure is rejected.
func (e *Engine) OnExtinction(fn func(creatureID string, stress float64)) { e.onExtinction = fn }

// RemoveLedger drops all stress state for a creature.
func (e *Engine) RemoveLedger(creatureID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.ledgers, creatureID)
}

func (e *Engine) ledgerFor(creatureID string) *ledger {
	l, ok := e.ledgers[creatureID]
	if !ok {
		l = newLedger()
		e.ledgers[creatureID] = l
	}
	return l
}

// SetPeriodicActive marks a non-continuous stressor as currently on or off
// schedule for a creature. Continuous stressors ignore it.
func (e *Engine) SetPeriodicActive(creatureID, stressorID string, active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l := e.ledgerFor(creatureID)
	if entry, ok := l.active[stressorID]; ok {
		entry.periodicOn = active
	}
}

// ApplyExposure accumulates intensity for every stressor mapped to the
// environment, grows resistance for types under sustained exposure, and
// evaluates thresholds. All intensity and resistance values stay in [0,1].
func (e *Engine) ApplyExposure(creatureID, environment string, deltaTime float64) error {
	crossings, err := e.applyExposure(creatureID, environment, deltaTime)
	if err != nil {
		return err
	}
	e.fire(crossings)
	return nil
}

func (e *Engine) applyExposure(creatureID, environment string, deltaTime float64) ([]domain.ThresholdCrossing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.ledgerFor(creatureID)
	if l.extinct {
		return nil, domain.ErrCreatureExtinct
	}
	ids, ok := e.defs.ForEnvironment(environment)
	if !ok {
		return nil, domain.ErrUnknownEnvironment
	}

	var traits map[string]bool
	if e.TraitSource != nil {
		traits = e.TraitSource(creatureID)
	}

	for _, id := range ids {
		def, _ := e.defs.Stressor(id)
		entry, ok := l.active[id]
		if !ok {
			entry = &activeStressor{def: def}
			l.active[id] = entry
			if res, tracked := l.resistances[def.Type]; !tracked || res < def.Resistance.Base {
				l.resistances[def.Type] = clamp01(def.Resistance.Base)
			}
		}
		entry.engaged = true

		if !def.Continuous && !entry.periodicOn {
			continue
		}

		res := e.effectiveResistance(l, def, traits)
		added := def.AccumulationRate * (1 - res) * deltaTime
		entry.intensity = clamp01(entry.intensity + added)
		entry.activeTime += deltaTime
		l.accumulated = clamp01(l.accumulated + added)

		// Resistance builds only after sustained exposure, and only ever up.
		if entry.activeTime >= def.Resistance.AdaptationDelay && def.Resistance.AcquisitionRate > 0 {
			l.resistances[def.Type] = clamp01(l.resistances[def.Type] + def.Resistance.AcquisitionRate*deltaTime)
		}
	}

	return e.evaluateThresholds(creatureID, l, deltaTime), nil
}

// Dissipate reduces intensity for stressors that were not engaged since the
// last call and removes entries that reach zero. It re-evaluates thresholds
// without advancing occupancy so falling stress re-arms the bands.
func (e *Engine) Dissipate(creatureID string, deltaTime float64) error {
	crossings, err := e.dissipate(creatureID, deltaTime)
	if err != nil {
		return err
	}
	e.fire(crossings)
	return nil
}

func (e *Engine) dissipate(creatureID string, deltaTime float64) ([]domain.ThresholdCrossing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.ledgers[creatureID]
	if !ok {
		return nil, domain.ErrUnknownCreature
	}

	for id, entry := range l.active {
		if entry.engaged {
			entry.engaged = false
			continue
		}
		drop := entry.def.DissipationRate * deltaTime
		if drop > entry.intensity {
			drop = entry.intensity
		}
		entry.intensity -= drop
		l.accumulated = clamp01(l.accumulated - drop)
		if entry.intensity <= 0 {
			delete(l.active, id)
			continue
		}
	}

	// Band occupancy advances only on exposure; a zero delta here just
	// re-arms bands whose stress has fallen below their value.
	return e.evaluateThresholds(creatureID, l, 0), nil
}

// CalculateEffectiveStress returns the clamped weighted combination of active
// stressor intensities net of type resistance.
func (e *Engine) CalculateEffectiveStress(creatureID string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.ledgers[creatureID]
	if !ok {
		return 0
	}
	return effectiveStress(l)
}

func effectiveStress(l *ledger) float64 {
	var sum float64
	for _, entry := range l.active {
		sum += entry.intensity * (1 - l.resistances[entry.def.Type])
	}
	return clamp01(sum)
}

// effectiveResistance adjusts the tracked type resistance for the creature's
// traits named in the stressor's resistance profile.
func (e *Engine) effectiveResistance(l *ledger, def domain.Stressor, traits map[string]bool) float64 {
	res := l.resistances[def.Type]
	for _, t := range def.Resistance.ResistantTraits {
		if traits[t] {
			res += traitAdjustment
		}
	}
	for _, t := range def.Resistance.VulnerableTraits {
		if traits[t] {
			res -= traitAdjustment
		}
	}
	return clamp01(res)
}

// evaluateThresholds advances band occupancy timers and returns crossings
// that fired this update. A band fires once per continuous occupancy;
// dropping below its value re-arms it. Critical is terminal.
func (e *Engine) evaluateThresholds(creatureID string, l *ledger, deltaTime float64) []domain.ThresholdCrossing {
	eff := effectiveStress(l)
	now := time.Now()
	var crossings []domain.ThresholdCrossing

	for _, kind := range domain.ThresholdKinds {
		cfg, ok := e.cfg.Thresholds[kind]
		if !ok {
			continue
		}
		band := l.bands[kind]
		if eff < cfg.Value {
			band.continuous = 0
			band.fired = false
			continue
		}
		band.continuous += deltaTime
		band.cumulative += deltaTime
		occupancy := band.cumulative
		if cfg.RequiresContinuous {
			occupancy = band.continuous
		}
		if occupancy < cfg.Duration || band.fired {
			continue
		}
		band.fired = true
		crossings = append(crossings, domain.ThresholdCrossing{
			CreatureID: creatureID,
			Kind:       kind,
			Stress:     eff,
			At:         now,
		})
		if kind == domain.ThresholdCritical {
			l.extinct = true
		}
	}
	return crossings
}

func (e *Engine) fire(crossings []domain.ThresholdCrossing) {
	for _, c := range crossings {
		e.log.Info("stress threshold crossed",
			zap.String("creature", c.CreatureID),
			zap.Stringer("threshold", c.Kind),
			zap.Float64("stress", c.Stress))
		if e.onThreshold != nil {
			e.onThreshold(c)
		}
		if c.Kind == domain.ThresholdCritical && e.onExtinction != nil {
			e.onExtinction(c.CreatureID, c.Stress)
		}
	}
}

// IsLethal reports whether the combined intensity of lethal-flagged active
// stressors exceeds the lethal threshold. Independent of the staged
// thresholds.
func (e *Engine) IsLethal(creatureID, environment string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.ledgers[creatureID]
	if !ok {
		return false
	}
	ids, ok := e.defs.ForEnvironment(environment)
	if !ok {
		return false
	}
	var sum float64
	for _, id := range ids {
		entry, ok := l.active[id]
		if ok && entry.def.Lethal {
			sum += entry.intensity
		}
	}
	return sum > e.cfg.LethalThreshold
}

// Snapshot returns a read-only view of a creature's ledger.
func (e *Engine) Snapshot(creatureID string) (domain.StressSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.ledgers[creatureID]
	if !ok {
		return domain.StressSnapshot{}, domain.ErrUnknownCreature
	}
	snap := domain.StressSnapshot{
		CreatureID:       creatureID,
		EffectiveStress:  effectiveStress(l),
		AccumulatedLevel: l.accumulated,
		Resistances:      make(map[domain.StressorType]float64, len(l.resistances)),
		Extinct:          l.extinct,
	}
	for t, r := range l.resistances {
		snap.Resistances[t] = r
	}
	for id, entry := range l.active {
		snap.Stressors = append(snap.Stressors, domain.ActiveStressorSnapshot{
			ID:         id,
			Type:       entry.def.Type,
			Intensity:  entry.intensity,
			ActiveTime: entry.activeTime,
			Continuous: entry.def.Continuous,
		})
	}
	return snap, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
