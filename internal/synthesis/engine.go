package synthesis

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crescentlabs/crucible/internal/domain"
)

// validTransitions defines the legal stage transitions.
// Each key is a source stage, and the value is the set of valid target stages.
var validTransitions = map[domain.SynthesisStage]map[domain.SynthesisStage]bool{
	domain.StageNone:        {domain.StageInitiating: true},
	domain.StageInitiating:  {domain.StageForming: true, domain.StageNone: true},
	domain.StageForming:     {domain.StageStabilizing: true, domain.StageDegrading: true, domain.StageNone: true},
	domain.StageStabilizing: {domain.StageComplete: true, domain.StageDegrading: true, domain.StageNone: true},
	domain.StageComplete:    {domain.StageNone: true},
	domain.StageDegrading:   {domain.StageCritical: true, domain.StageNone: true},
	domain.StageCritical:    {domain.StageNone: true},
}

// IsValidTransition checks if a stage transition is legal.
func IsValidTransition(from, to domain.SynthesisStage) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Config holds the synthesis tunables. The stage thresholds come from the
// default tuning but are configuration, not contract.
type Config struct {
	FormingThreshold  float64 // completion at which Forming becomes Stabilizing
	CriticalFloor     float64 // stability below which Degrading becomes Critical
	ProgressRate      float64 // completion gained per unit catalyst strength per tick
	DecayRate         float64 // stability lost per tick, scaled by catalyst weakness
	WeakCatalystFloor float64 // intensity below this is useless as a catalyst
	MaxLevel          int     // synthesis levels a trait can reach
	HistoryCapacity   int     // bounded per-trait event log
	Factors           domain.StabilityFactors
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		FormingThreshold:  0.67,
		CriticalFloor:     0.1,
		ProgressRate:      0.25,
		DecayRate:         0.05,
		WeakCatalystFloor: 0.1,
		MaxLevel:          3,
		HistoryCapacity:   32,
		Factors:           domain.DefaultStabilityFactors(),
	}
}

type influenceKey struct {
	catalystType domain.CatalystType
	catalystID   string
}

type traitState struct {
	id          string
	currentForm string
	stage       domain.SynthesisStage
	level       int

	target   string
	rule     domain.SynthesisRule
	progress domain.SynthesisProgress

	influences map[influenceKey]float64
	history    []domain.SynthesisEvent
}

// Engine runs one synthesis state machine per tracked trait for a single
// creature. Per-creature updates are serialized; the engine never calls into
// the change engine itself; completion returns a Change for the caller to
// submit after this engine's lock is released.
type Engine struct {
	mu     sync.Mutex
	rules  *Registry
	cfg    Config
	states map[string]*traitState

	// TraitSource supplies the creature's active traits for requirement
	// evaluation. Nil means no traits are available.
	TraitSource func() map[string]bool

	// EnvironmentGate, when set, can veto a catalyst before requirements are
	// even evaluated (for example while conditions are lethal).
	EnvironmentGate func(ct domain.CatalystType, catalystID string) bool

	log *zap.Logger
}

// NewEngine creates a synthesis engine over the given registry.
func NewEngine(rules *Registry, cfg Config, log *zap.Logger) *Engine {
	if cfg.FormingThreshold == 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		rules:  rules,
		cfg:    cfg,
		states: make(map[string]*traitState),
		log:    log,
	}
}

// Rules returns the registry the engine evaluates paths against.
func (e *Engine) Rules() *Registry { return e.rules }

// Track registers a trait with its current form. Tracking an already tracked
// trait is a no-op.
func (e *Engine) Track(traitID, currentForm string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.states[traitID]; ok {
		return
	}
	e.states[traitID] = &traitState{
		id:          traitID,
		currentForm: currentForm,
		stage:       domain.StageNone,
		influences:  make(map[influenceKey]float64),
	}
}

// Untrack drops all synthesis state for a trait.
func (e *Engine) Untrack(traitID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, traitID)
}

// RecordCatalystExposure accumulates catalyst influence for a trait. While a
// synthesis is in progress the accumulated strength feeds its progression
// rate.
func (e *Engine) RecordCatalystExposure(traitID string, ct domain.CatalystType, catalystID string, intensity float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[traitID]
	if !ok {
		return domain.ErrUnknownTrait
	}
	st.influences[influenceKey{ct, catalystID}] += intensity
	if st.stage != domain.StageNone && st.stage != domain.StageComplete {
		st.progress.CatalystStrength = st.totalInfluence()
	}
	return nil
}

// CatalystInfluence returns the accumulated strength for one catalyst type
// across all its sources.
func (e *Engine) CatalystInfluence(traitID string, ct domain.CatalystType) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[traitID]
	if !ok {
		return 0
	}
	var sum float64
	for k, v := range st.influences {
		if k.catalystType == ct {
			sum += v
		}
	}
	return sum
}

// BeginSynthesis starts a synthesis toward targetForm. Only legal from None.
// Failures are typed and leave the state untouched.
func (e *Engine) BeginSynthesis(traitID, targetForm string, ct domain.CatalystType, catalystID string, intensity float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[traitID]
	if !ok {
		return domain.ErrUnknownTrait
	}
	if st.stage != domain.StageNone {
		return domain.ErrSynthesisInProgress
	}
	if e.EnvironmentGate != nil && !e.EnvironmentGate(ct, catalystID) {
		return domain.ErrSynthesisEnvironmental
	}
	if intensity < e.cfg.WeakCatalystFloor {
		return domain.ErrCatalystWeak
	}

	rule, ok := e.rules.Lookup(st.currentForm, ct, targetForm)
	if !ok {
		return domain.ErrSynthesisIncompatible
	}
	if st.level >= e.cfg.MaxLevel {
		return domain.ErrSynthesisRequirements
	}

	stability := e.stabilityFor(st.level)
	if stability < rule.Requirement.MinStability {
		return domain.ErrSynthesisStability
	}

	var available map[string]bool
	if e.TraitSource != nil {
		available = e.TraitSource()
	}
	if !rule.Requirement.Evaluate(intensity, stability, st.level, available) {
		return domain.ErrSynthesisRequirements
	}

	st.setStage(domain.StageInitiating)
	st.target = targetForm
	st.rule = rule
	st.influences[influenceKey{ct, catalystID}] += intensity
	st.progress = domain.SynthesisProgress{
		CompletionLevel:  0,
		StabilityFactor:  stability,
		CatalystStrength: st.totalInfluence(),
	}
	e.record(st, "begin", st.currentForm, targetForm, ct, catalystID, intensity)
	e.log.Info("synthesis started",
		zap.String("trait", traitID),
		zap.String("from", st.currentForm),
		zap.String("to", targetForm),
		zap.Float64("intensity", intensity))
	return nil
}

// ProgressSynthesis advances a trait's in-flight synthesis by deltaTime.
// Completion rises with accumulated catalyst strength; stability decays when
// the catalyst is weak. Degrading states only ever decay further; a trait in
// Critical reverts to None on its next tick.
func (e *Engine) ProgressSynthesis(traitID string, deltaTime float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[traitID]
	if !ok {
		return domain.ErrUnknownTrait
	}

	switch st.stage {
	case domain.StageNone, domain.StageComplete:
		return nil

	case domain.StageCritical:
		e.record(st, "reverted", st.currentForm, st.target, "", "", 0)
		st.reset()
		e.log.Info("synthesis lost", zap.String("trait", traitID))
		return nil

	case domain.StageDegrading:
		st.progress.StabilityFactor = clamp01(st.progress.StabilityFactor - e.cfg.DecayRate*deltaTime)
		if st.progress.StabilityFactor < e.cfg.CriticalFloor {
			st.setStage(domain.StageCritical)
			e.record(st, "critical", st.currentForm, st.target, "", "", 0)
		}
		return nil
	}

	// Initiating, Forming, Stabilizing.
	st.progress.CompletionLevel = clamp01(
		st.progress.CompletionLevel + st.progress.CatalystStrength*e.cfg.ProgressRate*deltaTime)
	st.progress.StabilityFactor = clamp01(
		st.progress.StabilityFactor - e.cfg.DecayRate*deltaTime*(1-st.progress.CatalystStrength))

	if st.stage == domain.StageInitiating && st.progress.CompletionLevel > 0 {
		st.setStage(domain.StageForming)
	}
	if st.stage == domain.StageForming && st.progress.CompletionLevel >= e.cfg.FormingThreshold {
		st.setStage(domain.StageStabilizing)
	}

	if st.stage == domain.StageForming || st.stage == domain.StageStabilizing {
		if st.progress.StabilityFactor < st.rule.Requirement.MinStability {
			st.setStage(domain.StageDegrading)
			e.record(st, "degrading", st.currentForm, st.target, "", "", 0)
		}
	}
	return nil
}

// CompleteSynthesis finishes a fully-formed synthesis. Only legal from
// Stabilizing with completion at 1. It returns the outcome packaged as a
// Change for the change engine; the trait resets to None with its new form
// so the next cycle can begin.
func (e *Engine) CompleteSynthesis(traitID string) (domain.Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[traitID]
	if !ok {
		return domain.Change{}, domain.ErrUnknownTrait
	}
	if st.stage != domain.StageStabilizing {
		return domain.Change{}, domain.ErrSystemicFailure
	}
	if st.progress.CompletionLevel < 1 {
		return domain.Change{}, domain.ErrSynthesisIncomplete
	}

	outcome := st.rule.Outcome
	sourceForm := st.currentForm

	ch := domain.Change{
		Metadata: domain.ChangeMetadata{
			ID:          uuid.NewString(),
			Source:      domain.SourceSynthesis,
			Priority:    domain.PriorityHigh,
			Description: fmt.Sprintf("synthesis of %s: %s -> %s", traitID, sourceForm, outcome.ResultForm),
			Tags:        []string{"synthesis", traitID},
		},
		Trait: &domain.TraitDelta{
			TransformForms:    map[string]string{traitID: outcome.ResultForm},
			StrengthModifiers: map[string]float64{traitID: (outcome.StabilityModifier - 1) * st.progress.StabilityFactor},
			SuppressTraits:    append([]string(nil), outcome.SuppressedTraits...),
		},
	}
	if len(outcome.GrantedAbilities) > 0 {
		ch.Ability = &domain.AbilityDelta{
			AddAbilities: append([]domain.Ability(nil), outcome.GrantedAbilities...),
		}
	}

	st.setStage(domain.StageComplete)
	e.record(st, "complete", sourceForm, outcome.ResultForm, st.rule.CatalystType, "", st.progress.CatalystStrength)

	st.currentForm = outcome.ResultForm
	st.level++
	st.reset()

	e.log.Info("synthesis complete",
		zap.String("trait", traitID),
		zap.String("form", outcome.ResultForm),
		zap.Int("level", st.level))
	return ch, nil
}

// RollbackCompletion undoes the form advance and level bump from the most
// recent CompleteSynthesis. Callers use it when the completion change is
// rejected downstream, so the tracked form stays in step with the trait's
// actual form.
func (e *Engine) RollbackCompletion(traitID, priorForm string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[traitID]
	if !ok {
		return domain.ErrUnknownTrait
	}
	st.currentForm = priorForm
	if st.level > 0 {
		st.level--
	}
	e.log.Warn("synthesis completion rolled back",
		zap.String("trait", traitID),
		zap.String("form", priorForm))
	return nil
}

// RevertSynthesis forcibly abandons an in-progress synthesis. Legal from any
// stage between Initiating and Critical; it discards progress and emits no
// change, since synthesis effects are all-or-nothing.
func (e *Engine) RevertSynthesis(traitID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[traitID]
	if !ok {
		return domain.ErrUnknownTrait
	}
	switch st.stage {
	case domain.StageNone, domain.StageComplete:
		return domain.ErrSystemicFailure
	}
	e.record(st, "reverted", st.currentForm, st.target, "", "", 0)
	st.reset()
	return nil
}

// Snapshot returns a read-only view of one trait's synthesis state.
func (e *Engine) Snapshot(traitID string) (domain.SynthesisSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[traitID]
	if !ok {
		return domain.SynthesisSnapshot{}, domain.ErrUnknownTrait
	}
	return domain.SynthesisSnapshot{
		TraitID:        st.id,
		CurrentForm:    st.currentForm,
		Stage:          st.stage,
		Level:          st.level,
		StabilityClass: domain.ClassifyStability(st.progress.StabilityFactor),
		Progress:       st.progress,
		History:        append([]domain.SynthesisEvent(nil), st.history...),
	}, nil
}

// CurrentForm returns the trait's present form.
func (e *Engine) CurrentForm(traitID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[traitID]
	if !ok {
		return "", false
	}
	return st.currentForm, true
}

// stabilityFor computes clamp(base*mult - penalty*level, floor, 1).
func (e *Engine) stabilityFor(level int) float64 {
	f := e.cfg.Factors
	s := f.Base*f.CatalystMultiplier - f.LevelPenalty*float64(level)
	if s < f.MinStability {
		s = f.MinStability
	}
	if s > 1 {
		s = 1
	}
	return s
}

func (e *Engine) record(st *traitState, kind, source, result string, ct domain.CatalystType, catalystID string, intensity float64) {
	st.history = append(st.history, domain.SynthesisEvent{
		Kind:         kind,
		SourceForm:   source,
		ResultForm:   result,
		CatalystType: ct,
		CatalystID:   catalystID,
		Intensity:    intensity,
		At:           time.Now(),
	})
	if n := e.cfg.HistoryCapacity; n > 0 && len(st.history) > n {
		st.history = st.history[len(st.history)-n:]
	}
}

func (st *traitState) totalInfluence() float64 {
	var sum float64
	for _, v := range st.influences {
		sum += v
	}
	return clamp01(sum)
}

// setStage moves the state machine along the legal graph. An illegal internal
// transition is a programmer error, not a data condition.
func (st *traitState) setStage(to domain.SynthesisStage) {
	if !IsValidTransition(st.stage, to) {
		panic(fmt.Sprintf("synthesis: illegal transition %s -> %s for trait %s", st.stage, to, st.id))
	}
	st.stage = to
}

// reset returns the trait to None and discards all progress and influence.
func (st *traitState) reset() {
	if st.stage != domain.StageNone {
		st.setStage(domain.StageNone)
	}
	st.target = ""
	st.rule = domain.SynthesisRule{}
	st.progress = domain.SynthesisProgress{}
	st.influences = make(map[influenceKey]float64)
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
