package domain

import "time"

// CatalystType classifies what is feeding a synthesis.
type CatalystType string

const (
	CatalystEnvironmental CatalystType = "environmental"
	CatalystStress        CatalystType = "stress"
	CatalystThematic      CatalystType = "thematic"
	CatalystResonance     CatalystType = "resonance"
	CatalystForced        CatalystType = "forced"
	CatalystExternal      CatalystType = "external"
)

// SynthesisStage is the state of a trait's synthesis state machine.
type SynthesisStage int

const (
	StageNone SynthesisStage = iota
	StageInitiating
	StageForming
	StageStabilizing
	StageComplete
	StageDegrading
	StageCritical
)

// String returns the lowercase stage name.
func (s SynthesisStage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageInitiating:
		return "initiating"
	case StageForming:
		return "forming"
	case StageStabilizing:
		return "stabilizing"
	case StageComplete:
		return "complete"
	case StageDegrading:
		return "degrading"
	case StageCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// StabilityClass bands the stability factor for reporting.
type StabilityClass int

const (
	StabilityUnstable StabilityClass = iota
	StabilityFluctuating
	StabilityStable
	StabilityReinforced
)

// String returns the lowercase class name.
func (c StabilityClass) String() string {
	switch c {
	case StabilityUnstable:
		return "unstable"
	case StabilityFluctuating:
		return "fluctuating"
	case StabilityStable:
		return "stable"
	case StabilityReinforced:
		return "reinforced"
	default:
		return "unknown"
	}
}

// ClassifyStability maps a stability factor to its class.
func ClassifyStability(factor float64) StabilityClass {
	switch {
	case factor < 0.3:
		return StabilityUnstable
	case factor < 0.6:
		return StabilityFluctuating
	case factor < 0.9:
		return StabilityStable
	default:
		return StabilityReinforced
	}
}

// SynthesisRequirement gates entry into a synthesis path.
type SynthesisRequirement struct {
	MinIntensity   float64
	MinStability   float64
	MinLevel       int
	RequiredTraits []string
}

// Evaluate reports whether every requirement holds.
func (r SynthesisRequirement) Evaluate(intensity, stability float64, level int, available map[string]bool) bool {
	if intensity < r.MinIntensity || stability < r.MinStability || level < r.MinLevel {
		return false
	}
	for _, t := range r.RequiredTraits {
		if !available[t] {
			return false
		}
	}
	return true
}

// SynthesisOutcome is what a completed synthesis produces.
type SynthesisOutcome struct {
	ResultForm        string
	GrantedAbilities  []Ability
	StabilityModifier float64
	SuppressedTraits  []string
}

// SynthesisRule maps (source form, catalyst type, target form) to its
// requirements and outcome. Immutable once registered.
type SynthesisRule struct {
	SourceForm   string
	CatalystType CatalystType
	TargetForm   string
	Requirement  SynthesisRequirement
	Outcome      SynthesisOutcome
}

// SynthesisProgress tracks an in-flight synthesis.
type SynthesisProgress struct {
	CompletionLevel  float64
	StabilityFactor  float64
	CatalystStrength float64
}

// SynthesisEvent records one transition in a trait's synthesis history.
type SynthesisEvent struct {
	Kind         string
	SourceForm   string
	ResultForm   string
	CatalystType CatalystType
	CatalystID   string
	Intensity    float64
	At           time.Time
}

// StabilityFactors are the tunables of the stability computation
// clamp(base*catalystMultiplier - levelPenalty*level, minStability, 1).
type StabilityFactors struct {
	Base               float64
	CatalystMultiplier float64
	LevelPenalty       float64
	MinStability       float64
}

// DefaultStabilityFactors returns the default tuning.
func DefaultStabilityFactors() StabilityFactors {
	return StabilityFactors{
		Base:               1.0,
		CatalystMultiplier: 1.0,
		LevelPenalty:       0.1,
		MinStability:       0.2,
	}
}

// SynthesisSnapshot is a read-only view of one trait's synthesis state.
type SynthesisSnapshot struct {
	TraitID        string
	CurrentForm    string
	Stage          SynthesisStage
	Level          int
	StabilityClass StabilityClass
	Progress       SynthesisProgress
	History        []SynthesisEvent
}
