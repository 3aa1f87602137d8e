// Package domain defines the core types for the Crucible creature engine.
package domain

import "time"

// ChangeSource identifies which system produced a change.
type ChangeSource string

const (
	SourceEnvironment ChangeSource = "environment"
	SourceEvolution   ChangeSource = "evolution"
	SourceSynthesis   ChangeSource = "synthesis"
	SourceStress      ChangeSource = "stress"
	SourceManual      ChangeSource = "manual"
	SourceCorrection  ChangeSource = "correction"
)

// ChangePriority orders changes for conflict resolution. Higher wins.
type ChangePriority int

const (
	PriorityCosmetic ChangePriority = 0
	PriorityLow      ChangePriority = 25
	PriorityNormal   ChangePriority = 50
	PriorityHigh     ChangePriority = 75
	PriorityCritical ChangePriority = 100
)

// ChangeOutcome is the terminal status of a processed change.
type ChangeOutcome string

const (
	OutcomeApplied      ChangeOutcome = "applied"
	OutcomeRejected     ChangeOutcome = "rejected"
	OutcomePartial      ChangeOutcome = "partial"
	OutcomeConflicting  ChangeOutcome = "conflicting"
	OutcomeInvalidState ChangeOutcome = "invalid_state"
	OutcomePending      ChangeOutcome = "pending"
)

// ValidationLevel grades validation findings. Levels are ordered; the change
// engine rejects a change when any finding is at or above its minimum level.
type ValidationLevel int

const (
	ValidationSuccess ValidationLevel = iota
	ValidationWarning
	ValidationError
	ValidationCritical
)

// String returns the lowercase level name.
func (l ValidationLevel) String() string {
	switch l {
	case ValidationSuccess:
		return "success"
	case ValidationWarning:
		return "warning"
	case ValidationError:
		return "error"
	case ValidationCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ValidationIssue is a single finding from validating a change or state.
type ValidationIssue struct {
	Level   ValidationLevel
	Field   string
	Message string
}

// ChangeMetadata carries provenance for a change.
type ChangeMetadata struct {
	ID          string
	Source      ChangeSource
	Priority    ChangePriority
	Description string
	Tags        []string
}

// PhysicalDelta mutates the physical sub-state. Added features carry their
// initial magnitude so a removal can be undone by re-adding the old value.
type PhysicalDelta struct {
	AddFeatures           map[string]float64
	RemoveFeatures        []string
	FeatureModifiers      map[string]float64
	AdaptabilityModifiers map[string]float64
}

func (d *PhysicalDelta) isZero() bool {
	return d == nil ||
		(len(d.AddFeatures) == 0 && len(d.RemoveFeatures) == 0 &&
			len(d.FeatureModifiers) == 0 && len(d.AdaptabilityModifiers) == 0)
}

// AbilityDelta mutates the ability sub-state. Removing a one-shot ability
// consumes it; that effect has no inverse.
type AbilityDelta struct {
	AddAbilities    []Ability
	RemoveAbilities []string
	PowerModifiers  map[string]float64
}

func (d *AbilityDelta) isZero() bool {
	return d == nil ||
		(len(d.AddAbilities) == 0 && len(d.RemoveAbilities) == 0 && len(d.PowerModifiers) == 0)
}

// TraitDelta mutates the trait sub-state. TransformForms rewrites a trait's
// form in place, keyed by trait ID.
type TraitDelta struct {
	AddTraits         []Trait
	RemoveTraits      []string
	StrengthModifiers map[string]float64
	TransformForms    map[string]string
	SuppressTraits    []string
	UnsuppressTraits  []string
}

func (d *TraitDelta) isZero() bool {
	return d == nil ||
		(len(d.AddTraits) == 0 && len(d.RemoveTraits) == 0 &&
			len(d.StrengthModifiers) == 0 && len(d.TransformForms) == 0 &&
			len(d.SuppressTraits) == 0 && len(d.UnsuppressTraits) == 0)
}

// BehaviorDelta mutates the behavior sub-state.
type BehaviorDelta struct {
	AddBehaviors            map[string]float64
	RemoveBehaviors         []string
	BehaviorModifiers       map[string]float64
	StressResponseModifiers map[string]float64
}

func (d *BehaviorDelta) isZero() bool {
	return d == nil ||
		(len(d.AddBehaviors) == 0 && len(d.RemoveBehaviors) == 0 &&
			len(d.BehaviorModifiers) == 0 && len(d.StressResponseModifiers) == 0)
}

// Change is an atomic delta against creature state. All four sub-deltas are
// optional; a change with none present is empty and is rejected before it can
// enter history. Changes are treated as immutable once handed to an engine.
type Change struct {
	Metadata ChangeMetadata
	Physical *PhysicalDelta
	Ability  *AbilityDelta
	Trait    *TraitDelta
	Behavior *BehaviorDelta
}

// IsEmpty reports whether the change carries no effect at all.
func (c Change) IsEmpty() bool {
	return c.Physical.isZero() && c.Ability.isZero() && c.Trait.isZero() && c.Behavior.isZero()
}

// HasTag reports whether the change metadata carries the given tag.
func (c Change) HasTag(tag string) bool {
	for _, t := range c.Metadata.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ChangeRecord is an applied change in history. Undo is the structural inverse
// computed at apply time; nil when the change had no computable inverse.
type ChangeRecord struct {
	Change    Change
	AppliedAt time.Time
	Reverted  bool
	Undo      *Change
}
