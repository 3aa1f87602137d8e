package domain

import "fmt"

// Hard floors and caps for structural state validation.
const (
	MinTraitStrength   = 0.1
	MaxActiveAbilities = 10
)

// Ability is a discrete capability with a power rating. One-shot abilities are
// destroyed when removed and cannot be restored by undo.
type Ability struct {
	Name    string
	Power   float64
	OneShot bool
}

// Trait is a mutable characteristic with a current form and strength.
type Trait struct {
	ID       string
	Form     string
	Strength float64
}

// PhysicalState tracks features and adaptability factors by name.
type PhysicalState struct {
	Features     map[string]float64
	Adaptability map[string]float64
}

// AbilityState tracks abilities by name.
type AbilityState struct {
	Abilities map[string]Ability
}

// TraitState tracks traits by ID plus the set of suppressed trait IDs.
type TraitState struct {
	Traits     map[string]Trait
	Suppressed map[string]bool
}

// BehaviorState tracks behavior weights and stress responses by name.
type BehaviorState struct {
	Behaviors       map[string]float64
	StressResponses map[string]float64
}

// CreatureState is the mutable aggregate the change engine operates on. It is
// owned by exactly one creature and must only be mutated through applied
// changes.
type CreatureState struct {
	Physical PhysicalState
	Ability  AbilityState
	Trait    TraitState
	Behavior BehaviorState
}

// NewCreatureState returns an empty state with all maps allocated.
func NewCreatureState() *CreatureState {
	return &CreatureState{
		Physical: PhysicalState{
			Features:     make(map[string]float64),
			Adaptability: make(map[string]float64),
		},
		Ability: AbilityState{
			Abilities: make(map[string]Ability),
		},
		Trait: TraitState{
			Traits:     make(map[string]Trait),
			Suppressed: make(map[string]bool),
		},
		Behavior: BehaviorState{
			Behaviors:       make(map[string]float64),
			StressResponses: make(map[string]float64),
		},
	}
}

// Clone returns a deep copy of the state.
func (s *CreatureState) Clone() *CreatureState {
	c := NewCreatureState()
	for k, v := range s.Physical.Features {
		c.Physical.Features[k] = v
	}
	for k, v := range s.Physical.Adaptability {
		c.Physical.Adaptability[k] = v
	}
	for k, v := range s.Ability.Abilities {
		c.Ability.Abilities[k] = v
	}
	for k, v := range s.Trait.Traits {
		c.Trait.Traits[k] = v
	}
	for k, v := range s.Trait.Suppressed {
		c.Trait.Suppressed[k] = v
	}
	for k, v := range s.Behavior.Behaviors {
		c.Behavior.Behaviors[k] = v
	}
	for k, v := range s.Behavior.StressResponses {
		c.Behavior.StressResponses[k] = v
	}
	return c
}

// HasTrait reports whether an unsuppressed trait with the given ID exists.
func (s *CreatureState) HasTrait(id string) bool {
	_, ok := s.Trait.Traits[id]
	return ok && !s.Trait.Suppressed[id]
}

// ActiveTraits returns the set of unsuppressed trait IDs.
func (s *CreatureState) ActiveTraits() map[string]bool {
	out := make(map[string]bool, len(s.Trait.Traits))
	for id := range s.Trait.Traits {
		if !s.Trait.Suppressed[id] {
			out[id] = true
		}
	}
	return out
}

// Validate checks structural invariants of the aggregate and returns one
// issue per violation. An empty slice means the state is consistent.
func (s *CreatureState) Validate() []ValidationIssue {
	var issues []ValidationIssue

	for id, tr := range s.Trait.Traits {
		if tr.Strength < MinTraitStrength {
			issues = append(issues, ValidationIssue{
				Level:   ValidationCritical,
				Field:   "trait." + id,
				Message: fmt.Sprintf("trait strength %.3f below floor %.2f", tr.Strength, MinTraitStrength),
			})
		}
		if tr.Form == "" {
			issues = append(issues, ValidationIssue{
				Level:   ValidationError,
				Field:   "trait." + id,
				Message: "trait has no form",
			})
		}
	}

	if n := len(s.Ability.Abilities); n > MaxActiveAbilities {
		issues = append(issues, ValidationIssue{
			Level:   ValidationWarning,
			Field:   "ability",
			Message: fmt.Sprintf("%d active abilities exceeds cap %d", n, MaxActiveAbilities),
		})
	}
	for name, ab := range s.Ability.Abilities {
		if ab.Power < 0 {
			issues = append(issues, ValidationIssue{
				Level:   ValidationError,
				Field:   "ability." + name,
				Message: "ability power is negative",
			})
		}
	}

	for id := range s.Trait.Suppressed {
		if _, ok := s.Trait.Traits[id]; !ok {
			issues = append(issues, ValidationIssue{
				Level:   ValidationWarning,
				Field:   "trait." + id,
				Message: "suppression marker for missing trait",
			})
		}
	}

	return issues
}
