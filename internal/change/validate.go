package change

import "github.com/crescentlabs/crucible/internal/domain"

// validate checks a change against the current state. Structural issues are
// findings about the change itself (bad references, malformed values);
// projected issues come from re-validating a copy of the state with the
// change applied. The caller grades both against its minimum level; projected
// critical findings mean the change would leave the aggregate invalid.
func validate(state *domain.CreatureState, ch domain.Change) (structural, projected []domain.ValidationIssue) {
	structural = validateStructure(state, ch)

	probe := state.Clone()
	apply(probe, ch)
	projected = probe.Validate()
	return structural, projected
}

func validateStructure(state *domain.CreatureState, ch domain.Change) []domain.ValidationIssue {
	var issues []domain.ValidationIssue

	warn := func(field, msg string) {
		issues = append(issues, domain.ValidationIssue{Level: domain.ValidationWarning, Field: field, Message: msg})
	}
	fail := func(field, msg string) {
		issues = append(issues, domain.ValidationIssue{Level: domain.ValidationError, Field: field, Message: msg})
	}

	if ch.Metadata.ID == "" {
		fail("metadata.id", domain.ErrMissingChangeID.Message)
	}

	if d := ch.Physical; d != nil {
		for _, name := range d.RemoveFeatures {
			if _, ok := state.Physical.Features[name]; !ok {
				warn("physical."+name, "removing feature that is not present")
			}
		}
		for name := range d.FeatureModifiers {
			if _, ok := state.Physical.Features[name]; !ok {
				warn("physical."+name, "modifier targets missing feature")
			}
		}
	}

	if d := ch.Ability; d != nil {
		for _, ab := range d.AddAbilities {
			if ab.Name == "" {
				fail("ability", "ability has no name")
			}
			if ab.Power < 0 {
				fail("ability."+ab.Name, "ability power is negative")
			}
		}
		for _, name := range d.RemoveAbilities {
			if _, ok := state.Ability.Abilities[name]; !ok {
				warn("ability."+name, "removing ability that is not present")
			}
		}
		for name := range d.PowerModifiers {
			if _, ok := state.Ability.Abilities[name]; !ok {
				warn("ability."+name, "modifier targets missing ability")
			}
		}
	}

	if d := ch.Trait; d != nil {
		for _, tr := range d.AddTraits {
			if tr.ID == "" {
				fail("trait", "trait has no id")
			}
			if tr.Form == "" {
				fail("trait."+tr.ID, "trait has no form")
			}
		}
		for _, id := range d.RemoveTraits {
			if _, ok := state.Trait.Traits[id]; !ok {
				warn("trait."+id, "removing trait that is not present")
			}
		}
		for id := range d.StrengthModifiers {
			if _, ok := state.Trait.Traits[id]; !ok {
				warn("trait."+id, "modifier targets missing trait")
			}
		}
		for id, form := range d.TransformForms {
			if _, ok := state.Trait.Traits[id]; !ok {
				warn("trait."+id, "transform targets missing trait")
			}
			if form == "" {
				fail("trait."+id, "transform to empty form")
			}
		}
		for _, id := range d.SuppressTraits {
			if _, ok := state.Trait.Traits[id]; !ok {
				warn("trait."+id, "suppressing trait that is not present")
			}
		}
	}

	if d := ch.Behavior; d != nil {
		for _, name := range d.RemoveBehaviors {
			if _, ok := state.Behavior.Behaviors[name]; !ok {
				warn("behavior."+name, "removing behavior that is not present")
			}
		}
		for name := range d.BehaviorModifiers {
			if _, ok := state.Behavior.Behaviors[name]; !ok {
				warn("behavior."+name, "modifier targets missing behavior")
			}
		}
	}

	return issues
}
