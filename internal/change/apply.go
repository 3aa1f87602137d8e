package change

import "github.com/crescentlabs/crucible/internal/domain"

// apply mutates state with every effect the change carries and returns the
// structural inverse, built field by field as effects land: additions become
// removals, removals re-add the value snapshotted here, numeric modifiers are
// negated, suppression toggles flip. Consuming a one-shot ability contributes
// nothing to the inverse; a change whose effects were all non-invertible
// yields nil.
func apply(state *domain.CreatureState, ch domain.Change) *domain.Change {
	undo := domain.Change{
		Metadata: domain.ChangeMetadata{
			ID:          ch.Metadata.ID + ":undo",
			Source:      domain.SourceCorrection,
			Priority:    ch.Metadata.Priority,
			Description: "inverse of " + ch.Metadata.ID,
			Tags:        ch.Metadata.Tags,
		},
	}

	if ch.Physical != nil {
		undo.Physical = applyPhysical(state, ch.Physical)
	}
	if ch.Ability != nil {
		undo.Ability = applyAbility(state, ch.Ability)
	}
	if ch.Trait != nil {
		undo.Trait = applyTrait(state, ch.Trait)
	}
	if ch.Behavior != nil {
		undo.Behavior = applyBehavior(state, ch.Behavior)
	}

	if undo.IsEmpty() {
		return nil
	}
	return &undo
}

func applyPhysical(state *domain.CreatureState, d *domain.PhysicalDelta) *domain.PhysicalDelta {
	inv := &domain.PhysicalDelta{
		AddFeatures:           make(map[string]float64),
		FeatureModifiers:      make(map[string]float64),
		AdaptabilityModifiers: make(map[string]float64),
	}

	for name, val := range d.AddFeatures {
		if old, ok := state.Physical.Features[name]; ok {
			inv.AddFeatures[name] = old
		} else {
			inv.RemoveFeatures = append(inv.RemoveFeatures, name)
		}
		state.Physical.Features[name] = val
	}
	for _, name := range d.RemoveFeatures {
		if old, ok := state.Physical.Features[name]; ok {
			inv.AddFeatures[name] = old
			delete(state.Physical.Features, name)
		}
	}
	for name, mod := range d.FeatureModifiers {
		if _, ok := state.Physical.Features[name]; !ok {
			continue
		}
		state.Physical.Features[name] += mod
		inv.FeatureModifiers[name] = -mod
	}
	for name, mod := range d.AdaptabilityModifiers {
		state.Physical.Adaptability[name] += mod
		inv.AdaptabilityModifiers[name] = -mod
	}
	return inv
}

func applyAbility(state *domain.CreatureState, d *domain.AbilityDelta) *domain.AbilityDelta {
	inv := &domain.AbilityDelta{
		PowerModifiers: make(map[string]float64),
	}

	for _, ab := range d.AddAbilities {
		if old, ok := state.Ability.Abilities[ab.Name]; ok {
			inv.AddAbilities = append(inv.AddAbilities, old)
		} else {
			inv.RemoveAbilities = append(inv.RemoveAbilities, ab.Name)
		}
		state.Ability.Abilities[ab.Name] = ab
	}
	for _, name := range d.RemoveAbilities {
		old, ok := state.Ability.Abilities[name]
		if !ok {
			continue
		}
		delete(state.Ability.Abilities, name)
		if old.OneShot {
			// Consumed. There is nothing to restore.
			continue
		}
		inv.AddAbilities = append(inv.AddAbilities, old)
	}
	for name, mod := range d.PowerModifiers {
		ab, ok := state.Ability.Abilities[name]
		if !ok {
			continue
		}
		ab.Power += mod
		state.Ability.Abilities[name] = ab
		inv.PowerModifiers[name] = -mod
	}
	return inv
}

func applyTrait(state *domain.CreatureState, d *domain.TraitDelta) *domain.TraitDelta {
	inv := &domain.TraitDelta{
		StrengthModifiers: make(map[string]float64),
		TransformForms:    make(map[string]string),
	}

	for _, tr := range d.AddTraits {
		if old, ok := state.Trait.Traits[tr.ID]; ok {
			inv.AddTraits = append(inv.AddTraits, old)
		} else {
			inv.RemoveTraits = append(inv.RemoveTraits, tr.ID)
		}
		state.Trait.Traits[tr.ID] = tr
	}
	for _, id := range d.RemoveTraits {
		if old, ok := state.Trait.Traits[id]; ok {
			inv.AddTraits = append(inv.AddTraits, old)
			delete(state.Trait.Traits, id)
			delete(state.Trait.Suppressed, id)
		}
	}
	for id, mod := range d.StrengthModifiers {
		tr, ok := state.Trait.Traits[id]
		if !ok {
			continue
		}
		tr.Strength += mod
		state.Trait.Traits[id] = tr
		inv.StrengthModifiers[id] = -mod
	}
	for id, form := range d.TransformForms {
		tr, ok := state.Trait.Traits[id]
		if !ok {
			continue
		}
		inv.TransformForms[id] = tr.Form
		tr.Form = form
		state.Trait.Traits[id] = tr
	}
	for _, id := range d.SuppressTraits {
		if _, ok := state.Trait.Traits[id]; ok && !state.Trait.Suppressed[id] {
			state.Trait.Suppressed[id] = true
			inv.UnsuppressTraits = append(inv.UnsuppressTraits, id)
		}
	}
	for _, id := range d.UnsuppressTraits {
		if state.Trait.Suppressed[id] {
			delete(state.Trait.Suppressed, id)
			inv.SuppressTraits = append(inv.SuppressTraits, id)
		}
	}
	return inv
}

func applyBehavior(state *domain.CreatureState, d *domain.BehaviorDelta) *domain.BehaviorDelta {
	inv := &domain.BehaviorDelta{
		AddBehaviors:            make(map[string]float64),
		BehaviorModifiers:       make(map[string]float64),
		StressResponseModifiers: make(map[string]float64),
	}

	for name, w := range d.AddBehaviors {
		if old, ok := state.Behavior.Behaviors[name]; ok {
			inv.AddBehaviors[name] = old
		} else {
			inv.RemoveBehaviors = append(inv.RemoveBehaviors, name)
		}
		state.Behavior.Behaviors[name] = w
	}
	for _, name := range d.RemoveBehaviors {
		if old, ok := state.Behavior.Behaviors[name]; ok {
			inv.AddBehaviors[name] = old
			delete(state.Behavior.Behaviors, name)
		}
	}
	for name, mod := range d.BehaviorModifiers {
		if _, ok := state.Behavior.Behaviors[name]; !ok {
			continue
		}
		state.Behavior.Behaviors[name] += mod
		inv.BehaviorModifiers[name] = -mod
	}
	for name, mod := range d.StressResponseModifiers {
		state.Behavior.StressResponses[name] += mod
		inv.StressResponseModifiers[name] = -mod
	}
	return inv
}
