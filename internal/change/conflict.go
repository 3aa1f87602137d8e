package change

import "github.com/crescentlabs/crucible/internal/domain"

// sharesContext is the cheap pre-filter for conflict checks: two changes are
// only compared when they share a tag or touch the same sub-state.
func sharesContext(a, b domain.Change) bool {
	for _, t := range a.Metadata.Tags {
		if b.HasTag(t) {
			return true
		}
	}
	if a.Physical != nil && b.Physical != nil {
		return true
	}
	if a.Ability != nil && b.Ability != nil {
		return true
	}
	if a.Trait != nil && b.Trait != nil {
		return true
	}
	if a.Behavior != nil && b.Behavior != nil {
		return true
	}
	return false
}

// conflicts reports whether two changes target the same field or trait with
// incompatible values: an add against a remove of the same key, opposing
// modifiers on the same key, transforms of one trait to different forms, or a
// suppress against an unsuppress of the same trait.
func conflicts(a, b domain.Change) bool {
	if a.Physical != nil && b.Physical != nil && physicalConflict(a.Physical, b.Physical) {
		return true
	}
	if a.Ability != nil && b.Ability != nil && abilityConflict(a.Ability, b.Ability) {
		return true
	}
	if a.Trait != nil && b.Trait != nil && traitConflict(a.Trait, b.Trait) {
		return true
	}
	if a.Behavior != nil && b.Behavior != nil && behaviorConflict(a.Behavior, b.Behavior) {
		return true
	}
	return false
}

func physicalConflict(a, b *domain.PhysicalDelta) bool {
	for name := range a.AddFeatures {
		if contains(b.RemoveFeatures, name) {
			return true
		}
	}
	for name := range b.AddFeatures {
		if contains(a.RemoveFeatures, name) {
			return true
		}
	}
	return opposingModifiers(a.FeatureModifiers, b.FeatureModifiers) ||
		opposingModifiers(a.AdaptabilityModifiers, b.AdaptabilityModifiers)
}

func abilityConflict(a, b *domain.AbilityDelta) bool {
	for _, ab := range a.AddAbilities {
		if contains(b.RemoveAbilities, ab.Name) {
			return true
		}
	}
	for _, ab := range b.AddAbilities {
		if contains(a.RemoveAbilities, ab.Name) {
			return true
		}
	}
	return opposingModifiers(a.PowerModifiers, b.PowerModifiers)
}

func traitConflict(a, b *domain.TraitDelta) bool {
	for _, tr := range a.AddTraits {
		if contains(b.RemoveTraits, tr.ID) {
			return true
		}
	}
	for _, tr := range b.AddTraits {
		if contains(a.RemoveTraits, tr.ID) {
			return true
		}
	}
	for id, form := range a.TransformForms {
		if other, ok := b.TransformForms[id]; ok && other != form {
			return true
		}
	}
	for _, id := range a.SuppressTraits {
		if contains(b.UnsuppressTraits, id) {
			return true
		}
	}
	for _, id := range b.SuppressTraits {
		if contains(a.UnsuppressTraits, id) {
			return true
		}
	}
	return opposingModifiers(a.StrengthModifiers, b.StrengthModifiers)
}

func behaviorConflict(a, b *domain.BehaviorDelta) bool {
	for name := range a.AddBehaviors {
		if contains(b.RemoveBehaviors, name) {
			return true
		}
	}
	for name := range b.AddBehaviors {
		if contains(a.RemoveBehaviors, name) {
			return true
		}
	}
	return opposingModifiers(a.BehaviorModifiers, b.BehaviorModifiers) ||
		opposingModifiers(a.StressResponseModifiers, b.StressResponseModifiers)
}

// opposingModifiers reports whether the same key is pushed in opposite
// directions.
func opposingModifiers(a, b map[string]float64) bool {
	for k, av := range a {
		if bv, ok := b[k]; ok && av*bv < 0 {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
