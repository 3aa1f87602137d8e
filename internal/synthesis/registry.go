// Package synthesis implements the rule registry and the per-trait synthesis
// state machine: catalyst-driven staged transformation of a trait into a new
// form, with stability decay and a Change emitted on completion.
package synthesis

import (
	"sort"

	"github.com/crescentlabs/crucible/internal/domain"
)

// Registry is the declarative mapping from (source form, catalyst type,
// target form) to synthesis requirements and outcome. Lookup and evaluation
// only; it holds no mutable per-creature state.
type Registry struct {
	paths map[string]map[domain.CatalystType]map[string]domain.SynthesisRule
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{
		paths: make(map[string]map[domain.CatalystType]map[string]domain.SynthesisRule),
	}
}

// Register adds a rule. Registering the same (source, catalyst, target)
// triple again overwrites the earlier rule.
func (r *Registry) Register(rule domain.SynthesisRule) {
	byCatalyst, ok := r.paths[rule.SourceForm]
	if !ok {
		byCatalyst = make(map[domain.CatalystType]map[string]domain.SynthesisRule)
		r.paths[rule.SourceForm] = byCatalyst
	}
	byTarget, ok := byCatalyst[rule.CatalystType]
	if !ok {
		byTarget = make(map[string]domain.SynthesisRule)
		byCatalyst[rule.CatalystType] = byTarget
	}
	byTarget[rule.TargetForm] = rule
}

// Lookup returns the rule for an exact path.
func (r *Registry) Lookup(sourceForm string, ct domain.CatalystType, targetForm string) (domain.SynthesisRule, bool) {
	rule, ok := r.paths[sourceForm][ct][targetForm]
	return rule, ok
}

// HasPath reports whether any rule leads out of the source form for the
// catalyst type.
func (r *Registry) HasPath(sourceForm string, ct domain.CatalystType) bool {
	return len(r.paths[sourceForm][ct]) > 0
}

// PossibleOutcomes returns the outcomes of every rule from the source form
// under the catalyst type.
func (r *Registry) PossibleOutcomes(sourceForm string, ct domain.CatalystType) []domain.SynthesisOutcome {
	byTarget := r.paths[sourceForm][ct]
	if len(byTarget) == 0 {
		return nil
	}
	out := make([]domain.SynthesisOutcome, 0, len(byTarget))
	for _, rule := range byTarget {
		out = append(out, rule.Outcome)
	}
	return out
}

// TargetsFrom returns the target forms reachable from the source form under
// the catalyst type, sorted for deterministic iteration.
func (r *Registry) TargetsFrom(sourceForm string, ct domain.CatalystType) []string {
	byTarget := r.paths[sourceForm][ct]
	if len(byTarget) == 0 {
		return nil
	}
	targets := make([]string, 0, len(byTarget))
	for target := range byTarget {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	return targets
}

// Len returns the total number of registered rules.
func (r *Registry) Len() int {
	n := 0
	for _, byCatalyst := range r.paths {
		for _, byTarget := range byCatalyst {
			n += len(byTarget)
		}
	}
	return n
}
