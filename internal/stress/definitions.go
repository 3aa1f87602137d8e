// Package stress implements per-creature stress accumulation: exposure
// ledgers, resistance growth, dissipation, ordered threshold evaluation, and
// lethality checks.
package stress

import (
	"fmt"

	"github.com/crescentlabs/crucible/internal/domain"
)

// Definitions is the read-only stressor set plus the environment mapping the
// engine evaluates exposure against. Built once at load time and assumed
// immutable for the engine's lifetime.
type Definitions struct {
	stressors map[string]domain.Stressor
	byEnv     map[string][]string
}

// NewDefinitions indexes stressors by ID and validates the environment
// mapping against them.
func NewDefinitions(stressors []domain.Stressor, envMap map[string][]string) (*Definitions, error) {
	d := &Definitions{
		stressors: make(map[string]domain.Stressor, len(stressors)),
		byEnv:     make(map[string][]string, len(envMap)),
	}
	for _, s := range stressors {
		if s.ID == "" {
			return nil, domain.WrapEngineError(domain.ErrCatalogInvalid.Code, domain.ErrCatalogInvalid.Message,
				fmt.Errorf("stressor with empty id"))
		}
		if s.AccumulationRate < 0 || s.DissipationRate < 0 {
			return nil, domain.WrapEngineError(domain.ErrCatalogInvalid.Code, domain.ErrCatalogInvalid.Message,
				fmt.Errorf("stressor %s has negative rate", s.ID))
		}
		d.stressors[s.ID] = s
	}
	for env, ids := range envMap {
		for _, id := range ids {
			if _, ok := d.stressors[id]; !ok {
				return nil, domain.WrapEngineError(domain.ErrCatalogInvalid.Code, domain.ErrCatalogInvalid.Message,
					fmt.Errorf("environment %s maps unknown stressor %s", env, id))
			}
		}
		d.byEnv[env] = append([]string(nil), ids...)
	}
	return d, nil
}

// Stressor returns a stressor definition by ID.
func (d *Definitions) Stressor(id string) (domain.Stressor, bool) {
	s, ok := d.stressors[id]
	return s, ok
}

// ForEnvironment returns the stressor IDs mapped to an environment.
func (d *Definitions) ForEnvironment(env string) ([]string, bool) {
	ids, ok := d.byEnv[env]
	return ids, ok
}
