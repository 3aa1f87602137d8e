// Package catalog loads stressor and synthesis-rule definitions from YAML
// files. Definitions are read once, validated, and treated as immutable for
// the lifetime of the engines that consume them.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/crescentlabs/crucible/internal/domain"
)

// Catalog is the loaded, validated definition set.
type Catalog struct {
	Stressors    []domain.Stressor
	Environments map[string][]string
	Rules        []domain.SynthesisRule
}

type stressorFile struct {
	Stressors []stressorDoc       `yaml:"stressors"`
	Environs  map[string][]string `yaml:"environments"`
}

type stressorDoc struct {
	ID               string        `yaml:"id"`
	Name             string        `yaml:"name"`
	Type             string        `yaml:"type"`
	BaseIntensity    float64       `yaml:"base_intensity"`
	AccumulationRate float64       `yaml:"accumulation_rate"`
	DissipationRate  float64       `yaml:"dissipation_rate"`
	Continuous       bool          `yaml:"continuous"`
	Lethal           bool          `yaml:"lethal"`
	Resistance       resistanceDoc `yaml:"resistance"`
	Effects          effectsDoc    `yaml:"effects"`
}

type resistanceDoc struct {
	Base             float64  `yaml:"base"`
	AcquisitionRate  float64  `yaml:"acquisition_rate"`
	AdaptationDelay  float64  `yaml:"adaptation_delay"`
	ResistantTraits  []string `yaml:"resistant_traits"`
	VulnerableTraits []string `yaml:"vulnerable_traits"`
}

type effectsDoc struct {
	PossibleAdaptations []string           `yaml:"possible_adaptations"`
	TraitPressures      map[string]float64 `yaml:"trait_pressures"`
}

type ruleFile struct {
	Rules []ruleDoc `yaml:"rules"`
}

type ruleDoc struct {
	SourceForm   string         `yaml:"source_form"`
	CatalystType string         `yaml:"catalyst_type"`
	TargetForm   string         `yaml:"target_form"`
	Requirement  requirementDoc `yaml:"requirement"`
	Outcome      outcomeDoc     `yaml:"outcome"`
}

type requirementDoc struct {
	MinIntensity   float64  `yaml:"min_intensity"`
	MinStability   float64  `yaml:"min_stability"`
	MinLevel       int      `yaml:"min_level"`
	RequiredTraits []string `yaml:"required_traits"`
}

type outcomeDoc struct {
	ResultForm        string       `yaml:"result_form"`
	GrantedAbilities  []abilityDoc `yaml:"granted_abilities"`
	StabilityModifier float64      `yaml:"stability_modifier"`
	SuppressedTraits  []string     `yaml:"suppressed_traits"`
}

type abilityDoc struct {
	Name    string  `yaml:"name"`
	Power   float64 `yaml:"power"`
	OneShot bool    `yaml:"one_shot"`
}

var stressorTypes = map[string]domain.StressorType{
	"thermal":       domain.StressThermal,
	"chemical":      domain.StressChemical,
	"physical":      domain.StressPhysical,
	"resource":      domain.StressResource,
	"competition":   domain.StressCompetition,
	"environmental": domain.StressEnvironmental,
}

var catalystTypes = map[string]domain.CatalystType{
	"environmental": domain.CatalystEnvironmental,
	"stress":        domain.CatalystStress,
	"thematic":      domain.CatalystThematic,
	"resonance":     domain.CatalystResonance,
	"forced":        domain.CatalystForced,
	"external":      domain.CatalystExternal,
}

// Load reads stressors.yaml and rules.yaml from dir.
func Load(dir string) (*Catalog, error) {
	stressors, envs, err := LoadStressors(filepath.Join(dir, "stressors.yaml"))
	if err != nil {
		return nil, err
	}
	rules, err := LoadRules(filepath.Join(dir, "rules.yaml"))
	if err != nil {
		return nil, err
	}
	return &Catalog{Stressors: stressors, Environments: envs, Rules: rules}, nil
}

// LoadStressors parses and validates a stressor definition file.
func LoadStressors(path string) ([]domain.Stressor, map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read stressor catalog: %w", err)
	}
	var file stressorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse stressor catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Stressors))
	out := make([]domain.Stressor, 0, len(file.Stressors))
	for _, doc := range file.Stressors {
		s, err := doc.toDomain()
		if err != nil {
			return nil, nil, err
		}
		if seen[s.ID] {
			return nil, nil, catalogErr("duplicate stressor id %q", s.ID)
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	for env, ids := range file.Environs {
		for _, id := range ids {
			if !seen[id] {
				return nil, nil, catalogErr("environment %q maps unknown stressor %q", env, id)
			}
		}
	}
	return out, file.Environs, nil
}

func (doc stressorDoc) toDomain() (domain.Stressor, error) {
	if doc.ID == "" {
		return domain.Stressor{}, catalogErr("stressor with empty id")
	}
	st, ok := stressorTypes[doc.Type]
	if !ok {
		return domain.Stressor{}, catalogErr("stressor %q has unknown type %q", doc.ID, doc.Type)
	}
	for _, v := range []float64{doc.BaseIntensity, doc.AccumulationRate, doc.DissipationRate, doc.Resistance.Base, doc.Resistance.AcquisitionRate} {
		if v < 0 || v > 1 {
			return domain.Stressor{}, catalogErr("stressor %q has value outside [0,1]", doc.ID)
		}
	}
	return domain.Stressor{
		ID:               doc.ID,
		Name:             doc.Name,
		Type:             st,
		BaseIntensity:    doc.BaseIntensity,
		AccumulationRate: doc.AccumulationRate,
		DissipationRate:  doc.DissipationRate,
		Continuous:       doc.Continuous,
		Lethal:           doc.Lethal,
		Resistance: domain.ResistanceProfile{
			Base:             doc.Resistance.Base,
			AcquisitionRate:  doc.Resistance.AcquisitionRate,
			AdaptationDelay:  doc.Resistance.AdaptationDelay,
			ResistantTraits:  doc.Resistance.ResistantTraits,
			VulnerableTraits: doc.Resistance.VulnerableTraits,
		},
		Effects: domain.EffectProfile{
			PossibleAdaptations: doc.Effects.PossibleAdaptations,
			TraitPressures:      doc.Effects.TraitPressures,
		},
	}, nil
}

// LoadRules parses and validates a synthesis rule file.
func LoadRules(path string) ([]domain.SynthesisRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule catalog: %w", err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rule catalog: %w", err)
	}

	out := make([]domain.SynthesisRule, 0, len(file.Rules))
	for _, doc := range file.Rules {
		rule, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func (doc ruleDoc) toDomain() (domain.SynthesisRule, error) {
	if doc.SourceForm == "" || doc.TargetForm == "" {
		return domain.SynthesisRule{}, catalogErr("rule with empty source or target form")
	}
	ct, ok := catalystTypes[doc.CatalystType]
	if !ok {
		return domain.SynthesisRule{}, catalogErr("rule %s->%s has unknown catalyst type %q", doc.SourceForm, doc.TargetForm, doc.CatalystType)
	}
	if doc.Outcome.ResultForm != "" && doc.Outcome.ResultForm != doc.TargetForm {
		return domain.SynthesisRule{}, catalogErr("rule %s->%s outcome form %q does not match target", doc.SourceForm, doc.TargetForm, doc.Outcome.ResultForm)
	}
	mod := doc.Outcome.StabilityModifier
	if mod == 0 {
		mod = 1.0
	}
	abilities := make([]domain.Ability, 0, len(doc.Outcome.GrantedAbilities))
	for _, ab := range doc.Outcome.GrantedAbilities {
		if ab.Name == "" {
			return domain.SynthesisRule{}, catalogErr("rule %s->%s grants ability with no name", doc.SourceForm, doc.TargetForm)
		}
		abilities = append(abilities, domain.Ability{Name: ab.Name, Power: ab.Power, OneShot: ab.OneShot})
	}
	return domain.SynthesisRule{
		SourceForm:   doc.SourceForm,
		CatalystType: ct,
		TargetForm:   doc.TargetForm,
		Requirement: domain.SynthesisRequirement{
			MinIntensity:   doc.Requirement.MinIntensity,
			MinStability:   doc.Requirement.MinStability,
			MinLevel:       doc.Requirement.MinLevel,
			RequiredTraits: doc.Requirement.RequiredTraits,
		},
		Outcome: domain.SynthesisOutcome{
			ResultForm:        doc.TargetForm,
			GrantedAbilities:  abilities,
			StabilityModifier: mod,
			SuppressedTraits:  doc.Outcome.SuppressedTraits,
		},
	}, nil
}

func catalogErr(format string, args ...any) error {
	return domain.NewEngineError(domain.ErrCatalogInvalid.Code,
		fmt.Sprintf("%s: %s", domain.ErrCatalogInvalid.Message, fmt.Sprintf(format, args...)))
}
