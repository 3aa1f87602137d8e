package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/crescentlabs/crucible/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validStressors = `
stressors:
  - id: heat
    name: Extreme Heat
    type: thermal
    base_intensity: 0.6
    accumulation_rate: 0.2
    dissipation_rate: 0.5
    continuous: true
    resistance:
      base: 0.1
      acquisition_rate: 0.05
      adaptation_delay: 2
      resistant_traits: [carapace]
    effects:
      possible_adaptations: [burrow]
      trait_pressures:
        carapace: 0.3
  - id: famine
    name: Famine
    type: resource
    base_intensity: 0.4
    accumulation_rate: 0.1
    dissipation_rate: 0.3
    lethal: true
environments:
  desert: [heat, famine]
`

func TestLoadStressors(t *testing.T) {
	path := writeFile(t, "stressors.yaml", validStressors)
	stressors, envs, err := LoadStressors(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stressors) != 2 {
		t.Fatalf("stressors = %d, want 2", len(stressors))
	}

	heat := stressors[0]
	if heat.ID != "heat" || heat.Type != domain.StressThermal || !heat.Continuous {
		t.Errorf("heat parsed wrong: %+v", heat)
	}
	if heat.Resistance.AdaptationDelay != 2 || heat.Resistance.ResistantTraits[0] != "carapace" {
		t.Errorf("resistance parsed wrong: %+v", heat.Resistance)
	}
	if heat.Effects.TraitPressures["carapace"] != 0.3 {
		t.Errorf("effects parsed wrong: %+v", heat.Effects)
	}
	if !stressors[1].Lethal {
		t.Error("famine must be lethal")
	}
	if len(envs["desert"]) != 2 {
		t.Errorf("desert environment = %v", envs["desert"])
	}
}

func TestLoadStressors_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty id", "stressors:\n  - name: nameless\n    type: thermal\n"},
		{"unknown type", "stressors:\n  - id: x\n    type: psychic\n"},
		{"rate out of range", "stressors:\n  - id: x\n    type: thermal\n    accumulation_rate: 1.5\n"},
		{"duplicate id", "stressors:\n  - id: x\n    type: thermal\n  - id: x\n    type: resource\n"},
		{"unknown env mapping", "stressors:\n  - id: x\n    type: thermal\nenvironments:\n  tundra: [ghost]\n"},
		{"malformed yaml", "stressors: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, "stressors.yaml", tc.yaml)
			if _, _, err := LoadStressors(path); err == nil {
				t.Fatal("expected an error")
			}
		})
	}

	if _, _, err := LoadStressors(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

const validRules = `
rules:
  - source_form: basic
    catalyst_type: stress
    target_form: venomous
    requirement:
      min_intensity: 0.5
      min_stability: 0.3
      required_traits: [claws]
    outcome:
      stability_modifier: 1.2
      granted_abilities:
        - name: venom-strike
          power: 0.6
      suppressed_traits: [timidity]
`

func TestLoadRules(t *testing.T) {
	path := writeFile(t, "rules.yaml", validRules)
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(rules))
	}

	r := rules[0]
	if r.SourceForm != "basic" || r.CatalystType != domain.CatalystStress || r.TargetForm != "venomous" {
		t.Errorf("path parsed wrong: %+v", r)
	}
	if r.Requirement.MinIntensity != 0.5 || r.Requirement.RequiredTraits[0] != "claws" {
		t.Errorf("requirement parsed wrong: %+v", r.Requirement)
	}
	// The outcome form always follows the target.
	if r.Outcome.ResultForm != "venomous" || r.Outcome.StabilityModifier != 1.2 {
		t.Errorf("outcome parsed wrong: %+v", r.Outcome)
	}
	if len(r.Outcome.GrantedAbilities) != 1 || r.Outcome.GrantedAbilities[0].Name != "venom-strike" {
		t.Errorf("abilities parsed wrong: %+v", r.Outcome.GrantedAbilities)
	}
}

func TestLoadRules_DefaultStabilityModifier(t *testing.T) {
	path := writeFile(t, "rules.yaml", `
rules:
  - source_form: basic
    catalyst_type: thematic
    target_form: luminous
`)
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rules[0].Outcome.StabilityModifier != 1.0 {
		t.Errorf("modifier = %f, want the neutral default", rules[0].Outcome.StabilityModifier)
	}
}

func TestLoadRules_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing forms", "rules:\n  - catalyst_type: stress\n"},
		{"unknown catalyst", "rules:\n  - source_form: a\n    target_form: b\n    catalyst_type: cosmic\n"},
		{"mismatched outcome form", "rules:\n  - source_form: a\n    target_form: b\n    catalyst_type: stress\n    outcome:\n      result_form: c\n"},
		{"nameless ability", "rules:\n  - source_form: a\n    target_form: b\n    catalyst_type: stress\n    outcome:\n      granted_abilities:\n        - power: 0.3\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, "rules.yaml", tc.yaml)
			_, err := LoadRules(path)
			if !errors.Is(err, domain.ErrCatalogInvalid) {
				t.Fatalf("got %v, want a catalog error", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stressors.yaml"), []byte(validStressors), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "rules.yaml"), []byte(validRules), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cat.Stressors) != 2 || len(cat.Rules) != 1 || len(cat.Environments) != 1 {
		t.Errorf("catalog incomplete: %d stressors, %d rules, %d environments",
			len(cat.Stressors), len(cat.Rules), len(cat.Environments))
	}
}
