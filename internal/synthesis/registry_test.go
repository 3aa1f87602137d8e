package synthesis

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crescentlabs/crucible/internal/domain"
)

func pathRule(source string, ct domain.CatalystType, target string) domain.SynthesisRule {
	return domain.SynthesisRule{
		SourceForm:   source,
		CatalystType: ct,
		TargetForm:   target,
		Requirement:  domain.SynthesisRequirement{MinIntensity: 0.5},
		Outcome:      domain.SynthesisOutcome{ResultForm: target, StabilityModifier: 1.0},
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(pathRule("basic", domain.CatalystStress, "venomous"))
	reg.Register(pathRule("basic", domain.CatalystStress, "armored"))
	reg.Register(pathRule("basic", domain.CatalystThematic, "luminous"))

	if reg.Len() != 3 {
		t.Fatalf("len = %d, want 3", reg.Len())
	}

	rule, ok := reg.Lookup("basic", domain.CatalystStress, "venomous")
	if !ok || rule.Outcome.ResultForm != "venomous" {
		t.Fatalf("lookup failed: %v %+v", ok, rule)
	}
	if _, ok := reg.Lookup("basic", domain.CatalystStress, "luminous"); ok {
		t.Error("lookup must respect the catalyst type")
	}
	if _, ok := reg.Lookup("elder", domain.CatalystStress, "venomous"); ok {
		t.Error("lookup of unregistered source must miss")
	}
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	reg := NewRegistry()
	reg.Register(pathRule("basic", domain.CatalystStress, "venomous"))

	updated := pathRule("basic", domain.CatalystStress, "venomous")
	updated.Requirement.MinIntensity = 0.9
	reg.Register(updated)

	if reg.Len() != 1 {
		t.Fatalf("len = %d, want 1 after overwrite", reg.Len())
	}
	rule, _ := reg.Lookup("basic", domain.CatalystStress, "venomous")
	if rule.Requirement.MinIntensity != 0.9 {
		t.Errorf("overwrite did not take: %f", rule.Requirement.MinIntensity)
	}
}

func TestRegistry_HasPath(t *testing.T) {
	reg := NewRegistry()
	reg.Register(pathRule("basic", domain.CatalystStress, "venomous"))

	if !reg.HasPath("basic", domain.CatalystStress) {
		t.Error("expected a path out of basic under stress")
	}
	if reg.HasPath("basic", domain.CatalystThematic) {
		t.Error("no thematic path was registered")
	}
	if reg.HasPath("venomous", domain.CatalystStress) {
		t.Error("no path out of venomous was registered")
	}
}

func TestRegistry_TargetsFromSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(pathRule("basic", domain.CatalystStress, "venomous"))
	reg.Register(pathRule("basic", domain.CatalystStress, "armored"))
	reg.Register(pathRule("basic", domain.CatalystStress, "barbed"))

	got := reg.TargetsFrom("basic", domain.CatalystStress)
	want := []string{"armored", "barbed", "venomous"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}

	if reg.TargetsFrom("basic", domain.CatalystThematic) != nil {
		t.Error("no targets expected for an unregistered catalyst type")
	}
}

func TestRegistry_PossibleOutcomes(t *testing.T) {
	reg := NewRegistry()
	reg.Register(pathRule("basic", domain.CatalystStress, "venomous"))
	reg.Register(pathRule("basic", domain.CatalystStress, "armored"))

	outcomes := reg.PossibleOutcomes("basic", domain.CatalystStress)
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	forms := map[string]bool{}
	for _, o := range outcomes {
		forms[o.ResultForm] = true
	}
	if !forms["venomous"] || !forms["armored"] {
		t.Errorf("unexpected outcome forms: %v", forms)
	}
}
