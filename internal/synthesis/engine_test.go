package synthesis

import (
	"errors"
	"math"
	"testing"

	"github.com/crescentlabs/crucible/internal/domain"
)

func venomRule() domain.SynthesisRule {
	return domain.SynthesisRule{
		SourceForm:   "basic",
		CatalystType: domain.CatalystStress,
		TargetForm:   "venomous",
		Requirement: domain.SynthesisRequirement{
			MinIntensity: 0.5,
			MinStability: 0.3,
		},
		Outcome: domain.SynthesisOutcome{
			ResultForm:        "venomous",
			GrantedAbilities:  []domain.Ability{{Name: "venom-strike", Power: 0.6}},
			StabilityModifier: 1.2,
		},
	}
}

func newTestEngine(t *testing.T, rules ...domain.SynthesisRule) *Engine {
	t.Helper()
	reg := NewRegistry()
	for _, r := range rules {
		reg.Register(r)
	}
	return NewEngine(reg, DefaultConfig(), nil)
}

func TestIsValidTransition(t *testing.T) {
	legal := [][2]domain.SynthesisStage{
		{domain.StageNone, domain.StageInitiating},
		{domain.StageInitiating, domain.StageForming},
		{domain.StageForming, domain.StageStabilizing},
		{domain.StageStabilizing, domain.StageComplete},
		{domain.StageStabilizing, domain.StageDegrading},
		{domain.StageDegrading, domain.StageCritical},
		{domain.StageCritical, domain.StageNone},
	}
	for _, tr := range legal {
		if !IsValidTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s should be legal", tr[0], tr[1])
		}
	}

	illegal := [][2]domain.SynthesisStage{
		{domain.StageNone, domain.StageForming},
		{domain.StageNone, domain.StageComplete},
		{domain.StageComplete, domain.StageInitiating},
		{domain.StageCritical, domain.StageDegrading},
		{domain.StageInitiating, domain.StageStabilizing},
	}
	for _, tr := range illegal {
		if IsValidTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s should be illegal", tr[0], tr[1])
		}
	}
}

func TestBeginSynthesis_Success(t *testing.T) {
	e := newTestEngine(t, venomRule())
	e.Track("claws", "basic")

	if err := e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 0.8); err != nil {
		t.Fatalf("begin: %v", err)
	}

	snap, _ := e.Snapshot("claws")
	if snap.Stage != domain.StageInitiating {
		t.Errorf("stage = %s, want initiating", snap.Stage)
	}
	if snap.Progress.StabilityFactor != 1.0 {
		t.Errorf("stability = %f, want 1.0 at level 0", snap.Progress.StabilityFactor)
	}
	if snap.Progress.CatalystStrength != 0.8 {
		t.Errorf("catalyst strength = %f, want 0.8", snap.Progress.CatalystStrength)
	}
}

func TestBeginSynthesis_TypedFailures(t *testing.T) {
	e := newTestEngine(t, venomRule())
	e.Track("claws", "basic")

	cases := []struct {
		name      string
		target    string
		intensity float64
		want      *domain.EngineError
	}{
		{"weak catalyst", "venomous", 0.05, domain.ErrCatalystWeak},
		{"no such path", "winged", 0.8, domain.ErrSynthesisIncompatible},
		{"below min intensity", "venomous", 0.3, domain.ErrSynthesisRequirements},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := e.BeginSynthesis("claws", tc.target, domain.CatalystStress, "s1", tc.intensity)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			snap, _ := e.Snapshot("claws")
			if snap.Stage != domain.StageNone {
				t.Errorf("failed begin must leave stage none, got %s", snap.Stage)
			}
		})
	}

	if err := e.BeginSynthesis("ghost", "venomous", domain.CatalystStress, "s1", 0.8); !errors.Is(err, domain.ErrUnknownTrait) {
		t.Errorf("unknown trait: got %v", err)
	}
}

func TestBeginSynthesis_SecondBeginWhileInProgress(t *testing.T) {
	e := newTestEngine(t, venomRule())
	e.Track("claws", "basic")

	if err := e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 0.8); err != nil {
		t.Fatalf("begin: %v", err)
	}
	err := e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s2", 0.8)
	if !errors.Is(err, domain.ErrSynthesisInProgress) {
		t.Fatalf("got %v, want in-progress", err)
	}
}

func TestBeginSynthesis_EnvironmentGate(t *testing.T) {
	e := newTestEngine(t, venomRule())
	e.Track("claws", "basic")
	e.EnvironmentGate = func(ct domain.CatalystType, catalystID string) bool { return false }

	err := e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 0.8)
	if !errors.Is(err, domain.ErrSynthesisEnvironmental) {
		t.Fatalf("got %v, want environmental veto", err)
	}
}

func TestBeginSynthesis_RequiredTraits(t *testing.T) {
	rule := venomRule()
	rule.Requirement.RequiredTraits = []string{"fangs"}
	e := newTestEngine(t, rule)
	e.Track("claws", "basic")

	e.TraitSource = func() map[string]bool { return map[string]bool{"claws": true} }
	err := e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 0.8)
	if !errors.Is(err, domain.ErrSynthesisRequirements) {
		t.Fatalf("missing required trait: got %v", err)
	}

	e.TraitSource = func() map[string]bool { return map[string]bool{"claws": true, "fangs": true} }
	if err := e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 0.8); err != nil {
		t.Fatalf("begin with required trait present: %v", err)
	}
}

func TestRollbackCompletion_RestoresFormAndLevel(t *testing.T) {
	e := newTestEngine(t, venomRule())
	e.Track("claws", "basic")

	if err := e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 1.0); err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := e.ProgressSynthesis("claws", 1); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if _, err := e.CompleteSynthesis("claws"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := e.RollbackCompletion("claws", "basic"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	snap, _ := e.Snapshot("claws")
	if snap.CurrentForm != "basic" || snap.Level != 0 {
		t.Errorf("rollback left form %q level %d, want basic level 0", snap.CurrentForm, snap.Level)
	}

	if err := e.RollbackCompletion("ghost", "basic"); !errors.Is(err, domain.ErrUnknownTrait) {
		t.Errorf("unknown trait: got %v", err)
	}
}

func TestSynthesis_FullLifecycle(t *testing.T) {
	e := newTestEngine(t, venomRule())
	e.Track("claws", "basic")

	if err := e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 1.0); err != nil {
		t.Fatalf("begin: %v", err)
	}

	// Full catalyst strength: +0.25 completion per tick, no stability decay.
	stages := []domain.SynthesisStage{
		domain.StageForming,     // 0.25
		domain.StageForming,     // 0.50
		domain.StageStabilizing, // 0.75, past the forming threshold
		domain.StageStabilizing, // 1.00
	}
	for i, want := range stages {
		if err := e.ProgressSynthesis("claws", 1); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		snap, _ := e.Snapshot("claws")
		if snap.Stage != want {
			t.Fatalf("tick %d: stage %s, want %s", i, snap.Stage, want)
		}
	}

	ch, err := e.CompleteSynthesis("claws")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if ch.Metadata.Source != domain.SourceSynthesis || ch.Metadata.Priority != domain.PriorityHigh {
		t.Errorf("unexpected metadata: %+v", ch.Metadata)
	}
	if got := ch.Trait.TransformForms["claws"]; got != "venomous" {
		t.Errorf("transform = %q, want venomous", got)
	}
	if got := ch.Trait.StrengthModifiers["claws"]; math.Abs(got-0.2) > 1e-9 {
		t.Errorf("strength modifier = %f, want 0.2", got)
	}
	if len(ch.Ability.AddAbilities) != 1 || ch.Ability.AddAbilities[0].Name != "venom-strike" {
		t.Errorf("granted abilities wrong: %+v", ch.Ability)
	}

	snap, _ := e.Snapshot("claws")
	if snap.Stage != domain.StageNone || snap.CurrentForm != "venomous" || snap.Level != 1 {
		t.Errorf("post-completion state wrong: %+v", snap)
	}
}

func TestCompleteSynthesis_Premature(t *testing.T) {
	e := newTestEngine(t, venomRule())
	e.Track("claws", "basic")

	if _, err := e.CompleteSynthesis("claws"); !errors.Is(err, domain.ErrSystemicFailure) {
		t.Fatalf("complete from none: got %v", err)
	}

	e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 1.0)
	e.ProgressSynthesis("claws", 1)
	e.ProgressSynthesis("claws", 1)
	e.ProgressSynthesis("claws", 1) // stabilizing at 0.75

	if _, err := e.CompleteSynthesis("claws"); !errors.Is(err, domain.ErrSynthesisIncomplete) {
		t.Fatalf("complete below full completion: got %v", err)
	}
}

func TestSynthesis_DecayToCriticalAndLoss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProgressRate = 0.1
	cfg.DecayRate = 0.9
	reg := NewRegistry()
	reg.Register(venomRule())
	e := NewEngine(reg, cfg, nil)
	e.Track("claws", "basic")

	// Half-strength catalyst: stability falls by 0.45 per tick.
	if err := e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 0.5); err != nil {
		t.Fatalf("begin: %v", err)
	}

	e.ProgressSynthesis("claws", 1) // stability 0.55, forming
	snap, _ := e.Snapshot("claws")
	if snap.Stage != domain.StageForming {
		t.Fatalf("stage %s, want forming", snap.Stage)
	}

	e.ProgressSynthesis("claws", 1) // stability 0.10, below rule minimum
	snap, _ = e.Snapshot("claws")
	if snap.Stage != domain.StageDegrading {
		t.Fatalf("stage %s, want degrading", snap.Stage)
	}

	e.ProgressSynthesis("claws", 1) // decays below the critical floor
	snap, _ = e.Snapshot("claws")
	if snap.Stage != domain.StageCritical {
		t.Fatalf("stage %s, want critical", snap.Stage)
	}

	// The next tick dissolves the attempt entirely.
	e.ProgressSynthesis("claws", 1)
	snap, _ = e.Snapshot("claws")
	if snap.Stage != domain.StageNone || snap.CurrentForm != "basic" {
		t.Fatalf("lost synthesis must reset to none on basic, got %s on %s", snap.Stage, snap.CurrentForm)
	}
	if e.CatalystInfluence("claws", domain.CatalystStress) != 0 {
		t.Error("influence must be discarded with the attempt")
	}
}

func TestRecordCatalystExposure_FeedsProgress(t *testing.T) {
	e := newTestEngine(t, venomRule())
	e.Track("claws", "basic")

	e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 0.5)
	if err := e.RecordCatalystExposure("claws", domain.CatalystStress, "s2", 0.4); err != nil {
		t.Fatalf("exposure: %v", err)
	}

	snap, _ := e.Snapshot("claws")
	if math.Abs(snap.Progress.CatalystStrength-0.9) > 1e-9 {
		t.Errorf("catalyst strength = %f, want 0.9", snap.Progress.CatalystStrength)
	}
	if got := e.CatalystInfluence("claws", domain.CatalystStress); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("influence = %f, want 0.9", got)
	}
	if got := e.CatalystInfluence("claws", domain.CatalystThematic); got != 0 {
		t.Errorf("thematic influence = %f, want 0", got)
	}
}

func TestRevertSynthesis(t *testing.T) {
	e := newTestEngine(t, venomRule())
	e.Track("claws", "basic")

	if err := e.RevertSynthesis("claws"); !errors.Is(err, domain.ErrSystemicFailure) {
		t.Fatalf("revert from none: got %v", err)
	}

	e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 1.0)
	e.ProgressSynthesis("claws", 1)
	if err := e.RevertSynthesis("claws"); err != nil {
		t.Fatalf("revert: %v", err)
	}
	snap, _ := e.Snapshot("claws")
	if snap.Stage != domain.StageNone || snap.Progress.CompletionLevel != 0 {
		t.Errorf("revert must discard progress: %+v", snap)
	}
}

func TestBeginSynthesis_LevelCap(t *testing.T) {
	next := domain.SynthesisRule{
		SourceForm:   "venomous",
		CatalystType: domain.CatalystStress,
		TargetForm:   "elder",
		Requirement:  domain.SynthesisRequirement{MinIntensity: 0.5, MinStability: 0.3},
		Outcome:      domain.SynthesisOutcome{ResultForm: "elder", StabilityModifier: 1.0},
	}
	cfg := DefaultConfig()
	cfg.MaxLevel = 1
	reg := NewRegistry()
	reg.Register(venomRule())
	reg.Register(next)
	e := NewEngine(reg, cfg, nil)
	e.Track("claws", "basic")

	e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 1.0)
	for i := 0; i < 4; i++ {
		e.ProgressSynthesis("claws", 1)
	}
	if _, err := e.CompleteSynthesis("claws"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	err := e.BeginSynthesis("claws", "elder", domain.CatalystStress, "s1", 1.0)
	if !errors.Is(err, domain.ErrSynthesisRequirements) {
		t.Fatalf("level cap: got %v", err)
	}
}

func TestStability_LevelPenaltyOnNextCycle(t *testing.T) {
	next := domain.SynthesisRule{
		SourceForm:   "venomous",
		CatalystType: domain.CatalystStress,
		TargetForm:   "elder",
		Requirement:  domain.SynthesisRequirement{MinIntensity: 0.5, MinStability: 0.3},
		Outcome:      domain.SynthesisOutcome{ResultForm: "elder", StabilityModifier: 1.0},
	}
	e := newTestEngine(t, venomRule(), next)
	e.Track("claws", "basic")

	e.BeginSynthesis("claws", "venomous", domain.CatalystStress, "s1", 1.0)
	for i := 0; i < 4; i++ {
		e.ProgressSynthesis("claws", 1)
	}
	if _, err := e.CompleteSynthesis("claws"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := e.BeginSynthesis("claws", "elder", domain.CatalystStress, "s1", 1.0); err != nil {
		t.Fatalf("second begin: %v", err)
	}
	snap, _ := e.Snapshot("claws")
	if math.Abs(snap.Progress.StabilityFactor-0.9) > 1e-9 {
		t.Errorf("level 1 stability = %f, want 0.9", snap.Progress.StabilityFactor)
	}
}
