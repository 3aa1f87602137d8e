package stress

import (
	"errors"
	"math"
	"testing"

	"github.com/crescentlabs/crucible/internal/domain"
)

func testDefs(t *testing.T, stressors ...domain.Stressor) *Definitions {
	t.Helper()
	envs := map[string][]string{"desert": nil}
	for _, s := range stressors {
		envs["desert"] = append(envs["desert"], s.ID)
	}
	defs, err := NewDefinitions(stressors, envs)
	if err != nil {
		t.Fatalf("definitions: %v", err)
	}
	return defs
}

func heatStressor() domain.Stressor {
	return domain.Stressor{
		ID:               "heat",
		Type:             domain.StressThermal,
		BaseIntensity:    0.2,
		AccumulationRate: 0.2,
		DissipationRate:  0.5,
		Continuous:       true,
	}
}

func TestApplyExposure_UnknownEnvironment(t *testing.T) {
	e := NewEngine(testDefs(t, heatStressor()), Config{}, nil)
	err := e.ApplyExposure("c1", "abyss", 1)
	if !errors.Is(err, domain.ErrUnknownEnvironment) {
		t.Fatalf("expected unknown environment, got %v", err)
	}
}

func TestApplyExposure_AccumulatesToFullIntensity(t *testing.T) {
	e := NewEngine(testDefs(t, heatStressor()), Config{}, nil)

	for i := 0; i < 5; i++ {
		if err := e.ApplyExposure("c1", "desert", 1); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	snap, err := e.Snapshot("c1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Stressors) != 1 {
		t.Fatalf("expected 1 active stressor, got %d", len(snap.Stressors))
	}
	if got := snap.Stressors[0].Intensity; math.Abs(got-1.0) > 1e-9 {
		t.Errorf("intensity = %f, want 1.0", got)
	}

	// More exposure must not push past the clamp.
	e.ApplyExposure("c1", "desert", 10)
	if got := e.CalculateEffectiveStress("c1"); got > 1.0 {
		t.Errorf("effective stress %f exceeds clamp", got)
	}
}

func TestResistance_GrowsOnlyAfterDelayAndSlowsAccumulation(t *testing.T) {
	s := heatStressor()
	s.Resistance = domain.ResistanceProfile{
		AcquisitionRate: 0.1,
		AdaptationDelay: 2,
	}
	e := NewEngine(testDefs(t, s), Config{}, nil)

	e.ApplyExposure("c1", "desert", 1)
	snap, _ := e.Snapshot("c1")
	if snap.Resistances[domain.StressThermal] != 0 {
		t.Fatalf("resistance grew before the adaptation delay: %f", snap.Resistances[domain.StressThermal])
	}

	var last float64
	for i := 0; i < 5; i++ {
		e.ApplyExposure("c1", "desert", 1)
		snap, _ = e.Snapshot("c1")
		res := snap.Resistances[domain.StressThermal]
		if res < last {
			t.Fatalf("resistance decreased: %f -> %f", last, res)
		}
		last = res
	}
	if last == 0 {
		t.Fatal("resistance never grew under sustained exposure")
	}

	// With resistance r, one tick adds rate*(1-r) instead of the full rate.
	before := snap.Stressors[0].Intensity
	e.ApplyExposure("c1", "desert", 1)
	snap, _ = e.Snapshot("c1")
	added := snap.Stressors[0].Intensity - before
	if added >= 0.2 {
		t.Errorf("resistance did not slow accumulation: added %f", added)
	}
}

func TestResistance_TraitAdjustment(t *testing.T) {
	s := heatStressor()
	s.Resistance = domain.ResistanceProfile{ResistantTraits: []string{"thick-hide"}}
	e := NewEngine(testDefs(t, s), Config{}, nil)
	e.TraitSource = func(creatureID string) map[string]bool {
		if creatureID == "armored" {
			return map[string]bool{"thick-hide": true}
		}
		return nil
	}

	e.ApplyExposure("armored", "desert", 1)
	e.ApplyExposure("bare", "desert", 1)

	armored, _ := e.Snapshot("armored")
	bare, _ := e.Snapshot("bare")
	if armored.Stressors[0].Intensity >= bare.Stressors[0].Intensity {
		t.Errorf("resistant trait did not reduce accumulation: %f vs %f",
			armored.Stressors[0].Intensity, bare.Stressors[0].Intensity)
	}
}

func TestDissipate_OnlyDecaysUnengagedStressors(t *testing.T) {
	e := NewEngine(testDefs(t, heatStressor()), Config{}, nil)

	e.ApplyExposure("c1", "desert", 2) // intensity 0.4
	// Same tick: exposure marked the entry engaged, so no decay.
	if err := e.Dissipate("c1", 1); err != nil {
		t.Fatalf("dissipate: %v", err)
	}
	snap, _ := e.Snapshot("c1")
	if got := snap.Stressors[0].Intensity; math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("engaged stressor must not decay, got %f", got)
	}

	// Next tick without exposure: drop by DissipationRate*dt.
	e.Dissipate("c1", 0.5)
	snap, _ = e.Snapshot("c1")
	if got := snap.Stressors[0].Intensity; math.Abs(got-0.15) > 1e-9 {
		t.Fatalf("expected 0.15 after decay, got %f", got)
	}

	// Decay to zero removes the entry.
	e.Dissipate("c1", 10)
	snap, _ = e.Snapshot("c1")
	if len(snap.Stressors) != 0 {
		t.Errorf("expected empty ledger, got %d entries", len(snap.Stressors))
	}
}

func TestDissipate_UnknownCreature(t *testing.T) {
	e := NewEngine(testDefs(t, heatStressor()), Config{}, nil)
	if err := e.Dissipate("ghost", 1); !errors.Is(err, domain.ErrUnknownCreature) {
		t.Fatalf("expected unknown creature, got %v", err)
	}
}

func TestThreshold_FiresOncePerOccupancyAndRearms(t *testing.T) {
	e := NewEngine(testDefs(t, heatStressor()), Config{
		Thresholds: map[domain.ThresholdKind]domain.ThresholdConfig{
			domain.ThresholdMinorAdaptation: {Value: 0.25, Duration: 2},
		},
	}, nil)

	var crossings []domain.ThresholdCrossing
	e.OnThreshold(func(c domain.ThresholdCrossing) { crossings = append(crossings, c) })

	// 0.2 per tick: above 0.25 from tick 2, two ticks of occupancy fire at
	// tick 3. Further ticks above the value must not re-fire.
	for i := 0; i < 5; i++ {
		e.ApplyExposure("c1", "desert", 1)
	}
	if len(crossings) != 1 {
		t.Fatalf("expected 1 crossing, got %d", len(crossings))
	}
	if crossings[0].Kind != domain.ThresholdMinorAdaptation || crossings[0].CreatureID != "c1" {
		t.Fatalf("unexpected crossing %+v", crossings[0])
	}

	// Let the stress fall below the value: the band re-arms.
	e.Dissipate("c1", 1)  // clears engaged flags
	e.Dissipate("c1", 10) // decays to zero

	// Cumulative occupancy survives the re-arm, so the band fires as soon as
	// the stress is back above the value.
	e.ApplyExposure("c1", "desert", 1)
	e.ApplyExposure("c1", "desert", 1)
	if len(crossings) != 2 {
		t.Fatalf("expected re-armed band to fire again, got %d crossings", len(crossings))
	}
}

func TestThreshold_DissipateDoesNotAdvanceOccupancy(t *testing.T) {
	e := NewEngine(testDefs(t, heatStressor()), Config{
		Thresholds: map[domain.ThresholdKind]domain.ThresholdConfig{
			domain.ThresholdMinorAdaptation: {Value: 0.15, Duration: 4, RequiresContinuous: true},
		},
	}, nil)

	var crossings []domain.ThresholdCrossing
	e.OnThreshold(func(c domain.ThresholdCrossing) { crossings = append(crossings, c) })

	// A full tick cycle is exposure then dissipation over the same interval.
	// Occupancy must advance once per simulated time unit, not twice.
	for i := 0; i < 3; i++ {
		e.ApplyExposure("c1", "desert", 1)
		e.Dissipate("c1", 1)
	}
	if len(crossings) != 0 {
		t.Fatalf("band with duration 4 fired within 3 time units: %+v", crossings)
	}
	e.ApplyExposure("c1", "desert", 1)
	if len(crossings) != 1 {
		t.Fatalf("expected crossing after 4 time units above the value, got %d", len(crossings))
	}
}

func TestDissipate_AccumulatedTracksRemainingIntensity(t *testing.T) {
	fast := heatStressor()
	fast.DissipationRate = 1.0
	slow := domain.Stressor{
		ID:               "chill",
		Type:             domain.StressEnvironmental,
		AccumulationRate: 0.2,
		DissipationRate:  0.05,
		Continuous:       true,
	}
	e := NewEngine(testDefs(t, fast, slow), Config{}, nil)

	e.ApplyExposure("c1", "desert", 1) // 0.2 each, accumulated 0.4
	e.Dissipate("c1", 1)               // clears engaged flags
	e.Dissipate("c1", 1)               // heat drops its remaining 0.2, chill drops 0.05

	snap, _ := e.Snapshot("c1")
	if len(snap.Stressors) != 1 || snap.Stressors[0].ID != "chill" {
		t.Fatalf("expected only chill to remain: %+v", snap.Stressors)
	}
	// The fully decayed stressor must give back only what it held, not its
	// whole dissipation quantum.
	if math.Abs(snap.AccumulatedLevel-0.15) > 1e-9 {
		t.Errorf("accumulated = %f, want 0.15", snap.AccumulatedLevel)
	}
}

func TestThreshold_ContinuousResetOnDip(t *testing.T) {
	e := NewEngine(testDefs(t, heatStressor()), Config{
		Thresholds: map[domain.ThresholdKind]domain.ThresholdConfig{
			domain.ThresholdSynthesisEnabled: {Value: 0.3, Duration: 4, RequiresContinuous: true},
		},
	}, nil)

	var crossings []domain.ThresholdCrossing
	e.OnThreshold(func(c domain.ThresholdCrossing) { crossings = append(crossings, c) })

	e.ApplyExposure("c1", "desert", 2) // 0.4, continuous occupancy 2
	e.Dissipate("c1", 1)               // engaged cleared, occupancy unchanged
	e.Dissipate("c1", 2)               // decays to zero; continuous occupancy resets

	// Back above the value the continuous timer starts over; without the
	// reset the accumulated 5 units would have fired already.
	e.ApplyExposure("c1", "desert", 2)
	e.ApplyExposure("c1", "desert", 1)
	if len(crossings) != 0 {
		t.Fatalf("continuous occupancy must reset on dips, got %d crossings", len(crossings))
	}
	e.ApplyExposure("c1", "desert", 1)
	if len(crossings) != 1 {
		t.Fatalf("expected crossing after 4 continuous ticks, got %d", len(crossings))
	}
}

func TestCritical_MarksExtinctAndRejectsExposure(t *testing.T) {
	s := heatStressor()
	s.AccumulationRate = 0.6
	e := NewEngine(testDefs(t, s), Config{
		Thresholds: map[domain.ThresholdKind]domain.ThresholdConfig{
			domain.ThresholdCritical: {Value: 0.5, Duration: 1, RequiresContinuous: true},
		},
	}, nil)

	var extinctID string
	e.OnExtinction(func(creatureID string, stress float64) { extinctID = creatureID })

	if err := e.ApplyExposure("c1", "desert", 1); err != nil {
		t.Fatalf("exposure: %v", err)
	}
	if extinctID != "c1" {
		t.Fatal("extinction callback did not fire")
	}
	snap, _ := e.Snapshot("c1")
	if !snap.Extinct {
		t.Fatal("snapshot must report extinction")
	}

	err := e.ApplyExposure("c1", "desert", 1)
	if !errors.Is(err, domain.ErrCreatureExtinct) {
		t.Fatalf("expected extinct rejection, got %v", err)
	}
}

func TestIsLethal(t *testing.T) {
	s := heatStressor()
	s.Lethal = true
	s.AccumulationRate = 1.0
	e := NewEngine(testDefs(t, s), Config{}, nil)

	if e.IsLethal("c1", "desert") {
		t.Fatal("no exposure yet")
	}
	e.ApplyExposure("c1", "desert", 1)
	if !e.IsLethal("c1", "desert") {
		t.Fatal("full-intensity lethal stressor must read lethal")
	}
}

func TestRemoveLedger(t *testing.T) {
	e := NewEngine(testDefs(t, heatStressor()), Config{}, nil)
	e.ApplyExposure("c1", "desert", 1)
	e.RemoveLedger("c1")
	if _, err := e.Snapshot("c1"); !errors.Is(err, domain.ErrUnknownCreature) {
		t.Fatal("ledger must be gone")
	}
}
