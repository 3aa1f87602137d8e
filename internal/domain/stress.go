package domain

import "time"

// StressorType groups stressors for resistance bookkeeping.
type StressorType string

const (
	StressThermal       StressorType = "thermal"
	StressChemical      StressorType = "chemical"
	StressPhysical      StressorType = "physical"
	StressResource      StressorType = "resource"
	StressCompetition   StressorType = "competition"
	StressEnvironmental StressorType = "environmental"
)

// ResistanceProfile configures how a creature builds resistance to a stressor.
// AdaptationDelay is the continuous exposure time, in ticks of deltaTime,
// before resistance starts accruing.
type ResistanceProfile struct {
	Base             float64
	AcquisitionRate  float64
	AdaptationDelay  float64
	ResistantTraits  []string
	VulnerableTraits []string
}

// EffectProfile describes what a stressor pushes the creature toward once
// adaptation thresholds fire.
type EffectProfile struct {
	PossibleAdaptations []string
	TraitPressures      map[string]float64
}

// Stressor is an immutable definition of one environmental pressure source.
type Stressor struct {
	ID               string
	Name             string
	Type             StressorType
	BaseIntensity    float64
	AccumulationRate float64
	DissipationRate  float64
	Continuous       bool
	Lethal           bool
	Resistance       ResistanceProfile
	Effects          EffectProfile
}

// ThresholdKind identifies one of the ordered stress thresholds.
type ThresholdKind int

const (
	ThresholdMinorAdaptation ThresholdKind = iota
	ThresholdMajorAdaptation
	ThresholdSynthesisEnabled
	ThresholdExtinctionRisk
	ThresholdCritical
)

// String returns the snake_case threshold name.
func (k ThresholdKind) String() string {
	switch k {
	case ThresholdMinorAdaptation:
		return "minor_adaptation"
	case ThresholdMajorAdaptation:
		return "major_adaptation"
	case ThresholdSynthesisEnabled:
		return "synthesis_enabled"
	case ThresholdExtinctionRisk:
		return "extinction_risk"
	case ThresholdCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ThresholdKinds lists all threshold kinds in ascending severity order.
var ThresholdKinds = []ThresholdKind{
	ThresholdMinorAdaptation,
	ThresholdMajorAdaptation,
	ThresholdSynthesisEnabled,
	ThresholdExtinctionRisk,
	ThresholdCritical,
}

// ThresholdConfig configures when a threshold fires. Duration is the time the
// effective stress must sit at or above Value: contiguously when
// RequiresContinuous, total time-at-level otherwise.
type ThresholdConfig struct {
	Value              float64
	Duration           float64
	RequiresContinuous bool
}

// ThresholdCrossing is emitted when a threshold fires. Each crossing fires at
// most once per continuous occupancy of the band.
type ThresholdCrossing struct {
	CreatureID string
	Kind       ThresholdKind
	Stress     float64
	At         time.Time
}

// ActiveStressorSnapshot is a read-only view of one ledger entry.
type ActiveStressorSnapshot struct {
	ID         string
	Type       StressorType
	Intensity  float64
	ActiveTime float64
	Continuous bool
}

// StressSnapshot is a read-only view of a creature's stress ledger.
type StressSnapshot struct {
	CreatureID       string
	EffectiveStress  float64
	AccumulatedLevel float64
	Stressors        []ActiveStressorSnapshot
	Resistances      map[StressorType]float64
	Extinct          bool
}
