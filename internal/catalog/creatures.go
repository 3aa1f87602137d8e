package catalog

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crescentlabs/crucible/internal/domain"
)

// SeedCreature is one creature from a population seed file, with its initial
// state already assembled.
type SeedCreature struct {
	ID          string
	Name        string
	Environment string
	State       *domain.CreatureState
}

type creatureFile struct {
	Creatures []creatureDoc `yaml:"creatures"`
}

type creatureDoc struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Environment string             `yaml:"environment"`
	Features    map[string]float64 `yaml:"features"`
	Abilities   []abilityDoc       `yaml:"abilities"`
	Traits      []traitDoc         `yaml:"traits"`
	Behaviors   map[string]float64 `yaml:"behaviors"`
}

type traitDoc struct {
	ID       string  `yaml:"id"`
	Form     string  `yaml:"form"`
	Strength float64 `yaml:"strength"`
}

// LoadCreatures parses and validates a population seed file.
func LoadCreatures(path string) ([]SeedCreature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, catalogErr("read creature file: %v", err)
	}

	var file creatureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, catalogErr("parse creature file: %v", err)
	}

	seen := make(map[string]bool, len(file.Creatures))
	out := make([]SeedCreature, 0, len(file.Creatures))
	for i, doc := range file.Creatures {
		if doc.ID == "" {
			return nil, catalogErr("creature %d: id is required", i)
		}
		if seen[doc.ID] {
			return nil, catalogErr("creature %q: duplicate id", doc.ID)
		}
		seen[doc.ID] = true
		if doc.Environment == "" {
			return nil, catalogErr("creature %q: environment is required", doc.ID)
		}

		state := domain.NewCreatureState()
		for name, value := range doc.Features {
			state.Physical.Features[name] = value
		}
		for _, ab := range doc.Abilities {
			if ab.Name == "" {
				return nil, catalogErr("creature %q: ability without a name", doc.ID)
			}
			state.Ability.Abilities[ab.Name] = domain.Ability{
				Name:    ab.Name,
				Power:   ab.Power,
				OneShot: ab.OneShot,
			}
		}
		for _, tr := range doc.Traits {
			if tr.ID == "" || tr.Form == "" {
				return nil, catalogErr("creature %q: trait needs id and form", doc.ID)
			}
			if tr.Strength < domain.MinTraitStrength {
				return nil, catalogErr("creature %q: trait %q strength %.2f below minimum %.2f",
					doc.ID, tr.ID, tr.Strength, domain.MinTraitStrength)
			}
			state.Trait.Traits[tr.ID] = domain.Trait{ID: tr.ID, Form: tr.Form, Strength: tr.Strength}
		}
		for name, weight := range doc.Behaviors {
			state.Behavior.Behaviors[name] = weight
		}

		out = append(out, SeedCreature{
			ID:          doc.ID,
			Name:        doc.Name,
			Environment: doc.Environment,
			State:       state,
		})
	}
	return out, nil
}
