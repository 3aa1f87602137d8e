// Package ipc provides the HTTP inspection and control API for the Crucible
// engine.
package ipc

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/crescentlabs/crucible/internal/creature"
	"github.com/crescentlabs/crucible/internal/domain"
	"github.com/crescentlabs/crucible/internal/store"
)

// Handler holds all dependencies for the HTTP handlers. DB may be nil when
// the simulation runs without persistence; history endpoints then 404.
type Handler struct {
	Sim       *creature.Simulation
	DB        *sql.DB
	ChangeLog *store.ChangeLogRepo
	Stress    *store.StressEventRepo
	Synthesis *store.SynthesisEventRepo
}

// CreatureSummary is one row of GET /api/v1/creatures.
type CreatureSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Environment string  `json:"environment"`
	Alive       bool    `json:"alive"`
	Stress      float64 `json:"stress"`
}

// CreatureView is the response for GET /api/v1/creature/{creatureID}.
type CreatureView struct {
	CreatureSummary
	Features   map[string]float64 `json:"features"`
	Abilities  []AbilityView      `json:"abilities"`
	Traits     []TraitView        `json:"traits"`
	Behaviors  map[string]float64 `json:"behaviors"`
	HistoryLen int                `json:"history_len"`
}

// AbilityView is the wire form of an ability.
type AbilityView struct {
	Name    string  `json:"name"`
	Power   float64 `json:"power"`
	OneShot bool    `json:"one_shot"`
}

// TraitView is the wire form of a trait.
type TraitView struct {
	ID         string  `json:"id"`
	Form       string  `json:"form"`
	Strength   float64 `json:"strength"`
	Suppressed bool    `json:"suppressed"`
}

// StressView is the response for GET /api/v1/creature/{creatureID}/stress.
type StressView struct {
	EffectiveStress  float64            `json:"effective_stress"`
	AccumulatedLevel float64            `json:"accumulated_level"`
	Extinct          bool               `json:"extinct"`
	Stressors        []StressorView     `json:"stressors"`
	Resistances      map[string]float64 `json:"resistances"`
}

// StressorView is one active ledger entry.
type StressorView struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Intensity  float64 `json:"intensity"`
	ActiveTime float64 `json:"active_time"`
}

// SynthesisView is the response for
// GET /api/v1/creature/{creatureID}/synthesis/{traitID}.
type SynthesisView struct {
	TraitID          string  `json:"trait_id"`
	CurrentForm      string  `json:"current_form"`
	Stage            string  `json:"stage"`
	Level            int     `json:"level"`
	StabilityClass   string  `json:"stability_class"`
	CompletionLevel  float64 `json:"completion_level"`
	StabilityFactor  float64 `json:"stability_factor"`
	CatalystStrength float64 `json:"catalyst_strength"`
}

// ChangeRequest is the body for POST /api/v1/creature/{creatureID}/change.
// Absent deltas leave their sub-state untouched.
type ChangeRequest struct {
	Source      string        `json:"source"`
	Priority    int           `json:"priority"`
	Description string        `json:"description"`
	Tags        []string      `json:"tags"`
	Physical    *PhysicalBody `json:"physical"`
	Ability     *AbilityBody  `json:"ability"`
	Trait       *TraitBody    `json:"trait"`
	Behavior    *BehaviorBody `json:"behavior"`
}

// PhysicalBody mirrors domain.PhysicalDelta on the wire.
type PhysicalBody struct {
	AddFeatures           map[string]float64 `json:"add_features"`
	RemoveFeatures        []string           `json:"remove_features"`
	FeatureModifiers      map[string]float64 `json:"feature_modifiers"`
	AdaptabilityModifiers map[string]float64 `json:"adaptability_modifiers"`
}

// AbilityBody mirrors domain.AbilityDelta on the wire.
type AbilityBody struct {
	AddAbilities    []AbilityView      `json:"add_abilities"`
	RemoveAbilities []string           `json:"remove_abilities"`
	PowerModifiers  map[string]float64 `json:"power_modifiers"`
}

// TraitBody mirrors domain.TraitDelta on the wire.
type TraitBody struct {
	AddTraits         []TraitView        `json:"add_traits"`
	RemoveTraits      []string           `json:"remove_traits"`
	StrengthModifiers map[string]float64 `json:"strength_modifiers"`
	TransformForms    map[string]string  `json:"transform_forms"`
	SuppressTraits    []string           `json:"suppress_traits"`
	UnsuppressTraits  []string           `json:"unsuppress_traits"`
}

// BehaviorBody mirrors domain.BehaviorDelta on the wire.
type BehaviorBody struct {
	AddBehaviors            map[string]float64 `json:"add_behaviors"`
	RemoveBehaviors         []string           `json:"remove_behaviors"`
	BehaviorModifiers       map[string]float64 `json:"behavior_modifiers"`
	StressResponseModifiers map[string]float64 `json:"stress_response_modifiers"`
}

// ChangeResponse reports the outcome of a submitted change.
type ChangeResponse struct {
	ChangeID string   `json:"change_id"`
	Outcome  string   `json:"outcome"`
	Reasons  []string `json:"reasons,omitempty"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"population": h.Sim.Population(),
	})
}

// ListCreatures handles GET /api/v1/creatures.
func (h *Handler) ListCreatures(w http.ResponseWriter, r *http.Request) {
	creatures := h.Sim.Creatures()
	out := make([]CreatureSummary, 0, len(creatures))
	for _, c := range creatures {
		out = append(out, h.summarize(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) summarize(c *creature.Creature) CreatureSummary {
	return CreatureSummary{
		ID:          c.ID,
		Name:        c.Name,
		Environment: c.Environment,
		Alive:       c.Alive(),
		Stress:      h.Sim.StressEngine().CalculateEffectiveStress(c.ID),
	}
}

// GetCreature handles GET /api/v1/creature/{creatureID}.
func (h *Handler) GetCreature(w http.ResponseWriter, r *http.Request) {
	c, ok := h.Sim.Creature(r.PathValue("creatureID"))
	if !ok {
		writeError(w, domain.ErrUnknownCreature)
		return
	}
	state := c.StateView()

	view := CreatureView{
		CreatureSummary: h.summarize(c),
		Features:        state.Physical.Features,
		Behaviors:       state.Behavior.Behaviors,
		HistoryLen:      c.Changes().HistoryLen(),
	}
	for _, ab := range state.Ability.Abilities {
		view.Abilities = append(view.Abilities, AbilityView{Name: ab.Name, Power: ab.Power, OneShot: ab.OneShot})
	}
	for id, tr := range state.Trait.Traits {
		view.Traits = append(view.Traits, TraitView{
			ID:         id,
			Form:       tr.Form,
			Strength:   tr.Strength,
			Suppressed: state.Trait.Suppressed[id],
		})
	}
	writeJSON(w, http.StatusOK, view)
}

// GetStress handles GET /api/v1/creature/{creatureID}/stress.
func (h *Handler) GetStress(w http.ResponseWriter, r *http.Request) {
	creatureID := r.PathValue("creatureID")
	if _, ok := h.Sim.Creature(creatureID); !ok {
		writeError(w, domain.ErrUnknownCreature)
		return
	}
	snap, err := h.Sim.StressEngine().Snapshot(creatureID)
	if err != nil {
		// The creature exists but has no ledger yet: report zero stress.
		writeJSON(w, http.StatusOK, StressView{Resistances: map[string]float64{}})
		return
	}

	view := StressView{
		EffectiveStress:  snap.EffectiveStress,
		AccumulatedLevel: snap.AccumulatedLevel,
		Extinct:          snap.Extinct,
		Resistances:      make(map[string]float64, len(snap.Resistances)),
	}
	for _, s := range snap.Stressors {
		view.Stressors = append(view.Stressors, StressorView{
			ID:         s.ID,
			Type:       string(s.Type),
			Intensity:  s.Intensity,
			ActiveTime: s.ActiveTime,
		})
	}
	for t, res := range snap.Resistances {
		view.Resistances[string(t)] = res
	}
	writeJSON(w, http.StatusOK, view)
}

// GetSynthesis handles GET /api/v1/creature/{creatureID}/synthesis/{traitID}.
func (h *Handler) GetSynthesis(w http.ResponseWriter, r *http.Request) {
	c, ok := h.Sim.Creature(r.PathValue("creatureID"))
	if !ok {
		writeError(w, domain.ErrUnknownCreature)
		return
	}
	snap, err := c.Synthesis().Snapshot(r.PathValue("traitID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SynthesisView{
		TraitID:          snap.TraitID,
		CurrentForm:      snap.CurrentForm,
		Stage:            snap.Stage.String(),
		Level:            snap.Level,
		StabilityClass:   snap.StabilityClass.String(),
		CompletionLevel:  snap.Progress.CompletionLevel,
		StabilityFactor:  snap.Progress.StabilityFactor,
		CatalystStrength: snap.Progress.CatalystStrength,
	})
}

// SubmitChange handles POST /api/v1/creature/{creatureID}/change.
func (h *Handler) SubmitChange(w http.ResponseWriter, r *http.Request) {
	c, ok := h.Sim.Creature(r.PathValue("creatureID"))
	if !ok {
		writeError(w, domain.ErrUnknownCreature)
		return
	}

	var req ChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}

	ch := req.toDomain()
	res := c.SubmitChange(ch)
	writeJSON(w, http.StatusOK, ChangeResponse{
		ChangeID: res.ChangeID,
		Outcome:  string(res.Outcome),
		Reasons:  res.Reasons,
	})
}

// Undo handles POST /api/v1/creature/{creatureID}/undo.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	c, ok := h.Sim.Creature(r.PathValue("creatureID"))
	if !ok {
		writeError(w, domain.ErrUnknownCreature)
		return
	}
	if !c.Undo() {
		writeJSON(w, http.StatusConflict, APIError{
			Code:    domain.ErrNotInvertible.Code,
			Message: "nothing to undo",
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListChanges handles GET /api/v1/creature/{creatureID}/changes.
func (h *Handler) ListChanges(w http.ResponseWriter, r *http.Request) {
	creatureID := r.PathValue("creatureID")
	if h.DB == nil {
		writeJSON(w, http.StatusNotFound, APIError{Code: 404, Message: "persistence disabled"})
		return
	}
	rows, err := h.ChangeLog.ListByCreature(r.Context(), h.DB, creatureID)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []store.ChangeRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// StreamStress handles GET /api/v1/creature/{creatureID}/stress/stream (SSE).
func (h *Handler) StreamStress(w http.ResponseWriter, r *http.Request) {
	creatureID := r.PathValue("creatureID")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, APIError{Code: 500, Message: "streaming not supported"})
		return
	}
	if h.DB == nil {
		writeJSON(w, http.StatusNotFound, APIError{Code: 404, Message: "persistence disabled"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send the existing events, then poll for new ones.
	events, err := h.Stress.ListByCreature(r.Context(), h.DB, creatureID)
	if err != nil {
		writeSSEError(w, flusher, err)
		return
	}
	lastID := int64(0)
	for _, ev := range events {
		writeSSEEvent(w, flusher, ev)
		lastID = ev.ID
	}

	ctx := r.Context()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			all, err := h.Stress.ListByCreature(ctx, h.DB, creatureID)
			if err != nil {
				return
			}
			for _, ev := range all {
				if ev.ID <= lastID {
					continue
				}
				writeSSEEvent(w, flusher, ev)
				lastID = ev.ID
			}
		}
	}
}

func (req ChangeRequest) toDomain() domain.Change {
	ch := domain.Change{
		Metadata: domain.ChangeMetadata{
			ID:          uuid.NewString(),
			Source:      domain.ChangeSource(req.Source),
			Priority:    domain.ChangePriority(req.Priority),
			Description: req.Description,
			Tags:        req.Tags,
		},
	}
	if ch.Metadata.Source == "" {
		ch.Metadata.Source = domain.SourceManual
	}

	if req.Physical != nil {
		ch.Physical = &domain.PhysicalDelta{
			AddFeatures:           req.Physical.AddFeatures,
			RemoveFeatures:        req.Physical.RemoveFeatures,
			FeatureModifiers:      req.Physical.FeatureModifiers,
			AdaptabilityModifiers: req.Physical.AdaptabilityModifiers,
		}
	}
	if req.Ability != nil {
		delta := &domain.AbilityDelta{
			RemoveAbilities: req.Ability.RemoveAbilities,
			PowerModifiers:  req.Ability.PowerModifiers,
		}
		for _, ab := range req.Ability.AddAbilities {
			delta.AddAbilities = append(delta.AddAbilities, domain.Ability{
				Name:    ab.Name,
				Power:   ab.Power,
				OneShot: ab.OneShot,
			})
		}
		ch.Ability = delta
	}
	if req.Trait != nil {
		delta := &domain.TraitDelta{
			RemoveTraits:      req.Trait.RemoveTraits,
			StrengthModifiers: req.Trait.StrengthModifiers,
			TransformForms:    req.Trait.TransformForms,
			SuppressTraits:    req.Trait.SuppressTraits,
			UnsuppressTraits:  req.Trait.UnsuppressTraits,
		}
		for _, tr := range req.Trait.AddTraits {
			delta.AddTraits = append(delta.AddTraits, domain.Trait{
				ID:       tr.ID,
				Form:     tr.Form,
				Strength: tr.Strength,
			})
		}
		ch.Trait = delta
	}
	if req.Behavior != nil {
		ch.Behavior = &domain.BehaviorDelta{
			AddBehaviors:            req.Behavior.AddBehaviors,
			RemoveBehaviors:         req.Behavior.RemoveBehaviors,
			BehaviorModifiers:       req.Behavior.BehaviorModifiers,
			StressResponseModifiers: req.Behavior.StressResponseModifiers,
		}
	}
	return ch
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if engErr, ok := err.(*domain.EngineError); ok {
		status := http.StatusInternalServerError
		switch engErr.Code {
		case domain.ErrUnknownCreature.Code, domain.ErrUnknownTrait.Code, domain.ErrUnknownStressor.Code:
			status = http.StatusNotFound
		case domain.ErrCreatureExtinct.Code:
			status = http.StatusGone
		case domain.ErrSynthesisInProgress.Code:
			status = http.StatusConflict
		case domain.ErrSynthesisRequirements.Code, domain.ErrSynthesisStability.Code,
			domain.ErrSynthesisIncompatible.Code, domain.ErrCatalystWeak.Code:
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, APIError{Code: engErr.Code, Message: engErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}

func writeSSEEvent(w http.ResponseWriter, f http.Flusher, ev store.StressEventRow) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}

func writeSSEError(w http.ResponseWriter, f http.Flusher, err error) {
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
	f.Flush()
}
