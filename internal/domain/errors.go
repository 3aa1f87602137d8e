package domain

import "fmt"

// EngineError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// Is matches engine errors by code, so detailed errors built with
// NewEngineError compare equal to their band sentinel under errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	return ok && t.Code == e.Code
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Change engine errors (-32010 to -32039) ----

var (
	ErrEmptyChange      = &EngineError{Code: -32010, Message: "change carries no effect"}
	ErrChangeRejected   = &EngineError{Code: -32011, Message: "change failed validation"}
	ErrHistoryEmpty     = &EngineError{Code: -32012, Message: "no change available to undo"}
	ErrNotInvertible    = &EngineError{Code: -32013, Message: "most recent change has no computable inverse"}
	ErrBatchNotOpen     = &EngineError{Code: -32014, Message: "no batch is open"}
	ErrBatchInvalid     = &EngineError{Code: -32015, Message: "batch rejected: projected state is invalid"}
	ErrMissingChangeID  = &EngineError{Code: -32016, Message: "change metadata has no id"}
	ErrUnknownSubTarget = &EngineError{Code: -32017, Message: "change references unknown sub-state target"}
)

// ---- Stress engine errors (-32040 to -32069) ----

var (
	ErrUnknownStressor    = &EngineError{Code: -32040, Message: "stressor is not defined"}
	ErrUnknownEnvironment = &EngineError{Code: -32041, Message: "environment has no mapped stressors"}
	ErrUnknownCreature    = &EngineError{Code: -32042, Message: "creature has no stress ledger"}
	ErrCreatureExtinct    = &EngineError{Code: -32043, Message: "creature is extinct"}
)

// ---- Synthesis engine errors (-32070 to -32099) ----

var (
	ErrSynthesisRequirements  = &EngineError{Code: -32070, Message: "synthesis requirements not met"}
	ErrSynthesisStability     = &EngineError{Code: -32071, Message: "stability too low for synthesis"}
	ErrSynthesisIncompatible  = &EngineError{Code: -32072, Message: "no synthesis path for source form and catalyst"}
	ErrSynthesisEnvironmental = &EngineError{Code: -32073, Message: "environment does not permit synthesis"}
	ErrCatalystWeak           = &EngineError{Code: -32074, Message: "catalyst intensity below minimum useful strength"}
	ErrSystemicFailure        = &EngineError{Code: -32075, Message: "illegal synthesis stage transition"}
	ErrSynthesisInProgress    = &EngineError{Code: -32076, Message: "trait already has a synthesis in progress"}
	ErrSynthesisIncomplete    = &EngineError{Code: -32077, Message: "synthesis has not reached completion"}
	ErrUnknownTrait           = &EngineError{Code: -32078, Message: "trait has no synthesis state"}
)

// ---- Catalog / store / config errors (-32130 to -32159) ----

var (
	ErrStoreInit      = &EngineError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery     = &EngineError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite     = &EngineError{Code: -32132, Message: "store write failed"}
	ErrCatalogInvalid = &EngineError{Code: -32133, Message: "catalog definitions failed validation"}
	ErrConfigInvalid  = &EngineError{Code: -32136, Message: "invalid configuration"}
)
