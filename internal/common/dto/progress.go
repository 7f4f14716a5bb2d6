package dto

// JobPhase is the coarse stage of the batch-generation job.
type JobPhase string

const (
	PhaseIdle      JobPhase = "idle"
	PhaseCompanies JobPhase = "companies"
	PhaseContacts  JobPhase = "contacts"
	PhaseComplete  JobPhase = "complete"
	PhaseError     JobPhase = "error"
)

// JobProgress is the current position of the generation job within a phase.
// A fresh start event resets it to zero, so consumers must not assume
// monotonicity across phase boundaries.
type JobProgress struct {
	Phase   JobPhase `json:"phase"`
	Current int      `json:"current"`
	Total   int      `json:"total"`
	Message string   `json:"message,omitempty"`
}

// GenerationStatus is the tri-state summary returned by the status endpoint.
type GenerationStatus struct {
	GenerationActive bool `json:"generation_active"`
	GenerationPaused bool `json:"generation_paused"`
}
