package dto

// Event is the structured message pushed over the duplex connection. The
// Type field discriminates which of the remaining fields are meaningful.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`

	// Progress fields (companies_start, companies_progress, companies_complete)
	Current int `json:"current,omitempty"`
	Total   int `json:"total,omitempty"`

	// Record payloads (company_with_contact, contact_added, complete)
	CompanyID   int64     `json:"company_id,omitempty"`
	CompanyData *Company  `json:"company_data,omitempty"`
	ContactData *Contact  `json:"contact_data,omitempty"`
	Companies   []Company `json:"companies,omitempty"`

	// Link outcome (contact_linked)
	Success *bool `json:"success,omitempty"`
}

// TriggerRequest is the body of the job-start request.
type TriggerRequest struct {
	SessionID string `json:"session_id"`
}

// TriggerResponse is the acceptance (or already-running indicator) returned
// by the trigger endpoint.
type TriggerResponse struct {
	Message          string `json:"message"`
	Status           string `json:"status,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
	ContactsCreated  int    `json:"contacts_created,omitempty"`
	CompaniesCreated int    `json:"companies_created,omitempty"`
	SuccessfulLinks  int    `json:"successful_links,omitempty"`
}
