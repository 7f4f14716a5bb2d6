package cnst

// EventType discriminates inbound generation events pushed by the server.
type EventType string

const (
	EventStart              EventType = "start"
	EventCompaniesStart     EventType = "companies_start"
	EventCompaniesProgress  EventType = "companies_progress"
	EventCompanyCreated     EventType = "company_created"
	EventCompaniesComplete  EventType = "companies_complete"
	EventCompanyWithContact EventType = "company_with_contact"
	EventContactAdded       EventType = "contact_added"
	EventContactLinked      EventType = "contact_linked"
	EventComplete           EventType = "complete"
	EventError              EventType = "error"
)

func (t EventType) String() string {
	return string(t)
}

// Control vocabulary spoken on the duplex connection. These are literal
// text frames, not JSON events.
const (
	// HeartbeatRequest is sent by the client on a fixed period while open.
	HeartbeatRequest = "ping"
	// HeartbeatReply is the server's answer; it is consumed by the channel
	// and never reaches the dispatcher.
	HeartbeatReply = "pong"
	// SessionAnnouncePrefix prefixes the session announcement, the first
	// control message after every successful open.
	SessionAnnouncePrefix = "session_id:"
)

// TriggerStatusAlreadyRunning is returned by the trigger endpoint when a
// generation job for the session is already active.
const TriggerStatusAlreadyRunning = "already_running"
