package cnst

// StateKey names an entry in the cross-tab state store.
type StateKey string

const (
	KeySessionID         StateKey = "sessionId"
	KeyWSConnected       StateKey = "wsConnected"
	KeyLoading           StateKey = "loading"
	KeyStatus            StateKey = "status"
	KeyStatusType        StateKey = "statusType"
	KeyCompanies         StateKey = "companies"
	KeyReconnectAttempts StateKey = "reconnectAttempts"
	KeyProgress          StateKey = "progress"
)

func (k StateKey) String() string {
	return string(k)
}

// Status classifications consumed by the rendering layer.
const (
	StatusTypeLoading = "loading"
	StatusTypeSuccess = "success"
	StatusTypeError   = "error"
	StatusTypeInfo    = "info"
)

// SessionQueryParam is the query parameter carrying the session identifier
// in the tab address.
const SessionQueryParam = "session_id"
