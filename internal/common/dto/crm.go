package dto

// Contact is a single CRM contact as displayed by the rendering layer.
type Contact struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Post     string `json:"post,omitempty"`
}

// Company is a CRM company with its ordered contact list. Records are owned
// by the state store; the rendering layer reads them and never mutates.
type Company struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Phone    string    `json:"phone,omitempty"`
	Email    string    `json:"email,omitempty"`
	Contacts []Contact `json:"contacts"`
}
