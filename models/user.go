package models

// Credentials are used to log in an existing user
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration holds the fields required to register a new student
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	RegNo    string `json:"regNo"`
	Course   string `json:"course"`
	Batch    string `json:"batch"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Profile holds the structure of the authenticated user's profile
type Profile struct {
	ID     string `json:"_id,omitempty"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Course string `json:"course,omitempty"`
	Batch  string `json:"batch,omitempty"`
	RegNo  string `json:"regNo,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Identity is the current user as known to a chat session
type Identity struct {
	ID   string
	Name string
	Role string
}

// IsZero reports whether no identity is known
func (i Identity) IsZero() bool {
	return i.ID == ""
}
