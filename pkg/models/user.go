package models

// User is the account record returned by the auth endpoints.
type User struct {
	ID       FlexID `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// Session pairs a bearer token with the user it belongs to. Both are set
// together on a successful login and cleared together on logout.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Authenticated reports whether the session carries both a token and a user.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != "" && s.User != nil
}
