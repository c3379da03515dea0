package model

// User is the identity supplied by the authentication provider. There is
// no local user table: the OAuth provider is the source of truth and the
// remote asset store holds all durable user data.
type User struct {
	ID       string `json:"id"` // provider subject id
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	SignedIn bool   `json:"-"`
}
