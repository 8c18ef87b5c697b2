package auth

import "time"

type User struct {
	ID           string
	Username     string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the user shape allowed to leave the trust boundary.
// The password hash is never part of it.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email}
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RefreshTokenRecord is the single persisted session-renewal credential for a
// user. The store keeps at most one row per user; issuing a new refresh token
// displaces the previous one.
type RefreshTokenRecord struct {
	UserID    string
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
