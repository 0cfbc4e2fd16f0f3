package models

import "time"

type User struct {
	ID            int64
	FullName      string
	Email         string
	Username      string
	PassHash      []byte
	AvatarURL     string
	CoverImageURL string
	RefreshToken  *string
	CreatedAt     time.Time
}

// Sanitize returns a copy safe for external exposure: no password hash,
// no refresh token.
func (u User) Sanitize() User {
	u.PassHash = nil
	u.RefreshToken = nil
	return u
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type UserRegistered struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}
