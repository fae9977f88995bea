package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the signed-in principal of a request.
type Identity struct {
	UserID  string `json:"userId,omitempty"`
	AdminID string `json:"adminId,omitempty"`
	Role    Role   `json:"role"`
}

func (i Identity) IsUser() bool {
	return i.Role == RoleUser && i.UserID != ""
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin && i.AdminID != ""
}

// SessionTokenRequest is sent by the platform to mint a session token.
type SessionTokenRequest struct {
	UserID  string `json:"userId"`
	AdminID string `json:"adminId"`
}

// SessionTokenResponse carries a freshly minted session token.
type SessionTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  Identity  `json:"identity"`
}
