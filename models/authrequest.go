package models

// AuthRequest is the body of POST /auth/token. When a token is present it
// is validated (and refreshed close to expiry); otherwise a new identity is
// created and a fresh token issued.
type AuthRequest struct {
	Token              string `json:"token,omitempty"`
	Nickname           string `json:"nickname,omitempty"`
	SubscriptionStatus string `json:"subscriptionStatus,omitempty"`
}
