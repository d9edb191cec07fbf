package models

import (
	jwt "github.com/dgrijalva/jwt-go"
)

// MyClaims is the JWT claim set carried by every issued token.
type MyClaims struct {
	UserID             uint   `json:"userid"`
	Nickname           string `json:"nickname"`
	SubscriptionStatus string `json:"subscriptionStatus"`
	jwt.StandardClaims
}
