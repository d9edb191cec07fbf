package auth

import (
	"os"

	"cortexserver/models"

	jwt "github.com/dgrijalva/jwt-go"
)

// JwtKey signs every issued token. Set JWT_SECRET in production; the
// fallback only exists so local development works out of the box.
var JwtKey = []byte(secretFromEnv())

func secretFromEnv() string {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return s
	}
	return "cortex-dev-secret"
}

func IsValidToken(tokenString string) (bool, error) {
	claims := &models.MyClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return JwtKey, nil
	})

	if err != nil {
		return false, err
	}

	return token.Valid, nil
}
