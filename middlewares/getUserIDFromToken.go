package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"cortexserver/auth"
	"cortexserver/models"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetUserIDFromToken extracts and validates the JWT carried by a request
// and returns the user ID it was issued for.
func GetUserIDFromToken(c *gin.Context, logger *zap.Logger) (uint, error) {
	tokenString := TokenFromRequest(c)

	if tokenString == "" {
		logger.Error("Token string is empty")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return 0, fmt.Errorf("token is required")
	}

	claims, err := ParseClaims(tokenString)
	if err != nil {
		logger.Error("Failed to parse JWT token", zap.Error(err))
		return 0, err
	}
	return claims.UserID, nil
}

// TokenFromRequest reads the token from the Authorization header, falling
// back to the "token" query parameter for websocket upgrades (browsers
// cannot set headers on those).
func TokenFromRequest(c *gin.Context) string {
	tokenString := c.GetHeader("Authorization")
	if strings.HasPrefix(tokenString, "Bearer ") {
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	}
	if tokenString == "" {
		tokenString = c.Query("token")
	}
	return tokenString
}

// ParseClaims validates a raw token string and returns its claims.
func ParseClaims(tokenString string) (*models.MyClaims, error) {
	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return auth.JwtKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
