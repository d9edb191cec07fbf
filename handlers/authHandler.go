package handlers

import (
	"net/http"
	"time"

	"cortexserver/middlewares"
	"cortexserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthHandler issues and refreshes identity tokens. With no token in the
// body a new identity is created; with a valid token close to expiry a
// refreshed one is returned.
func AuthHandler(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	var request models.AuthRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Error("Auth request bind error", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if request.Token != "" {
		claims, err := middlewares.ParseClaims(request.Token)
		if err != nil {
			logger.Error("Token validation error", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		// Refresh when less than an hour remains.
		if time.Until(time.Unix(claims.ExpiresAt, 0)) < time.Hour {
			newToken, _, err := middlewares.GenerateToken(db, claims.Nickname, claims.SubscriptionStatus, claims.UserID)
			if err != nil {
				logger.Error("Token generation error", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": newToken, "userId": claims.UserID})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "token valid", "userId": claims.UserID})
		return
	}

	token, userID, err := middlewares.GenerateToken(db, request.Nickname, request.SubscriptionStatus, 0)
	if err != nil {
		logger.Error("Token generation error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "userId": userID})
}
