package middlewares

import (
	"time"

	"cortexserver/auth"
	"cortexserver/models"

	jwt "github.com/dgrijalva/jwt-go"
	"gorm.io/gorm"
)

const tokenLifetime = 72 * time.Hour

// GenerateToken issues a signed JWT for a user. When existingUserID is 0 a
// new User row is created first; otherwise the ID is reused (token refresh).
func GenerateToken(db *gorm.DB, nickname, subscriptionStatus string, existingUserID uint) (string, uint, error) {
	userID := existingUserID
	if userID == 0 {
		var err error
		userID, err = GenerateUserID(db, nickname, subscriptionStatus)
		if err != nil {
			return "", 0, err
		}
	}

	claims := &models.MyClaims{
		UserID:             userID,
		Nickname:           nickname,
		SubscriptionStatus: subscriptionStatus,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(tokenLifetime).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(auth.JwtKey)

	return tokenString, userID, err
}

// GenerateUserID creates a User row and returns its auto-incremented ID.
func GenerateUserID(db *gorm.DB, nickname, subscriptionStatus string) (uint, error) {
	if nickname == "" {
		nickname = "anonymous"
	}
	if subscriptionStatus == "" {
		subscriptionStatus = "free"
	}
	user := models.User{
		Nickname:           nickname,
		SubscriptionStatus: subscriptionStatus,
	}
	if err := db.Create(&user).Error; err != nil {
		return 0, err
	}
	return user.ID, nil
}
