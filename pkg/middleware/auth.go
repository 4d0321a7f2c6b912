package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/trawell/rides-service/pkg/common"
	"github.com/trawell/rides-service/pkg/models"
)

// Claims represents JWT claims issued by the accounts service.
type Claims struct {
	UserID      uuid.UUID          `json:"user_id"`
	Email       string             `json:"email"`
	AccountType models.AccountType `json:"account_type"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates JWT bearer tokens and stores the authenticated
// actor in the request context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "authorization required")
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			common.ErrorResponse(c, http.StatusUnauthorized, "invalid authorization header format")
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})

		if err != nil || !token.Valid {
			common.ErrorResponse(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			common.ErrorResponse(c, http.StatusUnauthorized, "invalid token claims")
			c.Abort()
			return
		}

		accountType := claims.AccountType
		if accountType == "" {
			accountType = models.AccountPrivate
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("account_type", accountType)

		c.Next()
	}
}

// GetUserID extracts the authenticated user ID from context.
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userID, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, common.ErrUnauthorized
	}
	return userID.(uuid.UUID), nil
}

// GetAccountType extracts the authenticated account type from context.
func GetAccountType(c *gin.Context) (models.AccountType, error) {
	accountType, exists := c.Get("account_type")
	if !exists {
		return "", common.ErrUnauthorized
	}
	return accountType.(models.AccountType), nil
}

// GetActor builds the authenticated actor from context.
func GetActor(c *gin.Context) (models.Actor, error) {
	userID, err := GetUserID(c)
	if err != nil {
		return models.Actor{}, err
	}
	accountType, err := GetAccountType(c)
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{ID: userID, AccountType: accountType}, nil
}
