package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"salesflow/internal/transport/httpdto"
	salesflow_errors "salesflow/pkg/errors"
	"salesflow/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AdminRoles may call the outbox administration endpoints.
var AdminRoles = []string{"SUPERADMIN", "ADMIN", "MANAGER", "ACCOUNTANT"}

type AdminClaims struct {
	UserID string `json:"sub"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth checks an HS256 bearer token carrying one of AdminRoles. An empty secret
// disables the check.
func AdminAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}

		claims, err := ParseAdminToken(secret, extractBearer(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}
		if !slices.Contains(AdminRoles, claims.Role) {
			c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), logger.ActorIdKey, claims.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func ParseAdminToken(secret []byte, tokenString string) (AdminClaims, error) {
	if tokenString == "" {
		return AdminClaims{}, salesflow_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, salesflow_errors.ErrUnauthorized
		}
		return secret, nil
	})
	if err != nil {
		return AdminClaims{}, salesflow_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AdminClaims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return AdminClaims{}, salesflow_errors.ErrUnauthorized
	}
	return *claims, nil
}

// IssueAdminToken signs a token for operator tooling and tests.
func IssueAdminToken(secret []byte, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
