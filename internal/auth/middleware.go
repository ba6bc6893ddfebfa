package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/guild-warden/pkg/util"
)

const operatorKey = "ops_operator"

// OpsMiddleware validates bearer tokens on the ops HTTP API.
type OpsMiddleware struct {
	tokens *TokenManager
}

// NewOpsMiddleware constructs middleware.
func NewOpsMiddleware(tokens *TokenManager) *OpsMiddleware {
	return &OpsMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *OpsMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(operatorKey, claims.Operator)
	return c.Next()
}

// OperatorFromContext returns the authenticated operator name.
func OperatorFromContext(c *fiber.Ctx) (string, bool) {
	operator, ok := c.Locals(operatorKey).(string)
	return operator, ok && operator != ""
}
