package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/huangang/codecritic/pkg/logger"
	"github.com/huangang/codecritic/pkg/response"
)

const TokenHeader = "X-Token"

var errInvalidToken = response.NewBadRequest("X-Token header invalid")

// TokenAuth is the shared-secret check for the X-Token header. It fails closed: with no
// secret configured nothing matches unless AllowAnonymous is set.
type TokenAuth struct {
	Secret         string
	AllowAnonymous bool
}

// Valid reports whether token is accepted.
func (a TokenAuth) Valid(token string) bool {
	if a.Secret == "" {
		return a.AllowAnonymous
	}
	return subtle.ConstantTimeCompare([]byte(a.Secret), []byte(token)) == 1
}

// TokenRequired rejects requests whose X-Token header is not accepted by auth.
func TokenRequired(auth TokenAuth) gin.HandlerFunc {
	switch {
	case auth.Secret == "" && auth.AllowAnonymous:
		logger.Warn().Msg("[Auth] No secret token configured and anonymous access allowed, API is open")
	case auth.Secret == "":
		logger.Warn().Msg("[Auth] No secret token configured, every protected request will be rejected")
	}
	return func(c *gin.Context) {
		if !auth.Valid(c.GetHeader(TokenHeader)) {
			response.Abort(c, errInvalidToken)
			return
		}
		c.Next()
	}
}

// AbortInvalidToken writes the same rejection TokenRequired uses.
func AbortInvalidToken(c *gin.Context) {
	response.Abort(c, errInvalidToken)
}
