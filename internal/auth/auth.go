// Package auth checks the admin token a gateway expects on every admin API
// call. The fake gateway enforces it so the client's token handling is tested
// end to end.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminTokenHeader carries the admin token on admin API requests.
const AdminTokenHeader = "Kong-Admin-Token"

var ErrUnauthorized = errors.New("auth: unauthorized")

type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one shared token. An empty Token accepts
// nothing.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// RequireAdminToken rejects requests whose admin token header does not
// validate, answering 401 with a gateway-style message body.
func RequireAdminToken(v Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(AdminTokenHeader))
		if err := v.Validate(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials. Token or User credentials required"})
			return
		}
		c.Next()
	}
}
