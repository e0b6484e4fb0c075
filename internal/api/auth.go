package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userKey = "hideout.user"

// AuthOpts controls how dashboard requests are attributed to a user.
// With a JWTSecret, an HS256 bearer token's "sub" claim is the user.
// Without one, UserHeader is trusted as set by the fronting auth gateway.
type AuthOpts struct {
	JWTSecret  []byte
	UserHeader string
}

// authenticate resolves the caller's user ID or aborts with 401.
func authenticate(opts AuthOpts) gin.HandlerFunc {
	if opts.UserHeader == "" {
		opts.UserHeader = "X-User-ID"
	}
	return func(c *gin.Context) {
		var (
			user string
			err  error
		)
		if len(opts.JWTSecret) > 0 {
			user, err = bearerSubject(c.GetHeader("Authorization"), opts.JWTSecret)
		} else {
			user = strings.TrimSpace(c.GetHeader(opts.UserHeader))
			if user == "" {
				err = errors.New("missing user header")
			}
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// bearerSubject validates an "Authorization: Bearer <jwt>" header and
// returns the token subject.
func bearerSubject(header string, secret []byte) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errors.New("missing bearer token")
	}
	token, err := jwt.Parse(strings.TrimSpace(raw), func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("api: parse token: %w", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("api: token has no subject")
	}
	return sub, nil
}

// currentUser returns the user resolved by authenticate.
func currentUser(c *gin.Context) string {
	return c.GetString(userKey)
}
