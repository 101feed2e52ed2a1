package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pocketbudget/entitlement-engine/pkg/account"
)

// ErrInvalidToken is returned for malformed, unsigned or expired bearer tokens.
var ErrInvalidToken = errors.New("invalid bearer token")

// Claims carry the auth and subscription state issued by the identity provider.
// Role and subscription always come from the token. Unset guest and demo flags
// leave the client-reported value untouched.
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role,omitempty"`
	Subscribed *bool  `json:"subscribed,omitempty"`
	Guest      *bool  `json:"guest,omitempty"`
	Demo       *bool  `json:"demo,omitempty"`
}

// Apply overlays the claims on acct.
func (c *Claims) Apply(acct account.State) account.State {
	if c == nil {
		return acct
	}
	if c.Subject != "" {
		acct.UserID = c.Subject
	}
	acct.Role = c.Role
	acct.IsSubscribed = c.Subscribed != nil && *c.Subscribed
	if c.Guest != nil {
		acct.IsGuest = *c.Guest
	}
	if c.Demo != nil {
		acct.IsDemo = *c.Demo
	}
	return acct
}

// ClaimsParser verifies HS256 bearer tokens.
type ClaimsParser struct {
	secret []byte
}

// NewClaimsParser returns nil for an empty secret, which disables token handling.
func NewClaimsParser(secret string) *ClaimsParser {
	if secret == "" {
		return nil
	}
	return &ClaimsParser{secret: []byte(secret)}
}

// Parse validates a raw token.
func (p *ClaimsParser) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Anonymous strips the fields only a verified token may set.
func Anonymous(acct account.State) account.State {
	acct.UserID = ""
	acct.Role = ""
	acct.IsSubscribed = false
	return acct
}

// FromRequest reads the Authorization header. It returns nil claims when the
// parser is disabled or the request carries no token.
func (p *ClaimsParser) FromRequest(r *http.Request) (*Claims, error) {
	if p == nil {
		return nil, nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, fmt.Errorf("%w: expected 'Bearer <token>'", ErrInvalidToken)
	}
	return p.Parse(strings.TrimSpace(parts[1]))
}
