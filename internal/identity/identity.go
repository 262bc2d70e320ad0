// Package identity tracks who is using the device and whether the session
// can reach the list service. It is the engine's source for actingUser
// attribution and the IsOnline/IsAuthenticated flags in sync status.
package identity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession is returned when no device token has been installed.
var ErrNoSession = errors.New("no active session")

// Claims are the fields restock reads from the device session token.
type Claims struct {
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// Provider holds the current device session. Online state is flipped by the
// sync worker based on whether remote calls succeed.
type Provider struct {
	mu sync.RWMutex

	signingKey []byte
	token      string
	claims     *Claims
	online     bool
}

func NewProvider(signingKey []byte) *Provider {
	return &Provider{signingKey: signingKey}
}

// SetToken installs a device session token after verifying its signature
// and expiry.
func (p *Provider) SetToken(token string) error {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return fmt.Errorf("parse session token: %w", err)
	}

	p.mu.Lock()
	p.token = token
	p.claims = claims
	p.mu.Unlock()
	return nil
}

// ClearToken drops the session, returning the device to local-only mode.
func (p *Provider) ClearToken() {
	p.mu.Lock()
	p.token = ""
	p.claims = nil
	p.mu.Unlock()
}

// Token implements remote.TokenSource.
func (p *Provider) Token() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == "" {
		return "", ErrNoSession
	}
	return p.token, nil
}

// UserID returns the subject of the current session, or "" when logged out.
func (p *Provider) UserID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.claims == nil {
		return ""
	}
	return p.claims.Subject
}

// DisplayName returns the acting user's display name for mutation
// attribution. Falls back to the subject when the token has no name claim.
func (p *Provider) DisplayName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.claims == nil {
		return ""
	}
	if p.claims.DisplayName != "" {
		return p.claims.DisplayName
	}
	return p.claims.Subject
}

// IsAuthenticated reports whether a non-expired session token is installed.
func (p *Provider) IsAuthenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.claims == nil {
		return false
	}
	if exp := p.claims.ExpiresAt; exp != nil && exp.Before(time.Now()) {
		return false
	}
	return true
}

// SetOnline records the result of the most recent remote call.
func (p *Provider) SetOnline(online bool) {
	p.mu.Lock()
	p.online = online
	p.mu.Unlock()
}

func (p *Provider) IsOnline() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}
