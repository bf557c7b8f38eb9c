package twitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/feeddrop/feeddrop/internal/feed"
	"github.com/feeddrop/feeddrop/pkg/config"
	"github.com/feeddrop/feeddrop/pkg/logging"
)

// Guard implements the engine's SessionGuard over a bearer token stored on
// disk by the (external) authorization flow. The guard never creates
// credentials; it only verifies, names and revokes them.
type Guard struct {
	tokenFile string
	client    *Client
	logger    *zap.Logger

	mu    sync.Mutex
	token string
	owner string
}

// NewGuard loads the stored session, if any, and returns a guard bound to
// the API client. A missing token file is not an error; Verify will reject.
func NewGuard(cfg *config.SessionConfig, client *Client) *Guard {
	g := &Guard{
		tokenFile: cfg.TokenFile,
		client:    client,
		logger:    logging.WithComponent("session-guard"),
	}
	g.loadStoredSession()
	return g
}

// Token returns the current bearer token, "" when logged out
func (g *Guard) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// CurrentUserID names the stored session's owner without a network round
// trip: from the token's JWT subject when the token is a JWT, otherwise from
// the owner id remembered at the last successful verification.
func (g *Guard) CurrentUserID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner
}

// Verify checks the stored session against the remote API. A rejection
// carries feed.ErrUnauthorized; transport failures pass through unchanged so
// the engine can treat them as inconclusive.
func (g *Guard) Verify(ctx context.Context) (*feed.Author, error) {
	g.mu.Lock()
	token := g.token
	g.mu.Unlock()

	if token == "" {
		return nil, fmt.Errorf("no stored session: %w", feed.ErrUnauthorized)
	}

	user, err := g.client.VerifyCredentials(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.owner = user.ID
	g.mu.Unlock()
	g.rememberOwner(user.ID)

	return user, nil
}

// Revoke forgets the stored session
func (g *Guard) Revoke(context.Context) error {
	g.mu.Lock()
	g.token = ""
	g.owner = ""
	g.mu.Unlock()

	if err := os.Remove(g.tokenFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	os.Remove(g.ownerFile())

	g.logger.Info("Session revoked")
	return nil
}

// loadStoredSession reads the token file and derives the owner id. Expired
// JWT tokens are dropped immediately instead of bouncing off the API.
func (g *Guard) loadStoredSession() {
	data, err := os.ReadFile(g.tokenFile)
	if err != nil {
		if !os.IsNotExist(err) {
			g.logger.Warn("Failed to read token file", zap.Error(err))
		}
		return
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return
	}

	owner, expiry := parseTokenClaims(token)
	if !expiry.IsZero() && expiry.Before(time.Now()) {
		g.logger.Info("Stored session expired", zap.Time("expiry", expiry))
		return
	}
	if owner == "" {
		owner = g.recallOwner()
	}

	g.mu.Lock()
	g.token = token
	g.owner = owner
	g.mu.Unlock()
}

// parseTokenClaims decodes subject and expiry from a JWT bearer token
// without verifying its signature; verification belongs to the API. Opaque
// tokens yield nothing.
func parseTokenClaims(token string) (subject string, expiry time.Time) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", time.Time{}
	}

	if sub, err := claims.GetSubject(); err == nil {
		subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiry = exp.Time
	}
	return subject, expiry
}

// rememberOwner persists the verified owner id next to the token so an
// offline start can name its feed when the token is opaque
func (g *Guard) rememberOwner(owner string) {
	if err := os.WriteFile(g.ownerFile(), []byte(owner), 0o600); err != nil {
		g.logger.Warn("Failed to remember session owner", zap.Error(err))
	}
}

func (g *Guard) recallOwner() string {
	data, err := os.ReadFile(g.ownerFile())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (g *Guard) ownerFile() string {
	dir, file := filepath.Split(g.tokenFile)
	return filepath.Join(dir, file+".owner")
}
