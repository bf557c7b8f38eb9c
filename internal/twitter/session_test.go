package twitter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/feeddrop/feeddrop/internal/feed"
	"github.com/feeddrop/feeddrop/pkg/config"
)

// makeJWT builds an unsigned JWT; the guard reads claims without verifying
func makeJWT(t *testing.T, sub string, exp time.Time) string {
	t.Helper()

	encode := func(v interface{}) string {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal claims: %v", err)
		}
		return base64.RawURLEncoding.EncodeToString(data)
	}

	header := encode(map[string]string{"alg": "none", "typ": "JWT"})
	claims := map[string]interface{}{"sub": sub}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	return header + "." + encode(claims) + "."
}

func guardFixture(t *testing.T, token string) (*Guard, string) {
	t.Helper()

	tokenFile := filepath.Join(t.TempDir(), "session.jwt")
	if token != "" {
		if err := os.WriteFile(tokenFile, []byte(token), 0o600); err != nil {
			t.Fatalf("failed to write token file: %v", err)
		}
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	return NewGuard(&config.SessionConfig{TokenFile: tokenFile}, client), tokenFile
}

func TestGuardLoadsStoredJWT(t *testing.T) {
	token := makeJWT(t, "u1", time.Now().Add(time.Hour))
	guard, _ := guardFixture(t, token)

	if got := guard.Token(); got != token {
		t.Errorf("Token() = %q, want the stored token", got)
	}
	if got := guard.CurrentUserID(); got != "u1" {
		t.Errorf("CurrentUserID() = %q, want the JWT subject", got)
	}
}

func TestGuardDropsExpiredToken(t *testing.T) {
	token := makeJWT(t, "u1", time.Now().Add(-time.Hour))
	guard, _ := guardFixture(t, token)

	if got := guard.Token(); got != "" {
		t.Errorf("expired token should be dropped, got %q", got)
	}
	if got := guard.CurrentUserID(); got != "" {
		t.Errorf("expired token should leave no owner, got %q", got)
	}
}

func TestGuardOpaqueTokenRecallsOwner(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "session.jwt")
	if err := os.WriteFile(tokenFile, []byte("opaque-bearer-token\n"), 0o600); err != nil {
		t.Fatalf("failed to write token file: %v", err)
	}
	if err := os.WriteFile(tokenFile+".owner", []byte("u7\n"), 0o600); err != nil {
		t.Fatalf("failed to write owner file: %v", err)
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	guard := NewGuard(&config.SessionConfig{TokenFile: tokenFile}, client)

	if got := guard.Token(); got != "opaque-bearer-token" {
		t.Errorf("Token() = %q, opaque tokens are stored as is", got)
	}
	if got := guard.CurrentUserID(); got != "u7" {
		t.Errorf("CurrentUserID() = %q, want the remembered owner", got)
	}
}

func TestGuardMissingTokenFile(t *testing.T) {
	guard, _ := guardFixture(t, "")

	if got := guard.Token(); got != "" {
		t.Errorf("Token() = %q, want empty without a stored session", got)
	}

	_, err := guard.Verify(context.Background())
	if !errors.Is(err, feed.ErrUnauthorized) {
		t.Errorf("Verify() without a session = %v, want ErrUnauthorized", err)
	}
}

func TestGuardVerifyRemembersOwner(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "session.jwt")
	if err := os.WriteFile(tokenFile, []byte("opaque-bearer-token"), 0o600); err != nil {
		t.Fatalf("failed to write token file: %v", err)
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id_str": "u9", "screen_name": "gopher"}`))
	})
	guard := NewGuard(&config.SessionConfig{TokenFile: tokenFile}, client)

	user, err := guard.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if user.ID != "u9" {
		t.Errorf("user.ID = %q, want u9", user.ID)
	}
	if got := guard.CurrentUserID(); got != "u9" {
		t.Errorf("CurrentUserID() = %q, want u9 after verification", got)
	}

	// The owner survives a restart even though the token is opaque
	restarted := NewGuard(&config.SessionConfig{TokenFile: tokenFile}, client)
	if got := restarted.CurrentUserID(); got != "u9" {
		t.Errorf("restarted CurrentUserID() = %q, want the remembered owner", got)
	}
}

func TestGuardRevoke(t *testing.T) {
	token := makeJWT(t, "u1", time.Now().Add(time.Hour))
	guard, tokenFile := guardFixture(t, token)

	if err := guard.Revoke(context.Background()); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if guard.Token() != "" || guard.CurrentUserID() != "" {
		t.Error("revoked session should be forgotten")
	}
	if _, err := os.Stat(tokenFile); !os.IsNotExist(err) {
		t.Error("revoked token file should be removed")
	}

	// Revoking twice is fine
	if err := guard.Revoke(context.Background()); err != nil {
		t.Fatalf("second Revoke() error = %v", err)
	}
}

func TestParseTokenClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	sub, gotExp := parseTokenClaims(makeJWT(t, "u1", exp))
	if sub != "u1" {
		t.Errorf("subject = %q, want u1", sub)
	}
	if !gotExp.Equal(exp) {
		t.Errorf("expiry = %v, want %v", gotExp, exp)
	}

	sub, gotExp = parseTokenClaims("not-a-jwt")
	if sub != "" || !gotExp.IsZero() {
		t.Errorf("opaque token should yield nothing, got %q %v", sub, gotExp)
	}
}
