package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feeddrop/feeddrop/internal/cache"
	"github.com/feeddrop/feeddrop/internal/db"
	"github.com/feeddrop/feeddrop/internal/feed"
	"github.com/feeddrop/feeddrop/internal/netmon"
	"github.com/feeddrop/feeddrop/pkg/config"
)

type staticSource struct{ page feed.Page }

func (s *staticSource) FetchPage(context.Context, string, feed.Cursor) (feed.Page, error) {
	return s.page, nil
}

type staticGuard struct{}

func (staticGuard) Verify(context.Context) (*feed.Author, error) {
	return &feed.Author{ID: "owner-1", Handle: "owner"}, nil
}
func (staticGuard) CurrentUserID() string        { return "owner-1" }
func (staticGuard) Revoke(context.Context) error { return nil }

type noAvatars struct{}

func (noAvatars) FetchAvatar(context.Context, feed.Author) ([]byte, error) {
	return nil, nil
}
func (noAvatars) ProbeAvatar(context.Context, feed.Author) (bool, error) {
	return true, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *feed.Engine, *cache.ImageCache) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, "ERROR")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := db.NewStore(database)

	images := cache.NewImageCache()
	monitor := netmon.New("http://127.0.0.1:0/unused", time.Hour, nil)

	source := &staticSource{page: feed.Page{{
		ID:        "1",
		Text:      "hello",
		CreatedAt: time.Now().UTC(),
		Author:    feed.Author{ID: "a1", Handle: "gopher"},
	}}}

	engine := feed.New(feed.Options{
		Source:      source,
		CacheSource: feed.NewStoreSource(store),
		Store:       store,
		Guard:       staticGuard{},
		Net:         monitor,
		Images:      images,
		Avatars:     noAvatars{},
		PageSize:    20,
	})
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("engine start error = %v", err)
	}
	t.Cleanup(engine.WaitBackground)

	router := gin.New()
	NewRouter(engine, images, monitor, database).SetupRoutes(router)
	return router, engine, images
}

func doRequest(t *testing.T, router *gin.Engine, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]interface{}
	if len(w.Body.Bytes()) > 0 && w.Header().Get("Content-Type") != "image/png" {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("response to %s %s is not JSON: %v", method, path, err)
		}
	}
	return w, body
}

func TestHealthRoute(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w, body := doRequest(t, router, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", w.Code)
	}
	if body["status"] != "OK" || body["database"] != "OK" {
		t.Errorf("health body = %v", body)
	}
}

func TestFeedRoute(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w, body := doRequest(t, router, http.MethodGet, "/api/feed")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/feed = %d, want 200", w.Code)
	}
	if body["state"] != string(feed.StateSynced) {
		t.Errorf("state = %v, want synced", body["state"])
	}
	if body["owner"] != "owner-1" {
		t.Errorf("owner = %v, want owner-1", body["owner"])
	}
	pages, ok := body["pages"].([]interface{})
	if !ok || len(pages) != 1 {
		t.Errorf("pages = %v, want one page", body["pages"])
	}
}

func TestStatusRoute(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w, body := doRequest(t, router, http.MethodGet, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/status = %d, want 200", w.Code)
	}
	if body["online"] != true {
		t.Errorf("online = %v, want true", body["online"])
	}
}

func TestSearchRouteRequiresQuery(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w, _ := doRequest(t, router, http.MethodGet, "/api/search")
	if w.Code != http.StatusBadRequest {
		t.Errorf("GET /api/search without q = %d, want 400", w.Code)
	}
}

func TestAvatarRoute(t *testing.T) {
	router, _, images := newTestRouter(t)

	w, _ := doRequest(t, router, http.MethodGet, "/api/avatars/ghost")
	if w.Code != http.StatusNotFound {
		t.Errorf("GET missing avatar = %d, want 404", w.Code)
	}

	images.Insert("a1", []byte("png-bytes"))
	w, _ = doRequest(t, router, http.MethodGet, "/api/avatars/a1")
	if w.Code != http.StatusOK {
		t.Fatalf("GET cached avatar = %d, want 200", w.Code)
	}
	if w.Body.String() != "png-bytes" {
		t.Errorf("avatar body = %q", w.Body.String())
	}
}

func TestLogoutRoute(t *testing.T) {
	router, engine, _ := newTestRouter(t)

	w, body := doRequest(t, router, http.MethodPost, "/api/logout")
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/logout = %d, want 200", w.Code)
	}
	if body["state"] != string(feed.StateUnauthenticated) {
		t.Errorf("state = %v, want unauthenticated", body["state"])
	}
	if len(engine.Pages()) != 0 {
		t.Error("logout should clear the feed")
	}
}
