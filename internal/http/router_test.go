package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/certification-backend/internal/data/repos"
	"github.com/yungbote/certification-backend/internal/domain/certification"
	httpH "github.com/yungbote/certification-backend/internal/http/handlers"
	httpMW "github.com/yungbote/certification-backend/internal/http/middleware"
	"github.com/yungbote/certification-backend/internal/platform/ctxutil"
	"github.com/yungbote/certification-backend/internal/platform/logger"
	"github.com/yungbote/certification-backend/internal/services"
)

type mineOnly struct {
	services.CertificationQueries
	caller uuid.UUID
}

func (m *mineOnly) ListMine(ctx context.Context, _ repos.Page) ([]*certification.Request, error) {
	m.caller = ctxutil.UserID(ctx)
	return []*certification.Request{}, nil
}

func TestRouterAuthBoundary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	auth := services.NewAuthService(log, "test-secret", "", time.Minute)
	q := &mineOnly{}

	r := NewRouter(RouterConfig{
		Log:                  log,
		RequestTimeout:       time.Second,
		AuthMiddleware:       httpMW.NewAuthMiddleware(log, auth),
		CertificationHandler: httpH.NewCertificationHandler(log, nil, q),
		HealthHandler:        httpH.NewHealthHandler(),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "ok" {
		t.Fatalf("healthcheck: want=200 ok got=%d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/certification-requests/mine", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: want=%d got=%d", http.StatusUnauthorized, w.Code)
	}

	userID := uuid.New()
	token, err := auth.IssueAccessToken(userID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/certification-requests/mine", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated: want=%d got=%d body=%s", http.StatusOK, w.Code, w.Body.String())
	}
	if q.caller != userID {
		t.Fatalf("caller: want=%s got=%s", userID, q.caller)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{HealthHandler: httpH.NewHealthHandler()})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: want=%d got=%d", http.StatusNotFound, w.Code)
	}
}

func TestServerStopsOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(logger.NewNop(), RouterConfig{HealthHandler: httpH.NewHealthHandler()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0", time.Second) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("server did not stop")
	}
}
