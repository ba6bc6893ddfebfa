package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/api/dto"
	"github.com/spec-kit/guild-warden/internal/api/http/handlers"
	"github.com/spec-kit/guild-warden/internal/auth"
	"github.com/spec-kit/guild-warden/internal/config"
	"github.com/spec-kit/guild-warden/internal/events"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/observability"
	"github.com/spec-kit/guild-warden/internal/repository"
	"github.com/spec-kit/guild-warden/internal/scheduler"
	"github.com/spec-kit/guild-warden/internal/service"
	"github.com/spec-kit/guild-warden/pkg/clock"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	clk := clock.Fake(time.Unix(1000, 0))
	adapter := gateway.NewMemoryAdapter()
	adapter.AddGuild("guild-1")

	hash, err := auth.HashPassword("hunter2", 4)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	opsCfg := config.OpsConfig{
		JWTSecret:         "test-secret",
		TokenTTLMinutes:   5,
		AdminPasswordHash: hash,
	}

	gate := auth.NewGate()
	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()
	tickets := service.NewTicketService(service.TicketDependencies{
		Gateway:    adapter,
		Gate:       gate,
		Dispatcher: dispatcher,
		Tasks:      scheduler.NewTable(clk),
		Clock:      clk,
		Logger:     logger,
	})
	moderation := service.NewModerationService(service.ModerationDependencies{
		Gateway:    adapter,
		Gate:       gate,
		Dispatcher: dispatcher,
		Tasks:      scheduler.NewTable(clk),
		Clock:      clk,
		Logger:     logger,
	})

	tokens := auth.NewTokenManager(opsCfg.JWTSecret, opsCfg.TokenTTLMinutes)
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("guild-warden", "test", nil, nil),
		Ops: handlers.NewOpsHandler(opsCfg, tokens, tickets, moderation,
			repository.NewBackupRepository(t.TempDir()),
			repository.NewConfigRepository(t.TempDir()),
			nil, metrics),
		OpsMiddleware: auth.NewOpsMiddleware(tokens),
	})
	return app
}

func TestOpsLoginAndProtectedRoute(t *testing.T) {
	app := newTestApp(t)

	body, _ := json.Marshal(dto.OperatorLoginRequest{Operator: "alice", Password: "hunter2"})
	req := httptest.NewRequest(http.MethodPost, "/ops/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var login dto.OperatorLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if login.Token == "" {
		t.Fatalf("login returned empty token")
	}

	req = httptest.NewRequest(http.MethodGet, "/ops/tickets", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("tickets request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tickets status = %d", resp.StatusCode)
	}
}

func TestOpsLoginRejectsBadPassword(t *testing.T) {
	app := newTestApp(t)

	body, _ := json.Marshal(dto.OperatorLoginRequest{Operator: "alice", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/ops/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login status = %d, want 401", resp.StatusCode)
	}
}

func TestOpsRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/ops/mutes", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("mutes request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("mutes status = %d, want 401", resp.StatusCode)
	}
}

func TestHealthLive(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if err != nil {
		t.Fatalf("live request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("live status = %d", resp.StatusCode)
	}
}
