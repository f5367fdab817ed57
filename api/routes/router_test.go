package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/liminara/storefront/internal/auth"
	"github.com/liminara/storefront/internal/cart"
	"github.com/liminara/storefront/internal/otp"
	"github.com/liminara/storefront/internal/users"
	pkgAuth "github.com/liminara/storefront/pkg/auth"
	"github.com/liminara/storefront/pkg/auth/session"
	"github.com/liminara/storefront/pkg/config"
	"github.com/liminara/storefront/pkg/enums"
	"github.com/liminara/storefront/pkg/logger"
	"github.com/liminara/storefront/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type stubAuthService struct{}

func (stubAuthService) RequestOTP(ctx context.Context, req auth.RequestOTPRequest) (*otp.Issued, error) {
	return &otp.Issued{Channel: enums.OTPChannelEmail, ExpiresIn: 300}, nil
}

func (stubAuthService) VerifyOTP(ctx context.Context, req auth.VerifyOTPRequest) (*auth.LoginResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	return &users.UserDTO{ID: userID, Role: enums.UserRoleCustomer}, nil
}

func (stubAuthService) Logout(ctx context.Context, accessToken string) error { return nil }

func (stubAuthService) Refresh(ctx context.Context, accessToken string, req auth.RefreshRequest) (*auth.TokenResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

type countingCartService struct {
	mu   sync.Mutex
	adds int
}

func (s *countingCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*cart.ItemDTO, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adds++
	return &cart.ItemDTO{ID: uuid.New(), ProductID: productID, Quantity: qty}, true, nil
}

func (s *countingCartService) GetCart(ctx context.Context, userID uuid.UUID) (*cart.CartDTO, error) {
	return &cart.CartDTO{Items: []cart.ItemDTO{}}, nil
}

func (s *countingCartService) SetQuantity(ctx context.Context, userID, itemID uuid.UUID, qty int) (*cart.ItemDTO, error) {
	return nil, nil
}

func (s *countingCartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return nil
}

type memoryRedis struct {
	mu     sync.Mutex
	data   map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string { return "idem:" + scope + ":" + id }

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

func (m *memoryRedis) Ping(context.Context) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "liminara", ExpirationMinutes: 30, RefreshTokenTTLMinutes: 60},
		AuthRateLimit: config.AuthRateLimitConfig{
			RequestOTPWindow:     time.Minute,
			RequestOTPIPLimit:    2,
			RequestOTPIdentLimit: 2,
		},
	}
}

type harness struct {
	cfg    *config.Config
	router http.Handler
	cart   *countingCartService
	reg    *prometheus.Registry
	userID uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	h := &harness{cfg: cfg, cart: &countingCartService{}, reg: reg, userID: uuid.New()}
	h.router = NewRouter(Deps{
		Config:   cfg,
		Logger:   logger.Nop(),
		Metrics:  metrics.NewStorefront(reg),
		Gatherer: reg,
		DB:       stubPinger{},
		Redis:    newMemoryRedis(),
		Sessions: stubSessions{},
		Auth:     stubAuthService{},
		Cart:     h.cart,
	})
	return h
}

func (h *harness) token(t *testing.T, role enums.UserRole) string {
	t.Helper()
	tok, err := pkgAuth.MintAccessToken(h.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: h.userID,
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestHealthReady(t *testing.T) {
	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestCartRejectsMissingJWT(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/api/cart", "/api/wishlist", "/api/auth/me"} {
		rec := h.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, rec.Code)
		}
	}
}

func TestCartSucceedsWithJWT(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+h.token(t, enums.UserRoleCustomer))
	rec := h.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	h := newHarness(t)
	for _, tc := range []struct {
		path string
		role enums.UserRole
		want int
	}{
		{"/api/admin/ping", enums.UserRoleCustomer, http.StatusForbidden},
		{"/api/admin/ping", enums.UserRoleAgent, http.StatusForbidden},
		{"/api/admin/ping", enums.UserRoleAdmin, http.StatusOK},
		{"/api/agent/ping", enums.UserRoleCustomer, http.StatusForbidden},
		{"/api/agent/ping", enums.UserRoleAgent, http.StatusOK},
		{"/api/agent/ping", enums.UserRoleAdmin, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+h.token(t, tc.role))
		rec := h.do(req)
		if rec.Code != tc.want {
			t.Fatalf("%s as %s: expected %d got %d", tc.path, tc.role, tc.want, rec.Code)
		}
	}
}

func TestCartAddReplaysWithIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, enums.UserRoleCustomer)
	body := `{"productId":"` + uuid.NewString() + `","quantity":2}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "guest-entry-1:2")
		rec := h.do(req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d", i, rec.Code)
		}
		if i == 1 && rec.Header().Get("Idempotent-Replayed") != "true" {
			t.Fatal("expected second attempt to be replayed")
		}
	}
	if h.cart.adds != 1 {
		t.Fatalf("expected a single add, got %d", h.cart.adds)
	}
}

func TestRequestOTPIsRateLimited(t *testing.T) {
	h := newHarness(t)
	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/request-otp", strings.NewReader(`{"identifier":"ada@example.com"}`))
		req.RemoteAddr = "10.0.0.1:1234"
		last = h.do(req).Code
		if i < 2 && last != http.StatusAccepted {
			t.Fatalf("attempt %d: expected 202 got %d", i, last)
		}
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", last)
	}
}

func TestMetricsEndpointExposesRequestHistogram(t *testing.T) {
	h := newHarness(t)
	h.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `http_request_duration_seconds_count{method="GET",route="/health/live",status="2xx"}`) {
		t.Fatalf("expected request histogram in scrape output:\n%s", rec.Body.String())
	}
}
