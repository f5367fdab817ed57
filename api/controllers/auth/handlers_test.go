package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/liminara/storefront/api/middleware"
	"github.com/liminara/storefront/internal/auth"
	"github.com/liminara/storefront/internal/otp"
	"github.com/liminara/storefront/internal/users"
	"github.com/liminara/storefront/pkg/enums"
	pkgerrors "github.com/liminara/storefront/pkg/errors"
)

type stubAuthService struct {
	requested   auth.RequestOTPRequest
	verified    auth.VerifyOTPRequest
	loggedOut   string
	refreshWith string
	meID        uuid.UUID
	err         error
}

func (s *stubAuthService) RequestOTP(ctx context.Context, req auth.RequestOTPRequest) (*otp.Issued, error) {
	s.requested = req
	if s.err != nil {
		return nil, s.err
	}
	return &otp.Issued{Channel: enums.OTPChannelEmail, ExpiresIn: 300}, nil
}

func (s *stubAuthService) VerifyOTP(ctx context.Context, req auth.VerifyOTPRequest) (*auth.LoginResponse, error) {
	s.verified = req
	if s.err != nil {
		return nil, s.err
	}
	return &auth.LoginResponse{Token: "access", RefreshToken: "refresh", User: &users.UserDTO{ID: uuid.New(), Role: enums.UserRoleCustomer}}, nil
}

func (s *stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	s.meID = userID
	if s.err != nil {
		return nil, s.err
	}
	return &users.UserDTO{ID: userID, Name: "Ada", Role: enums.UserRoleCustomer}, nil
}

func (s *stubAuthService) Logout(ctx context.Context, accessToken string) error {
	s.loggedOut = accessToken
	return s.err
}

func (s *stubAuthService) Refresh(ctx context.Context, accessToken string, req auth.RefreshRequest) (*auth.TokenResponse, error) {
	s.refreshWith = accessToken + "/" + req.RefreshToken
	if s.err != nil {
		return nil, s.err
	}
	return &auth.TokenResponse{Token: "access-2", RefreshToken: "refresh-2"}, nil
}

func TestAuthRequestOTP(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/request-otp", strings.NewReader(`{"identifier":"ada@example.com"}`))
	rec := httptest.NewRecorder()
	AuthRequestOTP(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", rec.Code)
	}
	if svc.requested.Identifier != "ada@example.com" {
		t.Fatalf("identifier not forwarded: %q", svc.requested.Identifier)
	}
	var envelope struct {
		Data otp.Issued `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.ExpiresIn != 300 {
		t.Fatalf("unexpected expiresIn %d", envelope.Data.ExpiresIn)
	}
}

func TestAuthRequestOTPRejectsMissingIdentifier(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/request-otp", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	AuthRequestOTP(&stubAuthService{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAuthVerifyOTP(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-otp", strings.NewReader(`{"identifier":"ada@example.com","code":"123456"}`))
	rec := httptest.NewRecorder()
	AuthVerifyOTP(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data auth.LoginResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Token != "access" || envelope.Data.RefreshToken != "refresh" {
		t.Fatalf("unexpected tokens: %+v", envelope.Data)
	}
}

func TestAuthVerifyOTPRejectsNonNumericCode(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-otp", strings.NewReader(`{"identifier":"ada@example.com","code":"abcdef"}`))
	rec := httptest.NewRecorder()
	AuthVerifyOTP(&stubAuthService{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAuthVerifyOTPPropagatesUnauthorized(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid passcode")}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-otp", strings.NewReader(`{"identifier":"ada@example.com","code":"123456"}`))
	rec := httptest.NewRecorder()
	AuthVerifyOTP(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthMeUsesContextUser(t *testing.T) {
	svc := &stubAuthService{}
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec := httptest.NewRecorder()
	AuthMe(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.meID != userID {
		t.Fatalf("expected %s got %s", userID, svc.meID)
	}
}

func TestAuthLogout(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	AuthLogout(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if svc.loggedOut != "tok" {
		t.Fatalf("expected token forwarded, got %q", svc.loggedOut)
	}

	rec = httptest.NewRecorder()
	AuthLogout(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestAuthRefresh(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", strings.NewReader(`{"refreshToken":"r1"}`))
	req.Header.Set("Authorization", "Bearer a1")
	rec := httptest.NewRecorder()
	AuthRefresh(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.refreshWith != "a1/r1" {
		t.Fatalf("unexpected refresh inputs %q", svc.refreshWith)
	}
}

func TestAuthHandlersWithoutService(t *testing.T) {
	rec := httptest.NewRecorder()
	AuthMe(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
