package accounts

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/shopfront/internal/auth"
	"github.com/joao-fontenele/shopfront/internal/domain"
)

func newTestMux(svc *Service) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(svc, logger)
	mw := auth.NewMiddleware(svc.tokens, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/send-otp", h.HandleSendOTP)
	mux.HandleFunc("POST /api/auth/verify-otp", h.HandleVerifyOTP)
	mux.HandleFunc("POST /api/auth/register", h.HandleRegister)
	mux.HandleFunc("POST /api/auth/login-send-otp", h.HandleLoginSendOTP)
	mux.HandleFunc("POST /api/auth/login", h.HandleLogin)
	mux.HandleFunc("GET /api/auth/me", mw.Authenticate(h.HandleMe))
	return mux
}

func post(t *testing.T, mux http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_RegistrationFlow(t *testing.T) {
	mux := newTestMux(newTestService(&memUsers{}, newMemCodes(), WithEchoCodes(true)))

	rec := post(t, mux, "/api/auth/send-otp", `{"phone_number":"+91 98765 43210"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("send-otp: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var challenge map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&challenge); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if challenge["otp"] != "123456" || challenge["message"] != "OTP sent successfully" {
		t.Errorf("unexpected challenge: %v", challenge)
	}

	rec = post(t, mux, "/api/auth/verify-otp", `{"phone_number":"9876543210","otp":"123456"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-otp: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = post(t, mux, "/api/auth/register",
		`{"username":"asha","email":"asha@example.com","password":"secret1","phone_number":"9876543210","otp":"123456","role":"shopkeeper"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var session struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if session.User.Role != domain.RoleUser {
		t.Errorf("role must not be client controlled, got %s", session.User.Role)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("password hash must not be serialized")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
	var me domain.User
	if err := json.NewDecoder(rec.Body).Decode(&me); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if me.PhoneNumber != "9876543210" {
		t.Errorf("unexpected profile: %+v", me)
	}
}

func TestHandler_Errors(t *testing.T) {
	users := &memUsers{}
	_ = users.Create(context.Background(), &domain.User{Username: "x", Email: "x@example.com", PhoneNumber: "9000000000", Role: domain.RoleUser})
	mux := newTestMux(newTestService(users, newMemCodes()))

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"missing phone", "/api/auth/send-otp", `{}`, http.StatusBadRequest},
		{"short phone", "/api/auth/send-otp", `{"phone_number":"12345"}`, http.StatusBadRequest},
		{"phone already registered", "/api/auth/send-otp", `{"phone_number":"9000000000"}`, http.StatusBadRequest},
		{"login for unknown phone", "/api/auth/login-send-otp", `{"phone_number":"9111111111"}`, http.StatusNotFound},
		{"otp wrong length", "/api/auth/login", `{"phone_number":"9000000000","otp":"123"}`, http.StatusBadRequest},
		{"otp not digits", "/api/auth/verify-otp", `{"phone_number":"9000000000","otp":"abcdef"}`, http.StatusBadRequest},
		{"no pending code", "/api/auth/login", `{"phone_number":"9000000000","otp":"123456"}`, http.StatusBadRequest},
		{"invalid email", "/api/auth/register", `{"username":"a","email":"nope","password":"secret1","phone_number":"9876543210","otp":"123456"}`, http.StatusBadRequest},
		{"short password", "/api/auth/register", `{"username":"a","email":"a@example.com","password":"abc","phone_number":"9876543210","otp":"123456"}`, http.StatusBadRequest},
		{"malformed body", "/api/auth/login", `{"phone_number":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, mux, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			var resp map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if _, ok := resp["error"]; !ok {
				t.Errorf("expected error field, got %v", resp)
			}
		})
	}
}

func TestHandler_Me_RequiresToken(t *testing.T) {
	mux := newTestMux(newTestService(&memUsers{}, newMemCodes()))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}
