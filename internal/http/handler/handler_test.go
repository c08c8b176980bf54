package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sandeepkv93/secure-content-auth-service/internal/security"
	"github.com/sandeepkv93/secure-content-auth-service/internal/service"
)

func TestWriteServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
		{service.ErrSessionCreation, http.StatusUnauthorized, "Session creation failed"},
		{fmt.Errorf("decode: %w", security.ErrExpiredToken), http.StatusUnauthorized, "Access token expired"},
		{service.ErrSessionNotFound, http.StatusBadRequest, "Session not found"},
		{service.ErrDuplicateEmail, http.StatusBadRequest, "Email already registered"},
		{service.ErrPasswordMismatch, http.StatusUnprocessableEntity, "Password confirmation does not match"},
		{service.ErrTokenNotFound, http.StatusNotFound, "Token not found"},
		{service.ErrBadRequest, http.StatusBadRequest, "Deletion failed"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeServiceError(rr, httptest.NewRequest(http.MethodGet, "/api/v1/x", nil), tc.err)
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if rr.Code != tc.status || body["message"] != tc.msg {
				t.Fatalf("got %d %v, want %d %q", rr.Code, body["message"], tc.status, tc.msg)
			}
		})
	}
}

func TestRegisterErrorWording(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{service.ErrDuplicateUsername, http.StatusBadRequest, "Username already exists"},
		{fmt.Errorf("insert user: %w", service.ErrDuplicateEmail), http.StatusBadRequest, "Email already exists"},
		{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeRegisterError(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", nil), tc.err)
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if rr.Code != tc.status || body["message"] != tc.msg {
				t.Fatalf("got %d %v, want %d %q", rr.Code, body["message"], tc.status, tc.msg)
			}
		})
	}
}

func TestDecodeAndValidate(t *testing.T) {
	type req struct {
		Username string `json:"username" validate:"required,min=3"`
	}
	cases := []struct {
		name    string
		body    string
		ok      bool
		message string
		field   string
	}{
		{name: "valid", body: `{"username":"alice"}`, ok: true},
		{name: "unknown field", body: `{"username":"alice","role":"admin"}`, message: "Invalid request body"},
		{name: "malformed", body: `{"username":`, message: "Invalid request body"},
		{name: "rule violated", body: `{"username":"al"}`, message: "Validation failed", field: "username"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			var dst req
			ok := decodeAndValidate(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body)), &dst)
			if ok != tc.ok {
				t.Fatalf("ok=%v want %v (%s)", ok, tc.ok, rr.Body.String())
			}
			if tc.ok {
				return
			}
			if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), tc.message) {
				t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
			}
			if tc.field != "" && !strings.Contains(rr.Body.String(), `"field":"`+tc.field+`"`) {
				t.Fatalf("expected json field name in details, got %s", rr.Body.String())
			}
		})
	}
}

func TestClientInfo(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:5555"
	r.Header.Set("User-Agent", "curl/8")
	if got := clientInfo(r); got.IPAddress != "203.0.113.9" || got.UserAgent != "curl/8" {
		t.Fatalf("unexpected client info %+v", got)
	}
	r.RemoteAddr = "203.0.113.9"
	if got := clientInfo(r); got.IPAddress != "203.0.113.9" {
		t.Fatalf("expected bare address kept, got %+v", got)
	}
}

func TestIdentityMissing(t *testing.T) {
	rr := httptest.NewRecorder()
	if _, ok := identity(rr, httptest.NewRequest(http.MethodGet, "/", nil)); ok || rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rr.Code)
	}
}
