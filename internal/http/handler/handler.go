package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sandeepkv93/secure-content-auth-service/internal/http/middleware"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/response"
	"github.com/sandeepkv93/secure-content-auth-service/internal/security"
	"github.com/sandeepkv93/secure-content-auth-service/internal/service"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// decodeAndValidate writes a 422 and returns false when the body is not valid
// JSON or fails the struct's validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.Error(w, r, http.StatusUnprocessableEntity, "Invalid request body", nil)
		return false
	}
	return validateStruct(w, r, dst)
}

func validateStruct(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := validate.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.Error(w, r, http.StatusUnprocessableEntity, "Validation failed", nil)
		return false
	}
	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	response.Error(w, r, http.StatusUnprocessableEntity, "Validation failed", details)
	return false
}

// writeServiceError is the single place where service errors become HTTP
// statuses. Unknown errors are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "Internal Server Error"
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, service.ErrUserBlocked):
		status, msg = http.StatusUnauthorized, "User blocked"
	case errors.Is(err, service.ErrSessionCreation):
		status, msg = http.StatusUnauthorized, "Session creation failed"
	case errors.Is(err, service.ErrTokenRevoked):
		status, msg = http.StatusUnauthorized, "Token has been revoked"
	case errors.Is(err, security.ErrExpiredToken):
		status, msg = http.StatusUnauthorized, "Access token expired"
	case errors.Is(err, security.ErrInvalidToken):
		status, msg = http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, service.ErrRefreshTokenMissing):
		status, msg = http.StatusUnauthorized, "Refresh token missing"
	case errors.Is(err, service.ErrInvalidRefreshToken):
		status, msg = http.StatusUnauthorized, "Invalid or expired refresh token"
	case errors.Is(err, service.ErrSessionRevokedOrExpired):
		status, msg = http.StatusUnauthorized, "Refresh token revoked or expired"
	case errors.Is(err, service.ErrSessionNotFound):
		status, msg = http.StatusBadRequest, "Session not found"
	case errors.Is(err, service.ErrDuplicateUsername):
		status, msg = http.StatusBadRequest, "Username already registered"
	case errors.Is(err, service.ErrDuplicateEmail):
		status, msg = http.StatusBadRequest, "Email already registered"
	case errors.Is(err, service.ErrAlreadyBlocked):
		status, msg = http.StatusBadRequest, "User was already blocked"
	case errors.Is(err, service.ErrAlreadyActive):
		status, msg = http.StatusBadRequest, "User was already unblocked"
	case errors.Is(err, service.ErrIncorrectPassword):
		status, msg = http.StatusBadRequest, "Old password is incorrect"
	case errors.Is(err, service.ErrPasswordMismatch):
		status, msg = http.StatusUnprocessableEntity, "Password confirmation does not match"
	case errors.Is(err, service.ErrUserNotFound):
		status, msg = http.StatusNotFound, "User not found"
	case errors.Is(err, service.ErrTokenNotFound):
		status, msg = http.StatusNotFound, "Token not found"
	case errors.Is(err, service.ErrNotFound):
		status, msg = http.StatusNotFound, "Not found"
	case errors.Is(err, service.ErrBadRequest):
		status, msg = http.StatusBadRequest, "Deletion failed"
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "persistence", service.IsPersistence(err), "error", err)
	}
	response.Error(w, r, status, msg, nil)
}

// writeRegisterError reports duplicates with the registration wording and
// defers everything else to writeServiceError.
func writeRegisterError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrDuplicateUsername):
		response.Error(w, r, http.StatusBadRequest, "Username already exists", nil)
	case errors.Is(err, service.ErrDuplicateEmail):
		response.Error(w, r, http.StatusBadRequest, "Email already exists", nil)
	default:
		writeServiceError(w, r, err)
	}
}

func clientInfo(r *http.Request) service.ClientInfo {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return service.ClientInfo{IPAddress: ip, UserAgent: r.UserAgent()}
}

// identity is only called on routes mounted behind the request gate.
func identity(w http.ResponseWriter, r *http.Request) (*middleware.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "Missing or invalid Authorization header", nil)
	}
	return id, ok
}
