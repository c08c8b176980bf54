package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/middleware"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/response"
	"github.com/sandeepkv93/secure-content-auth-service/internal/observability"
	"github.com/sandeepkv93/secure-content-auth-service/internal/security"
	"github.com/sandeepkv93/secure-content-auth-service/internal/service"
)

type AuthHandler struct {
	auth         *service.AuthService
	cookieSecure bool
}

func NewAuthHandler(auth *service.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, cookieSecure: cookieSecure}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"max=100"`
	Gender   string `json:"gender" validate:"required,oneof=male female other"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=128"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Role        domain.Role `json:"role"`
}

func newTokenResponse(res *service.LoginResult) tokenResponse {
	return tokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(res.AccessExpiresIn / time.Second),
		ID:          res.User.ID,
		Username:    res.User.Username,
		Role:        res.User.Role,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Gender:   domain.Gender(req.Gender),
	})
	if err != nil {
		writeRegisterError(w, r, err)
		return
	}
	observability.Audit(r, "register", "user_id", user.ID)
	response.JSON(w, r, http.StatusCreated, "Success", user)
}

// Login accepts form-encoded credentials, or JSON when the content type says so.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, http.StatusUnprocessableEntity, "Invalid request body", nil)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			response.Error(w, r, http.StatusUnprocessableEntity, "Invalid request body", nil)
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}
	if !validateStruct(w, r, &req) {
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password, clientInfo(r))
	if err != nil {
		observability.Audit(r, "login_failed", "username", req.Username, "reason", err.Error())
		writeServiceError(w, r, err)
		return
	}
	security.SetRefreshCookie(w, res.RefreshToken, res.RefreshExpiresIn, h.cookieSecure)
	observability.Audit(r, "login", "user_id", res.User.ID, "suspicious", res.Suspicious)
	response.JSON(w, r, http.StatusOK, "Success", newTokenResponse(res))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refresh := security.GetCookie(r, security.RefreshCookieName)
	res, err := h.auth.Refresh(r.Context(), refresh, clientInfo(r))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrUserBlocked) {
			response.Error(w, r, http.StatusUnauthorized, "User not found or blocked", nil)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "refresh", "user_id", res.User.ID, "suspicious", res.Suspicious)
	response.JSON(w, r, http.StatusOK, "Success", newTokenResponse(res))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	refresh := security.GetCookie(r, security.RefreshCookieName)
	if err := h.auth.Logout(r.Context(), refresh, middleware.BearerToken(r)); err != nil {
		if errors.Is(err, service.ErrRefreshTokenMissing) {
			response.Error(w, r, http.StatusBadRequest, "Refresh token missing", nil)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	security.ClearRefreshCookie(w, h.cookieSecure)
	observability.Audit(r, "logout")
	response.JSON(w, r, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	report, err := h.auth.LogoutAll(r.Context(), id.User.ID, id.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	security.ClearRefreshCookie(w, h.cookieSecure)
	observability.Audit(r, "logout_all", "user_id", id.User.ID, "sessions", report.Sessions, "access_tokens", report.AccessTokens)
	response.JSON(w, r, http.StatusOK, "Logged out from all sessions", report)
}
