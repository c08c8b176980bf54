package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/response"
	"github.com/sandeepkv93/secure-content-auth-service/internal/observability"
	"github.com/sandeepkv93/secure-content-auth-service/internal/security"
	"github.com/sandeepkv93/secure-content-auth-service/internal/service"
)

type UserHandler struct {
	users        *service.UserService
	cookieSecure bool
}

func NewUserHandler(users *service.UserService, cookieSecure bool) *UserHandler {
	return &UserHandler{users: users, cookieSecure: cookieSecure}
}

type profileRequest struct {
	Email    string `json:"email" validate:"required,email,max=100"`
	FullName string `json:"full_name" validate:"max=100"`
	Gender   string `json:"gender" validate:"required,oneof=male female other"`
}

type changePasswordRequest struct {
	OldPassword          string `json:"old_password" validate:"required"`
	NewPassword          string `json:"new_password" validate:"required,min=8,max=128"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required"`
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, "Success", id.User)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	updated, err := h.users.UpdateProfile(r.Context(), id.User, service.ProfileInput{
		Email:    req.Email,
		FullName: req.FullName,
		Gender:   domain.Gender(req.Gender),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, "Profile updated", updated)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	err := h.users.ChangePassword(r.Context(), id.User, service.PasswordChangeInput{
		OldPassword:          req.OldPassword,
		NewPassword:          req.NewPassword,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "password_changed", "user_id", id.User.ID)
	response.JSON(w, r, http.StatusOK, "Password updated successfully", nil)
}

// DeleteMe deactivates the caller; the row is kept so an admin can unblock it.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	report, err := h.users.Deactivate(r.Context(), id.User, id.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	security.ClearRefreshCookie(w, h.cookieSecure)
	observability.Audit(r, "account_deactivated", "user_id", id.User.ID)
	response.JSON(w, r, http.StatusOK, "Account deactivated", report)
}

func (h *UserHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	sessions, err := h.users.ListSessions(r.Context(), id.User, security.GetCookie(r, security.RefreshCookieName))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, "Success", sessions)
}

func (h *UserHandler) Tokens(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	tokens, err := h.users.ListTokens(r.Context(), id.User, id.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, "Success", tokens)
}

func (h *UserHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	tokenID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || tokenID == 0 {
		response.Error(w, r, http.StatusNotFound, "Token not found", nil)
		return
	}
	if err := h.users.RevokeToken(r.Context(), id.User, uint(tokenID)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "token_revoked", "user_id", id.User.ID, "token_id", tokenID)
	response.JSON(w, r, http.StatusOK, "Token revoked", nil)
}
