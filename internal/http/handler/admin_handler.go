package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/secure-content-auth-service/internal/http/response"
	"github.com/sandeepkv93/secure-content-auth-service/internal/observability"
	"github.com/sandeepkv93/secure-content-auth-service/internal/repository"
	"github.com/sandeepkv93/secure-content-auth-service/internal/service"
)

type AdminHandler struct {
	users     *service.UserService
	anomalies *service.AnomalyDetector
}

func NewAdminHandler(users *service.UserService, anomalies *service.AnomalyDetector) *AdminHandler {
	return &AdminHandler{users: users, anomalies: anomalies}
}

type pageQuery struct {
	Page  int `validate:"min=1"`
	Limit int `validate:"min=1,max=100"`
}

type userListFilter struct {
	Name     string `validate:"max=50"`
	Role     string `validate:"omitempty,oneof=admin user"`
	IsActive *bool
}

// parsePage reads page and limit, defaulting to the first page of 20.
func parsePage(w http.ResponseWriter, r *http.Request) (pageQuery, bool) {
	q := pageQuery{Page: repository.DefaultPage, Limit: repository.DefaultLimit}
	for key, dst := range map[string]*int{"page": &q.Page, "limit": &q.Limit} {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(w, r, http.StatusUnprocessableEntity, "Validation failed", []fieldError{{Field: key, Rule: "numeric"}})
			return q, false
		}
		*dst = n
	}
	return q, validateStruct(w, r, &q)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	q := userListFilter{Name: r.URL.Query().Get("name"), Role: r.URL.Query().Get("role")}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(w, r, http.StatusUnprocessableEntity, "Validation failed", []fieldError{{Field: "is_active", Rule: "boolean"}})
			return
		}
		q.IsActive = &active
	}
	if !validateStruct(w, r, &q) {
		return
	}
	res, err := h.users.List(r.Context(), repository.UserListQuery{
		PageRequest: repository.PageRequest{Page: page.Page, Limit: page.Limit},
		Name:        q.Name,
		IsActive:    q.IsActive,
		Role:        q.Role,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Paginated(w, r, "Success", res.Items, pagination(res.Page, res.Limit, res.Total, res.TotalPages))
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, "Success", user)
}

func (h *AdminHandler) BlockUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Block(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "admin_block", "target_user_id", user.ID)
	response.JSON(w, r, http.StatusOK, "User blocked successfully", user)
}

func (h *AdminHandler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Unblock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "admin_unblock", "target_user_id", user.ID)
	response.JSON(w, r, http.StatusOK, "User unblocked successfully", user)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user, cascade, err := h.users.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "admin_delete", "target_user_id", user.ID,
		"posts", cascade.Posts, "sessions", cascade.Sessions, "access_tokens", cascade.AccessTokens)
	response.JSON(w, r, http.StatusOK, "User deleted successfully", cascade)
}

func (h *AdminHandler) TokenLogs(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	res, err := h.anomalies.List(r.Context(), repository.TokenLogQuery{
		PageRequest: repository.PageRequest{Page: page.Page, Limit: page.Limit},
		UserID:      r.URL.Query().Get("user_id"),
		Action:      r.URL.Query().Get("action"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Paginated(w, r, "Success", res.Items, pagination(res.Page, res.Limit, res.Total, res.TotalPages))
}

func pagination(page, limit int, total int64, totalPages int) response.Pagination {
	return response.Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}
