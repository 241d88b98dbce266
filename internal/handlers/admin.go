package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mentorlink/apiserver/internal/apperr"
	"github.com/mentorlink/apiserver/internal/auth"
	"github.com/mentorlink/apiserver/internal/logging"
	"github.com/mentorlink/apiserver/internal/services"
	"github.com/mentorlink/apiserver/types"
)

// AdminHandler provides the user administration endpoints under /admin.
type AdminHandler struct {
	accounts *services.AccountService
	logger   logging.Logger
}

func NewAdminHandler(accounts *services.AccountService, logger logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AdminHandler{accounts: accounts, logger: logger}
}

// AdminRouter registers admin routes. Every route requires an active
// account with the admin role.
func AdminRouter(r chi.Router, accounts *services.AccountService, guard *Guard, logger logging.Logger) {
	handler := NewAdminHandler(accounts, logger)

	r.Use(guard.RequireAuth, guard.RequireAdmin)
	r.Get("/users", handler.ListUsers)
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Put("/", handler.UpdateUser)
		r.Patch("/promote", handler.PromoteToMentor)
		r.Patch("/status", handler.SetStatus)
	})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	query := r.URL.Query()
	result, err := h.accounts.ListUsers(r.Context(), query.Get("search"), query.Get("role"), query.Get("status"), page, limit)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, result, "")
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	user, err := h.accounts.GetUser(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, UserResponse{User: user}, "")
}

// UpdateUser changes any account's names, contact data, role or status.
// Admins cannot drop their own admin role or deactivate themselves.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	var req AdminUpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if err := validate(req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity.ID == id {
		if err := checkSelfUpdate(req); err != nil {
			writeAppError(w, r, h.logger, err)
			return
		}
	}

	user, err := h.accounts.UpdateUser(r.Context(), id, services.AdminUserUpdate{
		ProfileUpdate: services.ProfileUpdate{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
			Bio:       req.Bio,
		},
		Role:   req.Role,
		Status: req.Status,
	})
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, UserResponse{User: user}, "user updated")
}

func checkSelfUpdate(req AdminUpdateUserRequest) error {
	fields := map[string]string{}
	if req.Role != nil {
		if role, _ := types.ParseRole(*req.Role); role != types.RoleAdmin {
			fields["role"] = "cannot remove your own admin role"
		}
	}
	if req.Status != nil {
		if status, _ := types.ParseStatus(*req.Status); status != types.StatusActive {
			fields["status"] = "cannot deactivate your own account"
		}
	}
	if len(fields) > 0 {
		return apperr.InvalidInput("invalid user data", fields)
	}
	return nil
}

func (h *AdminHandler) PromoteToMentor(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	var req PromoteRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeAppError(w, r, h.logger, err)
			return
		}
	}
	if err := validate(req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	promotion, err := h.accounts.PromoteToMentor(r.Context(), id, services.MentorProfileInput{
		Specialization:  req.Specialization,
		ExperienceYears: req.ExperienceYears,
		HourlyRate:      req.HourlyRate,
		Bio:             req.Bio,
		ExpertiseAreas:  req.ExpertiseAreas,
	})
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, promotion, "user promoted to mentor")
}

func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if err := validate(req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	user, err := h.accounts.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, UserResponse{User: user}, "status updated")
}
