// users.go — обработчики /usuarios endpoints.
// Управление пользователями и паролями.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/sigescon/internal/api/errors"
	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/repository"
	"github.com/bigkaa/sigescon/internal/service"
)

type resetPasswordRequest struct {
	NovaSenha string `json:"nova_senha"`
}

type changePasswordRequest struct {
	SenhaAntiga string `json:"senha_antiga"`
	NovaSenha   string `json:"nova_senha"`
}

// ListUsers — GET /usuarios. Доступ: Administrador.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var limit, offset *int
	var filter repository.UserFilter
	if !bindQuery(w, r, map[string]any{"limit": &limit, "offset": &offset, "perfil_id": &filter.PerfilID}) {
		return
	}
	l, o := paginationDefaults(limit, offset)

	result, err := h.users.List(r.Context(), filter, l, o)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка получения списка пользователей")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateUser — POST /usuarios. Доступ: Administrador.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserInput
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Create(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка создания пользователя", "email", req.Email)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetUser — GET /usuarios/{id}. Доступ: Administrador или сам пользователь.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	user, err := h.users.GetAs(r.Context(), c, id)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка получения пользователя", "user_id", id)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUser — PATCH /usuarios/{id}. Доступ: Administrador.
func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var upd model.UserUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}

	user, err := h.users.Update(r.Context(), id, upd)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка обновления пользователя", "user_id", id)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUser — DELETE /usuarios/{id}. Доступ: Administrador.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, err, "Ошибка удаления пользователя", "user_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword — PATCH /usuarios/{id}/resetar-senha. Доступ: Administrador.
func (h *APIHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.users.ResetPassword(r.Context(), id, req.NovaSenha); err != nil {
		h.handleServiceError(w, err, "Ошибка сброса пароля", "user_id", id)
		return
	}
	writeJSON(w, http.StatusOK, message{Msg: "Senha resetada com sucesso pelo administrador."})
}

// ChangePassword — PATCH /usuarios/{id}/alterar-senha.
// Доступ: сам пользователь или Administrador.
func (h *APIHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.users.ChangePassword(r.Context(), c, id, req.SenhaAntiga, req.NovaSenha); err != nil {
		h.handleServiceError(w, err, "Ошибка смены пароля", "user_id", id)
		return
	}
	writeJSON(w, http.StatusOK, message{Msg: "Senha alterada com sucesso."})
}
