// auth.go — обработчики /auth endpoints: вход, выход, текущий пользователь.
package handlers

import (
	"net/http"
	"time"

	apierrors "github.com/bigkaa/sigescon/internal/api/errors"
	"github.com/bigkaa/sigescon/internal/api/middleware"
)

type loginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type identityResponse struct {
	ID       int64     `json:"id"`
	Perfil   string    `json:"perfil"`
	ExpiraEm time.Time `json:"expira_em"`
}

// Login — POST /auth/login.
// Проверяет учётные данные и выпускает токен.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Senha)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка входа")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Logout — POST /auth/logout.
// Отзывает текущий токен до истечения его срока.
func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}

	if err := h.auth.Logout(r.Context(), claims.JTI, claims.ExpiresAt); err != nil {
		h.handleServiceError(w, err, "Ошибка отзыва токена", "user_id", claims.UserID)
		return
	}

	writeJSON(w, http.StatusOK, message{Msg: "Logout bem-sucedido"})
}

// Me — GET /auth/me.
// Возвращает идентичность вызывающего из токена.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}

	writeJSON(w, http.StatusOK, identityResponse{
		ID:       claims.UserID,
		Perfil:   claims.Perfil,
		ExpiraEm: claims.ExpiresAt,
	})
}
