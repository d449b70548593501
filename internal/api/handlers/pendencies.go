// pendencies.go — обработчики /contratos/{id}/pendencias endpoints.
package handlers

import (
	"net/http"

	"github.com/bigkaa/sigescon/internal/service"
)

type pendencyStatusRequest struct {
	StatusPendenciaID int64 `json:"status_pendencia_id"`
}

// CreatePendency — POST /contratos/{id}/pendencias. Доступ: Administrador.
// Новое обязательство всегда получает статус «Pendente».
func (h *APIHandler) CreatePendency(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}

	var req service.CreatePendencyInput
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.pendencies.Create(r.Context(), ids[0], req)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка создания обязательства", "contract_id", ids[0])
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListPendencies — GET /contratos/{id}/pendencias.
func (h *APIHandler) ListPendencies(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}

	items, err := h.pendencies.List(r.Context(), ids[0])
	if err != nil {
		h.handleServiceError(w, err, "Ошибка получения обязательств", "contract_id", ids[0])
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// UpdatePendencyStatus — PATCH /contratos/{id}/pendencias/{pid}/status.
// Административная корректировка статуса. Доступ: Administrador.
func (h *APIHandler) UpdatePendencyStatus(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id", "pid")
	if !ok {
		return
	}

	var req pendencyStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.pendencies.UpdateStatus(r.Context(), ids[0], ids[1], req.StatusPendenciaID)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка изменения статуса обязательства",
			"contract_id", ids[0], "pendency_id", ids[1])
		return
	}
	writeJSON(w, http.StatusOK, p)
}
