// parties.go — обработчики /contratados endpoints.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/sigescon/internal/api/errors"
	"github.com/bigkaa/sigescon/internal/domain/model"
)

type contractedPartyRequest struct {
	Nome     string  `json:"nome"`
	Email    string  `json:"email"`
	CNPJ     *string `json:"cnpj"`
	CPF      *string `json:"cpf"`
	Telefone *string `json:"telefone"`
}

// ListContractedParties — GET /contratados.
func (h *APIHandler) ListContractedParties(w http.ResponseWriter, r *http.Request) {
	var limit, offset *int
	if !bindQuery(w, r, map[string]any{"limit": &limit, "offset": &offset}) {
		return
	}
	l, o := paginationDefaults(limit, offset)

	result, err := h.parties.List(r.Context(), l, o)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка получения списка контрагентов")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateContractedParty — POST /contratados. Доступ: Administrador.
func (h *APIHandler) CreateContractedParty(w http.ResponseWriter, r *http.Request) {
	var req contractedPartyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	party, err := h.parties.Create(r.Context(), &model.ContractedParty{
		Nome:     req.Nome,
		Email:    req.Email,
		CNPJ:     req.CNPJ,
		CPF:      req.CPF,
		Telefone: req.Telefone,
	})
	if err != nil {
		h.handleServiceError(w, err, "Ошибка создания контрагента")
		return
	}
	writeJSON(w, http.StatusCreated, party)
}

// GetContractedParty — GET /contratados/{id}.
func (h *APIHandler) GetContractedParty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	party, err := h.parties.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка получения контрагента", "id", id)
		return
	}
	writeJSON(w, http.StatusOK, party)
}

// UpdateContractedParty — PATCH /contratados/{id}. Доступ: Administrador.
func (h *APIHandler) UpdateContractedParty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var upd model.ContractedPartyUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}

	party, err := h.parties.Update(r.Context(), id, upd)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка обновления контрагента", "id", id)
		return
	}
	writeJSON(w, http.StatusOK, party)
}

// DeleteContractedParty — DELETE /contratados/{id}. Доступ: Administrador.
func (h *APIHandler) DeleteContractedParty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if err := h.parties.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, err, "Ошибка удаления контрагента", "id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
