// lookups.go — обработчики справочников: /perfis, /modalidades, /status,
// /statusrelatorio, /statuspendencia.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/sigescon/internal/api/errors"
	"github.com/bigkaa/sigescon/internal/domain/model"
)

// LookupRoutes — соответствие сегмента пути виду справочника.
var LookupRoutes = map[string]model.LookupKind{
	"perfis":          model.KindPerfil,
	"modalidades":     model.KindModalidade,
	"status":          model.KindStatus,
	"statusrelatorio": model.KindStatusRelatorio,
	"statuspendencia": model.KindStatusPendencia,
}

type lookupRequest struct {
	Nome string `json:"nome"`
}

// LookupHandlers — обработчики одного вида справочника.
type LookupHandlers struct {
	h    *APIHandler
	kind model.LookupKind
}

// Lookup возвращает обработчики для вида справочника kind.
func (h *APIHandler) Lookup(kind model.LookupKind) *LookupHandlers {
	return &LookupHandlers{h: h, kind: kind}
}

// List — GET /{lookup}.
func (l *LookupHandlers) List(w http.ResponseWriter, r *http.Request) {
	items, err := l.h.lookups.List(r.Context(), l.kind)
	if err != nil {
		l.h.handleServiceError(w, err, "Ошибка получения справочника", "kind", l.kind)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Create — POST /{lookup}. Доступ: Administrador.
func (l *LookupHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := l.h.lookups.Create(r.Context(), l.kind, req.Nome)
	if err != nil {
		l.h.handleServiceError(w, err, "Ошибка создания записи справочника", "kind", l.kind)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// Get — GET /{lookup}/{id}.
func (l *LookupHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	item, err := l.h.lookups.Get(r.Context(), l.kind, id)
	if err != nil {
		l.h.handleServiceError(w, err, "Ошибка получения записи справочника", "kind", l.kind, "id", id)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Update — PATCH /{lookup}/{id}. Доступ: Administrador.
func (l *LookupHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var req lookupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := l.h.lookups.Update(r.Context(), l.kind, id, req.Nome)
	if err != nil {
		l.h.handleServiceError(w, err, "Ошибка обновления записи справочника", "kind", l.kind, "id", id)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Delete — DELETE /{lookup}/{id}. Доступ: Administrador.
func (l *LookupHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if err := l.h.lookups.Delete(r.Context(), l.kind, id); err != nil {
		l.h.handleServiceError(w, err, "Ошибка удаления записи справочника", "kind", l.kind, "id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
