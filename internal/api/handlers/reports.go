// reports.go — обработчики /contratos/{id}/relatorios endpoints.
// Отправка, повторная отправка и анализ отчётов фискалов.
package handlers

import (
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/sigescon/internal/api/errors"
	"github.com/bigkaa/sigescon/internal/service"
)

// SubmitReport — POST /contratos/{id}/relatorios (multipart).
// Доступ: Fiscal (от своего имени) или Administrador.
func (h *APIHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	var (
		mes               *openapi_types.Date
		fiscalID, pendID  *int64
		observacoesFiscal *string
	)
	if err := bindValues(formValues(r), map[string]any{
		"mes_competencia":    &mes,
		"fiscal_usuario_id":  &fiscalID,
		"pendencia_id":       &pendID,
		"observacoes_fiscal": &observacoesFiscal,
	}); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	upload, closeFile, err := formUpload(r, "arquivo")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	defer closeFile()

	rep, err := h.reports.Submit(r.Context(), c, ids[0], service.SubmitReportInput{
		MesCompetencia:    toDate(mes),
		FiscalUsuarioID:   deref(fiscalID),
		PendenciaID:       deref(pendID),
		ObservacoesFiscal: observacoesFiscal,
		Arquivo:           upload,
	})
	if err != nil {
		h.handleServiceError(w, err, "Ошибка отправки отчёта", "contract_id", ids[0], "user_id", c.UserID)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// ListReports — GET /contratos/{id}/relatorios. Новые первыми.
func (h *APIHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}

	items, err := h.reports.List(r.Context(), ids[0])
	if err != nil {
		h.handleServiceError(w, err, "Ошибка получения отчётов", "contract_id", ids[0])
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetReport — GET /contratos/{id}/relatorios/{rid}.
func (h *APIHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id", "rid")
	if !ok {
		return
	}

	rep, err := h.reports.Get(r.Context(), ids[0], ids[1])
	if err != nil {
		h.handleServiceError(w, err, "Ошибка получения отчёта", "contract_id", ids[0], "report_id", ids[1])
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// AnalyzeReport — PATCH /contratos/{id}/relatorios/{rid}/analise.
// Решение администратора: Aprovado или Rejeitado com Pendência.
func (h *APIHandler) AnalyzeReport(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id", "rid")
	if !ok {
		return
	}

	var req service.AnalyzeReportInput
	if !decodeJSON(w, r, &req) {
		return
	}

	rep, err := h.reports.Analyze(r.Context(), ids[0], ids[1], req)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка анализа отчёта", "contract_id", ids[0], "report_id", ids[1])
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ResubmitReport — PUT /contratos/{id}/relatorios/{rid} (multipart).
// Исправленная версия отклонённого отчёта. Доступ: Fiscal (автор) или Administrador.
func (h *APIHandler) ResubmitReport(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}
	ids, ok := pathIDs(w, r, "id", "rid")
	if !ok {
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	var observacoesFiscal *string
	if err := bindValues(formValues(r), map[string]any{"observacoes_fiscal": &observacoesFiscal}); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	upload, closeFile, err := formUpload(r, "arquivo")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	defer closeFile()

	rep, err := h.reports.Resubmit(r.Context(), c, ids[0], ids[1], service.ResubmitReportInput{
		ObservacoesFiscal: observacoesFiscal,
		Arquivo:           upload,
	})
	if err != nil {
		h.handleServiceError(w, err, "Ошибка повторной отправки отчёта",
			"contract_id", ids[0], "report_id", ids[1], "user_id", c.UserID)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
