// contracts.go — обработчики /contratos endpoints.
// Создание принимает JSON или multipart с основным документом (documento_contrato).
package handlers

import (
	"net/http"
	"net/url"

	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/sigescon/internal/api/errors"
	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/service"
)

// contractRequest — поля создания контракта. Обязательность проверяет сервис.
type contractRequest struct {
	NrContrato         *string     `json:"nr_contrato"`
	Objeto             *string     `json:"objeto"`
	ValorAnual         *float64    `json:"valor_anual"`
	ValorGlobal        *float64    `json:"valor_global"`
	BaseLegal          *string     `json:"base_legal"`
	DataInicio         *model.Date `json:"data_inicio"`
	DataFim            *model.Date `json:"data_fim"`
	TermosContratuais  *string     `json:"termos_contratuais"`
	ContratadoID       *int64      `json:"contratado_id"`
	ModalidadeID       *int64      `json:"modalidade_id"`
	StatusID           *int64      `json:"status_id"`
	GestorID           *int64      `json:"gestor_id"`
	FiscalID           *int64      `json:"fiscal_id"`
	FiscalSubstitutoID *int64      `json:"fiscal_substituto_id"`
	PAE                *string     `json:"pae"`
	DOE                *string     `json:"doe"`
	DataDOE            *model.Date `json:"data_doe"`
}

// contractRequestFromForm связывает поля multipart-формы.
func contractRequestFromForm(values url.Values) (contractRequest, error) {
	var req contractRequest
	var inicio, fim, dataDOE *openapi_types.Date
	err := bindValues(values, map[string]any{
		"nr_contrato":          &req.NrContrato,
		"objeto":               &req.Objeto,
		"valor_anual":          &req.ValorAnual,
		"valor_global":         &req.ValorGlobal,
		"base_legal":           &req.BaseLegal,
		"data_inicio":          &inicio,
		"data_fim":             &fim,
		"termos_contratuais":   &req.TermosContratuais,
		"contratado_id":        &req.ContratadoID,
		"modalidade_id":        &req.ModalidadeID,
		"status_id":            &req.StatusID,
		"gestor_id":            &req.GestorID,
		"fiscal_id":            &req.FiscalID,
		"fiscal_substituto_id": &req.FiscalSubstitutoID,
		"pae":                  &req.PAE,
		"doe":                  &req.DOE,
		"data_doe":             &dataDOE,
	})
	req.DataInicio = toDate(inicio)
	req.DataFim = toDate(fim)
	req.DataDOE = toDate(dataDOE)
	return req, err
}

func (req contractRequest) toModel() *model.Contract {
	c := &model.Contract{
		ValorAnual:         req.ValorAnual,
		ValorGlobal:        req.ValorGlobal,
		BaseLegal:          req.BaseLegal,
		TermosContratuais:  req.TermosContratuais,
		FiscalSubstitutoID: req.FiscalSubstitutoID,
		PAE:                req.PAE,
		DOE:                req.DOE,
		DataDOE:            req.DataDOE,
	}
	c.NrContrato = deref(req.NrContrato)
	c.Objeto = deref(req.Objeto)
	c.ContratadoID = deref(req.ContratadoID)
	c.ModalidadeID = deref(req.ModalidadeID)
	c.StatusID = deref(req.StatusID)
	c.GestorID = deref(req.GestorID)
	c.FiscalID = deref(req.FiscalID)
	if req.DataInicio != nil {
		c.DataInicio = *req.DataInicio
	}
	if req.DataFim != nil {
		c.DataFim = *req.DataFim
	}
	return c
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// ListContracts — GET /contratos.
func (h *APIHandler) ListContracts(w http.ResponseWriter, r *http.Request) {
	var limit, offset *int
	var filter model.ContractFilter
	if !bindQuery(w, r, map[string]any{
		"limit":       &limit,
		"offset":      &offset,
		"gestor_id":   &filter.GestorID,
		"fiscal_id":   &filter.FiscalID,
		"objeto":      &filter.Objeto,
		"nr_contrato": &filter.NrContrato,
		"status_id":   &filter.StatusID,
		"pae":         &filter.PAE,
		"ano":         &filter.Ano,
	}) {
		return
	}
	l, o := paginationDefaults(limit, offset)

	result, err := h.contracts.List(r.Context(), filter, l, o)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка получения списка контрактов")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateContract — POST /contratos. Доступ: Administrador.
func (h *APIHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var (
		req       contractRequest
		documento *service.Upload
	)

	if isMultipart(r) {
		if !h.parseMultipart(w, r) {
			return
		}
		defer r.MultipartForm.RemoveAll()

		var err error
		if req, err = contractRequestFromForm(formValues(r)); err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		upload, closeFile, err := formUpload(r, "documento_contrato")
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		defer closeFile()
		documento = upload
	} else if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.contracts.Create(r.Context(), req.toModel(), documento)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка создания контракта", "nr_contrato", deref(req.NrContrato))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetContract — GET /contratos/{id}. Контракт с отчётами фискалов.
func (h *APIHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	c, err := h.contracts.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка получения контракта", "contract_id", id)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateContract — PATCH /contratos/{id}. Доступ: Administrador.
func (h *APIHandler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var upd model.ContractUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}

	c, err := h.contracts.Update(r.Context(), id, upd)
	if err != nil {
		h.handleServiceError(w, err, "Ошибка обновления контракта", "contract_id", id)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteContract — DELETE /contratos/{id}. Доступ: Administrador.
func (h *APIHandler) DeleteContract(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if err := h.contracts.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, err, "Ошибка удаления контракта", "contract_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
