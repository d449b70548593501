// files.go — обработчики /arquivos endpoints и списка файлов контракта.
package handlers

import (
	"mime"
	"net/http"

	"github.com/bigkaa/sigescon/internal/domain/model"
)

// DownloadFile — GET /arquivos/{id}/download.
// Отдаёт содержимое с исходным именем файла.
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}

	meta, f, err := h.files.Open(r.Context(), ids[0])
	if err != nil {
		h.handleServiceError(w, err, "Ошибка чтения файла", "file_id", ids[0])
		return
	}
	defer f.Close()

	contentType := meta.TipoArquivo
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": meta.NomeArquivo}))
	w.Header().Set("X-Checksum-SHA256", meta.Checksum)

	http.ServeContent(w, r, meta.NomeArquivo, meta.CreatedAt, f)
}

// DeleteFile — DELETE /arquivos/{id}. Доступ: Administrador.
// Файл, являющийся вложением отчёта, не удаляется (409).
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}

	if err := h.files.Delete(r.Context(), ids[0]); err != nil {
		h.handleServiceError(w, err, "Ошибка удаления файла", "file_id", ids[0])
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListContractFiles — GET /contratos/{id}/arquivos.
func (h *APIHandler) ListContractFiles(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}

	items, err := h.files.ListByContract(r.Context(), ids[0])
	if err != nil {
		h.handleServiceError(w, err, "Ошибка получения файлов контракта", "contract_id", ids[0])
		return
	}
	if items == nil {
		items = []*model.File{}
	}
	writeJSON(w, http.StatusOK, items)
}
