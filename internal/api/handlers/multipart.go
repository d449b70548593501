// multipart.go — разбор multipart/form-data запросов с файлами.
package handlers

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/sigescon/internal/api/errors"
	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/service"
)

// multipartMemory — объём формы, удерживаемый в памяти; остальное уходит во временные файлы.
const multipartMemory = 8 << 20

// isMultipart сообщает, что тело запроса — multipart/form-data.
func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart ограничивает тело запроса и разбирает форму.
// При ошибке пишет 400 или 413 и возвращает false.
func (h *APIHandler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	if !isMultipart(r) {
		apierrors.ValidationError(w, "Ожидается multipart/form-data")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.PayloadTooLarge(w, fmt.Sprintf("Размер запроса превышает лимит %d байт", maxBytesErr.Limit))
			return false
		}
		apierrors.ValidationError(w, "Некорректная multipart-форма: "+err.Error())
		return false
	}
	return true
}

// formValues возвращает текстовые поля разобранной формы.
func formValues(r *http.Request) url.Values {
	if r.MultipartForm == nil {
		return url.Values{}
	}
	return url.Values(r.MultipartForm.Value)
}

// formUpload возвращает файл поля field или nil, если поле не передано.
// Вызывающий закрывает файл через возвращённую функцию.
func formUpload(r *http.Request, field string) (*service.Upload, func(), error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, fmt.Errorf("ошибка чтения файла %s: %w", field, err)
	}
	return newUpload(file, header), func() { file.Close() }, nil
}

func newUpload(file multipart.File, header *multipart.FileHeader) *service.Upload {
	return &service.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	}
}

// toDate переводит дату из формы в model.Date.
func toDate(d *openapi_types.Date) *model.Date {
	if d == nil {
		return nil
	}
	v := model.DateOf(d.Time)
	return &v
}
