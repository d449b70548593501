// handler.go — основной обработчик API SIGESCON.
// Объединяет все доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/sigescon/internal/api/errors"
	"github.com/bigkaa/sigescon/internal/api/middleware"
	"github.com/bigkaa/sigescon/internal/service"
)

// Services — набор сервисов, которые обслуживает API.
type Services struct {
	Auth       *service.AuthService
	Lookups    *service.LookupService
	Users      *service.UserService
	Parties    *service.ContractedPartyService
	Contracts  *service.ContractService
	Pendencies *service.PendencyService
	Reports    *service.ReportService
	Files      *service.FileService
}

// APIHandler — основной обработчик API SIGESCON.
type APIHandler struct {
	health        *HealthHandler
	auth          *service.AuthService
	lookups       *service.LookupService
	users         *service.UserService
	parties       *service.ContractedPartyService
	contracts     *service.ContractService
	pendencies    *service.PendencyService
	reports       *service.ReportService
	files         *service.FileService
	maxUploadSize int64
	logger        *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// maxUploadSize ограничивает тело multipart-запросов.
func NewAPIHandler(health *HealthHandler, svc Services, maxUploadSize int64, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health:        health,
		auth:          svc.Auth,
		lookups:       svc.Lookups,
		users:         svc.Users,
		parties:       svc.Parties,
		contracts:     svc.Contracts,
		pendencies:    svc.Pendencies,
		reports:       svc.Reports,
		files:         svc.Files,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// message — ответ с текстовым сообщением.
type message struct {
	Msg string `json:"msg"`
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := 100
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > 1000 {
			l = 1000
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}

// caller возвращает вызывающего из claims токена.
func caller(r *http.Request) (service.Caller, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Caller{}, false
	}
	return service.Caller{UserID: claims.UserID, Perfil: claims.Perfil}, true
}

// pathID связывает целочисленный параметр пути name.
func pathID(r *http.Request, name string) (int64, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return 0, fmt.Errorf("некорректный параметр %s: %w", name, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("некорректный параметр %s: ожидается положительное число", name)
	}
	return id, nil
}

// pathIDs связывает несколько параметров пути. При ошибке пишет 400 и возвращает false.
func pathIDs(w http.ResponseWriter, r *http.Request, names ...string) ([]int64, bool) {
	ids := make([]int64, len(names))
	for i, name := range names {
		id, err := pathID(r, name)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return nil, false
		}
		ids[i] = id
	}
	return ids, true
}

// bindQuery связывает необязательные query-параметры (style form, explode).
// params: имя параметра → указатель на указатель назначения.
// При ошибке пишет 400 и возвращает false.
func bindQuery(w http.ResponseWriter, r *http.Request, params map[string]any) bool {
	if err := bindValues(r.URL.Query(), params); err != nil {
		apierrors.ValidationError(w, err.Error())
		return false
	}
	return true
}

// bindValues связывает значения формы или query-строки с назначениями.
func bindValues(values url.Values, params map[string]any) error {
	for name, dst := range params {
		if err := runtime.BindQueryParameter("form", true, false, name, values, dst); err != nil {
			return fmt.Errorf("некорректный параметр %s: %w", name, err)
		}
	}
	return nil
}

// decodeJSON декодирует тело запроса, отвергая неизвестные поля.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	return true
}

// serviceMessage возвращает текст ошибки без префикса сентинела.
func serviceMessage(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	first, size := utf8.DecodeRuneInString(msg)
	return string(unicode.ToUpper(first)) + msg[size:]
}

// handleServiceError переводит ошибку сервиса в HTTP-ответ.
// Неожиданные ошибки логируются с причиной и отдаются как 500 без подробностей.
func (h *APIHandler) handleServiceError(w http.ResponseWriter, err error, op string, attrs ...any) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, serviceMessage(err, service.ErrValidation))
	case errors.Is(err, service.ErrInvalidCredentials):
		apierrors.Unauthorized(w, serviceMessage(err, service.ErrInvalidCredentials))
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, serviceMessage(err, service.ErrForbidden))
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, serviceMessage(err, service.ErrNotFound))
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, serviceMessage(err, service.ErrConflict))
	case errors.As(err, &maxBytesErr):
		apierrors.PayloadTooLarge(w, fmt.Sprintf("Размер запроса превышает лимит %d байт", maxBytesErr.Limit))
	default:
		h.logger.Error(op, append(attrs, "error", err)...)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
