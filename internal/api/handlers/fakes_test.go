package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/sigescon/internal/api/middleware"
	"github.com/bigkaa/sigescon/internal/auth"
	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/domain/rbac"
	"github.com/bigkaa/sigescon/internal/repository"
	"github.com/bigkaa/sigescon/internal/service"
	"github.com/bigkaa/sigescon/internal/storage/filestore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Fake repositories ---

type fakeUsers struct {
	repository.UserRepository
	byEmail map[string]*model.User
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeLookups struct {
	repository.LookupRepository
	rows   map[int64]*model.Lookup
	inUse  map[int64]bool
	nextID int64
}

func newFakeLookups() *fakeLookups {
	return &fakeLookups{rows: map[int64]*model.Lookup{}, inUse: map[int64]bool{}}
}

func (f *fakeLookups) Create(_ context.Context, _ model.LookupKind, nome string) (*model.Lookup, error) {
	for _, l := range f.rows {
		if l.Nome == nome {
			return nil, repository.ErrConflict
		}
	}
	f.nextID++
	l := &model.Lookup{ID: f.nextID, Nome: nome, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.rows[l.ID] = l
	return l, nil
}

func (f *fakeLookups) List(context.Context, model.LookupKind) ([]*model.Lookup, error) {
	var out []*model.Lookup
	for id := int64(1); id <= f.nextID; id++ {
		if l, ok := f.rows[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLookups) GetByID(_ context.Context, _ model.LookupKind, id int64) (*model.Lookup, error) {
	if l, ok := f.rows[id]; ok {
		return l, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeLookups) InUse(_ context.Context, _ model.LookupKind, id int64) (bool, error) {
	return f.inUse[id], nil
}

func (f *fakeLookups) Delete(_ context.Context, _ model.LookupKind, id int64) error {
	delete(f.rows, id)
	return nil
}

type fakeFiles struct {
	repository.FileRepository
	rows map[int64]*model.File
}

func (f *fakeFiles) GetByID(_ context.Context, id int64) (*model.File, error) {
	if file, ok := f.rows[id]; ok {
		return file, nil
	}
	return nil, repository.ErrNotFound
}

// --- Test environment ---

type testEnv struct {
	handler *APIHandler
	tokens  *auth.TokenManager
	revoked *auth.MemoryRevocationStore
	users   *fakeUsers
	lookups *fakeLookups
	files   *fakeFiles
	store   *filestore.FileStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()

	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("senha123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	env := &testEnv{
		tokens:  auth.NewTokenManager("handlers-test-secret", "sigescon-test", time.Hour),
		revoked: auth.NewMemoryRevocationStore(100, time.Hour),
		users: &fakeUsers{byEmail: map[string]*model.User{
			"admin@sigescon.local": {
				ID: 1, Nome: "Administrador", Email: "admin@sigescon.local",
				PerfilNome: rbac.RoleAdmin, SenhaHash: string(hash), Ativo: true,
			},
		}},
		lookups: newFakeLookups(),
		files:   &fakeFiles{rows: map[int64]*model.File{}},
		store:   store,
	}

	repos := &repository.Repositories{Users: env.users, Lookups: env.lookups, Files: env.files}
	lookupsSvc := service.NewLookupService(env.lookups, 16, time.Minute, logger)
	filesSvc := service.NewFileService(repos, nil, store, logger)
	svc := Services{
		Auth:       service.NewAuthService(env.users, env.tokens, env.revoked, logger),
		Lookups:    lookupsSvc,
		Users:      service.NewUserService(env.users, lookupsSvc, logger),
		Contracts:  service.NewContractService(repos, nil, filesSvc, lookupsSvc, nil, logger),
		Pendencies: service.NewPendencyService(repos, lookupsSvc, logger),
		Reports:    service.NewReportService(repos, nil, filesSvc, lookupsSvc, nil, logger),
		Files:      filesSvc,
	}
	env.handler = NewAPIHandler(NewHealthHandler(nil, nil, nil), svc, 1<<20, logger)
	return env
}

// --- Request helpers ---

// withParams помещает параметры пути chi в запрос.
func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func withCaller(r *http.Request, id int64, perfil string) *http.Request {
	return r.WithContext(middleware.WithClaims(r.Context(), &middleware.AuthClaims{
		UserID: id, Perfil: perfil, JTI: "test-jti", ExpiresAt: time.Now().Add(time.Hour),
	}))
}

func jsonRequest(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

type formFile struct {
	field, name, content string
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := io.WriteString(fw, f.content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("тело ошибки не JSON: %v (%q)", err, rec.Body.String())
	}
	return body
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, ожидалось %d (тело %q)", rec.Code, status, rec.Body.String())
	}
	body := decodeError(t, rec)
	if body.Error.Code != code {
		t.Errorf("code = %q, ожидалось %q", body.Error.Code, code)
	}
	return body
}

// assertMessage проверяет, что текст ошибки упоминает want без учёта регистра.
func assertMessage(t *testing.T, body errorResponse, want string) {
	t.Helper()
	if !strings.Contains(strings.ToLower(body.Error.Message), strings.ToLower(want)) {
		t.Errorf("message = %q, ожидалось упоминание %q", body.Error.Message, want)
	}
}
