package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/domain/rbac"
	"github.com/bigkaa/sigescon/internal/notify"
	"github.com/bigkaa/sigescon/internal/repository"
	"github.com/bigkaa/sigescon/internal/service"
)

// --- Хранилище рабочего процесса в памяти ---

type workflowDB struct {
	mu         sync.Mutex
	nextID     int64
	lookups    map[model.LookupKind][]*model.Lookup
	contract   *model.Contract
	pendencies map[int64]*model.Pendency
	reports    map[int64]*model.Report
	files      map[int64]*model.File
}

func (db *workflowDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *workflowDB) lookupID(kind model.LookupKind, nome string) int64 {
	for _, l := range db.lookups[kind] {
		if l.Nome == nome {
			return l.ID
		}
	}
	return 0
}

func (db *workflowDB) lookupName(kind model.LookupKind, id int64) string {
	for _, l := range db.lookups[kind] {
		if l.ID == id {
			return l.Nome
		}
	}
	return ""
}

type wfLookups struct {
	repository.LookupRepository
	db *workflowDB
}

func (r wfLookups) GetByID(_ context.Context, kind model.LookupKind, id int64) (*model.Lookup, error) {
	for _, l := range r.db.lookups[kind] {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r wfLookups) GetByName(_ context.Context, kind model.LookupKind, nome string) (*model.Lookup, error) {
	for _, l := range r.db.lookups[kind] {
		if l.Nome == nome {
			return l, nil
		}
	}
	return nil, repository.ErrNotFound
}

type wfContracts struct {
	repository.ContractRepository
	db *workflowDB
}

func (r wfContracts) GetByID(_ context.Context, id int64) (*model.Contract, error) {
	if r.db.contract.ID != id {
		return nil, repository.ErrNotFound
	}
	return r.db.contract, nil
}

type wfPendencies struct {
	repository.PendencyRepository
	db *workflowDB
}

func (r wfPendencies) GetByID(_ context.Context, id int64) (*model.Pendency, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.pendencies[id]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (r wfPendencies) ConcludeIfPending(_ context.Context, id, fromStatusID, toStatusID int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.pendencies[id]
	if !ok || p.StatusPendenciaID != fromStatusID {
		return false, nil
	}
	p.StatusPendenciaID = toStatusID
	p.StatusNome = r.db.lookupName(model.KindStatusPendencia, toStatusID)
	return true, nil
}

type wfReports struct {
	repository.ReportRepository
	db *workflowDB
}

func (r wfReports) Create(_ context.Context, rep *model.Report) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rep.ID = r.db.id()
	rep.CreatedAt = time.Now()
	rep.UpdatedAt = rep.CreatedAt
	stored := *rep
	r.db.reports[rep.ID] = &stored
	return nil
}

func (r wfReports) GetByID(_ context.Context, id int64) (*model.Report, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rep, ok := r.db.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *rep
	out.StatusRelatorio = r.db.lookupName(model.KindStatusRelatorio, rep.StatusID)
	if f, ok := r.db.files[rep.ArquivoID]; ok {
		out.NomeArquivo = f.NomeArquivo
	}
	return &out, nil
}

func (r wfReports) Analyze(_ context.Context, id, statusID, approverID int64, remarks *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rep, ok := r.db.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	rep.StatusID, rep.AprovadorUsuarioID, rep.ObservacoesAprovador, rep.DataAnalise = statusID, &approverID, remarks, &now
	return nil
}

func (r wfReports) Resubmit(_ context.Context, id, fileID, statusID int64, remarks *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rep, ok := r.db.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	rep.ArquivoID, rep.StatusID, rep.ObservacoesFiscal = fileID, statusID, remarks
	rep.AprovadorUsuarioID, rep.ObservacoesAprovador, rep.DataAnalise = nil, nil, nil
	return nil
}

type wfFiles struct {
	repository.FileRepository
	db *workflowDB
}

func (r wfFiles) Create(_ context.Context, f *model.File) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f.ID = r.db.id()
	stored := *f
	r.db.files[f.ID] = &stored
	return nil
}

type wfTx struct{ repos *repository.Repositories }

func (t wfTx) InTx(_ context.Context, fn func(repos *repository.Repositories) error) error {
	return fn(t.repos)
}

type sentMail struct {
	kind, to string
	msg      notify.Message
}

type wfNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *wfNotifier) Notify(_ context.Context, kind, to string, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: kind, to: to, msg: msg})
	return nil
}

type workflowEnv struct {
	*testEnv
	db       *workflowDB
	notifier *wfNotifier
}

// newWorkflowEnv — окружение с контрактом 1 (фискал 3), открытым обязательством 5
// и справочниками статусов.
func newWorkflowEnv(t *testing.T) *workflowEnv {
	t.Helper()
	env := newTestEnv(t)
	env.users.byEmail["fiscal@sigescon.local"] = &model.User{
		ID: 3, Nome: "Fiscal", Email: "fiscal@sigescon.local", PerfilNome: rbac.RoleFiscal, Ativo: true,
	}

	db := &workflowDB{
		nextID:     100,
		lookups:    map[model.LookupKind][]*model.Lookup{},
		pendencies: map[int64]*model.Pendency{},
		reports:    map[int64]*model.Report{},
		files:      map[int64]*model.File{},
	}
	seed := map[model.LookupKind][]string{
		model.KindStatusRelatorio: {"Pendente de Análise", "Aprovado", "Rejeitado com Pendência"},
		model.KindStatusPendencia: {"Pendente", "Concluída", "Cancelada"},
	}
	for kind, names := range seed {
		for _, nome := range names {
			db.lookups[kind] = append(db.lookups[kind], &model.Lookup{ID: db.id(), Nome: nome})
		}
	}
	db.contract = &model.Contract{ID: 1, NrContrato: "001/2025", GestorID: 2, FiscalID: 3, Ativo: true}
	db.pendencies[5] = &model.Pendency{
		ID: 5, ContratoID: 1, Descricao: "Relatório de março",
		StatusPendenciaID: db.lookupID(model.KindStatusPendencia, "Pendente"), StatusNome: "Pendente",
	}

	repos := &repository.Repositories{
		Users:      env.users,
		Lookups:    wfLookups{db: db},
		Contracts:  wfContracts{db: db},
		Pendencies: wfPendencies{db: db},
		Reports:    wfReports{db: db},
		Files:      wfFiles{db: db},
	}
	logger := testLogger()
	notifier := &wfNotifier{}
	lookups := service.NewLookupService(repos.Lookups, 16, time.Minute, logger)
	files := service.NewFileService(repos, wfTx{repos}, env.store, logger)
	env.handler = NewAPIHandler(NewHealthHandler(nil, nil, nil), Services{
		Lookups: lookups,
		Files:   files,
		Reports: service.NewReportService(repos, wfTx{repos}, files, lookups, notifier, logger),
	}, 1<<20, logger)

	return &workflowEnv{testEnv: env, db: db, notifier: notifier}
}

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) model.Report {
	t.Helper()
	var rep model.Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode: %v (%q)", err, rec.Body.String())
	}
	return rep
}

func (env *workflowEnv) submitValid(t *testing.T) model.Report {
	t.Helper()
	rec := httptest.NewRecorder()
	env.handler.SubmitReport(rec, submitRequest(t, map[string]string{
		"mes_competencia":    "2025-03-15",
		"fiscal_usuario_id":  "3",
		"pendencia_id":       "5",
		"observacoes_fiscal": "sem ocorrências",
		"status_id":          "2",
	}, formFile{"arquivo", "relatorio.pdf", "%PDF-1.4"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Submit status = %d, ожидалось 201 (%s)", rec.Code, rec.Body.String())
	}
	return decodeReport(t, rec)
}

func (env *workflowEnv) analyzeAs(t *testing.T, reportID int64, status, remarks string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(service.AnalyzeReportInput{
		AprovadorUsuarioID:   1,
		StatusID:             env.db.lookupID(model.KindStatusRelatorio, status),
		ObservacoesAprovador: &remarks,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	r := jsonRequest(http.MethodPatch, "/contratos/1/relatorios/x/analise", string(body))
	rec := httptest.NewRecorder()
	env.handler.AnalyzeReport(rec, withParams(r, "id", "1", "rid", strconv.FormatInt(reportID, 10)))
	return rec
}

// --- Тесты ---

// TestSubmitReport_IgnoresClientStatus — статус из формы не влияет на новый отчёт.
func TestSubmitReport_IgnoresClientStatus(t *testing.T) {
	env := newWorkflowEnv(t)

	rep := env.submitValid(t)

	if rep.StatusRelatorio != "Pendente de Análise" {
		t.Errorf("status_relatorio = %q, ожидалось Pendente de Análise", rep.StatusRelatorio)
	}
	if want := env.db.lookupID(model.KindStatusRelatorio, "Pendente de Análise"); rep.StatusID != want {
		t.Errorf("status_id = %d, ожидалось %d", rep.StatusID, want)
	}
	if rep.MesCompetencia.Day() != 1 || rep.MesCompetencia.Month() != time.March {
		t.Errorf("mes_competencia = %s, ожидалось 2025-03-01", rep.MesCompetencia)
	}
	if rep.PendenciaID == nil || *rep.PendenciaID != 5 {
		t.Errorf("pendencia_id = %v, ожидалось 5", rep.PendenciaID)
	}
	if rep.NomeArquivo != "relatorio.pdf" {
		t.Errorf("nome_arquivo = %q", rep.NomeArquivo)
	}
	if got := env.db.pendencies[5].StatusNome; got != "Concluída" {
		t.Errorf("статус обязательства = %q, ожидалось Concluída", got)
	}
}

func TestSubmitReport_PendencyAlreadyConcluded(t *testing.T) {
	env := newWorkflowEnv(t)
	env.submitValid(t)

	rec := httptest.NewRecorder()
	env.handler.SubmitReport(rec, submitRequest(t, map[string]string{
		"mes_competencia": "2025-04-01", "fiscal_usuario_id": "3", "pendencia_id": "5",
	}, formFile{"arquivo", "relatorio.pdf", "%PDF-1.4"}))
	assertError(t, rec, http.StatusConflict, "CONFLICT")
}

func TestSubmitReport_FiscalOnBehalfOfOther(t *testing.T) {
	env := newWorkflowEnv(t)

	rec := httptest.NewRecorder()
	env.handler.SubmitReport(rec, submitRequest(t, map[string]string{
		"mes_competencia": "2025-03-01", "fiscal_usuario_id": "1", "pendencia_id": "5",
	}, formFile{"arquivo", "relatorio.pdf", "%PDF-1.4"}))
	assertError(t, rec, http.StatusForbidden, "FORBIDDEN")
}

func TestAnalyzeReport_RejectThenResubmit(t *testing.T) {
	env := newWorkflowEnv(t)
	rep := env.submitValid(t)

	rec := env.analyzeAs(t, rep.ID, "Rejeitado com Pendência", "falta anexo")
	if rec.Code != http.StatusOK {
		t.Fatalf("Analyze status = %d, ожидалось 200 (%s)", rec.Code, rec.Body.String())
	}
	analyzed := decodeReport(t, rec)
	if analyzed.StatusRelatorio != "Rejeitado com Pendência" {
		t.Errorf("status_relatorio = %q", analyzed.StatusRelatorio)
	}
	if analyzed.AprovadorUsuarioID == nil || analyzed.DataAnalise == nil {
		t.Error("aprovador_usuario_id и data_analise должны быть заданы")
	}
	if len(env.notifier.sent) != 1 || env.notifier.sent[0].to != "fiscal@sigescon.local" ||
		!strings.Contains(env.notifier.sent[0].msg.Body, "falta anexo") {
		t.Errorf("письма = %+v, ожидалось одно фискалу с замечаниями", env.notifier.sent)
	}

	r := multipartRequest(t, http.MethodPut, "/contratos/1/relatorios/x",
		map[string]string{"observacoes_fiscal": "corrigido", "status_id": "2"},
		formFile{"arquivo", "relatorio-v2.pdf", "%PDF-1.4 v2"})
	r = withCaller(withParams(r, "id", "1", "rid", strconv.FormatInt(rep.ID, 10)), 3, rbac.RoleFiscal)
	rec = httptest.NewRecorder()
	env.handler.ResubmitReport(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("Resubmit status = %d, ожидалось 200 (%s)", rec.Code, rec.Body.String())
	}
	resubmitted := decodeReport(t, rec)
	if resubmitted.StatusRelatorio != "Pendente de Análise" {
		t.Errorf("status_relatorio = %q, ожидалось Pendente de Análise", resubmitted.StatusRelatorio)
	}
	if resubmitted.AprovadorUsuarioID != nil || resubmitted.ObservacoesAprovador != nil || resubmitted.DataAnalise != nil {
		t.Error("поля анализа должны быть очищены")
	}
	if resubmitted.NomeArquivo != "relatorio-v2.pdf" || resubmitted.ArquivoID == rep.ArquivoID {
		t.Errorf("файл не заменён: %q (id %d)", resubmitted.NomeArquivo, resubmitted.ArquivoID)
	}
	if resubmitted.ObservacoesFiscal == nil || *resubmitted.ObservacoesFiscal != "corrigido" {
		t.Errorf("observacoes_fiscal = %v", resubmitted.ObservacoesFiscal)
	}
}

func TestAnalyzeReport_Approve(t *testing.T) {
	env := newWorkflowEnv(t)
	rep := env.submitValid(t)

	rec := env.analyzeAs(t, rep.ID, "Aprovado", "ok")
	if rec.Code != http.StatusOK {
		t.Fatalf("Analyze status = %d, ожидалось 200 (%s)", rec.Code, rec.Body.String())
	}
	if got := decodeReport(t, rec).StatusRelatorio; got != "Aprovado" {
		t.Errorf("status_relatorio = %q, ожидалось Aprovado", got)
	}
	if len(env.notifier.sent) != 0 {
		t.Errorf("писем = %d, ожидалось 0", len(env.notifier.sent))
	}

	// Повторная отправка одобренного отчёта недоступна.
	r := multipartRequest(t, http.MethodPut, "/contratos/1/relatorios/x", nil,
		formFile{"arquivo", "relatorio-v2.pdf", "%PDF-1.4"})
	r = withCaller(withParams(r, "id", "1", "rid", strconv.FormatInt(rep.ID, 10)), 3, rbac.RoleFiscal)
	rec = httptest.NewRecorder()
	env.handler.ResubmitReport(rec, r)
	assertError(t, rec, http.StatusConflict, "CONFLICT")
}

func TestAnalyzeReport_PendingIsNotADecision(t *testing.T) {
	env := newWorkflowEnv(t)
	rep := env.submitValid(t)

	rec := env.analyzeAs(t, rep.ID, "Pendente de Análise", "")
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
}
