// fakes_test.go — in-memory реализации репозиториев, транзакций и уведомлений для unit-тестов.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/notify"
	"github.com/bigkaa/sigescon/internal/repository"
	"github.com/bigkaa/sigescon/internal/storage/filestore"
)

// --- memDB: общее состояние всех fake-репозиториев ---

type lookupRow struct {
	model.Lookup
	ativo bool
}

type memDB struct {
	mu         sync.Mutex
	nextID     int64
	lookups    map[model.LookupKind]map[int64]lookupRow
	users      map[int64]model.User
	parties    map[int64]model.ContractedParty
	contracts  map[int64]model.Contract
	pendencies map[int64]model.Pendency
	reports    map[int64]model.Report
	files      map[int64]model.File

	// failReportCreate — ошибка, возвращаемая Reports.Create (для проверки отката).
	failReportCreate error
}

func newMemDB() *memDB {
	db := &memDB{
		lookups:    map[model.LookupKind]map[int64]lookupRow{},
		users:      map[int64]model.User{},
		parties:    map[int64]model.ContractedParty{},
		contracts:  map[int64]model.Contract{},
		pendencies: map[int64]model.Pendency{},
		reports:    map[int64]model.Report{},
		files:      map[int64]model.File{},
	}
	seed := map[model.LookupKind][]string{
		model.KindPerfil:          {"Administrador", "Gestor", "Fiscal"},
		model.KindStatusRelatorio: {"Pendente de Análise", "Aprovado", "Rejeitado com Pendência"},
		model.KindStatusPendencia: {"Pendente", "Concluída", "Cancelada"},
		model.KindStatus:          {"Vigente", "Encerrado", "Rescindido", "Suspenso", "Aguardando Publicação"},
		model.KindModalidade:      {"Pregão", "Concorrência", "Dispensa de Licitação"},
	}
	for _, kind := range model.LookupKinds {
		db.lookups[kind] = map[int64]lookupRow{}
		for _, nome := range seed[kind] {
			id := db.id()
			db.lookups[kind][id] = lookupRow{Lookup: model.Lookup{ID: id, Nome: nome}, ativo: true}
		}
	}
	return db
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

// snapshot/restore имитируют откат транзакции.
type memSnapshot struct {
	lookups    map[model.LookupKind]map[int64]lookupRow
	users      map[int64]model.User
	parties    map[int64]model.ContractedParty
	contracts  map[int64]model.Contract
	pendencies map[int64]model.Pendency
	reports    map[int64]model.Report
	files      map[int64]model.File
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	lookups := map[model.LookupKind]map[int64]lookupRow{}
	for k, v := range db.lookups {
		lookups[k] = maps.Clone(v)
	}
	return memSnapshot{
		lookups: lookups,
		users:   maps.Clone(db.users), parties: maps.Clone(db.parties),
		contracts: maps.Clone(db.contracts), pendencies: maps.Clone(db.pendencies),
		reports: maps.Clone(db.reports), files: maps.Clone(db.files),
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.lookups, db.users, db.parties = s.lookups, s.users, s.parties
	db.contracts, db.pendencies, db.reports, db.files = s.contracts, s.pendencies, s.reports, s.files
}

func (db *memDB) lookupName(kind model.LookupKind, id int64) string {
	return db.lookups[kind][id].Nome
}

func (db *memDB) lookupID(kind model.LookupKind, nome string) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	for id, row := range db.lookups[kind] {
		if row.Nome == nome {
			return id
		}
	}
	return 0
}

func (db *memDB) repositories() *repository.Repositories {
	return &repository.Repositories{
		Lookups:    &fakeLookupRepo{db},
		Users:      &fakeUserRepo{db},
		Parties:    &fakePartyRepo{db},
		Contracts:  &fakeContractRepo{db},
		Pendencies: &fakePendencyRepo{db},
		Reports:    &fakeReportRepo{db},
		Files:      &fakeFileRepo{db},
	}
}

// --- fakeTx ---

type fakeTx struct {
	db    *memDB
	calls int
}

func (t *fakeTx) InTx(_ context.Context, fn func(repos *repository.Repositories) error) error {
	t.calls++
	snap := t.db.snapshot()
	if err := fn(t.db.repositories()); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

// --- lookups ---

type fakeLookupRepo struct{ db *memDB }

func (r *fakeLookupRepo) Create(_ context.Context, kind model.LookupKind, nome string) (*model.Lookup, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, row := range r.db.lookups[kind] {
		if row.Nome == nome {
			return nil, repository.ErrConflict
		}
	}
	id := r.db.id()
	row := lookupRow{Lookup: model.Lookup{ID: id, Nome: nome, CreatedAt: time.Now()}, ativo: true}
	r.db.lookups[kind][id] = row
	l := row.Lookup
	return &l, nil
}

func (r *fakeLookupRepo) List(_ context.Context, kind model.LookupKind) ([]*model.Lookup, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Lookup
	for _, row := range r.db.lookups[kind] {
		if row.ativo {
			l := row.Lookup
			out = append(out, &l)
		}
	}
	slices.SortFunc(out, func(a, b *model.Lookup) int { return strings.Compare(a.Nome, b.Nome) })
	return out, nil
}

func (r *fakeLookupRepo) GetByID(_ context.Context, kind model.LookupKind, id int64) (*model.Lookup, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.lookups[kind][id]
	if !ok || !row.ativo {
		return nil, repository.ErrNotFound
	}
	l := row.Lookup
	return &l, nil
}

func (r *fakeLookupRepo) GetByName(_ context.Context, kind model.LookupKind, nome string) (*model.Lookup, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, row := range r.db.lookups[kind] {
		if row.ativo && row.Nome == nome {
			l := row.Lookup
			return &l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeLookupRepo) Update(_ context.Context, kind model.LookupKind, id int64, nome string) (*model.Lookup, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.lookups[kind][id]
	if !ok || !row.ativo {
		return nil, repository.ErrNotFound
	}
	row.Nome = nome
	r.db.lookups[kind][id] = row
	l := row.Lookup
	return &l, nil
}

func (r *fakeLookupRepo) Delete(_ context.Context, kind model.LookupKind, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.lookups[kind][id]
	if !ok || !row.ativo {
		return repository.ErrNotFound
	}
	row.ativo = false
	r.db.lookups[kind][id] = row
	return nil
}

func (r *fakeLookupRepo) InUse(_ context.Context, kind model.LookupKind, id int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	switch kind {
	case model.KindPerfil:
		for _, u := range r.db.users {
			if u.Ativo && u.PerfilID == id {
				return true, nil
			}
		}
	case model.KindModalidade, model.KindStatus:
		for _, c := range r.db.contracts {
			if c.Ativo && ((kind == model.KindStatus && c.StatusID == id) || (kind == model.KindModalidade && c.ModalidadeID == id)) {
				return true, nil
			}
		}
	case model.KindStatusRelatorio:
		for _, rep := range r.db.reports {
			if rep.StatusID == id {
				return true, nil
			}
		}
	case model.KindStatusPendencia:
		for _, p := range r.db.pendencies {
			if p.StatusPendenciaID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

// --- users ---

type fakeUserRepo struct{ db *memDB }

func (r *fakeUserRepo) fill(u model.User) *model.User {
	u.PerfilNome = r.db.lookupName(model.KindPerfil, u.PerfilID)
	return &u
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, other := range r.db.users {
		if other.Email == u.Email {
			return repository.ErrConflict
		}
	}
	u.ID = r.db.id()
	u.Ativo = true
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	r.db.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok || !u.Ativo {
		return nil, repository.ErrNotFound
	}
	return r.fill(u), nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Ativo && u.Email == email {
			return r.fill(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) filtered(filter repository.UserFilter) []*model.User {
	var out []*model.User
	for _, u := range r.db.users {
		if !u.Ativo || (filter.PerfilID != nil && u.PerfilID != *filter.PerfilID) {
			continue
		}
		out = append(out, r.fill(u))
	}
	slices.SortFunc(out, func(a, b *model.User) int { return strings.Compare(a.Nome, b.Nome) })
	return out
}

func (r *fakeUserRepo) List(_ context.Context, filter repository.UserFilter, limit, offset int) ([]*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return page(r.filtered(filter), limit, offset), nil
}

func (r *fakeUserRepo) Count(_ context.Context, filter repository.UserFilter) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.filtered(filter)), nil
}

func (r *fakeUserRepo) Update(_ context.Context, id int64, upd model.UserUpdate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok || !u.Ativo {
		return repository.ErrNotFound
	}
	if upd.Nome != nil {
		u.Nome = *upd.Nome
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.CPF != nil {
		u.CPF = upd.CPF
	}
	if upd.Matricula != nil {
		u.Matricula = upd.Matricula
	}
	if upd.PerfilID != nil {
		u.PerfilID = *upd.PerfilID
	}
	r.db.users[id] = u
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok || !u.Ativo {
		return repository.ErrNotFound
	}
	u.SenhaHash = hash
	r.db.users[id] = u
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok || !u.Ativo {
		return repository.ErrNotFound
	}
	u.Ativo = false
	r.db.users[id] = u
	return nil
}

func (r *fakeUserRepo) CountActiveContracts(_ context.Context, id int64) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, c := range r.db.contracts {
		if c.Ativo && (c.GestorID == id || c.FiscalID == id || (c.FiscalSubstitutoID != nil && *c.FiscalSubstitutoID == id)) {
			n++
		}
	}
	return n, nil
}

// --- contracted parties ---

type fakePartyRepo struct{ db *memDB }

func (r *fakePartyRepo) Create(_ context.Context, p *model.ContractedParty) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, other := range r.db.parties {
		if other.Email == p.Email {
			return repository.ErrConflict
		}
	}
	p.ID = r.db.id()
	p.Ativo = true
	r.db.parties[p.ID] = *p
	return nil
}

func (r *fakePartyRepo) GetByID(_ context.Context, id int64) (*model.ContractedParty, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.parties[id]
	if !ok || !p.Ativo {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *fakePartyRepo) active() []*model.ContractedParty {
	var out []*model.ContractedParty
	for _, p := range r.db.parties {
		if p.Ativo {
			out = append(out, &p)
		}
	}
	slices.SortFunc(out, func(a, b *model.ContractedParty) int { return strings.Compare(a.Nome, b.Nome) })
	return out
}

func (r *fakePartyRepo) List(_ context.Context, limit, offset int) ([]*model.ContractedParty, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return page(r.active(), limit, offset), nil
}

func (r *fakePartyRepo) Count(_ context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.active()), nil
}

func (r *fakePartyRepo) Update(_ context.Context, id int64, upd model.ContractedPartyUpdate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.parties[id]
	if !ok || !p.Ativo {
		return repository.ErrNotFound
	}
	if upd.Nome != nil {
		p.Nome = *upd.Nome
	}
	if upd.Email != nil {
		p.Email = *upd.Email
	}
	if upd.Telefone != nil {
		p.Telefone = upd.Telefone
	}
	r.db.parties[id] = p
	return nil
}

func (r *fakePartyRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.parties[id]
	if !ok || !p.Ativo {
		return repository.ErrNotFound
	}
	p.Ativo = false
	r.db.parties[id] = p
	return nil
}

func (r *fakePartyRepo) InUse(_ context.Context, id int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.contracts {
		if c.Ativo && c.ContratadoID == id {
			return true, nil
		}
	}
	return false, nil
}

// --- contracts ---

type fakeContractRepo struct{ db *memDB }

func (r *fakeContractRepo) Create(_ context.Context, c *model.Contract) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, other := range r.db.contracts {
		if other.NrContrato == c.NrContrato {
			return repository.ErrConflict
		}
	}
	c.ID = r.db.id()
	c.Ativo = true
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	r.db.contracts[c.ID] = *c
	return nil
}

func (r *fakeContractRepo) GetByID(_ context.Context, id int64) (*model.Contract, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.contracts[id]
	if !ok || !c.Ativo {
		return nil, repository.ErrNotFound
	}
	c.ContratadoNome = r.db.parties[c.ContratadoID].Nome
	c.ModalidadeNome = r.db.lookupName(model.KindModalidade, c.ModalidadeID)
	c.StatusNome = r.db.lookupName(model.KindStatus, c.StatusID)
	c.GestorNome = r.db.users[c.GestorID].Nome
	c.FiscalNome = r.db.users[c.FiscalID].Nome
	return &c, nil
}

func (r *fakeContractRepo) filtered(f model.ContractFilter) []*model.ContractSummary {
	var out []*model.ContractSummary
	for _, c := range r.db.contracts {
		switch {
		case !c.Ativo,
			f.GestorID != nil && c.GestorID != *f.GestorID,
			f.FiscalID != nil && c.FiscalID != *f.FiscalID,
			f.StatusID != nil && c.StatusID != *f.StatusID,
			f.NrContrato != nil && c.NrContrato != *f.NrContrato,
			f.Objeto != nil && !strings.Contains(strings.ToLower(c.Objeto), strings.ToLower(*f.Objeto)),
			f.Ano != nil && c.DataInicio.Year() != *f.Ano:
			continue
		}
		out = append(out, &model.ContractSummary{
			ID: c.ID, NrContrato: c.NrContrato, Objeto: c.Objeto,
			DataInicio: c.DataInicio, DataFim: c.DataFim,
			StatusNome: r.db.lookupName(model.KindStatus, c.StatusID),
			GestorID:   c.GestorID, FiscalID: c.FiscalID,
		})
	}
	slices.SortFunc(out, func(a, b *model.ContractSummary) int { return b.DataFim.Compare(a.DataFim.Time) })
	return out
}

func (r *fakeContractRepo) List(_ context.Context, f model.ContractFilter, limit, offset int) ([]*model.ContractSummary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return page(r.filtered(f), limit, offset), nil
}

func (r *fakeContractRepo) Count(_ context.Context, f model.ContractFilter) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.filtered(f)), nil
}

func (r *fakeContractRepo) Update(_ context.Context, id int64, upd model.ContractUpdate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.contracts[id]
	if !ok || !c.Ativo {
		return repository.ErrNotFound
	}
	if upd.Objeto != nil {
		c.Objeto = *upd.Objeto
	}
	if upd.DataInicio != nil {
		c.DataInicio = *upd.DataInicio
	}
	if upd.DataFim != nil {
		c.DataFim = *upd.DataFim
	}
	if upd.FiscalID != nil {
		c.FiscalID = *upd.FiscalID
	}
	if upd.StatusID != nil {
		c.StatusID = *upd.StatusID
	}
	r.db.contracts[id] = c
	return nil
}

func (r *fakeContractRepo) SetDocument(_ context.Context, id int64, fileID *int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.contracts[id]
	if !ok || !c.Ativo {
		return repository.ErrNotFound
	}
	c.Documento = fileID
	r.db.contracts[id] = c
	return nil
}

func (r *fakeContractRepo) UnlinkDocument(_ context.Context, fileID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, c := range r.db.contracts {
		if c.Documento != nil && *c.Documento == fileID {
			c.Documento = nil
			r.db.contracts[id] = c
		}
	}
	return nil
}

func (r *fakeContractRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.contracts[id]
	if !ok || !c.Ativo {
		return repository.ErrNotFound
	}
	c.Ativo = false
	r.db.contracts[id] = c
	return nil
}

// --- pendencies ---

type fakePendencyRepo struct{ db *memDB }

func (r *fakePendencyRepo) fill(p model.Pendency) *model.Pendency {
	p.StatusNome = r.db.lookupName(model.KindStatusPendencia, p.StatusPendenciaID)
	p.CriadoPorNome = r.db.users[p.CriadoPorUsuarioID].Nome
	return &p
}

func (r *fakePendencyRepo) Create(_ context.Context, p *model.Pendency) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p.ID = r.db.id()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	r.db.pendencies[p.ID] = *p
	return nil
}

func (r *fakePendencyRepo) GetByID(_ context.Context, id int64) (*model.Pendency, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.pendencies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.fill(p), nil
}

func (r *fakePendencyRepo) ListByContract(_ context.Context, contractID int64) ([]*model.Pendency, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*model.Pendency{}
	for _, p := range r.db.pendencies {
		if p.ContratoID == contractID {
			out = append(out, r.fill(p))
		}
	}
	slices.SortFunc(out, func(a, b *model.Pendency) int { return a.DataPrazo.Compare(b.DataPrazo.Time) })
	return out, nil
}

func (r *fakePendencyRepo) SetStatus(_ context.Context, id, statusID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.pendencies[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.StatusPendenciaID = statusID
	r.db.pendencies[id] = p
	return nil
}

func (r *fakePendencyRepo) ConcludeIfPending(_ context.Context, id, fromStatusID, toStatusID int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.pendencies[id]
	if !ok || p.StatusPendenciaID != fromStatusID {
		return false, nil
	}
	p.StatusPendenciaID = toStatusID
	r.db.pendencies[id] = p
	return true, nil
}

func (r *fakePendencyRepo) ListRemindable(_ context.Context, statusName string) ([]*model.PendencyReminder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.PendencyReminder
	for _, p := range r.db.pendencies {
		if r.db.lookupName(model.KindStatusPendencia, p.StatusPendenciaID) != statusName {
			continue
		}
		c, ok := r.db.contracts[p.ContratoID]
		if !ok || !c.Ativo {
			continue
		}
		fiscal, ok := r.db.users[c.FiscalID]
		if !ok || !fiscal.Ativo {
			continue
		}
		out = append(out, &model.PendencyReminder{
			PendenciaID: p.ID, Descricao: p.Descricao, DataPrazo: p.DataPrazo,
			ContratoID: c.ID, NrContrato: c.NrContrato,
			FiscalNome: fiscal.Nome, FiscalEmail: fiscal.Email,
		})
	}
	slices.SortFunc(out, func(a, b *model.PendencyReminder) int { return a.DataPrazo.Compare(b.DataPrazo.Time) })
	return out, nil
}

// --- reports ---

type fakeReportRepo struct{ db *memDB }

func (r *fakeReportRepo) fill(rep model.Report) *model.Report {
	rep.EnviadoPor = r.db.users[rep.FiscalUsuarioID].Nome
	rep.StatusRelatorio = r.db.lookupName(model.KindStatusRelatorio, rep.StatusID)
	rep.NomeArquivo = r.db.files[rep.ArquivoID].NomeArquivo
	return &rep
}

func (r *fakeReportRepo) Create(_ context.Context, rep *model.Report) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failReportCreate != nil {
		return r.db.failReportCreate
	}
	rep.ID = r.db.id()
	rep.CreatedAt, rep.UpdatedAt = time.Now(), time.Now()
	r.db.reports[rep.ID] = *rep
	return nil
}

func (r *fakeReportRepo) GetByID(_ context.Context, id int64) (*model.Report, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rep, ok := r.db.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.fill(rep), nil
}

func (r *fakeReportRepo) ListByContract(_ context.Context, contractID int64) ([]*model.Report, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*model.Report{}
	for _, rep := range r.db.reports {
		if rep.ContratoID == contractID {
			out = append(out, r.fill(rep))
		}
	}
	slices.SortFunc(out, func(a, b *model.Report) int { return int(b.ID - a.ID) })
	return out, nil
}

func (r *fakeReportRepo) Analyze(_ context.Context, id, statusID, approverID int64, remarks *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rep, ok := r.db.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	rep.StatusID, rep.AprovadorUsuarioID, rep.ObservacoesAprovador, rep.DataAnalise = statusID, &approverID, remarks, &now
	r.db.reports[id] = rep
	return nil
}

func (r *fakeReportRepo) Resubmit(_ context.Context, id, fileID, statusID int64, remarks *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rep, ok := r.db.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	rep.ArquivoID, rep.StatusID, rep.ObservacoesFiscal = fileID, statusID, remarks
	rep.AprovadorUsuarioID, rep.ObservacoesAprovador, rep.DataAnalise = nil, nil, nil
	r.db.reports[id] = rep
	return nil
}

func (r *fakeReportRepo) CountByFile(_ context.Context, fileID int64) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, rep := range r.db.reports {
		if rep.ArquivoID == fileID {
			n++
		}
	}
	return n, nil
}

// --- files ---

type fakeFileRepo struct{ db *memDB }

func (r *fakeFileRepo) Create(_ context.Context, f *model.File) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f.ID = r.db.id()
	f.CreatedAt = time.Now()
	r.db.files[f.ID] = *f
	return nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, id int64) (*model.File, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (r *fakeFileRepo) ListByContract(_ context.Context, contractID int64) ([]*model.File, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*model.File{}
	for _, f := range r.db.files {
		if f.ContratoID == contractID {
			out = append(out, &f)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.files[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.files, id)
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

// --- notifier ---

type sentMail struct {
	kind string
	to   string
	msg  notify.Message
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	// failFor — получатели, для которых отправка завершается ошибкой.
	failFor map[string]bool
}

func (n *fakeNotifier) Notify(_ context.Context, kind, to string, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[to] {
		return errors.New("smtp: connection refused")
	}
	n.sent = append(n.sent, sentMail{kind: kind, to: to, msg: msg})
	return nil
}

func (n *fakeNotifier) byKind(kind string) []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMail
	for _, m := range n.sent {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// --- тестовое окружение ---

type testEnv struct {
	db         *memDB
	tx         *fakeTx
	store      *filestore.FileStore
	notifier   *fakeNotifier
	lookups    *LookupService
	files      *FileService
	contracts  *ContractService
	pendencies *PendencyService
	reports    *ReportService
	users      *UserService
	parties    *ContractedPartyService

	admin, gestor, fiscal *model.User
	party                 *model.ContractedParty
	contract              *model.Contract
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv создаёт сервисы поверх memDB с администратором, гестором,
// фискалом, контрагентом и контрактом.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newMemDB()
	repos := db.repositories()
	tx := &fakeTx{db: db}
	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	notifier := &fakeNotifier{}
	logger := testLogger()

	env := &testEnv{db: db, tx: tx, store: store, notifier: notifier}
	env.lookups = NewLookupService(repos.Lookups, 64, time.Minute, logger)
	env.files = NewFileService(repos, tx, store, logger)
	env.contracts = NewContractService(repos, tx, env.files, env.lookups, notifier, logger)
	env.pendencies = NewPendencyService(repos, env.lookups, logger)
	env.reports = NewReportService(repos, tx, env.files, env.lookups, notifier, logger)
	env.users = NewUserService(repos.Users, env.lookups, logger)
	env.parties = NewContractedPartyService(repos.Parties, logger)

	ctx := context.Background()
	env.admin = env.mustUser(t, "Admin", "admin@sigescon.local", "Administrador")
	env.gestor = env.mustUser(t, "Gestora Maria", "gestor@sigescon.local", "Gestor")
	env.fiscal = env.mustUser(t, "Fiscal João", "fiscal@sigescon.local", "Fiscal")

	env.party, err = env.parties.Create(ctx, &model.ContractedParty{Nome: "ACME Ltda", Email: "contato@acme.com"})
	if err != nil {
		t.Fatalf("создание контрагента: %v", err)
	}

	env.contract, err = env.contracts.Create(ctx, env.newContract("001/2025"), nil)
	if err != nil {
		t.Fatalf("создание контракта: %v", err)
	}
	notifier.sent = nil
	return env
}

func (env *testEnv) mustUser(t *testing.T, nome, email, perfil string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("senha123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u := &model.User{Nome: nome, Email: email, PerfilID: env.db.lookupID(model.KindPerfil, perfil), SenhaHash: string(hash)}
	if err := env.db.repositories().Users.Create(context.Background(), u); err != nil {
		t.Fatalf("создание пользователя %s: %v", email, err)
	}
	u.PerfilNome = perfil
	return u
}

func (env *testEnv) newContract(nr string) *model.Contract {
	return &model.Contract{
		NrContrato:   nr,
		Objeto:       "Serviços de limpeza",
		DataInicio:   model.NewDate(2025, time.January, 1),
		DataFim:      model.NewDate(2025, time.December, 31),
		ContratadoID: env.party.ID,
		ModalidadeID: env.db.lookupID(model.KindModalidade, "Pregão"),
		StatusID:     env.db.lookupID(model.KindStatus, "Vigente"),
		GestorID:     env.gestor.ID,
		FiscalID:     env.fiscal.ID,
	}
}

func (env *testEnv) adminCaller() Caller {
	return Caller{UserID: env.admin.ID, Perfil: env.admin.PerfilNome}
}

func (env *testEnv) fiscalCaller() Caller {
	return Caller{UserID: env.fiscal.ID, Perfil: env.fiscal.PerfilNome}
}

// mustPendency создаёт обязательство по контракту окружения.
func (env *testEnv) mustPendency(t *testing.T, descricao string, prazo model.Date) *model.Pendency {
	t.Helper()
	p, err := env.pendencies.Create(context.Background(), env.contract.ID, CreatePendencyInput{
		Descricao:          descricao,
		DataPrazo:          &prazo,
		CriadoPorUsuarioID: env.admin.ID,
	})
	if err != nil {
		t.Fatalf("создание обязательства: %v", err)
	}
	return p
}

func textUpload(name, content string) *Upload {
	return &Upload{Filename: name, ContentType: "text/plain", Reader: strings.NewReader(content)}
}

func ptr[T any](v T) *T { return &v }
