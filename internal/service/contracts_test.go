package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/sigescon/internal/domain/model"
	"github.com/bigkaa/sigescon/internal/notify"
)

func TestContractCreate_SendsAssignmentEmails(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.contracts.Create(context.Background(), env.newContract("020/2025"), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.StatusNome != "Vigente" || c.GestorNome != env.gestor.Nome {
		t.Errorf("JOIN-поля не заполнены: %+v", c)
	}

	mails := env.notifier.byKind(notify.KindAssignment)
	if len(mails) != 2 {
		t.Fatalf("писем о назначении = %d, ожидалось 2", len(mails))
	}
	if mails[0].to != env.gestor.Email || mails[1].to != env.fiscal.Email {
		t.Errorf("получатели = %q, %q", mails[0].to, mails[1].to)
	}
	if mails[1].msg.Subject != "Você foi designado como Fiscal de um novo contrato" {
		t.Errorf("тема = %q", mails[1].msg.Subject)
	}
}

func TestContractCreate_EmailFailureDoesNotFail(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.failFor = map[string]bool{env.gestor.Email: true, env.fiscal.Email: true}

	if _, err := env.contracts.Create(context.Background(), env.newContract("021/2025"), nil); err != nil {
		t.Fatalf("Create при сбое писем: %v", err)
	}
}

func TestContractCreate_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		mutate  func(c *model.Contract)
		doc     *Upload
		wantErr error
	}{
		{"без номера", func(c *model.Contract) { c.NrContrato = " " }, nil, ErrValidation},
		{"без fiscal_id", func(c *model.Contract) { c.FiscalID = 0 }, nil, ErrValidation},
		{"окончание раньше начала", func(c *model.Contract) { c.DataFim = model.NewDate(2024, time.December, 31) }, nil, ErrValidation},
		{"неизвестный контрагент", func(c *model.Contract) { c.ContratadoID = 9999 }, nil, ErrNotFound},
		{"неизвестная модальность", func(c *model.Contract) { c.ModalidadeID = 9999 }, nil, ErrNotFound},
		{"неизвестный статус", func(c *model.Contract) { c.StatusID = 9999 }, nil, ErrNotFound},
		{"неизвестный гестор", func(c *model.Contract) { c.GestorID = 9999 }, nil, ErrNotFound},
		{"неизвестный замещающий", func(c *model.Contract) { c.FiscalSubstitutoID = ptr(int64(9999)) }, nil, ErrNotFound},
		{"дубликат номера", func(c *model.Contract) { c.NrContrato = "001/2025" }, nil, ErrConflict},
		{"недопустимый документ", func(c *model.Contract) {}, textUpload("contrato.zip", "PK"), ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := env.newContract("030/2025")
			tt.mutate(c)
			if _, err := env.contracts.Create(context.Background(), c, tt.doc); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() = %v, ожидалось %v", err, tt.wantErr)
			}
		})
	}
	assertEmptyStore(t, env)
}

func TestContractList_FiltersAndPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c2 := env.newContract("040/2025")
	c2.Objeto = "Fornecimento de CAFÉ"
	c2.DataFim = model.NewDate(2026, time.June, 30)
	if _, err := env.contracts.Create(ctx, c2, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := env.contracts.List(ctx, model.ContractFilter{}, 1, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 2 || len(res.Items) != 1 || !res.HasMore {
		t.Errorf("total=%d items=%d has_more=%v, ожидалось 2, 1, true", res.Total, len(res.Items), res.HasMore)
	}
	if res.Items[0].NrContrato != "040/2025" {
		t.Errorf("первым должен идти контракт с поздним data_fim, получено %s", res.Items[0].NrContrato)
	}

	res, err = env.contracts.List(ctx, model.ContractFilter{Objeto: ptr("café")}, 100, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 1 || res.HasMore {
		t.Errorf("фильтр objeto: total=%d has_more=%v", res.Total, res.HasMore)
	}

	res, _ = env.contracts.List(ctx, model.ContractFilter{Ano: ptr(2030)}, 100, 0)
	if res.Total != 0 || res.Items == nil {
		t.Errorf("пустой результат должен быть пустым списком, получено %+v", res)
	}
}

func TestContractGet_IncludesReports(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustPendency(t, "Relatório", model.NewDate(2025, time.March, 1))
	env.submit(t, p, "relatorio.txt")

	c, err := env.contracts.Get(context.Background(), env.contract.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(c.Relatorios) != 1 {
		t.Errorf("relatorios_fiscais = %d, ожидалось 1", len(c.Relatorios))
	}
}

func TestContractUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	got, err := env.contracts.Update(ctx, env.contract.ID, model.ContractUpdate{Objeto: ptr("Novo objeto")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Objeto != "Novo objeto" {
		t.Errorf("objeto = %q", got.Objeto)
	}

	if _, err := env.contracts.Update(ctx, env.contract.ID, model.ContractUpdate{}); !errors.Is(err, ErrValidation) {
		t.Errorf("Update(пусто) = %v, ожидалось ErrValidation", err)
	}
	early := model.NewDate(2024, time.January, 1)
	if _, err := env.contracts.Update(ctx, env.contract.ID, model.ContractUpdate{DataFim: &early}); !errors.Is(err, ErrValidation) {
		t.Errorf("Update(data_fim < data_inicio) = %v, ожидалось ErrValidation", err)
	}
	if _, err := env.contracts.Update(ctx, env.contract.ID, model.ContractUpdate{FiscalID: ptr(int64(9999))}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(нет фискала) = %v, ожидалось ErrNotFound", err)
	}
	if _, err := env.contracts.Update(ctx, 9999, model.ContractUpdate{Objeto: ptr("x")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(нет контракта) = %v, ожидалось ErrNotFound", err)
	}
}

func TestContractDelete_Soft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.contracts.Delete(ctx, env.contract.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := env.contracts.Get(ctx, env.contract.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(удалённый) = %v, ожидалось ErrNotFound", err)
	}
	if _, ok := env.db.contracts[env.contract.ID]; !ok {
		t.Error("строка контракта должна остаться в хранилище")
	}
	if err := env.contracts.Delete(ctx, env.contract.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Delete = %v, ожидалось ErrNotFound", err)
	}
}
