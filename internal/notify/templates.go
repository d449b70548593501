package notify

import (
	"fmt"
	"strings"

	"github.com/bigkaa/sigescon/internal/domain/model"
)

// Message — готовое письмо.
type Message struct {
	Subject string
	Body    string
}

const dateBR = "02/01/2006"

// ReminderMessage — напоминание фискалу о сроке обязательства.
func ReminderMessage(r *model.PendencyReminder, daysRemaining int) Message {
	var deadline string
	if daysRemaining == 0 {
		deadline = fmt.Sprintf("O prazo para envio expira HOJE (%s).", r.DataPrazo.Format(dateBR))
	} else {
		deadline = fmt.Sprintf("O prazo para envio expira em %d dia(s) (%s).", daysRemaining, r.DataPrazo.Format(dateBR))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Olá, %s,\n\n", r.FiscalNome)
	fmt.Fprintf(&b, "Este é um lembrete automático sobre uma pendência de relatório para o contrato '%s'.\n\n", r.NrContrato)
	fmt.Fprintf(&b, "- Descrição: %s\n", r.Descricao)
	fmt.Fprintf(&b, "- %s\n\n", deadline)
	b.WriteString("Por favor, não se esqueça de submeter o relatório a tempo.\n\n")
	b.WriteString("Atenciosamente,\nSistema SIGESCON")

	return Message{
		Subject: fmt.Sprintf("Lembrete de Prazo: Pendência do Contrato %s", r.NrContrato),
		Body:    b.String(),
	}
}

// RejectionMessage — уведомление фискала об отклонении отчёта.
func RejectionMessage(fiscalNome, nrContrato string, mesCompetencia model.Date, observacoes string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá, %s,\n\n", fiscalNome)
	fmt.Fprintf(&b, "O seu relatório referente ao mês de competência %s do contrato '%s' foi rejeitado.\n\n",
		mesCompetencia.Format("01/2006"), nrContrato)
	fmt.Fprintf(&b, "Motivo da rejeição: \"%s\"\n\n", observacoes)
	b.WriteString("Por favor, realize as correções necessárias e envie o relatório novamente.\n\n")
	b.WriteString("Atenciosamente,\nSistema SIGESCON")

	return Message{
		Subject: fmt.Sprintf("Relatório Rejeitado - Contrato %s", nrContrato),
		Body:    b.String(),
	}
}

// AssignmentMessage — уведомление о назначении гестором или фискалом контракта.
func AssignmentMessage(nome, papel, nrContrato, objeto string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá, %s,\n\n", nome)
	fmt.Fprintf(&b, "Você foi designado como %s do contrato abaixo:\n\n", papel)
	fmt.Fprintf(&b, "- Número: %s\n", nrContrato)
	fmt.Fprintf(&b, "- Objeto: %s\n\n", objeto)
	b.WriteString("Por favor, acesse o sistema SIGESCON para mais detalhes.\n\n")
	b.WriteString("Atenciosamente,\nSistema SIGESCON")

	return Message{
		Subject: fmt.Sprintf("Você foi designado como %s de um novo contrato", papel),
		Body:    b.String(),
	}
}
