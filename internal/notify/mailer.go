// Пакет notify — исходящая почта: абстракция отправителя,
// SMTP-реализация и шаблоны писем.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/bigkaa/sigescon/internal/config"
)

// Mailer отправляет текстовое письмо одному получателю.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer — отправка через SMTP (STARTTLS, PLAIN-аутентификация).
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
}

// NewSMTPMailer создаёт SMTP-отправителя из конфигурации.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		timeout:  15 * time.Second,
	}
}

// Send отправляет письмо. Соединение открывается на каждое письмо.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("некорректный адрес отправителя %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("некорректный адрес получателя %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(m.timeout),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("ошибка создания SMTP-клиента: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("ошибка отправки письма через %s:%d: %w", m.host, m.port, err)
	}
	return nil
}

// LogMailer только пишет письма в лог. Используется без SG_SMTP_HOST.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer создаёт отправителя-заглушку.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With(slog.String("component", "log_mailer"))}
}

// Send логирует письмо и всегда успешен.
func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("Письмо не отправлено: SMTP не настроен",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("body_len", len(body)),
	)
	return nil
}

// NewMailer выбирает отправителя по конфигурации.
func NewMailer(cfg *config.Config, logger *slog.Logger) Mailer {
	if cfg.SMTPEnabled() {
		logger.Info("Исходящая почта через SMTP",
			slog.String("host", cfg.SMTPHost),
			slog.Int("port", cfg.SMTPPort),
		)
		return NewSMTPMailer(cfg)
	}
	logger.Warn("SG_SMTP_HOST не задан, письма только логируются")
	return NewLogMailer(logger)
}
