package notify

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Виды писем (метка kind).
const (
	KindReminder   = "reminder"
	KindRejection  = "rejection"
	KindAssignment = "assignment"
)

var emailsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sg_emails_total",
		Help: "Количество попыток отправки писем по виду и результату.",
	},
	[]string{"kind", "result"},
)

// Notifier отправляет письмо, учитывает метрики и логирует сбой.
// Ошибка возвращается вызывающему, но бизнес-операции её не пробрасывают.
type Notifier struct {
	mailer Mailer
	logger *slog.Logger
}

// NewNotifier создаёт Notifier поверх отправителя.
func NewNotifier(mailer Mailer, logger *slog.Logger) *Notifier {
	return &Notifier{
		mailer: mailer,
		logger: logger.With(slog.String("component", "notifier")),
	}
}

// Notify отправляет письмо вида kind получателю to.
func (n *Notifier) Notify(ctx context.Context, kind, to string, msg Message) error {
	if err := n.mailer.Send(ctx, to, msg.Subject, msg.Body); err != nil {
		emailsTotal.WithLabelValues(kind, "error").Inc()
		n.logger.Warn("Ошибка отправки письма",
			slog.String("kind", kind),
			slog.String("to", to),
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		return err
	}
	emailsTotal.WithLabelValues(kind, "sent").Inc()
	n.logger.Debug("Письмо отправлено",
		slog.String("kind", kind),
		slog.String("to", to),
	)
	return nil
}
