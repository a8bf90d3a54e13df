package messaging

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/agrovia/agrovia-api/internal/domain/event"
	"github.com/agrovia/agrovia-api/pkg/mailer"
)

// EmailQueuePublisher enqueues email jobs on the default-exchange queue.
// Satisfied by helpers.RabbitPublisher.
type EmailQueuePublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// EmailNotifier is a Channel A handler translating auth events into email
// jobs: a welcome mail on registration and a login alert on login. Enqueue
// failures are logged and swallowed; mail is best-effort.
type EmailNotifier struct {
	Pub     EmailQueuePublisher
	Enabled bool
	Logger  *logrus.Logger
}

func NewEmailNotifier(pub EmailQueuePublisher, enabled bool, logger *logrus.Logger) *EmailNotifier {
	return &EmailNotifier{Pub: pub, Enabled: enabled, Logger: logger}
}

func (n *EmailNotifier) Handle(ctx context.Context, ev event.DomainEvent) error {
	if n.Pub == nil || !n.Enabled {
		return nil
	}
	var job *mailer.EmailJob
	switch e := ev.(type) {
	case event.UserRegistered:
		job = &mailer.EmailJob{
			To:       e.Email,
			Template: "welcome",
			Data: map[string]any{
				"Name":   e.Name,
				"Email":  e.Email,
				"Source": e.Source,
			},
		}
	case event.UserLoggedIn:
		job = &mailer.EmailJob{
			To:       e.Email,
			Template: "login_alert",
			Data: map[string]any{
				"Email":     e.Email,
				"IP":        e.IPAddress,
				"UserAgent": e.UserAgent,
				"Time":      e.OccurredAt().Format("02 January 2006, 15:04 MST"),
			},
		}
	default:
		return nil
	}
	if err := n.Pub.PublishJSON(ctx, job); err != nil {
		if n.Logger != nil {
			n.Logger.WithError(err).WithField("template", job.Template).Warn("email enqueue failed")
		}
	}
	return nil
}
