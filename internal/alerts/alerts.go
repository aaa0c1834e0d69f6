// Package alerts emails operators when the automation records a failure.
// Delivery is best-effort: an alert that cannot be sent is logged and
// dropped, it never affects the outreach run itself.
package alerts

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"outreach_backend/internal/events"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// Module subscribes to failure events and delivers operator alert emails
// over SMTP.
type Module struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	enabled  bool
	log      *logger.Logger
}

// New creates the alerts module. With alerts disabled it still subscribes
// but drops every event silently.
func New(cfg config.AlertConfig, log *logger.Logger) *Module {
	return &Module{
		host:     cfg.GetSMTPHost(),
		port:     cfg.GetSMTPPort(),
		username: cfg.GetSMTPUsername(),
		password: cfg.GetSMTPPassword(),
		from:     cfg.GetAlertFromAddress(),
		to:       cfg.GetAlertToAddresses(),
		enabled:  cfg.GetAlertsEnabled(),
		log:      log,
	}
}

// RegisterHandlers subscribes the module to outreach failure events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.OutreachFailed{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.OutreachFailed)
		if !ok {
			return nil
		}
		m.notifyFailure(ctx, e)
		return nil
	}))
}

func (m *Module) notifyFailure(ctx context.Context, e events.OutreachFailed) {
	if !m.enabled {
		return
	}

	subject := fmt.Sprintf("[outreach] automation failure: %s", e.Event)
	body := fmt.Sprintf(
		"An outreach automation failure was recorded.\n\n"+
			"Event:     %s\n"+
			"Lead:      %s\n"+
			"Dedup key: %s\n"+
			"Error:     %s\n"+
			"Time:      %s\n",
		e.Event, e.LeadID, e.DedupKey, e.Error, e.OccurredAt().Format(time.RFC3339))

	if err := m.send(ctx, subject, body); err != nil {
		m.log.Warn("failure alert not delivered", "event", e.Event, "error", err.Error())
		return
	}
	m.log.Info("failure alert sent", "event", e.Event, "recipients", strings.Join(m.to, ","))
}

func (m *Module) send(ctx context.Context, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(m.to...); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(m.host,
		gomail.WithPort(m.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.username),
		gomail.WithPassword(m.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
