package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"rent_autopay/internal/domain/notification"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// SMTPConfig is the mail relay the alert sink sends through.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// AlertSink mails alert-worthy notifications to a fixed list of recipients.
type AlertSink struct {
	cfg    SMTPConfig
	send   func(e *email.Email) error
	logger *logrus.Entry
}

func NewAlertSink(cfg SMTPConfig, logger *logrus.Entry) *AlertSink {
	s := &AlertSink{
		cfg:    cfg,
		logger: logger.WithField("component", "email_alert_sink"),
	}
	s.send = s.sendSMTP
	return s
}

func (s *AlertSink) sendSMTP(e *email.Email) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	return e.Send(addr, auth)
}

func (s *AlertSink) Alert(_ context.Context, n *notification.Notification) error {
	msg := BuildAlertEmail(n, s.cfg.From, s.cfg.To)
	if err := s.send(msg); err != nil {
		s.logger.WithError(err).WithField("notification_id", n.ID).Error("Failed to send alert email")
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"notification_id": n.ID, "subject": msg.Subject}).Info("Alert email sent")
	return nil
}

// BuildAlertEmail renders n as a plain-text message.
func BuildAlertEmail(n *notification.Notification, from string, to []string) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = to
	e.Subject = n.Title
	if n.Priority == notification.PriorityUrgent {
		e.Subject = "[Action required] " + n.Title
	}

	var body strings.Builder
	body.WriteString("Hello,\n\n")
	body.WriteString(n.Message)
	body.WriteString("\n")
	if ref, ok := n.Data["transaction_reference"].(string); ok && ref != "" {
		fmt.Fprintf(&body, "\nTransaction reference: %s\n", ref)
	}
	if n.ActionURL != "" {
		text := n.ActionText
		if text == "" {
			text = "Details"
		}
		fmt.Fprintf(&body, "\n%s: %s\n", text, n.ActionURL)
	}
	fmt.Fprintf(&body, "\nSent %s\n\nBest regards,\nRent Autopay", n.Timestamp.Format("2006-01-02 15:04 MST"))
	e.Text = []byte(body.String())
	return e
}
