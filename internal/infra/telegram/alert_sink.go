// internal/infra/telegram/alert_sink.go
package telegram

import (
	"context"
	"fmt"
	"strings"

	"rent_autopay/internal/domain/notification"
	tgdomain "rent_autopay/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const readCallbackPrefix = "read_"

// AlertSink pushes alert-worthy notifications to the tenant's Telegram chat.
// Messages are sent with sound so the tenant gets an audible cue.
type AlertSink struct {
	client  tgdomain.Client
	tenants tgdomain.TenantDirectory
	logger  *logrus.Entry
}

func NewAlertSink(client tgdomain.Client, tenants tgdomain.TenantDirectory, logger *logrus.Entry) *AlertSink {
	return &AlertSink{
		client:  client,
		tenants: tenants,
		logger:  logger.WithField("component", "telegram_alert_sink"),
	}
}

func (s *AlertSink) Alert(_ context.Context, n *notification.Notification) error {
	chatID, ok := s.tenants.ChatFor(n.TenantID)
	if !ok {
		s.logger.WithField("tenant_id", n.TenantID).Debug("No Telegram chat bound to tenant, alert skipped")
		return nil
	}
	opts := &telebot.SendOptions{
		ReplyMarkup:         alertMarkup(n),
		DisableNotification: false,
	}
	if err := s.client.SendMessage(chatID, alertText(n), opts); err != nil {
		return fmt.Errorf("failed to send Telegram alert %s: %w", n.ID, err)
	}
	s.logger.WithFields(logrus.Fields{"notification_id": n.ID, "chat_id": chatID}).Info("Telegram alert sent")
	return nil
}

func alertText(n *notification.Notification) string {
	var b strings.Builder
	if n.Priority == notification.PriorityUrgent {
		b.WriteString("🔴 ")
	}
	b.WriteString(n.Title)
	b.WriteString("\n\n")
	b.WriteString(n.Message)
	return b.String()
}

// alertMarkup adds the notification's call to action and a mark-read button.
// Telegram only accepts absolute URLs on URL buttons.
func alertMarkup(n *notification.Notification) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	var row []telebot.InlineButton
	if n.ActionURL != "" && (strings.HasPrefix(n.ActionURL, "https://") || strings.HasPrefix(n.ActionURL, "http://")) {
		text := n.ActionText
		if text == "" {
			text = "Open"
		}
		row = append(row, telebot.InlineButton{Text: text, URL: n.ActionURL})
	}
	row = append(row, telebot.InlineButton{Text: "Mark read", Data: readCallbackPrefix + n.ID})
	markup.InlineKeyboard = [][]telebot.InlineButton{row}
	return markup
}
