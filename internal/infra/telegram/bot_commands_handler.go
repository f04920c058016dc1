// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rent_autopay/internal/app"
	"rent_autopay/internal/domain/notification"
	"rent_autopay/internal/domain/schedule"
	tgdomain "rent_autopay/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	upcomingHorizon = 31 * 24 * time.Hour
	inboxPageSize   = 10

	msgUnknownUser = "This chat is not linked to a tenant account. Please contact your property manager."
	msgServerError = "Something went wrong on our side. Please try again later."
)

// CommandHandlers serves tenant commands for chats listed in the tenant directory.
type CommandHandlers struct {
	service  *app.AutopayService
	bus      *app.NotificationBus
	tenants  tgdomain.TenantDirectory
	currency string
	logger   *logrus.Entry
}

func NewCommandHandlers(service *app.AutopayService, bus *app.NotificationBus, tenants tgdomain.TenantDirectory, currency string, logger *logrus.Entry) *CommandHandlers {
	return &CommandHandlers{
		service:  service,
		bus:      bus,
		tenants:  tenants,
		currency: currency,
		logger:   logger.WithField("component", "telegram_commands"),
	}
}

// RegisterBotCommands wires every tenant command and the inline callbacks into b.
func RegisterBotCommands(ctx context.Context, b *telebot.Bot, h *CommandHandlers) {
	b.Handle("/start", func(c telebot.Context) error {
		return c.Send(h.startReply(c.Sender().ID, c.Sender().FirstName))
	})
	b.Handle("/help", func(c telebot.Context) error {
		return c.Send(h.helpReply(c.Sender().ID), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
	b.Handle("/upcoming", h.tenantOnly("/upcoming", func(c telebot.Context, tenantID string) error {
		return c.Send(h.upcomingReply(ctx, tenantID))
	}))
	b.Handle("/inbox", h.tenantOnly("/inbox", func(c telebot.Context, tenantID string) error {
		return c.Send(h.inboxReply(ctx, tenantID))
	}))
	b.Handle("/read_all", h.tenantOnly("/read_all", func(c telebot.Context, tenantID string) error {
		return c.Send(h.readAllReply(ctx, tenantID))
	}))
	registerAutopayHandlers(ctx, b, h)
	registerCallbackHandlers(ctx, b, h)
}

// tenantOnly resolves the sender's tenant and rejects unknown chats.
func (h *CommandHandlers) tenantOnly(command string, next func(c telebot.Context, tenantID string) error) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		log := h.logger.WithFields(logrus.Fields{"command": command, "sender_id": c.Sender().ID})
		tenantID, ok := h.tenants.TenantFor(c.Sender().ID)
		if !ok {
			log.Warn("Unauthorized access attempt")
			return c.Send(msgUnknownUser)
		}
		log.WithField("tenant_id", tenantID).Info("Command received")
		return next(c, tenantID)
	}
}

func (h *CommandHandlers) startReply(senderID int64, firstName string) string {
	if _, ok := h.tenants.TenantFor(senderID); !ok {
		return "Hello! I send rent payment reminders and autopay alerts. " + msgUnknownUser
	}
	return fmt.Sprintf("Hello, %s! I will remind you before each rent payment and tell you how it went. Use /help to see what I can do.", firstName)
}

func (h *CommandHandlers) helpReply(senderID int64) string {
	if _, ok := h.tenants.TenantFor(senderID); !ok {
		return msgUnknownUser
	}
	var b strings.Builder
	b.WriteString("Available commands:\n\n")
	b.WriteString("`/upcoming`\n - Payments due in the next month.\n\n")
	b.WriteString("`/inbox`\n - Your latest notifications.\n\n")
	b.WriteString("`/read_all`\n - Mark every notification as read.\n\n")
	b.WriteString("`/autopay_on <day> <method> <amount> [phone]`\n - Pay rent automatically on a day between 1 and 28. Methods: mtn_momo, vodafone_cash, airteltigo_money, card.\n\n")
	b.WriteString("`/autopay_off`\n - Stop automatic rent payments.\n\n")
	b.WriteString("`/cancel <payment id>`\n - Cancel a scheduled one-off payment.\n\n")
	b.WriteString("`/help`\n - Show this message.")
	return b.String()
}

func (h *CommandHandlers) upcomingReply(ctx context.Context, tenantID string) string {
	entries, err := h.service.Upcoming(ctx, tenantID, upcomingHorizon)
	if err != nil {
		h.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to list upcoming payments")
		return msgServerError
	}
	if len(entries) == 0 {
		return "You have no payments due in the next month."
	}
	var b strings.Builder
	b.WriteString("Upcoming payments:\n")
	for _, e := range entries {
		label := "Scheduled payment"
		if e.Kind == schedule.KindRecurring {
			label = "Autopay"
		}
		fmt.Fprintf(&b, "\n%s: %s on %s via %s\nID: %s\n",
			label,
			schedule.FormatAmount(e.Amount, h.currency),
			e.DueAt.In(e.Location()).Format("Mon, 2 Jan 2006"),
			e.Method,
			e.ID)
	}
	return b.String()
}

func (h *CommandHandlers) inboxReply(ctx context.Context, tenantID string) string {
	items, err := h.bus.Inbox(ctx, tenantID)
	if err != nil {
		h.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to load inbox")
		return msgServerError
	}
	if len(items) == 0 {
		return "Your inbox is empty."
	}
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	if len(items) > inboxPageSize {
		items = items[:inboxPageSize]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d unread notification(s).\n", unread)
	for _, n := range items {
		b.WriteString("\n")
		b.WriteString(inboxLine(n))
	}
	if unread > 0 {
		b.WriteString("\n\nUse /read_all to mark everything as read.")
	}
	return b.String()
}

func inboxLine(n *notification.Notification) string {
	marker := "  "
	if !n.Read {
		marker = "• "
	}
	return fmt.Sprintf("%s%s %s: %s", marker, n.Timestamp.Format("02 Jan 15:04"), n.Title, n.Message)
}

func (h *CommandHandlers) readAllReply(ctx context.Context, tenantID string) string {
	changed, err := h.bus.MarkAllRead(ctx, tenantID)
	if err != nil {
		h.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to mark inbox read")
		return msgServerError
	}
	if changed == 0 {
		return "Nothing to mark, your inbox is already read."
	}
	return fmt.Sprintf("Marked %d notification(s) as read.", changed)
}

// userFacingError renders domain errors for chat replies.
func userFacingError(err error) (string, bool) {
	var verr *schedule.ValidationError
	if errors.As(err, &verr) {
		return fmt.Sprintf("Invalid %s: %s.", strings.ReplaceAll(verr.Field, "_", " "), verr.Message), true
	}
	var cerr *schedule.ConflictError
	if errors.As(err, &cerr) {
		return fmt.Sprintf("That is not possible right now: the payment is %s.", cerr.Status), true
	}
	if errors.Is(err, schedule.ErrEntryNotFound) {
		return "Payment not found.", true
	}
	return "", false
}
