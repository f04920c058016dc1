package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"rent_autopay/internal/app"
	"rent_autopay/internal/domain/schedule"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// registerAutopayHandlers wires the commands that change a tenant's payment setup.
func registerAutopayHandlers(ctx context.Context, b *telebot.Bot, h *CommandHandlers) {
	b.Handle("/autopay_on", h.tenantOnly("/autopay_on", func(c telebot.Context, tenantID string) error {
		return c.Send(h.autopayOnReply(ctx, tenantID, c.Args()))
	}))
	b.Handle("/autopay_off", h.tenantOnly("/autopay_off", func(c telebot.Context, tenantID string) error {
		return c.Send(h.autopayOffReply(ctx, tenantID))
	}))
	b.Handle("/cancel", h.tenantOnly("/cancel", func(c telebot.Context, tenantID string) error {
		return c.Send(h.cancelReply(ctx, tenantID, c.Args()))
	}))
}

// autopayOnReply handles /autopay_on <day> <method> <amount> [phone].
func (h *CommandHandlers) autopayOnReply(ctx context.Context, tenantID string, args []string) string {
	const usage = "Invalid command format. Use: /autopay_on <day 1-28> <method> <amount> [phone]"
	if len(args) < 3 || len(args) > 4 {
		return usage
	}
	day, err := strconv.Atoi(args[0])
	if err != nil {
		return "Error: the day must be a number between 1 and 28."
	}
	amount, err := schedule.ParseAmount(args[2])
	if err != nil {
		msg, _ := userFacingError(err)
		return msg
	}
	req := app.EnableAutopayRequest{
		TenantID:   tenantID,
		Amount:     amount,
		Method:     schedule.PaymentMethod(args[1]),
		DayOfMonth: day,
	}
	if len(args) == 4 {
		req.PhoneNumber = args[3]
	}

	log := h.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "day_of_month": day, "method": req.Method})
	entry, err := h.service.EnableAutopay(ctx, req)
	if err != nil {
		if msg, ok := userFacingError(err); ok {
			log.WithError(err).Warn("Autopay request rejected")
			return msg
		}
		log.WithError(err).Error("Failed to enable autopay")
		return msgServerError
	}
	return fmt.Sprintf("Autopay is on: %s will be charged via %s on day %d of every month. Next payment: %s.",
		schedule.FormatAmount(entry.Amount, h.currency),
		entry.Method,
		entry.DayOfMonth,
		entry.DueAt.In(entry.Location()).Format("2 Jan 2006"))
}

func (h *CommandHandlers) autopayOffReply(ctx context.Context, tenantID string) string {
	_, err := h.service.DisableAutopay(ctx, tenantID, "")
	if err != nil {
		if errors.Is(err, schedule.ErrEntryNotFound) {
			return "Autopay is not enabled."
		}
		h.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to disable autopay")
		return msgServerError
	}
	return "Autopay is off. No further payments will be charged automatically."
}

func (h *CommandHandlers) cancelReply(ctx context.Context, tenantID string, args []string) string {
	if len(args) != 1 {
		return "Invalid command format. Use: /cancel <payment id>"
	}
	entry, err := h.service.CancelScheduledPayment(ctx, tenantID, args[0])
	if err != nil {
		if msg, ok := userFacingError(err); ok {
			return msg
		}
		h.logger.WithError(err).WithFields(logrus.Fields{"tenant_id": tenantID, "entry_id": args[0]}).Error("Failed to cancel payment")
		return msgServerError
	}
	return fmt.Sprintf("Payment of %s scheduled for %s has been cancelled.",
		schedule.FormatAmount(entry.Amount, h.currency),
		entry.ScheduledDate.In(entry.Location()).Format("2 Jan 2006"))
}
