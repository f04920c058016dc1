package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rent_autopay/internal/domain/notification"

	"gopkg.in/telebot.v3"
)

func registerCallbackHandlers(ctx context.Context, b *telebot.Bot, h *CommandHandlers) {
	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := c.Callback().Data
		tenantID, ok := h.tenants.TenantFor(c.Sender().ID)
		if !ok {
			return c.Respond(&telebot.CallbackResponse{Text: msgUnknownUser})
		}
		if !strings.HasPrefix(data, readCallbackPrefix) {
			c.Bot().OnError(fmt.Errorf("unhandled callback data: %s", data), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}
		text, err := h.markReadCallback(ctx, tenantID, data)
		if err != nil {
			c.Bot().OnError(err, c)
		}
		return c.Respond(&telebot.CallbackResponse{Text: text})
	})
}

// markReadCallback acknowledges the notification named in a read_<id> callback.
// Only the tenant's own notifications can be acknowledged.
func (h *CommandHandlers) markReadCallback(ctx context.Context, tenantID, data string) (string, error) {
	id := strings.TrimPrefix(data, readCallbackPrefix)
	if id == "" {
		return "Error processing the request.", fmt.Errorf("invalid callback data format: %s", data)
	}
	if err := h.bus.MarkRead(ctx, tenantID, id); err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			return "Notification not found.", nil
		}
		return "Something went wrong.", fmt.Errorf("error marking notification %s read: %w", id, err)
	}
	return "Marked as read.", nil
}
