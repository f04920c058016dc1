package telegram

import "gopkg.in/telebot.v3"

// Client sends chat messages on behalf of the engine. Alert sinks and
// command handlers depend on it rather than on *telebot.Bot directly.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}

// TenantDirectory maps Telegram chats to engine tenants.
type TenantDirectory map[int64]string

// TenantFor returns the tenant bound to chatID.
func (d TenantDirectory) TenantFor(chatID int64) (string, bool) {
	tenantID, ok := d[chatID]
	return tenantID, ok
}

// ChatFor returns the chat bound to tenantID.
func (d TenantDirectory) ChatFor(tenantID string) (int64, bool) {
	for chatID, t := range d {
		if t == tenantID {
			return chatID, true
		}
	}
	return 0, false
}
