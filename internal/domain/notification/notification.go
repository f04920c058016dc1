// internal/domain/notification/notification.go
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a timestamped, typed event delivered to subscribers and kept in the inbox.
// Read only ever goes from false to true, and only on explicit acknowledgement.
type Notification struct {
	ID         string
	TenantID   string
	Type       Type
	Title      string
	Message    string
	Priority   Priority
	Timestamp  time.Time
	Read       bool
	ActionURL  string
	ActionText string
	Data       map[string]any
}

// NewID returns a namespaced identifier such as "engine:3f2c...".
func NewID(namespace string) string {
	return namespace + ":" + uuid.NewString()
}

// Clone copies n including its data map (shallow per value).
func (n *Notification) Clone() *Notification {
	c := *n
	if n.Data != nil {
		c.Data = make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			c.Data[k] = v
		}
	}
	return &c
}

// RequiresAlert reports whether n should also go out through the platform alert channel.
func (n *Notification) RequiresAlert() bool {
	if n.Priority == PriorityUrgent {
		return true
	}
	return n.Type == TypeAutopayFailure || n.Type == TypePaymentFailure
}
