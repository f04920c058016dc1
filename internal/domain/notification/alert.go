package notification

import (
	"context"
	"errors"
)

// AlertSink raises an out-of-band alert (platform notification with an audible
// cue, e-mail, ...) for notifications that need immediate attention.
type AlertSink interface {
	Alert(ctx context.Context, n *Notification) error
}

// MultiSink fans an alert out to every sink and joins their errors.
type MultiSink []AlertSink

func (m MultiSink) Alert(ctx context.Context, n *Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Alert(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
