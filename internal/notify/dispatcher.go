// Package notify records outgoing notifications; delivery is handled by the
// messaging service that consumes the notifications table.
package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nurpe/lease-contracts/internal/clock"
	"github.com/nurpe/lease-contracts/internal/model"
)

type Store interface {
	RecordNotification(ctx context.Context, n model.NotificationRecord) error
}

type Dispatcher struct {
	store Store
	clock clock.Clock
	log   zerolog.Logger
}

func NewDispatcher(store Store, clk clock.Clock, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: store, clock: clk, log: log.With().Str("component", "notify").Logger()}
}

// Notify queues one notification per recipient. Every recipient is attempted
// even when an earlier one fails.
func (d *Dispatcher) Notify(ctx context.Context, contractID int64, event string, recipients []model.Recipient, payload map[string]any) error {
	var errs []error
	for _, rcpt := range recipients {
		if strings.TrimSpace(rcpt.Contact) == "" {
			continue
		}
		record := model.NotificationRecord{
			ContractID: contractID,
			Event:      event,
			Channel:    channelFor(rcpt.Contact),
			Recipient:  rcpt.Contact,
			Payload:    payload,
			SentAt:     d.clock.Now(),
		}
		if err := d.store.RecordNotification(ctx, record); err != nil {
			errs = append(errs, err)
			continue
		}
		d.log.Info().
			Int64("contract_id", contractID).
			Str("event", event).
			Str("channel", record.Channel).
			Msg("notification queued")
	}
	return errors.Join(errs...)
}

func channelFor(contact string) string {
	if strings.Contains(contact, "@") {
		return "email"
	}
	return "sms"
}
