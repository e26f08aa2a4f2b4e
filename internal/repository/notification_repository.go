package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nurpe/lease-contracts/internal/model"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) RecordNotification(ctx context.Context, n model.NotificationRecord) error {
	var payload datatypes.JSONMap
	if len(n.Payload) > 0 {
		payload = datatypes.JSONMap(n.Payload)
	}
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO notifications (contract_id, event, channel, recipient, payload, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ContractID, n.Event, n.Channel, n.Recipient, payload, n.SentAt).Error
}

func (r *NotificationRepository) ListNotifications(ctx context.Context, contractID int64) ([]model.NotificationRecord, error) {
	var rows []struct {
		ID         int64
		ContractID int64
		Event      string
		Channel    string
		Recipient  string
		Payload    datatypes.JSONMap
		SentAt     time.Time
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, contract_id, event, channel, recipient, payload, sent_at
		FROM notifications
		WHERE contract_id = ?
		ORDER BY sent_at ASC
	`, contractID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]model.NotificationRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.NotificationRecord{
			ID:         row.ID,
			ContractID: row.ContractID,
			Event:      row.Event,
			Channel:    row.Channel,
			Recipient:  row.Recipient,
			Payload:    map[string]any(row.Payload),
			SentAt:     row.SentAt,
		})
	}
	return records, nil
}
