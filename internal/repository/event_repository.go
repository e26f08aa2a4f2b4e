package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nurpe/lease-contracts/internal/model"
)

// EventRepository only ever inserts; the table also rejects UPDATE and DELETE.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

type eventRow struct {
	ID             uuid.UUID
	ContractID     int64
	EventType      string
	Description    string
	Metadata       datatypes.JSONMap
	CreatedBy      string
	EffectKind     *string
	EffectAmount   *float64
	EffectCurrency *string
	CreatedAt      time.Time
}

func (r *EventRepository) CreateEvent(ctx context.Context, e *model.LifecycleEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	var kind, currency *string
	var amount *float64
	if fe := e.FinancialEffect; fe != nil {
		k := string(fe.Kind)
		kind, currency, amount = &k, &fe.Currency, &fe.Amount
	}
	var metadata datatypes.JSONMap
	if len(e.Metadata) > 0 {
		metadata = datatypes.JSONMap(e.Metadata)
	}

	return r.db.WithContext(ctx).Exec(`
		INSERT INTO lifecycle_events (
			id,
			contract_id,
			event_type,
			description,
			metadata,
			created_by,
			effect_kind,
			effect_amount,
			effect_currency,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.ContractID,
		e.Type,
		e.Description,
		metadata,
		e.CreatedBy,
		kind,
		amount,
		currency,
		e.CreatedAt,
	).Error
}

// ListEvents returns the contract's events oldest first.
func (r *EventRepository) ListEvents(ctx context.Context, contractID int64) ([]model.LifecycleEvent, error) {
	var rows []eventRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			contract_id,
			event_type,
			description,
			metadata,
			created_by,
			effect_kind,
			effect_amount,
			effect_currency,
			created_at
		FROM lifecycle_events
		WHERE contract_id = ?
		ORDER BY created_at ASC, id ASC
	`, contractID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	events := make([]model.LifecycleEvent, 0, len(rows))
	for _, row := range rows {
		e := model.LifecycleEvent{
			ID:          row.ID,
			ContractID:  row.ContractID,
			Type:        model.EventType(row.EventType),
			Description: row.Description,
			Metadata:    map[string]any(row.Metadata),
			CreatedBy:   row.CreatedBy,
			CreatedAt:   row.CreatedAt,
		}
		if row.EffectKind != nil {
			fe := &model.FinancialEffect{Kind: model.EffectKind(*row.EffectKind)}
			if row.EffectAmount != nil {
				fe.Amount = *row.EffectAmount
			}
			if row.EffectCurrency != nil {
				fe.Currency = *row.EffectCurrency
			}
			e.FinancialEffect = fe
		}
		events = append(events, e)
	}
	return events, nil
}

func (r *EventRepository) HasEventSince(ctx context.Context, contractID int64, types []model.EventType, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM lifecycle_events
		WHERE contract_id = ? AND event_type IN ? AND created_at >= ?
	`, contractID, types, since).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *EventRepository) CountEvents(ctx context.Context, contractID int64) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM lifecycle_events WHERE contract_id = ?
	`, contractID).Scan(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
