package service

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nurpe/lease-contracts/internal/clock"
	"github.com/nurpe/lease-contracts/internal/model"
	"github.com/nurpe/lease-contracts/internal/policy"
)

// auditLog appends lifecycle events as a secondary effect of a state change.
// A failed write is logged and never undoes the change that triggered it.
type auditLog struct {
	events EventStore
	clock  clock.Clock
	log    zerolog.Logger
}

func (a auditLog) record(ctx context.Context, e model.LifecycleEvent) *model.LifecycleEvent {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = a.clock.Now()
	}
	if err := a.events.CreateEvent(ctx, &e); err != nil {
		a.log.Warn().Err(err).
			Int64("contract_id", e.ContractID).
			Str("event_type", string(e.Type)).
			Msg("lifecycle event not recorded")
		return nil
	}
	return &e
}

func actorOf(p model.Principal) string {
	return strconv.FormatInt(p.UserID, 10)
}

// loadVisible hides contracts the caller may not see behind ErrPermissionDenied.
func loadVisible(ctx context.Context, contracts ContractStore, p model.Principal, id int64) (*model.Contract, error) {
	c, err := contracts.GetContract(ctx, id)
	if err != nil {
		return nil, notFound(err, "contract")
	}
	if !policy.CanView(p, c) {
		return nil, ErrPermissionDenied
	}
	return c, nil
}

func contactOf(u *model.User) string {
	if u.Email != "" {
		return u.Email
	}
	return u.Phone
}

func recipientsOf(c *model.Contract) []model.Recipient {
	var out []model.Recipient
	for _, u := range []*model.User{c.Tenant, c.Owner} {
		if u == nil {
			continue
		}
		out = append(out, model.Recipient{UserID: u.ID, Name: u.Name, Contact: contactOf(u)})
	}
	return out
}
