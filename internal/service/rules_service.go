package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nurpe/lease-contracts/internal/clock"
	"github.com/nurpe/lease-contracts/internal/model"
	"github.com/nurpe/lease-contracts/internal/rules"
)

type RulesService struct {
	contracts ContractStore
	events    EventStore
	engine    *rules.Engine
	clock     clock.Clock
	log       zerolog.Logger
}

func NewRulesService(contracts ContractStore, events EventStore, engine *rules.Engine, clk clock.Clock, log zerolog.Logger) *RulesService {
	return &RulesService{contracts: contracts, events: events, engine: engine, clock: clk, log: log}
}

type AppliedRules struct {
	ContractID int64          `json:"contract_id"`
	Rules      []rules.Result `json:"rules"`
}

func (s *RulesService) ApplyRules(ctx context.Context, p model.Principal, id int64) (*AppliedRules, error) {
	c, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return nil, err
	}
	results, err := s.engine.Apply(c, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []rules.Result{}
	}
	return &AppliedRules{ContractID: c.ID, Rules: results}, nil
}

func (s *RulesService) CheckJudicialReadiness(ctx context.Context, p model.Principal, id int64) (*rules.Readiness, error) {
	c, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return nil, err
	}
	count, err := s.events.CountEvents(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	r := rules.CheckJudicialReadiness(c, count)
	return &r, nil
}

func (s *RulesService) AutomaticClauses(ctx context.Context, p model.Principal, id int64) ([]string, error) {
	c, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return nil, err
	}
	return rules.GenerateAutomaticClauses(c), nil
}
