package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nurpe/lease-contracts/internal/clock"
	"github.com/nurpe/lease-contracts/internal/config"
	"github.com/nurpe/lease-contracts/internal/document"
	"github.com/nurpe/lease-contracts/internal/model"
	"github.com/nurpe/lease-contracts/internal/policy"
	"github.com/nurpe/lease-contracts/internal/repository"
	"github.com/nurpe/lease-contracts/internal/token"
	"github.com/nurpe/lease-contracts/internal/validation"
)

const (
	notifySentForSignature = "contract.sent_for_signature"
	notifyFinalized        = "contract.finalized"
	notifyRevoked          = "contract.revoked"
)

// legacySignStatuses are the statuses the non-geolocated signing path accepts.
var legacySignStatuses = []model.ContractStatus{
	model.ContractStatusPending,
	model.ContractStatusAwaitingSignatures,
	model.ContractStatusSigned,
	model.ContractStatusActive,
}

// finalizableStatuses keeps finalization behind PrepareForSigning, so a
// contract that never passed validation cannot become SIGNED.
var finalizableStatuses = []model.ContractStatus{
	model.ContractStatusAwaitingSignatures,
}

type SignatureService struct {
	contracts ContractStore
	links     SignatureLinks
	documents DocumentStore
	pdf       PDFGenerator
	notifier  Notifier
	audit     auditLog
	clock     clock.Clock
	cfg       config.ContractsConfig
	log       zerolog.Logger
}

func NewSignatureService(
	contracts ContractStore,
	events EventStore,
	links SignatureLinks,
	documents DocumentStore,
	pdf PDFGenerator,
	notifier Notifier,
	clk clock.Clock,
	cfg config.ContractsConfig,
	log zerolog.Logger,
) *SignatureService {
	return &SignatureService{
		contracts: contracts,
		links:     links,
		documents: documents,
		pdf:       pdf,
		notifier:  notifier,
		audit:     auditLog{events: events, clock: clk, log: log},
		clock:     clk,
		cfg:       cfg,
		log:       log,
	}
}

type PrepareResult struct {
	Contract *model.Contract      `json:"contract"`
	Links    []model.SignatureLink `json:"links"`
}

// PrepareForSigning validates a PENDING contract and moves it to
// AWAITING_SIGNATURES. The provisional PDF, signer links, audit event and
// notification are best effort. Signatures collected while PENDING count, so
// a contract that is already fully signed finalizes here.
func (s *SignatureService) PrepareForSigning(ctx context.Context, p model.Principal, id int64, ip string) (*PrepareResult, error) {
	c, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return nil, err
	}
	if !policy.CapabilitiesFor(p.Role).CanEdit {
		return nil, ErrPermissionDenied
	}
	if c.Status != model.ContractStatusPending {
		return nil, precondition("only pending contracts can be sent for signature")
	}
	if result := validation.Validate(c); !result.Valid {
		return nil, &ValidationError{Errors: result.Errors}
	}

	ok, err := s.contracts.TransitionStatus(ctx, id, []model.ContractStatus{model.ContractStatusPending}, model.ContractStatusAwaitingSignatures)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: contract changed concurrently, reload and retry", ErrConflict)
	}
	c.Status = model.ContractStatusAwaitingSignatures
	now := s.clock.Now()

	s.storeProvisional(ctx, c)

	links, err := s.links.CreateLinks(ctx, id, linkParties(c), now, now.Add(s.cfg.SignatureLinkTTL))
	if err != nil {
		s.log.Warn().Err(err).Int64("contract_id", id).Msg("signature links not created")
		links = nil
	}

	s.audit.record(ctx, model.LifecycleEvent{
		ContractID:  id,
		Type:        model.EventSentForSignature,
		Description: "Contract sent for signature",
		Metadata:    map[string]any{"ip": ip, "links": len(links)},
		CreatedBy:   actorOf(p),
	})
	s.notify(ctx, c, notifySentForSignature, map[string]any{"verification_token": c.VerificationToken})

	updated, err := s.contracts.GetContract(ctx, id)
	if err != nil {
		return nil, notFound(err, "contract")
	}
	if updated.AllRequiredSigned() {
		updated.Tenant, updated.Owner, updated.Property = c.Tenant, c.Owner, c.Property
		if _, err := s.finalize(ctx, updated, ip); err != nil {
			s.log.Warn().Err(err).Int64("contract_id", id).Msg("finalization after prepare failed, retry with finalize")
		} else if updated, err = s.contracts.GetContract(ctx, id); err != nil {
			return nil, notFound(err, "contract")
		}
	}
	return &PrepareResult{Contract: updated, Links: links}, nil
}

func (s *SignatureService) storeProvisional(ctx context.Context, c *model.Contract) {
	now := s.clock.Now()
	data, err := s.pdf.GenerateContract(model.ContractDocument{
		Stage:       model.DocumentProvisional,
		Contract:    *c,
		Content:     document.RenderContract(c),
		GeneratedAt: now,
	})
	if err != nil {
		s.log.Warn().Err(err).Int64("contract_id", c.ID).Msg("provisional pdf not generated")
		return
	}
	ref, err := s.documents.SaveDocument(ctx, c.ID, model.DocumentProvisional, data, now)
	if err != nil {
		s.log.Warn().Err(err).Int64("contract_id", c.ID).Msg("provisional pdf not stored")
		return
	}
	if err := s.contracts.SetProvisionalDocument(ctx, c.ID, ref); err != nil {
		s.log.Warn().Err(err).Int64("contract_id", c.ID).Msg("provisional pdf not linked")
	}
}

// linkParties issues one link per required signer with a known contact.
// Agency staff have no contact on the contract and sign in the app.
func linkParties(c *model.Contract) []model.LinkParty {
	var parties []model.LinkParty
	for _, role := range c.RequiredSigners() {
		var u *model.User
		switch role {
		case model.SignerTenant:
			u = c.Tenant
		case model.SignerOwner:
			u = c.Owner
		}
		if u == nil || contactOf(u) == "" {
			continue
		}
		parties = append(parties, model.LinkParty{Role: role, Contact: contactOf(u)})
	}
	return parties
}

type SignInput struct {
	ContractID  int64
	Role        model.SignerRole
	Image       string
	IP          string
	UserAgent   string
	Geolocation *model.Geolocation
}

type SignResult struct {
	Contract  *model.Contract `json:"contract"`
	Finalized bool            `json:"finalized"`
}

// Sign records one role's signature and finalizes the contract when it was
// the last required one.
func (s *SignatureService) Sign(ctx context.Context, p model.Principal, input SignInput) (*SignResult, error) {
	if strings.TrimSpace(input.Image) == "" {
		return nil, fmt.Errorf("%w: signature image is required", ErrInvalidInput)
	}
	c, err := loadVisible(ctx, s.contracts, p, input.ContractID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeSigner(p, input.Role, c); err != nil {
		if errors.Is(err, policy.ErrUnknownRole) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	geo := input.Geolocation != nil
	guard := repository.SignatureGuard{Statuses: legacySignStatuses}
	if geo {
		if !input.Geolocation.Consent {
			return nil, precondition("geolocation consent is required to sign")
		}
		if c.Status != model.ContractStatusAwaitingSignatures {
			return nil, precondition("contract is not awaiting signatures")
		}
		guard.Statuses = []model.ContractStatus{model.ContractStatusAwaitingSignatures}
	} else if c.Status.IsTerminal() {
		return nil, precondition("contract is closed and can no longer be signed")
	}

	if c.SignatureFor(input.Role).IsSigned() {
		return nil, fmt.Errorf("%w: %s has already signed", ErrConflict, input.Role)
	}
	if input.Role == model.SignerAgency {
		if !c.TenantSignature.IsSigned() || !c.OwnerSignature.IsSigned() {
			return nil, precondition("the agency signs after tenant and owner")
		}
		guard.RequireSigned = []model.SignerRole{model.SignerTenant, model.SignerOwner}
	}

	now := s.clock.Now()
	signerID := p.UserID
	sig := model.Signature{
		Image:     input.Image,
		SignedAt:  &now,
		IP:        input.IP,
		UserAgent: input.UserAgent,
		SignerID:  &signerID,
	}
	if geo {
		lat, lng := input.Geolocation.Latitude, input.Geolocation.Longitude
		sig.Latitude = &lat
		sig.Longitude = &lng
		sig.GeoConsent = true
	}

	ok, err := s.contracts.RecordSignature(ctx, c.ID, input.Role, sig, guard)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostSignature(ctx, c.ID, input.Role)
	}

	metadata := map[string]any{"ip": input.IP, "user_agent": input.UserAgent}
	if geo {
		metadata["latitude"] = input.Geolocation.Latitude
		metadata["longitude"] = input.Geolocation.Longitude
	}
	s.audit.record(ctx, model.LifecycleEvent{
		ContractID:  c.ID,
		Type:        model.SignatureEventType(input.Role, geo),
		Description: fmt.Sprintf("Contract signed by %s", input.Role),
		Metadata:    metadata,
		CreatedBy:   actorOf(p),
	})

	current, err := s.contracts.GetContract(ctx, c.ID)
	if err != nil {
		return nil, notFound(err, "contract")
	}
	result := &SignResult{Contract: current}
	if !current.AllRequiredSigned() || !statusIn(current.Status, finalizableStatuses) {
		return result, nil
	}

	finalized, err := s.finalize(ctx, current, input.IP)
	if err != nil {
		return nil, err
	}
	if finalized {
		if current, err = s.contracts.GetContract(ctx, c.ID); err != nil {
			return nil, notFound(err, "contract")
		}
		result.Contract = current
	}
	result.Finalized = finalized
	return result, nil
}

// Finalize retries finalization of a fully signed contract, e.g. after the
// final PDF failed to render during the last signature.
func (s *SignatureService) Finalize(ctx context.Context, p model.Principal, id int64, ip string) (*SignResult, error) {
	c, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return nil, err
	}
	caps := policy.CapabilitiesFor(p.Role)
	if !caps.CanEdit && !caps.CanSign {
		return nil, ErrPermissionDenied
	}
	if !statusIn(c.Status, finalizableStatuses) {
		return nil, precondition("contract is not awaiting signatures")
	}
	if !c.AllRequiredSigned() {
		return nil, precondition("not every required party has signed")
	}
	finalized, err := s.finalize(ctx, c, ip)
	if err != nil {
		return nil, err
	}
	current, err := s.contracts.GetContract(ctx, id)
	if err != nil {
		return nil, notFound(err, "contract")
	}
	return &SignResult{Contract: current, Finalized: finalized}, nil
}

// lostSignature explains a guarded signature write that matched no row.
func (s *SignatureService) lostSignature(ctx context.Context, id int64, role model.SignerRole) error {
	current, err := s.contracts.GetContract(ctx, id)
	if err != nil {
		return notFound(err, "contract")
	}
	if current.SignatureFor(role).IsSigned() {
		return fmt.Errorf("%w: %s has already signed", ErrConflict, role)
	}
	return precondition("contract changed and no longer accepts this signature")
}

// finalize writes the final content, hash and PDF under a row lock. Only the
// caller that actually finalizes emits the event and the notification.
func (s *SignatureService) finalize(ctx context.Context, c *model.Contract, ip string) (bool, error) {
	var hash string
	applied, err := s.contracts.FinalizeLocked(ctx, c.ID, func(locked *model.Contract) (*model.Finalization, error) {
		if !statusIn(locked.Status, finalizableStatuses) || !locked.AllRequiredSigned() {
			return nil, nil
		}
		now := s.clock.Now()
		content := document.RenderContract(locked)
		h, err := token.ContentHash(hashInput(locked, content), ip, now)
		if err != nil {
			return nil, err
		}

		final := *locked
		final.Status = model.ContractStatusSigned
		final.Tenant, final.Owner, final.Property = c.Tenant, c.Owner, c.Property
		data, err := s.pdf.GenerateContract(model.ContractDocument{
			Stage:       model.DocumentFinal,
			Contract:    final,
			Content:     content,
			ContentHash: h,
			GeneratedAt: now,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: final pdf: %v", ErrExternalFailure, err)
		}
		hash = h
		return &model.Finalization{
			FinalContent: content,
			ContentHash:  h,
			HashIP:       ip,
			SignedAt:     now,
			PDF:          data,
		}, nil
	})
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	s.audit.record(ctx, model.LifecycleEvent{
		ContractID:  c.ID,
		Type:        model.EventContractFinalized,
		Description: "All required parties signed; contract finalized",
		Metadata:    map[string]any{"content_hash": hash},
		CreatedBy:   model.SystemActor,
	})
	s.notify(ctx, c, notifyFinalized, map[string]any{"content_hash": hash})
	s.log.Info().Int64("contract_id", c.ID).Str("content_hash", hash).Msg("contract finalized")
	return true, nil
}

// hashInput is the canonical document behind the content hash.
func hashInput(c *model.Contract, content string) map[string]any {
	signatures := make(map[string]any, len(model.AllSignerRoles))
	for _, role := range model.AllSignerRoles {
		sig := c.SignatureFor(role)
		if !sig.IsSigned() {
			continue
		}
		signatures[string(role)] = map[string]any{
			"signed_at":    sig.SignedAt.UTC(),
			"ip":           sig.IP,
			"image_sha256": token.Digest(sig.Image),
		}
	}
	return map[string]any{
		"contract_id":        c.ID,
		"verification_token": c.VerificationToken,
		"contract_type":      c.ContractType,
		"terms":              c.CommercialTerms,
		"content":            content,
		"signatures":         signatures,
	}
}

// Revoke closes the contract and invalidates every outstanding signer link.
func (s *SignatureService) Revoke(ctx context.Context, p model.Principal, id int64, reason string) (*model.Contract, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	c, err := loadVisible(ctx, s.contracts, p, id)
	if err != nil {
		return nil, err
	}
	if !policy.CapabilitiesFor(p.Role).CanRevoke {
		return nil, ErrPermissionDenied
	}
	if c.Status.IsTerminal() {
		return nil, precondition("contract is already closed")
	}

	ok, err := s.contracts.Revoke(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, precondition("contract is already closed")
	}

	now := s.clock.Now()
	revoked, err := s.links.RevokeAll(ctx, id, now)
	if err != nil {
		s.log.Warn().Err(err).Int64("contract_id", id).Msg("signature links not revoked")
	}

	s.audit.record(ctx, model.LifecycleEvent{
		ContractID:  id,
		Type:        model.EventContractRevoked,
		Description: "Contract revoked",
		Metadata:    map[string]any{"reason": reason, "links_revoked": revoked},
		CreatedBy:   actorOf(p),
	})
	s.notify(ctx, c, notifyRevoked, map[string]any{"reason": reason})

	return s.contracts.GetContract(ctx, id)
}

func (s *SignatureService) notify(ctx context.Context, c *model.Contract, event string, payload map[string]any) {
	if err := s.notifier.Notify(ctx, c.ID, event, recipientsOf(c), payload); err != nil {
		s.log.Warn().Err(err).Int64("contract_id", c.ID).Str("event", event).Msg("notification failed")
	}
}

func statusIn(status model.ContractStatus, statuses []model.ContractStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
