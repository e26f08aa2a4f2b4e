package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/lease-contracts/internal/model"
)

// errNotApplied rolls back a transaction whose guarded write matched no row.
var errNotApplied = errors.New("conditional write not applied")

const noSignaturesSQL = `tenant_sig_signed_at IS NULL
	AND owner_sig_signed_at IS NULL
	AND agency_sig_signed_at IS NULL
	AND witness_sig_signed_at IS NULL`

var signatureColumnPrefix = map[model.SignerRole]string{
	model.SignerTenant:  "tenant_sig_",
	model.SignerOwner:   "owner_sig_",
	model.SignerAgency:  "agency_sig_",
	model.SignerWitness: "witness_sig_",
}

// SignatureGuard narrows when a signature may be written.
type SignatureGuard struct {
	Statuses      []model.ContractStatus
	RequireSigned []model.SignerRole
}

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// GetContract excludes soft-deleted rows.
func (r *ContractRepository) GetContract(ctx context.Context, id int64) (*model.Contract, error) {
	var c model.Contract
	err := r.db.WithContext(ctx).
		Preload("Property").
		Preload("Tenant").
		Preload("Owner").
		Where("id = ?", id).
		Take(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContractRepository) CreateContract(ctx context.Context, c *model.Contract) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error
}

func (r *ContractRepository) HasOpenContractForProperty(ctx context.Context, propertyID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM contracts
		WHERE property_id = ?
			AND status NOT IN ('REVOKED', 'TERMINATED')
			AND deleted_at IS NULL
			AND amends_contract_id IS NULL
	`, propertyID).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ContractRepository) UpdateTerms(ctx context.Context, id int64, t model.CommercialTerms, snapshot string) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE contracts
		SET
			monthly_rent = ?,
			deposit = ?,
			due_day = ?,
			start_date = ?,
			end_date = ?,
			readjustment_index = ?,
			readjustment_month = ?,
			late_fee_percent = ?,
			interest_rate_percent = ?,
			early_termination_penalty_percent = ?,
			guarantee_type = ?,
			jurisdiction = ?,
			content_snapshot = ?,
			updated_at = NOW()
		WHERE id = ?
			AND status = 'PENDING'
			AND deleted_at IS NULL
			AND `+noSignaturesSQL,
		t.MonthlyRent,
		t.Deposit,
		t.DueDay,
		t.StartDate,
		t.EndDate,
		t.ReadjustmentIndex,
		t.ReadjustmentMonth,
		t.LateFeePercent,
		t.InterestRatePercent,
		t.EarlyTerminationPenaltyPercent,
		t.GuaranteeType,
		t.Jurisdiction,
		snapshot,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ContractRepository) UpdateAdminNotes(ctx context.Context, id int64, notes string) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE contracts SET admin_notes = ?, updated_at = NOW()
		WHERE id = ? AND deleted_at IS NULL
	`, notes, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateClauses stores the new clauses and the previous version in one
// transaction, only while the contract is still PENDING and unsigned.
func (r *ContractRepository) UpdateClauses(ctx context.Context, id int64, clauses, snapshot string, entry model.ClauseHistoryEntry) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE contracts
			SET clauses = ?, content_snapshot = ?, updated_at = NOW()
			WHERE id = ?
				AND status = 'PENDING'
				AND deleted_at IS NULL
				AND `+noSignaturesSQL,
			clauses, snapshot, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotApplied
		}
		return tx.Exec(`
			INSERT INTO contract_clause_history (contract_id, previous_clauses, edited_by, edited_at, ip)
			VALUES (?, ?, ?, ?, ?)
		`, id, entry.PreviousClauses, entry.EditedBy, entry.EditedAt, entry.IP).Error
	})
	return applied(err)
}

func (r *ContractRepository) ListClauseHistory(ctx context.Context, id int64) ([]model.ClauseHistoryEntry, error) {
	var entries []model.ClauseHistoryEntry
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, contract_id, previous_clauses, edited_by, edited_at, ip
		FROM contract_clause_history
		WHERE contract_id = ?
		ORDER BY edited_at ASC, id ASC
	`, id).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// TransitionStatus moves the contract to `to` only if its current status is in `from`.
func (r *ContractRepository) TransitionStatus(ctx context.Context, id int64, from []model.ContractStatus, to model.ContractStatus) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE contracts SET status = ?, updated_at = NOW()
		WHERE id = ? AND deleted_at IS NULL AND status IN ?
	`, to, id, from)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ContractRepository) Revoke(ctx context.Context, id int64, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE contracts SET status = 'REVOKED', revocation_reason = ?, updated_at = NOW()
		WHERE id = ? AND deleted_at IS NULL AND status NOT IN ('REVOKED', 'TERMINATED')
	`, reason, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ContractRepository) SetProvisionalDocument(ctx context.Context, id int64, ref string) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE contracts SET provisional_pdf_ref = ?, updated_at = NOW() WHERE id = ?
	`, ref, id).Error
}

// RecordSignature writes one role's signature if that role has not signed yet.
// The IS NULL guard makes concurrent writes for the same role race-safe.
func (r *ContractRepository) RecordSignature(ctx context.Context, id int64, role model.SignerRole, sig model.Signature, guard SignatureGuard) (bool, error) {
	prefix, ok := signatureColumnPrefix[role]
	if !ok {
		return false, fmt.Errorf("unknown signer role %q", role)
	}

	query := fmt.Sprintf(`
		UPDATE contracts
		SET
			%[1]simage = ?,
			%[1]ssigned_at = ?,
			%[1]sip = ?,
			%[1]suser_agent = ?,
			%[1]slatitude = ?,
			%[1]slongitude = ?,
			%[1]sgeo_consent = ?,
			%[1]ssigner_id = ?,
			updated_at = NOW()
		WHERE id = ?
			AND deleted_at IS NULL
			AND %[1]ssigned_at IS NULL`, prefix)
	args := []interface{}{sig.Image, sig.SignedAt, sig.IP, sig.UserAgent, sig.Latitude, sig.Longitude, sig.GeoConsent, sig.SignerID, id}

	if len(guard.Statuses) > 0 {
		query += " AND status IN ?"
		args = append(args, guard.Statuses)
	}
	for _, required := range guard.RequireSigned {
		requiredPrefix, ok := signatureColumnPrefix[required]
		if !ok {
			return false, fmt.Errorf("unknown signer role %q", required)
		}
		query += " AND " + requiredPrefix + "signed_at IS NOT NULL"
	}

	res := r.db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FinalizeLocked runs decide under a row lock on the contract. A nil
// Finalization leaves the row untouched; otherwise the final PDF, content and
// hash are written and the contract becomes SIGNED in the same transaction.
func (r *ContractRepository) FinalizeLocked(ctx context.Context, id int64, decide func(c *model.Contract) (*model.Finalization, error)) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.Contract
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&c).Error; err != nil {
			return err
		}

		fin, err := decide(&c)
		if err != nil {
			return err
		}
		if fin == nil {
			return errNotApplied
		}

		ref := uuid.New()
		if err := tx.Exec(`
			INSERT INTO contract_documents (id, contract_id, stage, content_type, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, ref, id, model.DocumentFinal, pdfContentType, fin.PDF, fin.SignedAt).Error; err != nil {
			return err
		}

		res := tx.Exec(`
			UPDATE contracts
			SET
				status = 'SIGNED',
				final_content = ?,
				content_hash = ?,
				hash_generated_at = ?,
				hash_ip = ?,
				signed_at = ?,
				final_pdf_ref = ?,
				updated_at = NOW()
			WHERE id = ?
				AND status = 'AWAITING_SIGNATURES'
		`, fin.FinalContent, fin.ContentHash, fin.SignedAt, fin.HashIP, fin.SignedAt, ref.String(), id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotApplied
		}
		return nil
	})
	return applied(err)
}

// SoftDelete marks the contract deleted and detaches invoices, payments and
// inspections instead of cascading.
func (r *ContractRepository) SoftDelete(ctx context.Context, id int64, at time.Time) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE contracts SET deleted_at = ?, updated_at = NOW()
			WHERE id = ?
				AND deleted_at IS NULL
				AND status IN ('PENDING', 'REVOKED')
				AND `+noSignaturesSQL,
			at, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotApplied
		}
		for _, table := range []string{"invoices", "payments", "inspections"} {
			if err := tx.Exec("UPDATE "+table+" SET contract_id = NULL WHERE contract_id = ?", id).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return applied(err)
}

func applied(err error) (bool, error) {
	if errors.Is(err, errNotApplied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
