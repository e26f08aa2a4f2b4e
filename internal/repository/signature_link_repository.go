package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/lease-contracts/internal/model"
)

type SignatureLinkRepository struct {
	db *gorm.DB
}

func NewSignatureLinkRepository(db *gorm.DB) *SignatureLinkRepository {
	return &SignatureLinkRepository{db: db}
}

func (r *SignatureLinkRepository) CreateLinks(ctx context.Context, contractID int64, parties []model.LinkParty, createdAt, expiresAt time.Time) ([]model.SignatureLink, error) {
	links := make([]model.SignatureLink, 0, len(parties))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, party := range parties {
			link := model.SignatureLink{
				ID:         uuid.New(),
				ContractID: contractID,
				SignerRole: party.Role,
				Contact:    party.Contact,
				Token:      strings.ReplaceAll(uuid.NewString(), "-", ""),
				ExpiresAt:  expiresAt,
				CreatedAt:  createdAt,
			}
			if err := tx.Exec(`
				INSERT INTO signature_links (id, contract_id, signer_role, contact, token, expires_at, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, link.ID, link.ContractID, link.SignerRole, link.Contact, link.Token, link.ExpiresAt, link.CreatedAt).Error; err != nil {
				return err
			}
			links = append(links, link)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// RevokeAll revokes every link still outstanding for the contract.
func (r *SignatureLinkRepository) RevokeAll(ctx context.Context, contractID int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE signature_links SET revoked_at = ?
		WHERE contract_id = ? AND revoked_at IS NULL
	`, at, contractID)
	return res.RowsAffected, res.Error
}
