package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/lease-contracts/internal/model"
)

const pdfContentType = "application/pdf"

type StoredDocument struct {
	ID          uuid.UUID
	ContractID  int64
	Stage       model.DocumentStage
	ContentType string
	Content     []byte
	CreatedAt   time.Time
}

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) SaveDocument(ctx context.Context, contractID int64, stage model.DocumentStage, data []byte, at time.Time) (string, error) {
	id := uuid.New()
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO contract_documents (id, contract_id, stage, content_type, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, contractID, stage, pdfContentType, data, at).Error
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (r *DocumentRepository) GetDocument(ctx context.Context, contractID int64, ref string) (*StoredDocument, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	var doc StoredDocument
	err = r.db.WithContext(ctx).Raw(`
		SELECT id, contract_id, stage, content_type, content, created_at
		FROM contract_documents
		WHERE id = ? AND contract_id = ?
		LIMIT 1
	`, id, contractID).Scan(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &doc, nil
}
