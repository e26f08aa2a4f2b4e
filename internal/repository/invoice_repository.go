package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nurpe/lease-contracts/internal/model"
)

// InvoiceRepository reads invoices owned by the billing side; it never writes them.
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// ListOverdueInvoices treats OPEN invoices past their due date as overdue too.
func (r *InvoiceRepository) ListOverdueInvoices(ctx context.Context, contractID int64, today time.Time) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, contract_id, due_date, original_value, paid_value, status
		FROM invoices
		WHERE contract_id = ?
			AND (status = 'OVERDUE' OR (status = 'OPEN' AND due_date < ?))
		ORDER BY due_date ASC
	`, contractID, today).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *InvoiceRepository) ListInvoices(ctx context.Context, contractID int64) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, contract_id, due_date, original_value, paid_value, status
		FROM invoices
		WHERE contract_id = ? AND status <> 'CANCELED'
		ORDER BY due_date ASC
	`, contractID).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
