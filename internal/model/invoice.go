package model

import "time"

type InvoiceStatus string

const (
	InvoiceStatusOpen     InvoiceStatus = "OPEN"
	InvoiceStatusPaid     InvoiceStatus = "PAID"
	InvoiceStatusOverdue  InvoiceStatus = "OVERDUE"
	InvoiceStatusCanceled InvoiceStatus = "CANCELED"
)

type Invoice struct {
	ID            int64         `json:"id"`
	ContractID    int64         `json:"contract_id"`
	DueDate       time.Time     `json:"due_date"`
	OriginalValue float64       `json:"original_value"`
	PaidValue     float64       `json:"paid_value"`
	Status        InvoiceStatus `json:"status"`
}

// NotificationRecord is a notification already dispatched for a contract.
type NotificationRecord struct {
	ID         int64          `json:"id"`
	ContractID int64          `json:"contract_id"`
	Event      string         `json:"event"`
	Channel    string         `json:"channel"`
	Recipient  string         `json:"recipient"`
	Payload    map[string]any `json:"payload,omitempty"`
	SentAt     time.Time      `json:"sent_at"`
}

type Recipient struct {
	UserID  int64  `json:"user_id,omitempty"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
}
