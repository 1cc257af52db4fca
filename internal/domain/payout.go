package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PayoutStatus of a seller payout request.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "PENDING"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutCompleted  PayoutStatus = "COMPLETED"
	PayoutRejected   PayoutStatus = "REJECTED"
)

// PayoutRequest asks the platform to wire wallet funds to a bank account.
// Balance is checked at request time and re-validated at processing time.
type PayoutRequest struct {
	ID              uuid.UUID    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID    `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Amount          float64      `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	IBAN            string       `gorm:"column:iban;not null" json:"iban"`
	Status          PayoutStatus `gorm:"column:status;type:varchar(16);not null;default:'PENDING'" json:"status"`
	RequestedAt     time.Time    `gorm:"column:requested_at" json:"requested_at"`
	ProcessedAt     *time.Time   `gorm:"column:processed_at" json:"processed_at"`
	ProcessedBy     *uuid.UUID   `gorm:"column:processed_by;type:uuid" json:"processed_by"`
	RejectionReason *string      `gorm:"column:rejection_reason" json:"rejection_reason"`
}

func (PayoutRequest) TableName() string {
	return "orus_payout_requests"
}

func (p *PayoutRequest) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Wallet entry types.
const (
	WalletEntryPayout        = "PAYOUT"
	WalletEntryEscrowRelease = "ESCROW_RELEASE"
	WalletEntryPurchase      = "PURCHASE"
	WalletEntryTopUp         = "TOP_UP"
)

// WalletEntry is one line of wallet balance history, written in the same
// transaction as the balance change it records.
type WalletEntry struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Amount       float64   `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Type         string    `gorm:"column:type;type:varchar(24);not null" json:"type"`
	ReferenceID  uuid.UUID `gorm:"column:reference_id;type:uuid;not null" json:"reference_id"`
	Description  string    `gorm:"column:description" json:"description"`
	BalanceAfter float64   `gorm:"column:balance_after;type:decimal(18,2);not null" json:"balance_after"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (WalletEntry) TableName() string {
	return "orus_wallet_entries"
}

func (w *WalletEntry) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
