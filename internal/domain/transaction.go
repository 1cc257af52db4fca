package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionStatus of an escrow transaction. Wallet settlement is
// synchronous, so rows are created COMPLETED.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxCompleted TransactionStatus = "COMPLETED"
	TxFailed    TransactionStatus = "FAILED"
	TxRefunded  TransactionStatus = "REFUNDED"
)

// Transaction records an escrow purchase. GrossAmount = NetSellerAmount +
// Commission always holds. FundsReleased flips false -> true exactly once,
// on the verified physical withdrawal.
type Transaction struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ListingID       uuid.UUID         `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	BuyerID         uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null" json:"buyer_id"`
	SellerID        uuid.UUID         `gorm:"column:seller_id;type:uuid;not null" json:"seller_id"`
	GrossAmount     float64           `gorm:"column:gross_amount;type:decimal(18,2);not null" json:"gross_amount"`
	Commission      float64           `gorm:"column:commission;type:decimal(18,2);not null" json:"commission"`
	NetSellerAmount float64           `gorm:"column:net_seller_amount;type:decimal(18,2);not null" json:"net_seller_amount"`
	PaymentMethod   string            `gorm:"column:payment_method;type:varchar(16);not null;default:'WALLET'" json:"payment_method"`
	Status          TransactionStatus `gorm:"column:status;type:varchar(16);not null;default:'PENDING'" json:"status"`
	FundsReleased   bool              `gorm:"column:funds_released;not null;default:false" json:"funds_released"`
	CreatedAt       time.Time         `gorm:"column:created_at" json:"created_at"`
	ReleasedAt      *time.Time        `gorm:"column:released_at" json:"released_at"`
}

func (Transaction) TableName() string {
	return "orus_transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
