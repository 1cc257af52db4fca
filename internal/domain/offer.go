package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OfferStatus is the negotiation state of a single offer. PENDING is the
// only live state; the three responses are terminal for that offer.
type OfferStatus string

const (
	OfferPending   OfferStatus = "PENDING"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferDeclined  OfferStatus = "DECLINED"
	OfferCountered OfferStatus = "COUNTERED"
)

var offerTransitions = map[OfferStatus][]OfferStatus{
	OfferPending: {OfferAccepted, OfferDeclined, OfferCountered},
}

// CanTransitionTo reports whether the offer state machine allows s -> next.
func (s OfferStatus) CanTransitionTo(next OfferStatus) bool {
	for _, allowed := range offerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OfferPaymentStatus tracks settlement of an accepted offer.
type OfferPaymentStatus string

const (
	OfferUnpaid   OfferPaymentStatus = "UNPAID"
	OfferPaid     OfferPaymentStatus = "PAID"
	OfferRefunded OfferPaymentStatus = "REFUNDED"
)

// Offer is a proposed price inside a conversation, attached to the chat
// message that announced it.
type Offer struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID           `gorm:"column:conversation_id;type:uuid;not null;index;uniqueIndex:uniq_offer_pending,where:status = 'PENDING'" json:"conversation_id"`
	ListingID      uuid.UUID           `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	SenderID       uuid.UUID           `gorm:"column:sender_id;type:uuid;not null" json:"sender_id"`
	ReceiverID     uuid.UUID           `gorm:"column:receiver_id;type:uuid;not null" json:"receiver_id"`
	Amount         float64             `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Status         OfferStatus         `gorm:"column:status;type:varchar(16);not null;default:'PENDING'" json:"status"`
	PaymentStatus  *OfferPaymentStatus `gorm:"column:payment_status;type:varchar(16)" json:"payment_status"`
	MessageID      uuid.UUID           `gorm:"column:message_id;type:uuid;not null" json:"message_id"`
	TransactionID  *uuid.UUID          `gorm:"column:transaction_id;type:uuid" json:"transaction_id"`
	CreatedAt      time.Time           `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"column:updated_at" json:"updated_at"`
}

func (Offer) TableName() string {
	return "orus_offers"
}

func (o *Offer) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
