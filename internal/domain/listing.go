package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ModerationState is the editorial approval status of a listing.
type ModerationState string

const (
	ModerationPending           ModerationState = "PENDING"
	ModerationApproved          ModerationState = "APPROVED"
	ModerationRejected          ModerationState = "REJECTED"
	ModerationWithdrawnBySeller ModerationState = "WITHDRAWN_BY_SELLER"
	ModerationBannedByModerator ModerationState = "BANNED_BY_MODERATOR"
)

// moderationTransitions is the closed transition table. Illegal moves are
// rejected here rather than at each call site.
var moderationTransitions = map[ModerationState][]ModerationState{
	ModerationPending:  {ModerationApproved, ModerationRejected, ModerationWithdrawnBySeller, ModerationBannedByModerator},
	ModerationApproved: {ModerationWithdrawnBySeller, ModerationBannedByModerator},
	ModerationRejected: {ModerationWithdrawnBySeller, ModerationBannedByModerator},
}

// CanTransitionTo reports whether the moderation state machine allows s -> next.
func (s ModerationState) CanTransitionTo(next ModerationState) bool {
	for _, allowed := range moderationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// LogisticsState is the physical custody status of the item. It only ever
// moves forward.
type LogisticsState string

const (
	LogisticsAwaitingDeposit LogisticsState = "AWAITING_DEPOSIT"
	LogisticsDeposited       LogisticsState = "DEPOSITED"
	LogisticsQualityChecked  LogisticsState = "QUALITY_CHECKED"
	LogisticsSold            LogisticsState = "SOLD"
	LogisticsWithdrawn       LogisticsState = "WITHDRAWN_BY_BUYER"
)

var logisticsOrder = map[LogisticsState]int{
	LogisticsAwaitingDeposit: 0,
	LogisticsDeposited:       1,
	LogisticsQualityChecked:  2,
	LogisticsSold:            3,
	LogisticsWithdrawn:       4,
}

// Rank returns the position of s in the monotonic custody progression.
// Unknown states rank below every valid state.
func (s LogisticsState) Rank() int {
	if r, ok := logisticsOrder[s]; ok {
		return r
	}
	return -1
}

// CanAdvanceTo reports whether s -> next is a legal forward move. The
// progression never skips a step except AWAITING_DEPOSIT -> QUALITY_CHECKED
// for self-certified listings, and never regresses.
func (s LogisticsState) CanAdvanceTo(next LogisticsState) bool {
	from, to := s.Rank(), next.Rank()
	if from < 0 || to < 0 {
		return false
	}
	if to == from+1 {
		return true
	}
	return s == LogisticsAwaitingDeposit && next == LogisticsQualityChecked
}

// ConformityState is the post-listing inspection verdict.
type ConformityState string

const (
	ConformityPending     ConformityState = "PENDING"
	ConformityConforme    ConformityState = "CONFORME"
	ConformityNonConforme ConformityState = "NON_CONFORME"
)

// Listing is a marketplace product. The seller owns it until sold; after
// that it is mutated only by settlement and the logistics operators.
type Listing struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SellerID            uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	BuyerID             *uuid.UUID      `gorm:"column:buyer_id;type:uuid" json:"buyer_id"`
	Title               string          `gorm:"column:title;not null" json:"title"`
	Description         string          `gorm:"column:description" json:"description"`
	Category            string          `gorm:"column:category" json:"category"`
	Price               float64         `gorm:"column:price;type:decimal(18,2);not null" json:"price"`
	ModerationState     ModerationState `gorm:"column:moderation_state;type:varchar(32);not null;default:'PENDING'" json:"moderation_state"`
	LogisticsState      LogisticsState  `gorm:"column:logistics_state;type:varchar(32);not null;default:'AWAITING_DEPOSIT'" json:"logistics_state"`
	ConformityState     ConformityState `gorm:"column:conformity_state;type:varchar(32);not null;default:'PENDING'" json:"conformity_state"`
	ConformityCheckedAt *time.Time      `gorm:"column:conformity_checked_at" json:"conformity_checked_at"`
	ConformityCheckedBy *uuid.UUID      `gorm:"column:conformity_checked_by;type:uuid" json:"conformity_checked_by"`
	SelfCertified       bool            `gorm:"column:self_certified;not null;default:false" json:"self_certified"`
	DepositCode         *string         `gorm:"column:deposit_code;uniqueIndex" json:"deposit_code"`
	WithdrawalCode      *string         `gorm:"column:withdrawal_code;uniqueIndex" json:"withdrawal_code"`
	CreatedAt           time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Listing) TableName() string {
	return "orus_products"
}

// BeforeCreate sets id if not already set (DBs without default uuid).
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Purchasable reports whether a buyer may buy the listing right now:
// approved, not failed inspection, not already sold.
func (l *Listing) Purchasable() bool {
	return l.ModerationState == ModerationApproved &&
		l.ConformityState != ConformityNonConforme &&
		l.BuyerID == nil
}
