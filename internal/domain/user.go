package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a marketplace account. WalletBalance holds escrow proceeds until
// paid out; it is mutated only by escrow release and payout completion.
type User struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email            string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash     string    `gorm:"column:password_hash;not null" json:"-"`
	FullName         string    `gorm:"column:full_name;not null" json:"full_name"`
	Role             string    `gorm:"column:role;not null;default:USER" json:"role"`
	WalletBalance    float64   `gorm:"column:wallet_balance;type:decimal(18,2);not null;default:0" json:"wallet_balance"`
	IBAN             *string   `gorm:"column:iban" json:"iban"`
	Phone            *string   `gorm:"column:phone" json:"phone"`
	IsVerifiedSeller bool      `gorm:"column:is_verified_seller;not null;default:false" json:"is_verified_seller"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "orus_users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
