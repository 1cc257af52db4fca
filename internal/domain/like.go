package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Like marks a listing as saved by a user. Likes are purged when the
// listing is withdrawn or banned.
type Like struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_like_user_listing" json:"user_id"`
	ListingID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_like_user_listing" json:"product_id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Like) TableName() string {
	return "orus_likes"
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
