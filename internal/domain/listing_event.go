package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ListingEvent is an audit row written in the same transaction as the
// lifecycle change it records.
type ListingEvent struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ListingID uuid.UUID      `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	EventType string         `gorm:"column:event_type;type:varchar(32);not null" json:"event_type"`
	ActorID   *uuid.UUID     `gorm:"column:actor_id;type:uuid" json:"actor_id"`
	EventData datatypes.JSON `gorm:"column:event_data;type:json" json:"event_data"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (ListingEvent) TableName() string {
	return "orus_listing_events"
}

func (e *ListingEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// RecordEvent appends an audit row inside the caller's transaction, so the
// event commits with the change it records or not at all.
func RecordEvent(tx *gorm.DB, listingID uuid.UUID, eventType string, actorID *uuid.UUID, data map[string]interface{}) error {
	event := ListingEvent{
		ListingID: listingID,
		EventType: eventType,
		ActorID:   actorID,
	}
	if data != nil {
		body, err := json.Marshal(data)
		if err != nil {
			return err
		}
		event.EventData = datatypes.JSON(body)
	}
	return tx.Create(&event).Error
}

// Event types recorded by the lifecycle, negotiation and settlement flows.
const (
	EventCreated        = "CREATED"
	EventModerated      = "MODERATED"
	EventConformity     = "CONFORMITY"
	EventDeposited      = "DEPOSITED"
	EventQualityChecked = "QUALITY_CHECKED"
	EventSold           = "SOLD"
	EventWithdrawn      = "WITHDRAWN"
	EventSellerRemoved  = "SELLER_REMOVED"
)
