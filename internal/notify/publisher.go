// Package notify publishes domain events to Redis pub/sub channels so
// connected clients can refresh without polling. Delivery is best effort:
// a publish failure is logged and never propagated to the caller.
package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Event types published on user channels.
const (
	EventOfferReceived  = "offer_received"
	EventOfferAccepted  = "offer_accepted"
	EventOfferDeclined  = "offer_declined"
	EventOfferCountered = "offer_countered"
	EventMessage        = "message"
	EventListingSold    = "listing_sold"
	EventFundsReleased  = "funds_released"
	EventPayoutSettled  = "payout_settled"
	EventModeration     = "moderation"
)

// Publisher fans out events over Redis pub/sub. A nil Publisher or a
// Publisher with a nil client is a no-op, which keeps tests simple.
type Publisher struct {
	RDB *redis.Client
}

// New returns a Publisher backed by rdb.
func New(rdb *redis.Client) *Publisher {
	return &Publisher{RDB: rdb}
}

type payload struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ToUser publishes an event on the user's private channel.
func (p *Publisher) ToUser(ctx context.Context, userID uuid.UUID, eventType string, data interface{}) {
	if p == nil || p.RDB == nil {
		return
	}
	body, err := json.Marshal(payload{Type: eventType, Data: data})
	if err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("Notification encode failed")
		return
	}
	channel := "notify:user:" + userID.String()
	if err := p.RDB.Publish(ctx, channel, body).Err(); err != nil {
		log.Warn().Err(err).Str("channel", channel).Str("event", eventType).Msg("Notification publish failed")
	}
}

// ToConversation publishes an event on a conversation channel.
func (p *Publisher) ToConversation(ctx context.Context, conversationID uuid.UUID, eventType string, data interface{}) {
	if p == nil || p.RDB == nil {
		return
	}
	body, err := json.Marshal(payload{Type: eventType, Data: data})
	if err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("Notification encode failed")
		return
	}
	channel := "notify:conversation:" + conversationID.String()
	if err := p.RDB.Publish(ctx, channel, body).Err(); err != nil {
		log.Warn().Err(err).Str("channel", channel).Str("event", eventType).Msg("Notification publish failed")
	}
}
