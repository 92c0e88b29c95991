package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/pkg/enums"
)

// OutboxEvent is one row of outbox_events. Rows are written once by Emit and
// afterwards only touched by the publisher's bookkeeping columns.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`

	// Publisher state. A row with AttemptCount at the configured maximum is
	// parked and never fetched again.
	PublishedAt  *time.Time `gorm:"column:published_at"`
	AttemptCount int        `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string    `gorm:"column:last_error"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// Settled reports whether the publisher is done with the row, either because
// it was delivered or because it ran out of attempts.
func (e OutboxEvent) Settled(maxAttempts int) bool {
	return e.PublishedAt != nil || e.AttemptCount >= maxAttempts
}
