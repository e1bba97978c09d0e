package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"gorm.io/gorm"
)

// Recipient is the borrower contact snapshot attached to an outbox event.
// Empty for operator-facing events (e.g. auto-delete purges).
type Recipient struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// NotificationOutbox implements the transactional outbox: the event row is
// written inside the caller's DB transaction and published asynchronously by
// the outbox dispatcher after commit. Delivery beyond the event channel is an
// external collaborator; delivery failure never rolls back core state.
type NotificationOutbox struct {
	ID               int                   `gorm:"primary_key" json:"id"`
	EventType        NotificationEventType `gorm:"size:40;index;not null" json:"event_type"`
	ReferenceType    string                `gorm:"size:100;not null" json:"reference_type"`
	ReferenceID      int                   `gorm:"index;not null" json:"reference_id"`
	RecipientName    string                `gorm:"size:255" json:"recipient_name"`
	RecipientEmail   string                `gorm:"size:255" json:"recipient_email"`
	RecipientContact string                `gorm:"size:100" json:"recipient_contact"`
	Payload          []byte                `gorm:"type:json" json:"payload"`
	IsProcessed      bool                  `gorm:"not null;default:false;index" json:"is_processed"`
	PublishStatus    string                `gorm:"size:20;not null;default:'PENDING';index" json:"publish_status"`
	AttemptCount     int                   `gorm:"not null;default:0" json:"attempt_count"`
	NextAttemptAt    *time.Time            `json:"next_attempt_at"`
	LockedAt         *time.Time            `json:"locked_at"`
	LockedBy         string                `gorm:"size:64" json:"locked_by"`
	LastError        string                `gorm:"type:text" json:"last_error"`
	CorrelationId    string                `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

// EmitNotification writes an event record in the caller's transaction.
// The same milestone is never emitted twice for one entity: callers stamp the
// corresponding sent-at timestamp in the same transaction, and that timestamp
// is the de-duplication mechanism.
func EmitNotification(ctx context.Context, tx *gorm.DB, eventType NotificationEventType,
	refType string, refId int, recipient Recipient, payload interface{}) error {

	payloadInByte, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	record := NotificationOutbox{
		EventType:        eventType,
		ReferenceType:    refType,
		ReferenceID:      refId,
		RecipientName:    recipient.Name,
		RecipientEmail:   recipient.Email,
		RecipientContact: recipient.Contact,
		Payload:          payloadInByte,
		IsProcessed:      false,
		PublishStatus:    OutboxPublishStatusPending,
		CorrelationId:    correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
