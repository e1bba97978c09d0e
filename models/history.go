package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/lendstock_backend/utils"
	"gorm.io/gorm"
)

// History is the append-only audit trail. One row per state transition or
// lifecycle action, with before/after snapshots, so the full status history of
// any entity can be reconstructed.
type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ActionType    string    `gorm:"size:20;not null" json:"action_type"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:100;index" json:"reference_type"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func createHistory(tx *gorm.DB,
	actionType string,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) (err error) {

	var history History

	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)

	ctx := tx.Statement.Context
	// System sweeps run without a signed-in actor.
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		userId = 0
	}
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok || userName == "" {
		userName = "System"
	}

	history.ActionType = actionType
	history.Before = string(b)
	history.After = string(a)
	history.Description = description
	history.ReferenceID = referenceId
	history.ReferenceType = referenceType
	history.UserId = userId
	history.UserName = userName

	err = tx.Create(&history).Error
	return err
}

// CreateHistoryRecord writes an audit row inside the caller's transaction.
func CreateHistoryRecord(tx *gorm.DB,
	actionType string,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) error {
	return createHistory(tx, actionType, referenceId, referenceType, before, after, description)
}

// GetHistories lists the audit trail for one entity, oldest first.
func GetHistories(ctx context.Context, referenceType string, referenceId int) ([]*History, error) {
	return utils.FetchModelsWhere[History](ctx,
		"reference_type = ? AND reference_id = ?", referenceType, referenceId)
}
