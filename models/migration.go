package models

import (
	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/utils"
)

// MigrateTable panics on a failed migration; the server must not come up
// against a half-migrated schema.
func MigrateTable() {
	db := config.GetDB()

	utils.ErrorPanic(db.AutoMigrate(
		&StockUnit{},
		&Student{}, &Employee{},
		&BorrowTransaction{},
		&ReturnVerification{}, &ReturnRecord{},
		&History{},
		&NotificationOutbox{},
	))
}
